package identity

import "testing"

func TestParseRole_ClosedSet(t *testing.T) {
	for _, s := range []string{"user", "customer_service", "admin"} {
		r, ok := ParseRole(s)
		if !ok || string(r) != s {
			t.Fatalf("expected %q to parse", s)
		}
	}
	if _, ok := ParseRole("superuser"); ok {
		t.Fatalf("expected unknown role to be rejected")
	}
	if _, ok := ParseRole(""); ok {
		t.Fatalf("expected empty role to be rejected")
	}
}

func TestCallCapable(t *testing.T) {
	if !RoleUser.CallCapable() || !RoleCustomerService.CallCapable() {
		t.Fatalf("users and agents must be call capable")
	}
	if RoleAdmin.CallCapable() {
		t.Fatalf("admins must not be call capable")
	}
	if Role("bogus").CallCapable() {
		t.Fatalf("unknown roles must not be call capable")
	}
}

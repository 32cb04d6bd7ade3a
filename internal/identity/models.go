package identity

import "time"

// Identity is an authenticated party known to the platform: an end user,
// a customer-service agent, or a back-office admin.
//
// Role is immutable for the lifetime of a session; a role change requires
// re-authentication.
type Identity struct {
	ID          string    `json:"id" db:"id"`
	Role        Role      `json:"role" db:"role"`
	DisplayName string    `json:"display_name" db:"display_name"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// Role is the closed set of identity roles. Do not compare against raw
// strings outside this package; use ParseRole at trust boundaries.
type Role string

const (
	RoleUser            Role = "user"
	RoleCustomerService Role = "customer_service"
	RoleAdmin           Role = "admin"
)

// ParseRole maps an external role string onto the closed role set.
func ParseRole(s string) (Role, bool) {
	switch Role(s) {
	case RoleUser, RoleCustomerService, RoleAdmin:
		return Role(s), true
	default:
		return "", false
	}
}

// CallCapable reports whether the role may participate in calls.
// Admins observe but never ring.
func (r Role) CallCapable() bool {
	switch r {
	case RoleUser, RoleCustomerService:
		return true
	case RoleAdmin:
		return false
	default:
		return false
	}
}

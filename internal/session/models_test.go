package session

import "testing"

func TestStateTerminal(t *testing.T) {
	terminal := []State{StateEnded, StateRejected, StateTimedOut, StateFailed}
	for _, s := range terminal {
		if !s.Terminal() {
			t.Fatalf("expected %s terminal", s)
		}
	}
	for _, s := range []State{StateInitiated, StateRinging, StateAccepted} {
		if s.Terminal() {
			t.Fatalf("expected %s non-terminal", s)
		}
	}
}

func TestPairKeyUnordered(t *testing.T) {
	if pairKeyFor("alice", "bob") != pairKeyFor("bob", "alice") {
		t.Fatalf("pair key must be direction independent")
	}
	if pairKeyFor("alice", "bob") == pairKeyFor("alice", "carol") {
		t.Fatalf("distinct pairs must not collide")
	}
}

package session

import (
	"sync"
	"time"
)

// State is the call session state machine.
//
// Valid transitions:
//
//	Initiated -> Ringing   (recipient reachable, incoming_call delivered)
//	Initiated -> Failed    (caller withdrew before delivery)
//	Initiated -> TimedOut  (offline grace window lapsed)
//	Ringing   -> Accepted | Rejected | Ended | TimedOut
//	Accepted  -> Ended
//
// Ended, Rejected, TimedOut and Failed are terminal; nothing leaves them.
type State string

const (
	StateInitiated State = "initiated"
	StateRinging   State = "ringing"
	StateAccepted  State = "accepted"
	StateEnded     State = "ended"
	StateRejected  State = "rejected"
	StateTimedOut  State = "timed_out"
	StateFailed    State = "failed"
)

func (s State) Terminal() bool {
	switch s {
	case StateEnded, StateRejected, StateTimedOut, StateFailed:
		return true
	default:
		return false
	}
}

// Session is one call attempt between a caller and a recipient.
//
// All transitions and the deliveries they produce happen under mu, so each
// party observes the session's events in transition order. Sinks are
// non-blocking, which keeps holding mu across delivery safe.
type Session struct {
	mu sync.Mutex

	ID             string
	CallerID       string
	CallerName     string
	RecipientID    string
	ConversationID string

	state        State
	createdAt    time.Time
	terminatedAt *time.Time

	ringTimer  *time.Timer
	graceTimer *time.Timer
}

func (s *Session) snapshotLocked() Snapshot {
	return Snapshot{
		CallID:         s.ID,
		CallerID:       s.CallerID,
		RecipientID:    s.RecipientID,
		ConversationID: s.ConversationID,
		State:          s.state,
		CreatedAt:      s.createdAt,
		TerminatedAt:   s.terminatedAt,
	}
}

// Snapshot is an immutable copy of session state for observers and the
// call-history archive.
type Snapshot struct {
	CallID         string     `json:"call_id"`
	CallerID       string     `json:"caller_id"`
	RecipientID    string     `json:"recipient_id"`
	ConversationID string     `json:"conversation_id"`
	State          State      `json:"state"`
	CreatedAt      time.Time  `json:"created_at"`
	TerminatedAt   *time.Time `json:"terminated_at,omitempty"`
}

// pairKey identifies the unordered (caller, recipient) pair. At most one
// non-terminal session may exist per pair.
type pairKey struct {
	lo, hi string
}

func pairKeyFor(a, b string) pairKey {
	if b < a {
		a, b = b, a
	}
	return pairKey{lo: a, hi: b}
}

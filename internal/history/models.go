package history

import "time"

// Record is an immutable, append-only archive row for one terminated call
// attempt.
//
// Invariants:
// - Records are never updated or deleted.
// - final_state is always a terminal state.
// - Archiving is best-effort; signaling never blocks on it.
type Record struct {
	CallID         string    `json:"call_id" db:"call_id"`
	CallerID       string    `json:"caller_id" db:"caller_id"`
	RecipientID    string    `json:"recipient_id" db:"recipient_id"`
	ConversationID string    `json:"conversation_id,omitempty" db:"conversation_id"`
	FinalState     string    `json:"final_state" db:"final_state"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
	TerminatedAt   time.Time `json:"terminated_at" db:"terminated_at"`
}

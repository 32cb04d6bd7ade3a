package history

import (
	"context"

	"signaling-platform/internal/session"
)

// SessionArchiver adapts the Service to the call manager's Archive
// contract, so the session package stays free of persistence concerns.
type SessionArchiver struct {
	Svc *Service
}

func (a SessionArchiver) Archive(ctx context.Context, snap session.Snapshot) error {
	rec := Record{
		CallID:         snap.CallID,
		CallerID:       snap.CallerID,
		RecipientID:    snap.RecipientID,
		ConversationID: snap.ConversationID,
		FinalState:     string(snap.State),
		CreatedAt:      snap.CreatedAt,
	}
	if snap.TerminatedAt != nil {
		rec.TerminatedAt = *snap.TerminatedAt
	}
	return a.Svc.Append(ctx, rec)
}

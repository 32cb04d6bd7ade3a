package history

import (
	"context"
	"errors"
	"time"
)

// Repository is the persistence contract for call-history records.
// It MUST be append-only; no Update/Delete methods are provided by design.
type Repository interface {
	Append(ctx context.Context, rec Record) error
	Recent(ctx context.Context, limit int) ([]Record, error)
}

var ErrInvalidRecord = errors.New("history: invalid record")

// Service archives terminated call sessions for the back office.
// Callers should treat archiving as best-effort.
type Service struct {
	repo  Repository
	clock func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, clock: time.Now}
}

func (s *Service) Append(ctx context.Context, rec Record) error {
	if s.repo == nil {
		return errors.New("history: repository not configured")
	}
	if rec.CallID == "" || rec.CallerID == "" || rec.RecipientID == "" {
		return ErrInvalidRecord
	}
	if rec.FinalState == "" {
		return ErrInvalidRecord
	}
	now := s.clock().UTC()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	if rec.TerminatedAt.IsZero() {
		rec.TerminatedAt = now
	}
	return s.repo.Append(ctx, rec)
}

func (s *Service) Recent(ctx context.Context, limit int) ([]Record, error) {
	if s.repo == nil {
		return nil, errors.New("history: repository not configured")
	}
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	return s.repo.Recent(ctx, limit)
}

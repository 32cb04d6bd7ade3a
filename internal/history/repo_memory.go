package history

import (
	"context"
	"sync"
)

// MemoryRepo is a simple in-memory append-only repository useful for tests.
// It is not intended for production use.
type MemoryRepo struct {
	mu      sync.Mutex
	records []Record
}

func NewMemoryRepo() *MemoryRepo { return &MemoryRepo{} }

func (r *MemoryRepo) Append(ctx context.Context, rec Record) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, rec)
	return nil
}

func (r *MemoryRepo) Recent(ctx context.Context, limit int) ([]Record, error) {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()

	n := len(r.records)
	if limit > n {
		limit = n
	}
	out := make([]Record, 0, limit)
	// Newest first.
	for i := n - 1; i >= n-limit; i-- {
		out = append(out, r.records[i])
	}
	return out, nil
}

func (r *MemoryRepo) Records() []Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Record, len(r.records))
	copy(out, r.records)
	return out
}

package identity

import (
	"context"
	"sync"
)

// Directory resolves identity ids to identities. The signaling core treats
// the user store as an external collaborator; this interface is the whole
// surface it needs.
type Directory interface {
	Resolve(ctx context.Context, identityID string) (Identity, bool, error)
}

// MemoryDirectory is an in-memory Directory for tests and local development.
type MemoryDirectory struct {
	mu  sync.RWMutex
	ids map[string]Identity
}

func NewMemoryDirectory() *MemoryDirectory {
	return &MemoryDirectory{ids: make(map[string]Identity)}
}

func (d *MemoryDirectory) Put(id Identity) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.ids[id.ID] = id
}

func (d *MemoryDirectory) Resolve(ctx context.Context, identityID string) (Identity, bool, error) {
	_ = ctx
	d.mu.RLock()
	defer d.mu.RUnlock()
	id, ok := d.ids[identityID]
	return id, ok, nil
}

package presence

import (
	"log/slog"
	"sync"
	"time"

	"signaling-platform/internal/identity"
	"signaling-platform/internal/registry"
	"signaling-platform/internal/signal"
)

// ConnectionSource is the slice of the registry the tracker reads.
type ConnectionSource interface {
	ByRole(role identity.Role) []*registry.Connection
	ConnectionCount(identityID string) int
}

// Record is the derived presence view for one identity.
type Record struct {
	IdentityID  string    `json:"identity_id"`
	Online      bool      `json:"online"`
	Since       time.Time `json:"since"`
	LastSeen    time.Time `json:"last_seen"`
	Connections int       `json:"connections"`
}

// Tracker turns registry connection churn into identity-level presence.
// It subscribes to the registry, so online fires on the first connection
// and offline only when the registry reports zero remaining; a multi-device
// disconnect never wrongly marks an identity offline.
//
// Presence change events are broadcast to connected customer-service
// agents: the CS dashboard is the party that watches customer liveness.
type Tracker struct {
	mu      sync.RWMutex
	records map[string]Record

	conns ConnectionSource
	log   *slog.Logger
	clock func() time.Time
}

func NewTracker(conns ConnectionSource, log *slog.Logger) *Tracker {
	if log == nil {
		log = slog.Default()
	}
	return &Tracker{
		records: make(map[string]Record),
		conns:   conns,
		log:     log,
		clock:   time.Now,
	}
}

// IdentityOnline implements registry.Listener.
func (t *Tracker) IdentityOnline(identityID string, role identity.Role) {
	now := t.clock().UTC()

	t.mu.Lock()
	rec := t.records[identityID]
	rec.IdentityID = identityID
	rec.Online = true
	rec.Since = now
	rec.LastSeen = now
	t.records[identityID] = rec
	t.mu.Unlock()

	t.broadcast(identityID, signal.PresenceOnline(identityID))
}

// IdentityOffline implements registry.Listener. The registry only invokes
// this once the identity's last connection is gone.
func (t *Tracker) IdentityOffline(identityID string, role identity.Role) {
	now := t.clock().UTC()

	t.mu.Lock()
	rec := t.records[identityID]
	rec.IdentityID = identityID
	rec.Online = false
	rec.LastSeen = now
	t.records[identityID] = rec
	t.mu.Unlock()

	t.broadcast(identityID, signal.PresenceOffline(identityID))
}

// Snapshot returns the presence record for an identity. ok is false when
// the identity has never been seen by this process.
func (t *Tracker) Snapshot(identityID string) (Record, bool) {
	t.mu.RLock()
	rec, ok := t.records[identityID]
	t.mu.RUnlock()
	if !ok {
		return Record{IdentityID: identityID}, false
	}
	rec.Connections = t.conns.ConnectionCount(identityID)
	return rec, true
}

func (t *Tracker) broadcast(aboutID string, evt signal.ServerEvent) {
	for _, c := range t.conns.ByRole(identity.RoleCustomerService) {
		if c.IdentityID == aboutID {
			// The transitioning agent's own devices already know.
			continue
		}
		if err := c.Deliver(evt); err != nil {
			t.log.Debug("presence delivery failed", "conn_id", c.ID, "err", err)
		}
	}
}

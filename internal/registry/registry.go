package registry

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"signaling-platform/internal/identity"
	"signaling-platform/internal/signal"
)

var ErrDuplicateConnection = errors.New("registry: connection id already registered")

// Sink delivers server events down one live transport. Implementations must
// not block: the registry and the call manager deliver while holding locks.
type Sink interface {
	Deliver(evt signal.ServerEvent) error
	Close() error
}

// Connection is one live realtime transport bound to an identity.
// It is owned exclusively by the Registry; other components receive it
// read-only via Lookup.
type Connection struct {
	ID          string
	IdentityID  string
	Role        identity.Role
	ConnectedAt time.Time

	sink Sink
}

func NewConnection(id, identityID string, role identity.Role, connectedAt time.Time, sink Sink) *Connection {
	return &Connection{
		ID:          id,
		IdentityID:  identityID,
		Role:        role,
		ConnectedAt: connectedAt,
		sink:        sink,
	}
}

func (c *Connection) Deliver(evt signal.ServerEvent) error {
	return c.sink.Deliver(evt)
}

// Listener observes identity-level presence transitions. Callbacks fire
// outside registry locks, after the transition is visible via Lookup.
type Listener interface {
	IdentityOnline(identityID string, role identity.Role)
	IdentityOffline(identityID string, role identity.Role)
}

// Registry is the single source of truth for "is identity X reachable now".
// One identity may own several concurrent connections (multi-device);
// online/offline transitions fire only on the first and last of them.
type Registry struct {
	mu         sync.RWMutex
	byConn     map[string]*Connection
	byIdentity map[string]map[string]*Connection
	listeners  []Listener

	log *slog.Logger
}

func New(log *slog.Logger) *Registry {
	if log == nil {
		log = slog.Default()
	}
	return &Registry{
		byConn:     make(map[string]*Connection),
		byIdentity: make(map[string]map[string]*Connection),
		log:        log,
	}
}

// Subscribe adds a presence listener. Subscribe before serving traffic;
// the listener slice is not guarded after that.
func (r *Registry) Subscribe(l Listener) {
	r.listeners = append(r.listeners, l)
}

// Register adds a connection. It fails only when the same connection id is
// already present; a second device for the same identity is fine.
func (r *Registry) Register(conn *Connection) error {
	r.mu.Lock()
	if _, exists := r.byConn[conn.ID]; exists {
		r.mu.Unlock()
		return ErrDuplicateConnection
	}
	r.byConn[conn.ID] = conn
	set := r.byIdentity[conn.IdentityID]
	if set == nil {
		set = make(map[string]*Connection)
		r.byIdentity[conn.IdentityID] = set
	}
	set[conn.ID] = conn
	first := len(set) == 1
	r.mu.Unlock()

	r.log.Debug("connection registered",
		"conn_id", conn.ID, "identity_id", conn.IdentityID, "role", string(conn.Role))

	if first {
		for _, l := range r.listeners {
			l.IdentityOnline(conn.IdentityID, conn.Role)
		}
	}
	return nil
}

// Unregister removes a connection by id. Removing the identity's last
// connection emits the offline transition. Unknown ids are a no-op.
func (r *Registry) Unregister(connID string) {
	r.mu.Lock()
	conn, ok := r.byConn[connID]
	if !ok {
		r.mu.Unlock()
		return
	}
	delete(r.byConn, connID)
	set := r.byIdentity[conn.IdentityID]
	delete(set, connID)
	last := len(set) == 0
	if last {
		delete(r.byIdentity, conn.IdentityID)
	}
	r.mu.Unlock()

	r.log.Debug("connection unregistered",
		"conn_id", connID, "identity_id", conn.IdentityID, "last", last)

	if last {
		for _, l := range r.listeners {
			l.IdentityOffline(conn.IdentityID, conn.Role)
		}
	}
}

// Lookup returns the identity's active connections; empty when offline.
func (r *Registry) Lookup(identityID string) []*Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()
	set := r.byIdentity[identityID]
	if len(set) == 0 {
		return nil
	}
	out := make([]*Connection, 0, len(set))
	for _, c := range set {
		out = append(out, c)
	}
	return out
}

// ByRole returns every active connection owned by identities with the role.
func (r *Registry) ByRole(role identity.Role) []*Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*Connection
	for _, c := range r.byConn {
		if c.Role == role {
			out = append(out, c)
		}
	}
	return out
}

func (r *Registry) IsOnline(identityID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byIdentity[identityID]) > 0
}

func (r *Registry) ConnectionCount(identityID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byIdentity[identityID])
}

// Shutdown closes every sink and empties the registry. No offline events
// are emitted; the process is going away.
func (r *Registry) Shutdown() {
	r.mu.Lock()
	conns := make([]*Connection, 0, len(r.byConn))
	for _, c := range r.byConn {
		conns = append(conns, c)
	}
	r.byConn = make(map[string]*Connection)
	r.byIdentity = make(map[string]map[string]*Connection)
	r.mu.Unlock()

	for _, c := range conns {
		if err := c.sink.Close(); err != nil {
			r.log.Debug("sink close failed", "conn_id", c.ID, "err", err)
		}
	}
}

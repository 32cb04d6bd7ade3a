package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"signaling-platform/internal/identity"
	"signaling-platform/internal/registry"
	"signaling-platform/internal/signal"
)

// ConnectionSource answers "which connections can reach this identity right
// now". It must be consulted synchronously at decision points; a stale
// answer would push a notification to an already-connected recipient.
type ConnectionSource interface {
	Lookup(identityID string) []*registry.Connection
}

// Notifier is the out-of-band push handoff used when the recipient has no
// live connection. Failures are logged by the manager, never surfaced to
// the caller: a push failure does not fail call initiation.
type Notifier interface {
	NotifyIncomingCall(ctx context.Context, recipientID, callerName, callID, conversationID string) error
}

// Archive receives terminal session snapshots, best-effort.
type Archive interface {
	Archive(ctx context.Context, snap Snapshot) error
}

// Config controls manager timing. Zero values fall back to defaults.
type Config struct {
	// RingingTimeout bounds how long a session may stay in Ringing.
	RingingTimeout time.Duration
	// OfflineGrace bounds how long an Initiated session waits for a
	// push-triggered reconnect before giving up.
	OfflineGrace time.Duration
}

const (
	defaultRingingTimeout = 45 * time.Second
	defaultOfflineGrace   = 30 * time.Second
)

// Manager owns every live call session and is the only component that
// mutates one. Lock ordering: mu guards the maps and is never held while a
// session lock is taken; terminal cleanup re-acquires mu after the session
// lock is released.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*Session
	byPair   map[pairKey]string

	conns     ConnectionSource
	directory identity.Directory
	notifier  Notifier
	archive   Archive

	log   *slog.Logger
	clock func() time.Time

	ringingTimeout time.Duration
	offlineGrace   time.Duration
}

func NewManager(conns ConnectionSource, dir identity.Directory, notifier Notifier, archive Archive, log *slog.Logger, cfg Config) *Manager {
	if log == nil {
		log = slog.Default()
	}
	if cfg.RingingTimeout <= 0 {
		cfg.RingingTimeout = defaultRingingTimeout
	}
	if cfg.OfflineGrace <= 0 {
		cfg.OfflineGrace = defaultOfflineGrace
	}
	return &Manager{
		sessions:       make(map[string]*Session),
		byPair:         make(map[pairKey]string),
		conns:          conns,
		directory:      dir,
		notifier:       notifier,
		archive:        archive,
		log:            log,
		clock:          time.Now,
		ringingTimeout: cfg.RingingTimeout,
		offlineGrace:   cfg.OfflineGrace,
	}
}

// InitiateRequest carries the initiate_call payload.
type InitiateRequest struct {
	CallID         string
	CallerID       string
	RecipientID    string
	ConversationID string
}

// Initiate creates a session and attempts delivery. Every failure is
// surfaced to the initiating connection as call_failed; the caller never
// waits in silence.
func (m *Manager) Initiate(ctx context.Context, conn *registry.Connection, req InitiateRequest) {
	if req.CallID == "" || req.RecipientID == "" {
		m.failTo(conn, req.CallID, signal.ReasonBadRequest)
		return
	}
	if req.CallerID != "" && req.CallerID != conn.IdentityID {
		m.failTo(conn, req.CallID, signal.ReasonNotParticipant)
		return
	}
	if req.RecipientID == conn.IdentityID {
		m.failTo(conn, req.CallID, signal.ReasonBadRequest)
		return
	}
	if !conn.Role.CallCapable() {
		m.failTo(conn, req.CallID, signal.ReasonNotCallable)
		return
	}

	caller, ok, err := m.directory.Resolve(ctx, conn.IdentityID)
	if err != nil || !ok {
		if err != nil {
			m.log.Error("caller resolve failed", "call_id", req.CallID, "err", err)
		}
		m.failTo(conn, req.CallID, signal.ReasonInternal)
		return
	}

	recipient, ok, err := m.directory.Resolve(ctx, req.RecipientID)
	if err != nil {
		m.log.Error("recipient resolve failed",
			"call_id", req.CallID, "recipient_id", req.RecipientID, "err", err)
		m.failTo(conn, req.CallID, signal.ReasonInternal)
		return
	}
	if !ok {
		m.failTo(conn, req.CallID, signal.ReasonRecipientUnknown)
		m.archiveFailedAttempt(conn.IdentityID, req)
		return
	}
	if !recipient.Role.CallCapable() {
		m.failTo(conn, req.CallID, signal.ReasonNotCallable)
		return
	}

	now := m.clock().UTC()
	s := &Session{
		ID:             req.CallID,
		CallerID:       conn.IdentityID,
		CallerName:     caller.DisplayName,
		RecipientID:    req.RecipientID,
		ConversationID: req.ConversationID,
		state:          StateInitiated,
		createdAt:      now,
	}
	pk := pairKeyFor(s.CallerID, s.RecipientID)

	m.mu.Lock()
	if _, exists := m.sessions[s.ID]; exists {
		m.mu.Unlock()
		m.failTo(conn, req.CallID, signal.ReasonCallInProgress)
		return
	}
	if _, exists := m.byPair[pk]; exists {
		m.mu.Unlock()
		m.failTo(conn, req.CallID, signal.ReasonCallInProgress)
		return
	}
	m.sessions[s.ID] = s
	m.byPair[pk] = s.ID
	// Ack while still holding mu. A registry listener cannot observe the
	// session until mu is released, so the ack always precedes any event a
	// racing promotion or cancellation produces.
	m.deliverToIdentity(s.CallerID, signal.CallInitiated(s.ID))
	m.mu.Unlock()

	s.mu.Lock()
	if s.state != StateInitiated {
		// A registry listener raced us here (caller vanished or the
		// recipient reconnected); that path already handled delivery.
		s.mu.Unlock()
		return
	}
	// The registry is the source of truth for reachability; check it here,
	// not against any cached presence view.
	recipients := m.conns.Lookup(s.RecipientID)
	if len(recipients) > 0 {
		s.state = StateRinging
		incoming := signal.IncomingCall(s.ID, s.CallerID, s.CallerName, s.ConversationID)
		for _, rc := range recipients {
			m.deliver(rc, incoming)
		}
		s.ringTimer = time.AfterFunc(m.ringingTimeout, func() { m.ringingTimedOut(s.ID) })
		s.mu.Unlock()
		m.log.Info("call ringing",
			"call_id", s.ID, "caller_id", s.CallerID, "recipient_id", s.RecipientID)
		return
	}

	// Recipient offline: hand off to push and wait for a reconnect within
	// the grace window.
	s.graceTimer = time.AfterFunc(m.offlineGrace, func() { m.graceLapsed(s.ID) })
	s.mu.Unlock()

	m.log.Info("call pending push",
		"call_id", s.ID, "caller_id", s.CallerID, "recipient_id", s.RecipientID)
	go m.notifyPush(s)
}

// Accept moves a ringing session to Accepted. Only the recipient may accept.
func (m *Manager) Accept(ctx context.Context, conn *registry.Connection, callID string) {
	_ = ctx
	s := m.find(callID)
	if s == nil {
		m.failTo(conn, callID, signal.ReasonUnknownCall)
		return
	}

	s.mu.Lock()
	if s.state != StateRinging {
		s.mu.Unlock()
		m.failTo(conn, callID, signal.ReasonUnknownCall)
		return
	}
	if conn.IdentityID != s.RecipientID {
		s.mu.Unlock()
		m.failTo(conn, callID, signal.ReasonNotParticipant)
		return
	}
	s.state = StateAccepted
	s.stopTimersLocked()
	evt := signal.CallAccepted(callID)
	m.deliverToIdentity(s.CallerID, evt)
	m.deliverToIdentity(s.RecipientID, evt)
	s.mu.Unlock()

	m.log.Info("call accepted", "call_id", callID)
}

// Reject moves a ringing session to Rejected. Only the recipient may reject.
func (m *Manager) Reject(ctx context.Context, conn *registry.Connection, callID string) {
	_ = ctx
	s := m.find(callID)
	if s == nil {
		m.failTo(conn, callID, signal.ReasonUnknownCall)
		return
	}

	s.mu.Lock()
	if s.state != StateRinging {
		s.mu.Unlock()
		m.failTo(conn, callID, signal.ReasonUnknownCall)
		return
	}
	if conn.IdentityID != s.RecipientID {
		s.mu.Unlock()
		m.failTo(conn, callID, signal.ReasonNotParticipant)
		return
	}
	s.state = StateRejected
	s.stopTimersLocked()
	evt := signal.CallRejected(callID)
	m.deliverToIdentity(s.CallerID, evt)
	m.deliverToIdentity(s.RecipientID, evt)
	snap := m.terminateLocked(s)
	s.mu.Unlock()

	m.finish(snap)
	m.log.Info("call rejected", "call_id", callID)
}

// End terminates a ringing or accepted session. Either party may end.
func (m *Manager) End(ctx context.Context, conn *registry.Connection, callID string) {
	_ = ctx
	s := m.find(callID)
	if s == nil {
		m.failTo(conn, callID, signal.ReasonUnknownCall)
		return
	}

	s.mu.Lock()
	if s.state != StateRinging && s.state != StateAccepted {
		s.mu.Unlock()
		m.failTo(conn, callID, signal.ReasonUnknownCall)
		return
	}
	if conn.IdentityID != s.CallerID && conn.IdentityID != s.RecipientID {
		s.mu.Unlock()
		m.failTo(conn, callID, signal.ReasonNotParticipant)
		return
	}
	s.state = StateEnded
	s.stopTimersLocked()
	evt := signal.CallEnded(callID)
	m.deliverToIdentity(s.CallerID, evt)
	m.deliverToIdentity(s.RecipientID, evt)
	snap := m.terminateLocked(s)
	s.mu.Unlock()

	m.finish(snap)
	m.log.Info("call ended", "call_id", callID, "by", conn.IdentityID)
}

// IdentityOnline implements registry.Listener. A reconnect inside the grace
// window promotes pending sessions targeting this identity to Ringing.
func (m *Manager) IdentityOnline(identityID string, role identity.Role) {
	for _, s := range m.sessionsFor(identityID) {
		s.mu.Lock()
		if s.state != StateInitiated || s.RecipientID != identityID {
			s.mu.Unlock()
			continue
		}
		recipients := m.conns.Lookup(identityID)
		if len(recipients) == 0 {
			s.mu.Unlock()
			continue
		}
		s.state = StateRinging
		if s.graceTimer != nil {
			s.graceTimer.Stop()
			s.graceTimer = nil
		}
		incoming := signal.IncomingCall(s.ID, s.CallerID, s.CallerName, s.ConversationID)
		for _, rc := range recipients {
			m.deliver(rc, incoming)
		}
		s.ringTimer = time.AfterFunc(m.ringingTimeout, func() { m.ringingTimedOut(s.ID) })
		s.mu.Unlock()

		m.log.Info("call ringing after reconnect", "call_id", s.ID, "recipient_id", identityID)
	}
}

// IdentityOffline implements registry.Listener. Losing the last connection
// of a party cancels every non-terminal session it is part of; the other
// party is told the call was withdrawn.
func (m *Manager) IdentityOffline(identityID string, role identity.Role) {
	for _, s := range m.sessionsFor(identityID) {
		s.mu.Lock()
		if s.state.Terminal() {
			s.mu.Unlock()
			continue
		}
		other := s.RecipientID
		if identityID == s.RecipientID {
			other = s.CallerID
		}
		if s.state == StateInitiated && identityID == s.CallerID {
			// Never delivered; nothing to withdraw on the recipient side.
			s.state = StateFailed
		} else {
			s.state = StateEnded
			m.deliverToIdentity(other, signal.CallEnded(s.ID))
		}
		s.stopTimersLocked()
		snap := m.terminateLocked(s)
		s.mu.Unlock()

		m.finish(snap)
		m.log.Info("call cancelled by disconnect",
			"call_id", snap.CallID, "identity_id", identityID, "state", string(snap.State))
	}
}

// ActiveCalls snapshots every non-terminal session, for the admin surface.
func (m *Manager) ActiveCalls() []Snapshot {
	m.mu.Lock()
	all := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		all = append(all, s)
	}
	m.mu.Unlock()

	out := make([]Snapshot, 0, len(all))
	for _, s := range all {
		s.mu.Lock()
		snap := s.snapshotLocked()
		s.mu.Unlock()
		if !snap.State.Terminal() {
			out = append(out, snap)
		}
	}
	return out
}

/* ===================== timers ===================== */

func (m *Manager) ringingTimedOut(callID string) {
	s := m.find(callID)
	if s == nil {
		return
	}
	s.mu.Lock()
	if s.state != StateRinging {
		// Lost the race against a real answer; the terminal transition
		// already happened.
		s.mu.Unlock()
		return
	}
	s.state = StateTimedOut
	s.stopTimersLocked()
	m.deliverToIdentity(s.CallerID, signal.CallFailed(callID, signal.ReasonNoAnswer))
	m.deliverToIdentity(s.RecipientID, signal.CallEnded(callID))
	snap := m.terminateLocked(s)
	s.mu.Unlock()

	m.finish(snap)
	m.log.Info("call timed out ringing", "call_id", callID)
}

func (m *Manager) graceLapsed(callID string) {
	s := m.find(callID)
	if s == nil {
		return
	}
	s.mu.Lock()
	if s.state != StateInitiated {
		s.mu.Unlock()
		return
	}
	s.state = StateTimedOut
	s.stopTimersLocked()
	m.deliverToIdentity(s.CallerID, signal.CallFailed(callID, signal.ReasonNoAnswer))
	snap := m.terminateLocked(s)
	s.mu.Unlock()

	m.finish(snap)
	m.log.Info("call timed out waiting for reconnect", "call_id", callID)
}

/* ===================== internals ===================== */

func (m *Manager) find(callID string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessions[callID]
}

func (m *Manager) sessionsFor(identityID string) []*Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Session
	for _, s := range m.sessions {
		if s.CallerID == identityID || s.RecipientID == identityID {
			out = append(out, s)
		}
	}
	return out
}

// terminateLocked stamps the terminal time and snapshots. Caller holds s.mu
// and must pass the snapshot to finish() after releasing it.
func (m *Manager) terminateLocked(s *Session) Snapshot {
	now := m.clock().UTC()
	s.terminatedAt = &now
	return s.snapshotLocked()
}

func (s *Session) stopTimersLocked() {
	if s.ringTimer != nil {
		s.ringTimer.Stop()
		s.ringTimer = nil
	}
	if s.graceTimer != nil {
		s.graceTimer.Stop()
		s.graceTimer = nil
	}
}

// finish removes a terminal session from the indexes and archives it.
func (m *Manager) finish(snap Snapshot) {
	m.mu.Lock()
	delete(m.sessions, snap.CallID)
	pk := pairKeyFor(snap.CallerID, snap.RecipientID)
	if m.byPair[pk] == snap.CallID {
		delete(m.byPair, pk)
	}
	m.mu.Unlock()

	m.archiveSnapshot(snap)
}

func (m *Manager) archiveSnapshot(snap Snapshot) {
	if m.archive == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := m.archive.Archive(ctx, snap); err != nil {
			m.log.Error("call archive failed", "call_id", snap.CallID, "err", err)
		}
	}()
}

// archiveFailedAttempt records an initiation that never became a tracked
// session (unknown recipient), so ops can still see the attempt.
func (m *Manager) archiveFailedAttempt(callerID string, req InitiateRequest) {
	now := m.clock().UTC()
	m.archiveSnapshot(Snapshot{
		CallID:         req.CallID,
		CallerID:       callerID,
		RecipientID:    req.RecipientID,
		ConversationID: req.ConversationID,
		State:          StateFailed,
		CreatedAt:      now,
		TerminatedAt:   &now,
	})
}

func (m *Manager) notifyPush(s *Session) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := m.notifier.NotifyIncomingCall(ctx, s.RecipientID, s.CallerName, s.ID, s.ConversationID); err != nil {
		// Push is best-effort: the session stays Initiated and the grace
		// timer decides its fate.
		m.log.Warn("push handoff failed", "call_id", s.ID, "recipient_id", s.RecipientID, "err", err)
	}
}

func (m *Manager) deliverToIdentity(identityID string, evt signal.ServerEvent) {
	for _, c := range m.conns.Lookup(identityID) {
		m.deliver(c, evt)
	}
}

func (m *Manager) deliver(c *registry.Connection, evt signal.ServerEvent) {
	if err := c.Deliver(evt); err != nil {
		m.log.Debug("delivery failed", "conn_id", c.ID, "event", string(evt.Type), "err", err)
	}
}

func (m *Manager) failTo(conn *registry.Connection, callID string, reason signal.Reason) {
	m.deliver(conn, signal.CallFailed(callID, reason))
	m.log.Debug("call request rejected", "call_id", callID, "reason", string(reason))
}

package ws

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"signaling-platform/internal/auth"
	"signaling-platform/internal/config"
	"signaling-platform/internal/identity"
	"signaling-platform/internal/registry"
	"signaling-platform/internal/session"
	"signaling-platform/internal/signal"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

type nopNotifier struct{}

func (nopNotifier) NotifyIncomingCall(ctx context.Context, recipientID, callerName, callID, conversationID string) error {
	return nil
}

type fakeLimiter struct {
	allow    bool
	acquired int
	released int
}

func (l *fakeLimiter) Acquire(ctx context.Context, identityID string) (bool, error) {
	l.acquired++
	return l.allow, nil
}

func (l *fakeLimiter) Release(ctx context.Context, identityID string) error {
	l.released++
	return nil
}

func testAuthManager(t *testing.T) *auth.Manager {
	t.Helper()
	m, err := auth.NewManager(config.AuthConfig{
		JWTSecret:       "secret",
		AccessTokenTTL:  time.Minute,
		RefreshTokenTTL: time.Hour,
	})
	if err != nil {
		t.Fatalf("auth manager: %v", err)
	}
	return m
}

func testHandler(t *testing.T) (*Handler, *identity.MemoryDirectory) {
	t.Helper()
	dir := identity.NewMemoryDirectory()
	dir.Put(identity.Identity{ID: "alice", Role: identity.RoleUser, DisplayName: "Alice"})
	dir.Put(identity.Identity{ID: "bob", Role: identity.RoleUser, DisplayName: "Bob"})

	reg := registry.New(nil)
	mgr := session.NewManager(reg, dir, nopNotifier{}, nil, nil, session.Config{
		RingingTimeout: time.Hour,
		OfflineGrace:   time.Hour,
	})
	reg.Subscribe(mgr)

	return &Handler{
		Auth:      testAuthManager(t),
		Directory: dir,
		Registry:  reg,
		Calls:     mgr,
	}, dir
}

func serveOnce(t *testing.T, h *Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/ws", h.Serve)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	r.ServeHTTP(w, req)
	return w
}

func TestServe_MissingToken(t *testing.T) {
	h, _ := testHandler(t)
	if w := serveOnce(t, h, "/ws"); w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestServe_InvalidToken(t *testing.T) {
	h, _ := testHandler(t)
	if w := serveOnce(t, h, "/ws?token=garbage"); w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestServe_UnknownIdentity(t *testing.T) {
	h, _ := testHandler(t)
	pair, err := h.Auth.IssuePair(time.Now(), "deleted-user", "user")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if w := serveOnce(t, h, "/ws?token="+pair.AccessToken); w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for identity missing from directory, got %d", w.Code)
	}
}

func TestServe_DeviceCapRejected(t *testing.T) {
	h, _ := testHandler(t)
	lim := &fakeLimiter{allow: false}
	h.Caps = lim

	pair, err := h.Auth.IssuePair(time.Now(), "alice", "user")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if w := serveOnce(t, h, "/ws?token="+pair.AccessToken); w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", w.Code)
	}
	if lim.acquired != 1 {
		t.Fatalf("expected one acquire, got %d", lim.acquired)
	}
	// A rejected acquire holds no slot; releasing one anyway would let the
	// cap under-count.
	if lim.released != 0 {
		t.Fatalf("expected no release after rejected acquire, got %d", lim.released)
	}
}

func dialWS(t *testing.T, srv *httptest.Server, token string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?token=" + token
	c, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	return c
}

func readEvent(t *testing.T, c *websocket.Conn) signal.ServerEvent {
	t.Helper()
	_ = c.SetReadDeadline(time.Now().Add(2 * time.Second))
	var evt signal.ServerEvent
	if err := c.ReadJSON(&evt); err != nil {
		t.Fatalf("read: %v", err)
	}
	return evt
}

func TestServe_SignalingRoundTrip(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h, _ := testHandler(t)

	r := gin.New()
	r.GET("/ws", h.Serve)
	srv := httptest.NewServer(r)
	defer srv.Close()

	pair, err := h.Auth.IssuePair(time.Now(), "alice", "user")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	c := dialWS(t, srv, pair.AccessToken)
	defer c.Close()

	// Malformed events answer with a failure frame instead of closing.
	if err := c.WriteJSON(signal.ClientEvent{Type: signal.EventAcceptCall}); err != nil {
		t.Fatalf("write: %v", err)
	}
	evt := readEvent(t, c)
	if evt.Type != signal.EventCallFailed || evt.Reason != signal.ReasonBadRequest {
		t.Fatalf("expected bad-request failure, got %+v", evt)
	}

	// Initiating to an offline recipient still acks the caller.
	if err := c.WriteJSON(signal.ClientEvent{
		Type:        signal.EventInitiateCall,
		CallID:      "call-1",
		RecipientID: "bob",
	}); err != nil {
		t.Fatalf("write: %v", err)
	}
	evt = readEvent(t, c)
	if evt.Type != signal.EventCallInitiated || evt.CallID != "call-1" {
		t.Fatalf("expected call_initiated, got %+v", evt)
	}
}

func TestServe_TwoPartyCall(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h, _ := testHandler(t)

	r := gin.New()
	r.GET("/ws", h.Serve)
	srv := httptest.NewServer(r)
	defer srv.Close()

	alicePair, _ := h.Auth.IssuePair(time.Now(), "alice", "user")
	bobPair, _ := h.Auth.IssuePair(time.Now(), "bob", "user")

	aliceConn := dialWS(t, srv, alicePair.AccessToken)
	defer aliceConn.Close()
	bobConn := dialWS(t, srv, bobPair.AccessToken)
	defer bobConn.Close()

	// Registration is asynchronous relative to the dial returning; wait
	// until the registry sees both parties.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if h.Registry.IsOnline("alice") && h.Registry.IsOnline("bob") {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	if err := aliceConn.WriteJSON(signal.ClientEvent{
		Type:        signal.EventInitiateCall,
		CallID:      "call-1",
		RecipientID: "bob",
	}); err != nil {
		t.Fatalf("write: %v", err)
	}

	evt := readEvent(t, bobConn)
	if evt.Type != signal.EventIncomingCall || evt.CallerID != "alice" || evt.CallerName != "Alice" {
		t.Fatalf("expected incoming_call from alice, got %+v", evt)
	}
	if evt = readEvent(t, aliceConn); evt.Type != signal.EventCallInitiated {
		t.Fatalf("expected call_initiated, got %+v", evt)
	}

	if err := bobConn.WriteJSON(signal.ClientEvent{Type: signal.EventAcceptCall, CallID: "call-1"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if evt = readEvent(t, aliceConn); evt.Type != signal.EventCallAccepted {
		t.Fatalf("expected call_accepted for caller, got %+v", evt)
	}
	if evt = readEvent(t, bobConn); evt.Type != signal.EventCallAccepted {
		t.Fatalf("expected call_accepted for recipient, got %+v", evt)
	}
}

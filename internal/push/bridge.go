package push

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// Bridge hands an incoming-call alert to an external push-delivery
// collaborator when the recipient has no live connection. Fire-and-forget:
// callers log failures and move on.
type Bridge interface {
	NotifyIncomingCall(ctx context.Context, recipientID, callerName, callID, conversationID string) error
}

// TokenSource resolves the device-registration tokens for an identity.
// Token storage and refresh belong to the mobile backend, not here.
type TokenSource interface {
	Tokens(ctx context.Context, identityID string) ([]string, error)
}

var ErrNoDeviceTokens = errors.New("push: identity has no device tokens")

// GatewayConfig configures the HTTP push gateway adapter.
type GatewayConfig struct {
	URL     string
	APIKey  string
	Timeout time.Duration
}

// GatewayBridge posts incoming-call alerts to an HTTP push gateway.
// The gateway owns platform specifics (APNs/FCM); this adapter only ships
// a provider-agnostic payload.
type GatewayBridge struct {
	cfg    GatewayConfig
	tokens TokenSource
	client *http.Client
	log    *slog.Logger
}

func NewGatewayBridge(cfg GatewayConfig, tokens TokenSource, log *slog.Logger) (*GatewayBridge, error) {
	if cfg.URL == "" {
		return nil, errors.New("push: gateway URL is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if log == nil {
		log = slog.Default()
	}
	return &GatewayBridge{
		cfg:    cfg,
		tokens: tokens,
		client: &http.Client{Timeout: cfg.Timeout},
		log:    log,
	}, nil
}

type gatewayPayload struct {
	Tokens []string          `json:"tokens"`
	Title  string            `json:"title"`
	Body   string            `json:"body"`
	Data   map[string]string `json:"data"`
}

func (b *GatewayBridge) NotifyIncomingCall(ctx context.Context, recipientID, callerName, callID, conversationID string) error {
	tokens, err := b.tokens.Tokens(ctx, recipientID)
	if err != nil {
		return fmt.Errorf("push: token lookup failed: %w", err)
	}
	if len(tokens) == 0 {
		return ErrNoDeviceTokens
	}

	title := "Incoming call"
	if callerName != "" {
		title = callerName + " is calling"
	}
	payload := gatewayPayload{
		Tokens: tokens,
		Title:  title,
		Body:   "Tap to answer",
		Data: map[string]string{
			"type":            "incoming_call",
			"call_id":         callID,
			"conversation_id": conversationID,
			"caller_name":     callerName,
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("push: encode payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("push: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if b.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+b.cfg.APIKey)
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return fmt.Errorf("push: gateway request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("push: gateway returned status %d", resp.StatusCode)
	}

	b.log.Debug("push handoff delivered", "recipient_id", recipientID, "call_id", callID, "tokens", len(tokens))
	return nil
}

// LogBridge is a Bridge for environments without a push gateway; it only
// logs the handoff.
type LogBridge struct {
	Log *slog.Logger
}

func (b LogBridge) NotifyIncomingCall(ctx context.Context, recipientID, callerName, callID, conversationID string) error {
	_ = ctx
	l := b.Log
	if l == nil {
		l = slog.Default()
	}
	l.Info("push handoff (log only)",
		"recipient_id", recipientID, "caller_name", callerName,
		"call_id", callID, "conversation_id", conversationID)
	return nil
}

package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"signaling-platform/internal/registry"
	"signaling-platform/internal/session"
	"signaling-platform/internal/signal"

	"github.com/gorilla/websocket"
)

// Dispatcher routes validated client events into the call manager.
type Dispatcher interface {
	Initiate(ctx context.Context, conn *registry.Connection, req session.InitiateRequest)
	Accept(ctx context.Context, conn *registry.Connection, callID string)
	Reject(ctx context.Context, conn *registry.Connection, callID string)
	End(ctx context.Context, conn *registry.Connection, callID string)
}

var errSendBufferFull = errors.New("ws: send buffer full")

// client is one connected device. It implements registry.Sink: Deliver
// enqueues onto a buffered channel consumed by the write pump, so nothing
// upstream ever blocks on a slow socket.
type client struct {
	wire *wire
	send chan signal.ServerEvent

	closed    chan struct{}
	closeOnce sync.Once

	log *slog.Logger
}

func newClient(w *wire, log *slog.Logger) *client {
	return &client{
		wire:   w,
		send:   make(chan signal.ServerEvent, 64),
		closed: make(chan struct{}),
		log:    log,
	}
}

// Deliver implements registry.Sink. A full buffer drops the event: a client
// that far behind is about to fail its ping deadline anyway.
func (c *client) Deliver(evt signal.ServerEvent) error {
	select {
	case <-c.closed:
		return errors.New("ws: connection closed")
	default:
	}
	select {
	case c.send <- evt:
		return nil
	default:
		return errSendBufferFull
	}
}

// Close implements registry.Sink.
func (c *client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closed)
		err = c.wire.close()
	})
	return err
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case evt := <-c.send:
			if err := c.wire.writeJSON(evt); err != nil {
				c.log.Debug("write failed", "err", err)
				_ = c.Close()
				return
			}
		case <-ticker.C:
			if err := c.wire.ping(); err != nil {
				_ = c.Close()
				return
			}
		case <-c.closed:
			return
		}
	}
}

// readPump blocks until the connection drops, feeding decoded events into
// the dispatcher. Malformed frames earn a call_failed, never a disconnect.
func (c *client) readPump(ctx context.Context, conn *registry.Connection, calls Dispatcher) {
	for {
		data, err := c.wire.readMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Debug("read failed", "conn_id", conn.ID, "err", err)
			}
			return
		}

		var evt signal.ClientEvent
		if err := json.Unmarshal(data, &evt); err != nil {
			_ = c.Deliver(signal.CallFailed("", signal.ReasonBadRequest))
			continue
		}
		if err := evt.Validate(); err != nil {
			_ = c.Deliver(signal.CallFailed(evt.CallID, signal.ReasonBadRequest))
			continue
		}

		switch evt.Type {
		case signal.EventInitiateCall:
			calls.Initiate(ctx, conn, session.InitiateRequest{
				CallID:         evt.CallID,
				CallerID:       evt.CallerID,
				RecipientID:    evt.RecipientID,
				ConversationID: evt.ConversationID,
			})
		case signal.EventAcceptCall:
			calls.Accept(ctx, conn, evt.CallID)
		case signal.EventRejectCall:
			calls.Reject(ctx, conn, evt.CallID)
		case signal.EventEndCall:
			calls.End(ctx, conn, evt.CallID)
		}
	}
}

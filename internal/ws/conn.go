package ws

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	maxMessageSize = 4 << 10 // client events are small
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The service sits behind an edge proxy that terminates TLS and pins
	// origins; the bearer token is the actual admission check here.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wire wraps a gorilla connection with a write lock so the write pump and
// control frames never interleave.
type wire struct {
	ws *websocket.Conn
	mu sync.Mutex
}

func newWire(ws *websocket.Conn) *wire {
	ws.SetReadLimit(maxMessageSize)
	_ = ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})
	return &wire{ws: ws}
}

func (w *wire) writeJSON(v any) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	_ = w.ws.SetWriteDeadline(time.Now().Add(writeWait))
	return w.ws.WriteJSON(v)
}

func (w *wire) ping() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
}

func (w *wire) close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	_ = w.ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(writeWait))
	return w.ws.Close()
}

func (w *wire) readMessage() ([]byte, error) {
	_, data, err := w.ws.ReadMessage()
	return data, err
}

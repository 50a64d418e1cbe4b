package gateway

import (
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// writeWait is the per-message write deadline.
	writeWait = 10 * time.Second
	// maxFrameSize caps inbound frame size.
	maxFrameSize = 64 * 1024
	// sendBufferSize is the per-connection outbound queue depth.
	sendBufferSize = 64
)

// ErrConnClosed is returned by Send after the connection has been
// closed.
var ErrConnClosed = errors.New("connection closed")

// ErrSendBufferFull is returned when the outbound queue is full. The
// frame is dropped; a slow reader must not stall broadcasts.
var ErrSendBufferFull = errors.New("send buffer full")

// wsConn adapts a gorilla websocket connection to the player.Conn
// capability: sends go through a buffered channel drained by a write
// pump goroutine, so Send never blocks a broadcast.
type wsConn struct {
	ws       *websocket.Conn
	send     chan []byte
	pumpDone chan struct{}

	mu     sync.Mutex
	closed bool
}

func newWSConn(ws *websocket.Conn) *wsConn {
	return &wsConn{
		ws:       ws,
		send:     make(chan []byte, sendBufferSize),
		pumpDone: make(chan struct{}),
	}
}

// Send enqueues a text frame for delivery without blocking.
func (c *wsConn) Send(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrConnClosed
	}
	select {
	case c.send <- data:
		return nil
	default:
		return ErrSendBufferFull
	}
}

// Close marks the connection closed and tears the socket down
// asynchronously. It returns immediately and never waits on socket
// I/O: callers hold session and directory locks, and a peer being
// reaped is exactly the peer whose writes hang until their deadline.
// Idempotent.
func (c *wsConn) Close(code int, reason string) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	c.mu.Unlock()

	go func() {
		// Let the pump flush what was already enqueued (an error frame
		// or a kicked notice must reach the client before the close
		// frame).
		select {
		case <-c.pumpDone:
		case <-time.After(writeWait):
		}

		deadline := time.Now().Add(writeWait)
		_ = c.ws.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), deadline)
		_ = c.ws.Close()
	}()
}

// Open reports whether the connection still accepts sends.
func (c *wsConn) Open() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.closed
}

// writePump drains the send queue onto the socket. It exits when the
// queue is closed or a write fails.
func (c *wsConn) writePump() {
	defer close(c.pumpDone)
	for data := range c.send {
		_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
			// Unstick the read loop so disconnect cleanup runs.
			_ = c.ws.Close()
			return
		}
	}
}

package gateway

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"chat-relay/domain"

	"github.com/gorilla/websocket"
)

const (
	writeWait = 10 * time.Second
	// Attachments arrive inline as base64 data URLs, so frames can be large.
	maxMessageSize = 16 << 20
)

// Conn is one live transport session. It is owned by the registry for its
// lifetime: created on upgrade, destroyed on close or forced termination.
// The identity, once attached during the handshake, never changes.
type Conn struct {
	id       string
	ws       *websocket.Conn
	send     chan []byte
	ping     chan struct{}
	done     chan struct{}
	hb       *heartbeat
	identity atomic.Pointer[domain.Identity]

	closeOnce sync.Once
	log       *slog.Logger
}

func newConn(id string, ws *websocket.Conn, bufferSize int, log *slog.Logger) *Conn {
	return &Conn{
		id:   id,
		ws:   ws,
		send: make(chan []byte, bufferSize),
		ping: make(chan struct{}, 1),
		done: make(chan struct{}),
		log:  log,
	}
}

func (c *Conn) ID() string { return c.id }

// Identity returns the principal attached at handshake time, or nil for an
// anonymous connection.
func (c *Conn) Identity() *domain.Identity {
	return c.identity.Load()
}

func (c *Conn) setIdentity(identity *domain.Identity) {
	c.identity.Store(identity)
}

// Send queues an outbound frame. Delivery is fire-and-forget: when the
// buffer is full the frame is dropped rather than blocking the caller.
func (c *Conn) Send(payload []byte) {
	select {
	case c.send <- payload:
	default:
		c.log.Warn("Send buffer full, frame dropped", "conn", c.id)
	}
}

// Ping asks the write pump to emit a ping control frame. A pending ping
// that was not yet written is not duplicated.
func (c *Conn) Ping() {
	select {
	case c.ping <- struct{}{}:
	default:
	}
}

// Close tears down the transport. Idempotent; safe from any goroutine.
func (c *Conn) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		if c.ws != nil {
			_ = c.ws.Close()
		}
	})
}

// writePump is the single writer on the websocket. It drains queued frames
// and ping requests until the connection is closed.
func (c *Conn) writePump() {
	defer c.Close()

	for {
		select {
		case payload := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-c.ping:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}

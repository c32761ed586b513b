// Package gateway is the realtime core of the chat backend: it tracks live
// websocket connections, attaches identities at handshake time, detects dead
// peers through a per-connection heartbeat cycle, maintains and broadcasts
// the online-user set, and routes inbound messages to persistence and to the
// recipient's connections.
package gateway

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"chat-relay/domain"
	"chat-relay/observability"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// TokenVerifier is the identity service's shared verification contract.
type TokenVerifier interface {
	Verify(token string) (*domain.Identity, error)
}

// Config carries the gateway timeouts and buffer sizes.
type Config struct {
	HeartbeatPeriod time.Duration
	DeathTimeout    time.Duration
	SendBufferSize  int
}

type Gateway struct {
	log      *slog.Logger
	registry *Registry
	router   *Router
	verifier TokenVerifier
	upgrader websocket.Upgrader
	cfg      Config
}

func New(log *slog.Logger, registry *Registry, router *Router, verifier TokenVerifier, cfg Config) *Gateway {
	return &Gateway{
		log:      log,
		registry: registry,
		router:   router,
		verifier: verifier,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Origin checks happen at the CORS layer; the cookie token is
			// what actually gates identity.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		cfg: cfg,
	}
}

// Registry exposes the connection registry for the stats endpoint.
func (g *Gateway) Registry() *Registry {
	return g.registry
}

// HandleUpgrade upgrades the HTTP request to a websocket, runs the auth
// handshake and admits the connection. It blocks on the read loop until the
// connection dies or closes.
func (g *Gateway) HandleUpgrade(w http.ResponseWriter, r *http.Request) {
	identity := g.handshake(r)

	ws, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.log.Error("Websocket upgrade failed", "error", err)
		return
	}

	c := newConn(uuid.NewString(), ws, g.cfg.SendBufferSize, g.log)
	g.admit(c, identity)
	g.readLoop(c)
}

// admit registers the connection, attaches its identity when the handshake
// produced one, starts the write pump and the heartbeat cycle, and pushes a
// fresh presence snapshot to everyone.
func (g *Gateway) admit(c *Conn, identity *domain.Identity) {
	g.registry.Add(c)
	g.registry.SetIdentity(c, identity)

	observability.ConnectionsTotal.Inc()
	observability.ConnectionsActive.Inc()

	c.hb = newHeartbeat(c, g.cfg.HeartbeatPeriod, g.cfg.DeathTimeout, func() { g.reap(c) })

	go c.writePump()
	c.hb.start(context.Background())

	if identity != nil {
		g.log.Info("Connection admitted", "conn", c.ID(), "user", identity.UserID)
	} else {
		g.log.Info("Anonymous connection admitted", "conn", c.ID())
	}
	g.BroadcastPresence()
}

// readLoop processes inbound frames in transport-delivery order until the
// transport errors out, then releases the connection.
func (g *Gateway) readLoop(c *Conn) {
	defer g.drop(c)

	c.ws.SetReadLimit(maxMessageSize)
	c.ws.SetPongHandler(func(string) error {
		c.hb.pong()
		return nil
	})

	for {
		_, payload, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
				websocket.CloseAbnormalClosure) {
				g.log.Warn("Read error", "conn", c.ID(), "error", err)
			}
			return
		}
		g.router.Handle(c, payload)
	}
}

// drop is the single exit path for a connection, graceful or not: stop the
// heartbeat cycle and its death timer, withdraw from the registry, close
// the transport, and recompute presence. Safe to call more than once; the
// side effects fire only for the call that actually removed the connection.
func (g *Gateway) drop(c *Conn) {
	c.hb.stop()
	removed := g.registry.Remove(c)
	c.Close()

	if removed {
		observability.ConnectionsActive.Dec()
		g.log.Info("Connection closed", "conn", c.ID())
		g.BroadcastPresence()
	}
}

// reap handles a death-timer expiry: the peer never answered its ping, so
// the connection is forcibly terminated. Fatal to this one connection only.
func (g *Gateway) reap(c *Conn) {
	observability.LivenessReaps.Inc()
	g.log.Warn("Liveness timeout, terminating connection", "conn", c.ID())
	g.drop(c)
}

// Shutdown closes every registered connection.
func (g *Gateway) Shutdown() {
	for _, c := range g.registry.AllConnections() {
		g.drop(c)
	}
}

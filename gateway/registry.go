package gateway

import (
	"sync"

	"chat-relay/domain"
)

type connSet map[*Conn]struct{}

// Registry is the authoritative set of live connections and the only
// structure mutated by multiple concurrent flows (handshake completion,
// heartbeat death, graceful close, new connections). Mutations serialize on
// the write lock; broadcasts iterate over snapshot slices so a connection
// added or removed mid-broadcast never invalidates the iteration.
type Registry struct {
	mu     sync.RWMutex
	conns  connSet
	byUser map[string]connSet // identity -> its connections
}

func NewRegistry() *Registry {
	return &Registry{
		conns:  make(connSet),
		byUser: make(map[string]connSet),
	}
}

// Add admits a connection. Registering the same handle twice is a no-op.
func (r *Registry) Add(c *Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conns[c] = struct{}{}
}

// Remove withdraws a connection and its identity-index entry. It reports
// whether the connection was still registered, so callers can make the
// removal side effects (presence recompute, gauges) fire exactly once.
func (r *Registry) Remove(c *Conn) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.conns[c]; !ok {
		return false
	}
	delete(r.conns, c)

	if identity := c.Identity(); identity != nil {
		if set, ok := r.byUser[identity.UserID]; ok {
			delete(set, c)
			if len(set) == 0 {
				delete(r.byUser, identity.UserID)
			}
		}
	}
	return true
}

// SetIdentity attaches an identity to a registered connection and indexes
// it for fan-out. Called at most once per connection; later calls are
// ignored, the first identity wins.
func (r *Registry) SetIdentity(c *Conn, identity *domain.Identity) {
	if identity == nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.conns[c]; !ok {
		return
	}
	if c.Identity() != nil {
		return
	}
	c.setIdentity(identity)

	set, ok := r.byUser[identity.UserID]
	if !ok {
		set = make(connSet)
		r.byUser[identity.UserID] = set
	}
	set[c] = struct{}{}
}

// AllConnections returns a snapshot of every registered connection.
func (r *Registry) AllConnections() []*Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conns := make([]*Conn, 0, len(r.conns))
	for c := range r.conns {
		conns = append(conns, c)
	}
	return conns
}

// ConnectionsForIdentity returns a snapshot of every connection currently
// attached to the given identity. Identity, not connection, is the
// addressable unit: one user may hold several live connections.
func (r *Registry) ConnectionsForIdentity(userID string) []*Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()

	set := r.byUser[userID]
	conns := make([]*Conn, 0, len(set))
	for c := range set {
		conns = append(conns, c)
	}
	return conns
}

// Counts reports the number of registered connections and distinct online
// identities.
func (r *Registry) Counts() (connections, identities int) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns), len(r.byUser)
}

package gateway

import (
	"encoding/json"

	"chat-relay/domain"
	"chat-relay/observability"

	"github.com/samber/lo"
)

// Snapshot returns the current set of online identities: one entry per
// distinct identified user, whatever the number of connections it holds.
// Derived on demand, never cached across events.
func (g *Gateway) Snapshot() []domain.Identity {
	return snapshot(g.registry.AllConnections())
}

func snapshot(conns []*Conn) []domain.Identity {
	identities := lo.FilterMap(conns, func(c *Conn, _ int) (domain.Identity, bool) {
		if identity := c.Identity(); identity != nil {
			return *identity, true
		}
		return domain.Identity{}, false
	})
	return lo.UniqBy(identities, func(i domain.Identity) string { return i.UserID })
}

// BroadcastPresence recomputes the online set and pushes it, as a complete
// replacement, to every registered connection, anonymous ones included.
// O(connections) per triggering event; under churn every connection event
// costs a full push to everyone. Acceptable at direct-messaging scale, and
// kept as a full snapshot because clients rely on receiving the whole list
// rather than a diff.
func (g *Gateway) BroadcastPresence() {
	conns := g.registry.AllConnections()

	online := snapshot(conns)
	if online == nil {
		online = []domain.Identity{}
	}

	payload, err := json.Marshal(domain.PresenceFrame{Online: online})
	if err != nil {
		return
	}

	for _, c := range conns {
		c.Send(payload)
	}
	observability.PresenceBroadcasts.Inc()
}

package gateway

import (
	"net/http"

	"chat-relay/domain"
)

// tokenCookie is the cookie the login flow sets and the handshake reads.
const tokenCookie = "token"

// handshake extracts and verifies the identity token carried on the upgrade
// request. Every failure is soft: a missing, malformed or expired token
// yields an anonymous connection, never a rejected transport, and no error
// is surfaced to the client.
func (g *Gateway) handshake(r *http.Request) *domain.Identity {
	cookie, err := r.Cookie(tokenCookie)
	if err != nil || cookie.Value == "" {
		return nil
	}

	identity, err := g.verifier.Verify(cookie.Value)
	if err != nil {
		g.log.Debug("Handshake token rejected", "error", err)
		return nil
	}
	return identity
}

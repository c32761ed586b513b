package domain

// Identity is the authenticated principal attached to a connection during
// the handshake. A connection without an Identity is anonymous: it receives
// presence updates but may not originate messages and never appears online.
type Identity struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
}

package model

import "time"

// SessionClaims is the identity carried inside a signed session token. It is
// never persisted; it is rebuilt from the token on every request.
type SessionClaims struct {
	UserID    uint64
	Email     string
	Username  string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

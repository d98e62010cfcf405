package model

import "time"

// LinkedAccountToken is a credential obtained from a third-party provider
// and stored on behalf of a user. One row per (user, provider).
type LinkedAccountToken struct {
	UserID       uint64
	Provider     string
	AccessToken  string
	RefreshToken string
	Scope        string
	ExpiresAt    time.Time
	UpdatedAt    time.Time
}

// Expired reports whether the token can no longer be used at now.
func (t LinkedAccountToken) Expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

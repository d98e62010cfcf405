// Package queue defines the auth events exchanged over the message broker,
// the publisher used by the services and the audit consumer.
package queue

import "time"

// Event types published by the services.
const (
	EventUserRegistered  = "user.registered"
	EventUserLoggedIn    = "user.logged_in"
	EventAPIKeyGenerated = "apikey.generated"
	EventAccountLinked   = "account.linked"
)

// AuthEventsQueue is the durable queue auth events are routed to.
const AuthEventsQueue = "auth.events"

// AuthEvent is published after a successful credential operation. It never
// carries secrets: Subject is a username, key prefix or provider name.
type AuthEvent struct {
	Type       string    `json:"type"`
	UserID     uint64    `json:"user_id"`
	Subject    string    `json:"subject,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Package ratelimit implements fixed-window admission control keyed by
// (category, client key). A window opens on the first request from a client
// and resets lazily once it has elapsed.
package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Categories with independent keyspaces.
const (
	CategoryLogin    = "login"
	CategoryRegister = "register"
	CategoryAPIKey   = "apikey"
	CategoryPosting  = "posting"
)

// Rule is the quota for one category: at most Limit requests per Window.
type Rule struct {
	Limit  int
	Window time.Duration
}

func (r Rule) String() string {
	return strconv.Itoa(r.Limit) + "/" + r.Window.String()
}

// ParseRule reads rules written as "<limit>/<window>", e.g. "5/15m" or "3/1h".
func ParseRule(s string) (Rule, error) {
	limit, window, ok := strings.Cut(strings.TrimSpace(s), "/")
	if !ok {
		return Rule{}, fmt.Errorf("rate limit rule %q: want <limit>/<window>", s)
	}
	n, err := strconv.Atoi(strings.TrimSpace(limit))
	if err != nil || n < 1 {
		return Rule{}, fmt.Errorf("rate limit rule %q: invalid limit", s)
	}
	d, err := time.ParseDuration(strings.TrimSpace(window))
	if err != nil || d <= 0 {
		return Rule{}, fmt.Errorf("rate limit rule %q: invalid window", s)
	}
	return Rule{Limit: n, Window: d}, nil
}

// Result is the outcome of one admission decision.
type Result struct {
	Allowed   bool
	Remaining int
	Limit     int
	ResetAt   time.Time
}

// RetryAfter is how long a rejected client should wait, rounded up to whole seconds.
func (r Result) RetryAfter(now time.Time) time.Duration {
	d := r.ResetAt.Sub(now)
	if d <= 0 {
		return 0
	}
	return (d + time.Second - 1).Truncate(time.Second)
}

// Limiter admits or rejects a request from clientKey within category.
type Limiter interface {
	Admit(ctx context.Context, category, clientKey string, rule Rule) (Result, error)
}

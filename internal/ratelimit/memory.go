package ratelimit

import (
	"context"
	"sync"
	"time"
)

type entryKey struct {
	category string
	client   string
}

type entry struct {
	count   int
	resetAt time.Time
}

// MemoryLimiter keeps counters in process memory. State is lost on restart.
type MemoryLimiter struct {
	mu      sync.Mutex
	entries map[entryKey]*entry
	now     func() time.Time
}

// NewMemoryLimiter returns an empty limiter. A nil now uses time.Now.
func NewMemoryLimiter(now func() time.Time) *MemoryLimiter {
	if now == nil {
		now = time.Now
	}
	return &MemoryLimiter{entries: make(map[entryKey]*entry), now: now}
}

// Admit applies rule to the (category, clientKey) counter. The check and the
// increment happen under one lock, so two concurrent callers can never both
// take the last slot.
func (l *MemoryLimiter) Admit(_ context.Context, category, clientKey string, rule Rule) (Result, error) {
	now := l.now()
	k := entryKey{category: category, client: clientKey}

	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.entries[k]
	if !ok || now.After(e.resetAt) {
		e = &entry{count: 1, resetAt: now.Add(rule.Window)}
		l.entries[k] = e
		return Result{Allowed: true, Remaining: rule.Limit - 1, Limit: rule.Limit, ResetAt: e.resetAt}, nil
	}
	if e.count >= rule.Limit {
		return Result{Allowed: false, Remaining: 0, Limit: rule.Limit, ResetAt: e.resetAt}, nil
	}
	e.count++
	return Result{Allowed: true, Remaining: rule.Limit - e.count, Limit: rule.Limit, ResetAt: e.resetAt}, nil
}

// Sweep drops entries whose window has elapsed and returns how many were removed.
func (l *MemoryLimiter) Sweep() int {
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	for k, e := range l.entries {
		if now.After(e.resetAt) {
			delete(l.entries, k)
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked entries.
func (l *MemoryLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Run sweeps every interval until ctx is done.
func (l *MemoryLimiter) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.Sweep()
		}
	}
}

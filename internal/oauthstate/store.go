// Package oauthstate records consumed OAuth state nonces so a state value
// is honoured at most once, even if the browser replays the cookie.
package oauthstate

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store consumes nonces. Consume returns true the first time a nonce is
// seen and false afterwards, for as long as ttl keeps the record alive.
type Store interface {
	Consume(ctx context.Context, nonce string, ttl time.Duration) (bool, error)
}

// MemoryStore is a process-local Store.
type MemoryStore struct {
	mu   sync.Mutex
	used map[string]time.Time
	now  func() time.Time
}

// NewMemoryStore returns an empty store. A nil now uses time.Now.
func NewMemoryStore(now func() time.Time) *MemoryStore {
	if now == nil {
		now = time.Now
	}
	return &MemoryStore{used: make(map[string]time.Time), now: now}
}

func (s *MemoryStore) Consume(_ context.Context, nonce string, ttl time.Duration) (bool, error) {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()

	for n, exp := range s.used {
		if now.After(exp) {
			delete(s.used, n)
		}
	}
	if _, seen := s.used[nonce]; seen {
		return false, nil
	}
	s.used[nonce] = now.Add(ttl)
	return true, nil
}

// RedisStore shares consumed nonces between processes.
type RedisStore struct {
	client *redis.Client
	prefix string
}

func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "oauth:nonce"
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) Consume(ctx context.Context, nonce string, ttl time.Duration) (bool, error) {
	return s.client.SetNX(ctx, s.prefix+":"+nonce, 1, ttl).Result()
}

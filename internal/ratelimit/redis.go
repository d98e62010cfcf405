package ratelimit

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// fixedWindowScript opens a window on the first hit and counts up to the
// limit. The key expires with the window, so stale clients cost nothing.
// Returns {allowed, remaining, reset_in_ms}.
var fixedWindowScript = redis.NewScript(`
	local key = KEYS[1]
	local limit = tonumber(ARGV[1])
	local window_ms = tonumber(ARGV[2])

	local count = tonumber(redis.call('GET', key) or '0')
	local ttl = redis.call('PTTL', key)

	if count == 0 or ttl < 0 then
		redis.call('SET', key, 1, 'PX', window_ms)
		return {1, limit - 1, window_ms}
	end

	if count >= limit then
		return {0, 0, ttl}
	end

	count = redis.call('INCR', key)
	return {1, limit - count, ttl}
`)

// RedisLimiter shares counters between processes through Redis.
type RedisLimiter struct {
	client *redis.Client
	prefix string
	now    func() time.Time
}

// NewRedisLimiter builds a limiter storing keys under prefix.
func NewRedisLimiter(client *redis.Client, prefix string) *RedisLimiter {
	if prefix == "" {
		prefix = "rl"
	}
	return &RedisLimiter{client: client, prefix: prefix, now: time.Now}
}

func (l *RedisLimiter) key(category, clientKey string) string {
	return strings.Join([]string{l.prefix, category, clientKey}, ":")
}

// Admit runs the window script atomically on the server.
func (l *RedisLimiter) Admit(ctx context.Context, category, clientKey string, rule Rule) (Result, error) {
	now := l.now()
	vals, err := fixedWindowScript.Run(ctx, l.client,
		[]string{l.key(category, clientKey)},
		rule.Limit, rule.Window.Milliseconds(),
	).Int64Slice()
	if err != nil {
		return Result{}, fmt.Errorf("redis rate limit script: %w", err)
	}
	if len(vals) != 3 {
		return Result{}, fmt.Errorf("unexpected rate limit script result length: %d", len(vals))
	}
	remaining := int(vals[1])
	if remaining < 0 {
		remaining = 0
	}
	return Result{
		Allowed:   vals[0] == 1,
		Remaining: remaining,
		Limit:     rule.Limit,
		ResetAt:   now.Add(time.Duration(vals[2]) * time.Millisecond),
	}, nil
}

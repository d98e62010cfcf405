package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/iliyamo/credential-service/internal/ratelimit"
)

// RateLimitConfig holds the per-category admission rules and the backend
// the limiter runs on.
type RateLimitConfig struct {
	Enabled       bool
	Backend       string // "memory" or "redis"
	Prefix        string
	SweepInterval time.Duration
	Rules         map[string]ratelimit.Rule
}

var defaultRules = map[string]string{
	ratelimit.CategoryLogin:    "5/15m",
	ratelimit.CategoryRegister: "3/15m",
	ratelimit.CategoryAPIKey:   "3/1h",
	ratelimit.CategoryPosting:  "10/1h",
}

var ruleEnv = map[string]string{
	ratelimit.CategoryLogin:    "RATE_LIMIT_LOGIN",
	ratelimit.CategoryRegister: "RATE_LIMIT_REGISTER",
	ratelimit.CategoryAPIKey:   "RATE_LIMIT_APIKEY",
	ratelimit.CategoryPosting:  "RATE_LIMIT_POSTING",
}

// LoadRateLimitConfig reads the limiter settings. A malformed rule is an
// error; unset rules use the defaults.
func LoadRateLimitConfig() (RateLimitConfig, error) {
	cfg := RateLimitConfig{
		Enabled:       envBool("RATE_LIMIT_ENABLED", true),
		Backend:       envStr("RATE_LIMIT_BACKEND", "memory"),
		Prefix:        envStr("RATE_LIMIT_PREFIX", "rl"),
		SweepInterval: envDur("RATE_LIMIT_SWEEP_INTERVAL", time.Minute),
		Rules:         make(map[string]ratelimit.Rule, len(defaultRules)),
	}
	if cfg.Backend != "memory" && cfg.Backend != "redis" {
		return RateLimitConfig{}, fmt.Errorf("RATE_LIMIT_BACKEND must be memory or redis, got %q", cfg.Backend)
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = time.Minute
	}
	for category, def := range defaultRules {
		key := ruleEnv[category]
		rule, err := ratelimit.ParseRule(envStr(key, def))
		if err != nil {
			return RateLimitConfig{}, fmt.Errorf("%s: %w", key, err)
		}
		cfg.Rules[category] = rule
	}
	return cfg, nil
}

// Rule returns the rule for category.
func (c RateLimitConfig) Rule(category string) ratelimit.Rule {
	return c.Rules[category]
}

func envStr(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func envBool(k string, d bool) bool {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	switch v {
	case "1", "true", "TRUE", "True", "yes", "YES", "on", "ON":
		return true
	case "0", "false", "FALSE", "False", "no", "NO", "off", "OFF":
		return false
	}
	return d
}

func envInt(k string, d int) int {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return n
	}
	return d
}

func envDur(k string, d time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	if dur, err := time.ParseDuration(v); err == nil {
		return dur
	}
	return d
}

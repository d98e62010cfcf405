package config // package config loads application configuration from environment variables

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all runtime configuration values. Each field corresponds to
// an environment variable. Secrets are never logged.
type Config struct {
	Env        string        // application environment (e.g. "dev", "prod")
	Port       string        // HTTP port to listen on
	DBUser     string        // database username
	DBPass     string        // database password (optional)
	DBHost     string        // database host address
	DBPort     string        // database port number
	DBName     string        // database name
	JWTSecret  string        // secret used to sign session and state tokens
	SessionTTL time.Duration // lifetime of a session token
	BcryptCost int           // bcrypt cost for password hashing
	LogLevel   string        // zap level name
	AMQP       AMQPConfig
}

// AMQPConfig controls event publishing and the audit consumer. An empty URL
// disables both.
type AMQPConfig struct {
	URL             string
	ConsumerEnabled bool
	AuditLogDir     string
}

// IsProduction reports whether the app runs in a production environment.
func (c Config) IsProduction() bool {
	switch strings.ToLower(c.Env) {
	case "prod", "production":
		return true
	}
	return false
}

// LoadDotEnv loads variables from .env files if present. Variables already
// set in the environment win.
func LoadDotEnv(files ...string) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			_ = godotenv.Load(f)
		}
	}
}

// Load reads configuration values from environment variables. Every missing
// or malformed required variable is reported in the returned error.
func Load() (Config, error) {
	var l loader
	cfg := Config{
		Env:        envStr("APP_ENV", "dev"),
		Port:       envStr("APP_PORT", "8080"),
		DBUser:     l.must("DB_USER"),
		DBPass:     os.Getenv("DB_PASS"), // empty allowed
		DBHost:     l.must("DB_HOST"),
		DBPort:     envStr("DB_PORT", "3306"),
		DBName:     l.must("DB_NAME"),
		JWTSecret:  l.must("JWT_SECRET"),
		SessionTTL: l.duration("SESSION_TTL", 7*24*time.Hour),
		BcryptCost: l.integer("BCRYPT_COST", 10),
		LogLevel:   envStr("LOG_LEVEL", "info"),
		AMQP: AMQPConfig{
			URL:             amqpURL(),
			ConsumerEnabled: envBool("AUDIT_CONSUMER_ENABLED", false),
			AuditLogDir:     envStr("AUDIT_LOG_DIR", "logs"),
		},
	}
	if cfg.SessionTTL <= 0 {
		l.invalid = append(l.invalid, "SESSION_TTL")
	}
	if err := l.err(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func amqpURL() string {
	if v := os.Getenv("RABBITMQ_URL"); v != "" {
		return v
	}
	return os.Getenv("AMQP_URL")
}

// loader collects problems instead of failing on the first one.
type loader struct {
	missing []string
	invalid []string
}

// must retrieves the value of a required environment variable.
func (l *loader) must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		l.missing = append(l.missing, key)
	}
	return v
}

// integer reads an optional integer, recording a malformed value.
func (l *loader) integer(key string, def int) int {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		l.invalid = append(l.invalid, key)
		return def
	}
	return n
}

// duration reads an optional duration, recording a malformed value.
func (l *loader) duration(key string, def time.Duration) time.Duration {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		l.invalid = append(l.invalid, key)
		return def
	}
	return d
}

func (l *loader) err() error {
	var errs []error
	if len(l.missing) > 0 {
		errs = append(errs, fmt.Errorf("missing required env vars: %s", strings.Join(l.missing, ", ")))
	}
	if len(l.invalid) > 0 {
		errs = append(errs, fmt.Errorf("invalid env vars: %s", strings.Join(l.invalid, ", ")))
	}
	return errors.Join(errs...)
}

// Package config builds process configuration from environment variables so
// main stays lean. There are no config files; a deployment is its
// environment.
package config

import (
	"os"
	"strings"
	"time"
)

// Config is everything the server process needs to start.
type Config struct {
	// Addr is the HTTP listen address.
	Addr string
	// PostgresDSN selects the durable stores. Empty means in-memory stores,
	// which is the single-process development mode.
	PostgresDSN string
	// RedisURL selects redis-backed projections and dedupe. Empty means
	// in-memory equivalents.
	RedisURL string
	// KafkaBrokers seeds the producer, consumers and topic bootstrap. Empty
	// disables the relay and consumers.
	KafkaBrokers []string
	// JWTSigningKey verifies actor tokens minted by the identity
	// collaborator.
	JWTSigningKey string
	LogLevel      string
	// ShutdownTimeout bounds graceful drain on SIGTERM.
	ShutdownTimeout time.Duration
}

// FromEnv reads the DISHA_* environment.
func FromEnv() Config {
	cfg := Config{
		Addr:            getenv("DISHA_ADDR", ":8080"),
		PostgresDSN:     os.Getenv("DISHA_POSTGRES_DSN"),
		RedisURL:        os.Getenv("DISHA_REDIS_URL"),
		JWTSigningKey:   getenv("DISHA_JWT_SIGNING_KEY", "dev-secret-change-in-production"),
		LogLevel:        getenv("DISHA_LOG_LEVEL", "info"),
		ShutdownTimeout: 15 * time.Second,
	}
	if brokers := os.Getenv("DISHA_KAFKA_BROKERS"); brokers != "" {
		for _, b := range strings.Split(brokers, ",") {
			if b = strings.TrimSpace(b); b != "" {
				cfg.KafkaBrokers = append(cfg.KafkaBrokers, b)
			}
		}
	}
	if t, err := time.ParseDuration(os.Getenv("DISHA_SHUTDOWN_TIMEOUT")); err == nil {
		cfg.ShutdownTimeout = t
	}
	return cfg
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

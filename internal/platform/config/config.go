// Package config builds runtime configuration from environment variables so
// main stays lean.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// RedisConfig tunes the go-redis client. An empty URL disables Redis.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Config captures everything the server binary needs.
type Config struct {
	Addr          string
	PostgresURL   string
	Redis         RedisConfig
	KafkaBrokers  []string
	KafkaTopic    string
	JWTSigningKey string
	JWTIssuer     string
	JWTAudience   string
	WebhookSecret string
	MembershipFee int64
	SweepInterval time.Duration
	RateLimit     int
	RateWindow    time.Duration
}

// FromEnv builds a Config from environment variables, with development
// defaults for everything except the Postgres URL.
func FromEnv() Config {
	cfg := Config{
		Addr:        envOr("TESSERA_ADDR", ":8080"),
		PostgresURL: os.Getenv("TESSERA_POSTGRES_URL"),
		Redis: RedisConfig{
			URL:          os.Getenv("TESSERA_REDIS_URL"),
			PoolSize:     envInt("TESSERA_REDIS_POOL_SIZE", 10),
			MinIdleConns: envInt("TESSERA_REDIS_MIN_IDLE", 2),
			DialTimeout:  envDuration("TESSERA_REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDuration("TESSERA_REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDuration("TESSERA_REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		KafkaTopic:    envOr("TESSERA_KAFKA_TOPIC", "tessera.membership.events"),
		JWTSigningKey: envOr("TESSERA_JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
		JWTIssuer:     envOr("TESSERA_JWT_ISSUER", "tessera"),
		JWTAudience:   envOr("TESSERA_JWT_AUDIENCE", "tessera-api"),
		WebhookSecret: envOr("TESSERA_WEBHOOK_SECRET", "dev-webhook-secret"),
		MembershipFee: int64(envInt("TESSERA_MEMBERSHIP_FEE_CENTS", 2500)),
		SweepInterval: envDuration("TESSERA_SWEEP_INTERVAL", 24*time.Hour),
		RateLimit:     envInt("TESSERA_RATE_LIMIT", 300),
		RateWindow:    envDuration("TESSERA_RATE_WINDOW", time.Minute),
	}
	if brokers := os.Getenv("TESSERA_KAFKA_BROKERS"); brokers != "" {
		for _, b := range strings.Split(brokers, ",") {
			if b = strings.TrimSpace(b); b != "" {
				cfg.KafkaBrokers = append(cfg.KafkaBrokers, b)
			}
		}
	}
	return cfg
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

package config

import (
	"os"
	"strconv"
)

// Config holds the core runtime configuration for the service.
// Values are primarily sourced from environment variables, with
// sensible defaults where appropriate. See .env.example.
type Config struct {
	// AdminEmail/AdminPassword seed the bootstrap admin account on startup.
	AdminEmail    string
	AdminPassword string
	AdminName     string

	DatabaseURL string

	// RedisURL configures the pub/sub transport for live event fan-out.
	// If empty, the service falls back to an in-process broker (single
	// node only; fine for development).
	RedisURL string

	// SessionSecret signs session tokens. A tampered token must never
	// verify, so this has to stay out of source control.
	SessionSecret string

	// RealtimeKey/RealtimeSecret are the credentials used to sign the
	// channel-subscribe handshake (pusher-compatible auth signature).
	RealtimeKey    string
	RealtimeSecret string

	// RetentionDays bounds how long ingested live events are kept.
	// 0 disables retention cleanup.
	RetentionDays int

	ListenAddr string
}

// Load reads configuration from environment variables and applies defaults.
func Load() *Config {
	cfg := &Config{
		AdminEmail:     getenv("APP_ADMIN_EMAIL", "admin@localhost"),
		AdminPassword:  getenv("APP_ADMIN_PASSWORD", "changeme"),
		AdminName:      getenv("APP_ADMIN_NAME", "Administrator"),
		DatabaseURL:    os.Getenv("APP_DATABASE_URL"),
		RedisURL:       os.Getenv("APP_REDIS_URL"),
		SessionSecret:  getenv("APP_SESSION_SECRET", "insecure-dev-secret"),
		RealtimeKey:    getenv("APP_REALTIME_KEY", "packetwatch"),
		RealtimeSecret: os.Getenv("APP_REALTIME_SECRET"),
		ListenAddr:     getenv("APP_LISTEN_ADDR", ":8080"),
		RetentionDays:  0,
	}

	if cfg.RealtimeSecret == "" {
		cfg.RealtimeSecret = cfg.SessionSecret
	}

	if v := os.Getenv("APP_RETENTION_DAYS"); v != "" {
		if days, err := strconv.Atoi(v); err == nil && days > 0 {
			cfg.RetentionDays = days
		}
	}

	return cfg
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

package app

import (
	"log/slog"
	"os"
	"strconv"
	"time"
)

// defaultInviteHorizon is used when PORTAL_INVITE_EXPIRY is unset. All
// invites (and the premium grant on redemption) share this one date; it is a
// program-wide policy constant, not a rolling TTL.
const defaultInviteHorizon = "2026-06-30T23:59:59Z"

type Config struct {
	DatabaseFile string // Path to SQLite database file (default: ./portal.db)

	TokenSecret  string    // Required: shared secret verifying session tokens
	TokenIssuer  string    // Optional: expected issuer claim (default: portal)
	InviteExpiry time.Time // Global invite/premium horizon (RFC 3339)

	BootstrapAdminID   string // Optional: seed an admin account into an empty store
	BootstrapAdminName string // Optional: display name for the seeded admin

	Env                 string        // Environment (dev, staging, prod) (default: dev)
	LogLevel            string        // Log level (debug, info, warn, error) (default: info)
	LogFormat           string        // Log format (json, text) (default: json)
	Port                int           // HTTP server port (default: 8080)
	ShutdownGracePeriod time.Duration // Graceful shutdown timeout (default: 10s)
	ReconcileInterval   time.Duration // Accrual audit interval (default: 1h)
}

func LoadConfig() Config {
	cfg := Config{
		DatabaseFile:        getEnvOrDefault("PORTAL_DATABASE_FILE", "portal.db"),
		TokenSecret:         os.Getenv("PORTAL_TOKEN_SECRET"),
		TokenIssuer:         getEnvOrDefault("PORTAL_TOKEN_ISSUER", "portal"),
		BootstrapAdminID:    os.Getenv("PORTAL_BOOTSTRAP_ADMIN_ID"),
		BootstrapAdminName:  getEnvOrDefault("PORTAL_BOOTSTRAP_ADMIN_NAME", "Admin"),
		Env:                 getEnvOrDefault("ENV", "dev"),
		LogLevel:            getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:           getEnvOrDefault("LOG_FORMAT", "json"),
		Port:                getEnvIntOrDefault("PORT", 8080),
		ShutdownGracePeriod: getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),
		ReconcileInterval:   getEnvDurationOrDefault("RECONCILE_INTERVAL", 1*time.Hour),
	}

	horizon := getEnvOrDefault("PORTAL_INVITE_EXPIRY", defaultInviteHorizon)
	if t, err := time.Parse(time.RFC3339, horizon); err == nil {
		cfg.InviteExpiry = t
	} else {
		// Fall back to the built-in default on a malformed override, but
		// say so: a silently ignored horizon is hard to spot in prod.
		slog.Warn("invalid PORTAL_INVITE_EXPIRY, using default",
			"value", horizon, "default", defaultInviteHorizon, "err", err)
		cfg.InviteExpiry, _ = time.Parse(time.RFC3339, defaultInviteHorizon)
	}

	return cfg
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if intValue, err := strconv.Atoi(value); err == nil {
		return intValue
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}
	return defaultValue
}

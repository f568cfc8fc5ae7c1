package app

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	DatabaseFile string // Optional: path to SQLite database file (default: ./doorman.db)
	PepperFile   string // Optional: path to file containing pepper for password hashing (default: ./pepper)

	Env       string // Environment (dev, staging, prod) (default: dev)
	LogLevel  string // Log level (debug, info, warn, error) (default: info)
	LogFormat string // Log format (json, text) (default: json)
	Port      int    // HTTP server port (default: 8080)

	ShutdownGracePeriod  time.Duration // Graceful shutdown timeout (default: 10s)
	HousekeepingInterval time.Duration // Session purge interval (default: 5m)

	SessionTTL time.Duration // Session lifetime (default: 12h)

	MaxLoginAttempts       int           // Failed logins before lockout (default: 5)
	LockoutDuration        time.Duration // Lockout length once triggered (default: 30m)
	PasswordChangeInterval time.Duration // Minimum gap between self-service changes (default: 24h)

	// Initial administrator, provisioned only against an empty database.
	AdminUsername string
	AdminEmail    string
	AdminPassword string
}

func LoadConfig() Config {
	return Config{
		DatabaseFile: getEnvOrDefault("DOORMAN_DATABASE_FILE", "doorman.db"),
		PepperFile:   getEnvOrDefault("DOORMAN_PEPPER_FILE", "pepper"),

		Env:       getEnvOrDefault("ENV", "dev"),
		LogLevel:  getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat: getEnvOrDefault("LOG_FORMAT", "json"),
		Port:      getEnvIntOrDefault("PORT", 8080),

		ShutdownGracePeriod:  getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),
		HousekeepingInterval: getEnvDurationOrDefault("HOUSEKEEPING_INTERVAL", 5*time.Minute),

		SessionTTL: getEnvDurationOrDefault("DOORMAN_SESSION_TTL", 12*time.Hour),

		MaxLoginAttempts:       getEnvIntOrDefault("DOORMAN_MAX_LOGIN_ATTEMPTS", 5),
		LockoutDuration:        getEnvDurationOrDefault("DOORMAN_LOCKOUT_DURATION", 30*time.Minute),
		PasswordChangeInterval: getEnvDurationOrDefault("DOORMAN_PASSWORD_CHANGE_INTERVAL", 24*time.Hour),

		AdminUsername: getEnvOrDefault("DOORMAN_ADMIN_USERNAME", "admin"),
		AdminEmail:    getEnvOrDefault("DOORMAN_ADMIN_EMAIL", "admin@localhost"),
		AdminPassword: os.Getenv("DOORMAN_ADMIN_PASSWORD"),
	}
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

	// Try parsing as duration (e.g., "1h", "30m", "90s")
	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	// Try parsing as integer minutes (for backwards compatibility)
	if minutes, err := strconv.Atoi(value); err == nil {
		return time.Duration(minutes) * time.Minute
	}

	return defaultValue
}

package app

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Port                int           // HTTP server port (default: 3000)
	APIPrefix           string        // Path prefix for the API routes (default: /api)
	SeedFile            string        // Optional: YAML file with users and cache entries to load at startup
	Pepper              string        // Optional: secret appended to passwords before hashing
	Env                 string        // Environment (dev, staging, prod) (default: dev)
	LogLevel            string        // Log level (debug, info, warn, error) (default: info)
	LogFormat           string        // Log format (json, text) (default: text)
	AccessTTL           time.Duration // Access token lifetime (default: 15m)
	ResendInterval      time.Duration // Minimum gap between emailed codes (default: 60s)
	ShutdownGracePeriod time.Duration // Graceful shutdown timeout (default: 10s)
}

func LoadConfig() Config {
	return Config{
		Port:                getEnvIntOrDefault("PORT", 3000),
		APIPrefix:           getEnvOrDefault("FAKEAPI_PREFIX", "/api"),
		SeedFile:            os.Getenv("FAKEAPI_SEED_FILE"),
		Pepper:              os.Getenv("FAKEAPI_PEPPER"),
		Env:                 getEnvOrDefault("ENV", "dev"),
		LogLevel:            getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:           getEnvOrDefault("LOG_FORMAT", "text"),
		AccessTTL:           getEnvDurationOrDefault("FAKEAPI_ACCESS_TTL", 15*time.Minute),
		ResendInterval:      getEnvDurationOrDefault("FAKEAPI_RESEND_INTERVAL", time.Minute),
		ShutdownGracePeriod: getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),
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

	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	// Bare integers are seconds.
	if seconds, err := strconv.Atoi(value); err == nil {
		return time.Duration(seconds) * time.Second
	}

	return defaultValue
}

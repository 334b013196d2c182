package app

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	configDirName  = ".backoffice"
	configFileName = "config.yaml"
)

type Config struct {
	APIURL         string        // Backoffice REST API base URL (default: http://localhost:3000/api)
	RequestTimeout time.Duration // Per-request timeout (default: 10s)
	StateDir       string        // Directory for state and logs (default: ~/.backoffice)
	StoreDriver    string        // Session store driver (sqlite, memory) (default: sqlite)
	StateFile      string        // SQLite state file (default: <StateDir>/state.db)
	RedisURL       string        // Optional: inspect this Redis directly instead of the cache API
	Env            string        // Environment (dev, staging, prod) (default: prod)
	LogLevel       string        // Log level (debug, info, warn, error) (default: info)
	LogFormat      string        // Log format (json, text) (default: json)
	LogFile        string        // Log destination (default: <StateDir>/backoffice.log, "-" for stderr)
}

// fileConfig mirrors the keys accepted in config.yaml.
type fileConfig struct {
	APIURL         string `yaml:"apiUrl"`
	RequestTimeout string `yaml:"requestTimeout"`
	StoreDriver    string `yaml:"store"`
	StateFile      string `yaml:"stateFile"`
	RedisURL       string `yaml:"redisUrl"`
	Env            string `yaml:"env"`
	LogLevel       string `yaml:"logLevel"`
	LogFormat      string `yaml:"logFormat"`
	LogFile        string `yaml:"logFile"`
}

// ConfigPath is BACKOFFICE_CONFIG, or ~/.backoffice/config.yaml.
func ConfigPath() (string, error) {
	if p := os.Getenv("BACKOFFICE_CONFIG"); p != "" {
		return p, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, configDirName, configFileName), nil
}

// LoadConfig builds the configuration from defaults, then the config file
// if one exists, then environment variables.
func LoadConfig() (Config, error) {
	stateDir := os.Getenv("BACKOFFICE_STATE_DIR")
	if stateDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return Config{}, fmt.Errorf("resolve home directory: %w", err)
		}
		stateDir = filepath.Join(home, configDirName)
	}

	path, err := ConfigPath()
	if err != nil {
		return Config{}, err
	}
	fc, err := readConfigFile(path)
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		APIURL:         getEnvOrDefault("BACKOFFICE_API_URL", orDefault(fc.APIURL, "http://localhost:3000/api")),
		RequestTimeout: getEnvDurationOrDefault("BACKOFFICE_REQUEST_TIMEOUT", parseDurationOr(fc.RequestTimeout, 10*time.Second)),
		StateDir:       stateDir,
		StoreDriver:    strings.ToLower(getEnvOrDefault("BACKOFFICE_STORE", orDefault(fc.StoreDriver, "sqlite"))),
		StateFile:      getEnvOrDefault("BACKOFFICE_STATE_FILE", orDefault(fc.StateFile, filepath.Join(stateDir, "state.db"))),
		RedisURL:       getEnvOrDefault("BACKOFFICE_REDIS_URL", fc.RedisURL),
		Env:            getEnvOrDefault("ENV", orDefault(fc.Env, "prod")),
		LogLevel:       getEnvOrDefault("LOG_LEVEL", orDefault(fc.LogLevel, "info")),
		LogFormat:      getEnvOrDefault("LOG_FORMAT", orDefault(fc.LogFormat, "json")),
		LogFile:        getEnvOrDefault("BACKOFFICE_LOG_FILE", orDefault(fc.LogFile, filepath.Join(stateDir, "backoffice.log"))),
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	switch c.StoreDriver {
	case "sqlite", "memory":
	default:
		return fmt.Errorf("unknown store driver %q (want sqlite or memory)", c.StoreDriver)
	}
	if c.APIURL == "" {
		return errors.New("api url is required")
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("request timeout must be positive, got %s", c.RequestTimeout)
	}
	return nil
}

func readConfigFile(path string) (fileConfig, error) {
	var fc fileConfig

	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fc, nil
		}
		return fc, err
	}
	if len(strings.TrimSpace(string(b))) == 0 {
		return fc, nil
	}
	if err := yaml.Unmarshal(b, &fc); err != nil {
		return fc, fmt.Errorf("failed to parse config YAML: %w", err)
	}
	return fc, nil
}

func orDefault(value, defaultValue string) string {
	if value != "" {
		return value
	}
	return defaultValue
}

func parseDurationOr(value string, defaultValue time.Duration) time.Duration {
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	return defaultValue
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
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

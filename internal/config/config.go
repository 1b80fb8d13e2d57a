package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the runtime configuration of the sync service
type Config struct {
	// ServiceURL is the base URL of the remote alert service
	ServiceURL string

	// ListenAddr is the address the local gateway binds to
	ListenAddr string

	// RequestTimeout bounds every round trip to the remote service
	RequestTimeout time.Duration

	// RefreshInterval is the period of the background collection refresh
	RefreshInterval time.Duration

	// GeoEndpoint is the positioning agent URL; empty disables capture
	// and every report falls back to manual location entry
	GeoEndpoint string

	// GeoTimeout bounds a single position capture
	GeoTimeout time.Duration

	// StateDir is where the last-report recovery record lives
	StateDir string

	LogLevel string
}

// LoadConfig reads configuration from the environment, after loading a
// .env file if one is present next to the binary
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	cfg := &Config{
		ServiceURL:      os.Getenv("ALERT_SERVICE_URL"),
		ListenAddr:      getEnv("LISTEN_ADDR", ":8600"),
		RequestTimeout:  getEnvAsDuration("REQUEST_TIMEOUT", 15*time.Second),
		RefreshInterval: getEnvAsDuration("REFRESH_INTERVAL", 30*time.Second),
		GeoEndpoint:     os.Getenv("GEO_ENDPOINT"),
		GeoTimeout:      getEnvAsDuration("GEO_TIMEOUT", 10*time.Second),
		StateDir:        getEnv("STATE_DIR", defaultStateDir()),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
	}

	if cfg.ServiceURL == "" {
		return nil, fmt.Errorf("ALERT_SERVICE_URL environment variable is required")
	}

	return cfg, nil
}

func defaultStateDir() string {
	if dir, err := os.UserCacheDir(); err == nil {
		return dir + "/alertsync"
	}
	return "."
}

// getEnv returns the environment value or the default when unset
func getEnv(key string, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// getEnvAsDuration returns the environment value as a duration or the default
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if durationValue, err := time.ParseDuration(value); err == nil {
			return durationValue
		}
	}
	return defaultValue
}

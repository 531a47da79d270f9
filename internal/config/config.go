package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	Port                    int
	DevMode                 bool
	DatabasePath            string
	HistoryDir              string
	CacheDir                string
	QuotesURL               string
	LogLevel                string
	PriceSyncSchedule       string
	SnapshotRefreshSchedule string
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg := &Config{
		Port:                    getEnvAsInt("PRISM_PORT", 8010),
		DevMode:                 getEnvAsBool("DEV_MODE", false),
		DatabasePath:            getEnv("DATABASE_PATH", "./data/prism.db"),
		HistoryDir:              getEnv("HISTORY_DIR", "./data/history"),
		CacheDir:                getEnv("CACHE_DIR", "./data/cache"),
		QuotesURL:               getEnv("QUOTES_URL", ""),
		LogLevel:                getEnv("LOG_LEVEL", "info"),
		PriceSyncSchedule:       getEnv("PRICE_SYNC_SCHEDULE", "0 15 18 * * MON-FRI"),
		SnapshotRefreshSchedule: getEnv("SNAPSHOT_REFRESH_SCHEDULE", "@hourly"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if required configuration is present
func (c *Config) Validate() error {
	if c.DatabasePath == "" {
		return fmt.Errorf("DATABASE_PATH is required")
	}
	if c.HistoryDir == "" {
		return fmt.Errorf("HISTORY_DIR is required")
	}
	// QuotesURL is optional: without it the price sync job is not registered
	// and prices must be loaded into the history store out of band.
	return nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

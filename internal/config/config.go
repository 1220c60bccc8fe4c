package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// Config holds all bridge configuration
type Config struct {
	ModelCommand string // BRIDGE_MODEL_COMMAND
	ModelArgs    string // BRIDGE_MODEL_ARGS, space-separated
	Analyzer     string // BRIDGE_ANALYZER: subprocess or builtin
	TimeoutMs    int    // BRIDGE_TIMEOUT_MS
	MaxAttempts  int    // BRIDGE_MAX_ATTEMPTS
	BaseDelayMs  int    // BRIDGE_BASE_DELAY_MS
	BatchSize    int    // BRIDGE_BATCH_SIZE
	BatchDelayMs int    // BRIDGE_BATCH_DELAY_MS
	LogLevel     string // BRIDGE_LOG_LEVEL
	MetricsAddr  string // BRIDGE_METRICS_ADDR, metrics disabled when empty
}

// Load initializes configuration from environment variables
func Load() (*Config, error) {
	// Load environment variables from .env file if present
	if err := godotenv.Load(); err != nil {
		log.Warn().Msg(".env file not found, relying on actual environment variables")
	}

	var cfg Config

	// Load values from environment variables
	cfg.ModelCommand = getEnvWithDefault("BRIDGE_MODEL_COMMAND", "python3")
	cfg.ModelArgs = getEnvWithDefault("BRIDGE_MODEL_ARGS", "scripts/analyze_transactions.py")
	cfg.Analyzer = getEnvWithDefault("BRIDGE_ANALYZER", "subprocess")
	cfg.TimeoutMs = getEnvIntWithDefault("BRIDGE_TIMEOUT_MS", 30000)
	cfg.MaxAttempts = getEnvIntWithDefault("BRIDGE_MAX_ATTEMPTS", 3)
	cfg.BaseDelayMs = getEnvIntWithDefault("BRIDGE_BASE_DELAY_MS", 500)
	cfg.BatchSize = getEnvIntWithDefault("BRIDGE_BATCH_SIZE", 10000)
	cfg.BatchDelayMs = getEnvIntWithDefault("BRIDGE_BATCH_DELAY_MS", 100)
	cfg.LogLevel = getEnvWithDefault("BRIDGE_LOG_LEVEL", "info")
	cfg.MetricsAddr = os.Getenv("BRIDGE_METRICS_ADDR")

	return &cfg, nil
}

// ModelArgv splits the configured model arguments into an argument vector.
func (c *Config) ModelArgv() []string {
	return strings.Fields(c.ModelArgs)
}

// Helper functions for environment variable handling
func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntWithDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

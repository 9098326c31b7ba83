package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config holds all configuration for tada.
type Config struct {
	// Redis configuration (dedupe/state, internal/dedupe)
	RedisURL string

	// Pipeline definition store (internal/pipelinestore)
	PipelineDBName     string
	PipelineDBHost     string
	PipelineDBUser     string
	PipelineDBPassword string
	PipelineDBPort     string
	PipelineDBSSLMode  string

	// Worker configuration (internal/orchestrator decode pool)
	MinWorkers int
	MaxWorkers int

	// Logging configuration
	LogLevel string

	// Realtime push bus backend: "local" or "nats"
	RealtimeBackend string
	NATSURL         string

	// Metrics configuration
	MetricsPort string
}

// Load reads configuration from environment variables and validates it.
func Load() (Config, error) {
	cfg := Config{
		RedisURL:           getEnv("REDIS_URL", "redis://localhost:6379"),
		PipelineDBName:     getEnv("PIPELINE_DB_NAME", ""),
		PipelineDBHost:     getEnv("PIPELINE_DB_HOST", ""),
		PipelineDBUser:     getEnv("PIPELINE_DB_USER", ""),
		PipelineDBPassword: getEnv("PIPELINE_DB_PASSWORD", ""),
		PipelineDBPort:     getEnv("PIPELINE_DB_PORT", ""),
		PipelineDBSSLMode:  getEnv("PIPELINE_DB_SSL_MODE", ""),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		RealtimeBackend:    getEnv("REALTIME_BACKEND", "local"),
		NATSURL:            getEnv("NATS_URL", ""),
		MetricsPort:        getEnv("METRICS_PORT", "9100"),
	}

	var err error
	cfg.MinWorkers, err = parseIntEnv("MIN_WORKERS", 4)
	if err != nil {
		return cfg, fmt.Errorf("invalid MIN_WORKERS: %w", err)
	}

	cfg.MaxWorkers, err = parseIntEnv("MAX_WORKERS", 50)
	if err != nil {
		return cfg, fmt.Errorf("invalid MAX_WORKERS: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return cfg, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// validate checks that the configuration is valid.
func (c Config) validate() error {
	if c.RedisURL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}

	if c.PipelineDBName == "" {
		return fmt.Errorf("PIPELINE_DB_NAME is required")
	}

	if c.MinWorkers < 1 {
		return fmt.Errorf("MIN_WORKERS must be at least 1")
	}

	if c.MaxWorkers < c.MinWorkers {
		return fmt.Errorf("MAX_WORKERS must be greater than or equal to MIN_WORKERS")
	}

	switch c.RealtimeBackend {
	case "local":
	case "nats":
		if c.NATSURL == "" {
			return fmt.Errorf("NATS_URL is required when REALTIME_BACKEND=nats")
		}
	default:
		return fmt.Errorf("invalid REALTIME_BACKEND: %s (must be one of: local, nats)", c.RealtimeBackend)
	}

	validLogLevels := map[string]bool{
		"trace": true,
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
		"fatal": true,
		"panic": true,
	}

	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		return fmt.Errorf("invalid LOG_LEVEL: %s (must be one of: trace, debug, info, warn, error, fatal, panic)", c.LogLevel)
	}

	return nil
}

// getEnv retrieves an environment variable with a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// parseIntEnv parses an integer environment variable with a default value.
func parseIntEnv(key string, defaultValue int) (int, error) {
	str := os.Getenv(key)
	if str == "" {
		return defaultValue, nil
	}
	return strconv.Atoi(str)
}

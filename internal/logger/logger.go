package logger

import (
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// New creates and configures a new zerolog logger.
func New(logLevel string) zerolog.Logger {
	// Set global log level
	level, err := zerolog.ParseLevel(strings.ToLower(logLevel))
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	// Configure console writer for human-readable output in development
	if os.Getenv("API_ENV") == "development" {
		log.Logger = log.Output(zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		})
	}

	// Create structured logger with common fields
	logger := zerolog.New(os.Stdout).
		Level(level).
		With().
		Timestamp().
		Str("service", "tada").
		Logger()

	return logger
}

// WithWorker adds a decode worker's ID to logger context.
func WithWorker(logger zerolog.Logger, workerID string) zerolog.Logger {
	return logger.With().Str("worker_id", workerID).Logger()
}

// WithPipeline adds a pipeline ID to logger context.
func WithPipeline(logger zerolog.Logger, pipelineID string) zerolog.Logger {
	return logger.With().Str("pipeline_id", pipelineID).Logger()
}

// WithDestination adds a destination tag to logger context.
func WithDestination(logger zerolog.Logger, destination string) zerolog.Logger {
	return logger.With().Str("destination", destination).Logger()
}

// WithProgram adds a program ID to logger context.
func WithProgram(logger zerolog.Logger, programID string) zerolog.Logger {
	return logger.With().Str("program", programID).Logger()
}

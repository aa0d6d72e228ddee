package testevents

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/okian/calpulse/pkg/logger"
)

// File permission constants.
const (
	logFilePermission = 0600
)

// SetupLogging configures logging to both console and file.
// If logFile is empty, a timestamped filename is generated.
func SetupLogging(logFile string, verbose bool) error {
	if logFile == "" {
		timestamp := time.Now().Format("20060102_150405")
		logFile = "test_events_" + timestamp + ".log"
	}

	file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, logFilePermission)
	if err != nil {
		return fmt.Errorf("failed to create log file: %w", err)
	}

	level := "info"
	if verbose {
		level = "debug"
	}
	if err := logger.Init(logger.WithOutput(io.MultiWriter(os.Stdout, file)), logger.WithLevel(level)); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	logger.Get().Info(context.Background(), "logging to file", logger.String("logFile", logFile))
	return nil
}

// ShowHelp prints usage information for the test events tool.
func ShowHelp() {
	_, _ = os.Stdout.WriteString(`Calpulse Test Event Generator
=============================

Generates synthetic calendar events shaped like a real working week and
writes them as a JSON array in the Graph event format.

Usage:
  go run cmd/test-events/main.go [options]

Options:
  -start string
        First day, YYYY-MM-DD (default: today)
  -end string
        Last day, YYYY-MM-DD (default: start + 6 days)
  -per-day int
        Events per day (default 3)
  -min int
        Minimum duration in minutes (default 30)
  -max int
        Maximum duration in minutes (default 60)
  -tz string
        Timezone label stored on each event (default "UTC")
  -realistic
        Generate a realistic week from -start instead
  -output string
        Output file for generated events (default: generated_events_TIMESTAMP.json)
  -log string
        Log file for tool output (default: test_events_TIMESTAMP.log)
  -analyze
        Log range metadata, time series and insights for the generated set
  -verbose
        Enable verbose logging
  -help
        Show this help message

Examples:
  # One week with default settings
  go run cmd/test-events/main.go -start 2024-01-01

  # A busy fortnight with analytics
  go run cmd/test-events/main.go -start 2024-01-01 -end 2024-01-14 -per-day 7 -analyze

  # A realistic week
  go run cmd/test-events/main.go -start 2024-01-01 -realistic
`)
}

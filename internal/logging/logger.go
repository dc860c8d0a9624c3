// Package logging provides structured logging for flow-throughput.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"time"
)

// NewLogger creates a stderr logger with the specified format and level.
// Format should be "json" or "text".
// Level should be "debug", "info", "warn", or "error".
func NewLogger(format, level string, verbose bool) *slog.Logger {
	logLevel := parseLevel(level)
	if verbose {
		logLevel = slog.LevelDebug
	}
	return slog.New(newHandler(os.Stderr, format, &slog.HandlerOptions{
		Level:     logLevel,
		AddSource: logLevel == slog.LevelDebug,
	}))
}

// NewLoggerWithWriter creates a logger that writes to a custom writer.
// Unknown formats fall back to text. Useful for testing.
func NewLoggerWithWriter(w io.Writer, format, level string) *slog.Logger {
	return slog.New(newHandler(w, format, &slog.HandlerOptions{Level: parseLevel(level)}))
}

func newHandler(w io.Writer, format string, opts *slog.HandlerOptions) slog.Handler {
	if strings.EqualFold(format, "json") {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

// parseLevel converts a string level to slog.Level.
func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// SetDefault sets the default logger for the slog package.
func SetDefault(logger *slog.Logger) {
	slog.SetDefault(logger)
}

// WithRun tags every record with the analysis run and test identifiers.
func WithRun(logger *slog.Logger, runID, testID string) *slog.Logger {
	return logger.With("run_id", runID, "test_id", testID)
}

// Phase logs the start of a pipeline phase and returns a function that logs
// its completion with the elapsed time. The returned function reports the
// elapsed duration so callers can record it elsewhere.
func Phase(logger *slog.Logger, name string) func(attrs ...any) time.Duration {
	start := time.Now()
	logger.Debug("phase_start", "phase", name)
	return func(attrs ...any) time.Duration {
		elapsed := time.Since(start)
		args := append([]any{"phase", name, "elapsed", elapsed}, attrs...)
		logger.Info("phase_done", args...)
		return elapsed
	}
}

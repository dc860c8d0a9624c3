package config

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"time"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validate checks the configuration for errors and inconsistencies.
// Returns nil if valid, or an error describing the problem.
func Validate(cfg *Config) error {
	var errs []error

	// Test directory is required
	if cfg.TestDir == "" {
		errs = append(errs, ValidationError{
			Field:   "test_dir",
			Message: "test directory is required",
		})
	}

	// Thresholds must be positive
	if len(cfg.Thresholds) == 0 {
		errs = append(errs, ValidationError{
			Field:   "thresholds",
			Message: "at least one threshold is required",
		})
	}
	seen := make(map[int64]bool, len(cfg.Thresholds))
	for _, t := range cfg.Thresholds {
		if t <= 0 {
			errs = append(errs, ValidationError{
				Field:   "thresholds",
				Message: fmt.Sprintf("must be positive (got %d)", t),
			})
		}
		if seen[t] {
			errs = append(errs, ValidationError{
				Field:   "thresholds",
				Message: fmt.Sprintf("duplicate threshold %d", t),
			})
		}
		seen[t] = true
	}

	if cfg.Flows < 0 {
		errs = append(errs, ValidationError{
			Field:   "flows",
			Message: "must be >= 0",
		})
	}

	if cfg.SmoothWindow < time.Millisecond {
		errs = append(errs, ValidationError{
			Field:   "smooth_window",
			Message: fmt.Sprintf("must be at least 1ms (got %v)", cfg.SmoothWindow),
		})
	}

	if cfg.ArtifactEps < 0 {
		errs = append(errs, ValidationError{
			Field:   "artifact_eps",
			Message: "must be >= 0",
		})
	}

	if cfg.SummaryFile == "" || cfg.SeriesFile == "" {
		errs = append(errs, ValidationError{
			Field:   "summary",
			Message: "output file names must not be empty",
		})
	}

	// Cache driver must be valid
	driver := strings.ToLower(cfg.CacheDriver)
	validDrivers := map[string]bool{"file": true, "sqlite": true, "redis": true, "none": true, "": true}
	if !validDrivers[driver] {
		errs = append(errs, ValidationError{
			Field:   "cache_driver",
			Message: fmt.Sprintf("must be one of: file, sqlite, redis, none (got %q)", cfg.CacheDriver),
		})
	}
	if driver == "redis" {
		if err := validateHostPort(cfg.RedisAddr); err != nil {
			errs = append(errs, ValidationError{
				Field:   "redis_addr",
				Message: err.Error(),
			})
		}
	}
	if cfg.RedisDB < 0 {
		errs = append(errs, ValidationError{
			Field:   "redis_db",
			Message: "must be >= 0",
		})
	}
	if cfg.CacheTTL < 0 {
		errs = append(errs, ValidationError{
			Field:   "cache_ttl",
			Message: "must be >= 0",
		})
	}

	// Log format must be valid
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[cfg.LogFormat] {
		errs = append(errs, ValidationError{
			Field:   "log_format",
			Message: fmt.Sprintf("must be 'json' or 'text' (got %q)", cfg.LogFormat),
		})
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(cfg.LogLevel)] {
		errs = append(errs, ValidationError{
			Field:   "log_level",
			Message: fmt.Sprintf("must be debug, info, warn or error (got %q)", cfg.LogLevel),
		})
	}

	// -metrics only makes sense while watching
	if cfg.MetricsAddr != "" {
		if !cfg.Watch {
			errs = append(errs, ValidationError{
				Field:   "metrics_addr",
				Message: "-metrics requires -watch",
			})
		} else if err := validateHostPort(cfg.MetricsAddr); err != nil {
			errs = append(errs, ValidationError{
				Field:   "metrics_addr",
				Message: err.Error(),
			})
		}
	}

	if cfg.Watch {
		if cfg.WatchDebounce <= 0 {
			errs = append(errs, ValidationError{
				Field:   "watch_debounce",
				Message: "must be positive",
			})
		}
	}

	if cfg.TUIEnabled && cfg.Quiet {
		errs = append(errs, ValidationError{
			Field:   "quiet",
			Message: "-quiet cannot be combined with -tui",
		})
	}

	// Return combined errors
	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}

// validateHostPort checks a host:port address.
func validateHostPort(addr string) error {
	if addr == "" {
		return errors.New("must not be empty")
	}
	if strings.Contains(addr, "://") {
		return errors.New("must be host:port, not a URL")
	}
	if _, _, err := net.SplitHostPort(addr); err != nil {
		return fmt.Errorf("invalid address: %w", err)
	}
	return nil
}

// ApplyCheckMode modifies config for -check mode: verbose, no outputs
// that outlive the run.
func ApplyCheckMode(cfg *Config) {
	cfg.Verbose = true
	cfg.Watch = false
	cfg.TUIEnabled = false
	cfg.SkipPreflight = false
}

// Package config provides configuration management for flow-throughput.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.yaml.in/yaml/v3"

	"github.com/randomizedcoder/go-flow-throughput/internal/cache"
)

// Config holds all configuration options for an analysis run.
type Config struct {
	// Input
	TestDir string `json:"test_dir" yaml:"test_dir"`
	TestID  string `json:"test_id" yaml:"test_id"` // "" = derived from TestDir

	// Throughput
	Thresholds   Thresholds    `json:"thresholds" yaml:"thresholds"` // interval thresholds
	Flows        int           `json:"flows" yaml:"flows"`           // 0 = max observed
	SmoothWindow time.Duration `json:"smooth_window" yaml:"smooth_window"`

	// Artifact filtering
	Artifacts   bool    `json:"artifacts" yaml:"artifacts"`
	ArtifactEps float64 `json:"artifact_eps" yaml:"artifact_eps"` // 0 = auto

	// Output
	OutDir      string `json:"out" yaml:"out"` // "" = TestDir
	SummaryFile string `json:"summary" yaml:"summary"`
	SeriesFile  string `json:"series" yaml:"series"`
	CSVFile     string `json:"csv" yaml:"csv"` // "" = disabled

	// Cache
	CacheDriver   string        `json:"cache_driver" yaml:"cache_driver"` // file, sqlite, redis, none
	CacheDir      string        `json:"cache_dir" yaml:"cache_dir"`       // "" = <out>/.bytecount-cache
	CacheSQLite   string        `json:"cache_sqlite" yaml:"cache_sqlite"` // "" = <cache dir>/bytecount.db
	RedisAddr     string        `json:"redis_addr" yaml:"redis_addr"`
	RedisPassword string        `json:"-" yaml:"redis_password"`
	RedisDB       int           `json:"redis_db" yaml:"redis_db"`
	CacheTTL      time.Duration `json:"cache_ttl" yaml:"cache_ttl"`
	RefreshCache  bool          `json:"refresh_cache" yaml:"refresh_cache"`

	// Observability
	MetricsFile string `json:"metrics_file" yaml:"metrics_file"`
	MetricsAddr string `json:"metrics_addr" yaml:"metrics_addr"` // watch mode only
	LogFormat   string `json:"log_format" yaml:"log_format"`     // json, text
	LogLevel    string `json:"log_level" yaml:"log_level"`
	Verbose     bool   `json:"verbose" yaml:"verbose"`

	// Presentation
	TUIEnabled bool `json:"tui" yaml:"tui"`
	Quiet      bool `json:"quiet" yaml:"quiet"`

	// Watch mode
	Watch         bool          `json:"watch" yaml:"watch"`
	WatchDebounce time.Duration `json:"watch_debounce" yaml:"watch_debounce"`

	// Diagnostic modes
	Check         bool `json:"check" yaml:"-"`
	SkipPreflight bool `json:"skip_preflight" yaml:"skip_preflight"`

	ConfigFile string `json:"config_file" yaml:"-"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		// Throughput
		Thresholds:   Thresholds{2, 50, 100},
		Flows:        0, // Max observed
		SmoothWindow: 100 * time.Millisecond,

		// Output
		SummaryFile: "test_summary.json",
		SeriesFile:  "throughput_series.json",

		// Cache
		CacheDriver: "file",
		CacheTTL:    7 * 24 * time.Hour,

		// Observability
		LogFormat: "text",
		LogLevel:  "info",

		// Watch
		WatchDebounce: 500 * time.Millisecond,
	}
}

// LoadFile reads a YAML config file over cfg. Keys absent from the file keep
// their current values.
func LoadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

// OutputDir returns the directory outputs are written to.
func (c *Config) OutputDir() string {
	if c.OutDir != "" {
		return c.OutDir
	}
	return c.TestDir
}

// ResolvedTestID returns TestID, or one derived from the test directory.
func (c *Config) ResolvedTestID() string {
	if c.TestID != "" {
		return c.TestID
	}
	return cache.DeriveTestID(c.TestDir)
}

// CacheConfig builds the byte-count cache configuration.
func (c *Config) CacheConfig() cache.Config {
	dir := c.CacheDir
	if dir == "" {
		dir = filepath.Join(c.OutputDir(), ".bytecount-cache")
	}
	path := c.CacheSQLite
	if path == "" {
		path = filepath.Join(dir, "bytecount.db")
	}
	return cache.Config{
		Driver:        c.CacheDriver,
		Dir:           dir,
		Path:          path,
		RedisAddr:     c.RedisAddr,
		RedisPassword: c.RedisPassword,
		RedisDB:       c.RedisDB,
		TTL:           c.CacheTTL,
	}
}

// PrimaryThreshold returns the interval threshold used for the main
// series and the report.
func (c *Config) PrimaryThreshold() int64 {
	for _, t := range c.Thresholds {
		if t == 50 {
			return t
		}
	}
	if len(c.Thresholds) > 0 {
		return c.Thresholds[0]
	}
	return 50
}

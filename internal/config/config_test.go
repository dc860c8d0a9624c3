package config

import (
	"errors"
	"flag"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestThresholds_String(t *testing.T) {
	testCases := []struct {
		input    Thresholds
		expected string
	}{
		{Thresholds{}, ""},
		{Thresholds{50}, "50"},
		{Thresholds{2, 50, 100}, "2,50,100"},
	}

	for _, tc := range testCases {
		result := tc.input.String()
		if result != tc.expected {
			t.Errorf("String() = %q, want %q", result, tc.expected)
		}
	}
}

func TestThresholds_Set(t *testing.T) {
	testCases := []struct {
		input   string
		want    Thresholds
		wantErr bool
	}{
		{"2,50,100", Thresholds{2, 50, 100}, false},
		{" 10 , 20 ", Thresholds{10, 20}, false},
		{"50ms,100ms", Thresholds{50, 100}, false},
		{"25", Thresholds{25}, false},
		{"a,b", nil, true},
	}

	for _, tc := range testCases {
		t.Run(tc.input, func(t *testing.T) {
			th := Thresholds{7}
			err := th.Set(tc.input)
			if (err != nil) != tc.wantErr {
				t.Fatalf("Set(%q) error = %v, wantErr %v", tc.input, err, tc.wantErr)
			}
			if tc.wantErr {
				return
			}
			if th.String() != tc.want.String() {
				t.Errorf("Set(%q) = %v, want %v", tc.input, th, tc.want)
			}
		})
	}
}

func TestFlagType(t *testing.T) {
	testCases := []struct {
		name     string
		defValue string
		expected string
	}{
		{"bool true", "true", ""},
		{"bool false", "false", ""},
		{"int", "42", "int"},
		{"string", "text", "string"},
		{"duration ms", "100ms", "duration"},
		{"duration hours", "168h0m0s", "duration"},
		{"list", "2,50,100", "list"},
		{"empty", "", "string"},
		{"zero", "0", "int"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			f := &flag.Flag{
				Name:     "test",
				DefValue: tc.defValue,
			}
			result := flagType(f)
			if result != tc.expected {
				t.Errorf("flagType(%q) = %q, want %q", tc.defValue, result, tc.expected)
			}
		})
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	// Verify critical defaults
	if cfg.Thresholds.String() != "2,50,100" {
		t.Errorf("Thresholds = %v, want 2,50,100", cfg.Thresholds)
	}
	if cfg.Flows != 0 {
		t.Errorf("Flows = %d, want 0", cfg.Flows)
	}
	if cfg.SmoothWindow != 100*time.Millisecond {
		t.Errorf("SmoothWindow = %v, want 100ms", cfg.SmoothWindow)
	}
	if cfg.CacheDriver != "file" {
		t.Errorf("CacheDriver = %q, want %q", cfg.CacheDriver, "file")
	}
	if cfg.Artifacts {
		t.Error("Artifacts should be false by default")
	}
	if cfg.PrimaryThreshold() != 50 {
		t.Errorf("PrimaryThreshold() = %d, want 50", cfg.PrimaryThreshold())
	}
}

// =============================================================================
// Flag parsing
// =============================================================================

func TestParseArgs(t *testing.T) {
	cfg, err := parseArgs([]string{
		"-thresholds", "10,20",
		"-flows", "3",
		"-smooth-window", "250ms",
		"-artifacts",
		"-cache-driver", "none",
		"-log-format", "json",
		"./results/test_1",
	}, io.Discard)
	if err != nil {
		t.Fatalf("parseArgs() error = %v", err)
	}

	if cfg.TestDir != "./results/test_1" {
		t.Errorf("TestDir = %q", cfg.TestDir)
	}
	if cfg.Thresholds.String() != "10,20" {
		t.Errorf("Thresholds = %v, want 10,20", cfg.Thresholds)
	}
	if cfg.Flows != 3 || cfg.SmoothWindow != 250*time.Millisecond || !cfg.Artifacts {
		t.Errorf("parsed config = %+v", cfg)
	}
	if cfg.CacheDriver != "none" || cfg.LogFormat != "json" {
		t.Errorf("CacheDriver/LogFormat = %q/%q", cfg.CacheDriver, cfg.LogFormat)
	}
}

func TestParseArgs_Help(t *testing.T) {
	var out strings.Builder
	_, err := parseArgs([]string{"-h"}, &out)
	if !errors.Is(err, flag.ErrHelp) {
		t.Fatalf("parseArgs(-h) error = %v, want flag.ErrHelp", err)
	}
	for _, want := range []string{"Byte-Count Cache:", "-thresholds list", "-cache-driver string"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("usage missing %q", want)
		}
	}
}

func TestParseArgs_TooManyDirs(t *testing.T) {
	if _, err := parseArgs([]string{"a", "b"}, io.Discard); err == nil {
		t.Error("expected error for two test directories")
	}
}

func TestParseArgs_ConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flowtp.yaml")
	yamlData := `
test_dir: /data/test_9
thresholds: [5, 50]
smooth_window: 200ms
artifacts: true
cache_driver: sqlite
log_level: debug
`
	if err := os.WriteFile(path, []byte(yamlData), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := parseArgs([]string{"-config", path, "-log-level", "warn"}, io.Discard)
	if err != nil {
		t.Fatalf("parseArgs() error = %v", err)
	}

	if cfg.TestDir != "/data/test_9" {
		t.Errorf("TestDir = %q, want from file", cfg.TestDir)
	}
	if cfg.Thresholds.String() != "5,50" {
		t.Errorf("Thresholds = %v, want 5,50", cfg.Thresholds)
	}
	if cfg.SmoothWindow != 200*time.Millisecond {
		t.Errorf("SmoothWindow = %v, want 200ms", cfg.SmoothWindow)
	}
	if !cfg.Artifacts || cfg.CacheDriver != "sqlite" {
		t.Errorf("Artifacts/CacheDriver = %v/%q", cfg.Artifacts, cfg.CacheDriver)
	}
	if cfg.LogLevel != "warn" {
		t.Errorf("LogLevel = %q, explicit flag should override the file", cfg.LogLevel)
	}
	if cfg.SeriesFile != "throughput_series.json" {
		t.Errorf("SeriesFile = %q, keys absent from the file keep defaults", cfg.SeriesFile)
	}
}

func TestParseArgs_MissingConfigFile(t *testing.T) {
	_, err := parseArgs([]string{"-config", filepath.Join(t.TempDir(), "nope.yaml")}, io.Discard)
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("error = %v, want not-exist", err)
	}
}

// =============================================================================
// Derived values
// =============================================================================

func TestCacheConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TestDir = "/data/test_1"

	cc := cfg.CacheConfig()
	if cc.Dir != filepath.Join("/data/test_1", ".bytecount-cache") {
		t.Errorf("Dir = %q", cc.Dir)
	}
	if cc.Path != filepath.Join(cc.Dir, "bytecount.db") {
		t.Errorf("Path = %q", cc.Path)
	}

	cfg.OutDir = "/tmp/out"
	cfg.CacheSQLite = "/var/cache/flowtp.db"
	cc = cfg.CacheConfig()
	if cc.Dir != filepath.Join("/tmp/out", ".bytecount-cache") || cc.Path != "/var/cache/flowtp.db" {
		t.Errorf("CacheConfig() = %+v", cc)
	}
}

func TestResolvedTestID(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TestDir = t.TempDir()
	if id := cfg.ResolvedTestID(); !strings.HasPrefix(id, filepath.Base(cfg.TestDir)+"-") {
		t.Errorf("ResolvedTestID() = %q", id)
	}
	cfg.TestID = "explicit"
	if id := cfg.ResolvedTestID(); id != "explicit" {
		t.Errorf("ResolvedTestID() = %q, want explicit", id)
	}
}

func TestPrimaryThreshold(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Thresholds = Thresholds{10, 20}
	if got := cfg.PrimaryThreshold(); got != 10 {
		t.Errorf("PrimaryThreshold() = %d, want 10", got)
	}
}

// =============================================================================
// Validation
// =============================================================================

func validConfig() *Config {
	cfg := DefaultConfig()
	cfg.TestDir = "/data/test_1"
	return cfg
}

func TestValidate_ValidConfig(t *testing.T) {
	if err := Validate(validConfig()); err != nil {
		t.Errorf("Valid config should not error: %v", err)
	}
}

func TestValidate_Invalid(t *testing.T) {
	testCases := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"missing test dir", func(c *Config) { c.TestDir = "" }, "test_dir"},
		{"no thresholds", func(c *Config) { c.Thresholds = nil }, "thresholds"},
		{"zero threshold", func(c *Config) { c.Thresholds = Thresholds{0, 50} }, "thresholds"},
		{"duplicate threshold", func(c *Config) { c.Thresholds = Thresholds{50, 50} }, "thresholds"},
		{"negative flows", func(c *Config) { c.Flows = -1 }, "flows"},
		{"tiny smooth window", func(c *Config) { c.SmoothWindow = time.Microsecond }, "smooth_window"},
		{"negative eps", func(c *Config) { c.ArtifactEps = -0.1 }, "artifact_eps"},
		{"bad driver", func(c *Config) { c.CacheDriver = "memcached" }, "cache_driver"},
		{"redis without addr", func(c *Config) { c.CacheDriver = "redis" }, "redis_addr"},
		{"redis url", func(c *Config) {
			c.CacheDriver = "redis"
			c.RedisAddr = "redis://localhost:6379"
		}, "redis_addr"},
		{"bad log format", func(c *Config) { c.LogFormat = "xml" }, "log_format"},
		{"bad log level", func(c *Config) { c.LogLevel = "trace" }, "log_level"},
		{"metrics without watch", func(c *Config) { c.MetricsAddr = "127.0.0.1:9000" }, "metrics_addr"},
		{"tui with quiet", func(c *Config) {
			c.TUIEnabled = true
			c.Quiet = true
		}, "quiet"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			tc.mutate(cfg)
			err := Validate(cfg)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tc.field) {
				t.Errorf("error %q should mention %s", err, tc.field)
			}
		})
	}
}

func TestValidate_RedisWithAddr(t *testing.T) {
	cfg := validConfig()
	cfg.CacheDriver = "redis"
	cfg.RedisAddr = "localhost:6379"
	if err := Validate(cfg); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestValidate_MultipleErrors(t *testing.T) {
	cfg := validConfig()
	cfg.TestDir = ""
	cfg.Flows = -2
	cfg.LogFormat = "xml"

	err := Validate(cfg)
	if err == nil {
		t.Fatal("Expected multiple errors")
	}

	var ve ValidationError
	if !errors.As(err, &ve) {
		t.Errorf("errors.As(ValidationError) failed for %v", err)
	}

	errStr := err.Error()
	for _, field := range []string{"test_dir", "flows", "log_format"} {
		if !strings.Contains(errStr, field) {
			t.Errorf("Error should mention %s", field)
		}
	}
}

func TestApplyCheckMode(t *testing.T) {
	cfg := validConfig()
	cfg.Watch = true
	cfg.SkipPreflight = true
	ApplyCheckMode(cfg)

	if !cfg.Verbose || cfg.Watch || cfg.SkipPreflight {
		t.Errorf("check mode config = %+v", cfg)
	}
}

func TestValidationError_Error(t *testing.T) {
	err := ValidationError{
		Field:   "test_field",
		Message: "test message",
	}

	errStr := err.Error()
	if errStr != "test_field: test message" {
		t.Errorf("Error string = %q, want %q", errStr, "test_field: test message")
	}
}

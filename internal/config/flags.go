package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// Thresholds is a custom flag type for the comma-separated interval
// thresholds in milliseconds ("2,50,100").
type Thresholds []int64

func (t *Thresholds) String() string {
	if t == nil {
		return ""
	}
	parts := make([]string, len(*t))
	for i, v := range *t {
		parts[i] = strconv.FormatInt(v, 10)
	}
	return strings.Join(parts, ",")
}

// Set replaces the list.
func (t *Thresholds) Set(value string) error {
	var out Thresholds
	for _, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		v, err := strconv.ParseInt(strings.TrimSuffix(part, "ms"), 10, 64)
		if err != nil {
			return fmt.Errorf("invalid threshold %q", part)
		}
		out = append(out, v)
	}
	*t = out
	return nil
}

const usageHeader = `flow-throughput - byte-count reconstruction and throughput analysis

Usage:
  flow-throughput [flags] <test_dir>

`

const usageFooter = `
Examples:
  # Analyse one test with the default thresholds
  flow-throughput ./results/test_42

  # Artifact filtering and a shared cache
  flow-throughput -artifacts -cache-driver redis -redis-addr localhost:6379 ./results/test_42

  # Re-run whenever the test files change
  flow-throughput -watch -metrics 127.0.0.1:17092 ./results/test_42

`

// ParseArgs parses command-line arguments (without the program name) and
// returns a Config. A -config file is applied first and explicit flags
// override it. Returns flag.ErrHelp for -h.
func ParseArgs(args []string) (*Config, error) {
	return parseArgs(args, os.Stderr)
}

func parseArgs(args []string, stderr io.Writer) (*Config, error) {
	cfg := DefaultConfig()
	fs := newFlagSet(cfg, stderr)
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if cfg.ConfigFile != "" {
		fileCfg := DefaultConfig()
		if err := LoadFile(cfg.ConfigFile, fileCfg); err != nil {
			return nil, err
		}
		fileCfg.ConfigFile = cfg.ConfigFile
		cfg = fileCfg
		fs = newFlagSet(cfg, stderr)
		if err := fs.Parse(args); err != nil {
			return nil, err
		}
	}

	// Positional argument: test directory
	if rest := fs.Args(); len(rest) >= 1 {
		cfg.TestDir = rest[0]
		if len(rest) > 1 {
			return nil, errors.New("only one test directory may be given")
		}
	}

	return cfg, nil
}

// newFlagSet binds every flag to a field of cfg.
func newFlagSet(cfg *Config, stderr io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet("flow-throughput", flag.ContinueOnError)
	fs.SetOutput(stderr)

	fs.Usage = func() {
		fmt.Fprint(stderr, usageHeader)
		fmt.Fprintf(stderr, "Input:\n")
		printFlagCategory(fs, stderr, []string{"config", "test-id", "skip-preflight", "check"})

		fmt.Fprintf(stderr, "\nThroughput:\n")
		printFlagCategory(fs, stderr, []string{"thresholds", "flows", "smooth-window"})

		fmt.Fprintf(stderr, "\nArtifact Filtering:\n")
		printFlagCategory(fs, stderr, []string{"artifacts", "artifact-eps"})

		fmt.Fprintf(stderr, "\nOutput:\n")
		printFlagCategory(fs, stderr, []string{"out", "summary", "series", "csv"})

		fmt.Fprintf(stderr, "\nByte-Count Cache:\n")
		printFlagCategory(fs, stderr, []string{"cache-driver", "cache-dir", "cache-sqlite",
			"redis-addr", "redis-password", "redis-db", "cache-ttl", "refresh-cache"})

		fmt.Fprintf(stderr, "\nObservability:\n")
		printFlagCategory(fs, stderr, []string{"metrics-file", "metrics", "log-format", "log-level", "v"})

		fmt.Fprintf(stderr, "\nPresentation:\n")
		printFlagCategory(fs, stderr, []string{"tui", "quiet"})

		fmt.Fprintf(stderr, "\nWatch Mode:\n")
		printFlagCategory(fs, stderr, []string{"watch", "watch-debounce"})

		fmt.Fprint(stderr, usageFooter)
	}

	// Input
	fs.StringVar(&cfg.ConfigFile, "config", cfg.ConfigFile, "YAML config file (flags override it)")
	fs.StringVar(&cfg.TestID, "test-id", cfg.TestID, "Cache identifier for the test (default: derived from the directory)")
	fs.BoolVar(&cfg.SkipPreflight, "skip-preflight", cfg.SkipPreflight, "Skip input file checks")
	fs.BoolVar(&cfg.Check, "check", cfg.Check, "Run input file checks and exit")

	// Throughput
	fs.Var(&cfg.Thresholds, "thresholds", "Comma-separated interval thresholds in ms")
	fs.IntVar(&cfg.Flows, "flows", cfg.Flows, "Flow count for the single-series policies (0 = max observed)")
	fs.DurationVar(&cfg.SmoothWindow, "smooth-window", cfg.SmoothWindow, "Rolling window for the smoothed series")

	// Artifact filtering
	fs.BoolVar(&cfg.Artifacts, "artifacts", cfg.Artifacts, "Also analyse the byte-count map with DBSCAN artifacts removed")
	fs.Float64Var(&cfg.ArtifactEps, "artifact-eps", cfg.ArtifactEps, "DBSCAN radius in standardized units (0 = auto)")

	// Output
	fs.StringVar(&cfg.OutDir, "out", cfg.OutDir, "Output directory (default: the test directory)")
	fs.StringVar(&cfg.SummaryFile, "summary", cfg.SummaryFile, "Summary file name")
	fs.StringVar(&cfg.SeriesFile, "series", cfg.SeriesFile, "Throughput series file name")
	fs.StringVar(&cfg.CSVFile, "csv", cfg.CSVFile, "Append the flattened summary as a row of this CSV file")

	// Cache
	fs.StringVar(&cfg.CacheDriver, "cache-driver", cfg.CacheDriver, `Cache driver: "file", "sqlite", "redis" or "none"`)
	fs.StringVar(&cfg.CacheDir, "cache-dir", cfg.CacheDir, "File cache root (default: <out>/.bytecount-cache)")
	fs.StringVar(&cfg.CacheSQLite, "cache-sqlite", cfg.CacheSQLite, "SQLite cache file (default: <cache-dir>/bytecount.db)")
	fs.StringVar(&cfg.RedisAddr, "redis-addr", cfg.RedisAddr, "Redis address for the redis cache driver")
	fs.StringVar(&cfg.RedisPassword, "redis-password", cfg.RedisPassword, "Redis password")
	fs.IntVar(&cfg.RedisDB, "redis-db", cfg.RedisDB, "Redis database number")
	fs.DurationVar(&cfg.CacheTTL, "cache-ttl", cfg.CacheTTL, "Redis entry expiry (0 = never)")
	fs.BoolVar(&cfg.RefreshCache, "refresh-cache", cfg.RefreshCache, "Recompute the byte-count map and overwrite the cache")

	// Observability
	fs.StringVar(&cfg.MetricsFile, "metrics-file", cfg.MetricsFile, "Write Prometheus metrics to this file at exit")
	fs.StringVar(&cfg.MetricsAddr, "metrics", cfg.MetricsAddr, "Serve Prometheus metrics on this address in watch mode")
	fs.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, `Log format: "json" or "text"`)
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, `Log level: "debug", "info", "warn" or "error"`)
	fs.BoolVar(&cfg.Verbose, "v", cfg.Verbose, "Verbose logging")

	// Presentation
	fs.BoolVar(&cfg.TUIEnabled, "tui", cfg.TUIEnabled, "Browse the throughput series in a terminal UI")
	fs.BoolVar(&cfg.Quiet, "quiet", cfg.Quiet, "Do not print the report")

	// Watch mode
	fs.BoolVar(&cfg.Watch, "watch", cfg.Watch, "Re-run when the test files change")
	fs.DurationVar(&cfg.WatchDebounce, "watch-debounce", cfg.WatchDebounce, "Quiet period before a re-run")

	return fs
}

// printFlagCategory prints flags matching the given names (helper for usage).
func printFlagCategory(fs *flag.FlagSet, w io.Writer, names []string) {
	fs.VisitAll(func(f *flag.Flag) {
		for _, name := range names {
			if f.Name == name {
				fmt.Fprintf(w, "  -%s %s\n    \t%s", f.Name, flagType(f), f.Usage)
				if f.DefValue != "" && f.DefValue != "false" && f.DefValue != "0" && f.DefValue != "0s" && f.DefValue != "[]" {
					fmt.Fprintf(w, " (default %s)", f.DefValue)
				}
				fmt.Fprintln(w)
				return
			}
		}
	})
}

// flagType returns a type hint for the flag value.
func flagType(f *flag.Flag) string {
	// Infer type from default value format
	switch f.DefValue {
	case "true", "false":
		return ""
	}

	if strings.Contains(f.DefValue, ",") {
		return "list"
	}

	// Check if it looks like a duration
	if strings.HasSuffix(f.DefValue, "s") || strings.HasSuffix(f.DefValue, "m") || strings.HasSuffix(f.DefValue, "h") {
		return "duration"
	}

	// Check if numeric
	if _, err := fmt.Sscanf(f.DefValue, "%d", new(int)); err == nil {
		return "int"
	}

	return "string"
}

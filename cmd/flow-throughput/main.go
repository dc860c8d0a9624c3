// Package main provides the flow-throughput CLI entry point.
//
// flow-throughput reconstructs per-instant byte counts from the progress
// logs of a multi-stream network test and reports the throughput achieved
// while every flow was active.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/randomizedcoder/go-flow-throughput/internal/config"
	"github.com/randomizedcoder/go-flow-throughput/internal/logging"
	"github.com/randomizedcoder/go-flow-throughput/internal/orchestrator"
)

// version is set at build time via ldflags:
//
//	go build -ldflags "-X main.version=1.0.0" ./cmd/flow-throughput
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	// Handle version flag early (before flag parsing)
	if len(os.Args) > 1 {
		arg := os.Args[1]
		if arg == "-version" || arg == "--version" || arg == "version" {
			fmt.Printf("flow-throughput %s\n", version)
			return 0
		}
	}

	// Parse command-line flags
	cfg, err := config.ParseArgs(os.Args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		fmt.Fprintf(os.Stderr, "Error parsing flags: %v\n", err)
		return 1
	}

	// Validate configuration
	if err := config.Validate(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		return 1
	}

	// Apply -check mode modifications
	if cfg.Check {
		config.ApplyCheckMode(cfg)
	}

	// Initialize logger
	// When TUI is enabled, suppress logs to avoid interfering with TUI rendering
	var logger *slog.Logger
	if cfg.TUIEnabled {
		logger = logging.NewLoggerWithWriter(io.Discard, "json", "info")
	} else {
		logger = logging.NewLogger(cfg.LogFormat, cfg.LogLevel, cfg.Verbose)
	}
	logging.SetDefault(logger)

	// Log startup
	logger.Info("starting",
		"version", version,
		"test_dir", cfg.TestDir,
		"out", cfg.OutputDir(),
		"thresholds_ms", cfg.Thresholds.String(),
		"artifacts", cfg.Artifacts,
		"cache_driver", cfg.CacheDriver,
		"watch", cfg.Watch,
	)

	// Print startup banner
	if !cfg.Quiet && !cfg.TUIEnabled && !cfg.Check {
		printBanner(cfg)
	}

	orch := orchestrator.New(cfg, logger, version)
	if err := orch.Run(context.Background()); err != nil {
		logger.Error("run_failed", "error", err)
		return 1
	}

	return 0
}

// printBanner prints the startup banner.
func printBanner(cfg *config.Config) {
	fmt.Println()
	fmt.Println("╔═══════════════════════════════════════════════════════════════════╗")
	fmt.Println("║                        flow-throughput                            ║")
	fmt.Println("║      Byte-Count Reconstruction and Throughput Analysis            ║")
	fmt.Println("╚═══════════════════════════════════════════════════════════════════╝")
	fmt.Println()
	fmt.Printf("  Test:        %s\n", cfg.TestDir)
	fmt.Printf("  Output:      %s\n", cfg.OutputDir())
	fmt.Printf("  Thresholds:  %s ms\n", cfg.Thresholds.String())
	if cfg.Flows > 0 {
		fmt.Printf("  Flows:       %d\n", cfg.Flows)
	} else {
		fmt.Println("  Flows:       max observed")
	}
	if cfg.Artifacts {
		fmt.Println("  Artifacts:   DBSCAN filtering enabled")
	}
	fmt.Printf("  Cache:       %s\n", cfg.CacheDriver)
	if cfg.Watch {
		if cfg.MetricsAddr != "" {
			fmt.Printf("  Metrics:     http://%s/metrics\n", cfg.MetricsAddr)
		}
		fmt.Println()
		fmt.Println("Watching for input changes. Press Ctrl+C to stop.")
	}
	fmt.Println()
}

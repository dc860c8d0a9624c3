// Package orchestrator coordinates one invocation: input checks, a single or
// watched analysis, the report or dashboard, the metrics endpoint, and the
// exit summary.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"sync"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/randomizedcoder/go-flow-throughput/internal/config"
	"github.com/randomizedcoder/go-flow-throughput/internal/ingest"
	"github.com/randomizedcoder/go-flow-throughput/internal/metrics"
	"github.com/randomizedcoder/go-flow-throughput/internal/pipeline"
	"github.com/randomizedcoder/go-flow-throughput/internal/preflight"
	"github.com/randomizedcoder/go-flow-throughput/internal/stats"
	"github.com/randomizedcoder/go-flow-throughput/internal/tui"
	"github.com/randomizedcoder/go-flow-throughput/internal/watch"
)

// ErrChecksFailed is returned by -check mode when an input check fails.
var ErrChecksFailed = errors.New("input checks failed")

// reportWidth is the width of reports printed without a terminal size.
const reportWidth = 100

// Orchestrator coordinates all components for one invocation.
type Orchestrator struct {
	config  *config.Config
	logger  *slog.Logger
	version string
	out     io.Writer

	metrics       *metrics.Collector
	metricsServer *metrics.Server

	startTime time.Time

	mu   sync.Mutex
	last *pipeline.Result
}

// New creates a new Orchestrator with the given configuration.
func New(cfg *config.Config, logger *slog.Logger, version string) *Orchestrator {
	collector := metrics.NewCollector(metrics.CollectorConfig{Version: version})

	o := &Orchestrator{
		config:  cfg,
		logger:  logger,
		version: version,
		out:     os.Stdout,
		metrics: collector,
	}
	if cfg.Watch && cfg.MetricsAddr != "" {
		o.metricsServer = metrics.NewServer(cfg.MetricsAddr, collector, logger)
	}
	return o
}

// SetOutput redirects reports and summaries, which go to stdout by default.
func (o *Orchestrator) SetOutput(w io.Writer) { o.out = w }

// Run executes the invocation. It blocks until the analysis is done or, in
// watch mode, until ctx is cancelled or a signal arrives.
func (o *Orchestrator) Run(ctx context.Context) error {
	o.startTime = time.Now()

	if o.config.Check {
		return o.check()
	}

	// Setup signal handling
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case sig := <-sigCh:
			o.logger.Info("received_signal", "signal", sig.String())
			cancel()
		case <-ctx.Done():
		}
	}()

	// Start metrics server
	if o.metricsServer != nil {
		if err := o.metricsServer.Start(); err != nil {
			return fmt.Errorf("failed to start metrics server: %w", err)
		}
	}

	var err error
	switch {
	case o.config.TUIEnabled:
		err = o.runDashboard(ctx, cancel)
	case o.config.Watch:
		err = o.runWatch(ctx)
	default:
		err = o.runOnce(ctx)
	}

	// Graceful shutdown with timeout
	if o.metricsServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		if serr := o.metricsServer.Shutdown(shutdownCtx); serr != nil {
			o.logger.Warn("metrics_server_shutdown_error", "error", serr)
		}
		shutdownCancel()
	}

	if ferr := o.writeMetricsFile(); ferr != nil {
		err = errors.Join(err, ferr)
	}

	if !o.config.Quiet && !o.config.TUIEnabled {
		o.printExitSummary()
	}
	return err
}

// check runs the input checks and decodes the inputs without analysing them.
func (o *Orchestrator) check() error {
	result := preflight.RunAll(o.config.TestDir, o.config.OutputDir())
	preflight.FprintResults(o.out, result)
	if !result.Passed {
		return ErrChecksFailed
	}

	test, err := ingest.Load(o.config.TestDir, o.logger)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrChecksFailed, err)
	}
	fmt.Fprintf(o.out, "  %s test: %d streams, %d skipped, %s events\n\n",
		test.Kind, len(test.Records), len(test.Skipped), stats.FormatNumber(int64(test.EventCount())))
	return nil
}

// analyze runs the pipeline once and keeps the result.
func (o *Orchestrator) analyze(ctx context.Context) (*pipeline.Result, error) {
	res, err := pipeline.Run(ctx, o.config, o.logger, o.metrics)
	if err != nil {
		return nil, err
	}
	o.mu.Lock()
	o.last = res
	o.mu.Unlock()
	return res, nil
}

func (o *Orchestrator) printReport(res *pipeline.Result) {
	if o.config.Quiet {
		return
	}
	fmt.Fprintln(o.out, tui.RenderReport(res, reportWidth))
}

func (o *Orchestrator) runOnce(ctx context.Context) error {
	res, err := o.analyze(ctx)
	if err != nil {
		return err
	}
	o.printReport(res)
	return nil
}

// runWatch analyses once, then again after every change to the inputs. A
// failed run is logged and does not stop watching.
func (o *Orchestrator) runWatch(ctx context.Context) error {
	rerun := func(ctx context.Context, _ []string) error {
		res, err := o.analyze(ctx)
		if err != nil {
			return err
		}
		o.printReport(res)
		return nil
	}

	if err := rerun(ctx, nil); err != nil {
		o.logger.Warn("initial_run_failed", "error", err)
	}

	w := watch.New(o.config.TestDir, o.config.WatchDebounce, o.logger)
	return w.Run(ctx, rerun)
}

// runDashboard runs the analysis behind the interactive dashboard. Quitting
// the dashboard ends the invocation.
func (o *Orchestrator) runDashboard(ctx context.Context, cancel context.CancelFunc) error {
	model := tui.New(tui.Config{
		TestDir:     o.config.TestDir,
		MetricsAddr: o.config.MetricsAddr,
		Watching:    o.config.Watch,
	})
	p := tea.NewProgram(model, tea.WithAltScreen())

	send := func(res *pipeline.Result, err error) {
		if err != nil {
			tui.SendError(p, err)
			return
		}
		tui.SendResult(p, res)
	}

	errc := make(chan error, 1)
	go func() {
		res, err := o.analyze(ctx)
		send(res, err)
		if !o.config.Watch {
			errc <- err
			return
		}
		w := watch.New(o.config.TestDir, o.config.WatchDebounce, o.logger)
		errc <- w.Run(ctx, func(ctx context.Context, _ []string) error {
			res, err := o.analyze(ctx)
			send(res, err)
			return err
		})
	}()
	go func() {
		<-ctx.Done()
		tui.SendQuit(p)
	}()

	if _, err := p.Run(); err != nil {
		cancel()
		return fmt.Errorf("dashboard: %w", err)
	}
	cancel()
	return <-errc
}

func (o *Orchestrator) writeMetricsFile() error {
	if o.config.MetricsFile == "" {
		return nil
	}
	if err := o.metrics.WriteFile(o.config.MetricsFile); err != nil {
		return err
	}
	o.logger.Info("metrics_written", "path", o.config.MetricsFile)
	return nil
}

// printExitSummary prints a summary of the invocation.
func (o *Orchestrator) printExitSummary() {
	summary := o.metrics.GenerateSummary()
	w := o.out

	fmt.Fprintln(w)
	fmt.Fprintln(w, "═══════════════════════════════════════════════════════════════════")
	fmt.Fprintln(w, "                      flow-throughput Exit Summary")
	fmt.Fprintln(w, "═══════════════════════════════════════════════════════════════════")
	fmt.Fprintf(w, "Run Duration:           %s\n", stats.FormatDuration(time.Since(o.startTime)))
	fmt.Fprintf(w, "Runs:                   %d (%d failed)\n", summary.Runs, summary.Failures)
	fmt.Fprintln(w)

	if len(summary.PhaseTime) > 0 {
		phases := make([]string, 0, len(summary.PhaseTime))
		for name := range summary.PhaseTime {
			phases = append(phases, name)
		}
		sort.Slice(phases, func(i, j int) bool {
			return summary.PhaseTime[phases[i]] > summary.PhaseTime[phases[j]]
		})
		fmt.Fprintln(w, "Phase Time:")
		for _, name := range phases {
			fmt.Fprintf(w, "  %-22s%s\n", name+":", summary.PhaseTime[name].Round(time.Microsecond))
		}
		fmt.Fprintln(w)
	}

	if res := o.LastResult(); res != nil {
		v := res.Primary()
		fmt.Fprintln(w, "Last Result:")
		fmt.Fprintf(w, "  Test:                 %s (%s)\n", res.TestID, res.Test.Kind)
		fmt.Fprintf(w, "  Flows:                %d\n", v.Flows)
		if s, ok := v.Interval(o.config.PrimaryThreshold()); ok {
			fmt.Fprintf(w, "  Interval %-12s  %s mean over %d points\n",
				fmt.Sprintf("%dms:", s.ThresholdMs), stats.FormatMbps(s.Summary.MeanMbps), s.Summary.NumPoints)
		}
		fmt.Fprintf(w, "  Accurate:             %s\n", stats.FormatMbps(v.Smoothed.AccurateMbps))
		fmt.Fprintf(w, "  Byte loss:            %s\n", stats.FormatPercent(res.Validation.PercentLoss))
		fmt.Fprintf(w, "  Outputs:              %s\n", o.config.OutputDir())
		fmt.Fprintln(w)
	}

	if o.metricsServer != nil {
		fmt.Fprintf(w, "Metrics endpoint was: http://%s/metrics\n", o.metricsServer.Addr())
	}
	fmt.Fprintln(w, "═══════════════════════════════════════════════════════════════════")
}

// Metrics returns the metrics collector for external access.
func (o *Orchestrator) Metrics() *metrics.Collector {
	return o.metrics
}

// LastResult returns the latest successful result, or nil.
func (o *Orchestrator) LastResult() *pipeline.Result {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.last
}

// Package pipeline runs a complete analysis of one test directory: input
// checks, normalization, timeline aggregation, cached redistribution,
// validation, flow selection, optional artifact filtering, every throughput
// policy, and the statistics outputs.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/randomizedcoder/go-flow-throughput/internal/artifact"
	"github.com/randomizedcoder/go-flow-throughput/internal/bytecount"
	"github.com/randomizedcoder/go-flow-throughput/internal/cache"
	"github.com/randomizedcoder/go-flow-throughput/internal/config"
	"github.com/randomizedcoder/go-flow-throughput/internal/ingest"
	"github.com/randomizedcoder/go-flow-throughput/internal/logging"
	"github.com/randomizedcoder/go-flow-throughput/internal/metrics"
	"github.com/randomizedcoder/go-flow-throughput/internal/preflight"
	"github.com/randomizedcoder/go-flow-throughput/internal/redistribute"
	"github.com/randomizedcoder/go-flow-throughput/internal/selection"
	"github.com/randomizedcoder/go-flow-throughput/internal/stats"
	"github.com/randomizedcoder/go-flow-throughput/internal/throughput"
	"github.com/randomizedcoder/go-flow-throughput/internal/timeline"
)

// ErrPreflight is returned when a required input check fails.
var ErrPreflight = errors.New("preflight checks failed")

// Result is everything one run produced.
type Result struct {
	RunID  string
	TestID string

	Preflight    *preflight.Result
	Test         *ingest.Test
	Timeline     timeline.Timeline
	Sockets      timeline.SocketReport
	SocketGroups []timeline.SocketGroup

	Counts          bytecount.Map
	DroppedBaseline map[int]int64
	CacheHit        bool

	Validation bytecount.Validation
	Selection  selection.Result

	Raw *Variant
	// Filtered is nil unless artifact filtering ran.
	Filtered  *Variant
	Artifacts *artifact.Metrics

	Stats   *stats.Accumulator
	Outputs []string
	Elapsed time.Duration
}

// Primary returns the variant reports should show: the filtered one when
// artifact filtering ran.
func (r *Result) Primary() *Variant {
	if r.Filtered != nil {
		return r.Filtered
	}
	return r.Raw
}

type runner struct {
	cfg       *config.Config
	logger    *slog.Logger
	collector *metrics.Collector
	res       *Result
}

// Run analyses cfg.TestDir. collector may be nil.
func Run(ctx context.Context, cfg *config.Config, logger *slog.Logger, collector *metrics.Collector) (*Result, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if collector == nil {
		collector = metrics.NewCollector(metrics.CollectorConfig{})
	}

	start := time.Now()
	res := &Result{
		RunID:  uuid.NewString(),
		TestID: cfg.ResolvedTestID(),
		Stats:  stats.NewAccumulator(cfg.OutputDir()),
	}
	r := &runner{
		cfg:       cfg,
		logger:    logging.WithRun(logger, res.RunID, res.TestID),
		collector: collector,
		res:       res,
	}

	r.logger.Info("run_starting", "test_dir", cfg.TestDir, "out", cfg.OutputDir())
	err := r.run(ctx)
	res.Elapsed = time.Since(start)
	collector.RecordRun(err)
	if err != nil {
		r.logger.Error("run_failed", "error", err, "elapsed", res.Elapsed)
		return res, err
	}
	r.logger.Info("run_complete", "elapsed", res.Elapsed, "outputs", len(res.Outputs))
	return res, nil
}

// phase times fn, logs it and records it in metrics and the summary.
func (r *runner) phase(name string, fn func() error) error {
	done := logging.Phase(r.logger, name)
	err := fn()
	var elapsed time.Duration
	if err != nil {
		elapsed = done("error", err)
	} else {
		elapsed = done()
	}
	r.collector.RecordPhase(name, elapsed)
	r.res.Stats.AddPhase(name, map[string]any{
		"elapsed_ms": float64(elapsed.Microseconds()) / 1000,
	})
	return err
}

func (r *runner) run(ctx context.Context) error {
	cfg, res := r.cfg, r.res

	if !cfg.SkipPreflight {
		if err := r.phase("preflight", r.runPreflight); err != nil {
			return err
		}
	}
	if err := r.phase("load", r.load); err != nil {
		return err
	}
	if err := r.phase("timeline", r.buildTimeline); err != nil {
		return err
	}
	if err := r.phase("redistribute", func() error { return r.redistributeCounts(ctx) }); err != nil {
		return err
	}
	if err := r.phase("validate", r.validate); err != nil {
		return err
	}
	if err := r.phase("select", r.selectFlows); err != nil {
		return err
	}
	if err := r.phase("throughput", r.computeThroughput); err != nil {
		return err
	}
	if cfg.Artifacts {
		if err := r.phase("artifacts", r.filterArtifacts); err != nil {
			return err
		}
	}
	if err := r.phase("statistics", r.collectStats); err != nil {
		return err
	}
	if err := r.phase("outputs", r.writeOutputs); err != nil {
		return err
	}

	r.collector.SetInput(metrics.InputUpdate{
		TestType:       string(res.Test.Kind),
		Streams:        len(res.Test.Records),
		SkippedStreams: len(res.Test.Skipped),
		Events:         res.Test.EventCount(),
		TimelinePoints: res.Timeline.Len(),
		ClampedDeltas:  res.Test.Clamped,
	})
	return nil
}

func (r *runner) runPreflight() error {
	result := preflight.RunAll(r.cfg.TestDir, r.cfg.OutputDir())
	r.res.Preflight = result
	if result.Passed {
		return nil
	}
	var failed []string
	for _, c := range result.Checks {
		if !c.Passed {
			failed = append(failed, c.Name+": "+c.Message)
		}
	}
	return fmt.Errorf("%w: %s", ErrPreflight, strings.Join(failed, "; "))
}

func (r *runner) load() error {
	test, err := ingest.Load(r.cfg.TestDir, r.logger)
	if err != nil {
		return fmt.Errorf("load %s: %w", r.cfg.TestDir, err)
	}
	r.res.Test = test
	return nil
}

func (r *runner) buildTimeline() error {
	res := r.res
	tl, err := timeline.Build(res.Test.Records)
	if err != nil {
		return fmt.Errorf("build timeline: %w", err)
	}
	res.Timeline = tl

	spans := timeline.Spans(res.Test.Records)
	report, err := timeline.LoadSockets(filepath.Join(r.cfg.TestDir, ingest.SocketFile), spans, r.logger)
	if err != nil {
		return err
	}
	res.Sockets = report
	res.SocketGroups = timeline.SocketGroups(spans)
	r.logger.Debug("timeline_built",
		"points", tl.Len(),
		"duration_ms", tl.DurationMs(),
		"sockets", report.Associated,
	)
	return nil
}

func (r *runner) redistributeCounts(ctx context.Context) error {
	res := r.res
	store, err := cache.Open(ctx, r.cfg.CacheConfig(), r.logger)
	if err != nil {
		return err
	}
	if store != nil {
		defer store.Close()
	}

	key := cache.Key{
		TestID:  res.TestID,
		Version: redistribute.AlgorithmVersion,
		Digest:  res.Test.Fingerprint(),
	}
	counts, hit, err := cache.LoadOrCompute(ctx, store, key, r.cfg.RefreshCache, func() (bytecount.Map, error) {
		out := redistribute.Redistribute(res.Test.Records, res.Timeline)
		return out.Counts, nil
	})
	if err != nil {
		return err
	}
	if store != nil {
		r.collector.RecordCache(hit)
	}

	res.Counts = counts
	res.CacheHit = hit
	res.DroppedBaseline = redistribute.Baselines(res.Test.Records)
	for id, b := range res.DroppedBaseline {
		r.logger.Debug("baseline_dropped", "stream_id", id, "bytes", b)
	}
	r.logger.Info("byte_count_ready",
		"entries", len(counts),
		"cache_hit", hit,
		"cache_key", key.String(),
	)
	return nil
}

func (r *runner) validate() error {
	res := r.res
	var dropped int64
	for _, b := range res.DroppedBaseline {
		dropped += b
	}
	res.Validation = bytecount.Validate(res.Test.Raw(), res.Counts, dropped)
	r.collector.SetValidation(res.Validation)

	if dropped > 0 {
		r.logger.Warn("baseline_bytes_dropped",
			"bytes", dropped,
			"streams", len(res.DroppedBaseline),
		)
	}
	r.logger.Info("byte_count_validated",
		"raw_bytes", res.Validation.RawBytes,
		"processed_bytes", res.Validation.ProcessedBytes,
		"percent_loss", res.Validation.PercentLoss,
	)
	return nil
}

func (r *runner) selectFlows() error {
	res := r.res
	res.Selection = selection.Analyze(res.Counts)
	r.logger.Info("flows_selected",
		"max_flows", res.Selection.MaxFlows,
		"max_flow_points", res.Selection.Impact.MaxFlowPoints,
		"percent_time_excluded", res.Selection.Impact.PercentTimeExcluded,
	)
	return nil
}

// flows returns the flow count the single-series policies use.
func (r *runner) flows() int {
	if r.cfg.Flows > 0 {
		return r.cfg.Flows
	}
	return r.res.Selection.MaxFlows
}

func (r *runner) variant(name string, counts bytecount.Map) *Variant {
	src := throughput.Source{
		Times:  r.res.Timeline.Times(),
		Counts: counts,
		Begin:  r.res.Timeline.Begin(),
	}
	return analyze(name, src, r.flows(), r.cfg.Thresholds, r.cfg.PrimaryThreshold(),
		r.res.Selection.MaxFlows, r.cfg.SmoothWindow.Milliseconds())
}

func (r *runner) computeThroughput() error {
	r.res.Raw = r.variant("raw", r.res.Counts)
	r.recordVariant(r.res.Raw)
	return nil
}

func (r *runner) recordVariant(v *Variant) {
	for _, s := range v.Intervals {
		policy := v.Name + "_" + policyName(s.ThresholdMs)
		r.collector.SetThroughput(policy, s.Summary)
		r.collector.SetDiscarded(policy, s.Discarded)
	}
	r.collector.SetThroughput(v.Name+"_traditional", v.Traditional.Summary)
	r.collector.SetThroughput(v.Name+"_flow_change", v.FlowChange.Summary)

	if s, ok := v.Interval(r.cfg.PrimaryThreshold()); ok {
		r.logger.Info("throughput_computed",
			"variant", v.Name,
			"flows", v.Flows,
			"policy", policyName(s.ThresholdMs),
			"points", s.Summary.NumPoints,
			"mean_mbps", s.Summary.MeanMbps,
			"accurate_mbps", v.Smoothed.AccurateMbps,
		)
	}
}

// filterArtifacts filters the points at the analysed flow count with DBSCAN and
// recomputes every policy on what remains.
func (r *runner) filterArtifacts() error {
	res := r.res
	flows := r.flows()
	atFlows := res.Counts.Filter(func(_ int64, e bytecount.Entry) bool { return e.Flows == flows })

	det, err := artifact.DetectWithEps(atFlows, r.cfg.ArtifactEps)
	if errors.Is(err, artifact.ErrInsufficientData) {
		r.logger.Warn("artifact_detection_skipped", "reason", err.Error(), "points", len(atFlows))
		return nil
	}
	if err != nil {
		return err
	}

	filtered, m := artifact.Filter(atFlows, det)
	res.Artifacts = &m
	r.collector.SetArtifacts(m.Artifacts)
	r.logger.Info("artifacts_detected",
		"artifacts", m.Artifacts,
		"remaining", m.Remaining,
		"eps", m.Eps,
		"clusters", m.Clusters,
	)

	res.Filtered = r.variant("dbscan", filtered)
	r.recordVariant(res.Filtered)
	return nil
}

// Package metrics provides Prometheus metrics for flow-throughput runs.
//
// A batch run records its metrics into a private registry and writes them in
// the text exposition format at exit (-metrics-file). In watch mode the same
// registry is served over HTTP and accumulates across re-runs.
package metrics

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"

	"github.com/randomizedcoder/go-flow-throughput/internal/bytecount"
	"github.com/randomizedcoder/go-flow-throughput/internal/throughput"
)

const namespace = "flowtp"

// PhaseBuckets cover sub-millisecond parsing up to multi-second sweeps.
var PhaseBuckets = prometheus.ExponentialBuckets(0.0005, 4, 10)

// Collector manages all Prometheus metrics for analysis runs.
type Collector struct {
	registry     *prometheus.Registry
	buildVersion string

	// --- Run Overview ---
	info          *prometheus.GaugeVec
	runsTotal     prometheus.Counter
	failuresTotal prometheus.Counter
	lastRunTime   prometheus.Gauge
	phaseSeconds  *prometheus.HistogramVec

	// --- Input ---
	streams        *prometheus.GaugeVec
	events         prometheus.Gauge
	timelinePoints prometheus.Gauge
	clampedDeltas  prometheus.Gauge

	// --- Byte Accounting ---
	rawBytes         prometheus.Gauge
	processedBytes   prometheus.Gauge
	droppedBaseline  prometheus.Gauge
	byteLossPercent  prometheus.Gauge
	maxFlows         prometheus.Gauge
	artifactPoints   prometheus.Gauge
	cacheLookupTotal *prometheus.CounterVec

	// --- Throughput ---
	throughputMbps     *prometheus.GaugeVec
	discardedIntervals *prometheus.GaugeVec

	mu        sync.Mutex
	runs      int64
	failures  int64
	phaseTime map[string]time.Duration
}

// CollectorConfig holds configuration for the collector.
type CollectorConfig struct {
	Version string
}

// NewCollector creates a collector with its own registry.
func NewCollector(cfg CollectorConfig) *Collector {
	return NewCollectorWithRegistry(cfg, prometheus.NewRegistry())
}

// NewCollectorWithRegistry creates a collector registering into registry.
// Useful for testing.
func NewCollectorWithRegistry(cfg CollectorConfig, registry *prometheus.Registry) *Collector {
	c := &Collector{
		registry:  registry,
		phaseTime: make(map[string]time.Duration),

		info: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "info",
			Help:      "Information about the analysis (value always 1)",
		}, []string{"version", "test_type"}),
		runsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Total analysis runs",
		}),
		failuresTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "run_failures_total",
			Help:      "Total analysis runs that returned an error",
		}),
		lastRunTime: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the last run finished",
		}),
		phaseSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "phase_duration_seconds",
			Help:      "Duration of each pipeline phase",
			Buckets:   PhaseBuckets,
		}, []string{"phase"}),

		streams: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "streams",
			Help:      "Streams in the last run by state",
		}, []string{"state"}),
		events: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "events",
			Help:      "Progress events in the last run",
		}),
		timelinePoints: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "timeline_points",
			Help:      "Distinct timestamps in the aggregated timeline",
		}),
		clampedDeltas: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "clamped_deltas",
			Help:      "Negative upload position deltas clamped to zero",
		}),

		rawBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "raw_bytes",
			Help:      "Bytes reported by the input streams",
		}),
		processedBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "processed_bytes",
			Help:      "Bytes in the redistributed byte-count map",
		}),
		droppedBaseline: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "dropped_baseline_bytes",
			Help:      "Bytes of first stream events dropped as baselines",
		}),
		byteLossPercent: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "byte_loss_percent",
			Help:      "Percent of raw bytes missing from the byte-count map",
		}),
		maxFlows: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "max_flows",
			Help:      "Maximum concurrent contributing flows",
		}),
		artifactPoints: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "artifact_points",
			Help:      "Byte-count entries flagged as measurement artifacts",
		}),
		cacheLookupTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "Byte-count cache lookups by result",
		}, []string{"result"}),

		throughputMbps: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "throughput_mbps",
			Help:      "Throughput summary statistics per policy",
		}, []string{"policy", "stat"}),
		discardedIntervals: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "discarded_intervals",
			Help:      "Partial windows discarded by the interval policy",
		}, []string{"policy"}),
	}

	registry.MustRegister(
		c.info,
		c.runsTotal,
		c.failuresTotal,
		c.lastRunTime,
		c.phaseSeconds,

		c.streams,
		c.events,
		c.timelinePoints,
		c.clampedDeltas,

		c.rawBytes,
		c.processedBytes,
		c.droppedBaseline,
		c.byteLossPercent,
		c.maxFlows,
		c.artifactPoints,
		c.cacheLookupTotal,

		c.throughputMbps,
		c.discardedIntervals,
	)

	c.buildVersion = cfg.Version
	if c.buildVersion == "" {
		c.buildVersion = "dev"
	}
	c.info.WithLabelValues(c.buildVersion, "unknown").Set(1)
	return c
}

// Registry returns the registry the collector writes to.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// =============================================================================
// Update Methods
// =============================================================================

// InputUpdate describes the loaded test.
type InputUpdate struct {
	TestType       string
	Streams        int
	SkippedStreams int
	Events         int
	TimelinePoints int
	ClampedDeltas  int
}

// SetInput records the shape of the loaded test.
func (c *Collector) SetInput(u InputUpdate) {
	c.info.Reset()
	c.info.WithLabelValues(c.buildVersion, u.TestType).Set(1)
	c.streams.WithLabelValues("loaded").Set(float64(u.Streams))
	c.streams.WithLabelValues("skipped").Set(float64(u.SkippedStreams))
	c.events.Set(float64(u.Events))
	c.timelinePoints.Set(float64(u.TimelinePoints))
	c.clampedDeltas.Set(float64(u.ClampedDeltas))
}

// SetValidation records byte accounting.
func (c *Collector) SetValidation(v bytecount.Validation) {
	c.rawBytes.Set(float64(v.RawBytes))
	c.processedBytes.Set(v.ProcessedBytes)
	c.droppedBaseline.Set(float64(v.DroppedBaseline))
	c.byteLossPercent.Set(v.PercentLoss)
	c.maxFlows.Set(float64(v.MaxFlows))
}

// SetArtifacts records the number of flagged artifact entries.
func (c *Collector) SetArtifacts(n int) {
	c.artifactPoints.Set(float64(n))
}

// RecordCache counts a cache lookup.
func (c *Collector) RecordCache(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	c.cacheLookupTotal.WithLabelValues(result).Inc()
}

// SetThroughput records the summary of one policy's series.
func (c *Collector) SetThroughput(policy string, s throughput.Summary) {
	for stat, v := range map[string]float64{
		"mean":   s.MeanMbps,
		"median": s.MedianMbps,
		"min":    s.MinMbps,
		"max":    s.MaxMbps,
		"p5":     s.P5Mbps,
		"p95":    s.P95Mbps,
		"p99":    s.P99Mbps,
	} {
		c.throughputMbps.WithLabelValues(policy, stat).Set(v)
	}
}

// SetDiscarded records how many partial windows a policy discarded.
func (c *Collector) SetDiscarded(policy string, d throughput.DiscardedStats) {
	c.discardedIntervals.WithLabelValues(policy).Set(float64(d.Intervals))
}

// RecordPhase observes the duration of a pipeline phase.
func (c *Collector) RecordPhase(phase string, d time.Duration) {
	c.phaseSeconds.WithLabelValues(phase).Observe(d.Seconds())

	c.mu.Lock()
	c.phaseTime[phase] += d
	c.mu.Unlock()
}

// RecordRun counts a finished run.
func (c *Collector) RecordRun(err error) {
	c.runsTotal.Inc()
	c.lastRunTime.SetToCurrentTime()

	c.mu.Lock()
	defer c.mu.Unlock()
	c.runs++
	if err != nil {
		c.failuresTotal.Inc()
		c.failures++
	}
}

// =============================================================================
// Summary Generation
// =============================================================================

// Summary holds totals across the runs recorded by a collector.
type Summary struct {
	Runs      int64
	Failures  int64
	PhaseTime map[string]time.Duration
}

// GenerateSummary returns the run totals.
func (c *Collector) GenerateSummary() *Summary {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := &Summary{
		Runs:      c.runs,
		Failures:  c.failures,
		PhaseTime: make(map[string]time.Duration, len(c.phaseTime)),
	}
	for k, v := range c.phaseTime {
		s.PhaseTime[k] = v
	}
	return s
}

// =============================================================================
// Exposition
// =============================================================================

// WriteText writes every registered metric in the Prometheus text format.
func (c *Collector) WriteText(w io.Writer) error {
	families, err := c.registry.Gather()
	if err != nil {
		return fmt.Errorf("gather metrics: %w", err)
	}
	enc := expfmt.NewEncoder(w, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, mf := range families {
		if err := enc.Encode(mf); err != nil {
			return fmt.Errorf("encode %s: %w", mf.GetName(), err)
		}
	}
	return nil
}

// WriteFile writes the text exposition to path.
func (c *Collector) WriteFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := c.WriteText(f); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

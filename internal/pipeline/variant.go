package pipeline

import (
	"fmt"
	"sort"

	"github.com/randomizedcoder/go-flow-throughput/internal/bytecount"
	"github.com/randomizedcoder/go-flow-throughput/internal/throughput"
)

// Series is one policy's output and its summary.
type Series struct {
	Points  []throughput.Point `json:"points"`
	Summary throughput.Summary `json:"summary"`
}

// IntervalSeries is an interval-policy series at one threshold.
type IntervalSeries struct {
	ThresholdMs int64                     `json:"threshold_ms"`
	Points      []throughput.Point        `json:"points"`
	Discarded   throughput.DiscardedStats `json:"discarded"`
	Summary     throughput.Summary        `json:"summary"`
}

// Variant holds every throughput policy computed over one byte-count map.
type Variant struct {
	Name   string
	Flows  int
	Counts bytecount.Map

	Intervals   []IntervalSeries
	Traditional Series
	FlowChange  Series
	Weighted    throughput.WeightedResult
	Smoothed    throughput.SmoothedResult
	// ByFlows holds the primary-threshold interval series per flow count.
	ByFlows map[int][]throughput.Point
}

// Interval returns the series at thresholdMs, if computed.
func (v *Variant) Interval(thresholdMs int64) (IntervalSeries, bool) {
	for _, s := range v.Intervals {
		if s.ThresholdMs == thresholdMs {
			return s, true
		}
	}
	return IntervalSeries{}, false
}

// analyze runs every policy over src at the given flow count.
func analyze(name string, src throughput.Source, flows int, thresholds []int64,
	primary int64, maxFlows int, smoothMs int64) *Variant {

	v := &Variant{Name: name, Flows: flows, Counts: src.Counts}

	sorted := append([]int64(nil), thresholds...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	for _, th := range sorted {
		points, discarded := throughput.IntervalTracked(src, flows, th)
		v.Intervals = append(v.Intervals, IntervalSeries{
			ThresholdMs: th,
			Points:      points,
			Discarded:   discarded,
			Summary:     throughput.Summarize(points),
		})
	}

	trad := throughput.Traditional(src, flows)
	v.Traditional = Series{Points: trad, Summary: throughput.Summarize(trad)}

	fc := throughput.FlowChange(src, flows)
	v.FlowChange = Series{Points: fc, Summary: throughput.Summarize(fc)}

	v.Weighted = throughput.Weighted(src, flows)
	v.Smoothed = throughput.Smoothed(src, flows, smoothMs)
	v.ByFlows = throughput.ByFlows(src, maxFlows, primary)
	return v
}

// policyName names an interval series in outputs and metrics.
func policyName(thresholdMs int64) string {
	return fmt.Sprintf("interval_%dms", thresholdMs)
}

// PolicyNames returns the keys of SeriesMap in display order: interval
// policies by threshold, then the single-series policies.
func (v *Variant) PolicyNames() []string {
	names := make([]string, 0, len(v.Intervals)+4)
	for _, s := range v.Intervals {
		names = append(names, policyName(s.ThresholdMs))
	}
	return append(names, "traditional", "flow_change", "weighted", "smoothed")
}

// SeriesMap returns every plotted series keyed by policy name.
func (v *Variant) SeriesMap() map[string][]throughput.Point {
	out := map[string][]throughput.Point{
		"traditional": nonNil(v.Traditional.Points),
		"flow_change": nonNil(v.FlowChange.Points),
		"weighted":    nonNil(v.Weighted.Points),
		"smoothed":    nonNil(v.Smoothed.Plot),
	}
	for _, s := range v.Intervals {
		out[policyName(s.ThresholdMs)] = nonNil(s.Points)
	}
	return out
}

func nonNil(p []throughput.Point) []throughput.Point {
	if p == nil {
		return []throughput.Point{}
	}
	return p
}

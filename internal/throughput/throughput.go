// Package throughput turns a byte-count map into throughput series.
//
// All policies walk consecutive timeline pairs (t[i-1], t[i]] for i >= 1. A
// pair qualifies when t[i] is present in the byte map with exactly the
// requested flow count. The policies differ in how qualifying sub-intervals
// are grouped into points:
//
//	Interval        accumulate until a time threshold is reached
//	IntervalTracked Interval, plus an account of abandoned partial windows
//	Traditional     one point per qualifying sub-interval
//	FlowChange      one point per run of qualifying sub-intervals
//	Weighted        per-sub-interval points weighted by duration
//	Smoothed        exact aggregate plus a trailing-window series
package throughput

import (
	"github.com/randomizedcoder/go-flow-throughput/internal/bytecount"
	"github.com/randomizedcoder/go-flow-throughput/internal/timeline"
)

// Point is one throughput observation. TimeSec is relative to the test begin.
type Point struct {
	TimeSec    float64 `json:"time"`
	Mbps       float64 `json:"throughput"`
	Bytes      float64 `json:"bytes"`
	DurationMs int64   `json:"duration_ms,omitempty"`
	Weight     float64 `json:"weight,omitempty"`
}

// DiscardedStats accounts for partial windows thrown away by IntervalTracked.
type DiscardedStats struct {
	Intervals int     `json:"intervals"`
	Objects   int     `json:"objects"`
	Bytes     float64 `json:"bytes"`
	TimeMs    int64   `json:"time_ms"`
}

// Source is the input of every policy. A timestamp of Times missing from
// Counts is non-qualifying, which lets filtered maps share the full timeline.
type Source struct {
	Times  []int64
	Counts bytecount.Map
	Begin  int64
}

// NewSource pairs a byte map with the timeline it was built on.
func NewSource(tl timeline.Timeline, counts bytecount.Map) Source {
	return Source{Times: tl.Times(), Counts: counts, Begin: tl.Begin()}
}

// Mbps converts bytes over milliseconds to megabits per second. Non-positive
// bytes or duration yield 0.
func Mbps(bytes, ms float64) float64 {
	if bytes <= 0 || ms <= 0 {
		return 0
	}
	return bytes / ms * 1000 * 8 / 1e6
}

// step is one timeline pair.
type step struct {
	prev, cur int64
	entry     bytecount.Entry
	ok        bool // cur is present in the map
}

func (s step) durationMs() int64 { return s.cur - s.prev }

func (s step) qualifies(flows int) bool { return s.ok && s.entry.Flows == flows }

func (src Source) each(fn func(step)) {
	for i := 1; i < len(src.Times); i++ {
		cur := src.Times[i]
		e, ok := src.Counts[cur]
		fn(step{prev: src.Times[i-1], cur: cur, entry: e, ok: ok})
	}
}

func (src Source) relSec(ts int64) float64 {
	return float64(ts-src.Begin) / 1000
}

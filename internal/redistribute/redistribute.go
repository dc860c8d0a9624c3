// Package redistribute spreads each stream's bytes over the global timeline.
//
// Every stream reports progress at its own instants. A native interval
// (S[j], S[j+1]] carries the bytes reported at S[j+1]; those bytes are split
// over the global sub-intervals (t[i-1], t[i]] that the native interval
// overlaps, in proportion to the overlap, and credited to t[i]. The flow
// count of a sub-interval is the number of distinct streams whose native
// intervals overlap it.
package redistribute

import (
	"sort"

	"github.com/randomizedcoder/go-flow-throughput/internal/bytecount"
	"github.com/randomizedcoder/go-flow-throughput/internal/ingest"
	"github.com/randomizedcoder/go-flow-throughput/internal/timeline"
)

// AlgorithmVersion identifies the redistribution rules in cache keys. Bump it
// whenever the output for a given input changes.
const AlgorithmVersion = 2

// Result is the redistributed byte map plus bookkeeping on what was dropped.
type Result struct {
	Counts bytecount.Map
	// DroppedBaseline holds, per stream, bytes reported on the stream's
	// first timestamp. No interval ends there, so they cannot be placed.
	DroppedBaseline map[int]int64
	Streams         int
}

// TotalDropped sums DroppedBaseline.
func (r *Result) TotalDropped() int64 {
	var total int64
	for _, b := range r.DroppedBaseline {
		total += b
	}
	return total
}

// Redistribute builds the byte map for records over tl. Every timeline
// timestamp gets an entry. Records are processed in slice order, so the
// floating point sums are reproducible for identical input.
func Redistribute(records []ingest.StreamRecord, tl timeline.Timeline) *Result {
	times := tl.Times()
	bytes := make([]float64, len(times))
	flows := make([]int, len(times))

	res := &Result{DroppedBaseline: make(map[int]int64)}
	for _, r := range records {
		native := collapse(r.Events)
		if len(native) == 0 {
			continue
		}
		res.Streams++
		if native[0].bytes > 0 {
			res.DroppedBaseline[r.ID] += native[0].bytes
		}
		sweep(native, times, bytes, flows)
	}

	res.Counts = make(bytecount.Map, len(times))
	for i, ts := range times {
		res.Counts[ts] = bytecount.Entry{Bytes: bytes[i], Flows: flows[i]}
	}
	return res
}

// Baselines returns, per stream, the bytes Redistribute drops as the
// stream's baseline. It does not need the timeline, so it also serves runs
// whose byte map came from a cache.
func Baselines(records []ingest.StreamRecord) map[int]int64 {
	out := make(map[int]int64)
	for _, r := range records {
		native := collapse(r.Events)
		if len(native) > 0 && native[0].bytes > 0 {
			out[r.ID] += native[0].bytes
		}
	}
	return out
}

type point struct {
	ts    int64
	bytes int64
}

// collapse sums deltas reported at the same timestamp. Events must be sorted
// by time.
func collapse(events []ingest.Event) []point {
	out := make([]point, 0, len(events))
	for _, e := range events {
		if n := len(out); n > 0 && out[n-1].ts == e.TimeMs {
			out[n-1].bytes += e.Bytes
			continue
		}
		out = append(out, point{ts: e.TimeMs, bytes: e.Bytes})
	}
	return out
}

// sweep walks the native intervals of one stream and the global timeline
// together. Both are sorted, so the timeline cursor only moves forward.
func sweep(native []point, times []int64, bytes []float64, flows []int) {
	if len(native) < 2 || len(times) < 2 {
		return
	}

	// first sub-interval whose end lies after the stream's first timestamp
	i := sort.Search(len(times), func(k int) bool { return times[k] > native[0].ts })
	i = max(i, 1)
	lastCounted := -1

	for j := 0; j+1 < len(native); j++ {
		start, end := native[j].ts, native[j+1].ts
		duration := float64(end - start)
		carried := float64(native[j+1].bytes)

		for i < len(times) && times[i-1] < end {
			lo := max(times[i-1], start)
			hi := min(times[i], end)
			if hi > lo {
				if carried > 0 {
					bytes[i] += carried * float64(hi-lo) / duration
				}
				if lastCounted != i {
					flows[i]++
					lastCounted = i
				}
			}
			if times[i] > end {
				// sub-interval straddles end; the next native interval
				// continues in it
				break
			}
			i++
		}
	}
}

// Package timeline builds the global timeline shared by all streams of a test
// and tracks when each stream was active.
package timeline

import (
	"errors"
	"slices"
	"sort"

	"github.com/randomizedcoder/go-flow-throughput/internal/ingest"
)

// ErrEmpty is returned when no stream carries any event.
var ErrEmpty = errors.New("timeline: no events")

// Timeline is the strictly increasing set of every event timestamp.
type Timeline struct {
	times []int64
}

// Build collects the distinct timestamps of all records.
func Build(records []ingest.StreamRecord) (Timeline, error) {
	seen := make(map[int64]struct{})
	for _, r := range records {
		for _, e := range r.Events {
			seen[e.TimeMs] = struct{}{}
		}
	}
	if len(seen) == 0 {
		return Timeline{}, ErrEmpty
	}
	times := make([]int64, 0, len(seen))
	for ts := range seen {
		times = append(times, ts)
	}
	slices.Sort(times)
	return Timeline{times: times}, nil
}

// FromTimes builds a timeline from arbitrary timestamps, deduplicating them.
func FromTimes(ts []int64) Timeline {
	times := slices.Clone(ts)
	slices.Sort(times)
	return Timeline{times: slices.Compact(times)}
}

// Len returns the number of timestamps.
func (t Timeline) Len() int { return len(t.times) }

// At returns the i-th timestamp.
func (t Timeline) At(i int) int64 { return t.times[i] }

// Begin is the earliest timestamp, the origin for relative point times.
func (t Timeline) Begin() int64 {
	if len(t.times) == 0 {
		return 0
	}
	return t.times[0]
}

// End is the latest timestamp.
func (t Timeline) End() int64 {
	if len(t.times) == 0 {
		return 0
	}
	return t.times[len(t.times)-1]
}

// Times returns a copy of the timestamps.
func (t Timeline) Times() []int64 { return slices.Clone(t.times) }

// Search returns the index of the first timestamp >= ts.
func (t Timeline) Search(ts int64) int {
	return sort.Search(len(t.times), func(i int) bool { return t.times[i] >= ts })
}

// DurationMs is End minus Begin.
func (t Timeline) DurationMs() int64 { return t.End() - t.Begin() }

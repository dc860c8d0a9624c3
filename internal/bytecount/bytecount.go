// Package bytecount holds the per-timestamp byte and flow counts produced by
// redistributing stream events onto the global timeline.
package bytecount

import (
	"maps"
	"slices"
)

// Entry is the redistributed traffic attributed to the sub-interval ending at
// a timestamp. Bytes is fractional because native intervals are split
// proportionally; Flows counts the streams active in the sub-interval.
type Entry struct {
	Bytes float64
	Flows int
}

// Map is keyed by timestamp in milliseconds.
type Map map[int64]Entry

// Timestamps returns the keys in ascending order.
func (m Map) Timestamps() []int64 {
	keys := make([]int64, 0, len(m))
	for ts := range m {
		keys = append(keys, ts)
	}
	slices.Sort(keys)
	return keys
}

// Clone returns an independent copy.
func (m Map) Clone() Map {
	if m == nil {
		return nil
	}
	return maps.Clone(m)
}

// Filter returns a new map holding only the entries for which keep returns true.
func (m Map) Filter(keep func(ts int64, e Entry) bool) Map {
	out := make(Map, len(m))
	for ts, e := range m {
		if keep(ts, e) {
			out[ts] = e
		}
	}
	return out
}

// TotalBytes sums Bytes over every entry, in timestamp order so the result
// does not depend on map iteration order.
func (m Map) TotalBytes() float64 {
	var total float64
	for _, ts := range m.Timestamps() {
		total += m[ts].Bytes
	}
	return total
}

// MaxFlows returns the highest flow count present, or 0 for an empty map.
func (m Map) MaxFlows() int {
	maxFlows := 0
	for _, e := range m {
		if e.Flows > maxFlows {
			maxFlows = e.Flows
		}
	}
	return maxFlows
}

// FlowHistogram counts entries per flow count.
func (m Map) FlowHistogram() map[int]int {
	hist := make(map[int]int)
	for _, e := range m {
		hist[e.Flows]++
	}
	return hist
}

// Package timeseries provides trailing-window aggregation over samples that
// arrive in timestamp order.
//
// Samples carry event time rather than wall-clock time, so a whole test can
// be replayed through a Window in one pass. Each sample is added and evicted
// once, giving linear cost over a series.
package timeseries

// Sample is one sub-interval: Bytes transferred during the IntervalMs that
// ended at TimeMs.
type Sample struct {
	TimeMs     int64
	Bytes      float64
	IntervalMs int64
}

// Stats is the aggregate of the samples inside a window.
type Stats struct {
	Bytes      float64
	IntervalMs int64
	Samples    int
}

// Window keeps the samples whose time lies in [t-width, t], where t is the
// time of the newest sample.
//
// Usage:
//
//	w := NewWindow(100)
//	for _, s := range samples {
//		stats := w.Push(s)
//		// stats covers the 100ms ending at s.TimeMs
//	}
type Window struct {
	widthMs int64
	samples []Sample
	head    int // index of the oldest retained sample

	bytes    float64
	interval int64

	totalBytes    float64
	totalInterval int64
	totalSamples  int
}

// NewWindow creates a window spanning widthMs milliseconds. A negative width
// is treated as zero, which keeps only samples sharing the newest timestamp.
func NewWindow(widthMs int64) *Window {
	return &Window{widthMs: max(widthMs, 0)}
}

// Push appends s, evicts samples that fell out of the window and returns the
// window aggregate. Samples must be pushed in non-decreasing time order.
func (w *Window) Push(s Sample) Stats {
	w.samples = append(w.samples, s)
	w.bytes += s.Bytes
	w.interval += s.IntervalMs

	w.totalBytes += s.Bytes
	w.totalInterval += s.IntervalMs
	w.totalSamples++

	start := s.TimeMs - w.widthMs
	for w.head < len(w.samples) && w.samples[w.head].TimeMs < start {
		old := w.samples[w.head]
		w.bytes -= old.Bytes
		w.interval -= old.IntervalMs
		w.head++
	}

	// compact once the evicted prefix dominates the backing array
	if w.head > 1024 && w.head*2 > len(w.samples) {
		n := copy(w.samples, w.samples[w.head:])
		w.samples = w.samples[:n]
		w.head = 0
	}

	return w.Current()
}

// Current returns the aggregate of the retained samples.
func (w *Window) Current() Stats {
	if w.head == len(w.samples) {
		return Stats{}
	}
	return Stats{Bytes: w.bytes, IntervalMs: w.interval, Samples: len(w.samples) - w.head}
}

// Totals returns the aggregate of every sample pushed since creation or the
// last Reset.
func (w *Window) Totals() Stats {
	return Stats{Bytes: w.totalBytes, IntervalMs: w.totalInterval, Samples: w.totalSamples}
}

// Reset clears all samples.
func (w *Window) Reset() {
	w.samples = w.samples[:0]
	w.head = 0
	w.bytes, w.interval = 0, 0
	w.totalBytes, w.totalInterval, w.totalSamples = 0, 0, 0
}

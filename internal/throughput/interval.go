package throughput

// window is the accumulation state shared by the grouping policies. It is
// idle when objects is zero.
type window struct {
	start   int64
	bytes   float64
	timeMs  int64
	objects int
}

func (w *window) idle() bool { return w.objects == 0 }

func (w *window) add(s step) {
	if w.idle() {
		w.start = s.prev
	}
	w.bytes += s.entry.Bytes
	w.timeMs += s.durationMs()
	w.objects++
}

func (w *window) reset() { *w = window{} }

// Interval groups qualifying sub-intervals into windows of at least
// thresholdMs. A non-qualifying sub-interval abandons the open window. Each
// point is stamped with its window's start time.
func Interval(src Source, flows int, thresholdMs int64) []Point {
	points, _ := IntervalTracked(src, flows, thresholdMs)
	return points
}

// IntervalTracked is Interval that also reports what it abandoned: partial
// windows reset by a non-qualifying sub-interval and the window left open at
// the end of the series. Emitted bytes plus discarded bytes equal the bytes
// of all qualifying sub-intervals.
func IntervalTracked(src Source, flows int, thresholdMs int64) ([]Point, DiscardedStats) {
	var (
		points    []Point
		discarded DiscardedStats
		w         window
	)
	discard := func() {
		if w.idle() {
			return
		}
		discarded.Intervals++
		discarded.Objects += w.objects
		discarded.Bytes += w.bytes
		discarded.TimeMs += w.timeMs
		w.reset()
	}

	src.each(func(s step) {
		if !s.qualifies(flows) {
			discard()
			return
		}
		w.add(s)
		if w.timeMs >= thresholdMs {
			points = append(points, Point{
				TimeSec:    src.relSec(w.start),
				Mbps:       Mbps(w.bytes, float64(w.timeMs)),
				Bytes:      w.bytes,
				DurationMs: w.timeMs,
			})
			w.reset()
		}
	})
	discard()
	return points, discarded
}

// FlowChange emits one point per maximal run of qualifying sub-intervals,
// closing the run when the flow count changes or the series ends. Runs with
// no bytes are skipped.
func FlowChange(src Source, flows int) []Point {
	var (
		points []Point
		w      window
	)
	flush := func() {
		if !w.idle() && w.bytes > 0 && w.timeMs > 0 {
			points = append(points, Point{
				TimeSec:    src.relSec(w.start),
				Mbps:       Mbps(w.bytes, float64(w.timeMs)),
				Bytes:      w.bytes,
				DurationMs: w.timeMs,
			})
		}
		w.reset()
	}

	src.each(func(s step) {
		if !s.qualifies(flows) {
			flush()
			return
		}
		w.add(s)
	})
	flush()
	return points
}

// ByFlows runs Interval for every flow count from 1 to maxFlows.
func ByFlows(src Source, maxFlows int, thresholdMs int64) map[int][]Point {
	out := make(map[int][]Point, maxFlows)
	for f := 1; f <= maxFlows; f++ {
		out[f] = Interval(src, f, thresholdMs)
	}
	return out
}

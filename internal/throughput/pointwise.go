package throughput

import (
	"github.com/randomizedcoder/go-flow-throughput/internal/timeseries"
)

// Traditional emits one point per qualifying sub-interval, stamped with the
// sub-interval's end.
func Traditional(src Source, flows int) []Point {
	var points []Point
	src.each(func(s step) {
		if !s.qualifies(flows) {
			return
		}
		points = append(points, Point{
			TimeSec:    src.relSec(s.cur),
			Mbps:       Mbps(s.entry.Bytes, float64(s.durationMs())),
			Bytes:      s.entry.Bytes,
			DurationMs: s.durationMs(),
		})
	})
	return points
}

// WeightedResult holds per-sub-interval points whose weights sum to one, so
// the weighted mean of Mbps equals OverallMbps.
type WeightedResult struct {
	Points      []Point `json:"points"`
	OverallMbps float64 `json:"overall_throughput"`
	TotalBytes  float64 `json:"total_bytes"`
	TotalTimeMs int64   `json:"total_time"`
}

// Weighted emits every qualifying sub-interval with weight equal to its
// share of the total qualifying time.
func Weighted(src Source, flows int) WeightedResult {
	var res WeightedResult
	src.each(func(s step) {
		if !s.qualifies(flows) {
			return
		}
		res.TotalBytes += s.entry.Bytes
		res.TotalTimeMs += s.durationMs()
		res.Points = append(res.Points, Point{
			TimeSec:    src.relSec(s.cur),
			Mbps:       Mbps(s.entry.Bytes, float64(s.durationMs())),
			Bytes:      s.entry.Bytes,
			DurationMs: s.durationMs(),
		})
	})
	if res.TotalTimeMs > 0 {
		for i := range res.Points {
			res.Points[i].Weight = float64(res.Points[i].DurationMs) / float64(res.TotalTimeMs)
		}
	}
	res.OverallMbps = Mbps(res.TotalBytes, float64(res.TotalTimeMs))
	return res
}

// SmoothedResult pairs an exact aggregate with a trailing-window series
// meant for plotting.
type SmoothedResult struct {
	AccurateMbps float64 `json:"accurate_throughput"`
	Plot         []Point `json:"plot_data"`
	TotalBytes   float64 `json:"total_bytes"`
	TotalTimeMs  int64   `json:"total_time"`
	PointsUsed   int     `json:"data_points_used"`
}

// Smoothed computes AccurateMbps from every qualifying sub-interval and a
// plot point per qualifying sub-interval averaging the qualifying
// sub-intervals that ended within the preceding windowMs.
func Smoothed(src Source, flows int, windowMs int64) SmoothedResult {
	var res SmoothedResult
	w := timeseries.NewWindow(windowMs)
	src.each(func(s step) {
		if !s.qualifies(flows) {
			return
		}
		cur := w.Push(timeseries.Sample{
			TimeMs:     s.cur,
			Bytes:      s.entry.Bytes,
			IntervalMs: s.durationMs(),
		})
		res.Plot = append(res.Plot, Point{
			TimeSec:    src.relSec(s.cur),
			Mbps:       Mbps(cur.Bytes, float64(cur.IntervalMs)),
			Bytes:      cur.Bytes,
			DurationMs: cur.IntervalMs,
		})
	})
	totals := w.Totals()
	res.TotalBytes = totals.Bytes
	res.TotalTimeMs = totals.IntervalMs
	res.PointsUsed = totals.Samples
	res.AccurateMbps = Mbps(totals.Bytes, float64(totals.IntervalMs))
	return res
}

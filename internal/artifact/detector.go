// Package artifact flags measurement artifacts in a byte-count map with
// density-based clustering (DBSCAN) over (time, throughput).
//
// Points that belong to no dense region of the standardized feature space
// are treated as artifacts, such as bursts logged at a single instant after a
// stall. The clustering radius is chosen automatically from the knee of the
// k-distance curve.
package artifact

import (
	"errors"
	"fmt"
	"math"

	"github.com/randomizedcoder/go-flow-throughput/internal/bytecount"
)

// Features per point: time and throughput.
const dimensions = 2

// MinPoints is the DBSCAN core threshold, twice the feature dimension.
const MinPoints = 2 * dimensions

// ErrInsufficientData is returned when there are too few points to choose a
// clustering radius.
var ErrInsufficientData = errors.New("artifact: insufficient data")

// Row is one byte-count entry with the derived features.
type Row struct {
	TimeMs     int64
	Bytes      float64
	Flows      int
	DeltaMs    int64
	Throughput float64 // bytes per ms
}

// Result is the per-row classification.
type Result struct {
	Rows     []Row
	Artifact []bool
	Eps      float64
	MinPts   int
	Clusters int
}

// Count returns the number of rows flagged as artifacts.
func (r *Result) Count() int {
	n := 0
	for _, a := range r.Artifact {
		if a {
			n++
		}
	}
	return n
}

// Detect classifies every entry of counts with an automatically chosen
// radius. The chronologically first entry is never an artifact.
func Detect(counts bytecount.Map) (*Result, error) {
	return DetectWithEps(counts, 0)
}

// DetectWithEps is Detect with a fixed clustering radius in standardized
// units. A non-positive eps selects the radius from the k-distance knee.
func DetectWithEps(counts bytecount.Map, eps float64) (*Result, error) {
	ts := counts.Timestamps()
	if len(ts) < MinPoints {
		return nil, fmt.Errorf("%w: %d points, need %d", ErrInsufficientData, len(ts), MinPoints)
	}

	rows := make([]Row, len(ts))
	for i, t := range ts {
		e := counts[t]
		var delta int64
		if i > 0 {
			delta = t - ts[i-1]
		}
		rows[i] = Row{
			TimeMs:     t,
			Bytes:      e.Bytes,
			Flows:      e.Flows,
			DeltaMs:    delta,
			Throughput: e.Bytes / (float64(delta) + 1e-6),
		}
	}

	x := make([]float64, len(rows))
	y := make([]float64, len(rows))
	for i, r := range rows {
		x[i] = float64(r.TimeMs)
		y[i] = r.Throughput
	}
	pts := points{x: standardize(x), y: standardize(y)}

	if eps <= 0 {
		kdist := make([]float64, pts.len())
		for i := range kdist {
			kdist[i] = pts.kthDistance(i, MinPoints-1)
		}
		eps = kneeEps(kdist)
	}

	labels, clusters := dbscan(pts, eps, MinPoints)
	res := &Result{
		Rows:     rows,
		Artifact: make([]bool, len(rows)),
		Eps:      eps,
		MinPts:   MinPoints,
		Clusters: clusters,
	}
	for i, l := range labels {
		res.Artifact[i] = l == noise
	}
	res.Artifact[0] = false
	return res, nil
}

// standardize rescales v to zero mean and unit population variance. A
// constant column only gets centered.
func standardize(v []float64) []float64 {
	var mean float64
	for _, x := range v {
		mean += x
	}
	mean /= float64(len(v))

	var ss float64
	for _, x := range v {
		ss += (x - mean) * (x - mean)
	}
	std := math.Sqrt(ss / float64(len(v)))
	if std == 0 {
		std = 1
	}

	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = (x - mean) / std
	}
	return out
}

// Metrics summarizes what filtering removed.
type Metrics struct {
	Artifacts          int     `json:"num_artifact_points"`
	Remaining          int     `json:"num_points_after_dbscan"`
	PercentArtifacts   float64 `json:"percent_artifact_points"`
	TimeRemovedMs      int64   `json:"time_removed_by_dbscan_ms"`
	PercentTimeRemoved float64 `json:"percent_time_removed_by_dbscan"`
	Eps                float64 `json:"eps"`
	Clusters           int     `json:"clusters"`
}

// Filter returns a copy of counts without the artifact rows of res. Removed
// time is the sum of the removed rows' gaps to their predecessors.
func Filter(counts bytecount.Map, res *Result) (bytecount.Map, Metrics) {
	drop := make(map[int64]bool)
	m := Metrics{Eps: res.Eps, Clusters: res.Clusters}
	var totalMs int64
	for i, r := range res.Rows {
		totalMs += r.DeltaMs
		if res.Artifact[i] {
			drop[r.TimeMs] = true
			m.Artifacts++
			m.TimeRemovedMs += r.DeltaMs
		}
	}

	filtered := counts.Filter(func(ts int64, _ bytecount.Entry) bool { return !drop[ts] })
	m.Remaining = len(filtered)
	if len(res.Rows) > 0 {
		m.PercentArtifacts = float64(m.Artifacts) / float64(len(res.Rows)) * 100
	}
	if totalMs > 0 {
		m.PercentTimeRemoved = float64(m.TimeRemovedMs) / float64(totalMs) * 100
	}
	return filtered, m
}

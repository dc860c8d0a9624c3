// Package selection measures how much of a test ran with every flow active
// and extracts those fully contributing points.
package selection

import (
	"github.com/randomizedcoder/go-flow-throughput/internal/bytecount"
)

// FlowShare is the number of timeline points observed at one flow count.
type FlowShare struct {
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
}

// Impact compares the max-flow points with everything else.
type Impact struct {
	TotalPoints       int     `json:"total_points"`
	TotalBytes        float64 `json:"total_bytes"`
	TotalDurationMs   int64   `json:"total_duration_ms"`
	MaxFlowPoints     int     `json:"max_flow_points"`
	MaxFlowBytes      float64 `json:"max_flow_bytes"`
	MaxFlowDurationMs int64   `json:"max_flow_duration_ms"`
	OtherPoints       int     `json:"other_points"`
	OtherBytes        float64 `json:"other_bytes"`
	OtherDurationMs   int64   `json:"other_duration_ms"`

	PercentPointsExcluded float64 `json:"percent_points_excluded"`
	PercentBytesExcluded  float64 `json:"percent_bytes_excluded"`
	PercentTimeExcluded   float64 `json:"percent_time_excluded"`
}

// Result is the outcome of Analyze.
type Result struct {
	MaxFlows     int               `json:"max_flows"`
	Distribution map[int]FlowShare `json:"flow_distribution"`
	Impact       Impact            `json:"impact"`
	// Selected holds only the points at MaxFlows.
	Selected bytecount.Map `json:"-"`
}

// Analyze reports the flow distribution of counts and the share of points,
// bytes and time that a max-flow filter would discard. Durations attribute
// each gap t[i+1]-t[i] to the flow state at t[i].
func Analyze(counts bytecount.Map) Result {
	res := Result{
		MaxFlows:     counts.MaxFlows(),
		Distribution: make(map[int]FlowShare),
	}
	ts := counts.Timestamps()
	total := len(ts)

	hist := counts.FlowHistogram()
	for flows := 0; flows <= res.MaxFlows; flows++ {
		n := hist[flows]
		res.Distribution[flows] = FlowShare{Count: n, Percentage: percent(float64(n), float64(total))}
	}

	im := &res.Impact
	im.TotalPoints = total
	if total > 1 {
		im.TotalDurationMs = ts[total-1] - ts[0]
	}
	res.Selected = make(bytecount.Map)
	for i, t := range ts {
		e := counts[t]
		im.TotalBytes += e.Bytes

		var gap int64
		if i+1 < total {
			gap = ts[i+1] - t
		}
		if e.Flows == res.MaxFlows {
			im.MaxFlowPoints++
			im.MaxFlowBytes += e.Bytes
			im.MaxFlowDurationMs += gap
			res.Selected[t] = e
		} else {
			im.OtherPoints++
			im.OtherBytes += e.Bytes
			im.OtherDurationMs += gap
		}
	}

	im.PercentPointsExcluded = percent(float64(im.OtherPoints), float64(im.TotalPoints))
	im.PercentBytesExcluded = percent(im.TotalBytes-im.MaxFlowBytes, im.TotalBytes)
	im.PercentTimeExcluded = percent(float64(im.TotalDurationMs-im.MaxFlowDurationMs), float64(im.TotalDurationMs))
	return res
}

func percent(part, whole float64) float64 {
	if whole <= 0 {
		return 0
	}
	return part / whole * 100
}

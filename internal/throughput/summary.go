package throughput

import (
	"slices"

	"github.com/influxdata/tdigest"
)

// Summary describes the distribution of a throughput series in Mbps.
type Summary struct {
	NumPoints  int     `json:"num_points"`
	MeanMbps   float64 `json:"mean"`
	MedianMbps float64 `json:"median"`
	MinMbps    float64 `json:"min"`
	MaxMbps    float64 `json:"max"`
	RangeMbps  float64 `json:"range"`
	P5Mbps     float64 `json:"p5"`
	P95Mbps    float64 `json:"p95"`
	P99Mbps    float64 `json:"p99"`
}

// Summarize computes the series summary. The median is exact (upper middle
// element for even counts); tail percentiles come from a t-digest.
func Summarize(points []Point) Summary {
	if len(points) == 0 {
		return Summary{}
	}

	values := make([]float64, len(points))
	td := tdigest.NewWithCompression(100)
	var sum float64
	for i, p := range points {
		values[i] = p.Mbps
		sum += p.Mbps
		td.Add(p.Mbps, 1)
	}
	slices.Sort(values)

	s := Summary{
		NumPoints:  len(values),
		MeanMbps:   sum / float64(len(values)),
		MedianMbps: values[len(values)/2],
		MinMbps:    values[0],
		MaxMbps:    values[len(values)-1],
		P5Mbps:     td.Quantile(0.05),
		P95Mbps:    td.Quantile(0.95),
		P99Mbps:    td.Quantile(0.99),
	}
	s.RangeMbps = s.MaxMbps - s.MinMbps
	return s
}

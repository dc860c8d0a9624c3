package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/randomizedcoder/go-flow-throughput/internal/stats"
	"github.com/randomizedcoder/go-flow-throughput/internal/throughput"
)

// flowSummary is the per-flow-count digest kept in the summary; the points
// themselves go to the detailed data.
type flowSummary struct {
	Points   int     `json:"num_points"`
	MeanMbps float64 `json:"mean"`
}

func (r *runner) collectStats() error {
	cfg, res, acc := r.cfg, r.res, r.res.Stats

	acc.AddBulk(map[string]any{
		"test.id":              res.TestID,
		"test.run_id":          res.RunID,
		"test.dir":             cfg.TestDir,
		"test.type":            string(res.Test.Kind),
		"test.streams":         len(res.Test.Records),
		"test.skipped_streams": len(res.Test.Skipped),
		"test.events":          res.Test.EventCount(),
		"test.clamped_deltas":  res.Test.Clamped,

		"timeline.points":      res.Timeline.Len(),
		"timeline.duration_ms": res.Timeline.DurationMs(),

		"sockets.associated": res.Sockets.Associated,
		"sockets.unknown":    res.Sockets.Unknown,
		"sockets.malformed":  res.Sockets.Malformed,
		"sockets.groups":     len(res.SocketGroups),

		"cache.driver": cfg.CacheDriver,
		"cache.hit":    res.CacheHit,

		"analysis.flows":            r.flows(),
		"analysis.thresholds_ms":    cfg.Thresholds.String(),
		"analysis.smooth_window_ms": cfg.SmoothWindow.Milliseconds(),
		"analysis.artifacts":        cfg.Artifacts,
	})

	if err := acc.AddObject("validation", res.Validation); err != nil {
		return err
	}
	if err := acc.AddObject("flow_selection", res.Selection); err != nil {
		return err
	}
	if err := addVariant(acc, res.Raw); err != nil {
		return err
	}
	if res.Filtered != nil {
		if err := addVariant(acc, res.Filtered); err != nil {
			return err
		}
	}
	if res.Artifacts != nil {
		if err := acc.AddObject("dbscan", res.Artifacts); err != nil {
			return err
		}
	}

	acc.AddDetailed("byte_count", res.Counts)
	acc.AddDetailed("dropped_baseline", res.DroppedBaseline)
	acc.AddDetailed("socket_groups", res.SocketGroups)
	acc.AddDetailed("by_flows."+res.Raw.Name, res.Raw.ByFlows)
	acc.AddDetailed("weighted_points."+res.Raw.Name, res.Raw.Weighted.Points)
	if res.Filtered != nil {
		acc.AddDetailed("by_flows."+res.Filtered.Name, res.Filtered.ByFlows)
		acc.AddDetailed("weighted_points."+res.Filtered.Name, res.Filtered.Weighted.Points)
	}
	return nil
}

// addVariant writes the policy summaries of v under throughput.<name>.
func addVariant(acc *stats.Accumulator, v *Variant) error {
	prefix := "throughput." + v.Name

	for _, s := range v.Intervals {
		key := prefix + "." + policyName(s.ThresholdMs)
		if err := acc.AddObject(key, s.Summary); err != nil {
			return err
		}
		if err := acc.AddObject(key+".discarded", s.Discarded); err != nil {
			return err
		}
	}
	if err := acc.AddObject(prefix+".traditional", v.Traditional.Summary); err != nil {
		return err
	}
	if err := acc.AddObject(prefix+".flow_change", v.FlowChange.Summary); err != nil {
		return err
	}

	acc.AddBulk(map[string]any{
		prefix + ".weighted.overall_mbps":     v.Weighted.OverallMbps,
		prefix + ".weighted.total_bytes":      v.Weighted.TotalBytes,
		prefix + ".weighted.total_time_ms":    v.Weighted.TotalTimeMs,
		prefix + ".weighted.num_points":       len(v.Weighted.Points),
		prefix + ".smoothed.accurate_mbps":    v.Smoothed.AccurateMbps,
		prefix + ".smoothed.total_bytes":      v.Smoothed.TotalBytes,
		prefix + ".smoothed.total_time_ms":    v.Smoothed.TotalTimeMs,
		prefix + ".smoothed.data_points_used": v.Smoothed.PointsUsed,
	})

	byFlows := make(map[string]flowSummary, len(v.ByFlows))
	for f, points := range v.ByFlows {
		s := throughput.Summarize(points)
		byFlows[strconv.Itoa(f)] = flowSummary{Points: s.NumPoints, MeanMbps: s.MeanMbps}
	}
	return acc.AddObject(prefix+".by_flows", byFlows)
}

func (r *runner) writeOutputs() error {
	cfg, res := r.cfg, r.res
	outDir := cfg.OutputDir()
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", outDir, err)
	}

	series := map[string]map[string][]throughput.Point{
		res.Raw.Name: res.Raw.SeriesMap(),
	}
	if res.Filtered != nil {
		series[res.Filtered.Name] = res.Filtered.SeriesMap()
	}
	seriesPath := filepath.Join(outDir, cfg.SeriesFile)
	if err := stats.WriteJSON(seriesPath, series); err != nil {
		return err
	}
	res.Outputs = append(res.Outputs, seriesPath)

	summaryPath, err := res.Stats.SaveSummary(cfg.SummaryFile)
	if err != nil {
		return err
	}
	res.Outputs = append(res.Outputs, summaryPath)

	detailed, err := res.Stats.SaveDetailed(stats.DetailedDir)
	res.Outputs = append(res.Outputs, detailed...)
	if err != nil {
		return err
	}

	if cfg.CSVFile != "" {
		csvPath := cfg.CSVFile
		if !filepath.IsAbs(csvPath) {
			csvPath = filepath.Join(outDir, csvPath)
		}
		if err := res.Stats.AppendCSV(csvPath); err != nil {
			return err
		}
		res.Outputs = append(res.Outputs, csvPath)
	}

	for _, p := range res.Outputs {
		r.logger.Debug("output_written", "path", p)
	}
	return nil
}

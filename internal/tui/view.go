package tui

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/randomizedcoder/go-flow-throughput/internal/pipeline"
	"github.com/randomizedcoder/go-flow-throughput/internal/stats"
	"github.com/randomizedcoder/go-flow-throughput/internal/throughput"
)

const appName = "flow-throughput"

// =============================================================================
// Static Report
// =============================================================================

// RenderReport renders res as a static report width cells wide.
func RenderReport(res *pipeline.Result, width int) string {
	if width < 60 {
		width = 60
	}
	title := titleStyle.Render(fmt.Sprintf("%s report: %s", appName, res.TestID))
	sections := append([]string{title}, resultSections(res, width)...)
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func resultSections(res *pipeline.Result, width int) []string {
	sections := []string{
		renderInput(res, width),
		renderValidation(res, width),
		renderFlows(res, width),
		renderThroughput(res.Raw, width),
	}
	if res.Filtered != nil {
		sections = append(sections, renderArtifacts(res, width), renderThroughput(res.Filtered, width))
	}
	return sections
}

// =============================================================================
// Main View Rendering
// =============================================================================

// renderSummaryView renders the main summary dashboard.
func (m Model) renderSummaryView() string {
	sections := []string{m.renderHeader()}

	if m.result != nil {
		sections = append(sections, resultSections(m.result, m.width)...)
	} else {
		sections = append(sections, boxStyle.Width(m.width-2).Render(
			dimStyle.Render("Waiting for the first run of "+m.testDir),
		))
	}

	if m.lastErr != nil {
		sections = append(sections, m.renderError())
	}
	sections = append(sections, m.renderFooter())
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// renderSeriesView renders the selected series as a sparkline and a table.
func (m Model) renderSeriesView() string {
	sections := []string{m.renderHeader()}
	if v := m.CurrentVariant(); v != nil {
		sections = append(sections, m.renderSeries(v))
	}
	sections = append(sections, m.renderFooter())
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// renderFlowsView renders the interval series at every flow count.
func (m Model) renderFlowsView() string {
	sections := []string{m.renderHeader()}
	if v := m.CurrentVariant(); v != nil {
		sections = append(sections, m.renderByFlows(v))
	}
	sections = append(sections, m.renderFooter())
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// =============================================================================
// Header
// =============================================================================

func (m Model) renderHeader() string {
	var status string
	switch {
	case m.lastErr != nil:
		status = statusError.Render("● Last run failed")
	case m.result == nil:
		status = statusInfo.Render("● Waiting")
	default:
		status = GetLossLabel(m.result.Validation.PercentLoss)
	}

	testID := m.testDir
	if m.result != nil {
		testID = m.result.TestID
	}

	header := fmt.Sprintf(
		" %s │ %s │ Test: %s │ Runs: %d │ Elapsed: %s ",
		appName,
		status,
		testID,
		m.runs,
		stats.FormatDuration(m.Elapsed()),
	)

	return headerStyle.Width(m.width).Render(header)
}

// =============================================================================
// Input
// =============================================================================

func renderInput(res *pipeline.Result, width int) string {
	source := "computed"
	if res.CacheHit {
		source = "cached"
	}

	rows := []string{
		RenderKeyValue("Type", string(res.Test.Kind)),
		RenderKeyValue("Streams", fmt.Sprintf("%d (%d skipped)", len(res.Test.Records), len(res.Test.Skipped))),
		RenderKeyValue("Events", stats.FormatNumber(int64(res.Test.EventCount()))),
		RenderKeyValue("Timeline", fmt.Sprintf("%s points over %s",
			stats.FormatNumber(int64(res.Timeline.Len())), stats.FormatMs(res.Timeline.DurationMs()))),
		RenderKeyValue("Byte count", source),
	}
	if res.Sockets.Associated > 0 {
		rows = append(rows, RenderKeyValue("Sockets",
			fmt.Sprintf("%d streams on %d sockets", res.Sockets.Associated, len(res.SocketGroups))))
	}
	if res.Test.Clamped > 0 {
		rows = append(rows, RenderKeyValue("Clamped deltas",
			valueWarnStyle.Render(stats.FormatNumber(int64(res.Test.Clamped)))))
	}

	return section("Input", rows, width)
}

// =============================================================================
// Validation
// =============================================================================

func renderValidation(res *pipeline.Result, width int) string {
	v := res.Validation
	lossStyle := GetLossStyle(GetLossStatus(v.PercentLoss))

	rows := []string{
		RenderKeyValue("Raw bytes", stats.FormatBytes(float64(v.RawBytes))),
		RenderKeyValue("Processed bytes", stats.FormatBytes(v.ProcessedBytes)),
		RenderKeyValue("Dropped baseline", stats.FormatBytes(float64(v.DroppedBaseline))),
		lipgloss.JoinHorizontal(lipgloss.Left,
			labelStyle.Render("Byte loss:"),
			lossStyle.Render(stats.FormatPercent(v.PercentLoss)),
		),
		RenderKeyValue("Durations", fmt.Sprintf("%.3f s raw, %.3f s counted", v.RawDurationSec, v.CountDurationSec)),
	}
	return section("Validation", rows, width)
}

// =============================================================================
// Flow Distribution
// =============================================================================

func renderFlows(res *pipeline.Result, width int) string {
	sel := res.Selection
	barWidth := width - 36
	if barWidth < 10 {
		barWidth = 10
	}

	counts := make([]int, 0, len(sel.Distribution))
	for f := range sel.Distribution {
		counts = append(counts, f)
	}
	sort.Ints(counts)

	rows := []string{RenderKeyValue("Max flows", fmt.Sprintf("%d", sel.MaxFlows))}
	for _, f := range counts {
		share := sel.Distribution[f]
		rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Left,
			labelStyle.Render(fmt.Sprintf("%d flows:", f)),
			RenderProgressBar(share.Percentage/100, barWidth),
			mutedStyle.Render(fmt.Sprintf(" (%d)", share.Count)),
		))
	}
	rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Left,
		labelWideStyle.Render("Time below max flows:"),
		GetExclusionStyle(sel.Impact.PercentTimeExcluded).Render(stats.FormatPercent(sel.Impact.PercentTimeExcluded)),
	))
	return section("Flow Distribution", rows, width)
}

// =============================================================================
// Throughput
// =============================================================================

func renderThroughput(v *pipeline.Variant, width int) string {
	if v == nil {
		return ""
	}

	header := tableHeaderStyle.Render(
		fmt.Sprintf("%-16s %7s %11s %11s %11s %11s",
			"Policy", "Points", "Mean", "Median", "P5", "P95"),
	)
	rows := []string{header}
	add := func(name string, s throughput.Summary) {
		style := tableRowEvenStyle
		if len(rows)%2 == 0 {
			style = tableRowOddStyle
		}
		rows = append(rows, style.Render(fmt.Sprintf("%-16s %7d %11s %11s %11s %11s",
			name, s.NumPoints,
			stats.FormatMbps(s.MeanMbps), stats.FormatMbps(s.MedianMbps),
			stats.FormatMbps(s.P5Mbps), stats.FormatMbps(s.P95Mbps),
		)))
	}
	for _, s := range v.Intervals {
		add(fmt.Sprintf("interval %dms", s.ThresholdMs), s.Summary)
	}
	add("traditional", v.Traditional.Summary)
	add("flow change", v.FlowChange.Summary)

	rows = append(rows,
		"",
		RenderKeyValueWide("Weighted overall", stats.FormatMbps(v.Weighted.OverallMbps)),
		RenderKeyValueWide("Smoothed accurate", fmt.Sprintf("%s over %s",
			stats.FormatMbps(v.Smoothed.AccurateMbps), stats.FormatMs(v.Smoothed.TotalTimeMs))),
	)

	title := fmt.Sprintf("Throughput (%s, %d flows)", v.Name, v.Flows)
	return section(title, rows, width)
}

// =============================================================================
// Artifacts
// =============================================================================

func renderArtifacts(res *pipeline.Result, width int) string {
	a := res.Artifacts
	if a == nil {
		return ""
	}
	style := GetArtifactStyle(a.PercentArtifacts)

	rows := []string{
		lipgloss.JoinHorizontal(lipgloss.Left,
			labelStyle.Render("Artifacts:"),
			style.Render(fmt.Sprintf("%d (%s)", a.Artifacts, stats.FormatPercent(a.PercentArtifacts))),
		),
		RenderKeyValue("Remaining", stats.FormatNumber(int64(a.Remaining))),
		RenderKeyValue("Time removed", fmt.Sprintf("%s (%s)",
			stats.FormatMs(a.TimeRemovedMs), stats.FormatPercent(a.PercentTimeRemoved))),
		RenderKeyValue("Radius", fmt.Sprintf("%.4f", a.Eps)),
		RenderKeyValue("Clusters", fmt.Sprintf("%d", a.Clusters)),
	}
	return section("Artifact Filter (DBSCAN)", rows, width)
}

// =============================================================================
// Series View
// =============================================================================

func (m Model) renderSeries(v *pipeline.Variant) string {
	points := m.CurrentPoints()
	values := make([]float64, len(points))
	for i, p := range points {
		values[i] = p.Mbps
	}
	s := throughput.Summarize(points)

	rows := []string{
		subtitleStyle.Render(fmt.Sprintf("%s │ %s", v.Name, m.CurrentPolicy())),
		RenderSparkline(values, m.width-8),
		mutedStyle.Render(fmt.Sprintf("%d points │ mean %s │ min %s │ max %s",
			s.NumPoints, stats.FormatMbps(s.MeanMbps), stats.FormatMbps(s.MinMbps), stats.FormatMbps(s.MaxMbps))),
		"",
		tableHeaderStyle.Render(fmt.Sprintf("%10s %14s %12s %10s", "Time (s)", "Throughput", "Bytes", "Duration")),
	}

	maxRows := m.height - 16
	if maxRows < 5 {
		maxRows = 5
	}
	for i, p := range points {
		if i >= maxRows {
			rows = append(rows, dimStyle.Render(fmt.Sprintf("... and %d more points", len(points)-maxRows)))
			break
		}
		style := tableRowEvenStyle
		if i%2 == 1 {
			style = tableRowOddStyle
		}
		rows = append(rows, style.Render(fmt.Sprintf("%10.3f %14s %12s %10s",
			p.TimeSec, stats.FormatMbps(p.Mbps), stats.FormatBytes(p.Bytes), stats.FormatMs(p.DurationMs))))
	}
	if len(points) == 0 {
		rows = append(rows, dimStyle.Render("No points for this policy."))
	}

	return section("Series", rows, m.width)
}

// =============================================================================
// Flows View
// =============================================================================

func (m Model) renderByFlows(v *pipeline.Variant) string {
	flows := make([]int, 0, len(v.ByFlows))
	for f := range v.ByFlows {
		flows = append(flows, f)
	}
	sort.Ints(flows)

	sparkWidth := m.width - 40
	if sparkWidth < 10 {
		sparkWidth = 10
	}

	rows := []string{
		tableHeaderStyle.Render(fmt.Sprintf("%-6s %7s %12s  %s", "Flows", "Points", "Mean", "Series")),
	}
	for _, f := range flows {
		points := v.ByFlows[f]
		values := make([]float64, len(points))
		for i, p := range points {
			values[i] = p.Mbps
		}
		s := throughput.Summarize(points)
		rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Left,
			tableRowEvenStyle.Render(fmt.Sprintf("%-6d %7d %12s  ", f, s.NumPoints, stats.FormatMbps(s.MeanMbps))),
			RenderSparkline(values, sparkWidth),
		))
	}
	return section(fmt.Sprintf("Interval Throughput by Flow Count (%s)", v.Name), rows, m.width)
}

// =============================================================================
// Error and Footer
// =============================================================================

func (m Model) renderError() string {
	return boxStyle.Width(m.width - 2).Render(
		statusError.Render("Last run failed: ") + mutedStyle.Render(m.lastErr.Error()),
	)
}

func (m Model) renderFooter() string {
	// Keyboard shortcuts
	shortcuts := []string{
		"q: quit",
		"tab: next view",
		"←/→: policy",
	}
	if len(m.Variants()) > 1 {
		shortcuts = append(shortcuts, "a: raw/filtered")
	}

	right := m.testDir
	if m.metricsAddr != "" {
		right = "Metrics: " + m.metricsAddr
	}
	maxRight := m.width - 60
	if len(right) > maxRight && maxRight > 10 {
		right = "..." + right[len(right)-maxRight+3:]
	}

	left := dimStyle.Render(strings.Join(shortcuts, " │ "))
	rightText := dimStyle.Render(right)

	// Pad to fill width
	padding := m.width - lipgloss.Width(left) - lipgloss.Width(rightText) - 2
	if padding < 1 {
		padding = 1
	}

	return footerStyle.Render(
		lipgloss.JoinHorizontal(lipgloss.Left,
			left,
			strings.Repeat(" ", padding),
			rightText,
		),
	)
}

// section renders rows in a bordered box under a header.
func section(title string, rows []string, width int) string {
	content := lipgloss.JoinVertical(lipgloss.Left,
		append([]string{sectionHeaderStyle.Render(title)}, rows...)...,
	)
	return boxStyle.Width(width - 2).Render(content)
}

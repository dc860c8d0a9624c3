// Package tui renders analysis results in the terminal.
//
// The interactive dashboard uses Bubble Tea for the application framework and
// Lipgloss for styling. It shows:
// - Input and timeline overview
// - Byte conservation
// - Flow distribution
// - Throughput per policy, raw and artifact-filtered
// - Individual series as sparklines and tables
//
// RenderReport produces the same sections as a static report.
package tui

import (
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// =============================================================================
// Color Palette
// =============================================================================

// Colors based on a modern dark theme
var (
	// Primary colors
	colorPrimary   = lipgloss.Color("#7C3AED") // Purple
	colorSecondary = lipgloss.Color("#06B6D4") // Cyan
	colorAccent    = lipgloss.Color("#F59E0B") // Amber

	// Status colors
	colorSuccess = lipgloss.Color("#10B981") // Green
	colorWarning = lipgloss.Color("#F59E0B") // Amber
	colorError   = lipgloss.Color("#EF4444") // Red
	colorInfo    = lipgloss.Color("#3B82F6") // Blue

	// Neutral colors
	colorText      = lipgloss.Color("#E5E7EB") // Light gray
	colorTextMuted = lipgloss.Color("#9CA3AF") // Medium gray
	colorTextDim   = lipgloss.Color("#6B7280") // Dark gray
	colorBorder    = lipgloss.Color("#374151") // Border gray
)

// =============================================================================
// Base Styles
// =============================================================================

var (
	mutedStyle = lipgloss.NewStyle().
			Foreground(colorTextMuted)

	dimStyle = lipgloss.NewStyle().
			Foreground(colorTextDim)

	// Title styles
	titleStyle = lipgloss.NewStyle().
			Foreground(colorPrimary).
			Bold(true)

	subtitleStyle = lipgloss.NewStyle().
			Foreground(colorSecondary).
			Bold(true)
)

// =============================================================================
// Status Indicator Styles
// =============================================================================

var (
	statusOK = lipgloss.NewStyle().
			Foreground(colorSuccess).
			Bold(true)

	statusWarning = lipgloss.NewStyle().
			Foreground(colorWarning).
			Bold(true)

	statusError = lipgloss.NewStyle().
			Foreground(colorError).
			Bold(true)

	statusInfo = lipgloss.NewStyle().
			Foreground(colorInfo).
			Bold(true)
)

// =============================================================================
// Layout Styles
// =============================================================================

var (
	// Box/panel styles
	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorBorder).
			Padding(0, 1)

	// Header style
	headerStyle = lipgloss.NewStyle().
			Foreground(colorText).
			Background(colorPrimary).
			Bold(true).
			Padding(0, 1).
			MarginBottom(1)

	// Section header style
	sectionHeaderStyle = lipgloss.NewStyle().
				Foreground(colorSecondary).
				Bold(true).
				BorderStyle(lipgloss.NormalBorder()).
				BorderBottom(true).
				BorderForeground(colorBorder).
				MarginTop(1)

	// Footer style
	footerStyle = lipgloss.NewStyle().
			Foreground(colorTextMuted).
			MarginTop(1)
)

// =============================================================================
// Value Styles
// =============================================================================

var (
	valueStyle = lipgloss.NewStyle().
			Foreground(colorText).
			Bold(true)

	valueGoodStyle = lipgloss.NewStyle().
			Foreground(colorSuccess).
			Bold(true)

	valueBadStyle = lipgloss.NewStyle().
			Foreground(colorError).
			Bold(true)

	valueWarnStyle = lipgloss.NewStyle().
			Foreground(colorWarning).
			Bold(true)

	// Label styles
	labelStyle = lipgloss.NewStyle().
			Foreground(colorTextMuted).
			Width(20)

	labelWideStyle = lipgloss.NewStyle().
			Foreground(colorTextMuted).
			Width(25)
)

// =============================================================================
// Progress Bar and Sparkline Styles
// =============================================================================

var (
	progressBarStyle = lipgloss.NewStyle().
				Foreground(colorPrimary)

	progressBarEmptyStyle = lipgloss.NewStyle().
				Foreground(colorBorder)

	progressPercentStyle = lipgloss.NewStyle().
				Foreground(colorText).
				Bold(true)

	sparklineStyle = lipgloss.NewStyle().
			Foreground(colorAccent)
)

// =============================================================================
// Table Styles
// =============================================================================

var (
	tableHeaderStyle = lipgloss.NewStyle().
				Foreground(colorSecondary).
				Bold(true).
				BorderStyle(lipgloss.NormalBorder()).
				BorderBottom(true).
				BorderForeground(colorBorder)

	tableRowEvenStyle = lipgloss.NewStyle().
				Foreground(colorText)

	tableRowOddStyle = lipgloss.NewStyle().
				Foreground(colorTextMuted)
)

// =============================================================================
// Byte Loss Indicator
// =============================================================================

// LossStatus grades how well redistribution conserved the raw bytes.
type LossStatus int

const (
	LossStatusOK LossStatus = iota
	LossStatusMinor
	LossStatusSevere
)

// GetLossStatus returns the status for a byte loss percentage.
func GetLossStatus(percent float64) LossStatus {
	switch {
	case percent > 5: // >5% of the raw bytes
		return LossStatusSevere
	case percent > 0.1:
		return LossStatusMinor
	default:
		return LossStatusOK
	}
}

// GetLossLabel returns a styled status label for a byte loss percentage.
func GetLossLabel(percent float64) string {
	switch GetLossStatus(percent) {
	case LossStatusSevere:
		return statusError.Render("● Bytes (severe loss)")
	case LossStatusMinor:
		return statusWarning.Render("● Bytes (minor loss)")
	default:
		return statusOK.Render("● Bytes")
	}
}

// GetLossStyle returns the value style for a loss status.
func GetLossStyle(status LossStatus) lipgloss.Style {
	switch status {
	case LossStatusSevere:
		return valueBadStyle
	case LossStatusMinor:
		return valueWarnStyle
	default:
		return valueGoodStyle
	}
}

// =============================================================================
// Exclusion and Artifact Indicators
// =============================================================================

// GetExclusionStyle returns a style for the share of test time spent below
// the maximum flow count.
func GetExclusionStyle(percent float64) lipgloss.Style {
	switch {
	case percent < 10:
		return valueGoodStyle
	case percent < 50:
		return valueWarnStyle
	default:
		return valueBadStyle
	}
}

// GetArtifactStyle returns a style for the share of points flagged as
// artifacts.
func GetArtifactStyle(percent float64) lipgloss.Style {
	switch {
	case percent == 0:
		return valueGoodStyle
	case percent < 5:
		return valueWarnStyle
	default:
		return valueBadStyle
	}
}

// =============================================================================
// Helper Functions
// =============================================================================

// RenderKeyValue renders a label-value pair.
func RenderKeyValue(label string, value string) string {
	return lipgloss.JoinHorizontal(lipgloss.Left,
		labelStyle.Render(label+":"),
		valueStyle.Render(value),
	)
}

// RenderKeyValueWide renders a label-value pair with wider label.
func RenderKeyValueWide(label string, value string) string {
	return lipgloss.JoinHorizontal(lipgloss.Left,
		labelWideStyle.Render(label+":"),
		valueStyle.Render(value),
	)
}

// RenderProgressBar renders a progress bar.
func RenderProgressBar(progress float64, width int) string {
	if width < 10 {
		width = 10
	}

	filled := int(progress * float64(width))
	if filled > width {
		filled = width
	}
	if filled < 0 {
		filled = 0
	}

	bar := progressBarStyle.Render(repeatChar('█', filled)) +
		progressBarEmptyStyle.Render(repeatChar('░', width-filled))

	percent := progressPercentStyle.Render(fmt.Sprintf(" %3.0f%%", progress*100))

	return bar + percent
}

func repeatChar(char rune, count int) string {
	if count <= 0 {
		return ""
	}
	return strings.Repeat(string(char), count)
}

var sparkLevels = []rune("▁▂▃▄▅▆▇█")

// RenderSparkline draws values as a one-line bar chart at most width cells
// wide. Longer series are averaged into width buckets.
func RenderSparkline(values []float64, width int) string {
	return sparklineStyle.Render(sparkline(values, width))
}

func sparkline(values []float64, width int) string {
	if len(values) == 0 || width <= 0 {
		return ""
	}

	buckets := values
	if len(values) > width {
		buckets = make([]float64, width)
		for i := range buckets {
			lo := i * len(values) / width
			hi := (i + 1) * len(values) / width
			var sum float64
			for _, v := range values[lo:hi] {
				sum += v
			}
			buckets[i] = sum / float64(hi-lo)
		}
	}

	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range buckets {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}

	top := len(sparkLevels) - 1
	out := make([]rune, len(buckets))
	for i, v := range buckets {
		level := top / 2
		if hi > lo {
			level = int(math.Round((v - lo) / (hi - lo) * float64(top)))
		}
		out[i] = sparkLevels[level]
	}
	return string(out)
}

package stats

import (
	"fmt"
	"time"
)

// =============================================================================
// Formatting Helper Functions
// =============================================================================

// FormatDuration formats a duration as HH:MM:SS.mmm.
func FormatDuration(d time.Duration) string {
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	ms := d.Milliseconds() % 1000
	return fmt.Sprintf("%02d:%02d:%02d.%03d", h, m, s, ms)
}

// FormatNumber formats a count with K/M suffixes for readability.
func FormatNumber(n int64) string {
	if n >= 1_000_000 {
		return fmt.Sprintf("%.1fM", float64(n)/1_000_000)
	}
	if n >= 1_000 {
		return fmt.Sprintf("%.1fK", float64(n)/1_000)
	}
	return fmt.Sprintf("%d", n)
}

// FormatBytes formats a byte count with KB/MB/GB suffixes. Redistributed
// byte totals are fractional, so the input is a float.
func FormatBytes(n float64) string {
	switch {
	case n >= 1e9:
		return fmt.Sprintf("%.2f GB", n/1e9)
	case n >= 1e6:
		return fmt.Sprintf("%.2f MB", n/1e6)
	case n >= 1e3:
		return fmt.Sprintf("%.2f KB", n/1e3)
	}
	return fmt.Sprintf("%.0f B", n)
}

// FormatMs formats a millisecond count, switching to seconds from 10s up.
func FormatMs(ms int64) string {
	if ms >= 10_000 {
		return fmt.Sprintf("%.2f s", float64(ms)/1000)
	}
	return fmt.Sprintf("%d ms", ms)
}

// FormatMbps formats a throughput, switching to Gbps from 1000 Mbps up.
func FormatMbps(mbps float64) string {
	if mbps >= 1000 {
		return fmt.Sprintf("%.2f Gbps", mbps/1000)
	}
	return fmt.Sprintf("%.2f Mbps", mbps)
}

// FormatPercent formats a percentage with one decimal.
func FormatPercent(p float64) string {
	return fmt.Sprintf("%.1f%%", p)
}

package tui

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
)

func wide(t *testing.T, m Model) Model {
	t.Helper()
	m, _ = update(t, m, tea.WindowSizeMsg{Width: 140, Height: 60})
	return m
}

func TestRenderReport(t *testing.T) {
	out := RenderReport(testResult(true), 140)

	for _, want := range []string{
		"test_7-0a1b2c3d",
		"Input",
		"Validation",
		"Flow Distribution",
		"Throughput (raw, 2 flows)",
		"Throughput (dbscan, 2 flows)",
		"Artifact Filter",
		"2.40 Mbps",
		"2.50 Mbps",
		"interval 50ms",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("report missing %q", want)
		}
	}
}

func TestRenderReport_NoArtifacts(t *testing.T) {
	out := RenderReport(testResult(false), 140)
	if strings.Contains(out, "Artifact Filter") {
		t.Error("report should not show artifacts when filtering did not run")
	}
}

func TestModel_View_Summary(t *testing.T) {
	model := wide(t, New(Config{TestDir: "/data/test_7", MetricsAddr: "127.0.0.1:9100"}))

	waiting := model.View()
	if !strings.Contains(waiting, "Waiting") || !strings.Contains(waiting, appName) {
		t.Errorf("waiting view:\n%s", waiting)
	}

	model, _ = update(t, model, ResultMsg{Result: testResult(false)})
	out := model.View()
	for _, want := range []string{"Validation", "Throughput (raw, 2 flows)", "Metrics: 127.0.0.1:9100"} {
		if !strings.Contains(out, want) {
			t.Errorf("summary view missing %q", want)
		}
	}
}

func TestModel_View_Series(t *testing.T) {
	model := wide(t, New(Config{Result: testResult(false)}))
	model, _ = update(t, model, key("p"))
	model, _ = update(t, model, key("right"))

	out := model.View()
	for _, want := range []string{"raw │ interval_50ms", "Time (s)", "1 points"} {
		if !strings.Contains(out, want) {
			t.Errorf("series view missing %q", want)
		}
	}
}

func TestModel_View_Flows(t *testing.T) {
	model := wide(t, New(Config{Result: testResult(true)}))
	model, _ = update(t, model, key("f"))

	out := model.View()
	if !strings.Contains(out, "Interval Throughput by Flow Count (raw)") {
		t.Errorf("flows view:\n%s", out)
	}
	if !strings.Contains(out, "a: raw/filtered") {
		t.Error("footer should offer the variant toggle")
	}
}

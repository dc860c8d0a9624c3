package tui

import (
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/randomizedcoder/go-flow-throughput/internal/artifact"
	"github.com/randomizedcoder/go-flow-throughput/internal/bytecount"
	"github.com/randomizedcoder/go-flow-throughput/internal/ingest"
	"github.com/randomizedcoder/go-flow-throughput/internal/pipeline"
	"github.com/randomizedcoder/go-flow-throughput/internal/selection"
	"github.com/randomizedcoder/go-flow-throughput/internal/throughput"
	"github.com/randomizedcoder/go-flow-throughput/internal/timeline"
)

// =============================================================================
// Fixtures
// =============================================================================

func testVariant(name string, mbps float64) *pipeline.Variant {
	points := []throughput.Point{
		{TimeSec: 0.01, Mbps: mbps, Bytes: 1500, DurationMs: 5},
		{TimeSec: 0.015, Mbps: mbps, Bytes: 1500, DurationMs: 5},
		{TimeSec: 0.02, Mbps: mbps, Bytes: 1500, DurationMs: 5},
	}
	s := throughput.Summarize(points)
	return &pipeline.Variant{
		Name:  name,
		Flows: 2,
		Intervals: []pipeline.IntervalSeries{
			{ThresholdMs: 2, Points: points, Summary: s},
			{ThresholdMs: 50, Points: points[:1], Summary: throughput.Summarize(points[:1])},
		},
		Traditional: pipeline.Series{Points: points, Summary: s},
		FlowChange:  pipeline.Series{Points: points[:1], Summary: throughput.Summarize(points[:1])},
		Weighted:    throughput.WeightedResult{Points: points, OverallMbps: mbps, TotalBytes: 4500, TotalTimeMs: 15},
		Smoothed:    throughput.SmoothedResult{AccurateMbps: mbps, Plot: points, TotalBytes: 4500, TotalTimeMs: 15, PointsUsed: 3},
		ByFlows:     map[int][]throughput.Point{1: nil, 2: points},
	}
}

func testResult(filtered bool) *pipeline.Result {
	res := &pipeline.Result{
		TestID:   "test_7-0a1b2c3d",
		Test:     &ingest.Test{Kind: ingest.KindDownload, Records: make([]ingest.StreamRecord, 2)},
		Timeline: timeline.FromTimes([]int64{1000, 1005, 1010, 1015, 1020}),
		Validation: bytecount.Validation{
			RawBytes:       4500,
			ProcessedBytes: 4500,
		},
		Selection: selection.Result{
			MaxFlows: 2,
			Distribution: map[int]selection.FlowShare{
				0: {Count: 1, Percentage: 20},
				1: {Count: 1, Percentage: 20},
				2: {Count: 3, Percentage: 60},
			},
			Impact: selection.Impact{PercentTimeExcluded: 25},
		},
		Raw: testVariant("raw", 2.4),
	}
	if filtered {
		res.Filtered = testVariant("dbscan", 2.5)
		res.Artifacts = &artifact.Metrics{Artifacts: 1, Remaining: 2, PercentArtifacts: 33.3, Eps: 0.5, Clusters: 1}
	}
	return res
}

func key(s string) tea.KeyMsg {
	switch s {
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	case "shift+tab":
		return tea.KeyMsg{Type: tea.KeyShiftTab}
	case "left":
		return tea.KeyMsg{Type: tea.KeyLeft}
	case "right":
		return tea.KeyMsg{Type: tea.KeyRight}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "ctrl+c":
		return tea.KeyMsg{Type: tea.KeyCtrlC}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	model, ok := next.(Model)
	if !ok {
		t.Fatalf("Update returned %T, want Model", next)
	}
	return model, cmd
}

// =============================================================================
// Tests: New
// =============================================================================

func TestNew(t *testing.T) {
	model := New(Config{TestDir: "/data/test_7", MetricsAddr: "localhost:9090"})

	if model.testDir != "/data/test_7" {
		t.Errorf("testDir = %s", model.testDir)
	}
	if model.metricsAddr != "localhost:9090" {
		t.Errorf("metricsAddr = %s, want localhost:9090", model.metricsAddr)
	}
	if model.width != 80 || model.height != 24 {
		t.Errorf("size = %dx%d, want 80x24", model.width, model.height)
	}
	if model.Result() != nil || model.Runs() != 0 {
		t.Error("new model should have no result")
	}

	withResult := New(Config{Result: testResult(false)})
	if withResult.Runs() != 1 || withResult.Result() == nil {
		t.Error("initial result should count as a run")
	}
}

// =============================================================================
// Tests: Init
// =============================================================================

func TestModel_Init(t *testing.T) {
	if cmd := New(Config{Watching: true}).Init(); cmd == nil {
		t.Error("watching model should tick")
	}
	if cmd := New(Config{}).Init(); cmd != nil {
		t.Error("static model should not tick")
	}
}

// =============================================================================
// Tests: Update
// =============================================================================

func TestModel_Update_Quit(t *testing.T) {
	for _, k := range []string{"q", "esc", "ctrl+c"} {
		t.Run(k, func(t *testing.T) {
			model, cmd := update(t, New(Config{}), key(k))
			if !model.quitting {
				t.Error("quitting should be true")
			}
			if cmd == nil {
				t.Fatal("cmd should be tea.Quit")
			}
			if _, ok := cmd().(tea.QuitMsg); !ok {
				t.Error("cmd should produce tea.QuitMsg")
			}
			if model.View() != "" {
				t.Error("View() should be empty when quitting")
			}
		})
	}

	model, _ := update(t, New(Config{}), QuitMsg{})
	if !model.quitting {
		t.Error("QuitMsg should quit")
	}
}

func TestModel_Update_Views(t *testing.T) {
	model := New(Config{Result: testResult(false)})

	want := []ViewMode{ViewSeries, ViewFlows, ViewSummary}
	for _, w := range want {
		model, _ = update(t, model, key("tab"))
		if model.Mode() != w {
			t.Errorf("after tab Mode() = %v, want %v", model.Mode(), w)
		}
	}

	model, _ = update(t, model, key("shift+tab"))
	if model.Mode() != ViewFlows {
		t.Errorf("after shift+tab Mode() = %v, want ViewFlows", model.Mode())
	}

	for k, w := range map[string]ViewMode{"s": ViewSummary, "p": ViewSeries, "f": ViewFlows} {
		model, _ = update(t, model, key(k))
		if model.Mode() != w {
			t.Errorf("key %q Mode() = %v, want %v", k, model.Mode(), w)
		}
	}
}

func TestModel_Update_Policies(t *testing.T) {
	model := New(Config{Result: testResult(false)})

	want := []string{"interval_2ms", "interval_50ms", "traditional", "flow_change", "weighted", "smoothed"}
	if got := model.Policies(); strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("Policies() = %v, want %v", got, want)
	}
	if model.CurrentPolicy() != "interval_2ms" {
		t.Errorf("CurrentPolicy() = %s", model.CurrentPolicy())
	}

	model, _ = update(t, model, key("right"))
	if model.CurrentPolicy() != "interval_50ms" || len(model.CurrentPoints()) != 1 {
		t.Errorf("after right: %s with %d points", model.CurrentPolicy(), len(model.CurrentPoints()))
	}

	model, _ = update(t, model, key("left"))
	model, _ = update(t, model, key("h"))
	if model.CurrentPolicy() != "smoothed" {
		t.Errorf("left should wrap, got %s", model.CurrentPolicy())
	}
}

func TestModel_Update_Variants(t *testing.T) {
	model := New(Config{Result: testResult(false)})
	model, _ = update(t, model, key("a"))
	if model.CurrentVariant().Name != "raw" {
		t.Error("without a filtered variant 'a' should do nothing")
	}

	model, _ = update(t, model, ResultMsg{Result: testResult(true)})
	if len(model.Variants()) != 2 {
		t.Fatalf("Variants() = %d, want 2", len(model.Variants()))
	}
	model, _ = update(t, model, key("a"))
	if model.CurrentVariant().Name != "dbscan" {
		t.Errorf("CurrentVariant() = %s, want dbscan", model.CurrentVariant().Name)
	}

	// a new result without filtering falls back to raw
	model, _ = update(t, model, ResultMsg{Result: testResult(false)})
	if model.CurrentVariant().Name != "raw" {
		t.Errorf("CurrentVariant() = %s, want raw", model.CurrentVariant().Name)
	}
}

func TestModel_Update_ResultAndError(t *testing.T) {
	model := New(Config{TestDir: "/data/test_7", Watching: true})

	model, _ = update(t, model, ErrorMsg{Err: errors.New("decode byte_time_list.json")})
	if model.LastError() == nil {
		t.Fatal("LastError() should be set")
	}
	if !strings.Contains(model.View(), "Last run failed") {
		t.Error("View() should show the failure")
	}

	model, _ = update(t, model, ResultMsg{Result: testResult(false)})
	if model.LastError() != nil || model.Runs() != 1 {
		t.Errorf("after result: err=%v runs=%d", model.LastError(), model.Runs())
	}

	_, cmd := update(t, model, TickMsg{})
	if cmd == nil {
		t.Error("TickMsg should schedule the next tick")
	}
}

func TestModel_Update_WindowSize(t *testing.T) {
	model, _ := update(t, New(Config{}), tea.WindowSizeMsg{Width: 120, Height: 40})
	if model.width != 120 || model.height != 40 {
		t.Errorf("size = %dx%d, want 120x40", model.width, model.height)
	}
}

// =============================================================================
// Tests: Accessors
// =============================================================================

func TestModel_AccessorsWithoutResult(t *testing.T) {
	model := New(Config{})
	if model.CurrentVariant() != nil || model.Policies() != nil || model.CurrentPolicy() != "" || model.CurrentPoints() != nil {
		t.Error("accessors should be empty without a result")
	}
	if model.Elapsed() < 0 {
		t.Error("Elapsed() should not be negative")
	}
}

func TestSendHelpers_NilProgram(t *testing.T) {
	SendResult(nil, testResult(false))
	SendError(nil, errors.New("x"))
	SendQuit(nil)
}

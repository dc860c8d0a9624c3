package stats

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// =============================================================================
// Accumulator
// =============================================================================

func TestAccumulator_AddAndGet(t *testing.T) {
	a := NewAccumulator(t.TempDir())
	a.Add("test_type", "download")
	a.Add("throughput.interval_50ms.mean", 92.5)
	a.AddBulk(map[string]any{"validation.total_raw_bytes": 1000})
	a.AddPhase("redistribute", map[string]any{"elapsed_ms": 12})

	tests := []struct {
		key  string
		want any
	}{
		{"test_type", "download"},
		{"throughput.interval_50ms.mean", 92.5},
		{"validation.total_raw_bytes", 1000},
		{"phases.redistribute.elapsed_ms", 12},
		{"missing", "default"},
		{"test_type.deeper", "default"},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			if got := a.Get(tt.key, "default"); got != tt.want {
				t.Errorf("Get(%q) = %v, want %v", tt.key, got, tt.want)
			}
		})
	}

	if _, ok := a.Get("throughput", nil).(map[string]any); !ok {
		t.Error("Get of an inner key should return the nested map")
	}
}

func TestAccumulator_AddOverwritesScalarWithBranch(t *testing.T) {
	a := NewAccumulator(t.TempDir())
	a.Add("x", 1)
	a.Add("x.y", 2)
	if got := a.Get("x.y", nil); got != 2 {
		t.Errorf("Get(x.y) = %v, want 2", got)
	}
}

func TestAccumulator_AddObject(t *testing.T) {
	a := NewAccumulator(t.TempDir())
	err := a.AddObject("validation", struct {
		RawBytes int64 `json:"total_raw_bytes"`
		Loss     float64
	}{RawBytes: 10, Loss: 0.5})
	if err != nil {
		t.Fatalf("AddObject() error = %v", err)
	}
	if got := a.Get("validation.total_raw_bytes", nil); got != float64(10) {
		t.Errorf("Get(validation.total_raw_bytes) = %v (%T)", got, got)
	}
	if err := a.AddObject("bad", make(chan int)); err == nil {
		t.Error("AddObject(chan) expected error")
	}
}

func TestAccumulator_Flatten(t *testing.T) {
	a := NewAccumulator(t.TempDir())
	a.Add("a.b.c", 1)
	a.Add("a.d", "x")
	a.Add("e", true)

	flat := a.Flatten("_")
	want := map[string]any{"a_b_c": 1, "a_d": "x", "e": true}
	if len(flat) != len(want) {
		t.Fatalf("Flatten() = %v, want %v", flat, want)
	}
	for k, v := range want {
		if flat[k] != v {
			t.Errorf("Flatten()[%q] = %v, want %v", k, flat[k], v)
		}
	}
}

func TestAccumulator_SaveAll(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	a := NewAccumulator(dir)
	a.Add("test_type", "upload")
	a.AddDetailed("http_stream_data", []int{1, 2, 3})
	a.AddDetailed("throughput_series.interval_50ms", []float64{1.5})

	paths, err := a.SaveAll()
	if err != nil {
		t.Fatalf("SaveAll() error = %v", err)
	}
	if len(paths) != 3 {
		t.Fatalf("SaveAll() paths = %v, want 3", paths)
	}

	data, err := os.ReadFile(filepath.Join(dir, SummaryFile))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "\n    \"test_type\": \"upload\"") {
		t.Errorf("summary not indented with 4 spaces:\n%s", data)
	}

	var series map[string][]float64
	data, err = os.ReadFile(filepath.Join(dir, DetailedDir, "throughput_series.json"))
	if err != nil {
		t.Fatal(err)
	}
	if err := json.Unmarshal(data, &series); err != nil || series["interval_50ms"][0] != 1.5 {
		t.Errorf("detailed series = %v, %v", series, err)
	}
}

func TestAccumulator_WriteText(t *testing.T) {
	a := NewAccumulator(t.TempDir())
	a.Add("b", 2)
	a.Add("a.x", 1)

	var buf bytes.Buffer
	if err := a.WriteText(&buf); err != nil {
		t.Fatal(err)
	}
	if got, want := buf.String(), "a.x: 1\nb: 2\n"; got != want {
		t.Errorf("WriteText() = %q, want %q", got, want)
	}
}

// =============================================================================
// CSV
// =============================================================================

func readRows(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	return rows
}

func TestAppendCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), ConfigsCSV)

	first := NewAccumulator(t.TempDir())
	first.Add("test.id", "a")
	first.Add("test.mbps", 12.5)
	if err := first.AppendCSV(path); err != nil {
		t.Fatalf("AppendCSV() error = %v", err)
	}

	second := NewAccumulator(t.TempDir())
	second.Add("test.id", "b")
	second.Add("test.artifacts", 3)
	if err := second.AppendCSV(path); err != nil {
		t.Fatalf("AppendCSV() error = %v", err)
	}

	rows := readRows(t, path)
	if len(rows) != 3 {
		t.Fatalf("rows = %v, want header + 2", rows)
	}
	wantHeader := []string{"test_id", "test_mbps", "test_artifacts"}
	if strings.Join(rows[0], ",") != strings.Join(wantHeader, ",") {
		t.Errorf("header = %v, want %v", rows[0], wantHeader)
	}
	if strings.Join(rows[1], ",") != "a,12.5," {
		t.Errorf("row 1 = %v", rows[1])
	}
	if strings.Join(rows[2], ",") != "b,,3" {
		t.Errorf("row 2 = %v", rows[2])
	}
}

// =============================================================================
// Formatting
// =============================================================================

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{0, "00:00:00.000"},
		{1500 * time.Millisecond, "00:00:01.500"},
		{2*time.Hour + 3*time.Minute + 4*time.Second, "02:03:04.000"},
	}
	for _, tt := range tests {
		if got := FormatDuration(tt.d); got != tt.want {
			t.Errorf("FormatDuration(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}

func TestFormatNumber(t *testing.T) {
	tests := []struct {
		n    int64
		want string
	}{
		{0, "0"},
		{999, "999"},
		{1500, "1.5K"},
		{2_500_000, "2.5M"},
	}
	for _, tt := range tests {
		if got := FormatNumber(tt.n); got != tt.want {
			t.Errorf("FormatNumber(%d) = %q, want %q", tt.n, got, tt.want)
		}
	}
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		n    float64
		want string
	}{
		{0, "0 B"},
		{999.4, "999 B"},
		{1500, "1.50 KB"},
		{1_500_000, "1.50 MB"},
		{1_500_000_000, "1.50 GB"},
	}
	for _, tt := range tests {
		if got := FormatBytes(tt.n); got != tt.want {
			t.Errorf("FormatBytes(%v) = %q, want %q", tt.n, got, tt.want)
		}
	}
}

func TestFormatMsAndMbps(t *testing.T) {
	if got := FormatMs(250); got != "250 ms" {
		t.Errorf("FormatMs(250) = %q", got)
	}
	if got := FormatMs(12_345); got != "12.35 s" {
		t.Errorf("FormatMs(12345) = %q", got)
	}
	if got := FormatMbps(94.123); got != "94.12 Mbps" {
		t.Errorf("FormatMbps(94.123) = %q", got)
	}
	if got := FormatMbps(2500); got != "2.50 Gbps" {
		t.Errorf("FormatMbps(2500) = %q", got)
	}
	if got := FormatPercent(12.345); got != "12.3%" {
		t.Errorf("FormatPercent(12.345) = %q", got)
	}
}

package ingest

import (
	"errors"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/randomizedcoder/go-flow-throughput/internal/logging"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func quietLogger() *slog.Logger {
	return logging.NewLoggerWithWriter(io.Discard, "text", "error")
}

func TestNormalizeUpload_CumulativeToDeltas(t *testing.T) {
	streams := []RawStream{{
		ID: 7,
		Progress: []RawProgress{
			{TimeMs: 0, Value: 0},
			{TimeMs: 10, Value: 1000},
			{TimeMs: 20, Value: 3000},
			{TimeMs: 20, Value: 3000},
			{TimeMs: 30, Value: 6000},
		},
	}}

	records, skipped, clamped := NormalizeUpload(streams)
	if len(skipped) != 0 || clamped != 0 {
		t.Fatalf("skipped=%v clamped=%d, want none", skipped, clamped)
	}
	if len(records) != 1 {
		t.Fatalf("len(records) = %d, want 1", len(records))
	}

	want := []int64{0, 1000, 2000, 0, 3000}
	for i, e := range records[0].Events {
		if e.Bytes != want[i] {
			t.Errorf("event %d bytes = %d, want %d", i, e.Bytes, want[i])
		}
		if e.StreamID != 7 {
			t.Errorf("event %d stream = %d, want 7", i, e.StreamID)
		}
	}
	if records[0].Kind != KindUpload {
		t.Errorf("Kind = %q, want upload", records[0].Kind)
	}
}

func TestNormalizeUpload_ClampsBackwardPositions(t *testing.T) {
	streams := []RawStream{{
		ID: 1,
		Progress: []RawProgress{
			{TimeMs: 10, Value: 500},
			{TimeMs: 20, Value: 400},
			{TimeMs: 30, Value: 900},
		},
	}}
	records, _, clamped := NormalizeUpload(streams)
	if clamped != 1 {
		t.Errorf("clamped = %d, want 1", clamped)
	}
	got := []int64{records[0].Events[0].Bytes, records[0].Events[1].Bytes, records[0].Events[2].Bytes}
	want := []int64{500, 0, 500}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("event %d bytes = %d, want %d", i, got[i], want[i])
		}
	}
}

func TestNormalizeDownload(t *testing.T) {
	streams := []RawStream{
		{ID: 1, Progress: []RawProgress{{TimeMs: 120, Value: 10}, {TimeMs: 100, Value: 5}}},
		{ID: 2, Progress: nil},
		{ID: 3, Progress: []RawProgress{{TimeMs: 200, Value: 8}}},
	}
	anchors := map[int]int64{1: 90}

	records, skipped, clamped := NormalizeDownload(streams, anchors)
	if len(skipped) != 1 || skipped[0] != 2 {
		t.Errorf("skipped = %v, want [2]", skipped)
	}
	if clamped != 0 {
		t.Errorf("clamped = %d, want 0", clamped)
	}
	if len(records) != 2 {
		t.Fatalf("len(records) = %d, want 2", len(records))
	}

	first := records[0].Events
	if len(first) != 3 {
		t.Fatalf("stream 1 events = %d, want 3", len(first))
	}
	if first[0].TimeMs != 90 || first[0].Bytes != 0 {
		t.Errorf("anchor event = %+v, want zero bytes at 90", first[0])
	}
	if first[1].TimeMs != 100 || first[2].TimeMs != 120 {
		t.Errorf("events not sorted by time: %+v", first)
	}
	if len(records[1].Events) != 1 {
		t.Errorf("stream without anchor should not gain an event: %+v", records[1].Events)
	}
}

func TestNormalizeDownload_ClampsNegativeBytes(t *testing.T) {
	streams := []RawStream{
		{ID: 1, Progress: []RawProgress{{TimeMs: 10, Value: 40}, {TimeMs: 20, Value: -5}, {TimeMs: 30, Value: -1}}},
	}
	records, _, clamped := NormalizeDownload(streams, nil)
	if clamped != 2 {
		t.Errorf("clamped = %d, want 2", clamped)
	}
	if got := records[0].TotalBytes(); got != 40 {
		t.Errorf("TotalBytes() = %d, want 40", got)
	}
}

func TestLoad_DownloadCountsClampedSamples(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, ByteTimeFile, `[
		{"id": 1, "progress": [{"time": 10, "bytecount": 100}, {"time": 20, "bytecount": -30}]}
	]`)
	test, err := Load(dir, quietLogger())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if test.Clamped != 1 {
		t.Errorf("Clamped = %d, want 1", test.Clamped)
	}
}

func TestLoad_DownloadIgnoresMissingReceiveTime(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, ByteTimeFile, `[
		{"id": 1, "progress": [{"time": 1700000000100, "bytecount": 10}, {"time": 1700000000200, "bytecount": 20}]}
	]`)
	writeFile(t, dir, LatencyFile, `{"test_latency": {"streams": [{"id": 1, "recv_time": null}]}}`)

	test, err := Load(dir, quietLogger())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	events := test.Records[0].Events
	if len(events) != 2 || events[0].TimeMs != 1700000000100 {
		t.Errorf("events = %+v, want the two logged samples only", events)
	}
	if raw := test.Raw(); raw.FirstMs != 1700000000100 {
		t.Errorf("Raw().FirstMs = %d, want 1700000000100", raw.FirstMs)
	}
}

func TestLoad_Download(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, ByteTimeFile, `[
		{"id": 1, "type": "download", "progress": [{"time": 1010, "bytecount": 100}, {"time": 1020.0, "bytecount": "50"}]},
		{"id": 2, "type": "download", "progress": []}
	]`)
	writeFile(t, dir, LatencyFile, `{"test_latency": {"streams": [{"id": 1, "recv_time": 1000}]}}`)

	test, err := Load(dir, quietLogger())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if test.Kind != KindDownload {
		t.Errorf("Kind = %q, want download", test.Kind)
	}
	if len(test.Records) != 1 || len(test.Skipped) != 1 {
		t.Fatalf("records=%d skipped=%v", len(test.Records), test.Skipped)
	}
	raw := test.Raw()
	if raw.Bytes != 150 || raw.FirstMs != 1000 || raw.LastMs != 1020 {
		t.Errorf("Raw() = %+v", raw)
	}
	if test.EventCount() != 3 {
		t.Errorf("EventCount() = %d, want 3", test.EventCount())
	}
}

func TestLoad_Upload(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, ByteTimeFile, `[]`)
	writeFile(t, dir, PositionFile, `[
		{"id": 4, "type": "upload", "progress": [{"time": 10, "current_position": 100}, {"time": 20, "current_position": 250}]}
	]`)

	test, err := Load(dir, quietLogger())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if test.Kind != KindUpload {
		t.Errorf("Kind = %q, want upload", test.Kind)
	}
	if got := test.Records[0].TotalBytes(); got != 250 {
		t.Errorf("TotalBytes() = %d, want 250", got)
	}
}

func TestLoad_Errors(t *testing.T) {
	t.Run("missing byte list", func(t *testing.T) {
		_, err := Load(t.TempDir(), quietLogger())
		if !errors.Is(err, ErrNotFound) || !errors.Is(err, fs.ErrNotExist) {
			t.Errorf("Load() error = %v, want ErrNotFound", err)
		}
	})

	t.Run("upload without positions", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, dir, ByteTimeFile, `[]`)
		_, err := Load(dir, quietLogger())
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("Load() error = %v, want ErrNotFound", err)
		}
	})

	t.Run("malformed json", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, dir, ByteTimeFile, `[{"id": 1,`)
		_, err := Load(dir, quietLogger())
		var de *DecodeError
		if !errors.As(err, &de) {
			t.Fatalf("Load() error = %v, want DecodeError", err)
		}
		if filepath.Base(de.Path) != ByteTimeFile {
			t.Errorf("DecodeError.Path = %q", de.Path)
		}
	})

	t.Run("malformed latency", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, dir, ByteTimeFile, `[{"id": 1, "progress": [{"time": 1, "bytecount": 1}]}]`)
		writeFile(t, dir, LatencyFile, `{"test_latency": `)
		_, err := Load(dir, quietLogger())
		var de *DecodeError
		if !errors.As(err, &de) {
			t.Errorf("Load() error = %v, want DecodeError", err)
		}
	})
}

func TestReadLatencyAnchors_Formats(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    map[int]int64
	}{
		{"nested", `{"test_latency": {"streams": [{"id": 1, "recv_time": 5}, {"id": 2, "recv_time": 9}]}}`, map[int]int64{1: 5, 2: 9}},
		{"flat list", `[{"id": 3, "recv_time": 7.9}]`, map[int]int64{3: 7}},
		{"no streams", `{}`, map[int]int64{}},
		{"null receive time", `{"test_latency": {"streams": [{"id": 1, "recv_time": null}, {"id": 2, "recv_time": 9}]}}`, map[int]int64{2: 9}},
		{"absent receive time", `[{"id": 1}, {"id": 2, "recv_time": 4}]`, map[int]int64{2: 4}},
		{"zero receive time", `[{"id": 1, "recv_time": 0}]`, map[int]int64{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			writeFile(t, dir, LatencyFile, tt.content)
			got, err := ReadLatencyAnchors(filepath.Join(dir, LatencyFile))
			if err != nil {
				t.Fatalf("ReadLatencyAnchors() error = %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
			for id, ts := range tt.want {
				if got[id] != ts {
					t.Errorf("anchor[%d] = %d, want %d", id, got[id], ts)
				}
			}
		})
	}

	got, err := ReadLatencyAnchors(filepath.Join(t.TempDir(), LatencyFile))
	if err != nil || len(got) != 0 {
		t.Errorf("missing latency file: got %v, %v", got, err)
	}
}

func TestTest_Fingerprint(t *testing.T) {
	load := func(content string) string {
		t.Helper()
		dir := t.TempDir()
		writeFile(t, dir, ByteTimeFile, content)
		test, err := Load(dir, quietLogger())
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		return test.Fingerprint()
	}

	base := `[{"id": 1, "progress": [{"time": 10, "bytecount": 100}, {"time": 20, "bytecount": 50}]}]`
	fp := load(base)
	if len(fp) != 64 {
		t.Errorf("Fingerprint() = %q, want 64 hex chars", fp)
	}
	if got := load(base); got != fp {
		t.Errorf("Fingerprint() not stable: %s != %s", got, fp)
	}
	if got := load(`[{"id": 1, "progress": [{"time": 10, "bytecount": 200}, {"time": 20, "bytecount": 50}]}]`); got == fp {
		t.Error("changed byte count should change the fingerprint")
	}
	if got := load(`[{"id": 1, "progress": [{"time": 10, "bytecount": 100}, {"time": 21, "bytecount": 50}]}]`); got == fp {
		t.Error("changed timestamp should change the fingerprint")
	}
}

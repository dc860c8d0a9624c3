package ingest

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
)

// Load reads the progress logs in dir and returns the normalized test.
//
// An empty byte_time_list.json marks an upload test, whose cumulative
// positions are read from current_position_list.json. Otherwise the test is a
// download and latency_data.json, when present, anchors each stream at its
// first receive time.
func Load(dir string, logger *slog.Logger) (*Test, error) {
	if logger == nil {
		logger = slog.Default()
	}

	byteStreams, err := ReadStreams(filepath.Join(dir, ByteTimeFile))
	if err != nil {
		return nil, err
	}

	t := &Test{Dir: dir}
	if len(byteStreams) == 0 {
		t.Kind = KindUpload
		posStreams, err := ReadStreams(filepath.Join(dir, PositionFile))
		if err != nil {
			return nil, fmt.Errorf("upload test: %w", err)
		}
		t.Records, t.Skipped, t.Clamped = NormalizeUpload(posStreams)
	} else {
		t.Kind = KindDownload
		anchors, err := ReadLatencyAnchors(filepath.Join(dir, LatencyFile))
		if err != nil {
			return nil, err
		}
		t.Records, t.Skipped, t.Clamped = NormalizeDownload(byteStreams, anchors)
		logger.Debug("latency_anchors", "streams", len(anchors))
	}

	for _, id := range t.Skipped {
		logger.Warn("stream_skipped", "stream_id", id, "reason", "empty progress list")
	}
	if t.Clamped > 0 {
		logger.Warn("negative_samples_clamped", "kind", t.Kind, "count", t.Clamped)
	}
	logger.Info("streams_loaded",
		"kind", t.Kind,
		"streams", len(t.Records),
		"skipped", len(t.Skipped),
		"events", t.EventCount(),
	)
	return t, nil
}

// NormalizeDownload turns download progress samples into events. Streams
// with an anchor get a zero-byte event at the anchor time ahead of their
// samples. Negative byte counts become zero and are counted in the returned
// clamp count.
func NormalizeDownload(streams []RawStream, anchors map[int]int64) ([]StreamRecord, []int, int) {
	var records []StreamRecord
	var skipped []int
	clamped := 0
	for _, s := range streams {
		if len(s.Progress) == 0 {
			skipped = append(skipped, s.ID)
			continue
		}
		events := make([]Event, 0, len(s.Progress)+1)
		if anchor, ok := anchors[s.ID]; ok {
			events = append(events, Event{StreamID: s.ID, TimeMs: anchor})
		}
		for _, p := range s.Progress {
			if p.Value < 0 {
				clamped++
			}
			events = append(events, Event{StreamID: s.ID, TimeMs: p.TimeMs, Bytes: max(p.Value, 0)})
		}
		records = append(records, newRecord(s.ID, KindDownload, events))
	}
	return records, skipped, clamped
}

// NormalizeUpload converts cumulative positions into deltas, starting from an
// implicit position of zero. Positions that go backwards yield a zero delta
// and are counted in the returned clamp count.
func NormalizeUpload(streams []RawStream) ([]StreamRecord, []int, int) {
	var records []StreamRecord
	var skipped []int
	clamped := 0
	for _, s := range streams {
		if len(s.Progress) == 0 {
			skipped = append(skipped, s.ID)
			continue
		}
		events := make([]Event, 0, len(s.Progress))
		var prev int64
		for _, p := range s.Progress {
			delta := p.Value - prev
			if delta < 0 {
				clamped++
				delta = 0
			}
			events = append(events, Event{StreamID: s.ID, TimeMs: p.TimeMs, Bytes: delta})
			prev = p.Value
		}
		records = append(records, newRecord(s.ID, KindUpload, events))
	}
	return records, skipped, clamped
}

func newRecord(id int, kind Kind, events []Event) StreamRecord {
	sort.SliceStable(events, func(i, j int) bool { return events[i].TimeMs < events[j].TimeMs })
	return StreamRecord{ID: id, Kind: kind, Events: events}
}

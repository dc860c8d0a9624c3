// Package ingest loads the per-stream progress logs of a speed test and
// normalizes them into byte-delta events.
package ingest

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"io"

	"github.com/randomizedcoder/go-flow-throughput/internal/bytecount"
)

// Kind is the test direction, inferred from which log carries data.
type Kind string

const (
	KindDownload Kind = "download"
	KindUpload   Kind = "upload"
)

// Event is one observation: Bytes transferred by a stream up to TimeMs since
// its previous event.
type Event struct {
	StreamID int
	TimeMs   int64
	Bytes    int64
}

// StreamRecord is the ordered event list of one HTTP flow.
type StreamRecord struct {
	ID     int
	Kind   Kind
	Events []Event
}

// TotalBytes sums the deltas of the record.
func (r StreamRecord) TotalBytes() int64 {
	var total int64
	for _, e := range r.Events {
		total += e.Bytes
	}
	return total
}

// Span returns the first and last event timestamps. ok is false for a record
// without events.
func (r StreamRecord) Span() (first, last int64, ok bool) {
	if len(r.Events) == 0 {
		return 0, 0, false
	}
	return r.Events[0].TimeMs, r.Events[len(r.Events)-1].TimeMs, true
}

// RawProgress is one progress sample as logged: a byte delta for downloads, a
// cumulative position for uploads.
type RawProgress struct {
	TimeMs int64
	Value  int64
}

// RawStream is a stream as it appears in the input logs.
type RawStream struct {
	ID       int
	Type     string
	Progress []RawProgress
}

// Test is a normalized speed test.
type Test struct {
	Dir     string
	Kind    Kind
	Records []StreamRecord
	// Skipped lists ids of streams with an empty progress list.
	Skipped []int
	// Clamped counts samples clamped to zero bytes: upload positions that
	// went backwards and negative download byte counts.
	Clamped int
}

// Raw summarizes the normalized events for byte conservation checks.
func (t *Test) Raw() bytecount.Raw {
	var raw bytecount.Raw
	seen := false
	for _, r := range t.Records {
		raw.Bytes += r.TotalBytes()
		first, last, ok := r.Span()
		if !ok {
			continue
		}
		if !seen || first < raw.FirstMs {
			raw.FirstMs = first
		}
		if !seen || last > raw.LastMs {
			raw.LastMs = last
		}
		seen = true
	}
	return raw
}

// Fingerprint returns a hex SHA-256 digest of the kind and the normalized
// events. Two loads of unchanged inputs give the same fingerprint.
func (t *Test) Fingerprint() string {
	h := sha256.New()
	io.WriteString(h, string(t.Kind))
	var buf [8]byte
	put := func(v int64) {
		binary.LittleEndian.PutUint64(buf[:], uint64(v))
		h.Write(buf[:])
	}
	for _, r := range t.Records {
		put(int64(r.ID))
		put(int64(len(r.Events)))
		for _, e := range r.Events {
			put(e.TimeMs)
			put(e.Bytes)
		}
	}
	return hex.EncodeToString(h.Sum(nil))
}

// EventCount returns the number of events across all records.
func (t *Test) EventCount() int {
	n := 0
	for _, r := range t.Records {
		n += len(r.Events)
	}
	return n
}

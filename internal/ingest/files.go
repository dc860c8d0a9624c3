package ingest

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
)

// Input file names inside a test directory.
const (
	ByteTimeFile = "byte_time_list.json"
	PositionFile = "current_position_list.json"
	LatencyFile  = "latency_data.json"
	SocketFile   = "socketIds.json"
)

// ErrNotFound is returned when a required input file does not exist.
var ErrNotFound = errors.New("input file not found")

// DecodeError reports a malformed input file.
type DecodeError struct {
	Path string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s: %v", e.Path, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// readJSON decodes path into v. A missing file yields an error wrapping both
// ErrNotFound and fs.ErrNotExist.
func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s: %w", ErrNotFound, path, fs.ErrNotExist)
		}
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return &DecodeError{Path: path, Err: err}
	}
	return nil
}

// number accepts JSON integers, floats and numeric strings, truncating to int64.
type number int64

func (n *number) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*n = 0
		return nil
	}
	s := strings.Trim(string(data), `"`)
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		*n = number(i)
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("invalid number %s", data)
	}
	*n = number(int64(f))
	return nil
}

type progressJSON struct {
	Time     number  `json:"time"`
	Bytes    *number `json:"bytecount"`
	Position *number `json:"current_position"`
}

type streamJSON struct {
	ID       number         `json:"id"`
	Type     string         `json:"type"`
	Progress []progressJSON `json:"progress"`
}

func (s streamJSON) raw() RawStream {
	rs := RawStream{ID: int(s.ID), Type: s.Type, Progress: make([]RawProgress, 0, len(s.Progress))}
	for _, p := range s.Progress {
		var v number
		switch {
		case p.Bytes != nil:
			v = *p.Bytes
		case p.Position != nil:
			v = *p.Position
		}
		rs.Progress = append(rs.Progress, RawProgress{TimeMs: int64(p.Time), Value: int64(v)})
	}
	return rs
}

// ReadStreams decodes a byte_time_list or current_position_list file.
func ReadStreams(path string) ([]RawStream, error) {
	var items []streamJSON
	if err := readJSON(path, &items); err != nil {
		return nil, err
	}
	out := make([]RawStream, len(items))
	for i, item := range items {
		out[i] = item.raw()
	}
	return out, nil
}

type latencyStream struct {
	ID       number  `json:"id"`
	RecvTime *number `json:"recv_time"`
}

// ReadLatencyAnchors decodes latency_data.json into stream id -> first receive
// time. Both {"test_latency":{"streams":[...]}} and a bare stream list are
// accepted. A missing file yields an empty map. Entries without a positive
// recv_time are skipped; such streams are not anchored.
func ReadLatencyAnchors(path string) (map[int]int64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return map[int]int64{}, nil
		}
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	var streams []latencyStream
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &streams); err != nil {
			return nil, &DecodeError{Path: path, Err: err}
		}
	} else {
		var doc struct {
			TestLatency struct {
				Streams []latencyStream `json:"streams"`
			} `json:"test_latency"`
		}
		if err := json.Unmarshal(trimmed, &doc); err != nil {
			return nil, &DecodeError{Path: path, Err: err}
		}
		streams = doc.TestLatency.Streams
	}

	anchors := make(map[int]int64, len(streams))
	for _, s := range streams {
		if s.RecvTime == nil || *s.RecvTime <= 0 {
			continue
		}
		anchors[int(s.ID)] = int64(*s.RecvTime)
	}
	return anchors, nil
}

package timeline

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/randomizedcoder/go-flow-throughput/internal/ingest"
)

// Span is the active window of one stream and the socket it ran on, if known.
type Span struct {
	StreamID int
	First    int64
	Last     int64
	Bytes    int64
	Socket   *int
}

// DurationMs returns Last minus First.
func (s *Span) DurationMs() int64 { return s.Last - s.First }

// Spans maps each stream to its first and last event time.
func Spans(records []ingest.StreamRecord) map[int]*Span {
	spans := make(map[int]*Span, len(records))
	for _, r := range records {
		first, last, ok := r.Span()
		if !ok {
			continue
		}
		if s, exists := spans[r.ID]; exists {
			s.First = min(s.First, first)
			s.Last = max(s.Last, last)
			s.Bytes += r.TotalBytes()
			continue
		}
		spans[r.ID] = &Span{StreamID: r.ID, First: first, Last: last, Bytes: r.TotalBytes()}
	}
	return spans
}

// SocketReport summarizes a socket association file.
type SocketReport struct {
	Associated int
	Unknown    int
	Malformed  int
}

// LoadSockets reads stream-to-socket associations and attaches them to spans.
// The file is either a JSON list of [stream_id, _, socket_id] triples or
// legacy text with one "stream_id,_,socket_id" per line. A missing file is
// not an error.
func LoadSockets(path string, spans map[int]*Span, logger *slog.Logger) (SocketReport, error) {
	var report SocketReport
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return report, nil
		}
		return report, fmt.Errorf("read %s: %w", path, err)
	}

	pairs, malformed := parseSocketJSON(data, logger)
	if pairs == nil {
		pairs, malformed = parseSocketText(data, logger)
	}
	report.Malformed = malformed

	for _, p := range pairs {
		s, ok := spans[p.stream]
		if !ok {
			report.Unknown++
			continue
		}
		sock := p.socket
		s.Socket = &sock
		report.Associated++
	}
	logger.Debug("sockets_loaded",
		"associated", report.Associated,
		"unknown", report.Unknown,
		"malformed", report.Malformed,
	)
	return report, nil
}

type socketPair struct {
	stream int
	socket int
}

// parseSocketJSON returns nil pairs when data is not a JSON list.
func parseSocketJSON(data []byte, logger *slog.Logger) ([]socketPair, int) {
	var rows [][]any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&rows); err != nil {
		return nil, 0
	}
	pairs := make([]socketPair, 0, len(rows))
	malformed := 0
	for i, row := range rows {
		if len(row) < 3 {
			malformed++
			logger.Warn("socket_row_invalid", "row", i, "fields", len(row))
			continue
		}
		stream, ok1 := toInt(row[0])
		socket, ok2 := toInt(row[2])
		if !ok1 || !ok2 {
			malformed++
			logger.Warn("socket_row_invalid", "row", i, "stream", row[0], "socket", row[2])
			continue
		}
		pairs = append(pairs, socketPair{stream: stream, socket: socket})
	}
	return pairs, malformed
}

func toInt(v any) (int, bool) {
	var s string
	switch x := v.(type) {
	case json.Number:
		s = x.String()
	case string:
		s = strings.TrimSpace(x)
	default:
		return 0, false
	}
	n, err := strconv.Atoi(s)
	return n, err == nil
}

func parseSocketText(data []byte, logger *slog.Logger) ([]socketPair, int) {
	pairs := []socketPair{}
	malformed := 0
	sc := bufio.NewScanner(bytes.NewReader(data))
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}
		fields := strings.Split(text, ",")
		if len(fields) < 3 {
			malformed++
			logger.Warn("socket_line_invalid", "line", line, "text", text)
			continue
		}
		stream, err1 := strconv.Atoi(strings.TrimSpace(fields[0]))
		socket, err2 := strconv.Atoi(strings.TrimSpace(fields[2]))
		if err1 != nil || err2 != nil {
			malformed++
			logger.Warn("socket_line_invalid", "line", line, "text", text)
			continue
		}
		pairs = append(pairs, socketPair{stream: stream, socket: socket})
	}
	return pairs, malformed
}

// SocketGroup lists the streams that reused one socket, ordered by start
// time, with the idle gap before each stream after the first.
type SocketGroup struct {
	Socket  int     `json:"socket"`
	Streams []int   `json:"streams"`
	GapsMs  []int64 `json:"gaps_ms"`
}

// SocketGroups groups spans with a known socket.
func SocketGroups(spans map[int]*Span) []SocketGroup {
	bySocket := make(map[int][]*Span)
	for _, s := range spans {
		if s.Socket != nil {
			bySocket[*s.Socket] = append(bySocket[*s.Socket], s)
		}
	}

	groups := make([]SocketGroup, 0, len(bySocket))
	for socket, members := range bySocket {
		sort.Slice(members, func(i, j int) bool {
			if members[i].First != members[j].First {
				return members[i].First < members[j].First
			}
			return members[i].StreamID < members[j].StreamID
		})
		g := SocketGroup{Socket: socket, GapsMs: []int64{}}
		for i, m := range members {
			g.Streams = append(g.Streams, m.StreamID)
			if i > 0 {
				g.GapsMs = append(g.GapsMs, m.First-members[i-1].Last)
			}
		}
		groups = append(groups, g)
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].Socket < groups[j].Socket })
	return groups
}

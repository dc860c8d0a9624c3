// Package stats accumulates the statistics of an analysis run and writes
// them out as JSON documents and CSV rows.
//
// Keys are dotted paths ("throughput.interval_50ms.mean") that nest into
// JSON objects. Summary values end up in test_summary.json; detailed values
// (large series) are written one file per top-level key.
package stats

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Default output names.
const (
	SummaryFile = "test_summary.json"
	DetailedDir = "detailed_data"
)

// Accumulator collects summary and detailed statistics. It is not safe for
// concurrent use.
type Accumulator struct {
	baseDir  string
	summary  map[string]any
	detailed map[string]any
}

// NewAccumulator creates an accumulator whose outputs are written to baseDir.
func NewAccumulator(baseDir string) *Accumulator {
	return &Accumulator{
		baseDir:  baseDir,
		summary:  make(map[string]any),
		detailed: make(map[string]any),
	}
}

// BaseDir returns the output directory.
func (a *Accumulator) BaseDir() string { return a.baseDir }

// Add stores value under the dotted key in the summary.
func (a *Accumulator) Add(key string, value any) {
	setPath(a.summary, key, value)
}

// AddDetailed stores value under the dotted key in the detailed data.
func (a *Accumulator) AddDetailed(key string, value any) {
	setPath(a.detailed, key, value)
}

// AddObject stores v under key after converting it to its JSON object form,
// so struct fields become nested keys that Flatten and AppendCSV can see.
func (a *Accumulator) AddObject(key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("stats: encode %s: %w", key, err)
	}
	var obj any
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("stats: decode %s: %w", key, err)
	}
	a.Add(key, obj)
	return nil
}

// AddBulk adds every entry of values to the summary.
func (a *Accumulator) AddBulk(values map[string]any) {
	for k, v := range values {
		a.Add(k, v)
	}
}

// AddPhase adds values under the "phases.<name>" prefix.
func (a *Accumulator) AddPhase(name string, values map[string]any) {
	for k, v := range values {
		a.Add("phases."+name+"."+k, v)
	}
}

// Get returns the summary value at the dotted key, or def when absent.
func (a *Accumulator) Get(key string, def any) any {
	var cur any = a.summary
	for _, part := range strings.Split(key, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return def
		}
		if cur, ok = m[part]; !ok {
			return def
		}
	}
	return cur
}

// Summary returns the summary tree. The map is owned by the accumulator.
func (a *Accumulator) Summary() map[string]any { return a.summary }

func setPath(root map[string]any, key string, value any) {
	parts := strings.Split(key, ".")
	cur := root
	for _, part := range parts[:len(parts)-1] {
		next, ok := cur[part].(map[string]any)
		if !ok {
			next = make(map[string]any)
			cur[part] = next
		}
		cur = next
	}
	cur[parts[len(parts)-1]] = value
}

// SaveSummary writes the summary as indented JSON to name inside the base
// directory and returns the written path.
func (a *Accumulator) SaveSummary(name string) (string, error) {
	if name == "" {
		name = SummaryFile
	}
	if err := os.MkdirAll(a.baseDir, 0o755); err != nil {
		return "", fmt.Errorf("create %s: %w", a.baseDir, err)
	}
	path := filepath.Join(a.baseDir, name)
	if err := WriteJSON(path, a.summary); err != nil {
		return "", err
	}
	return path, nil
}

// SaveDetailed writes one JSON file per top-level detailed key into dir,
// relative to the base directory. It returns the written paths in key order.
func (a *Accumulator) SaveDetailed(dir string) ([]string, error) {
	if len(a.detailed) == 0 {
		return nil, nil
	}
	if dir == "" {
		dir = DetailedDir
	}
	outDir := filepath.Join(a.baseDir, dir)
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("create %s: %w", outDir, err)
	}

	keys := make([]string, 0, len(a.detailed))
	for k := range a.detailed {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	paths := make([]string, 0, len(keys))
	for _, k := range keys {
		path := filepath.Join(outDir, k+".json")
		if err := WriteJSON(path, a.detailed[k]); err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

// SaveAll writes the summary and the detailed data with default names.
func (a *Accumulator) SaveAll() ([]string, error) {
	summary, err := a.SaveSummary(SummaryFile)
	if err != nil {
		return nil, err
	}
	detailed, err := a.SaveDetailed(DetailedDir)
	return append([]string{summary}, detailed...), err
}

// WriteText prints the flattened summary, one "key: value" per line.
func (a *Accumulator) WriteText(w io.Writer) error {
	flat := a.Flatten(".")
	keys := make([]string, 0, len(flat))
	for k := range flat {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if _, err := fmt.Fprintf(w, "%s: %v\n", k, flat[k]); err != nil {
			return err
		}
	}
	return nil
}

// Flatten returns the summary with nested keys joined by sep.
func (a *Accumulator) Flatten(sep string) map[string]any {
	out := make(map[string]any)
	flatten(out, "", sep, a.summary)
	return out
}

func flatten(out map[string]any, prefix, sep string, v any) {
	m, ok := v.(map[string]any)
	if !ok {
		out[prefix] = v
		return
	}
	for k, child := range m {
		key := k
		if prefix != "" {
			key = prefix + sep + k
		}
		flatten(out, key, sep, child)
	}
}

// WriteJSON writes v to path as JSON indented with four spaces.
func WriteJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "    ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

package stats

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
)

// ConfigsCSV is the default file collecting one row per analysed test.
const ConfigsCSV = "configs_data.csv"

// AppendCSV appends the flattened summary (keys joined by "_") as one row of
// the CSV file at path. A new file gets a header; an existing file whose
// header lacks some keys is rewritten with the union of columns, leaving
// older rows empty in the new columns.
func (a *Accumulator) AppendCSV(path string) error {
	row := a.Flatten("_")

	header, rows, err := readCSV(path)
	if err != nil {
		return err
	}

	known := make(map[string]bool, len(header))
	for _, h := range header {
		known[h] = true
	}
	var added []string
	for k := range row {
		if !known[k] {
			added = append(added, k)
		}
	}
	sort.Strings(added)
	header = append(header, added...)

	record := make([]string, len(header))
	for i, h := range header {
		if v, ok := row[h]; ok {
			record[i] = formatCell(v)
		}
	}
	rows = append(rows, record)

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return err
	}
	for _, r := range rows {
		for len(r) < len(header) {
			r = append(r, "")
		}
		if err := w.Write(r); err != nil {
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}

func readCSV(path string) ([]string, [][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil, nil
		}
		return nil, nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("read %s: %w", path, err)
	}
	if len(records) == 0 {
		return nil, nil, nil
	}
	return records[0], records[1:], nil
}

func formatCell(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'g', -1, 32)
	default:
		return fmt.Sprint(x)
	}
}

package bytecount

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// MarshalJSON encodes the map as {"<ts>": [bytes, flows]}. encoding/json sorts
// map keys, so the output is stable.
func (m Map) MarshalJSON() ([]byte, error) {
	out := make(map[string][2]float64, len(m))
	for ts, e := range m {
		out[strconv.FormatInt(ts, 10)] = [2]float64{e.Bytes, float64(e.Flows)}
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes the {"<ts>": [bytes, flows]} form, restoring integer
// timestamp keys exactly.
func (m *Map) UnmarshalJSON(data []byte) error {
	var raw map[string][]float64
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make(Map, len(raw))
	for key, pair := range raw {
		ts, err := ParseKey(key)
		if err != nil {
			return err
		}
		if len(pair) != 2 {
			return fmt.Errorf("bytecount: entry %q has %d values, want 2", key, len(pair))
		}
		out[ts] = Entry{Bytes: pair[0], Flows: int(pair[1])}
	}
	*m = out
	return nil
}

// ParseKey converts a serialized timestamp key back to milliseconds.
func ParseKey(key string) (int64, error) {
	ts, err := strconv.ParseInt(key, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("bytecount: invalid timestamp key %q: %w", key, err)
	}
	return ts, nil
}

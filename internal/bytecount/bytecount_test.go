package bytecount

import (
	"encoding/json"
	"math"
	"slices"
	"testing"
)

func TestMap_Timestamps(t *testing.T) {
	m := Map{30: {}, 10: {}, 20: {}}
	got := m.Timestamps()
	want := []int64{10, 20, 30}
	if !slices.Equal(got, want) {
		t.Errorf("Timestamps() = %v, want %v", got, want)
	}
}

func TestMap_CloneIsIndependent(t *testing.T) {
	m := Map{10: {Bytes: 5, Flows: 1}}
	c := m.Clone()
	c[10] = Entry{Bytes: 99, Flows: 3}
	if m[10].Bytes != 5 {
		t.Errorf("original mutated through clone: %v", m[10])
	}
	if Map(nil).Clone() != nil {
		t.Error("Clone() of nil map should be nil")
	}
}

func TestMap_Aggregates(t *testing.T) {
	m := Map{
		0:  {Bytes: 0, Flows: 0},
		10: {Bytes: 50, Flows: 1},
		20: {Bytes: 75, Flows: 2},
		30: {Bytes: 25, Flows: 1},
	}

	if got := m.TotalBytes(); got != 150 {
		t.Errorf("TotalBytes() = %v, want 150", got)
	}
	if got := m.MaxFlows(); got != 2 {
		t.Errorf("MaxFlows() = %d, want 2", got)
	}

	hist := m.FlowHistogram()
	if hist[0] != 1 || hist[1] != 2 || hist[2] != 1 {
		t.Errorf("FlowHistogram() = %v", hist)
	}

	two := m.Filter(func(_ int64, e Entry) bool { return e.Flows == 2 })
	if len(two) != 1 || two[20].Bytes != 75 {
		t.Errorf("Filter() = %v, want only ts 20", two)
	}
	if len(m) != 4 {
		t.Errorf("Filter() mutated the source map")
	}
}

func TestMap_JSONRoundTripKeepsIntegerKeys(t *testing.T) {
	m := Map{
		1700000000123: {Bytes: 12.5, Flows: 3},
		1700000000124: {Bytes: 0, Flows: 0},
	}

	data, err := json.Marshal(m)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	want := `{"1700000000123":[12.5,3],"1700000000124":[0,0]}`
	if string(data) != want {
		t.Errorf("Marshal() = %s, want %s", data, want)
	}

	var back Map
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if back[1700000000123] != (Entry{Bytes: 12.5, Flows: 3}) {
		t.Errorf("round trip entry = %v", back[1700000000123])
	}
}

func TestMap_UnmarshalErrors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"non integer key", `{"12.5":[1,1]}`},
		{"short pair", `{"12":[1]}`},
		{"not an object", `[1,2]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var m Map
			if err := json.Unmarshal([]byte(tt.data), &m); err == nil {
				t.Errorf("Unmarshal(%s) expected error", tt.data)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	m := Map{
		1000: {Bytes: 0},
		2000: {Bytes: 600, Flows: 2},
		3000: {Bytes: 300, Flows: 1},
	}
	v := Validate(Raw{Bytes: 1000, FirstMs: 1000, LastMs: 3500}, m, 100)

	if v.ProcessedBytes != 900 {
		t.Errorf("ProcessedBytes = %v, want 900", v.ProcessedBytes)
	}
	if math.Abs(v.PercentLoss-10) > 1e-9 {
		t.Errorf("PercentLoss = %v, want 10", v.PercentLoss)
	}
	if v.RawDurationSec != 2.5 || v.CountDurationSec != 2 {
		t.Errorf("durations = %v/%v, want 2.5/2", v.RawDurationSec, v.CountDurationSec)
	}
	if v.MaxFlows != 2 {
		t.Errorf("MaxFlows = %d, want 2", v.MaxFlows)
	}

	empty := Validate(Raw{}, Map{}, 0)
	if empty.PercentLoss != 0 || empty.CountDurationSec != 0 {
		t.Errorf("Validate(empty) = %+v", empty)
	}
}

package bytecount

// Raw describes the input events a map was built from.
type Raw struct {
	Bytes   int64
	FirstMs int64
	LastMs  int64
}

// Validation compares the raw stream totals with a redistributed map.
type Validation struct {
	RawBytes         int64   `json:"total_raw_bytes"`
	ProcessedBytes   float64 `json:"total_processed_bytes"`
	DroppedBaseline  int64   `json:"dropped_baseline_bytes"`
	RawDurationSec   float64 `json:"list_duration_sec"`
	CountDurationSec float64 `json:"count_duration_sec"`
	PercentLoss      float64 `json:"percent_byte_loss"`
	MaxFlows         int     `json:"num_sockets"`
}

// Validate reports byte conservation and timeline coverage. Bytes dropped by
// the zero-baseline rule are listed separately; PercentLoss covers them too.
func Validate(raw Raw, m Map, droppedBaseline int64) Validation {
	v := Validation{
		RawBytes:        raw.Bytes,
		ProcessedBytes:  m.TotalBytes(),
		DroppedBaseline: droppedBaseline,
		RawDurationSec:  float64(raw.LastMs-raw.FirstMs) / 1000,
		MaxFlows:        m.MaxFlows(),
	}
	if keys := m.Timestamps(); len(keys) > 1 {
		v.CountDurationSec = float64(keys[len(keys)-1]-keys[0]) / 1000
	}
	if raw.Bytes > 0 {
		v.PercentLoss = (float64(raw.Bytes) - v.ProcessedBytes) / float64(raw.Bytes) * 100
	}
	return v
}

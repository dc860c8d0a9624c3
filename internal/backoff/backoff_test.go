package backoff

import (
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Initial != 250*time.Millisecond {
		t.Errorf("Initial = %v, want 250ms", cfg.Initial)
	}
	if cfg.Max != 5*time.Second {
		t.Errorf("Max = %v, want 5s", cfg.Max)
	}
	if cfg.Multiplier != 1.7 {
		t.Errorf("Multiplier = %v, want 1.7", cfg.Multiplier)
	}
	if cfg.JitterPct != 0.4 {
		t.Errorf("JitterPct = %v, want 0.4", cfg.JitterPct)
	}
}

func TestBackoff_NoJitter(t *testing.T) {
	b := New(1, Config{
		Initial:    100 * time.Millisecond,
		Max:        time.Second,
		Multiplier: 2,
	})

	want := []time.Duration{
		100 * time.Millisecond,
		200 * time.Millisecond,
		400 * time.Millisecond,
		800 * time.Millisecond,
		time.Second,
		time.Second,
	}
	for i, w := range want {
		if got := b.Next(); got != w {
			t.Errorf("Next() #%d = %v, want %v", i, got, w)
		}
	}
	if b.Attempts() != len(want) {
		t.Errorf("Attempts() = %d, want %d", b.Attempts(), len(want))
	}

	b.Reset()
	if b.Attempts() != 0 {
		t.Errorf("Attempts() after Reset = %d", b.Attempts())
	}
	if got := b.Calculate(); got != 100*time.Millisecond {
		t.Errorf("Calculate() after Reset = %v, want 100ms", got)
	}
}

func TestBackoff_JitterBounds(t *testing.T) {
	cfg := DefaultConfig()
	b := New(42, cfg)
	for i := 0; i < 20; i++ {
		base := float64(cfg.Initial) * pow(cfg.Multiplier, i)
		if base > float64(cfg.Max) {
			base = float64(cfg.Max)
		}
		lo := time.Duration(base * 0.8)
		hi := time.Duration(base * 1.2)
		if got := b.Next(); got < lo || got > hi {
			t.Errorf("Next() #%d = %v, want within [%v, %v]", i, got, lo, hi)
		}
	}
}

func TestBackoff_Deterministic(t *testing.T) {
	a := New(7, DefaultConfig())
	b := New(7, DefaultConfig())
	for i := 0; i < 5; i++ {
		if x, y := a.Next(), b.Next(); x != y {
			t.Fatalf("attempt %d: %v != %v for the same seed", i, x, y)
		}
	}
}

func pow(x float64, n int) float64 {
	r := 1.0
	for i := 0; i < n; i++ {
		r *= x
	}
	return r
}

// Package backoff computes exponential retry delays with jitter.
package backoff

import (
	"math"
	"math/rand"
	"time"
)

// Config holds the configuration for exponential backoff.
type Config struct {
	Initial    time.Duration // first delay (default: 250ms)
	Max        time.Duration // cap on the base delay (default: 5s)
	Multiplier float64       // growth per attempt (default: 1.7)
	JitterPct  float64       // jitter as a fraction of the delay (default: 0.4 = ±20%)
}

// DefaultConfig returns the delays used when re-establishing a directory
// watch.
func DefaultConfig() Config {
	return Config{
		Initial:    250 * time.Millisecond,
		Max:        5 * time.Second,
		Multiplier: 1.7,
		JitterPct:  0.4,
	}
}

// Backoff tracks consecutive failures. It is not safe for concurrent use.
type Backoff struct {
	config   Config
	attempts int
	rng      *rand.Rand
}

// New creates a Backoff whose jitter sequence is determined by seed.
func New(seed int64, cfg Config) *Backoff {
	return &Backoff{
		config: cfg,
		rng:    rand.New(rand.NewSource(seed)),
	}
}

// NewFromTime creates a Backoff seeded from the current time.
func NewFromTime(cfg Config) *Backoff {
	return New(time.Now().UnixNano(), cfg)
}

// Next returns the delay for the current attempt and counts it.
func (b *Backoff) Next() time.Duration {
	d := b.Calculate()
	b.attempts++
	return d
}

// Calculate returns the delay for the current attempt without counting it.
func (b *Backoff) Calculate() time.Duration {
	delay := float64(b.config.Initial) * math.Pow(b.config.Multiplier, float64(b.attempts))
	if delay > float64(b.config.Max) {
		delay = float64(b.config.Max)
	}

	// JitterPct=0.4 spreads the delay over ±20%.
	if b.config.JitterPct > 0 {
		spread := delay * b.config.JitterPct
		delay += spread*b.rng.Float64() - spread/2
	}
	if delay < 0 {
		delay = 0
	}
	return time.Duration(delay)
}

// Reset clears the attempt counter after a success.
func (b *Backoff) Reset() {
	b.attempts = 0
}

// Attempts returns the number of delays handed out since the last Reset.
func (b *Backoff) Attempts() int {
	return b.attempts
}

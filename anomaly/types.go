// Package anomaly flags statistical outliers on sampled metric streams.
//
// The detector keeps O(1) incremental state per key: a Welford accumulator
// for the lifetime mean and variance, and a short trailing window for the
// growth slope. Spikes are judged against statistics from strictly earlier
// observations, so the spike sample itself never dilutes the baseline it is
// compared to.
package anomaly

import (
	"fmt"
	"time"
)

// Kind classifies a detected anomaly.
type Kind int

const (
	KindSpike Kind = iota
	KindSustainedGrowth
)

func (k Kind) String() string {
	switch k {
	case KindSpike:
		return "spike"
	case KindSustainedGrowth:
		return "sustained-growth"
	default:
		return "unknown"
	}
}

// MarshalJSON encodes the kind as its string name.
func (k Kind) MarshalJSON() ([]byte, error) {
	return []byte(`"` + k.String() + `"`), nil
}

// Severity grades an anomaly by how far it exceeds its trigger threshold.
type Severity int

const (
	SeverityLow Severity = iota
	SeverityMedium
	SeverityHigh
)

func (s Severity) String() string {
	switch s {
	case SeverityLow:
		return "low"
	case SeverityMedium:
		return "medium"
	case SeverityHigh:
		return "high"
	default:
		return "unknown"
	}
}

// MarshalJSON encodes the severity as its string name.
func (s Severity) MarshalJSON() ([]byte, error) {
	return []byte(`"` + s.String() + `"`), nil
}

// Event is one detected anomaly. PID is zero for system-scoped keys.
type Event struct {
	Key      string    `json:"key"`
	PID      int32     `json:"pid,omitempty"`
	Kind     Kind      `json:"kind"`
	Severity Severity  `json:"severity"`
	Value    float64   `json:"value"`
	Mean     float64   `json:"mean"`
	StdDev   float64   `json:"stddev"`
	Slope    float64   `json:"slope,omitempty"`
	At       time.Time `json:"at"`
	Message  string    `json:"message"`
}

// Trend summarizes the recent direction of a key relative to its lifetime.
type Trend int

const (
	TrendStable Trend = iota
	TrendRising
	TrendFalling
)

func (t Trend) String() string {
	switch t {
	case TrendRising:
		return "rising"
	case TrendFalling:
		return "falling"
	default:
		return "stable"
	}
}

// MarshalJSON encodes the trend as its string name.
func (t Trend) MarshalJSON() ([]byte, error) {
	return []byte(`"` + t.String() + `"`), nil
}

// Stats is a read-only copy of a key's detector state.
type Stats struct {
	Count       int       `json:"count"`
	Mean        float64   `json:"mean"`
	StdDev      float64   `json:"stddev"`
	Slope       float64   `json:"slope"`
	Trend       Trend     `json:"trend"`
	LastKind    Kind      `json:"last_kind"`
	LastEventAt time.Time `json:"last_event_at"`
}

// ProfileStats pairs the CPU and memory statistics of one process.
type ProfileStats struct {
	PID        int32   `json:"pid"`
	CPU        Stats   `json:"cpu"`
	Memory     Stats   `json:"memory"`
	Efficiency float64 `json:"efficiency"`
}

// Config tunes the detector. Zero values are replaced by the defaults.
type Config struct {
	// SpikeSensitivity is k in the spike rule value > mean + k*stddev.
	SpikeSensitivity float64
	// MinSamples is how many prior observations a key needs before spike
	// checks apply.
	MinSamples int
	// SlopeWindow is the number of trailing points fitted for the growth
	// slope.
	SlopeWindow int
	// GrowthTicks is how many consecutive above-threshold slopes raise a
	// sustained-growth event.
	GrowthTicks int
	// DefaultSlope is the growth threshold, in value units per second, for
	// keys without a more specific threshold.
	DefaultSlope float64
}

// DefaultConfig returns the detector defaults.
func DefaultConfig() Config {
	return Config{
		SpikeSensitivity: 3.0,
		MinSamples:       5,
		SlopeWindow:      10,
		GrowthTicks:      3,
		DefaultSlope:     1.0,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.SpikeSensitivity <= 0 {
		c.SpikeSensitivity = d.SpikeSensitivity
	}
	if c.MinSamples < 2 {
		c.MinSamples = d.MinSamples
	}
	if c.SlopeWindow < 2 {
		c.SlopeWindow = d.SlopeWindow
	}
	if c.GrowthTicks < 1 {
		c.GrowthTicks = d.GrowthTicks
	}
	if c.DefaultSlope <= 0 {
		c.DefaultSlope = d.DefaultSlope
	}
	return c
}

// severityForRatio maps an exceedance ratio to a severity band.
// Ratios up to 2x are low, up to 4x medium, beyond that high.
func severityForRatio(r float64) Severity {
	switch {
	case r > 4:
		return SeverityHigh
	case r > 2:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

func spikeMessage(key string, v, mean, stddev float64) string {
	return fmt.Sprintf("%s spiked to %.1f (baseline %.1f, stddev %.1f)", key, v, mean, stddev)
}

func growthMessage(key string, slope float64, ticks int) string {
	return fmt.Sprintf("%s growing at %.2f/s over %d consecutive checks", key, slope, ticks)
}

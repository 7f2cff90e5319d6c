package anomaly

import (
	"math"
	"sync"
	"time"
)

type winPoint struct {
	t time.Time
	v float64
}

// keyState is the per-key incremental state. Welford fields cover the whole
// lifetime of the key; window holds only the trailing SlopeWindow points.
type keyState struct {
	count int
	mean  float64
	m2    float64

	window []winPoint
	streak int
}

func (st *keyState) stddev() float64 {
	if st.count < 2 {
		return 0
	}
	return math.Sqrt(st.m2 / float64(st.count-1))
}

func (st *keyState) fold(v float64) {
	st.count++
	delta := v - st.mean
	st.mean += delta / float64(st.count)
	st.m2 += delta * (v - st.mean)
}

func (st *keyState) push(p winPoint, limit int) {
	st.window = append(st.window, p)
	if len(st.window) > limit {
		copy(st.window, st.window[1:])
		st.window = st.window[:limit]
	}
}

// slope fits a least-squares line through the window, in value units per
// second. Returns zero when the window spans no time.
func (st *keyState) slope() float64 {
	n := len(st.window)
	if n < 2 {
		return 0
	}
	base := st.window[0].t
	var sumX, sumY float64
	for _, p := range st.window {
		sumX += p.t.Sub(base).Seconds()
		sumY += p.v
	}
	meanX := sumX / float64(n)
	meanY := sumY / float64(n)

	var num, den float64
	for _, p := range st.window {
		dx := p.t.Sub(base).Seconds() - meanX
		num += dx * (p.v - meanY)
		den += dx * dx
	}
	if den == 0 {
		return 0
	}
	return num / den
}

// recentMean averages the trailing window.
func (st *keyState) recentMean() float64 {
	if len(st.window) == 0 {
		return 0
	}
	sum := 0.0
	for _, p := range st.window {
		sum += p.v
	}
	return sum / float64(len(st.window))
}

// Detector evaluates metric observations against per-key statistics.
// Safe for concurrent use, though the engine drives it from a single
// goroutine in practice.
type Detector struct {
	// SlopeThresholdFor resolves the sustained-growth threshold for keys
	// without an explicit override. Leave nil to use the config default
	// everywhere.
	SlopeThresholdFor func(key string) float64

	cfg Config

	mu        sync.Mutex
	states    map[string]*keyState
	overrides map[string]float64
	lastKind  map[string]Kind
	lastAt    map[string]time.Time
}

// NewDetector builds a detector with cfg, filling zero fields from
// DefaultConfig.
func NewDetector(cfg Config) *Detector {
	return &Detector{
		cfg:       cfg.withDefaults(),
		states:    make(map[string]*keyState),
		overrides: make(map[string]float64),
		lastKind:  make(map[string]Kind),
		lastAt:    make(map[string]time.Time),
	}
}

// SetSlopeThreshold pins the sustained-growth threshold for one exact key,
// in value units per second.
func (d *Detector) SetSlopeThreshold(key string, perSecond float64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.overrides[key] = perSecond
}

func (d *Detector) slopeThreshold(key string) float64 {
	if v, ok := d.overrides[key]; ok {
		return v
	}
	if d.SlopeThresholdFor != nil {
		if v := d.SlopeThresholdFor(key); v > 0 {
			return v
		}
	}
	return d.cfg.DefaultSlope
}

// Observe folds one sample into key's state and returns any events it
// raises. The spike check runs against statistics accumulated from earlier
// samples only; with fewer than MinSamples priors the detector stays silent.
func (d *Detector) Observe(key string, pid int32, at time.Time, v float64) []Event {
	d.mu.Lock()
	defer d.mu.Unlock()

	st, ok := d.states[key]
	if !ok {
		st = &keyState{}
		d.states[key] = st
	}

	var events []Event

	if st.count >= d.cfg.MinSamples {
		if ev, ok := d.checkSpike(st, key, pid, at, v); ok {
			events = append(events, ev)
		}
	}

	st.fold(v)
	st.push(winPoint{t: at, v: v}, d.cfg.SlopeWindow)

	if len(st.window) == d.cfg.SlopeWindow {
		if ev, ok := d.checkGrowth(st, key, pid, at); ok {
			events = append(events, ev)
		}
	}

	for _, ev := range events {
		d.lastKind[key] = ev.Kind
		d.lastAt[key] = ev.At
	}
	return events
}

func (d *Detector) checkSpike(st *keyState, key string, pid int32, at time.Time, v float64) (Event, bool) {
	mean := st.mean
	stddev := st.stddev()

	if stddev == 0 {
		// A flat baseline makes any positive excursion infinitely many
		// deviations out.
		if v <= mean {
			return Event{}, false
		}
		return Event{
			Key:      key,
			PID:      pid,
			Kind:     KindSpike,
			Severity: SeverityHigh,
			Value:    v,
			Mean:     mean,
			StdDev:   stddev,
			At:       at,
			Message:  spikeMessage(key, v, mean, stddev),
		}, true
	}

	threshold := mean + d.cfg.SpikeSensitivity*stddev
	if v <= threshold {
		return Event{}, false
	}
	ratio := (v - mean) / (d.cfg.SpikeSensitivity * stddev)
	return Event{
		Key:      key,
		PID:      pid,
		Kind:     KindSpike,
		Severity: severityForRatio(ratio),
		Value:    v,
		Mean:     mean,
		StdDev:   stddev,
		At:       at,
		Message:  spikeMessage(key, v, mean, stddev),
	}, true
}

func (d *Detector) checkGrowth(st *keyState, key string, pid int32, at time.Time) (Event, bool) {
	slope := st.slope()
	threshold := d.slopeThreshold(key)

	if slope <= threshold {
		st.streak = 0
		return Event{}, false
	}

	st.streak++
	// Fire once per streak, at the tick the streak reaches the trigger
	// length; the streak must break before the key can fire again.
	if st.streak != d.cfg.GrowthTicks {
		return Event{}, false
	}

	ratio := slope / threshold
	return Event{
		Key:      key,
		PID:      pid,
		Kind:     KindSustainedGrowth,
		Severity: severityForRatio(ratio),
		Slope:    slope,
		Mean:     st.mean,
		StdDev:   st.stddev(),
		At:       at,
		Message:  growthMessage(key, slope, d.cfg.GrowthTicks),
	}, true
}

// Stats returns a copy of key's current statistics.
func (d *Detector) Stats(key string) (Stats, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	st, ok := d.states[key]
	if !ok {
		return Stats{}, false
	}
	return Stats{
		Count:       st.count,
		Mean:        st.mean,
		StdDev:      st.stddev(),
		Slope:       st.slope(),
		Trend:       d.trendOf(st),
		LastKind:    d.lastKind[key],
		LastEventAt: d.lastAt[key],
	}, true
}

// trendOf compares the trailing-window mean against the lifetime mean.
// Within 20 percent either way counts as stable.
func (d *Detector) trendOf(st *keyState) Trend {
	if st.count < d.cfg.MinSamples || len(st.window) == 0 {
		return TrendStable
	}
	recent := st.recentMean()
	if st.mean == 0 {
		if recent > 0 {
			return TrendRising
		}
		return TrendStable
	}
	switch {
	case recent > st.mean*1.2:
		return TrendRising
	case recent < st.mean*0.8:
		return TrendFalling
	default:
		return TrendStable
	}
}

// Prune drops state for keys that fail keep, releasing memory for exited
// processes.
func (d *Detector) Prune(keep func(key string) bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for k := range d.states {
		if !keep(k) {
			delete(d.states, k)
			delete(d.overrides, k)
			delete(d.lastKind, k)
			delete(d.lastAt, k)
		}
	}
}

// EfficiencyScore grades a process 0-100 from how steady its CPU usage is
// and how flat its memory curve is. Erratic CPU or fast memory growth pull
// the score down.
func EfficiencyScore(cpu, mem Stats) float64 {
	cpuStability := clamp01(1 - cpu.StdDev/100)
	memStability := clamp01(1 - math.Abs(mem.Slope)/(10*1024*1024))
	return (cpuStability + memStability) / 2 * 100
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

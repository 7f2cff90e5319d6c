// Package engine drives proc-pulse: it polls the sampler on a fixed tick,
// maintains history rings and anomaly state, fans out to domain collectors,
// evaluates system health, and publishes the result as an immutable
// Snapshot for the UI and exporters.
package engine

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"gitlab.com/tinyland/lab/proc-pulse/anomaly"
	"gitlab.com/tinyland/lab/proc-pulse/collectors"
	"gitlab.com/tinyland/lab/proc-pulse/history"
	"gitlab.com/tinyland/lab/proc-pulse/proctree"
	"gitlab.com/tinyland/lab/proc-pulse/sampler"
	"gitlab.com/tinyland/lab/proc-pulse/status"
)

const (
	// DefaultInterval is the tick cadence when Options.Interval is unset.
	DefaultInterval = 2 * time.Second

	// DefaultRetention bounds the system history rings in wall time.
	DefaultRetention = time.Hour

	// DefaultProcPoints caps each per-process history series.
	DefaultProcPoints = 300

	// DefaultActiveWindow is how long an anomaly event stays on snapshots.
	DefaultActiveWindow = 2 * time.Minute

	// maxActiveEvents bounds the active anomaly list on a noisy machine.
	maxActiveEvents = 200

	// opLogLen bounds the rolling process-operation log.
	opLogLen = 20

	// killQueueLen bounds kill requests waiting for the next tick.
	killQueueLen = 16

	// degradedAfter is how many consecutive whole-poll failures flip
	// snapshots to degraded.
	degradedAfter = 3
)

// ErrKillQueueFull is returned by RequestKill when too many kills are
// already waiting for the next tick.
var ErrKillQueueFull = errors.New("engine: kill queue full")

// Options configures an Engine. Zero fields take the package defaults.
type Options struct {
	// Interval is the tick cadence.
	Interval time.Duration

	// Retention is how much wall time the system history rings span.
	Retention time.Duration

	// ProcPoints caps each per-process history series.
	ProcPoints int

	// ActiveWindow is how long anomaly events stay on snapshots.
	ActiveWindow time.Duration

	// Anomaly configures the detector.
	Anomaly anomaly.Config

	// Status configures the health evaluator.
	Status status.EvaluatorConfig
}

func (o Options) withDefaults() Options {
	if o.Interval <= 0 {
		o.Interval = DefaultInterval
	}
	if o.Retention <= 0 {
		o.Retention = DefaultRetention
	}
	if o.ProcPoints <= 0 {
		o.ProcPoints = DefaultProcPoints
	}
	if o.ActiveWindow <= 0 {
		o.ActiveWindow = DefaultActiveWindow
	}
	if o.Status == (status.EvaluatorConfig{}) {
		o.Status = status.DefaultEvaluatorConfig()
	}
	return o
}

// poller is the slice of the sampler the engine drives. Narrowed to an
// interface so tests can substitute a scripted machine.
type poller interface {
	Poll(ctx context.Context) (*sampler.Sample, error)
	Kill(pid int32) error
}

// Engine owns all monitor state. Construct with New, register collectors,
// then call Run; every other method is safe to call from other goroutines
// while Run is active.
type Engine struct {
	opts   Options
	logger *slog.Logger

	sampler  poller
	store    *history.Store
	detector *anomaly.Detector
	eval     *status.Evaluator
	registry *collectors.Registry

	snap    atomic.Pointer[Snapshot]
	updates chan struct{}
	refresh chan struct{}
	kills   chan int32

	domMu   sync.Mutex
	domains map[string]*domainState

	// Run-loop state, touched only from the Run goroutine.
	tick       uint64
	active     []anomaly.Event
	ops        []OpResult
	failStreak int
	lastSample *sampler.Sample
}

// New builds an engine over the local machine. If logger is nil, a no-op
// logger is used.
func New(opts Options, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	opts = opts.withDefaults()

	points := int(opts.Retention / opts.Interval)
	if points < 2 {
		points = 2
	}

	e := &Engine{
		opts:     opts,
		logger:   logger,
		sampler:  sampler.New(logger),
		store:    history.NewStore(points),
		detector: anomaly.NewDetector(opts.Anomaly),
		eval:     status.NewEvaluator(opts.Status),
		registry: collectors.NewRegistry(),
		updates:  make(chan struct{}, 1),
		refresh:  make(chan struct{}, 1),
		kills:    make(chan int32, killQueueLen),
		domains:  make(map[string]*domainState),
	}
	e.detector.SlopeThresholdFor = slopeThresholdFor
	return e
}

// Register adds a domain collector. Register before calling Run.
func (e *Engine) Register(c collectors.Collector) {
	e.registry.Register(c)
}

// Run drives the tick loop until ctx is cancelled and returns ctx.Err().
// The first tick runs immediately so callers get a snapshot without
// waiting out the interval.
func (e *Engine) Run(ctx context.Context) error {
	e.logger.Info("engine started",
		slog.Duration("interval", e.opts.Interval),
		slog.Int("collectors", len(e.registry.All())))

	ticker := time.NewTicker(e.opts.Interval)
	defer ticker.Stop()

	e.runTick(ctx)
	for {
		select {
		case <-ctx.Done():
			e.logger.Info("engine stopped", slog.Uint64("ticks", e.tick))
			return ctx.Err()
		case <-ticker.C:
			e.runTick(ctx)
		case <-e.refresh:
			e.runTick(ctx)
		}
	}
}

// Snapshot returns the latest published snapshot, or nil before the first
// tick completes.
func (e *Engine) Snapshot() *Snapshot {
	return e.snap.Load()
}

// Updates signals once after each published snapshot. The channel holds at
// most one pending signal; slow readers see coalesced updates, never a
// backlog.
func (e *Engine) Updates() <-chan struct{} {
	return e.updates
}

// Refresh asks the run loop for an immediate extra tick. Calls between
// ticks coalesce into one.
func (e *Engine) Refresh() {
	select {
	case e.refresh <- struct{}{}:
	default:
	}
}

// RequestKill queues a kill signal for pid and nudges the run loop so the
// operation lands promptly. The outcome appears in the next snapshot's Ops.
func (e *Engine) RequestKill(pid int32) error {
	select {
	case e.kills <- pid:
		e.Refresh()
		return nil
	default:
		return ErrKillQueueFull
	}
}

func (e *Engine) runTick(ctx context.Context) {
	e.tick++
	started := time.Now()

	e.drainKills()

	sample, err := e.sampler.Poll(ctx)
	at := started
	var fresh []anomaly.Event
	if err != nil {
		e.failStreak++
		e.logger.Warn("poll failed",
			slog.Int("streak", e.failStreak),
			slog.String("error", err.Error()))
		sample = e.lastSample
	} else {
		e.failStreak = 0
		e.lastSample = sample
		at = sample.At
		fresh = e.record(sample)
	}
	e.retainActive(at, fresh)

	// Collector cadence runs on the wall clock; sample timestamps only
	// order history and anomaly state.
	domains := e.collectDomains(ctx, time.Now())

	snap := e.buildSnapshot(sample, err, domains, at)
	e.snap.Store(snap)
	e.notify()

	e.logger.Debug("tick complete",
		slog.Uint64("tick", e.tick),
		slog.Duration("elapsed", time.Since(started)))
}

// drainKills executes every queued kill and appends the outcomes to the
// rolling op log.
func (e *Engine) drainKills() {
	for {
		select {
		case pid := <-e.kills:
			op := OpResult{Op: "kill", PID: pid, At: time.Now()}
			if err := e.sampler.Kill(pid); err != nil {
				op.Err = err.Error()
				e.logger.Warn("kill failed",
					slog.Int("pid", int(pid)),
					slog.String("error", err.Error()))
			} else {
				op.OK = true
				e.logger.Info("killed process", slog.Int("pid", int(pid)))
			}
			e.ops = append(e.ops, op)
			if len(e.ops) > opLogLen {
				e.ops = e.ops[len(e.ops)-opLogLen:]
			}
		default:
			return
		}
	}
}

// record appends the sample to the history rings, feeds the detector, and
// prunes state for processes that have exited. Returns the events this
// sample raised.
func (e *Engine) record(sample *sampler.Sample) []anomaly.Event {
	at := sample.At
	sys := sample.System

	var events []anomaly.Event
	observe := func(key string, pid int32, v float64) {
		e.store.Append(key, history.Point{T: at, V: v})
		events = append(events, e.detector.Observe(key, pid, at, v)...)
	}

	if sys.CPU.Sampled {
		observe("cpu.total", 0, sys.CPU.TotalPercent)
	}
	if sys.Mem.Sampled {
		observe("mem.used", 0, float64(sys.Mem.Used))
		observe("mem.used_percent", 0, sys.Mem.UsedPercent)
		if sys.Mem.SwapTotal > 0 {
			observe("swap.used_percent", 0, sys.Mem.SwapPercent)
		}
	}
	if sys.Load.Sampled {
		observe("load.1", 0, sys.Load.Load1)
	}
	if sys.Net.Sampled && sys.Net.RatesValid {
		observe("net.rx_rate", 0, sys.Net.TotalRxRate)
		observe("net.tx_rate", 0, sys.Net.TotalTxRate)
	}
	if sys.Disk.Sampled && sys.Disk.RatesValid {
		observe("disk.read_rate", 0, sys.Disk.ReadRate)
		observe("disk.write_rate", 0, sys.Disk.WriteRate)
	}
	observe("proc.count", 0, float64(len(sample.Processes)))

	alive := make(map[int32]bool, len(sample.Processes))
	for _, p := range sample.Processes {
		alive[p.PID] = true
		key := procKey(p.PID)
		if p.CPUValid {
			e.store.Ensure(key+".cpu", e.opts.ProcPoints)
			observe(key+".cpu", p.PID, p.CPUPercent)
		}
		if p.MemValid {
			e.store.Ensure(key+".rss", e.opts.ProcPoints)
			observe(key+".rss", p.PID, float64(p.RSS))
		}
	}

	keep := func(key string) bool {
		pid, ok := procKeyPID(key)
		if !ok {
			return true
		}
		return alive[pid]
	}
	e.store.Prune(keep)
	e.detector.Prune(keep)

	return events
}

// retainActive drops events older than the active window, appends the
// fresh ones, and trims to the cap, oldest first out.
func (e *Engine) retainActive(now time.Time, fresh []anomaly.Event) {
	cutoff := now.Add(-e.opts.ActiveWindow)
	kept := e.active[:0]
	for _, ev := range e.active {
		if ev.At.After(cutoff) {
			kept = append(kept, ev)
		}
	}
	e.active = append(kept, fresh...)
	if len(e.active) > maxActiveEvents {
		e.active = e.active[len(e.active)-maxActiveEvents:]
	}
}

// profileProcesses assembles per-process behavior profiles from the
// detector's accumulated statistics.
func (e *Engine) profileProcesses(procs []sampler.ProcessSample) map[int32]anomaly.ProfileStats {
	out := make(map[int32]anomaly.ProfileStats, len(procs))
	for _, p := range procs {
		key := procKey(p.PID)
		cpuStats, okCPU := e.detector.Stats(key + ".cpu")
		memStats, okMem := e.detector.Stats(key + ".rss")
		if !okCPU && !okMem {
			continue
		}
		out[p.PID] = anomaly.ProfileStats{
			PID:        p.PID,
			CPU:        cpuStats,
			Memory:     memStats,
			Efficiency: anomaly.EfficiencyScore(cpuStats, memStats),
		}
	}
	return out
}

func (e *Engine) buildSnapshot(sample *sampler.Sample, pollErr error, domains map[string]collectors.DomainSummary, at time.Time) *Snapshot {
	snap := &Snapshot{
		Tick:      e.tick,
		TakenAt:   at,
		History:   e.store.View(),
		Anomalies: append([]anomaly.Event(nil), e.active...),
		Domains:   domains,
		Ops:       append([]OpResult(nil), e.ops...),
		Degraded:  e.failStreak >= degradedAfter,
	}
	if pollErr != nil {
		snap.Err = pollErr.Error()
	}
	if sample != nil {
		snap.System = sample.System
		snap.Processes = sample.Processes
		snap.Forest = proctree.Build(sample.Processes)
		snap.Profiles = e.profileProcesses(sample.Processes)
		snap.Health = e.eval.Evaluate(&sample.System, snap.Anomalies, domains)
	} else {
		snap.Health = e.eval.Evaluate(nil, snap.Anomalies, domains)
	}
	return snap
}

func (e *Engine) notify() {
	select {
	case e.updates <- struct{}{}:
	default:
	}
}

func procKey(pid int32) string {
	return "proc." + strconv.Itoa(int(pid))
}

// procKeyPID extracts the PID from per-process keys like "proc.1234.cpu".
// Keys without a PID component, "proc.count" included, report false.
func procKeyPID(key string) (int32, bool) {
	rest, ok := strings.CutPrefix(key, "proc.")
	if !ok {
		return 0, false
	}
	idx := strings.IndexByte(rest, '.')
	if idx < 0 {
		return 0, false
	}
	pid, err := strconv.Atoi(rest[:idx])
	if err != nil {
		return 0, false
	}
	return int32(pid), true
}

// slopeThresholdFor widens the growth threshold for byte-valued series.
// The config default suits percent and count series, where a resident set
// creeping up by single bytes per second is noise rather than a leak.
func slopeThresholdFor(key string) float64 {
	switch {
	case key == "mem.used":
		return 10 << 20
	case strings.HasSuffix(key, ".rss"):
		return 5 << 20
	default:
		return 0
	}
}

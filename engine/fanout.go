package engine

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"gitlab.com/tinyland/lab/proc-pulse/collectors"
)

// errTimedOut is the placeholder error for a collector that has never
// produced a summary within its deadline.
const errTimedOut = "collection timed out"

// domainState tracks one collector between ticks. Guarded by Engine.domMu.
type domainState struct {
	summary collectors.DomainSummary
	has     bool
	lastRun time.Time
	running bool
}

// collectDomains runs every due collector concurrently and waits at most
// each collector's Timeout for its result. A run that overshoots leaves
// the previous summary published as stale; the straggling goroutine still
// lands its result for the next tick. Collectors inside their interval are
// skipped and their summary carries forward unchanged.
func (e *Engine) collectDomains(ctx context.Context, now time.Time) map[string]collectors.DomainSummary {
	var wg sync.WaitGroup
	for _, c := range e.registry.All() {
		name := c.Name()

		e.domMu.Lock()
		st, ok := e.domains[name]
		if !ok {
			st = &domainState{}
			e.domains[name] = st
		}
		due := !st.running && (st.lastRun.IsZero() || now.Sub(st.lastRun) >= c.Interval())
		if due {
			st.running = true
		}
		e.domMu.Unlock()
		if !due {
			continue
		}

		done := make(chan struct{})
		go e.collectOne(ctx, c, done)

		wg.Add(1)
		go func(c collectors.Collector, done <-chan struct{}) {
			defer wg.Done()
			select {
			case <-done:
			case <-time.After(c.Timeout()):
				e.settleTimeout(c.Name())
			}
		}(c, done)
	}
	wg.Wait()

	e.domMu.Lock()
	defer e.domMu.Unlock()
	out := make(map[string]collectors.DomainSummary, len(e.domains))
	for name, st := range e.domains {
		if st.has {
			out[name] = st.summary
		}
	}
	return out
}

// collectOne runs a single collector to completion and records the result,
// however late it arrives. Only the run loop's per-tick wait is bounded by
// Timeout; the collector goroutine itself is left to finish.
func (e *Engine) collectOne(ctx context.Context, c collectors.Collector, done chan<- struct{}) {
	defer close(done)
	name := c.Name()

	cctx, cancel := context.WithTimeout(ctx, c.Timeout())
	summary, err := c.Collect(cctx)
	cancel()

	e.domMu.Lock()
	defer e.domMu.Unlock()
	st := e.domains[name]
	st.running = false
	st.lastRun = time.Now()

	switch {
	case err == nil && summary != nil:
		st.summary = *summary
		st.has = true
		for _, a := range summary.Alerts {
			if collectors.SeverityRank(a.Severity) >= collectors.SeverityRank(collectors.SeverityHigh) {
				e.logger.Warn("domain alert",
					slog.String("collector", name),
					slog.String("severity", a.Severity),
					slog.String("message", a.Message))
			}
		}
	case errors.Is(err, context.DeadlineExceeded):
		e.markStaleLocked(st, name)
	default:
		msg := "collector returned no summary"
		if err != nil {
			msg = err.Error()
		}
		next := collectors.DomainSummary{
			Domain:      name,
			Status:      collectors.StatusError,
			Err:         msg,
			CollectedAt: time.Now(),
		}
		if st.has {
			// Keep showing the last good readings under the error flag.
			next.Metrics = st.summary.Metrics
			next.Alerts = st.summary.Alerts
			next.CollectedAt = st.summary.CollectedAt
		}
		st.summary = next
		st.has = true
		e.logger.Warn("collector failed",
			slog.String("collector", name),
			slog.String("error", msg))
	}
}

// settleTimeout records a missed deadline noticed by the tick's waiter.
// If the result landed between the timer firing and the lock, the summary
// is already current and nothing happens.
func (e *Engine) settleTimeout(name string) {
	e.domMu.Lock()
	defer e.domMu.Unlock()
	st, ok := e.domains[name]
	if !ok || !st.running {
		return
	}
	e.markStaleLocked(st, name)
	e.logger.Warn("collector missed deadline", slog.String("collector", name))
}

// markStaleLocked flags the domain stale, or plants an error placeholder
// when no summary has ever landed. The stale summary keeps its original
// CollectedAt so readers can see how old the data is.
func (e *Engine) markStaleLocked(st *domainState, name string) {
	if !st.has {
		st.summary = collectors.DomainSummary{
			Domain:      name,
			Status:      collectors.StatusError,
			Err:         errTimedOut,
			CollectedAt: time.Now(),
		}
		st.has = true
		return
	}
	if st.summary.Status == collectors.StatusError && st.summary.Err == errTimedOut {
		return
	}
	st.summary.Status = collectors.StatusStale
}

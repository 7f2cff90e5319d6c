// Package collectors provides the domain collector contract and registration
// for proc-pulse. Each collector watches one domain of the machine (database
// engines, runtimes, logs, filesystems) and reports an opaque summary the
// engine attaches to snapshots without interpreting.
package collectors

import (
	"context"
	"time"
)

// Summary status values. Stale marks a summary carried over from an earlier
// run because the collector missed its deadline this tick.
const (
	StatusOK    = "ok"
	StatusStale = "stale"
	StatusError = "error"
)

// Alert severities, ordered by SeverityRank.
const (
	SeverityInfo     = "info"
	SeverityLow      = "low"
	SeverityMedium   = "medium"
	SeverityHigh     = "high"
	SeverityCritical = "critical"
)

// SeverityRank orders severities for worst-of comparisons. Unknown strings
// rank below info.
func SeverityRank(severity string) int {
	switch severity {
	case SeverityCritical:
		return 4
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 1
	case SeverityInfo:
		return 0
	default:
		return -1
	}
}

// Collector is the interface all domain collectors implement. Collectors
// must tolerate repeated and concurrent Collect calls; the engine enforces
// Timeout and keeps serving the previous summary when a run overshoots it.
type Collector interface {
	// Name returns the collector's unique identifier (e.g. "database").
	// Names must be unique within a Registry.
	Name() string

	// Description returns a human-readable description of what this
	// collector watches.
	Description() string

	// Interval returns the collection cadence. The engine does not re-run
	// a collector before its interval has elapsed; heavyweight scans
	// should return longer intervals.
	Interval() time.Duration

	// Timeout returns how long the engine waits for Collect before
	// marking the domain stale for the tick.
	Timeout() time.Duration

	// Collect gathers the domain summary. The context is cancelled when
	// the engine stops waiting; long scans should respect it.
	Collect(ctx context.Context) (*DomainSummary, error)
}

// DomainSummary is one collector's report. The engine stores and forwards
// summaries without looking inside Metrics.
type DomainSummary struct {
	// Domain is the reporting collector's name.
	Domain string `json:"domain"`

	// Status is one of StatusOK, StatusStale, StatusError.
	Status string `json:"status"`

	// Metrics holds the domain's numeric readings, keyed by metric name.
	Metrics map[string]float64 `json:"metrics,omitempty"`

	// Alerts carries the conditions the collector wants surfaced.
	Alerts []Alert `json:"alerts,omitempty"`

	// Err describes the failure when Status is StatusError.
	Err string `json:"error,omitempty"`

	// CollectedAt records when the underlying data was gathered. A stale
	// summary keeps its original timestamp.
	CollectedAt time.Time `json:"collected_at"`

	// Elapsed is how long the collection run took.
	Elapsed time.Duration `json:"elapsed"`
}

// Alert is one condition a collector raises.
type Alert struct {
	Severity string `json:"severity"`
	Message  string `json:"message"`
}

// NewSummary returns an ok summary for domain with an empty metric map.
func NewSummary(domain string) *DomainSummary {
	return &DomainSummary{
		Domain:  domain,
		Status:  StatusOK,
		Metrics: make(map[string]float64),
	}
}

// AddAlert appends an alert to the summary.
func (s *DomainSummary) AddAlert(severity, message string) {
	s.Alerts = append(s.Alerts, Alert{Severity: severity, Message: message})
}

// WorstSeverity returns the highest-ranked alert severity, or the empty
// string when the summary carries no alerts.
func (s *DomainSummary) WorstSeverity() string {
	worst := ""
	rank := -1
	for _, a := range s.Alerts {
		if r := SeverityRank(a.Severity); r > rank {
			rank = r
			worst = a.Severity
		}
	}
	return worst
}

// Registry holds registered collectors and provides lookup by name.
type Registry struct {
	collectors []Collector
}

// NewRegistry creates a new empty collector registry.
func NewRegistry() *Registry {
	return &Registry{
		collectors: make([]Collector, 0),
	}
}

// Register adds a collector to the registry.
// If a collector with the same name already exists, it is replaced.
func (r *Registry) Register(c Collector) {
	for i, existing := range r.collectors {
		if existing.Name() == c.Name() {
			r.collectors[i] = c
			return
		}
	}
	r.collectors = append(r.collectors, c)
}

// Get returns a collector by name. The second return value indicates
// whether the collector was found.
func (r *Registry) Get(name string) (Collector, bool) {
	for _, c := range r.collectors {
		if c.Name() == name {
			return c, true
		}
	}
	return nil, false
}

// All returns all registered collectors in registration order.
func (r *Registry) All() []Collector {
	result := make([]Collector, len(r.collectors))
	copy(result, r.collectors)
	return result
}

package status

import (
	"fmt"
	"sort"
	"time"

	"gitlab.com/tinyland/lab/proc-pulse/anomaly"
	"gitlab.com/tinyland/lab/proc-pulse/collectors"
	"gitlab.com/tinyland/lab/proc-pulse/sampler"
)

// Level represents system health.
type Level int

const (
	LevelHealthy  Level = iota // Everything normal
	LevelWarning               // Something needs attention
	LevelCritical              // Immediate attention needed
	LevelUnknown               // Insufficient data
)

// String returns the human-readable name for a Level.
func (l Level) String() string {
	switch l {
	case LevelHealthy:
		return "healthy"
	case LevelWarning:
		return "warning"
	case LevelCritical:
		return "critical"
	case LevelUnknown:
		return "unknown"
	default:
		return "unknown"
	}
}

// MarshalJSON encodes the level as its string name.
func (l Level) MarshalJSON() ([]byte, error) {
	return []byte(`"` + l.String() + `"`), nil
}

// levelSeverity returns the sort order for levels. Higher is worse.
// Critical > Warning > Unknown > Healthy.
func levelSeverity(l Level) int {
	switch l {
	case LevelHealthy:
		return 0
	case LevelUnknown:
		return 1
	case LevelWarning:
		return 2
	case LevelCritical:
		return 3
	default:
		return 0
	}
}

// worstLevel returns whichever Level is more severe.
func worstLevel(a, b Level) Level {
	if levelSeverity(a) >= levelSeverity(b) {
		return a
	}
	return b
}

// ComponentStatus holds the evaluation result for a single component.
type ComponentStatus struct {
	Component string `json:"component"` // "cpu", "memory", "swap", "disk", "load", "anomalies", "collectors"
	Level     Level  `json:"level"`
	Reason    string `json:"reason"` // Human-readable reason
}

// SystemStatus is the aggregate evaluation result.
type SystemStatus struct {
	Overall     Level             `json:"overall"` // Worst of all components
	Components  []ComponentStatus `json:"components"`
	EvaluatedAt time.Time         `json:"evaluated_at"`
}

// EvaluatorConfig holds thresholds for evaluation rules.
type EvaluatorConfig struct {
	// CPU thresholds, in percent of total capacity.
	CPUWarningPercent  float64 // Default: 80.0
	CPUCriticalPercent float64 // Default: 95.0

	// Memory thresholds, in percent of physical memory.
	MemoryWarningPercent  float64 // Default: 80.0
	MemoryCriticalPercent float64 // Default: 95.0

	// Swap thresholds, in percent of swap capacity.
	SwapWarningPercent  float64 // Default: 60.0
	SwapCriticalPercent float64 // Default: 90.0

	// Disk thresholds, in percent used, applied per volume.
	DiskWarningPercent  float64 // Default: 85.0
	DiskCriticalPercent float64 // Default: 95.0

	// Load thresholds, as a ratio of the 1-minute average to core count.
	LoadWarningRatio  float64 // Default: 1.5
	LoadCriticalRatio float64 // Default: 3.0

	// AnomalyCriticalCount is the number of concurrent high-severity
	// anomalies that escalates the component to critical.
	AnomalyCriticalCount int // Default: 3
}

// DefaultEvaluatorConfig returns an EvaluatorConfig with sensible defaults.
func DefaultEvaluatorConfig() EvaluatorConfig {
	return EvaluatorConfig{
		CPUWarningPercent:     80.0,
		CPUCriticalPercent:    95.0,
		MemoryWarningPercent:  80.0,
		MemoryCriticalPercent: 95.0,
		SwapWarningPercent:    60.0,
		SwapCriticalPercent:   90.0,
		DiskWarningPercent:    85.0,
		DiskCriticalPercent:   95.0,
		LoadWarningRatio:      1.5,
		LoadCriticalRatio:     3.0,
		AnomalyCriticalCount:  3,
	}
}

// Evaluator analyzes a system snapshot and determines overall health.
type Evaluator struct {
	config EvaluatorConfig
}

// NewEvaluator creates an Evaluator with the given configuration.
func NewEvaluator(cfg EvaluatorConfig) *Evaluator {
	return &Evaluator{config: cfg}
}

// Evaluate runs all evaluation rules and returns the aggregate status.
// events are the anomalies considered active for this evaluation, and
// domains the latest summary per domain collector.
func (e *Evaluator) Evaluate(sys *sampler.SystemMetrics, events []anomaly.Event, domains map[string]collectors.DomainSummary) SystemStatus {
	components := []ComponentStatus{
		e.evaluateCPU(sys),
		e.evaluateMemory(sys),
		e.evaluateSwap(sys),
		e.evaluateDisk(sys),
		e.evaluateLoad(sys),
		e.evaluateAnomalies(events),
		e.evaluateCollectors(domains),
	}

	overall := components[0].Level
	for _, c := range components[1:] {
		overall = worstLevel(overall, c.Level)
	}

	return SystemStatus{
		Overall:     overall,
		Components:  components,
		EvaluatedAt: time.Now(),
	}
}

// result accumulates the worst finding for one component, mirroring how
// each rule below upgrades the level only when its finding is worse.
type result struct {
	component string
	level     Level
	reason    string
}

func (r *result) raise(candidate Level, reason string) {
	if levelSeverity(candidate) > levelSeverity(r.level) {
		r.level = candidate
		r.reason = reason
	}
}

func (r *result) status() ComponentStatus {
	return ComponentStatus{Component: r.component, Level: r.level, Reason: r.reason}
}

func unknownComponent(name, reason string) ComponentStatus {
	return ComponentStatus{Component: name, Level: LevelUnknown, Reason: reason}
}

// evaluateCPU checks total CPU utilization.
func (e *Evaluator) evaluateCPU(sys *sampler.SystemMetrics) ComponentStatus {
	if sys == nil || !sys.CPU.Sampled {
		return unknownComponent("cpu", "no data")
	}

	r := &result{component: "cpu", level: LevelHealthy,
		reason: fmt.Sprintf("cpu at %.0f%%", sys.CPU.TotalPercent)}

	if sys.CPU.TotalPercent >= e.config.CPUCriticalPercent {
		r.raise(LevelCritical, fmt.Sprintf("cpu at %.0f%%", sys.CPU.TotalPercent))
	} else if sys.CPU.TotalPercent >= e.config.CPUWarningPercent {
		r.raise(LevelWarning, fmt.Sprintf("cpu at %.0f%%", sys.CPU.TotalPercent))
	}
	return r.status()
}

// evaluateMemory checks physical memory pressure.
func (e *Evaluator) evaluateMemory(sys *sampler.SystemMetrics) ComponentStatus {
	if sys == nil || !sys.Mem.Sampled {
		return unknownComponent("memory", "no data")
	}

	used := sys.Mem.UsedPercent
	r := &result{component: "memory", level: LevelHealthy,
		reason: fmt.Sprintf("memory at %.0f%%", used)}

	if used >= e.config.MemoryCriticalPercent {
		r.raise(LevelCritical, fmt.Sprintf("memory at %.0f%%", used))
	} else if used >= e.config.MemoryWarningPercent {
		r.raise(LevelWarning, fmt.Sprintf("memory at %.0f%%", used))
	}
	return r.status()
}

// evaluateSwap checks swap pressure. A host without swap is healthy.
func (e *Evaluator) evaluateSwap(sys *sampler.SystemMetrics) ComponentStatus {
	if sys == nil || !sys.Mem.Sampled {
		return unknownComponent("swap", "no data")
	}
	if sys.Mem.SwapTotal == 0 {
		return ComponentStatus{Component: "swap", Level: LevelHealthy, Reason: "no swap configured"}
	}

	used := sys.Mem.SwapPercent
	r := &result{component: "swap", level: LevelHealthy,
		reason: fmt.Sprintf("swap at %.0f%%", used)}

	if used >= e.config.SwapCriticalPercent {
		r.raise(LevelCritical, fmt.Sprintf("swap at %.0f%%", used))
	} else if used >= e.config.SwapWarningPercent {
		r.raise(LevelWarning, fmt.Sprintf("swap at %.0f%%", used))
	}
	return r.status()
}

// evaluateDisk checks fill level per mounted volume and reports the worst.
func (e *Evaluator) evaluateDisk(sys *sampler.SystemMetrics) ComponentStatus {
	if sys == nil || !sys.Disk.Sampled {
		return unknownComponent("disk", "no data")
	}

	r := &result{component: "disk", level: LevelHealthy, reason: "all volumes below threshold"}
	for _, vol := range sys.Disk.Volumes {
		if vol.UsedPercent >= e.config.DiskCriticalPercent {
			r.raise(LevelCritical, fmt.Sprintf("%s at %.0f%%", vol.Mount, vol.UsedPercent))
		} else if vol.UsedPercent >= e.config.DiskWarningPercent {
			r.raise(LevelWarning, fmt.Sprintf("%s at %.0f%%", vol.Mount, vol.UsedPercent))
		}
	}
	return r.status()
}

// evaluateLoad compares the 1-minute load average against core count.
func (e *Evaluator) evaluateLoad(sys *sampler.SystemMetrics) ComponentStatus {
	if sys == nil || !sys.Load.Sampled || !sys.CPU.Sampled || sys.CPU.Cores == 0 {
		return unknownComponent("load", "no data")
	}

	cores := float64(sys.CPU.Cores)
	load := sys.Load.Load1
	r := &result{component: "load", level: LevelHealthy,
		reason: fmt.Sprintf("load %.2f on %d cores", load, sys.CPU.Cores)}

	if load >= cores*e.config.LoadCriticalRatio {
		r.raise(LevelCritical, fmt.Sprintf("load %.2f is %.1fx core count", load, load/cores))
	} else if load >= cores*e.config.LoadWarningRatio {
		r.raise(LevelWarning, fmt.Sprintf("load %.2f is %.1fx core count", load, load/cores))
	}
	return r.status()
}

// evaluateAnomalies counts active high-severity anomaly events.
func (e *Evaluator) evaluateAnomalies(events []anomaly.Event) ComponentStatus {
	high := 0
	for _, ev := range events {
		if ev.Severity == anomaly.SeverityHigh {
			high++
		}
	}

	r := &result{component: "anomalies", level: LevelHealthy,
		reason: fmt.Sprintf("%d active", len(events))}

	if high >= e.config.AnomalyCriticalCount {
		r.raise(LevelCritical, fmt.Sprintf("%d high-severity anomalies active", high))
	} else if high > 0 {
		r.raise(LevelWarning, fmt.Sprintf("%d high-severity anomalies active", high))
	}
	return r.status()
}

// evaluateCollectors folds domain collector outcomes into one component.
// A failing collector warns; a critical domain alert escalates.
func (e *Evaluator) evaluateCollectors(domains map[string]collectors.DomainSummary) ComponentStatus {
	if len(domains) == 0 {
		return ComponentStatus{Component: "collectors", Level: LevelHealthy, Reason: "no collectors enabled"}
	}

	names := make([]string, 0, len(domains))
	for name := range domains {
		names = append(names, name)
	}
	sort.Strings(names)

	r := &result{component: "collectors", level: LevelHealthy,
		reason: fmt.Sprintf("%d domains reporting", len(domains))}

	for _, name := range names {
		summary := domains[name]
		if summary.Status == collectors.StatusError {
			r.raise(LevelWarning, fmt.Sprintf("collector %s failing", name))
		}
		switch summary.WorstSeverity() {
		case collectors.SeverityCritical:
			r.raise(LevelCritical, fmt.Sprintf("critical alert from %s", name))
		case collectors.SeverityHigh:
			r.raise(LevelWarning, fmt.Sprintf("high alert from %s", name))
		}
	}
	return r.status()
}

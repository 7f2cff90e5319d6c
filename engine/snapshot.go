package engine

import (
	"time"

	"gitlab.com/tinyland/lab/proc-pulse/anomaly"
	"gitlab.com/tinyland/lab/proc-pulse/collectors"
	"gitlab.com/tinyland/lab/proc-pulse/history"
	"gitlab.com/tinyland/lab/proc-pulse/proctree"
	"gitlab.com/tinyland/lab/proc-pulse/sampler"
	"gitlab.com/tinyland/lab/proc-pulse/status"
)

// Snapshot is one published view of everything the engine knows. The run
// loop builds a fresh snapshot every tick and swaps it in atomically, so a
// reader always sees a consistent tick. Consumers must treat the contents
// as read-only; maps and slices are shared with later snapshots.
type Snapshot struct {
	// Tick numbers snapshots from 1. Consecutive snapshots from the same
	// engine always carry increasing ticks.
	Tick uint64 `json:"tick"`

	// TakenAt is when the tick's sample was taken. On a degraded tick it
	// is the tick time, while System still reflects the last good sample.
	TakenAt time.Time `json:"taken_at"`

	System    sampler.SystemMetrics   `json:"system"`
	Processes []sampler.ProcessSample `json:"processes"`

	// Forest is the parent/child arrangement of Processes.
	Forest *proctree.Forest `json:"-"`

	// History reads the engine's metric rings. Queries copy data out, so
	// holding a snapshot across ticks is safe.
	History *history.View `json:"-"`

	// Anomalies lists events still inside the active window, oldest first.
	Anomalies []anomaly.Event `json:"anomalies,omitempty"`

	// Profiles holds per-process behavior statistics keyed by PID.
	Profiles map[int32]anomaly.ProfileStats `json:"profiles,omitempty"`

	// Domains carries the latest summary from each registered collector.
	Domains map[string]collectors.DomainSummary `json:"domains,omitempty"`

	// Ops is the rolling log of recent process operations, oldest first.
	Ops []OpResult `json:"ops,omitempty"`

	// Health is the evaluated system status for this tick.
	Health status.SystemStatus `json:"health"`

	// Degraded is set after repeated whole-poll failures. System and
	// Processes then carry the last good sample, and Err the latest
	// failure.
	Degraded bool   `json:"degraded"`
	Err      string `json:"error,omitempty"`
}

// OpResult records the outcome of one process operation.
type OpResult struct {
	Op  string    `json:"op"`
	PID int32     `json:"pid"`
	OK  bool      `json:"ok"`
	Err string    `json:"error,omitempty"`
	At  time.Time `json:"at"`
}

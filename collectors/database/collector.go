// Package database watches locally running database engines. It detects
// known server processes, sizes their memory, and counts established client
// connections on each engine's canonical port. No database client protocol
// is spoken; everything comes from the process table and the socket list.
package database

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	gopsnet "github.com/shirou/gopsutil/v3/net"
	"github.com/shirou/gopsutil/v3/process"

	"gitlab.com/tinyland/lab/proc-pulse/collectors"
)

const (
	collectorName        = "database"
	collectorDescription = "Local database engines (processes, memory, client connections)"

	defaultInterval = 30 * time.Second
	defaultTimeout  = 2 * time.Second

	// defaultMaxConnections is the established-connection count above which
	// an engine gets flagged.
	defaultMaxConnections = 500
)

// engineSpec describes one recognizable database server.
type engineSpec struct {
	proc  string // process name to match
	label string // metric prefix
	port  uint32 // canonical listen port
}

var engines = []engineSpec{
	{proc: "mysqld", label: "mysql", port: 3306},
	{proc: "mariadbd", label: "mariadb", port: 3306},
	{proc: "postgres", label: "postgres", port: 5432},
	{proc: "mongod", label: "mongodb", port: 27017},
	{proc: "redis-server", label: "redis", port: 6379},
}

// processInfo is the slice of the process table this collector needs.
type processInfo struct {
	PID  int32
	Name string
	RSS  uint64
}

// connInfo is one TCP socket.
type connInfo struct {
	LocalPort uint32
	Status    string
}

// Config tunes the database collector.
type Config struct {
	// Interval overrides the collection cadence when positive.
	Interval time.Duration
	// Timeout overrides the per-run deadline when positive.
	Timeout time.Duration
	// MaxConnections flags an engine whose established connection count
	// exceeds it. Zero uses the default; negative disables the check.
	MaxConnections int
}

// Collector implements collectors.Collector for local database engines.
type Collector struct {
	config Config
	logger *slog.Logger

	// Overridable probes for testing.
	listProcesses   func(ctx context.Context) ([]processInfo, error)
	listConnections func(ctx context.Context) ([]connInfo, error)

	mu       sync.Mutex
	lastSeen map[string]bool
}

// New creates a database Collector.
// If logger is nil, a no-op logger is used.
func New(config Config, logger *slog.Logger) *Collector {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if config.MaxConnections == 0 {
		config.MaxConnections = defaultMaxConnections
	}

	return &Collector{
		config:          config,
		logger:          logger,
		listProcesses:   gopsutilProcessList,
		listConnections: gopsutilConnectionList,
		lastSeen:        make(map[string]bool),
	}
}

// Name returns the collector's unique identifier.
func (c *Collector) Name() string {
	return collectorName
}

// Description returns a human-readable description of what this collector watches.
func (c *Collector) Description() string {
	return collectorDescription
}

// Interval returns the collection cadence.
func (c *Collector) Interval() time.Duration {
	if c.config.Interval > 0 {
		return c.config.Interval
	}
	return defaultInterval
}

// Timeout returns the per-run deadline.
func (c *Collector) Timeout() time.Duration {
	if c.config.Timeout > 0 {
		return c.config.Timeout
	}
	return defaultTimeout
}

// Collect scans the process table for known engines and counts their client
// connections. An engine that was present on the previous run and is gone
// now raises a medium alert.
func (c *Collector) Collect(ctx context.Context) (*collectors.DomainSummary, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	started := time.Now()

	procs, err := c.listProcesses(ctx)
	if err != nil {
		return nil, fmt.Errorf("database: list processes: %w", err)
	}

	summary := collectors.NewSummary(collectorName)

	type engineState struct {
		spec      engineSpec
		processes int
		rss       uint64
	}
	found := make(map[string]*engineState)
	for _, p := range procs {
		for _, spec := range engines {
			if p.Name != spec.proc {
				continue
			}
			st, ok := found[spec.label]
			if !ok {
				st = &engineState{spec: spec}
				found[spec.label] = st
			}
			st.processes++
			st.rss += p.RSS
		}
	}

	// Connection counts are best effort: a restricted socket table still
	// leaves the process-level metrics intact.
	connsByPort := make(map[uint32]int)
	if conns, err := c.listConnections(ctx); err != nil {
		c.logger.Debug("connection scan unavailable", "error", err)
	} else {
		for _, conn := range conns {
			if conn.Status == "ESTABLISHED" {
				connsByPort[conn.LocalPort]++
			}
		}
	}

	summary.Metrics["engines"] = float64(len(found))
	seen := make(map[string]bool, len(found))
	for label, st := range found {
		seen[label] = true
		summary.Metrics[label+".processes"] = float64(st.processes)
		summary.Metrics[label+".rss_bytes"] = float64(st.rss)

		conns := connsByPort[st.spec.port]
		summary.Metrics[label+".connections"] = float64(conns)
		if c.config.MaxConnections > 0 && conns > c.config.MaxConnections {
			summary.AddAlert(collectors.SeverityMedium,
				fmt.Sprintf("%s has %d established connections (limit %d)",
					label, conns, c.config.MaxConnections))
		}
	}

	for label := range c.lastSeen {
		if !seen[label] {
			summary.AddAlert(collectors.SeverityMedium,
				fmt.Sprintf("database engine %s is no longer running", label))
		}
	}
	c.lastSeen = seen

	summary.CollectedAt = time.Now()
	summary.Elapsed = time.Since(started)

	c.logger.Debug("database scan complete",
		slog.Int("engines", len(found)),
		slog.Duration("elapsed", summary.Elapsed),
	)

	return summary, nil
}

func gopsutilProcessList(ctx context.Context) ([]processInfo, error) {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]processInfo, 0, len(procs))
	for _, p := range procs {
		name, err := p.NameWithContext(ctx)
		if err != nil {
			continue
		}
		info := processInfo{PID: p.Pid, Name: name}
		if mi, err := p.MemoryInfoWithContext(ctx); err == nil && mi != nil {
			info.RSS = mi.RSS
		}
		out = append(out, info)
	}
	return out, nil
}

func gopsutilConnectionList(ctx context.Context) ([]connInfo, error) {
	conns, err := gopsnet.ConnectionsWithContext(ctx, "tcp")
	if err != nil {
		return nil, err
	}
	out := make([]connInfo, 0, len(conns))
	for _, conn := range conns {
		out = append(out, connInfo{LocalPort: conn.Laddr.Port, Status: conn.Status})
	}
	return out, nil
}

// Compile-time interface compliance check.
var _ collectors.Collector = (*Collector)(nil)

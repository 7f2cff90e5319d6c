// Package apm profiles application runtimes found in the process table.
// Processes are classified by runtime (Java, .NET, Python, Node.js, Go)
// from their name and command line, then counted and sized per runtime.
package apm

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/process"

	"gitlab.com/tinyland/lab/proc-pulse/collectors"
	"gitlab.com/tinyland/lab/proc-pulse/internal/format"
)

const (
	collectorName        = "apm"
	collectorDescription = "Application runtimes (Java, .NET, Python, Node.js, Go)"

	defaultInterval = 10 * time.Second
	defaultTimeout  = 2 * time.Second

	// defaultMemoryAlert flags a single runtime app above this RSS.
	defaultMemoryAlert = 2 << 30
)

// appInfo is the slice of the process table this collector needs.
type appInfo struct {
	PID     int32
	Name    string
	Cmdline string
	RSS     uint64
}

// Config tunes the apm collector.
type Config struct {
	// Interval overrides the collection cadence when positive.
	Interval time.Duration
	// Timeout overrides the per-run deadline when positive.
	Timeout time.Duration
	// MemoryAlert flags an app whose RSS exceeds it, in bytes.
	// Zero uses the default; negative disables the check.
	MemoryAlert int64
}

// Collector implements collectors.Collector for runtime profiling.
type Collector struct {
	config Config
	logger *slog.Logger

	// Overridable probe for testing.
	listApps func(ctx context.Context) ([]appInfo, error)

	mu sync.Mutex
}

// New creates an apm Collector.
// If logger is nil, a no-op logger is used.
func New(config Config, logger *slog.Logger) *Collector {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if config.MemoryAlert == 0 {
		config.MemoryAlert = defaultMemoryAlert
	}

	return &Collector{
		config:   config,
		logger:   logger,
		listApps: gopsutilAppList,
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

// Collect classifies running processes by runtime and reports per-runtime
// app counts and memory. Apps above the memory threshold raise an alert.
func (c *Collector) Collect(ctx context.Context) (*collectors.DomainSummary, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	started := time.Now()

	apps, err := c.listApps(ctx)
	if err != nil {
		return nil, fmt.Errorf("apm: list processes: %w", err)
	}

	summary := collectors.NewSummary(collectorName)

	counts := make(map[string]int)
	rss := make(map[string]uint64)
	total := 0
	for _, app := range apps {
		runtime := classifyRuntime(app.Name, app.Cmdline)
		if runtime == "" {
			continue
		}
		total++
		counts[runtime]++
		rss[runtime] += app.RSS

		if c.config.MemoryAlert > 0 && app.RSS > uint64(c.config.MemoryAlert) {
			summary.AddAlert(collectors.SeverityMedium,
				fmt.Sprintf("%s app %s (pid %d) is using %s",
					runtime, appLabel(app), app.PID, format.FormatBytes(app.RSS)))
		}
	}

	summary.Metrics["apps"] = float64(total)
	for runtime, n := range counts {
		summary.Metrics[runtime+".apps"] = float64(n)
		summary.Metrics[runtime+".rss_bytes"] = float64(rss[runtime])
	}

	summary.CollectedAt = time.Now()
	summary.Elapsed = time.Since(started)

	c.logger.Debug("runtime scan complete",
		slog.Int("apps", total),
		slog.Duration("elapsed", summary.Elapsed),
	)

	return summary, nil
}

// classifyRuntime maps a process to a runtime label, or "" when the
// process is not a recognized application runtime.
func classifyRuntime(name, cmdline string) string {
	lower := strings.ToLower(name)
	cmd := strings.ToLower(cmdline)

	switch {
	case lower == "java" || strings.Contains(cmd, "-jar "):
		return "java"
	case lower == "dotnet" || strings.Contains(cmd, ".dll"):
		return "dotnet"
	case strings.HasPrefix(lower, "python"):
		return "python"
	case lower == "node" || lower == "nodejs":
		return "node"
	case lower == "go" && (strings.Contains(cmd, "go run") || strings.Contains(cmd, "go test")):
		return "go"
	default:
		return ""
	}
}

// appLabel picks a short display name for an app: the first argument of
// the command line that is not a flag, or the process name.
func appLabel(app appInfo) string {
	fields := strings.Fields(app.Cmdline)
	if len(fields) > 1 {
		for _, f := range fields[1:] {
			if strings.HasPrefix(f, "-") {
				continue
			}
			return format.TruncateWithEllipsis(f, 40)
		}
	}
	return app.Name
}

func gopsutilAppList(ctx context.Context) ([]appInfo, error) {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]appInfo, 0, len(procs))
	for _, p := range procs {
		name, err := p.NameWithContext(ctx)
		if err != nil {
			continue
		}
		info := appInfo{PID: p.Pid, Name: name}
		if cmd, err := p.CmdlineWithContext(ctx); err == nil {
			info.Cmdline = cmd
		}
		if mi, err := p.MemoryInfoWithContext(ctx); err == nil && mi != nil {
			info.RSS = mi.RSS
		}
		out = append(out, info)
	}
	return out, nil
}

// Compile-time interface compliance check.
var _ collectors.Collector = (*Collector)(nil)

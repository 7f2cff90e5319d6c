// Package backup checks whether the host has working backups. It looks for
// running backup tools in the process table, discovers scheduled jobs in
// the user crontab and in systemd units, and verifies that configured
// backup destinations are reachable and have free space.
package backup

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/process"

	"gitlab.com/tinyland/lab/proc-pulse/collectors"
)

const (
	collectorName        = "backup"
	collectorDescription = "Backup jobs (running tools, cron and systemd schedules, destinations)"

	defaultInterval = 5 * time.Minute
	defaultTimeout  = 5 * time.Second

	// defaultMinFreePercent flags a destination whose free space drops
	// below this share of the volume.
	defaultMinFreePercent = 10.0
)

// backupTools are the process names recognized as backup jobs.
var backupTools = []string{"restic", "borg", "borgmatic", "rsync", "rclone", "duplicity"}

// jobInfo is the slice of the process table this collector needs.
type jobInfo struct {
	PID  int32
	Name string
}

// Config tunes the backup collector.
type Config struct {
	// Interval overrides the collection cadence when positive.
	Interval time.Duration
	// Timeout overrides the per-run deadline when positive.
	Timeout time.Duration
	// Destinations lists backup target paths to verify.
	Destinations []string
	// MinFreePercent flags a destination below this free-space share.
	// Zero uses the default.
	MinFreePercent float64
}

// Collector implements collectors.Collector for backup monitoring.
type Collector struct {
	config Config
	logger *slog.Logger

	// Overridable probes for testing.
	listJobs     func(ctx context.Context) ([]jobInfo, error)
	readCrontab  func(ctx context.Context) ([]byte, error)
	listUnits    func(ctx context.Context) ([]byte, error)
	diskUsage    func(ctx context.Context, path string) (total, free uint64, err error)

	mu sync.Mutex
}

// New creates a backup Collector.
// If logger is nil, a no-op logger is used.
func New(config Config, logger *slog.Logger) *Collector {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if config.MinFreePercent == 0 {
		config.MinFreePercent = defaultMinFreePercent
	}

	return &Collector{
		config:      config,
		logger:      logger,
		listJobs:    gopsutilJobList,
		readCrontab: runCrontab,
		listUnits:   runSystemctl,
		diskUsage:   gopsutilDiskUsage,
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

// Collect gathers the backup picture. Schedule discovery is best effort:
// a missing crontab or an absent systemctl binary reports zero jobs rather
// than failing the run. Destination problems raise alerts.
func (c *Collector) Collect(ctx context.Context) (*collectors.DomainSummary, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	started := time.Now()

	jobs, err := c.listJobs(ctx)
	if err != nil {
		return nil, fmt.Errorf("backup: list processes: %w", err)
	}

	summary := collectors.NewSummary(collectorName)

	running := 0
	tools := make(map[string]bool)
	for _, job := range jobs {
		for _, tool := range backupTools {
			if job.Name == tool {
				running++
				tools[tool] = true
			}
		}
	}

	cronJobs := 0
	if raw, err := c.readCrontab(ctx); err != nil {
		c.logger.Debug("crontab unavailable", "error", err)
	} else {
		cronJobs = countCronBackupJobs(raw)
	}

	units, active := 0, 0
	if raw, err := c.listUnits(ctx); err != nil {
		c.logger.Debug("systemctl unavailable", "error", err)
	} else {
		units, active = countBackupUnits(raw)
	}

	summary.Metrics["running_jobs"] = float64(running)
	summary.Metrics["tools"] = float64(len(tools))
	summary.Metrics["cron_jobs"] = float64(cronJobs)
	summary.Metrics["systemd_units"] = float64(units)
	summary.Metrics["systemd_active"] = float64(active)

	destOK := 0
	for _, dest := range c.config.Destinations {
		total, free, err := c.diskUsage(ctx, dest)
		if err != nil {
			summary.AddAlert(collectors.SeverityCritical,
				fmt.Sprintf("backup destination %s is unreachable: %v", dest, err))
			continue
		}
		destOK++
		if total == 0 {
			continue
		}
		freePercent := float64(free) / float64(total) * 100
		summary.Metrics["free."+dest] = freePercent
		if freePercent < c.config.MinFreePercent {
			summary.AddAlert(collectors.SeverityHigh,
				fmt.Sprintf("backup destination %s has %.1f%% free space", dest, freePercent))
		}
	}
	summary.Metrics["destinations"] = float64(len(c.config.Destinations))
	summary.Metrics["destinations_ok"] = float64(destOK)

	if running == 0 && cronJobs == 0 && units == 0 {
		summary.AddAlert(collectors.SeverityInfo, "no backup jobs or schedules detected")
	}

	summary.CollectedAt = time.Now()
	summary.Elapsed = time.Since(started)

	c.logger.Debug("backup scan complete",
		slog.Int("running", running),
		slog.Int("cron", cronJobs),
		slog.Int("units", units),
		slog.Duration("elapsed", summary.Elapsed),
	)

	return summary, nil
}

// countCronBackupJobs counts non-comment crontab lines that invoke a
// known backup tool.
func countCronBackupJobs(raw []byte) int {
	count := 0
	scanner := bufio.NewScanner(bytes.NewReader(raw))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		for _, tool := range backupTools {
			if strings.Contains(line, tool) {
				count++
				break
			}
		}
	}
	return count
}

// countBackupUnits counts systemd service units whose name mentions
// backup, and how many of them are currently running.
func countBackupUnits(raw []byte) (units, active int) {
	scanner := bufio.NewScanner(bytes.NewReader(raw))
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 4 {
			continue
		}
		if !strings.Contains(strings.ToLower(fields[0]), "backup") {
			continue
		}
		units++
		if fields[3] == "running" {
			active++
		}
	}
	return units, active
}

func gopsutilJobList(ctx context.Context) ([]jobInfo, error) {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]jobInfo, 0, len(procs))
	for _, p := range procs {
		name, err := p.NameWithContext(ctx)
		if err != nil {
			continue
		}
		out = append(out, jobInfo{PID: p.Pid, Name: name})
	}
	return out, nil
}

// runCrontab lists the current user's crontab. An exit status of 1 with
// no output usually means "no crontab for user", which is not an error
// worth reporting; callers treat any failure as zero entries anyway.
func runCrontab(ctx context.Context) ([]byte, error) {
	out, err := exec.CommandContext(ctx, "crontab", "-l").Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && len(out) > 0 {
			return out, nil
		}
		return nil, err
	}
	return out, nil
}

func runSystemctl(ctx context.Context) ([]byte, error) {
	return exec.CommandContext(ctx,
		"systemctl", "list-units", "--type=service", "--all", "--no-legend", "--plain").Output()
}

func gopsutilDiskUsage(ctx context.Context, path string) (uint64, uint64, error) {
	usage, err := disk.UsageWithContext(ctx, path)
	if err != nil {
		return 0, 0, err
	}
	return usage.Total, usage.Free, nil
}

// Compile-time interface compliance check.
var _ collectors.Collector = (*Collector)(nil)

// Package security scans the process table for suspicious activity. Each
// process gets a suspicion score built from several weighted factors (a
// recon-tool name, high CPU, rapid memory growth, many flag arguments,
// root ownership, orphan status), and scores above the reporting bands
// raise alerts. The collector also flags possible privilege escalations,
// where a root process was spawned by a non-root parent outside the
// normal sudo family.
//
// Alerts deduplicate per process for a few minutes so a persistent
// offender does not drown the domain feed.
package security

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/process"

	"gitlab.com/tinyland/lab/proc-pulse/collectors"
	"gitlab.com/tinyland/lab/proc-pulse/internal/format"
)

const (
	collectorName        = "security"
	collectorDescription = "Suspicious processes and privilege escalations"

	defaultInterval = 15 * time.Second
	defaultTimeout  = 2 * time.Second

	// Scoring weights. The total is capped at maxScore.
	scoreSuspiciousName = 20
	scoreHighCPU        = 15
	scoreMemoryGrowth   = 25
	scoreManyFlags      = 10
	scoreRoot           = 10
	scoreOrphan         = 15
	maxScore            = 100

	// Reporting bands.
	highBand   = 70
	mediumBand = 50

	// highCPUPercent is the CPU share treated as a suspicion factor.
	highCPUPercent = 80.0
	// manyFlagsCount is the number of dash arguments treated as a factor.
	manyFlagsCount = 5

	// Memory growth fires when the newest RSS sample is at least double
	// the oldest one and grew by more than growthFloorBytes.
	rssHistoryLen    = 6
	rssHistoryMin    = 4
	growthFloorBytes = 64 << 20

	// dedupWindow suppresses repeat alerts for the same process, and
	// dedupExpiry drops stale dedup entries.
	dedupWindow = 5 * time.Minute
	dedupExpiry = time.Hour
)

// defaultSuspiciousNames lists tool names that score on sight. Config
// extras are merged in.
var defaultSuspiciousNames = []string{
	"nc", "netcat", "ncat", "socat",
	"nmap", "masscan", "zmap",
	"nikto", "sqlmap", "hydra", "medusa",
	"john", "hashcat",
	"tcpdump", "tshark", "ettercap",
	"msfconsole", "mimikatz",
}

// sudoFamily are the legitimate privilege escalation paths that the
// escalation check ignores.
var sudoFamily = map[string]bool{
	"sudo":   true,
	"su":     true,
	"doas":   true,
	"pkexec": true,
}

// procInfo is the slice of the process table this collector needs.
type procInfo struct {
	PID     int32
	PPID    int32
	Name    string
	User    string
	Cmdline string
	CPU     float64
	RSS     uint64
}

// Config tunes the security collector.
type Config struct {
	// Interval overrides the collection cadence when positive.
	Interval time.Duration
	// Timeout overrides the per-run deadline when positive.
	Timeout time.Duration
	// ExtraNames adds process names to the suspicious-name list.
	ExtraNames []string
}

// Collector implements collectors.Collector for process security scanning.
type Collector struct {
	config Config
	logger *slog.Logger
	names  []string

	// Overridable probes for testing.
	listProcesses func(ctx context.Context) ([]procInfo, error)
	now           func() time.Time

	mu         sync.Mutex
	rssHistory map[int32][]uint64
	alerted    map[string]time.Time
}

// New creates a security Collector.
// If logger is nil, a no-op logger is used.
func New(config Config, logger *slog.Logger) *Collector {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Collector{
		config:        config,
		logger:        logger,
		names:         format.UniqueStrings(append(append([]string{}, defaultSuspiciousNames...), config.ExtraNames...)),
		listProcesses: gopsutilProcessList,
		now:           time.Now,
		rssHistory:    make(map[int32][]uint64),
		alerted:       make(map[string]time.Time),
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

// Collect scores every process and reports the suspicious ones.
func (c *Collector) Collect(ctx context.Context) (*collectors.DomainSummary, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	started := time.Now()
	now := c.now()

	procs, err := c.listProcesses(ctx)
	if err != nil {
		return nil, fmt.Errorf("security: list processes: %w", err)
	}

	byPID := make(map[int32]procInfo, len(procs))
	for _, p := range procs {
		byPID[p.PID] = p
	}
	c.updateRSSHistory(procs)

	summary := collectors.NewSummary(collectorName)

	suspicious := 0
	for _, p := range procs {
		score, factors := c.scoreProcess(p, byPID)
		if score <= mediumBand {
			continue
		}
		suspicious++

		severity := collectors.SeverityMedium
		if score > highBand {
			severity = collectors.SeverityHigh
		}
		if !c.shouldAlert("score:"+strconv.Itoa(int(p.PID)), now) {
			continue
		}
		summary.AddAlert(severity,
			fmt.Sprintf("suspicious process %s (pid %d, score %d): %s",
				p.Name, p.PID, score, strings.Join(factors, ", ")))
	}

	escalations := 0
	for _, p := range procs {
		parent, ok := byPID[p.PPID]
		if !ok || !isEscalation(p, parent) {
			continue
		}
		escalations++
		if !c.shouldAlert("escalation:"+strconv.Itoa(int(p.PID)), now) {
			continue
		}
		summary.AddAlert(collectors.SeverityHigh,
			fmt.Sprintf("possible privilege escalation: root process %s (pid %d) spawned by %s's %s (pid %d)",
				p.Name, p.PID, parent.User, parent.Name, parent.PID))
	}

	c.expireDedup(now)

	summary.Metrics["scanned"] = float64(len(procs))
	summary.Metrics["suspicious"] = float64(suspicious)
	summary.Metrics["escalations"] = float64(escalations)
	summary.Metrics["alerts"] = float64(len(summary.Alerts))

	summary.CollectedAt = time.Now()
	summary.Elapsed = time.Since(started)

	c.logger.Debug("security scan complete",
		slog.Int("scanned", len(procs)),
		slog.Int("suspicious", suspicious),
		slog.Int("escalations", escalations),
		slog.Duration("elapsed", summary.Elapsed),
	)

	return summary, nil
}

// scoreProcess computes the suspicion score and the factor names that
// contributed to it.
func (c *Collector) scoreProcess(p procInfo, byPID map[int32]procInfo) (int, []string) {
	score := 0
	var factors []string

	add := func(points int, factor string) {
		score += points
		factors = append(factors, factor)
	}

	for _, name := range c.names {
		if p.Name == name {
			add(scoreSuspiciousName, "recon tool name")
			break
		}
	}
	if p.CPU > highCPUPercent {
		add(scoreHighCPU, "high cpu")
	}
	if c.hasMemoryGrowth(p.PID) {
		add(scoreMemoryGrowth, "rapid memory growth")
	}
	if countFlags(p.Cmdline) > manyFlagsCount {
		add(scoreManyFlags, "many flag arguments")
	}
	if p.User == "root" {
		add(scoreRoot, "runs as root")
	}
	if _, hasParent := byPID[p.PPID]; !hasParent && p.PPID > 1 {
		add(scoreOrphan, "orphan")
	}

	if score > maxScore {
		score = maxScore
	}
	return score, factors
}

// hasMemoryGrowth reports whether the pid's RSS at least doubled across
// the tracked window and grew past the floor.
func (c *Collector) hasMemoryGrowth(pid int32) bool {
	hist := c.rssHistory[pid]
	if len(hist) < rssHistoryMin {
		return false
	}
	oldest, newest := hist[0], hist[len(hist)-1]
	return newest >= 2*oldest && newest-oldest > growthFloorBytes
}

// updateRSSHistory appends this run's RSS samples and drops history for
// pids no longer present.
func (c *Collector) updateRSSHistory(procs []procInfo) {
	alive := make(map[int32]bool, len(procs))
	for _, p := range procs {
		alive[p.PID] = true
		hist := append(c.rssHistory[p.PID], p.RSS)
		if len(hist) > rssHistoryLen {
			hist = hist[len(hist)-rssHistoryLen:]
		}
		c.rssHistory[p.PID] = hist
	}
	for pid := range c.rssHistory {
		if !alive[pid] {
			delete(c.rssHistory, pid)
		}
	}
}

// isEscalation reports whether p looks like an illegitimate privilege
// escalation: p runs as root, its parent runs as a real non-root user,
// and neither end is part of the sudo family.
func isEscalation(p, parent procInfo) bool {
	if p.User != "root" {
		return false
	}
	if parent.User == "" || parent.User == "root" {
		return false
	}
	if sudoFamily[p.Name] || sudoFamily[parent.Name] {
		return false
	}
	return true
}

// shouldAlert checks the dedup window for the key and records the alert
// time when it passes.
func (c *Collector) shouldAlert(key string, now time.Time) bool {
	if last, ok := c.alerted[key]; ok && now.Sub(last) < dedupWindow {
		return false
	}
	c.alerted[key] = now
	return true
}

func (c *Collector) expireDedup(now time.Time) {
	for key, last := range c.alerted {
		if now.Sub(last) > dedupExpiry {
			delete(c.alerted, key)
		}
	}
}

// countFlags counts command line fields that start with a dash.
func countFlags(cmdline string) int {
	count := 0
	for _, f := range strings.Fields(cmdline) {
		if strings.HasPrefix(f, "-") {
			count++
		}
	}
	return count
}

func gopsutilProcessList(ctx context.Context) ([]procInfo, error) {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]procInfo, 0, len(procs))
	for _, p := range procs {
		name, err := p.NameWithContext(ctx)
		if err != nil {
			continue
		}
		info := procInfo{PID: p.Pid, Name: name}
		if ppid, err := p.PpidWithContext(ctx); err == nil {
			info.PPID = ppid
		}
		if user, err := p.UsernameWithContext(ctx); err == nil {
			info.User = user
		}
		if cmd, err := p.CmdlineWithContext(ctx); err == nil {
			info.Cmdline = cmd
		}
		if cpu, err := p.CPUPercentWithContext(ctx); err == nil {
			info.CPU = cpu
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

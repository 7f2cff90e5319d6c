// Package fsintegrity watches a small set of security-critical files for
// unexpected change. On the first run it records a metadata baseline
// (size, permissions, modification time) for each path; later runs diff
// against the baseline and alert on any drift. After reporting, the
// baseline moves to the new state so one change produces one alert.
//
// This is metadata-only tripwire monitoring. Content hashing is out of
// scope; an attacker editing a file in place while preserving size and
// mtime will not be caught.
package fsintegrity

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"sync"
	"time"

	"gitlab.com/tinyland/lab/proc-pulse/collectors"
)

const (
	collectorName        = "fsintegrity"
	collectorDescription = "Metadata tripwire over security-critical files"

	defaultInterval = 5 * time.Minute
	defaultTimeout  = 2 * time.Second
)

// defaultPaths are watched when the config lists none.
var defaultPaths = []string{
	"/etc/passwd",
	"/etc/shadow",
	"/etc/sudoers",
	"/etc/ssh/sshd_config",
	"/etc/hosts",
	"/etc/crontab",
}

// fileMeta is the tracked metadata for one file.
type fileMeta struct {
	Exists  bool
	Size    int64
	Mode    fs.FileMode
	ModTime time.Time
}

func (m fileMeta) same(other fileMeta) bool {
	return m.Exists == other.Exists &&
		m.Size == other.Size &&
		m.Mode == other.Mode &&
		m.ModTime.Equal(other.ModTime)
}

// Config tunes the fsintegrity collector.
type Config struct {
	// Interval overrides the collection cadence when positive.
	Interval time.Duration
	// Timeout overrides the per-run deadline when positive.
	Timeout time.Duration
	// Paths lists the files to watch. Empty uses the defaults.
	Paths []string
}

// Collector implements collectors.Collector for file integrity checks.
type Collector struct {
	config Config
	logger *slog.Logger
	paths  []string

	// Overridable probe for testing.
	statFile func(path string) (fileMeta, error)

	mu           sync.Mutex
	baseline     map[string]fileMeta
	baselined    bool
	changesTotal int
}

// New creates an fsintegrity Collector.
// If logger is nil, a no-op logger is used.
func New(config Config, logger *slog.Logger) *Collector {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	paths := config.Paths
	if len(paths) == 0 {
		paths = defaultPaths
	}

	return &Collector{
		config:   config,
		logger:   logger,
		paths:    paths,
		statFile: statMeta,
		baseline: make(map[string]fileMeta),
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

// Collect stats every watched path and diffs against the baseline.
func (c *Collector) Collect(ctx context.Context) (*collectors.DomainSummary, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	started := time.Now()
	summary := collectors.NewSummary(collectorName)

	present := 0
	changes := 0
	for _, path := range c.paths {
		cur, err := c.statFile(path)
		if err != nil {
			cur = fileMeta{}
		}
		if cur.Exists {
			present++
		}

		if !c.baselined {
			c.baseline[path] = cur
			continue
		}

		prev := c.baseline[path]
		if prev.same(cur) {
			continue
		}
		changes++
		c.changesTotal++
		c.baseline[path] = cur
		c.alertChange(summary, path, prev, cur)
	}
	c.baselined = true

	summary.Metrics["files_watched"] = float64(len(c.paths))
	summary.Metrics["files_present"] = float64(present)
	summary.Metrics["changes"] = float64(changes)
	summary.Metrics["changes_total"] = float64(c.changesTotal)

	summary.CollectedAt = time.Now()
	summary.Elapsed = time.Since(started)

	c.logger.Debug("integrity scan complete",
		slog.Int("watched", len(c.paths)),
		slog.Int("changes", changes),
		slog.Duration("elapsed", summary.Elapsed),
	)

	return summary, nil
}

// alertChange classifies one baseline difference and raises the alert.
func (c *Collector) alertChange(summary *collectors.DomainSummary, path string, prev, cur fileMeta) {
	switch {
	case prev.Exists && !cur.Exists:
		summary.AddAlert(collectors.SeverityCritical,
			fmt.Sprintf("%s was removed", path))
	case !prev.Exists && cur.Exists:
		summary.AddAlert(collectors.SeverityMedium,
			fmt.Sprintf("%s appeared (mode %#o)", path, cur.Mode.Perm()))
	case prev.Mode != cur.Mode:
		summary.AddAlert(collectors.SeverityCritical,
			fmt.Sprintf("%s permissions changed from %#o to %#o", path, prev.Mode.Perm(), cur.Mode.Perm()))
	case prev.Size != cur.Size:
		summary.AddAlert(collectors.SeverityHigh,
			fmt.Sprintf("%s was modified (size %d to %d bytes)", path, prev.Size, cur.Size))
	default:
		summary.AddAlert(collectors.SeverityHigh,
			fmt.Sprintf("%s was modified (mtime changed, size unchanged)", path))
	}
}

func statMeta(path string) (fileMeta, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return fileMeta{}, err
	}
	return fileMeta{
		Exists:  true,
		Size:    fi.Size(),
		Mode:    fi.Mode(),
		ModTime: fi.ModTime(),
	}, nil
}

// Compile-time interface compliance check.
var _ collectors.Collector = (*Collector)(nil)

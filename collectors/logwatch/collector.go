// Package logwatch tails system log files and matches new lines against a
// table of known-bad patterns. Read offsets are remembered between runs,
// so each run scans only what was appended since the last one. A file
// that shrinks is treated as rotated and is scanned from the start again.
//
// The first sight of a file only records its current size. Scanning
// history that predates the monitor would replay old incidents as if
// they were happening now.
package logwatch

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"gitlab.com/tinyland/lab/proc-pulse/collectors"
	"gitlab.com/tinyland/lab/proc-pulse/internal/format"
)

const (
	collectorName        = "logwatch"
	collectorDescription = "System log files (auth failures, OOM kills, sensitive file access)"

	defaultInterval = 30 * time.Second
	defaultTimeout  = 3 * time.Second

	// defaultMaxBytes bounds how much of a file one run will scan. When
	// more than this was appended, the run skips ahead and scans only
	// the newest chunk.
	defaultMaxBytes = 512 << 10

	// sampleWidth truncates the example line carried in an alert.
	sampleWidth = 120
)

// defaultFiles are watched when the config lists none.
var defaultFiles = []string{"/var/log/syslog", "/var/log/auth.log"}

// logPattern maps a substring to an event type and severity. Matching is
// case-insensitive.
type logPattern struct {
	match    string
	typ      string
	severity string
}

var patterns = []logPattern{
	{match: "authentication failure", typ: "auth_failure", severity: collectors.SeverityMedium},
	{match: "failed password", typ: "auth_failure", severity: collectors.SeverityMedium},
	{match: "invalid user", typ: "invalid_user", severity: collectors.SeverityLow},
	{match: "session opened for user root", typ: "root_session", severity: collectors.SeverityMedium},
	{match: "/etc/shadow", typ: "sensitive_file", severity: collectors.SeverityCritical},
	{match: "/etc/sudoers", typ: "sensitive_file", severity: collectors.SeverityCritical},
	{match: "out of memory", typ: "oom", severity: collectors.SeverityHigh},
	{match: "oom-killer", typ: "oom", severity: collectors.SeverityHigh},
	{match: "segfault", typ: "crash", severity: collectors.SeverityLow},
}

// Config tunes the logwatch collector.
type Config struct {
	// Interval overrides the collection cadence when positive.
	Interval time.Duration
	// Timeout overrides the per-run deadline when positive.
	Timeout time.Duration
	// Files lists the log files to watch. Empty uses the defaults.
	Files []string
	// MaxBytes bounds how much one run reads per file. Zero uses the default.
	MaxBytes int64
}

// Collector implements collectors.Collector for log scanning.
type Collector struct {
	config Config
	logger *slog.Logger
	files  []string

	// Overridable probes for testing.
	fileSize  func(path string) (int64, error)
	readChunk func(path string, offset, max int64) ([]byte, error)

	mu      sync.Mutex
	offsets map[string]int64
}

// New creates a logwatch Collector.
// If logger is nil, a no-op logger is used.
func New(config Config, logger *slog.Logger) *Collector {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	files := config.Files
	if len(files) == 0 {
		files = defaultFiles
	}
	if config.MaxBytes <= 0 {
		config.MaxBytes = defaultMaxBytes
	}

	return &Collector{
		config:    config,
		logger:    logger,
		files:     files,
		fileSize:  statSize,
		readChunk: readFileChunk,
		offsets:   make(map[string]int64),
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

// matchState aggregates hits for one event type across all files.
type matchState struct {
	severity string
	count    int
	sample   string
	file     string
}

// Collect scans the appended portion of every watched file. Unreadable
// files are skipped; the run fails only when no watched file could be
// read at all.
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

	matches := make(map[string]*matchState)
	filesRead := 0
	lines := 0
	for _, path := range c.files {
		n, err := c.scanFile(path, matches)
		if err != nil {
			c.logger.Debug("log file unavailable", "path", path, "error", err)
			continue
		}
		filesRead++
		lines += n
	}
	if filesRead == 0 && len(c.files) > 0 {
		return nil, fmt.Errorf("logwatch: no watched file is readable")
	}

	totalMatches := 0
	for typ, st := range matches {
		totalMatches += st.count
		summary.Metrics["match."+typ] = float64(st.count)
		summary.AddAlert(st.severity,
			fmt.Sprintf("%s in %s: %d hit(s), e.g. %q", typ, st.file, st.count, st.sample))
	}

	summary.Metrics["files_watched"] = float64(len(c.files))
	summary.Metrics["files_read"] = float64(filesRead)
	summary.Metrics["lines_scanned"] = float64(lines)
	summary.Metrics["matches"] = float64(totalMatches)

	summary.CollectedAt = time.Now()
	summary.Elapsed = time.Since(started)

	c.logger.Debug("log scan complete",
		slog.Int("files", filesRead),
		slog.Int("lines", lines),
		slog.Int("matches", totalMatches),
		slog.Duration("elapsed", summary.Elapsed),
	)

	return summary, nil
}

// scanFile reads the portion of path appended since the previous run and
// feeds complete lines through the pattern table. It returns the number
// of lines scanned.
func (c *Collector) scanFile(path string, matches map[string]*matchState) (int, error) {
	size, err := c.fileSize(path)
	if err != nil {
		return 0, err
	}

	offset, known := c.offsets[path]
	if !known {
		// First sight: remember where the file ends and scan from here
		// next time.
		c.offsets[path] = size
		return 0, nil
	}
	if size < offset {
		// Rotated or truncated.
		offset = 0
	}
	if size == offset {
		return 0, nil
	}

	toRead := size - offset
	if toRead > c.config.MaxBytes {
		offset = size - c.config.MaxBytes
		toRead = c.config.MaxBytes
	}

	data, err := c.readChunk(path, offset, toRead)
	if err != nil {
		return 0, err
	}

	// Only complete lines are consumed. A partially written last line
	// stays unscanned until the writer finishes it.
	end := bytes.LastIndexByte(data, '\n')
	if end < 0 {
		c.offsets[path] = offset
		return 0, nil
	}
	complete := data[:end+1]
	c.offsets[path] = offset + int64(end) + 1

	name := filepath.Base(path)
	count := 0
	for _, line := range bytes.Split(complete, []byte("\n")) {
		if len(line) == 0 {
			continue
		}
		count++
		matchLine(string(line), name, matches)
	}
	return count, nil
}

// matchLine checks one line against the pattern table and folds hits
// into the per-type aggregation.
func matchLine(line, file string, matches map[string]*matchState) {
	lower := strings.ToLower(line)
	for _, p := range patterns {
		if !strings.Contains(lower, p.match) {
			continue
		}
		st, ok := matches[p.typ]
		if !ok {
			st = &matchState{
				severity: p.severity,
				sample:   format.TruncateWithEllipsis(strings.TrimSpace(line), sampleWidth),
				file:     file,
			}
			matches[p.typ] = st
		}
		st.count++
		break
	}
}

func statSize(path string) (int64, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	return fi.Size(), nil
}

func readFileChunk(path string, offset, max int64) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		return nil, err
	}
	return io.ReadAll(io.LimitReader(f, max))
}

// Compile-time interface compliance check.
var _ collectors.Collector = (*Collector)(nil)

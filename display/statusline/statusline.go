// Package statusline renders a one-line snapshot summary for shell prompt
// embedding. Unlike the TUI it carries no styling of its own; prompt
// integrations such as Starship apply their own color to the whole segment.
package statusline

import (
	"fmt"
	"strings"

	"gitlab.com/tinyland/lab/proc-pulse/engine"
	"gitlab.com/tinyland/lab/proc-pulse/internal/format"
	"gitlab.com/tinyland/lab/proc-pulse/status"
)

// Options controls which segments appear in the line.
type Options struct {
	// Separator is placed between segments. Empty means " · ".
	Separator string

	// ShowLoad includes the 1-minute load average.
	ShowLoad bool

	// ShowSwap includes swap usage when swap is configured.
	ShowSwap bool

	// ShowNet includes rx/tx throughput once rates are valid.
	ShowNet bool

	// ShowProcs includes the process count.
	ShowProcs bool
}

// DefaultOptions returns the segment set for the standard prompt line:
// cpu, memory, load, and the health badge.
func DefaultOptions() Options {
	return Options{
		Separator: " · ",
		ShowLoad:  true,
	}
}

// Line renders snap with the default options.
func Line(snap *engine.Snapshot) string {
	return Render(snap, DefaultOptions())
}

// Render builds a one-line summary like "cpu 12% · mem 48% · load 1.2 · ● ok".
// Unsampled sections are skipped so a partial poll still yields a usable line.
// A degraded snapshot is suffixed with " ?" to signal that the numbers may be
// behind. Returns an empty string for a nil snapshot so prompt integrations
// hide the segment entirely.
func Render(snap *engine.Snapshot, opts Options) string {
	if snap == nil {
		return ""
	}

	sep := opts.Separator
	if sep == "" {
		sep = " · "
	}

	sys := snap.System
	var segments []string

	if sys.CPU.Sampled {
		segments = append(segments, fmt.Sprintf("cpu %.0f%%", sys.CPU.TotalPercent))
	}
	if sys.Mem.Sampled {
		segments = append(segments, fmt.Sprintf("mem %.0f%%", sys.Mem.UsedPercent))
		if opts.ShowSwap && sys.Mem.SwapTotal > 0 {
			segments = append(segments, fmt.Sprintf("swap %.0f%%", sys.Mem.SwapPercent))
		}
	}
	if opts.ShowLoad && sys.Load.Sampled {
		segments = append(segments, fmt.Sprintf("load %.1f", sys.Load.Load1))
	}
	if opts.ShowNet && sys.Net.Sampled && sys.Net.RatesValid {
		segments = append(segments,
			"rx "+format.FormatRate(sys.Net.TotalRxRate),
			"tx "+format.FormatRate(sys.Net.TotalTxRate))
	}
	if opts.ShowProcs && len(snap.Processes) > 0 {
		segments = append(segments, fmt.Sprintf("procs %d", len(snap.Processes)))
	}

	segments = append(segments, healthBadge(snap.Health.Overall))

	line := strings.Join(segments, sep)
	if snap.Degraded {
		line += " ?"
	}
	return line
}

// healthBadge returns the glyph and short word for an overall level. The
// glyph matches the TUI status icons so the prompt and header agree.
func healthBadge(level status.Level) string {
	switch level {
	case status.LevelHealthy:
		return "● ok"
	case status.LevelWarning:
		return "● warn"
	case status.LevelCritical:
		return "● crit"
	default:
		return "○ ?"
	}
}

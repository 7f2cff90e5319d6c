// Package report renders a one-shot plain summary of a snapshot. It is the
// non-interactive sibling of the TUI: boxed sections for the system, the
// top processes, and active alerts, sized to the terminal width.
package report

import (
	"fmt"
	"sort"
	"strings"

	"gitlab.com/tinyland/lab/proc-pulse/display/widgets"
	"gitlab.com/tinyland/lab/proc-pulse/engine"
	"gitlab.com/tinyland/lab/proc-pulse/internal/format"
	"gitlab.com/tinyland/lab/proc-pulse/sampler"
	"gitlab.com/tinyland/lab/proc-pulse/status"
)

// Options controls the report shape.
type Options struct {
	// Width is the render width in columns. Zero detects the terminal.
	Width int
	// TopProcesses is how many processes the table lists. Zero means 10.
	TopProcesses int
}

// DefaultOptions returns the standard report shape.
func DefaultOptions() Options {
	return Options{TopProcesses: 10}
}

// Render produces the full report for a snapshot.
func Render(snap *engine.Snapshot, opts Options) string {
	if snap == nil {
		return "no snapshot available\n"
	}

	width := opts.Width
	if width == 0 {
		width = DetectWidth()
	}
	width = clampWidth(width)

	topN := opts.TopProcesses
	if topN <= 0 {
		topN = 10
	}

	sections := []string{
		headline(snap),
		renderBox(buildSystemLines(snap, width), width, "System"),
		renderBox(buildProcessLines(snap, topN, width), width, "Top Processes"),
		renderBox(buildAlertLines(snap), width, "Alerts"),
	}

	return strings.Join(sections, "\n") + "\n"
}

// headline is the unboxed first line naming the tool, sample time, and
// overall health.
func headline(snap *engine.Snapshot) string {
	parts := []string{"proc-pulse"}
	if !snap.TakenAt.IsZero() {
		parts = append(parts, snap.TakenAt.Format("2006-01-02 15:04:05"))
	}
	parts = append(parts, snap.Health.Overall.String())
	return strings.Join(parts, " · ")
}

// buildSystemLines formats the machine-level metrics, one labeled line per
// section. Unsampled sections say so rather than disappearing.
func buildSystemLines(snap *engine.Snapshot, width int) []string {
	sys := snap.System
	var lines []string

	line := func(label, content string) string {
		return fmt.Sprintf("%-6s %s", label, content)
	}

	gaugeWidth := 20
	if width < 70 {
		gaugeWidth = 12
	}

	if sys.Host.Sampled {
		host := sys.Host.Hostname
		if sys.Host.Platform != "" {
			host += " · " + sys.Host.Platform
		}
		host += " · up " + format.FormatUptime(sys.Host.UptimeSec)
		lines = append(lines, line("host", host))
	}

	if sys.CPU.Sampled {
		lines = append(lines, line("cpu", fmt.Sprintf("%s %s of %d cores",
			widgets.RenderMiniGauge(sys.CPU.TotalPercent, gaugeWidth),
			format.FormatPercent(sys.CPU.TotalPercent), sys.CPU.Cores)))
	} else {
		lines = append(lines, line("cpu", "unavailable"))
	}

	if sys.Mem.Sampled {
		lines = append(lines, line("mem", fmt.Sprintf("%s %s  %s / %s",
			widgets.RenderMiniGauge(sys.Mem.UsedPercent, gaugeWidth),
			format.FormatPercent(sys.Mem.UsedPercent),
			format.FormatBytes(sys.Mem.Used), format.FormatBytes(sys.Mem.Total))))
		if sys.Mem.SwapTotal > 0 {
			lines = append(lines, line("swap", fmt.Sprintf("%s %s  %s / %s",
				widgets.RenderMiniGauge(sys.Mem.SwapPercent, gaugeWidth),
				format.FormatPercent(sys.Mem.SwapPercent),
				format.FormatBytes(sys.Mem.SwapUsed), format.FormatBytes(sys.Mem.SwapTotal))))
		}
	} else {
		lines = append(lines, line("mem", "unavailable"))
	}

	if sys.Load.Sampled {
		lines = append(lines, line("load", fmt.Sprintf("%.2f %.2f %.2f",
			sys.Load.Load1, sys.Load.Load5, sys.Load.Load15)))
	}

	if sys.Net.Sampled {
		if sys.Net.RatesValid {
			lines = append(lines, line("net", fmt.Sprintf("rx %s · tx %s",
				format.FormatRate(sys.Net.TotalRxRate), format.FormatRate(sys.Net.TotalTxRate))))
		} else {
			lines = append(lines, line("net", "measuring..."))
		}
	}

	if sys.Disk.Sampled {
		switch {
		case !sys.Disk.IOValid:
			lines = append(lines, line("io", "counters unavailable"))
		case !sys.Disk.RatesValid:
			lines = append(lines, line("io", "measuring..."))
		default:
			lines = append(lines, line("io", fmt.Sprintf("r %s · w %s",
				format.FormatRate(sys.Disk.ReadRate), format.FormatRate(sys.Disk.WriteRate))))
		}
		if v, ok := fullestVolume(sys.Disk.Volumes); ok {
			lines = append(lines, line("disk", fmt.Sprintf("%s %s used of %s",
				v.Mount, format.FormatPercent(v.UsedPercent), format.FormatBytes(v.Total))))
		}
	}

	lines = append(lines, line("health", snap.Health.Overall.String()))

	return lines
}

// fullestVolume returns the mounted volume with the highest usage.
func fullestVolume(volumes []sampler.DiskVolume) (sampler.DiskVolume, bool) {
	if len(volumes) == 0 {
		return sampler.DiskVolume{}, false
	}
	fullest := volumes[0]
	for _, v := range volumes[1:] {
		if v.UsedPercent > fullest.UsedPercent {
			fullest = v
		}
	}
	return fullest, true
}

// buildProcessLines formats the top-N process table sorted by CPU usage.
func buildProcessLines(snap *engine.Snapshot, topN, width int) []string {
	procs := append([]sampler.ProcessSample(nil), snap.Processes...)
	sort.SliceStable(procs, func(i, j int) bool {
		if procs[i].CPUPercent != procs[j].CPUPercent {
			return procs[i].CPUPercent > procs[j].CPUPercent
		}
		return procs[i].PID < procs[j].PID
	})
	if len(procs) > topN {
		procs = procs[:topN]
	}

	if len(procs) == 0 {
		return []string{"no processes sampled"}
	}

	// Fixed columns use 43 characters; the command gets the rest of the
	// box interior.
	cmdWidth := width - 4 - 43
	if cmdWidth < 10 {
		cmdWidth = 10
	}

	lines := []string{fmt.Sprintf("%7s %-10s %6s %6s %8s  %s",
		"PID", "USER", "CPU%", "MEM%", "RSS", "COMMAND")}

	for _, p := range procs {
		cpu := "-"
		if p.CPUValid {
			cpu = fmt.Sprintf("%.1f", p.CPUPercent)
		}
		mem := "-"
		if p.MemValid {
			mem = fmt.Sprintf("%.1f", p.MemPercent)
		}

		command := p.Cmdline
		if command == "" {
			command = p.Name
		}
		if command == "" {
			command = fmt.Sprintf("(%d)", p.PID)
		}

		lines = append(lines, fmt.Sprintf("%7d %-10s %6s %6s %8s  %s",
			p.PID, format.TruncateRunes(p.User, 10), cpu, mem,
			format.FormatBytes(p.RSS), format.TruncateWithEllipsis(command, cmdWidth)))
	}

	return lines
}

// buildAlertLines collects everything that needs attention: degraded
// sampling, sampler warnings, anomalies, unhealthy components, and domain
// collector alerts.
func buildAlertLines(snap *engine.Snapshot) []string {
	var lines []string

	if snap.Degraded {
		msg := "sampling degraded"
		if snap.Err != "" {
			msg += ": " + snap.Err
		}
		lines = append(lines, msg)
	}

	for _, w := range snap.System.Warnings {
		lines = append(lines, "warning: "+w)
	}

	for _, ev := range snap.Anomalies {
		lines = append(lines, fmt.Sprintf("anomaly %s: %s", ev.Severity, ev.Message))
	}

	for _, comp := range snap.Health.Components {
		if comp.Level == status.LevelHealthy {
			continue
		}
		lines = append(lines, fmt.Sprintf("%s %s: %s", comp.Component, comp.Level, comp.Reason))
	}

	for _, name := range sortedDomainNames(snap) {
		sum := snap.Domains[name]
		if sum.Err != "" {
			lines = append(lines, fmt.Sprintf("collector %s: %s", name, sum.Err))
		}
		for _, alert := range sum.Alerts {
			lines = append(lines, fmt.Sprintf("%s %s: %s", name, alert.Severity, alert.Message))
		}
	}

	if len(lines) == 0 {
		return []string{"No active alerts."}
	}

	return lines
}

// sortedDomainNames returns the domain keys in a stable order.
func sortedDomainNames(snap *engine.Snapshot) []string {
	names := make([]string, 0, len(snap.Domains))
	for name := range snap.Domains {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

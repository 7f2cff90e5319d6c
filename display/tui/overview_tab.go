package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"gitlab.com/tinyland/lab/proc-pulse/anomaly"
	"gitlab.com/tinyland/lab/proc-pulse/display/widgets"
	"gitlab.com/tinyland/lab/proc-pulse/engine"
	"gitlab.com/tinyland/lab/proc-pulse/internal/format"
	"gitlab.com/tinyland/lab/proc-pulse/sampler"
)

// renderOverviewContent renders the Overview tab: headline gauges for CPU,
// memory and swap, rate lines with sparklines fed from the history rings,
// the health breakdown and recent anomalies.
func renderOverviewContent(snap *engine.Snapshot, width, height int) string {
	if snap == nil {
		return "Waiting for first sample..."
	}

	layout := LayoutForSize(DetectLayout(width), width)
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(colorSecondary)
	labelStyle := lipgloss.NewStyle().Bold(true).Foreground(colorPrimary)
	mutedStyle := lipgloss.NewStyle().Foreground(colorMuted)

	var sections []string

	sections = append(sections, titleStyle.Render(sectionTitle("System Overview", layout.TableMaxWidth)))
	sections = append(sections, "")

	sections = append(sections, renderHostLine(snap, mutedStyle))
	if snap.Degraded {
		msg := "sampling degraded, showing last good data"
		if snap.Err != "" {
			msg += ": " + snap.Err
		}
		sections = append(sections, styleToastError.Render(msg))
	}
	sections = append(sections, "")

	sections = append(sections, renderCPUSection(snap, layout, labelStyle)...)
	sections = append(sections, renderMemorySection(snap, layout, labelStyle)...)
	sections = append(sections, renderLoadLine(snap, labelStyle))
	sections = append(sections, renderProcLine(snap, labelStyle))
	sections = append(sections, "")

	sections = append(sections, renderRateSection(snap, layout, labelStyle)...)

	sections = append(sections, renderHealthSection(snap, layout)...)
	sections = append(sections, renderAnomalySection(snap.Anomalies, mutedStyle)...)

	if len(snap.System.Warnings) > 0 {
		sections = append(sections, "")
		for _, w := range snap.System.Warnings {
			sections = append(sections, mutedStyle.Render("warning: "+w))
		}
	}

	return strings.Join(sections, "\n")
}

// renderHostLine is the one-line host identity: name, platform, kernel, uptime.
func renderHostLine(snap *engine.Snapshot, mutedStyle lipgloss.Style) string {
	host := snap.System.Host
	if !host.Sampled {
		return mutedStyle.Render("host information unavailable")
	}
	parts := []string{host.Hostname}
	if host.Platform != "" {
		p := host.Platform
		if host.KernelVersion != "" {
			p += " " + host.KernelVersion
		}
		parts = append(parts, p)
	}
	if host.UptimeSec > 0 {
		parts = append(parts, "up "+format.FormatUptime(host.UptimeSec))
	}
	return mutedStyle.Render(strings.Join(parts, " · "))
}

func renderCPUSection(snap *engine.Snapshot, layout LayoutConfig, labelStyle lipgloss.Style) []string {
	cpu := snap.System.CPU
	var lines []string

	if !cpu.Sampled {
		lines = append(lines, labelStyle.Render("CPU")+"    unavailable")
		return lines
	}

	detail := ""
	if cpu.Cores > 0 {
		detail = fmt.Sprintf("%d cores", cpu.Cores)
	}
	lines = append(lines, labelStyle.Render("CPU")+"    "+widgets.RenderGauge(widgets.GaugeConfig{
		Width:       layout.GaugeWidth,
		Percent:     cpu.TotalPercent,
		Detail:      detail,
		ShowPercent: true,
	}))

	if layout.ShowSparklines && snap.History != nil {
		if data := snap.History.Values("cpu.total", layout.SparkWidth); len(data) > 1 {
			spark := widgets.RenderSparkline(widgets.SparklineConfig{
				Data:  data,
				Width: layout.SparkWidth,
				Min:   0,
				Max:   100,
				Color: colorPrimary,
			})
			lines = append(lines, "       "+spark)
		}
	}

	if layout.ShowPerCore && len(cpu.PerCore) > 0 {
		lines = append(lines, renderPerCoreRows(cpu.PerCore)...)
	}

	return lines
}

// renderPerCoreRows lays out per-core mini gauges four to a row.
func renderPerCoreRows(perCore []float64) []string {
	const perRow = 4
	var rows []string
	var cells []string
	for i, pct := range perCore {
		cells = append(cells, fmt.Sprintf("c%-2d %s %3.0f%%", i, widgets.RenderMiniGauge(pct, 8), pct))
		if len(cells) == perRow || i == len(perCore)-1 {
			rows = append(rows, "       "+strings.Join(cells, "   "))
			cells = nil
		}
	}
	return rows
}

func renderMemorySection(snap *engine.Snapshot, layout LayoutConfig, labelStyle lipgloss.Style) []string {
	mem := snap.System.Mem
	var lines []string

	if !mem.Sampled {
		lines = append(lines, labelStyle.Render("Memory")+" unavailable")
		return lines
	}

	lines = append(lines, labelStyle.Render("Memory")+" "+widgets.RenderGauge(widgets.GaugeConfig{
		Width:       layout.GaugeWidth,
		Percent:     mem.UsedPercent,
		Detail:      format.FormatBytes(mem.Used) + " / " + format.FormatBytes(mem.Total),
		ShowPercent: true,
	}))

	if mem.SwapTotal > 0 {
		lines = append(lines, labelStyle.Render("Swap")+"   "+widgets.RenderGauge(widgets.GaugeConfig{
			Width:       layout.GaugeWidth,
			Percent:     mem.SwapPercent,
			Detail:      format.FormatBytes(mem.SwapUsed) + " / " + format.FormatBytes(mem.SwapTotal),
			ShowPercent: true,
		}))
	}

	return lines
}

func renderLoadLine(snap *engine.Snapshot, labelStyle lipgloss.Style) string {
	load := snap.System.Load
	if !load.Sampled {
		return labelStyle.Render("Load") + "   unavailable"
	}

	text := fmt.Sprintf("%.2f  %.2f  %.2f", load.Load1, load.Load5, load.Load15)

	// Color the 1-minute figure against core count.
	cores := snap.System.CPU.Cores
	if cores > 0 {
		ratio := load.Load1 / float64(cores)
		var c lipgloss.Color
		switch {
		case ratio >= 3.0:
			c = colorDanger
		case ratio >= 1.5:
			c = colorWarning
		default:
			c = colorSuccess
		}
		text = lipgloss.NewStyle().Foreground(c).Render(text)
	}

	return labelStyle.Render("Load") + "   " + text
}

func renderProcLine(snap *engine.Snapshot, labelStyle lipgloss.Style) string {
	var running, sleeping, stopped, zombie int
	for _, p := range snap.Processes {
		switch p.Status {
		case sampler.StatusRunning:
			running++
		case sampler.StatusSleeping:
			sleeping++
		case sampler.StatusStopped:
			stopped++
		case sampler.StatusZombie:
			zombie++
		}
	}

	parts := []string{
		fmt.Sprintf("%d total", len(snap.Processes)),
		fmt.Sprintf("%d running", running),
		fmt.Sprintf("%d sleeping", sleeping),
	}
	if stopped > 0 {
		parts = append(parts, fmt.Sprintf("%d stopped", stopped))
	}
	if zombie > 0 {
		z := lipgloss.NewStyle().Foreground(colorDanger).Render(fmt.Sprintf("%d zombie", zombie))
		parts = append(parts, z)
	}

	return labelStyle.Render("Procs") + "  " + strings.Join(parts, " · ")
}

// renderRateSection shows network and disk throughput with sparklines.
func renderRateSection(snap *engine.Snapshot, layout LayoutConfig, labelStyle lipgloss.Style) []string {
	var lines []string

	net := snap.System.Net
	if net.Sampled {
		if net.RatesValid {
			lines = append(lines, labelStyle.Render("Net")+"    "+
				fmt.Sprintf("rx %s  tx %s", format.FormatRate(net.TotalRxRate), format.FormatRate(net.TotalTxRate)))
		} else {
			lines = append(lines, labelStyle.Render("Net")+"    measuring...")
		}
		if layout.ShowSparklines && snap.History != nil {
			if data := snap.History.Values("net.rx_rate", layout.SparkWidth); len(data) > 1 {
				lines = append(lines, "       "+widgets.RenderSparkline(widgets.SparklineConfig{
					Data:  data,
					Width: layout.SparkWidth,
					Label: "rx",
					Color: colorSecondary,
				}))
			}
			if data := snap.History.Values("net.tx_rate", layout.SparkWidth); len(data) > 1 {
				lines = append(lines, "       "+widgets.RenderSparkline(widgets.SparklineConfig{
					Data:  data,
					Width: layout.SparkWidth,
					Label: "tx",
					Color: colorSecondary,
				}))
			}
		}
	}

	disk := snap.System.Disk
	if disk.Sampled && disk.IOValid {
		if disk.RatesValid {
			lines = append(lines, labelStyle.Render("Disk")+"   "+
				fmt.Sprintf("read %s  write %s", format.FormatRate(disk.ReadRate), format.FormatRate(disk.WriteRate)))
		} else {
			lines = append(lines, labelStyle.Render("Disk")+"   measuring...")
		}
	}

	if len(lines) > 0 {
		lines = append(lines, "")
	}
	return lines
}

func renderHealthSection(snap *engine.Snapshot, layout LayoutConfig) []string {
	if len(snap.Health.Components) == 0 {
		return nil
	}

	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(colorSecondary)
	lines := []string{titleStyle.Render("Health")}

	for _, c := range snap.Health.Components {
		entry := widgets.RenderStatus(widgets.StatusConfig{
			Level:    widgets.StatusLevelFromString(c.Level.String()),
			Text:     c.Component,
			ShowIcon: true,
		})
		if c.Reason != "" {
			entry += "  " + lipgloss.NewStyle().Foreground(colorMuted).Render(c.Reason)
		}
		lines = append(lines, "  "+entry)
	}
	lines = append(lines, "")
	return lines
}

// renderAnomalySection lists the most recent anomaly events, newest first.
func renderAnomalySection(events []anomaly.Event, mutedStyle lipgloss.Style) []string {
	if len(events) == 0 {
		return nil
	}

	const maxShown = 5
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(colorSecondary)
	lines := []string{titleStyle.Render(fmt.Sprintf("Anomalies (%d active)", len(events)))}

	shown := events
	if len(shown) > maxShown {
		shown = shown[len(shown)-maxShown:]
	}
	for i := len(shown) - 1; i >= 0; i-- {
		ev := shown[i]
		var c lipgloss.Color
		switch ev.Severity {
		case anomaly.SeverityHigh:
			c = colorDanger
		case anomaly.SeverityMedium:
			c = colorWarning
		default:
			c = colorMuted
		}
		stamp := mutedStyle.Render(ev.At.Format("15:04:05"))
		lines = append(lines, "  "+stamp+" "+lipgloss.NewStyle().Foreground(c).Render(ev.Message))
	}
	return lines
}

package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"gitlab.com/tinyland/lab/proc-pulse/display/widgets"
	"gitlab.com/tinyland/lab/proc-pulse/engine"
	"gitlab.com/tinyland/lab/proc-pulse/internal/format"
)

// renderDiskContent renders the Disks tab: aggregate I/O throughput and a
// per-volume usage table.
func renderDiskContent(snap *engine.Snapshot, width, height int) string {
	if snap == nil {
		return "Waiting for first sample..."
	}

	disk := snap.System.Disk
	if !disk.Sampled {
		return "Disk metrics unavailable on this platform."
	}

	layout := LayoutForSize(DetectLayout(width), width)
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(colorSecondary)
	labelStyle := lipgloss.NewStyle().Bold(true).Foreground(colorPrimary)
	mutedStyle := lipgloss.NewStyle().Foreground(colorMuted)

	var sections []string

	sections = append(sections, titleStyle.Render(sectionTitle("Disks", layout.TableMaxWidth)))
	sections = append(sections, "")

	switch {
	case !disk.IOValid:
		sections = append(sections, labelStyle.Render("I/O")+"  "+mutedStyle.Render("counters unavailable"))
	case !disk.RatesValid:
		sections = append(sections, labelStyle.Render("I/O")+"  "+mutedStyle.Render("rates need a second sample"))
	default:
		sections = append(sections, labelStyle.Render("I/O")+"  "+
			fmt.Sprintf("read %s  write %s", format.FormatRate(disk.ReadRate), format.FormatRate(disk.WriteRate)))
	}

	if layout.ShowSparklines && disk.RatesValid && snap.History != nil {
		rateFmt := func(v float64) string { return format.FormatRate(v) }
		if data := snap.History.Values("disk.read_rate", layout.SparkWidth); len(data) > 1 {
			sections = append(sections, "  rd "+widgets.RenderSparklineWithRange(data, layout.SparkWidth, rateFmt))
		}
		if data := snap.History.Values("disk.write_rate", layout.SparkWidth); len(data) > 1 {
			sections = append(sections, "  wr "+widgets.RenderSparklineWithRange(data, layout.SparkWidth, rateFmt))
		}
	}
	sections = append(sections, "")

	if len(disk.Volumes) == 0 {
		sections = append(sections, "No mounted volumes reported.")
		return strings.Join(sections, "\n")
	}

	sections = append(sections, renderVolumeTable(snap, layout))

	return strings.Join(sections, "\n")
}

// renderVolumeTable lists mounted volumes with capacity and usage.
func renderVolumeTable(snap *engine.Snapshot, layout LayoutConfig) string {
	disk := snap.System.Disk

	columns := []widgets.Column{
		{Title: "Device", Width: 0, Align: widgets.AlignLeft},
		{Title: "Mount", Width: 0, Align: widgets.AlignLeft},
		{Title: "FS", Width: 8, Align: widgets.AlignLeft},
		{Title: "Size", Width: 9, Align: widgets.AlignRight},
		{Title: "Used", Width: 9, Align: widgets.AlignRight},
		{Title: "Free", Width: 9, Align: widgets.AlignRight},
		{Title: "Use%", Width: 6, Align: widgets.AlignRight},
	}

	rows := make([][]string, 0, len(disk.Volumes))
	for _, v := range disk.Volumes {
		free := uint64(0)
		if v.Total > v.Used {
			free = v.Total - v.Used
		}
		rows = append(rows, []string{
			v.Device,
			v.Mount,
			v.Fstype,
			format.FormatBytes(v.Total),
			format.FormatBytes(v.Used),
			format.FormatBytes(free),
			format.FormatPercent(v.UsedPercent),
		})
	}

	cfg := widgets.DefaultTableConfig()
	cfg.Columns = columns
	cfg.Rows = rows
	cfg.MaxWidth = layout.TableMaxWidth

	return widgets.RenderTable(cfg)
}

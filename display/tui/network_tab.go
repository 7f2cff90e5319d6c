package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"gitlab.com/tinyland/lab/proc-pulse/display/widgets"
	"gitlab.com/tinyland/lab/proc-pulse/engine"
	"gitlab.com/tinyland/lab/proc-pulse/internal/format"
)

// renderNetworkContent renders the Network tab: aggregate throughput with
// history sparklines and a per-interface counter table.
func renderNetworkContent(snap *engine.Snapshot, width, height int) string {
	if snap == nil {
		return "Waiting for first sample..."
	}

	net := snap.System.Net
	if !net.Sampled {
		return "Network metrics unavailable on this platform."
	}

	layout := LayoutForSize(DetectLayout(width), width)
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(colorSecondary)
	labelStyle := lipgloss.NewStyle().Bold(true).Foreground(colorPrimary)
	mutedStyle := lipgloss.NewStyle().Foreground(colorMuted)

	var sections []string

	sections = append(sections, titleStyle.Render(sectionTitle("Network", layout.TableMaxWidth)))
	sections = append(sections, "")

	if net.RatesValid {
		sections = append(sections, labelStyle.Render("Total")+"  "+
			fmt.Sprintf("rx %s  tx %s", format.FormatRate(net.TotalRxRate), format.FormatRate(net.TotalTxRate)))
	} else {
		sections = append(sections, labelStyle.Render("Total")+"  "+
			mutedStyle.Render("rates need a second sample"))
	}

	if layout.ShowSparklines && snap.History != nil {
		rateFmt := func(v float64) string { return format.FormatRate(v) }
		if data := snap.History.Values("net.rx_rate", layout.SparkWidth); len(data) > 1 {
			sections = append(sections, "  rx "+widgets.RenderSparklineWithRange(data, layout.SparkWidth, rateFmt))
		}
		if data := snap.History.Values("net.tx_rate", layout.SparkWidth); len(data) > 1 {
			sections = append(sections, "  tx "+widgets.RenderSparklineWithRange(data, layout.SparkWidth, rateFmt))
		}
	}
	sections = append(sections, "")

	if len(net.Interfaces) == 0 {
		sections = append(sections, "No interfaces reported.")
		return strings.Join(sections, "\n")
	}

	sections = append(sections, renderInterfaceTable(snap, layout))

	return strings.Join(sections, "\n")
}

// renderInterfaceTable lists every interface with cumulative counters and,
// once two samples exist, per-interface rates.
func renderInterfaceTable(snap *engine.Snapshot, layout LayoutConfig) string {
	net := snap.System.Net

	columns := []widgets.Column{
		{Title: "Interface", Width: 0, Align: widgets.AlignLeft},
		{Title: "RX", Width: 10, Align: widgets.AlignRight},
		{Title: "TX", Width: 10, Align: widgets.AlignRight},
		{Title: "RX/s", Width: 11, Align: widgets.AlignRight},
		{Title: "TX/s", Width: 11, Align: widgets.AlignRight},
		{Title: "RX pkts", Width: 10, Align: widgets.AlignRight},
		{Title: "TX pkts", Width: 10, Align: widgets.AlignRight},
		{Title: "Err in", Width: 7, Align: widgets.AlignRight},
		{Title: "Err out", Width: 7, Align: widgets.AlignRight},
	}

	rows := make([][]string, 0, len(net.Interfaces))
	for _, ifc := range net.Interfaces {
		rxRate, txRate := "-", "-"
		if net.RatesValid {
			rxRate = format.FormatRate(ifc.RxRate)
			txRate = format.FormatRate(ifc.TxRate)
		}

		rows = append(rows, []string{
			ifc.Name,
			format.FormatBytes(ifc.RxBytes),
			format.FormatBytes(ifc.TxBytes),
			rxRate,
			txRate,
			format.FormatCount(ifc.RxPackets),
			format.FormatCount(ifc.TxPackets),
			format.FormatCount(ifc.Errin),
			format.FormatCount(ifc.Errout),
		})
	}

	cfg := widgets.DefaultTableConfig()
	cfg.Columns = columns
	cfg.Rows = rows
	cfg.MaxWidth = layout.TableMaxWidth

	return widgets.RenderTable(cfg)
}

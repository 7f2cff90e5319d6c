package tui

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"gitlab.com/tinyland/lab/proc-pulse/collectors"
	"gitlab.com/tinyland/lab/proc-pulse/display/widgets"
	"gitlab.com/tinyland/lab/proc-pulse/engine"
)

// renderDomainsContent renders the Domains tab: one section per registered
// collector with its status, metrics and alerts.
func renderDomainsContent(snap *engine.Snapshot, width, height int) string {
	if snap == nil {
		return "Waiting for first sample..."
	}

	layout := LayoutForSize(DetectLayout(width), width)
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(colorSecondary)
	mutedStyle := lipgloss.NewStyle().Foreground(colorMuted)

	var sections []string

	sections = append(sections, titleStyle.Render(sectionTitle("Domain Collectors", layout.TableMaxWidth)))
	sections = append(sections, "")

	if len(snap.Domains) == 0 {
		sections = append(sections, "No domain collectors enabled.")
		sections = append(sections, "")
		sections = append(sections, mutedStyle.Render("Enable collectors in the config file, e.g. collectors.database.enabled: true."))
		return strings.Join(sections, "\n")
	}

	names := make([]string, 0, len(snap.Domains))
	for name := range snap.Domains {
		names = append(names, name)
	}
	sort.Strings(names)

	for i, name := range names {
		sections = append(sections, renderDomainSection(snap.Domains[name], layout)...)
		if i < len(names)-1 {
			sep := mutedStyle.Render(horizontalRule(layout.TableMaxWidth))
			sections = append(sections, "", sep, "")
		}
	}

	return strings.Join(sections, "\n")
}

// renderDomainSection renders one collector's summary block.
func renderDomainSection(sum collectors.DomainSummary, layout LayoutConfig) []string {
	mutedStyle := lipgloss.NewStyle().Foreground(colorMuted)

	var lines []string

	header := lipgloss.NewStyle().Bold(true).Foreground(colorPrimary).Render(sum.Domain) +
		" " + widgets.RenderStatusFromString(sum.Status)
	meta := fmt.Sprintf("collected %s in %s", formatRelativeTime(sum.CollectedAt), formatDuration(sum.Elapsed))
	lines = append(lines, header+"  "+mutedStyle.Render(meta))

	if sum.Err != "" {
		lines = append(lines, "  "+styleToastError.Render(sum.Err))
	}

	if len(sum.Metrics) > 0 {
		lines = append(lines, "")
		lines = append(lines, renderDomainMetrics(sum.Metrics, layout))
	}

	for _, alert := range sum.Alerts {
		lines = append(lines, "  "+renderDomainAlert(alert))
	}

	return lines
}

// renderDomainMetrics renders the metric map as a two-column table in
// stable key order.
func renderDomainMetrics(metrics map[string]float64, layout LayoutConfig) string {
	keys := make([]string, 0, len(metrics))
	for k := range metrics {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	rows := make([][]string, 0, len(keys))
	for _, k := range keys {
		rows = append(rows, []string{k, formatMetricValue(metrics[k])})
	}

	cfg := widgets.DefaultTableConfig()
	cfg.Columns = []widgets.Column{
		{Title: "Metric", Width: 0, Align: widgets.AlignLeft},
		{Title: "Value", Width: 12, Align: widgets.AlignRight},
	}
	cfg.Rows = rows
	cfg.MaxWidth = layout.TableMaxWidth

	return widgets.RenderTable(cfg)
}

// formatMetricValue trims trailing zeros so counts show as integers while
// ratios keep their precision.
func formatMetricValue(v float64) string {
	if v == float64(int64(v)) {
		return strconv.FormatInt(int64(v), 10)
	}
	return strconv.FormatFloat(v, 'f', 2, 64)
}

// renderDomainAlert colors an alert line by its severity.
func renderDomainAlert(alert collectors.Alert) string {
	var c lipgloss.Color
	switch alert.Severity {
	case collectors.SeverityCritical, collectors.SeverityHigh:
		c = colorDanger
	case collectors.SeverityMedium, collectors.SeverityLow:
		c = colorWarning
	default:
		c = colorMuted
	}
	return lipgloss.NewStyle().Foreground(c).Render(alert.Severity+": ") + alert.Message
}

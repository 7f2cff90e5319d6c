package tui

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"gitlab.com/tinyland/lab/proc-pulse/display/widgets"
	"gitlab.com/tinyland/lab/proc-pulse/internal/format"
	"gitlab.com/tinyland/lab/proc-pulse/proctree"
	"gitlab.com/tinyland/lab/proc-pulse/sampler"
)

// procRow is one renderable row of the process table.
type procRow struct {
	PID    int32
	Sample sampler.ProcessSample
	Depth  int
	Orphan bool
}

// processRows builds the row list the process tab shows: tree order when
// tree mode is on, sorted flat order otherwise, then the zombie and text
// filters. The cursor indexes into exactly this list.
func (m Model) processRows() []procRow {
	if m.snap == nil {
		return nil
	}

	var rows []procRow
	if m.treeMode && m.snap.Forest != nil {
		rows = make([]procRow, 0, m.snap.Forest.Size)
		m.snap.Forest.Walk(func(n *proctree.Node) bool {
			rows = append(rows, procRow{PID: n.PID, Sample: n.Sample, Depth: n.Depth, Orphan: n.Orphan})
			return true
		})
	} else {
		rows = make([]procRow, 0, len(m.snap.Processes))
		for _, p := range m.snap.Processes {
			rows = append(rows, procRow{PID: p.PID, Sample: p})
		}
		sortProcRows(rows, m.sortBy)
	}

	return filterProcRows(rows, m.filter, m.zombiesOnly, m.showKernel)
}

// sortProcRows orders rows by the given column, pid ascending on ties so
// the table is stable across refreshes.
func sortProcRows(rows []procRow, by string) {
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i].Sample, rows[j].Sample
		switch by {
		case "mem":
			if a.RSS != b.RSS {
				return a.RSS > b.RSS
			}
		case "pid":
			return a.PID < b.PID
		case "name":
			an, bn := strings.ToLower(a.Name), strings.ToLower(b.Name)
			if an != bn {
				return an < bn
			}
		default: // cpu
			if a.CPUPercent != b.CPUPercent {
				return a.CPUPercent > b.CPUPercent
			}
		}
		return a.PID < b.PID
	})
}

// filterProcRows applies the kernel thread toggle, the zombie toggle and
// the live text filter. The filter matches name, command line and pid,
// case-insensitively.
func filterProcRows(rows []procRow, filter string, zombiesOnly, showKernel bool) []procRow {
	if filter == "" && !zombiesOnly && showKernel {
		return rows
	}

	needle := strings.ToLower(filter)
	out := make([]procRow, 0, len(rows))
	for _, r := range rows {
		if !showKernel && sampler.IsKernelThread(r.Sample) {
			continue
		}
		if zombiesOnly && r.Sample.Status != sampler.StatusZombie {
			continue
		}
		if needle != "" {
			name := strings.ToLower(r.Sample.Name)
			cmd := strings.ToLower(r.Sample.Cmdline)
			pid := strconv.Itoa(int(r.PID))
			if !strings.Contains(name, needle) && !strings.Contains(cmd, needle) && !strings.Contains(pid, needle) {
				continue
			}
		}
		out = append(out, r)
	}
	return out
}

// procVisibleRows is how many data rows fit in the process table window
// after the summary line, table header and position indicator.
func (m Model) procVisibleRows() int {
	rows := m.contentHeight() - 5
	if rows < 3 {
		rows = 3
	}
	return rows
}

// renderProcessesContent renders the Processes tab: a summary line, the
// windowed process table with the cursor row highlighted, and a position
// indicator when the table is scrolled.
func (m Model) renderProcessesContent(width, height int) string {
	if m.snap == nil {
		return "Waiting for first sample..."
	}

	layout := LayoutForSize(DetectLayout(width), width)
	rows := m.processRows()

	var sections []string
	sections = append(sections, m.renderProcSummary(rows))
	sections = append(sections, "")

	if len(rows) == 0 {
		sections = append(sections, "No processes match.")
		return strings.Join(sections, "\n")
	}

	visible := m.procVisibleRows()
	top := m.scrollTop
	if top > len(rows)-1 {
		top = len(rows) - 1
	}
	if top < 0 {
		top = 0
	}
	end := top + visible
	if end > len(rows) {
		end = len(rows)
	}

	sections = append(sections, renderProcessTable(rows[top:end], m.selected-top, m.treeMode, layout))

	if len(rows) > visible {
		pos := fmt.Sprintf("%d-%d of %d", top+1, end, len(rows))
		sections = append(sections, lipgloss.NewStyle().Foreground(colorMuted).Render(pos))
	}

	return strings.Join(sections, "\n")
}

// renderProcSummary is the one-line state readout above the table.
func (m Model) renderProcSummary(rows []procRow) string {
	parts := []string{fmt.Sprintf("%d processes", len(rows))}
	if m.treeMode {
		parts = append(parts, "tree")
	} else {
		parts = append(parts, "sort "+m.sortBy)
	}
	if m.zombiesOnly {
		parts = append(parts, "zombies only")
	}

	line := lipgloss.NewStyle().Foreground(colorMuted).Render(strings.Join(parts, " · "))

	// The filter shows a block cursor while it is being edited.
	if m.filterMode {
		line += "  " + styleFilter.Render("/"+m.filter+"█")
	} else if m.filter != "" {
		line += "  " + styleFilter.Render("/"+m.filter)
	}
	return line
}

// procStatusLetter is the single-letter state column, htop style.
func procStatusLetter(s sampler.ProcStatus) string {
	switch s {
	case sampler.StatusRunning:
		return "R"
	case sampler.StatusSleeping:
		return "S"
	case sampler.StatusStopped:
		return "T"
	case sampler.StatusZombie:
		return "Z"
	default:
		return "?"
	}
}

// renderProcessTable renders the visible window of rows. Cells stay plain
// text so column widths line up; highlighting is done per row by the
// table's selected style.
func renderProcessTable(window []procRow, selected int, treeMode bool, layout LayoutConfig) string {
	wide := layout.ShowPerCore

	columns := []widgets.Column{
		{Title: "PID", Width: 7, Align: widgets.AlignRight},
		{Title: "User", Width: 10, Align: widgets.AlignLeft},
		{Title: "S", Width: 1, Align: widgets.AlignCenter},
		{Title: "CPU%", Width: 6, Align: widgets.AlignRight},
		{Title: "MEM%", Width: 6, Align: widgets.AlignRight},
		{Title: "RSS", Width: 9, Align: widgets.AlignRight},
	}
	if wide {
		columns = append(columns,
			widgets.Column{Title: "Thr", Width: 4, Align: widgets.AlignRight},
			widgets.Column{Title: "Started", Width: 8, Align: widgets.AlignRight},
		)
	}
	columns = append(columns, widgets.Column{Title: "Command", Width: 0, Align: widgets.AlignLeft})

	rows := make([][]string, 0, len(window))
	for _, r := range window {
		s := r.Sample

		cpu := "-"
		if s.CPUValid {
			cpu = fmt.Sprintf("%.1f", s.CPUPercent)
		}
		mem := "-"
		if s.MemValid {
			mem = fmt.Sprintf("%.1f", s.MemPercent)
		}

		cells := []string{
			strconv.Itoa(int(s.PID)),
			s.User,
			procStatusLetter(s.Status),
			cpu,
			mem,
			format.FormatBytes(s.RSS),
		}
		if wide {
			started := "-"
			if s.StartValid {
				started = formatRelativeTime(s.StartTime)
			}
			cells = append(cells, strconv.Itoa(int(s.Threads)), started)
		}
		cells = append(cells, procCommandCell(r, treeMode, wide))

		rows = append(rows, cells)
	}

	cfg := widgets.DefaultTableConfig()
	cfg.Columns = columns
	cfg.Rows = rows
	cfg.MaxWidth = layout.TableMaxWidth
	cfg.Zebra = false
	cfg.SelectedRow = selected
	cfg.SelectedStyle = styleSelected

	return widgets.RenderTable(cfg)
}

// procCommandCell builds the command column: indented under tree mode,
// full command line when there is room for it.
func procCommandCell(r procRow, treeMode, wide bool) string {
	name := r.Sample.Name
	if wide && r.Sample.Cmdline != "" {
		name = r.Sample.Cmdline
	}
	if name == "" {
		name = "(" + strconv.Itoa(int(r.PID)) + ")"
	}

	if !treeMode {
		return name
	}

	prefix := strings.Repeat("  ", r.Depth)
	if r.Depth > 0 {
		prefix = strings.Repeat("  ", r.Depth-1) + "└─"
	}
	if r.Orphan {
		name += " [orphan]"
	}
	return prefix + name
}

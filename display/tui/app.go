package tui

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	zone "github.com/lrstanley/bubblezone"

	"gitlab.com/tinyland/lab/proc-pulse/display/widgets"
	"gitlab.com/tinyland/lab/proc-pulse/engine"
)

// Tab identifies which tab is currently active.
type Tab int

const (
	TabOverview Tab = iota
	TabProcesses
	TabNetwork
	TabDisks
	TabDomains
	tabCount // sentinel for wrapping
)

// tabNames maps each Tab value to its display label.
var tabNames = map[Tab]string{
	TabOverview:  "Overview",
	TabProcesses: "Processes",
	TabNetwork:   "Network",
	TabDisks:     "Disks",
	TabDomains:   "Domains",
}

// engineClient is the slice of the engine API the dashboard consumes.
// Tests substitute a scripted fake.
type engineClient interface {
	Snapshot() *engine.Snapshot
	Updates() <-chan struct{}
	Refresh()
	RequestKill(pid int32) error
}

// Options configures the interactive dashboard.
type Options struct {
	// Theme names the starting theme preset.
	Theme string
	// Filter is the initial process filter text.
	Filter string
	// SortBy is the initial process sort column: cpu, mem, pid or name.
	SortBy string
	// ShowZombies starts the process tab restricted to zombie processes.
	ShowZombies bool
	// ShowKernelThreads includes kernel threads in the process tab.
	ShowKernelThreads bool
	// ConfirmKill asks before queueing a kill.
	ConfirmKill bool
	// ExportDir is where the e key writes exports.
	ExportDir string
	// ExportFormat is json or csv.
	ExportFormat string
}

// Model is the top-level Bubbletea model for the proc-pulse dashboard.
type Model struct {
	eng  engineClient
	opts Options

	snap *engine.Snapshot

	activeTab Tab
	width     int
	height    int
	ready     bool

	help  help.Model
	theme ThemePreset

	// Process tab state.
	sortBy      string
	filter      string
	filterMode  bool
	treeMode    bool
	zombiesOnly bool
	showKernel  bool
	selected    int
	selectedPID int32
	scrollTop   int

	// Kill confirmation dialog. Zero confirmPID means no dialog.
	confirmPID  int32
	confirmName string

	// killPending is a pid whose kill outcome we are waiting to see in
	// the snapshot op log.
	killPending int32
	killSince   time.Time

	toast      string
	toastErr   bool
	toastTicks int

	lastUpdated time.Time
}

// NewModel returns an initialized Model reading from the given engine.
func NewModel(eng *engine.Engine, opts Options) Model {
	return newModel(eng, opts)
}

func newModel(eng engineClient, opts Options) Model {
	theme := GetThemePreset(opts.Theme)
	ApplyTheme(theme)

	sortBy := opts.SortBy
	if sortBy == "" {
		sortBy = "cpu"
	}
	format := opts.ExportFormat
	if format == "" {
		format = "json"
	}
	opts.ExportFormat = format

	m := Model{
		eng:         eng,
		opts:        opts,
		snap:        eng.Snapshot(),
		activeTab:   TabOverview,
		help:        help.New(),
		theme:       theme,
		sortBy:      sortBy,
		filter:      opts.Filter,
		zombiesOnly: opts.ShowZombies,
		showKernel:  opts.ShowKernelThreads,
	}
	m.clampSelection()
	return m
}

// Run starts the interactive dashboard and blocks until the user quits or
// ctx is canceled.
func Run(ctx context.Context, eng *engine.Engine, opts Options) error {
	zone.NewGlobal()
	p := tea.NewProgram(NewModel(eng, opts),
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
		tea.WithContext(ctx),
	)
	_, err := p.Run()
	return err
}

// Init implements tea.Model. It subscribes to engine updates.
func (m Model) Init() tea.Cmd {
	return waitForUpdate(m.eng)
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.MouseMsg:
		return m.handleMouse(msg)

	case snapshotMsg:
		m.snap = msg.snap
		m.lastUpdated = time.Now()
		if m.toastTicks > 0 {
			m.toastTicks--
			if m.toastTicks == 0 {
				m.toast = ""
			}
		}
		m.resolveKill()
		m.clampSelection()
		return m, waitForUpdate(m.eng)

	case exportDoneMsg:
		if msg.err != nil {
			m.setToast(fmt.Sprintf("export failed: %v", msg.err), true)
		} else {
			m.setToast("exported "+msg.path, false)
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		m.ready = true
	}

	return m, nil
}

// handleKey routes a key press. The filter prompt and the kill dialog
// capture keys before the global bindings.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.filterMode {
		return m.handleFilterKey(msg)
	}
	if m.confirmPID != 0 {
		return m.handleConfirmKey(msg)
	}

	switch {
	case key.Matches(msg, keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, keys.NextTab):
		m.switchTab((m.activeTab + 1) % tabCount)
	case key.Matches(msg, keys.PrevTab):
		m.switchTab((m.activeTab - 1 + tabCount) % tabCount)
	case key.Matches(msg, keys.Tab1):
		m.switchTab(TabOverview)
	case key.Matches(msg, keys.Tab2):
		m.switchTab(TabProcesses)
	case key.Matches(msg, keys.Tab3):
		m.switchTab(TabNetwork)
	case key.Matches(msg, keys.Tab4):
		m.switchTab(TabDisks)
	case key.Matches(msg, keys.Tab5):
		m.switchTab(TabDomains)

	case key.Matches(msg, keys.ScrollUp):
		m.moveCursor(-1)
	case key.Matches(msg, keys.ScrollDown):
		m.moveCursor(1)
	case key.Matches(msg, keys.PageUp):
		m.moveCursor(-m.pageSize())
	case key.Matches(msg, keys.PageDown):
		m.moveCursor(m.pageSize())
	case key.Matches(msg, keys.GoTop):
		m.moveCursorTo(0)
	case key.Matches(msg, keys.GoBottom):
		m.moveCursorTo(1 << 30)

	case key.Matches(msg, keys.SortCPU):
		m.setSort("cpu")
	case key.Matches(msg, keys.SortMem):
		m.setSort("mem")
	case key.Matches(msg, keys.SortPID):
		m.setSort("pid")
	case key.Matches(msg, keys.SortName):
		m.setSort("name")

	case key.Matches(msg, keys.Tree):
		m.treeMode = !m.treeMode
		m.clampSelection()
	case key.Matches(msg, keys.Zombies):
		m.zombiesOnly = !m.zombiesOnly
		m.clampSelection()
	case key.Matches(msg, keys.Filter):
		m.activeTab = TabProcesses
		m.filterMode = true

	case key.Matches(msg, keys.Kill):
		return m.killSelected()

	case key.Matches(msg, keys.Export):
		if m.snap == nil {
			m.setToast("no snapshot to export", true)
			return m, nil
		}
		return m, exportSnapshot(m.snap, m.opts.ExportDir, m.opts.ExportFormat)

	case key.Matches(msg, keys.Theme):
		m.theme = NextThemePreset(m.theme.Name)
		ApplyTheme(m.theme)
		m.setToast("theme: "+m.theme.Name, false)

	case key.Matches(msg, keys.Help):
		m.help.ShowAll = !m.help.ShowAll

	case key.Matches(msg, keys.Refresh):
		m.eng.Refresh()
	}

	return m, nil
}

// handleFilterKey edits the live process filter.
func (m Model) handleFilterKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyCtrlC:
		return m, tea.Quit
	case tea.KeyEnter:
		m.filterMode = false
	case tea.KeyEsc:
		m.filterMode = false
		m.filter = ""
	case tea.KeyBackspace:
		if r := []rune(m.filter); len(r) > 0 {
			m.filter = string(r[:len(r)-1])
		}
	case tea.KeySpace:
		m.filter += " "
	case tea.KeyRunes:
		m.filter += string(msg.Runes)
	}
	m.clampSelection()
	return m, nil
}

// handleConfirmKey answers the kill confirmation dialog.
func (m Model) handleConfirmKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "y", "Y":
		pid, name := m.confirmPID, m.confirmName
		m.confirmPID, m.confirmName = 0, ""
		return m.requestKill(pid, name)
	case "n", "N", "esc", "q":
		m.confirmPID, m.confirmName = 0, ""
	case "ctrl+c":
		return m, tea.Quit
	}
	return m, nil
}

// handleMouse lets a left click on the tab bar switch tabs.
func (m Model) handleMouse(msg tea.MouseMsg) (tea.Model, tea.Cmd) {
	if msg.Action != tea.MouseActionRelease || msg.Button != tea.MouseButtonLeft {
		return m, nil
	}
	for i := Tab(0); i < tabCount; i++ {
		if zone.Get(tabZoneID(i)).InBounds(msg) {
			m.switchTab(i)
			break
		}
	}
	return m, nil
}

// killSelected starts a kill for the process under the cursor, going
// through the confirmation dialog when configured.
func (m Model) killSelected() (tea.Model, tea.Cmd) {
	if m.activeTab != TabProcesses {
		return m, nil
	}
	rows := m.processRows()
	if len(rows) == 0 || m.selected >= len(rows) {
		return m, nil
	}
	row := rows[m.selected]
	if row.PID == int32(os.Getpid()) {
		m.setToast("refusing to kill own process", true)
		return m, nil
	}
	if m.opts.ConfirmKill {
		m.confirmPID = row.PID
		m.confirmName = row.Sample.Name
		return m, nil
	}
	return m.requestKill(row.PID, row.Sample.Name)
}

// requestKill queues a kill with the engine and arms op-log tracking so
// the outcome lands in the toast once the worker reports back.
func (m Model) requestKill(pid int32, name string) (tea.Model, tea.Cmd) {
	if err := m.eng.RequestKill(pid); err != nil {
		m.setToast(fmt.Sprintf("kill %d: %v", pid, err), true)
		return m, nil
	}
	m.killPending = pid
	m.killSince = time.Now()
	m.setToast(fmt.Sprintf("kill requested: %d (%s)", pid, name), false)
	return m, nil
}

// resolveKill scans the snapshot op log for the outcome of a pending kill.
func (m *Model) resolveKill() {
	if m.killPending == 0 || m.snap == nil {
		return
	}
	for i := len(m.snap.Ops) - 1; i >= 0; i-- {
		op := m.snap.Ops[i]
		if op.Op != "kill" || op.PID != m.killPending || op.At.Before(m.killSince) {
			continue
		}
		if op.OK {
			m.setToast(fmt.Sprintf("killed %d", op.PID), false)
		} else {
			m.setToast(fmt.Sprintf("kill %d failed: %s", op.PID, op.Err), true)
		}
		m.killPending = 0
		return
	}
}

func (m *Model) switchTab(t Tab) {
	if m.activeTab == t {
		return
	}
	m.activeTab = t
	m.scrollTop = 0
	m.clampSelection()
}

func (m *Model) setSort(by string) {
	m.activeTab = TabProcesses
	m.sortBy = by
	m.clampSelection()
}

func (m *Model) setToast(text string, isErr bool) {
	m.toast = text
	m.toastErr = isErr
	m.toastTicks = 3
}

// moveCursor moves the process cursor on the process tab and scrolls
// content elsewhere.
func (m *Model) moveCursor(delta int) {
	if m.activeTab == TabProcesses {
		rows := m.processRows()
		if len(rows) == 0 {
			return
		}
		m.selected += delta
		if m.selected < 0 {
			m.selected = 0
		}
		if m.selected >= len(rows) {
			m.selected = len(rows) - 1
		}
		m.selectedPID = rows[m.selected].PID
		m.ensureVisible(len(rows))
		return
	}

	m.scrollTop += delta
	if max := m.maxScroll(); m.scrollTop > max {
		m.scrollTop = max
	}
	if m.scrollTop < 0 {
		m.scrollTop = 0
	}
}

func (m *Model) moveCursorTo(pos int) {
	if m.activeTab == TabProcesses {
		m.selected = pos
		m.clampSelectedOnly()
		return
	}
	m.scrollTop = pos
	if max := m.maxScroll(); m.scrollTop > max {
		m.scrollTop = max
	}
	if m.scrollTop < 0 {
		m.scrollTop = 0
	}
}

func (m *Model) clampSelectedOnly() {
	rows := m.processRows()
	if len(rows) == 0 {
		m.selected = 0
		m.selectedPID = 0
		return
	}
	if m.selected >= len(rows) {
		m.selected = len(rows) - 1
	}
	if m.selected < 0 {
		m.selected = 0
	}
	m.selectedPID = rows[m.selected].PID
	m.ensureVisible(len(rows))
}

// clampSelection re-anchors the cursor after the row set changed. The
// selection follows the pid when it is still visible, and otherwise stays
// at the same index.
func (m *Model) clampSelection() {
	rows := m.processRows()
	if len(rows) == 0 {
		m.selected = 0
		m.selectedPID = 0
		m.scrollTop = 0
		return
	}
	if m.selectedPID != 0 {
		for i, r := range rows {
			if r.PID == m.selectedPID {
				m.selected = i
				m.ensureVisible(len(rows))
				return
			}
		}
	}
	if m.selected >= len(rows) {
		m.selected = len(rows) - 1
	}
	if m.selected < 0 {
		m.selected = 0
	}
	m.selectedPID = rows[m.selected].PID
	m.ensureVisible(len(rows))
}

// ensureVisible keeps the selected row inside the table window.
func (m *Model) ensureVisible(rowCount int) {
	visible := m.procVisibleRows()
	if m.selected < m.scrollTop {
		m.scrollTop = m.selected
	}
	if m.selected >= m.scrollTop+visible {
		m.scrollTop = m.selected - visible + 1
	}
	if maxTop := rowCount - visible; m.scrollTop > maxTop {
		m.scrollTop = maxTop
	}
	if m.scrollTop < 0 {
		m.scrollTop = 0
	}
}

// pageSize is one page of rows or lines for pgup and pgdown.
func (m Model) pageSize() int {
	if m.activeTab == TabProcesses {
		return m.procVisibleRows()
	}
	return m.contentHeight()
}

// contentHeight is the vertical space left for tab content after the
// header and footer.
func (m Model) contentHeight() int {
	h := m.height - 6
	if h < 1 {
		h = 1
	}
	return h
}

// maxScroll is how far non-process content can scroll down.
func (m Model) maxScroll() int {
	lines := strings.Count(m.renderActiveContent(), "\n") + 1
	max := lines - m.contentHeight()
	if max < 0 {
		max = 0
	}
	return max
}

// View implements tea.Model. It renders the header, active tab content,
// and footer. The whole frame passes through the zone scanner so mouse
// hits can be resolved.
func (m Model) View() string {
	if !m.ready {
		return "Initializing..."
	}

	if m.confirmPID != 0 {
		return zone.Scan(m.renderConfirmDialog())
	}

	header := m.renderHeader()
	content := m.renderTabContent()
	footer := m.renderFooter()

	return zone.Scan(lipgloss.JoinVertical(lipgloss.Left, header, content, footer))
}

func tabZoneID(t Tab) string {
	return fmt.Sprintf("tab-%d", int(t))
}

// renderHeader renders the tab bar with the active tab highlighted and the
// overall health on the right.
func (m Model) renderHeader() string {
	var tabs []string
	for i := Tab(0); i < tabCount; i++ {
		name := tabNames[i]
		var cell string
		if i == m.activeTab {
			cell = styleActiveTab.Render(name)
		} else {
			cell = styleInactiveTab.Render(name)
		}
		tabs = append(tabs, zone.Mark(tabZoneID(i), cell))
	}

	tabBar := lipgloss.JoinHorizontal(lipgloss.Top, tabs...)

	health := ""
	if m.snap != nil {
		health = widgets.RenderStatusFromString(m.snap.Health.Overall.String())
		if m.snap.Degraded {
			health = styleToastError.Render("degraded") + " " + health
		}
	}

	gap := m.width - lipgloss.Width(tabBar) - lipgloss.Width(health) - 1
	if gap < 1 {
		gap = 1
	}
	bar := tabBar + strings.Repeat(" ", gap) + health

	return styleHeader.Width(m.width).Render(bar)
}

// renderActiveContent renders the active tab's raw content before
// scrolling and padding.
func (m Model) renderActiveContent() string {
	h := m.contentHeight()
	switch m.activeTab {
	case TabOverview:
		return renderOverviewContent(m.snap, m.width, h)
	case TabProcesses:
		return m.renderProcessesContent(m.width, h)
	case TabNetwork:
		return renderNetworkContent(m.snap, m.width, h)
	case TabDisks:
		return renderDiskContent(m.snap, m.width, h)
	case TabDomains:
		return renderDomainsContent(m.snap, m.width, h)
	default:
		return ""
	}
}

// renderTabContent renders the active tab clipped to the content window.
func (m Model) renderTabContent() string {
	content := m.renderActiveContent()
	if m.activeTab != TabProcesses {
		content = clipLines(content, m.scrollTop, m.contentHeight())
	}
	return styleContent.Width(m.width).Render(content)
}

// renderFooter renders the keybinding help, the toast if one is live, and
// the last update timestamp.
func (m Model) renderFooter() string {
	left := m.help.View(keys)

	right := ""
	switch {
	case m.toast != "" && m.toastErr:
		right = styleToastError.Render(m.toast)
	case m.toast != "":
		right = styleToast.Render(m.toast)
	case !m.lastUpdated.IsZero():
		right = fmt.Sprintf("Updated: %s", m.lastUpdated.Format("15:04:05"))
	}

	if right == "" {
		return styleFooter.Width(m.width).Render(left)
	}

	gap := m.width - lipgloss.Width(left) - lipgloss.Width(right) - 1
	if gap < 1 {
		// Not enough room for both: the toast wins.
		return styleFooter.Width(m.width).Render(right)
	}
	return styleFooter.Width(m.width).Render(left + strings.Repeat(" ", gap) + right)
}

// renderConfirmDialog renders the kill confirmation as a centered box.
func (m Model) renderConfirmDialog() string {
	body := fmt.Sprintf("Kill process %d (%s)?\n\nTERM first, KILL after grace.\n\n[y] confirm    [n] cancel",
		m.confirmPID, m.confirmName)
	box := styleDialog.Render(body)
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, box)
}

// clipLines returns at most height lines starting at top. An out of range
// top clamps to the last page rather than going blank.
func clipLines(s string, top, height int) string {
	lines := strings.Split(s, "\n")
	if height >= len(lines) {
		return s
	}
	maxTop := len(lines) - height
	if top > maxTop {
		top = maxTop
	}
	if top < 0 {
		top = 0
	}
	return strings.Join(lines[top:top+height], "\n")
}

package tui

import (
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	zone "github.com/lrstanley/bubblezone"

	"gitlab.com/tinyland/lab/proc-pulse/anomaly"
	"gitlab.com/tinyland/lab/proc-pulse/collectors"
	"gitlab.com/tinyland/lab/proc-pulse/engine"
	"gitlab.com/tinyland/lab/proc-pulse/history"
	"gitlab.com/tinyland/lab/proc-pulse/proctree"
	"gitlab.com/tinyland/lab/proc-pulse/sampler"
	"gitlab.com/tinyland/lab/proc-pulse/status"
)

// TestMain initializes the global zone manager that View depends on.
func TestMain(m *testing.M) {
	zone.NewGlobal()
	os.Exit(m.Run())
}

// fakeEngine is a scripted engineClient for model tests.
type fakeEngine struct {
	snap      *engine.Snapshot
	updates   chan struct{}
	refreshed int
	killed    []int32
	killErr   error
}

func newFakeEngine(snap *engine.Snapshot) *fakeEngine {
	return &fakeEngine{snap: snap, updates: make(chan struct{}, 4)}
}

func (f *fakeEngine) Snapshot() *engine.Snapshot    { return f.snap }
func (f *fakeEngine) Updates() <-chan struct{}      { return f.updates }
func (f *fakeEngine) Refresh()                      { f.refreshed++ }
func (f *fakeEngine) RequestKill(pid int32) error {
	if f.killErr != nil {
		return f.killErr
	}
	f.killed = append(f.killed, pid)
	return nil
}

// testSnapshot builds a snapshot with a small but complete process set: an
// init-like root, a busy server, a zombie and a heavy database under it.
func testSnapshot() *engine.Snapshot {
	now := time.Now()

	procs := []sampler.ProcessSample{
		{PID: 1, PPID: 0, PPIDKnown: true, Name: "init", User: "root",
			Status: sampler.StatusSleeping, CPUPercent: 0.1, CPUValid: true,
			RSS: 4 << 20, MemPercent: 0.1, MemValid: true, Threads: 1},
		{PID: 100, PPID: 1, PPIDKnown: true, Name: "nginx", User: "www",
			Cmdline: "nginx -g daemon off", Status: sampler.StatusRunning,
			CPUPercent: 40.0, CPUValid: true, RSS: 64 << 20, MemPercent: 1.5,
			MemValid: true, Threads: 4},
		{PID: 200, PPID: 100, PPIDKnown: true, Name: "worker", User: "www",
			Status: sampler.StatusZombie, CPUValid: true, RSS: 0, MemValid: true},
		{PID: 300, PPID: 1, PPIDKnown: true, Name: "postgres", User: "pg",
			Cmdline: "postgres -D /var/lib/pg", Status: sampler.StatusSleeping,
			CPUPercent: 5.0, CPUValid: true, RSS: 512 << 20, MemPercent: 12.0,
			MemValid: true, Threads: 8},
	}

	store := history.NewStore(64)
	for i := 0; i < 5; i++ {
		store.Append("cpu.total", history.Point{T: now.Add(time.Duration(i) * time.Second), V: float64(20 + i*5)})
	}

	return &engine.Snapshot{
		Tick:    7,
		TakenAt: now,
		System: sampler.SystemMetrics{
			CPU:  sampler.CPUMetrics{Sampled: true, TotalPercent: 42.0, Cores: 4, PerCore: []float64{40, 44, 41, 43}},
			Mem:  sampler.MemoryMetrics{Sampled: true, Total: 16 << 30, Used: 8 << 30, UsedPercent: 50.0},
			Load: sampler.LoadMetrics{Sampled: true, Load1: 1.2, Load5: 1.0, Load15: 0.8},
			Net: sampler.NetMetrics{Sampled: true, RatesValid: true,
				TotalRxRate: 1024, TotalTxRate: 2048,
				Interfaces: []sampler.NetInterface{{Name: "eth0", RxBytes: 1 << 30, TxBytes: 2 << 30, RxRate: 1024, TxRate: 2048}}},
			Disk: sampler.DiskMetrics{Sampled: true, IOValid: true, RatesValid: true,
				ReadRate: 4096, WriteRate: 8192,
				Volumes: []sampler.DiskVolume{{Device: "/dev/sda1", Mount: "/", Fstype: "ext4", Total: 100 << 30, Used: 40 << 30, UsedPercent: 40.0}}},
			Host: sampler.HostMetrics{Sampled: true, Hostname: "testhost", Platform: "linux", UptimeSec: 3600},
		},
		Processes: procs,
		Forest:    proctree.Build(procs),
		History:   store.View(),
		Anomalies: []anomaly.Event{
			{Key: "cpu.total", Kind: anomaly.KindSpike, Severity: anomaly.SeverityHigh,
				Value: 95, Mean: 40, At: now, Message: "cpu.total spiked to 95.0"},
		},
		Domains: map[string]collectors.DomainSummary{
			"database": {Domain: "database", Status: collectors.StatusOK,
				Metrics: map[string]float64{"connections": 12}, CollectedAt: now},
		},
		Health: status.SystemStatus{
			Overall: status.LevelHealthy,
			Components: []status.ComponentStatus{
				{Component: "cpu", Level: status.LevelHealthy, Reason: "cpu at 42%"},
			},
			EvaluatedAt: now,
		},
	}
}

func testModel() Model {
	return newModel(newFakeEngine(testSnapshot()), Options{})
}

// sized returns a model that has seen a window size, so View renders fully.
func sized(m Model, w, h int) Model {
	updated, _ := m.Update(tea.WindowSizeMsg{Width: w, Height: h})
	return updated.(Model)
}

func keyRunes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

// isQuitCmd executes a tea.Cmd and returns true if it produces a tea.QuitMsg.
func isQuitCmd(cmd tea.Cmd) bool {
	if cmd == nil {
		return false
	}
	msg := cmd()
	_, ok := msg.(tea.QuitMsg)
	return ok
}

func TestNewModel_Defaults(t *testing.T) {
	m := testModel()

	if m.activeTab != TabOverview {
		t.Errorf("expected activeTab to be TabOverview, got %d", m.activeTab)
	}
	if m.sortBy != "cpu" {
		t.Errorf("expected default sort cpu, got %q", m.sortBy)
	}
	if m.opts.ExportFormat != "json" {
		t.Errorf("expected default export format json, got %q", m.opts.ExportFormat)
	}
	if m.ready {
		t.Error("expected ready to be false before the first WindowSizeMsg")
	}
	if m.snap == nil {
		t.Error("expected the model to start from the engine's current snapshot")
	}
}

func TestNewModel_OptionsApplied(t *testing.T) {
	m := newModel(newFakeEngine(testSnapshot()), Options{
		SortBy:      "mem",
		Filter:      "ngin",
		ShowZombies: true,
	})

	if m.sortBy != "mem" {
		t.Errorf("expected sort mem, got %q", m.sortBy)
	}
	if m.filter != "ngin" {
		t.Errorf("expected filter %q, got %q", "ngin", m.filter)
	}
	if !m.zombiesOnly {
		t.Error("expected zombiesOnly from ShowZombies option")
	}
}

func TestModel_Init_SubscribesToUpdates(t *testing.T) {
	eng := newFakeEngine(testSnapshot())
	m := newModel(eng, Options{})

	cmd := m.Init()
	if cmd == nil {
		t.Fatal("expected Init to return a command")
	}

	eng.updates <- struct{}{}
	msg := cmd()
	sm, ok := msg.(snapshotMsg)
	if !ok {
		t.Fatalf("expected snapshotMsg, got %T", msg)
	}
	if sm.snap != eng.snap {
		t.Error("expected the command to deliver the engine's snapshot")
	}
}

func TestModel_Update_Quit(t *testing.T) {
	m := testModel()
	_, cmd := m.Update(keyRunes("q"))

	if !isQuitCmd(cmd) {
		t.Error("expected 'q' key to produce tea.Quit command")
	}
}

func TestModel_Update_CtrlC(t *testing.T) {
	m := testModel()
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})

	if !isQuitCmd(cmd) {
		t.Error("expected ctrl+c to produce tea.Quit command")
	}
}

func TestModel_Update_NextTab(t *testing.T) {
	m := testModel()

	expected := []Tab{TabProcesses, TabNetwork, TabDisks, TabDomains, TabOverview}
	for i, want := range expected {
		updated, _ := m.Update(tea.KeyMsg{Type: tea.KeyTab})
		m = updated.(Model)
		if m.activeTab != want {
			t.Errorf("tab press %d: expected tab %d, got %d", i+1, want, m.activeTab)
		}
	}
}

func TestModel_Update_PrevTab(t *testing.T) {
	m := testModel()

	// Overview wraps backward to Domains.
	updated, _ := m.Update(tea.KeyMsg{Type: tea.KeyShiftTab})
	m = updated.(Model)
	if m.activeTab != TabDomains {
		t.Errorf("expected TabDomains after shift+tab from Overview, got %d", m.activeTab)
	}

	updated, _ = m.Update(tea.KeyMsg{Type: tea.KeyShiftTab})
	m = updated.(Model)
	if m.activeTab != TabDisks {
		t.Errorf("expected TabDisks after second shift+tab, got %d", m.activeTab)
	}
}

func TestModel_Update_DirectTab(t *testing.T) {
	tests := []struct {
		key      string
		expected Tab
	}{
		{"1", TabOverview},
		{"2", TabProcesses},
		{"3", TabNetwork},
		{"4", TabDisks},
		{"5", TabDomains},
	}

	for _, tt := range tests {
		m := testModel()
		// Start from a different tab to ensure the jump works.
		m.activeTab = TabDisks
		if tt.expected == TabDisks {
			m.activeTab = TabOverview
		}

		updated, _ := m.Update(keyRunes(tt.key))
		m = updated.(Model)
		if m.activeTab != tt.expected {
			t.Errorf("pressing %q: expected tab %d, got %d", tt.key, tt.expected, m.activeTab)
		}
	}
}

func TestModel_Update_WindowSize(t *testing.T) {
	m := testModel()

	if m.ready {
		t.Fatal("expected ready to be false before WindowSizeMsg")
	}

	updated, _ := m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	m = updated.(Model)

	if !m.ready {
		t.Error("expected ready to be true after WindowSizeMsg")
	}
	if m.width != 120 {
		t.Errorf("expected width 120, got %d", m.width)
	}
	if m.height != 40 {
		t.Errorf("expected height 40, got %d", m.height)
	}
}

func TestModel_Update_SnapshotResubscribes(t *testing.T) {
	eng := newFakeEngine(testSnapshot())
	m := newModel(eng, Options{})

	next := testSnapshot()
	next.Tick = 8
	updated, cmd := m.Update(snapshotMsg{snap: next})
	m = updated.(Model)

	if m.snap != next {
		t.Error("expected snapshotMsg to replace the model's snapshot")
	}
	if m.lastUpdated.IsZero() {
		t.Error("expected lastUpdated to be set")
	}
	if cmd == nil {
		t.Error("expected a re-subscribe command after snapshotMsg")
	}
}

func TestModel_Update_ToastExpiresAfterTicks(t *testing.T) {
	m := testModel()
	m.setToast("hello", false)

	for i := 0; i < 3; i++ {
		if m.toast == "" {
			t.Fatalf("toast cleared too early, after %d snapshots", i)
		}
		updated, _ := m.Update(snapshotMsg{snap: testSnapshot()})
		m = updated.(Model)
	}
	if m.toast != "" {
		t.Errorf("expected toast cleared after 3 snapshots, still %q", m.toast)
	}
}

func TestModel_Update_SortKeys(t *testing.T) {
	tests := []struct {
		key  string
		want string
	}{
		{"c", "cpu"},
		{"m", "mem"},
		{"p", "pid"},
		{"n", "name"},
	}

	for _, tt := range tests {
		m := testModel()
		m.sortBy = ""

		updated, _ := m.Update(keyRunes(tt.key))
		m = updated.(Model)
		if m.sortBy != tt.want {
			t.Errorf("pressing %q: expected sort %q, got %q", tt.key, tt.want, m.sortBy)
		}
		if m.activeTab != TabProcesses {
			t.Errorf("pressing %q: expected jump to the process tab", tt.key)
		}
	}
}

func TestModel_Update_TreeAndZombieToggles(t *testing.T) {
	m := testModel()

	updated, _ := m.Update(keyRunes("t"))
	m = updated.(Model)
	if !m.treeMode {
		t.Error("expected 't' to enable tree mode")
	}

	updated, _ = m.Update(keyRunes("t"))
	m = updated.(Model)
	if m.treeMode {
		t.Error("expected 't' again to disable tree mode")
	}

	updated, _ = m.Update(keyRunes("z"))
	m = updated.(Model)
	if !m.zombiesOnly {
		t.Error("expected 'z' to enable the zombie filter")
	}
}

func TestModel_Update_Refresh(t *testing.T) {
	eng := newFakeEngine(testSnapshot())
	m := newModel(eng, Options{})

	updated, _ := m.Update(keyRunes("r"))
	_ = updated.(Model)

	if eng.refreshed != 1 {
		t.Errorf("expected one Refresh call, got %d", eng.refreshed)
	}
}

func TestModel_Update_HelpToggle(t *testing.T) {
	m := testModel()

	updated, _ := m.Update(keyRunes("?"))
	m = updated.(Model)
	if !m.help.ShowAll {
		t.Error("expected '?' to expand help")
	}

	updated, _ = m.Update(keyRunes("?"))
	m = updated.(Model)
	if m.help.ShowAll {
		t.Error("expected '?' again to collapse help")
	}
}

func TestModel_Update_ThemeCycle(t *testing.T) {
	m := testModel()
	defer ApplyTheme(DefaultTheme)

	if m.theme.Name != "default" {
		t.Fatalf("expected to start on the default theme, got %q", m.theme.Name)
	}

	updated, _ := m.Update(keyRunes("T"))
	m = updated.(Model)
	if m.theme.Name != "dark" {
		t.Errorf("expected 'T' to advance to the dark theme, got %q", m.theme.Name)
	}
	if !strings.Contains(m.toast, "dark") {
		t.Errorf("expected a theme toast, got %q", m.toast)
	}
}

func TestModel_FilterMode_Lifecycle(t *testing.T) {
	m := testModel()

	updated, _ := m.Update(keyRunes("/"))
	m = updated.(Model)
	if !m.filterMode {
		t.Fatal("expected '/' to enter filter mode")
	}
	if m.activeTab != TabProcesses {
		t.Error("expected '/' to jump to the process tab")
	}

	// Typed runes accumulate, including keys bound elsewhere.
	for _, r := range "ngx" {
		updated, _ = m.Update(keyRunes(string(r)))
		m = updated.(Model)
	}
	if m.filter != "ngx" {
		t.Errorf("expected filter %q, got %q", "ngx", m.filter)
	}

	updated, _ = m.Update(tea.KeyMsg{Type: tea.KeyBackspace})
	m = updated.(Model)
	if m.filter != "ng" {
		t.Errorf("expected backspace to drop one rune, got %q", m.filter)
	}

	updated, _ = m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = updated.(Model)
	if m.filterMode {
		t.Error("expected enter to leave filter mode")
	}
	if m.filter != "ng" {
		t.Errorf("expected enter to keep the filter, got %q", m.filter)
	}

	// Esc from inside filter mode clears it.
	updated, _ = m.Update(keyRunes("/"))
	m = updated.(Model)
	updated, _ = m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	m = updated.(Model)
	if m.filterMode || m.filter != "" {
		t.Errorf("expected esc to leave filter mode and clear the text, got mode=%v filter=%q", m.filterMode, m.filter)
	}
}

func TestModel_FilterMode_SpaceAndQuit(t *testing.T) {
	m := testModel()
	updated, _ := m.Update(keyRunes("/"))
	m = updated.(Model)

	updated, _ = m.Update(keyRunes("a"))
	m = updated.(Model)
	updated, _ = m.Update(tea.KeyMsg{Type: tea.KeySpace})
	m = updated.(Model)
	if m.filter != "a " {
		t.Errorf("expected space to append, got %q", m.filter)
	}

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	if !isQuitCmd(cmd) {
		t.Error("expected ctrl+c to quit even in filter mode")
	}
}

func TestModel_ProcessRows_SortModes(t *testing.T) {
	m := testModel()

	m.sortBy = "cpu"
	rows := m.processRows()
	if len(rows) != 4 {
		t.Fatalf("expected 4 rows, got %d", len(rows))
	}
	if rows[0].PID != 100 {
		t.Errorf("cpu sort: expected nginx (pid 100) first, got %d", rows[0].PID)
	}

	m.sortBy = "mem"
	rows = m.processRows()
	if rows[0].PID != 300 {
		t.Errorf("mem sort: expected postgres (pid 300) first, got %d", rows[0].PID)
	}

	m.sortBy = "pid"
	rows = m.processRows()
	if rows[0].PID != 1 || rows[3].PID != 300 {
		t.Errorf("pid sort: expected ascending pids, got %d..%d", rows[0].PID, rows[3].PID)
	}

	m.sortBy = "name"
	rows = m.processRows()
	if rows[0].Sample.Name != "init" {
		t.Errorf("name sort: expected init first, got %q", rows[0].Sample.Name)
	}
}

func TestModel_ProcessRows_Filter(t *testing.T) {
	m := testModel()

	m.filter = "NGINX"
	rows := m.processRows()
	if len(rows) != 1 || rows[0].PID != 100 {
		t.Errorf("expected the filter to match nginx case-insensitively, got %+v", rows)
	}

	// The filter also matches command lines and pids.
	m.filter = "var/lib"
	rows = m.processRows()
	if len(rows) != 1 || rows[0].PID != 300 {
		t.Errorf("expected a cmdline match for postgres, got %+v", rows)
	}

	m.filter = "300"
	rows = m.processRows()
	if len(rows) != 1 || rows[0].PID != 300 {
		t.Errorf("expected a pid match, got %+v", rows)
	}
}

func TestModel_ProcessRows_ZombiesOnly(t *testing.T) {
	m := testModel()
	m.zombiesOnly = true

	rows := m.processRows()
	if len(rows) != 1 {
		t.Fatalf("expected 1 zombie, got %d", len(rows))
	}
	if rows[0].PID != 200 {
		t.Errorf("expected the worker zombie, got pid %d", rows[0].PID)
	}
}

func TestModel_ProcessRows_TreeOrder(t *testing.T) {
	m := testModel()
	m.treeMode = true

	rows := m.processRows()
	if len(rows) != 4 {
		t.Fatalf("expected 4 rows, got %d", len(rows))
	}
	// Depth-first from init: children in pid order, worker under nginx.
	pids := []int32{rows[0].PID, rows[1].PID, rows[2].PID, rows[3].PID}
	want := []int32{1, 100, 200, 300}
	for i := range want {
		if pids[i] != want[i] {
			t.Fatalf("tree order = %v, want %v", pids, want)
		}
	}
	if rows[1].Depth != 1 || rows[2].Depth != 2 {
		t.Errorf("expected depths 1 and 2 for nginx and worker, got %d and %d", rows[1].Depth, rows[2].Depth)
	}
}

func TestModel_CursorMovement(t *testing.T) {
	m := sized(testModel(), 100, 30)
	m.activeTab = TabProcesses

	updated, _ := m.Update(keyRunes("j"))
	m = updated.(Model)
	if m.selected != 1 {
		t.Errorf("expected cursor at 1 after j, got %d", m.selected)
	}

	updated, _ = m.Update(keyRunes("k"))
	m = updated.(Model)
	if m.selected != 0 {
		t.Errorf("expected cursor back at 0 after k, got %d", m.selected)
	}

	// G to bottom, g back to top.
	updated, _ = m.Update(keyRunes("G"))
	m = updated.(Model)
	if m.selected != 3 {
		t.Errorf("expected cursor at 3 after G, got %d", m.selected)
	}

	updated, _ = m.Update(keyRunes("g"))
	m = updated.(Model)
	if m.selected != 0 {
		t.Errorf("expected cursor at 0 after g, got %d", m.selected)
	}

	// Moving past the ends clamps.
	updated, _ = m.Update(keyRunes("k"))
	m = updated.(Model)
	if m.selected != 0 {
		t.Errorf("expected cursor clamped at 0, got %d", m.selected)
	}
}

func TestModel_SelectionFollowsPID(t *testing.T) {
	m := sized(testModel(), 100, 30)
	m.activeTab = TabProcesses

	// Select postgres under cpu sort (init 1, nginx 100, postgres 300, worker 200).
	m.sortBy = "cpu"
	updated, _ := m.Update(keyRunes("j"))
	m = updated.(Model)
	updated, _ = m.Update(keyRunes("j"))
	m = updated.(Model)
	picked := m.selectedPID

	// Re-sorting keeps the same process selected at its new index.
	updated, _ = m.Update(keyRunes("p"))
	m = updated.(Model)
	if m.selectedPID != picked {
		t.Errorf("expected selection to follow pid %d across sorts, got %d", picked, m.selectedPID)
	}
	rows := m.processRows()
	if rows[m.selected].PID != picked {
		t.Errorf("expected cursor index to track pid %d, got pid %d", picked, rows[m.selected].PID)
	}
}

func TestModel_Kill_RequiresProcessTab(t *testing.T) {
	eng := newFakeEngine(testSnapshot())
	m := newModel(eng, Options{})
	m.activeTab = TabOverview

	updated, _ := m.Update(keyRunes("x"))
	m = updated.(Model)

	if len(eng.killed) != 0 {
		t.Errorf("expected no kill from the overview tab, got %v", eng.killed)
	}
}

func TestModel_Kill_Direct(t *testing.T) {
	eng := newFakeEngine(testSnapshot())
	m := newModel(eng, Options{})
	m.activeTab = TabProcesses

	// Cursor starts on nginx under the default cpu sort.
	updated, _ := m.Update(keyRunes("x"))
	m = updated.(Model)

	if len(eng.killed) != 1 || eng.killed[0] != 100 {
		t.Fatalf("expected kill request for pid 100, got %v", eng.killed)
	}
	if m.killPending != 100 {
		t.Errorf("expected killPending 100, got %d", m.killPending)
	}
	if !strings.Contains(m.toast, "kill requested") {
		t.Errorf("expected a kill toast, got %q", m.toast)
	}
}

func TestModel_Kill_ConfirmFlow(t *testing.T) {
	eng := newFakeEngine(testSnapshot())
	m := newModel(eng, Options{ConfirmKill: true})
	m.activeTab = TabProcesses

	updated, _ := m.Update(keyRunes("x"))
	m = updated.(Model)

	if m.confirmPID != 100 {
		t.Fatalf("expected the dialog armed for pid 100, got %d", m.confirmPID)
	}
	if len(eng.killed) != 0 {
		t.Fatal("expected no kill before confirmation")
	}

	updated, _ = m.Update(keyRunes("y"))
	m = updated.(Model)

	if m.confirmPID != 0 {
		t.Error("expected the dialog dismissed after y")
	}
	if len(eng.killed) != 1 || eng.killed[0] != 100 {
		t.Errorf("expected kill request for pid 100 after confirm, got %v", eng.killed)
	}
}

func TestModel_Kill_ConfirmCancel(t *testing.T) {
	eng := newFakeEngine(testSnapshot())
	m := newModel(eng, Options{ConfirmKill: true})
	m.activeTab = TabProcesses

	updated, _ := m.Update(keyRunes("x"))
	m = updated.(Model)
	updated, _ = m.Update(keyRunes("n"))
	m = updated.(Model)

	if m.confirmPID != 0 {
		t.Error("expected the dialog dismissed after n")
	}
	if len(eng.killed) != 0 {
		t.Errorf("expected no kill after cancel, got %v", eng.killed)
	}
}

func TestModel_Kill_RefusesOwnProcess(t *testing.T) {
	snap := testSnapshot()
	self := sampler.ProcessSample{PID: int32(os.Getpid()), Name: "procpulse",
		Status: sampler.StatusRunning, CPUPercent: 99.0, CPUValid: true, MemValid: true}
	snap.Processes = append(snap.Processes, self)

	eng := newFakeEngine(snap)
	m := newModel(eng, Options{})
	m.activeTab = TabProcesses
	// Highest CPU, so the cursor starts on it under the default sort.

	updated, _ := m.Update(keyRunes("x"))
	m = updated.(Model)

	if len(eng.killed) != 0 {
		t.Errorf("expected no kill request for our own pid, got %v", eng.killed)
	}
	if !strings.Contains(m.toast, "refusing") {
		t.Errorf("expected a refusal toast, got %q", m.toast)
	}
}

func TestModel_Kill_EngineError(t *testing.T) {
	eng := newFakeEngine(testSnapshot())
	eng.killErr = errors.New("queue full")
	m := newModel(eng, Options{})
	m.activeTab = TabProcesses

	updated, _ := m.Update(keyRunes("x"))
	m = updated.(Model)

	if m.killPending != 0 {
		t.Error("expected no pending kill after an engine error")
	}
	if !m.toastErr || !strings.Contains(m.toast, "queue full") {
		t.Errorf("expected an error toast with the cause, got %q", m.toast)
	}
}

func TestModel_Kill_OutcomeFromOps(t *testing.T) {
	eng := newFakeEngine(testSnapshot())
	m := newModel(eng, Options{})
	m.activeTab = TabProcesses

	updated, _ := m.Update(keyRunes("x"))
	m = updated.(Model)
	if m.killPending != 100 {
		t.Fatalf("expected killPending 100, got %d", m.killPending)
	}

	// The next snapshot carries the op outcome.
	next := testSnapshot()
	next.Ops = []engine.OpResult{
		{Op: "kill", PID: 100, OK: true, At: time.Now().Add(time.Second)},
	}
	updated, _ = m.Update(snapshotMsg{snap: next})
	m = updated.(Model)

	if m.killPending != 0 {
		t.Error("expected the pending kill resolved")
	}
	if !strings.Contains(m.toast, "killed 100") {
		t.Errorf("expected a success toast, got %q", m.toast)
	}
}

func TestModel_Kill_FailureFromOps(t *testing.T) {
	eng := newFakeEngine(testSnapshot())
	m := newModel(eng, Options{})
	m.activeTab = TabProcesses

	updated, _ := m.Update(keyRunes("x"))
	m = updated.(Model)

	next := testSnapshot()
	next.Ops = []engine.OpResult{
		{Op: "kill", PID: 100, OK: false, Err: "operation not permitted", At: time.Now().Add(time.Second)},
	}
	updated, _ = m.Update(snapshotMsg{snap: next})
	m = updated.(Model)

	if m.killPending != 0 {
		t.Error("expected the pending kill resolved")
	}
	if !m.toastErr || !strings.Contains(m.toast, "not permitted") {
		t.Errorf("expected a failure toast, got %q", m.toast)
	}
}

func TestModel_Export_ProducesFile(t *testing.T) {
	dir := t.TempDir()
	eng := newFakeEngine(testSnapshot())
	m := newModel(eng, Options{ExportDir: dir})

	updated, cmd := m.Update(keyRunes("e"))
	m = updated.(Model)
	if cmd == nil {
		t.Fatal("expected an export command")
	}

	msg := cmd()
	done, ok := msg.(exportDoneMsg)
	if !ok {
		t.Fatalf("expected exportDoneMsg, got %T", msg)
	}
	if done.err != nil {
		t.Fatalf("export failed: %v", done.err)
	}
	if _, err := os.Stat(done.path); err != nil {
		t.Fatalf("expected the export file on disk: %v", err)
	}

	updated, _ = m.Update(done)
	m = updated.(Model)
	if !strings.Contains(m.toast, "exported") {
		t.Errorf("expected an export toast, got %q", m.toast)
	}
}

func TestModel_Export_NoSnapshot(t *testing.T) {
	eng := newFakeEngine(nil)
	m := newModel(eng, Options{})

	updated, cmd := m.Update(keyRunes("e"))
	m = updated.(Model)

	if cmd != nil {
		t.Error("expected no export command without a snapshot")
	}
	if !m.toastErr {
		t.Error("expected an error toast without a snapshot")
	}
}

func TestModel_View_NotReady(t *testing.T) {
	m := testModel()
	view := m.View()

	if view != "Initializing..." {
		t.Errorf("expected 'Initializing...' when not ready, got %q", view)
	}
}

func TestModel_View_Ready(t *testing.T) {
	m := sized(testModel(), 100, 30)

	view := m.View()

	for _, name := range []string{"Overview", "Processes", "Network", "Disks", "Domains"} {
		if !strings.Contains(view, name) {
			t.Errorf("expected view to contain tab name %q", name)
		}
	}
	if !strings.Contains(view, "quit") {
		t.Error("expected view to contain help text")
	}
}

func TestModel_View_AllTabsRender(t *testing.T) {
	m := sized(testModel(), 100, 30)

	for tab := Tab(0); tab < tabCount; tab++ {
		m.activeTab = tab
		view := m.View()
		if view == "" {
			t.Errorf("tab %d rendered empty", tab)
		}
	}
}

func TestModel_View_ConfirmDialog(t *testing.T) {
	m := sized(testModel(), 100, 30)
	m.confirmPID = 100
	m.confirmName = "nginx"

	view := m.View()
	if !strings.Contains(view, "Kill process 100 (nginx)?") {
		t.Errorf("expected the confirm dialog, got %q", view)
	}
}

func TestModel_Mouse_IgnoresNonRelease(t *testing.T) {
	m := sized(testModel(), 100, 30)
	before := m.activeTab

	updated, _ := m.Update(tea.MouseMsg{
		Action: tea.MouseActionPress,
		Button: tea.MouseButtonLeft,
	})
	m = updated.(Model)

	if m.activeTab != before {
		t.Error("expected press events to be ignored")
	}
}

func TestClipLines(t *testing.T) {
	s := "a\nb\nc\nd\ne"

	if got := clipLines(s, 0, 10); got != s {
		t.Errorf("expected full text when it fits, got %q", got)
	}
	if got := clipLines(s, 1, 2); got != "b\nc" {
		t.Errorf("expected middle window, got %q", got)
	}
	// Out of range top clamps to the last page.
	if got := clipLines(s, 99, 2); got != "d\ne" {
		t.Errorf("expected last page for a too-large top, got %q", got)
	}
}

func TestTabZoneID(t *testing.T) {
	seen := map[string]bool{}
	for tab := Tab(0); tab < tabCount; tab++ {
		id := tabZoneID(tab)
		if seen[id] {
			t.Errorf("duplicate zone id %q", id)
		}
		seen[id] = true
	}
}

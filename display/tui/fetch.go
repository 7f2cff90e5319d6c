package tui

import (
	"path/filepath"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"gitlab.com/tinyland/lab/proc-pulse/engine"
	"gitlab.com/tinyland/lab/proc-pulse/export"
)

// snapshotMsg carries a fresh engine snapshot into the model.
type snapshotMsg struct {
	snap *engine.Snapshot
}

// exportDoneMsg reports the outcome of a snapshot export.
type exportDoneMsg struct {
	path string
	err  error
}

// waitForUpdate returns a tea.Cmd that blocks on the engine's update
// channel and resolves to the snapshot published for that tick. Update
// re-issues it after every snapshotMsg, which keeps exactly one waiter
// alive for the life of the program.
func waitForUpdate(eng engineClient) tea.Cmd {
	return func() tea.Msg {
		<-eng.Updates()
		return snapshotMsg{snap: eng.Snapshot()}
	}
}

// exportSnapshot returns a tea.Cmd that writes the snapshot to a
// timestamped file in dir. Runs as a command so file I/O never blocks the
// render loop.
func exportSnapshot(snap *engine.Snapshot, dir, format string) tea.Cmd {
	return func() tea.Msg {
		path := filepath.Join(dir, export.Filename(format, time.Now()))
		if err := export.WriteFile(path, format, snap); err != nil {
			return exportDoneMsg{path: path, err: err}
		}
		return exportDoneMsg{path: path}
	}
}

// Package export writes point-in-time snapshots to JSON and CSV files.
// The in-memory history rings and the process tree never serialize; an
// export is a flat document a spreadsheet or jq can work with directly.
package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"gitlab.com/tinyland/lab/proc-pulse/engine"
	"gitlab.com/tinyland/lab/proc-pulse/history"
)

// Supported export formats.
const (
	FormatJSON = "json"
	FormatCSV  = "csv"
)

// Filename returns the default export file name for a format.
func Filename(format string, at time.Time) string {
	return fmt.Sprintf("procpulse_export_%s.%s", at.Format("20060102_150405"), format)
}

// document wraps a snapshot with the export timestamp for the JSON
// form. Snapshot fields marked json:"-" stay out of the document.
type document struct {
	ExportedAt time.Time `json:"exported_at"`
	*engine.Snapshot
}

// WriteJSON writes the snapshot as an indented JSON document.
func WriteJSON(w io.Writer, snap *engine.Snapshot) error {
	if snap == nil {
		return fmt.Errorf("export: nil snapshot")
	}
	doc := document{ExportedAt: time.Now().UTC(), Snapshot: snap}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("export: encode snapshot: %w", err)
	}
	data = append(data, '\n')
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("export: write document: %w", err)
	}
	return nil
}

// historyColumns is the fixed layout of the history table appended to
// CSV exports, one ring key per column.
var historyColumns = []struct {
	header string
	key    string
	prec   int
}{
	{"CPU Usage (%)", "cpu.total", 2},
	{"Memory Used (bytes)", "mem.used", 0},
	{"Memory Usage (%)", "mem.used_percent", 2},
	{"Network RX (bytes/s)", "net.rx_rate", 2},
	{"Network TX (bytes/s)", "net.tx_rate", 2},
	{"Disk Read (bytes/s)", "disk.read_rate", 2},
	{"Disk Write (bytes/s)", "disk.write_rate", 2},
	{"Load Average (1m)", "load.1", 2},
	{"Process Count", "proc.count", 0},
}

// WriteCSV writes the snapshot as CSV: a host block, current metric
// rows, and a history table when the snapshot carries one.
func WriteCSV(w io.Writer, snap *engine.Snapshot) error {
	if snap == nil {
		return fmt.Errorf("export: nil snapshot")
	}

	cw := csv.NewWriter(w)
	sys := snap.System
	host := sys.Host

	var rxBytes, txBytes uint64
	for _, ifc := range sys.Net.Interfaces {
		rxBytes += ifc.RxBytes
		txBytes += ifc.TxBytes
	}

	records := [][]string{
		{"Field", "Value"},
		{"Export Time", time.Now().UTC().Format(time.RFC3339)},
		{"Snapshot Time", snap.TakenAt.UTC().Format(time.RFC3339)},
		{"Hostname", host.Hostname},
		{"Platform", host.Platform},
		{"Kernel Version", host.KernelVersion},
		{"", ""},
		{"Metric", "Value"},
		{"CPU Usage (%)", strconv.FormatFloat(sys.CPU.TotalPercent, 'f', 2, 64)},
		{"Memory Usage (%)", strconv.FormatFloat(sys.Mem.UsedPercent, 'f', 2, 64)},
		{"Memory Used (bytes)", strconv.FormatUint(sys.Mem.Used, 10)},
		{"Memory Total (bytes)", strconv.FormatUint(sys.Mem.Total, 10)},
		{"Swap Usage (%)", strconv.FormatFloat(sys.Mem.SwapPercent, 'f', 2, 64)},
		{"Network RX (bytes)", strconv.FormatUint(rxBytes, 10)},
		{"Network TX (bytes)", strconv.FormatUint(txBytes, 10)},
		{"Process Count", strconv.Itoa(len(snap.Processes))},
		{"Load Average (1m)", strconv.FormatFloat(sys.Load.Load1, 'f', 2, 64)},
		{"Load Average (5m)", strconv.FormatFloat(sys.Load.Load5, 'f', 2, 64)},
		{"Load Average (15m)", strconv.FormatFloat(sys.Load.Load15, 'f', 2, 64)},
		{"Uptime (seconds)", strconv.FormatUint(host.UptimeSec, 10)},
	}
	for _, rec := range records {
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("export: write csv: %w", err)
		}
	}

	if snap.History != nil {
		if err := cw.Write([]string{"", ""}); err != nil {
			return fmt.Errorf("export: write csv: %w", err)
		}
		if err := writeHistoryTable(cw, snap.History); err != nil {
			return err
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("export: write csv: %w", err)
	}
	return nil
}

// writeHistoryTable joins the system rings on their timestamps, one row
// per tick. Keys missing a tick (swap on swapless hosts, rates on the
// first poll) leave their cell empty.
func writeHistoryTable(cw *csv.Writer, view *history.View) error {
	byTS := make(map[int64]map[string]float64)
	var order []int64
	for _, col := range historyColumns {
		for _, p := range view.Query(col.key, history.Range{}) {
			ts := p.T.UnixNano()
			row, ok := byTS[ts]
			if !ok {
				row = make(map[string]float64, len(historyColumns))
				byTS[ts] = row
				order = append(order, ts)
			}
			row[col.key] = p.V
		}
	}
	sort.Slice(order, func(i, j int) bool { return order[i] < order[j] })

	header := make([]string, 0, len(historyColumns)+1)
	header = append(header, "Timestamp")
	for _, col := range historyColumns {
		header = append(header, col.header)
	}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("export: write csv: %w", err)
	}

	for _, ts := range order {
		row := byTS[ts]
		rec := make([]string, 0, len(header))
		rec = append(rec, time.Unix(0, ts).UTC().Format(time.RFC3339))
		for _, col := range historyColumns {
			v, ok := row[col.key]
			if !ok {
				rec = append(rec, "")
				continue
			}
			rec = append(rec, strconv.FormatFloat(v, 'f', col.prec, 64))
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("export: write csv: %w", err)
		}
	}
	return nil
}

// WriteHistoryCSV writes raw ring contents, one row per point. An empty
// key list exports every key in the view.
func WriteHistoryCSV(w io.Writer, view *history.View, keys []string, r history.Range) error {
	if view == nil {
		return fmt.Errorf("export: nil history view")
	}
	if len(keys) == 0 {
		keys = view.Keys()
	}

	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"key", "timestamp", "value"}); err != nil {
		return fmt.Errorf("export: write csv: %w", err)
	}
	for _, key := range keys {
		for _, p := range view.Query(key, r) {
			rec := []string{key, p.T.UTC().Format(time.RFC3339), strconv.FormatFloat(p.V, 'f', -1, 64)}
			if err := cw.Write(rec); err != nil {
				return fmt.Errorf("export: write csv: %w", err)
			}
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("export: write csv: %w", err)
	}
	return nil
}

// WriteFile renders the snapshot in the given format and writes it to
// path atomically.
func WriteFile(path, format string, snap *engine.Snapshot) error {
	var buf bytes.Buffer
	switch format {
	case FormatJSON:
		if err := WriteJSON(&buf, snap); err != nil {
			return err
		}
	case FormatCSV:
		if err := WriteCSV(&buf, snap); err != nil {
			return err
		}
	default:
		return fmt.Errorf("export: unsupported format %q", format)
	}
	return writeAtomic(path, buf.Bytes())
}

// writeAtomic writes data through a temp file in the target directory
// and renames it into place.
func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".tmp-export-*")
	if err != nil {
		return fmt.Errorf("export: create temp file: %w", err)
	}
	success := false
	defer func() {
		if !success {
			os.Remove(tmp.Name())
		}
	}()
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("export: chmod temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("export: write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("export: close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("export: rename into place: %w", err)
	}
	success = true
	return nil
}

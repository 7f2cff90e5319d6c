package security

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time {
	return c.t
}

func (c *fakeClock) advance(d time.Duration) {
	c.t = c.t.Add(d)
}

func testCollector(procs []procInfo) (*Collector, *fakeClock) {
	clock := &fakeClock{t: time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)}
	c := New(Config{}, nil)
	c.listProcesses = func(ctx context.Context) ([]procInfo, error) {
		return procs, nil
	}
	c.now = clock.now
	return c, clock
}

func TestScoreProcess(t *testing.T) {
	byPID := map[int32]procInfo{
		1:   {PID: 1, Name: "systemd", User: "root"},
		100: {PID: 100, PPID: 1, Name: "bash", User: "alice"},
	}

	tests := []struct {
		name string
		proc procInfo
		want int
	}{
		{
			name: "plain user process",
			proc: procInfo{PID: 200, PPID: 100, Name: "vim", User: "alice", Cmdline: "vim notes.txt"},
			want: 0,
		},
		{
			name: "recon tool",
			proc: procInfo{PID: 201, PPID: 100, Name: "nmap", User: "alice", Cmdline: "nmap 10.0.0.0/24"},
			want: scoreSuspiciousName,
		},
		{
			name: "root recon tool",
			proc: procInfo{PID: 202, PPID: 100, Name: "nc", User: "root", Cmdline: "nc -l 4444"},
			want: scoreSuspiciousName + scoreRoot,
		},
		{
			name: "orphan with high cpu",
			proc: procInfo{PID: 203, PPID: 4242, Name: "worker", User: "alice", CPU: 95},
			want: scoreHighCPU + scoreOrphan,
		},
		{
			name: "many flags",
			proc: procInfo{PID: 204, PPID: 100, Name: "curl", User: "alice",
				Cmdline: "curl -s -k -L -X POST -H auth -d data http://x"},
			want: scoreManyFlags,
		},
		{
			name: "init child is not an orphan",
			proc: procInfo{PID: 205, PPID: 1, Name: "cron", User: "root"},
			want: scoreRoot,
		},
	}

	c, _ := testCollector(nil)
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, _ := c.scoreProcess(tc.proc, byPID)
			if got != tc.want {
				t.Errorf("scoreProcess(%s) = %d, want %d", tc.proc.Name, got, tc.want)
			}
		})
	}
}

func TestCollect_MediumBandAlert(t *testing.T) {
	// nc as root, orphan, six flags: 20+10+15+10 = 55, inside the medium band.
	procs := []procInfo{
		{PID: 300, PPID: 9999, Name: "nc", User: "root",
			Cmdline: "nc -l -v -n -k -w 5 -p 4444"},
	}
	c, _ := testCollector(procs)

	summary, err := c.Collect(context.Background())
	if err != nil {
		t.Fatalf("Collect() error = %v", err)
	}
	if len(summary.Alerts) != 1 {
		t.Fatalf("alerts = %d, want 1", len(summary.Alerts))
	}
	alert := summary.Alerts[0]
	if alert.Severity != "medium" {
		t.Errorf("alert severity = %q, want %q", alert.Severity, "medium")
	}
	if !strings.Contains(alert.Message, "score 55") {
		t.Errorf("alert message %q should carry the score", alert.Message)
	}
	if !strings.Contains(alert.Message, "recon tool name") {
		t.Errorf("alert message %q should list the factors", alert.Message)
	}
	if got := summary.Metrics["suspicious"]; got != 1 {
		t.Errorf("suspicious = %v, want 1", got)
	}
}

func TestCollect_HighBandAlert(t *testing.T) {
	// Recon name, memory growth, root, orphan, flags: 20+25+10+15+10 = 80.
	procs := []procInfo{
		{PID: 300, PPID: 9999, Name: "nc", User: "root",
			Cmdline: "nc -l -v -n -k -w 5 -p 4444", RSS: 300 << 20},
	}
	c, _ := testCollector(procs)
	c.rssHistory[300] = []uint64{10 << 20, 50 << 20, 120 << 20, 200 << 20}

	summary, err := c.Collect(context.Background())
	if err != nil {
		t.Fatalf("Collect() error = %v", err)
	}
	if len(summary.Alerts) != 1 {
		t.Fatalf("alerts = %d, want 1", len(summary.Alerts))
	}
	if summary.Alerts[0].Severity != "high" {
		t.Errorf("alert severity = %q, want %q", summary.Alerts[0].Severity, "high")
	}
}

func TestCollect_DedupSuppressesRepeatAlerts(t *testing.T) {
	procs := []procInfo{
		{PID: 300, PPID: 9999, Name: "nc", User: "root",
			Cmdline: "nc -l -v -n -k -w 5 -p 4444"},
	}
	c, clock := testCollector(procs)

	summary, err := c.Collect(context.Background())
	if err != nil {
		t.Fatalf("first Collect() error = %v", err)
	}
	if len(summary.Alerts) != 1 {
		t.Fatalf("first run alerts = %d, want 1", len(summary.Alerts))
	}

	clock.advance(15 * time.Second)
	summary, err = c.Collect(context.Background())
	if err != nil {
		t.Fatalf("second Collect() error = %v", err)
	}
	if len(summary.Alerts) != 0 {
		t.Errorf("second run re-alerted inside the dedup window: %v", summary.Alerts)
	}
	if got := summary.Metrics["suspicious"]; got != 1 {
		t.Errorf("suspicious = %v, want 1 even when the alert is deduplicated", got)
	}

	clock.advance(6 * time.Minute)
	summary, err = c.Collect(context.Background())
	if err != nil {
		t.Fatalf("third Collect() error = %v", err)
	}
	if len(summary.Alerts) != 1 {
		t.Errorf("third run alerts = %d, want 1 after the window passed", len(summary.Alerts))
	}
}

func TestCollect_EscalationAlert(t *testing.T) {
	procs := []procInfo{
		{PID: 100, PPID: 1, Name: "bash", User: "alice"},
		{PID: 200, PPID: 100, Name: "perl", User: "root", Cmdline: "perl exploit.pl"},
	}
	c, _ := testCollector(procs)

	summary, err := c.Collect(context.Background())
	if err != nil {
		t.Fatalf("Collect() error = %v", err)
	}
	if got := summary.Metrics["escalations"]; got != 1 {
		t.Errorf("escalations = %v, want 1", got)
	}
	if len(summary.Alerts) != 1 {
		t.Fatalf("alerts = %d, want 1", len(summary.Alerts))
	}
	alert := summary.Alerts[0]
	if alert.Severity != "high" {
		t.Errorf("alert severity = %q, want %q", alert.Severity, "high")
	}
	if !strings.Contains(alert.Message, "alice") {
		t.Errorf("alert message %q should name the parent user", alert.Message)
	}
}

func TestIsEscalation(t *testing.T) {
	alice := procInfo{PID: 100, Name: "bash", User: "alice"}
	tests := []struct {
		name   string
		child  procInfo
		parent procInfo
		want   bool
	}{
		{"user to root", procInfo{Name: "perl", User: "root"}, alice, true},
		{"root to root", procInfo{Name: "perl", User: "root"}, procInfo{Name: "systemd", User: "root"}, false},
		{"user to user", procInfo{Name: "perl", User: "alice"}, alice, false},
		{"via sudo child", procInfo{Name: "sudo", User: "root"}, alice, false},
		{"under sudo parent", procInfo{Name: "apt", User: "root"}, procInfo{Name: "sudo", User: "alice"}, false},
		{"unknown parent user", procInfo{Name: "perl", User: "root"}, procInfo{Name: "kthreadd"}, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := isEscalation(tc.child, tc.parent); got != tc.want {
				t.Errorf("isEscalation() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestHasMemoryGrowth(t *testing.T) {
	c, _ := testCollector(nil)

	c.rssHistory[1] = []uint64{10 << 20, 20 << 20, 100 << 20, 300 << 20}
	if !c.hasMemoryGrowth(1) {
		t.Error("30x growth over the floor should register")
	}

	c.rssHistory[2] = []uint64{100 << 20, 100 << 20, 110 << 20, 120 << 20}
	if c.hasMemoryGrowth(2) {
		t.Error("mild growth should not register")
	}

	c.rssHistory[3] = []uint64{1 << 20, 3 << 20}
	if c.hasMemoryGrowth(3) {
		t.Error("too few samples should not register")
	}

	c.rssHistory[4] = []uint64{1 << 10, 2 << 10, 3 << 10, 4 << 10}
	if c.hasMemoryGrowth(4) {
		t.Error("doubling below the floor should not register")
	}
}

func TestUpdateRSSHistory_PrunesDeadPIDs(t *testing.T) {
	c, _ := testCollector(nil)
	c.rssHistory[42] = []uint64{1, 2, 3}

	c.updateRSSHistory([]procInfo{{PID: 7, RSS: 100}})

	if _, ok := c.rssHistory[42]; ok {
		t.Error("history for a vanished pid should be pruned")
	}
	if got := len(c.rssHistory[7]); got != 1 {
		t.Errorf("history length for live pid = %d, want 1", got)
	}
}

func TestCountFlags(t *testing.T) {
	tests := []struct {
		cmdline string
		want    int
	}{
		{"", 0},
		{"vim notes.txt", 0},
		{"nc -l -p 4444", 2},
		{"curl -s -k -L --retry 3 -o out", 5},
	}

	for _, tc := range tests {
		if got := countFlags(tc.cmdline); got != tc.want {
			t.Errorf("countFlags(%q) = %d, want %d", tc.cmdline, got, tc.want)
		}
	}
}

func TestCollect_ExtraNames(t *testing.T) {
	clock := &fakeClock{t: time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)}
	c := New(Config{ExtraNames: []string{"cryptominer"}}, nil)
	c.now = clock.now
	c.listProcesses = func(ctx context.Context) ([]procInfo, error) {
		return []procInfo{
			{PID: 500, PPID: 9999, Name: "cryptominer", User: "root", CPU: 99},
		}, nil
	}

	// Extra name, high cpu, root, orphan: 20+15+10+15 = 60.
	summary, err := c.Collect(context.Background())
	if err != nil {
		t.Fatalf("Collect() error = %v", err)
	}
	if len(summary.Alerts) != 1 {
		t.Fatalf("alerts = %d, want 1", len(summary.Alerts))
	}
	if !strings.Contains(summary.Alerts[0].Message, "cryptominer") {
		t.Errorf("alert message %q should name the process", summary.Alerts[0].Message)
	}
}

func TestCollect_ScanFailure(t *testing.T) {
	c, _ := testCollector(nil)
	c.listProcesses = func(ctx context.Context) ([]procInfo, error) {
		return nil, errors.New("proc unavailable")
	}

	if _, err := c.Collect(context.Background()); err == nil {
		t.Fatal("Collect() expected error when the process table is unreadable")
	}
}

func TestCollect_CancelledContext(t *testing.T) {
	c, _ := testCollector(nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := c.Collect(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Collect() error = %v, want context.Canceled", err)
	}
}

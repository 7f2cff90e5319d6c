package report

import (
	"strings"
	"testing"
	"time"

	"gitlab.com/tinyland/lab/proc-pulse/anomaly"
	"gitlab.com/tinyland/lab/proc-pulse/collectors"
	"gitlab.com/tinyland/lab/proc-pulse/engine"
	"gitlab.com/tinyland/lab/proc-pulse/sampler"
	"gitlab.com/tinyland/lab/proc-pulse/status"
)

// testSnapshot returns a fully sampled snapshot with a healthy status.
func testSnapshot() *engine.Snapshot {
	return &engine.Snapshot{
		Tick:    7,
		TakenAt: time.Date(2026, 3, 14, 10, 30, 0, 0, time.UTC),
		System: sampler.SystemMetrics{
			CPU: sampler.CPUMetrics{
				Sampled:      true,
				TotalPercent: 42.0,
				Cores:        4,
			},
			Mem: sampler.MemoryMetrics{
				Sampled:     true,
				Total:       16 << 30,
				Used:        8 << 30,
				UsedPercent: 50.0,
			},
			Load: sampler.LoadMetrics{
				Sampled: true,
				Load1:   1.2,
				Load5:   1.0,
				Load15:  0.8,
			},
			Net: sampler.NetMetrics{
				Sampled:     true,
				RatesValid:  true,
				TotalRxRate: 1024,
				TotalTxRate: 2048,
			},
			Disk: sampler.DiskMetrics{
				Sampled:    true,
				IOValid:    true,
				RatesValid: true,
				ReadRate:   4096,
				WriteRate:  8192,
				Volumes: []sampler.DiskVolume{
					{Device: "/dev/sda1", Mount: "/", Fstype: "ext4",
						Total: 100 << 30, Used: 40 << 30, UsedPercent: 40.0},
				},
			},
			Host: sampler.HostMetrics{
				Sampled:   true,
				Hostname:  "testhost",
				Platform:  "linux",
				UptimeSec: 3600,
			},
		},
		Processes: []sampler.ProcessSample{
			{PID: 1, Name: "initd", User: "root", Status: sampler.StatusSleeping,
				CPUPercent: 0.1, CPUValid: true, RSS: 4 << 20, MemPercent: 0.1, MemValid: true},
			{PID: 100, Name: "nginx", User: "www", Cmdline: "nginx -g daemon off",
				Status: sampler.StatusRunning, CPUPercent: 40.0, CPUValid: true,
				RSS: 64 << 20, MemPercent: 1.5, MemValid: true},
			{PID: 300, Name: "postgres", User: "pg", Cmdline: "postgres -D /var/lib/pg",
				Status: sampler.StatusSleeping, CPUPercent: 5.0, CPUValid: true,
				RSS: 512 << 20, MemPercent: 12.0, MemValid: true},
		},
		Health: status.SystemStatus{Overall: status.LevelHealthy},
	}
}

func TestRender_NilSnapshot(t *testing.T) {
	got := Render(nil, DefaultOptions())
	if got != "no snapshot available\n" {
		t.Errorf("Render(nil) = %q", got)
	}
}

func TestRender_Sections(t *testing.T) {
	out := Render(testSnapshot(), Options{Width: 80, TopProcesses: 10})

	for _, want := range []string{"proc-pulse", "System", "Top Processes", "Alerts", "healthy"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected report to contain %q", want)
		}
	}
}

func TestRender_Headline(t *testing.T) {
	out := Render(testSnapshot(), Options{Width: 80})

	first := strings.SplitN(out, "\n", 2)[0]
	if !strings.Contains(first, "proc-pulse") {
		t.Errorf("expected headline to name the tool, got %q", first)
	}
	if !strings.Contains(first, "2026-03-14 10:30:00") {
		t.Errorf("expected headline to carry the sample time, got %q", first)
	}
	if !strings.Contains(first, "healthy") {
		t.Errorf("expected headline to carry the health level, got %q", first)
	}
}

func TestRender_SystemContent(t *testing.T) {
	out := Render(testSnapshot(), Options{Width: 80})

	checks := []string{
		"testhost · linux · up 1h 0m",
		"42.0%",
		"of 4 cores",
		"8.0G / 16G",
		"1.20 1.00 0.80",
		"rx 1.0K/s · tx 2.0K/s",
		"r 4.0K/s · w 8.0K/s",
		"/ 40.0% used of 100G",
	}
	for _, want := range checks {
		if !strings.Contains(out, want) {
			t.Errorf("expected system section to contain %q", want)
		}
	}
}

func TestRender_ProcessTable(t *testing.T) {
	out := Render(testSnapshot(), Options{Width: 80})

	for _, want := range []string{"PID", "USER", "COMMAND", "nginx -g daemon off", "postgres -D /var/lib/pg"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected process table to contain %q", want)
		}
	}

	// Highest CPU first.
	nginxIdx := strings.Index(out, "nginx")
	pgIdx := strings.Index(out, "postgres")
	if nginxIdx == -1 || pgIdx == -1 || nginxIdx > pgIdx {
		t.Errorf("expected nginx row before postgres row")
	}
}

func TestRender_TopNLimit(t *testing.T) {
	out := Render(testSnapshot(), Options{Width: 80, TopProcesses: 2})

	if !strings.Contains(out, "nginx") || !strings.Contains(out, "postgres") {
		t.Error("expected the two highest-CPU processes to remain")
	}
	if strings.Contains(out, "initd") {
		t.Error("expected the lowest-CPU process to be cut")
	}
}

func TestRender_LineWidths(t *testing.T) {
	out := Render(testSnapshot(), Options{Width: 80})

	for _, line := range strings.Split(out, "\n") {
		if line == "" || !strings.ContainsAny(line, "╭│╰") {
			continue
		}
		if got := visibleLen(line); got != 80 {
			t.Errorf("box line width = %d, want 80: %q", got, line)
		}
	}
}

func TestRender_UnsampledSections(t *testing.T) {
	snap := &engine.Snapshot{
		Health: status.SystemStatus{Overall: status.LevelUnknown},
	}

	out := Render(snap, Options{Width: 80})

	if !strings.Contains(out, "cpu    unavailable") {
		t.Error("expected cpu line to say unavailable")
	}
	if !strings.Contains(out, "mem    unavailable") {
		t.Error("expected mem line to say unavailable")
	}
	if !strings.Contains(out, "no processes sampled") {
		t.Error("expected empty process table note")
	}
}

func TestRender_RatesPending(t *testing.T) {
	snap := testSnapshot()
	snap.System.Net.RatesValid = false
	snap.System.Disk.RatesValid = false

	out := Render(snap, Options{Width: 80})

	if !strings.Contains(out, "measuring...") {
		t.Error("expected pending rates to render as measuring")
	}
}

func TestRender_SwapOnlyWhenConfigured(t *testing.T) {
	out := Render(testSnapshot(), Options{Width: 80})
	if strings.Contains(out, "swap") {
		t.Error("expected no swap line without swap configured")
	}

	snap := testSnapshot()
	snap.System.Mem.SwapTotal = 2 << 30
	snap.System.Mem.SwapUsed = 512 << 20
	snap.System.Mem.SwapPercent = 25.0

	out = Render(snap, Options{Width: 80})
	if !strings.Contains(out, "swap") || !strings.Contains(out, "512M / 2.0G") {
		t.Error("expected swap line with swap configured")
	}
}

func TestRender_Alerts(t *testing.T) {
	snap := testSnapshot()
	snap.Degraded = true
	snap.Err = "poll timed out"
	snap.System.Warnings = []string{"net: permission denied"}
	snap.Anomalies = []anomaly.Event{
		{Key: "cpu.total", Kind: anomaly.KindSpike, Severity: anomaly.SeverityHigh,
			Message: "cpu.total spiked to 95.0"},
	}
	snap.Health = status.SystemStatus{
		Overall: status.LevelWarning,
		Components: []status.ComponentStatus{
			{Component: "cpu", Level: status.LevelWarning, Reason: "cpu at 85%"},
			{Component: "memory", Level: status.LevelHealthy, Reason: "memory at 50%"},
		},
	}
	snap.Domains = map[string]collectors.DomainSummary{
		"security": {
			Domain: "security",
			Status: collectors.StatusOK,
			Alerts: []collectors.Alert{
				{Severity: collectors.SeverityCritical, Message: "3 failed root logins"},
			},
		},
		"backup": {
			Domain: "backup",
			Status: collectors.StatusError,
			Err:    "destination unreachable",
		},
	}

	out := Render(snap, Options{Width: 100})

	checks := []string{
		"sampling degraded: poll timed out",
		"warning: net: permission denied",
		"anomaly high: cpu.total spiked to 95.0",
		"cpu warning: cpu at 85%",
		"security critical: 3 failed root logins",
		"collector backup: destination unreachable",
	}
	for _, want := range checks {
		if !strings.Contains(out, want) {
			t.Errorf("expected alerts to contain %q", want)
		}
	}

	if strings.Contains(out, "memory healthy") {
		t.Error("healthy components should not appear as alerts")
	}
}

func TestRender_NoAlerts(t *testing.T) {
	out := Render(testSnapshot(), Options{Width: 80})

	if !strings.Contains(out, "No active alerts.") {
		t.Error("expected quiet alerts section on a healthy snapshot")
	}
}

func TestRender_InvalidCPUShowsDash(t *testing.T) {
	snap := testSnapshot()
	snap.Processes = []sampler.ProcessSample{
		{PID: 42, Name: "fresh", User: "root", CPUValid: false, MemValid: false},
	}

	out := Render(snap, Options{Width: 80})

	var row string
	for _, line := range strings.Split(out, "\n") {
		if strings.Contains(line, "fresh") {
			row = line
			break
		}
	}
	if row == "" {
		t.Fatal("expected a row for the fresh process")
	}
	if !strings.Contains(row, "-") {
		t.Errorf("expected dash placeholders for invalid readings, got %q", row)
	}
}

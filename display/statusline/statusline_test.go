package statusline

import (
	"strings"
	"testing"

	"gitlab.com/tinyland/lab/proc-pulse/engine"
	"gitlab.com/tinyland/lab/proc-pulse/sampler"
	"gitlab.com/tinyland/lab/proc-pulse/status"
)

// testSnapshot returns a snapshot with every section sampled and a healthy
// overall status.
func testSnapshot() *engine.Snapshot {
	return &engine.Snapshot{
		System: sampler.SystemMetrics{
			CPU: sampler.CPUMetrics{
				Sampled:      true,
				TotalPercent: 12.4,
				Cores:        4,
			},
			Mem: sampler.MemoryMetrics{
				Sampled:     true,
				Total:       16 << 30,
				Used:        8 << 30,
				UsedPercent: 48.2,
				SwapTotal:   2 << 30,
				SwapUsed:    512 << 20,
				SwapPercent: 25.0,
			},
			Load: sampler.LoadMetrics{
				Sampled: true,
				Load1:   1.23,
				Load5:   1.0,
				Load15:  0.8,
			},
			Net: sampler.NetMetrics{
				Sampled:     true,
				RatesValid:  true,
				TotalRxRate: 1024,
				TotalTxRate: 2048,
			},
		},
		Processes: []sampler.ProcessSample{
			{PID: 1, Name: "init"},
			{PID: 100, Name: "nginx"},
			{PID: 300, Name: "postgres"},
		},
		Health: status.SystemStatus{Overall: status.LevelHealthy},
	}
}

func TestLine_Default(t *testing.T) {
	got := Line(testSnapshot())
	want := "cpu 12% · mem 48% · load 1.2 · ● ok"
	if got != want {
		t.Errorf("Line() = %q, want %q", got, want)
	}
}

func TestRender_NilSnapshot(t *testing.T) {
	if got := Render(nil, DefaultOptions()); got != "" {
		t.Errorf("Render(nil) = %q, want empty string", got)
	}
}

func TestRender_WarningBadge(t *testing.T) {
	snap := testSnapshot()
	snap.Health.Overall = status.LevelWarning

	got := Line(snap)
	if !strings.HasSuffix(got, "● warn") {
		t.Errorf("expected warn badge suffix, got %q", got)
	}
}

func TestRender_CriticalBadge(t *testing.T) {
	snap := testSnapshot()
	snap.Health.Overall = status.LevelCritical

	got := Line(snap)
	if !strings.HasSuffix(got, "● crit") {
		t.Errorf("expected crit badge suffix, got %q", got)
	}
}

func TestRender_UnknownBadge(t *testing.T) {
	snap := testSnapshot()
	snap.Health.Overall = status.LevelUnknown

	got := Line(snap)
	if !strings.HasSuffix(got, "○ ?") {
		t.Errorf("expected unknown badge suffix, got %q", got)
	}
}

func TestRender_DegradedSuffix(t *testing.T) {
	snap := testSnapshot()
	snap.Degraded = true

	got := Line(snap)
	if !strings.HasSuffix(got, " ?") {
		t.Errorf("expected degraded suffix, got %q", got)
	}
}

func TestRender_SkipsUnsampledSections(t *testing.T) {
	snap := &engine.Snapshot{
		Health: status.SystemStatus{Overall: status.LevelUnknown},
	}

	got := Line(snap)
	if got != "○ ?" {
		t.Errorf("expected badge only for unsampled snapshot, got %q", got)
	}
}

func TestRender_SwapSegment(t *testing.T) {
	opts := DefaultOptions()
	opts.ShowSwap = true

	got := Render(testSnapshot(), opts)
	if !strings.Contains(got, "swap 25%") {
		t.Errorf("expected swap segment, got %q", got)
	}

	snap := testSnapshot()
	snap.System.Mem.SwapTotal = 0
	got = Render(snap, opts)
	if strings.Contains(got, "swap") {
		t.Errorf("expected no swap segment without swap configured, got %q", got)
	}
}

func TestRender_NetSegments(t *testing.T) {
	opts := DefaultOptions()
	opts.ShowNet = true

	got := Render(testSnapshot(), opts)
	if !strings.Contains(got, "rx 1.0K/s") {
		t.Errorf("expected rx segment, got %q", got)
	}
	if !strings.Contains(got, "tx 2.0K/s") {
		t.Errorf("expected tx segment, got %q", got)
	}

	snap := testSnapshot()
	snap.System.Net.RatesValid = false
	got = Render(snap, opts)
	if strings.Contains(got, "rx ") {
		t.Errorf("expected no rx segment before rates are valid, got %q", got)
	}
}

func TestRender_ProcsSegment(t *testing.T) {
	opts := DefaultOptions()
	opts.ShowProcs = true

	got := Render(testSnapshot(), opts)
	if !strings.Contains(got, "procs 3") {
		t.Errorf("expected procs segment, got %q", got)
	}
}

func TestRender_CustomSeparator(t *testing.T) {
	opts := DefaultOptions()
	opts.Separator = " | "

	got := Render(testSnapshot(), opts)
	if !strings.Contains(got, "cpu 12% | mem 48%") {
		t.Errorf("expected custom separator between segments, got %q", got)
	}
}

func TestRender_NoLoad(t *testing.T) {
	opts := DefaultOptions()
	opts.ShowLoad = false

	got := Render(testSnapshot(), opts)
	if strings.Contains(got, "load") {
		t.Errorf("expected no load segment, got %q", got)
	}
}

func TestDefaultOptions(t *testing.T) {
	opts := DefaultOptions()

	if opts.Separator != " · " {
		t.Errorf("Separator = %q, want %q", opts.Separator, " · ")
	}
	if !opts.ShowLoad {
		t.Error("ShowLoad should be true by default")
	}
	if opts.ShowSwap || opts.ShowNet || opts.ShowProcs {
		t.Error("swap, net, and procs segments should be off by default")
	}
}

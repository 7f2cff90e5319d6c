package backup

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func testCollector(jobs []jobInfo) *Collector {
	c := New(Config{}, nil)
	c.listJobs = func(ctx context.Context) ([]jobInfo, error) {
		return jobs, nil
	}
	c.readCrontab = func(ctx context.Context) ([]byte, error) {
		return nil, errors.New("no crontab")
	}
	c.listUnits = func(ctx context.Context) ([]byte, error) {
		return nil, errors.New("no systemctl")
	}
	return c
}

func TestCollect_RunningJobs(t *testing.T) {
	c := testCollector([]jobInfo{
		{PID: 10, Name: "restic"},
		{PID: 11, Name: "restic"},
		{PID: 20, Name: "rclone"},
		{PID: 30, Name: "nginx"},
	})

	summary, err := c.Collect(context.Background())
	if err != nil {
		t.Fatalf("Collect() error = %v", err)
	}
	if got := summary.Metrics["running_jobs"]; got != 3 {
		t.Errorf("running_jobs = %v, want 3", got)
	}
	if got := summary.Metrics["tools"]; got != 2 {
		t.Errorf("tools = %v, want 2", got)
	}
}

func TestCountCronBackupJobs(t *testing.T) {
	crontab := []byte(`# m h dom mon dow command
0 2 * * * /usr/bin/restic backup /home
# 0 3 * * * /usr/bin/borg create ::daily /etc
30 4 * * 0 rsync -a /var/www /mnt/backup/www
0 5 * * * /usr/local/bin/cleanup-tmp
`)
	if got := countCronBackupJobs(crontab); got != 2 {
		t.Errorf("countCronBackupJobs() = %d, want 2 (comments must not count)", got)
	}
}

func TestCountBackupUnits(t *testing.T) {
	units := []byte(`borg-backup.service        loaded active   running Nightly borg archive
docker.service             loaded active   running Docker Application Container Engine
pg-backup.service          loaded inactive dead    PostgreSQL dump
ssh.service                loaded active   running OpenBSD Secure Shell server
`)
	total, active := countBackupUnits(units)
	if total != 2 {
		t.Errorf("units = %d, want 2", total)
	}
	if active != 1 {
		t.Errorf("active = %d, want 1", active)
	}
}

func TestCollect_ScheduleDiscovery(t *testing.T) {
	c := testCollector(nil)
	c.readCrontab = func(ctx context.Context) ([]byte, error) {
		return []byte("0 2 * * * restic backup /home\n"), nil
	}
	c.listUnits = func(ctx context.Context) ([]byte, error) {
		return []byte("etc-backup.service loaded active running Etc backup\n"), nil
	}

	summary, err := c.Collect(context.Background())
	if err != nil {
		t.Fatalf("Collect() error = %v", err)
	}
	if got := summary.Metrics["cron_jobs"]; got != 1 {
		t.Errorf("cron_jobs = %v, want 1", got)
	}
	if got := summary.Metrics["systemd_units"]; got != 1 {
		t.Errorf("systemd_units = %v, want 1", got)
	}
	if got := summary.Metrics["systemd_active"]; got != 1 {
		t.Errorf("systemd_active = %v, want 1", got)
	}
	if len(summary.Alerts) != 0 {
		t.Errorf("unexpected alerts: %v", summary.Alerts)
	}
}

func TestCollect_NothingConfiguredAlert(t *testing.T) {
	c := testCollector(nil)

	summary, err := c.Collect(context.Background())
	if err != nil {
		t.Fatalf("Collect() error = %v", err)
	}
	if len(summary.Alerts) != 1 {
		t.Fatalf("alerts = %d, want 1", len(summary.Alerts))
	}
	if summary.Alerts[0].Severity != "info" {
		t.Errorf("alert severity = %q, want %q", summary.Alerts[0].Severity, "info")
	}
}

func TestCollect_DestinationUnreachable(t *testing.T) {
	c := testCollector([]jobInfo{{PID: 1, Name: "borg"}})
	c.config.Destinations = []string{"/mnt/backup"}
	c.diskUsage = func(ctx context.Context, path string) (uint64, uint64, error) {
		return 0, 0, errors.New("no such file or directory")
	}

	summary, err := c.Collect(context.Background())
	if err != nil {
		t.Fatalf("Collect() error = %v", err)
	}
	if len(summary.Alerts) != 1 {
		t.Fatalf("alerts = %d, want 1", len(summary.Alerts))
	}
	alert := summary.Alerts[0]
	if alert.Severity != "critical" {
		t.Errorf("alert severity = %q, want %q", alert.Severity, "critical")
	}
	if !strings.Contains(alert.Message, "/mnt/backup") {
		t.Errorf("alert message %q should name the destination", alert.Message)
	}
	if got := summary.Metrics["destinations_ok"]; got != 0 {
		t.Errorf("destinations_ok = %v, want 0", got)
	}
}

func TestCollect_DestinationLowSpace(t *testing.T) {
	c := testCollector([]jobInfo{{PID: 1, Name: "borg"}})
	c.config.Destinations = []string{"/mnt/backup"}
	c.diskUsage = func(ctx context.Context, path string) (uint64, uint64, error) {
		return 1000, 50, nil // 5% free
	}

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
	if got := summary.Metrics["free./mnt/backup"]; got != 5 {
		t.Errorf("free./mnt/backup = %v, want 5", got)
	}
	if got := summary.Metrics["destinations_ok"]; got != 1 {
		t.Errorf("destinations_ok = %v, want 1", got)
	}
}

func TestCollect_DestinationHealthy(t *testing.T) {
	c := testCollector([]jobInfo{{PID: 1, Name: "borg"}})
	c.config.Destinations = []string{"/mnt/backup"}
	c.diskUsage = func(ctx context.Context, path string) (uint64, uint64, error) {
		return 1000, 400, nil
	}

	summary, err := c.Collect(context.Background())
	if err != nil {
		t.Fatalf("Collect() error = %v", err)
	}
	if len(summary.Alerts) != 0 {
		t.Errorf("unexpected alerts: %v", summary.Alerts)
	}
	if got := summary.Metrics["free./mnt/backup"]; got != 40 {
		t.Errorf("free./mnt/backup = %v, want 40", got)
	}
}

func TestCollect_ProcessScanFailure(t *testing.T) {
	c := testCollector(nil)
	c.listJobs = func(ctx context.Context) ([]jobInfo, error) {
		return nil, errors.New("proc unavailable")
	}

	if _, err := c.Collect(context.Background()); err == nil {
		t.Fatal("Collect() expected error when the process table is unreadable")
	}
}

func TestCollect_CancelledContext(t *testing.T) {
	c := testCollector(nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := c.Collect(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Collect() error = %v, want context.Canceled", err)
	}
}

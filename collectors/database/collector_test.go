package database

import (
	"context"
	"errors"
	"testing"
	"time"
)

func testCollector(procs []processInfo, conns []connInfo) *Collector {
	c := New(Config{}, nil)
	c.listProcesses = func(ctx context.Context) ([]processInfo, error) {
		return procs, nil
	}
	c.listConnections = func(ctx context.Context) ([]connInfo, error) {
		return conns, nil
	}
	return c
}

func TestCollect_DetectsEngines(t *testing.T) {
	procs := []processInfo{
		{PID: 100, Name: "postgres", RSS: 200 << 20},
		{PID: 101, Name: "postgres", RSS: 50 << 20},
		{PID: 200, Name: "redis-server", RSS: 30 << 20},
		{PID: 300, Name: "nginx", RSS: 10 << 20},
	}
	conns := []connInfo{
		{LocalPort: 5432, Status: "ESTABLISHED"},
		{LocalPort: 5432, Status: "ESTABLISHED"},
		{LocalPort: 5432, Status: "LISTEN"},
		{LocalPort: 6379, Status: "ESTABLISHED"},
		{LocalPort: 80, Status: "ESTABLISHED"},
	}
	c := testCollector(procs, conns)

	summary, err := c.Collect(context.Background())
	if err != nil {
		t.Fatalf("Collect() error = %v", err)
	}

	if got := summary.Metrics["engines"]; got != 2 {
		t.Errorf("engines = %v, want 2", got)
	}
	if got := summary.Metrics["postgres.processes"]; got != 2 {
		t.Errorf("postgres.processes = %v, want 2", got)
	}
	if got := summary.Metrics["postgres.rss_bytes"]; got != float64(250<<20) {
		t.Errorf("postgres.rss_bytes = %v, want %v", got, float64(250<<20))
	}
	if got := summary.Metrics["postgres.connections"]; got != 2 {
		t.Errorf("postgres.connections = %v, want 2 (LISTEN must not count)", got)
	}
	if got := summary.Metrics["redis.connections"]; got != 1 {
		t.Errorf("redis.connections = %v, want 1", got)
	}
	if _, ok := summary.Metrics["mysql.processes"]; ok {
		t.Error("mysql.processes should be absent when mysqld is not running")
	}
}

func TestCollect_NoEngines(t *testing.T) {
	c := testCollector([]processInfo{{PID: 1, Name: "systemd"}}, nil)

	summary, err := c.Collect(context.Background())
	if err != nil {
		t.Fatalf("Collect() error = %v", err)
	}
	if got := summary.Metrics["engines"]; got != 0 {
		t.Errorf("engines = %v, want 0", got)
	}
	if len(summary.Alerts) != 0 {
		t.Errorf("unexpected alerts: %v", summary.Alerts)
	}
}

func TestCollect_EngineDisappearedAlert(t *testing.T) {
	c := testCollector([]processInfo{{PID: 100, Name: "mongod", RSS: 1 << 30}}, nil)

	if _, err := c.Collect(context.Background()); err != nil {
		t.Fatalf("first Collect() error = %v", err)
	}

	c.listProcesses = func(ctx context.Context) ([]processInfo, error) {
		return nil, nil
	}
	summary, err := c.Collect(context.Background())
	if err != nil {
		t.Fatalf("second Collect() error = %v", err)
	}

	if len(summary.Alerts) != 1 {
		t.Fatalf("alerts = %d, want 1", len(summary.Alerts))
	}
	if summary.Alerts[0].Severity != "medium" {
		t.Errorf("alert severity = %q, want %q", summary.Alerts[0].Severity, "medium")
	}

	// A third run with the engine still gone must not alert again.
	summary, err = c.Collect(context.Background())
	if err != nil {
		t.Fatalf("third Collect() error = %v", err)
	}
	if len(summary.Alerts) != 0 {
		t.Errorf("repeated absence re-alerted: %v", summary.Alerts)
	}
}

func TestCollect_ConnectionLimitAlert(t *testing.T) {
	conns := make([]connInfo, 0, 11)
	for i := 0; i < 11; i++ {
		conns = append(conns, connInfo{LocalPort: 6379, Status: "ESTABLISHED"})
	}
	c := testCollector([]processInfo{{PID: 1, Name: "redis-server"}}, conns)
	c.config.MaxConnections = 10

	summary, err := c.Collect(context.Background())
	if err != nil {
		t.Fatalf("Collect() error = %v", err)
	}
	if len(summary.Alerts) != 1 {
		t.Fatalf("alerts = %d, want 1", len(summary.Alerts))
	}
	if summary.Alerts[0].Severity != "medium" {
		t.Errorf("alert severity = %q, want %q", summary.Alerts[0].Severity, "medium")
	}
}

func TestCollect_ConnectionScanFailureIsSoft(t *testing.T) {
	c := testCollector([]processInfo{{PID: 1, Name: "postgres"}}, nil)
	c.listConnections = func(ctx context.Context) ([]connInfo, error) {
		return nil, errors.New("permission denied")
	}

	summary, err := c.Collect(context.Background())
	if err != nil {
		t.Fatalf("Collect() error = %v", err)
	}
	if got := summary.Metrics["postgres.processes"]; got != 1 {
		t.Errorf("postgres.processes = %v, want 1", got)
	}
	if got := summary.Metrics["postgres.connections"]; got != 0 {
		t.Errorf("postgres.connections = %v, want 0 when socket table is unreadable", got)
	}
}

func TestCollect_ProcessScanFailure(t *testing.T) {
	c := testCollector(nil, nil)
	c.listProcesses = func(ctx context.Context) ([]processInfo, error) {
		return nil, errors.New("proc unavailable")
	}

	if _, err := c.Collect(context.Background()); err == nil {
		t.Fatal("Collect() expected error when the process table is unreadable")
	}
}

func TestCollect_CancelledContext(t *testing.T) {
	c := testCollector(nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := c.Collect(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Collect() error = %v, want context.Canceled", err)
	}
}

func TestIntervalAndTimeout(t *testing.T) {
	c := New(Config{}, nil)
	if got := c.Interval(); got != defaultInterval {
		t.Errorf("Interval() = %v, want %v", got, defaultInterval)
	}
	if got := c.Timeout(); got != defaultTimeout {
		t.Errorf("Timeout() = %v, want %v", got, defaultTimeout)
	}

	c = New(Config{Interval: time.Minute, Timeout: 5 * time.Second}, nil)
	if got := c.Interval(); got != time.Minute {
		t.Errorf("Interval() = %v, want %v", got, time.Minute)
	}
	if got := c.Timeout(); got != 5*time.Second {
		t.Errorf("Timeout() = %v, want %v", got, 5*time.Second)
	}
}

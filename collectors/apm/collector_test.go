package apm

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func testCollector(apps []appInfo) *Collector {
	c := New(Config{}, nil)
	c.listApps = func(ctx context.Context) ([]appInfo, error) {
		return apps, nil
	}
	return c
}

func TestClassifyRuntime(t *testing.T) {
	tests := []struct {
		name    string
		cmdline string
		want    string
	}{
		{"java", "java -Xmx2g -jar app.jar", "java"},
		{"dotnet", "dotnet run", "dotnet"},
		{"python3", "python3 manage.py runserver", "python"},
		{"python3.12", "python3.12 -m http.server", "python"},
		{"node", "node server.js", "node"},
		{"nodejs", "nodejs index.js", "node"},
		{"go", "go run ./cmd/api", "go"},
		{"go", "go version", ""},
		{"nginx", "nginx: worker process", ""},
		{"systemd", "/sbin/init", ""},
	}

	for _, tc := range tests {
		if got := classifyRuntime(tc.name, tc.cmdline); got != tc.want {
			t.Errorf("classifyRuntime(%q, %q) = %q, want %q", tc.name, tc.cmdline, got, tc.want)
		}
	}
}

func TestCollect_PerRuntimeMetrics(t *testing.T) {
	apps := []appInfo{
		{PID: 10, Name: "java", Cmdline: "java -jar billing.jar", RSS: 512 << 20},
		{PID: 11, Name: "java", Cmdline: "java -jar billing.jar", RSS: 512 << 20},
		{PID: 20, Name: "python3", Cmdline: "python3 worker.py", RSS: 64 << 20},
		{PID: 30, Name: "cron", Cmdline: "/usr/sbin/cron -f", RSS: 4 << 20},
	}
	c := testCollector(apps)

	summary, err := c.Collect(context.Background())
	if err != nil {
		t.Fatalf("Collect() error = %v", err)
	}

	if got := summary.Metrics["apps"]; got != 3 {
		t.Errorf("apps = %v, want 3", got)
	}
	if got := summary.Metrics["java.apps"]; got != 2 {
		t.Errorf("java.apps = %v, want 2", got)
	}
	if got := summary.Metrics["java.rss_bytes"]; got != float64(1<<30) {
		t.Errorf("java.rss_bytes = %v, want %v", got, float64(1<<30))
	}
	if got := summary.Metrics["python.apps"]; got != 1 {
		t.Errorf("python.apps = %v, want 1", got)
	}
	if _, ok := summary.Metrics["node.apps"]; ok {
		t.Error("node.apps should be absent when no node process is running")
	}
}

func TestCollect_MemoryAlert(t *testing.T) {
	c := testCollector([]appInfo{
		{PID: 42, Name: "node", Cmdline: "node server.js", RSS: 3 << 30},
	})

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
	if !strings.Contains(alert.Message, "server.js") {
		t.Errorf("alert message %q should name the app", alert.Message)
	}
	if !strings.Contains(alert.Message, "pid 42") {
		t.Errorf("alert message %q should name the pid", alert.Message)
	}
}

func TestCollect_MemoryAlertDisabled(t *testing.T) {
	c := New(Config{MemoryAlert: -1}, nil)
	c.listApps = func(ctx context.Context) ([]appInfo, error) {
		return []appInfo{{PID: 1, Name: "java", Cmdline: "java -jar big.jar", RSS: 16 << 30}}, nil
	}

	summary, err := c.Collect(context.Background())
	if err != nil {
		t.Fatalf("Collect() error = %v", err)
	}
	if len(summary.Alerts) != 0 {
		t.Errorf("alerts = %v, want none with the check disabled", summary.Alerts)
	}
}

func TestCollect_ScanFailure(t *testing.T) {
	c := testCollector(nil)
	c.listApps = func(ctx context.Context) ([]appInfo, error) {
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

func TestAppLabel(t *testing.T) {
	tests := []struct {
		app  appInfo
		want string
	}{
		{appInfo{Name: "java", Cmdline: "java -Xmx2g -jar billing.jar"}, "billing.jar"},
		{appInfo{Name: "node", Cmdline: "node server.js --port 8080"}, "server.js"},
		{appInfo{Name: "python3", Cmdline: "python3"}, "python3"},
		{appInfo{Name: "dotnet", Cmdline: ""}, "dotnet"},
	}

	for _, tc := range tests {
		if got := appLabel(tc.app); got != tc.want {
			t.Errorf("appLabel(%q) = %q, want %q", tc.app.Cmdline, got, tc.want)
		}
	}
}

package tui

import (
	"strings"
	"testing"
	"time"

	"gitlab.com/tinyland/lab/proc-pulse/collectors"
)

func TestRenderDomainsContent_NilSnapshot(t *testing.T) {
	got := renderDomainsContent(nil, 100, 30)
	if got != "Waiting for first sample..." {
		t.Errorf("expected waiting message, got %q", got)
	}
}

func TestRenderDomainsContent_NoneEnabled(t *testing.T) {
	snap := testSnapshot()
	snap.Domains = nil

	got := renderDomainsContent(snap, 100, 30)

	if !strings.Contains(got, "No domain collectors enabled.") {
		t.Error("expected the empty message")
	}
	if !strings.Contains(got, "collectors.database.enabled") {
		t.Error("expected the config hint")
	}
}

func TestRenderDomainsContent_Summary(t *testing.T) {
	got := renderDomainsContent(testSnapshot(), 100, 30)

	for _, want := range []string{
		"Domain Collectors",
		"database",
		"collected",
		"Metric",
		"connections",
		"12",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("expected domains tab to contain %q", want)
		}
	}
}

func TestRenderDomainsContent_SortedWithSeparators(t *testing.T) {
	snap := testSnapshot()
	now := time.Now()
	snap.Domains = map[string]collectors.DomainSummary{
		"security": {Domain: "security", Status: collectors.StatusOK, CollectedAt: now},
		"backup":   {Domain: "backup", Status: collectors.StatusOK, CollectedAt: now},
	}

	got := renderDomainsContent(snap, 100, 30)

	if strings.Index(got, "backup") > strings.Index(got, "security") {
		t.Error("expected domains in name order")
	}
	if !strings.Contains(got, "─") {
		t.Error("expected a rule between domain sections")
	}
}

func TestRenderDomainSection_Error(t *testing.T) {
	sum := collectors.DomainSummary{
		Domain:      "backup",
		Status:      collectors.StatusError,
		Err:         "connection refused",
		CollectedAt: time.Now(),
	}

	lines := renderDomainSection(sum, LayoutForSize(LayoutNormal, 100))
	joined := strings.Join(lines, "\n")

	if !strings.Contains(joined, "backup") {
		t.Error("expected the domain name")
	}
	if !strings.Contains(joined, "connection refused") {
		t.Error("expected the failure text")
	}
}

func TestRenderDomainSection_Alerts(t *testing.T) {
	sum := collectors.DomainSummary{
		Domain:      "security",
		Status:      collectors.StatusOK,
		CollectedAt: time.Now(),
		Alerts: []collectors.Alert{
			{Severity: collectors.SeverityCritical, Message: "3 failed root logins"},
			{Severity: collectors.SeverityLow, Message: "package updates available"},
		},
	}

	lines := renderDomainSection(sum, LayoutForSize(LayoutNormal, 100))
	joined := strings.Join(lines, "\n")

	if !strings.Contains(joined, "critical: 3 failed root logins") {
		t.Error("expected the critical alert line")
	}
	if !strings.Contains(joined, "low: package updates available") {
		t.Error("expected the low alert line")
	}
}

func TestRenderDomainMetrics_StableOrder(t *testing.T) {
	metrics := map[string]float64{
		"zeta":  1,
		"alpha": 2,
		"mid":   3,
	}

	got := renderDomainMetrics(metrics, LayoutForSize(LayoutNormal, 100))

	a, m, z := strings.Index(got, "alpha"), strings.Index(got, "mid"), strings.Index(got, "zeta")
	if a < 0 || m < 0 || z < 0 {
		t.Fatalf("expected all metrics rendered, got:\n%s", got)
	}
	if !(a < m && m < z) {
		t.Errorf("expected alphabetical metric order, got positions %d, %d, %d", a, m, z)
	}
}

func TestFormatMetricValue(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{0, "0"},
		{12, "12"},
		{1500, "1500"},
		{3.14159, "3.14"},
		{0.5, "0.50"},
		{-2, "-2"},
	}
	for _, tt := range tests {
		if got := formatMetricValue(tt.in); got != tt.want {
			t.Errorf("formatMetricValue(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

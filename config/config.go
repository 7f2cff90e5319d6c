// Package config provides configuration parsing for proc-pulse.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the proc-pulse configuration.
type Config struct {
	// General holds engine-level settings.
	General GeneralConfig `yaml:"general"`

	// History holds metric ring settings.
	History HistoryConfig `yaml:"history"`

	// Anomaly holds detector tuning.
	Anomaly AnomalyConfig `yaml:"anomaly"`

	// Thresholds holds the health evaluation bands.
	Thresholds ThresholdsConfig `yaml:"thresholds"`

	// Process holds process table settings.
	Process ProcessConfig `yaml:"process"`

	// Collectors holds the per-domain collector blocks.
	Collectors CollectorsConfig `yaml:"collectors"`

	// Export holds snapshot export settings.
	Export ExportConfig `yaml:"export"`

	// UI holds TUI rendering settings.
	UI UIConfig `yaml:"ui"`
}

// GeneralConfig holds engine-level settings.
type GeneralConfig struct {
	// Interval is a duration string (e.g. "2s") between polls.
	Interval string `yaml:"interval"`
	// LogFile is the path for log output. Empty logs to stderr, which the
	// TUI suppresses while the alternate screen is active.
	LogFile string `yaml:"log_file"`
	// Verbose enables debug-level logging.
	Verbose bool `yaml:"verbose"`
}

// HistoryConfig holds metric ring settings.
type HistoryConfig struct {
	// Retention is a duration string for how much system history to keep.
	Retention string `yaml:"retention"`
	// ProcessPoints caps each per-process series.
	ProcessPoints int `yaml:"process_points"`
}

// AnomalyConfig holds detector tuning.
type AnomalyConfig struct {
	// SpikeSensitivity is the number of standard deviations a value must
	// exceed the mean by to count as a spike.
	SpikeSensitivity float64 `yaml:"spike_sensitivity"`
	// MinSamples is how many samples a series needs before spike checks run.
	MinSamples int `yaml:"min_samples"`
	// SlopeWindow is the trailing window length for growth detection.
	SlopeWindow int `yaml:"slope_window"`
	// GrowthTicks is how many consecutive over-threshold slopes fire a
	// sustained-growth event.
	GrowthTicks int `yaml:"growth_ticks"`
}

// ThresholdsConfig holds the health evaluation bands, in percent except
// for the load ratios.
type ThresholdsConfig struct {
	CPUWarning     float64 `yaml:"cpu_warning"`
	CPUCritical    float64 `yaml:"cpu_critical"`
	MemoryWarning  float64 `yaml:"memory_warning"`
	MemoryCritical float64 `yaml:"memory_critical"`
	SwapWarning    float64 `yaml:"swap_warning"`
	SwapCritical   float64 `yaml:"swap_critical"`
	DiskWarning    float64 `yaml:"disk_warning"`
	DiskCritical   float64 `yaml:"disk_critical"`
	// LoadWarningRatio and LoadCriticalRatio compare load1 against the
	// core count.
	LoadWarningRatio  float64 `yaml:"load_warning_ratio"`
	LoadCriticalRatio float64 `yaml:"load_critical_ratio"`
}

// ProcessConfig holds process table settings.
type ProcessConfig struct {
	// ShowKernelThreads includes kernel threads in the table.
	ShowKernelThreads bool `yaml:"show_kernel_threads"`
	// Filter is the initial name/user/command filter.
	Filter string `yaml:"filter"`
	// SortBy is the initial sort column: "cpu", "mem", "pid", or "name".
	SortBy string `yaml:"sort_by"`
}

// CollectorsConfig holds the per-domain collector blocks. Collectors are
// opt-in; an absent block leaves the domain disabled.
type CollectorsConfig struct {
	Database    DatabaseCollectorConfig    `yaml:"database"`
	APM         APMCollectorConfig         `yaml:"apm"`
	IoT         IoTCollectorConfig         `yaml:"iot"`
	Backup      BackupCollectorConfig      `yaml:"backup"`
	Security    SecurityCollectorConfig    `yaml:"security"`
	Logwatch    LogwatchCollectorConfig    `yaml:"logwatch"`
	FSIntegrity FSIntegrityCollectorConfig `yaml:"fsintegrity"`
}

// DatabaseCollectorConfig configures the database engine watcher.
type DatabaseCollectorConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Interval string `yaml:"interval"`
	Timeout  string `yaml:"timeout"`
	// MaxConnections alerts when an engine exceeds this many established
	// connections. Zero keeps the collector default.
	MaxConnections int `yaml:"max_connections"`
}

// APMCollectorConfig configures the application runtime watcher.
type APMCollectorConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Interval string `yaml:"interval"`
	Timeout  string `yaml:"timeout"`
	// MemoryAlertMB alerts when one app's resident set passes this many
	// megabytes. Zero keeps the collector default.
	MemoryAlertMB int `yaml:"memory_alert_mb"`
}

// IoTCollectorConfig configures the LAN device watcher.
type IoTCollectorConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Interval string `yaml:"interval"`
	Timeout  string `yaml:"timeout"`
	// ProbePorts enables TCP probes of common device ports.
	ProbePorts bool `yaml:"probe_ports"`
}

// BackupCollectorConfig configures the backup job watcher.
type BackupCollectorConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Interval string `yaml:"interval"`
	Timeout  string `yaml:"timeout"`
	// Destinations are backup target paths checked for reachability and
	// free space.
	Destinations []string `yaml:"destinations"`
	// MinFreePercent alerts when a destination's free space drops below
	// this percentage. Zero keeps the collector default.
	MinFreePercent float64 `yaml:"min_free_percent"`
}

// SecurityCollectorConfig configures the suspicious-process watcher.
type SecurityCollectorConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Interval string `yaml:"interval"`
	Timeout  string `yaml:"timeout"`
	// ExtraNames adds process names to the suspicious set.
	ExtraNames []string `yaml:"extra_names"`
}

// LogwatchCollectorConfig configures the log pattern watcher.
type LogwatchCollectorConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Interval string `yaml:"interval"`
	Timeout  string `yaml:"timeout"`
	// Files overrides the watched log files.
	Files []string `yaml:"files"`
	// MaxBytes caps how much of a file is scanned per run. Zero keeps
	// the collector default.
	MaxBytes int64 `yaml:"max_bytes"`
}

// FSIntegrityCollectorConfig configures the sensitive-file watcher.
type FSIntegrityCollectorConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Interval string `yaml:"interval"`
	Timeout  string `yaml:"timeout"`
	// Paths overrides the watched files.
	Paths []string `yaml:"paths"`
}

// ExportConfig holds snapshot export settings.
type ExportConfig struct {
	// Directory receives export files. Empty means the working directory.
	Directory string `yaml:"directory"`
	// Format is the default export format: "json" or "csv".
	Format string `yaml:"format"`
}

// UIConfig holds TUI rendering settings.
type UIConfig struct {
	// Theme selects the color theme: "default", "dark", "gruvbox",
	// "dracula", or "solarized".
	Theme string `yaml:"theme"`
	// ConfirmKill requires a confirmation prompt before kills.
	ConfirmKill bool `yaml:"confirm_kill"`
}

// DefaultPath returns the conventional config location.
func DefaultPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "proc-pulse", "config.yaml")
}

// DefaultConfig returns a Config populated with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		General: GeneralConfig{
			Interval: "2s",
		},
		History: HistoryConfig{
			Retention:     "1h",
			ProcessPoints: 300,
		},
		Anomaly: AnomalyConfig{
			SpikeSensitivity: 3.0,
			MinSamples:       5,
			SlopeWindow:      10,
			GrowthTicks:      3,
		},
		Thresholds: ThresholdsConfig{
			CPUWarning:        80,
			CPUCritical:       95,
			MemoryWarning:     80,
			MemoryCritical:    95,
			SwapWarning:       60,
			SwapCritical:      90,
			DiskWarning:       85,
			DiskCritical:      95,
			LoadWarningRatio:  1.5,
			LoadCriticalRatio: 3.0,
		},
		Process: ProcessConfig{
			ShowKernelThreads: false,
			SortBy:            "cpu",
		},
		Export: ExportConfig{
			Format: "json",
		},
		UI: UIConfig{
			Theme:       "default",
			ConfirmKill: true,
		},
	}
}

// LoadConfig loads configuration from a YAML file, merging with defaults.
// A missing file is not an error; the defaults come back unchanged.
func LoadConfig(path string) (*Config, error) {
	config := DefaultConfig()

	if path == "" {
		return config, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return config, nil
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate checks the configuration for parseable durations and logical
// consistency.
func (c *Config) Validate() error {
	interval, err := parseDurationField("general.interval", c.General.Interval, 100*time.Millisecond)
	if err != nil {
		return err
	}

	if _, err := parseDurationField("history.retention", c.History.Retention, interval); err != nil {
		return err
	}
	if c.History.ProcessPoints < 0 {
		return fmt.Errorf("history.process_points must be non-negative, got %d", c.History.ProcessPoints)
	}

	if c.Anomaly.SpikeSensitivity < 0 {
		return fmt.Errorf("anomaly.spike_sensitivity must be non-negative, got %v", c.Anomaly.SpikeSensitivity)
	}
	if c.Anomaly.MinSamples < 0 || c.Anomaly.SlopeWindow < 0 || c.Anomaly.GrowthTicks < 0 {
		return fmt.Errorf("anomaly sample counts must be non-negative")
	}

	if err := c.Thresholds.validate(); err != nil {
		return err
	}

	switch c.Process.SortBy {
	case "", "cpu", "mem", "pid", "name":
	default:
		return fmt.Errorf("process.sort_by must be 'cpu', 'mem', 'pid', or 'name', got %q", c.Process.SortBy)
	}

	if err := c.Collectors.validate(); err != nil {
		return err
	}

	switch c.Export.Format {
	case "", "json", "csv":
	default:
		return fmt.Errorf("export.format must be 'json' or 'csv', got %q", c.Export.Format)
	}

	switch c.UI.Theme {
	case "", "default", "dark", "gruvbox", "dracula", "solarized":
	default:
		return fmt.Errorf("ui.theme must be one of default, dark, gruvbox, dracula, solarized, got %q", c.UI.Theme)
	}

	return nil
}

func (t ThresholdsConfig) validate() error {
	pairs := []struct {
		name     string
		warning  float64
		critical float64
		percent  bool
	}{
		{"cpu", t.CPUWarning, t.CPUCritical, true},
		{"memory", t.MemoryWarning, t.MemoryCritical, true},
		{"swap", t.SwapWarning, t.SwapCritical, true},
		{"disk", t.DiskWarning, t.DiskCritical, true},
		{"load", t.LoadWarningRatio, t.LoadCriticalRatio, false},
	}
	for _, p := range pairs {
		if p.warning < 0 || p.critical < 0 {
			return fmt.Errorf("thresholds.%s must be non-negative", p.name)
		}
		if p.percent && (p.warning > 100 || p.critical > 100) {
			return fmt.Errorf("thresholds.%s must be within 0-100", p.name)
		}
		if p.warning > 0 && p.critical > 0 && p.warning >= p.critical {
			return fmt.Errorf("thresholds.%s warning %v must be below critical %v", p.name, p.warning, p.critical)
		}
	}
	return nil
}

func (cc CollectorsConfig) validate() error {
	durations := []struct {
		name  string
		value string
	}{
		{"collectors.database.interval", cc.Database.Interval},
		{"collectors.database.timeout", cc.Database.Timeout},
		{"collectors.apm.interval", cc.APM.Interval},
		{"collectors.apm.timeout", cc.APM.Timeout},
		{"collectors.iot.interval", cc.IoT.Interval},
		{"collectors.iot.timeout", cc.IoT.Timeout},
		{"collectors.backup.interval", cc.Backup.Interval},
		{"collectors.backup.timeout", cc.Backup.Timeout},
		{"collectors.security.interval", cc.Security.Interval},
		{"collectors.security.timeout", cc.Security.Timeout},
		{"collectors.logwatch.interval", cc.Logwatch.Interval},
		{"collectors.logwatch.timeout", cc.Logwatch.Timeout},
		{"collectors.fsintegrity.interval", cc.FSIntegrity.Interval},
		{"collectors.fsintegrity.timeout", cc.FSIntegrity.Timeout},
	}
	for _, dv := range durations {
		if dv.value == "" {
			continue
		}
		if _, err := time.ParseDuration(dv.value); err != nil {
			return fmt.Errorf("%s: %w", dv.name, err)
		}
	}
	if cc.Database.MaxConnections < 0 {
		return fmt.Errorf("collectors.database.max_connections must be non-negative, got %d", cc.Database.MaxConnections)
	}
	if mb := cc.APM.MemoryAlertMB; mb < 0 {
		return fmt.Errorf("collectors.apm.memory_alert_mb must be non-negative, got %d", mb)
	}
	if p := cc.Backup.MinFreePercent; p < 0 || p > 100 {
		return fmt.Errorf("collectors.backup.min_free_percent must be within 0-100, got %v", p)
	}
	if cc.Logwatch.MaxBytes < 0 {
		return fmt.Errorf("collectors.logwatch.max_bytes must be non-negative, got %d", cc.Logwatch.MaxBytes)
	}
	return nil
}

// parseDurationField parses a required duration setting and enforces a
// lower bound.
func parseDurationField(name, value string, min time.Duration) (time.Duration, error) {
	if value == "" {
		return 0, fmt.Errorf("%s is required", name)
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", name, err)
	}
	if d < min {
		return 0, fmt.Errorf("%s must be at least %s, got %s", name, min, d)
	}
	return d, nil
}

// SaveConfig saves configuration to a YAML file, written atomically with
// owner-only permissions.
func SaveConfig(config *Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	data, err := yaml.Marshal(config)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".tmp-config-*")
	if err != nil {
		return err
	}
	success := false
	defer func() {
		if !success {
			os.Remove(tmp.Name())
		}
	}()
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return err
	}
	success = true
	return nil
}

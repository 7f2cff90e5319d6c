package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"gitlab.com/tinyland/lab/proc-pulse/collectors"
	"gitlab.com/tinyland/lab/proc-pulse/config"
	"gitlab.com/tinyland/lab/proc-pulse/display/tui"
	"gitlab.com/tinyland/lab/proc-pulse/sampler"
)

// runDoctor checks the local environment and reports what proc-pulse can
// and cannot monitor here: config resolution, one real sampling pass per
// metric source, dry runs of the enabled collectors, and the UI registries.
func runDoctor(w io.Writer, configPath string) {
	fmt.Fprintln(w, "🔍 proc-pulse Environment Diagnostics")
	fmt.Fprintln(w, "============================================================")
	fmt.Fprintln(w)

	// Only show warnings during diagnostics; the report itself is the output.
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	}))

	var problems int

	cfg, n := doctorConfig(w, configPath)
	problems += n
	fmt.Fprintln(w)

	problems += doctorSampler(w, logger)
	fmt.Fprintln(w)

	problems += doctorCollectors(w, cfg, logger)
	fmt.Fprintln(w)

	doctorThemes(w, cfg)
	fmt.Fprintln(w)

	problems += doctorKeybindings(w)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "============================================================")
	if problems == 0 {
		fmt.Fprintln(w, "✨ All checks passed. proc-pulse should work correctly here.")
	} else {
		fmt.Fprintf(w, "⚠️  %d problem(s) found. proc-pulse may run with reduced data.\n", problems)
	}
}

// doctorConfig resolves and validates the configuration file. It always
// returns a usable config so later sections can run; a broken file falls
// back to the built-in defaults.
func doctorConfig(w io.Writer, configPath string) (*config.Config, int) {
	fmt.Fprintln(w, "📁 Configuration")
	fmt.Fprintln(w, "------------------------------------------------------------")

	path := configPath
	if path == "" {
		path = config.DefaultPath()
	}
	fmt.Fprintf(w, "   Path: %s\n", path)

	if _, err := os.Stat(path); os.IsNotExist(err) {
		fmt.Fprintln(w, "   ⚠️  File not found, built-in defaults apply")
		return config.DefaultConfig(), 0
	}
	fmt.Fprintln(w, "   ✅ File exists")

	cfg, err := config.LoadConfig(path)
	if err != nil {
		fmt.Fprintf(w, "   ❌ Load failed: %v\n", err)
		fmt.Fprintln(w)
		fmt.Fprintln(w, "💡 Solution: fix the YAML syntax, or remove the file to use defaults")
		return config.DefaultConfig(), 1
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(w, "   ❌ Invalid: %v\n", err)
		fmt.Fprintln(w)
		fmt.Fprintln(w, "💡 Solution: correct the value; 'proc-pulse -man' documents the schema")
		return config.DefaultConfig(), 1
	}

	fmt.Fprintln(w, "   ✅ Valid")
	return cfg, 0
}

// doctorSampler runs one real poll and reports which metric sources this
// platform exposes.
func doctorSampler(w io.Writer, logger *slog.Logger) int {
	fmt.Fprintln(w, "📊 Metric Sources")
	fmt.Fprintln(w, "------------------------------------------------------------")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	fmt.Fprint(w, "   Polling... ")
	start := time.Now()
	sample, err := sampler.New(logger).Poll(ctx)
	if err != nil {
		fmt.Fprintln(w, "❌ FAILED")
		fmt.Fprintf(w, "   Error: %v\n", err)
		fmt.Fprintln(w)
		fmt.Fprintln(w, "💡 Solution: check that /proc is mounted and readable")
		return 1
	}
	fmt.Fprintf(w, "✅ %s\n", time.Since(start).Round(time.Millisecond))

	sections := []struct {
		name string
		ok   bool
	}{
		{"cpu", sample.System.CPU.Sampled},
		{"memory", sample.System.Mem.Sampled},
		{"load", sample.System.Load.Sampled},
		{"network", sample.System.Net.Sampled},
		{"disk", sample.System.Disk.Sampled},
		{"host", sample.System.Host.Sampled},
	}

	var unavailable int
	for _, sec := range sections {
		if sec.ok {
			fmt.Fprintf(w, "   %-8s ✅ available\n", sec.name)
		} else {
			fmt.Fprintf(w, "   %-8s ❌ unavailable\n", sec.name)
			unavailable++
		}
	}
	fmt.Fprintf(w, "   %-8s ✅ %d sampled\n", "procs", len(sample.Processes))

	for _, warn := range sample.System.Warnings {
		fmt.Fprintf(w, "   ⚠️  %s\n", warn)
	}

	return unavailable
}

// doctorCollectors dry-runs every enabled collector once, with its own
// timeout, and reports status and timing.
func doctorCollectors(w io.Writer, cfg *config.Config, logger *slog.Logger) int {
	fmt.Fprintln(w, "🔌 Domain Collectors")
	fmt.Fprintln(w, "------------------------------------------------------------")

	cols := buildCollectors(cfg, logger)
	if len(cols) == 0 {
		fmt.Fprintln(w, "   (none enabled)")
		fmt.Fprintln(w)
		fmt.Fprintln(w, "💡 Tip: enable collectors in the config file, e.g. collectors.security.enabled: true")
		return 0
	}

	var failed int
	for _, c := range cols {
		ctx, cancel := context.WithTimeout(context.Background(), c.Timeout())
		start := time.Now()
		summary, err := c.Collect(ctx)
		cancel()
		elapsed := time.Since(start).Round(time.Millisecond)

		if err != nil {
			fmt.Fprintf(w, "   %-12s ❌ %v (%s)\n", c.Name(), err, elapsed)
			failed++
			continue
		}

		glyph := "✅"
		if summary.Status != collectors.StatusOK {
			glyph = "⚠️ "
		}
		detail := summary.Status
		if n := len(summary.Alerts); n > 0 {
			detail = fmt.Sprintf("%s, %d alert(s)", detail, n)
		}
		fmt.Fprintf(w, "   %-12s %s %s (%s)\n", c.Name(), glyph, detail, elapsed)
	}

	return failed
}

// doctorThemes lists the compiled-in theme presets and marks the active one.
func doctorThemes(w io.Writer, cfg *config.Config) {
	fmt.Fprintln(w, "🎨 Themes")
	fmt.Fprintln(w, "------------------------------------------------------------")

	for _, name := range tui.ThemeNames() {
		if name == cfg.UI.Theme {
			fmt.Fprintf(w, "   ✅ %s (active)\n", name)
		} else {
			fmt.Fprintf(w, "      %s\n", name)
		}
	}
}

// doctorKeybindings verifies the key registry has no conflicting bindings.
func doctorKeybindings(w io.Writer) int {
	fmt.Fprintln(w, "⌨️  Keybindings")
	fmt.Fprintln(w, "------------------------------------------------------------")

	registry := tui.DefaultRegistry()
	dups := registry.HasDuplicateKeys()
	if len(dups) > 0 {
		for _, d := range dups {
			fmt.Fprintf(w, "   ❌ %s\n", d)
		}
		return len(dups)
	}

	fmt.Fprintf(w, "   ✅ %d bindings registered, no conflicts\n", len(registry.Entries))
	return 0
}

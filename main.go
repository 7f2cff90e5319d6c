// proc-pulse is an interactive terminal monitor for processes and system
// health.
//
// It samples the process table and system metrics on a fixed tick, keeps
// bounded history for sparklines and anomaly detection, evaluates health
// against configurable thresholds, and runs optional domain collectors.
// The default mode is a full-screen dashboard; one-shot modes cover text
// reports, prompt statuslines, exports, and diagnostics.
//
// Usage:
//
//	proc-pulse [flags]
//
// Flags:
//
//	-config string    Path to configuration file (default: ~/.config/proc-pulse/config.yaml)
//	-interval dur     Sampling interval override (e.g. 1s, 500ms)
//	-once             Print a one-shot report and exit
//	-json             With -once, print the snapshot as JSON
//	-line             Print a one-line prompt statusline and exit
//	-export           Write a snapshot export file and exit
//	-format string    Format for -export (json|csv) or -keys (table|json)
//	-theme string     Theme override (default|dark|gruvbox|dracula|solarized)
//	-filter string    Initial process filter
//	-show-zombies     Start the process tab on zombies only
//	-keys             Print registered keybindings and exit
//	-mode string      Filter -keys output by mode (tui|filter|confirm)
//	-starship         Print a Starship custom module snippet and exit
//	-diagnose         Run environment diagnostics and exit
//	-man              Print man page to stdout in roff format
//	-verbose          Enable verbose logging
//	-version          Print version and exit
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"gitlab.com/tinyland/lab/proc-pulse/config"
	"gitlab.com/tinyland/lab/proc-pulse/display/report"
	"gitlab.com/tinyland/lab/proc-pulse/display/statusline"
	"gitlab.com/tinyland/lab/proc-pulse/display/tui"
	"gitlab.com/tinyland/lab/proc-pulse/docs/manpage"
	"gitlab.com/tinyland/lab/proc-pulse/engine"
	"gitlab.com/tinyland/lab/proc-pulse/export"
)

func main() {
	var (
		configPath   = flag.String("config", "", "Path to configuration file (default: ~/.config/proc-pulse/config.yaml)")
		intervalFlag = flag.Duration("interval", 0, "Sampling interval override (0 = from config)")
		runOnce      = flag.Bool("once", false, "Print a one-shot report and exit")
		jsonOut      = flag.Bool("json", false, "With -once, print the snapshot as JSON")
		lineMode     = flag.Bool("line", false, "Print a one-line prompt statusline and exit")
		runExport    = flag.Bool("export", false, "Write a snapshot export file and exit")
		formatFlag   = flag.String("format", "", "Format for -export (json|csv) or -keys (table|json)")
		themeFlag    = flag.String("theme", "", "Theme override (default|dark|gruvbox|dracula|solarized)")
		filterFlag   = flag.String("filter", "", "Initial process filter")
		showZombies  = flag.Bool("show-zombies", false, "Start the process tab on zombies only")
		runKeys      = flag.Bool("keys", false, "Print registered keybindings and exit")
		modeFlag     = flag.String("mode", "", "Filter -keys output by mode (tui|filter|confirm)")
		runStarship  = flag.Bool("starship", false, "Print a Starship custom module snippet and exit")
		runDiagnose  = flag.Bool("diagnose", false, "Run environment diagnostics and exit")
		showMan      = flag.Bool("man", false, "Print man page to stdout in roff format")
		verbose      = flag.Bool("verbose", false, "Enable verbose logging")
		showVersion  = flag.Bool("version", false, "Print version and exit")
	)
	flag.Parse()

	if *configPath == "" {
		*configPath = os.Getenv("PROC_PULSE_CONFIG")
	}

	// ---------------------------------------------------------------
	// Commands that don't require config
	// ---------------------------------------------------------------

	if *showVersion {
		fmt.Printf("proc-pulse %s (%s) built %s\n", version, commit, date)
		os.Exit(0)
	}

	if *showMan {
		fmt.Print(manpage.Generate(version, commit, date))
		os.Exit(0)
	}

	if *runKeys {
		runKeysCommand(*modeFlag, *formatFlag)
		os.Exit(0)
	}

	if *runStarship {
		fmt.Print(statusline.GenerateStarshipConfig(statusline.DefaultStarshipConfig()))
		os.Exit(0)
	}

	if *runDiagnose {
		runDoctor(os.Stdout, *configPath)
		os.Exit(0)
	}

	// ---------------------------------------------------------------
	// Load configuration (required for remaining modes)
	// ---------------------------------------------------------------

	path := *configPath
	if path == "" {
		path = config.DefaultPath()
	}
	cfg, err := config.LoadConfig(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	// CLI overrides.
	if *intervalFlag > 0 {
		cfg.General.Interval = intervalFlag.String()
	}
	if *themeFlag != "" {
		cfg.UI.Theme = *themeFlag
	}
	if *filterFlag != "" {
		cfg.Process.Filter = *filterFlag
	}
	if *verbose {
		cfg.General.Verbose = true
	}

	tuiMode := !*runOnce && !*lineMode && !*runExport
	logger, closeLog, err := setupLogger(cfg, tuiMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open log file: %v\n", err)
		os.Exit(1)
	}
	defer closeLog()

	// ---------------------------------------------------------------
	// Context with signal handling
	// ---------------------------------------------------------------

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		cancel()
	}()

	// ---------------------------------------------------------------
	// Statusline mode
	// ---------------------------------------------------------------

	if *lineMode {
		if err := runLine(ctx, cfg); err != nil {
			fmt.Fprintf(os.Stderr, "proc-pulse: %v\n", err)
			os.Exit(1)
		}
		os.Exit(0)
	}

	// ---------------------------------------------------------------
	// One-shot report and export modes
	// ---------------------------------------------------------------

	if *runOnce || *runExport {
		snap, err := collectSnapshot(ctx, cfg, logger)
		if err != nil {
			fmt.Fprintf(os.Stderr, "proc-pulse: %v\n", err)
			os.Exit(1)
		}

		if *runExport {
			format := *formatFlag
			if format == "" {
				format = cfg.Export.Format
			}
			path := filepath.Join(cfg.Export.Directory, export.Filename(format, time.Now()))
			if err := export.WriteFile(path, format, snap); err != nil {
				fmt.Fprintf(os.Stderr, "export failed: %v\n", err)
				os.Exit(1)
			}
			fmt.Printf("wrote %s\n", path)
			os.Exit(0)
		}

		if *jsonOut {
			if err := export.WriteJSON(os.Stdout, snap); err != nil {
				fmt.Fprintf(os.Stderr, "proc-pulse: %v\n", err)
				os.Exit(1)
			}
		} else {
			fmt.Print(report.Render(snap, report.DefaultOptions()))
		}
		os.Exit(0)
	}

	// ---------------------------------------------------------------
	// TUI mode (default)
	// ---------------------------------------------------------------

	defer func() {
		if r := recover(); r != nil {
			// Attempt to restore terminal from alt-screen before printing error.
			fmt.Print("\x1b[?1049l\x1b[?25h")
			fmt.Fprintf(os.Stderr, "proc-pulse: TUI panic: %v\n", r)
			os.Exit(1)
		}
	}()

	eng := engine.New(engineOptions(cfg), logger)
	for _, c := range buildCollectors(cfg, logger) {
		eng.Register(c)
	}

	engDone := make(chan error, 1)
	go func() { engDone <- eng.Run(ctx) }()

	opts := tui.Options{
		Theme:             cfg.UI.Theme,
		Filter:            cfg.Process.Filter,
		SortBy:            cfg.Process.SortBy,
		ShowZombies:       *showZombies,
		ShowKernelThreads: cfg.Process.ShowKernelThreads,
		ConfirmKill:       cfg.UI.ConfirmKill,
		ExportDir:         cfg.Export.Directory,
		ExportFormat:      cfg.Export.Format,
	}
	err = tui.Run(ctx, eng, opts)

	cancel()
	<-engDone

	if err != nil && !errors.Is(err, tea.ErrProgramKilled) && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "TUI error: %v\n", err)
		os.Exit(1)
	}
}

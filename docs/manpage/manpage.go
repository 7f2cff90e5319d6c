// Package manpage generates a roff-formatted man page for proc-pulse.
//
// The man page is generated at runtime from the actual KeyRegistry and
// compiled-in version information, keeping documentation in sync with
// the code automatically.
//
// Usage:
//
//	proc-pulse -man | man -l -
//	proc-pulse -man > ~/.local/share/man/man1/proc-pulse.1
package manpage

import (
	"fmt"
	"strings"
	"time"

	"gitlab.com/tinyland/lab/proc-pulse/display/tui"
)

// Generate produces a complete roff-formatted man(1) page for proc-pulse.
// The version, commit, and date parameters are passed from the build-time
// linker variables so the man page always reflects the current build.
func Generate(version, commit, date string) string {
	var b strings.Builder

	writeHeader(&b, version)
	writeName(&b)
	writeSynopsis(&b)
	writeDescription(&b)
	writeOptions(&b)
	writeKeybindings(&b)
	writeConfiguration(&b)
	writePromptIntegration(&b)
	writeFiles(&b)
	writeExamples(&b)
	writeEnvironment(&b)
	writeExitStatus(&b)
	writeSeeAlso(&b)
	writeAuthors(&b)
	writeBugs(&b)
	writeFooter(&b, version, commit, date)

	return b.String()
}

// roffEscape escapes special roff characters in a string.
func roffEscape(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `-`, `\-`)
	s = strings.ReplaceAll(s, `.`, `\&.`)
	return s
}

func writeHeader(b *strings.Builder, version string) {
	month := time.Now().Format("January 2006")
	fmt.Fprintf(b, ".TH PROC-PULSE 1 \"%s\" \"proc-pulse %s\" \"User Commands\"\n", month, version)
}

func writeName(b *strings.Builder) {
	b.WriteString(`.SH NAME
proc\-pulse \- interactive process and system monitor for the terminal
`)
}

func writeSynopsis(b *strings.Builder) {
	b.WriteString(`.SH SYNOPSIS
.B proc\-pulse
[\fIOPTIONS\fR]
`)
}

func writeDescription(b *strings.Builder) {
	b.WriteString(`.SH DESCRIPTION
.B proc\-pulse
is an interactive terminal monitor for processes and system health. It
samples the process table and system metrics on a fixed cadence, keeps
bounded history rings for sparklines and trend analysis, flags CPU spikes
and memory growth, evaluates overall health against configurable
thresholds, and runs optional domain collectors for services such as
databases, backups, and log files.
.PP
The tool operates in several modes:
.IP \(bu 2
.B TUI mode
(default): Launches an interactive Bubbletea dashboard with five tabs
(overview, processes, network, disks, domains), vim\-style navigation,
process filtering, sorting, tree view, and kill support.
.IP \(bu 2
.B Report mode
(\fB\-once\fR): Collects a short burst of samples, prints a one\-shot
text report to stdout, and exits. With \fB\-json\fR the snapshot is
printed as JSON instead.
.IP \(bu 2
.B Statusline mode
(\fB\-line\fR): Prints a single\-line summary suitable for embedding in
a shell prompt, then exits.
.IP \(bu 2
.B Export mode
(\fB\-export\fR): Writes a timestamped JSON or CSV snapshot file to the
configured export directory, then exits.
.IP \(bu 2
.B Diagnostic mode
(\fB\-diagnose\fR): Checks the configuration, probes each metric source
once, dry\-runs the enabled collectors, and reports what works.
`)
}

func writeOptions(b *strings.Builder) {
	b.WriteString(`.SH OPTIONS
`)

	flags := []struct {
		flag string
		arg  string
		desc string
	}{
		{"config", "PATH", "Path to the YAML configuration file. Default: ~/.config/proc\\-pulse/config.yaml, or the \\fBPROC_PULSE_CONFIG\\fR environment variable when set."},
		{"interval", "DUR", "Override the sampling interval from the configuration file. Accepts Go duration strings such as \"1s\" or \"500ms\". Default: 2s."},
		{"once", "", "Collect a short burst of samples, print a one\\-shot text report to stdout, and exit. No TUI is started."},
		{"json", "", "With \\fB\\-once\\fR, print the snapshot as indented JSON instead of the text report."},
		{"line", "", "Print a single\\-line status summary for embedding in a shell prompt, then exit. The output carries no trailing newline."},
		{"export", "", "Collect a snapshot, write it to the configured export directory, and exit. The file name carries a timestamp."},
		{"format", "FORMAT", "Output format. With \\fB\\-export\\fR: json (default) or csv. With \\fB\\-keys\\fR: table (default) or json."},
		{"theme", "THEME", "TUI color theme. THEME must be one of: default, dark, gruvbox, dracula, solarized. Overrides the configuration file setting."},
		{"filter", "PATTERN", "Initial substring filter for the process tab. Matching is case\\-insensitive against the process name and command line."},
		{"show\\-zombies", "", "Start the process tab showing zombie processes only."},
		{"keys", "", "Show all registered keybindings, then exit. Combine with \\fB\\-mode\\fR and \\fB\\-format\\fR."},
		{"mode", "MODE", "Filter keybindings by mode when used with \\fB\\-keys\\fR. MODE must be one of: tui, filter, confirm."},
		{"starship", "", "Print a Starship custom module TOML snippet that wires \\fB\\-line\\fR into the prompt, then exit."},
		{"diagnose", "", "Run environment diagnostics: configuration file resolution, one sampling pass per metric source, collector dry runs with timings, and the available themes."},
		{"verbose", "", "Enable verbose (debug\\-level) logging."},
		{"version", "", "Print the version, commit hash, and build date, then exit."},
		{"man", "", "Print this man page to stdout in roff format. Pipe to man(1) for formatted viewing: \\fBproc\\-pulse \\-man | man \\-l \\-\\fR."},
	}

	for _, f := range flags {
		b.WriteString(".TP\n")
		if f.arg != "" {
			fmt.Fprintf(b, ".BR \\-%s \" \\fI%s\\fR\"\n", f.flag, f.arg)
		} else {
			fmt.Fprintf(b, ".B \\-%s\n", f.flag)
		}
		b.WriteString(f.desc + "\n")
	}
}

func writeKeybindings(b *strings.Builder) {
	b.WriteString(`.SH KEYBINDINGS
The following keybindings are registered in the KeyRegistry and are the
single source of truth for all proc\-pulse input handling.
`)

	registry := tui.DefaultRegistry()

	modes := []struct {
		mode tui.KeyMode
		name string
		desc string
	}{
		{tui.ModeTUI, "TUI Mode", "Active in the interactive dashboard."},
		{tui.ModeFilter, "Filter Mode", "Active while the process filter prompt is open (\\fB/\\fR)."},
		{tui.ModeConfirm, "Confirm Mode", "Active while the kill confirmation dialog is open."},
	}

	for _, m := range modes {
		entries := registry.ByMode(m.mode)
		if len(entries) == 0 {
			continue
		}

		fmt.Fprintf(b, ".SS %s\n%s\n", m.name, m.desc)

		// Group by category within each mode.
		categories := []struct {
			cat  tui.KeyCategory
			name string
		}{
			{tui.CategoryNavigation, "Navigation"},
			{tui.CategoryScroll, "Scrolling"},
			{tui.CategoryProcess, "Process"},
			{tui.CategoryData, "Data"},
			{tui.CategorySystem, "System"},
		}

		for _, cat := range categories {
			var catEntries []tui.KeyEntry
			for _, e := range entries {
				if e.Category == cat.cat {
					catEntries = append(catEntries, e)
				}
			}
			if len(catEntries) == 0 {
				continue
			}

			fmt.Fprintf(b, ".PP\n\\fI%s:\\fR\n", cat.name)
			for _, e := range catEntries {
				keysStr := strings.Join(e.Binding.Keys(), ", ")
				desc := e.Binding.Help().Desc
				fmt.Fprintf(b, ".TP\n.B %s\n%s (since %s)\n", roffEscape(keysStr), desc, e.Since)
			}
		}
	}
}

func writeConfiguration(b *strings.Builder) {
	b.WriteString(`.SH CONFIGURATION
Configuration is read from a YAML file at
.B ~/.config/proc\-pulse/config.yaml
by default, or from the path specified with \fB\-config\fR. A missing
file is not an error; built\-in defaults apply.
.PP
The configuration file is organized into the following top-level sections:
.SS general
.TP
.B interval
Duration between sampling ticks (e.g., "2s", "500ms"). Default: "2s".
.TP
.B log_file
Path for log output. Empty means logs go to stderr in one\-shot modes
and are discarded in TUI mode.
.TP
.B verbose
Enable debug\-level logging. Default: false.
.SS history
.TP
.B retention
How long system metric history is kept for sparklines and trend views
(e.g., "1h", "30m"). Default: "1h".
.TP
.B process_points
Number of per\-process history points kept for each tracked PID.
Default: 300.
.SS anomaly
.TP
.B spike_sensitivity
Number of standard deviations above the rolling mean that counts as a
spike. Default: 3.0.
.TP
.B min_samples
Minimum history points before spike detection engages. Default: 5.
.TP
.B slope_window
Number of trailing points used for the memory growth slope. Default: 10.
.TP
.B growth_ticks
Consecutive growth windows before a memory leak alert fires. Default: 3.
.SS thresholds
.PP
Warning and critical levels, in percent, for the core resources:
.B cpu_warning
(80),
.B cpu_critical
(95),
.B memory_warning
(80),
.B memory_critical
(95),
.B swap_warning
(60),
.B swap_critical
(90),
.B disk_warning
(85), and
.B disk_critical
(95). Load average is judged relative to the core count via
.B load_warning_ratio
(1.5) and
.B load_critical_ratio
(3.0).
.SS process
.TP
.B show_kernel_threads
Include kernel threads in the process table. Default: false.
.TP
.B filter
Initial substring filter for the process tab.
.TP
.B sort_by
Initial sort column: "cpu" (default), "mem", "pid", or "name".
.SS collectors
.PP
Seven domain collectors can be toggled independently:
.BR database ,
.BR apm ,
.BR iot ,
.BR backup ,
.BR security ,
.BR logwatch ,
and
.BR fsintegrity .
Each block has
.BR enabled ,
.BR interval ,
and
.B timeout
keys plus collector\-specific settings such as
.BR database.max_connections ,
.BR backup.destinations ,
.BR logwatch.files ,
and
.BR fsintegrity.paths .
.SS export
.TP
.B directory
Directory that receives export files. Empty means the current working
directory.
.TP
.B format
Default export format: "json" (default) or "csv".
.SS ui
.TP
.B theme
TUI theme preset: "default", "dark", "gruvbox", "dracula", or
"solarized".
.TP
.B confirm_kill
Ask for confirmation before signaling a process from the TUI.
Default: true.
`)
}

func writePromptIntegration(b *strings.Builder) {
	b.WriteString(`.SH PROMPT INTEGRATION
The \fB\-line\fR mode prints a compact one\-line summary (CPU, memory,
load, health badge) with no trailing newline, designed to be embedded in
a shell prompt segment.
.SS Starship
.nf
proc\-pulse \-starship >> ~/.config/starship.toml
.fi
.PP
The generated snippet defines a
.B custom.procpulse
module that runs
.B proc\-pulse \-line
and renders its output in the prompt. Reference it as
${custom.procpulse} in the Starship format string.
.SS Other prompts
.nf
PS1='$(proc\-pulse \-line) \\$ '
.fi
.PP
Any prompt system that can run a command substitution can embed the
statusline directly.
`)
}

func writeFiles(b *strings.Builder) {
	b.WriteString(`.SH FILES
.TP
.I ~/.config/proc\-pulse/config.yaml
Primary configuration file (YAML).
.TP
.I procpulse_export_<timestamp>.json
Snapshot export written by \fB\-export\fR or the TUI export key, placed
in the configured export directory (CSV exports use the \fB.csv\fR
suffix).
.TP
.I general.log_file
Optional log file path from the configuration; no log file is written
unless one is configured.
`)
}

func writeExamples(b *strings.Builder) {
	b.WriteString(`.SH EXAMPLES
Launch the interactive dashboard:
.PP
.nf
proc\-pulse
.fi
.PP
Launch with a different theme and a pre\-applied process filter:
.PP
.nf
proc\-pulse \-theme gruvbox \-filter nginx
.fi
.PP
Print a one\-shot report:
.PP
.nf
proc\-pulse \-once
proc\-pulse \-once \-json > snapshot.json
.fi
.PP
Print a prompt statusline:
.PP
.nf
proc\-pulse \-line
.fi
.PP
Export a snapshot as CSV:
.PP
.nf
proc\-pulse \-export \-format csv
.fi
.PP
View keybindings:
.PP
.nf
proc\-pulse \-keys
proc\-pulse \-keys \-mode tui
proc\-pulse \-keys \-format json
.fi
.PP
Check what works in this environment:
.PP
.nf
proc\-pulse \-diagnose
.fi
.PP
View this man page:
.PP
.nf
proc\-pulse \-man | man \-l \-
.fi
.PP
Install the man page permanently:
.PP
.nf
proc\-pulse \-man > ~/.local/share/man/man1/proc\-pulse.1
.fi
`)
}

func writeEnvironment(b *strings.Builder) {
	b.WriteString(`.SH ENVIRONMENT
.TP
.B PROC_PULSE_CONFIG
Override path to the configuration file.
.TP
.B NO_COLOR
Disable all color output.
.TP
.B COLUMNS
Terminal width fallback for the \fB\-once\fR report when stdout is not
a terminal.
`)
}

func writeExitStatus(b *strings.Builder) {
	b.WriteString(".SH EXIT STATUS\n")
	b.WriteString(".TP\n.B 0\n")
	b.WriteString("Success.\n")
	b.WriteString(".TP\n.B 1\n")
	b.WriteString("Failure: invalid configuration, sampling error, or TUI error.\n")
}

func writeSeeAlso(b *strings.Builder) {
	b.WriteString(`.SH SEE ALSO
.BR top (1),
.BR htop (1),
.BR ps (1),
.BR kill (1),
.BR starship (1),
.BR proc (5)
`)
}

func writeAuthors(b *strings.Builder) {
	b.WriteString(`.SH AUTHORS
Tinyland Lab <https://gitlab.com/tinyland/lab>
`)
}

func writeBugs(b *strings.Builder) {
	b.WriteString(`.SH BUGS
Report bugs at <https://gitlab.com/tinyland/lab/proc\-pulse/\-/issues>.
`)
}

func writeFooter(b *strings.Builder, version, commit, date string) {
	fmt.Fprintf(b, ".SH VERSION\n%s (%s) built %s\n", version, commit, date)
}

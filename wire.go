package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"gitlab.com/tinyland/lab/proc-pulse/anomaly"
	"gitlab.com/tinyland/lab/proc-pulse/collectors"
	"gitlab.com/tinyland/lab/proc-pulse/collectors/apm"
	"gitlab.com/tinyland/lab/proc-pulse/collectors/backup"
	"gitlab.com/tinyland/lab/proc-pulse/collectors/database"
	"gitlab.com/tinyland/lab/proc-pulse/collectors/fsintegrity"
	"gitlab.com/tinyland/lab/proc-pulse/collectors/iot"
	"gitlab.com/tinyland/lab/proc-pulse/collectors/logwatch"
	"gitlab.com/tinyland/lab/proc-pulse/collectors/security"
	"gitlab.com/tinyland/lab/proc-pulse/config"
	"gitlab.com/tinyland/lab/proc-pulse/display/statusline"
	"gitlab.com/tinyland/lab/proc-pulse/engine"
	"gitlab.com/tinyland/lab/proc-pulse/sampler"
	"gitlab.com/tinyland/lab/proc-pulse/status"
)

// burstInterval is the fast tick used by one-shot modes: two ticks prime
// CPU deltas and transfer rates without making the user wait out the
// configured interval.
const burstInterval = 300 * time.Millisecond

// setupLogger builds the process logger. A configured log file wins; in
// TUI mode without one, logs are discarded so they cannot corrupt the
// alternate screen.
func setupLogger(cfg *config.Config, tuiMode bool) (*slog.Logger, func(), error) {
	level := slog.LevelInfo
	if cfg.General.Verbose {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}

	if cfg.General.LogFile != "" {
		f, err := os.OpenFile(cfg.General.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, err
		}
		return slog.New(slog.NewTextHandler(f, opts)), func() { f.Close() }, nil
	}

	if tuiMode {
		return slog.New(slog.NewTextHandler(io.Discard, opts)), func() {}, nil
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts)), func() {}, nil
}

// parseDuration returns the parsed duration, or fallback when the value
// is empty or not positive. Validate has already rejected malformed
// values in loaded configs.
func parseDuration(value string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

// engineOptions maps the file config onto engine options.
func engineOptions(cfg *config.Config) engine.Options {
	return engine.Options{
		Interval:   parseDuration(cfg.General.Interval, engine.DefaultInterval),
		Retention:  parseDuration(cfg.History.Retention, engine.DefaultRetention),
		ProcPoints: cfg.History.ProcessPoints,
		Anomaly: anomaly.Config{
			SpikeSensitivity: cfg.Anomaly.SpikeSensitivity,
			MinSamples:       cfg.Anomaly.MinSamples,
			SlopeWindow:      cfg.Anomaly.SlopeWindow,
			GrowthTicks:      cfg.Anomaly.GrowthTicks,
		},
		Status: evaluatorConfig(cfg),
	}
}

// evaluatorConfig maps the thresholds block onto the status evaluator,
// keeping evaluator defaults for anything the file leaves at zero.
func evaluatorConfig(cfg *config.Config) status.EvaluatorConfig {
	sc := status.DefaultEvaluatorConfig()
	t := cfg.Thresholds

	if t.CPUWarning > 0 {
		sc.CPUWarningPercent = t.CPUWarning
	}
	if t.CPUCritical > 0 {
		sc.CPUCriticalPercent = t.CPUCritical
	}
	if t.MemoryWarning > 0 {
		sc.MemoryWarningPercent = t.MemoryWarning
	}
	if t.MemoryCritical > 0 {
		sc.MemoryCriticalPercent = t.MemoryCritical
	}
	if t.SwapWarning > 0 {
		sc.SwapWarningPercent = t.SwapWarning
	}
	if t.SwapCritical > 0 {
		sc.SwapCriticalPercent = t.SwapCritical
	}
	if t.DiskWarning > 0 {
		sc.DiskWarningPercent = t.DiskWarning
	}
	if t.DiskCritical > 0 {
		sc.DiskCriticalPercent = t.DiskCritical
	}
	if t.LoadWarningRatio > 0 {
		sc.LoadWarningRatio = t.LoadWarningRatio
	}
	if t.LoadCriticalRatio > 0 {
		sc.LoadCriticalRatio = t.LoadCriticalRatio
	}
	return sc
}

// buildCollectors instantiates every collector the config enables.
func buildCollectors(cfg *config.Config, logger *slog.Logger) []collectors.Collector {
	cc := cfg.Collectors
	var cols []collectors.Collector

	if cc.Database.Enabled {
		cols = append(cols, database.New(database.Config{
			Interval:       parseDuration(cc.Database.Interval, 0),
			Timeout:        parseDuration(cc.Database.Timeout, 0),
			MaxConnections: cc.Database.MaxConnections,
		}, logger))
	}
	if cc.APM.Enabled {
		cols = append(cols, apm.New(apm.Config{
			Interval:    parseDuration(cc.APM.Interval, 0),
			Timeout:     parseDuration(cc.APM.Timeout, 0),
			MemoryAlert: int64(cc.APM.MemoryAlertMB) << 20,
		}, logger))
	}
	if cc.IoT.Enabled {
		cols = append(cols, iot.New(iot.Config{
			Interval:   parseDuration(cc.IoT.Interval, 0),
			Timeout:    parseDuration(cc.IoT.Timeout, 0),
			ProbePorts: cc.IoT.ProbePorts,
		}, logger))
	}
	if cc.Backup.Enabled {
		cols = append(cols, backup.New(backup.Config{
			Interval:       parseDuration(cc.Backup.Interval, 0),
			Timeout:        parseDuration(cc.Backup.Timeout, 0),
			Destinations:   cc.Backup.Destinations,
			MinFreePercent: cc.Backup.MinFreePercent,
		}, logger))
	}
	if cc.Security.Enabled {
		cols = append(cols, security.New(security.Config{
			Interval:   parseDuration(cc.Security.Interval, 0),
			Timeout:    parseDuration(cc.Security.Timeout, 0),
			ExtraNames: cc.Security.ExtraNames,
		}, logger))
	}
	if cc.Logwatch.Enabled {
		cols = append(cols, logwatch.New(logwatch.Config{
			Interval: parseDuration(cc.Logwatch.Interval, 0),
			Timeout:  parseDuration(cc.Logwatch.Timeout, 0),
			Files:    cc.Logwatch.Files,
			MaxBytes: cc.Logwatch.MaxBytes,
		}, logger))
	}
	if cc.FSIntegrity.Enabled {
		cols = append(cols, fsintegrity.New(fsintegrity.Config{
			Interval: parseDuration(cc.FSIntegrity.Interval, 0),
			Timeout:  parseDuration(cc.FSIntegrity.Timeout, 0),
			Paths:    cc.FSIntegrity.Paths,
		}, logger))
	}

	return cols
}

// collectSnapshot stands the engine up just long enough for two ticks,
// then tears it down and returns the snapshot. Two ticks mean CPU
// percentages and transfer rates carry real deltas.
func collectSnapshot(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*engine.Snapshot, error) {
	opts := engineOptions(cfg)
	opts.Interval = burstInterval

	eng := engine.New(opts, logger)
	for _, c := range buildCollectors(cfg, logger) {
		eng.Register(c)
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- eng.Run(runCtx) }()

	deadline := time.After(10 * time.Second)
	for ticks := 0; ticks < 2; {
		select {
		case <-eng.Updates():
			ticks++
		case err := <-done:
			return nil, err
		case <-deadline:
			cancel()
			<-done
			return nil, fmt.Errorf("timed out waiting for samples")
		}
	}

	cancel()
	<-done

	snap := eng.Snapshot()
	if snap == nil {
		return nil, fmt.Errorf("no snapshot produced")
	}
	return snap, nil
}

// runLine prints the prompt statusline. It polls the sampler twice,
// briefly, instead of standing up the whole engine: prompt segments need
// an answer in well under a second.
func runLine(ctx context.Context, cfg *config.Config) error {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s := sampler.New(logger)

	if _, err := s.Poll(ctx); err != nil {
		return err
	}
	select {
	case <-time.After(250 * time.Millisecond):
	case <-ctx.Done():
		return ctx.Err()
	}
	sample, err := s.Poll(ctx)
	if err != nil {
		return err
	}

	eval := status.NewEvaluator(evaluatorConfig(cfg))
	snap := &engine.Snapshot{
		TakenAt:   sample.At,
		System:    sample.System,
		Processes: sample.Processes,
		Health:    eval.Evaluate(&sample.System, nil, nil),
	}

	fmt.Print(statusline.Line(snap))
	return nil
}

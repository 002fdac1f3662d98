// Command simulate runs one session headless with a simulated participant.
// The session itself is configured the same way as the server binary
// (defaults -> CADENCE_CONFIG file -> CADENCE_ env); flags configure only the
// participant model and the virtual clock.
package main

import (
	"context"
	"flag"
	"os"
	"time"

	service "github.com/okian/cadence/internal/app"
	"github.com/okian/cadence/internal/config"
	"github.com/okian/cadence/internal/simulate"
	"github.com/okian/cadence/pkg/logger"
)

const runTimeout = 10 * time.Minute

func main() {
	defaults := simulate.DefaultConfig()
	var (
		seed         = flag.Int64("seed", defaults.Seed, "Participant randomness seed")
		accuracy     = flag.Float64("accuracy", defaults.Accuracy, "Probability an answered task is answered correctly")
		responseRate = flag.Float64("response-rate", defaults.ResponseRate, "Probability a task is answered at all")
		meanRT       = flag.Int64("mean-rt", defaults.MeanRTMS, "Mean reaction time in milliseconds")
		rtJitter     = flag.Int64("rt-jitter", defaults.RTJitterMS, "Uniform reaction time jitter in milliseconds")
		tickStep     = flag.Int64("tick", defaults.TickStepMS, "Virtual clock step in milliseconds")
		maxDuration  = flag.Int64("max-duration", defaults.MaxDurationMS, "Virtual time budget in milliseconds")
	)
	flag.Parse()

	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	log := logger.Get()

	ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
	defer cancel()

	cfg, err := config.Load(ctx)
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		_ = logger.SetLevelString("info")
	}

	svc := service.New(
		service.WithLogger(log),
		service.WithSessionID(cfg.SessionID),
		service.WithSeed(cfg.Seed),
		service.WithMode(cfg.Mode),
		service.WithBatches(cfg.BatchSize, cfg.TotalBatches),
		service.WithInterTaskPause(cfg.InterTaskPauseMS),
		service.WithResume(cfg.Resume),
		service.WithDifficulty(cfg.Difficulty),
		service.WithLevels(cfg.Levels),
		service.WithPolicyPath(cfg.PolicyPath),
		service.WithSinkPath(cfg.SinkPath),
		service.WithSnapshotPath(cfg.SnapshotPath),
		service.WithTelemetryEndpoint(cfg.TelemetryEndpoint, cfg.TelemetryAPIKey),
	)
	if err := svc.Start(ctx); err != nil {
		os.Stderr.WriteString("failed to start service: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer svc.Stop()

	runner, err := simulate.New(svc, &simulate.Config{
		Seed:          *seed,
		Accuracy:      *accuracy,
		ResponseRate:  *responseRate,
		MeanRTMS:      *meanRT,
		RTJitterMS:    *rtJitter,
		TickStepMS:    *tickStep,
		MaxDurationMS: *maxDuration,
	})
	if err != nil {
		os.Stderr.WriteString("invalid simulation config: " + err.Error() + "\n")
		os.Exit(1)
	}

	stats, err := runner.Run(ctx)
	if err != nil {
		os.Stderr.WriteString("simulation failed: " + err.Error() + "\n")
		os.Exit(1)
	}

	log.Info(ctx, "simulation complete",
		logger.String("session_id", stats.Summary.SessionID),
		logger.Int("total_tasks", stats.Summary.TotalTasks),
		logger.Float64("accuracy_total", stats.Summary.Accuracy),
		logger.Float64("zone_quality", stats.Summary.ZoneQuality),
		logger.Int("responses_sent", stats.ResponsesSent),
		logger.Int("virtual_ms", int(stats.DurationMS)))
}

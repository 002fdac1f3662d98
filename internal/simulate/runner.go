package simulate

import (
	"context"
	"fmt"
	"math/rand"

	service "github.com/okian/cadence/internal/app"
	"github.com/okian/cadence/internal/domain/model"
	"github.com/okian/cadence/internal/engine/progression"
	"github.com/okian/cadence/pkg/logger"
)

// Stats summarizes one simulated run.
type Stats struct {
	Ticks         int
	ResponsesSent int
	DurationMS    int64
	Summary       model.SessionSummary
}

// Runner drives a started session with a simulated participant on a virtual
// clock. The session service must already be started.
type Runner struct {
	svc  *service.Service
	cfg  *Config
	part *participant
	log  logger.Logger
}

// New builds a runner for svc.
func New(svc *service.Service, cfg *Config) (*Runner, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Runner{
		svc:  svc,
		cfg:  cfg,
		part: newParticipant(cfg, rand.New(rand.NewSource(cfg.Seed))),
		log:  logger.Named("simulate"),
	}, nil
}

// Run advances the virtual clock until the session completes. Pauses raised
// by the progression (level-up holds) are continued automatically; a headless
// run has nobody to press the button.
func (r *Runner) Run(ctx context.Context) (*Stats, error) {
	stats := &Stats{}

	r.log.Info(ctx, "simulation started",
		logger.Float64("accuracy", r.cfg.Accuracy),
		logger.Float64("response_rate", r.cfg.ResponseRate),
		logger.Int("mean_rt_ms", int(r.cfg.MeanRTMS)))

	for now := int64(0); now <= r.cfg.MaxDurationMS; now += r.cfg.TickStepMS {
		if err := ctx.Err(); err != nil {
			return stats, fmt.Errorf("simulation canceled: %w", err)
		}

		if err := r.svc.Tick(ctx, now); err != nil {
			return stats, fmt.Errorf("tick at %dms: %w", now, err)
		}
		stats.Ticks++
		stats.DurationMS = now

		if r.svc.Done() {
			summary, ok := r.svc.Summary()
			if !ok {
				return stats, fmt.Errorf("session complete without a summary")
			}
			stats.Summary = summary
			r.log.Info(ctx, "simulation finished",
				logger.Int("ticks", stats.Ticks),
				logger.Int("responses", stats.ResponsesSent),
				logger.Float64("accuracy_total", summary.Accuracy))
			return stats, nil
		}

		if r.svc.Phase() == progression.PhasePaused {
			if err := r.svc.Continue(); err != nil {
				return stats, fmt.Errorf("auto-continue: %w", err)
			}
			continue
		}

		if t, ok := r.svc.Focused(); ok {
			if resp, due := r.part.react(t, now); due {
				if err := r.svc.HandleResponse(ctx, resp); err != nil {
					return stats, fmt.Errorf("response at %dms: %w", now, err)
				}
				stats.ResponsesSent++
			}
		}
	}

	return stats, ErrDeadlineExceeded
}

package service

import (
	"context"
	"fmt"
	"time"

	"github.com/okian/cadence/internal/domain/model"
	"github.com/okian/cadence/pkg/logger"
)

const defaultTickInterval = 50 * time.Millisecond

// Driver runs a Service against the wall clock. The engine itself only
// understands millisecond timestamps; the driver anchors them at its own
// creation time so an HTTP response and the tick loop share one clock.
type Driver struct {
	svc      *Service
	interval time.Duration
	start    time.Time
	log      logger.Logger
}

// NewDriver creates a driver ticking svc every interval. A non-positive
// interval falls back to the default.
func NewDriver(svc *Service, interval time.Duration) *Driver {
	if interval <= 0 {
		interval = defaultTickInterval
	}
	return &Driver{
		svc:      svc,
		interval: interval,
		start:    time.Now(),
		log:      logger.Named("driver"),
	}
}

func (d *Driver) nowMS() int64 {
	return time.Since(d.start).Milliseconds()
}

// Run ticks the session until it completes or ctx is canceled.
func (d *Driver) Run(ctx context.Context) error {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	d.log.Info(ctx, "driver started", logger.String("interval", d.interval.String()))
	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("driver stopped: %w", ctx.Err())
		case <-ticker.C:
			if err := d.svc.Tick(ctx, d.nowMS()); err != nil {
				return fmt.Errorf("tick failed: %w", err)
			}
			if d.svc.Done() {
				d.log.Info(ctx, "session complete")
				return nil
			}
		}
	}
}

// Respond stamps a participant response with the driver clock and routes it
// to the session.
func (d *Driver) Respond(ctx context.Context, sym model.Symbol) error {
	return d.svc.HandleResponse(ctx, model.Response{Symbol: sym, AtMS: d.nowMS()})
}

// Pause suspends the running batch.
func (d *Driver) Pause() error { return d.svc.Pause() }

// Continue resumes a paused or batch-complete session.
func (d *Driver) Continue() error { return d.svc.Continue() }

// Summary exposes the final report once the session is complete.
func (d *Driver) Summary() (model.SessionSummary, bool) { return d.svc.Summary() }

// GetStats exposes service statistics for the stats endpoint.
func (d *Driver) GetStats() map[string]interface{} { return d.svc.GetStats() }

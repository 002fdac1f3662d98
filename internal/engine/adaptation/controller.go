package adaptation

import (
	"context"
	"fmt"

	"github.com/okian/cadence/internal/domain/difficulty"
	"github.com/okian/cadence/internal/domain/model"
	"github.com/okian/cadence/pkg/logger"
	"github.com/okian/cadence/pkg/metrics"
)

// Controller applies the active strategy on the window cadence: it adapts
// only once the rolling window is full, and then only every CheckEvery
// completions. The caller owns LevelState and threads it through by value.
type Controller struct {
	lc       difficulty.LevelConfig
	strategy Strategy
	log      logger.Logger

	window []model.TaskResult
	seen   int
	step   int
}

// NewController builds a controller around the given strategy.
func NewController(lc difficulty.LevelConfig, strategy Strategy, opts ...ControllerOption) (*Controller, error) {
	if err := lc.Validate(); err != nil {
		return nil, fmt.Errorf("controller config: %w", err)
	}
	if strategy == nil {
		return nil, fmt.Errorf("controller config: %w", ErrNilStrategy)
	}

	c := &Controller{
		lc:       lc,
		strategy: strategy,
		log:      logger.Named("adaptation"),
		window:   make([]model.TaskResult, 0, lc.WindowSize),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// ControllerOption configures the controller.
type ControllerOption func(*Controller)

// WithLogger sets the logger.
func WithLogger(log logger.Logger) ControllerOption {
	return func(c *Controller) {
		if log != nil {
			c.log = log
		}
	}
}

// Step returns the number of adaptation steps taken so far.
func (c *Controller) Step() int { return c.step }

// Restore rewinds the step counter after a session resume.
func (c *Controller) Restore(step int) {
	if step < 0 {
		step = 0
	}
	c.step = step
}

// Observe folds one completed task into the rolling window. On the cadence
// boundary it runs the strategy and returns the new level state together with
// a log record; off the boundary it returns the state unchanged and nil.
func (c *Controller) Observe(ctx context.Context, result model.TaskResult, state model.LevelState, g difficulty.Global) (model.LevelState, *model.AdaptationRecord) {
	c.window = append(c.window, result)
	if len(c.window) > c.lc.WindowSize {
		c.window = c.window[1:]
	}
	c.seen++

	if len(c.window) < c.lc.WindowSize || c.seen%c.lc.CheckEvery != 0 {
		return state, nil
	}

	sum := Summarize(c.window)
	vec := StateVector(sum, state.Level, g)
	decision := c.strategy.Decide(ctx, vec, sum)
	reward := Reward(sum)

	next := model.LevelState{
		Level:       c.lc.ClampLevel(state.Level + decision.DeltaLevel),
		TempoOffset: difficulty.ClampTempo(state.TempoOffset + decision.DeltaTempo),
	}

	c.step++
	rec := &model.AdaptationRecord{
		Step:        c.step,
		State:       vec,
		ActionID:    decision.ActionID,
		DeltaLevel:  decision.DeltaLevel,
		DeltaTempo:  decision.DeltaTempo,
		Reward:      reward,
		Level:       next.Level,
		TempoOffset: next.TempoOffset,
		Strategy:    c.strategy.Name(),
		Degraded:    decision.Degraded,
	}

	metrics.RecordAdaptationStep()
	metrics.RecordAdaptationReward(reward)
	if decision.Degraded {
		metrics.RecordPolicyDegraded()
	}
	metrics.UpdateLevel(next.Level)
	metrics.UpdateTempoOffset(next.TempoOffset)

	c.log.Debug(ctx, "adaptation step",
		logger.Int("step", c.step),
		logger.Int("action_id", decision.ActionID),
		logger.Int("level", next.Level),
		logger.Int("tempo_offset", next.TempoOffset),
		logger.Float64("reward", reward),
		logger.String("strategy", c.strategy.Name()))
	return next, rec
}

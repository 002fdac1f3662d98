// Package simulate runs a session headless against a stochastic participant
// model, replacing the renderer with a virtual clock. Runs are deterministic
// for a given seed and session configuration.
package simulate

import "fmt"

// Default participant model parameters.
const (
	defaultAccuracy      = 0.85
	defaultResponseRate  = 0.95
	defaultMeanRTMS      = 900
	defaultRTJitterMS    = 350
	defaultTickStepMS    = 50
	defaultMaxDurationMS = 30 * 60 * 1000
)

// Config holds the participant model and virtual-clock parameters.
type Config struct {
	Seed          int64   // participant randomness, independent of the engine seed
	Accuracy      float64 // probability an answered task is answered correctly
	ResponseRate  float64 // probability a task is answered at all
	MeanRTMS      int64   // center of the reaction time distribution
	RTJitterMS    int64   // uniform jitter around the mean
	TickStepMS    int64   // virtual clock step per tick
	MaxDurationMS int64   // hard stop for runaway sessions
}

// DefaultConfig returns a competent but imperfect participant.
func DefaultConfig() *Config {
	return &Config{
		Seed:          1,
		Accuracy:      defaultAccuracy,
		ResponseRate:  defaultResponseRate,
		MeanRTMS:      defaultMeanRTMS,
		RTJitterMS:    defaultRTJitterMS,
		TickStepMS:    defaultTickStepMS,
		MaxDurationMS: defaultMaxDurationMS,
	}
}

// Validate checks the parameters are usable.
func (c *Config) Validate() error {
	switch {
	case c.Accuracy < 0 || c.Accuracy > 1:
		return fmt.Errorf("%w: accuracy %v out of [0,1]", ErrInvalidConfig, c.Accuracy)
	case c.ResponseRate < 0 || c.ResponseRate > 1:
		return fmt.Errorf("%w: response rate %v out of [0,1]", ErrInvalidConfig, c.ResponseRate)
	case c.MeanRTMS <= 0:
		return fmt.Errorf("%w: mean reaction time must be positive", ErrInvalidConfig)
	case c.RTJitterMS < 0:
		return fmt.Errorf("%w: reaction time jitter must be non-negative", ErrInvalidConfig)
	case c.TickStepMS <= 0:
		return fmt.Errorf("%w: tick step must be positive", ErrInvalidConfig)
	case c.MaxDurationMS <= 0:
		return fmt.Errorf("%w: max duration must be positive", ErrInvalidConfig)
	}
	return nil
}

package scheduler

import (
	"math/rand"

	"github.com/okian/cadence/internal/domain/task"
	"github.com/okian/cadence/pkg/logger"
)

// Option configures the scheduler.
type Option func(*Scheduler)

// WithTotalTasks sets the batch quota: the scheduler stops spawning once this
// many tasks have been created.
func WithTotalTasks(n int) Option {
	return func(s *Scheduler) {
		if n > 0 {
			s.totalTasks = n
		}
	}
}

// WithInterTaskPause sets the cooldown pushed after every retirement, in
// milliseconds.
func WithInterTaskPause(ms int64) Option {
	return func(s *Scheduler) {
		if ms >= 0 {
			s.interTaskPauseMS = ms
		}
	}
}

// WithSeed seeds the scheduler's random source. The same seed and the same
// ordered responses replay the same batch.
func WithSeed(seed int64) Option {
	return func(s *Scheduler) {
		s.rng = rand.New(rand.NewSource(seed))
	}
}

// WithRand supplies a shared random source, letting several batches draw from
// one deterministic stream.
func WithRand(rng *rand.Rand) Option {
	return func(s *Scheduler) {
		if rng != nil {
			s.rng = rng
		}
	}
}

// WithSpawnCursor anchors the spawn interval at a mid-session timestamp, so a
// batch starting later in the session does not treat the elapsed time as a
// spawn window already served.
func WithSpawnCursor(ms int64) Option {
	return func(s *Scheduler) {
		if ms > 0 {
			s.lastSpawnMS = ms
		}
	}
}

// WithInitialRule carries the rule-switch rule over from a previous batch.
func WithInitialRule(rule string) Option {
	return func(s *Scheduler) {
		if rule == task.RuleColor || rule == task.RuleShape {
			s.rule = rule
		}
	}
}

// WithLogger sets the logger.
func WithLogger(log logger.Logger) Option {
	return func(s *Scheduler) {
		if log != nil {
			s.log = log
		}
	}
}

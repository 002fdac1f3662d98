// Package progression groups tasks into fixed-size batches and moves the
// coarse difficulty level between them. It also owns the session state
// machine: a session runs batch after batch, optionally pausing after a
// level-up, until the configured number of batches completes.
package progression

import (
	"context"
	"fmt"

	"github.com/okian/cadence/internal/domain/difficulty"
	"github.com/okian/cadence/internal/domain/model"
	"github.com/okian/cadence/pkg/logger"
	"github.com/okian/cadence/pkg/metrics"
)

// Phase is the session state machine position.
type Phase string

// Session phases.
const (
	PhaseAwaitingStart   Phase = "awaiting_start"
	PhaseRunning         Phase = "running"
	PhaseBatchComplete   Phase = "batch_complete"
	PhasePaused          Phase = "paused"
	PhaseSessionComplete Phase = "session_complete"
)

// Outcome classifies one batch evaluation.
type Outcome string

// Batch outcomes. A restart is distinct from a hold: the participant never
// answered, so no adaptation ran and the batch is replayed.
const (
	OutcomeLevelUp   Outcome = "level_up"
	OutcomeLevelDown Outcome = "level_down"
	OutcomeHold      Outcome = "hold"
	OutcomeTempoUp   Outcome = "tempo_up"
	OutcomeRestart   Outcome = "restart"
)

// BatchStats is the batch tally consumed by the evaluation.
type BatchStats struct {
	Total    int
	Answered int
	Correct  int
}

// Progression owns the level between batches and the session phase.
type Progression struct {
	lc             difficulty.LevelConfig
	mode           string
	pauseOnLevelUp bool
	log            logger.Logger

	phase      Phase
	batchIndex int
}

// New builds a progression in the given strategy mode.
func New(lc difficulty.LevelConfig, mode string, opts ...Option) (*Progression, error) {
	if err := lc.Validate(); err != nil {
		return nil, fmt.Errorf("progression config: %w", err)
	}
	if mode != model.StrategyHeuristic && mode != model.StrategyPolicy {
		return nil, fmt.Errorf("%w: %q", ErrUnknownMode, mode)
	}

	p := &Progression{
		lc:    lc,
		mode:  mode,
		log:   logger.Named("progression"),
		phase: PhaseAwaitingStart,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Option configures the progression.
type Option func(*Progression)

// WithPauseOnLevelUp inserts a pause phase after every level-up batch.
func WithPauseOnLevelUp(pause bool) Option {
	return func(p *Progression) { p.pauseOnLevelUp = pause }
}

// WithLogger sets the logger.
func WithLogger(log logger.Logger) Option {
	return func(p *Progression) {
		if log != nil {
			p.log = log
		}
	}
}

// Phase returns the current session phase.
func (p *Progression) Phase() Phase { return p.phase }

// BatchIndex returns the number of batches evaluated so far. A restarted
// batch does not advance it.
func (p *Progression) BatchIndex() int { return p.batchIndex }

// Restore rewinds the batch index after a session resume.
func (p *Progression) Restore(batchIndex int) {
	if batchIndex < 0 {
		batchIndex = 0
	}
	p.batchIndex = batchIndex
}

// Start moves the session into its first running batch.
func (p *Progression) Start() error {
	if p.phase != PhaseAwaitingStart {
		return fmt.Errorf("%w: start from %s", ErrInvalidTransition, p.phase)
	}
	p.phase = PhaseRunning
	metrics.RecordBatchStarted()
	return nil
}

// Pause suspends a running batch on explicit request.
func (p *Progression) Pause() error {
	if p.phase != PhaseRunning {
		return fmt.Errorf("%w: pause from %s", ErrInvalidTransition, p.phase)
	}
	p.phase = PhasePaused
	return nil
}

// Continue resumes into the next (or restarted, or explicitly paused) batch.
func (p *Progression) Continue() error {
	if p.phase != PhaseBatchComplete && p.phase != PhasePaused {
		return fmt.Errorf("%w: continue from %s", ErrInvalidTransition, p.phase)
	}
	p.phase = PhaseRunning
	metrics.RecordBatchStarted()
	return nil
}

// Complete ends the session. Terminal; a new session needs a new Progression.
func (p *Progression) Complete() error {
	if p.phase == PhaseSessionComplete {
		return fmt.Errorf("%w: session already complete", ErrInvalidTransition)
	}
	p.phase = PhaseSessionComplete
	return nil
}

// Evaluate closes the running batch: it classifies the tally, applies the
// level rule for the active mode, and parks the session in the batch-complete
// (or paused) phase. The returned state is a fresh value; the input is never
// mutated.
func (p *Progression) Evaluate(ctx context.Context, stats BatchStats, state model.LevelState) (model.LevelState, Outcome, error) {
	if p.phase != PhaseRunning {
		return state, OutcomeHold, fmt.Errorf("%w: evaluate from %s", ErrInvalidTransition, p.phase)
	}

	next, outcome := p.apply(stats, state)

	if outcome == OutcomeRestart {
		// The participant was idle for the whole batch: replay it without an
		// adaptation step and without advancing the batch index.
		p.phase = PhaseBatchComplete
	} else {
		p.batchIndex++
		p.phase = PhaseBatchComplete
		if outcome == OutcomeLevelUp && p.pauseOnLevelUp {
			p.phase = PhasePaused
		}
	}

	metrics.RecordBatchOutcome(string(outcome))
	metrics.UpdateLevel(next.Level)
	metrics.UpdateTempoOffset(next.TempoOffset)
	p.log.Info(ctx, "batch evaluated",
		logger.Int("batch_index", p.batchIndex),
		logger.String("outcome", string(outcome)),
		logger.Int("level", next.Level),
		logger.Int("tempo_offset", next.TempoOffset),
		logger.Int("answered", stats.Answered),
		logger.Int("correct", stats.Correct))
	return next, outcome, nil
}

func (p *Progression) apply(stats BatchStats, state model.LevelState) (model.LevelState, Outcome) {
	if stats.Answered == 0 {
		return state, OutcomeRestart
	}

	if p.mode == model.StrategyHeuristic {
		// Heuristic batches only ever step up, on raw correct count.
		if stats.Correct >= p.lc.BaselineRequiredCorrect && state.Level < p.lc.MaxLevel {
			state.Level++
			return state, OutcomeLevelUp
		}
		return state, OutcomeHold
	}

	rate := float64(stats.Answered) / float64(stats.Total)
	accuracy := float64(stats.Correct) / float64(stats.Answered)

	switch {
	case rate >= p.lc.BatchUpRate && accuracy >= p.lc.BatchUpAccuracy:
		if state.Level < p.lc.MaxLevel {
			state.Level++
			return state, OutcomeLevelUp
		}
		// At the level ceiling an up-trigger spills into tempo, never both.
		if state.TempoOffset < difficulty.MaxTempoOffset {
			state.TempoOffset++
			return state, OutcomeTempoUp
		}
		return state, OutcomeHold

	case rate < p.lc.BatchDownRate || accuracy < p.lc.BatchDownAccuracy:
		if state.Level > p.lc.MinLevel {
			state.Level--
			return state, OutcomeLevelDown
		}
		return state, OutcomeHold

	default:
		return state, OutcomeHold
	}
}

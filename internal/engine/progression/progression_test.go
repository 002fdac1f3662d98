package progression

import (
	"context"
	"errors"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/cadence/internal/domain/difficulty"
	"github.com/okian/cadence/internal/domain/model"
	"github.com/okian/cadence/pkg/logger"
)

func init() {
	_ = logger.Init()
}

func running(t *testing.T, mode string, opts ...Option) *Progression {
	t.Helper()
	p, err := New(difficulty.DefaultLevelConfig(), mode, opts...)
	So(err, ShouldBeNil)
	So(p.Start(), ShouldBeNil)
	return p
}

func TestHeuristicBatches(t *testing.T) {
	ctx := context.Background()

	Convey("Given a heuristic-mode progression", t, func() {
		state := model.LevelState{Level: 2}

		Convey("When the batch meets the raw correct threshold", func() {
			p := running(t, model.StrategyHeuristic)
			next, outcome, err := p.Evaluate(ctx, BatchStats{Total: 10, Answered: 10, Correct: 9}, state)

			Convey("Then the level should step up", func() {
				So(err, ShouldBeNil)
				So(outcome, ShouldEqual, OutcomeLevelUp)
				So(next.Level, ShouldEqual, 3)
				So(p.BatchIndex(), ShouldEqual, 1)
			})
		})

		Convey("When the batch misses the threshold badly", func() {
			p := running(t, model.StrategyHeuristic)
			next, outcome, err := p.Evaluate(ctx, BatchStats{Total: 10, Answered: 10, Correct: 2}, state)

			Convey("Then the level should never step down", func() {
				So(err, ShouldBeNil)
				So(outcome, ShouldEqual, OutcomeHold)
				So(next.Level, ShouldEqual, 2)
			})
		})
	})
}

func TestPolicyBatches(t *testing.T) {
	ctx := context.Background()

	Convey("Given a policy-mode progression", t, func() {
		Convey("When answered rate and accuracy both clear the up thresholds", func() {
			p := running(t, model.StrategyPolicy)
			next, outcome, err := p.Evaluate(ctx, BatchStats{Total: 10, Answered: 9, Correct: 8}, model.LevelState{Level: 4})

			So(err, ShouldBeNil)
			So(outcome, ShouldEqual, OutcomeLevelUp)
			So(next.Level, ShouldEqual, 5)
		})

		Convey("When the answered rate collapses", func() {
			p := running(t, model.StrategyPolicy)
			next, outcome, err := p.Evaluate(ctx, BatchStats{Total: 10, Answered: 4, Correct: 4}, model.LevelState{Level: 4})

			So(err, ShouldBeNil)
			So(outcome, ShouldEqual, OutcomeLevelDown)
			So(next.Level, ShouldEqual, 3)
		})

		Convey("When accuracy lands between the thresholds", func() {
			p := running(t, model.StrategyPolicy)
			next, outcome, err := p.Evaluate(ctx, BatchStats{Total: 10, Answered: 8, Correct: 5}, model.LevelState{Level: 4})

			So(err, ShouldBeNil)
			So(outcome, ShouldEqual, OutcomeHold)
			So(next.Level, ShouldEqual, 4)
		})

		Convey("When an up-trigger fires at the level ceiling", func() {
			p := running(t, model.StrategyPolicy)
			state := model.LevelState{Level: 10, TempoOffset: 0}
			next, outcome, err := p.Evaluate(ctx, BatchStats{Total: 10, Answered: 10, Correct: 9}, state)

			Convey("Then tempo should rise instead of level, never both", func() {
				So(err, ShouldBeNil)
				So(outcome, ShouldEqual, OutcomeTempoUp)
				So(next.Level, ShouldEqual, 10)
				So(next.TempoOffset, ShouldEqual, 1)
			})
		})

		Convey("When a down-trigger fires at the level floor", func() {
			p := running(t, model.StrategyPolicy)
			next, outcome, err := p.Evaluate(ctx, BatchStats{Total: 10, Answered: 4, Correct: 1}, model.LevelState{Level: 1})

			So(err, ShouldBeNil)
			So(outcome, ShouldEqual, OutcomeHold)
			So(next.Level, ShouldEqual, 1)
		})
	})
}

func TestIdleBatchRestart(t *testing.T) {
	ctx := context.Background()

	Convey("Given a batch nobody answered", t, func() {
		p := running(t, model.StrategyPolicy)
		state := model.LevelState{Level: 5, TempoOffset: 1}

		Convey("When the batch is evaluated", func() {
			next, outcome, err := p.Evaluate(ctx, BatchStats{Total: 10, Answered: 0, Correct: 0}, state)

			Convey("Then it should restart without adaptation or index advance", func() {
				So(err, ShouldBeNil)
				So(outcome, ShouldEqual, OutcomeRestart)
				So(next, ShouldResemble, state)
				So(p.BatchIndex(), ShouldEqual, 0)
				So(p.Phase(), ShouldEqual, PhaseBatchComplete)
			})
		})
	})
}

func TestSessionStateMachine(t *testing.T) {
	ctx := context.Background()

	Convey("Given a fresh session", t, func() {
		p, err := New(difficulty.DefaultLevelConfig(), model.StrategyPolicy)
		So(err, ShouldBeNil)

		Convey("Then it should await the start", func() {
			So(p.Phase(), ShouldEqual, PhaseAwaitingStart)
		})

		Convey("When the batch cycle runs", func() {
			So(p.Start(), ShouldBeNil)
			So(p.Phase(), ShouldEqual, PhaseRunning)

			_, _, err := p.Evaluate(ctx, BatchStats{Total: 10, Answered: 8, Correct: 5}, model.LevelState{Level: 3})
			So(err, ShouldBeNil)
			So(p.Phase(), ShouldEqual, PhaseBatchComplete)

			So(p.Continue(), ShouldBeNil)
			So(p.Phase(), ShouldEqual, PhaseRunning)

			So(p.Complete(), ShouldBeNil)
			So(p.Phase(), ShouldEqual, PhaseSessionComplete)
		})

		Convey("When a pause is requested mid-batch", func() {
			So(p.Start(), ShouldBeNil)
			So(p.Pause(), ShouldBeNil)
			So(p.Phase(), ShouldEqual, PhasePaused)
			So(p.Continue(), ShouldBeNil)
			So(p.Phase(), ShouldEqual, PhaseRunning)
		})

		Convey("When transitions arrive out of order", func() {
			So(errors.Is(p.Continue(), ErrInvalidTransition), ShouldBeTrue)
			So(errors.Is(p.Pause(), ErrInvalidTransition), ShouldBeTrue)

			So(p.Start(), ShouldBeNil)
			So(errors.Is(p.Start(), ErrInvalidTransition), ShouldBeTrue)
		})

		Convey("When the mode is unknown", func() {
			_, err := New(difficulty.DefaultLevelConfig(), "oracle")

			So(errors.Is(err, ErrUnknownMode), ShouldBeTrue)
		})
	})

	Convey("Given pause-on-level-up enabled", t, func() {
		p, err := New(difficulty.DefaultLevelConfig(), model.StrategyPolicy, WithPauseOnLevelUp(true))
		So(err, ShouldBeNil)
		So(p.Start(), ShouldBeNil)

		Convey("When a level-up batch completes", func() {
			_, outcome, err := p.Evaluate(ctx, BatchStats{Total: 10, Answered: 10, Correct: 9}, model.LevelState{Level: 3})

			Convey("Then the session should pause before the next batch", func() {
				So(err, ShouldBeNil)
				So(outcome, ShouldEqual, OutcomeLevelUp)
				So(p.Phase(), ShouldEqual, PhasePaused)
			})
		})
	})
}

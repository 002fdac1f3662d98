package adaptation

import (
	"context"
	"errors"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/cadence/internal/domain/difficulty"
	"github.com/okian/cadence/internal/domain/model"
	"github.com/okian/cadence/internal/domain/task"
	"github.com/okian/cadence/pkg/logger"
)

func init() {
	_ = logger.Init()
}

func answered(correct bool, rt int64) model.TaskResult {
	return model.TaskResult{
		Kind:       model.KindParityCheck,
		Correct:    correct,
		Response:   "yes",
		ReactionMS: rt,
	}
}

func timedOut() model.TaskResult {
	return model.TaskResult{Kind: model.KindParityCheck, Timeout: true}
}

func ruleTrial(rule string, rt int64) model.TaskResult {
	return model.TaskResult{
		Kind:       model.KindRuleSwitch,
		Correct:    true,
		Response:   "left",
		ReactionMS: rt,
		Payload:    map[string]any{task.PayloadRuleKey: rule},
	}
}

func ruleTimeout(rule string) model.TaskResult {
	return model.TaskResult{
		Kind:    model.KindRuleSwitch,
		Timeout: true,
		Payload: map[string]any{task.PayloadRuleKey: rule},
	}
}

func TestSummarize(t *testing.T) {
	Convey("Given a window of mixed results", t, func() {
		window := []model.TaskResult{
			answered(true, 800),
			answered(true, 900),
			answered(false, 1000),
			timedOut(),
		}

		Convey("When the window is summarized", func() {
			sum := Summarize(window)

			Convey("Then the statistics should reflect the window", func() {
				So(sum.Count, ShouldEqual, 4)
				So(sum.Accuracy, ShouldAlmostEqual, 0.5)
				So(sum.MeanRTMS, ShouldAlmostEqual, 900)
				So(sum.StdRTMS, ShouldAlmostEqual, 81.6497, 0.001)
				So(sum.ErrorStreak, ShouldEqual, 2)
				So(sum.FatigueSlope, ShouldAlmostEqual, 100)
			})
		})

		Convey("When the window is empty", func() {
			sum := Summarize(nil)

			Convey("Then everything should be zero", func() {
				So(sum.Count, ShouldEqual, 0)
				So(sum.Accuracy, ShouldEqual, 0)
				So(sum.MeanRTMS, ShouldEqual, 0)
			})
		})
	})

	Convey("Given rule-switch trials with rule changes", t, func() {
		window := []model.TaskResult{
			ruleTrial(task.RuleColor, 600),
			ruleTrial(task.RuleColor, 700),
			ruleTrial(task.RuleShape, 1100),
			ruleTrial(task.RuleShape, 800),
		}

		Convey("When the switch cost is computed", func() {
			sum := Summarize(window)

			Convey("Then changed trials should be compared against unchanged ones", func() {
				// The first trial counts as unchanged.
				// Changed: 1100. Unchanged: 600, 700, 800.
				So(sum.SwitchCostMS, ShouldAlmostEqual, 400)
			})
		})

		Convey("When a timed-out trial sits on the rule boundary", func() {
			sum := Summarize([]model.TaskResult{
				ruleTrial(task.RuleColor, 600),
				ruleTimeout(task.RuleShape),
				ruleTrial(task.RuleShape, 1100),
				ruleTrial(task.RuleShape, 800),
			})

			Convey("Then the unanswered trial should not advance the rule track", func() {
				// Changed: 1100 (vs the answered color trial).
				// Unchanged: 600, 800.
				So(sum.SwitchCostMS, ShouldAlmostEqual, 400)
			})
		})
	})
}

func TestReward(t *testing.T) {
	Convey("Given window summaries", t, func() {
		Convey("When mean RT is under the penalty threshold", func() {
			r := Reward(Summary{Accuracy: 0.9, MeanRTMS: 800})

			So(r, ShouldAlmostEqual, 0.2)
		})

		Convey("When mean RT exceeds the penalty threshold", func() {
			r := Reward(Summary{Accuracy: 0.9, MeanRTMS: 1500})

			So(r, ShouldAlmostEqual, 0.0, 1e-9)
		})
	})
}

func TestStateVector(t *testing.T) {
	Convey("Given a summary and the active global difficulty", t, func() {
		sum := Summary{
			Accuracy:     0.75,
			MeanRTMS:     950,
			StdRTMS:      120,
			ErrorStreak:  1,
			SwitchCostMS: 50,
			FatigueSlope: 12,
		}
		g := difficulty.Global{
			EventRateSec:    4.0,
			ParallelStreams: 2,
			TimePressure:    1.4,
			TaskMix:         []float64{0.24, 0.2, 0.2, 0.18, 0.18},
		}

		Convey("When the state vector is encoded", func() {
			vec := StateVector(sum, 3, g)

			Convey("Then it should have the fixed policy dimension", func() {
				So(vec, ShouldHaveLength, StateDim)
				So(vec[0], ShouldAlmostEqual, 0.75)
				So(vec[6], ShouldAlmostEqual, 3)
				So(vec[7], ShouldAlmostEqual, 4.0)
				So(vec[10], ShouldAlmostEqual, 0.24)
				So(vec[11], ShouldAlmostEqual, 0.2)
			})
		})
	})
}

func TestHeuristicStrategy(t *testing.T) {
	ctx := context.Background()

	Convey("Given the heuristic strategy with default thresholds", t, func() {
		h := NewHeuristic(difficulty.DefaultLevelConfig())

		Convey("When the participant is fast and accurate", func() {
			d := h.Decide(ctx, nil, Summary{Accuracy: 0.9, MeanRTMS: 800})

			Convey("Then tempo should step up and level stay put", func() {
				So(d.DeltaTempo, ShouldEqual, 1)
				So(d.DeltaLevel, ShouldEqual, 0)
				So(d.ActionID, ShouldEqual, 2)
			})
		})

		Convey("When accuracy collapses", func() {
			d := h.Decide(ctx, nil, Summary{Accuracy: 0.5, MeanRTMS: 800})

			So(d.DeltaTempo, ShouldEqual, -1)
		})

		Convey("When reaction times are slow despite good accuracy", func() {
			d := h.Decide(ctx, nil, Summary{Accuracy: 0.9, MeanRTMS: 1800})

			So(d.DeltaTempo, ShouldEqual, -1)
		})

		Convey("When performance sits between the thresholds", func() {
			d := h.Decide(ctx, nil, Summary{Accuracy: 0.75, MeanRTMS: 1200})

			So(d.DeltaTempo, ShouldEqual, 0)
			So(d.Degraded, ShouldBeFalse)
		})
	})
}

type stubDecider struct {
	dim    int
	action int
	err    error
}

func (d *stubDecider) ActionDim() int { return d.dim }

func (d *stubDecider) Decide([]float64) (int, error) { return d.action, d.err }

func TestPolicyStrategy(t *testing.T) {
	ctx := context.Background()
	state := make([]float64, StateDim)

	Convey("Given the policy strategy", t, func() {
		Convey("When the artifact uses the three-action encoding", func() {
			p := NewPolicy(&stubDecider{dim: 3, action: 2}, nil)
			d := p.Decide(ctx, state, Summary{})

			Convey("Then the action should decode to a tempo delta", func() {
				So(d.DeltaTempo, ShouldEqual, 1)
				So(d.DeltaLevel, ShouldEqual, 0)
				So(d.Degraded, ShouldBeFalse)
			})
		})

		Convey("When the artifact uses the legacy nine-action encoding", func() {
			p := NewPolicy(&stubDecider{dim: 9, action: 7}, nil)
			d := p.Decide(ctx, state, Summary{})

			Convey("Then the action should decode to joint deltas", func() {
				So(d.DeltaLevel, ShouldEqual, 1)
				So(d.DeltaTempo, ShouldEqual, 0)
			})
		})

		Convey("When the decider fails", func() {
			p := NewPolicy(&stubDecider{dim: 3, err: errors.New("artifact gone")}, nil)
			d := p.Decide(ctx, state, Summary{})

			Convey("Then the decision should degrade to neutral", func() {
				So(d.Degraded, ShouldBeTrue)
				So(d.DeltaTempo, ShouldEqual, 0)
				So(d.DeltaLevel, ShouldEqual, 0)
			})
		})

		Convey("When no decider is wired at all", func() {
			p := NewPolicy(nil, nil)
			d := p.Decide(ctx, state, Summary{})

			So(d.Degraded, ShouldBeTrue)
		})
	})
}

func TestControllerCadence(t *testing.T) {
	ctx := context.Background()

	Convey("Given a controller on a window cadence", t, func() {
		lc := difficulty.DefaultLevelConfig()
		lc.WindowSize = 4
		lc.CheckEvery = 2

		c, err := NewController(lc, NewHeuristic(lc))
		So(err, ShouldBeNil)

		state := model.LevelState{Level: 1}
		g := difficulty.Default().Global

		Convey("When results stream in", func() {
			var records []*model.AdaptationRecord
			for i := 0; i < 8; i++ {
				var rec *model.AdaptationRecord
				state, rec = c.Observe(ctx, answered(true, 500), state, g)
				if rec != nil {
					records = append(records, rec)
				}
			}

			Convey("Then adaptation should fire only on cadence boundaries", func() {
				// Window fills at the 4th result; checks land on 4, 6 and 8.
				So(records, ShouldHaveLength, 3)
				So(records[0].Step, ShouldEqual, 1)
				So(records[0].Strategy, ShouldEqual, model.StrategyHeuristic)
			})

			Convey("Then tempo should climb and clamp at the ceiling", func() {
				So(state.TempoOffset, ShouldEqual, difficulty.MaxTempoOffset)
				So(state.Level, ShouldEqual, 1)
			})
		})

		Convey("When the controller is built without a strategy", func() {
			_, err := NewController(lc, nil)

			So(errors.Is(err, ErrNilStrategy), ShouldBeTrue)
		})
	})
}

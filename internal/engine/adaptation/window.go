// Package adaptation implements the window-cadence difficulty controller.
// A rolling window of recent task results is summarized into behavioral
// statistics, a strategy turns the summary into a tempo/level decision, and
// the controller applies that decision on a bounded cadence.
package adaptation

import (
	"math"

	"github.com/okian/cadence/internal/domain/difficulty"
	"github.com/okian/cadence/internal/domain/model"
	"github.com/okian/cadence/internal/domain/task"
)

// StateDim is the length of the encoded state vector consumed by policies.
const StateDim = 12

// Summary condenses a result window into the statistics the strategies and
// the reward function read.
type Summary struct {
	Count        int
	Accuracy     float64
	MeanRTMS     float64
	StdRTMS      float64
	ErrorStreak  int
	SwitchCostMS float64
	FatigueSlope float64
}

// Summarize computes the window statistics. Accuracy counts timeouts as
// errors; reaction-time statistics use answered trials only.
func Summarize(window []model.TaskResult) Summary {
	s := Summary{Count: len(window)}
	if len(window) == 0 {
		return s
	}

	var correct int
	var rts []float64
	for _, r := range window {
		if r.Correct {
			correct++
		}
		if r.Answered() {
			rts = append(rts, float64(r.ReactionMS))
		}
	}
	s.Accuracy = float64(correct) / float64(len(window))
	s.MeanRTMS, s.StdRTMS = meanStd(rts)

	for i := len(window) - 1; i >= 0; i-- {
		if window[i].Correct {
			break
		}
		s.ErrorStreak++
	}

	s.SwitchCostMS = switchCost(window)
	s.FatigueSlope = slope(rts)
	return s
}

// Reward scores a window for offline training logs. It is never consumed by
// the live control loop.
func Reward(s Summary) float64 {
	r := s.Accuracy - 0.7
	if s.MeanRTMS > 1000 {
		r -= 0.0004 * (s.MeanRTMS - 1000)
	}
	return r
}

// StateVector encodes the summary plus the current difficulty position into
// the fixed-length vector consumed by the policy strategy.
func StateVector(s Summary, level int, g difficulty.Global) []float64 {
	v := make([]float64, 0, StateDim)
	v = append(v,
		s.Accuracy,
		s.MeanRTMS,
		s.StdRTMS,
		float64(s.ErrorStreak),
		s.SwitchCostMS,
		s.FatigueSlope,
		float64(level),
		g.EventRateSec,
		g.TimePressure,
		float64(g.ParallelStreams),
	)
	for i := 0; i < 2; i++ {
		if i < len(g.TaskMix) {
			v = append(v, g.TaskMix[i])
		} else {
			v = append(v, 0)
		}
	}
	return v
}

// switchCost is the mean RT on rule-changed trials minus the mean RT on
// rule-unchanged trials, over answered rule-switch trials. Unanswered trials
// do not advance the rule track, the first answered trial counts as
// unchanged, and the cost is zero when either side is empty.
func switchCost(window []model.TaskResult) float64 {
	var changed, unchanged []float64
	prevRule := ""
	for _, r := range window {
		if r.Kind != model.KindRuleSwitch || !r.Answered() {
			continue
		}
		rule, _ := r.Payload[task.PayloadRuleKey].(string)
		if prevRule != "" && rule != prevRule {
			changed = append(changed, float64(r.ReactionMS))
		} else {
			unchanged = append(unchanged, float64(r.ReactionMS))
		}
		prevRule = rule
	}
	if len(changed) == 0 || len(unchanged) == 0 {
		return 0
	}
	mc, _ := meanStd(changed)
	mu, _ := meanStd(unchanged)
	return mc - mu
}

// slope fits RT against trial index by least squares. A positive slope means
// the participant is slowing down across the window.
func slope(rts []float64) float64 {
	n := float64(len(rts))
	if n < 2 {
		return 0
	}
	var sumX, sumY, sumXY, sumXX float64
	for i, y := range rts {
		x := float64(i)
		sumX += x
		sumY += y
		sumXY += x * y
		sumXX += x * x
	}
	denom := n*sumXX - sumX*sumX
	if denom == 0 {
		return 0
	}
	return (n*sumXY - sumX*sumY) / denom
}

func meanStd(xs []float64) (mean, std float64) {
	if len(xs) == 0 {
		return 0, 0
	}
	for _, x := range xs {
		mean += x
	}
	mean /= float64(len(xs))

	var varsum float64
	for _, x := range xs {
		d := x - mean
		varsum += d * d
	}
	return mean, math.Sqrt(varsum / float64(len(xs)))
}

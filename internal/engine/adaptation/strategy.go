package adaptation

import (
	"context"

	"github.com/okian/cadence/internal/domain/difficulty"
	"github.com/okian/cadence/internal/domain/model"
	"github.com/okian/cadence/pkg/logger"
)

// Neutral three-action encoding: action id minus one is the tempo delta.
const neutralActionID = 1

// Decision is one adaptation outcome before clamping.
type Decision struct {
	ActionID   int
	DeltaLevel int
	DeltaTempo int
	Degraded   bool
}

// Strategy maps a window summary to a difficulty decision. Implementations
// never abort the control loop; failures degrade to a neutral decision.
type Strategy interface {
	Name() string
	Decide(ctx context.Context, state []float64, sum Summary) Decision
}

// Heuristic is the threshold strategy. It moves tempo only; level moves are
// the batch loop's job.
type Heuristic struct {
	lc difficulty.LevelConfig
}

// NewHeuristic builds the threshold strategy from the level thresholds.
func NewHeuristic(lc difficulty.LevelConfig) *Heuristic {
	return &Heuristic{lc: lc}
}

func (h *Heuristic) Name() string { return model.StrategyHeuristic }

func (h *Heuristic) Decide(_ context.Context, _ []float64, sum Summary) Decision {
	delta := 0
	switch {
	case sum.Accuracy >= h.lc.UpAccuracy && sum.MeanRTMS <= float64(h.lc.UpRTMS):
		delta = 1
	case sum.Accuracy <= h.lc.DownAccuracy || sum.MeanRTMS >= float64(h.lc.DownRTMS):
		delta = -1
	}
	return Decision{ActionID: delta + 1, DeltaTempo: delta}
}

// Decider is the external decision function behind the policy strategy.
type Decider interface {
	// ActionDim returns the size of the policy's discrete action space.
	ActionDim() int

	// Decide returns the argmax action for the state vector.
	Decide(state []float64) (int, error)
}

// Policy delegates the decision to an externally trained artifact. An
// unavailable or failing artifact degrades to a neutral action.
type Policy struct {
	decider Decider
	log     logger.Logger
}

// NewPolicy wraps an external decider.
func NewPolicy(decider Decider, log logger.Logger) *Policy {
	if log == nil {
		log = logger.Named("policy")
	}
	return &Policy{decider: decider, log: log}
}

func (p *Policy) Name() string { return model.StrategyPolicy }

func (p *Policy) Decide(ctx context.Context, state []float64, _ Summary) Decision {
	if p.decider == nil {
		return Decision{ActionID: neutralActionID, Degraded: true}
	}

	id, err := p.decider.Decide(state)
	if err != nil {
		p.log.Warn(ctx, "policy decision failed, degrading to neutral",
			logger.Error(err))
		return Decision{ActionID: neutralActionID, Degraded: true}
	}

	switch p.decider.ActionDim() {
	case 3:
		return Decision{ActionID: id, DeltaTempo: id - 1}
	case 9:
		// Legacy joint encoding over (level, tempo) deltas.
		return Decision{
			ActionID:   id,
			DeltaLevel: id/3 - 1,
			DeltaTempo: id%3 - 1,
		}
	default:
		p.log.Warn(ctx, "policy action space not recognized, degrading to neutral",
			logger.Int("action_dim", p.decider.ActionDim()))
		return Decision{ActionID: neutralActionID, Degraded: true}
	}
}

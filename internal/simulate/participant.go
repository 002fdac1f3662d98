package simulate

import (
	"math/rand"

	"github.com/okian/cadence/internal/domain/model"
	"github.com/okian/cadence/internal/domain/task"
)

// participant is a stochastic responder. When a task gains focus it commits
// to a plan: whether to answer, after how long, and with which symbol.
// Misses come from skipped plans and from plans that land past the deadline.
type participant struct {
	cfg *Config
	rng *rand.Rand

	tag  string
	plan plan
}

type plan struct {
	respond bool
	atMS    int64
	sym     model.Symbol
}

func newParticipant(cfg *Config, rng *rand.Rand) *participant {
	return &participant{cfg: cfg, rng: rng}
}

// react inspects the focused task and returns a response to deliver, if the
// committed plan is due. A task that declines input (a memory probe still in
// its retention window) stays focused, so the plan is simply retried on the
// next tick.
func (p *participant) react(t task.Task, nowMS int64) (model.Response, bool) {
	tag := t.Spec().Tag
	if tag != p.tag {
		p.tag = tag
		p.plan = p.commit(t, nowMS)
	}
	if !p.plan.respond || nowMS < p.plan.atMS {
		return model.Response{}, false
	}
	return model.Response{Symbol: p.plan.sym, AtMS: nowMS}, true
}

func (p *participant) commit(t task.Task, nowMS int64) plan {
	if p.rng.Float64() >= p.cfg.ResponseRate {
		return plan{}
	}

	rt := p.cfg.MeanRTMS
	if p.cfg.RTJitterMS > 0 {
		rt += p.rng.Int63n(2*p.cfg.RTJitterMS+1) - p.cfg.RTJitterMS
	}
	if rt < p.cfg.TickStepMS {
		rt = p.cfg.TickStepMS
	}

	sym := t.CorrectSymbol()
	if p.rng.Float64() >= p.cfg.Accuracy {
		sym = opposite(sym)
	}
	return plan{respond: true, atMS: nowMS + rt, sym: sym}
}

func opposite(sym model.Symbol) model.Symbol {
	if sym == model.SymbolLeft {
		return model.SymbolRight
	}
	return model.SymbolLeft
}

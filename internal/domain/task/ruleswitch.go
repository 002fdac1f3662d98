package task

import (
	"math/rand"

	"github.com/okian/cadence/internal/domain/difficulty"
	"github.com/okian/cadence/internal/domain/model"
)

// Active rules for the rule-switch variant. The current rule is session
// state owned by the scheduler; each task receives it through its payload.
const (
	RuleColor = "COLOR"
	RuleShape = "SHAPE"
)

// PayloadRuleKey is the payload entry carrying the active rule.
const PayloadRuleKey = "rule"

var (
	ruleColors = []string{"red", "blue"}
	ruleShapes = []string{"circle", "square"}
)

// RuleSwitch shows a colored shape judged under the currently active rule.
// Under COLOR: red maps to left, blue to right. Under SHAPE: circle maps to
// left, square to right.
type RuleSwitch struct {
	base

	rule          string
	color         string
	shape         string
	correctSymbol model.Symbol
}

// NewRuleSwitch generates the stimulus. The active rule is read from the
// spec payload; an unknown rule defaults to COLOR.
func NewRuleSwitch(spec model.TaskSpec, _ difficulty.RuleSwitch, rng *rand.Rand) *RuleSwitch {
	t := &RuleSwitch{base: newBase(spec)}
	t.rule = RuleColor
	if r, ok := spec.Payload[PayloadRuleKey].(string); ok && r == RuleShape {
		t.rule = RuleShape
	}
	t.color = pick(rng, ruleColors)
	t.shape = pick(rng, ruleShapes)

	if t.rule == RuleColor {
		t.correctSymbol = model.SymbolRight
		if t.color == "red" {
			t.correctSymbol = model.SymbolLeft
		}
	} else {
		t.correctSymbol = model.SymbolRight
		if t.shape == "circle" {
			t.correctSymbol = model.SymbolLeft
		}
	}
	return t
}

func (t *RuleSwitch) Kind() model.Kind { return model.KindRuleSwitch }

// Stimulus returns the rule, color and shape for rendering collaborators.
func (t *RuleSwitch) Stimulus() (rule, color, shape string) {
	return t.rule, t.color, t.shape
}

func (t *RuleSwitch) CorrectSymbol() model.Symbol { return t.correctSymbol }

func (t *RuleSwitch) SubmitResponse(sym model.Symbol, nowMS int64) {
	if t.finished || !sym.Valid() {
		return
	}
	t.resolve(string(sym), sym == t.correctSymbol, nowMS)
}

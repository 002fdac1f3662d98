package task

import (
	"math/rand"
	"strings"

	"github.com/okian/cadence/internal/domain/difficulty"
	"github.com/okian/cadence/internal/domain/model"
)

// PayloadTargetSymbolKey is the payload entry carrying the target symbol.
const PayloadTargetSymbolKey = "target_symbol"

// Targets in difficulty order; the pool grows with level.
var signalTargets = []string{"X", "K", "R", "N", "Z", "M", "V"}

// Distractors, disjoint from the target pool.
var signalDistractors = []string{"A", "C", "D", "E", "G", "H", "J", "L", "P", "Q", "S", "T", "U", "W", "Y"}

// SignalDetection shows a symbol stream that may contain a single target
// symbol. Left means "target present".
type SignalDetection struct {
	base

	targetSymbol string
	signal       string
	hasThreat    bool
}

// NewSignalDetection draws the target from the active pool and generates a
// distractor stream, embedding the target with probability ThreatRate.
func NewSignalDetection(spec model.TaskSpec, d difficulty.SignalDetection, rng *rand.Rand) *SignalDetection {
	t := &SignalDetection{base: newBase(spec)}

	poolSize := d.TargetPoolSize
	if poolSize < 1 {
		poolSize = 1
	}
	if poolSize > len(signalTargets) {
		poolSize = len(signalTargets)
	}
	t.targetSymbol = pick(rng, signalTargets[:poolSize])

	var sb strings.Builder
	sb.Grow(d.SignalLen)
	for i := 0; i < d.SignalLen; i++ {
		sb.WriteString(pick(rng, signalDistractors))
	}
	t.signal = sb.String()

	t.hasThreat = rng.Float64() < d.ThreatRate
	if t.hasThreat {
		idx := rng.Intn(d.SignalLen)
		t.signal = t.signal[:idx] + t.targetSymbol + t.signal[idx+1:]
	}

	spec.Payload[PayloadTargetSymbolKey] = t.targetSymbol
	return t
}

func (t *SignalDetection) Kind() model.Kind { return model.KindSignalDetection }

// Stimulus returns the stream and target for rendering collaborators.
func (t *SignalDetection) Stimulus() (signal, target string) { return t.signal, t.targetSymbol }

func (t *SignalDetection) CorrectSymbol() model.Symbol { return yesNoSymbol(t.hasThreat) }

func (t *SignalDetection) SubmitResponse(sym model.Symbol, nowMS int64) {
	if t.finished || !sym.Valid() {
		return
	}
	answer := "no"
	if sym == model.SymbolLeft {
		answer = "yes"
	}
	t.resolve(answer, (answer == "yes") == t.hasThreat, nowMS)
}

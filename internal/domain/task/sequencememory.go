package task

import (
	"math/rand"
	"strings"

	"github.com/okian/cadence/internal/domain/difficulty"
	"github.com/okian/cadence/internal/domain/model"
)

// Visually unambiguous symbols (no I/1, O/0).
const sequenceAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// Sequence display budget: a base plus a per-symbol allowance, capped at a
// fraction of the time limit so the probe always gets shown.
const (
	seqShowBaseMS      int64   = 900
	seqShowPerSymbolMS int64   = 200
	seqShowMaxFraction float64 = 0.8
	seqProbeMarginMS   int64   = 200
)

// SequenceMemory shows a symbol sequence, hides it after a retention delay,
// then probes whether a query symbol was part of it. Left means "yes".
// Responses submitted before the probe is ready are ignored.
type SequenceMemory struct {
	base

	sequence    []string
	querySymbol string
	answerIsYes bool

	showUntilMS  int64
	probeReadyMS int64
}

// NewSequenceMemory generates the sequence and probe and derives the display
// and retention windows from the task's timing fields.
func NewSequenceMemory(spec model.TaskSpec, d difficulty.SequenceMemory, rng *rand.Rand) *SequenceMemory {
	t := &SequenceMemory{base: newBase(spec)}
	t.sequence = make([]string, d.SeqLen)
	for i := range t.sequence {
		t.sequence[i] = string(sequenceAlphabet[rng.Intn(len(sequenceAlphabet))])
	}
	t.querySymbol = string(sequenceAlphabet[rng.Intn(len(sequenceAlphabet))])
	t.answerIsYes = strings.Contains(strings.Join(t.sequence, ""), t.querySymbol)

	show := seqShowBaseMS + seqShowPerSymbolMS*int64(d.SeqLen)
	if maxShow := int64(float64(d.TimeLimitMS) * seqShowMaxFraction); show > maxShow {
		show = maxShow
	}
	t.showUntilMS = spec.CreatedMS + show
	t.probeReadyMS = t.showUntilMS + d.RetentionDelayMS
	if latest := spec.DeadlineMS - seqProbeMarginMS; t.probeReadyMS > latest {
		t.probeReadyMS = latest
	}
	return t
}

func (t *SequenceMemory) Kind() model.Kind { return model.KindSequenceMemory }

// Showing reports whether the sequence is still on display at nowMS.
func (t *SequenceMemory) Showing(nowMS int64) bool { return nowMS < t.showUntilMS }

// ProbeReady reports whether the probe may be answered at nowMS.
func (t *SequenceMemory) ProbeReady(nowMS int64) bool { return nowMS >= t.probeReadyMS }

// Probe returns the query symbol.
func (t *SequenceMemory) Probe() string { return t.querySymbol }

func (t *SequenceMemory) CorrectSymbol() model.Symbol { return yesNoSymbol(t.answerIsYes) }

func (t *SequenceMemory) SubmitResponse(sym model.Symbol, nowMS int64) {
	if t.finished || !sym.Valid() {
		return
	}
	// Answers during the display or retention window don't count.
	if nowMS < t.probeReadyMS {
		return
	}
	answer := "no"
	if sym == model.SymbolLeft {
		answer = "yes"
	}
	t.resolve(answer, (answer == "yes") == t.answerIsYes, nowMS)
}

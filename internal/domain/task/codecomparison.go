package task

import (
	"math/rand"
	"strings"

	"github.com/okian/cadence/internal/domain/difficulty"
	"github.com/okian/cadence/internal/domain/model"
)

const codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// CodeComparison shows two character codes that either match exactly or
// differ by one edited character. Left means "match".
type CodeComparison struct {
	base

	codeA   string
	codeB   string
	isMatch bool
}

// NewCodeComparison generates the code pair. With probability SimilarityRate
// the second code is the first with a single character replaced.
func NewCodeComparison(spec model.TaskSpec, d difficulty.CodeComparison, rng *rand.Rand) *CodeComparison {
	t := &CodeComparison{base: newBase(spec)}
	t.codeA = buildCode(rng, d.CodeLen)
	if rng.Float64() < d.SimilarityRate {
		idx := rng.Intn(d.CodeLen)
		options := strings.Replace(codeAlphabet, string(t.codeA[idx]), "", 1)
		t.codeB = t.codeA[:idx] + string(options[rng.Intn(len(options))]) + t.codeA[idx+1:]
		t.isMatch = false
	} else {
		t.codeB = t.codeA
		t.isMatch = true
	}
	return t
}

func (t *CodeComparison) Kind() model.Kind { return model.KindCodeComparison }

// Codes returns the generated pair, for rendering collaborators.
func (t *CodeComparison) Codes() (string, string) { return t.codeA, t.codeB }

func (t *CodeComparison) CorrectSymbol() model.Symbol { return yesNoSymbol(t.isMatch) }

func (t *CodeComparison) SubmitResponse(sym model.Symbol, nowMS int64) {
	if t.finished || !sym.Valid() {
		return
	}
	answer := "mismatch"
	if sym == model.SymbolLeft {
		answer = "match"
	}
	t.resolve(answer, (answer == "match") == t.isMatch, nowMS)
}

func buildCode(rng *rand.Rand, length int) string {
	var sb strings.Builder
	sb.Grow(length)
	for i := 0; i < length; i++ {
		sb.WriteByte(codeAlphabet[rng.Intn(len(codeAlphabet))])
	}
	return sb.String()
}

package task

import (
	"fmt"
	"math/rand"
	"strconv"
	"strings"

	"github.com/okian/cadence/internal/domain/difficulty"
	"github.com/okian/cadence/internal/domain/model"
)

// Payload keys recorded by the parity variant.
const (
	PayloadQuestionTypeKey = "question_type"
	PayloadQuestionTextKey = "question_text"
)

// ParityCheck shows a number plus a yes/no predicate. Higher question
// complexity unlocks harder predicates; one is drawn at random from the
// unlocked set. Left means "yes".
type ParityCheck struct {
	base

	value        int
	questionText string
	questionType string
	answerIsYes  bool
}

type parityPredicate struct {
	text string
	kind string
	fn   func(v int) bool
}

// NewParityCheck draws the value and the predicate.
func NewParityCheck(spec model.TaskSpec, d difficulty.ParityCheck, rng *rand.Rand) *ParityCheck {
	t := &ParityCheck{base: newBase(spec)}
	t.value = d.MinValue + rng.Intn(d.MaxValue-d.MinValue+1)

	preds := []parityPredicate{{
		text: "Is the number even?",
		kind: "even",
		fn:   func(v int) bool { return v%2 == 0 },
	}}

	if d.QuestionComplexity >= 2 {
		threshold := d.MinValue + rng.Intn(d.MaxValue-d.MinValue+1)
		preds = append(preds, parityPredicate{
			text: fmt.Sprintf("Is the number greater than %d?", threshold),
			kind: "greater_than",
			fn:   func(v int) bool { return v > threshold },
		})
	}
	if d.QuestionComplexity >= 3 {
		div := pick(rng, []int{3, 5})
		preds = append(preds, parityPredicate{
			text: fmt.Sprintf("Is the number divisible by %d?", div),
			kind: "divisible",
			fn:   func(v int) bool { return v%div == 0 },
		})
	}
	if d.QuestionComplexity >= 4 {
		preds = append(preds, parityPredicate{
			text: "Is the number prime?",
			kind: "prime",
			fn:   isPrime,
		})
	}
	if d.QuestionComplexity >= 5 {
		digit := rng.Intn(10)
		preds = append(preds, parityPredicate{
			text: fmt.Sprintf("Does it contain the digit %d?", digit),
			kind: "contains_digit",
			fn: func(v int) bool {
				return strings.Contains(strconv.Itoa(abs(v)), strconv.Itoa(digit))
			},
		})
	}
	if d.QuestionComplexity >= 6 {
		preds = append(preds, parityPredicate{
			text: "Is the digit sum even?",
			kind: "digit_sum_even",
			fn:   func(v int) bool { return digitSum(abs(v))%2 == 0 },
		})
	}
	if d.QuestionComplexity >= 7 {
		endings := pick(rng, [][]int{{1, 3, 7, 9}, {0, 2, 4, 6, 8}, {0, 5}})
		parts := make([]string, len(endings))
		for i, e := range endings {
			parts[i] = strconv.Itoa(e)
		}
		preds = append(preds, parityPredicate{
			text: fmt.Sprintf("Does it end in %s?", strings.Join(parts, ", ")),
			kind: "ending_in",
			fn: func(v int) bool {
				last := abs(v) % 10
				for _, e := range endings {
					if last == e {
						return true
					}
				}
				return false
			},
		})
	}

	p := pick(rng, preds)
	t.questionText = p.text
	t.questionType = p.kind
	t.answerIsYes = p.fn(t.value)
	spec.Payload[PayloadQuestionTypeKey] = p.kind
	spec.Payload[PayloadQuestionTextKey] = p.text
	return t
}

func (t *ParityCheck) Kind() model.Kind { return model.KindParityCheck }

// Question returns the value and predicate text for rendering collaborators.
func (t *ParityCheck) Question() (int, string) { return t.value, t.questionText }

func (t *ParityCheck) CorrectSymbol() model.Symbol { return yesNoSymbol(t.answerIsYes) }

func (t *ParityCheck) SubmitResponse(sym model.Symbol, nowMS int64) {
	if t.finished || !sym.Valid() {
		return
	}
	answer := "no"
	if sym == model.SymbolLeft {
		answer = "yes"
	}
	t.resolve(answer, (answer == "yes") == t.answerIsYes, nowMS)
}

func isPrime(value int) bool {
	n := abs(value)
	if n < 2 {
		return false
	}
	if n == 2 {
		return true
	}
	if n%2 == 0 {
		return false
	}
	for div := 3; div*div <= n; div += 2 {
		if n%div == 0 {
			return false
		}
	}
	return true
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func digitSum(v int) int {
	sum := 0
	for v > 0 {
		sum += v % 10
		v /= 10
	}
	return sum
}

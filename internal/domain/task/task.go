// Package task implements the cognitive micro-task variants behind a single
// lifecycle contract. A task generates its stimulus and ground truth at
// construction time from a seeded random source, then resolves exactly once,
// either by a submitted response or by its deadline.
package task

import (
	"math/rand"

	"github.com/okian/cadence/internal/domain/model"
)

// Task is the uniform lifecycle contract shared by every variant.
type Task interface {
	// Kind identifies the variant.
	Kind() model.Kind

	// Spec returns the immutable spec the task was created from.
	Spec() model.TaskSpec

	// SubmitResponse records the participant's answer and resolves the task.
	// Accepted only once; later calls are no-ops. A response delivered in the
	// same tick as the deadline is accepted.
	SubmitResponse(sym model.Symbol, nowMS int64)

	// CorrectSymbol returns the symbol that resolves the task correctly.
	// Consumed by feedback rendering and simulated participants.
	CorrectSymbol() model.Symbol

	// Advance marks the task timed out once nowMS reaches the deadline.
	// No-op after the task is finished.
	Advance(nowMS int64)

	// Finished reports whether the task has resolved.
	Finished() bool

	// Result is valid only once finished and is stable across calls.
	Result() model.TaskResult
}

// base carries the state shared by all variants.
type base struct {
	spec       model.TaskSpec
	finished   bool
	finishedMS int64
	response   string
	correct    bool
	timeout    bool
}

func newBase(spec model.TaskSpec) base {
	return base{spec: spec}
}

func (b *base) Spec() model.TaskSpec { return b.spec }

func (b *base) Finished() bool { return b.finished }

// Advance applies the deadline check. Response and deadline checks are
// independent; a response submitted at the same timestamp wins because it is
// routed before the tick's Advance pass.
func (b *base) Advance(nowMS int64) {
	if b.finished {
		return
	}
	if nowMS >= b.spec.DeadlineMS {
		b.finished = true
		b.finishedMS = nowMS
		b.timeout = true
		b.correct = false
		b.response = ""
	}
}

// resolve records a domain answer. No-op once finished.
func (b *base) resolve(response string, correct bool, nowMS int64) {
	if b.finished {
		return
	}
	b.finished = true
	b.finishedMS = nowMS
	b.response = response
	b.correct = correct
	b.timeout = false
}

// Result builds the task's outcome. Reaction time is measured from creation
// to finish, never from the deadline, and is absent on timeout.
func (b *base) Result() model.TaskResult {
	r := model.TaskResult{
		Kind:       b.spec.Kind,
		Tag:        b.spec.Tag,
		CreatedMS:  b.spec.CreatedMS,
		FinishedMS: b.finishedMS,
		Response:   b.response,
		Correct:    b.correct,
		Timeout:    b.timeout,
		Difficulty: b.spec.Difficulty,
		Payload:    b.spec.Payload,
	}
	if b.response != "" {
		r.ReactionMS = b.finishedMS - b.spec.CreatedMS
	}
	return r
}

// yesNoSymbol maps a yes/no ground truth onto the response alphabet.
func yesNoSymbol(yes bool) model.Symbol {
	if yes {
		return model.SymbolLeft
	}
	return model.SymbolRight
}

// pick returns a random element of choices.
func pick[T any](rng *rand.Rand, choices []T) T {
	return choices[rng.Intn(len(choices))]
}

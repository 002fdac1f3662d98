// Package policy loads externally trained linear decision artifacts. An
// artifact scores each discrete action as a linear function of the state
// vector; decisions take the argmax. Training happens offline, outside this
// service.
package policy

import (
	"encoding/json"
	"fmt"
	"os"
)

// artifact is the serialized form produced by the offline trainer.
type artifact struct {
	StateDim  int         `json:"state_dim"`
	ActionDim int         `json:"action_dim"`
	Weights   [][]float64 `json:"weights"`
	Bias      []float64   `json:"bias"`
}

// Linear is a loaded linear policy. Immutable after load.
type Linear struct {
	stateDim  int
	actionDim int
	weights   [][]float64
	bias      []float64
}

// Load reads and validates a policy artifact from disk. Any defect in the
// file surfaces as ErrUnavailable so callers can degrade rather than crash.
func Load(path string) (*Linear, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", ErrUnavailable, path, err)
	}

	var a artifact
	if err := json.Unmarshal(raw, &a); err != nil {
		return nil, fmt.Errorf("%w: parse %s: %v", ErrUnavailable, path, err)
	}
	return New(a.StateDim, a.ActionDim, a.Weights, a.Bias)
}

// New builds a policy from in-memory parameters.
func New(stateDim, actionDim int, weights [][]float64, bias []float64) (*Linear, error) {
	if stateDim < 1 || actionDim < 1 {
		return nil, fmt.Errorf("%w: non-positive dimensions", ErrUnavailable)
	}
	if len(weights) != actionDim || len(bias) != actionDim {
		return nil, fmt.Errorf("%w: want %d action rows, got %d weights and %d bias",
			ErrUnavailable, actionDim, len(weights), len(bias))
	}
	for i, row := range weights {
		if len(row) != stateDim {
			return nil, fmt.Errorf("%w: weight row %d has %d entries, want %d",
				ErrUnavailable, i, len(row), stateDim)
		}
	}
	return &Linear{
		stateDim:  stateDim,
		actionDim: actionDim,
		weights:   weights,
		bias:      bias,
	}, nil
}

// ActionDim returns the size of the discrete action space.
func (l *Linear) ActionDim() int { return l.actionDim }

// StateDim returns the expected state vector length.
func (l *Linear) StateDim() int { return l.stateDim }

// Decide scores every action against the state and returns the argmax.
func (l *Linear) Decide(state []float64) (int, error) {
	if len(state) != l.stateDim {
		return 0, fmt.Errorf("%w: state has %d entries, want %d",
			ErrUnavailable, len(state), l.stateDim)
	}

	best := 0
	bestScore := l.score(0, state)
	for a := 1; a < l.actionDim; a++ {
		if s := l.score(a, state); s > bestScore {
			best, bestScore = a, s
		}
	}
	return best, nil
}

func (l *Linear) score(action int, state []float64) float64 {
	s := l.bias[action]
	for i, w := range l.weights[action] {
		s += w * state[i]
	}
	return s
}

// Package model contains domain models passed between layers.
package model

import (
	"encoding/json"
	"fmt"
)

// Kind identifies a task variant. The closed set of variants is dispatched
// through this enum; string tags appear only at the serialization boundary.
type Kind int

// Task variants.
const (
	KindCodeComparison Kind = iota
	KindSequenceMemory
	KindRuleSwitch
	KindParityCheck
	KindSignalDetection

	kindCount
)

// Kinds returns all task variants in declaration order.
func Kinds() []Kind {
	ks := make([]Kind, 0, kindCount)
	for k := Kind(0); k < kindCount; k++ {
		ks = append(ks, k)
	}
	return ks
}

// String returns the serialization tag for the kind.
func (k Kind) String() string {
	switch k {
	case KindCodeComparison:
		return "code_comparison"
	case KindSequenceMemory:
		return "sequence_memory"
	case KindRuleSwitch:
		return "rule_switch"
	case KindParityCheck:
		return "parity_check"
	case KindSignalDetection:
		return "signal_detection"
	default:
		return "unknown"
	}
}

// ParseKind maps a serialization tag back to a Kind.
func ParseKind(tag string) (Kind, error) {
	for k := Kind(0); k < kindCount; k++ {
		if k.String() == tag {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown task kind %q", tag)
}

// MarshalJSON serializes the kind as its string tag.
func (k Kind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

// UnmarshalJSON parses the string tag form.
func (k *Kind) UnmarshalJSON(data []byte) error {
	var tag string
	if err := json.Unmarshal(data, &tag); err != nil {
		return err
	}
	parsed, err := ParseKind(tag)
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// Symbol is the binary response alphabet shared by every task variant.
// Each variant maps its own domain answer onto this choice.
type Symbol string

// Recognized response symbols.
const (
	SymbolLeft  Symbol = "left"
	SymbolRight Symbol = "right"
)

// Valid reports whether the symbol is part of the response alphabet.
func (s Symbol) Valid() bool {
	return s == SymbolLeft || s == SymbolRight
}

// Response is an abstracted participant input event. The concrete input
// device is external.
type Response struct {
	Symbol Symbol `json:"symbol"`
	AtMS   int64  `json:"at_ms"`
}

// TaskSpec describes a spawned task. Immutable once created.
type TaskSpec struct {
	Kind       Kind           `json:"task_type"`
	Tag        string         `json:"task_id"`
	CreatedMS  int64          `json:"created_ms"`
	DeadlineMS int64          `json:"deadline_ms"`
	Difficulty map[string]any `json:"difficulty"`
	Payload    map[string]any `json:"payload"`
}

// TaskResult is produced exactly once per task, at retirement.
// Response is empty and ReactionMS is zero when the task timed out.
type TaskResult struct {
	Kind       Kind           `json:"task_type"`
	Tag        string         `json:"task_id"`
	CreatedMS  int64          `json:"created_ms"`
	FinishedMS int64          `json:"finished_ms"`
	Response   string         `json:"response,omitempty"`
	Correct    bool           `json:"correct"`
	ReactionMS int64          `json:"rt_ms,omitempty"`
	Timeout    bool           `json:"is_timeout"`
	Difficulty map[string]any `json:"difficulty"`
	Payload    map[string]any `json:"payload"`
}

// Answered reports whether the participant responded before the deadline.
func (r TaskResult) Answered() bool {
	return r.Response != ""
}

// LevelState is the adaptive difficulty position: a coarse level tier plus a
// fine-grained tempo offset in [-2, 2].
type LevelState struct {
	Level       int `json:"level"`
	TempoOffset int `json:"tempo_offset"`
}

// Adaptation strategies recorded on each step.
const (
	StrategyHeuristic = "heuristic"
	StrategyPolicy    = "policy"
)

// AdaptationRecord is an append-only log entry for one adaptation step.
type AdaptationRecord struct {
	Step        int       `json:"step"`
	State       []float64 `json:"state"`
	ActionID    int       `json:"action_id"`
	DeltaLevel  int       `json:"delta_level"`
	DeltaTempo  int       `json:"delta_tempo"`
	Reward      float64   `json:"reward"`
	Level       int       `json:"level"`
	TempoOffset int       `json:"tempo_offset"`
	Strategy    string    `json:"strategy"`
	Degraded    bool      `json:"degraded,omitempty"`
}

// Snapshot captures resumable session state.
type Snapshot struct {
	SessionID   string       `json:"session_id"`
	Level       int          `json:"level"`
	TempoOffset int          `json:"tempo_offset"`
	BatchIndex  int          `json:"batch_index"`
	AdaptStep   int          `json:"adapt_step"`
	Completed   []TaskResult `json:"completed"`
}

// SessionSummary aggregates a finished session for the outcome sink.
type SessionSummary struct {
	SessionID    string  `json:"session_id"`
	TotalTasks   int     `json:"total_tasks"`
	Accuracy     float64 `json:"accuracy_total"`
	MeanRTMS     float64 `json:"mean_rt"`
	RTVariance   float64 `json:"rt_variance"`
	SwitchCostMS float64 `json:"switch_cost"`
	FatigueTrend float64 `json:"fatigue_trend"`
	Successes    int     `json:"successes"`
	ZoneQuality  float64 `json:"zone_quality"`
}

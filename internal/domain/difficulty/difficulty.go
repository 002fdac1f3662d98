// Package difficulty defines the difficulty configuration and the pure
// transforms that materialize it for a given level and tempo offset.
package difficulty

import (
	"fmt"
	"math"

	"github.com/okian/cadence/internal/domain/model"
)

// Floors and tolerances for validation and materialization. A task can never
// become instantaneous: time limits are clamped to these floors.
const (
	FloorTimeLimitMS       int64 = 900
	FloorMemoryTimeLimitMS int64 = 1200

	mixTolerance = 1e-6
)

// Global holds difficulty parameters shared by all task variants.
type Global struct {
	// EventRateSec is the minimum interval between spawns, in seconds.
	EventRateSec float64 `koanf:"event_rate_sec" json:"event_rate_sec"`

	// ParallelStreams caps the number of concurrently active tasks.
	ParallelStreams int `koanf:"parallel_streams" json:"parallel_streams"`

	// TimePressure scales every per-task deadline.
	TimePressure float64 `koanf:"time_pressure" json:"time_pressure"`

	// TaskMix is the spawn probability per variant, in model.Kinds order.
	TaskMix []float64 `koanf:"task_mix" json:"task_mix"`
}

// CodeComparison parameters: two codes that either match or differ by one
// edited character.
type CodeComparison struct {
	CodeLen        int     `koanf:"code_len" json:"code_len"`
	SimilarityRate float64 `koanf:"similarity_rate" json:"similarity_rate"`
	TimeLimitMS    int64   `koanf:"time_limit_ms" json:"time_limit_ms"`
}

// SequenceMemory parameters: a symbol sequence followed by a probe symbol.
type SequenceMemory struct {
	SeqLen           int   `koanf:"seq_len" json:"seq_len"`
	RetentionDelayMS int64 `koanf:"retention_delay_ms" json:"retention_delay_ms"`
	TimeLimitMS      int64 `koanf:"time_limit_ms" json:"time_limit_ms"`
}

// RuleSwitch parameters: a color/shape stimulus judged under the currently
// active rule, which flips between spawns with SwitchRate probability.
type RuleSwitch struct {
	SwitchRate      float64 `koanf:"rule_switch_rate" json:"rule_switch_rate"`
	StimulusRateSec float64 `koanf:"stimulus_rate_sec" json:"stimulus_rate_sec"`
	RuleComplexity  int     `koanf:"rule_complexity" json:"rule_complexity"`
	TimeLimitMS     int64   `koanf:"time_limit_ms" json:"time_limit_ms"`
}

// ParityCheck parameters: a numeric value plus a yes/no predicate whose
// difficulty grows with QuestionComplexity.
type ParityCheck struct {
	MinValue           int   `koanf:"min_value" json:"min_value"`
	MaxValue           int   `koanf:"max_value" json:"max_value"`
	QuestionComplexity int   `koanf:"question_complexity" json:"question_complexity"`
	TimeLimitMS        int64 `koanf:"time_limit_ms" json:"time_limit_ms"`
}

// SignalDetection parameters: a symbol stream with or without an embedded
// target drawn from a growing pool.
type SignalDetection struct {
	SignalLen      int     `koanf:"signal_len" json:"signal_len"`
	ThreatRate     float64 `koanf:"threat_rate" json:"threat_rate"`
	TargetPoolSize int     `koanf:"target_pool_size" json:"target_pool_size"`
	TimeLimitMS    int64   `koanf:"time_limit_ms" json:"time_limit_ms"`
}

// Config is an immutable difficulty value: global knobs plus one parameter
// block per task variant. Copy it; never share pointers into it.
type Config struct {
	Global Global          `koanf:"global" json:"global"`
	Code   CodeComparison  `koanf:"code_comparison" json:"code_comparison"`
	Memory SequenceMemory  `koanf:"sequence_memory" json:"sequence_memory"`
	Switch RuleSwitch      `koanf:"rule_switch" json:"rule_switch"`
	Parity ParityCheck     `koanf:"parity_check" json:"parity_check"`
	Signal SignalDetection `koanf:"signal_detection" json:"signal_detection"`
}

// Default returns the base difficulty before any level or tempo is applied.
func Default() Config {
	return Config{
		Global: Global{
			EventRateSec:    4.0,
			ParallelStreams: 1,
			TimePressure:    1.4,
			TaskMix:         []float64{0.24, 0.2, 0.2, 0.18, 0.18},
		},
		Code: CodeComparison{
			CodeLen:        4,
			SimilarityRate: 0.35,
			TimeLimitMS:    3200,
		},
		Memory: SequenceMemory{
			SeqLen:           4,
			RetentionDelayMS: 0,
			TimeLimitMS:      4200,
		},
		Switch: RuleSwitch{
			SwitchRate:      0.25,
			StimulusRateSec: 2.0,
			RuleComplexity:  2,
			TimeLimitMS:     3200,
		},
		Parity: ParityCheck{
			MinValue:           10,
			MaxValue:           99,
			QuestionComplexity: 1,
			TimeLimitMS:        3000,
		},
		Signal: SignalDetection{
			SignalLen:      5,
			ThreatRate:     0.35,
			TargetPoolSize: 1,
			TimeLimitMS:    3200,
		},
	}
}

// TimeLimitMS returns the configured time limit for a task variant.
func (c Config) TimeLimitMS(k model.Kind) int64 {
	switch k {
	case model.KindCodeComparison:
		return c.Code.TimeLimitMS
	case model.KindSequenceMemory:
		return c.Memory.TimeLimitMS
	case model.KindRuleSwitch:
		return c.Switch.TimeLimitMS
	case model.KindParityCheck:
		return c.Parity.TimeLimitMS
	case model.KindSignalDetection:
		return c.Signal.TimeLimitMS
	default:
		return 0
	}
}

// Validate rejects malformed configurations at construction time rather
// than at use.
func (c Config) Validate() error {
	if c.Global.ParallelStreams < 1 {
		return fmt.Errorf("%w: parallel_streams must be >= 1", ErrInvalidConfig)
	}
	if c.Global.EventRateSec <= 0 {
		return fmt.Errorf("%w: event_rate_sec must be positive", ErrInvalidConfig)
	}
	if c.Global.TimePressure <= 0 {
		return fmt.Errorf("%w: time_pressure must be positive", ErrInvalidConfig)
	}
	if len(c.Global.TaskMix) != len(model.Kinds()) {
		return fmt.Errorf("%w: task_mix must have %d entries, got %d",
			ErrInvalidConfig, len(model.Kinds()), len(c.Global.TaskMix))
	}
	var sum float64
	for i, p := range c.Global.TaskMix {
		if p < 0 {
			return fmt.Errorf("%w: task_mix[%d] is negative", ErrInvalidConfig, i)
		}
		sum += p
	}
	if math.Abs(sum-1.0) > mixTolerance {
		return fmt.Errorf("%w: task_mix must sum to 1, got %g", ErrInvalidConfig, sum)
	}

	for _, tl := range []struct {
		name  string
		value int64
		floor int64
	}{
		{"code_comparison", c.Code.TimeLimitMS, FloorTimeLimitMS},
		{"sequence_memory", c.Memory.TimeLimitMS, FloorMemoryTimeLimitMS},
		{"rule_switch", c.Switch.TimeLimitMS, FloorTimeLimitMS},
		{"parity_check", c.Parity.TimeLimitMS, FloorTimeLimitMS},
		{"signal_detection", c.Signal.TimeLimitMS, FloorTimeLimitMS},
	} {
		if tl.value < tl.floor {
			return fmt.Errorf("%w: %s time_limit_ms %d below floor %d",
				ErrInvalidConfig, tl.name, tl.value, tl.floor)
		}
	}

	if c.Code.CodeLen < 1 || c.Memory.SeqLen < 1 || c.Signal.SignalLen < 1 {
		return fmt.Errorf("%w: content lengths must be >= 1", ErrInvalidConfig)
	}
	if c.Parity.MinValue > c.Parity.MaxValue {
		return fmt.Errorf("%w: parity min_value exceeds max_value", ErrInvalidConfig)
	}
	return nil
}

// LevelConfig bounds the adaptive level range and holds the thresholds used
// by the window and batch control loops.
type LevelConfig struct {
	MinLevel   int `koanf:"min_level" json:"min_level"`
	MaxLevel   int `koanf:"max_level" json:"max_level"`
	StartLevel int `koanf:"start_level" json:"start_level"`

	// Window cadence: adapt once the rolling window holds WindowSize results
	// and then only every CheckEvery completions.
	CheckEvery int `koanf:"check_every" json:"check_every"`
	WindowSize int `koanf:"window_size" json:"window_size"`

	// Heuristic window thresholds.
	UpAccuracy   float64 `koanf:"up_accuracy" json:"up_accuracy"`
	DownAccuracy float64 `koanf:"down_accuracy" json:"down_accuracy"`
	UpRTMS       int64   `koanf:"up_rt_ms" json:"up_rt_ms"`
	DownRTMS     int64   `koanf:"down_rt_ms" json:"down_rt_ms"`

	// Batch progression thresholds (policy mode).
	BatchUpRate       float64 `koanf:"batch_up_rate" json:"batch_up_rate"`
	BatchUpAccuracy   float64 `koanf:"batch_up_accuracy" json:"batch_up_accuracy"`
	BatchDownRate     float64 `koanf:"batch_down_rate" json:"batch_down_rate"`
	BatchDownAccuracy float64 `koanf:"batch_down_accuracy" json:"batch_down_accuracy"`

	// Batch progression threshold (heuristic mode): raw correct count that
	// earns a level-up. Heuristic batches never step down.
	BaselineRequiredCorrect int `koanf:"baseline_required_correct" json:"baseline_required_correct"`
}

// DefaultLevelConfig returns the tuned level thresholds.
func DefaultLevelConfig() LevelConfig {
	return LevelConfig{
		MinLevel:                1,
		MaxLevel:                10,
		StartLevel:              1,
		CheckEvery:              3,
		WindowSize:              8,
		UpAccuracy:              0.85,
		DownAccuracy:            0.65,
		UpRTMS:                  1000,
		DownRTMS:                1500,
		BatchUpRate:             0.75,
		BatchUpAccuracy:         0.8,
		BatchDownRate:           0.5,
		BatchDownAccuracy:       0.55,
		BaselineRequiredCorrect: 9,
	}
}

// Validate checks the level bounds and thresholds.
func (lc LevelConfig) Validate() error {
	if lc.MinLevel > lc.MaxLevel {
		return fmt.Errorf("%w: min_level exceeds max_level", ErrInvalidConfig)
	}
	if lc.StartLevel < lc.MinLevel || lc.StartLevel > lc.MaxLevel {
		return fmt.Errorf("%w: start_level outside [min_level, max_level]", ErrInvalidConfig)
	}
	if lc.WindowSize < 1 || lc.CheckEvery < 1 {
		return fmt.Errorf("%w: window_size and check_every must be >= 1", ErrInvalidConfig)
	}
	return nil
}

// ClampLevel bounds a level to [MinLevel, MaxLevel].
func (lc LevelConfig) ClampLevel(level int) int {
	if level < lc.MinLevel {
		return lc.MinLevel
	}
	if level > lc.MaxLevel {
		return lc.MaxLevel
	}
	return level
}

// Tempo offset bounds.
const (
	MinTempoOffset = -2
	MaxTempoOffset = 2
)

// ClampTempo bounds a tempo offset to [MinTempoOffset, MaxTempoOffset].
func ClampTempo(tempo int) int {
	if tempo < MinTempoOffset {
		return MinTempoOffset
	}
	if tempo > MaxTempoOffset {
		return MaxTempoOffset
	}
	return tempo
}

package difficulty

// Level and tempo transforms. Both are pure: they take a Config by value and
// return a new one. Applying a tempo offset and then its inverse does not
// round-trip exactly; the transforms are deliberately lossy through the
// time-limit floors.

// Caps on per-variant content growth.
const (
	maxCodeLen          = 7
	maxSimilarityRate   = 0.7
	maxSeqLen           = 8
	maxSwitchRate       = 0.6
	maxRuleComplexity   = 7
	maxParityComplexity = 7
	minParityValue      = -999
	maxParityValue      = 999
	maxSignalLen        = 9
	maxTargetPool       = 7
)

// speedFactor slows its own growth past level 5 so deadlines do not fall off
// a cliff at high levels.
func speedFactor(level int) float64 {
	var f float64
	if level <= 5 {
		f = 1.0 - 0.035*float64(level-1)
	} else {
		f = 1.0 - 0.035*4 - 0.015*float64(level-5)
	}
	if f < 0.82 {
		f = 0.82
	}
	return f
}

// ApplyLevel derives per-variant parameters from the base config for the
// given level. Content gets longer and more similar as the level rises;
// time limits shrink down to the fixed floors. Level 1 keeps a 25% time
// bonus so the opening batch is forgiving.
func ApplyLevel(base Config, level int) Config {
	sf := speedFactor(level)
	firstLevelBonus := 1.0
	if level == 1 {
		firstLevelBonus = 1.25
	}

	out := base

	out.Global.EventRateSec = maxFloat(1.4, base.Global.EventRateSec*sf)
	// Time pressure stays stable across levels; scaling it as well compresses
	// deadlines too aggressively.
	out.Global.TimePressure = base.Global.TimePressure
	out.Global.TaskMix = append([]float64(nil), base.Global.TaskMix...)

	out.Code.CodeLen = minInt(maxCodeLen, base.Code.CodeLen+level/2)
	out.Code.SimilarityRate = minFloat(maxSimilarityRate, base.Code.SimilarityRate+0.02*float64(level-1))
	out.Code.TimeLimitMS = maxInt64(FloorTimeLimitMS, int64(float64(base.Code.TimeLimitMS)*sf*firstLevelBonus))

	out.Memory.SeqLen = minInt(maxSeqLen, base.Memory.SeqLen+level/2)
	out.Memory.TimeLimitMS = maxInt64(FloorMemoryTimeLimitMS, int64(float64(base.Memory.TimeLimitMS)*sf*firstLevelBonus))

	out.Switch.SwitchRate = minFloat(maxSwitchRate, base.Switch.SwitchRate+0.03*float64(level-1))
	out.Switch.RuleComplexity = minInt(maxRuleComplexity, base.Switch.RuleComplexity+level/2)
	out.Switch.TimeLimitMS = maxInt64(FloorTimeLimitMS, int64(float64(base.Switch.TimeLimitMS)*sf*firstLevelBonus))

	out.Parity.MinValue = maxInt(minParityValue, base.Parity.MinValue-maxInt(0, level-5)*10)
	out.Parity.MaxValue = minInt(maxParityValue, base.Parity.MaxValue+(level-1)*40)
	out.Parity.QuestionComplexity = minInt(maxParityComplexity, base.Parity.QuestionComplexity+level/2)
	out.Parity.TimeLimitMS = maxInt64(FloorTimeLimitMS, int64(float64(base.Parity.TimeLimitMS)*sf*firstLevelBonus))

	out.Signal.SignalLen = minInt(maxSignalLen, base.Signal.SignalLen+level/2)
	out.Signal.TargetPoolSize = minInt(maxTargetPool, base.Signal.TargetPoolSize+level/2)
	out.Signal.TimeLimitMS = maxInt64(FloorTimeLimitMS, int64(float64(base.Signal.TimeLimitMS)*sf*firstLevelBonus))

	return out
}

// ApplyTempo layers a fine-grained speed adjustment on top of a leveled
// config. tempoOffset runs from -2 (slower) to +2 (faster).
func ApplyTempo(cfg Config, tempoOffset int) Config {
	factor := maxFloat(0.6, 1.0-0.08*float64(tempoOffset))

	out := cfg
	out.Global.EventRateSec = maxFloat(1.0, cfg.Global.EventRateSec*factor)
	out.Global.TimePressure = maxFloat(0.8, cfg.Global.TimePressure*factor)
	out.Global.TaskMix = append([]float64(nil), cfg.Global.TaskMix...)
	out.Code.TimeLimitMS = maxInt64(FloorTimeLimitMS, int64(float64(cfg.Code.TimeLimitMS)*factor))
	out.Memory.TimeLimitMS = maxInt64(FloorMemoryTimeLimitMS, int64(float64(cfg.Memory.TimeLimitMS)*factor))
	out.Switch.TimeLimitMS = maxInt64(FloorTimeLimitMS, int64(float64(cfg.Switch.TimeLimitMS)*factor))
	out.Parity.TimeLimitMS = maxInt64(FloorTimeLimitMS, int64(float64(cfg.Parity.TimeLimitMS)*factor))
	out.Signal.TimeLimitMS = maxInt64(FloorTimeLimitMS, int64(float64(cfg.Signal.TimeLimitMS)*factor))
	return out
}

// Materialize applies level then tempo to the base config.
func Materialize(base Config, level, tempoOffset int) Config {
	return ApplyTempo(ApplyLevel(base, level), tempoOffset)
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func maxInt64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

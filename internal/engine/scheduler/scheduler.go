// Package scheduler owns the pool of active tasks for one batch. It decides
// when to spawn under a concurrency cap, a cooldown, and a minimum spawn
// interval, routes responses to the focused task, and retires tasks that
// answer or time out. The whole loop is single-threaded and tick-driven.
package scheduler

import (
	"context"
	"fmt"
	"math/rand"

	"github.com/okian/cadence/internal/domain/difficulty"
	"github.com/okian/cadence/internal/domain/model"
	"github.com/okian/cadence/internal/domain/task"
	"github.com/okian/cadence/pkg/logger"
	"github.com/okian/cadence/pkg/metrics"
)

// Spawn refusal reasons, used as metric labels.
const (
	refusalQuota    = "quota"
	refusalCapacity = "capacity"
	refusalCooldown = "cooldown"
	refusalInterval = "interval"
)

// Scheduler drives task spawning and retirement for one batch. It owns the
// random source and the session-level rule state; tasks receive the source at
// construction only.
type Scheduler struct {
	cfg difficulty.Config
	rng *rand.Rand
	log logger.Logger

	totalTasks       int
	interTaskPauseMS int64

	active    []task.Task
	created   int
	completed int

	cooldownMS  int64
	lastSpawnMS int64

	rule string
}

// New builds a scheduler for the given materialized difficulty.
func New(cfg difficulty.Config, opts ...Option) (*Scheduler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("scheduler config: %w", err)
	}

	s := &Scheduler{
		cfg:              cfg,
		rng:              rand.New(rand.NewSource(1)),
		log:              logger.Named("scheduler"),
		totalTasks:       10,
		interTaskPauseMS: 250,
		rule:             task.RuleColor,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// SetDifficulty swaps the difficulty used for future spawns. Tasks already
// active keep the parameters they were created with.
func (s *Scheduler) SetDifficulty(cfg difficulty.Config) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("scheduler config: %w", err)
	}
	s.cfg = cfg
	return nil
}

// Advance runs one tick: every active task gets its deadline check in
// creation order, finished tasks are retired, then at most one spawn is
// attempted. Retired results are returned in creation order.
func (s *Scheduler) Advance(ctx context.Context, nowMS int64) []model.TaskResult {
	var results []model.TaskResult

	remaining := s.active[:0]
	for _, t := range s.active {
		t.Advance(nowMS)
		if !t.Finished() {
			remaining = append(remaining, t)
			continue
		}
		results = append(results, s.retire(ctx, t, nowMS))
	}
	s.active = remaining
	metrics.UpdateActiveTasks(len(s.active))

	s.trySpawn(ctx, nowMS)
	return results
}

// HandleResponse delivers a response to the focused task, which is always the
// oldest active one. A resolved task is retired immediately and its result
// returned. Responses with no focusable task are dropped.
func (s *Scheduler) HandleResponse(ctx context.Context, sym model.Symbol, nowMS int64) (model.TaskResult, bool) {
	if !sym.Valid() || len(s.active) == 0 {
		return model.TaskResult{}, false
	}

	focused := s.active[0]
	if focused.Finished() {
		return model.TaskResult{}, false
	}

	focused.SubmitResponse(sym, nowMS)
	if !focused.Finished() {
		// The task declined the input, e.g. a memory probe not yet shown.
		return model.TaskResult{}, false
	}

	s.active = append(s.active[:0], s.active[1:]...)
	metrics.UpdateActiveTasks(len(s.active))
	return s.retire(ctx, focused, nowMS), true
}

// Focused returns the task currently owning the input focus, the oldest
// active one. Rendering heads and simulated participants read it.
func (s *Scheduler) Focused() (task.Task, bool) {
	if len(s.active) == 0 {
		return nil, false
	}
	return s.active[0], true
}

// Done reports whether the batch target has been met. Created and completed
// counts diverge while tasks are in flight, so completion is the signal.
func (s *Scheduler) Done() bool {
	return s.completed >= s.totalTasks
}

// Created returns the number of tasks spawned so far.
func (s *Scheduler) Created() int { return s.created }

// Completed returns the number of tasks retired so far.
func (s *Scheduler) Completed() int { return s.completed }

// ActiveCount returns the number of tasks currently in flight.
func (s *Scheduler) ActiveCount() int { return len(s.active) }

// Rule returns the current rule-switch rule. It persists across batches, so
// callers carry it into the next scheduler.
func (s *Scheduler) Rule() string { return s.rule }

// Restore rewinds the counters to a previously persisted position so a
// resumed batch spawns only the remaining quota.
func (s *Scheduler) Restore(created, completed int) {
	if created < 0 {
		created = 0
	}
	if completed < 0 {
		completed = 0
	}
	if completed > created {
		completed = created
	}
	s.created = created
	s.completed = completed
}

func (s *Scheduler) retire(ctx context.Context, t task.Task, nowMS int64) model.TaskResult {
	s.completed++
	s.cooldownMS = maxInt64(s.cooldownMS, nowMS+s.interTaskPauseMS)

	r := t.Result()
	if r.Timeout {
		metrics.RecordTaskTimeout(r.Kind.String())
	} else {
		metrics.RecordTaskCompleted(r.Kind.String(), r.Correct)
		metrics.RecordReactionTime(float64(r.ReactionMS))
	}
	s.log.Debug(ctx, "task retired",
		logger.String("task_id", r.Tag),
		logger.String("kind", r.Kind.String()),
		logger.Any("timeout", r.Timeout),
		logger.Any("correct", r.Correct))
	return r
}

// trySpawn attempts a single spawn. Refusal is backpressure, not an error.
func (s *Scheduler) trySpawn(ctx context.Context, nowMS int64) {
	if reason := s.spawnRefusal(nowMS); reason != "" {
		metrics.RecordSpawnRefusal(reason)
		return
	}

	kind := s.drawKind()
	t := s.build(kind, nowMS)

	s.active = append(s.active, t)
	s.created++
	s.lastSpawnMS = nowMS
	metrics.RecordTaskSpawned(kind.String())
	metrics.UpdateActiveTasks(len(s.active))

	s.log.Debug(ctx, "task spawned",
		logger.String("task_id", t.Spec().Tag),
		logger.String("kind", kind.String()),
		logger.Int("active", len(s.active)))
}

func (s *Scheduler) spawnRefusal(nowMS int64) string {
	switch {
	case s.created >= s.totalTasks:
		return refusalQuota
	case len(s.active) >= s.cfg.Global.ParallelStreams:
		return refusalCapacity
	case nowMS < s.cooldownMS:
		return refusalCooldown
	// A fresh scheduler counts from t=0, so the first spawn also waits out
	// the interval.
	case nowMS-s.lastSpawnMS < s.spawnIntervalMS():
		return refusalInterval
	default:
		return ""
	}
}

func (s *Scheduler) spawnIntervalMS() int64 {
	return int64(s.cfg.Global.EventRateSec * 1000)
}

// drawKind picks a task variant by weighted draw from the configured mix.
func (s *Scheduler) drawKind() model.Kind {
	r := s.rng.Float64()
	var cum float64
	kinds := model.Kinds()
	for i, k := range kinds {
		cum += s.cfg.Global.TaskMix[i]
		if r < cum {
			return k
		}
	}
	return kinds[len(kinds)-1]
}

// build constructs a task of the given kind. The rule-switch rule flips here,
// before construction, so the flip is visible in the spawned task's payload.
func (s *Scheduler) build(kind model.Kind, nowMS int64) task.Task {
	deadline := nowMS + int64(float64(s.cfg.TimeLimitMS(kind))*s.cfg.Global.TimePressure)
	spec := model.TaskSpec{
		Kind:       kind,
		Tag:        fmt.Sprintf("task-%04d", s.created+1),
		CreatedMS:  nowMS,
		DeadlineMS: deadline,
		Payload:    map[string]any{},
	}

	switch kind {
	case model.KindCodeComparison:
		d := s.cfg.Code
		spec.Difficulty = map[string]any{
			"code_len":        d.CodeLen,
			"similarity_rate": d.SimilarityRate,
			"time_limit_ms":   d.TimeLimitMS,
		}
		return task.NewCodeComparison(spec, d, s.rng)

	case model.KindSequenceMemory:
		d := s.cfg.Memory
		spec.Difficulty = map[string]any{
			"seq_len":            d.SeqLen,
			"retention_delay_ms": d.RetentionDelayMS,
			"time_limit_ms":      d.TimeLimitMS,
		}
		return task.NewSequenceMemory(spec, d, s.rng)

	case model.KindRuleSwitch:
		d := s.cfg.Switch
		if s.rng.Float64() < d.SwitchRate {
			s.flipRule()
		}
		spec.Payload[task.PayloadRuleKey] = s.rule
		spec.Difficulty = map[string]any{
			"rule_switch_rate": d.SwitchRate,
			"rule_complexity":  d.RuleComplexity,
			"time_limit_ms":    d.TimeLimitMS,
		}
		return task.NewRuleSwitch(spec, d, s.rng)

	case model.KindParityCheck:
		d := s.cfg.Parity
		spec.Difficulty = map[string]any{
			"min_value":           d.MinValue,
			"max_value":           d.MaxValue,
			"question_complexity": d.QuestionComplexity,
			"time_limit_ms":       d.TimeLimitMS,
		}
		return task.NewParityCheck(spec, d, s.rng)

	default:
		d := s.cfg.Signal
		spec.Difficulty = map[string]any{
			"signal_len":       d.SignalLen,
			"threat_rate":      d.ThreatRate,
			"target_pool_size": d.TargetPoolSize,
			"time_limit_ms":    d.TimeLimitMS,
		}
		return task.NewSignalDetection(spec, d, s.rng)
	}
}

func (s *Scheduler) flipRule() {
	if s.rule == task.RuleColor {
		s.rule = task.RuleShape
		return
	}
	s.rule = task.RuleColor
}

func maxInt64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}

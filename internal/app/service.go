// Package service runs one adaptive session end to end: it drives the
// scheduler tick by tick, feeds completed tasks to the adaptation controller
// and the batch progression, and persists outcomes through the configured
// adapters.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/okian/cadence/internal/adapters/policy"
	"github.com/okian/cadence/internal/adapters/sink"
	"github.com/okian/cadence/internal/adapters/snapshot"
	"github.com/okian/cadence/internal/adapters/telemetry"
	"github.com/okian/cadence/internal/domain/difficulty"
	"github.com/okian/cadence/internal/domain/model"
	"github.com/okian/cadence/internal/domain/task"
	"github.com/okian/cadence/internal/engine/adaptation"
	"github.com/okian/cadence/internal/engine/progression"
	"github.com/okian/cadence/internal/engine/scheduler"
	"github.com/okian/cadence/pkg/logger"
	"github.com/okian/cadence/pkg/metrics"
)

// Stability meter tuning. Correct answers nudge the meter up, errors and
// timeouts pull it down three times as hard.
const (
	stabilityGain = 0.01
	stabilityLoss = 0.03

	// Zone quality penalizes mean RT beyond this point, up to half the score.
	zoneRTFloorMS = 1400
	zoneRTSpanMS  = 2200
)

// Telemetry event types.
const (
	telemetryTaskResult = "task_result"
	telemetryAdaptation = "adaptation"
	telemetrySummary    = "session_summary"
	telemetryBatch      = "batch_outcome"
)

// Service owns one session. All mutating entry points are serialized; the
// tick driver is expected to be a single goroutine.
type Service struct {
	mu sync.Mutex

	// Adapters.
	sink      sink.Recorder
	snapshots snapshot.Store
	shipper   telemetry.Shipper
	decider   adaptation.Decider

	// Engine.
	sched      *scheduler.Scheduler
	controller *adaptation.Controller
	progress   *progression.Progression

	// Configuration.
	sessionID        string
	seed             int64
	mode             string
	batchSize        int
	totalBatches     int
	interTaskPauseMS int64
	pauseOnLevelUp   bool
	resume           bool
	policyPath       string
	sinkPath         string
	snapshotPath     string
	telemetryURL     string
	telemetryKey     string
	base             difficulty.Config
	levels           difficulty.LevelConfig

	// Session state.
	started      bool
	state        model.LevelState
	stability    float64
	completed    []model.TaskResult
	batchResults []model.TaskResult
	batchRuns    int
	batchPending bool
	clockMS      int64
	summary      *model.SessionSummary

	stopTelemetry context.CancelFunc
	telemetryDone chan struct{}

	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithSessionID pins the session identity instead of generating one.
func WithSessionID(id string) Option {
	return func(s *Service) {
		if id != "" {
			s.sessionID = id
		}
	}
}

// WithSeed seeds every random draw in the session.
func WithSeed(seed int64) Option {
	return func(s *Service) { s.seed = seed }
}

// WithMode selects the adaptation strategy mode.
func WithMode(mode string) Option {
	return func(s *Service) {
		if mode != "" {
			s.mode = mode
		}
	}
}

// WithBatches sets the per-batch task quota and the session batch count.
func WithBatches(batchSize, totalBatches int) Option {
	return func(s *Service) {
		if batchSize > 0 {
			s.batchSize = batchSize
		}
		if totalBatches > 0 {
			s.totalBatches = totalBatches
		}
	}
}

// WithInterTaskPause sets the post-retirement spawn cooldown in milliseconds.
func WithInterTaskPause(ms int64) Option {
	return func(s *Service) {
		if ms >= 0 {
			s.interTaskPauseMS = ms
		}
	}
}

// WithPauseOnLevelUp pauses the session after level-up batches.
func WithPauseOnLevelUp(pause bool) Option {
	return func(s *Service) { s.pauseOnLevelUp = pause }
}

// WithResume restores the session snapshot on start when one exists.
func WithResume(resume bool) Option {
	return func(s *Service) { s.resume = resume }
}

// WithDifficulty sets the base difficulty configuration.
func WithDifficulty(cfg difficulty.Config) Option {
	return func(s *Service) { s.base = cfg }
}

// WithLevels sets the level bounds and thresholds.
func WithLevels(lc difficulty.LevelConfig) Option {
	return func(s *Service) { s.levels = lc }
}

// WithPolicyPath points at the trained policy artifact.
func WithPolicyPath(path string) Option {
	return func(s *Service) { s.policyPath = path }
}

// WithSinkPath sets the JSONL outcome file. Empty disables the sink.
func WithSinkPath(path string) Option {
	return func(s *Service) { s.sinkPath = path }
}

// WithSnapshotPath sets the snapshot database. Empty disables persistence.
func WithSnapshotPath(path string) Option {
	return func(s *Service) { s.snapshotPath = path }
}

// WithTelemetryEndpoint configures the external collector.
func WithTelemetryEndpoint(url, apiKey string) Option {
	return func(s *Service) {
		s.telemetryURL = url
		s.telemetryKey = apiKey
	}
}

// WithRecorder injects an outcome recorder, mainly for tests.
func WithRecorder(r sink.Recorder) Option {
	return func(s *Service) {
		if r != nil {
			s.sink = r
		}
	}
}

// WithSnapshotStore injects a snapshot store, mainly for tests.
func WithSnapshotStore(st snapshot.Store) Option {
	return func(s *Service) {
		if st != nil {
			s.snapshots = st
		}
	}
}

// WithShipper injects a telemetry shipper, mainly for tests.
func WithShipper(sh telemetry.Shipper) Option {
	return func(s *Service) {
		if sh != nil {
			s.shipper = sh
		}
	}
}

// WithDecider injects the policy decision function, mainly for tests.
func WithDecider(d adaptation.Decider) Option {
	return func(s *Service) { s.decider = d }
}

// WithLogger sets a custom logger for the service.
func WithLogger(log logger.Logger) Option {
	return func(s *Service) {
		if log != nil {
			s.logger = log
		}
	}
}

// New constructs a Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		seed:             1,
		mode:             model.StrategyHeuristic,
		batchSize:        10,
		totalBatches:     5,
		interTaskPauseMS: 250,
		base:             difficulty.Default(),
		levels:           difficulty.DefaultLevelConfig(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start wires the adapters and spins up the first batch.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Named("session")
	}
	if err := s.base.Validate(); err != nil {
		return err
	}
	if err := s.levels.Validate(); err != nil {
		return err
	}
	if s.sessionID == "" {
		s.sessionID = uuid.NewString()
	}

	if err := s.wireAdapters(ctx); err != nil {
		return err
	}

	strategy, err := s.buildStrategy(ctx)
	if err != nil {
		return err
	}
	s.controller, err = adaptation.NewController(s.levels, strategy,
		adaptation.WithLogger(s.logger.Named("adaptation")))
	if err != nil {
		return err
	}
	s.progress, err = progression.New(s.levels, s.mode,
		progression.WithPauseOnLevelUp(s.pauseOnLevelUp),
		progression.WithLogger(s.logger.Named("progression")))
	if err != nil {
		return err
	}

	s.state = model.LevelState{Level: s.levels.StartLevel}
	s.stability = 0.5

	if s.resume {
		if err := s.restore(ctx); err != nil {
			return err
		}
	}

	if err := s.progress.Start(); err != nil {
		return err
	}
	if err := s.newBatch(""); err != nil {
		return err
	}

	tctx, cancel := context.WithCancel(context.Background())
	s.stopTelemetry = cancel
	s.telemetryDone = make(chan struct{})
	go func() {
		defer close(s.telemetryDone)
		s.shipper.Run(tctx)
	}()

	s.started = true
	metrics.UpdateLevel(s.state.Level)
	metrics.UpdateTempoOffset(s.state.TempoOffset)
	metrics.UpdateStability(s.stability)
	s.logger.Info(ctx, "session started",
		logger.String("session_id", s.sessionID),
		logger.String("mode", s.mode),
		logger.Int("batch_size", s.batchSize),
		logger.Int("total_batches", s.totalBatches),
		logger.Int("level", s.state.Level))
	return nil
}

// Stop shuts the session down. Pending telemetry is drained.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	ctx := context.Background()
	s.logger.Info(ctx, "stopping session", logger.String("session_id", s.sessionID))

	_ = s.shipper.Close()
	if s.stopTelemetry != nil {
		s.stopTelemetry()
		<-s.telemetryDone
	}
	_ = s.sink.Close()
	if s.snapshots != nil {
		_ = s.snapshots.Close()
	}
	s.started = false
}

// Tick advances the session clock. Timestamps must be non-decreasing.
func (s *Service) Tick(ctx context.Context, nowMS int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return ErrNotStarted
	}
	s.clockMS = nowMS
	if s.progress.Phase() != progression.PhaseRunning {
		return nil
	}

	for _, r := range s.sched.Advance(ctx, nowMS) {
		s.handleResult(ctx, r)
	}
	return s.maybeEndBatch(ctx, nowMS)
}

// HandleResponse routes one participant input to the focused task.
func (s *Service) HandleResponse(ctx context.Context, resp model.Response) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return ErrNotStarted
	}
	s.clockMS = resp.AtMS
	if s.progress.Phase() != progression.PhaseRunning {
		return nil
	}

	r, ok := s.sched.HandleResponse(ctx, resp.Symbol, resp.AtMS)
	if !ok {
		return nil
	}
	s.handleResult(ctx, r)
	return s.maybeEndBatch(ctx, resp.AtMS)
}

// Pause suspends the running batch on explicit request.
func (s *Service) Pause() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return ErrNotStarted
	}
	return s.progress.Pause()
}

// Continue resumes a paused or batch-complete session into its next batch.
func (s *Service) Continue() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return ErrNotStarted
	}

	if err := s.progress.Continue(); err != nil {
		return err
	}
	if s.batchPending {
		s.batchPending = false
		return s.newBatch(s.sched.Rule())
	}
	return nil
}

// Phase returns the current session phase.
func (s *Service) Phase() progression.Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started || s.progress == nil {
		return progression.PhaseAwaitingStart
	}
	return s.progress.Phase()
}

// Focused returns the task currently owning the input focus, if any.
func (s *Service) Focused() (task.Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started || s.sched == nil {
		return nil, false
	}
	return s.sched.Focused()
}

// Done reports whether the session has reached its terminal phase.
func (s *Service) Done() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.progress != nil && s.progress.Phase() == progression.PhaseSessionComplete
}

// Summary returns the final session summary once the session is complete.
func (s *Service) Summary() (model.SessionSummary, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.summary == nil {
		return model.SessionSummary{}, false
	}
	return *s.summary, true
}

// GetStats returns session statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := map[string]interface{}{
		"started":    s.started,
		"session_id": s.sessionID,
		"mode":       s.mode,
	}
	if !s.started {
		return stats
	}

	stats["phase"] = string(s.progress.Phase())
	stats["level"] = s.state.Level
	stats["tempo_offset"] = s.state.TempoOffset
	stats["stability"] = s.stability
	stats["batch_index"] = s.progress.BatchIndex()
	stats["batch_completed"] = s.sched.Completed()
	stats["batch_created"] = s.sched.Created()
	stats["active_tasks"] = s.sched.ActiveCount()
	stats["total_completed"] = len(s.completed)
	return stats
}

// wireAdapters builds the configured adapters unless injected.
func (s *Service) wireAdapters(ctx context.Context) error {
	if s.sink == nil {
		if s.sinkPath == "" {
			s.sink = sink.Nop{}
		} else {
			j, err := sink.NewJSONL(s.sinkPath)
			if err != nil {
				return err
			}
			s.sink = j
		}
	}
	if s.snapshots == nil && s.snapshotPath != "" {
		st, err := snapshot.New(ctx, s.snapshotPath)
		if err != nil {
			return err
		}
		s.snapshots = st
	}
	if s.shipper == nil {
		if s.telemetryURL == "" {
			s.shipper = telemetry.Nop{}
		} else {
			sh, err := telemetry.NewHTTP(s.telemetryURL,
				telemetry.WithAPIKey(s.telemetryKey),
				telemetry.WithLogger(s.logger.Named("telemetry")))
			if err != nil {
				return err
			}
			s.shipper = sh
		}
	}
	return nil
}

// buildStrategy resolves the adaptation strategy for the configured mode.
// In policy mode a missing artifact is not fatal; decisions degrade to
// neutral until a usable artifact is supplied.
func (s *Service) buildStrategy(ctx context.Context) (adaptation.Strategy, error) {
	if s.mode == model.StrategyHeuristic {
		return adaptation.NewHeuristic(s.levels), nil
	}
	if s.mode != model.StrategyPolicy {
		return nil, fmt.Errorf("%w: %q", progression.ErrUnknownMode, s.mode)
	}

	if s.decider == nil && s.policyPath != "" {
		lin, err := policy.Load(s.policyPath)
		if err != nil {
			s.logger.Warn(ctx, "policy artifact unusable, decisions degrade to neutral",
				logger.String("path", s.policyPath),
				logger.Error(err))
		} else {
			s.decider = lin
		}
	}
	return adaptation.NewPolicy(s.decider, s.logger.Named("policy")), nil
}

// newBatch builds a fresh scheduler for the next batch. The rule-switch rule
// carries over, each batch draws from its own deterministic seed lane, and
// spawn pacing restarts from the current session clock.
func (s *Service) newBatch(rule string) error {
	seed := s.seed + int64(s.batchRuns)*1_000_003
	s.batchRuns++
	s.batchResults = s.batchResults[:0]

	opts := []scheduler.Option{
		scheduler.WithSeed(seed),
		scheduler.WithTotalTasks(s.batchSize),
		scheduler.WithInterTaskPause(s.interTaskPauseMS),
		scheduler.WithSpawnCursor(s.clockMS),
		scheduler.WithLogger(s.logger.Named("scheduler")),
	}
	if rule != "" {
		opts = append(opts, scheduler.WithInitialRule(rule))
	}

	sched, err := scheduler.New(s.materialized(), opts...)
	if err != nil {
		return err
	}
	s.sched = sched
	return nil
}

func (s *Service) materialized() difficulty.Config {
	return difficulty.Materialize(s.base, s.state.Level, s.state.TempoOffset)
}

// handleResult runs the per-task pipeline: stability meter, sink, telemetry,
// then the window controller. A controller decision recomputes the
// scheduler's difficulty mid-batch.
func (s *Service) handleResult(ctx context.Context, r model.TaskResult) {
	s.batchResults = append(s.batchResults, r)
	s.completed = append(s.completed, r)

	if r.Correct && !r.Timeout {
		s.stability += stabilityGain
	} else {
		s.stability -= stabilityLoss
	}
	s.stability = clamp01(s.stability)
	metrics.UpdateStability(s.stability)

	if err := s.sink.WriteTaskResult(ctx, r); err != nil {
		s.logger.Error(ctx, "task result not persisted", logger.Error(err))
	}
	s.shipper.Track(ctx, s.sessionID, telemetryTaskResult, r.FinishedMS, r)

	next, rec := s.controller.Observe(ctx, r, s.state, s.materialized().Global)
	if rec == nil {
		return
	}
	if err := s.sink.WriteAdaptation(ctx, *rec); err != nil {
		s.logger.Error(ctx, "adaptation record not persisted", logger.Error(err))
	}
	s.shipper.Track(ctx, s.sessionID, telemetryAdaptation, r.FinishedMS, rec)

	if next != s.state {
		s.state = next
		if err := s.sched.SetDifficulty(s.materialized()); err != nil {
			s.logger.Error(ctx, "difficulty update rejected", logger.Error(err))
		}
	}
}

// maybeEndBatch closes the batch once the scheduler hits its quota.
func (s *Service) maybeEndBatch(ctx context.Context, nowMS int64) error {
	if !s.sched.Done() {
		return nil
	}

	stats := progression.BatchStats{Total: len(s.batchResults)}
	var correctTotal int
	for _, r := range s.batchResults {
		if r.Answered() {
			stats.Answered++
		}
		if r.Correct {
			stats.Correct++
			correctTotal++
		}
	}

	next, outcome, err := s.progress.Evaluate(ctx, stats, s.state)
	if err != nil {
		return err
	}
	s.state = next
	s.shipper.Track(ctx, s.sessionID, telemetryBatch, nowMS, map[string]any{
		"batch_index": s.progress.BatchIndex(),
		"outcome":     string(outcome),
		"answered":    stats.Answered,
		"correct":     stats.Correct,
	})
	s.persist(ctx)

	if outcome == progression.OutcomeRestart {
		// Replay the batch from a fresh spawn cursor; the rule state stays.
		if err := s.progress.Continue(); err != nil {
			return err
		}
		return s.newBatch(s.sched.Rule())
	}

	if s.progress.BatchIndex() >= s.totalBatches {
		return s.finalize(ctx)
	}

	if s.progress.Phase() == progression.PhasePaused {
		s.batchPending = true
		return nil
	}
	if err := s.progress.Continue(); err != nil {
		return err
	}
	return s.newBatch(s.sched.Rule())
}

// persist saves the resumable snapshot. Best-effort; a failed save is logged
// and the session keeps running.
func (s *Service) persist(ctx context.Context) {
	if s.snapshots == nil {
		return
	}
	snap := model.Snapshot{
		SessionID:   s.sessionID,
		Level:       s.state.Level,
		TempoOffset: s.state.TempoOffset,
		BatchIndex:  s.progress.BatchIndex(),
		AdaptStep:   s.controller.Step(),
		Completed:   append([]model.TaskResult(nil), s.completed...),
	}
	if err := s.snapshots.Save(ctx, snap); err != nil {
		s.logger.Error(ctx, "snapshot not saved", logger.Error(err))
	}
}

// restore loads the session snapshot. Out-of-range values are clamped back
// into the configured bounds. A missing snapshot starts a fresh session.
func (s *Service) restore(ctx context.Context) error {
	if s.snapshots == nil {
		return nil
	}
	snap, err := s.snapshots.Load(ctx, s.sessionID)
	if errors.Is(err, snapshot.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	s.state = model.LevelState{
		Level:       s.levels.ClampLevel(snap.Level),
		TempoOffset: difficulty.ClampTempo(snap.TempoOffset),
	}
	s.completed = snap.Completed
	s.controller.Restore(snap.AdaptStep)
	s.progress.Restore(snap.BatchIndex)
	s.batchRuns = snap.BatchIndex

	// Rebuild the stability meter from the persisted history.
	s.stability = 0.5
	for _, r := range s.completed {
		if r.Correct && !r.Timeout {
			s.stability += stabilityGain
		} else {
			s.stability -= stabilityLoss
		}
		s.stability = clamp01(s.stability)
	}

	s.logger.Info(ctx, "session restored",
		logger.String("session_id", s.sessionID),
		logger.Int("level", s.state.Level),
		logger.Int("tempo_offset", s.state.TempoOffset),
		logger.Int("batch_index", snap.BatchIndex),
		logger.Int("completed", len(s.completed)))
	return nil
}

// finalize computes the session summary and closes the session.
func (s *Service) finalize(ctx context.Context) error {
	if err := s.progress.Complete(); err != nil {
		return err
	}

	sum := s.buildSummary()
	s.summary = &sum
	if err := s.sink.WriteSummary(ctx, sum); err != nil {
		s.logger.Error(ctx, "session summary not persisted", logger.Error(err))
	}
	s.shipper.Track(ctx, s.sessionID, telemetrySummary, 0, sum)

	if s.snapshots != nil {
		if err := s.snapshots.Delete(ctx, s.sessionID); err != nil {
			s.logger.Error(ctx, "snapshot not deleted", logger.Error(err))
		}
	}

	s.logger.Info(ctx, "session complete",
		logger.String("session_id", s.sessionID),
		logger.Int("total_tasks", sum.TotalTasks),
		logger.Float64("accuracy", sum.Accuracy),
		logger.Float64("zone_quality", sum.ZoneQuality))
	return nil
}

func (s *Service) buildSummary() model.SessionSummary {
	win := adaptation.Summarize(s.completed)

	var successes int
	for _, r := range s.completed {
		if r.Correct && !r.Timeout {
			successes++
		}
	}

	rtPenalty := clamp((win.MeanRTMS-zoneRTFloorMS)/zoneRTSpanMS, 0, 0.5)
	return model.SessionSummary{
		SessionID:    s.sessionID,
		TotalTasks:   len(s.completed),
		Accuracy:     win.Accuracy,
		MeanRTMS:     win.MeanRTMS,
		RTVariance:   win.StdRTMS * win.StdRTMS,
		SwitchCostMS: win.SwitchCostMS,
		FatigueTrend: win.FatigueSlope,
		Successes:    successes,
		ZoneQuality:  clamp01(win.Accuracy - rtPenalty),
	}
}

func clamp01(v float64) float64 { return clamp(v, 0, 1) }

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

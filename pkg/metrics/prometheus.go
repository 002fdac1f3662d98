// Package metrics provides Prometheus metrics for the CADENCE session engine.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Default metrics configuration constants.
const (
	defaultRefreshInterval = 10 * time.Second
)

// Manager manages all Prometheus metrics for the CADENCE service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	enabled          bool
	refreshInterval  time.Duration
	customLabels     map[string]string
	metricPrefix     string
	registry         prometheus.Registerer

	// Task lifecycle metrics
	tasksSpawned   *prometheus.CounterVec
	tasksCompleted *prometheus.CounterVec
	tasksTimedOut  *prometheus.CounterVec
	reactionTime   prometheus.Histogram
	spawnRefusals  *prometheus.CounterVec
	activeTasks    prometheus.Gauge

	// Adaptation metrics
	adaptationSteps    prometheus.Counter
	policyDegraded     prometheus.Counter
	adaptationReward   prometheus.Histogram
	currentLevel       prometheus.Gauge
	currentTempoOffset prometheus.Gauge
	stability          prometheus.Gauge

	// Batch progression metrics
	batchOutcomes  *prometheus.CounterVec
	batchesStarted prometheus.Counter

	// Outcome sink metrics
	sinkWrites prometheus.Counter
	sinkErrors prometheus.Counter

	// Snapshot store metrics
	snapshotSaves       prometheus.Counter
	snapshotLoads       prometheus.Counter
	snapshotErrors      prometheus.Counter
	snapshotSaveLatency prometheus.Histogram

	// Telemetry shipper metrics
	telemetryQueued  prometheus.Counter
	telemetryShipped prometheus.Counter
	telemetryDropped prometheus.Counter
	telemetryRetries prometheus.Counter
	telemetryBreaker prometheus.Gauge

	// HTTP performance metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// System performance metrics
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

// Initialize global metrics.
func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "cadence",
		subsystem:        "session",
		histogramBuckets: prometheus.DefBuckets,
		enabled:          true,
		refreshInterval:  defaultRefreshInterval,
		customLabels:     make(map[string]string),
		metricPrefix:     "",
		registry:         prometheus.DefaultRegisterer,
	}

	// Apply all options
	for _, opt := range opts {
		opt(m)
	}

	// Initialize metrics
	m.initializeMetrics()

	return m
}

// reactionTimeBuckets cover the plausible human reaction range in ms.
var reactionTimeBuckets = []float64{200, 400, 600, 800, 1000, 1300, 1600, 2000, 2500, 3200, 4200} //nolint:gochecknoglobals // static bucket layout

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // long function required for comprehensive metrics initialization
	// Ensure metrics are registered on the configured registry (custom by default)
	auto := promauto.With(m.registry)

	m.tasksSpawned = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "tasks_spawned_total",
		Help:      "Total number of tasks spawned, by variant",
	}, []string{"kind"})

	m.tasksCompleted = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "tasks_completed_total",
		Help:      "Total number of tasks resolved by a response, by variant and correctness",
	}, []string{"kind", "correct"})

	m.tasksTimedOut = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "tasks_timed_out_total",
		Help:      "Total number of tasks retired by their deadline, by variant",
	}, []string{"kind"})

	m.reactionTime = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "reaction_time_milliseconds",
		Help:      "Histogram of reaction times for answered tasks",
		Buckets:   reactionTimeBuckets,
	})

	m.spawnRefusals = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "spawn_refusals_total",
		Help:      "Spawn attempts refused by backpressure, by reason",
	}, []string{"reason"})

	m.activeTasks = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "active_tasks",
		Help:      "Number of currently active tasks",
	})

	m.adaptationSteps = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "adaptation_steps_total",
		Help:      "Total number of adaptation decisions taken",
	})

	m.policyDegraded = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "policy_degraded_total",
		Help:      "Adaptation steps where the external policy was unavailable and the neutral action was used",
	})

	m.adaptationReward = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "adaptation_reward",
		Help:      "Histogram of per-step rewards logged for offline learning",
		Buckets:   []float64{-1, -0.5, -0.3, -0.1, 0, 0.1, 0.2, 0.3},
	})

	m.currentLevel = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "current_level",
		Help:      "Current difficulty level",
	})

	m.currentTempoOffset = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "current_tempo_offset",
		Help:      "Current tempo offset",
	})

	m.stability = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "stability",
		Help:      "Session stability meter in [0, 1]",
	})

	m.batchOutcomes = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "batch_outcomes_total",
		Help:      "Batch progression outcomes, by transition",
	}, []string{"outcome"})

	m.batchesStarted = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "batches_started_total",
		Help:      "Total number of batches started",
	})

	m.sinkWrites = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "sink_writes_total",
		Help:      "Records appended to the outcome sink",
	})

	m.sinkErrors = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "sink_errors_total",
		Help:      "Failed outcome sink writes",
	})

	m.snapshotSaves = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "snapshot_saves_total",
		Help:      "Session snapshots persisted",
	})

	m.snapshotLoads = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "snapshot_loads_total",
		Help:      "Session snapshots loaded for resume",
	})

	m.snapshotErrors = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "snapshot_errors_total",
		Help:      "Failed snapshot store operations",
	})

	m.snapshotSaveLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "snapshot_save_latency_milliseconds",
		Help:      "Histogram of snapshot save latency in milliseconds",
		Buckets:   m.histogramBuckets,
	})

	m.telemetryQueued = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "telemetry_queued_total",
		Help:      "Telemetry envelopes accepted into the ship queue",
	})

	m.telemetryShipped = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "telemetry_shipped_total",
		Help:      "Telemetry envelopes delivered to the collector",
	})

	m.telemetryDropped = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "telemetry_dropped_total",
		Help:      "Telemetry envelopes dropped (queue full or duplicate)",
	})

	m.telemetryRetries = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "telemetry_retries_total",
		Help:      "Telemetry delivery retries",
	})

	m.telemetryBreaker = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "telemetry_breaker_open",
		Help:      "1 when the telemetry circuit breaker is open",
	})

	m.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "http_requests_total",
		Help:      "HTTP requests, by endpoint, method and status",
	}, []string{"endpoint", "method", "status"})

	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "http_request_duration_milliseconds",
		Help:      "Histogram of HTTP request duration in milliseconds",
		Buckets:   m.histogramBuckets,
	}, []string{"endpoint", "method", "status"})

	m.systemMemoryUsage = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "system_memory_usage_bytes",
		Help:      "System memory usage in bytes",
	})

	m.systemGoroutineCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "system_goroutine_count",
		Help:      "Number of goroutines",
	})

	m.systemGCPauseTime = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "system_gc_pause_time_milliseconds",
		Help:      "GC pause time in milliseconds",
		Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000},
	})
}

// Task lifecycle functions.

// RecordTaskSpawned increments the spawned counter for a variant.
func RecordTaskSpawned(kind string) {
	globalManager.tasksSpawned.WithLabelValues(kind).Inc()
}

// RecordTaskCompleted increments the completed counter for a variant.
func RecordTaskCompleted(kind string, correct bool) {
	c := "false"
	if correct {
		c = "true"
	}
	globalManager.tasksCompleted.WithLabelValues(kind, c).Inc()
}

// RecordTaskTimeout increments the timeout counter for a variant.
func RecordTaskTimeout(kind string) {
	globalManager.tasksTimedOut.WithLabelValues(kind).Inc()
}

// RecordReactionTime records a reaction time in milliseconds.
func RecordReactionTime(rtMs float64) {
	globalManager.reactionTime.Observe(rtMs)
}

// RecordSpawnRefusal increments the refusal counter for a backpressure reason.
func RecordSpawnRefusal(reason string) {
	globalManager.spawnRefusals.WithLabelValues(reason).Inc()
}

// UpdateActiveTasks sets the current number of active tasks.
func UpdateActiveTasks(count int) {
	globalManager.activeTasks.Set(float64(count))
}

// Adaptation functions.

// RecordAdaptationStep increments the adaptation step counter.
func RecordAdaptationStep() {
	globalManager.adaptationSteps.Inc()
}

// RecordPolicyDegraded increments the degraded policy counter.
func RecordPolicyDegraded() {
	globalManager.policyDegraded.Inc()
}

// RecordAdaptationReward records a per-step reward.
func RecordAdaptationReward(reward float64) {
	globalManager.adaptationReward.Observe(reward)
}

// UpdateLevel sets the current level gauge.
func UpdateLevel(level int) {
	globalManager.currentLevel.Set(float64(level))
}

// UpdateTempoOffset sets the current tempo offset gauge.
func UpdateTempoOffset(tempo int) {
	globalManager.currentTempoOffset.Set(float64(tempo))
}

// UpdateStability sets the stability gauge.
func UpdateStability(v float64) {
	globalManager.stability.Set(v)
}

// Batch progression functions.

// RecordBatchOutcome increments the outcome counter for a batch transition.
func RecordBatchOutcome(outcome string) {
	globalManager.batchOutcomes.WithLabelValues(outcome).Inc()
}

// RecordBatchStarted increments the batches started counter.
func RecordBatchStarted() {
	globalManager.batchesStarted.Inc()
}

// Outcome sink functions.

// RecordSinkWrite increments the sink write counter.
func RecordSinkWrite() {
	globalManager.sinkWrites.Inc()
}

// RecordSinkError increments the sink error counter.
func RecordSinkError() {
	globalManager.sinkErrors.Inc()
}

// Snapshot store functions.

// RecordSnapshotSave increments the snapshot save counter.
func RecordSnapshotSave() {
	globalManager.snapshotSaves.Inc()
}

// RecordSnapshotLoad increments the snapshot load counter.
func RecordSnapshotLoad() {
	globalManager.snapshotLoads.Inc()
}

// RecordSnapshotError increments the snapshot error counter.
func RecordSnapshotError() {
	globalManager.snapshotErrors.Inc()
}

// RecordSnapshotSaveLatency records snapshot save latency in milliseconds.
func RecordSnapshotSaveLatency(latencyMs float64) {
	globalManager.snapshotSaveLatency.Observe(latencyMs)
}

// Telemetry shipper functions.

// RecordTelemetryQueued increments the queued envelope counter.
func RecordTelemetryQueued() {
	globalManager.telemetryQueued.Inc()
}

// RecordTelemetryShipped adds delivered envelopes to the shipped counter.
func RecordTelemetryShipped(n int) {
	globalManager.telemetryShipped.Add(float64(n))
}

// RecordTelemetryDropped increments the dropped envelope counter.
func RecordTelemetryDropped() {
	globalManager.telemetryDropped.Inc()
}

// RecordTelemetryRetry increments the delivery retry counter.
func RecordTelemetryRetry() {
	globalManager.telemetryRetries.Inc()
}

// UpdateTelemetryBreakerOpen sets the breaker gauge.
func UpdateTelemetryBreakerOpen(open bool) {
	v := 0.0
	if open {
		v = 1.0
	}
	globalManager.telemetryBreaker.Set(v)
}

// HTTP functions.

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// System performance functions.

// UpdateSystemMemoryUsage sets the system memory usage in bytes.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// RecordSystemGCPauseTime records GC pause time in milliseconds.
func RecordSystemGCPauseTime(pauseMs float64) {
	globalManager.systemGCPauseTime.Observe(pauseMs)
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}

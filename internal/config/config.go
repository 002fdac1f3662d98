// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New() to build a Config with defaults, Load(ctx) to layer
//   file and environment sources on top.
// - External errors must be wrapped via this package's error helpers.
package config

import (
	"fmt"

	"github.com/okian/cadence/internal/domain/difficulty"
	"github.com/okian/cadence/internal/domain/model"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// SessionID pins the session identity. Empty means a generated one.
	SessionID string `koanf:"session_id"`

	// Seed drives every random draw in the session. The same seed and the
	// same responses replay the same session.
	Seed int64 `koanf:"seed"`

	// Mode selects the adaptation strategy: heuristic or policy.
	Mode string `koanf:"mode"`

	// BatchSize is the task quota of one batch; TotalBatches ends the
	// session.
	BatchSize    int `koanf:"batch_size"`
	TotalBatches int `koanf:"total_batches"`

	// InterTaskPauseMS is the cooldown after each task retirement.
	InterTaskPauseMS int64 `koanf:"inter_task_pause_ms"`

	// PauseOnLevelUp inserts a pause phase after level-up batches.
	PauseOnLevelUp bool `koanf:"pause_on_level_up"`

	// Resume restores a previous snapshot for SessionID when present.
	Resume bool `koanf:"resume"`

	// PolicyPath points at the trained policy artifact (policy mode only).
	PolicyPath string `koanf:"policy_path"`

	// SinkPath is the JSONL outcome file. Empty disables the sink.
	SinkPath string `koanf:"sink_path"`

	// SnapshotPath is the SQLite snapshot database. Empty disables
	// persistence.
	SnapshotPath string `koanf:"snapshot_path"`

	// TelemetryEndpoint is the external collector URL. Empty disables
	// shipping.
	TelemetryEndpoint string `koanf:"telemetry_endpoint"`
	TelemetryAPIKey   string `koanf:"telemetry_api_key"`

	// Difficulty is the base difficulty before level and tempo transforms.
	Difficulty difficulty.Config `koanf:"difficulty"`

	// Levels bounds the adaptive range and its thresholds.
	Levels difficulty.LevelConfig `koanf:"levels"`
}

// New creates a Config with defaults.
func New() *Config {
	return &Config{
		LogLevel:         "info",
		Addr:             ":9080",
		Seed:             1,
		Mode:             model.StrategyHeuristic,
		BatchSize:        10,
		TotalBatches:     5,
		InterTaskPauseMS: 250,
		SinkPath:         "data/session.jsonl",
		SnapshotPath:     "data/cadence.db",
		Difficulty:       difficulty.Default(),
		Levels:           difficulty.DefaultLevelConfig(),
	}
}

// Validate rejects configurations the session could not run with.
func (c *Config) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	}
	if c.Mode != model.StrategyHeuristic && c.Mode != model.StrategyPolicy {
		return fmt.Errorf("%w: mode must be %q or %q",
			ErrInvalidConfig, model.StrategyHeuristic, model.StrategyPolicy)
	}
	if c.BatchSize < 1 || c.TotalBatches < 1 {
		return fmt.Errorf("%w: batch_size and total_batches must be >= 1", ErrInvalidConfig)
	}
	if c.InterTaskPauseMS < 0 {
		return fmt.Errorf("%w: inter_task_pause_ms must not be negative", ErrInvalidConfig)
	}
	if c.Mode == model.StrategyPolicy && c.PolicyPath == "" {
		return fmt.Errorf("%w: policy mode needs policy_path", ErrInvalidConfig)
	}
	if err := c.Difficulty.Validate(); err != nil {
		return err
	}
	return c.Levels.Validate()
}

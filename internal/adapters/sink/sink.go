// Package sink persists session outcomes as append-only JSON lines. One line
// per record, each wrapped in a typed envelope so offline tooling can filter
// by record type without schema knowledge.
package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/okian/cadence/internal/domain/model"
	"github.com/okian/cadence/pkg/metrics"
)

// Record types written to the stream.
const (
	typeTaskResult = "task_result"
	typeAdaptation = "adaptation"
	typeSummary    = "session_summary"
)

// Recorder receives every durable outcome of a session.
type Recorder interface {
	WriteTaskResult(ctx context.Context, r model.TaskResult) error
	WriteAdaptation(ctx context.Context, rec model.AdaptationRecord) error
	WriteSummary(ctx context.Context, s model.SessionSummary) error
	Close() error
}

// envelope is one output line.
type envelope struct {
	Type string `json:"type"`
	AtMS int64  `json:"at_ms"`
	Kind string `json:"kind,omitempty"`
	Data any    `json:"data"`
}

// JSONL appends envelopes to a file. Safe for concurrent use.
type JSONL struct {
	mu  sync.Mutex
	f   *os.File
	enc *json.Encoder
	now func() time.Time
}

// NewJSONL opens (or creates) the sink file in append mode.
func NewJSONL(path string) (*JSONL, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("sink dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("sink open: %w", err)
	}
	return &JSONL{f: f, enc: json.NewEncoder(f), now: time.Now}, nil
}

func (j *JSONL) WriteTaskResult(_ context.Context, r model.TaskResult) error {
	return j.write(envelope{Type: typeTaskResult, Kind: r.Kind.String(), Data: r})
}

func (j *JSONL) WriteAdaptation(_ context.Context, rec model.AdaptationRecord) error {
	return j.write(envelope{Type: typeAdaptation, Data: rec})
}

func (j *JSONL) WriteSummary(_ context.Context, s model.SessionSummary) error {
	return j.write(envelope{Type: typeSummary, Data: s})
}

// Close flushes nothing extra; the encoder writes through on every line.
func (j *JSONL) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.f.Close()
}

func (j *JSONL) write(e envelope) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	e.AtMS = j.now().UnixMilli()
	if err := j.enc.Encode(e); err != nil {
		metrics.RecordSinkError()
		return fmt.Errorf("sink write: %w", err)
	}
	metrics.RecordSinkWrite()
	return nil
}

// Nop discards every record. Used when no sink path is configured.
type Nop struct{}

func (Nop) WriteTaskResult(context.Context, model.TaskResult) error       { return nil }
func (Nop) WriteAdaptation(context.Context, model.AdaptationRecord) error { return nil }
func (Nop) WriteSummary(context.Context, model.SessionSummary) error      { return nil }
func (Nop) Close() error                                                  { return nil }

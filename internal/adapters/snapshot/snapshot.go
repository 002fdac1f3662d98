// Package snapshot persists resumable session state in SQLite. One row holds
// the session position; completed task results are stored alongside it as
// JSON so a resumed session can rebuild its batch tally.
package snapshot

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/okian/cadence/internal/domain/model"
	"github.com/okian/cadence/pkg/logger"
	"github.com/okian/cadence/pkg/metrics"
)

// Store persists and restores session snapshots.
type Store interface {
	Save(ctx context.Context, snap model.Snapshot) error
	Load(ctx context.Context, sessionID string) (model.Snapshot, error)
	Delete(ctx context.Context, sessionID string) error
	Close() error
}

// SQLite implements Store on modernc.org/sqlite.
type SQLite struct {
	db  *sql.DB
	log logger.Logger
}

// New opens (or creates) the snapshot database at the given path.
func New(ctx context.Context, path string) (*SQLite, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("snapshot dir: %w", err)
	}

	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL", path)
	return open(ctx, dsn)
}

// NewMemory opens an in-memory store for tests.
func NewMemory(ctx context.Context) (*SQLite, error) {
	return open(ctx, "file::memory:?mode=memory&cache=shared")
}

func open(ctx context.Context, dsn string) (*SQLite, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("snapshot open: %w", err)
	}
	db.SetMaxOpenConns(1)

	s := &SQLite{db: db, log: logger.Named("snapshot")}
	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("snapshot schema: %w", err)
	}
	return s, nil
}

func (s *SQLite) initSchema(ctx context.Context) error {
	const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	session_id   TEXT PRIMARY KEY,
	level        INTEGER NOT NULL,
	tempo_offset INTEGER NOT NULL,
	batch_index  INTEGER NOT NULL,
	adapt_step   INTEGER NOT NULL,
	updated_at   INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS results (
	session_id TEXT NOT NULL,
	seq        INTEGER NOT NULL,
	payload    TEXT NOT NULL,
	PRIMARY KEY (session_id, seq)
);`
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// Save upserts the whole snapshot in one transaction, replacing any earlier
// result rows for the session.
func (s *SQLite) Save(ctx context.Context, snap model.Snapshot) error {
	start := time.Now()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		metrics.RecordSnapshotError()
		return fmt.Errorf("snapshot save: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
INSERT INTO sessions (session_id, level, tempo_offset, batch_index, adapt_step, updated_at)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(session_id) DO UPDATE SET
	level = excluded.level,
	tempo_offset = excluded.tempo_offset,
	batch_index = excluded.batch_index,
	adapt_step = excluded.adapt_step,
	updated_at = excluded.updated_at`,
		snap.SessionID, snap.Level, snap.TempoOffset, snap.BatchIndex,
		snap.AdaptStep, time.Now().UnixMilli())
	if err != nil {
		metrics.RecordSnapshotError()
		return fmt.Errorf("snapshot save session: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM results WHERE session_id = ?`, snap.SessionID); err != nil {
		metrics.RecordSnapshotError()
		return fmt.Errorf("snapshot clear results: %w", err)
	}
	for i, r := range snap.Completed {
		payload, err := json.Marshal(r)
		if err != nil {
			metrics.RecordSnapshotError()
			return fmt.Errorf("snapshot encode result: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO results (session_id, seq, payload) VALUES (?, ?, ?)`,
			snap.SessionID, i, string(payload)); err != nil {
			metrics.RecordSnapshotError()
			return fmt.Errorf("snapshot save result: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		metrics.RecordSnapshotError()
		return fmt.Errorf("snapshot commit: %w", err)
	}

	metrics.RecordSnapshotSave()
	metrics.RecordSnapshotSaveLatency(float64(time.Since(start).Milliseconds()))
	return nil
}

// Load restores a snapshot. Result rows that fail to parse are skipped with
// a warning rather than failing the resume.
func (s *SQLite) Load(ctx context.Context, sessionID string) (model.Snapshot, error) {
	var snap model.Snapshot
	err := s.db.QueryRowContext(ctx, `
SELECT session_id, level, tempo_offset, batch_index, adapt_step
FROM sessions WHERE session_id = ?`, sessionID).
		Scan(&snap.SessionID, &snap.Level, &snap.TempoOffset,
			&snap.BatchIndex, &snap.AdaptStep)
	if err == sql.ErrNoRows {
		return model.Snapshot{}, fmt.Errorf("%w: %s", ErrNotFound, sessionID)
	}
	if err != nil {
		metrics.RecordSnapshotError()
		return model.Snapshot{}, fmt.Errorf("snapshot load: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT seq, payload FROM results WHERE session_id = ? ORDER BY seq`, sessionID)
	if err != nil {
		metrics.RecordSnapshotError()
		return model.Snapshot{}, fmt.Errorf("snapshot load results: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var seq int
		var payload string
		if err := rows.Scan(&seq, &payload); err != nil {
			metrics.RecordSnapshotError()
			return model.Snapshot{}, fmt.Errorf("snapshot scan result: %w", err)
		}
		var r model.TaskResult
		if err := json.Unmarshal([]byte(payload), &r); err != nil {
			s.log.Warn(ctx, "skipping unparseable snapshot result",
				logger.String("session_id", sessionID),
				logger.Int("seq", seq),
				logger.Error(err))
			continue
		}
		snap.Completed = append(snap.Completed, r)
	}
	if err := rows.Err(); err != nil {
		metrics.RecordSnapshotError()
		return model.Snapshot{}, fmt.Errorf("snapshot iterate results: %w", err)
	}

	metrics.RecordSnapshotLoad()
	return snap, nil
}

// Delete removes a session's snapshot, typically after a clean finish.
func (s *SQLite) Delete(ctx context.Context, sessionID string) error {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM sessions WHERE session_id = ?`, sessionID); err != nil {
		return fmt.Errorf("snapshot delete: %w", err)
	}
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM results WHERE session_id = ?`, sessionID); err != nil {
		return fmt.Errorf("snapshot delete results: %w", err)
	}
	return nil
}

// Close closes the database.
func (s *SQLite) Close() error {
	return s.db.Close()
}

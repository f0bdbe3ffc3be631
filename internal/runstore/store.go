// File: internal/runstore/store.go
// Brief: Local sqlite history of orchestration runs.

// Package runstore records every orchestration run in a local sqlite file so
// `envctl runs` can answer "what happened to prod last Tuesday" without the
// cloud provider's audit trail.
package runstore

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/example/envctl/internal/runner"
)

const runsSQLiteRelPath = ".envctl/runs.sqlite"

// Store is an append-only run log.
type Store struct {
	db   *sql.DB
	path string
}

// Open creates or opens the run store under root.
func Open(root string) (*Store, error) {
	if root == "" {
		root = "."
	}
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	path := filepath.Join(absRoot, runsSQLiteRelPath)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	s := &Store{db: db, path: path}
	if err := s.initSchema(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

// Close folds the WAL back into the main file and closes the handle.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	_, _ = s.db.Exec(`PRAGMA wal_checkpoint(TRUNCATE);`)
	return s.db.Close()
}

func (s *Store) initSchema(ctx context.Context) error {
	stmts := []string{
		`PRAGMA journal_mode=WAL;`,
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			env TEXT NOT NULL,
			verb TEXT NOT NULL,
			started_at_ns INTEGER NOT NULL,
			finished_at_ns INTEGER NOT NULL,
			status TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS run_steps (
			run_id TEXT NOT NULL REFERENCES runs(id),
			idx INTEGER NOT NULL,
			name TEXT NOT NULL,
			kind TEXT NOT NULL,
			status TEXT NOT NULL,
			error TEXT NOT NULL DEFAULT '',
			duration_ms INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (run_id, idx)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_runs_env ON runs(env, started_at_ns);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	return nil
}

// Append records one report.
func (s *Store) Append(ctx context.Context, report *runner.Report) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("append run: %w", err)
	}
	// The runner stamps the outcome; reports built by hand fall back to the
	// step statuses so a FAILED step can never be listed as a success.
	status := report.Outcome
	if status == "" {
		status = runner.RunSucceeded
		if report.Failed() {
			status = runner.RunFailed
		}
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO runs (id, env, verb, started_at_ns, finished_at_ns, status) VALUES (?, ?, ?, ?, ?, ?);`,
		report.RunID, report.Env, report.Verb,
		report.StartedAt.UTC().UnixNano(),
		report.FinishedAt.UTC().UnixNano(),
		status,
	); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("append run: %w", err)
	}
	for idx, step := range report.Steps {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO run_steps (run_id, idx, name, kind, status, error, duration_ms) VALUES (?, ?, ?, ?, ?, ?, ?);`,
			report.RunID, idx, step.Name, string(step.Kind), string(step.Status), step.Error, step.Duration.Milliseconds(),
		); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("append run step %s: %w", step.Name, err)
		}
	}
	return tx.Commit()
}

// Entry is one listed run.
type Entry struct {
	RunID      string    `json:"runId"`
	Env        string    `json:"env"`
	Verb       string    `json:"verb"`
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt"`
	Status     string    `json:"status"`
	Steps      int       `json:"steps"`
	Failed     string    `json:"failedStep,omitempty"`
}

// List returns the most recent runs for env, newest first.
func (s *Store) List(ctx context.Context, env string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.id, r.env, r.verb, r.started_at_ns, r.finished_at_ns, r.status,
			(SELECT COUNT(*) FROM run_steps st WHERE st.run_id = r.id),
			COALESCE((SELECT st.name FROM run_steps st WHERE st.run_id = r.id AND st.status = 'FAILED' LIMIT 1), '')
		FROM runs r
		WHERE r.env = ?
		ORDER BY r.started_at_ns DESC
		LIMIT ?;`, env, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()
	var out []Entry
	for rows.Next() {
		var e Entry
		var started, finished int64
		if err := rows.Scan(&e.RunID, &e.Env, &e.Verb, &started, &finished, &e.Status, &e.Steps, &e.Failed); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		e.StartedAt = time.Unix(0, started).UTC()
		e.FinishedAt = time.Unix(0, finished).UTC()
		out = append(out, e)
	}
	return out, rows.Err()
}

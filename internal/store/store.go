// Package store keeps a SQLite journal of sync runs.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Run statuses.
const (
	StatusOK     = "ok"
	StatusFailed = "failed"
)

const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// ErrRunNotFound is returned for unknown run ids.
var ErrRunNotFound = errors.New("run not found")

// Run is one recorded sync.
type Run struct {
	ID         string
	Target     string
	StartedAt  time.Time
	FinishedAt time.Time
	Status     string
	Error      string
}

// RunDocument is the outcome of one document within a run.
type RunDocument struct {
	Path     string
	RemoteID int64
	Action   string
}

// Store wraps a SQLite database holding the sync history.
type Store struct {
	db *sql.DB
}

// NewStore opens (or creates) a SQLite database at dbPath and ensures
// all required tables exist. Use ":memory:" for an in-memory database.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// One connection keeps ":memory:" databases shared and serializes writers.
	db.SetMaxOpenConns(1)

	if err := createTables(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func createTables(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id          TEXT PRIMARY KEY,
			target      TEXT NOT NULL,
			started_at  TEXT NOT NULL,
			finished_at TEXT NOT NULL,
			status      TEXT NOT NULL,
			error       TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE TABLE IF NOT EXISTS run_documents (
			run_id    TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
			path      TEXT NOT NULL,
			remote_id INTEGER NOT NULL,
			action    TEXT NOT NULL,
			PRIMARY KEY (run_id, path)
		)`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("exec %q: %w", stmt[:40], err)
		}
	}
	return nil
}

// RecordRun stores run and its documents in one transaction. A run without
// an id gets a fresh one, which is returned.
func (s *Store) RecordRun(run Run, docs []RunDocument) (string, error) {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	tx, err := s.db.Begin()
	if err != nil {
		return "", fmt.Errorf("record run: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	_, err = tx.Exec(
		`INSERT INTO runs (id, target, started_at, finished_at, status, error)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		run.ID, run.Target, formatTime(run.StartedAt), formatTime(run.FinishedAt), run.Status, run.Error,
	)
	if err != nil {
		return "", fmt.Errorf("record run: %w", err)
	}
	for _, d := range docs {
		_, err := tx.Exec(
			`INSERT INTO run_documents (run_id, path, remote_id, action) VALUES (?, ?, ?, ?)`,
			run.ID, d.Path, d.RemoteID, d.Action,
		)
		if err != nil {
			return "", fmt.Errorf("record run document %s: %w", d.Path, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("record run: %w", err)
	}
	return run.ID, nil
}

// ListRuns returns up to limit runs, newest first. A limit below one lists
// every run.
func (s *Store) ListRuns(limit int) ([]Run, error) {
	if limit < 1 {
		limit = -1
	}
	rows, err := s.db.Query(
		`SELECT id, target, started_at, finished_at, status, error
		 FROM runs ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		var r Run
		var started, finished string
		if err := rows.Scan(&r.ID, &r.Target, &started, &finished, &r.Status, &r.Error); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		if r.StartedAt, err = parseTime(started); err != nil {
			return nil, err
		}
		if r.FinishedAt, err = parseTime(finished); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// RunDocuments returns the documents of a run ordered by path.
func (s *Store) RunDocuments(runID string) ([]RunDocument, error) {
	var exists int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM runs WHERE id = ?`, runID).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("query run: %w", err)
	}
	if exists == 0 {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}

	rows, err := s.db.Query(
		`SELECT path, remote_id, action FROM run_documents WHERE run_id = ? ORDER BY path`, runID,
	)
	if err != nil {
		return nil, fmt.Errorf("list run documents: %w", err)
	}
	defer rows.Close()

	var out []RunDocument
	for rows.Next() {
		var d RunDocument
		if err := rows.Scan(&d.Path, &d.RemoteID, &d.Action); err != nil {
			return nil, fmt.Errorf("scan run document: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func formatTime(t time.Time) string { return t.UTC().Format(timeLayout) }

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse time %q: %w", s, err)
	}
	return t, nil
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package ledger records pipeline runs in a local SQLite database. It is an
// audit trail: nothing in the pipeline reads it back to decide what to do.
package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/digesto/pkg/types"
)

const dbFile = "digesto.db"

// ErrRunNotFound reports an unknown run ID.
var ErrRunNotFound = errors.New("run not found")

// Store manages the ledger database.
type Store struct {
	db  *sql.DB
	dir string
}

// Open opens or creates the ledger at dir/digesto.db and creates the schema
// if it does not exist.
func Open(cfg types.LedgerConfig) (*Store, error) {
	if cfg.Dir == "" {
		return nil, errors.New("ledger directory is required")
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating ledger directory: %w", err)
	}

	dbPath := filepath.Join(cfg.Dir, dbFile)
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{db: db, dir: cfg.Dir}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Dir returns the directory holding the database.
func (s *Store) Dir() string { return s.dir }

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			flow TEXT NOT NULL,
			started_at TEXT NOT NULL,
			finished_at TEXT,
			indexed INTEGER NOT NULL DEFAULT 0,
			selected INTEGER NOT NULL DEFAULT 0,
			converted INTEGER NOT NULL DEFAULT 0,
			failed INTEGER NOT NULL DEFAULT 0,
			uploaded INTEGER NOT NULL DEFAULT 0,
			error TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS conversions (
			run_id INTEGER NOT NULL REFERENCES runs(id),
			doc_id TEXT NOT NULL,
			source TEXT NOT NULL,
			dest TEXT,
			status TEXT NOT NULL,
			error TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS uploads (
			run_id INTEGER NOT NULL REFERENCES runs(id),
			key TEXT NOT NULL,
			source TEXT NOT NULL,
			status TEXT NOT NULL,
			error TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_conversions_run ON conversions(run_id)`,
		`CREATE INDEX IF NOT EXISTS idx_uploads_run ON uploads(run_id)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// Counts are the per-stage totals stored on a finished run.
type Counts struct {
	Indexed   int `json:"indexed" yaml:"indexed"`
	Selected  int `json:"selected" yaml:"selected"`
	Converted int `json:"converted" yaml:"converted"`
	Failed    int `json:"failed" yaml:"failed"`
	Uploaded  int `json:"uploaded" yaml:"uploaded"`
}

// Run is one row of the runs table.
type Run struct {
	ID         int64     `json:"id" yaml:"id"`
	Flow       string    `json:"flow" yaml:"flow"`
	StartedAt  time.Time `json:"started_at" yaml:"started_at"`
	FinishedAt time.Time `json:"finished_at,omitempty" yaml:"finished_at,omitempty"`
	Error      string    `json:"error,omitempty" yaml:"error,omitempty"`

	Counts `yaml:",inline"`
}

// BeginRun inserts a new run and returns its ID.
func (s *Store) BeginRun(ctx context.Context, flow string) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (flow, started_at) VALUES (?, ?)`,
		flow, time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return 0, fmt.Errorf("inserting run: %w", err)
	}
	return res.LastInsertId()
}

// RecordConversion stores the outcome of converting one document.
func (s *Store) RecordConversion(ctx context.Context, runID int64, doc types.Document, dest string, status types.ConversionStatus, convErr error) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO conversions (run_id, doc_id, source, dest, status, error) VALUES (?, ?, ?, ?, ?, ?)`,
		runID, doc.ID, doc.Path, nullString(dest), string(status), errString(convErr))
	if err != nil {
		return fmt.Errorf("recording conversion of %s: %w", doc.ID, err)
	}
	return nil
}

// RecordUpload stores the outcome of uploading one document.
func (s *Store) RecordUpload(ctx context.Context, runID int64, key, source string, status types.UploadStatus, upErr error) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO uploads (run_id, key, source, status, error) VALUES (?, ?, ?, ?, ?)`,
		runID, key, source, string(status), errString(upErr))
	if err != nil {
		return fmt.Errorf("recording upload of %s: %w", key, err)
	}
	return nil
}

// FinishRun stamps the run with its totals and terminal error, if any.
func (s *Store) FinishRun(ctx context.Context, runID int64, c Counts, runErr error) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET finished_at = ?, indexed = ?, selected = ?, converted = ?, failed = ?, uploaded = ?, error = ?
		 WHERE id = ?`,
		time.Now().UTC().Format(time.RFC3339Nano),
		c.Indexed, c.Selected, c.Converted, c.Failed, c.Uploaded, errString(runErr), runID)
	if err != nil {
		return fmt.Errorf("finishing run %d: %w", runID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %d", ErrRunNotFound, runID)
	}
	return nil
}

// Runs returns the most recent runs, newest first. limit <= 0 means 20.
func (s *Store) Runs(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, flow, started_at, finished_at, indexed, selected, converted, failed, uploaded, error
		 FROM runs ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// GetRun returns a single run by ID.
func (s *Store) GetRun(ctx context.Context, runID int64) (Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, flow, started_at, finished_at, indexed, selected, converted, failed, uploaded, error
		 FROM runs WHERE id = ?`, runID)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("%w: %d", ErrRunNotFound, runID)
	}
	return r, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (Run, error) {
	var (
		r                 Run
		started           string
		finished, errText sql.NullString
	)
	err := sc.Scan(&r.ID, &r.Flow, &started, &finished,
		&r.Indexed, &r.Selected, &r.Converted, &r.Failed, &r.Uploaded, &errText)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return r, err
		}
		return r, fmt.Errorf("scanning run: %w", err)
	}
	r.StartedAt, _ = time.Parse(time.RFC3339Nano, started)
	if finished.Valid {
		r.FinishedAt, _ = time.Parse(time.RFC3339Nano, finished.String)
	}
	r.Error = errText.String
	return r, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func errString(err error) sql.NullString {
	if err == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: err.Error(), Valid: true}
}

// Package store keeps the run ledger: one row per digest run in a SQLite file.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// ErrNotFound is returned when a run id is unknown.
var ErrNotFound = errors.New("run not found")

// Run is the persisted summary of one invocation.
type Run struct {
	ID           string    `json:"id"`
	Date         string    `json:"date"`
	Status       string    `json:"status"`
	Publish      bool      `json:"publish"`
	MarkdownPath string    `json:"markdown_path,omitempty"`
	HTMLPath     string    `json:"html_path,omitempty"`
	CoverPath    string    `json:"cover_path,omitempty"`
	CoverMediaID string    `json:"cover_media_id,omitempty"`
	DraftID      string    `json:"draft_id,omitempty"`
	PublishID    string    `json:"publish_id,omitempty"`
	Outcome      string    `json:"outcome,omitempty"`
	Error        string    `json:"error,omitempty"`
	StartedAt    time.Time `json:"started_at"`
	FinishedAt   time.Time `json:"finished_at"`
}

// Store wraps the ledger database.
type Store struct {
	db *sql.DB
}

// Open opens or creates the ledger at path and ensures the schema exists.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating ledger directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	s := &Store{db: db}
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

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			date TEXT NOT NULL,
			status TEXT NOT NULL,
			publish INTEGER NOT NULL DEFAULT 0,
			markdown_path TEXT,
			html_path TEXT,
			cover_path TEXT,
			cover_media_id TEXT,
			draft_id TEXT,
			publish_id TEXT,
			outcome TEXT,
			error TEXT,
			started_at TEXT NOT NULL,
			finished_at TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_date ON runs(date)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// SaveRun inserts or replaces the row for r.ID.
func (s *Store) SaveRun(ctx context.Context, r Run) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO runs
		(id, date, status, publish, markdown_path, html_path, cover_path, cover_media_id,
		 draft_id, publish_id, outcome, error, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			publish = excluded.publish,
			markdown_path = excluded.markdown_path,
			html_path = excluded.html_path,
			cover_path = excluded.cover_path,
			cover_media_id = excluded.cover_media_id,
			draft_id = excluded.draft_id,
			publish_id = excluded.publish_id,
			outcome = excluded.outcome,
			error = excluded.error,
			finished_at = excluded.finished_at`,
		r.ID, r.Date, r.Status, r.Publish, r.MarkdownPath, r.HTMLPath, r.CoverPath, r.CoverMediaID,
		r.DraftID, r.PublishID, r.Outcome, r.Error, formatTime(r.StartedAt), formatTime(r.FinishedAt))
	if err != nil {
		return fmt.Errorf("saving run %s: %w", r.ID, err)
	}
	return nil
}

const selectRun = `SELECT id, date, status, publish, markdown_path, html_path, cover_path, cover_media_id,
	draft_id, publish_id, outcome, error, started_at, finished_at FROM runs`

// GetRun loads one run by id.
func (s *Store) GetRun(ctx context.Context, id string) (Run, error) {
	row := s.db.QueryRowContext(ctx, selectRun+` WHERE id = ?`, id)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, ErrNotFound
	}
	return r, err
}

// ListRuns returns the most recent runs first. limit <= 0 means 20.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, selectRun+` ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
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

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (Run, error) {
	var (
		r                                 Run
		md, html, coverPath, media, draft sql.NullString
		publishID, outcome, errMsg        sql.NullString
		started, finished                 sql.NullString
	)
	if err := sc.Scan(&r.ID, &r.Date, &r.Status, &r.Publish, &md, &html, &coverPath, &media,
		&draft, &publishID, &outcome, &errMsg, &started, &finished); err != nil {
		return Run{}, err
	}
	r.MarkdownPath = md.String
	r.HTMLPath = html.String
	r.CoverPath = coverPath.String
	r.CoverMediaID = media.String
	r.DraftID = draft.String
	r.PublishID = publishID.String
	r.Outcome = outcome.String
	r.Error = errMsg.String
	r.StartedAt = parseTime(started.String)
	r.FinishedAt = parseTime(finished.String)
	return r, nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

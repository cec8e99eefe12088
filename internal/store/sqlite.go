package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/applyflow/agent-relay/internal/domain"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite creates a new SQLite-backed run archive.
func NewSQLite(dbPath string) (Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// Open database with WAL mode for better concurrency.
	dsn := dbPath + "?_journal=WAL&_sync=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS runs (
		session_id TEXT PRIMARY KEY,
		job_url TEXT NOT NULL,
		status TEXT NOT NULL,
		total_actions INTEGER NOT NULL,
		questions_found INTEGER NOT NULL,
		questions_filled INTEGER NOT NULL,
		screenshots_taken INTEGER NOT NULL,
		started_at INTEGER NOT NULL,
		ended_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_runs_ended ON runs(ended_at);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// SaveRun records the summary of a finished session.
func (s *SQLiteStore) SaveRun(ctx context.Context, run *domain.RunRecord) error {
	query := `
	INSERT INTO runs (
		session_id, job_url, status, total_actions, questions_found,
		questions_filled, screenshots_taken, started_at, ended_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(session_id) DO UPDATE SET
		status = excluded.status,
		total_actions = excluded.total_actions,
		questions_found = excluded.questions_found,
		questions_filled = excluded.questions_filled,
		screenshots_taken = excluded.screenshots_taken,
		ended_at = excluded.ended_at`

	_, err := s.db.ExecContext(ctx, query,
		run.SessionID, run.JobURL, string(run.Status),
		run.TotalActions, run.QuestionsFound, run.QuestionsFilled,
		run.ScreenshotsTaken, run.StartedAt.Unix(), run.EndedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("save run: %w", err)
	}
	return nil
}

// ListRuns returns the most recent runs, newest first.
func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]*domain.RunRecord, error) {
	query := `
	SELECT session_id, job_url, status, total_actions, questions_found,
	       questions_filled, screenshots_taken, started_at, ended_at
	FROM runs ORDER BY ended_at DESC, session_id LIMIT ?`

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close runs rows", "error", closeErr)
		}
	}()

	var runs []*domain.RunRecord
	for rows.Next() {
		var run domain.RunRecord
		var status string
		var startedAt, endedAt int64

		if err := rows.Scan(
			&run.SessionID, &run.JobURL, &status,
			&run.TotalActions, &run.QuestionsFound, &run.QuestionsFilled,
			&run.ScreenshotsTaken, &startedAt, &endedAt,
		); err != nil {
			return nil, fmt.Errorf("scan run row: %w", err)
		}

		run.Status = domain.Status(status)
		run.StartedAt = time.Unix(startedAt, 0)
		run.EndedAt = time.Unix(endedAt, 0)
		runs = append(runs, &run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}

	return runs, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

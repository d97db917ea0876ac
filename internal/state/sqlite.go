// Package state provides SQLite-based run history for branchsync.
package state

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jayteealao/branchsync/internal/errors"
	_ "github.com/mattn/go-sqlite3"
)

//go:embed migrations/001_initial.sql
var initialMigration string

// Run statuses.
const (
	RunRunning     = "running"
	RunSucceeded   = "succeeded"
	RunAborted     = "aborted"
	RunFailed      = "failed"
	RunInterrupted = "interrupted"
)

// Step outcomes.
const (
	OutcomeClean    = "clean"
	OutcomeResolved = "resolved"
	OutcomeAborted  = "aborted"
	OutcomeFailed   = "failed"
)

// Store provides run history for branchsync using SQLite.
type Store struct {
	db      *sql.DB
	dataDir string
}

// Run represents one invocation of the sync pipeline against a working copy.
type Run struct {
	ID           string
	RepoPath     string
	Status       string
	ErrorMessage string
	StartedAt    time.Time
	FinishedAt   *time.Time
}

// StepResult records what happened to a single branch during a run.
type StepResult struct {
	ID            string
	RunID         string
	Seq           int
	Target        string
	Source        string
	Remote        string
	Mode          string // "rebase", "merge" or "push"
	Outcome       string
	Ahead         int
	Behind        int
	Pushed        bool
	ConflictFiles []string
	CreatedAt     time.Time
}

// New creates a new Store with the given data directory.
// The database file will be created at <dataDir>/branchsync.db.
func New(dataDir string) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "branchsync.db")
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=ON")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite doesn't handle concurrent writes well
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	store := &Store{
		db:      db,
		dataDir: dataDir,
	}

	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DataDir returns the data directory path.
func (s *Store) DataDir() string {
	return s.dataDir
}

func (s *Store) migrate() error {
	var version int
	err := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&version)
	if err != nil {
		// Table doesn't exist yet
		version = 0
	}

	if version < 1 {
		if _, err := s.db.Exec(initialMigration); err != nil {
			return fmt.Errorf("failed to run initial migration: %w", err)
		}
	}

	return nil
}

// --- Run Operations ---

// CreateRun inserts a new run. ID and Status are filled in when empty.
func (s *Store) CreateRun(ctx context.Context, r *Run) error {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	if r.Status == "" {
		r.Status = RunRunning
	}

	query := `INSERT INTO runs (id, repo_path, status, error_message) VALUES (?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, query, r.ID, r.RepoPath, r.Status, nullString(r.ErrorMessage))
	if err != nil {
		return fmt.Errorf("failed to create run: %w", err)
	}

	return nil
}

const runColumns = `id, repo_path, status, error_message, started_at, finished_at`

// GetRun retrieves a run by ID.
func (s *Store) GetRun(ctx context.Context, id string) (*Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	r, err := scanRun(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.ErrRunNotFound
		}
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return r, nil
}

// GetLatestRun returns the most recent run for a working copy.
func (s *Store) GetLatestRun(ctx context.Context, repoPath string) (*Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs WHERE repo_path = ? ORDER BY started_at DESC, rowid DESC LIMIT 1`
	r, err := scanRun(s.db.QueryRowContext(ctx, query, repoPath))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.ErrRunNotFound
		}
		return nil, fmt.Errorf("failed to get latest run: %w", err)
	}
	return r, nil
}

// ListRuns returns runs ordered by most recent first.
// An empty repoPath lists runs for every working copy.
func (s *Store) ListRuns(ctx context.Context, repoPath string, limit int) ([]*Run, error) {
	var rows *sql.Rows
	var err error
	if repoPath == "" {
		rows, err = s.db.QueryContext(ctx,
			`SELECT `+runColumns+` FROM runs ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit)
	} else {
		rows, err = s.db.QueryContext(ctx,
			`SELECT `+runColumns+` FROM runs WHERE repo_path = ? ORDER BY started_at DESC, rowid DESC LIMIT ?`,
			repoPath, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	return collectRuns(rows)
}

// UpdateRunStatus updates a run's status and optionally sets the error message.
// Terminal statuses also set finished_at.
func (s *Store) UpdateRunStatus(ctx context.Context, id, status string, errorMsg *string) error {
	var query string
	if status == RunRunning {
		query = `UPDATE runs SET status = ?, error_message = ? WHERE id = ?`
	} else {
		query = `UPDATE runs SET status = ?, error_message = ?, finished_at = CURRENT_TIMESTAMP WHERE id = ?`
	}

	result, err := s.db.ExecContext(ctx, query, status, nullStringPtr(errorMsg), id)
	if err != nil {
		return fmt.Errorf("failed to update run status: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return errors.ErrRunNotFound
	}

	return nil
}

// GetInterruptedRuns returns runs left 'running' or already marked 'interrupted'.
func (s *Store) GetInterruptedRuns(ctx context.Context) ([]*Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs WHERE status IN ('interrupted', 'running') ORDER BY started_at DESC`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list interrupted runs: %w", err)
	}
	defer rows.Close()

	return collectRuns(rows)
}

// MarkInterrupted flags every run still 'running' for repoPath as interrupted.
// It returns the number of runs updated.
func (s *Store) MarkInterrupted(ctx context.Context, repoPath string) (int, error) {
	msg := "process exited before the run finished"
	result, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, error_message = ?, finished_at = CURRENT_TIMESTAMP
		 WHERE status = ? AND repo_path = ?`,
		RunInterrupted, msg, RunRunning, repoPath)
	if err != nil {
		return 0, fmt.Errorf("failed to mark interrupted runs: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

// --- Step Operations ---

// AddStepResult records the outcome of one step of a run.
func (s *Store) AddStepResult(ctx context.Context, sr *StepResult) error {
	if sr.ID == "" {
		sr.ID = uuid.New().String()
	}

	var files sql.NullString
	if len(sr.ConflictFiles) > 0 {
		data, err := json.Marshal(sr.ConflictFiles)
		if err != nil {
			return fmt.Errorf("failed to marshal conflict files: %w", err)
		}
		files = sql.NullString{String: string(data), Valid: true}
	}

	query := `
		INSERT INTO step_results (id, run_id, seq, target, source, remote, mode, outcome, ahead, behind, pushed, conflict_files)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		sr.ID, sr.RunID, sr.Seq, sr.Target, nullString(sr.Source), nullString(sr.Remote),
		sr.Mode, sr.Outcome, sr.Ahead, sr.Behind, sr.Pushed, files,
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return fmt.Errorf("step %d already recorded for run %s", sr.Seq, sr.RunID)
		}
		if strings.Contains(err.Error(), "FOREIGN KEY constraint failed") {
			return errors.ErrRunNotFound
		}
		return fmt.Errorf("failed to add step result: %w", err)
	}

	return nil
}

// ListStepResults returns the steps of a run in execution order.
func (s *Store) ListStepResults(ctx context.Context, runID string) ([]*StepResult, error) {
	query := `
		SELECT id, run_id, seq, target, source, remote, mode, outcome, ahead, behind, pushed, conflict_files, created_at
		FROM step_results WHERE run_id = ?
		ORDER BY seq ASC
	`

	rows, err := s.db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list step results: %w", err)
	}
	defer rows.Close()

	var results []*StepResult
	for rows.Next() {
		var sr StepResult
		var source, remote, files sql.NullString
		if err := rows.Scan(
			&sr.ID, &sr.RunID, &sr.Seq, &sr.Target, &source, &remote,
			&sr.Mode, &sr.Outcome, &sr.Ahead, &sr.Behind, &sr.Pushed, &files, &sr.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan step result: %w", err)
		}
		sr.Source = source.String
		sr.Remote = remote.String
		if files.Valid && files.String != "" {
			if err := json.Unmarshal([]byte(files.String), &sr.ConflictFiles); err != nil {
				return nil, fmt.Errorf("failed to parse conflict files: %w", err)
			}
		}
		results = append(results, &sr)
	}

	return results, rows.Err()
}

// --- Helper Functions ---

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*Run, error) {
	var r Run
	var errorMessage sql.NullString
	var finishedAt sql.NullTime
	if err := row.Scan(&r.ID, &r.RepoPath, &r.Status, &errorMessage, &r.StartedAt, &finishedAt); err != nil {
		return nil, err
	}
	r.ErrorMessage = errorMessage.String
	if finishedAt.Valid {
		r.FinishedAt = &finishedAt.Time
	}
	return &r, nil
}

func collectRuns(rows *sql.Rows) ([]*Run, error) {
	var runs []*Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullStringPtr(s *string) sql.NullString {
	if s == nil || *s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

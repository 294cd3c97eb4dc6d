package history

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is kept in PRAGMA user_version. Databases at another version
// are refused, not migrated.
const schemaVersion = 1

// ErrSchemaMismatch reports a history database written with a different schema.
var ErrSchemaMismatch = errors.New("history schema version mismatch")

// timeLayout is fixed-width so text ordering matches chronological ordering.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the clock used for start and finish timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// Store persists runs in SQLite.
type Store struct {
	db   *sql.DB
	path string
	now  func() time.Time
}

// Open initializes or connects to the history database at path.
func Open(path string, opts ...Option) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("history database path required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("ensure history directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: path, now: time.Now}
	for _, opt := range opts {
		opt(store)
	}
	if err := store.ensureSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func (s *Store) ensureSchema(ctx context.Context) error {
	var version int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("read history schema version: %w", err)
	}
	switch version {
	case schemaVersion:
		return nil
	case 0:
	default:
		return fmt.Errorf("%w: %s is at version %d, want %d; move it aside to start a fresh history",
			ErrSchemaMismatch, s.path, version, schemaVersion)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin history schema: %w", err)
	}
	defer func() { _ = tx.Rollback() }()
	if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create history tables: %w", err)
	}
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", schemaVersion)); err != nil {
		return fmt.Errorf("stamp history schema version: %w", err)
	}
	return tx.Commit()
}

// Path returns the database location.
func (s *Store) Path() string {
	return s.path
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Start records a new run. StartedAt defaults to now and Outcome to running.
func (s *Store) Start(ctx context.Context, run Run) error {
	if strings.TrimSpace(run.ID) == "" || strings.TrimSpace(run.TaskID) == "" {
		return errors.New("run id and task id required")
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = s.now()
	}
	if run.Outcome == "" {
		run.Outcome = OutcomeRunning
	}
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO runs (
            id, task_id, repo_path, branch, workspace_path, started_at, outcome
        ) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		run.ID,
		run.TaskID,
		run.RepoPath,
		run.Branch,
		run.WorkspacePath,
		formatTime(run.StartedAt),
		string(run.Outcome),
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// Finish closes the run with its outcome. errMsg may be empty.
func (s *Store) Finish(ctx context.Context, id string, outcome Outcome, errMsg string) error {
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE runs SET finished_at = ?, outcome = ?, error_message = ? WHERE id = ?`,
		formatTime(s.now()),
		string(outcome),
		nullString(errMsg),
		id,
	)
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("run %s not found", id)
	}
	return nil
}

// Filter narrows List. Zero fields match everything; a non-positive Limit
// returns all rows.
type Filter struct {
	TaskID  string
	Outcome Outcome
	Limit   int
}

// List returns runs matching filter, newest first.
func (s *Store) List(ctx context.Context, filter Filter) ([]Run, error) {
	query := `SELECT id, task_id, repo_path, branch, workspace_path, started_at,
            finished_at, outcome, error_message FROM runs`
	var (
		where []string
		args  []any
	)
	if taskID := strings.TrimSpace(filter.TaskID); taskID != "" {
		where = append(where, "task_id = ?")
		args = append(args, taskID)
	}
	if filter.Outcome != "" {
		where = append(where, "outcome = ?")
		args = append(args, string(filter.Outcome))
	}
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY started_at DESC, rowid DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

func scanRun(rows *sql.Rows) (Run, error) {
	var (
		run        Run
		startedAt  string
		finishedAt sql.NullString
		outcome    string
		errMsg     sql.NullString
	)
	if err := rows.Scan(
		&run.ID,
		&run.TaskID,
		&run.RepoPath,
		&run.Branch,
		&run.WorkspacePath,
		&startedAt,
		&finishedAt,
		&outcome,
		&errMsg,
	); err != nil {
		return Run{}, fmt.Errorf("scan run: %w", err)
	}
	run.StartedAt = parseTime(startedAt)
	if finishedAt.Valid {
		run.FinishedAt = parseTime(finishedAt.String)
	}
	run.Outcome = Outcome(outcome)
	run.Error = errMsg.String
	return run, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(value string) time.Time {
	t, err := time.Parse(timeLayout, value)
	if err != nil {
		return time.Time{}
	}
	return t
}

func nullString(value string) sql.NullString {
	value = strings.TrimSpace(value)
	return sql.NullString{String: value, Valid: value != ""}
}

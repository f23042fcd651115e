package history

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"spool/internal/config"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is the current schema version. Bump this when the schema
// changes; users clear the history database after a bump.
const schemaVersion = 1

// ErrSchemaMismatch indicates the database schema version doesn't match the
// expected version.
var ErrSchemaMismatch = errors.New("schema version mismatch")

// Attempt outcomes.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Attempt is one recorded download attempt.
type Attempt struct {
	ID        int64         `json:"id"`
	RunID     string        `json:"run_id"`
	Item      string        `json:"item"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
	Outcome   string        `json:"outcome"`
	Detail    string        `json:"detail,omitempty"`
}

// Summary aggregates the attempt table.
type Summary struct {
	Attempts    int       `json:"attempts"`
	Successes   int       `json:"successes"`
	Failures    int       `json:"failures"`
	LastSuccess time.Time `json:"last_success,omitzero"`
}

// Store persists download attempts in SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the history database.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	dbPath := cfg.HistoryPath()
	db, err := sql.Open("sqlite", dbPath)
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

	store := &Store{db: db, path: dbPath}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

func (s *Store) initSchema(ctx context.Context) error {
	var tableExists int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableExists)
	if err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}

	if tableExists == 0 {
		return s.createSchema(ctx)
	}

	var version int
	err = s.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version)
	if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version != schemaVersion {
		return fmt.Errorf("%w: database has version %d, expected %d (delete %s to reset)",
			ErrSchemaMismatch, version, schemaVersion, s.path)
	}
	return nil
}

func (s *Store) createSchema(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema: %w", err)
	}
	return nil
}

// Add inserts one attempt and returns its row id.
func (s *Store) Add(ctx context.Context, attempt Attempt) (int64, error) {
	if attempt.Outcome != OutcomeSuccess && attempt.Outcome != OutcomeFailure {
		return 0, fmt.Errorf("invalid outcome %q", attempt.Outcome)
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO download_attempts (run_id, item, started_at, duration_ms, outcome, detail)
         VALUES (?, ?, ?, ?, ?, ?)`,
		attempt.RunID,
		attempt.Item,
		attempt.StartedAt.UTC().Format(time.RFC3339Nano),
		attempt.Duration.Milliseconds(),
		attempt.Outcome,
		nullableString(attempt.Detail),
	)
	if err != nil {
		return 0, fmt.Errorf("insert attempt: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	return id, nil
}

// Recent returns up to limit attempts, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Attempt, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, run_id, item, started_at, duration_ms, outcome, detail
         FROM download_attempts
         ORDER BY id DESC
         LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query attempts: %w", err)
	}
	defer rows.Close()

	var attempts []Attempt
	for rows.Next() {
		attempt, err := scanAttempt(rows)
		if err != nil {
			return nil, err
		}
		attempts = append(attempts, attempt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate attempts: %w", err)
	}
	return attempts, nil
}

// Summarize aggregates attempt counts and the most recent success.
func (s *Store) Summarize(ctx context.Context) (Summary, error) {
	var (
		summary Summary
		last    sql.NullString
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(1),
                COALESCE(SUM(CASE WHEN outcome = ? THEN 1 ELSE 0 END), 0),
                COALESCE(SUM(CASE WHEN outcome = ? THEN 1 ELSE 0 END), 0),
                MAX(CASE WHEN outcome = ? THEN started_at END)
         FROM download_attempts`,
		OutcomeSuccess, OutcomeFailure, OutcomeSuccess,
	).Scan(&summary.Attempts, &summary.Successes, &summary.Failures, &last)
	if err != nil {
		return Summary{}, fmt.Errorf("summarize attempts: %w", err)
	}
	if last.Valid {
		ts, err := time.Parse(time.RFC3339Nano, last.String)
		if err != nil {
			return Summary{}, fmt.Errorf("parse last success timestamp: %w", err)
		}
		summary.LastSuccess = ts
	}
	return summary, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAttempt(row rowScanner) (Attempt, error) {
	var (
		attempt    Attempt
		startedAt  string
		durationMS int64
		detail     sql.NullString
	)
	if err := row.Scan(&attempt.ID, &attempt.RunID, &attempt.Item, &startedAt, &durationMS, &attempt.Outcome, &detail); err != nil {
		return Attempt{}, fmt.Errorf("scan attempt: %w", err)
	}
	ts, err := time.Parse(time.RFC3339Nano, startedAt)
	if err != nil {
		return Attempt{}, fmt.Errorf("parse attempt timestamp: %w", err)
	}
	attempt.StartedAt = ts
	attempt.Duration = time.Duration(durationMS) * time.Millisecond
	if detail.Valid {
		attempt.Detail = detail.String
	}
	return attempt, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

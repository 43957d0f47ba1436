package record

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS execution_records (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	name           TEXT NOT NULL,
	kind           TEXT NOT NULL,
	type           TEXT NOT NULL,
	executed_at    TIMESTAMP NOT NULL,
	completed_at   TIMESTAMP,
	failed_at      TIMESTAMP,
	skipped_at     TIMESTAMP,
	skip_reason    TEXT NOT NULL DEFAULT '',
	rolled_back_at TIMESTAMP,
	UNIQUE(name, kind)
);`

// SQLiteStore persists execution records in a local SQLite file. It is the
// default backend for single-host runs.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (creating if needed) the database at path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create state directory: %w", err)
		}
	}

	dsn := "file:" + path + "?_pragma=busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite store: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize sqlite schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// DB exposes the underlying connection for the schema-migration runner.
func (s *SQLiteStore) DB() (*sql.DB, error) {
	return s.db, nil
}

// sqlConn is the subset of *sql.DB and *sql.Tx the store queries through.
type sqlConn interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// conn returns the transaction installed by Transaction when the context
// carries one, otherwise the root handle.
func (s *SQLiteStore) conn(ctx context.Context) sqlConn {
	if tx, ok := TxFromContext(ctx); ok {
		return tx
	}
	return s.db
}

// Begin creates a pending record, resetting the existing row for the same
// name and kind when one is present.
func (s *SQLiteStore) Begin(ctx context.Context, name, kind string, method Method) (*ExecutionRecord, error) {
	now := time.Now()
	_, err := s.conn(ctx).ExecContext(ctx,
		`INSERT INTO execution_records (name, kind, type, executed_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(name, kind) DO UPDATE SET
			type = excluded.type, executed_at = excluded.executed_at,
			completed_at = NULL, failed_at = NULL, skipped_at = NULL,
			skip_reason = '', rolled_back_at = NULL`,
		name, kind, string(method), now)
	if err != nil {
		return nil, err
	}
	return s.Find(ctx, name, kind)
}

func (s *SQLiteStore) MarkCompleted(ctx context.Context, rec *ExecutionRecord) error {
	now := time.Now()
	rec.CompletedAt = &now
	_, err := s.conn(ctx).ExecContext(ctx,
		`UPDATE execution_records SET completed_at = ? WHERE id = ?`, now, rec.ID)
	return err
}

func (s *SQLiteStore) MarkFailed(ctx context.Context, rec *ExecutionRecord) error {
	now := time.Now()
	rec.FailedAt = &now
	_, err := s.conn(ctx).ExecContext(ctx,
		`UPDATE execution_records SET failed_at = ? WHERE id = ?`, now, rec.ID)
	return err
}

func (s *SQLiteStore) MarkSkipped(ctx context.Context, rec *ExecutionRecord, reason string) error {
	now := time.Now()
	rec.SkippedAt = &now
	rec.SkipReason = reason
	_, err := s.conn(ctx).ExecContext(ctx,
		`UPDATE execution_records SET skipped_at = ?, skip_reason = ? WHERE id = ?`, now, reason, rec.ID)
	return err
}

func (s *SQLiteStore) MarkRolledBack(ctx context.Context, rec *ExecutionRecord) error {
	now := time.Now()
	rec.RolledBackAt = &now
	_, err := s.conn(ctx).ExecContext(ctx,
		`UPDATE execution_records SET rolled_back_at = ? WHERE id = ?`, now, rec.ID)
	return err
}

const recordColumns = `id, name, kind, type, executed_at, completed_at, failed_at, skipped_at, skip_reason, rolled_back_at`

func scanRecord(row interface{ Scan(...interface{}) error }) (*ExecutionRecord, error) {
	var rec ExecutionRecord
	var typ string
	err := row.Scan(&rec.ID, &rec.Name, &rec.Kind, &typ, &rec.ExecutedAt,
		&rec.CompletedAt, &rec.FailedAt, &rec.SkippedAt, &rec.SkipReason, &rec.RolledBackAt)
	if err != nil {
		return nil, err
	}
	rec.Type = Method(typ)
	return &rec, nil
}

func (s *SQLiteStore) Find(ctx context.Context, name, kind string) (*ExecutionRecord, error) {
	row := s.conn(ctx).QueryRowContext(ctx,
		`SELECT `+recordColumns+` FROM execution_records WHERE name = ? AND kind = ?`, name, kind)
	rec, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func (s *SQLiteStore) Satisfied(ctx context.Context, name string) (bool, error) {
	rows, err := s.conn(ctx).QueryContext(ctx,
		`SELECT `+recordColumns+` FROM execution_records WHERE name = ?`, name)
	if err != nil {
		return false, err
	}
	defer rows.Close()

	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return false, err
		}
		if rec.Satisfies() {
			return true, nil
		}
	}
	return false, rows.Err()
}

func (s *SQLiteStore) List(ctx context.Context) ([]*ExecutionRecord, error) {
	rows, err := s.conn(ctx).QueryContext(ctx,
		`SELECT `+recordColumns+` FROM execution_records ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*ExecutionRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Transaction runs fn inside a database transaction. The transaction rides
// the context fn receives, so store calls made by fn execute on it and roll
// back together when fn errors.
func (s *SQLiteStore) Transaction(ctx context.Context, fn func(ctx context.Context) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(withTx(ctx, tx)); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

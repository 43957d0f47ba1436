// Package migrate is the boundary to the schema-migration runner. The
// orchestrator delegates one schema-change task at a time; a failure
// propagates immediately with no retry and no skip.
package migrate

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"

	"github.com/deployops/taskrun/internal/logger"
	"github.com/deployops/taskrun/internal/source"
	"github.com/deployops/taskrun/internal/task"
)

// Runner applies a single schema-change task.
type Runner interface {
	Apply(ctx context.Context, t *task.Task) error
}

// NullRunner rejects every schema change. It backs store configurations
// without a database handle, where schema changes cannot be applied.
type NullRunner struct{}

// Apply always fails.
func (NullRunner) Apply(ctx context.Context, t *task.Task) error {
	return fmt.Errorf("no database configured for schema change %s", t.Identity)
}

// SQLRunner executes the statements of a schema file against the record
// store's database handle, inside one transaction per file.
type SQLRunner struct {
	db *sql.DB
}

// NewSQLRunner creates a runner over the given database.
func NewSQLRunner(db *sql.DB) *SQLRunner {
	return &SQLRunner{db: db}
}

// Apply reads the task's schema file and executes it.
func (r *SQLRunner) Apply(ctx context.Context, t *task.Task) error {
	payload, err := t.Payload()
	if err != nil {
		return err
	}
	file, ok := payload.(*source.SchemaFile)
	if !ok {
		return fmt.Errorf("schema change %s has payload %T, expected schema file", t.Identity, payload)
	}

	contents, err := os.ReadFile(file.Path)
	if err != nil {
		return fmt.Errorf("read schema change %s: %w", t.Identity, err)
	}

	statements := splitStatements(string(contents))
	if len(statements) == 0 {
		logger.Op.WithField("task", t.Identity).Warn("Schema change file contains no statements")
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema change %s: %w", t.Identity, err)
	}
	for _, stmt := range statements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("apply schema change %s: %w", t.Identity, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema change %s: %w", t.Identity, err)
	}

	logger.Op.WithFields(map[string]interface{}{
		"task":       t.Identity,
		"statements": len(statements),
	}).Debug("Schema change applied")
	return nil
}

// splitStatements separates a script on semicolons at line ends. Comments
// starting with -- are dropped.
func splitStatements(script string) []string {
	var cleaned []string
	for _, line := range strings.Split(script, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "--") {
			continue
		}
		cleaned = append(cleaned, line)
	}

	var statements []string
	for _, stmt := range strings.Split(strings.Join(cleaned, "\n"), ";") {
		if s := strings.TrimSpace(stmt); s != "" {
			statements = append(statements, s)
		}
	}
	return statements
}

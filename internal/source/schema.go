package source

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/deployops/taskrun/internal/logger"
	"github.com/deployops/taskrun/internal/record"
	"github.com/deployops/taskrun/internal/task"
)

// SchemaFile is the opaque payload handle of a discovered schema change. The
// migration runner consumes it; the orchestrator never opens it.
type SchemaFile struct {
	Path string
}

// SchemaChangeSource discovers .sql files in configured directories whose
// base name matches the task naming pattern.
type SchemaChangeSource struct {
	dirs  []string
	store record.Store
}

// NewSchemaChangeSource creates a source over the given directories.
func NewSchemaChangeSource(dirs []string, store record.Store) *SchemaChangeSource {
	return &SchemaChangeSource{dirs: dirs, store: store}
}

// Kind returns KindSchemaChange.
func (s *SchemaChangeSource) Kind() task.Kind {
	return task.KindSchemaChange
}

// Discover scans the configured directories. Non-matching names are silently
// ignored; missing directories are skipped with a debug log.
func (s *SchemaChangeSource) Discover(ctx context.Context, includeCompleted bool) ([]*task.Task, error) {
	var tasks []*task.Task

	for _, dir := range s.dirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			if os.IsNotExist(err) {
				logger.Op.WithField("dir", dir).Debug("Schema change directory not found, skipping")
				continue
			}
			return nil, fmt.Errorf("scan schema change directory %s: %w", dir, err)
		}

		for _, entry := range entries {
			if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
				continue
			}
			identity := strings.TrimSuffix(entry.Name(), ".sql")
			if _, ok := task.SplitName(identity); !ok {
				continue
			}

			if !includeCompleted {
				done, err := s.completed(ctx, identity)
				if err != nil {
					return nil, err
				}
				if done {
					continue
				}
			}

			path := filepath.Join(dir, entry.Name())
			t, err := task.New(task.KindSchemaChange, identity, func() (interface{}, error) {
				return &SchemaFile{Path: path}, nil
			})
			if err != nil {
				return nil, err
			}
			tasks = append(tasks, t)
		}
	}

	sort.SliceStable(tasks, func(i, j int) bool {
		return tasks[i].Identity < tasks[j].Identity
	})
	return tasks, nil
}

func (s *SchemaChangeSource) completed(ctx context.Context, identity string) (bool, error) {
	rec, err := s.store.Find(ctx, identity, task.KindSchemaChange.String())
	if err != nil {
		return false, err
	}
	return rec != nil && rec.State() == record.StateCompleted, nil
}

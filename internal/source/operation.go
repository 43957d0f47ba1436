package source

import (
	"context"
	"fmt"

	"github.com/deployops/taskrun/internal/record"
	"github.com/deployops/taskrun/internal/task"
)

// OperationSource discovers business-logic operations from the compiled
// registry. Registration order is irrelevant; Names() is already lexical.
type OperationSource struct {
	registry *task.Registry
	store    record.Store
}

// NewOperationSource creates a source over the given registry.
func NewOperationSource(registry *task.Registry, store record.Store) *OperationSource {
	return &OperationSource{registry: registry, store: store}
}

// Kind returns KindOperation.
func (s *OperationSource) Kind() task.Kind {
	return task.KindOperation
}

// Discover enumerates registered operations.
func (s *OperationSource) Discover(ctx context.Context, includeCompleted bool) ([]*task.Task, error) {
	var tasks []*task.Task

	for _, name := range s.registry.Names() {
		if !includeCompleted {
			done, err := s.completed(ctx, name)
			if err != nil {
				return nil, err
			}
			if done {
				continue
			}
		}

		factory, ok := s.registry.Resolve(name)
		if !ok {
			return nil, fmt.Errorf("operation %q disappeared from registry during discovery", name)
		}
		t, err := task.New(task.KindOperation, name, func() (interface{}, error) {
			return factory(), nil
		})
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}

	return tasks, nil
}

func (s *OperationSource) completed(ctx context.Context, identity string) (bool, error) {
	rec, err := s.store.Find(ctx, identity, task.KindOperation.String())
	if err != nil {
		return false, err
	}
	return rec != nil && rec.State() == record.StateCompleted, nil
}

// Package source discovers tasks from their two providers: schema changes on
// the filesystem and operations in the compiled registry.
package source

import (
	"context"
	"sort"

	"github.com/deployops/taskrun/internal/task"
)

// Source discovers tasks of one kind.
//
// Default mode returns only tasks whose identity has no completed execution
// record. includeCompleted returns every discovered task; the orchestrator is
// responsible for verifying prior execution in that mode.
type Source interface {
	Kind() task.Kind
	Discover(ctx context.Context, includeCompleted bool) ([]*task.Task, error)
}

// Merge discovers from all sources and returns the union sorted by timestamp,
// ties broken by discovery order. This establishes the chronological baseline
// the resolver refines.
func Merge(ctx context.Context, includeCompleted bool, sources ...Source) ([]*task.Task, error) {
	var all []*task.Task
	for _, src := range sources {
		tasks, err := src.Discover(ctx, includeCompleted)
		if err != nil {
			return nil, err
		}
		all = append(all, tasks...)
	}

	sort.SliceStable(all, func(i, j int) bool {
		return all[i].Timestamp < all[j].Timestamp
	})
	return all, nil
}

package dag

import (
	"context"

	"github.com/deployops/taskrun/internal/errors"
	"github.com/deployops/taskrun/internal/logger"
	"github.com/deployops/taskrun/internal/task"
)

// Resolver re-orders a timestamp-sorted task list so every task appears after
// all tasks it declares as prerequisites.
//
// The sort is an iterative ready-set pass rather than recursive DFS: a cycle
// manifests as a pass with no progress instead of stack exhaustion, and the
// output order stays deterministic and debuggable. O(n²) worst case is fine
// for the dozens of tasks a deployment carries.
type Resolver struct{}

// NewResolver creates a resolver.
func NewResolver() *Resolver {
	return &Resolver{}
}

// Sort returns the topological ordering of tasks. The input must already be
// sorted by timestamp (ties broken by discovery order, see source.Merge);
// that order is preserved among tasks with no ordering constraint between
// them.
//
// Dependencies on identities never discovered in this run do not constrain
// the ordering; they are checked against the persisted store at execution
// time, so work completed in previous deployments still counts.
func (r *Resolver) Sort(ctx context.Context, tasks []*task.Task) ([]*task.Task, error) {
	discovered := make(map[string]bool, len(tasks))
	for _, t := range tasks {
		discovered[t.Identity] = true
	}

	deps := make(map[string][]string, len(tasks))
	for _, t := range tasks {
		d, err := t.ResolveDependencies()
		if err != nil {
			return nil, err
		}
		deps[t.Identity] = d
	}

	sorted := make([]*task.Task, 0, len(tasks))
	placed := make(map[string]bool, len(tasks))
	remaining := append([]*task.Task(nil), tasks...)

	maxPasses := 2 * len(tasks)
	for pass := 0; len(remaining) > 0; pass++ {
		if pass >= maxPasses {
			// Normally a cycle trips the no-progress check first.
			return nil, circular(remaining)
		}

		var next []*task.Task
		progress := false
		for _, t := range remaining {
			if r.ready(t, deps[t.Identity], discovered, placed) {
				sorted = append(sorted, t)
				placed[t.Identity] = true
				progress = true
			} else {
				next = append(next, t)
			}
		}
		remaining = next

		if !progress && len(remaining) > 0 {
			return nil, circular(remaining)
		}
	}

	logger.Op.WithFields(map[string]interface{}{
		"tasks": len(sorted),
	}).Debug("Dependency resolution complete")
	return sorted, nil
}

// ready reports whether every discovered dependency of t is already placed.
func (r *Resolver) ready(t *task.Task, deps []string, discovered, placed map[string]bool) bool {
	for _, dep := range deps {
		if dep == t.Identity {
			// Self-dependency can never be satisfied.
			return false
		}
		if discovered[dep] && !placed[dep] {
			return false
		}
	}
	return true
}

func circular(remaining []*task.Task) error {
	ids := make([]string, len(remaining))
	for i, t := range remaining {
		ids[i] = t.Identity
	}
	return errors.NewCircularDependencyError(ids)
}

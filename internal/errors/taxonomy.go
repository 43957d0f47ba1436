package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"time"
)

// Is and As re-export the standard library helpers so that callers importing
// this package do not also need the standard errors package.
func Is(err, target error) bool { return stderrors.Is(err, target) }

func As(err error, target interface{}) bool { return stderrors.As(err, target) }

// Sentinel targets for errors.Is checks against the structural taxonomy.
var (
	ErrCircularDependency = NewOrchestrationError(ErrorCategoryDependency, CodeCircularDependency, "circular dependency detected", "")
	ErrLockUnavailable    = NewOrchestrationError(ErrorCategoryLock, CodeLockUnavailable, "lock unavailable", "")
	ErrNeverExecuted      = NewOrchestrationError(ErrorCategoryDiscovery, CodeNeverExecuted, "task never executed", "")
	ErrUnknownTaskKind    = NewOrchestrationError(ErrorCategoryExecution, CodeUnknownTaskKind, "unknown task kind", "")
)

// NewCircularDependencyError is raised when the resolver cannot make
// topological progress. Fatal; aborts the run before any task executes.
func NewCircularDependencyError(remaining []string) *OrchestrationError {
	return NewOrchestrationError(ErrorCategoryDependency, CodeCircularDependency,
		fmt.Sprintf("circular dependency among tasks: %s", strings.Join(remaining, ", ")),
		"Dependency resolution").
		WithContext("remaining", len(remaining))
}

// NewLockUnavailableError is raised when isolation is requested and the
// distributed mutex cannot be acquired within the timeout.
func NewLockUnavailableError(name string, timeout time.Duration) *OrchestrationError {
	return NewOrchestrationError(ErrorCategoryLock, CodeLockUnavailable,
		fmt.Sprintf("could not acquire lock %q within %v", name, timeout),
		"Lock acquisition").
		WithContext("lock", name).
		WithContext("timeout", timeout)
}

// NewNeverExecutedError is raised in repeat mode for a task without a prior
// execution record. Repeat mode re-runs history; it never runs new work.
func NewNeverExecutedError(identity string) *OrchestrationError {
	return NewOrchestrationError(ErrorCategoryDiscovery, CodeNeverExecuted,
		fmt.Sprintf("task %q has never been executed and cannot be repeated", identity),
		"Repeat validation").
		WithContext("identity", identity)
}

// NewUnknownTaskKindError reports an internal invariant violation.
func NewUnknownTaskKindError(kind string) *OrchestrationError {
	return NewOrchestrationError(ErrorCategoryExecution, CodeUnknownTaskKind,
		fmt.Sprintf("unknown task kind %q", kind),
		"Task dispatch").
		WithContext("kind", kind)
}

// NewRunBlockedError reports that a guard predicate vetoed the run.
func NewRunBlockedError(reason string) *OrchestrationError {
	return NewOrchestrationError(ErrorCategoryExecution, CodeRunBlocked,
		fmt.Sprintf("run blocked: %s", reason),
		"Guard check").
		WithContext("reason", reason)
}

// NewTaskFailedError wraps a task-body error with its identity.
func NewTaskFailedError(identity string, cause error) *OrchestrationError {
	return NewOrchestrationError(ErrorCategoryExecution, CodeTaskFailed,
		fmt.Sprintf("task %q failed", identity),
		"Task execution").
		WithContext("identity", identity).
		WithOriginalError(cause)
}

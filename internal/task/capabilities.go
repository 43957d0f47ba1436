package task

import "context"

// Capability interfaces opted into by operation payloads. The orchestrator
// tests for them with interface assertions at execution time; a payload that
// does not implement one gets the default behavior.

// Runner is the minimum contract of an operation payload.
type Runner interface {
	Run(ctx context.Context) error
}

// RollbackCapable payloads participate in the rollback cascade.
type RollbackCapable interface {
	Rollback(ctx context.Context) error
}

// DependencyAware payloads declare prerequisite task identities. Each must be
// the canonical timestamped name of a task of either kind.
type DependencyAware interface {
	DependsOn() []string
}

// Conditional payloads can veto their own execution. A false return records
// the task as Skipped, not Failed.
type Conditional interface {
	ShouldRun() bool
}

// EnvRestricted payloads run only in the listed environments. An empty list
// means everywhere.
type EnvRestricted interface {
	Environments() []string
}

// AsyncPreferred payloads default to asynchronous dispatch. ForceSync and
// ForceAsync process options override the declaration.
type AsyncPreferred interface {
	Async() bool
}

// QueueDeclarer payloads name the queue their async dispatch should use.
type QueueDeclarer interface {
	Queue() string
}

// Tagged payloads carry tags for the orchestrator's tag filter. Schema
// changes are never tag-filtered.
type Tagged interface {
	Tags() []string
}

// Transactional payloads ask for their synchronous run to be wrapped in a
// store transaction.
type Transactional interface {
	WithinTransaction() bool
}

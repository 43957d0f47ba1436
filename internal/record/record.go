package record

import (
	"time"
)

// State is the derived lifecycle state of an execution record. It is computed
// from the terminal timestamp fields, never stored independently, so the
// flags and the label cannot diverge.
type State int

const (
	// StatePending indicates the task has started but reached no terminal state
	StatePending State = iota
	// StateCompleted indicates the task body returned normally
	StateCompleted
	// StateSkipped indicates the task voluntarily aborted before side effects
	StateSkipped
	// StateFailed indicates the task body raised an unhandled error
	StateFailed
	// StateRolledBack indicates the rollback cascade reverted the task
	StateRolledBack
)

// String returns a string representation of the State
func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateCompleted:
		return "completed"
	case StateSkipped:
		return "skipped"
	case StateFailed:
		return "failed"
	case StateRolledBack:
		return "rolled_back"
	default:
		return "unknown"
	}
}

// Method is how the task was (or will be) executed.
type Method string

const (
	MethodSync  Method = "sync"
	MethodAsync Method = "async"
	MethodFake  Method = "fake"
)

// ExecutionRecord is one row per attempted task instance. It is created when
// the task begins executing and mutated exactly once more to reach a terminal
// state.
type ExecutionRecord struct {
	ID           uint       `gorm:"primaryKey"`
	Name         string     `gorm:"column:name;uniqueIndex:idx_name_kind;size:255"`
	Kind         string     `gorm:"column:kind;uniqueIndex:idx_name_kind;size:32"`
	Type         Method     `gorm:"column:type;size:16"`
	ExecutedAt   time.Time  `gorm:"column:executed_at"`
	CompletedAt  *time.Time `gorm:"column:completed_at"`
	FailedAt     *time.Time `gorm:"column:failed_at"`
	SkippedAt    *time.Time `gorm:"column:skipped_at"`
	SkipReason   string     `gorm:"column:skip_reason;size:1024"`
	RolledBackAt *time.Time `gorm:"column:rolled_back_at"`
}

// TableName sets the gorm table name.
func (ExecutionRecord) TableName() string {
	return "execution_records"
}

// State derives the lifecycle state with precedence
// RolledBack > Failed > Skipped > Completed > Pending.
func (r *ExecutionRecord) State() State {
	switch {
	case r.RolledBackAt != nil:
		return StateRolledBack
	case r.FailedAt != nil:
		return StateFailed
	case r.SkippedAt != nil:
		return StateSkipped
	case r.CompletedAt != nil:
		return StateCompleted
	default:
		return StatePending
	}
}

// Satisfies reports whether this record satisfies a dependency declaration.
// Skipped and Completed both count as successful outcomes.
func (r *ExecutionRecord) Satisfies() bool {
	s := r.State()
	return s == StateCompleted || s == StateSkipped
}

package errors

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrchestrationError_Error(t *testing.T) {
	err := NewOrchestrationError(ErrorCategoryExecution, CodeTaskFailed, "task failed", "Task execution")
	assert.Contains(t, err.Error(), "EXECUTION-002")
	assert.Contains(t, err.Error(), "task failed")
}

func TestOrchestrationError_Unwrap(t *testing.T) {
	cause := fmt.Errorf("connection reset")
	err := NewOrchestrationError(ErrorCategoryStore, CodeStoreUnavailable, "store gone", "").
		WithOriginalError(cause)

	assert.ErrorIs(t, err, cause)
}

func TestOrchestrationError_Is_MatchesCategoryAndCode(t *testing.T) {
	err := NewCircularDependencyError([]string{"2026_01_01_000000_a", "2026_01_02_000000_b"})

	assert.True(t, Is(err, ErrCircularDependency))
	assert.False(t, Is(err, ErrLockUnavailable))
	assert.False(t, Is(err, ErrNeverExecuted))
}

func TestOrchestrationError_WithContext(t *testing.T) {
	err := NewOrchestrationError(ErrorCategoryLock, CodeLockUnavailable, "lock held", "Lock acquisition").
		WithContext("lock", "deploy").
		WithContext("timeout", time.Second)

	require.NotNil(t, err.Context)
	assert.Equal(t, "deploy", err.Context["lock"])
}

func TestNewCircularDependencyError_NamesTasks(t *testing.T) {
	err := NewCircularDependencyError([]string{"2026_01_01_000000_a", "2026_01_02_000000_b"})
	assert.Contains(t, err.Error(), "2026_01_01_000000_a")
	assert.Contains(t, err.Error(), "2026_01_02_000000_b")
}

func TestNewNeverExecutedError(t *testing.T) {
	err := NewNeverExecutedError("2026_01_01_000000_ghost")
	assert.True(t, Is(err, ErrNeverExecuted))
	assert.Contains(t, err.Error(), "2026_01_01_000000_ghost")
}

func TestNewLockUnavailableError(t *testing.T) {
	err := NewLockUnavailableError("deploy", 5*time.Second)
	assert.True(t, Is(err, ErrLockUnavailable))
	assert.Contains(t, err.Error(), "deploy")
}

func TestNewTaskFailedError_WrapsCause(t *testing.T) {
	cause := fmt.Errorf("division by zero")
	err := NewTaskFailedError("2026_01_01_000000_calc", cause)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "2026_01_01_000000_calc")
}

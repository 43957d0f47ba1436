package errors

import (
	"fmt"
	"sort"
	"strings"
)

// ErrorCategory represents the category of error
type ErrorCategory string

const (
	// ErrorCategoryDependency represents dependency-graph errors
	ErrorCategoryDependency ErrorCategory = "DEPENDENCY"
	// ErrorCategoryLock represents isolation-lock errors
	ErrorCategoryLock ErrorCategory = "LOCK"
	// ErrorCategoryDiscovery represents task-discovery errors
	ErrorCategoryDiscovery ErrorCategory = "DISCOVERY"
	// ErrorCategoryExecution represents task-execution errors
	ErrorCategoryExecution ErrorCategory = "EXECUTION"
	// ErrorCategoryStore represents execution-record store errors
	ErrorCategoryStore ErrorCategory = "STORE"
	// ErrorCategoryConfiguration represents configuration errors
	ErrorCategoryConfiguration ErrorCategory = "CONFIGURATION"
)

// Error codes within their categories
const (
	CodeCircularDependency = "001"
	CodeMissingDependency  = "002"

	CodeLockUnavailable = "001"

	CodeNeverExecuted  = "001"
	CodeInvalidPattern = "002"

	CodeUnknownTaskKind = "001"
	CodeTaskFailed      = "002"
	CodeRollbackFailed  = "003"
	CodeRunBlocked      = "004"

	CodeStoreUnavailable = "001"

	CodeConfigInvalid = "001"
)

// OrchestrationError is a structured error with category, code and context.
type OrchestrationError struct {
	Category      ErrorCategory
	Code          string
	Message       string
	Operation     string
	Context       map[string]interface{}
	OriginalError error
}

// Error implements the error interface
func (e *OrchestrationError) Error() string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("%s-%s: %s", e.Category, e.Code, e.Message))

	if e.Operation != "" {
		sb.WriteString(fmt.Sprintf("\nOperation: %s", e.Operation))
	}

	if len(e.Context) > 0 {
		sb.WriteString("\nContext:")
		keys := make([]string, 0, len(e.Context))
		for k := range e.Context {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, key := range keys {
			sb.WriteString(fmt.Sprintf("\n  %s: %v", key, e.Context[key]))
		}
	}

	if e.OriginalError != nil {
		sb.WriteString(fmt.Sprintf("\nUnderlying error: %v", e.OriginalError))
	}

	return sb.String()
}

// Unwrap returns the original error for error chain compatibility
func (e *OrchestrationError) Unwrap() error {
	return e.OriginalError
}

// Is matches any OrchestrationError with the same category and code, so the
// taxonomy sentinels below work with errors.Is.
func (e *OrchestrationError) Is(target error) bool {
	t, ok := target.(*OrchestrationError)
	if !ok {
		return false
	}
	return e.Category == t.Category && e.Code == t.Code
}

// NewOrchestrationError creates a new orchestration error
func NewOrchestrationError(category ErrorCategory, code, message, operation string) *OrchestrationError {
	return &OrchestrationError{
		Category:  category,
		Code:      code,
		Message:   message,
		Operation: operation,
		Context:   make(map[string]interface{}),
	}
}

// WithContext adds context information to the error
func (e *OrchestrationError) WithContext(key string, value interface{}) *OrchestrationError {
	e.Context[key] = value
	return e
}

// WithOriginalError attaches the underlying cause
func (e *OrchestrationError) WithOriginalError(err error) *OrchestrationError {
	e.OriginalError = err
	return e
}

package task

import "errors"

// SkipSignal is a voluntary-skip control-flow signal raised by a task body.
// It is not a failure: the task is recorded Skipped, the batch continues, and
// dependents that require "completed or skipped" are not blocked.
type SkipSignal struct {
	Reason string
}

// Error implements the error interface so the signal can travel the normal
// return path of a task body.
func (s *SkipSignal) Error() string {
	if s.Reason == "" {
		return "task skipped"
	}
	return "task skipped: " + s.Reason
}

// Skip returns a voluntary-skip signal with the given reason.
func Skip(reason string) error {
	return &SkipSignal{Reason: reason}
}

// AsSkip reports whether err carries a voluntary-skip signal and returns its
// reason.
func AsSkip(err error) (string, bool) {
	var s *SkipSignal
	if errors.As(err, &s) {
		return s.Reason, true
	}
	return "", false
}

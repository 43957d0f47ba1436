package task

import (
	"fmt"
	"regexp"
	"sync"
)

// Kind distinguishes the two task sources
type Kind int

const (
	// KindSchemaChange is a database schema migration task
	KindSchemaChange Kind = iota
	// KindOperation is a business-logic task
	KindOperation
)

// String returns a string representation of the Kind
func (k Kind) String() string {
	switch k {
	case KindSchemaChange:
		return "schema_change"
	case KindOperation:
		return "operation"
	default:
		return "unknown"
	}
}

// NamePattern matches discoverable task names: YYYY_MM_DD_HHMMSS_<suffix>.
// Anything else is silently ignored by discovery.
var NamePattern = regexp.MustCompile(`^\d{4}_\d{2}_\d{2}_\d{6}_.+$`)

// TimestampLen is the length of the YYYY_MM_DD_HHMMSS prefix.
const TimestampLen = 17

// SplitName extracts the timestamp prefix from a discoverable name.
// Returns false when the name does not match NamePattern.
func SplitName(name string) (timestamp string, ok bool) {
	if !NamePattern.MatchString(name) {
		return "", false
	}
	return name[:TimestampLen], true
}

// PayloadFunc lazily resolves the executable unit of a task. It is invoked
// only when ordering needs declared dependencies or the task is about to run.
type PayloadFunc func() (interface{}, error)

// Task is an immutable descriptor discovered from a source.
//
// Identity is the full timestamped name for both kinds; dependency
// declarations must use that canonical form.
type Task struct {
	Kind         Kind
	Timestamp    string
	Identity     string
	Dependencies []string

	payloadFn PayloadFunc

	mu      sync.Mutex
	payload interface{}
	loaded  bool
}

// New creates a task descriptor with a lazy payload.
func New(kind Kind, identity string, payloadFn PayloadFunc) (*Task, error) {
	timestamp, ok := SplitName(identity)
	if !ok {
		return nil, fmt.Errorf("task name %q does not match the discovery pattern", identity)
	}
	return &Task{
		Kind:      kind,
		Timestamp: timestamp,
		Identity:  identity,
		payloadFn: payloadFn,
	}, nil
}

// WithDependencies returns the task with its dependency list set. Used by
// sources that know dependencies at discovery time (declared statically).
func (t *Task) WithDependencies(deps []string) *Task {
	t.Dependencies = deps
	return t
}

// Payload resolves and caches the executable unit.
func (t *Task) Payload() (interface{}, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.loaded {
		return t.payload, nil
	}
	if t.payloadFn == nil {
		return nil, fmt.Errorf("task %s has no payload", t.Identity)
	}

	payload, err := t.payloadFn()
	if err != nil {
		return nil, fmt.Errorf("failed to load payload for %s: %w", t.Identity, err)
	}

	t.payload = payload
	t.loaded = true
	return payload, nil
}

// ResolveDependencies merges statically declared dependencies with the
// payload's DependsOn declaration, loading the payload if necessary.
func (t *Task) ResolveDependencies() ([]string, error) {
	deps := append([]string(nil), t.Dependencies...)

	if t.payloadFn == nil {
		return deps, nil
	}
	payload, err := t.Payload()
	if err != nil {
		return nil, err
	}
	if aware, ok := payload.(DependencyAware); ok {
		deps = append(deps, aware.DependsOn()...)
	}
	return deps, nil
}

// String returns the identity with its kind for logging.
func (t *Task) String() string {
	return fmt.Sprintf("%s/%s", t.Kind, t.Identity)
}

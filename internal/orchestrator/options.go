package orchestrator

// Options is the option set of one Process invocation.
type Options struct {
	// Isolate runs the batch under the distributed mutex.
	Isolate bool

	// DryRun returns the ordered preview without side effects. No execution
	// records are created.
	DryRun bool

	// From drops tasks with a timestamp strictly before this value
	// (YYYY_MM_DD_HHMMSS).
	From string

	// Repeat re-runs history: discovery includes completed tasks, and every
	// discovered task must have been executed before.
	Repeat bool

	// ForceSync and ForceAsync override the task's own declared execution
	// preference. ForceSync wins when both are set.
	ForceSync  bool
	ForceAsync bool

	// Queue overrides the queue name async operations are dispatched to.
	Queue string

	// Tags drops operation tasks whose declared tag set does not intersect
	// this filter. Schema changes are never filtered by tag.
	Tags []string
}

// Preview is one row of the dry-run listing.
type Preview struct {
	Kind      string `json:"kind"`
	Timestamp string `json:"timestamp"`
	Identity  string `json:"identity"`
}

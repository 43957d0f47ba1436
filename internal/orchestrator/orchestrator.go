// Package orchestrator drives discovery, ordering, per-task execution,
// failure handling and rollback. Execution is single-threaded and fully
// sequential; the only concurrency-adjacent behavior is fire-and-forget
// asynchronous dispatch.
package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/deployops/taskrun/internal/config"
	"github.com/deployops/taskrun/internal/dag"
	"github.com/deployops/taskrun/internal/errors"
	"github.com/deployops/taskrun/internal/guard"
	"github.com/deployops/taskrun/internal/lock"
	"github.com/deployops/taskrun/internal/logger"
	"github.com/deployops/taskrun/internal/migrate"
	"github.com/deployops/taskrun/internal/notify"
	"github.com/deployops/taskrun/internal/queue"
	"github.com/deployops/taskrun/internal/record"
	"github.com/deployops/taskrun/internal/source"
	"github.com/deployops/taskrun/internal/task"
)

// Deps are the collaborators one orchestrator drives.
type Deps struct {
	Store      record.Store
	Sources    []source.Source
	Runner     migrate.Runner
	Dispatcher queue.Dispatcher
	Locker     lock.Locker
	Guards     guard.Set
	Emitter    *notify.Emitter
}

// Orchestrator executes one batch of discovered tasks at a time.
type Orchestrator struct {
	cfg      *config.Config
	deps     Deps
	resolver *dag.Resolver
}

// New creates an orchestrator. The configuration is captured here; the core
// loop never reads ambient globals.
func New(cfg *config.Config, deps Deps) *Orchestrator {
	return &Orchestrator{
		cfg:      cfg,
		deps:     deps,
		resolver: dag.NewResolver(),
	}
}

// executed tracks one successfully completed operation of this run, in
// execution order, for the rollback cascade.
type executed struct {
	task *task.Task
	rec  *record.ExecutionRecord
}

// Process runs one orchestration batch. In dry-run mode it returns the
// ordered preview and performs no side effects; otherwise it returns nil on
// success and the original failure after the rollback cascade.
func (o *Orchestrator) Process(ctx context.Context, opts Options) ([]Preview, error) {
	runID := uuid.NewString()

	if opts.DryRun {
		tasks, err := o.Plan(ctx, opts)
		if err != nil {
			return nil, err
		}
		previews := make([]Preview, len(tasks))
		for i, t := range tasks {
			previews[i] = Preview{Kind: t.Kind.String(), Timestamp: t.Timestamp, Identity: t.Identity}
		}
		return previews, nil
	}

	if ok, reason := o.deps.Guards.Check(); !ok {
		logger.User.Warnf("Run blocked: %s", reason)
		return nil, errors.NewRunBlockedError(reason)
	}

	if opts.Isolate {
		err := lock.WithLock(ctx, o.deps.Locker, o.cfg.Lock.Name, o.cfg.Lock.Timeout, o.cfg.Lock.TTL, func() error {
			return o.run(ctx, runID, opts)
		})
		return nil, err
	}
	return nil, o.run(ctx, runID, opts)
}

// Plan performs discovery, repeat validation, topological sorting and
// filtering. It is shared by dry runs and real runs and has no side effects.
func (o *Orchestrator) Plan(ctx context.Context, opts Options) ([]*task.Task, error) {
	tasks, err := source.Merge(ctx, opts.Repeat, o.deps.Sources...)
	if err != nil {
		return nil, err
	}

	if opts.Repeat {
		if err := o.validateRepeat(ctx, tasks); err != nil {
			return nil, err
		}
	}

	sorted, err := o.resolver.Sort(ctx, tasks)
	if err != nil {
		return nil, err
	}

	return o.filter(sorted, opts)
}

// validateRepeat rejects repeat mode when any discovered task has no prior
// execution record. Repeat re-runs history; it never runs new work.
func (o *Orchestrator) validateRepeat(ctx context.Context, tasks []*task.Task) error {
	for _, t := range tasks {
		rec, err := o.deps.Store.Find(ctx, t.Identity, t.Kind.String())
		if err != nil {
			return err
		}
		if rec == nil {
			return errors.NewNeverExecutedError(t.Identity)
		}
	}
	return nil
}

// filter applies the from and tag filters. Schema changes are never filtered
// by tag.
func (o *Orchestrator) filter(tasks []*task.Task, opts Options) ([]*task.Task, error) {
	var out []*task.Task
	for _, t := range tasks {
		if opts.From != "" && t.Timestamp < opts.From {
			continue
		}
		if len(opts.Tags) > 0 && t.Kind == task.KindOperation {
			match, err := o.tagsIntersect(t, opts.Tags)
			if err != nil {
				return nil, err
			}
			if !match {
				continue
			}
		}
		out = append(out, t)
	}
	return out, nil
}

func (o *Orchestrator) tagsIntersect(t *task.Task, filter []string) (bool, error) {
	payload, err := t.Payload()
	if err != nil {
		return false, err
	}
	tagged, ok := payload.(task.Tagged)
	if !ok {
		return false, nil
	}
	declared := tagged.Tags()
	for _, want := range filter {
		for _, have := range declared {
			if want == have {
				return true, nil
			}
		}
	}
	return false, nil
}

// run executes the planned batch sequentially and coordinates rollback.
func (o *Orchestrator) run(ctx context.Context, runID string, opts Options) error {
	tasks, err := o.Plan(ctx, opts)
	if err != nil {
		return err
	}

	if len(tasks) == 0 {
		logger.User.Info("Nothing to process")
		o.emit(notify.Event{Type: notify.NothingPending, RunID: runID})
		return nil
	}

	logger.User.Startingf("Processing %d tasks", len(tasks))
	o.emit(notify.Event{Type: notify.BatchStarted, RunID: runID})
	batchStart := time.Now()

	var done []executed
	for _, t := range tasks {
		if err := o.executeOne(ctx, runID, opts, t, &done); err != nil {
			o.rollback(ctx, done)
			o.emit(notify.Event{Type: notify.BatchEnded, RunID: runID, Elapsed: time.Since(batchStart)})
			return err
		}
	}

	logger.User.Successf("Batch completed: %d tasks in %v", len(tasks), time.Since(batchStart).Round(time.Millisecond))
	o.emit(notify.Event{Type: notify.BatchEnded, RunID: runID, Elapsed: time.Since(batchStart)})
	return nil
}

// executeOne dispatches a single task by kind. It returns an error only for
// failures that stop the batch.
func (o *Orchestrator) executeOne(ctx context.Context, runID string, opts Options, t *task.Task, done *[]executed) error {
	switch t.Kind {
	case task.KindSchemaChange:
		return o.executeSchemaChange(ctx, runID, t)
	case task.KindOperation:
		return o.executeOperation(ctx, runID, opts, t, done)
	default:
		return errors.NewUnknownTaskKindError(t.Kind.String())
	}
}

// executeSchemaChange delegates one schema change to the migration runner.
// A delegation failure propagates immediately; there is no retry and no skip.
func (o *Orchestrator) executeSchemaChange(ctx context.Context, runID string, t *task.Task) error {
	start := time.Now()
	o.emit(notify.Event{Type: notify.TaskStarted, RunID: runID, Identity: t.Identity, Kind: t.Kind.String(), Method: string(record.MethodSync)})

	rec, err := o.deps.Store.Begin(ctx, t.Identity, t.Kind.String(), record.MethodSync)
	if err != nil {
		return err
	}

	if err := o.deps.Runner.Apply(ctx, t); err != nil {
		if serr := o.deps.Store.MarkFailed(ctx, rec); serr != nil {
			logger.Op.WithField("task", t.Identity).Errorf("record failure failed: %v", serr)
		}
		logger.User.Errorf("Schema change failed: %s", t.Identity)
		o.emit(notify.Event{Type: notify.TaskFailed, RunID: runID, Identity: t.Identity, Kind: t.Kind.String(), Method: string(record.MethodSync), Reason: err.Error(), Elapsed: time.Since(start)})
		return errors.NewTaskFailedError(t.Identity, err)
	}

	if err := o.deps.Store.MarkCompleted(ctx, rec); err != nil {
		return err
	}
	logger.User.Successf("Schema change applied: %s", t.Identity)
	o.emit(notify.Event{Type: notify.TaskEnded, RunID: runID, Identity: t.Identity, Kind: t.Kind.String(), Method: string(record.MethodSync), Elapsed: time.Since(start)})
	return nil
}

// executeOperation runs one business-logic operation: pre-conditions, the
// sync/async decision, the optional transaction boundary, and recording.
func (o *Orchestrator) executeOperation(ctx context.Context, runID string, opts Options, t *task.Task, done *[]executed) error {
	start := time.Now()

	payload, err := t.Payload()
	if err != nil {
		return err
	}
	runner, ok := payload.(task.Runner)
	if !ok {
		return fmt.Errorf("operation %s payload does not implement Run", t.Identity)
	}

	// Pre-execution guards, in order: environment restriction, then the
	// voluntary run predicate, then persisted dependency satisfaction.
	reason, skip, err := o.preSkipReason(ctx, t, payload)
	if err != nil {
		return err
	}
	if skip {
		rec, err := o.deps.Store.Begin(ctx, t.Identity, t.Kind.String(), record.MethodFake)
		if err != nil {
			return err
		}
		if err := o.deps.Store.MarkSkipped(ctx, rec, reason); err != nil {
			return err
		}
		logger.User.Skipf("%s (%s)", t.Identity, reason)
		o.emit(notify.Event{Type: notify.TaskSkipped, RunID: runID, Identity: t.Identity, Kind: t.Kind.String(), Reason: reason, Elapsed: time.Since(start)})
		return nil
	}

	async := o.decideAsync(opts, payload)
	method := record.MethodSync
	if async {
		method = record.MethodAsync
	}

	o.emit(notify.Event{Type: notify.TaskStarted, RunID: runID, Identity: t.Identity, Kind: t.Kind.String(), Method: string(method)})

	rec, err := o.deps.Store.Begin(ctx, t.Identity, t.Kind.String(), method)
	if err != nil {
		return err
	}

	if async {
		job := &queue.Job{Task: t, Record: rec, Queue: o.queueName(opts, payload), RunID: runID}
		if err := o.deps.Dispatcher.Enqueue(ctx, job); err != nil {
			if serr := o.deps.Store.MarkFailed(ctx, rec); serr != nil {
				logger.Op.WithField("task", t.Identity).Errorf("record failure failed: %v", serr)
			}
			o.emit(notify.Event{Type: notify.TaskFailed, RunID: runID, Identity: t.Identity, Kind: t.Kind.String(), Method: string(method), Reason: err.Error(), Elapsed: time.Since(start)})
			return errors.NewTaskFailedError(t.Identity, err)
		}
		// Fire and forget: the next task begins immediately.
		logger.User.Infof("Dispatched async: %s", t.Identity)
		return nil
	}

	runErr := o.runSync(ctx, runner, payload)
	if runErr == nil {
		if err := o.deps.Store.MarkCompleted(ctx, rec); err != nil {
			return err
		}
		*done = append(*done, executed{task: t, rec: rec})
		logger.User.Successf("Completed: %s", t.Identity)
		o.emit(notify.Event{Type: notify.TaskEnded, RunID: runID, Identity: t.Identity, Kind: t.Kind.String(), Method: string(method), Elapsed: time.Since(start)})
		return nil
	}

	if reason, skipped := task.AsSkip(runErr); skipped {
		if err := o.deps.Store.MarkSkipped(ctx, rec, reason); err != nil {
			return err
		}
		logger.User.Skipf("%s (%s)", t.Identity, reason)
		o.emit(notify.Event{Type: notify.TaskSkipped, RunID: runID, Identity: t.Identity, Kind: t.Kind.String(), Reason: reason, Elapsed: time.Since(start)})
		return nil
	}

	if serr := o.deps.Store.MarkFailed(ctx, rec); serr != nil {
		logger.Op.WithField("task", t.Identity).Errorf("record failure failed: %v", serr)
	}
	logger.User.Errorf("Task failed: %s", t.Identity)
	o.emit(notify.Event{Type: notify.TaskFailed, RunID: runID, Identity: t.Identity, Kind: t.Kind.String(), Method: string(method), Reason: runErr.Error(), Elapsed: time.Since(start)})
	return errors.NewTaskFailedError(t.Identity, runErr)
}

// preSkipReason evaluates the pre-execution guards of an operation.
func (o *Orchestrator) preSkipReason(ctx context.Context, t *task.Task, payload interface{}) (string, bool, error) {
	if restricted, ok := payload.(task.EnvRestricted); ok {
		envs := restricted.Environments()
		if len(envs) > 0 && !contains(envs, o.cfg.Environment) {
			return fmt.Sprintf("restricted to environments %v, current is %q", envs, o.cfg.Environment), true, nil
		}
	}

	if conditional, ok := payload.(task.Conditional); ok && !conditional.ShouldRun() {
		return "run predicate returned false", true, nil
	}

	// Dependency satisfaction is only ever read from the persisted store;
	// presence in this run's sorted list does not count.
	deps, err := t.ResolveDependencies()
	if err != nil {
		return "", false, err
	}
	for _, dep := range deps {
		satisfied, err := o.deps.Store.Satisfied(ctx, dep)
		if err != nil {
			return "", false, err
		}
		if !satisfied {
			return fmt.Sprintf("dependency %s not satisfied", dep), true, nil
		}
	}
	return "", false, nil
}

// decideAsync applies the ForceSync/ForceAsync overrides over the task's own
// declaration. ForceSync wins when both flags are set.
func (o *Orchestrator) decideAsync(opts Options, payload interface{}) bool {
	if opts.ForceSync {
		return false
	}
	if opts.ForceAsync {
		return true
	}
	if preferred, ok := payload.(task.AsyncPreferred); ok {
		return preferred.Async()
	}
	return false
}

func (o *Orchestrator) queueName(opts Options, payload interface{}) string {
	if opts.Queue != "" {
		return opts.Queue
	}
	if declarer, ok := payload.(task.QueueDeclarer); ok {
		return declarer.Queue()
	}
	return ""
}

// runSync executes the payload, wrapping it in a store transaction when the
// task asks for one (or the configured default says so).
func (o *Orchestrator) runSync(ctx context.Context, runner task.Runner, payload interface{}) error {
	wrap := o.cfg.WrapInTransaction
	if transactional, ok := payload.(task.Transactional); ok {
		wrap = transactional.WithinTransaction()
	}

	if wrap {
		return o.deps.Store.Transaction(ctx, func(ctx context.Context) error {
			return runner.Run(ctx)
		})
	}
	return runner.Run(ctx)
}

// rollback walks this run's successfully executed operations in reverse
// order. Schema changes are never rolled back. A rollback failure is logged
// and the cascade continues; it never masks the original failure.
func (o *Orchestrator) rollback(ctx context.Context, done []executed) {
	if len(done) == 0 {
		return
	}
	logger.User.Warnf("Rolling back %d completed tasks", len(done))

	for i := len(done) - 1; i >= 0; i-- {
		entry := done[i]

		payload, err := entry.task.Payload()
		if err != nil {
			logger.Op.WithField("task", entry.task.Identity).Errorf("rollback payload load failed: %v", err)
			continue
		}
		capable, ok := payload.(task.RollbackCapable)
		if !ok {
			logger.Op.WithField("task", entry.task.Identity).Debug("Task does not support rollback, leaving completed")
			continue
		}

		if err := capable.Rollback(ctx); err != nil {
			logger.Op.WithFields(map[string]interface{}{
				"task":  entry.task.Identity,
				"error": err,
			}).Error("Rollback failed, continuing cascade")
			continue
		}
		if err := o.deps.Store.MarkRolledBack(ctx, entry.rec); err != nil {
			logger.Op.WithField("task", entry.task.Identity).Errorf("record rollback failed: %v", err)
			continue
		}
		logger.User.Infof("Rolled back: %s", entry.task.Identity)
	}
}

func (o *Orchestrator) emit(ev notify.Event) {
	if o.deps.Emitter != nil {
		o.deps.Emitter.Emit(ev)
	}
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

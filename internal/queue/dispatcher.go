// Package queue implements the asynchronous dispatch contract. The
// orchestrator enqueues a task and does not await completion; the consuming
// side updates the execution record through the same transition rules the
// synchronous path uses.
package queue

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/deployops/taskrun/internal/logger"
	"github.com/deployops/taskrun/internal/notify"
	"github.com/deployops/taskrun/internal/record"
	"github.com/deployops/taskrun/internal/task"
)

// Job is one enqueued task together with its pending execution record.
type Job struct {
	Task   *task.Task
	Record *record.ExecutionRecord
	Queue  string
	RunID  string
}

// Dispatcher hands a job off for eventual execution. Enqueue must not block
// on the job's completion.
type Dispatcher interface {
	Enqueue(ctx context.Context, job *Job) error
}

// Metrics tracks dispatcher counters.
type Metrics struct {
	jobsEnqueued int64
	jobsDone     int64
	jobsFailed   int64
}

func (m *Metrics) Enqueued() int64 { return atomic.LoadInt64(&m.jobsEnqueued) }
func (m *Metrics) Done() int64     { return atomic.LoadInt64(&m.jobsDone) }
func (m *Metrics) Failed() int64   { return atomic.LoadInt64(&m.jobsFailed) }

// WorkerDispatcher runs jobs on an in-process worker pool with one buffered
// channel per named queue. The empty queue name is the default queue.
type WorkerDispatcher struct {
	store   record.Store
	emitter *notify.Emitter
	metrics *Metrics

	mu       sync.Mutex
	queues   map[string]chan *Job
	buffer   int
	workers  int
	wg       sync.WaitGroup
	senders  sync.WaitGroup
	shutdown chan struct{}
	closed   bool
}

// NewWorkerDispatcher creates a dispatcher with the given per-queue worker
// count and channel buffer size.
func NewWorkerDispatcher(store record.Store, emitter *notify.Emitter, workers, buffer int) *WorkerDispatcher {
	if workers <= 0 {
		workers = 2
	}
	if buffer <= 0 {
		buffer = 64
	}
	return &WorkerDispatcher{
		store:    store,
		emitter:  emitter,
		metrics:  &Metrics{},
		queues:   make(map[string]chan *Job),
		buffer:   buffer,
		workers:  workers,
		shutdown: make(chan struct{}),
	}
}

// Metrics returns the dispatcher counters.
func (d *WorkerDispatcher) Metrics() *Metrics {
	return d.metrics
}

// Enqueue places the job on its queue, spinning the queue up on first use.
// It never waits for the job to run.
func (d *WorkerDispatcher) Enqueue(ctx context.Context, job *Job) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return fmt.Errorf("dispatcher is shut down")
	}
	ch, ok := d.queues[job.Queue]
	if !ok {
		ch = make(chan *Job, d.buffer)
		d.queues[job.Queue] = ch
		for i := 0; i < d.workers; i++ {
			d.wg.Add(1)
			go d.worker(job.Queue, ch)
		}
	}
	// Registered under the lock so Shutdown cannot close the channel while
	// this send is pending.
	d.senders.Add(1)
	d.mu.Unlock()
	defer d.senders.Done()

	select {
	case ch <- job:
		atomic.AddInt64(&d.metrics.jobsEnqueued, 1)
		logger.Op.WithFields(map[string]interface{}{
			"task":  job.Task.Identity,
			"queue": job.Queue,
		}).Debug("Job enqueued")
		return nil
	case <-d.shutdown:
		return fmt.Errorf("dispatcher is shut down")
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Shutdown stops accepting jobs and waits for in-flight jobs to finish.
// Pending Enqueue calls drain before the queue channels close; a blocked
// sender bails out through the shutdown signal instead.
func (d *WorkerDispatcher) Shutdown() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.shutdown)
	d.mu.Unlock()

	d.senders.Wait()

	d.mu.Lock()
	for _, ch := range d.queues {
		close(ch)
	}
	d.mu.Unlock()

	d.wg.Wait()
}

func (d *WorkerDispatcher) worker(queue string, ch <-chan *Job) {
	defer d.wg.Done()

	logger.Op.WithField("queue", queue).Debug("Queue worker started")
	for job := range ch {
		d.runJob(job)
	}
}

// runJob executes the payload and records the outcome using the same
// Completed/Failed/Skipped transition rules as the synchronous path.
func (d *WorkerDispatcher) runJob(job *Job) {
	ctx := context.Background()
	start := time.Now()

	payload, err := job.Task.Payload()
	if err != nil {
		d.finishFailed(ctx, job, start, err)
		return
	}
	runner, ok := payload.(task.Runner)
	if !ok {
		d.finishFailed(ctx, job, start, fmt.Errorf("payload of %s is not runnable", job.Task.Identity))
		return
	}

	err = runner.Run(ctx)
	switch {
	case err == nil:
		if serr := d.store.MarkCompleted(ctx, job.Record); serr != nil {
			logger.Op.WithField("task", job.Task.Identity).Errorf("record completion failed: %v", serr)
		}
		atomic.AddInt64(&d.metrics.jobsDone, 1)
		d.emit(notify.TaskEnded, job, "", time.Since(start))
	default:
		if reason, skipped := task.AsSkip(err); skipped {
			if serr := d.store.MarkSkipped(ctx, job.Record, reason); serr != nil {
				logger.Op.WithField("task", job.Task.Identity).Errorf("record skip failed: %v", serr)
			}
			atomic.AddInt64(&d.metrics.jobsDone, 1)
			d.emit(notify.TaskSkipped, job, reason, time.Since(start))
			return
		}
		d.finishFailed(ctx, job, start, err)
	}
}

func (d *WorkerDispatcher) finishFailed(ctx context.Context, job *Job, start time.Time, cause error) {
	if serr := d.store.MarkFailed(ctx, job.Record); serr != nil {
		logger.Op.WithField("task", job.Task.Identity).Errorf("record failure failed: %v", serr)
	}
	atomic.AddInt64(&d.metrics.jobsFailed, 1)
	logger.Op.WithFields(map[string]interface{}{
		"task":  job.Task.Identity,
		"queue": job.Queue,
	}).Errorf("Async task failed: %v", cause)
	d.emit(notify.TaskFailed, job, cause.Error(), time.Since(start))
}

func (d *WorkerDispatcher) emit(evt notify.EventType, job *Job, reason string, elapsed time.Duration) {
	if d.emitter == nil {
		return
	}
	d.emitter.Emit(notify.Event{
		Type:     evt,
		RunID:    job.RunID,
		Identity: job.Task.Identity,
		Kind:     job.Task.Kind.String(),
		Method:   string(record.MethodAsync),
		Reason:   reason,
		Elapsed:  elapsed,
	})
}

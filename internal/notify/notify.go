// Package notify emits fire-and-forget lifecycle signals for external
// observers. No listener may block the engine.
package notify

import (
	"sync"
	"time"

	"github.com/deployops/taskrun/internal/logger"
)

// EventType identifies a lifecycle signal.
type EventType string

const (
	BatchStarted   EventType = "batch-started"
	BatchEnded     EventType = "batch-ended"
	TaskStarted    EventType = "task-started"
	TaskEnded      EventType = "task-ended"
	TaskFailed     EventType = "task-failed"
	TaskSkipped    EventType = "task-skipped"
	NothingPending EventType = "nothing-pending"
)

// Event is the payload delivered to listeners.
type Event struct {
	Type     EventType
	RunID    string
	Identity string
	Kind     string
	Method   string // sync|async, where applicable
	Reason   string // skip reason or failure summary
	Elapsed  time.Duration
}

// Listener receives events. Implementations must return quickly; slow
// consumers should hand off to their own goroutine.
type Listener func(Event)

// Emitter fans events out to registered listeners.
type Emitter struct {
	mu        sync.RWMutex
	listeners []Listener
}

// NewEmitter creates an emitter with no listeners.
func NewEmitter() *Emitter {
	return &Emitter{}
}

// Subscribe registers a listener for all subsequent events.
func (e *Emitter) Subscribe(l Listener) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.listeners = append(e.listeners, l)
}

// Emit delivers the event to every listener. A panicking listener is
// contained so it cannot abort the batch.
func (e *Emitter) Emit(ev Event) {
	e.mu.RLock()
	listeners := append([]Listener(nil), e.listeners...)
	e.mu.RUnlock()

	for _, l := range listeners {
		func() {
			defer func() {
				if r := recover(); r != nil {
					logger.Op.WithFields(map[string]interface{}{
						"event": ev.Type,
						"panic": r,
					}).Warn("Event listener panicked")
				}
			}()
			l(ev)
		}()
	}
}

// LogListener writes events through the operational logger.
func LogListener(ev Event) {
	fields := map[string]interface{}{
		"event": string(ev.Type),
		"run":   ev.RunID,
	}
	if ev.Identity != "" {
		fields["task"] = ev.Identity
		fields["kind"] = ev.Kind
	}
	if ev.Method != "" {
		fields["method"] = ev.Method
	}
	if ev.Reason != "" {
		fields["reason"] = ev.Reason
	}
	if ev.Elapsed > 0 {
		fields["elapsed"] = ev.Elapsed.Round(time.Millisecond).String()
	}
	logger.Op.WithFields(fields).Info("Lifecycle signal")
}

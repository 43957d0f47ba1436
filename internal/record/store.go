package record

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Store persists execution records. It is the only state shared across
// process boundaries; within one orchestrator invocation no two tasks touch
// it concurrently because execution is sequential.
type Store interface {
	// Begin creates a pending record at the moment a task starts executing.
	// A row already present for the same name and kind is reset instead of
	// duplicated, since retries and repeat mode re-run history.
	Begin(ctx context.Context, name, kind string, method Method) (*ExecutionRecord, error)

	// MarkCompleted, MarkFailed, MarkSkipped and MarkRolledBack set exactly
	// one terminal timestamp on an existing record.
	MarkCompleted(ctx context.Context, rec *ExecutionRecord) error
	MarkFailed(ctx context.Context, rec *ExecutionRecord) error
	MarkSkipped(ctx context.Context, rec *ExecutionRecord, reason string) error
	MarkRolledBack(ctx context.Context, rec *ExecutionRecord) error

	// Find returns the record for a name and kind, or nil when absent.
	Find(ctx context.Context, name, kind string) (*ExecutionRecord, error)

	// Satisfied reports whether any record under the name has reached
	// Completed or Skipped, regardless of kind. Used for dependency checks
	// against work done in previous runs.
	Satisfied(ctx context.Context, name string) (bool, error)

	// List returns all records ordered by name.
	List(ctx context.Context) ([]*ExecutionRecord, error)

	// Transaction runs fn inside a store transaction where the backend
	// supports one; otherwise fn runs directly.
	Transaction(ctx context.Context, fn func(ctx context.Context) error) error

	Close() error
}

// MemoryStore is an in-process Store for tests and dry environments.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]*ExecutionRecord
	nextID  uint
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string]*ExecutionRecord),
		nextID:  1,
	}
}

func key(name, kind string) string {
	return kind + "/" + name
}

// Begin creates a pending record, or resets the existing row for the same
// name and kind (retry of a failed task, repeat mode).
func (s *MemoryStore) Begin(ctx context.Context, name, kind string, method Method) (*ExecutionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec, ok := s.records[key(name, kind)]; ok {
		rec.Type = method
		rec.ExecutedAt = time.Now()
		rec.CompletedAt = nil
		rec.FailedAt = nil
		rec.SkippedAt = nil
		rec.SkipReason = ""
		rec.RolledBackAt = nil
		return rec, nil
	}

	rec := &ExecutionRecord{
		ID:         s.nextID,
		Name:       name,
		Kind:       kind,
		Type:       method,
		ExecutedAt: time.Now(),
	}
	s.nextID++
	s.records[key(name, kind)] = rec
	return rec, nil
}

func (s *MemoryStore) MarkCompleted(ctx context.Context, rec *ExecutionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	rec.CompletedAt = &now
	return nil
}

func (s *MemoryStore) MarkFailed(ctx context.Context, rec *ExecutionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	rec.FailedAt = &now
	return nil
}

func (s *MemoryStore) MarkSkipped(ctx context.Context, rec *ExecutionRecord, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	rec.SkippedAt = &now
	rec.SkipReason = reason
	return nil
}

func (s *MemoryStore) MarkRolledBack(ctx context.Context, rec *ExecutionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	rec.RolledBackAt = &now
	return nil
}

func (s *MemoryStore) Find(ctx context.Context, name, kind string) (*ExecutionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[key(name, kind)]
	if !ok {
		return nil, nil
	}
	return rec, nil
}

func (s *MemoryStore) Satisfied(ctx context.Context, name string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, rec := range s.records {
		if rec.Name == name && rec.Satisfies() {
			return true, nil
		}
	}
	return false, nil
}

func (s *MemoryStore) List(ctx context.Context) ([]*ExecutionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*ExecutionRecord, 0, len(s.records))
	for _, rec := range s.records {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Transaction has no transactional backend in memory; fn runs directly.
func (s *MemoryStore) Transaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func (s *MemoryStore) Close() error {
	return nil
}

package task

import (
	"fmt"
	"sort"
	"sync"
)

// Factory builds a fresh payload instance for a registered operation.
type Factory func() Runner

// Registry is the compile-time table of operation payloads, keyed by their
// canonical timestamped name. Operations register here explicitly; there is
// no runtime file inclusion.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
	}
}

// Register adds an operation factory under its timestamped name. Names not
// matching the discovery pattern are rejected, mirroring filename discovery.
func (r *Registry) Register(name string, factory Factory) error {
	if _, ok := SplitName(name); !ok {
		return fmt.Errorf("operation name %q does not match the discovery pattern", name)
	}
	if factory == nil {
		return fmt.Errorf("operation %q has a nil factory", name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.factories[name]; exists {
		return fmt.Errorf("operation %q is already registered", name)
	}
	r.factories[name] = factory
	return nil
}

// MustRegister registers a factory and panics on error. Intended for use in
// package init blocks of operation files.
func (r *Registry) MustRegister(name string, factory Factory) {
	if err := r.Register(name, factory); err != nil {
		panic(err)
	}
}

// Resolve returns the factory registered under name.
func (r *Registry) Resolve(name string) (Factory, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.factories[name]
	return f, ok
}

// Names returns all registered names in lexical (= chronological) order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Default is the process-wide registry operations register into.
var Default = NewRegistry()

// Register adds an operation factory to the default registry.
func Register(name string, factory Factory) error {
	return Default.Register(name, factory)
}

// MustRegister adds an operation factory to the default registry, panicking
// on error.
func MustRegister(name string, factory Factory) {
	Default.MustRegister(name, factory)
}

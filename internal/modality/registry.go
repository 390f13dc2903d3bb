package modality

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

// Registration pairs a State with the engine-side bookkeeping the
// contract keeps out of implementations: when the state last changed
// and how many mutations it has absorbed.
type Registration struct {
	State       State
	LastUpdated time.Time
	UpdateCount int64
}

// Registry maps channel names to registered States.
//
// The engine holds exactly one Registry and accesses it inside its
// exclusive section, but registration may happen from setup code before
// the engine starts, so the registry carries its own lock.
type Registry struct {
	mu      sync.Mutex
	entries map[string]*Registration
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]*Registration)}
}

// Register adds a state under its own ModalityType name.
// Duplicate registration is an error.
func (r *Registry) Register(s State) error {
	if s == nil {
		return fmt.Errorf("register: nil state")
	}
	name := s.ModalityType()
	if name == "" {
		return fmt.Errorf("register: empty modality name")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.entries[name]; ok {
		return fmt.Errorf("register: duplicate modality %q", name)
	}
	r.entries[name] = &Registration{State: s}
	return nil
}

// Get returns the state registered under name.
func (r *Registry) Get(name string) (State, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	reg, ok := r.entries[name]
	if !ok {
		return nil, false
	}
	return reg.State, true
}

// Lookup returns the full registration record for name.
func (r *Registry) Lookup(name string) (*Registration, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	reg, ok := r.entries[name]
	return reg, ok
}

// RecordMutation bumps the bookkeeping for name after a successful
// Apply or Undo. The engine calls this; implementations never do.
func (r *Registry) RecordMutation(name string, at time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if reg, ok := r.entries[name]; ok {
		reg.LastUpdated = at
		reg.UpdateCount++
	}
}

// Names returns the registered channel names in sorted order.
// Sorted iteration keeps every aggregate view deterministic.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of registered modalities.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

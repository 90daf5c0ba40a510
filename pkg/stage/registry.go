package stage

import (
	"fmt"
	"sort"
	"sync"
)

// Registry maintains a thread-safe set of stage types keyed by id.
type Registry struct {
	types map[string]Type
	mu    sync.RWMutex
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		types: make(map[string]Type),
	}
}

// Register adds a stage type. Registering an id twice is an error.
func (r *Registry) Register(t Type) error {
	if err := t.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.types[t.ID]; exists {
		return fmt.Errorf("stage type %s already registered", t.ID)
	}
	r.types[t.ID] = t
	return nil
}

// MustRegister is like Register but panics on error.
func (r *Registry) MustRegister(t Type) {
	if err := r.Register(t); err != nil {
		panic(err)
	}
}

// Lookup returns the stage type for id.
func (r *Registry) Lookup(id string) (Type, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.types[id]
	return t, ok
}

// NewInstance creates an instance of the registered type id.
// Returns ErrUnknownStage if no type is registered for id.
func (r *Registry) NewInstance(id string, raw map[string]interface{}, opts ...Option) (*Instance, error) {
	t, ok := r.Lookup(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownStage, id)
	}
	return NewInstance(t, raw, opts...)
}

// Types returns all registered types sorted by id.
func (r *Registry) Types() []Type {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]Type, 0, len(r.types))
	for _, t := range r.types {
		types = append(types, t)
	}
	sort.Slice(types, func(a, b int) bool { return types[a].ID < types[b].ID })
	return types
}

// Unregister removes a type.
// Returns true if a type was removed, false if none existed.
func (r *Registry) Unregister(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.types[id]; exists {
		delete(r.types, id)
		return true
	}
	return false
}

// Count returns the number of registered types.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.types)
}

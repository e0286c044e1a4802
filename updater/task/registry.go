package task

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/netbirdio/netbird-updater/updater/plan"
)

// Factory builds a Task from the opaque payload of a plan record
type Factory func(payload json.RawMessage) (Task, error)

// Registry maps task kinds to their factories
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
	}
}

// Register adds a factory for kind. Registering the same kind twice is an error.
func (r *Registry) Register(kind string, f Factory) error {
	if kind == "" {
		return fmt.Errorf("task kind cannot be empty")
	}
	if f == nil {
		return fmt.Errorf("nil factory for task kind %q", kind)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.factories[kind]; ok {
		return fmt.Errorf("task kind %q already registered", kind)
	}
	r.factories[kind] = f
	return nil
}

// Resolve builds the executable task for record
func (r *Registry) Resolve(record *plan.TaskRecord) (Task, error) {
	if record == nil {
		return nil, fmt.Errorf("nil task record")
	}

	r.mu.RLock()
	f, ok := r.factories[record.Kind]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown task kind %q", record.Kind)
	}

	t, err := f(record.Payload)
	if err != nil {
		return nil, fmt.Errorf("build task %q: %w", record.Kind, err)
	}
	return t, nil
}

// Kinds returns the registered kinds sorted by name
func (r *Registry) Kinds() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	kinds := make([]string, 0, len(r.factories))
	for k := range r.factories {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

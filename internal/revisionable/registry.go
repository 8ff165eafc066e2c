package revisionable

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/roach88/appframe/internal/ir"
)

// Registry holds the known record types by name.
// Safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	types map[string]ir.RecordType
}

// NewRegistry creates a registry and registers the given types.
func NewRegistry(types ...ir.RecordType) (*Registry, error) {
	r := &Registry{types: make(map[string]ir.RecordType)}
	for _, t := range types {
		if err := r.Register(t); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register validates and adds a record type. Registering a name twice is
// an error.
func (r *Registry) Register(t ir.RecordType) error {
	if errs := t.Validate(); len(errs) > 0 {
		msgs := make([]string, len(errs))
		for i, e := range errs {
			msgs[i] = e.Error()
		}
		return fmt.Errorf("register record type %q: %s", t.Name, strings.Join(msgs, "; "))
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.types[t.Name]; exists {
		return fmt.Errorf("register record type %q: already registered", t.Name)
	}
	r.types[t.Name] = t
	return nil
}

// Get returns the named type.
func (r *Registry) Get(name string) (ir.RecordType, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.types[name]
	if !ok {
		return ir.RecordType{}, newError(ErrCodeUnknownType, "record type %q is not registered", name)
	}
	return t, nil
}

// Names returns the registered type names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.types))
	for name := range r.types {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// All returns the registered types sorted by name.
func (r *Registry) All() []ir.RecordType {
	names := r.Names()
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]ir.RecordType, len(names))
	for i, name := range names {
		out[i] = r.types[name]
	}
	return out
}

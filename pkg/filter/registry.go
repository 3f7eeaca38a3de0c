// Package filter holds named string-to-string page filters. Filters are
// registered once while the process starts and looked up by name afterwards.
package filter

import (
	"fmt"
	"sort"
	"sync"

	"github.com/Sriram-PR/doc-toc/pkg/utils"
)

// Func transforms rendered page text. Filters must be pure and safe for concurrent use.
type Func func(input string) string

// Registry maps filter names to implementations
type Registry struct {
	mu      sync.RWMutex
	filters map[string]Func
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{filters: make(map[string]Func)}
}

// Register adds fn under name. Names are unique; re-registering is an error.
func (r *Registry) Register(name string, fn Func) error {
	if name == "" {
		return fmt.Errorf("%w: filter name cannot be empty", utils.ErrConfigValidation)
	}
	if fn == nil {
		return fmt.Errorf("%w: filter '%s' has no implementation", utils.ErrConfigValidation, name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.filters[name]; exists {
		return fmt.Errorf("%w: '%s'", utils.ErrDuplicateFilter, name)
	}
	r.filters[name] = fn
	return nil
}

// Lookup returns the filter registered under name
func (r *Registry) Lookup(name string) (Func, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.filters[name]
	return fn, ok
}

// Apply runs the named filter on input
func (r *Registry) Apply(name, input string) (string, error) {
	fn, ok := r.Lookup(name)
	if !ok {
		return "", fmt.Errorf("%w: '%s'", utils.ErrUnknownFilter, name)
	}
	return fn(input), nil
}

// Names returns the registered filter names, sorted
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.filters))
	for name := range r.filters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

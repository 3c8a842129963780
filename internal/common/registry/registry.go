// Package registry provides a generic, thread-safe name -> implementation
// registry. Transports and store factories are both resolved through it at
// configuration time.
//
//	transports := registry.New[transport.Transport]()
//	_ = transports.Register(httpTransport)
//	t, err := transports.Get("http")
package registry

import (
	"fmt"
	"sort"
	"sync"

	"overlay-router/internal/common/errors"
)

// Named is implemented by anything that can be registered
type Named interface {
	Name() string
}

// Registry maps names to implementations of T
type Registry[T Named] struct {
	items map[string]T
	mu    sync.RWMutex
}

// New creates a new empty registry
func New[T Named]() *Registry[T] {
	return &Registry[T]{
		items: make(map[string]T),
	}
}

// Register adds item under item.Name(). Registering the same name twice is an error.
func (r *Registry[T]) Register(item T) error {
	name := item.Name()
	if name == "" {
		return errors.ValidationError("cannot register an unnamed implementation")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.items[name]; exists {
		return errors.ValidationError(fmt.Sprintf("%s is already registered", name))
	}
	r.items[name] = item
	return nil
}

// Replace registers item, overwriting any existing entry with the same name
func (r *Registry[T]) Replace(item T) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[item.Name()] = item
}

// Get retrieves an implementation by name
func (r *Registry[T]) Get(name string) (T, error) {
	r.mu.RLock()
	item, exists := r.items[name]
	r.mu.RUnlock()

	if !exists {
		var zero T
		return zero, errors.NotFoundError(fmt.Sprintf("implementation %q", name))
	}
	return item, nil
}

// Names returns the registered names in sorted order
func (r *Registry[T]) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.items))
	for name := range r.items {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// All returns the registered implementations ordered by name
func (r *Registry[T]) All() []T {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.items))
	for name := range r.items {
		names = append(names, name)
	}
	sort.Strings(names)

	items := make([]T, 0, len(names))
	for _, name := range names {
		items = append(items, r.items[name])
	}
	return items
}

// IsRegistered checks if name is registered
func (r *Registry[T]) IsRegistered(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, exists := r.items[name]
	return exists
}

// Count returns the number of registered implementations
func (r *Registry[T]) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.items)
}

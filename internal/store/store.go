// Package store builds the routing.Store backends by name. Backends register
// a Factory from their own package's init, so importing a backend package is
// what makes its kind available.
package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"overlay-router/internal/common/errors"
	"overlay-router/internal/common/logging"
	"overlay-router/internal/redis"
	"overlay-router/internal/routing"
)

// Backend is a routing.Store with a lifecycle
type Backend interface {
	routing.Store
	Name() string
	Health(ctx context.Context) error
	Close() error
}

// Config carries the settings every backend may need
type Config struct {
	Kind         string
	DatabasePath string
	PostgresDSN  string
	Redis        *redis.Client
	Logger       logging.Logger
}

// Factory opens a backend from cfg
type Factory func(ctx context.Context, cfg Config) (Backend, error)

// Registry maps store kinds to factories
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry creates a registry that only knows the memory store
func NewRegistry() *Registry {
	r := &Registry{factories: make(map[string]Factory)}
	r.Register(KindMemory, func(context.Context, Config) (Backend, error) { return NewMemory(), nil })
	return r
}

func (r *Registry) Register(kind string, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[kind] = factory
}

// Open creates the backend configured by cfg.Kind
func (r *Registry) Open(ctx context.Context, cfg Config) (Backend, error) {
	r.mu.RLock()
	factory, exists := r.factories[cfg.Kind]
	r.mu.RUnlock()

	if !exists {
		return nil, errors.ConfigError(fmt.Sprintf("routing store %q not registered (available: %v)", cfg.Kind, r.Kinds()))
	}
	return factory(ctx, cfg)
}

// Kinds lists the registered store kinds
func (r *Registry) Kinds() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	kinds := make([]string, 0, len(r.factories))
	for kind := range r.factories {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)
	return kinds
}

func (r *Registry) IsRegistered(kind string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, exists := r.factories[kind]
	return exists
}

var DefaultRegistry = NewRegistry()

func Register(kind string, factory Factory) {
	DefaultRegistry.Register(kind, factory)
}

func Open(ctx context.Context, cfg Config) (Backend, error) {
	return DefaultRegistry.Open(ctx, cfg)
}

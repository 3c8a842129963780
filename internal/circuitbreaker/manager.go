package circuitbreaker

import (
	"context"
	"sort"
	"sync"

	"overlay-router/internal/common/logging"
)

// Manager keeps one breaker per send target, created on first use.
type Manager struct {
	config   Config
	logger   logging.Logger
	mu       sync.Mutex
	breakers map[string]*Breaker
}

// NewManager creates a manager handing out breakers built from config
func NewManager(config Config, logger logging.Logger) *Manager {
	return &Manager{
		config:   config,
		logger:   logging.Component(logger, "circuitbreaker"),
		breakers: make(map[string]*Breaker),
	}
}

// Get returns the breaker for name, creating it if needed
func (m *Manager) Get(name string) *Breaker {
	m.mu.Lock()
	defer m.mu.Unlock()

	if b, ok := m.breakers[name]; ok {
		return b
	}
	b := New(name, m.config, m.logger)
	m.breakers[name] = b
	return b
}

// Execute runs fn through the breaker for name
func (m *Manager) Execute(ctx context.Context, name string, fn func(context.Context) error) error {
	return m.Get(name).Execute(ctx, fn)
}

// States reports the state of every known breaker, keyed by name
func (m *Manager) States() map[string]string {
	m.mu.Lock()
	defer m.mu.Unlock()

	states := make(map[string]string, len(m.breakers))
	for name, b := range m.breakers {
		states[name] = b.State().String()
	}
	return states
}

// Open lists the targets whose breaker is currently open
func (m *Manager) Open() []string {
	var open []string
	for name, state := range m.States() {
		if state == StateOpen.String() {
			open = append(open, name)
		}
	}
	sort.Strings(open)
	return open
}

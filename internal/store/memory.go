package store

import (
	"context"
	"sort"
	"sync"

	"overlay-router/internal/routing"
)

// KindMemory keeps entries only for the life of the process
const KindMemory = "memory"

// Memory is an in-process store
type Memory struct {
	mu      sync.RWMutex
	entries map[string]routing.Entry
}

func NewMemory() *Memory {
	return &Memory{entries: make(map[string]routing.Entry)}
}

func (m *Memory) Name() string { return KindMemory }

// Load returns entries ordered by destination, source and cost
func (m *Memory) Load(context.Context) ([]routing.Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]routing.Entry, 0, len(m.entries))
	for _, e := range m.entries {
		out = append(out, e)
	}
	SortEntries(out)
	return out, nil
}

func (m *Memory) Insert(_ context.Context, entry routing.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[entry.ID] = entry
	return nil
}

func (m *Memory) Update(_ context.Context, old, updated routing.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, old.ID)
	m.entries[updated.ID] = updated
	return nil
}

func (m *Memory) DeleteAll(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = make(map[string]routing.Entry)
	return nil
}

func (m *Memory) Health(context.Context) error { return nil }

func (m *Memory) Close() error { return nil }

// SortEntries orders entries the way every backend returns them from Load
func SortEntries(entries []routing.Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.DestinationCommunity != b.DestinationCommunity {
			return a.DestinationCommunity < b.DestinationCommunity
		}
		if a.SourceCommunity != b.SourceCommunity {
			return a.SourceCommunity < b.SourceCommunity
		}
		if a.Cost != b.Cost {
			return a.Cost < b.Cost
		}
		return a.ID < b.ID
	})
}

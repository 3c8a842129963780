package testutil

import (
	"context"
	"sync"
)

// RecordingDeliverer keeps every local delivery as "protocol:payload"
type RecordingDeliverer struct {
	mu        sync.Mutex
	delivered []string
	// Err is returned from every Deliver call
	Err error
}

func (r *RecordingDeliverer) Deliver(_ context.Context, protocolName string, payload []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.delivered = append(r.delivered, protocolName+":"+string(payload))
	return r.Err
}

// Delivered returns a copy of what has been delivered so far
func (r *RecordingDeliverer) Delivered() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.delivered...)
}

// MockLocker hands out locks that always succeed unless AcquireFunc fails
type MockLocker struct {
	AcquireFunc func(ctx context.Context, key string) error

	mu       sync.Mutex
	acquired []string
	released []string
}

func (m *MockLocker) Acquire(ctx context.Context, key string) (func(context.Context) error, error) {
	if m.AcquireFunc != nil {
		if err := m.AcquireFunc(ctx, key); err != nil {
			return nil, err
		}
	}
	m.mu.Lock()
	m.acquired = append(m.acquired, key)
	m.mu.Unlock()

	return func(context.Context) error {
		m.mu.Lock()
		defer m.mu.Unlock()
		m.released = append(m.released, key)
		return nil
	}, nil
}

// Calls returns the acquired and released keys
func (m *MockLocker) Calls() (acquired, released []string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.acquired...), append([]string(nil), m.released...)
}

package session

import (
	"context"
	"sync"
)

// MemoryStore is a thread-safe in-process Store. Suitable for development
// and tests; production deployments use the Redis store so sessions
// survive restarts.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]Data
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		data: make(map[string]Data),
	}
}

func (m *MemoryStore) Get(ctx context.Context, id string) (*Data, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, ok := m.data[id]
	if !ok {
		return nil, nil
	}

	// Return a copy so callers never mutate the stored record in place.
	return &data, nil
}

func (m *MemoryStore) Put(ctx context.Context, id string, data *Data) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.data[id] = *data
	return nil
}

func (m *MemoryStore) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.data, id)
	return nil
}

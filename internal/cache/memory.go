package cache

import (
	"context"
	"sync"
)

// MemoryStore is an in-process Store. A non-nil Fail makes every call
// return it.
type MemoryStore struct {
	mu    sync.Mutex
	data  []byte
	Fail  error
	Saves int
}

func (m *MemoryStore) Load(context.Context) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Fail != nil {
		return nil, m.Fail
	}
	if m.data == nil {
		return nil, ErrNotFound
	}
	return append([]byte(nil), m.data...), nil
}

func (m *MemoryStore) Save(_ context.Context, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Fail != nil {
		return m.Fail
	}
	m.data = append([]byte(nil), data...)
	m.Saves++
	return nil
}

func (m *MemoryStore) Remove(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Fail != nil {
		return m.Fail
	}
	m.data = nil
	return nil
}

package db

import (
	"context"
	"sync"
)

//MemoryStore keeps everything in process memory. It is used for tests and for running without a database.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]map[string][]byte
}

//NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string]map[string][]byte)}
}

func (m *MemoryStore) GetRaw(_ context.Context, category, key string) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[category][key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), v...), true, nil
}

func (m *MemoryStore) SetRaw(_ context.Context, category, key string, value []byte) error {
	if !validCategory(category) {
		return persistenceErr("set", category, key, ErrInvalidCategory)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.data[category] == nil {
		m.data[category] = make(map[string][]byte)
	}
	m.data[category][key] = append([]byte(nil), value...)
	return nil
}

func (m *MemoryStore) GetAllRaw(_ context.Context, category string) (map[string][]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make(map[string][]byte, len(m.data[category]))
	for k, v := range m.data[category] {
		res[k] = append([]byte(nil), v...)
	}
	return res, nil
}

func (m *MemoryStore) Remove(_ context.Context, category, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data[category], key)
	return nil
}

func (m *MemoryStore) Close() error {
	return nil
}

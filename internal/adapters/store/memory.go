package store

import (
	"context"
	"sync"
	"time"
)

// Memory keeps documents in process memory. Used by tests and by the
// "memory" backend.
type Memory struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemory returns an empty Memory store.
func NewMemory() *Memory {
	return &Memory{data: make(map[string][]byte)}
}

func (m *Memory) Read(_ context.Context, key string) ([]byte, bool, error) {
	start := time.Now()
	m.mu.RLock()
	v, ok := m.data[key]
	m.mu.RUnlock()
	observe(BackendMemory, "read", start, nil)
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), v...), true, nil
}

func (m *Memory) Write(_ context.Context, key string, data []byte) error {
	start := time.Now()
	m.mu.Lock()
	m.data[key] = append([]byte(nil), data...)
	m.mu.Unlock()
	observe(BackendMemory, "write", start, nil)
	return nil
}

func (m *Memory) Name() string { return BackendMemory }

func (m *Memory) Close() error { return nil }

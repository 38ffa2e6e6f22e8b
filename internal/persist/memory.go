package persist

import (
	"context"
	"sync"
)

// Memory keeps documents in process memory.
type Memory struct {
	mu    sync.Mutex
	docs  map[string][]byte
	saves int
}

// NewMemory returns an empty in-memory backend.
func NewMemory() *Memory {
	return &Memory{docs: make(map[string][]byte)}
}

// Load implements Backend.
func (m *Memory) Load(_ context.Context, name string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, ok := m.docs[name]
	if !ok {
		return nil, ErrNoDocument
	}
	return append([]byte(nil), data...), nil
}

// Save implements Backend.
func (m *Memory) Save(_ context.Context, name string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.docs[name] = append([]byte(nil), data...)
	m.saves++
	return nil
}

// Close implements Backend.
func (m *Memory) Close() error {
	return nil
}

// Saves returns how many Save calls succeeded. Tests use it to check that
// unchanged state is not rewritten.
func (m *Memory) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

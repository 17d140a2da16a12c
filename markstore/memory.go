package markstore

import (
	"context"
	"sync"
)

// Memory keeps marks for the lifetime of the process.
type Memory struct {
	mu    sync.RWMutex
	marks map[string]struct{}
}

func NewMemory() *Memory {
	return &Memory{marks: make(map[string]struct{})}
}

func (m *Memory) Mark(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.marks[name] = struct{}{}
	return nil
}

func (m *Memory) Unmark(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.marks, name)
	return nil
}

func (m *Memory) Exists(_ context.Context, name string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.marks[name]
	return ok, nil
}

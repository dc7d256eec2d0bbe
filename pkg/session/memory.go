package session

import (
	"context"
	"sync"
)

// MemoryStore is the default in-memory Store. Suitable for single-node
// deployments; sessions live for the process lifetime with no eviction.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*State
}

// NewMemoryStore creates an empty in-memory session store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]*State)}
}

func (m *MemoryStore) GetOrCreate(_ context.Context, sessionID string) (*State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[sessionID]
	if !ok {
		s = NewState(sessionID)
		m.sessions[sessionID] = s
	}
	return s.Clone(), nil
}

func (m *MemoryStore) Get(_ context.Context, sessionID string) (*State, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[sessionID]
	if !ok {
		return nil, ErrNotFound
	}
	return s.Clone(), nil
}

func (m *MemoryStore) Update(_ context.Context, sessionID string, mutate func(*State)) (*State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	prev, ok := m.sessions[sessionID]
	if !ok {
		return nil, ErrNotFound
	}

	next := prev.Clone()
	mutate(next)
	finalize(prev, next)
	m.sessions[sessionID] = next
	return next.Clone(), nil
}

// Len returns the number of live sessions, for diagnostics.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

func (m *MemoryStore) Close() {}

var _ Store = (*MemoryStore)(nil)

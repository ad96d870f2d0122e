package store

import (
	"context"
	"sort"
	"sync"

	"github.com/andresmejia3/biomech/internal/session"
	"github.com/andresmejia3/biomech/internal/types"
	"github.com/google/uuid"
)

// MemoryStore keeps sessions in process memory. Useful for demos and tests; nothing survives a restart.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]types.Session
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]types.Session)}
}

func (m *MemoryStore) Save(_ context.Context, s types.Session) (string, error) {
	s = s.Clone()
	s.ID = uuid.NewString()

	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()
	return s.ID, nil
}

func (m *MemoryStore) Get(_ context.Context, id string) (types.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return types.Session{}, ErrNotFound
	}
	return s.Clone(), nil
}

// List returns all sessions, newest first.
func (m *MemoryStore) List(_ context.Context) ([]types.SessionSummary, error) {
	m.mu.RLock()
	out := make([]types.SessionSummary, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, session.Summarize(s))
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].StartTime.After(out[j].StartTime)
	})
	return out, nil
}

func (m *MemoryStore) Rename(_ context.Context, id, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return ErrNotFound
	}
	s.Name = name
	m.sessions[id] = s
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[id]; !ok {
		return ErrNotFound
	}
	delete(m.sessions, id)
	return nil
}

package session

import (
	"context"
	"sync"
	"time"
)

// Store round-trips sessions between turns. Eviction policy lives with
// the backing store (Redis TTL), not here.
type Store interface {
	// Get returns the session, or a fresh one if the id is unknown.
	Get(ctx context.Context, id string) (*Session, error)
	Put(ctx context.Context, s *Session) error
}

// MemoryStore backs tests and single-process runs.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]*Session
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]*Session)}
}

func (m *MemoryStore) Get(_ context.Context, id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[id]; ok {
		cp := *s
		return &cp, nil
	}
	return New(id), nil
}

func (m *MemoryStore) Put(_ context.Context, s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *s
	if cp.Updated.IsZero() {
		cp.Updated = time.Now()
	}
	m.sessions[s.ID] = &cp
	return nil
}

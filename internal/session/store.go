package session

import (
	"context"
	"sort"
	"sync"

	"bank-terminal-go/internal/models"
)

// Store holds at most one session per account. Get returns nil, nil when
// the account has no session.
type Store interface {
	Get(ctx context.Context, account string) (*models.Session, error)
	Put(ctx context.Context, s models.Session) error
	Delete(ctx context.Context, account string) error
	List(ctx context.Context) ([]models.Session, error)
}

// MemoryStore keeps sessions in process memory.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]models.Session
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]models.Session)}
}

func (m *MemoryStore) Get(_ context.Context, account string) (*models.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[account]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

func (m *MemoryStore) Put(_ context.Context, s models.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.AccountNumber] = s
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, account string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, account)
	return nil
}

func (m *MemoryStore) List(_ context.Context) ([]models.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AccountNumber < out[j].AccountNumber })
	return out, nil
}

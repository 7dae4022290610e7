package pricing

import (
	"context"
	"sync"
)

// SelectionStore persists the shopper's campaign choice per session.
// Get returns "" when nothing is stored.
type SelectionStore interface {
	Get(ctx context.Context, sessionID string) (string, error)
	Set(ctx context.Context, sessionID, campaignID string) error
	Clear(ctx context.Context, sessionID string) error
}

var _ SelectionStore = (*MemoryStore)(nil)

// MemoryStore is a process-local SelectionStore.
type MemoryStore struct {
	mu   sync.Mutex
	data map[string]string
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string]string)}
}

func (m *MemoryStore) Get(_ context.Context, sessionID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data[sessionID], nil
}

func (m *MemoryStore) Set(_ context.Context, sessionID, campaignID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[sessionID] = campaignID
	return nil
}

func (m *MemoryStore) Clear(_ context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, sessionID)
	return nil
}

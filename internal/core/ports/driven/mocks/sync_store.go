package mocks

import (
	"context"
	"sort"
	"sync"

	"github.com/petjet/petjet-sync/internal/core/domain"
)

// MockSyncStateStore is an in-memory SyncStateStore for testing.
// Stored states are copied on the way in and out, like a real database row.
type MockSyncStateStore struct {
	mu     sync.Mutex
	states map[domain.SyncType]*domain.SyncState

	// Error injection (optional)
	GetErr    error
	SaveErr   error
	UpdateErr error
	DeleteErr error

	// Writes counts row writes (Create, Save, Update).
	Writes int
}

// NewMockSyncStateStore creates a new MockSyncStateStore
func NewMockSyncStateStore() *MockSyncStateStore {
	return &MockSyncStateStore{
		states: make(map[domain.SyncType]*domain.SyncState),
	}
}

func (m *MockSyncStateStore) Get(ctx context.Context, syncType domain.SyncType) (*domain.SyncState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.GetErr != nil {
		return nil, m.GetErr
	}
	state, ok := m.states[syncType]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return state.Clone(), nil
}

func (m *MockSyncStateStore) Create(ctx context.Context, state *domain.SyncState) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SaveErr != nil {
		return false, m.SaveErr
	}
	if _, ok := m.states[state.Type]; ok {
		return false, nil
	}
	m.states[state.Type] = state.Clone()
	m.Writes++
	return true, nil
}

func (m *MockSyncStateStore) Save(ctx context.Context, state *domain.SyncState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SaveErr != nil {
		return m.SaveErr
	}
	m.states[state.Type] = state.Clone()
	m.Writes++
	return nil
}

func (m *MockSyncStateStore) Update(ctx context.Context, syncType domain.SyncType, fn func(*domain.SyncState) error) (*domain.SyncState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.UpdateErr != nil {
		return nil, m.UpdateErr
	}
	state, ok := m.states[syncType]
	if !ok {
		return nil, domain.ErrNotFound
	}
	working := state.Clone()
	if err := fn(working); err != nil {
		return nil, err
	}
	m.states[syncType] = working.Clone()
	m.Writes++
	return working, nil
}

func (m *MockSyncStateStore) Delete(ctx context.Context, syncType domain.SyncType) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.DeleteErr != nil {
		return m.DeleteErr
	}
	delete(m.states, syncType)
	return nil
}

func (m *MockSyncStateStore) List(ctx context.Context) ([]*domain.SyncState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]*domain.SyncState, 0, len(m.states))
	for _, state := range m.states {
		result = append(result, state.Clone())
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Type < result[j].Type })
	return result, nil
}

func (m *MockSyncStateStore) Ping(ctx context.Context) error {
	return nil
}

// Helper methods for testing

// Put stores a state directly, bypassing write accounting.
func (m *MockSyncStateStore) Put(state *domain.SyncState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states[state.Type] = state.Clone()
}

func (m *MockSyncStateStore) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states = make(map[domain.SyncType]*domain.SyncState)
	m.Writes = 0
}

func (m *MockSyncStateStore) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.states)
}

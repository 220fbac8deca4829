package mocks

import (
	"context"
	"sort"
	"sync"

	"github.com/petjet/petjet-sync/internal/core/domain"
)

// MockSchedulerStore is an in-memory SchedulerStore for testing.
type MockSchedulerStore struct {
	mu        sync.Mutex
	schedules map[string]*domain.ScheduledSync

	GetDueFn        func() ([]*domain.ScheduledSync, error)
	UpdateLastRunFn func(id string, lastError string) error
}

// NewMockSchedulerStore creates a new MockSchedulerStore
func NewMockSchedulerStore() *MockSchedulerStore {
	return &MockSchedulerStore{
		schedules: make(map[string]*domain.ScheduledSync),
	}
}

func (m *MockSchedulerStore) ListScheduledSyncs(ctx context.Context) ([]*domain.ScheduledSync, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]*domain.ScheduledSync, 0, len(m.schedules))
	for _, s := range m.schedules {
		result = append(result, s)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (m *MockSchedulerStore) SaveScheduledSync(ctx context.Context, sync *domain.ScheduledSync) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.schedules[sync.ID] = sync
	return nil
}

func (m *MockSchedulerStore) GetDueScheduledSyncs(ctx context.Context) ([]*domain.ScheduledSync, error) {
	if m.GetDueFn != nil {
		return m.GetDueFn()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []*domain.ScheduledSync
	for _, s := range m.schedules {
		if s.IsDue() {
			result = append(result, s)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (m *MockSchedulerStore) UpdateLastRun(ctx context.Context, id string, lastError string) error {
	if m.UpdateLastRunFn != nil {
		return m.UpdateLastRunFn(id, lastError)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.schedules[id]
	if !ok {
		return domain.ErrNotFound
	}
	s.UpdateNextRun()
	s.LastError = lastError
	return nil
}

// Get returns a schedule by id, or nil.
func (m *MockSchedulerStore) Get(id string) *domain.ScheduledSync {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.schedules[id]
}

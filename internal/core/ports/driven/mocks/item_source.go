package mocks

import (
	"context"
	"sync"

	"github.com/petjet/petjet-sync/internal/core/domain"
)

// MockItemSource serves a fixed, already ordered list of work items.
type MockItemSource struct {
	mu    sync.Mutex
	Items []domain.WorkItem

	CountErr error
	ListErr  error

	// CountOverride makes Count report a different total than len(Items),
	// simulating rows inserted or deleted after the run started.
	CountOverride *int

	ListCalls  int
	CountCalls int
}

// NewMockItemSource creates a source with items named and identified by ids.
func NewMockItemSource(ids ...string) *MockItemSource {
	items := make([]domain.WorkItem, len(ids))
	for i, id := range ids {
		items[i] = domain.WorkItem{ID: id, Name: id}
	}
	return &MockItemSource{Items: items}
}

func (m *MockItemSource) Count(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CountCalls++
	if m.CountErr != nil {
		return 0, m.CountErr
	}
	if m.CountOverride != nil {
		return *m.CountOverride, nil
	}
	return len(m.Items), nil
}

func (m *MockItemSource) List(ctx context.Context, offset, limit int) ([]domain.WorkItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ListCalls++
	if m.ListErr != nil {
		return nil, m.ListErr
	}
	if offset >= len(m.Items) {
		return nil, nil
	}
	end := offset + limit
	if end > len(m.Items) {
		end = len(m.Items)
	}
	out := make([]domain.WorkItem, end-offset)
	copy(out, m.Items[offset:end])
	return out, nil
}

package mocks

import (
	"context"
	"sync"
	"time"

	"github.com/petjet/petjet-sync/internal/core/domain"
)

// MockRecordSink is an in-memory RecordSink for testing.
type MockRecordSink struct {
	mu      sync.Mutex
	records map[string]domain.Record

	LoadErr  error
	WriteErr error

	Writes  int
	Touches int
}

// NewMockRecordSink creates a new MockRecordSink
func NewMockRecordSink() *MockRecordSink {
	return &MockRecordSink{records: make(map[string]domain.Record)}
}

func sinkKey(kind domain.RecordKind, key string) string {
	return string(kind) + "/" + key
}

func (m *MockRecordSink) Load(ctx context.Context, kind domain.RecordKind, key string) (*domain.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.LoadErr != nil {
		return nil, m.LoadErr
	}
	rec, ok := m.records[sinkKey(kind, key)]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &rec, nil
}

func (m *MockRecordSink) Write(ctx context.Context, record domain.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.WriteErr != nil {
		return m.WriteErr
	}
	if record.UpdatedAt.IsZero() {
		record.UpdatedAt = time.Now()
	}
	m.records[sinkKey(record.Kind, record.Key)] = record
	m.Writes++
	return nil
}

func (m *MockRecordSink) Touch(ctx context.Context, kind domain.RecordKind, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[sinkKey(kind, key)]
	if !ok {
		return domain.ErrNotFound
	}
	rec.UpdatedAt = time.Now()
	m.records[sinkKey(kind, key)] = rec
	m.Touches++
	return nil
}

// Put stores a record directly, bypassing write accounting.
func (m *MockRecordSink) Put(record domain.Record) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[sinkKey(record.Kind, record.Key)] = record
}

// Len returns the number of stored records.
func (m *MockRecordSink) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}

package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/petjet/petjet-sync/internal/core/domain"
	"github.com/petjet/petjet-sync/internal/core/ports/driven/mocks"
)

func newTestProgressStore() (*ProgressStore, *mocks.MockSyncStateStore) {
	store := mocks.NewMockSyncStateStore()
	return NewProgressStore(ProgressStoreConfig{Store: store, Logger: discardLogger()}), store
}

func TestProgressStore_GetCurrentProgress_NotFound(t *testing.T) {
	p, _ := newTestProgressStore()

	state, found, err := p.GetCurrentProgress(context.Background(), domain.SyncTypeAirlines)
	require.NoError(t, err)
	assert.False(t, found)
	assert.Nil(t, state)
}

func TestProgressStore_GetCurrentProgress_StoreError(t *testing.T) {
	p, store := newTestProgressStore()
	store.GetErr = errors.New("connection refused")

	_, found, err := p.GetCurrentProgress(context.Background(), domain.SyncTypeAirlines)
	require.Error(t, err)
	assert.False(t, found)
}

func TestProgressStore_Initialize(t *testing.T) {
	ctx := context.Background()
	p, _ := newTestProgressStore()

	state, err := p.Initialize(ctx, domain.SyncTypePetPolicies, 42, false)
	require.NoError(t, err)
	assert.Equal(t, 42, state.Total)
	assert.Zero(t, state.Processed)
	assert.Empty(t, state.ProcessedItems)
	assert.Empty(t, state.ErrorItems)
	assert.NotNil(t, state.StartTime)
	assert.False(t, state.IsComplete)
	assert.True(t, state.NeedsContinuation)
	assert.NotEmpty(t, state.RunID)

	stored, found, err := p.GetCurrentProgress(ctx, domain.SyncTypePetPolicies)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, state.RunID, stored.RunID)
}

func TestProgressStore_Initialize_ReplacesWithoutResume(t *testing.T) {
	ctx := context.Background()
	p, _ := newTestProgressStore()

	first, err := p.Initialize(ctx, domain.SyncTypeAirlines, 10, false)
	require.NoError(t, err)
	p.UpdateProgress(ctx, domain.SyncTypeAirlines, domain.ProgressUpdate{ProcessedDelta: 4, ProcessedItems: []string{"a"}})

	second, err := p.Initialize(ctx, domain.SyncTypeAirlines, 12, false)
	require.NoError(t, err)
	assert.NotEqual(t, first.RunID, second.RunID)
	assert.Equal(t, 12, second.Total)
	assert.Zero(t, second.Processed)
	assert.Empty(t, second.ProcessedItems)
}

func TestProgressStore_Initialize_ResumeIsIdempotent(t *testing.T) {
	ctx := context.Background()
	p, store := newTestProgressStore()

	_, err := p.Initialize(ctx, domain.SyncTypeAirlines, 10, false)
	require.NoError(t, err)
	p.UpdateProgress(ctx, domain.SyncTypeAirlines, domain.ProgressUpdate{ProcessedDelta: 3, ProcessedItems: []string{"a", "b", "c"}})
	before, err := store.Get(ctx, domain.SyncTypeAirlines)
	require.NoError(t, err)
	writes := store.Writes

	for i := 0; i < 2; i++ {
		state, err := p.Initialize(ctx, domain.SyncTypeAirlines, 99, true)
		require.NoError(t, err)
		assert.Equal(t, before, state)
	}

	after, err := store.Get(ctx, domain.SyncTypeAirlines)
	require.NoError(t, err)
	assert.Equal(t, before, after)
	assert.Equal(t, writes, store.Writes, "resume initialize must not write")
}

func TestProgressStore_Initialize_ResumeCreatesWhenAbsent(t *testing.T) {
	p, _ := newTestProgressStore()

	state, err := p.Initialize(context.Background(), domain.SyncTypeAirports, 7, true)
	require.NoError(t, err)
	assert.Equal(t, 7, state.Total)
	assert.True(t, state.NeedsContinuation)
}

func TestProgressStore_UpdateProgress_SetUnion(t *testing.T) {
	ctx := context.Background()
	p, _ := newTestProgressStore()
	_, err := p.Initialize(ctx, domain.SyncTypeAirlines, 10, false)
	require.NoError(t, err)

	p.UpdateProgress(ctx, domain.SyncTypeAirlines, domain.ProgressUpdate{ProcessedItems: []string{"A", "B"}})
	state := p.UpdateProgress(ctx, domain.SyncTypeAirlines, domain.ProgressUpdate{ProcessedItems: []string{"B", "C"}})

	require.NotNil(t, state)
	assert.Equal(t, []string{"A", "B", "C"}, state.ProcessedItems)
}

func TestProgressStore_UpdateProgress_SuccessIsAuthoritative(t *testing.T) {
	ctx := context.Background()
	p, _ := newTestProgressStore()
	_, err := p.Initialize(ctx, domain.SyncTypeAirlines, 10, false)
	require.NoError(t, err)

	p.UpdateProgress(ctx, domain.SyncTypeAirlines, domain.ProgressUpdate{
		ErrorItems:   []string{"X", "Y"},
		ErrorDetails: map[string]string{"X": "timeout", "Y": "boom"},
	})
	state := p.UpdateProgress(ctx, domain.SyncTypeAirlines, domain.ProgressUpdate{ProcessedItems: []string{"X"}})

	require.NotNil(t, state)
	assert.Equal(t, []string{"X"}, state.ProcessedItems)
	assert.Equal(t, []string{"Y"}, state.ErrorItems)
	assert.Equal(t, map[string]string{"Y": "boom"}, state.ErrorDetails)
}

func TestProgressStore_UpdateProgress_IgnoresTotal(t *testing.T) {
	ctx := context.Background()
	p, _ := newTestProgressStore()
	_, err := p.Initialize(ctx, domain.SyncTypeAirlines, 10, false)
	require.NoError(t, err)

	state := p.UpdateProgress(ctx, domain.SyncTypeAirlines, domain.ProgressUpdate{Total: intPtr(500), ProcessedDelta: 2})

	require.NotNil(t, state)
	assert.Equal(t, 10, state.Total)
	assert.Equal(t, 2, state.Processed)
}

func TestProgressStore_UpdateProgress_Monotonic(t *testing.T) {
	ctx := context.Background()
	p, _ := newTestProgressStore()
	_, err := p.Initialize(ctx, domain.SyncTypeAirlines, 10, false)
	require.NoError(t, err)

	updates := []domain.ProgressUpdate{
		{ProcessedDelta: 3},
		{ProcessedDelta: -2},
		{Processed: intPtr(1)},
		{ProcessedDelta: 4},
		{ProcessedDelta: 20},
		{Processed: intPtr(0)},
	}
	last := 0
	for _, u := range updates {
		state := p.UpdateProgress(ctx, domain.SyncTypeAirlines, u)
		require.NotNil(t, state)
		assert.GreaterOrEqual(t, state.Processed, last)
		assert.LessOrEqual(t, state.Processed, state.Total)
		last = state.Processed
	}
	assert.Equal(t, 10, last)
}

func TestProgressStore_UpdateProgress_CompleteClearsContinuation(t *testing.T) {
	ctx := context.Background()
	p, _ := newTestProgressStore()
	_, err := p.Initialize(ctx, domain.SyncTypeAirlines, 10, false)
	require.NoError(t, err)

	state := p.UpdateProgress(ctx, domain.SyncTypeAirlines, domain.ProgressUpdate{
		IsComplete:        boolPtr(true),
		NeedsContinuation: boolPtr(true),
	})

	require.NotNil(t, state)
	assert.True(t, state.IsComplete)
	assert.False(t, state.NeedsContinuation)
}

func TestProgressStore_UpdateProgress_OneWritePerUpdate(t *testing.T) {
	ctx := context.Background()
	p, store := newTestProgressStore()
	_, err := p.Initialize(ctx, domain.SyncTypeAirlines, 10, false)
	require.NoError(t, err)
	writes := store.Writes

	p.UpdateProgress(ctx, domain.SyncTypeAirlines, domain.ProgressUpdate{ProcessedDelta: 1, ProcessedItems: []string{"a"}})

	assert.Equal(t, writes+1, store.Writes)
}

func TestProgressStore_UpdateProgress_FailureIsSwallowed(t *testing.T) {
	ctx := context.Background()
	p, store := newTestProgressStore()
	_, err := p.Initialize(ctx, domain.SyncTypeAirlines, 10, false)
	require.NoError(t, err)
	store.UpdateErr = errors.New("write failed")

	state := p.UpdateProgress(ctx, domain.SyncTypeAirlines, domain.ProgressUpdate{ProcessedDelta: 1})
	assert.Nil(t, state)

	store.UpdateErr = nil
	state = p.UpdateProgress(ctx, domain.SyncTypeAirlines, domain.ProgressUpdate{ProcessedDelta: 1})
	require.NotNil(t, state)
	assert.Equal(t, 1, state.Processed)
}

func TestProgressStore_UpdateProgress_MissingRecord(t *testing.T) {
	p, _ := newTestProgressStore()

	state := p.UpdateProgress(context.Background(), domain.SyncTypeAirlines, domain.ProgressUpdate{ProcessedDelta: 1})
	assert.Nil(t, state)
}

func TestProgressStore_Cleanup(t *testing.T) {
	ctx := context.Background()
	p, _ := newTestProgressStore()
	_, err := p.Initialize(ctx, domain.SyncTypeAirlines, 10, false)
	require.NoError(t, err)

	require.NoError(t, p.Cleanup(ctx, domain.SyncTypeAirlines))
	_, found, err := p.GetCurrentProgress(ctx, domain.SyncTypeAirlines)
	require.NoError(t, err)
	assert.False(t, found)

	// Cleaning up twice is fine.
	require.NoError(t, p.Cleanup(ctx, domain.SyncTypeAirlines))
}

func TestProgressStore_List(t *testing.T) {
	ctx := context.Background()
	p, _ := newTestProgressStore()
	_, err := p.Initialize(ctx, domain.SyncTypeAirports, 1, false)
	require.NoError(t, err)
	_, err = p.Initialize(ctx, domain.SyncTypeAirlines, 2, false)
	require.NoError(t, err)

	states, err := p.List(ctx)
	require.NoError(t, err)
	require.Len(t, states, 2)
	assert.Equal(t, domain.SyncTypeAirlines, states[0].Type)
	assert.Equal(t, domain.SyncTypeAirports, states[1].Type)
}

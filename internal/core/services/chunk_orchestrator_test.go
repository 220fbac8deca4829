package services

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/petjet/petjet-sync/internal/core/domain"
	"github.com/petjet/petjet-sync/internal/core/ports/driven"
	"github.com/petjet/petjet-sync/internal/core/ports/driven/mocks"
)

func itemIDs(n int) []string {
	ids := make([]string, n)
	for i := range ids {
		ids[i] = fmt.Sprintf("item-%02d", i)
	}
	return ids
}

// batchFunc adapts a function to driven.BatchProcessor.
type batchFunc func(ctx context.Context, items []domain.WorkItem) error

func (f batchFunc) ProcessBatch(ctx context.Context, items []domain.WorkItem) error {
	return f(ctx, items)
}

func TestChunkOrchestrator_TenItemsThreePerChunk(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(3)
	ids := itemIDs(10)
	source := mocks.NewMockItemSource(ids...)
	res := Resource{
		Type:   domain.SyncTypeCountryPolicies,
		Source: source,
		Batch: batchFunc(func(ctx context.Context, items []domain.WorkItem) error {
			if len(items) == 1 {
				return errors.New("analysis endpoint unavailable")
			}
			return nil
		}),
	}

	offset := 0
	var sizes []int
	for i := 0; i < 10; i++ {
		result, err := e.orchestrator.Run(ctx, res, domain.ChunkRequest{SyncType: res.Type, Offset: offset})
		require.NoError(t, err)
		sizes = append(sizes, result.Metrics.Processed)
		if !result.Continuation.NeedsContinuation {
			assert.Nil(t, result.Continuation.NextOffset)
			assert.Equal(t, domain.PhaseComplete, result.Phase)
			break
		}
		require.NotNil(t, result.Continuation.NextOffset)
		assert.Equal(t, domain.PhaseContinuationNeeded, result.Phase)
		offset = *result.Continuation.NextOffset
	}

	assert.Equal(t, []int{3, 3, 3, 1}, sizes)

	state, err := e.store.Get(ctx, res.Type)
	require.NoError(t, err)
	assert.Equal(t, 10, state.Total)
	assert.Equal(t, 10, state.Processed)
	assert.Equal(t, []string{"item-09"}, state.ErrorItems)
	assert.Contains(t, state.ErrorDetails["item-09"], "analysis endpoint unavailable")
	assert.Len(t, state.ProcessedItems, 9)
	assert.True(t, state.IsComplete)
	assert.False(t, state.NeedsContinuation)
	require.NotNil(t, state.LastProcessed)
	assert.Equal(t, "item-09", *state.LastProcessed)

	// The run is terminal: any further offset returns the same response without work.
	calls := source.ListCalls
	for _, off := range []int{3, 9, 10} {
		result, err := e.orchestrator.Run(ctx, res, domain.ChunkRequest{SyncType: res.Type, Offset: off})
		require.NoError(t, err)
		assert.False(t, result.Continuation.NeedsContinuation)
		assert.Nil(t, result.Continuation.NextOffset)
		assert.Zero(t, result.Metrics.Processed)
	}
	assert.Equal(t, calls, source.ListCalls)
}

func TestChunkOrchestrator_EmptyFetchCompletes(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(5)
	source := mocks.NewMockItemSource("a", "b")
	drifted := 5
	source.CountOverride = &drifted
	proc := newCountingProcessor()
	res := Resource{Type: domain.SyncTypeAirlines, Source: source, Processor: proc}

	first, err := e.orchestrator.Run(ctx, res, domain.ChunkRequest{Offset: 0})
	require.NoError(t, err)
	require.True(t, first.Continuation.NeedsContinuation)
	assert.Equal(t, 2, *first.Continuation.NextOffset)

	second, err := e.orchestrator.Run(ctx, res, domain.ChunkRequest{Offset: 2})
	require.NoError(t, err)
	assert.False(t, second.Continuation.NeedsContinuation)
	assert.Equal(t, domain.PhaseComplete, second.Phase)

	state, err := e.store.Get(ctx, res.Type)
	require.NoError(t, err)
	assert.True(t, state.IsComplete)
	assert.False(t, state.NeedsContinuation)
	assert.Equal(t, 2, state.Processed)
}

func TestChunkOrchestrator_EmptySourceCompletesImmediately(t *testing.T) {
	e := newTestEngine(5)
	res := Resource{Type: domain.SyncTypeAirlines, Source: mocks.NewMockItemSource(), Processor: newCountingProcessor()}

	result, err := e.orchestrator.Run(context.Background(), res, domain.ChunkRequest{})
	require.NoError(t, err)
	assert.False(t, result.Continuation.NeedsContinuation)
	assert.True(t, result.State.IsComplete)
}

func TestChunkOrchestrator_ItemFailureDoesNotAbortChunk(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(5)
	proc := newCountingProcessor("b")
	res := Resource{Type: domain.SyncTypeAirlines, Source: mocks.NewMockItemSource("a", "b", "c"), Processor: proc}

	result, err := e.orchestrator.Run(ctx, res, domain.ChunkRequest{})
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "b", "c"}, proc.called())
	assert.Equal(t, []domain.ItemResult{{ID: "a", Success: true}, {ID: "c", Success: true}}, result.Results)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "b", result.Errors[0].ID)
	assert.InDelta(t, 2.0/3.0, result.Metrics.SuccessRate, 0.001)
	assert.Equal(t, []string{"b"}, result.State.ErrorItems)
	assert.True(t, result.State.IsComplete)
}

func TestChunkOrchestrator_RetriesItems(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(5)
	e.retrier.MaxRetries = 2
	attempts := 0
	res := Resource{
		Type:   domain.SyncTypeAirlines,
		Source: mocks.NewMockItemSource("a"),
		Processor: driven.ItemProcessorFunc(func(ctx context.Context, item domain.WorkItem) error {
			attempts++
			if attempts < 3 {
				return domain.ErrRateLimited
			}
			return nil
		}),
	}

	result, err := e.orchestrator.Run(ctx, res, domain.ChunkRequest{})
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
	assert.Empty(t, result.Errors)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, e.sleeper.recorded())
}

func TestChunkOrchestrator_FetchFailureLeavesRunResumable(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(2)
	source := mocks.NewMockItemSource("a", "b", "c", "d")
	res := Resource{Type: domain.SyncTypeAirlines, Source: source, Processor: newCountingProcessor()}

	_, err := e.orchestrator.Run(ctx, res, domain.ChunkRequest{})
	require.NoError(t, err)

	source.ListErr = errors.New("relation does not exist")
	_, err = e.orchestrator.Run(ctx, res, domain.ChunkRequest{Offset: 2})
	require.Error(t, err)

	state, err := e.store.Get(ctx, res.Type)
	require.NoError(t, err, "state must survive a chunk-fatal error")
	assert.True(t, state.NeedsContinuation)
	assert.False(t, state.IsComplete)
	assert.Equal(t, 2, state.Processed)

	source.ListErr = nil
	result, err := e.orchestrator.Run(ctx, res, domain.ChunkRequest{Offset: 2})
	require.NoError(t, err)
	assert.False(t, result.Continuation.NeedsContinuation)
	assert.Equal(t, 4, result.State.Processed)
}

func TestChunkOrchestrator_NewRunAfterCompletion(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(5)
	res := Resource{Type: domain.SyncTypeAirlines, Source: mocks.NewMockItemSource("a", "b"), Processor: newCountingProcessor()}

	first, err := e.orchestrator.Run(ctx, res, domain.ChunkRequest{})
	require.NoError(t, err)
	require.True(t, first.State.IsComplete)

	second, err := e.orchestrator.Run(ctx, res, domain.ChunkRequest{Offset: 0})
	require.NoError(t, err)
	assert.NotEqual(t, first.RunID, second.RunID)
	assert.Equal(t, 2, second.Metrics.Processed)
	assert.True(t, second.State.IsComplete)
}

func TestChunkOrchestrator_ResumeModeDoesNotRestart(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(5)
	proc := newCountingProcessor()
	res := Resource{Type: domain.SyncTypeAirlines, Source: mocks.NewMockItemSource("a", "b"), Processor: proc}

	first, err := e.orchestrator.Run(ctx, res, domain.ChunkRequest{})
	require.NoError(t, err)

	again, err := e.orchestrator.Run(ctx, res, domain.ChunkRequest{Offset: 0, Mode: domain.ModeResume})
	require.NoError(t, err)
	assert.Equal(t, first.RunID, again.RunID)
	assert.Equal(t, domain.PhaseComplete, again.Phase)
	assert.Len(t, proc.called(), 2)
}

func TestChunkOrchestrator_StalenessSkipsFreshItems(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(5)
	fresh := time.Now().Add(-time.Hour)
	stale := time.Now().Add(-60 * 24 * time.Hour)
	source := &mocks.MockItemSource{Items: []domain.WorkItem{
		{ID: "a", LastUpdated: &fresh},
		{ID: "b", LastUpdated: &stale},
		{ID: "c"},
	}}
	proc := newCountingProcessor()
	res := Resource{
		Type:            domain.SyncTypePetPolicies,
		Source:          source,
		Processor:       proc,
		StalenessWindow: 30 * 24 * time.Hour,
	}

	result, err := e.orchestrator.Run(ctx, res, domain.ChunkRequest{})
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "c"}, proc.called())
	assert.Equal(t, []string{"a"}, result.Skipped)
	assert.Equal(t, 1, result.Metrics.Skipped)
	assert.Equal(t, 3, result.State.Processed)
	assert.Equal(t, []string{"a", "b", "c"}, result.State.ProcessedItems)
}

func TestChunkOrchestrator_ForceUpdateBypassesStaleness(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(5)
	fresh := time.Now()
	source := &mocks.MockItemSource{Items: []domain.WorkItem{{ID: "a", LastUpdated: &fresh}}}
	proc := newCountingProcessor()
	res := Resource{Type: domain.SyncTypePetPolicies, Source: source, Processor: proc, StalenessWindow: time.Hour}

	result, err := e.orchestrator.Run(ctx, res, domain.ChunkRequest{ForceUpdate: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, proc.called())
	assert.Empty(t, result.Skipped)
}

func TestChunkOrchestrator_BatchPartialFailure(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(5)
	res := Resource{
		Type:   domain.SyncTypeCountryPolicies,
		Source: mocks.NewMockItemSource("DE", "FR", "GB"),
		Batch: batchFunc(func(ctx context.Context, items []domain.WorkItem) error {
			return domain.Permanent(domain.ItemErrors{"FR": errors.New("missing from response")})
		}),
	}

	result, err := e.orchestrator.Run(ctx, res, domain.ChunkRequest{})
	require.NoError(t, err)
	assert.Equal(t, []domain.ItemResult{{ID: "DE", Success: true}, {ID: "GB", Success: true}}, result.Results)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "FR", result.Errors[0].ID)
	assert.Equal(t, "missing from response", result.Errors[0].Error)
}

func TestChunkOrchestrator_ChunkDelayOnlyWhenContinuing(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(2)
	e.orchestrator.chunkDelay = 500 * time.Millisecond
	res := Resource{Type: domain.SyncTypeAirlines, Source: mocks.NewMockItemSource("a", "b", "c"), Processor: newCountingProcessor()}

	_, err := e.orchestrator.Run(ctx, res, domain.ChunkRequest{})
	require.NoError(t, err)
	assert.Equal(t, []time.Duration{500 * time.Millisecond}, e.sleeper.recorded())

	_, err = e.orchestrator.Run(ctx, res, domain.ChunkRequest{Offset: 2})
	require.NoError(t, err)
	assert.Len(t, e.sleeper.recorded(), 1)
}

func TestChunkOrchestrator_LostProgressWriteStillContinues(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(2)
	res := Resource{Type: domain.SyncTypeAirlines, Source: mocks.NewMockItemSource("a", "b", "c"), Processor: newCountingProcessor()}

	_, err := e.orchestrator.Run(ctx, res, domain.ChunkRequest{})
	require.NoError(t, err)
	e.store.UpdateErr = errors.New("write failed")

	result, err := e.orchestrator.Run(ctx, res, domain.ChunkRequest{Offset: 2})
	require.NoError(t, err)
	assert.Equal(t, []domain.ItemResult{{ID: "c", Success: true}}, result.Results)
	assert.False(t, result.Continuation.NeedsContinuation)
}

func TestChunkOrchestrator_ChunkSize(t *testing.T) {
	o := NewChunkOrchestrator(ChunkOrchestratorConfig{Logger: discardLogger()})
	assert.Equal(t, DefaultChunkSize, o.ChunkSize(Resource{}))
	assert.Equal(t, 3, o.ChunkSize(Resource{ChunkSize: 3}))
	assert.Equal(t, MaxChunkSize, o.ChunkSize(Resource{ChunkSize: 50}))

	big := NewChunkOrchestrator(ChunkOrchestratorConfig{ChunkSize: 25, Logger: discardLogger()})
	assert.Equal(t, MaxChunkSize, big.ChunkSize(Resource{}))
}

func TestResource_Validate(t *testing.T) {
	src := mocks.NewMockItemSource()
	proc := newCountingProcessor()

	assert.NoError(t, Resource{Type: domain.SyncTypeAirlines, Source: src, Processor: proc}.Validate())
	assert.ErrorIs(t, Resource{Type: "ships", Source: src, Processor: proc}.Validate(), domain.ErrUnknownSyncType)
	assert.ErrorIs(t, Resource{Type: domain.SyncTypeAirlines, Processor: proc}.Validate(), domain.ErrInvalidInput)
	assert.ErrorIs(t, Resource{Type: domain.SyncTypeAirlines, Source: src}.Validate(), domain.ErrInvalidInput)
}

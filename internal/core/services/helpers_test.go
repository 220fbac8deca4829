package services

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/petjet/petjet-sync/internal/core/domain"
	"github.com/petjet/petjet-sync/internal/core/ports/driven/mocks"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// recordingSleeper captures requested delays instead of waiting.
type recordingSleeper struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (s *recordingSleeper) sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delays = append(s.delays, d)
	return ctx.Err()
}

func (s *recordingSleeper) recorded() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Duration(nil), s.delays...)
}

func intPtr(n int) *int { return &n }

// testEngine bundles a progress store and orchestrator over in-memory mocks.
type testEngine struct {
	store        *mocks.MockSyncStateStore
	progress     *ProgressStore
	retrier      *Retrier
	orchestrator *ChunkOrchestrator
	sleeper      *recordingSleeper
}

func newTestEngine(chunkSize int) *testEngine {
	logger := discardLogger()
	store := mocks.NewMockSyncStateStore()
	progress := NewProgressStore(ProgressStoreConfig{Store: store, Logger: logger})
	sleeper := &recordingSleeper{}

	noRetries := 0
	retrier := NewRetrier(RetrierConfig{MaxRetries: &noRetries, Logger: logger})
	retrier.sleep = sleeper.sleep

	orch := NewChunkOrchestrator(ChunkOrchestratorConfig{
		Progress:  progress,
		Retrier:   retrier,
		Logger:    logger,
		ChunkSize: chunkSize,
	})
	orch.sleep = sleeper.sleep

	return &testEngine{
		store:        store,
		progress:     progress,
		retrier:      retrier,
		orchestrator: orch,
		sleeper:      sleeper,
	}
}

func (e *testEngine) controller(res Resource) *SyncController {
	c, err := NewSyncController(SyncControllerConfig{
		Resource:     res,
		Orchestrator: e.orchestrator,
		Progress:     e.progress,
		Logger:       discardLogger(),
	})
	if err != nil {
		panic(err)
	}
	return c
}

// countingProcessor fails the listed ids and records every call.
type countingProcessor struct {
	mu    sync.Mutex
	fail  map[string]bool
	calls []string
}

func newCountingProcessor(failIDs ...string) *countingProcessor {
	fail := make(map[string]bool, len(failIDs))
	for _, id := range failIDs {
		fail[id] = true
	}
	return &countingProcessor{fail: fail}
}

func (p *countingProcessor) Process(ctx context.Context, item domain.WorkItem) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, item.ID)
	if p.fail[item.ID] {
		return domain.ErrServiceUnavailable
	}
	return nil
}

func (p *countingProcessor) called() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.calls...)
}

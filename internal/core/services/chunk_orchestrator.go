package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/petjet/petjet-sync/internal/core/domain"
	"github.com/petjet/petjet-sync/internal/core/ports/driven"
)

const (
	// DefaultChunkSize is the number of items processed per invocation.
	DefaultChunkSize = 5
	// MaxChunkSize bounds chunk sizes so one invocation stays well within the wall clock.
	MaxChunkSize = 10
)

// Resource binds a sync type to its source collection and item operation.
// Exactly one of Processor and Batch must be set.
type Resource struct {
	Type   domain.SyncType
	Source driven.ItemSource

	// Processor handles items one at a time.
	Processor driven.ItemProcessor
	// Batch handles the whole chunk in one external call.
	Batch driven.BatchProcessor

	// StalenessWindow skips items updated within the window unless the
	// invocation forces an update. Zero processes every item.
	StalenessWindow time.Duration

	// ChunkSize overrides the orchestrator default for this resource.
	ChunkSize int

	// Limiter spaces individual item calls for rate-limited upstream APIs.
	Limiter *rate.Limiter
}

// Validate checks that the resource is usable.
func (r Resource) Validate() error {
	if !r.Type.Valid() {
		return fmt.Errorf("%w: %q", domain.ErrUnknownSyncType, r.Type)
	}
	if r.Source == nil {
		return fmt.Errorf("%w: resource %s has no source", domain.ErrInvalidInput, r.Type)
	}
	if (r.Processor == nil) == (r.Batch == nil) {
		return fmt.Errorf("%w: resource %s needs exactly one of processor or batch", domain.ErrInvalidInput, r.Type)
	}
	return nil
}

// ChunkOrchestrator runs one bounded chunk of a sync run per invocation.
//
// Each call reads the progress record, selects the next chunk by offset,
// runs every item through the Retrier, commits the outcome in a single
// progress write and reports whether the caller must continue.
type ChunkOrchestrator struct {
	progress   *ProgressStore
	retrier    *Retrier
	logger     *slog.Logger
	chunkSize  int
	chunkDelay time.Duration
	now        func() time.Time
	sleep      func(ctx context.Context, d time.Duration) error
}

// ChunkOrchestratorConfig holds dependencies for ChunkOrchestrator.
type ChunkOrchestratorConfig struct {
	Progress   *ProgressStore
	Retrier    *Retrier
	Logger     *slog.Logger
	ChunkSize  int           // Items per invocation (default: 5, max: 10)
	ChunkDelay time.Duration // Pause after a chunk that needs continuation
}

// NewChunkOrchestrator creates a new chunk orchestrator.
func NewChunkOrchestrator(cfg ChunkOrchestratorConfig) *ChunkOrchestrator {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	retrier := cfg.Retrier
	if retrier == nil {
		retrier = NewRetrier(RetrierConfig{Logger: logger})
	}
	return &ChunkOrchestrator{
		progress:   cfg.Progress,
		retrier:    retrier,
		logger:     logger,
		chunkSize:  clampChunkSize(cfg.ChunkSize),
		chunkDelay: cfg.ChunkDelay,
		now:        time.Now,
		sleep:      sleepContext,
	}
}

func clampChunkSize(n int) int {
	switch {
	case n <= 0:
		return DefaultChunkSize
	case n > MaxChunkSize:
		return MaxChunkSize
	}
	return n
}

// ChunkSize returns the effective chunk size for a resource.
func (o *ChunkOrchestrator) ChunkSize(res Resource) int {
	if res.ChunkSize > 0 {
		return clampChunkSize(res.ChunkSize)
	}
	return o.chunkSize
}

// Run processes the chunk of res starting at req.Offset.
//
// A returned error is chunk-fatal: the progress record is left with
// needs_continuation set so the next invocation retries the same offset.
func (o *ChunkOrchestrator) Run(ctx context.Context, res Resource, req domain.ChunkRequest) (*domain.ChunkResult, error) {
	started := o.now()
	log := o.logger.With("sync_type", res.Type, "offset", req.Offset)

	result := &domain.ChunkResult{SyncType: res.Type, Phase: domain.PhaseIdle}

	state, found, err := o.progress.GetCurrentProgress(ctx, res.Type)
	if err != nil {
		return nil, err
	}

	switch {
	case !found:
		if state, err = o.initialize(ctx, res, true); err != nil {
			return nil, err
		}
		result.Phase = domain.PhaseInitializing
	case !state.NeedsContinuation || state.IsComplete:
		if req.Offset == 0 && req.Mode != domain.ModeResume {
			log.Info("previous run finished, starting new run", "previous_run_id", state.RunID)
			if state, err = o.initialize(ctx, res, false); err != nil {
				return nil, err
			}
			result.Phase = domain.PhaseInitializing
			break
		}
		log.Debug("run already complete, returning terminal response", "run_id", state.RunID)
		return o.terminal(result, state, started), nil
	}
	result.RunID = state.RunID

	limit := o.ChunkSize(res)
	result.Phase = domain.PhaseProcessingChunk
	log.Debug("processing chunk", "run_id", state.RunID, "limit", limit)

	items, err := res.Source.List(ctx, req.Offset, limit)
	if err != nil {
		log.Error("failed to fetch chunk", "error", err)
		o.progress.UpdateProgress(ctx, res.Type, domain.ProgressUpdate{NeedsContinuation: boolPtr(true)})
		return nil, fmt.Errorf("fetch %s chunk at offset %d: %w", res.Type, req.Offset, err)
	}

	if len(items) == 0 {
		final := o.progress.UpdateProgress(ctx, res.Type, domain.ProgressUpdate{
			IsComplete:        boolPtr(true),
			NeedsContinuation: boolPtr(false),
		})
		if final == nil {
			final = state
			final.IsComplete, final.NeedsContinuation = true, false
		}
		log.Info("no items left, run complete", "run_id", state.RunID, "processed", final.Processed, "total", final.Total)
		return o.terminal(result, final, started), nil
	}

	candidates, skipped := o.selectCandidates(res, req, items)
	if len(skipped) > 0 {
		log.Debug("skipping fresh items", "count", len(skipped))
	}

	succeeded, failures := o.process(ctx, res, candidates, log)

	update := domain.ProgressUpdate{
		ProcessedDelta:   len(items),
		LastProcessed:    &items[len(items)-1].ID,
		ProcessedItems:   append(append([]string(nil), skipped...), succeeded...),
		CompleteWhenDone: true,
	}
	if len(failures) > 0 {
		update.ErrorDetails = make(map[string]string, len(failures))
		for _, f := range failures {
			update.ErrorItems = append(update.ErrorItems, f.ID)
			update.ErrorDetails[f.ID] = f.Error
		}
	}

	committed := o.progress.UpdateProgress(ctx, res.Type, update)
	if committed == nil {
		// The write was lost; derive the decision from what this chunk did.
		committed = state.Clone()
		committed.Apply(update, o.now())
	}

	for _, id := range succeeded {
		result.Results = append(result.Results, domain.ItemResult{ID: id, Success: true})
	}
	result.Errors = failures
	result.Skipped = skipped
	result.State = committed
	result.Metrics = chunkMetrics(len(items), len(items)-len(failures), len(skipped), o.now().Sub(started))

	hasMore := committed.Processed < committed.Total
	if !hasMore {
		result.Phase = domain.PhaseComplete
		result.Continuation = domain.Continuation{}
		log.Info("run complete",
			"run_id", committed.RunID,
			"processed", committed.Processed,
			"total", committed.Total,
			"errors", len(committed.ErrorItems),
		)
		return result, nil
	}

	next := req.Offset + len(items)
	result.Phase = domain.PhaseContinuationNeeded
	result.Continuation = domain.Continuation{
		NeedsContinuation: true,
		NextOffset:        &next,
		ResumeToken:       domain.ResumeToken{RunID: committed.RunID, Offset: next}.Encode(),
	}
	log.Info("chunk processed",
		"run_id", committed.RunID,
		"next_offset", next,
		"processed", committed.Processed,
		"total", committed.Total,
		"chunk_errors", len(failures),
	)

	if o.chunkDelay > 0 {
		if err := o.sleep(ctx, o.chunkDelay); err != nil {
			log.Debug("chunk delay interrupted", "error", err)
		}
	}
	return result, nil
}

// initialize counts the source and starts a run.
func (o *ChunkOrchestrator) initialize(ctx context.Context, res Resource, resume bool) (*domain.SyncState, error) {
	total, err := res.Source.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("count %s: %w", res.Type, err)
	}
	return o.progress.Initialize(ctx, res.Type, total, resume)
}

// terminal builds the "nothing more to do" result for a completed run.
func (o *ChunkOrchestrator) terminal(result *domain.ChunkResult, state *domain.SyncState, started time.Time) *domain.ChunkResult {
	result.Phase = domain.PhaseComplete
	result.RunID = state.RunID
	result.State = state
	result.Continuation = domain.Continuation{}
	result.Metrics = chunkMetrics(0, 0, 0, o.now().Sub(started))
	return result
}

// selectCandidates applies the staleness window. Fresh items count as
// successfully processed without running the item operation.
func (o *ChunkOrchestrator) selectCandidates(res Resource, req domain.ChunkRequest, items []domain.WorkItem) (candidates []domain.WorkItem, skipped []string) {
	if res.StalenessWindow <= 0 || req.ForceUpdate {
		return items, nil
	}
	cutoff := o.now().Add(-res.StalenessWindow)
	for _, item := range items {
		if item.IsStale(cutoff) {
			candidates = append(candidates, item)
		} else {
			skipped = append(skipped, item.ID)
		}
	}
	return candidates, skipped
}

// process runs the item operation over candidates, sequentially or as one batch.
// It never aborts early: every candidate ends up succeeded or failed.
func (o *ChunkOrchestrator) process(ctx context.Context, res Resource, candidates []domain.WorkItem, log *slog.Logger) (succeeded []string, failures []domain.ItemError) {
	if len(candidates) == 0 {
		return nil, nil
	}

	if res.Batch != nil {
		err := o.retrier.Do(ctx, func(ctx context.Context) error {
			return res.Batch.ProcessBatch(ctx, candidates)
		})
		var itemErrs domain.ItemErrors
		switch {
		case err == nil:
		case errors.As(err, &itemErrs):
			log.Warn("batch partially failed", "failed", len(itemErrs))
		default:
			log.Warn("batch failed, failing every item in chunk", "items", len(candidates), "error", err)
		}
		for _, item := range candidates {
			switch {
			case err == nil:
				succeeded = append(succeeded, item.ID)
			case itemErrs != nil:
				if itemErr, failed := itemErrs[item.ID]; failed {
					failures = append(failures, domain.ItemError{ID: item.ID, Error: itemErr.Error()})
				} else {
					succeeded = append(succeeded, item.ID)
				}
			default:
				failures = append(failures, domain.ItemError{ID: item.ID, Error: err.Error()})
			}
		}
		return succeeded, failures
	}

	for _, item := range candidates {
		if res.Limiter != nil {
			if err := res.Limiter.Wait(ctx); err != nil {
				failures = append(failures, domain.ItemError{ID: item.ID, Error: err.Error()})
				continue
			}
		}
		err := o.retrier.Do(ctx, func(ctx context.Context) error {
			return res.Processor.Process(ctx, item)
		})
		if err != nil {
			log.Warn("item failed", "item_id", item.ID, "error", err)
			failures = append(failures, domain.ItemError{ID: item.ID, Error: err.Error()})
			continue
		}
		succeeded = append(succeeded, item.ID)
	}
	return succeeded, failures
}

func chunkMetrics(processed, succeeded, skipped int, elapsed time.Duration) domain.ChunkMetrics {
	successRate := 0.0
	if processed > 0 {
		successRate = float64(succeeded) / float64(processed)
	}
	return domain.ChunkMetrics{
		Processed:       processed,
		ExecutionTimeMs: elapsed.Milliseconds(),
		SuccessRate:     successRate,
		Skipped:         skipped,
	}
}

func boolPtr(b bool) *bool { return &b }

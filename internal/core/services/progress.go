package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/petjet/petjet-sync/internal/core/domain"
	"github.com/petjet/petjet-sync/internal/core/ports/driven"
)

// ProgressStore reads and merges the persisted progress record of each sync type.
//
// All mutation goes through UpdateProgress, which merges by set union under the
// store's atomic read-modify-write. Concurrent callers on the same type are
// tolerated rather than excluded.
type ProgressStore struct {
	store  driven.SyncStateStore
	logger *slog.Logger
	now    func() time.Time
	newID  func() string
}

// ProgressStoreConfig holds dependencies for ProgressStore.
type ProgressStoreConfig struct {
	Store  driven.SyncStateStore
	Logger *slog.Logger
	Now    func() time.Time // Optional: clock override for tests
}

// NewProgressStore creates a new progress store service.
func NewProgressStore(cfg ProgressStoreConfig) *ProgressStore {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &ProgressStore{
		store:  cfg.Store,
		logger: logger,
		now:    now,
		newID:  domain.GenerateID,
	}
}

// GetCurrentProgress returns the state for syncType. found is false when no
// record exists; that case is not an error.
func (p *ProgressStore) GetCurrentProgress(ctx context.Context, syncType domain.SyncType) (state *domain.SyncState, found bool, err error) {
	state, err = p.store.Get(ctx, syncType)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get progress %s: %w", syncType, err)
	}
	return state, true, nil
}

// Initialize starts a run for syncType with the given total.
//
// Without resume the record is replaced. With resume an existing record is left
// untouched and returned, so concurrent or repeated initializations are no-ops.
func (p *ProgressStore) Initialize(ctx context.Context, syncType domain.SyncType, total int, resume bool) (*domain.SyncState, error) {
	state := domain.NewSyncState(syncType, p.newID(), total, p.now())

	if resume {
		created, err := p.store.Create(ctx, state)
		if err != nil {
			return nil, fmt.Errorf("initialize progress %s: %w", syncType, err)
		}
		if !created {
			existing, err := p.store.Get(ctx, syncType)
			if err != nil {
				return nil, fmt.Errorf("initialize progress %s: %w", syncType, err)
			}
			p.logger.Debug("progress already initialized", "sync_type", syncType, "run_id", existing.RunID)
			return existing, nil
		}
	} else if err := p.store.Save(ctx, state); err != nil {
		return nil, fmt.Errorf("initialize progress %s: %w", syncType, err)
	}

	p.logger.Info("progress initialized",
		"sync_type", syncType,
		"run_id", state.RunID,
		"total", total,
	)
	return state, nil
}

// UpdateProgress merges update into the stored record and returns the result.
//
// Write failures are logged and swallowed: the chunk's side effects have already
// committed, and the next successful update repairs the tracking metadata.
// In that case the returned state is nil.
func (p *ProgressStore) UpdateProgress(ctx context.Context, syncType domain.SyncType, update domain.ProgressUpdate) *domain.SyncState {
	var outcome domain.MergeOutcome
	state, err := p.store.Update(ctx, syncType, func(s *domain.SyncState) error {
		outcome = s.Apply(update, p.now())
		return nil
	})
	if err != nil {
		p.logger.Error("failed to update progress",
			"sync_type", syncType,
			"error", err,
		)
		return nil
	}

	if outcome.Clamped {
		p.logger.Warn("processed count exceeded total, clamped",
			"sync_type", syncType,
			"requested", outcome.Requested,
			"total", state.Total,
		)
	}
	return state
}

// Cleanup deletes the record for syncType, forcing a clean start next time.
func (p *ProgressStore) Cleanup(ctx context.Context, syncType domain.SyncType) error {
	if err := p.store.Delete(ctx, syncType); err != nil {
		return fmt.Errorf("cleanup progress %s: %w", syncType, err)
	}
	p.logger.Info("progress cleaned up", "sync_type", syncType)
	return nil
}

// List returns every stored progress record.
func (p *ProgressStore) List(ctx context.Context) ([]*domain.SyncState, error) {
	states, err := p.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list progress: %w", err)
	}
	return states, nil
}

package driven

import (
	"context"

	"github.com/petjet/petjet-sync/internal/core/domain"
)

// SyncStateStore persists one progress record per sync type (PostgreSQL or Redis).
//
// Every mutating call results in a single row write so that change-feed
// subscribers observe one consistent record per update.
type SyncStateStore interface {
	// Get retrieves the progress record for a sync type.
	// Returns domain.ErrNotFound when no record exists.
	Get(ctx context.Context, syncType domain.SyncType) (*domain.SyncState, error)

	// Create inserts the record only if none exists for its type.
	// Returns false without error when a record already exists.
	Create(ctx context.Context, state *domain.SyncState) (created bool, err error)

	// Save creates or replaces the record wholesale.
	Save(ctx context.Context, state *domain.SyncState) error

	// Update atomically reads the record, applies fn and writes the result.
	// Concurrent updates on the same type never lose each other's changes.
	// Returns domain.ErrNotFound when no record exists.
	Update(ctx context.Context, syncType domain.SyncType, fn func(state *domain.SyncState) error) (*domain.SyncState, error)

	// Delete removes the record. Deleting a missing record is not an error.
	Delete(ctx context.Context, syncType domain.SyncType) error

	// List retrieves all progress records.
	List(ctx context.Context) ([]*domain.SyncState, error)

	// Ping checks if the backend is healthy.
	Ping(ctx context.Context) error
}

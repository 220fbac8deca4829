package driving

import (
	"context"

	"github.com/petjet/petjet-sync/internal/core/domain"
)

// SyncInvoker runs one chunk invocation of a sync type.
// Implemented in-process by the sync service and remotely by the function client.
type SyncInvoker interface {
	Invoke(ctx context.Context, syncType domain.SyncType, req domain.InvocationRequest) (*domain.InvocationResponse, error)
}

// SyncService is the operator and caller surface of the sync engine
type SyncService interface {
	SyncInvoker

	// InvokeFunction runs one chunk for the sync type registered under a function name
	InvokeFunction(ctx context.Context, function string, req domain.InvocationRequest) (*domain.InvocationResponse, error)

	// GetProgress retrieves the progress record of a sync type
	GetProgress(ctx context.Context, syncType domain.SyncType) (*domain.SyncState, error)

	// ListProgress retrieves every progress record
	ListProgress(ctx context.Context) ([]*domain.SyncState, error)

	// Reset deletes the progress record so the next invocation starts a new run
	Reset(ctx context.Context, syncType domain.SyncType) error

	// Enqueue queues a chunk invocation for the workers
	Enqueue(ctx context.Context, syncType domain.SyncType, req domain.InvocationRequest) (*domain.Task, error)

	// Types lists the registered sync types
	Types() []domain.SyncType
}

// Scheduler manages periodic sync scheduling
type Scheduler interface {
	// Start begins the scheduler loop
	Start(ctx context.Context) error

	// Stop stops the scheduler loop
	Stop()

	// ListSchedules returns every configured schedule
	ListSchedules(ctx context.Context) ([]*domain.ScheduledSync, error)

	// TriggerNow enqueues a scheduled sync immediately
	TriggerNow(ctx context.Context, id string) (*domain.Task, error)
}

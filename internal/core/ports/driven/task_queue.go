package driven

import (
	"context"

	"github.com/petjet/petjet-sync/internal/core/domain"
)

// TaskQueue carries chunk invocations between the scheduler, the API and workers.
// Implementations can use Redis Streams (preferred) or Postgres (fallback).
type TaskQueue interface {
	// Enqueue adds a task to the queue for processing.
	// Tasks with ScheduledFor in the future are held back until due.
	Enqueue(ctx context.Context, task *domain.Task) error

	// DequeueWithTimeout retrieves the next available task, waiting up to timeout seconds.
	// The task is marked as processing and will not be returned to other workers.
	// Returns nil, nil if timeout is reached with no tasks available.
	DequeueWithTimeout(ctx context.Context, timeout int) (*domain.Task, error)

	// Ack acknowledges successful completion of a task.
	Ack(ctx context.Context, taskID string) error

	// Nack indicates task processing failed and should be retried.
	// If max retries are exceeded, the task is moved to failed state.
	Nack(ctx context.Context, taskID string, reason string) error

	// GetTask retrieves a task by ID (for status checking).
	// Returns nil, nil when the task is unknown.
	GetTask(ctx context.Context, taskID string) (*domain.Task, error)

	// Stats returns queue statistics.
	Stats(ctx context.Context) (*QueueStats, error)

	// Ping checks if the queue backend is healthy.
	Ping(ctx context.Context) error

	// Close cleans up resources.
	Close() error
}

// QueueStats contains queue statistics
type QueueStats struct {
	PendingCount    int64 `json:"pending_count"`
	ProcessingCount int64 `json:"processing_count"`
	CompletedCount  int64 `json:"completed_count"`
	FailedCount     int64 `json:"failed_count"`
}

// SchedulerStore persists scheduled sync configuration and run bookkeeping.
type SchedulerStore interface {
	// ListScheduledSyncs retrieves all scheduled syncs
	ListScheduledSyncs(ctx context.Context) ([]*domain.ScheduledSync, error)

	// SaveScheduledSync creates or updates a scheduled sync
	SaveScheduledSync(ctx context.Context, sync *domain.ScheduledSync) error

	// GetDueScheduledSyncs retrieves enabled schedules whose next run has passed
	GetDueScheduledSyncs(ctx context.Context) ([]*domain.ScheduledSync, error)

	// UpdateLastRun records a trigger and advances the next run time
	UpdateLastRun(ctx context.Context, id string, lastError string) error
}

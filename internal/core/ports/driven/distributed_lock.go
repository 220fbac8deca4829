package driven

import (
	"context"
	"time"
)

// DistributedLock coordinates the scheduler across instances so a scheduled
// sync is enqueued once per interval. Progress records are never locked;
// they rely on merge-on-write instead.
type DistributedLock interface {
	// Acquire attempts to acquire a named lock with the given TTL.
	// Returns false if the lock is already held by another instance.
	Acquire(ctx context.Context, name string, ttl time.Duration) (acquired bool, err error)

	// Release releases a named lock.
	// Safe to call even if the lock is not held or has expired.
	Release(ctx context.Context, name string) error

	// Ping checks if the lock backend is healthy.
	Ping(ctx context.Context) error
}

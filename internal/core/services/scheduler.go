package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/petjet/petjet-sync/internal/core/domain"
	"github.com/petjet/petjet-sync/internal/core/ports/driven"
	"github.com/petjet/petjet-sync/internal/core/ports/driving"
)

// Verify interface compliance
var _ driving.Scheduler = (*Scheduler)(nil)

// schedulerLockName is the distributed lock guarding the enqueue cycle.
const schedulerLockName = "sync-scheduler"

// Scheduler enqueues the first chunk of each scheduled sync when it falls due.
// It is the single periodic caller of the engine.
//
// With several instances, configure a DistributedLock so a due sync is
// enqueued once. The lock guards scheduling only; progress records are never
// locked.
type Scheduler struct {
	store     driven.SchedulerStore
	taskQueue driven.TaskQueue
	lock      driven.DistributedLock
	logger    *slog.Logger

	mu       sync.RWMutex
	running  bool
	stopCh   chan struct{}
	doneCh   chan struct{}
	interval time.Duration

	lockTTL      time.Duration
	lockRequired bool
}

// SchedulerConfig holds configuration for the scheduler.
type SchedulerConfig struct {
	Store        driven.SchedulerStore
	TaskQueue    driven.TaskQueue
	Lock         driven.DistributedLock // Optional: distributed lock for multi-instance coordination
	Logger       *slog.Logger
	PollInterval time.Duration // How often to check for due syncs (default: 30s)
	LockTTL      time.Duration // TTL for the distributed lock (default: 2x poll interval)

	// LockOptional runs the cycle anyway when the lock backend errors.
	// A lock held by another instance always skips the cycle.
	LockOptional bool
}

// NewScheduler creates a new scheduler.
func NewScheduler(cfg SchedulerConfig) *Scheduler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	interval := cfg.PollInterval
	if interval == 0 {
		interval = 30 * time.Second
	}

	lockTTL := cfg.LockTTL
	if lockTTL == 0 {
		lockTTL = 2 * interval
	}

	return &Scheduler{
		store:        cfg.Store,
		taskQueue:    cfg.TaskQueue,
		lock:         cfg.Lock,
		logger:       logger,
		interval:     interval,
		lockTTL:      lockTTL,
		lockRequired: cfg.Lock != nil && !cfg.LockOptional,
	}
}

// EnsureSchedules saves every default schedule that is not stored yet.
// Existing schedules keep their interval, enabled flag and next run.
func (s *Scheduler) EnsureSchedules(ctx context.Context, defaults []*domain.ScheduledSync) error {
	existing, err := s.store.ListScheduledSyncs(ctx)
	if err != nil {
		return fmt.Errorf("list scheduled syncs: %w", err)
	}
	known := make(map[string]struct{}, len(existing))
	for _, sched := range existing {
		known[sched.ID] = struct{}{}
	}
	for _, sched := range defaults {
		if _, ok := known[sched.ID]; ok {
			continue
		}
		if err := s.store.SaveScheduledSync(ctx, sched); err != nil {
			return fmt.Errorf("save scheduled sync %s: %w", sched.ID, err)
		}
		s.logger.Info("registered scheduled sync", "scheduled_id", sched.ID, "interval", sched.Interval)
	}
	return nil
}

// Start begins the scheduler loop.
// It runs until Stop is called or context is cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	s.mu.Unlock()

	s.logger.Info("scheduler starting", "poll_interval", s.interval)

	go s.run(ctx)

	return nil
}

// Stop gracefully stops the scheduler.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	close(s.stopCh)
	s.mu.Unlock()

	<-s.doneCh

	s.mu.Lock()
	s.running = false
	s.mu.Unlock()

	s.logger.Info("scheduler stopped")
}

func (s *Scheduler) run(ctx context.Context) {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.checkAndEnqueue(ctx)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler context cancelled")
			return
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.checkAndEnqueue(ctx)
		}
	}
}

// checkAndEnqueue enqueues every due sync while holding the scheduler lock.
func (s *Scheduler) checkAndEnqueue(ctx context.Context) {
	if s.lock != nil {
		acquired, err := s.lock.Acquire(ctx, schedulerLockName, s.lockTTL)
		switch {
		case err != nil:
			s.logger.Warn("failed to acquire scheduler lock", "error", err)
			if s.lockRequired {
				return
			}
		case !acquired:
			s.logger.Debug("scheduler lock held by another instance, skipping cycle")
			return
		default:
			defer func() {
				if err := s.lock.Release(ctx, schedulerLockName); err != nil {
					s.logger.Warn("failed to release scheduler lock", "error", err)
				}
			}()
		}
	}

	due, err := s.store.GetDueScheduledSyncs(ctx)
	if err != nil {
		s.logger.Error("failed to get due scheduled syncs", "error", err)
		return
	}

	for _, scheduled := range due {
		if !scheduled.IsDue() {
			continue
		}

		task := scheduled.Task()
		if err := s.taskQueue.Enqueue(ctx, task); err != nil {
			s.logger.Error("failed to enqueue scheduled sync",
				"scheduled_id", scheduled.ID,
				"error", err,
			)
			_ = s.store.UpdateLastRun(ctx, scheduled.ID, err.Error())
			continue
		}

		s.logger.Info("enqueued scheduled sync",
			"scheduled_id", scheduled.ID,
			"sync_type", scheduled.SyncType,
			"task_id", task.ID,
		)

		if err := s.store.UpdateLastRun(ctx, scheduled.ID, ""); err != nil {
			s.logger.Warn("failed to update scheduled sync last run",
				"scheduled_id", scheduled.ID,
				"error", err,
			)
		}
	}
}

// ListSchedules returns all scheduled syncs.
func (s *Scheduler) ListSchedules(ctx context.Context) ([]*domain.ScheduledSync, error) {
	return s.store.ListScheduledSyncs(ctx)
}

// TriggerNow immediately enqueues a scheduled sync, ignoring its next run time.
func (s *Scheduler) TriggerNow(ctx context.Context, id string) (*domain.Task, error) {
	schedules, err := s.store.ListScheduledSyncs(ctx)
	if err != nil {
		return nil, err
	}
	for _, scheduled := range schedules {
		if scheduled.ID != id {
			continue
		}
		task := scheduled.Task()
		if err := s.taskQueue.Enqueue(ctx, task); err != nil {
			return nil, err
		}
		s.logger.Info("manually triggered scheduled sync",
			"scheduled_id", scheduled.ID,
			"task_id", task.ID,
		)
		return task, nil
	}
	return nil, domain.ErrNotFound
}

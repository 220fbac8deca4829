package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/petjet/petjet-sync/internal/core/domain"
	"github.com/petjet/petjet-sync/internal/core/ports/driven/mocks"
)

func dueSchedule(syncType domain.SyncType) *domain.ScheduledSync {
	s := domain.NewScheduledSync(syncType, time.Hour)
	s.NextRun = time.Now().Add(-time.Minute)
	return s
}

func TestNewScheduler(t *testing.T) {
	s := NewScheduler(SchedulerConfig{
		Store:        mocks.NewMockSchedulerStore(),
		TaskQueue:    mocks.NewMockTaskQueue(),
		PollInterval: time.Minute,
	})

	if s == nil {
		t.Fatal("expected non-nil scheduler")
	}
	if s.interval != time.Minute {
		t.Errorf("expected interval 1m, got %v", s.interval)
	}
	if s.lockTTL != 2*time.Minute {
		t.Errorf("expected lock TTL 2m, got %v", s.lockTTL)
	}
}

func TestNewScheduler_Defaults(t *testing.T) {
	s := NewScheduler(SchedulerConfig{
		Store:     mocks.NewMockSchedulerStore(),
		TaskQueue: mocks.NewMockTaskQueue(),
	})

	if s.interval != 30*time.Second {
		t.Errorf("expected default interval 30s, got %v", s.interval)
	}
	if s.logger == nil {
		t.Error("expected default logger")
	}
	if s.lockRequired {
		t.Error("lock should not be required without a lock")
	}
}

func TestScheduler_StartStop(t *testing.T) {
	s := NewScheduler(SchedulerConfig{
		Store:        mocks.NewMockSchedulerStore(),
		TaskQueue:    mocks.NewMockTaskQueue(),
		PollInterval: 100 * time.Millisecond,
		Logger:       discardLogger(),
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := s.Start(ctx); err != nil {
		t.Fatalf("failed to start scheduler: %v", err)
	}

	s.mu.RLock()
	running := s.running
	s.mu.RUnlock()
	if !running {
		t.Error("expected scheduler to be running")
	}

	// Start again should be no-op
	if err := s.Start(ctx); err != nil {
		t.Errorf("second start should not error: %v", err)
	}

	s.Stop()

	s.mu.RLock()
	running = s.running
	s.mu.RUnlock()
	if running {
		t.Error("expected scheduler to be stopped")
	}

	s.Stop() // Should not panic
}

func TestScheduler_EnqueuesDueSyncs(t *testing.T) {
	ctx := context.Background()
	store := mocks.NewMockSchedulerStore()
	queue := mocks.NewMockTaskQueue()
	_ = store.SaveScheduledSync(ctx, dueSchedule(domain.SyncTypeAirlines))
	_ = store.SaveScheduledSync(ctx, domain.NewScheduledSync(domain.SyncTypeAirports, time.Hour))

	s := NewScheduler(SchedulerConfig{Store: store, TaskQueue: queue, Logger: discardLogger()})
	s.checkAndEnqueue(ctx)

	pending := queue.Pending()
	if len(pending) != 1 {
		t.Fatalf("expected 1 enqueued task, got %d", len(pending))
	}
	task := pending[0]
	if task.Type != domain.TaskTypeSyncChunk {
		t.Errorf("expected sync_chunk task, got %s", task.Type)
	}
	if task.SyncType() != domain.SyncTypeAirlines {
		t.Errorf("expected airlines, got %s", task.SyncType())
	}
	req, err := task.InvocationRequest()
	if err != nil {
		t.Fatalf("invocation request: %v", err)
	}
	if req.Offset == nil || *req.Offset != 0 {
		t.Errorf("expected offset 0, got %v", req.Offset)
	}

	sched := store.Get("sync-airlines")
	if sched.LastRun == nil {
		t.Error("expected last run to be recorded")
	}
	if sched.IsDue() {
		t.Error("schedule should not be due right after running")
	}
}

func TestScheduler_SkipsWhenLockHeld(t *testing.T) {
	ctx := context.Background()
	store := mocks.NewMockSchedulerStore()
	queue := mocks.NewMockTaskQueue()
	lock := mocks.NewMockDistributedLock()
	_ = store.SaveScheduledSync(ctx, dueSchedule(domain.SyncTypeAirlines))
	lock.SetLockHeld(schedulerLockName, time.Minute)

	s := NewScheduler(SchedulerConfig{Store: store, TaskQueue: queue, Lock: lock, Logger: discardLogger()})
	s.checkAndEnqueue(ctx)

	if n := len(queue.Pending()); n != 0 {
		t.Errorf("expected no tasks while lock is held elsewhere, got %d", n)
	}
}

func TestScheduler_ReleasesLock(t *testing.T) {
	ctx := context.Background()
	store := mocks.NewMockSchedulerStore()
	lock := mocks.NewMockDistributedLock()
	_ = store.SaveScheduledSync(ctx, dueSchedule(domain.SyncTypeAirlines))

	s := NewScheduler(SchedulerConfig{Store: store, TaskQueue: mocks.NewMockTaskQueue(), Lock: lock, Logger: discardLogger()})
	s.checkAndEnqueue(ctx)

	if lock.IsHeld(schedulerLockName) {
		t.Error("expected scheduler lock to be released after the cycle")
	}
}

func TestScheduler_LockErrorSkipsCycle(t *testing.T) {
	ctx := context.Background()
	store := mocks.NewMockSchedulerStore()
	queue := mocks.NewMockTaskQueue()
	lock := mocks.NewMockDistributedLock()
	lock.AcquireFn = func(name string, ttl time.Duration) (bool, error) {
		return false, errors.New("redis down")
	}
	_ = store.SaveScheduledSync(ctx, dueSchedule(domain.SyncTypeAirlines))

	s := NewScheduler(SchedulerConfig{Store: store, TaskQueue: queue, Lock: lock, Logger: discardLogger()})
	s.checkAndEnqueue(ctx)

	if n := len(queue.Pending()); n != 0 {
		t.Errorf("expected no tasks when the lock errors, got %d", n)
	}
}

func TestScheduler_EnqueueErrorRecorded(t *testing.T) {
	ctx := context.Background()
	store := mocks.NewMockSchedulerStore()
	queue := mocks.NewMockTaskQueue()
	queue.EnqueueFn = func(task *domain.Task) error { return errors.New("queue full") }
	_ = store.SaveScheduledSync(ctx, dueSchedule(domain.SyncTypePetPolicies))

	s := NewScheduler(SchedulerConfig{Store: store, TaskQueue: queue, Logger: discardLogger()})
	s.checkAndEnqueue(ctx)

	sched := store.Get("sync-petPolicies")
	if sched.LastError != "queue full" {
		t.Errorf("expected last error to be recorded, got %q", sched.LastError)
	}
}

func TestScheduler_EnsureSchedules(t *testing.T) {
	ctx := context.Background()
	store := mocks.NewMockSchedulerStore()
	existing := domain.NewScheduledSync(domain.SyncTypeAirlines, 2*time.Hour)
	existing.Enabled = false
	_ = store.SaveScheduledSync(ctx, existing)

	s := NewScheduler(SchedulerConfig{Store: store, TaskQueue: mocks.NewMockTaskQueue(), Logger: discardLogger()})
	defaults := domain.DefaultSyncSchedules(map[domain.SyncType]time.Duration{
		domain.SyncTypeAirlines:    24 * time.Hour,
		domain.SyncTypePetPolicies: 24 * time.Hour,
	})
	if err := s.EnsureSchedules(ctx, defaults); err != nil {
		t.Fatalf("ensure schedules: %v", err)
	}

	all, _ := s.ListSchedules(ctx)
	if len(all) != 2 {
		t.Fatalf("expected 2 schedules, got %d", len(all))
	}
	airlines := store.Get("sync-airlines")
	if airlines.Enabled || airlines.Interval != 2*time.Hour {
		t.Error("existing schedule should be left untouched")
	}
}

func TestScheduler_TriggerNow(t *testing.T) {
	ctx := context.Background()
	store := mocks.NewMockSchedulerStore()
	queue := mocks.NewMockTaskQueue()
	_ = store.SaveScheduledSync(ctx, domain.NewScheduledSync(domain.SyncTypeAirports, time.Hour))

	s := NewScheduler(SchedulerConfig{Store: store, TaskQueue: queue, Logger: discardLogger()})

	task, err := s.TriggerNow(ctx, "sync-airports")
	if err != nil {
		t.Fatalf("trigger: %v", err)
	}
	if task.SyncType() != domain.SyncTypeAirports {
		t.Errorf("expected airports task, got %s", task.SyncType())
	}

	if _, err := s.TriggerNow(ctx, "sync-ships"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestScheduler_LockOptionalRunsOnLockError(t *testing.T) {
	ctx := context.Background()
	store := mocks.NewMockSchedulerStore()
	queue := mocks.NewMockTaskQueue()
	lock := mocks.NewMockDistributedLock()
	lock.AcquireFn = func(name string, ttl time.Duration) (bool, error) {
		return false, errors.New("redis down")
	}
	_ = store.SaveScheduledSync(ctx, dueSchedule(domain.SyncTypeAirports))

	s := NewScheduler(SchedulerConfig{Store: store, TaskQueue: queue, Lock: lock, LockOptional: true, Logger: discardLogger()})
	s.checkAndEnqueue(ctx)

	if n := len(queue.Pending()); n != 1 {
		t.Errorf("expected the cycle to run without the lock, got %d tasks", n)
	}
}

package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/petjet/petjet-sync/internal/core/domain"
	"github.com/petjet/petjet-sync/internal/core/ports/driven"
	"github.com/petjet/petjet-sync/internal/core/ports/driving"
	"github.com/petjet/petjet-sync/internal/core/services"
)

// Worker processes tasks from the task queue.
// Each sync_chunk task runs one invocation; a continuation is queued as the
// next chunk task so a run advances one chunk per task until it completes.
type Worker struct {
	taskQueue driven.TaskQueue
	invoker   driving.SyncInvoker
	scheduler driving.Scheduler
	retrier   *services.Retrier
	logger    *slog.Logger

	// Configuration
	concurrency    int
	dequeueTimeout int // seconds

	// Internal state
	mu      sync.RWMutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// WorkerConfig holds configuration for the worker.
type WorkerConfig struct {
	TaskQueue      driven.TaskQueue
	Invoker        driving.SyncInvoker
	Scheduler      driving.Scheduler // Optional: started and stopped with the worker
	Retrier        *services.Retrier // Optional: retries queueing a continuation
	Logger         *slog.Logger
	Concurrency    int // Number of concurrent task processors
	DequeueTimeout int // Seconds to wait for a task before checking again
}

// NewWorker creates a new task worker.
func NewWorker(cfg WorkerConfig) *Worker {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}

	dequeueTimeout := cfg.DequeueTimeout
	if dequeueTimeout <= 0 {
		dequeueTimeout = 5
	}

	retrier := cfg.Retrier
	if retrier == nil {
		retrier = services.NewRetrier(services.RetrierConfig{Logger: logger})
	}

	return &Worker{
		taskQueue:      cfg.TaskQueue,
		invoker:        cfg.Invoker,
		scheduler:      cfg.Scheduler,
		retrier:        retrier,
		logger:         logger,
		concurrency:    concurrency,
		dequeueTimeout: dequeueTimeout,
	}
}

// Start begins the worker loop.
// It runs until Stop is called or context is cancelled.
func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.stopCh = make(chan struct{})
	w.doneCh = make(chan struct{})
	w.mu.Unlock()

	w.logger.Info("worker starting",
		"concurrency", w.concurrency,
		"dequeue_timeout", w.dequeueTimeout,
	)

	if w.scheduler != nil {
		if err := w.scheduler.Start(ctx); err != nil {
			w.logger.Error("failed to start scheduler", "error", err)
		}
	}

	var wg sync.WaitGroup
	for i := 0; i < w.concurrency; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			w.processLoop(ctx, workerID)
		}(i)
	}

	go func() {
		wg.Wait()
		close(w.doneCh)
	}()

	return nil
}

// Stop gracefully stops the worker.
func (w *Worker) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	close(w.stopCh)
	w.mu.Unlock()

	if w.scheduler != nil {
		w.scheduler.Stop()
	}

	<-w.doneCh

	w.mu.Lock()
	w.running = false
	w.mu.Unlock()

	w.logger.Info("worker stopped")
}

// Wait blocks until the worker stops.
func (w *Worker) Wait() {
	<-w.doneCh
}

// processLoop is the main processing loop for a worker goroutine.
func (w *Worker) processLoop(ctx context.Context, workerID int) {
	logger := w.logger.With("worker_id", workerID)
	logger.Info("worker goroutine started")

	for {
		select {
		case <-ctx.Done():
			logger.Info("worker context cancelled")
			return
		case <-w.stopCh:
			logger.Info("worker stop signal received")
			return
		default:
		}

		task, err := w.taskQueue.DequeueWithTimeout(ctx, w.dequeueTimeout)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				continue
			}
			logger.Error("failed to dequeue task", "error", err)
			select {
			case <-time.After(time.Second):
			case <-ctx.Done():
			case <-w.stopCh:
			}
			continue
		}

		if task == nil {
			continue
		}

		w.ProcessTask(ctx, task, logger)
	}
}

// ProcessTask runs a single task and settles it on the queue.
//
// Errors that cannot succeed on retry (invalid input, stale resume token,
// missing credentials, permanent errors) are acked and logged so the task is
// not redelivered. Everything else is nacked for a backoff retry.
func (w *Worker) ProcessTask(ctx context.Context, task *domain.Task, logger *slog.Logger) {
	if logger == nil {
		logger = w.logger
	}
	logger = logger.With("task_id", task.ID, "task_type", task.Type, "sync_type", task.SyncType())
	logger.Info("processing task", "attempt", task.Attempts)

	startTime := time.Now()
	var err error

	switch task.Type {
	case domain.TaskTypeSyncChunk:
		err = w.handleSyncChunk(ctx, task, logger)
	default:
		err = domain.Permanent(fmt.Errorf("%w: unknown task type %q", domain.ErrInvalidInput, task.Type))
	}

	duration := time.Since(startTime)

	if err != nil {
		if isTerminal(err) {
			logger.Error("task rejected, not retrying",
				"duration", duration,
				"error", err,
			)
			if ackErr := w.taskQueue.Ack(ctx, task.ID); ackErr != nil {
				logger.Error("failed to ack task", "ack_error", ackErr)
			}
			return
		}

		logger.Error("task failed",
			"duration", duration,
			"error", err,
		)
		if nackErr := w.taskQueue.Nack(ctx, task.ID, err.Error()); nackErr != nil {
			logger.Error("failed to nack task", "nack_error", nackErr)
		}
		return
	}

	logger.Info("task completed", "duration", duration)

	if ackErr := w.taskQueue.Ack(ctx, task.ID); ackErr != nil {
		logger.Error("failed to ack task", "ack_error", ackErr)
	}
}

// handleSyncChunk invokes one chunk and queues the continuation.
func (w *Worker) handleSyncChunk(ctx context.Context, task *domain.Task, logger *slog.Logger) error {
	syncType := task.SyncType()
	if !syncType.Valid() {
		return domain.Permanent(fmt.Errorf("%w: %q", domain.ErrUnknownSyncType, syncType))
	}

	req, err := task.InvocationRequest()
	if err != nil {
		return domain.Permanent(fmt.Errorf("task payload: %w", err))
	}

	resp, err := w.invoker.Invoke(ctx, syncType, req)
	if err != nil {
		// Chunk-fatal: the task is retried at the same offset.
		return err
	}

	if !resp.Progress.NeedsContinuation {
		logger.Info("sync run finished", "chunk_errors", len(resp.Errors))
		return nil
	}
	if err := resp.Progress.Validate(); err != nil {
		return domain.Permanent(err)
	}

	next := domain.NewSyncChunkTask(syncType, domain.InvocationRequest{
		Offset:      resp.Progress.NextOffset,
		ResumeToken: resp.Progress.ResumeToken,
		ForceUpdate: req.ForceUpdate,
	})
	next.Priority = task.Priority

	err = w.retrier.Do(ctx, func(ctx context.Context) error {
		return w.taskQueue.Enqueue(ctx, next)
	})
	if err != nil {
		// The chunk itself was committed; rerunning it would count its items
		// twice. The progress record keeps needs_continuation set.
		logger.Error("failed to queue continuation, run left resumable",
			"next_offset", *resp.Progress.NextOffset,
			"error", err,
		)
		return nil
	}

	logger.Debug("queued continuation", "next_task_id", next.ID, "next_offset", *resp.Progress.NextOffset)
	return nil
}

// isTerminal reports whether retrying the task cannot help.
func isTerminal(err error) bool {
	return domain.IsPermanent(err) ||
		errors.Is(err, domain.ErrInvalidInput) ||
		errors.Is(err, domain.ErrUnknownSyncType) ||
		errors.Is(err, domain.ErrStaleResumeToken) ||
		errors.Is(err, domain.ErrMissingCredentials) ||
		errors.Is(err, domain.ErrContinuationContract)
}

// Health returns health status of the worker.
type Health struct {
	Running     bool   `json:"running"`
	QueueHealth bool   `json:"queue_health"`
	Error       string `json:"error,omitempty"`
}

// Health returns the health status of the worker.
func (w *Worker) Health(ctx context.Context) Health {
	w.mu.RLock()
	running := w.running
	w.mu.RUnlock()

	health := Health{
		Running: running,
	}

	if err := w.taskQueue.Ping(ctx); err != nil {
		health.QueueHealth = false
		health.Error = err.Error()
	} else {
		health.QueueHealth = true
	}

	return health
}

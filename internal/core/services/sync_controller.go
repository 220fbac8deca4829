package services

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/petjet/petjet-sync/internal/core/domain"
	"github.com/petjet/petjet-sync/internal/core/ports/driven"
	"github.com/petjet/petjet-sync/internal/core/ports/driving"
)

// Verify interface compliance
var _ driving.SyncService = (*SyncService)(nil)

// SyncController is the entry point of one resource type. It validates the
// invocation, runs the resource preflight, applies the mode and delegates a
// single chunk to the orchestrator.
type SyncController struct {
	resource     Resource
	orchestrator *ChunkOrchestrator
	progress     *ProgressStore
	preflight    driven.Preflighter
	logger       *slog.Logger
}

// SyncControllerConfig holds dependencies for SyncController.
type SyncControllerConfig struct {
	Resource     Resource
	Orchestrator *ChunkOrchestrator
	Progress     *ProgressStore
	Preflight    driven.Preflighter // Optional: credential checks run before any chunk work
	Logger       *slog.Logger
}

// NewSyncController creates a controller for one resource.
func NewSyncController(cfg SyncControllerConfig) (*SyncController, error) {
	if err := cfg.Resource.Validate(); err != nil {
		return nil, err
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &SyncController{
		resource:     cfg.Resource,
		orchestrator: cfg.Orchestrator,
		progress:     cfg.Progress,
		preflight:    cfg.Preflight,
		logger:       logger.With("sync_type", cfg.Resource.Type),
	}, nil
}

// Type returns the sync type handled by the controller.
func (c *SyncController) Type() domain.SyncType {
	return c.resource.Type
}

// Invoke runs one invocation and returns the continuation envelope.
//
// Errors wrap domain.ErrInvalidInput, domain.ErrStaleResumeToken or
// domain.ErrMissingCredentials before any work is done. A chunk-fatal error
// is returned together with a failure envelope that points the caller back
// at the same offset.
func (c *SyncController) Invoke(ctx context.Context, req domain.InvocationRequest) (*domain.InvocationResponse, error) {
	offset, err := c.resolveOffset(ctx, req)
	if err != nil {
		return nil, err
	}

	if c.preflight != nil {
		if err := c.preflight.Preflight(ctx); err != nil {
			c.logger.Error("preflight failed, sync not started", "error", err)
			return nil, fmt.Errorf("preflight %s: %w", c.resource.Type, err)
		}
	}

	if req.Mode == domain.ModeClear {
		if err := c.progress.Cleanup(ctx, c.resource.Type); err != nil {
			return nil, err
		}
	}

	result, err := c.orchestrator.Run(ctx, c.resource, domain.ChunkRequest{
		SyncType:    c.resource.Type,
		Offset:      offset,
		Mode:        req.Mode,
		ForceUpdate: req.ForceUpdate,
	})
	if err != nil {
		retryAt := offset
		return &domain.InvocationResponse{
			Success: false,
			Error:   err.Error(),
			Progress: domain.Continuation{
				NeedsContinuation: true,
				NextOffset:        &retryAt,
			},
		}, err
	}

	resp := &domain.InvocationResponse{
		Success:  true,
		Results:  result.Results,
		Errors:   result.Errors,
		Progress: result.Continuation,
	}
	metrics := result.Metrics
	resp.ChunkMetrics = &metrics
	if err := resp.Progress.Validate(); err != nil {
		return nil, err
	}
	return resp, nil
}

// resolveOffset validates the request and returns the offset to process.
func (c *SyncController) resolveOffset(ctx context.Context, req domain.InvocationRequest) (int, error) {
	if !req.Mode.Valid() {
		return 0, fmt.Errorf("%w: unsupported mode %q", domain.ErrInvalidInput, req.Mode)
	}
	if req.Offset != nil && *req.Offset < 0 {
		return 0, fmt.Errorf("%w: offset must not be negative", domain.ErrInvalidInput)
	}

	offset := 0
	if req.Offset != nil {
		offset = *req.Offset
	}
	if req.ResumeToken == "" {
		return offset, nil
	}
	if req.Mode == domain.ModeClear {
		return 0, fmt.Errorf("%w: resume token cannot be combined with clear", domain.ErrInvalidInput)
	}

	token, err := domain.ParseResumeToken(req.ResumeToken)
	if err != nil {
		return 0, err
	}
	if req.Offset != nil && *req.Offset != token.Offset {
		return 0, fmt.Errorf("%w: offset %d does not match resume token offset %d", domain.ErrInvalidInput, *req.Offset, token.Offset)
	}
	state, found, err := c.progress.GetCurrentProgress(ctx, c.resource.Type)
	if err != nil {
		return 0, err
	}
	if !found || state.RunID != token.RunID {
		return 0, domain.ErrStaleResumeToken
	}
	return token.Offset, nil
}

// ControllerRegistry resolves controllers by sync type or function name.
type ControllerRegistry struct {
	controllers map[domain.SyncType]*SyncController
}

// NewControllerRegistry creates an empty registry.
func NewControllerRegistry() *ControllerRegistry {
	return &ControllerRegistry{controllers: make(map[domain.SyncType]*SyncController)}
}

// Register adds a controller. Each sync type can be registered once.
func (r *ControllerRegistry) Register(c *SyncController) error {
	if _, exists := r.controllers[c.Type()]; exists {
		return fmt.Errorf("%w: controller for %s", domain.ErrAlreadyExists, c.Type())
	}
	r.controllers[c.Type()] = c
	return nil
}

// Get returns the controller for syncType.
func (r *ControllerRegistry) Get(syncType domain.SyncType) (*SyncController, error) {
	c, ok := r.controllers[syncType]
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownSyncType, syncType)
	}
	return c, nil
}

// ByFunction returns the controller registered under a function name.
func (r *ControllerRegistry) ByFunction(name string) (*SyncController, error) {
	syncType, ok := domain.SyncTypeForFunction(name)
	if !ok {
		return nil, fmt.Errorf("%w: function %q", domain.ErrUnknownSyncType, name)
	}
	return r.Get(syncType)
}

// Types returns the registered sync types in a stable order.
func (r *ControllerRegistry) Types() []domain.SyncType {
	types := make([]domain.SyncType, 0, len(r.controllers))
	for t := range r.controllers {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}

// SyncService implements driving.SyncService over a controller registry.
type SyncService struct {
	registry *ControllerRegistry
	progress *ProgressStore
	queue    driven.TaskQueue
	logger   *slog.Logger
}

// SyncServiceConfig holds dependencies for SyncService.
type SyncServiceConfig struct {
	Registry  *ControllerRegistry
	Progress  *ProgressStore
	TaskQueue driven.TaskQueue // Optional: required for Enqueue
	Logger    *slog.Logger
}

// NewSyncService creates a new sync service.
func NewSyncService(cfg SyncServiceConfig) *SyncService {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &SyncService{
		registry: cfg.Registry,
		progress: cfg.Progress,
		queue:    cfg.TaskQueue,
		logger:   logger,
	}
}

// Invoke runs one chunk for syncType.
func (s *SyncService) Invoke(ctx context.Context, syncType domain.SyncType, req domain.InvocationRequest) (*domain.InvocationResponse, error) {
	c, err := s.registry.Get(syncType)
	if err != nil {
		return nil, err
	}
	return c.Invoke(ctx, req)
}

// InvokeFunction runs one chunk for the sync type behind a function name.
func (s *SyncService) InvokeFunction(ctx context.Context, function string, req domain.InvocationRequest) (*domain.InvocationResponse, error) {
	c, err := s.registry.ByFunction(function)
	if err != nil {
		return nil, err
	}
	return c.Invoke(ctx, req)
}

// GetProgress returns the progress record, or domain.ErrNotFound.
func (s *SyncService) GetProgress(ctx context.Context, syncType domain.SyncType) (*domain.SyncState, error) {
	if _, err := s.registry.Get(syncType); err != nil {
		return nil, err
	}
	state, found, err := s.progress.GetCurrentProgress(ctx, syncType)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, domain.ErrNotFound
	}
	return state, nil
}

// ListProgress returns every progress record.
func (s *SyncService) ListProgress(ctx context.Context) ([]*domain.SyncState, error) {
	return s.progress.List(ctx)
}

// Reset deletes the progress record of syncType.
func (s *SyncService) Reset(ctx context.Context, syncType domain.SyncType) error {
	if _, err := s.registry.Get(syncType); err != nil {
		return err
	}
	return s.progress.Cleanup(ctx, syncType)
}

// Enqueue queues a chunk invocation for the workers.
func (s *SyncService) Enqueue(ctx context.Context, syncType domain.SyncType, req domain.InvocationRequest) (*domain.Task, error) {
	if s.queue == nil {
		return nil, fmt.Errorf("%w: task queue not configured", domain.ErrServiceUnavailable)
	}
	if _, err := s.registry.Get(syncType); err != nil {
		return nil, err
	}
	if !req.Mode.Valid() {
		return nil, fmt.Errorf("%w: unsupported mode %q", domain.ErrInvalidInput, req.Mode)
	}
	task := domain.NewSyncChunkTask(syncType, req)
	if err := s.queue.Enqueue(ctx, task); err != nil {
		return nil, fmt.Errorf("enqueue %s: %w", syncType, err)
	}
	s.logger.Info("sync chunk enqueued", "sync_type", syncType, "task_id", task.ID)
	return task, nil
}

// Types lists the registered sync types.
func (s *SyncService) Types() []domain.SyncType {
	return s.registry.Types()
}

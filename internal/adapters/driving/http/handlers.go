package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sort"
	"time"

	"github.com/petjet/petjet-sync/internal/core/domain"
	"github.com/petjet/petjet-sync/internal/docs"
)

// readyCheckTimeout bounds each dependency ping made by /ready.
const readyCheckTimeout = 2 * time.Second

// maxRequestBody bounds invocation request bodies.
const maxRequestBody = 1 << 20

// ErrorResponse represents an API error response
// @Description API error response
type ErrorResponse struct {
	Error string `json:"error" example:"invalid input: unsupported mode \"restart\""`
}

// StatusResponse represents a simple status response
// @Description Simple status response
type StatusResponse struct {
	Status string `json:"status" example:"ok"`
}

// VersionResponse represents the API version response
// @Description API version response
type VersionResponse struct {
	Version string `json:"version" example:"1.0.0"`
}

// ComponentHealth is the state of one dependency
type ComponentHealth struct {
	Status string `json:"status" example:"healthy"`
	Error  string `json:"error,omitempty"`
}

// ReadyResponse represents the readiness response
// @Description Readiness of the API and its dependencies
type ReadyResponse struct {
	Status     string                     `json:"status" example:"ready"`
	Components map[string]ComponentHealth `json:"components,omitempty"`
}

// SyncTypesResponse lists progress records alongside the registered types
// @Description Registered sync types and their progress records
type SyncTypesResponse struct {
	Types    []domain.SyncType   `json:"types"`
	Progress []*domain.SyncState `json:"progress"`
}

// TaskAcceptedResponse is returned when a chunk task is queued
// @Description A queued chunk task
type TaskAcceptedResponse struct {
	Status   string          `json:"status" example:"accepted"`
	TaskID   string          `json:"task_id"`
	SyncType domain.SyncType `json:"sync_type" example:"airlines"`
}

// Health endpoints

// handleHealth godoc
// @Summary      Health check
// @Description  Returns the health status of the API
// @Tags         Health
// @Produce      json
// @Success      200  {object}  StatusResponse
// @Router       /health [get]
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, StatusResponse{Status: "ok"})
}

// handleReady godoc
// @Summary      Readiness check
// @Description  Pings every configured dependency (database, redis, queue)
// @Tags         Health
// @Produce      json
// @Success      200  {object}  ReadyResponse
// @Failure      503  {object}  ReadyResponse  "A dependency is unreachable"
// @Router       /ready [get]
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	resp := ReadyResponse{Status: "ready"}
	if len(s.checks) > 0 {
		resp.Components = make(map[string]ComponentHealth, len(s.checks))
	}

	names := make([]string, 0, len(s.checks))
	for name := range s.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	status := http.StatusOK
	for _, name := range names {
		ctx, cancel := context.WithTimeout(r.Context(), readyCheckTimeout)
		err := s.checks[name].Ping(ctx)
		cancel()
		if err != nil {
			resp.Components[name] = ComponentHealth{Status: "unhealthy", Error: err.Error()}
			resp.Status = "not ready"
			status = http.StatusServiceUnavailable
			continue
		}
		resp.Components[name] = ComponentHealth{Status: "healthy"}
	}

	writeJSON(w, status, resp)
}

// handleVersion godoc
// @Summary      Get API version
// @Description  Returns the current API version
// @Tags         Health
// @Produce      json
// @Success      200  {object}  VersionResponse
// @Router       /version [get]
func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, VersionResponse{Version: s.version})
}

// handleOpenAPI serves the registered swagger document.
func (s *Server) handleOpenAPI(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, docs.SwaggerInfo.ReadDoc())
}

// Invocation endpoints

// handleInvokeFunction godoc
// @Summary      Invoke a sync function
// @Description  Runs one chunk of the sync type registered under the function name and returns the continuation envelope
// @Tags         Functions
// @Accept       json
// @Produce      json
// @Param        function  path      string                    true   "Function name"  Enums(sync-airlines, sync-airports, analyze-pet-policies, analyze-country-policies)
// @Param        request   body      domain.InvocationRequest  false  "Invocation"
// @Success      200       {object}  domain.InvocationResponse
// @Failure      400       {object}  ErrorResponse  "Invalid request"
// @Failure      404       {object}  ErrorResponse  "Unknown function"
// @Failure      409       {object}  ErrorResponse  "Resume token belongs to another run"
// @Failure      412       {object}  ErrorResponse  "Missing credentials"
// @Failure      500       {object}  domain.InvocationResponse  "Chunk failed, retry at next_offset"
// @Router       /functions/v1/{function} [post]
func (s *Server) handleInvokeFunction(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeInvocation(w, r)
	if !ok {
		return
	}

	resp, err := s.syncService.InvokeFunction(r.Context(), r.PathValue("function"), req)
	s.writeInvocation(w, r, resp, err)
}

// handleInvokeSync godoc
// @Summary      Invoke a sync type
// @Description  Runs one chunk of the sync type and returns the continuation envelope
// @Tags         Sync
// @Accept       json
// @Produce      json
// @Param        type     path      string                    true   "Sync type"  Enums(airlines, airports, petPolicies, countryPolicies)
// @Param        request  body      domain.InvocationRequest  false  "Invocation"
// @Success      200      {object}  domain.InvocationResponse
// @Failure      400      {object}  ErrorResponse  "Invalid request"
// @Failure      404      {object}  ErrorResponse  "Unknown sync type"
// @Failure      409      {object}  ErrorResponse  "Resume token belongs to another run"
// @Failure      412      {object}  ErrorResponse  "Missing credentials"
// @Failure      500      {object}  domain.InvocationResponse  "Chunk failed, retry at next_offset"
// @Router       /api/v1/sync/{type} [post]
func (s *Server) handleInvokeSync(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeInvocation(w, r)
	if !ok {
		return
	}

	syncType := domain.SyncType(r.PathValue("type"))
	resp, err := s.syncService.Invoke(r.Context(), syncType, req)
	s.writeInvocation(w, r, resp, err)
}

// writeInvocation writes an invocation result. A chunk-fatal error carries a
// failure envelope and is written as 500 with that envelope as the body.
func (s *Server) writeInvocation(w http.ResponseWriter, r *http.Request, resp *domain.InvocationResponse, err error) {
	if err != nil {
		if resp != nil {
			s.logger.Warn("chunk failed",
				"path", r.URL.Path,
				"error", err,
				"request_id", RequestIDFromContext(r.Context()),
			)
			writeJSON(w, http.StatusInternalServerError, resp)
			return
		}
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// Progress endpoints

// handleListProgress godoc
// @Summary      List sync progress
// @Description  Returns the registered sync types and every stored progress record
// @Tags         Sync
// @Produce      json
// @Success      200  {object}  SyncTypesResponse
// @Failure      500  {object}  ErrorResponse  "Internal server error"
// @Router       /api/v1/sync [get]
func (s *Server) handleListProgress(w http.ResponseWriter, r *http.Request) {
	states, err := s.syncService.ListProgress(r.Context())
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	if states == nil {
		states = []*domain.SyncState{}
	}

	writeJSON(w, http.StatusOK, SyncTypesResponse{
		Types:    s.syncService.Types(),
		Progress: states,
	})
}

// handleGetProgress godoc
// @Summary      Get sync progress
// @Description  Returns the progress record of a sync type
// @Tags         Sync
// @Produce      json
// @Param        type  path      string  true  "Sync type"
// @Success      200   {object}  domain.SyncState
// @Failure      404   {object}  ErrorResponse  "Unknown sync type or no progress"
// @Router       /api/v1/sync/{type} [get]
func (s *Server) handleGetProgress(w http.ResponseWriter, r *http.Request) {
	state, err := s.syncService.GetProgress(r.Context(), domain.SyncType(r.PathValue("type")))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

// handleResetSync godoc
// @Summary      Reset sync progress
// @Description  Deletes the progress record so the next invocation starts a new run
// @Tags         Sync
// @Produce      json
// @Param        type  path      string  true  "Sync type"
// @Success      200   {object}  StatusResponse
// @Failure      404   {object}  ErrorResponse  "Unknown sync type"
// @Router       /api/v1/sync/{type} [delete]
func (s *Server) handleResetSync(w http.ResponseWriter, r *http.Request) {
	syncType := domain.SyncType(r.PathValue("type"))
	if err := s.syncService.Reset(r.Context(), syncType); err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, StatusResponse{Status: "reset"})
}

// handleEnqueueSync godoc
// @Summary      Enqueue a sync chunk
// @Description  Queues a chunk invocation for the workers; workers follow continuations until the run completes
// @Tags         Sync
// @Accept       json
// @Produce      json
// @Param        type     path      string                    true   "Sync type"
// @Param        request  body      domain.InvocationRequest  false  "Invocation"
// @Success      202      {object}  TaskAcceptedResponse
// @Failure      400      {object}  ErrorResponse  "Invalid request"
// @Failure      404      {object}  ErrorResponse  "Unknown sync type"
// @Failure      503      {object}  ErrorResponse  "Task queue not configured"
// @Router       /api/v1/sync/{type}/enqueue [post]
func (s *Server) handleEnqueueSync(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeInvocation(w, r)
	if !ok {
		return
	}

	syncType := domain.SyncType(r.PathValue("type"))
	task, err := s.syncService.Enqueue(r.Context(), syncType, req)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusAccepted, TaskAcceptedResponse{
		Status:   "accepted",
		TaskID:   task.ID,
		SyncType: syncType,
	})
}

// Schedule endpoints

// handleListSchedules godoc
// @Summary      List schedules
// @Description  Returns every scheduled sync
// @Tags         Schedules
// @Produce      json
// @Success      200  {array}   domain.ScheduledSync
// @Failure      503  {object}  ErrorResponse  "Scheduler not configured"
// @Router       /api/v1/schedules [get]
func (s *Server) handleListSchedules(w http.ResponseWriter, r *http.Request) {
	if s.scheduler == nil {
		writeError(w, http.StatusServiceUnavailable, "scheduler not configured")
		return
	}

	schedules, err := s.scheduler.ListSchedules(r.Context())
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	if schedules == nil {
		schedules = []*domain.ScheduledSync{}
	}
	writeJSON(w, http.StatusOK, schedules)
}

// handleTriggerSchedule godoc
// @Summary      Trigger a schedule
// @Description  Enqueues the first chunk of a scheduled sync now, ignoring its next run time
// @Tags         Schedules
// @Produce      json
// @Param        id   path      string  true  "Schedule ID"  example(sync-airlines)
// @Success      202  {object}  TaskAcceptedResponse
// @Failure      404  {object}  ErrorResponse  "Schedule not found"
// @Failure      503  {object}  ErrorResponse  "Scheduler not configured"
// @Router       /api/v1/schedules/{id}/trigger [post]
func (s *Server) handleTriggerSchedule(w http.ResponseWriter, r *http.Request) {
	if s.scheduler == nil {
		writeError(w, http.StatusServiceUnavailable, "scheduler not configured")
		return
	}

	task, err := s.scheduler.TriggerNow(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusAccepted, TaskAcceptedResponse{
		Status:   "accepted",
		TaskID:   task.ID,
		SyncType: task.SyncType(),
	})
}

// Helpers

// decodeInvocation reads an optional JSON invocation body. An empty body is
// a default invocation.
func decodeInvocation(w http.ResponseWriter, r *http.Request) (domain.InvocationRequest, bool) {
	var req domain.InvocationRequest
	if r.Body == nil {
		return req, true
	}

	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	if err := dec.Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return req, false
	}
	return req, true
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidInput),
		errors.Is(err, domain.ErrContinuationContract):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrUnknownSyncType),
		errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrStaleResumeToken),
		errors.Is(err, domain.ErrAlreadyExists):
		return http.StatusConflict
	case errors.Is(err, domain.ErrMissingCredentials):
		return http.StatusPreconditionFailed
	case errors.Is(err, domain.ErrServiceUnavailable),
		errors.Is(err, domain.ErrRateLimited):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"error", err,
			"request_id", RequestIDFromContext(r.Context()),
		)
		writeError(w, status, "internal server error")
		return
	}
	writeError(w, status, err.Error())
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}

package domain

import (
	"strconv"
	"time"

	"github.com/google/uuid"
)

// GenerateID creates a unique random ID.
func GenerateID() string {
	return uuid.NewString()
}

// TaskType identifies the type of background task
type TaskType string

const (
	// TaskTypeSyncChunk runs one chunk invocation for a sync type
	TaskTypeSyncChunk TaskType = "sync_chunk"
)

// TaskStatus represents the current state of a task
type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusProcessing TaskStatus = "processing"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusFailed     TaskStatus = "failed"
)

// Payload keys for sync_chunk tasks.
const (
	PayloadSyncType    = "sync_type"
	PayloadOffset      = "offset"
	PayloadMode        = "mode"
	PayloadForceUpdate = "force_update"
	PayloadResumeToken = "resume_token"
)

// Task represents a background job to be processed by workers
type Task struct {
	ID   string   `json:"id"`
	Type TaskType `json:"type"`

	// Payload contains task-specific data.
	// For sync_chunk: {"sync_type": "airlines", "offset": "15", "mode": "", "force_update": "false"}
	Payload map[string]string `json:"payload"`

	Status TaskStatus `json:"status"`

	// Priority determines processing order (higher = more urgent)
	Priority int `json:"priority"`

	Attempts    int    `json:"attempts"`
	MaxAttempts int    `json:"max_attempts"`
	Error       string `json:"error,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// ScheduledFor is when the task should be processed (for delayed tasks)
	ScheduledFor time.Time `json:"scheduled_for"`
}

// NewTask creates a new task with default values
func NewTask(taskType TaskType, payload map[string]string) *Task {
	now := time.Now()
	return &Task{
		ID:           GenerateID(),
		Type:         taskType,
		Payload:      payload,
		Status:       TaskStatusPending,
		MaxAttempts:  3,
		CreatedAt:    now,
		UpdatedAt:    now,
		ScheduledFor: now,
	}
}

// NewSyncChunkTask creates a task that invokes one chunk of a sync run.
func NewSyncChunkTask(syncType SyncType, req InvocationRequest) *Task {
	payload := map[string]string{
		PayloadSyncType:    string(syncType),
		PayloadMode:        string(req.Mode),
		PayloadForceUpdate: strconv.FormatBool(req.ForceUpdate),
	}
	if req.Offset != nil {
		payload[PayloadOffset] = strconv.Itoa(*req.Offset)
	}
	if req.ResumeToken != "" {
		payload[PayloadResumeToken] = req.ResumeToken
	}
	return NewTask(TaskTypeSyncChunk, payload)
}

// SyncType extracts the sync type from the payload
func (t *Task) SyncType() SyncType {
	if t.Payload == nil {
		return ""
	}
	return SyncType(t.Payload[PayloadSyncType])
}

// InvocationRequest rebuilds the invocation request carried by a sync_chunk task.
func (t *Task) InvocationRequest() (InvocationRequest, error) {
	var req InvocationRequest
	if t.Payload == nil {
		return req, nil
	}
	req.Mode = InvocationMode(t.Payload[PayloadMode])
	req.ResumeToken = t.Payload[PayloadResumeToken]
	if raw := t.Payload[PayloadOffset]; raw != "" {
		offset, err := strconv.Atoi(raw)
		if err != nil {
			return req, ErrInvalidInput
		}
		req.Offset = &offset
	}
	if raw := t.Payload[PayloadForceUpdate]; raw != "" {
		force, err := strconv.ParseBool(raw)
		if err != nil {
			return req, ErrInvalidInput
		}
		req.ForceUpdate = force
	}
	return req, nil
}

// CanRetry returns true if the task can be retried
func (t *Task) CanRetry() bool {
	return t.Attempts < t.MaxAttempts
}

// IsReady returns true if the task is ready to be processed
func (t *Task) IsReady() bool {
	return t.Status == TaskStatusPending && !time.Now().Before(t.ScheduledFor)
}

// MarkProcessing updates the task to processing state
func (t *Task) MarkProcessing() {
	now := time.Now()
	t.Status = TaskStatusProcessing
	t.StartedAt = &now
	t.UpdatedAt = now
	t.Attempts++
}

// MarkCompleted updates the task to completed state
func (t *Task) MarkCompleted() {
	now := time.Now()
	t.Status = TaskStatusCompleted
	t.CompletedAt = &now
	t.UpdatedAt = now
	t.Error = ""
}

// MarkFailed updates the task to failed state
func (t *Task) MarkFailed(err string) {
	t.Status = TaskStatusFailed
	t.UpdatedAt = time.Now()
	t.Error = err
}

// Retry resets the task for retry with exponential backoff
func (t *Task) Retry(err string) {
	now := time.Now()
	t.Status = TaskStatusPending
	t.UpdatedAt = now
	t.Error = err

	// Exponential backoff: 1s, 2s, 4s, 8s, etc.
	backoff := time.Duration(1<<t.Attempts) * time.Second
	if backoff > 5*time.Minute {
		backoff = 5 * time.Minute
	}
	t.ScheduledFor = now.Add(backoff)
}

// ScheduledSync is a recurring sync run for one sync type.
type ScheduledSync struct {
	ID          string        `json:"id"`
	SyncType    SyncType      `json:"sync_type"`
	Interval    time.Duration `json:"interval"`
	ForceUpdate bool          `json:"force_update"`
	Enabled     bool          `json:"enabled"`
	LastRun     *time.Time    `json:"last_run,omitempty"`
	NextRun     time.Time     `json:"next_run"`
	LastError   string        `json:"last_error,omitempty"`
}

// NewScheduledSync creates a new scheduled sync whose first run is one interval away.
func NewScheduledSync(syncType SyncType, interval time.Duration) *ScheduledSync {
	return &ScheduledSync{
		ID:       "sync-" + string(syncType),
		SyncType: syncType,
		Interval: interval,
		Enabled:  true,
		NextRun:  time.Now().Add(interval),
	}
}

// IsDue returns true if the scheduled sync should be triggered
func (s *ScheduledSync) IsDue() bool {
	return s.Enabled && !time.Now().Before(s.NextRun)
}

// UpdateNextRun calculates the next run time after execution
func (s *ScheduledSync) UpdateNextRun() {
	now := time.Now()
	s.LastRun = &now
	s.NextRun = now.Add(s.Interval)
}

// Task creates the first chunk task of a scheduled run.
func (s *ScheduledSync) Task() *Task {
	offset := 0
	return NewSyncChunkTask(s.SyncType, InvocationRequest{
		Offset:      &offset,
		ForceUpdate: s.ForceUpdate,
	})
}

// DefaultSyncSchedules returns one schedule per sync type with a non-zero interval.
func DefaultSyncSchedules(intervals map[SyncType]time.Duration) []*ScheduledSync {
	var out []*ScheduledSync
	for _, t := range SyncTypes() {
		if iv := intervals[t]; iv > 0 {
			out = append(out, NewScheduledSync(t, iv))
		}
	}
	return out
}

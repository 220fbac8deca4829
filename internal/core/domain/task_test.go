package domain

import (
	"testing"
	"time"
)

func TestGenerateID(t *testing.T) {
	id1 := GenerateID()
	id2 := GenerateID()

	if id1 == "" || id2 == "" {
		t.Fatal("expected non-empty IDs")
	}
	if id1 == id2 {
		t.Error("expected unique IDs")
	}
	if len(id1) != 36 {
		t.Errorf("expected UUID length 36, got %d", len(id1))
	}
}

func TestNewTask(t *testing.T) {
	task := NewTask(TaskTypeSyncChunk, map[string]string{"key": "value"})

	if task.ID == "" {
		t.Error("expected non-empty ID")
	}
	if task.Type != TaskTypeSyncChunk {
		t.Errorf("expected type %s, got %s", TaskTypeSyncChunk, task.Type)
	}
	if task.Payload["key"] != "value" {
		t.Error("expected payload to be set")
	}
	if task.Status != TaskStatusPending {
		t.Errorf("expected status %s, got %s", TaskStatusPending, task.Status)
	}
	if task.MaxAttempts != 3 {
		t.Errorf("expected max attempts 3, got %d", task.MaxAttempts)
	}
	if !task.IsReady() {
		t.Error("expected new task to be ready")
	}
}

func TestNewSyncChunkTask_RoundTrip(t *testing.T) {
	offset := 15
	req := InvocationRequest{
		Mode:        ModeResume,
		Offset:      &offset,
		ResumeToken: ResumeToken{RunID: "run-1", Offset: 15}.Encode(),
		ForceUpdate: true,
	}

	task := NewSyncChunkTask(SyncTypeAirports, req)

	if task.SyncType() != SyncTypeAirports {
		t.Errorf("expected sync type %s, got %s", SyncTypeAirports, task.SyncType())
	}
	got, err := task.InvocationRequest()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Mode != ModeResume || !got.ForceUpdate || got.ResumeToken != req.ResumeToken {
		t.Errorf("unexpected request: %+v", got)
	}
	if got.Offset == nil || *got.Offset != 15 {
		t.Errorf("expected offset 15, got %v", got.Offset)
	}
}

func TestNewSyncChunkTask_NoOffset(t *testing.T) {
	task := NewSyncChunkTask(SyncTypeAirlines, InvocationRequest{})

	if _, ok := task.Payload[PayloadOffset]; ok {
		t.Error("expected no offset in payload")
	}
	got, err := task.InvocationRequest()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Offset != nil {
		t.Errorf("expected nil offset, got %d", *got.Offset)
	}
}

func TestTask_InvocationRequest_Invalid(t *testing.T) {
	tests := []map[string]string{
		{PayloadOffset: "abc"},
		{PayloadForceUpdate: "maybe"},
	}
	for _, payload := range tests {
		task := NewTask(TaskTypeSyncChunk, payload)
		if _, err := task.InvocationRequest(); err != ErrInvalidInput {
			t.Errorf("payload %v: expected ErrInvalidInput, got %v", payload, err)
		}
	}
}

func TestTask_SyncType_NilPayload(t *testing.T) {
	task := &Task{}
	if task.SyncType() != "" {
		t.Errorf("expected empty sync type, got %s", task.SyncType())
	}
}

func TestTask_CanRetry(t *testing.T) {
	tests := []struct {
		attempts int
		max      int
		want     bool
	}{
		{0, 3, true},
		{2, 3, true},
		{3, 3, false},
	}
	for _, tt := range tests {
		task := &Task{Attempts: tt.attempts, MaxAttempts: tt.max}
		if got := task.CanRetry(); got != tt.want {
			t.Errorf("attempts=%d max=%d: expected %v, got %v", tt.attempts, tt.max, tt.want, got)
		}
	}
}

func TestTask_Lifecycle(t *testing.T) {
	task := NewTask(TaskTypeSyncChunk, nil)

	task.MarkProcessing()
	if task.Status != TaskStatusProcessing || task.Attempts != 1 || task.StartedAt == nil {
		t.Errorf("unexpected processing state: %+v", task)
	}

	task.MarkFailed("boom")
	if task.Status != TaskStatusFailed || task.Error != "boom" {
		t.Errorf("unexpected failed state: %+v", task)
	}

	task.MarkCompleted()
	if task.Status != TaskStatusCompleted || task.Error != "" || task.CompletedAt == nil {
		t.Errorf("unexpected completed state: %+v", task)
	}
}

func TestTask_Retry_ExponentialBackoff(t *testing.T) {
	tests := []struct {
		attempts        int
		expectedBackoff time.Duration
	}{
		{0, 1 * time.Second},
		{1, 2 * time.Second},
		{3, 8 * time.Second},
		{10, 5 * time.Minute},
	}

	for _, tt := range tests {
		task := NewTask(TaskTypeSyncChunk, nil)
		task.Attempts = tt.attempts
		before := time.Now()

		task.Retry("error")

		if task.Status != TaskStatusPending {
			t.Errorf("attempts=%d: expected pending, got %s", tt.attempts, task.Status)
		}
		expectedMin := before.Add(tt.expectedBackoff)
		expectedMax := before.Add(tt.expectedBackoff + time.Second)
		if task.ScheduledFor.Before(expectedMin) || task.ScheduledFor.After(expectedMax) {
			t.Errorf("attempts=%d: expected ScheduledFor between %v and %v, got %v",
				tt.attempts, expectedMin, expectedMax, task.ScheduledFor)
		}
		if task.IsReady() {
			t.Errorf("attempts=%d: expected retried task to wait", tt.attempts)
		}
	}
}

func TestScheduledSync_IsDue(t *testing.T) {
	sched := NewScheduledSync(SyncTypeAirlines, time.Hour)
	if sched.ID != "sync-airlines" {
		t.Errorf("expected id sync-airlines, got %s", sched.ID)
	}
	if sched.IsDue() {
		t.Error("expected new schedule not to be due")
	}

	sched.NextRun = time.Now().Add(-time.Minute)
	if !sched.IsDue() {
		t.Error("expected past next run to be due")
	}

	sched.Enabled = false
	if sched.IsDue() {
		t.Error("expected disabled schedule not to be due")
	}
}

func TestScheduledSync_UpdateNextRun(t *testing.T) {
	sched := NewScheduledSync(SyncTypeAirports, 2*time.Hour)
	before := time.Now()

	sched.UpdateNextRun()

	if sched.LastRun == nil || sched.LastRun.Before(before) {
		t.Error("expected LastRun to be set")
	}
	if got := sched.NextRun.Sub(*sched.LastRun); got != 2*time.Hour {
		t.Errorf("expected next run one interval later, got %v", got)
	}
}

func TestScheduledSync_Task(t *testing.T) {
	sched := NewScheduledSync(SyncTypePetPolicies, time.Hour)
	sched.ForceUpdate = true

	task := sched.Task()
	req, err := task.InvocationRequest()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if task.SyncType() != SyncTypePetPolicies {
		t.Errorf("expected %s, got %s", SyncTypePetPolicies, task.SyncType())
	}
	if req.Offset == nil || *req.Offset != 0 {
		t.Error("expected scheduled runs to start at offset 0")
	}
	if !req.ForceUpdate {
		t.Error("expected force update to carry over")
	}
}

func TestDefaultSyncSchedules(t *testing.T) {
	got := DefaultSyncSchedules(map[SyncType]time.Duration{
		SyncTypeCountryPolicies: 24 * time.Hour,
		SyncTypeAirlines:        time.Hour,
		SyncTypeAirports:        0,
	})

	if len(got) != 2 {
		t.Fatalf("expected 2 schedules, got %d", len(got))
	}
	if got[0].SyncType != SyncTypeAirlines || got[1].SyncType != SyncTypeCountryPolicies {
		t.Errorf("expected schedules in sync type order, got %s, %s", got[0].SyncType, got[1].SyncType)
	}
}

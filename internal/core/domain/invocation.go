package domain

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
)

// InvocationMode selects how an invocation treats existing progress.
type InvocationMode string

const (
	// ModeDefault continues an in-flight run or starts a new one at offset 0.
	ModeDefault InvocationMode = ""
	// ModeClear discards existing progress before processing.
	ModeClear InvocationMode = "clear"
	// ModeResume never starts a new run; a completed run returns its terminal response.
	ModeResume InvocationMode = "resume"
)

// Valid reports whether m is a supported mode.
func (m InvocationMode) Valid() bool {
	switch m {
	case ModeDefault, ModeClear, ModeResume:
		return true
	}
	return false
}

// InvocationRequest is the body of a sync function invocation.
type InvocationRequest struct {
	Mode        InvocationMode `json:"mode,omitempty" example:"resume"`
	Offset      *int           `json:"offset,omitempty" example:"0"`
	ResumeToken string         `json:"resumeToken,omitempty"`
	ForceUpdate bool           `json:"forceUpdate,omitempty"`
}

// InvocationResponse is the continuation envelope returned by every invocation.
type InvocationResponse struct {
	Success      bool          `json:"success"`
	Results      []ItemResult  `json:"results,omitempty"`
	Errors       []ItemError   `json:"errors,omitempty"`
	Progress     Continuation  `json:"progress"`
	ChunkMetrics *ChunkMetrics `json:"chunk_metrics,omitempty"`
	Error        string        `json:"error,omitempty"`
}

// ItemResult reports a successfully processed item.
type ItemResult struct {
	ID      string `json:"id"`
	Success bool   `json:"success"`
}

// ItemError reports an item that failed after exhausting retries.
type ItemError struct {
	ID    string `json:"id"`
	Error string `json:"error"`
}

// Continuation tells the caller whether and where to re-invoke.
type Continuation struct {
	NeedsContinuation bool   `json:"needs_continuation"`
	NextOffset        *int   `json:"next_offset"`
	ResumeToken       string `json:"resume_token,omitempty"`
}

// ChunkMetrics are per-invocation statistics.
type ChunkMetrics struct {
	Processed       int     `json:"processed"`
	ExecutionTimeMs int64   `json:"execution_time_ms"`
	SuccessRate     float64 `json:"success_rate"`
	Skipped         int     `json:"skipped,omitempty"`
}

// Validate checks the internal consistency of a continuation.
func (c Continuation) Validate() error {
	if c.NeedsContinuation && c.NextOffset == nil {
		return ErrContinuationContract
	}
	return nil
}

// Phase is the orchestrator state reached by an invocation.
type Phase string

const (
	PhaseIdle               Phase = "idle"
	PhaseInitializing       Phase = "initializing"
	PhaseProcessingChunk    Phase = "processing_chunk"
	PhaseContinuationNeeded Phase = "continuation_needed"
	PhaseComplete           Phase = "complete"
)

// ChunkRequest is the orchestrator input for one invocation.
type ChunkRequest struct {
	SyncType    SyncType
	Offset      int
	Mode        InvocationMode
	ForceUpdate bool
}

// ChunkResult is the orchestrator output for one invocation.
type ChunkResult struct {
	SyncType     SyncType
	RunID        string
	Phase        Phase
	Results      []ItemResult
	Errors       []ItemError
	Skipped      []string
	Continuation Continuation
	Metrics      ChunkMetrics
	State        *SyncState
}

// ResumeToken identifies a position within a specific run.
type ResumeToken struct {
	RunID  string
	Offset int
}

// Encode returns the opaque token string.
func (t ResumeToken) Encode() string {
	raw := t.RunID + ":" + strconv.Itoa(t.Offset)
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

// ParseResumeToken decodes a token produced by ResumeToken.Encode.
func ParseResumeToken(s string) (ResumeToken, error) {
	raw, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return ResumeToken{}, fmt.Errorf("%w: malformed resume token", ErrInvalidInput)
	}
	idx := strings.LastIndex(string(raw), ":")
	if idx <= 0 {
		return ResumeToken{}, fmt.Errorf("%w: malformed resume token", ErrInvalidInput)
	}
	offset, err := strconv.Atoi(string(raw[idx+1:]))
	if err != nil || offset < 0 {
		return ResumeToken{}, fmt.Errorf("%w: invalid resume token offset", ErrInvalidInput)
	}
	return ResumeToken{RunID: string(raw[:idx]), Offset: offset}, nil
}

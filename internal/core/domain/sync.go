package domain

import (
	"sort"
	"time"
)

// SyncType identifies the logical resource being synchronized.
type SyncType string

const (
	SyncTypeAirlines        SyncType = "airlines"
	SyncTypeAirports        SyncType = "airports"
	SyncTypePetPolicies     SyncType = "petPolicies"
	SyncTypeCountryPolicies SyncType = "countryPolicies"
)

// SyncTypes returns every sync type known to the engine, in a stable order.
func SyncTypes() []SyncType {
	return []SyncType{
		SyncTypeAirlines,
		SyncTypeAirports,
		SyncTypePetPolicies,
		SyncTypeCountryPolicies,
	}
}

// Valid reports whether t is a known sync type.
func (t SyncType) Valid() bool {
	for _, known := range SyncTypes() {
		if t == known {
			return true
		}
	}
	return false
}

// FunctionName returns the name the sync type is invoked under as a function.
func (t SyncType) FunctionName() string {
	switch t {
	case SyncTypeAirlines:
		return "sync-airlines"
	case SyncTypeAirports:
		return "sync-airports"
	case SyncTypePetPolicies:
		return "analyze-pet-policies"
	case SyncTypeCountryPolicies:
		return "analyze-country-policies"
	}
	return ""
}

// SyncTypeForFunction resolves a function name to its sync type.
func SyncTypeForFunction(name string) (SyncType, bool) {
	for _, t := range SyncTypes() {
		if t.FunctionName() == name {
			return t, true
		}
	}
	return "", false
}

// SyncState is the persisted progress record for one sync type.
// It is the single source of truth for a run's status.
type SyncState struct {
	Type              SyncType          `json:"type"`
	RunID             string            `json:"run_id"`
	Total             int               `json:"total"`
	Processed         int               `json:"processed"`
	LastProcessed     *string           `json:"last_processed"`
	ProcessedItems    []string          `json:"processed_items"`
	ErrorItems        []string          `json:"error_items"`
	ErrorDetails      map[string]string `json:"error_details,omitempty"`
	StartTime         *time.Time        `json:"start_time"`
	IsComplete        bool              `json:"is_complete"`
	NeedsContinuation bool              `json:"needs_continuation"`
	BatchMetrics      *BatchMetrics     `json:"batch_metrics,omitempty"`
	UpdatedAt         time.Time         `json:"updated_at"`
}

// BatchMetrics holds informational run statistics. Never used for control decisions.
type BatchMetrics struct {
	AvgTimePerItem         float64 `json:"avg_time_per_item"`        // milliseconds
	EstimatedTimeRemaining float64 `json:"estimated_time_remaining"` // milliseconds
	SuccessRate            float64 `json:"success_rate"`             // 0..1
}

// NewSyncState creates a fresh progress record for the start of a run.
func NewSyncState(syncType SyncType, runID string, total int, now time.Time) *SyncState {
	if total < 0 {
		total = 0
	}
	start := now
	return &SyncState{
		Type:              syncType,
		RunID:             runID,
		Total:             total,
		ProcessedItems:    []string{},
		ErrorItems:        []string{},
		ErrorDetails:      map[string]string{},
		StartTime:         &start,
		NeedsContinuation: true,
		UpdatedAt:         now,
	}
}

// Remaining returns how many items are still expected in this run.
func (s *SyncState) Remaining() int {
	if s.Processed >= s.Total {
		return 0
	}
	return s.Total - s.Processed
}

// HasError reports whether id is currently recorded as failed.
func (s *SyncState) HasError(id string) bool {
	for _, e := range s.ErrorItems {
		if e == id {
			return true
		}
	}
	return false
}

// Clone returns a deep copy of the state.
func (s *SyncState) Clone() *SyncState {
	if s == nil {
		return nil
	}
	c := *s
	c.ProcessedItems = append([]string(nil), s.ProcessedItems...)
	c.ErrorItems = append([]string(nil), s.ErrorItems...)
	if s.ErrorDetails != nil {
		c.ErrorDetails = make(map[string]string, len(s.ErrorDetails))
		for k, v := range s.ErrorDetails {
			c.ErrorDetails[k] = v
		}
	}
	if s.LastProcessed != nil {
		lp := *s.LastProcessed
		c.LastProcessed = &lp
	}
	if s.StartTime != nil {
		st := *s.StartTime
		c.StartTime = &st
	}
	if s.BatchMetrics != nil {
		bm := *s.BatchMetrics
		c.BatchMetrics = &bm
	}
	return &c
}

// ProgressUpdate is a partial update merged into a stored SyncState.
// Nil pointer fields leave the stored value untouched.
type ProgressUpdate struct {
	// Total is accepted for wire compatibility but always ignored: the stored total is authoritative.
	Total *int `json:"total,omitempty"`

	// ProcessedDelta is added to the stored processed count.
	ProcessedDelta int `json:"processed_delta,omitempty"`

	// Processed sets an absolute processed count. It can raise but never lower the stored count.
	Processed *int `json:"processed,omitempty"`

	LastProcessed     *string           `json:"last_processed,omitempty"`
	ProcessedItems    []string          `json:"processed_items,omitempty"`
	ErrorItems        []string          `json:"error_items,omitempty"`
	ErrorDetails      map[string]string `json:"error_details,omitempty"`
	IsComplete        *bool             `json:"is_complete,omitempty"`
	NeedsContinuation *bool             `json:"needs_continuation,omitempty"`

	// CompleteWhenDone marks the run complete if processed reaches total after
	// the merge, and keeps it open otherwise. Decided inside the same write.
	CompleteWhenDone bool `json:"complete_when_done,omitempty"`
}

// MergeOutcome describes side effects of applying a ProgressUpdate.
type MergeOutcome struct {
	// Clamped is set when the requested processed count exceeded total.
	Clamped bool
	// Requested is the processed count before clamping.
	Requested int
}

// Apply merges u into s in place.
//
// Item sets are merged by union, a success removes the id from the error set,
// processed is clamped to [0, total] and never decreases, and is_complete
// forces needs_continuation off.
func (s *SyncState) Apply(u ProgressUpdate, now time.Time) MergeOutcome {
	var out MergeOutcome

	requested := s.Processed + u.ProcessedDelta
	if u.Processed != nil && *u.Processed > requested {
		requested = *u.Processed
	}
	out.Requested = requested
	switch {
	case requested > s.Total:
		out.Clamped = true
		requested = s.Total
	case requested < 0:
		requested = 0
	}
	if requested > s.Processed {
		s.Processed = requested
	}

	if u.LastProcessed != nil {
		lp := *u.LastProcessed
		s.LastProcessed = &lp
	}

	s.ProcessedItems = UnionIDs(s.ProcessedItems, u.ProcessedItems)
	s.ErrorItems = UnionIDs(s.ErrorItems, u.ErrorItems)
	if len(u.ErrorDetails) > 0 && s.ErrorDetails == nil {
		s.ErrorDetails = make(map[string]string, len(u.ErrorDetails))
	}
	for id, msg := range u.ErrorDetails {
		s.ErrorDetails[id] = msg
	}

	// Success is authoritative.
	if len(s.ErrorItems) > 0 && len(s.ProcessedItems) > 0 {
		succeeded := make(map[string]struct{}, len(s.ProcessedItems))
		for _, id := range s.ProcessedItems {
			succeeded[id] = struct{}{}
		}
		kept := s.ErrorItems[:0]
		for _, id := range s.ErrorItems {
			if _, ok := succeeded[id]; ok {
				delete(s.ErrorDetails, id)
				continue
			}
			kept = append(kept, id)
		}
		s.ErrorItems = kept
	}

	if u.NeedsContinuation != nil {
		s.NeedsContinuation = *u.NeedsContinuation
	}
	if u.IsComplete != nil {
		s.IsComplete = *u.IsComplete
	}
	if u.CompleteWhenDone {
		s.IsComplete = s.Processed >= s.Total
		s.NeedsContinuation = !s.IsComplete
	}
	if s.IsComplete {
		s.NeedsContinuation = false
	}

	s.BatchMetrics = ComputeBatchMetrics(s, now)
	s.UpdatedAt = now
	return out
}

// UnionIDs returns the sorted, deduplicated union of a and b.
func UnionIDs(a, b []string) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, list := range [][]string{a, b} {
		for _, id := range list {
			if id == "" {
				continue
			}
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

// ComputeBatchMetrics derives run statistics from the state.
// Returns nil when nothing has been processed yet.
func ComputeBatchMetrics(s *SyncState, now time.Time) *BatchMetrics {
	if s.Processed == 0 || s.StartTime == nil {
		return nil
	}
	elapsed := float64(now.Sub(*s.StartTime).Milliseconds())
	if elapsed < 0 {
		elapsed = 0
	}
	avg := elapsed / float64(s.Processed)

	attempted := len(s.ProcessedItems) + len(s.ErrorItems)
	rate := 0.0
	if attempted > 0 {
		rate = float64(len(s.ProcessedItems)) / float64(attempted)
	}

	return &BatchMetrics{
		AvgTimePerItem:         avg,
		EstimatedTimeRemaining: avg * float64(s.Remaining()),
		SuccessRate:            rate,
	}
}

package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/petjet/petjet-sync/internal/core/domain"
	"github.com/petjet/petjet-sync/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.SyncStateStore = (*SyncStateStore)(nil)

// SyncStateStore implements driven.SyncStateStore using the sync_progress table.
// Item sets, error details and metrics live in JSONB columns.
type SyncStateStore struct {
	db *DB
}

// NewSyncStateStore creates a new SyncStateStore
func NewSyncStateStore(db *DB) *SyncStateStore {
	return &SyncStateStore{db: db}
}

const progressColumns = `type, run_id, total, processed, last_processed, processed_items, error_items,
	error_details, start_time, is_complete, needs_continuation, batch_metrics, updated_at`

// rowScanner is satisfied by *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...any) error
}

func scanProgress(row rowScanner) (*domain.SyncState, error) {
	var state domain.SyncState
	var lastProcessed sql.NullString
	var startTime sql.NullTime
	var processedJSON, errorJSON, detailsJSON, metricsJSON []byte

	err := row.Scan(
		&state.Type,
		&state.RunID,
		&state.Total,
		&state.Processed,
		&lastProcessed,
		&processedJSON,
		&errorJSON,
		&detailsJSON,
		&startTime,
		&state.IsComplete,
		&state.NeedsContinuation,
		&metricsJSON,
		&state.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	state.LastProcessed = StringPtr(lastProcessed)
	state.StartTime = TimePtr(startTime)

	if err := json.Unmarshal(processedJSON, &state.ProcessedItems); err != nil {
		return nil, fmt.Errorf("decode processed_items: %w", err)
	}
	if err := json.Unmarshal(errorJSON, &state.ErrorItems); err != nil {
		return nil, fmt.Errorf("decode error_items: %w", err)
	}
	if len(detailsJSON) > 0 {
		if err := json.Unmarshal(detailsJSON, &state.ErrorDetails); err != nil {
			return nil, fmt.Errorf("decode error_details: %w", err)
		}
	}
	if len(metricsJSON) > 0 && string(metricsJSON) != "null" {
		state.BatchMetrics = &domain.BatchMetrics{}
		if err := json.Unmarshal(metricsJSON, state.BatchMetrics); err != nil {
			return nil, fmt.Errorf("decode batch_metrics: %w", err)
		}
	}
	if state.ProcessedItems == nil {
		state.ProcessedItems = []string{}
	}
	if state.ErrorItems == nil {
		state.ErrorItems = []string{}
	}

	return &state, nil
}

// progressArgs returns the column values of state in progressColumns order.
func progressArgs(state *domain.SyncState) ([]any, error) {
	processed, err := json.Marshal(nonNil(state.ProcessedItems))
	if err != nil {
		return nil, err
	}
	errorItems, err := json.Marshal(nonNil(state.ErrorItems))
	if err != nil {
		return nil, err
	}
	details := state.ErrorDetails
	if details == nil {
		details = map[string]string{}
	}
	detailsJSON, err := json.Marshal(details)
	if err != nil {
		return nil, err
	}
	var metrics sql.NullString
	if state.BatchMetrics != nil {
		raw, err := json.Marshal(state.BatchMetrics)
		if err != nil {
			return nil, err
		}
		metrics = sql.NullString{String: string(raw), Valid: true}
	}

	return []any{
		string(state.Type),
		state.RunID,
		state.Total,
		state.Processed,
		NullString(state.LastProcessed),
		string(processed),
		string(errorItems),
		string(detailsJSON),
		NullTime(state.StartTime),
		state.IsComplete,
		state.NeedsContinuation,
		metrics,
		state.UpdatedAt,
	}, nil
}

func nonNil(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}

// Get retrieves the progress record for a sync type
func (s *SyncStateStore) Get(ctx context.Context, syncType domain.SyncType) (*domain.SyncState, error) {
	query := `SELECT ` + progressColumns + ` FROM sync_progress WHERE type = $1`

	state, err := scanProgress(s.db.QueryRowContext(ctx, query, string(syncType)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return state, nil
}

// Create inserts the record unless one already exists for its type
func (s *SyncStateStore) Create(ctx context.Context, state *domain.SyncState) (bool, error) {
	args, err := progressArgs(state)
	if err != nil {
		return false, err
	}

	query := `
		INSERT INTO sync_progress (` + progressColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (type) DO NOTHING
	`
	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows == 1, nil
}

// Save creates or replaces the record
func (s *SyncStateStore) Save(ctx context.Context, state *domain.SyncState) error {
	args, err := progressArgs(state)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO sync_progress (` + progressColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (type) DO UPDATE SET
			run_id = EXCLUDED.run_id,
			total = EXCLUDED.total,
			processed = EXCLUDED.processed,
			last_processed = EXCLUDED.last_processed,
			processed_items = EXCLUDED.processed_items,
			error_items = EXCLUDED.error_items,
			error_details = EXCLUDED.error_details,
			start_time = EXCLUDED.start_time,
			is_complete = EXCLUDED.is_complete,
			needs_continuation = EXCLUDED.needs_continuation,
			batch_metrics = EXCLUDED.batch_metrics,
			updated_at = EXCLUDED.updated_at
	`
	_, err = s.db.ExecContext(ctx, query, args...)
	return err
}

// Update locks the row, applies fn and writes the result in one transaction.
// Concurrent updates on the same type serialize on the row lock.
func (s *SyncStateStore) Update(ctx context.Context, syncType domain.SyncType, fn func(*domain.SyncState) error) (*domain.SyncState, error) {
	var updated *domain.SyncState

	err := s.db.Transaction(ctx, func(tx *sql.Tx) error {
		query := `SELECT ` + progressColumns + ` FROM sync_progress WHERE type = $1 FOR UPDATE`
		state, err := scanProgress(tx.QueryRowContext(ctx, query, string(syncType)))
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrNotFound
		}
		if err != nil {
			return err
		}

		if err := fn(state); err != nil {
			return err
		}

		args, err := progressArgs(state)
		if err != nil {
			return err
		}
		update := `
			UPDATE sync_progress SET
				run_id = $2,
				total = $3,
				processed = $4,
				last_processed = $5,
				processed_items = $6,
				error_items = $7,
				error_details = $8,
				start_time = $9,
				is_complete = $10,
				needs_continuation = $11,
				batch_metrics = $12,
				updated_at = $13
			WHERE type = $1
		`
		if _, err := tx.ExecContext(ctx, update, args...); err != nil {
			return err
		}
		updated = state
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Delete removes the record for a sync type
func (s *SyncStateStore) Delete(ctx context.Context, syncType domain.SyncType) error {
	query := `DELETE FROM sync_progress WHERE type = $1`
	_, err := s.db.ExecContext(ctx, query, string(syncType))
	return err
}

// List retrieves all progress records
func (s *SyncStateStore) List(ctx context.Context) ([]*domain.SyncState, error) {
	query := `SELECT ` + progressColumns + ` FROM sync_progress ORDER BY type`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var states []*domain.SyncState
	for rows.Next() {
		state, err := scanProgress(rows)
		if err != nil {
			return nil, err
		}
		states = append(states, state)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return states, nil
}

// Ping checks if the database is reachable
func (s *SyncStateStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/petjet/petjet-sync/internal/core/domain"
	"github.com/petjet/petjet-sync/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.SchedulerStore = (*SchedulerStore)(nil)

const scheduledSyncColumns = `id, sync_type, interval_ns, force_update, enabled, next_run, last_run, last_error`

// SchedulerStore implements driven.SchedulerStore using PostgreSQL
type SchedulerStore struct {
	db *DB
}

// NewSchedulerStore creates a new SchedulerStore
func NewSchedulerStore(db *DB) *SchedulerStore {
	return &SchedulerStore{db: db}
}

// ListScheduledSyncs retrieves all scheduled syncs
func (s *SchedulerStore) ListScheduledSyncs(ctx context.Context) ([]*domain.ScheduledSync, error) {
	query := `SELECT ` + scheduledSyncColumns + ` FROM scheduled_syncs ORDER BY id`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanScheduledSyncs(rows)
}

// SaveScheduledSync creates or updates a scheduled sync.
// An existing row keeps its run bookkeeping.
func (s *SchedulerStore) SaveScheduledSync(ctx context.Context, sync *domain.ScheduledSync) error {
	query := `
		INSERT INTO scheduled_syncs (` + scheduledSyncColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			sync_type = EXCLUDED.sync_type,
			interval_ns = EXCLUDED.interval_ns,
			force_update = EXCLUDED.force_update,
			enabled = EXCLUDED.enabled
	`

	_, err := s.db.ExecContext(ctx, query,
		sync.ID,
		string(sync.SyncType),
		int64(sync.Interval),
		sync.ForceUpdate,
		sync.Enabled,
		sync.NextRun,
		NullTime(sync.LastRun),
		nullIfEmpty(sync.LastError),
	)
	return err
}

// GetDueScheduledSyncs retrieves enabled schedules whose next run has passed
func (s *SchedulerStore) GetDueScheduledSyncs(ctx context.Context) ([]*domain.ScheduledSync, error) {
	query := `
		SELECT ` + scheduledSyncColumns + `
		FROM scheduled_syncs
		WHERE enabled = true AND next_run <= $1
		ORDER BY next_run ASC
	`

	rows, err := s.db.QueryContext(ctx, query, time.Now())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanScheduledSyncs(rows)
}

// UpdateLastRun records a trigger and advances the next run by one interval
func (s *SchedulerStore) UpdateLastRun(ctx context.Context, id string, lastError string) error {
	query := `
		UPDATE scheduled_syncs
		SET last_run = $1,
			next_run = $1 + (interval_ns / 1000) * INTERVAL '1 microsecond',
			last_error = $2
		WHERE id = $3
	`

	result, err := s.db.ExecContext(ctx, query, time.Now(), nullIfEmpty(lastError), id)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// GetScheduledSync retrieves one scheduled sync by ID
func (s *SchedulerStore) GetScheduledSync(ctx context.Context, id string) (*domain.ScheduledSync, error) {
	query := `SELECT ` + scheduledSyncColumns + ` FROM scheduled_syncs WHERE id = $1`

	sync, err := scanScheduledSync(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return sync, err
}

func scanScheduledSyncs(rows *sql.Rows) ([]*domain.ScheduledSync, error) {
	var syncs []*domain.ScheduledSync
	for rows.Next() {
		sync, err := scanScheduledSync(rows)
		if err != nil {
			return nil, err
		}
		syncs = append(syncs, sync)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return syncs, nil
}

func scanScheduledSync(row rowScanner) (*domain.ScheduledSync, error) {
	var sync domain.ScheduledSync
	var syncType string
	var intervalNs int64
	var lastRun sql.NullTime
	var lastError sql.NullString

	err := row.Scan(
		&sync.ID,
		&syncType,
		&intervalNs,
		&sync.ForceUpdate,
		&sync.Enabled,
		&sync.NextRun,
		&lastRun,
		&lastError,
	)
	if err != nil {
		return nil, err
	}

	sync.SyncType = domain.SyncType(syncType)
	sync.Interval = time.Duration(intervalNs)
	sync.LastRun = TimePtr(lastRun)
	sync.LastError = lastError.String
	return &sync, nil
}

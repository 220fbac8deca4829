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
var (
	_ driven.ItemSource = (*TableSource)(nil)
	_ driven.RecordSink = (*RecordStore)(nil)
)

// SourceQueries are the two statements behind a TableSource.
// List takes $1 = limit and $2 = offset and selects
// (id, name, last_updated, attributes JSONB) ordered by name then id.
type SourceQueries struct {
	Count string
	List  string
}

// SourceQueriesFor returns the queries of a built-in sync type.
func SourceQueriesFor(syncType domain.SyncType) (SourceQueries, bool) {
	q, ok := sourceQueries[syncType]
	return q, ok
}

var sourceQueries = map[domain.SyncType]SourceQueries{
	domain.SyncTypeAirlines: {
		Count: `SELECT COUNT(*) FROM airlines WHERE active`,
		List: `
			SELECT a.id, a.name, r.updated_at,
				jsonb_build_object('iata_code', a.iata_code, 'website', COALESCE(a.website, ''))
			FROM airlines a
			LEFT JOIN synced_records r ON r.kind = 'airline' AND r.key = a.id
			WHERE a.active
			ORDER BY a.name, a.id
			LIMIT $1 OFFSET $2
		`,
	},
	domain.SyncTypeAirports: {
		Count: `SELECT COUNT(*) FROM airports`,
		List: `
			SELECT a.id, a.name, r.updated_at,
				jsonb_build_object('iata_code', a.iata_code, 'city', COALESCE(a.city, ''), 'country', COALESCE(a.country, ''))
			FROM airports a
			LEFT JOIN synced_records r ON r.kind = 'airport' AND r.key = a.id
			ORDER BY a.name, a.id
			LIMIT $1 OFFSET $2
		`,
	},
	domain.SyncTypePetPolicies: {
		Count: `SELECT COUNT(*) FROM airlines WHERE active`,
		List: `
			SELECT a.id, a.name, GREATEST(r.updated_at, r.verified_at),
				jsonb_build_object('iata_code', a.iata_code, 'website', COALESCE(a.website, ''))
			FROM airlines a
			LEFT JOIN synced_records r ON r.kind = 'pet_policy' AND r.key = a.id
			WHERE a.active
			ORDER BY a.name, a.id
			LIMIT $1 OFFSET $2
		`,
	},
	domain.SyncTypeCountryPolicies: {
		Count: `SELECT COUNT(*) FROM countries`,
		List: `
			SELECT c.code, c.name, GREATEST(r.updated_at, r.verified_at), '{}'::jsonb
			FROM countries c
			LEFT JOIN synced_records r ON r.kind = 'country_policy' AND r.key = c.code
			ORDER BY c.name, c.code
			LIMIT $1 OFFSET $2
		`,
	},
}

// TableSource implements driven.ItemSource over a SQL query pair
type TableSource struct {
	db      *DB
	queries SourceQueries
}

// NewTableSource creates a source from explicit queries
func NewTableSource(db *DB, queries SourceQueries) *TableSource {
	return &TableSource{db: db, queries: queries}
}

// NewSources returns a source for every built-in sync type
func NewSources(db *DB) map[domain.SyncType]driven.ItemSource {
	out := make(map[domain.SyncType]driven.ItemSource, len(sourceQueries))
	for t, q := range sourceQueries {
		out[t] = NewTableSource(db, q)
	}
	return out
}

// Count returns the number of items in the collection
func (s *TableSource) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, s.queries.Count).Scan(&n); err != nil {
		return 0, fmt.Errorf("count items: %w", err)
	}
	return n, nil
}

// List returns up to limit items starting at offset
func (s *TableSource) List(ctx context.Context, offset, limit int) ([]domain.WorkItem, error) {
	rows, err := s.db.QueryContext(ctx, s.queries.List, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	defer rows.Close()

	var items []domain.WorkItem
	for rows.Next() {
		var item domain.WorkItem
		var lastUpdated sql.NullTime
		var attrs []byte
		if err := rows.Scan(&item.ID, &item.Name, &lastUpdated, &attrs); err != nil {
			return nil, err
		}
		item.LastUpdated = TimePtr(lastUpdated)
		if len(attrs) > 0 {
			if err := json.Unmarshal(attrs, &item.Attributes); err != nil {
				return nil, fmt.Errorf("decode attributes of %s: %w", item.ID, err)
			}
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

// RecordStore implements driven.RecordSink using the synced_records table
type RecordStore struct {
	db *DB
}

// NewRecordStore creates a new RecordStore
func NewRecordStore(db *DB) *RecordStore {
	return &RecordStore{db: db}
}

// Load retrieves a stored record
func (s *RecordStore) Load(ctx context.Context, kind domain.RecordKind, key string) (*domain.Record, error) {
	query := `SELECT fields, signature, updated_at FROM synced_records WHERE kind = $1 AND key = $2`

	rec := domain.Record{Kind: kind, Key: key}
	var fields []byte
	err := s.db.QueryRowContext(ctx, query, string(kind), key).Scan(&fields, &rec.Signature, &rec.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(fields, &rec.Fields); err != nil {
		return nil, fmt.Errorf("decode %s/%s: %w", kind, key, err)
	}
	return &rec, nil
}

// Write upserts a record and stamps both timestamps
func (s *RecordStore) Write(ctx context.Context, record domain.Record) error {
	fields, err := json.Marshal(record.Fields)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO synced_records (kind, key, fields, signature, updated_at, verified_at)
		VALUES ($1, $2, $3, $4, NOW(), NOW())
		ON CONFLICT (kind, key) DO UPDATE SET
			fields = EXCLUDED.fields,
			signature = EXCLUDED.signature,
			updated_at = EXCLUDED.updated_at,
			verified_at = EXCLUDED.verified_at
	`
	_, err = s.db.ExecContext(ctx, query, string(record.Kind), record.Key, string(fields), record.Signature)
	return err
}

// Touch records that the stored content was re-verified without changing it
func (s *RecordStore) Touch(ctx context.Context, kind domain.RecordKind, key string) error {
	query := `UPDATE synced_records SET verified_at = NOW() WHERE kind = $1 AND key = $2`
	result, err := s.db.ExecContext(ctx, query, string(kind), key)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return domain.ErrNotFound
	}
	return nil
}

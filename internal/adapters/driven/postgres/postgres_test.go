package postgres

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/petjet/petjet-sync/internal/core/domain"
)

func TestHashLockName_Stable(t *testing.T) {
	assert.Equal(t, hashLockName("sync-scheduler"), hashLockName("sync-scheduler"))
	assert.NotEqual(t, hashLockName("sync-scheduler"), hashLockName("other"))
}

func TestSourceQueriesFor_EverySyncType(t *testing.T) {
	for _, st := range domain.SyncTypes() {
		q, ok := SourceQueriesFor(st)
		require.True(t, ok, "missing queries for %s", st)
		assert.NotEmpty(t, q.Count)
		assert.Contains(t, q.List, "LIMIT $1 OFFSET $2")
		assert.Contains(t, q.List, "ORDER BY")
	}

	_, ok := SourceQueriesFor("unknown")
	assert.False(t, ok)
}

func TestSourceQueries_PolicyStalenessUsesVerification(t *testing.T) {
	for _, st := range []domain.SyncType{domain.SyncTypePetPolicies, domain.SyncTypeCountryPolicies} {
		q, _ := SourceQueriesFor(st)
		assert.True(t, strings.Contains(q.List, "verified_at"), "%s should read verified_at", st)
	}
}

func TestNullIfEmpty(t *testing.T) {
	assert.False(t, nullIfEmpty("").Valid)
	ns := nullIfEmpty("boom")
	assert.True(t, ns.Valid)
	assert.Equal(t, "boom", ns.String)
}

func TestSchema_DeclaresTables(t *testing.T) {
	for _, table := range []string{"sync_progress", "synced_records", "tasks", "scheduled_syncs", "airlines", "airports", "countries"} {
		assert.Contains(t, schema, "CREATE TABLE IF NOT EXISTS "+table)
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		code pq.ErrorCode
		want error
	}{
		{"unique violation", "23505", domain.ErrAlreadyExists},
		{"serialization failure", "40001", domain.ErrServiceUnavailable},
		{"deadlock", "40P01", domain.ErrServiceUnavailable},
		{"connection failure", "08006", domain.ErrServiceUnavailable},
		{"too many connections", "53300", domain.ErrServiceUnavailable},
		{"shutting down", "57P01", domain.ErrServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := classify(fmt.Errorf("exec: %w", &pq.Error{Code: tt.code, Message: "boom"}))
			assert.ErrorIs(t, err, tt.want)
		})
	}

	plain := errors.New("syntax error")
	assert.Equal(t, plain, classify(plain))
	assert.NoError(t, classify(nil))

	syntax := &pq.Error{Code: "42601"}
	assert.Equal(t, error(syntax), classify(syntax))
}

func TestIsConflict(t *testing.T) {
	assert.True(t, isConflict(&pq.Error{Code: "40001"}))
	assert.True(t, isConflict(fmt.Errorf("update: %w", &pq.Error{Code: "40P01"})))
	assert.False(t, isConflict(&pq.Error{Code: "23505"}))
	assert.False(t, isConflict(errors.New("other")))
	assert.False(t, isConflict(nil))
}

func TestConnect_RequiresURL(t *testing.T) {
	_, err := Connect(t.Context(), Config{})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

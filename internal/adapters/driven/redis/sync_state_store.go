package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/redis/go-redis/v9"

	"github.com/petjet/petjet-sync/internal/core/domain"
	"github.com/petjet/petjet-sync/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.SyncStateStore = (*SyncStateStore)(nil)

const (
	progressKeyPrefix = "petjet:progress:"
	progressIndexKey  = "petjet:progress-types"

	// maxUpdateAttempts bounds optimistic retries when concurrent writers
	// keep invalidating the WATCH.
	maxUpdateAttempts = 10
)

// SyncStateStore implements driven.SyncStateStore using Redis.
// Each progress record is one JSON value; Update uses WATCH/MULTI so
// concurrent merges never lose each other's changes.
type SyncStateStore struct {
	client *redis.Client
}

// NewSyncStateStore creates a new Redis-backed progress store.
func NewSyncStateStore(client *redis.Client) *SyncStateStore {
	return &SyncStateStore{client: client}
}

func progressKey(syncType domain.SyncType) string {
	return progressKeyPrefix + string(syncType)
}

// Get retrieves the progress record for a sync type.
func (s *SyncStateStore) Get(ctx context.Context, syncType domain.SyncType) (*domain.SyncState, error) {
	data, err := s.client.Get(ctx, progressKey(syncType)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get progress %s: %w", syncType, err)
	}
	return decodeState(data)
}

// Create inserts the record only if none exists for its type.
func (s *SyncStateStore) Create(ctx context.Context, state *domain.SyncState) (bool, error) {
	data, err := json.Marshal(state)
	if err != nil {
		return false, err
	}
	created, err := s.client.SetNX(ctx, progressKey(state.Type), data, 0).Result()
	if err != nil {
		return false, fmt.Errorf("create progress %s: %w", state.Type, err)
	}
	if created {
		s.client.SAdd(ctx, progressIndexKey, string(state.Type))
	}
	return created, nil
}

// Save creates or replaces the record wholesale.
func (s *SyncStateStore) Save(ctx context.Context, state *domain.SyncState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return err
	}
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, progressKey(state.Type), data, 0)
	pipe.SAdd(ctx, progressIndexKey, string(state.Type))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("save progress %s: %w", state.Type, err)
	}
	return nil
}

// Update atomically reads the record, applies fn and writes the result.
func (s *SyncStateStore) Update(ctx context.Context, syncType domain.SyncType, fn func(state *domain.SyncState) error) (*domain.SyncState, error) {
	key := progressKey(syncType)
	var result *domain.SyncState

	txf := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return domain.ErrNotFound
		}
		if err != nil {
			return err
		}

		state, err := decodeState(data)
		if err != nil {
			return err
		}
		if err := fn(state); err != nil {
			return err
		}
		out, err := json.Marshal(state)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, out, 0)
			return nil
		})
		if err == nil {
			result = state
		}
		return err
	}

	for attempt := 0; attempt < maxUpdateAttempts; attempt++ {
		err := s.client.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil, err
			}
			return nil, fmt.Errorf("update progress %s: %w", syncType, err)
		}
		return result, nil
	}
	return nil, fmt.Errorf("update progress %s: too much contention", syncType)
}

// Delete removes the record. Deleting a missing record is not an error.
func (s *SyncStateStore) Delete(ctx context.Context, syncType domain.SyncType) error {
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, progressKey(syncType))
	pipe.SRem(ctx, progressIndexKey, string(syncType))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("delete progress %s: %w", syncType, err)
	}
	return nil
}

// List retrieves all progress records ordered by type.
func (s *SyncStateStore) List(ctx context.Context) ([]*domain.SyncState, error) {
	types, err := s.client.SMembers(ctx, progressIndexKey).Result()
	if err != nil {
		return nil, fmt.Errorf("list progress: %w", err)
	}
	sort.Strings(types)

	states := make([]*domain.SyncState, 0, len(types))
	for _, t := range types {
		state, err := s.Get(ctx, domain.SyncType(t))
		if errors.Is(err, domain.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		states = append(states, state)
	}
	return states, nil
}

// Ping checks if the Redis backend is healthy.
func (s *SyncStateStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func decodeState(data []byte) (*domain.SyncState, error) {
	var state domain.SyncState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("decode progress: %w", err)
	}
	return &state, nil
}

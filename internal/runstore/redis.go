package runstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	serrors "github.com/akatz-ai/stepgraph/internal/errors"
	"github.com/akatz-ai/stepgraph/internal/types"
)

// RedisStore persists runs as JSON values under <prefix>:run:<id>, indexed
// by start time in the sorted set <prefix>:runs.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisStore wraps an existing client.
func NewRedisStore(client redis.UniversalClient, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "stepgraph"
	}
	return &RedisStore{client: client, prefix: prefix}
}

// DialRedis connects to addr and verifies the connection.
func DialRedis(ctx context.Context, addr, password string, db int, prefix string) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connecting to redis at %s: %w", addr, err)
	}
	return NewRedisStore(client, prefix), nil
}

func (s *RedisStore) key(id string) string { return s.prefix + ":run:" + id }

func (s *RedisStore) indexKey() string { return s.prefix + ":runs" }

// Ping checks the connection.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Create persists a new run.
func (s *RedisStore) Create(ctx context.Context, run *types.WorkflowResult) error {
	data, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("marshaling run: %w", err)
	}

	ok, err := s.client.SetNX(ctx, s.key(run.RunID), data, 0).Result()
	if err != nil {
		return fmt.Errorf("creating run %s: %w", run.RunID, err)
	}
	if !ok {
		return fmt.Errorf("run already exists: %s", run.RunID)
	}
	return s.index(ctx, s.client, run)
}

func (s *RedisStore) index(ctx context.Context, c redis.Cmdable, run *types.WorkflowResult) error {
	return c.ZAdd(ctx, s.indexKey(), redis.Z{
		Score:  float64(run.StartedAt.UnixNano()),
		Member: run.RunID,
	}).Err()
}

// Get retrieves a run by ID.
func (s *RedisStore) Get(ctx context.Context, id string) (*types.WorkflowResult, error) {
	data, err := s.client.Get(ctx, s.key(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, serrors.RunNotFound(id)
		}
		return nil, fmt.Errorf("getting run %s: %w", id, err)
	}

	var run types.WorkflowResult
	if err := json.Unmarshal(data, &run); err != nil {
		return nil, fmt.Errorf("parsing run %s: %w", id, err)
	}
	return &run, nil
}

// Save persists run state and its index entry in one transaction.
func (s *RedisStore) Save(ctx context.Context, run *types.WorkflowResult) error {
	data, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("marshaling run: %w", err)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.key(run.RunID), data, 0)
		return s.index(ctx, pipe, run)
	})
	if err != nil {
		return fmt.Errorf("saving run %s: %w", run.RunID, err)
	}
	return nil
}

// Delete removes a run.
func (s *RedisStore) Delete(ctx context.Context, id string) error {
	n, err := s.client.Del(ctx, s.key(id)).Result()
	if err != nil {
		return fmt.Errorf("deleting run %s: %w", id, err)
	}
	if n == 0 {
		return serrors.RunNotFound(id)
	}
	return s.client.ZRem(ctx, s.indexKey(), id).Err()
}

// List returns runs matching filter, newest first. Index entries whose
// value has gone are skipped.
func (s *RedisStore) List(ctx context.Context, filter Filter) ([]*types.WorkflowResult, error) {
	ids, err := s.client.ZRevRange(ctx, s.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.key(id)
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("loading runs: %w", err)
	}

	var runs []*types.WorkflowResult
	for _, v := range values {
		str, ok := v.(string)
		if !ok {
			continue
		}
		var run types.WorkflowResult
		if err := json.Unmarshal([]byte(str), &run); err != nil {
			continue
		}
		runs = append(runs, &run)
	}
	return filter.apply(runs), nil
}

var _ Store = (*RedisStore)(nil)

package record

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/compose-network/bridge-deployer/internal/logger"
	"github.com/redis/go-redis/v9"
)

type kv interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
}

// RedisStore keeps the record under a single key so operators on different machines
// share one deployment ledger. A SET replaces the whole document in one step.
type RedisStore struct {
	client kv
	key    string
	logger *slog.Logger
}

func NewRedisStore(client kv, key string) *RedisStore {
	return &RedisStore{
		client: client,
		key:    key,
		logger: logger.Named("record_redis_store"),
	}
}

func (s *RedisStore) Location() string {
	return "redis:" + s.key
}

func (s *RedisStore) Load(ctx context.Context) (Record, error) {
	data, err := s.client.Get(ctx, s.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, fmt.Errorf("failed to read record key '%s': %w", s.key, err)
	}

	r, err := decode(data)
	if err != nil {
		return Record{}, fmt.Errorf("record key '%s': %w", s.key, err)
	}

	s.logger.With("key", s.key, "chains", len(r.Chains)).Debug("record loaded")

	return r, nil
}

func (s *RedisStore) Save(ctx context.Context, r Record) error {
	content, err := encode(r)
	if err != nil {
		return err
	}

	if err := s.client.Set(ctx, s.key, content, 0).Err(); err != nil {
		return fmt.Errorf("failed to write record key '%s': %w", s.key, err)
	}

	s.logger.With("key", s.key, "chains", len(r.Chains)).Info("record saved")

	return nil
}

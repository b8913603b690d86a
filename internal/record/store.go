package record

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/compose-network/bridge-deployer/configs"
	"github.com/redis/go-redis/v9"
)

var (
	// ErrNotFound is returned by Load when there is no usable record.
	ErrNotFound = errors.New("deployment record not found")
	// ErrCorrupt accompanies ErrNotFound when a record exists but cannot be parsed.
	ErrCorrupt = errors.New("deployment record is corrupt")
)

// Store persists the record as a whole document.
type Store interface {
	Load(ctx context.Context) (Record, error)
	Save(ctx context.Context, r Record) error
	Location() string
}

// Open builds the store selected by cfg. The returned close function releases any connection.
func Open(cfg configs.Record) (Store, func() error, error) {
	switch cfg.Backend {
	case configs.RecordBackendFile:
		return NewFileStore(cfg.Path), func() error { return nil }, nil
	case configs.RecordBackendRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		return NewRedisStore(client, cfg.Redis.Key), client.Close, nil
	default:
		return nil, nil, fmt.Errorf("unsupported record backend '%s'", cfg.Backend)
	}
}

func encode(r Record) ([]byte, error) {
	if r.Chains == nil {
		r.Chains = map[ChainRole]ChainEntry{}
	}

	content, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal record: %w", err)
	}

	return append(content, '\n'), nil
}

func decode(data []byte) (Record, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return Record{}, ErrNotFound
	}

	var r Record
	if err := json.Unmarshal(data, &r); err != nil {
		return Record{}, fmt.Errorf("%w: %w: %w", ErrNotFound, ErrCorrupt, err)
	}
	if r.Chains == nil {
		r.Chains = map[ChainRole]ChainEntry{}
	}

	return r, nil
}

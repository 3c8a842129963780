// Package redisstore keeps routing entries in a redis hash keyed by entry id.
package redisstore

import (
	"context"
	"encoding/json"

	goredis "github.com/go-redis/redis/v8"
	"overlay-router/internal/common/errors"
	"overlay-router/internal/redis"
	"overlay-router/internal/routing"
	"overlay-router/internal/store"
)

// Kind is the ROUTING_STORE value selecting this backend
const Kind = "redis"

// DefaultKey is the hash holding the entries
const DefaultKey = "overlay:routing:entries"

type Store struct {
	client *redis.Client
	rdb    *goredis.Client
	key    string
}

// New stores entries under key, or DefaultKey when key is empty
func New(client *redis.Client, key string) (*Store, error) {
	if client == nil {
		return nil, errors.ConfigError("redis client is required for the redis routing store")
	}
	if key == "" {
		key = DefaultKey
	}
	return &Store{client: client, rdb: client.GoRedis(), key: key}, nil
}

func (s *Store) Name() string { return Kind }

func (s *Store) Load(ctx context.Context) ([]routing.Entry, error) {
	raw, err := s.rdb.HGetAll(ctx, s.key).Result()
	if err != nil {
		return nil, errors.ConnectionError("failed to load routing entries", err)
	}

	entries := make([]routing.Entry, 0, len(raw))
	for id, data := range raw {
		var e routing.Entry
		if err := json.Unmarshal([]byte(data), &e); err != nil {
			return nil, errors.FormatError("stored routing entry is not valid JSON", err).WithContext("id", id)
		}
		entries = append(entries, e)
	}
	store.SortEntries(entries)
	return entries, nil
}

func (s *Store) Insert(ctx context.Context, entry routing.Entry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return errors.FormatError("failed to encode routing entry", err)
	}
	if err := s.rdb.HSet(ctx, s.key, entry.ID, data).Err(); err != nil {
		return errors.ConnectionError("failed to insert routing entry", err).WithContext("id", entry.ID)
	}
	return nil
}

func (s *Store) Update(ctx context.Context, old, updated routing.Entry) error {
	data, err := json.Marshal(updated)
	if err != nil {
		return errors.FormatError("failed to encode routing entry", err)
	}

	_, err = s.rdb.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		if old.ID != updated.ID {
			pipe.HDel(ctx, s.key, old.ID)
		}
		pipe.HSet(ctx, s.key, updated.ID, data)
		return nil
	})
	if err != nil {
		return errors.ConnectionError("failed to update routing entry", err).WithContext("id", updated.ID)
	}
	return nil
}

func (s *Store) DeleteAll(ctx context.Context) error {
	if err := s.rdb.Del(ctx, s.key).Err(); err != nil {
		return errors.ConnectionError("failed to clear routing entries", err)
	}
	return nil
}

func (s *Store) Health(ctx context.Context) error {
	return s.client.Health(ctx)
}

// Close is a no-op; the shared client is closed by its owner
func (s *Store) Close() error { return nil }

func init() {
	store.Register(Kind, func(_ context.Context, cfg store.Config) (store.Backend, error) {
		return New(cfg.Redis, "")
	})
}

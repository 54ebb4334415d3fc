package kvstore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/redis/go-redis/v9"
)

const scanBatch = 200

// RedisStore keeps every key as a string value under a namespace.
type RedisStore struct {
	rdb       *redis.Client
	namespace string
}

// NewRedisStore connects and pings the server.
func NewRedisStore(ctx context.Context, addr, password string, db int, namespace string) (*RedisStore, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	if namespace != "" && !strings.HasSuffix(namespace, ":") {
		namespace += ":"
	}
	return &RedisStore{rdb: rdb, namespace: namespace}, nil
}

func (s *RedisStore) Set(ctx context.Context, key string, value any) error {
	b, err := encode(value)
	if err != nil {
		return err
	}
	if err := s.rdb.Set(ctx, s.namespace+key, b, 0).Err(); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, key string, dest any) error {
	raw, err := s.rdb.Get(ctx, s.namespace+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ErrNotFound
		}
		return fmt.Errorf("get %s: %w", key, err)
	}
	return decode(raw, dest)
}

// GetByPrefix walks the keyspace with SCAN and loads matches with MGET. Keys
// deleted between the two calls are skipped.
func (s *RedisStore) GetByPrefix(ctx context.Context, prefix string) ([]Entry, error) {
	var keys []string
	iter := s.rdb.Scan(ctx, 0, globPrefix(s.namespace+prefix), scanBatch).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("scan prefix %s: %w", prefix, err)
	}
	if len(keys) == 0 {
		return nil, nil
	}
	sort.Strings(keys)

	values, err := s.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("mget prefix %s: %w", prefix, err)
	}

	out := make([]Entry, 0, len(keys))
	for i, v := range values {
		str, ok := v.(string)
		if !ok {
			continue
		}
		out = append(out, Entry{
			Key:   strings.TrimPrefix(keys[i], s.namespace),
			Value: []byte(str),
		})
	}
	return out, nil
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := s.rdb.Del(ctx, s.namespace+key).Err(); err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

func (s *RedisStore) Close() error {
	return s.rdb.Close()
}

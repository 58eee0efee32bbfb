// internal/common/cache/redis.go
package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"assistant-workers/internal/common/database"
)

// RedisStore implements Store on top of the shared RedisClient.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore wraps a RedisClient. The prefix namespaces keys so several
// stores can share one Redis database.
func NewRedisStore(rc *database.RedisClient, prefix string) *RedisStore {
	return &RedisStore{client: rc.GetClient(), prefix: prefix}
}

func (s *RedisStore) key(k string) string {
	if s.prefix == "" {
		return k
	}
	return s.prefix + ":" + k
}

func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := s.client.Get(ctx, s.key(key)).Bytes()
	if err == redis.Nil {
		return nil, ErrMiss
	}
	if err != nil {
		return nil, err
	}
	return val, nil
}

func (s *RedisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return s.client.Set(ctx, s.key(key), value, ttl).Err()
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	return s.client.Del(ctx, s.key(key)).Err()
}

// internal/common/cache/cache.go
package cache

import (
	"context"
	"errors"
	"time"
)

// ErrMiss is returned by Get when the key is absent or expired.
var ErrMiss = errors.New("cache miss")

// Store is a key-value store with per-entry TTL. Implementations must be
// safe for concurrent use. Callers inject a Store; nothing in this module
// holds a process-wide instance.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// Package cache provides a small JSON value cache for analytics results.
package cache

import (
	"context"
	"time"
)

// Cache stores JSON-serializable values under string keys with a TTL.
// A cache miss is (false, nil), never an error.
type Cache interface {
	Get(ctx context.Context, key string, dest any) (bool, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

package cache

import (
	"context"
	"time"
)

// NoopCache never stores anything. Used when Redis is not configured;
// analytics queries then always hit the database.
type NoopCache struct{}

// NewNoopCache creates a NoopCache.
func NewNoopCache() *NoopCache {
	return &NoopCache{}
}

func (c *NoopCache) Get(ctx context.Context, key string, dest any) (bool, error) {
	return false, nil
}

func (c *NoopCache) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	return nil
}

func (c *NoopCache) Delete(ctx context.Context, key string) error {
	return nil
}

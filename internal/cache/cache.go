package cache

import (
	"context"
	"time"
)

// Cache stores short-lived byte blobs. Misses and expired entries look the
// same to callers.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	// Purge drops expired entries and reports how many were removed.
	Purge(ctx context.Context) (int64, error)
}

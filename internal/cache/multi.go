package cache

import (
	"context"
	"time"

	"github.com/muratoffalex/pablos/internal/logger"
)

// promoteTTL is how long a value found only in the persistent level stays
// in memory. The persistent level still enforces the real expiry.
const promoteTTL = 5 * time.Minute

// MultiLevelCache reads through memory first and writes to both levels.
type MultiLevelCache struct {
	memory Cache
	db     Cache
	logger logger.Logger
}

func NewMultiLevelCache(memory, db Cache, log logger.Logger) *MultiLevelCache {
	return &MultiLevelCache{
		memory: memory,
		db:     db,
		logger: log.WithField("component", "cache"),
	}
}

func (c *MultiLevelCache) Get(ctx context.Context, key string) ([]byte, bool) {
	if data, found := c.memory.Get(ctx, key); found {
		return data, true
	}

	if data, found := c.db.Get(ctx, key); found {
		_ = c.memory.Set(ctx, key, data, promoteTTL)
		return data, true
	}

	return nil, false
}

func (c *MultiLevelCache) Set(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	if err := c.db.Set(ctx, key, data, ttl); err != nil {
		return err
	}
	return c.memory.Set(ctx, key, data, min(ttl, promoteTTL))
}

func (c *MultiLevelCache) Delete(ctx context.Context, key string) error {
	if err := c.memory.Delete(ctx, key); err != nil {
		c.logger.WithError(err).Error("Failed to delete from memory cache")
	}

	if err := c.db.Delete(ctx, key); err != nil {
		c.logger.WithError(err).Error("Failed to delete from db cache")
		return err
	}
	return nil
}

func (c *MultiLevelCache) Purge(ctx context.Context) (int64, error) {
	memPurged, err := c.memory.Purge(ctx)
	if err != nil {
		c.logger.WithError(err).Error("Failed to purge memory cache")
	}

	dbPurged, err := c.db.Purge(ctx)
	if err != nil {
		return memPurged, err
	}
	return memPurged + dbPurged, nil
}

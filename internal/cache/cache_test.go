package cache

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/muratoffalex/pablos/internal/database"
	"github.com/muratoffalex/pablos/internal/logger"
)

type fakeNow struct{ t time.Time }

func (f *fakeNow) Now() time.Time          { return f.t }
func (f *fakeNow) Advance(d time.Duration) { f.t = f.t.Add(d) }

func newTestDBCache(t *testing.T, clock *fakeNow) *DBCache {
	t.Helper()
	db, err := database.NewSQLiteDB(filepath.Join(t.TempDir(), "cache.db"), logger.NewTestLogger())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	c := NewDBCache(db)
	c.now = clock.Now
	return c
}

func TestCaches_Expiry(t *testing.T) {
	ctx := context.Background()

	caches := map[string]func(*testing.T, *fakeNow) Cache{
		"memory": func(t *testing.T, clock *fakeNow) Cache {
			c := NewMemoryCache()
			c.now = clock.Now
			return c
		},
		"db": func(t *testing.T, clock *fakeNow) Cache {
			return newTestDBCache(t, clock)
		},
	}

	for name, newCache := range caches {
		t.Run(name, func(t *testing.T) {
			clock := &fakeNow{t: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
			c := newCache(t, clock)

			_, found := c.Get(ctx, "missing")
			assert.False(t, found)

			require.NoError(t, c.Set(ctx, "k", []byte("v"), time.Minute))
			data, found := c.Get(ctx, "k")
			require.True(t, found)
			assert.Equal(t, []byte("v"), data)

			clock.Advance(time.Minute)
			_, found = c.Get(ctx, "k")
			assert.False(t, found)

			require.NoError(t, c.Set(ctx, "a", []byte("1"), time.Second))
			require.NoError(t, c.Set(ctx, "b", []byte("2"), time.Hour))
			clock.Advance(2 * time.Second)

			purged, err := c.Purge(ctx)
			require.NoError(t, err)
			assert.GreaterOrEqual(t, purged, int64(1))

			_, found = c.Get(ctx, "b")
			assert.True(t, found)

			require.NoError(t, c.Delete(ctx, "b"))
			_, found = c.Get(ctx, "b")
			assert.False(t, found)
		})
	}
}

func TestMultiLevelCache_PromotesFromDB(t *testing.T) {
	ctx := context.Background()
	clock := &fakeNow{t: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}

	mem := NewMemoryCache()
	mem.now = clock.Now
	db := newTestDBCache(t, clock)
	c := NewMultiLevelCache(mem, db, logger.NewTestLogger())

	require.NoError(t, db.Set(ctx, "k", []byte("persisted"), time.Hour))
	assert.Zero(t, mem.Len())

	data, found := c.Get(ctx, "k")
	require.True(t, found)
	assert.Equal(t, []byte("persisted"), data)
	assert.Equal(t, 1, mem.Len())

	require.NoError(t, c.Delete(ctx, "k"))
	_, found = c.Get(ctx, "k")
	assert.False(t, found)
}

func TestMultiLevelCache_SetWritesBothLevels(t *testing.T) {
	ctx := context.Background()
	clock := &fakeNow{t: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}

	mem := NewMemoryCache()
	mem.now = clock.Now
	db := newTestDBCache(t, clock)
	c := NewMultiLevelCache(mem, db, logger.NewTestLogger())

	require.NoError(t, c.Set(ctx, "k", []byte("v"), time.Hour))

	_, found := mem.Get(ctx, "k")
	assert.True(t, found)
	_, found = db.Get(ctx, "k")
	assert.True(t, found)

	// Memory keeps the value only briefly; the db level still answers.
	clock.Advance(10 * time.Minute)
	_, found = mem.Get(ctx, "k")
	assert.False(t, found)
	data, found := c.Get(ctx, "k")
	assert.True(t, found)
	assert.Equal(t, []byte("v"), data)
}

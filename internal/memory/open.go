package memory

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/muratoffalex/pablos/internal/database"
	"github.com/muratoffalex/pablos/internal/logger"
)

const (
	BackendAuto   = "auto"
	BackendRedis  = "redis"
	BackendSQLite = "sqlite"
	BackendMemory = "memory"

	connectTimeout = 5 * time.Second
)

type OpenOptions struct {
	Backend string
	Redis   RedisOptions
	StoreOptions
}

// OpenStore picks the history backend once at startup. "auto" prefers Redis
// when configured, then SQLite when a database is open. An explicitly
// requested backend that cannot be reached falls back to the in-memory
// store with a warning instead of failing startup.
func OpenStore(ctx context.Context, opts OpenOptions, db database.Database, log logger.Logger) (Store, error) {
	backend := strings.ToLower(strings.TrimSpace(opts.Backend))
	if backend == "" {
		backend = BackendAuto
	}
	log = log.WithField("backend", backend)

	switch backend {
	case BackendMemory:
		return NewInMemoryStore(opts.StoreOptions), nil

	case BackendRedis:
		store, err := openRedis(ctx, opts, log)
		if err != nil {
			log.WithError(err).Warn("Redis unavailable, falling back to in-memory history")
			return NewInMemoryStore(opts.StoreOptions), nil
		}
		return store, nil

	case BackendSQLite:
		if db == nil {
			log.Warn("No database open, falling back to in-memory history")
			return NewInMemoryStore(opts.StoreOptions), nil
		}
		return NewSQLiteStore(db, opts.StoreOptions), nil

	case BackendAuto:
		if opts.Redis.Configured() {
			store, err := openRedis(ctx, opts, log)
			if err == nil {
				return store, nil
			}
			log.WithError(err).Warn("Redis configured but unavailable")
		}
		if db != nil {
			return NewSQLiteStore(db, opts.StoreOptions), nil
		}
		log.Warn("No durable store available, history lives in memory only")
		return NewInMemoryStore(opts.StoreOptions), nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, opts.Backend)
	}
}

func openRedis(ctx context.Context, opts OpenOptions, log logger.Logger) (Store, error) {
	client, err := NewRedisClient(opts.Redis)
	if err != nil {
		return nil, err
	}

	store := NewRedisStore(client, opts.Redis.KeyPrefix, opts.StoreOptions, log)

	pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	if err := store.Ping(pingCtx); err != nil {
		client.Close()
		return nil, err
	}
	return store, nil
}

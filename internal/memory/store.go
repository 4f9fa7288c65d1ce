package memory

import (
	"context"
	"time"
)

// Store persists per-user conversation history. Implementations must make
// AppendPair atomic: either both turns are stored or neither is.
type Store interface {
	Name() string
	// Load returns up to maxTurns most recent turns, oldest first. A
	// non-positive maxTurns returns everything.
	Load(ctx context.Context, userID int64, maxTurns int) ([]Turn, error)
	AppendPair(ctx context.Context, userID int64, pair Pair) error
	Clear(ctx context.Context, userID int64) error
	Ping(ctx context.Context) error
	Close() error
}

// Purger is implemented by stores that have no native key expiry and need
// a periodic sweep.
type Purger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

type StoreOptions struct {
	// MaxPairs caps history per user; older pairs are dropped first.
	// Zero keeps everything.
	MaxPairs int
	// TTL expires a conversation this long after its last write.
	TTL time.Duration
	Now func() time.Time
}

func (o StoreOptions) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now()
}

func (o StoreOptions) expired(lastWrite time.Time) bool {
	return o.TTL > 0 && o.now().Sub(lastWrite) > o.TTL
}

func tail(turns []Turn, maxTurns int) []Turn {
	if maxTurns > 0 && len(turns) > maxTurns {
		return turns[len(turns)-maxTurns:]
	}
	return turns
}

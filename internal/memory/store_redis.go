package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/muratoffalex/pablos/internal/logger"
)

const DefaultKeyPrefix = "pablos:history:"

type RedisOptions struct {
	URL       string
	Addr      string
	Username  string
	Password  string
	DB        int
	KeyPrefix string
}

func (o RedisOptions) Configured() bool {
	return o.URL != "" || o.Addr != ""
}

// NewRedisClient builds a client from a redis:// URL when one is given,
// otherwise from the discrete address fields.
func NewRedisClient(opts RedisOptions) (*redis.Client, error) {
	if opts.URL != "" {
		parsed, err := redis.ParseURL(opts.URL)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		return redis.NewClient(parsed), nil
	}
	if opts.Addr == "" {
		return nil, fmt.Errorf("redis address is empty")
	}
	return redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Username: opts.Username,
		Password: opts.Password,
		DB:       opts.DB,
	}), nil
}

type redisTurn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
	TS      int64  `json:"ts"`
}

// RedisStore keeps each user's history in a list at <prefix><userID>, one
// JSON encoded turn per element. Expiry uses native key TTL.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
	opts   StoreOptions
	logger logger.Logger
}

func NewRedisStore(client redis.UniversalClient, prefix string, opts StoreOptions, log logger.Logger) *RedisStore {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return &RedisStore{
		client: client,
		prefix: prefix,
		opts:   opts,
		logger: log.WithField("component", "redis_store"),
	}
}

func (s *RedisStore) Name() string {
	return "redis"
}

func (s *RedisStore) key(userID int64) string {
	return s.prefix + strconv.FormatInt(userID, 10)
}

func (s *RedisStore) Load(ctx context.Context, userID int64, maxTurns int) ([]Turn, error) {
	start := int64(0)
	if maxTurns > 0 {
		start = -int64(maxTurns)
	}

	values, err := s.client.LRange(ctx, s.key(userID), start, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: lrange: %v", ErrStoreUnavailable, err)
	}

	turns := make([]Turn, 0, len(values))
	skipped := 0
	for _, raw := range values {
		var rt redisTurn
		if err := json.Unmarshal([]byte(raw), &rt); err != nil {
			skipped++
			continue
		}
		turns = append(turns, Turn{Role: rt.Role, Content: rt.Content, At: time.UnixMilli(rt.TS)})
	}
	if skipped > 0 {
		s.logger.WithFields(logger.Fields{
			"user_id": userID,
			"skipped": skipped,
		}).Warn("Skipped malformed history entries")
	}
	return turns, nil
}

// AppendPair pushes both turns, trims and refreshes the TTL in one
// MULTI/EXEC block.
func (s *RedisStore) AppendPair(ctx context.Context, userID int64, pair Pair) error {
	values := make([]any, 0, 2)
	for _, turn := range pair.Turns() {
		data, err := json.Marshal(redisTurn{Role: turn.Role, Content: turn.Content, TS: turn.At.UnixMilli()})
		if err != nil {
			return fmt.Errorf("encode turn: %w", err)
		}
		values = append(values, data)
	}

	key := s.key(userID)
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, key, values...)
		if s.opts.MaxPairs > 0 {
			pipe.LTrim(ctx, key, -2*int64(s.opts.MaxPairs), -1)
		}
		if s.opts.TTL > 0 {
			pipe.Expire(ctx, key, s.opts.TTL)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: append: %v", ErrStoreUnavailable, err)
	}
	return nil
}

func (s *RedisStore) Clear(ctx context.Context, userID int64) error {
	if err := s.client.Del(ctx, s.key(userID)).Err(); err != nil {
		return fmt.Errorf("%w: del: %v", ErrStoreUnavailable, err)
	}
	return nil
}

func (s *RedisStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: ping: %v", ErrStoreUnavailable, err)
	}
	return nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

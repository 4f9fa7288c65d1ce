package memory

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/muratoffalex/pablos/internal/database"
)

// SQLiteStore keeps history in the history table, one row per turn.
type SQLiteStore struct {
	db   database.Database
	opts StoreOptions
}

func NewSQLiteStore(db database.Database, opts StoreOptions) *SQLiteStore {
	return &SQLiteStore{db: db, opts: opts}
}

func (s *SQLiteStore) Name() string {
	return "sqlite"
}

func (s *SQLiteStore) Load(ctx context.Context, userID int64, maxTurns int) ([]Turn, error) {
	limit := -1
	if maxTurns > 0 {
		limit = maxTurns
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT role, content, created_at FROM (
			SELECT id, role, content, created_at FROM history
			WHERE user_id = ?
			ORDER BY id DESC
			LIMIT ?
		) ORDER BY id ASC
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: query history: %v", ErrStoreUnavailable, err)
	}
	defer rows.Close()

	var turns []Turn
	for rows.Next() {
		var (
			turn Turn
			ts   int64
		)
		if err := rows.Scan(&turn.Role, &turn.Content, &ts); err != nil {
			return nil, fmt.Errorf("%w: scan history: %v", ErrStoreUnavailable, err)
		}
		turn.At = time.UnixMilli(ts)
		turns = append(turns, turn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: rows: %v", ErrStoreUnavailable, err)
	}

	if len(turns) > 0 && s.opts.expired(turns[len(turns)-1].At) {
		return nil, nil
	}
	return turns, nil
}

func (s *SQLiteStore) AppendPair(ctx context.Context, userID int64, pair Pair) error {
	err := s.db.WithTx(ctx, func(tx *sql.Tx) error {
		// An expired conversation starts over instead of growing.
		if s.opts.TTL > 0 {
			cutoff := s.opts.now().Add(-s.opts.TTL).UnixMilli()
			if _, err := tx.ExecContext(ctx, `
				DELETE FROM history WHERE user_id = ?
				AND (SELECT MAX(created_at) FROM history WHERE user_id = ?) < ?
			`, userID, userID, cutoff); err != nil {
				return err
			}
		}

		for _, turn := range pair.Turns() {
			if _, err := tx.ExecContext(ctx,
				"INSERT INTO history (user_id, role, content, created_at) VALUES (?, ?, ?, ?)",
				userID, string(turn.Role), turn.Content, turn.At.UnixMilli(),
			); err != nil {
				return err
			}
		}

		if s.opts.MaxPairs > 0 {
			if _, err := tx.ExecContext(ctx, `
				DELETE FROM history WHERE user_id = ? AND id NOT IN (
					SELECT id FROM history WHERE user_id = ? ORDER BY id DESC LIMIT ?
				)
			`, userID, userID, 2*s.opts.MaxPairs); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: append: %v", ErrStoreUnavailable, err)
	}
	return nil
}

func (s *SQLiteStore) Clear(ctx context.Context, userID int64) error {
	if _, err := s.db.ExecWithRetry(ctx, "DELETE FROM history WHERE user_id = ?", userID); err != nil {
		return fmt.Errorf("%w: clear: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// PurgeExpired removes conversations whose last write is older than TTL and
// returns the number of deleted turns.
func (s *SQLiteStore) PurgeExpired(ctx context.Context) (int64, error) {
	if s.opts.TTL <= 0 {
		return 0, nil
	}
	cutoff := s.opts.now().Add(-s.opts.TTL).UnixMilli()

	res, err := s.db.ExecWithRetry(ctx, `
		DELETE FROM history WHERE user_id IN (
			SELECT user_id FROM history GROUP BY user_id HAVING MAX(created_at) < ?
		)
	`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("%w: purge: %v", ErrStoreUnavailable, err)
	}
	return res.RowsAffected()
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	if err := s.db.GetDB().PingContext(ctx); err != nil {
		return fmt.Errorf("%w: ping: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// Close is a no-op: the database handle is shared and closed by its owner.
func (s *SQLiteStore) Close() error {
	return nil
}

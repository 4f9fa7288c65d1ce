package memory

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/muratoffalex/pablos/internal/logger"
)

// CompleteFunc produces the assistant reply for the user's message given
// the prior history. It runs while the user's lock is held.
type CompleteFunc func(ctx context.Context, history []Turn) (string, error)

// Memory is the only way the rest of the bot touches conversation history.
// All operations for one user are serialized; different users never wait
// on each other.
type Memory struct {
	store  Store
	locks  *userLocks
	logger logger.Logger
	now    func() time.Time
}

func New(store Store, log logger.Logger) *Memory {
	return &Memory{
		store:  store,
		locks:  newUserLocks(),
		logger: log.WithFields(logger.Fields{"component": "memory", "backend": store.Name()}),
		now:    time.Now,
	}
}

func (m *Memory) Backend() string {
	return m.store.Name()
}

func (m *Memory) Store() Store {
	return m.store
}

// History returns at most maxTurns recent turns, oldest first, always made
// of whole user/assistant pairs. An odd maxTurns is rounded down.
func (m *Memory) History(ctx context.Context, userID int64, maxTurns int) ([]Turn, error) {
	release, err := m.locks.acquire(ctx, userID)
	if err != nil {
		return nil, err
	}
	defer release()

	return m.history(ctx, userID, maxTurns)
}

// CommitTurnPair stores both turns or neither.
func (m *Memory) CommitTurnPair(ctx context.Context, userID int64, userText, assistantText string) error {
	pair, err := NewPair(userText, assistantText, m.now())
	if err != nil {
		return err
	}

	release, err := m.locks.acquire(ctx, userID)
	if err != nil {
		return err
	}
	defer release()

	return m.store.AppendPair(ctx, userID, pair)
}

// Clear forgets everything about userID. Clearing an empty history is not
// an error.
func (m *Memory) Clear(ctx context.Context, userID int64) error {
	release, err := m.locks.acquire(ctx, userID)
	if err != nil {
		return err
	}
	defer release()

	if err := m.store.Clear(ctx, userID); err != nil {
		return err
	}
	m.logger.WithField("user_id", userID).Debug("History cleared")
	return nil
}

// Converse reads history, asks fn for a reply and commits the exchange, all
// under the user's lock, so concurrent messages from one user are handled
// one after another against up to date history. Nothing is written when fn
// fails or when ctx is done by the time fn returns. If fn succeeds but the commit fails, the reply is still returned
// together with an error wrapping ErrStoreUnavailable.
func (m *Memory) Converse(
	ctx context.Context,
	userID int64,
	userText string,
	maxTurns int,
	fn CompleteFunc,
) (string, error) {
	if strings.TrimSpace(userText) == "" {
		return "", ErrEmptyTurn
	}

	release, err := m.locks.acquire(ctx, userID)
	if err != nil {
		return "", err
	}
	defer release()

	log := m.logger.WithField("user_id", userID)

	history, err := m.history(ctx, userID, maxTurns)
	if err != nil {
		return "", err
	}

	reply, err := fn(ctx, history)
	if err != nil {
		log.WithError(err).Debug("Completion failed, history left untouched")
		return "", err
	}

	pair, err := NewPair(userText, reply, m.now())
	if err != nil {
		return "", fmt.Errorf("completion returned no text: %w", err)
	}
	// The caller gave up while fn ran (e.g. the user cleared history).
	if err := ctx.Err(); err != nil {
		log.WithError(err).Debug("Context done before commit, reply discarded")
		return "", err
	}
	if err := m.store.AppendPair(ctx, userID, pair); err != nil {
		log.WithError(err).Error("Failed to commit turn pair")
		return reply, err
	}

	log.WithField("history_turns", len(history)+2).Debug("Turn pair committed")
	return reply, nil
}

func (m *Memory) history(ctx context.Context, userID int64, maxTurns int) ([]Turn, error) {
	if maxTurns > 0 {
		maxTurns -= maxTurns % 2
		if maxTurns == 0 {
			return nil, nil
		}
	}

	turns, err := m.store.Load(ctx, userID, maxTurns)
	if err != nil {
		return nil, err
	}

	pairs := completePairs(turns)
	if dropped := len(turns) - len(pairs); dropped > 0 {
		m.logger.WithFields(logger.Fields{
			"user_id": userID,
			"dropped": dropped,
		}).Warn("Dropped unpaired turns from history")
	}
	return pairs, nil
}

func (m *Memory) Close() error {
	return m.store.Close()
}

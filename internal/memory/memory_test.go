package memory

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/muratoffalex/pablos/internal/logger"
)

func newTestMemory(opts StoreOptions) *Memory {
	return New(NewInMemoryStore(opts), logger.NewTestLogger())
}

func assertWholePairs(t *testing.T, turns []Turn) {
	t.Helper()
	require.Zero(t, len(turns)%2, "history must contain whole pairs")
	for i := 0; i < len(turns); i += 2 {
		assert.Equal(t, RoleUser, turns[i].Role, "turn %d", i)
		assert.Equal(t, RoleAssistant, turns[i+1].Role, "turn %d", i+1)
	}
}

func TestMemory_PairingInvariantUnderMixedOutcomes(t *testing.T) {
	mem := newTestMemory(StoreOptions{MaxPairs: 5})
	ctx := context.Background()
	rng := rand.New(rand.NewPCG(1, 2))
	failure := errors.New("upstream down")

	for i := range 200 {
		switch rng.IntN(4) {
		case 0:
			_, err := mem.Converse(ctx, 1, fmt.Sprintf("msg %d", i), 8, func(context.Context, []Turn) (string, error) {
				return "", failure
			})
			require.ErrorIs(t, err, failure)
		case 1:
			require.NoError(t, mem.Clear(ctx, 1))
		default:
			_, err := mem.Converse(ctx, 1, fmt.Sprintf("msg %d", i), 8, func(_ context.Context, h []Turn) (string, error) {
				assertWholePairs(t, h)
				return fmt.Sprintf("reply %d", i), nil
			})
			require.NoError(t, err)
		}

		history, err := mem.History(ctx, 1, 0)
		require.NoError(t, err)
		assertWholePairs(t, history)
		assert.LessOrEqual(t, len(history), 10)
	}
}

func TestMemory_FailureThenSuccessScenario(t *testing.T) {
	mem := newTestMemory(StoreOptions{MaxPairs: 25})
	ctx := context.Background()

	_, err := mem.Converse(ctx, 1, "first question", 8, func(context.Context, []Turn) (string, error) {
		return "", errors.New("all endpoints exhausted")
	})
	require.Error(t, err)

	history, err := mem.History(ctx, 1, 0)
	require.NoError(t, err)
	assert.Empty(t, history, "failed exchange must leave history untouched")

	reply, err := mem.Converse(ctx, 1, "second question", 8, func(_ context.Context, h []Turn) (string, error) {
		assert.Empty(t, h, "the failed user message must not appear as context")
		return "answer", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "answer", reply)

	history, err = mem.History(ctx, 1, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"second question", "answer"}, contents(history))
}

func TestMemory_ConversePassesBoundedHistory(t *testing.T) {
	mem := newTestMemory(StoreOptions{})
	ctx := context.Background()

	for i := 1; i <= 6; i++ {
		require.NoError(t, mem.CommitTurnPair(ctx, 1, fmt.Sprintf("q%d", i), fmt.Sprintf("a%d", i)))
	}

	_, err := mem.Converse(ctx, 1, "q7", 4, func(_ context.Context, h []Turn) (string, error) {
		assert.Equal(t, []string{"q5", "a5", "q6", "a6"}, contents(h))
		return "a7", nil
	})
	require.NoError(t, err)
}

func TestMemory_HistoryRoundsOddLimitDown(t *testing.T) {
	mem := newTestMemory(StoreOptions{})
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		require.NoError(t, mem.CommitTurnPair(ctx, 1, fmt.Sprintf("q%d", i), fmt.Sprintf("a%d", i)))
	}

	history, err := mem.History(ctx, 1, 5)
	require.NoError(t, err)
	assert.Equal(t, []string{"q2", "a2", "q3", "a3"}, contents(history))

	history, err = mem.History(ctx, 1, 1)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestMemory_RejectsEmptyTurns(t *testing.T) {
	mem := newTestMemory(StoreOptions{})
	ctx := context.Background()

	assert.ErrorIs(t, mem.CommitTurnPair(ctx, 1, "  ", "reply"), ErrEmptyTurn)
	assert.ErrorIs(t, mem.CommitTurnPair(ctx, 1, "hi", ""), ErrEmptyTurn)

	_, err := mem.Converse(ctx, 1, "", 8, func(context.Context, []Turn) (string, error) {
		t.Fatal("fn must not run for empty input")
		return "", nil
	})
	assert.ErrorIs(t, err, ErrEmptyTurn)

	_, err = mem.Converse(ctx, 1, "hi", 8, func(context.Context, []Turn) (string, error) {
		return " ", nil
	})
	assert.ErrorIs(t, err, ErrEmptyTurn)

	history, err := mem.History(ctx, 1, 0)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestMemory_ClearIsIdempotent(t *testing.T) {
	mem := newTestMemory(StoreOptions{})
	ctx := context.Background()

	require.NoError(t, mem.Clear(ctx, 5))
	require.NoError(t, mem.CommitTurnPair(ctx, 5, "q", "a"))
	require.NoError(t, mem.Clear(ctx, 5))
	require.NoError(t, mem.Clear(ctx, 5))

	history, err := mem.History(ctx, 5, 0)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestMemory_SameUserIsSerialized(t *testing.T) {
	mem := newTestMemory(StoreOptions{})
	ctx := context.Background()

	var (
		inFlight atomic.Int32
		maxSeen  atomic.Int32
		wg       sync.WaitGroup
	)
	for i := range 20 {
		wg.Go(func() {
			_, err := mem.Converse(ctx, 1, fmt.Sprintf("q%d", i), 0, func(_ context.Context, h []Turn) (string, error) {
				n := inFlight.Add(1)
				defer inFlight.Add(-1)
				for {
					cur := maxSeen.Load()
					if n <= cur || maxSeen.CompareAndSwap(cur, n) {
						break
					}
				}
				time.Sleep(time.Millisecond)
				return fmt.Sprintf("a%d", i), nil
			})
			assert.NoError(t, err)
		})
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxSeen.Load())

	history, err := mem.History(ctx, 1, 0)
	require.NoError(t, err)
	require.Len(t, history, 40)
	assertWholePairs(t, history)
	for i := 0; i < len(history); i += 2 {
		q := strings.TrimPrefix(history[i].Content, "q")
		assert.Equal(t, "a"+q, history[i+1].Content, "reply must follow its own question")
	}
	assert.Zero(t, mem.locks.size(), "idle users must not keep lock entries")
}

func TestMemory_DifferentUsersRunConcurrently(t *testing.T) {
	mem := newTestMemory(StoreOptions{})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	started := make(chan struct{}, 2)
	proceed := make(chan struct{})

	var wg sync.WaitGroup
	for userID := int64(1); userID <= 2; userID++ {
		wg.Go(func() {
			_, err := mem.Converse(ctx, userID, "hi", 0, func(context.Context, []Turn) (string, error) {
				started <- struct{}{}
				<-proceed
				return "hello", nil
			})
			assert.NoError(t, err)
		})
	}

	for range 2 {
		select {
		case <-started:
		case <-ctx.Done():
			t.Fatal("users blocked each other")
		}
	}
	close(proceed)
	wg.Wait()
}

func TestMemory_AcquireHonoursContext(t *testing.T) {
	mem := newTestMemory(StoreOptions{})

	holding := make(chan struct{})
	release := make(chan struct{})
	go func() {
		mem.Converse(context.Background(), 1, "hi", 0, func(context.Context, []Turn) (string, error) {
			close(holding)
			<-release
			return "ok", nil
		})
	}()
	<-holding

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := mem.History(ctx, 1, 0)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	close(release)
}

type failingStore struct {
	*InMemoryStore
	appendErr error
}

func (s *failingStore) AppendPair(context.Context, int64, Pair) error {
	return s.appendErr
}

func TestMemory_CommitFailureReturnsReply(t *testing.T) {
	store := &failingStore{
		InMemoryStore: NewInMemoryStore(StoreOptions{}),
		appendErr:     fmt.Errorf("%w: connection reset", ErrStoreUnavailable),
	}
	mem := New(store, logger.NewTestLogger())

	reply, err := mem.Converse(context.Background(), 1, "hi", 0, func(context.Context, []Turn) (string, error) {
		return "hello", nil
	})
	assert.Equal(t, "hello", reply)
	assert.ErrorIs(t, err, ErrStoreUnavailable)
}

func TestMemory_ConverseDiscardsReplyWhenCancelledDuringCompletion(t *testing.T) {
	mem := newTestMemory(StoreOptions{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reply, err := mem.Converse(ctx, 1, "hi", 0, func(context.Context, []Turn) (string, error) {
		cancel()
		return "hello", nil
	})
	assert.Empty(t, reply)
	assert.ErrorIs(t, err, context.Canceled)

	history, err := mem.History(context.Background(), 1, 0)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestCompletePairs(t *testing.T) {
	u := func(s string) Turn { return Turn{Role: RoleUser, Content: s} }
	a := func(s string) Turn { return Turn{Role: RoleAssistant, Content: s} }

	tests := []struct {
		name  string
		turns []Turn
		want  []string
	}{
		{"empty", nil, []string{}},
		{"whole pairs", []Turn{u("q1"), a("a1"), u("q2"), a("a2")}, []string{"q1", "a1", "q2", "a2"}},
		{"leading assistant", []Turn{a("a0"), u("q1"), a("a1")}, []string{"q1", "a1"}},
		{"dangling user", []Turn{u("q1"), a("a1"), u("q2")}, []string{"q1", "a1"}},
		{"double user", []Turn{u("q1"), u("q2"), a("a2")}, []string{"q2", "a2"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, contents(completePairs(tt.turns)))
		})
	}
}

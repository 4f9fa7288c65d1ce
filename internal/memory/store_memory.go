package memory

import (
	"context"
	"slices"
	"sync"
)

type memoryConversation struct {
	turns []Turn
}

// InMemoryStore keeps history in process memory. It is the fallback when no
// durable store is reachable; history is lost on restart.
type InMemoryStore struct {
	opts StoreOptions

	mu            sync.RWMutex
	conversations map[int64]*memoryConversation
}

func NewInMemoryStore(opts StoreOptions) *InMemoryStore {
	return &InMemoryStore{
		opts:          opts,
		conversations: make(map[int64]*memoryConversation),
	}
}

func (s *InMemoryStore) Name() string {
	return "memory"
}

func (s *InMemoryStore) Load(_ context.Context, userID int64, maxTurns int) ([]Turn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	conv, ok := s.conversations[userID]
	if !ok || len(conv.turns) == 0 {
		return nil, nil
	}
	if s.opts.expired(conv.turns[len(conv.turns)-1].At) {
		return nil, nil
	}
	return slices.Clone(tail(conv.turns, maxTurns)), nil
}

func (s *InMemoryStore) AppendPair(_ context.Context, userID int64, pair Pair) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.conversations[userID]
	if !ok {
		conv = &memoryConversation{}
		s.conversations[userID] = conv
	} else if len(conv.turns) > 0 && s.opts.expired(conv.turns[len(conv.turns)-1].At) {
		conv.turns = nil
	}

	conv.turns = append(conv.turns, pair.User, pair.Assistant)
	if s.opts.MaxPairs > 0 {
		conv.turns = slices.Clone(tail(conv.turns, 2*s.opts.MaxPairs))
	}
	return nil
}

func (s *InMemoryStore) Clear(_ context.Context, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.conversations, userID)
	return nil
}

func (s *InMemoryStore) PurgeExpired(context.Context) (int64, error) {
	if s.opts.TTL <= 0 {
		return 0, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var purged int64
	for userID, conv := range s.conversations {
		if len(conv.turns) == 0 || s.opts.expired(conv.turns[len(conv.turns)-1].At) {
			delete(s.conversations, userID)
			purged++
		}
	}
	return purged, nil
}

func (s *InMemoryStore) Ping(context.Context) error {
	return nil
}

func (s *InMemoryStore) Close() error {
	return nil
}

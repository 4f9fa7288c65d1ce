package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/muratoffalex/pablos/internal/ai"
	"github.com/muratoffalex/pablos/internal/cache"
	"github.com/muratoffalex/pablos/internal/logger"
	"github.com/muratoffalex/pablos/internal/memory"
)

const cacheKeyPrefix = "reply:"

type ReplyKind int

const (
	// ReplyCompletion carries model text that was committed to history.
	ReplyCompletion ReplyKind = iota
	// ReplyApology is the fixed fallback; history is untouched.
	ReplyApology
	ReplyRateLimited
	ReplyEmptyInput
)

type Reply struct {
	Kind       ReplyKind
	Text       string
	Cached     bool
	Truncated  bool
	RetryAfter time.Duration
	Completion *ai.Completion
}

type ChatOptions struct {
	SystemPrompt   string
	EmpathyPrompt  string
	ContextTurns   int
	MaxInputLength int
	// TokenBudget of zero leaves max_tokens to each endpoint.
	TokenBudget int
	CacheTTL    time.Duration
}

// ChatService turns one user message into one reply: it applies the rate
// limit, prepares the prompt, runs the completion inside Memory.Converse
// and maps failures to a localized apology.
type ChatService struct {
	memory    *memory.Memory
	completer ai.Completer
	limiter   *RateLimiter
	cache     cache.Cache
	localizer *Localizer
	opts      ChatOptions
	logger    logger.Logger

	ventMu sync.RWMutex
	vent   map[int64]struct{}
}

// NewChatService accepts a nil cache, which disables response caching.
func NewChatService(
	mem *memory.Memory,
	completer ai.Completer,
	limiter *RateLimiter,
	responseCache cache.Cache,
	localizer *Localizer,
	opts ChatOptions,
	log logger.Logger,
) *ChatService {
	return &ChatService{
		memory:    mem,
		completer: completer,
		limiter:   limiter,
		cache:     responseCache,
		localizer: localizer,
		opts:      opts,
		logger:    log.WithField("component", "chat_service"),
		vent:      make(map[int64]struct{}),
	}
}

// Reply returns the text to send back. A non-nil error alongside a non-empty
// Text is informational: the text should still be delivered. An empty Text
// means nothing should be sent (the caller's context ended).
func (s *ChatService) Reply(ctx context.Context, userID int64, text string) (Reply, error) {
	log := s.logger.WithField("user_id", userID)

	if s.limiter != nil {
		if ok, retryAfter := s.limiter.Allow(userID); !ok {
			seconds := math.Ceil(retryAfter.Seconds()*10) / 10
			return Reply{
				Kind:       ReplyRateLimited,
				RetryAfter: retryAfter,
				Text:       s.localizer.Localize("chat.rateLimited", map[string]any{"Seconds": fmt.Sprintf("%.1f", seconds)}),
			}, nil
		}
	}

	prompt, truncated := SanitizeInput(text, s.opts.MaxInputLength)
	if prompt == "" {
		return Reply{Kind: ReplyEmptyInput, Text: s.localizer.Localize("chat.empty", nil)}, nil
	}
	if truncated {
		log.WithField("max_length", s.opts.MaxInputLength).Debug("User input truncated")
	}

	systemPrompt := s.opts.SystemPrompt
	if s.InVentMode(userID) {
		systemPrompt = s.opts.EmpathyPrompt
	}

	var (
		completion *ai.Completion
		cached     bool
	)
	replyText, err := s.memory.Converse(ctx, userID, prompt, s.opts.ContextTurns,
		func(ctx context.Context, history []memory.Turn) (string, error) {
			messages := buildMessages(systemPrompt, history)

			key := cacheKey(messages, prompt)
			if s.cache != nil {
				if data, ok := s.cache.Get(ctx, key); ok && len(data) > 0 {
					cached = true
					return string(data), nil
				}
			}

			result, err := s.completer.Complete(ctx, prompt, messages, s.opts.TokenBudget)
			if err != nil {
				return "", err
			}
			completion = result

			if s.cache != nil && s.opts.CacheTTL > 0 {
				if err := s.cache.Set(ctx, key, []byte(result.Text), s.opts.CacheTTL); err != nil {
					log.WithError(err).Warn("Failed to cache reply")
				}
			}
			return result.Text, nil
		})

	if err != nil {
		if replyText != "" {
			// The exchange happened but could not be stored.
			log.WithError(err).Error("Reply sent without being stored in history")
			return Reply{Kind: ReplyCompletion, Text: replyText, Cached: cached, Truncated: truncated, Completion: completion}, err
		}
		if ctx.Err() != nil {
			return Reply{}, err
		}
		if errors.Is(err, ai.ErrAllEndpointsExhausted) {
			log.WithError(err).Warn("All endpoints failed, sending apology")
		} else {
			log.WithError(err).Error("Failed to produce reply")
		}
		return Reply{Kind: ReplyApology, Text: s.localizer.Localize("chat.apology", nil), Truncated: truncated}, err
	}

	fields := logger.Fields{"cached": cached}
	if completion != nil {
		fields["endpoint"] = completion.Endpoint
		fields["request_id"] = completion.RequestID
		fields["attempts"] = completion.Attempts
	}
	log.WithFields(fields).Info("Reply produced")

	return Reply{Kind: ReplyCompletion, Text: replyText, Cached: cached, Truncated: truncated, Completion: completion}, nil
}

// Clear wipes the user's history and leaves vent mode.
func (s *ChatService) Clear(ctx context.Context, userID int64) error {
	s.SetVentMode(userID, false)
	if s.limiter != nil {
		s.limiter.Reset(userID)
	}
	return s.memory.Clear(ctx, userID)
}

func (s *ChatService) SetVentMode(userID int64, enabled bool) {
	s.ventMu.Lock()
	defer s.ventMu.Unlock()
	if enabled {
		s.vent[userID] = struct{}{}
	} else {
		delete(s.vent, userID)
	}
}

func (s *ChatService) InVentMode(userID int64) bool {
	s.ventMu.RLock()
	defer s.ventMu.RUnlock()
	_, ok := s.vent[userID]
	return ok
}

// SanitizeInput trims whitespace, drops NUL bytes and caps the text at
// maxRunes. A non-positive maxRunes disables the cap.
func SanitizeInput(text string, maxRunes int) (string, bool) {
	text = strings.ReplaceAll(text, "\x00", "")
	text = strings.ToValidUTF8(text, "")
	truncated := false
	if maxRunes > 0 && utf8.RuneCountInString(text) > maxRunes {
		text = string([]rune(text)[:maxRunes])
		truncated = true
	}
	return strings.TrimSpace(text), truncated
}

func buildMessages(systemPrompt string, history []memory.Turn) []ai.Message {
	messages := make([]ai.Message, 0, len(history)+1)
	if systemPrompt != "" {
		messages = append(messages, ai.Message{Role: ai.RoleSystem, Content: systemPrompt})
	}
	for _, turn := range history {
		messages = append(messages, ai.Message{Role: string(turn.Role), Content: turn.Content})
	}
	return messages
}

func cacheKey(messages []ai.Message, prompt string) string {
	all := append(messages[:len(messages):len(messages)], ai.Message{Role: ai.RoleUser, Content: prompt})
	data, _ := json.Marshal(all)
	sum := sha256.Sum256(data)
	return cacheKeyPrefix + hex.EncodeToString(sum[:])
}

package ai

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/muratoffalex/pablos/internal/logger"
)

// Completer produces an assistant reply for a prompt and its history.
type Completer interface {
	Complete(ctx context.Context, prompt string, history []Message, tokenBudget int) (*Completion, error)
}

type ClientOptions struct {
	// AttemptTimeout bounds each endpoint call separately. Zero leaves only
	// the caller's context in charge.
	AttemptTimeout time.Duration
	Temperature    float32
	Now            func() time.Time
	NewRequestID   func() string
}

// CompletionClient tries endpoints in priority order, each at most once per
// call, and returns the first non-empty answer.
type CompletionClient struct {
	registry *Registry
	opts     ClientOptions
	logger   logger.Logger
}

func NewCompletionClient(registry *Registry, opts ClientOptions, log logger.Logger) *CompletionClient {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewRequestID == nil {
		opts.NewRequestID = uuid.NewString
	}
	return &CompletionClient{
		registry: registry,
		opts:     opts,
		logger:   log.WithField("component", "completion_client"),
	}
}

func (c *CompletionClient) Registry() *Registry {
	return c.registry
}

// Complete appends prompt as the final user message after history and
// walks the endpoints once. Every failure path moves on to the next
// eligible endpoint. It never invents a reply: when nothing answers, the
// returned error matches ErrAllEndpointsExhausted and wraps the last
// failure. A cancelled ctx aborts the walk without touching endpoint health.
func (c *CompletionClient) Complete(
	ctx context.Context,
	prompt string,
	history []Message,
	tokenBudget int,
) (*Completion, error) {
	started := c.opts.Now()
	requestID := c.opts.NewRequestID()
	log := c.logger.WithField("request_id", requestID)

	messages := make([]Message, 0, len(history)+1)
	messages = append(messages, history...)
	messages = append(messages, Message{Role: RoleUser, Content: prompt})

	var (
		attempts int
		lastErr  error
	)

	for idx, ok := c.registry.NextEligible(-1, c.opts.Now()); ok; idx, ok = c.registry.NextEligible(idx, c.opts.Now()) {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("completion cancelled: %w", err)
		}

		attempts++
		endpoint := c.registry.Endpoint(idx)
		attemptLog := log.WithFields(logger.Fields{
			"endpoint": endpoint.Name,
			"model":    endpoint.Model,
			"attempt":  attempts,
		})

		completion, err := c.attempt(ctx, endpoint, messages, tokenBudget, requestID)
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("completion cancelled: %w", ctx.Err())
			}
			lastErr = err

			health, cooling := c.registry.RecordFailure(idx, c.opts.Now(), err)
			failLog := attemptLog.WithError(err).WithFields(logger.Fields{
				"error_type":           GetErrorType(err),
				"consecutive_failures": health.ConsecutiveFailures,
			})
			if IsErrorKind(err, ErrorKindEmptyContent) {
				failLog.Warn("Endpoint returned empty content, trying next endpoint")
			} else {
				failLog.Warn("Endpoint request failed, trying next endpoint")
			}
			if cooling {
				attemptLog.WithField("cooldown_until", health.CooldownUntil.Format(time.RFC3339)).
					Warn("Endpoint suspended after consecutive failures")
			}
			continue
		}

		c.registry.RecordSuccess(idx)
		completion.RequestID = requestID
		completion.Attempts = attempts
		completion.Duration = c.opts.Now().Sub(started)

		attemptLog.WithFields(logger.Fields{
			"finish_reason": completion.FinishReason,
			"duration":      completion.Duration.String(),
		}).Debug("Completion succeeded")
		return completion, nil
	}

	exhausted := &AIError{
		Kind:        ErrorKindExhausted,
		OriginalErr: lastErr,
		Message: fmt.Sprintf(
			"all endpoints exhausted: %d attempted, %d skipped in cooldown",
			attempts, c.registry.Len()-attempts,
		),
	}
	log.WithError(exhausted).Error("No endpoint produced a completion")
	return nil, exhausted
}

func (c *CompletionClient) attempt(
	ctx context.Context,
	endpoint Endpoint,
	messages []Message,
	tokenBudget int,
	requestID string,
) (*Completion, error) {
	if c.opts.AttemptTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.opts.AttemptTimeout)
		defer cancel()
	}

	maxTokens := tokenBudget
	if maxTokens <= 0 {
		maxTokens = endpoint.MaxTokens
	}
	temperature := c.opts.Temperature

	request := CompletionRequest{
		Model:     endpoint.Model,
		Messages:  messages,
		RequestID: requestID,
	}
	if maxTokens > 0 {
		request.MaxTokens = &maxTokens
	}
	if temperature > 0 {
		request.Temperature = &temperature
	}

	resp, err := endpoint.Provider.Chat(ctx, request)
	if err != nil {
		return nil, err
	}
	if len(resp.Choices) == 0 {
		return nil, &AIError{
			Kind:         ErrorKindTransport,
			ProviderName: endpoint.Name,
			ModelName:    endpoint.Model,
			Message:      "no choices in response",
		}
	}

	choice := resp.Choices[0]
	content := choice.Message.Content
	if content == nil || strings.TrimSpace(*content) == "" {
		return nil, &AIError{
			Kind:         ErrorKindEmptyContent,
			ProviderName: endpoint.Name,
			ModelName:    endpoint.Model,
			FinishReason: choice.FinishReason,
			Message:      "response content is empty",
		}
	}

	model := resp.Model
	if model == "" {
		model = endpoint.Model
	}
	return &Completion{
		Text:         strings.TrimSpace(*content),
		Endpoint:     endpoint.Name,
		Model:        model,
		FinishReason: choice.FinishReason,
		Usage:        resp.Usage,
	}, nil
}

package ai

import "time"

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type CompletionRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	MaxTokens   *int      `json:"max_tokens,omitzero"`
	Temperature *float32  `json:"temperature,omitzero"`
	Stream      bool      `json:"stream"`

	RequestID string `json:"-"`
}

// ResponseMessage keeps Content as a pointer: providers answer with
// "content": null when generation produced nothing, and that must stay
// distinguishable from a decoding bug.
type ResponseMessage struct {
	Role    string  `json:"role"`
	Content *string `json:"content"`
}

type Choice struct {
	Index        int             `json:"index"`
	Message      ResponseMessage `json:"message"`
	FinishReason string          `json:"finish_reason"`
}

type ModelUsage struct {
	PromptTokens     int64 `json:"prompt_tokens"`
	CompletionTokens int64 `json:"completion_tokens"`
	TotalTokens      int64 `json:"total_tokens"`
}

type CompletionResponse struct {
	ID      string         `json:"id"`
	Model   string         `json:"model"`
	Choices []Choice       `json:"choices"`
	Usage   *ModelUsage    `json:"usage,omitempty"`
	Error   *ProviderError `json:"error,omitempty"`
}

type ProviderError struct {
	Message string `json:"message"`
	Code    any    `json:"code"`
	Type    string `json:"type"`
}

type ModelInfo struct {
	ID      string `json:"id"`
	OwnedBy string `json:"owned_by"`
}

// Completion is a successful answer together with where it came from.
type Completion struct {
	Text         string
	Endpoint     string
	Model        string
	FinishReason string
	Usage        *ModelUsage
	RequestID    string
	Attempts     int
	Duration     time.Duration
}

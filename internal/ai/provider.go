package ai

import "context"

// Provider sends one chat completion request to one upstream. It must not
// retry: failover across endpoints belongs to CompletionClient.
type Provider interface {
	Name() string
	Chat(ctx context.Context, request CompletionRequest) (*CompletionResponse, error)
	ListModels(ctx context.Context) ([]ModelInfo, error)
}

package ai

const (
	ProviderOpenai = "openai-compatible"
	ProviderMock   = "mock"

	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"

	FinishReasonStop   = "stop"
	FinishReasonLength = "length"

	chatCompletionsPath = "chat/completions"
	modelsPath          = "models"

	requestIDHeader = "X-Request-ID"
)

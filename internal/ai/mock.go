package ai

import (
	"context"
	"fmt"
)

const MockReply = "Halo! Ini balasan mock dari Pablos. Lagi mode testing, jadi belum bisa ngobrol beneran 😎"

// MockProvider answers every request locally. It lets the bot run end to
// end without upstream credentials (ai.use_mock).
type MockProvider struct {
	name  string
	reply string
}

func NewMockProvider(reply string) *MockProvider {
	if reply == "" {
		reply = MockReply
	}
	return &MockProvider{name: ProviderMock, reply: reply}
}

func (p *MockProvider) Name() string {
	return p.name
}

func (p *MockProvider) Chat(ctx context.Context, request CompletionRequest) (*CompletionResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, &AIError{Kind: ErrorKindTransport, OriginalErr: err, ProviderName: p.name}
	}
	content := p.reply
	return &CompletionResponse{
		ID:    fmt.Sprintf("mock-%s", request.RequestID),
		Model: request.Model,
		Choices: []Choice{{
			Message:      ResponseMessage{Role: RoleAssistant, Content: &content},
			FinishReason: FinishReasonStop,
		}},
	}, nil
}

func (p *MockProvider) ListModels(context.Context) ([]ModelInfo, error) {
	return []ModelInfo{{ID: ProviderMock, OwnedBy: ProviderMock}}, nil
}

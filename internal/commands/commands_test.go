package commands_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/muratoffalex/pablos/internal/ai"
	"github.com/muratoffalex/pablos/internal/app/di"
	"github.com/muratoffalex/pablos/internal/commands"
	"github.com/muratoffalex/pablos/internal/commands/chat"
	"github.com/muratoffalex/pablos/internal/commands/clear"
	"github.com/muratoffalex/pablos/internal/commands/help"
	"github.com/muratoffalex/pablos/internal/commands/start"
	"github.com/muratoffalex/pablos/internal/commands/vent"
	"github.com/muratoffalex/pablos/internal/config"
	"github.com/muratoffalex/pablos/internal/logger"
	"github.com/muratoffalex/pablos/internal/memory"
	"github.com/muratoffalex/pablos/internal/service"
	"github.com/muratoffalex/pablos/internal/service/cancel"
	"github.com/muratoffalex/pablos/internal/telegram"
	"github.com/muratoffalex/pablos/internal/telegram/telegramtest"
)

const userID = 42

type downProvider struct{}

func (downProvider) Name() string { return "down" }

func (downProvider) Chat(context.Context, ai.CompletionRequest) (*ai.CompletionResponse, error) {
	return nil, &ai.AIError{Kind: ai.ErrorKindTransport, ProviderName: "down", OriginalErr: errors.New("connection refused")}
}

func (downProvider) ListModels(context.Context) ([]ai.ModelInfo, error) { return nil, nil }

func newTestContainer(t *testing.T, provider ai.Provider) (*di.Container, *telegramtest.Client) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "pablos.toml")
	require.NoError(t, os.WriteFile(path, []byte("[chat]\ncooldown = \"0s\"\nmax_input_length = 100\n"), 0o600))
	cfg, err := config.Load(path)
	require.NoError(t, err)

	localizer, err := service.NewLocalizer("id")
	require.NoError(t, err)

	log := logger.NewTestLogger()
	registry := ai.NewRegistry([]ai.Endpoint{{Name: "primary", Model: "m", Provider: provider}}, ai.CooldownPolicy{Threshold: 3})
	completion := ai.NewCompletionClient(registry, ai.ClientOptions{}, log)
	mem := memory.New(memory.NewInMemoryStore(memory.StoreOptions{MaxPairs: 25}), log)

	tg := telegramtest.NewClient("pablos_bot")
	c := &di.Container{
		Logger:     log,
		Cfg:        cfg,
		Endpoints:  registry,
		Completion: completion,
		Memory:     mem,
		Localizer:  localizer,
		BotClient:  tg,
		Requests:   cancel.NewManager(),
	}
	c.ChatService = service.NewChatService(mem, completion, nil, nil, localizer, service.ChatOptions{
		SystemPrompt:   "system",
		EmpathyPrompt:  "empathy",
		ContextTurns:   8,
		MaxInputLength: 100,
	}, log)
	return c, tg
}

func handle(t *testing.T, cmd commands.Command, text string) {
	t.Helper()
	require.NoError(t, cmd.Handle(context.Background(), telegramtest.TextUpdate(userID, userID, "private", text)))
}

func history(t *testing.T, c *di.Container) []memory.Turn {
	t.Helper()
	turns, err := c.Memory.History(context.Background(), userID, 0)
	require.NoError(t, err)
	return turns
}

func TestStartAndHelp(t *testing.T) {
	c, tg := newTestContainer(t, ai.NewMockProvider(""))

	handle(t, start.New(c), "/start")
	handle(t, help.New(c), "/help")

	sent := tg.Sent()
	require.Len(t, sent, 2)
	assert.Contains(t, sent[0].Text, "Halo Budi!")
	assert.Equal(t, 1, sent[0].ReplyTo)
	assert.Contains(t, sent[1].Text, "/vent")
	assert.Contains(t, sent[1].Text, "/clear")
}

func TestChat_RepliesAndRemembers(t *testing.T) {
	c, tg := newTestContainer(t, ai.NewMockProvider("santai bro"))

	handle(t, chat.New(c), "halo")

	sent := tg.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "santai bro", sent[0].Text)
	assert.Contains(t, tg.Actions(), telegram.ActionTyping)

	turns := history(t, c)
	require.Len(t, turns, 2)
	assert.Equal(t, "halo", turns[0].Content)
	assert.Equal(t, "santai bro", turns[1].Content)
}

func TestChat_CommandArguments(t *testing.T) {
	c, tg := newTestContainer(t, ai.NewMockProvider("oke"))

	handle(t, chat.New(c), "/chat apa kabar")

	require.Len(t, tg.Sent(), 1)
	assert.Equal(t, "apa kabar", history(t, c)[0].Content)
}

func TestChat_LongReplyIsChunked(t *testing.T) {
	long := strings.Repeat("kata ", 1200)
	c, tg := newTestContainer(t, ai.NewMockProvider(long))

	handle(t, chat.New(c), "ceritain dong")

	sent := tg.Sent()
	require.Len(t, sent, 2)
	assert.Equal(t, 1, sent[0].ReplyTo)
	assert.Equal(t, 0, sent[1].ReplyTo)
	for _, msg := range sent {
		assert.LessOrEqual(t, len([]rune(msg.Text)), telegram.MaxMessageLength)
	}
}

func TestChat_TruncatedInputIsAnnounced(t *testing.T) {
	c, tg := newTestContainer(t, ai.NewMockProvider("oke"))

	handle(t, chat.New(c), strings.Repeat("a", 150))

	sent := tg.Sent()
	require.Len(t, sent, 2)
	assert.Contains(t, sent[0].Text, "100")
	assert.Equal(t, "oke", sent[1].Text)
	assert.Len(t, history(t, c)[0].Content, 100)
}

func TestChat_AllEndpointsDownSendsApology(t *testing.T) {
	c, tg := newTestContainer(t, downProvider{})

	handle(t, chat.New(c), "halo")

	sent := tg.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "Waduh, gue lagi error nih. Coba lagi ya! 😅", sent[0].Text)
	assert.Empty(t, history(t, c))
}

func TestVentThenClear(t *testing.T) {
	c, tg := newTestContainer(t, ai.NewMockProvider("gue dengerin"))

	handle(t, vent.New(c), "/vent")
	assert.True(t, c.ChatService.InVentMode(userID))

	handle(t, chat.New(c), "lagi sedih")
	require.Len(t, history(t, c), 2)

	handle(t, clear.New(c), "/clear")
	assert.False(t, c.ChatService.InVentMode(userID))
	assert.Empty(t, history(t, c))

	sent := tg.Sent()
	require.Len(t, sent, 3)
	assert.Contains(t, sent[0].Text, "gue dengerin kok")
	assert.Contains(t, sent[2].Text, "udah gue hapus")
}

func TestSendFailureIsReturned(t *testing.T) {
	c, tg := newTestContainer(t, ai.NewMockProvider(""))
	tg.SendErr = errors.New("Forbidden: bot was blocked by the user")

	err := help.New(c).Handle(context.Background(), telegramtest.TextUpdate(userID, userID, "private", "/help"))
	assert.Error(t, err)
}

func TestClearAbandonsPendingReply(t *testing.T) {
	c, _ := newTestContainer(t, ai.NewMockProvider(""))
	pending, release := c.Requests.Register(context.Background(), userID, 7, chat.CommandName)
	defer release()

	handle(t, clear.New(c), "/clear")

	assert.ErrorIs(t, pending.Err(), context.Canceled)
}

func TestChat_ReleasesRequestWhenDone(t *testing.T) {
	c, _ := newTestContainer(t, ai.NewMockProvider("oke"))

	handle(t, chat.New(c), "halo")

	assert.Zero(t, c.Requests.Len())
}

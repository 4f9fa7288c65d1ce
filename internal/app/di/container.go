package di

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	tgbotapi "github.com/OvyFlash/telegram-bot-api"

	"github.com/muratoffalex/pablos/internal/ai"
	"github.com/muratoffalex/pablos/internal/cache"
	"github.com/muratoffalex/pablos/internal/config"
	"github.com/muratoffalex/pablos/internal/database"
	"github.com/muratoffalex/pablos/internal/logger"
	"github.com/muratoffalex/pablos/internal/memory"
	"github.com/muratoffalex/pablos/internal/network"
	"github.com/muratoffalex/pablos/internal/service"
	"github.com/muratoffalex/pablos/internal/service/cancel"
	"github.com/muratoffalex/pablos/internal/telegram"
)

type Container struct {
	Logger      logger.Logger
	Cfg         *config.Config
	DB          database.Database
	Cache       cache.Cache
	HttpClient  *http.Client
	Endpoints   *ai.Registry
	Completion  *ai.CompletionClient
	Store       memory.Store
	Memory      *memory.Memory
	RateLimiter *service.RateLimiter
	ChatService *service.ChatService
	Requests    *cancel.Manager
	Localizer   *service.Localizer
	BotClient   telegram.Client
}

// NewCoreContainer wires everything except Telegram. The CLI uses it for
// commands that only touch history or endpoints.
func NewCoreContainer(ctx context.Context, cfg *config.Config, l logger.Logger) (*Container, error) {
	if l == nil {
		l = logger.NewLogrusLogger(cfg.Log())
	}

	aiCfg, err := cfg.AI()
	if err != nil {
		return nil, err
	}

	db, err := database.NewSQLiteDB(cfg.GetDatabaseDSN(), l)
	if err != nil {
		return nil, err
	}

	container := &Container{
		Logger:   l,
		Cfg:      cfg,
		DB:       db,
		Requests: cancel.NewManager(),
	}

	localizer, err := service.NewLocalizer(cfg.Global().InterfaceLanguage)
	if err != nil {
		container.Close()
		return nil, fmt.Errorf("create localizer: %w", err)
	}
	container.Localizer = localizer

	httpClient, err := network.SetupHTTPClient(network.NewCompletionHTTPClientConfig(cfg.HTTP()), l)
	if err != nil {
		container.Close()
		return nil, err
	}
	container.HttpClient = httpClient

	container.Endpoints = BuildRegistry(aiCfg, httpClient, l)
	container.Completion = ai.NewCompletionClient(container.Endpoints, ai.ClientOptions{
		AttemptTimeout: aiCfg.AttemptTimeout,
		Temperature:    aiCfg.Temperature,
	}, l)

	memCfg := cfg.Memory()
	store, err := memory.OpenStore(ctx, memory.OpenOptions{
		Backend: memCfg.Backend,
		Redis: memory.RedisOptions{
			URL:       memCfg.Redis.URL,
			Addr:      memCfg.Redis.Addr,
			Username:  memCfg.Redis.Username,
			Password:  memCfg.Redis.Password,
			DB:        memCfg.Redis.DB,
			KeyPrefix: memCfg.Redis.KeyPrefix,
		},
		StoreOptions: memory.StoreOptions{
			MaxPairs: memCfg.MaxPairs,
			TTL:      memCfg.TTL,
		},
	}, db, l)
	if err != nil {
		container.Close()
		return nil, err
	}
	container.Store = store
	container.Memory = memory.New(store, l)
	l.WithField("backend", store.Name()).Info("History store selected")

	cacheCfg := cfg.Cache()
	if cacheCfg.Enabled {
		container.Cache = cache.NewMultiLevelCache(cache.NewMemoryCache(), cache.NewDBCache(db), l)
	}

	chatCfg := cfg.Chat()
	container.RateLimiter = service.NewRateLimiter(chatCfg.Cooldown)
	container.ChatService = service.NewChatService(
		container.Memory,
		container.Completion,
		container.RateLimiter,
		container.Cache,
		localizer,
		service.ChatOptions{
			SystemPrompt:   aiCfg.SystemPrompt,
			EmpathyPrompt:  aiCfg.EmpathyPrompt,
			ContextTurns:   memCfg.ContextTurns,
			MaxInputLength: chatCfg.MaxInputLength,
			CacheTTL:       cacheCfg.TTL,
		},
		l,
	)

	return container, nil
}

// NewContainer adds the Telegram client on top of the core container.
func NewContainer(ctx context.Context, cfg *config.Config) (*Container, error) {
	l := logger.NewLogrusLogger(cfg.Log())

	container, err := NewCoreContainer(ctx, cfg, l)
	if err != nil {
		return nil, err
	}

	tgHTTPClient, err := network.SetupHTTPClient(network.NewTelegramHTTPClientConfig(cfg.HTTP()), l)
	if err != nil {
		container.Close()
		return nil, err
	}

	api, err := tgbotapi.NewBotAPIWithClient(cfg.Telegram().Token, tgbotapi.APIEndpoint, tgHTTPClient)
	if err != nil {
		container.Close()
		return nil, fmt.Errorf("bot API client initialization error: %w", err)
	}
	l.WithField("bot", api.Self.UserName).Info("Bot API initialized")

	container.BotClient = telegram.NewBotClient(api, l)
	return container, nil
}

// BuildRegistry creates one provider per configured endpoint, or a single
// local mock endpoint when ai.use_mock is set.
func BuildRegistry(aiCfg config.AIConfig, httpClient *http.Client, l logger.Logger) *ai.Registry {
	policy := ai.CooldownPolicy{
		Threshold: aiCfg.FailureThreshold,
		Duration:  aiCfg.Cooldown,
	}

	if aiCfg.UseMock {
		l.Warn("ai.use_mock is set, replies come from the local mock provider")
		return ai.NewRegistry([]ai.Endpoint{{
			Name:      ai.ProviderMock,
			Model:     ai.ProviderMock,
			MaxTokens: aiCfg.MaxTokens,
			Provider:  ai.NewMockProvider(""),
		}}, policy)
	}

	endpoints := make([]ai.Endpoint, 0, len(aiCfg.Endpoints))
	for _, epCfg := range aiCfg.Endpoints {
		provider := ai.NewOpenAICompatibleClient(epCfg.Name, epCfg.BaseURL, epCfg.GetAPIKey(), httpClient, l)
		endpoints = append(endpoints, ai.Endpoint{
			Name:      epCfg.Name,
			Model:     epCfg.Model,
			MaxTokens: epCfg.MaxTokens,
			Priority:  epCfg.Priority,
			Provider:  provider,
		})
		l.WithFields(logger.Fields{
			"endpoint": epCfg.Name,
			"model":    epCfg.Model,
			"priority": epCfg.Priority,
		}).Info("Initialized AI endpoint")
	}
	return ai.NewRegistry(endpoints, policy)
}

func (c *Container) Close() error {
	var errs []error
	if c.Memory != nil {
		// SQLiteStore.Close leaves the shared handle alone.
		errs = append(errs, c.Memory.Close())
	}
	if c.DB != nil {
		errs = append(errs, c.DB.Close())
	}
	return errors.Join(errs...)
}

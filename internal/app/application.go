package app

import (
	"context"
	"errors"
	"time"

	"github.com/muratoffalex/pablos/internal/app/di"
	"github.com/muratoffalex/pablos/internal/commands/chat"
	"github.com/muratoffalex/pablos/internal/commands/clear"
	"github.com/muratoffalex/pablos/internal/commands/help"
	"github.com/muratoffalex/pablos/internal/commands/start"
	"github.com/muratoffalex/pablos/internal/commands/vent"
	"github.com/muratoffalex/pablos/internal/config"
	"github.com/muratoffalex/pablos/internal/core"
	"github.com/muratoffalex/pablos/internal/logger"
	"github.com/muratoffalex/pablos/internal/memory"
)

const janitorInterval = 1 * time.Hour

type Application struct {
	Logger logger.Logger
	cfg    *config.Config
	bot    *core.Bot
	di     *di.Container
}

// New validates cfg and wires the bot. ctx bounds startup work such as the
// history store connection check.
func New(ctx context.Context, cfg *config.Config) (*Application, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	container, err := di.NewContainer(ctx, cfg)
	if err != nil {
		return nil, err
	}
	container.Logger.Info("DI Container created")

	botInstance := core.NewBot(
		container.BotClient,
		container.Logger,
		container.DB,
		cfg.Telegram(),
		container.Localizer,
	)
	container.Logger.Info("Bot instance created")

	app := &Application{
		cfg:    cfg,
		bot:    botInstance,
		di:     container,
		Logger: container.Logger,
	}
	app.registerCommands()

	return app, nil
}

// Start blocks until ctx is cancelled. A cancellation is a normal shutdown
// and is not reported as an error.
func (a *Application) Start(ctx context.Context) error {
	a.Logger.WithField("history_backend", a.di.Memory.Backend()).Info("Starting application")
	go a.runJanitor(ctx)

	err := a.bot.Start(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (a *Application) registerCommands() {
	a.bot.RegisterCommand(start.New(a.di))
	a.bot.RegisterCommand(help.New(a.di))
	a.bot.RegisterCommand(clear.New(a.di))
	a.bot.RegisterCommand(vent.New(a.di))
	a.bot.SetDefaultCommand(chat.New(a.di))
}

// Shutdown releases the history store and the database.
func (a *Application) Shutdown() {
	if err := a.di.Close(); err != nil {
		a.Logger.WithError(err).Error("Failed to close resources")
	}
	a.Logger.Info("Application stopped")
}

// runJanitor sweeps expired rows that have no native expiry, and idle
// rate limiter entries.
func (a *Application) runJanitor(ctx context.Context) {
	ticker := time.NewTicker(janitorInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			Sweep(ctx, a.di)
		}
	}
}

func Sweep(ctx context.Context, c *di.Container) {
	if purger, ok := c.Store.(memory.Purger); ok {
		removed, err := purger.PurgeExpired(ctx)
		if err != nil {
			c.Logger.WithError(err).Error("Failed to purge expired history")
		} else if removed > 0 {
			c.Logger.WithField("removed", removed).Debug("Purged expired history")
		}
	}
	if c.Cache != nil {
		if _, err := c.Cache.Purge(ctx); err != nil {
			c.Logger.WithError(err).Error("Failed to purge cache")
		}
	}
	if c.RateLimiter != nil {
		c.RateLimiter.Prune()
	}
}

package base

import (
	"context"
	"time"

	"github.com/muratoffalex/pablos/internal/app/di"
	"github.com/muratoffalex/pablos/internal/commands"
	"github.com/muratoffalex/pablos/internal/logger"
	"github.com/muratoffalex/pablos/internal/service"
	"github.com/muratoffalex/pablos/internal/service/cancel"
	"github.com/muratoffalex/pablos/internal/telegram"
)

const sendRetries = 3

type Command struct {
	command     commands.Command
	Tg          telegram.Client
	Logger      logger.Logger
	ChatService *service.ChatService
	Localizer   *service.Localizer
	Requests    *cancel.Manager
}

func NewCommand(cmd commands.Command, di *di.Container) *Command {
	return &Command{
		command:     cmd,
		Tg:          di.BotClient,
		Logger:      di.Logger,
		ChatService: di.ChatService,
		Localizer:   di.Localizer,
		Requests:    di.Requests,
	}
}

func (c *Command) Name() string {
	return ""
}

func (c *Command) Aliases() []string {
	return []string{}
}

func (c *Command) Handle(ctx context.Context, update telegram.Update) error {
	started := time.Now()
	err := c.command.Execute(ctx, update)
	c.Logger.WithFields(logger.Fields{
		"command":  c.command.Name(),
		"duration": time.Since(started).String(),
	}).Debug("Command handled")
	return err
}

func (c *Command) Execute(ctx context.Context, update telegram.Update) error {
	return nil
}

func (c *Command) L(messageID string, data map[string]any) string {
	return c.Localizer.Localize(messageID, data)
}

// Reply sends text back to the chat of update, split into as many messages
// as Telegram's length limit requires. Only the first one quotes the user.
func (c *Command) Reply(ctx context.Context, update telegram.Update, text string) error {
	msg := update.Message
	replyTo := msg.MessageID
	for _, chunk := range telegram.ChunkMessage(text, telegram.MaxMessageLength) {
		if _, err := c.Tg.SendWithRetry(ctx, telegram.NewMessage(msg.Chat.ID, chunk, replyTo), sendRetries); err != nil {
			c.Logger.WithError(err).WithField("chat_id", msg.Chat.ID).Error("Failed to send message")
			return err
		}
		replyTo = 0
	}
	return nil
}

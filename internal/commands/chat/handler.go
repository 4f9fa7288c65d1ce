package chat

import (
	"context"
	"time"

	"github.com/muratoffalex/pablos/internal/app/di"
	"github.com/muratoffalex/pablos/internal/commands/base"
	"github.com/muratoffalex/pablos/internal/logger"
	"github.com/muratoffalex/pablos/internal/service"
	"github.com/muratoffalex/pablos/internal/telegram"
)

const CommandName = "chat"

// typingInterval keeps the indicator alive; Telegram clears it after ~5s.
const typingInterval = 4 * time.Second

// Command answers plain text messages. It is also reachable as /chat.
type Command struct {
	*base.Command
	maxInputLength int
}

func New(di *di.Container) *Command {
	cmd := &Command{maxInputLength: di.Cfg.Chat().MaxInputLength}
	cmd.Command = base.NewCommand(cmd, di)
	return cmd
}

func (c *Command) Name() string {
	return CommandName
}

func (c *Command) Execute(ctx context.Context, update telegram.Update) error {
	msg := update.Message
	text := msg.Text
	if msg.IsCommand() {
		text = msg.CommandArguments()
	}

	log := c.Logger.WithFields(logger.Fields{
		"user_id": msg.From.ID,
		"chat_id": msg.Chat.ID,
	})

	// /clear abandons this reply through the registered context.
	ctx, release := c.Requests.Register(ctx, msg.From.ID, msg.MessageID, CommandName)
	defer release()

	stopTyping := c.keepTyping(ctx, msg.Chat.ID)
	reply, err := c.ChatService.Reply(ctx, msg.From.ID, text)
	stopTyping()

	if err != nil {
		log.WithError(err).Warn("Reply finished with error")
	}
	if reply.Text == "" {
		return nil
	}

	if reply.Truncated && reply.Kind == service.ReplyCompletion {
		if err := c.Reply(ctx, update, c.L("chat.tooLong", map[string]any{"Max": c.maxInputLength})); err != nil {
			return err
		}
	}
	return c.Reply(ctx, update, reply.Text)
}

func (c *Command) keepTyping(ctx context.Context, chatID int64) func() {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	go func() {
		defer close(done)
		ticker := time.NewTicker(typingInterval)
		defer ticker.Stop()
		for {
			if err := c.Tg.SendChatAction(chatID, telegram.ActionTyping); err != nil {
				c.Logger.WithError(err).Debug("Failed to send typing action")
			}
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()

	return func() {
		cancel()
		<-done
	}
}

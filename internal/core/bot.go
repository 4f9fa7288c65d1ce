package core

import (
	"context"
	"regexp"
	"slices"
	"strings"
	"sync"

	"github.com/muratoffalex/pablos/internal/commands"
	"github.com/muratoffalex/pablos/internal/config"
	"github.com/muratoffalex/pablos/internal/database"
	"github.com/muratoffalex/pablos/internal/logger"
	"github.com/muratoffalex/pablos/internal/service"
	"github.com/muratoffalex/pablos/internal/telegram"
)

const privateChat = "private"

type Bot struct {
	commands       map[string]commands.Command
	defaultCommand commands.Command
	logger         logger.Logger
	db             database.Database
	tg             telegram.Client
	cfg            config.TelegramConfig
	localizer      *service.Localizer
	inflight       sync.WaitGroup
}

// NewBot accepts a nil db; users are then simply not recorded.
func NewBot(
	tg telegram.Client,
	logger logger.Logger,
	db database.Database,
	cfg config.TelegramConfig,
	localizer *service.Localizer,
) *Bot {
	return &Bot{
		commands:  make(map[string]commands.Command),
		tg:        tg,
		cfg:       cfg,
		logger:    logger,
		db:        db,
		localizer: localizer,
	}
}

// Start long-polls Telegram until ctx is done, then waits for the handlers
// already running.
func (b *Bot) Start(ctx context.Context) error {
	updates := b.tg.GetUpdatesChan(b.tg.NewUpdate(0, 60, 0))
	b.logger.WithField("commands", len(b.commands)).Info("Bot started")

	defer b.inflight.Wait()
	for {
		select {
		case <-ctx.Done():
			b.tg.StopReceivingUpdates()
			return ctx.Err()
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			b.HandleUpdate(ctx, update)
		}
	}
}

// HandleUpdate routes one update and runs the chosen command in its own
// goroutine so a slow completion never blocks polling.
func (b *Bot) HandleUpdate(ctx context.Context, update telegram.Update) {
	msg := update.Message
	if msg == nil || msg.From == nil {
		return
	}

	b.rememberUser(ctx, msg.From)

	if !b.cfg.IsUserAllowed(msg.From.ID) {
		b.logger.WithFields(logger.Fields{
			"user_id":  msg.From.ID,
			"username": msg.From.UserName,
			"chat_id":  msg.Chat.ID,
		}).Warn("Unauthorized access attempt")
		if msg.Chat.Type == privateChat {
			b.send(ctx, msg.Chat.ID, msg.MessageID, b.localizer.Localize("chat.notAllowed", nil))
		}
		return
	}

	cmd, ok := b.route(msg)
	if !ok {
		return
	}

	b.logger.WithFields(logger.Fields{
		"command":  cmd.Name(),
		"user_id":  msg.From.ID,
		"username": msg.From.UserName,
	}).Debug("Handling message")

	b.inflight.Add(1)
	go func(cmd commands.Command, update telegram.Update) {
		defer b.inflight.Done()
		if err := cmd.Handle(ctx, update); err != nil {
			b.logger.WithError(err).WithField("command", cmd.Name()).Error("Failed to handle command")
		}
	}(cmd, update)
}

// route picks the command for msg. Plain text goes to the default command
// in private chats; in groups only when the bot is mentioned or replied to.
func (b *Bot) route(msg *telegram.MessageOriginal) (commands.Command, bool) {
	text := msg.Text
	if strings.TrimSpace(text) == "" {
		return nil, false
	}

	botUsername := b.tg.Self().UserName

	if isCommand(text) {
		parts := strings.Fields(text)
		cmdParts := strings.Split(strings.TrimPrefix(parts[0], "/"), "@")
		if len(cmdParts) > 1 && !strings.EqualFold(cmdParts[1], botUsername) {
			return nil, false // addressed to another bot
		}
		name := strings.ToLower(cmdParts[0])
		for cmdName, cmd := range b.commands {
			if cmdName == name || slices.Contains(cmd.Aliases(), name) {
				return cmd, true
			}
		}
		return nil, false
	}

	if b.defaultCommand == nil {
		return nil, false
	}
	if msg.Chat.Type == privateChat {
		return b.defaultCommand, true
	}

	if b.containsBotMention(text, botUsername) {
		msg.Text = stripMention(text, botUsername)
		return b.defaultCommand, true
	}
	if msg.ReplyToMessage != nil && msg.ReplyToMessage.From != nil &&
		msg.ReplyToMessage.From.UserName != "" &&
		strings.EqualFold(msg.ReplyToMessage.From.UserName, botUsername) {
		return b.defaultCommand, true
	}
	return nil, false
}

func (b *Bot) rememberUser(ctx context.Context, from *telegram.UserOriginal) {
	if b.db == nil {
		return
	}

	user := database.User{
		ID:        from.ID,
		FirstName: from.FirstName,
		Username:  from.UserName,
	}
	stored, err := b.db.GetUser(ctx, user.ID)
	if err != nil {
		b.logger.WithError(err).Error("Error get user by id")
		return
	}
	if stored != nil && user.Equal(*stored) {
		return
	}
	if stored == nil {
		b.logger.WithField("user_id", user.ID).Info("Store new user")
	}
	if err := b.db.SaveUser(ctx, user); err != nil {
		b.logger.WithError(err).WithField("user_id", user.ID).Error("Error save user")
	}
}

func (b *Bot) send(ctx context.Context, chatID int64, replyTo int, text string) {
	if _, err := b.tg.SendWithRetry(ctx, telegram.NewMessage(chatID, text, replyTo), 1); err != nil {
		b.logger.WithError(err).Error("Failed to send message")
	}
}

func (b *Bot) RegisterCommand(cmd commands.Command) {
	if cmd == nil {
		b.logger.Error("Attempting to register nil command")
		return
	}

	name := cmd.Name()
	if name == "" {
		b.logger.Error("Attempting to register command with empty name")
		return
	}

	b.logger.WithFields(logger.Fields{
		"command": name,
	}).Debug("Registering command")

	b.commands[name] = cmd
}

// SetDefaultCommand registers cmd and makes it the handler for plain text.
func (b *Bot) SetDefaultCommand(cmd commands.Command) {
	b.RegisterCommand(cmd)
	b.defaultCommand = cmd
}

func (b *Bot) GetCommands() map[string]commands.Command {
	return b.commands
}

// Wait blocks until every dispatched handler has returned.
func (b *Bot) Wait() {
	b.inflight.Wait()
}

func isCommand(commandText string) bool {
	return strings.HasPrefix(commandText, "/")
}

func (b *Bot) containsBotMention(text string, botUsername string) bool {
	if botUsername == "" || !strings.Contains(text, "@") {
		return false
	}
	return strings.Contains(strings.ToLower(text), "@"+strings.ToLower(botUsername))
}

func stripMention(text, botUsername string) string {
	mention := regexp.MustCompile(`\s*(?i)@` + regexp.QuoteMeta(botUsername) + `\b`)
	return strings.TrimSpace(mention.ReplaceAllString(text, ""))
}

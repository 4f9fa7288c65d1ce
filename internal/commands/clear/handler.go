package clear

import (
	"context"

	"github.com/muratoffalex/pablos/internal/app/di"
	"github.com/muratoffalex/pablos/internal/commands/base"
	"github.com/muratoffalex/pablos/internal/telegram"
)

const CommandName = "clear"

type Command struct {
	*base.Command
}

func New(di *di.Container) *Command {
	cmd := &Command{}
	cmd.Command = base.NewCommand(cmd, di)
	return cmd
}

func (c *Command) Name() string {
	return CommandName
}

func (c *Command) Aliases() []string {
	return []string{"reset"}
}

// Execute abandons replies still being generated, forgets the conversation
// and leaves vent mode.
func (c *Command) Execute(ctx context.Context, update telegram.Update) error {
	userID := update.Message.From.ID
	if cancelled := c.Requests.CancelUser(userID); cancelled > 0 {
		c.Logger.WithField("user_id", userID).WithField("cancelled", cancelled).Debug("Abandoned pending replies")
	}
	if err := c.ChatService.Clear(ctx, userID); err != nil {
		c.Logger.WithError(err).WithField("user_id", userID).Error("Failed to clear history")
		return c.Reply(ctx, update, c.L("clear.failed", nil))
	}

	c.Logger.WithField("user_id", userID).Info("Cleared history")
	return c.Reply(ctx, update, c.L("clear.done", nil))
}

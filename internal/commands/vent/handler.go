package vent

import (
	"context"

	"github.com/muratoffalex/pablos/internal/app/di"
	"github.com/muratoffalex/pablos/internal/commands/base"
	"github.com/muratoffalex/pablos/internal/telegram"
)

const CommandName = "vent"

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
	return []string{"curhat"}
}

func (c *Command) Execute(ctx context.Context, update telegram.Update) error {
	userID := update.Message.From.ID
	c.ChatService.SetVentMode(userID, true)
	c.Logger.WithField("user_id", userID).Info("User entered vent mode")
	return c.Reply(ctx, update, c.L("vent.enabled", nil))
}

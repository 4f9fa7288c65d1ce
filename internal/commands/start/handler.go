package start

import (
	"context"

	"github.com/muratoffalex/pablos/internal/app/di"
	"github.com/muratoffalex/pablos/internal/commands/base"
	"github.com/muratoffalex/pablos/internal/logger"
	"github.com/muratoffalex/pablos/internal/telegram"
)

const CommandName = "start"

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

func (c *Command) Execute(ctx context.Context, update telegram.Update) error {
	user := update.Message.From
	c.Logger.WithFields(logger.Fields{
		"user_id":  user.ID,
		"username": user.UserName,
	}).Info("User started the bot")

	return c.Reply(ctx, update, c.L("start.welcome", map[string]any{"Name": user.FirstName}))
}

package help

import (
	"context"

	"github.com/muratoffalex/pablos/internal/app/di"
	"github.com/muratoffalex/pablos/internal/commands/base"
	"github.com/muratoffalex/pablos/internal/telegram"
)

const CommandName = "help"

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
	return c.Reply(ctx, update, c.L("help.text", nil))
}

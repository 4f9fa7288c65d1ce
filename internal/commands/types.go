package commands

import (
	"context"

	"github.com/muratoffalex/pablos/internal/telegram"
)

type Command interface {
	Name() string
	Aliases() []string
	Handle(ctx context.Context, update telegram.Update) error
	Execute(ctx context.Context, update telegram.Update) error
}

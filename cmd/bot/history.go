package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/muratoffalex/pablos/internal/app/di"
	"github.com/muratoffalex/pablos/internal/logger"
)

func newHistoryCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect or clear a user's conversation history",
	}

	cmd.AddCommand(
		newHistoryShowCmd(opts),
		newHistoryClearCmd(opts),
	)

	return cmd
}

func newHistoryShowCmd(opts *rootOptions) *cobra.Command {
	var (
		userID int64
		turns  int
	)

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the stored history of a user, oldest first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withCoreContainer(cmd.Context(), opts, func(c *di.Container) error {
				history, err := c.Memory.History(cmd.Context(), userID, turns)
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				_, _ = fmt.Fprintf(out, "user: %d\nbackend: %s\nturns: %d\n", userID, c.Memory.Backend(), len(history))
				for _, turn := range history {
					_, _ = fmt.Fprintf(out, "[%s] %s: %s\n", turn.At.Local().Format(time.DateTime), turn.Role, turn.Content)
				}
				return nil
			})
		},
	}
	cmd.Flags().Int64Var(&userID, "user", 0, "Telegram user id")
	cmd.Flags().IntVar(&turns, "turns", 0, "show only the most recent N turns (0 for all)")
	_ = cmd.MarkFlagRequired("user")

	return cmd
}

func newHistoryClearCmd(opts *rootOptions) *cobra.Command {
	var userID int64

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete the stored history of a user",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withCoreContainer(cmd.Context(), opts, func(c *di.Container) error {
				if err := c.Memory.Clear(cmd.Context(), userID); err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Cleared history of user %d (%s)\n", userID, c.Memory.Backend())
				return nil
			})
		},
	}
	cmd.Flags().Int64Var(&userID, "user", 0, "Telegram user id")
	_ = cmd.MarkFlagRequired("user")

	return cmd
}

// withCoreContainer opens the store the bot would use and closes it after fn.
func withCoreContainer(ctx context.Context, opts *rootOptions, fn func(*di.Container) error) error {
	cfg, err := opts.load()
	if err != nil {
		return err
	}

	c, err := di.NewCoreContainer(ctx, cfg, logger.NewLogrusLogger(cfg.Log()))
	if err != nil {
		return err
	}
	defer c.Close()

	return fn(c)
}

package main

import (
	"github.com/spf13/cobra"

	"github.com/muratoffalex/pablos/internal/config"
)

type rootOptions struct {
	configPath string
}

func (o *rootOptions) load() (*config.Config, error) {
	return config.Load(o.configPath)
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:           "pablos",
		Short:         "Pablos: a casual Telegram chat bot backed by OpenAI-compatible endpoints",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	rootCmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "path to a TOML config file")

	runCmd := newRunCmd(opts)
	// Running the binary without a subcommand starts the bot.
	rootCmd.RunE = runCmd.RunE

	rootCmd.AddCommand(
		runCmd,
		newHistoryCmd(opts),
		newEndpointsCmd(opts),
		newVersionCmd(),
	)

	return rootCmd
}

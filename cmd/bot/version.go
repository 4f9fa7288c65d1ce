package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, _ []string) error {
			v := version
			if v == "" {
				v = "dev"
			}
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "%s (built at: %s)\n", v, buildTime)
			return err
		},
	}
}

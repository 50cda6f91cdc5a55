package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newConfigCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration (secrets masked)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.config()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if ctx.loadedFrom != "" {
				fmt.Fprintf(out, "Config file: %s\n", ctx.loadedFrom)
			} else {
				fmt.Fprintln(out, "Config file: (none, defaults and environment only)")
			}

			summary := cfg.Summary()
			rows := make([][]string, len(summary))
			for i, kv := range summary {
				rows[i] = []string{kv[0], kv[1]}
			}
			fmt.Fprintln(out, renderTable([]string{"Key", "Value"}, rows))
			return nil
		},
	}
}

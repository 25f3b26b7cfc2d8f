package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"tracktap/internal/daemonrun"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the control panel in the foreground",
		Long:  "Serve the HTTP control panel on paths.api_bind until interrupted. This is what tracktapd runs.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			return daemonrun.Run(cmd.Context(), cfg, daemonrun.Options{
				LogLevel: ctx.logLevel(),
				Console:  cmd.ErrOrStderr(),
				Ready: func(addr string) {
					fmt.Fprintf(cmd.OutOrStdout(), "Control panel listening on http://%s\n", addr)
				},
			})
		},
	}
}

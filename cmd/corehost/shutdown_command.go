package main

import (
	"fmt"

	"github.com/lydakis/corehost/internal/ipc"
	"github.com/spf13/cobra"
)

func newShutdownCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "shutdown",
		Short: "Stop the running daemon",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := connectExistingFn()
			if err != nil {
				fmt.Fprintln(cmd.OutOrStdout(), "daemon is not running")
				return nil
			}
			defer client.Close()

			if _, err := roundTrip(client, &ipc.Request{Type: ipc.TypeShutdown}); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "shutting down")
			return nil
		},
	}
}

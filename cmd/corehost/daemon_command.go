package main

import (
	"github.com/lydakis/corehost/internal/daemon"
	"github.com/spf13/cobra"
)

// runDaemonFn starts the daemon in this process.
var runDaemonFn = daemon.Run

func newDaemonCommand(flags *rootFlags, use string, hidden bool) *cobra.Command {
	short := "Run the host daemon in the foreground"
	if hidden {
		short = "Run the host daemon (spawned by other commands)"
	}
	return &cobra.Command{
		Use:    use,
		Short:  short,
		Hidden: hidden,
		Args:   cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemonFn(daemon.Options{
				ConfigPath: flags.config,
				LogLevel:   flags.logLevel,
			})
		},
	}
}

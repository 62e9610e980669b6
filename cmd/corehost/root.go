package main

import (
	"os"

	"github.com/lydakis/corehost/internal/daemon"
	"github.com/lydakis/corehost/internal/ipc"
	"github.com/spf13/cobra"
)

// connectFn opens a session on the daemon, spawning it when needed.
var connectFn = daemon.Connect

// connectExistingFn opens a session only when a daemon already runs.
var connectExistingFn = daemon.ConnectExisting

type rootFlags struct {
	config   string
	logLevel string
}

func newRootCommand() *cobra.Command {
	flags := &rootFlags{}

	rootCmd := &cobra.Command{
		Use:           "corehost",
		Short:         "Host daemon between the desktop UI and the core process",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// A spawned daemon inherits the environment, so it reads the
			// same file.
			if flags.config != "" {
				return os.Setenv("COREHOST_CONFIG", flags.config)
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&flags.config, "config", "c", "", "Configuration file path")
	rootCmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "Daemon log level (debug, info, warn, error, silent)")

	rootCmd.AddCommand(newDaemonCommand(flags, "daemon", false))
	rootCmd.AddCommand(newDaemonCommand(flags, daemon.HiddenCommand, true))
	rootCmd.AddCommand(newCallCommand())
	rootCmd.AddCommand(newSubscribeCommand())
	rootCmd.AddCommand(newStatsCommand())
	rootCmd.AddCommand(newResetCommand())
	rootCmd.AddCommand(newShutdownCommand())
	rootCmd.AddCommand(newConfigCommand())

	return rootCmd
}

// roundTrip sends one request and returns the message of its response.
func roundTrip(client *ipc.Client, req *ipc.Request) (any, error) {
	f, err := client.Call(req, nil)
	if err != nil {
		return nil, err
	}
	if err := f.Err(); err != nil {
		return nil, err
	}
	return f.Message, nil
}

package main

import (
	"fmt"
	"os"

	"github.com/lydakis/corehost/internal/config"
	"github.com/lydakis/corehost/internal/paths"
	"github.com/spf13/cobra"
)

func newConfigCommand() *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration utilities",
	}

	configCmd.AddCommand(newConfigInitCommand())
	configCmd.AddCommand(newConfigValidateCommand())
	return configCmd
}

func newConfigInitCommand() *cobra.Command {
	var overwrite bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a configuration file with every default spelled out",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			target := paths.ConfigFile()
			if !overwrite {
				if _, err := os.Stat(target); err == nil {
					return fmt.Errorf("config file already exists at %s (use --overwrite to replace it)", target)
				} else if !os.IsNotExist(err) {
					return fmt.Errorf("checking config path: %w", err)
				}
			}

			cfg := &config.Config{}
			if overwrite {
				existing, err := config.LoadForEditFrom(target)
				if err != nil {
					return err
				}
				cfg = existing
			}
			config.FillDefaults(cfg)
			if err := config.Save(cfg); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote configuration to %s\n", target)
			return nil
		},
	}

	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Fill in missing defaults of an existing file")
	return cmd
}

func newConfigValidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check the configuration file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			target := paths.ConfigFile()
			cfg, err := config.LoadForEditFrom(target)
			if err != nil {
				return err
			}
			if err := config.ValidateForCurrentEnv(cfg); err != nil {
				return fmt.Errorf("invalid config %s:\n%w", target, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s is valid\n", target)
			return nil
		},
	}
}

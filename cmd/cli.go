// SPDX-License-Identifier: MIT
package cmd

import (
	"fmt"

	"dspctl/internal/config"
	"dspctl/internal/device"
	applog "dspctl/internal/log"
	"dspctl/pkg/build"

	"github.com/spf13/cobra"
)

// options are the global flags. Set flags override the configuration file.
type options struct {
	configPath string
	settings   string
	backend    string
	verbose    bool

	cfg *config.Config
}

// Execute runs the command line.
func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	buildInfo := build.GetBuildInfo()

	rootCmd := &cobra.Command{
		Use:           buildInfo.Name,
		Short:         build.Description,
		Version:       buildInfo.Version,
		SilenceErrors: true,
		SilenceUsage:  true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd:   true,
			DisableDescriptions: true,
			DisableNoDescFlag:   true,
			HiddenDefaultCmd:    true,
		},
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.load(cmd)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemon(cmd, opts)
		},
	}

	// Display help message
	rootCmd.SetHelpCommand(&cobra.Command{Hidden: true})

	rootCmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "",
		"Configuration file. Defaults to ./config.yaml when present")
	rootCmd.PersistentFlags().StringVarP(&opts.settings, "settings", "s", "",
		"Preference file, overrides settings.path")
	rootCmd.PersistentFlags().StringVarP(&opts.backend, "backend", "b", "",
		"Engine backend, \"embedded\" or \"remote\"")
	rootCmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false,
		"Show verbose output")

	rootCmd.AddCommand(
		newSyncCmd(opts),
		newSetCmd(opts),
		newEndpointCmd(opts),
		newDevicesCmd(),
		newVersionCmd(),
	)
	return rootCmd
}

// load reads the configuration and applies the global flags.
func (o *options) load(cmd *cobra.Command) error {
	cfg, err := config.LoadConfig(o.configPath)
	if err != nil {
		return err
	}
	if o.settings != "" {
		cfg.Settings.Path = o.settings
	}
	if o.backend != "" {
		cfg.Engine.Backend = o.backend
	}
	if o.verbose || cfg.Debug {
		cfg.LogLevel = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	level, _ := applog.ParseLevel(cfg.LogLevel)
	applog.SetLevel(level)
	applog.SetOutput(cmd.ErrOrStderr())
	o.cfg = cfg
	return nil
}

func newDevicesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "devices",
		Short: "List available audio devices",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := device.Initialize(); err != nil {
				return err
			}
			defer device.Terminate()
			devices, err := device.HostDevices()
			if err != nil {
				return err
			}
			device.ListDevices(cmd.OutOrStdout(), devices)
			return nil
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return nil
		},
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), build.GetBuildInfo())
		},
	}
}

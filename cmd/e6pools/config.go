package main

import (
	"fmt"
	"os"

	"e6pools/pkg/auth"
	"e6pools/pkg/config"
	"e6pools/pkg/ui"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration files",
	Long: `Manage e6pools configuration files.

Configuration is loaded from, highest priority first:
  - Command line flags
  - Environment variables (E621_*, PPTR_*, E6POOLS_*), including .env
  - Configuration file (.e6pools.yaml or ~/.config/e6pools/config.yaml)
  - Defaults`,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a configuration file with the defaults",
	Long: `Write a configuration file holding every option at its default value.

The file is created as .e6pools.yaml in the current directory unless a
different path is given with --config.`,
	Args: cobra.NoArgs,
	RunE: runConfigInit,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Args:  cobra.NoArgs,
	RunE:  runConfigShow,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration",
	Args:  cobra.NoArgs,
	RunE:  runConfigValidate,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd, configShowCmd, configValidateCmd)
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := configFile
	if path == "" {
		path = ".e6pools.yaml"
	}
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("configuration file already exists: %s", path)
	}

	if err := config.DefaultConfig().Save(path); err != nil {
		return err
	}
	ui.PrintSuccess("Configuration file created: " + path)
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile, nil)
	if err != nil {
		return err
	}

	display := *cfg
	display.Credentials.Password = auth.MaskSecret(display.Credentials.Password)
	data, err := yaml.Marshal(&display)
	if err != nil {
		return fmt.Errorf("failed to format configuration: %w", err)
	}

	ui.PrintHighlight("Current Configuration")
	fmt.Fprint(cmd.OutOrStdout(), string(data))
	return nil
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile, nil)
	if err != nil {
		return err
	}

	if !cfg.HasCredentials() {
		ui.PrintWarning("No credentials configured, stored accounts or anonymous access will be used")
	}
	for _, dir := range []string{cfg.Paths.DestDir, cfg.Paths.CacheDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("cannot create %s: %w", dir, err)
		}
	}

	ui.PrintSuccess("Configuration is valid")
	ui.PrintInfo("Site", cfg.Site.URL)
	ui.PrintInfo("Destination", cfg.Paths.DestDir)
	ui.PrintInfo("Cache", cfg.Paths.CacheDir)
	ui.PrintInfo("Workers", fmt.Sprint(cfg.Queue.Workers))
	return nil
}

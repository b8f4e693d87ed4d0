package main

import (
	"fmt"
	"os"

	"github.com/dockpack/dockpack/internal/config"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration",
		Long: `Manage dockpack configuration. Subcommands allow viewing the effective
configuration and writing a starter config file.`,
		Example: `  dockpack config show
  dockpack config init`,
	}

	cmd.AddCommand(
		newConfigShowCmd(),
		newConfigInitCmd(),
	)

	return cmd
}

func newConfigShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Display current configuration",
		Long: `Display the effective configuration in YAML format, after merging the
config file with command-line overrides.`,
		Example: `  dockpack config show
  dockpack config show --config /etc/dockpack/dockpack.yaml`,
		RunE: configShowRun,
	}

	return cmd
}

var configInitPath string

func newConfigInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a starter config file with defaults",
		Long: `Write a config file populated with the default settings. Refuses to
overwrite an existing file.`,
		Example: `  dockpack config init
  dockpack config init --path /etc/dockpack/dockpack.yaml`,
		RunE: configInitRun,
	}

	cmd.Flags().StringVar(&configInitPath, "path", "dockpack.yaml", "where to write the config file")

	return cmd
}

func configInitRun(cmd *cobra.Command, args []string) error {
	if _, err := os.Stat(configInitPath); err == nil {
		return fmt.Errorf("config file %s already exists", configInitPath)
	}

	data, err := yaml.Marshal(config.DefaultConfig())
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(configInitPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	fmt.Printf("wrote %s\n", configInitPath)
	return nil
}

func configShowRun(cmd *cobra.Command, args []string) error {
	if globalCfg == nil {
		return fmt.Errorf("config not loaded")
	}

	data, err := yaml.Marshal(globalCfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	fmt.Print(string(data))
	return nil
}

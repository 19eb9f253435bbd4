// Package configcmd provides the config parent command.
package configcmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/mxpack/mxpack/internal/config"
)

// ConfigCmd is the parent command for configuration subcommands.
var ConfigCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage mxpack configuration",
	Long: "Manage mxpack configuration.\n\n" +
		"Configuration is stored in a YAML file located at " +
		"~/.config/mxpack/config.yaml by default; every key can also be set " +
		"through MXPACK_-prefixed environment variables.",
}

func init() {
	ConfigCmd.AddCommand(showCmd)
}

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Display the effective configuration",
	Long: "Display the effective configuration.\n\n" +
		"Shows the merged configuration with defaults, config file values, and " +
		"environment overrides applied, rendered as YAML.",
	Example: `  # Show effective configuration
  mxpack config show`,
	PreRunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		return nil
	},
	RunE: runShow,
}

func runShow(cmd *cobra.Command, args []string) error {
	if path := config.ConfigFilePath(); path != "" {
		fmt.Fprintf(cmd.OutOrStdout(), "# loaded from %s\n", path)
	} else {
		fmt.Fprintln(cmd.OutOrStdout(), "# no config file found; showing defaults and environment overrides")
	}

	out, err := yaml.Marshal(config.AllSettings())
	if err != nil {
		return fmt.Errorf("failed to render config; %w", err)
	}
	fmt.Fprint(cmd.OutOrStdout(), string(out))
	return nil
}

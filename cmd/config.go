package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/grovetools/lore/cli"
	"github.com/grovetools/lore/config"
	"github.com/grovetools/lore/errors"
)

func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect lore configuration",
	}
	cmd.AddCommand(newConfigShowCmd())
	cmd.AddCommand(newConfigValidateCmd())
	cmd.AddCommand(cli.NewDocumentCommand("schema", "Print the JSON schema of lore.yml", config.GenerateSchema))
	return cmd
}

func newConfigShowCmd() *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Display the effective configuration",
		Long: `Shows the configuration the daemon would run with, after merging
lore.override.* files and applying defaults:
1. --config, $LORE_CONFIG, or lore.{yml,yaml,toml} in the config directory
2. Override files (lore.override.*) next to it
3. Built-in defaults for anything unset`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cli.LoadConfig(cmd)
			if err != nil {
				return err
			}
			if cli.GetOptions(cmd).JSONOutput {
				return cli.PrintJSON(cmd.OutOrStdout(), cfg)
			}

			out := cmd.OutOrStdout()
			if path, err := config.FindConfigFile(); err == nil {
				fmt.Fprintf(out, "# Source: %s\n", path)
			} else {
				fmt.Fprintln(out, "# Source: built-in defaults")
			}
			data, err := config.Marshal(cfg, config.Format(format))
			if err != nil {
				return fmt.Errorf("failed to render configuration: %w", err)
			}
			_, err = out.Write(data)
			return err
		},
	}
	cmd.Flags().StringVar(&format, "format", string(config.FormatYAML), "Output format: yaml, toml")
	return cmd
}

func newConfigValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate [file]",
		Short: "Check a config file against the schema",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if len(args) == 1 {
				path = args[0]
			} else {
				found, err := config.FindConfigFile()
				if err != nil {
					return err
				}
				path = found
			}
			if _, err := os.Stat(path); err != nil {
				return errors.ConfigNotFound(path)
			}
			if _, err := config.LoadWithOverrides(path, cli.GetLogger(cmd).Logger); err != nil {
				return err
			}
			return report(cmd, map[string]interface{}{"valid": true, "path": path}, path+" is valid")
		},
	}
}

package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/grovetools/lore/config"
	"github.com/grovetools/lore/logging"
	"github.com/grovetools/lore/util/pathutil"
)

// CommandOptions holds common options for lore commands
type CommandOptions struct {
	ConfigFile string
	Verbose    bool
	JSONOutput bool
}

// NewStandardCommand creates a new command with standard lore flags
func NewStandardCommand(use, short string) *cobra.Command {
	cmd := &cobra.Command{
		Use:           use,
		Short:         short,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return InitConfig(GetOptions(cmd).ConfigFile)
		},
	}

	// Standard flags for all lore commands
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")
	cmd.PersistentFlags().Bool("json", false, "Output in JSON format")
	cmd.PersistentFlags().StringP("config", "c", "", "Path to lore.yml config file")

	// Apply styled help
	SetStyledHelp(cmd)

	return cmd
}

// GetLogger returns the CLI logger, at debug level when --verbose is set.
func GetLogger(cmd *cobra.Command) *logrus.Entry {
	entry := logging.NewLogger("lore-cli")

	verbose, _ := cmd.Flags().GetBool("verbose")
	if verbose {
		entry.Logger.SetLevel(logrus.DebugLevel)
	}
	return entry
}

// GetOptions extracts common options from a command
func GetOptions(cmd *cobra.Command) CommandOptions {
	configFile, _ := cmd.Flags().GetString("config")
	verbose, _ := cmd.Flags().GetBool("verbose")
	jsonOutput, _ := cmd.Flags().GetBool("json")

	return CommandOptions{
		ConfigFile: configFile,
		Verbose:    verbose,
		JSONOutput: jsonOutput,
	}
}

// InitConfig points config loading at configFile when one was given on the
// command line. Loggers and commands then see the same file through
// config.LoadDefault.
func InitConfig(configFile string) error {
	if configFile == "" {
		return nil
	}
	expanded, err := pathutil.Expand(configFile)
	if err != nil {
		return err
	}
	if _, err := os.Stat(expanded); err != nil {
		return fmt.Errorf("config file %s: %w", expanded, err)
	}
	logging.Reset()
	return os.Setenv(config.EnvConfigPath, expanded)
}

// LoadConfig loads the configuration selected by --config, $LORE_CONFIG or
// the config directory, with defaults when none exists.
func LoadConfig(cmd *cobra.Command) (*config.Config, error) {
	return config.LoadDefaultWithLogger(GetLogger(cmd).Logger)
}

// PrintJSON writes v as indented JSON followed by a newline.
func PrintJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// PrintJSONLine writes v as a single line of JSON.
func PrintJSONLine(w io.Writer, v interface{}) error {
	return json.NewEncoder(w).Encode(v)
}

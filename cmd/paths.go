package cmd

import (
	"github.com/spf13/cobra"

	"github.com/grovetools/lore/cli"
	"github.com/grovetools/lore/pkg/paths"
)

// PathsOutput represents the locations lore uses.
type PathsOutput struct {
	WorkspaceRoot string `json:"workspace_root"`
	ConfigDir     string `json:"config_dir"`
	StateDir      string `json:"state_dir"`
	LogDir        string `json:"log_dir"`
	RuntimeDir    string `json:"runtime_dir"`
	Socket        string `json:"socket"`
	PidFile       string `json:"pid_file"`
}

func NewPathsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "paths",
		Short: "Print the paths used by lore",
		Long: `Print the paths used by lore.

This command outputs the paths in JSON format, making it easy
to parse from scripts and other tools.

- workspace_root: The workspace ($LORE_HOME, workspace.root, or ~/.lore)
- config_dir: Configuration files (lore.yml)
- state_dir: Daemon state (pid file, logs)
- log_dir: Daily log files per component
- runtime_dir: The daemon socket
- socket / pid_file: The effective daemon socket and pid file`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cli.LoadConfig(cmd)
			if err != nil {
				return err
			}
			return cli.PrintJSON(cmd.OutOrStdout(), PathsOutput{
				WorkspaceRoot: cfg.Workspace.Root,
				ConfigDir:     paths.ConfigDir(),
				StateDir:      paths.StateDir(),
				LogDir:        paths.LogDir(),
				RuntimeDir:    paths.RuntimeDir(),
				Socket:        cfg.Server.Socket,
				PidFile:       paths.PidFilePath(),
			})
		},
	}

	return cmd
}

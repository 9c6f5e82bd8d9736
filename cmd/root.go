// Package cmd implements the lore command line.
package cmd

import (
	"github.com/spf13/cobra"

	"github.com/grovetools/lore/cli"
	"github.com/grovetools/lore/config"
	"github.com/grovetools/lore/pkg/daemon"
	"github.com/grovetools/lore/pkg/profiling"
	"github.com/grovetools/lore/version"
)

// NewRootCmd assembles the lore command tree.
func NewRootCmd() *cobra.Command {
	root := cli.NewStandardCommand("lore", "Local workspace file layer and change-notification daemon")
	root.Long = `lore keeps a directory tree of notes, agent definitions and run output
under a single workspace root. Paths are always relative to that root.

Commands talk to the daemon over its unix socket when it is running
('lore serve') and operate on the workspace directly otherwise.

Examples:
  # Start the daemon in the foreground
  lore serve

  # List the workspace recursively
  lore ls -r

  # Write a note, creating parent directories
  lore write knowledge/today.md "# Today"

  # Follow change notifications
  lore watch`
	cli.SetVersionTemplate(root, version.GetInfo())

	profiler := profiling.NewCobraProfiler()
	profiler.AddFlags(root)
	profiler.Wrap(root)

	root.AddCommand(NewServeCmd())
	root.AddCommand(NewStopCmd())
	root.AddCommand(NewStatusCmd())
	for _, c := range newWorkspaceCmds() {
		root.AddCommand(c)
	}
	root.AddCommand(NewWatchCmd())
	root.AddCommand(NewLogsCmd())
	root.AddCommand(NewPathsCmd())
	root.AddCommand(NewConfigCmd())
	root.AddCommand(NewIPCCmd())
	root.AddCommand(cli.NewVersionCommand("lore"))

	cli.ApplyStyledHelpRecursive(root)
	return root
}

// openClient connects to the daemon when it is running and falls back to
// the workspace on disk otherwise.
func openClient(cmd *cobra.Command) (daemon.Client, *config.Config, error) {
	defer profiling.Start("open client").Stop()

	cfg, err := cli.LoadConfig(cmd)
	if err != nil {
		return nil, nil, err
	}
	client, err := daemon.New(cfg.Server.Socket, cfg.Workspace.Root)
	if err != nil {
		return nil, nil, err
	}
	_, remote := client.(*daemon.RemoteClient)
	cli.GetLogger(cmd).WithField("remote", remote).Debug("Opened workspace client")
	return client, cfg, nil
}

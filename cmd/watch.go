package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/grovetools/lore/cli"
	"github.com/grovetools/lore/errors"
	"github.com/grovetools/lore/internal/daemon/bridge"
	"github.com/grovetools/lore/logging"
	"github.com/grovetools/lore/pkg/daemon"
	"github.com/grovetools/lore/pkg/models"
)

// NewWatchCmd returns the command that streams change events.
func NewWatchCmd() *cobra.Command {
	var useIPC bool
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Stream workspace change events",
		Long: `Print change events from the running daemon until interrupted. Events arrive
over Server-Sent Events by default, or over the IPC bridge with --ipc.
With --json each event is printed as one JSON line.

Examples:
  lore watch
  lore watch --ipc --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cli.LoadConfig(cmd)
			if err != nil {
				return err
			}
			if !daemon.Reachable(cfg.Server.Socket) {
				return errors.InvalidInput("the daemon is not running; start it with 'lore serve'").
					WithDetail("socket", cfg.Server.Socket)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			var events <-chan models.ChangeEvent
			if useIPC {
				client, err := bridge.DialUnix(ctx, cfg.Server.Socket)
				if err != nil {
					return err
				}
				defer client.Close()
				events = client.Changes()
			} else {
				client, err := daemon.NewRemoteClient(cfg.Server.Socket)
				if err != nil {
					return err
				}
				defer client.Close()
				if events, err = client.StreamChanges(ctx); err != nil {
					return err
				}
			}

			cli.GetLogger(cmd).WithField("ipc", useIPC).Debug("Watching for changes")
			return printEvents(ctx, cmd.OutOrStdout(), events, cli.GetOptions(cmd).JSONOutput)
		},
	}
	cmd.Flags().BoolVar(&useIPC, "ipc", false, "Receive events over the websocket IPC bridge")
	return cmd
}

// printEvents writes events until the channel closes or ctx is done.
func printEvents(ctx context.Context, w io.Writer, events <-chan models.ChangeEvent, asJSON bool) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("connection to the daemon was lost")
			}
			if asJSON {
				data, err := json.Marshal(ev)
				if err != nil {
					return err
				}
				fmt.Fprintln(w, string(data))
				continue
			}
			fmt.Fprintln(w, formatEvent(ev))
		}
	}
}

func formatEvent(ev models.ChangeEvent) string {
	switch e := ev.(type) {
	case models.Created:
		return fmt.Sprintf("+ %s %s", e.Kind, e.Path)
	case models.Deleted:
		return fmt.Sprintf("- %s %s", e.Kind, e.Path)
	case models.Changed:
		return fmt.Sprintf("%s %s", logging.IconChange, e.Path)
	case models.BulkChanged:
		return fmt.Sprintf("%s %s", logging.IconChange, strings.Join(e.Paths, " "))
	}
	return fmt.Sprintf("%s %s", ev.Type(), strings.Join(ev.AffectedPaths(), " "))
}

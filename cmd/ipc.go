package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/grovetools/lore/cli"
	"github.com/grovetools/lore/errors"
	"github.com/grovetools/lore/internal/daemon/bridge"
)

// NewIPCCmd groups tools for the daemon's websocket IPC bridge.
func NewIPCCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ipc",
		Short: "Inspect and call the IPC bridge",
	}
	cmd.AddCommand(newIPCChannelsCmd())
	cmd.AddCommand(newIPCSchemaCmd())
	cmd.AddCommand(newIPCCallCmd())
	return cmd
}

func newIPCChannelsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "channels",
		Short: "List request channels",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cli.GetOptions(cmd).JSONOutput {
				return cli.PrintJSON(cmd.OutOrStdout(), bridge.Channels())
			}
			for _, name := range bridge.Channels() {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s (push)\n", bridge.ChannelDidChange)
			return nil
		},
	}
}

func newIPCSchemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schema <channel>",
		Short: "Print the JSON schema a channel's payload must satisfy",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data := bridge.Schema(args[0])
			if data == nil {
				return errors.InvalidInput(fmt.Sprintf("unknown channel %q", args[0])).WithDetail("channel", args[0])
			}
			_, err := fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return err
		},
	}
}

func newIPCCallCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "call <channel> [payload]",
		Short: "Send one request over the bridge and print the result",
		Long: `Send a request frame to the running daemon and print the result as JSON.
The payload is a JSON object; it defaults to {}.

Examples:
  lore ipc call workspace:getRoot
  lore ipc call workspace:readdir '{"path":"knowledge","recursive":true}'`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			payload := json.RawMessage(`{}`)
			if len(args) == 2 {
				if !json.Valid([]byte(args[1])) {
					return errors.InvalidInput("payload is not valid JSON")
				}
				payload = json.RawMessage(args[1])
			}

			cfg, err := cli.LoadConfig(cmd)
			if err != nil {
				return err
			}
			client, err := bridge.DialUnix(cmd.Context(), cfg.Server.Socket)
			if err != nil {
				return fmt.Errorf("failed to reach the daemon at %s: %w", cfg.Server.Socket, err)
			}
			defer client.Close()

			var result json.RawMessage
			if err := client.Call(cmd.Context(), args[0], payload, &result); err != nil {
				return err
			}
			var pretty interface{}
			if err := json.Unmarshal(result, &pretty); err != nil {
				return err
			}
			return cli.PrintJSON(cmd.OutOrStdout(), pretty)
		},
	}
}

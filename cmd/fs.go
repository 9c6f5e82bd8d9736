package cmd

import (
	"encoding/base64"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/grovetools/lore/cli"
	"github.com/grovetools/lore/errors"
	"github.com/grovetools/lore/logging"
	"github.com/grovetools/lore/pkg/daemon"
	"github.com/grovetools/lore/pkg/models"
	"github.com/grovetools/lore/pkg/profiling"
	"github.com/grovetools/lore/pkg/workspace"
)

func newWorkspaceCmds() []*cobra.Command {
	return []*cobra.Command{
		newRootPathCmd(),
		newLsCmd(),
		newCatCmd(),
		newWriteCmd(),
		newMkdirCmd(),
		newMvCmd(),
		newRmCmd(),
		newStatCmd(),
		newExistsCmd(),
	}
}

// withClient wraps a command body with client setup and teardown.
func withClient(fn func(cmd *cobra.Command, args []string, client daemon.Client) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		client, _, err := openClient(cmd)
		if err != nil {
			return err
		}
		defer client.Close()

		defer profiling.Start(cmd.Name()).Stop()
		return fn(cmd, args, client)
	}
}

// report prints a success line, or result as JSON under --json.
func report(cmd *cobra.Command, result interface{}, message string) error {
	if cli.GetOptions(cmd).JSONOutput {
		return cli.PrintJSON(cmd.OutOrStdout(), result)
	}
	logging.NewPrettyLogger().WithWriter(cmd.ErrOrStderr()).Success(message)
	return nil
}

type okResult struct {
	OK bool `json:"ok"`
}

func newRootPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "root",
		Short: "Print the workspace root",
		Args:  cobra.NoArgs,
		RunE: withClient(func(cmd *cobra.Command, args []string, client daemon.Client) error {
			root, err := client.Root(cmd.Context())
			if err != nil {
				return err
			}
			if cli.GetOptions(cmd).JSONOutput {
				return cli.PrintJSON(cmd.OutOrStdout(), map[string]string{"root": root})
			}
			fmt.Fprintln(cmd.OutOrStdout(), root)
			return nil
		}),
	}
}

func newLsCmd() *cobra.Command {
	var recursive bool
	cmd := &cobra.Command{
		Use:   "ls [path]",
		Short: "List a workspace directory",
		Long: `List the children of a directory. Without a path the workspace root is listed.
Directories are printed with a trailing slash.

Examples:
  lore ls
  lore ls knowledge -r`,
		Args: cobra.MaximumNArgs(1),
		RunE: withClient(func(cmd *cobra.Command, args []string, client daemon.Client) error {
			path := ""
			if len(args) == 1 {
				path = args[0]
			}
			entries, err := client.ReadDir(cmd.Context(), path, workspace.ReadDirOptions{Recursive: recursive})
			if err != nil {
				return err
			}
			if cli.GetOptions(cmd).JSONOutput {
				if entries == nil {
					entries = []workspace.DirEntry{}
				}
				return cli.PrintJSON(cmd.OutOrStdout(), entries)
			}
			out := cmd.OutOrStdout()
			for _, e := range entries {
				name := e.Name
				if recursive {
					name = e.Path
				}
				if e.Kind == models.KindDir {
					name += "/"
				}
				fmt.Fprintln(out, name)
			}
			return nil
		}),
	}
	cmd.Flags().BoolVarP(&recursive, "recursive", "r", false, "List all descendants")
	return cmd
}

func newCatCmd() *cobra.Command {
	var asBase64 bool
	cmd := &cobra.Command{
		Use:   "cat <path>",
		Short: "Print a file's contents",
		Args:  cobra.ExactArgs(1),
		RunE: withClient(func(cmd *cobra.Command, args []string, client daemon.Client) error {
			encoding := workspace.EncodingUTF8
			if asBase64 {
				encoding = workspace.EncodingBase64
			}
			res, err := client.ReadFile(cmd.Context(), args[0], encoding)
			if err != nil {
				return err
			}
			if cli.GetOptions(cmd).JSONOutput {
				return cli.PrintJSON(cmd.OutOrStdout(), res)
			}
			if asBase64 {
				_, err = fmt.Fprintln(cmd.OutOrStdout(), res.Data)
				return err
			}
			_, err = io.WriteString(cmd.OutOrStdout(), res.Data)
			return err
		}),
	}
	cmd.Flags().BoolVar(&asBase64, "base64", false, "Print the contents base64-encoded")
	return cmd
}

func newWriteCmd() *cobra.Command {
	var (
		asBase64    bool
		noMkdirp    bool
		expectMtime string
	)
	cmd := &cobra.Command{
		Use:   "write <path> [data|-]",
		Short: "Create or overwrite a file",
		Long: `Write data to a file, creating missing parent directories unless --no-mkdirp is set.
Without data, or with "-", the contents are read from stdin.

With --base64 the data is base64 text and is decoded before writing.
--expect-mtime makes the write conditional: it fails with CONFLICT unless the
file exists and still has that modification time.

Examples:
  lore write knowledge/todo.md "- ship it"
  cat report.pdf | lore write runs/report.pdf
  lore write agents/bot.yml - --expect-mtime 2024-05-01T10:00:00Z < bot.yml`,
		Args: cobra.RangeArgs(1, 2),
		RunE: withClient(func(cmd *cobra.Command, args []string, client daemon.Client) error {
			opts := workspace.WriteOptions{NoMkdirp: noMkdirp}
			if expectMtime != "" {
				t, err := time.Parse(time.RFC3339Nano, expectMtime)
				if err != nil {
					return errors.InvalidInput(fmt.Sprintf("--expect-mtime must be RFC 3339, got %q", expectMtime))
				}
				opts.ExpectedMtime = &t
			}

			data, encoding, err := writeData(cmd.InOrStdin(), args[1:], asBase64)
			if err != nil {
				return err
			}
			opts.Encoding = encoding

			res, err := client.WriteFile(cmd.Context(), args[0], data, opts)
			if err != nil {
				return err
			}
			return report(cmd, res, fmt.Sprintf("Wrote %d bytes to %s", res.BytesWritten, args[0]))
		}),
	}
	cmd.Flags().BoolVar(&asBase64, "base64", false, "Data is base64-encoded")
	cmd.Flags().BoolVar(&noMkdirp, "no-mkdirp", false, "Fail instead of creating missing parent directories")
	cmd.Flags().StringVar(&expectMtime, "expect-mtime", "", "Only write if the file's mtime equals this RFC 3339 time")
	return cmd
}

// writeData picks the payload of a write from the argument or stdin. Raw
// stdin is sent base64-encoded so binary content survives the transport.
func writeData(stdin io.Reader, args []string, asBase64 bool) (string, workspace.Encoding, error) {
	encoding := workspace.EncodingUTF8
	if asBase64 {
		encoding = workspace.EncodingBase64
	}
	if len(args) == 1 && args[0] != "-" {
		return args[0], encoding, nil
	}

	raw, err := io.ReadAll(stdin)
	if err != nil {
		return "", "", fmt.Errorf("failed to read stdin: %w", err)
	}
	if asBase64 {
		return strings.TrimSpace(string(raw)), encoding, nil
	}
	return base64.StdEncoding.EncodeToString(raw), workspace.EncodingBase64, nil
}

func newMkdirCmd() *cobra.Command {
	var parents bool
	cmd := &cobra.Command{
		Use:   "mkdir <path>",
		Short: "Create a directory",
		Args:  cobra.ExactArgs(1),
		RunE: withClient(func(cmd *cobra.Command, args []string, client daemon.Client) error {
			if err := client.Mkdir(cmd.Context(), args[0], parents); err != nil {
				return err
			}
			return report(cmd, okResult{OK: true}, "Created "+args[0])
		}),
	}
	cmd.Flags().BoolVarP(&parents, "parents", "p", false, "Create missing parents; an existing directory is not an error")
	return cmd
}

func newMvCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "mv <from> <to>",
		Short: "Move or rename a file or directory",
		Args:  cobra.ExactArgs(2),
		RunE: withClient(func(cmd *cobra.Command, args []string, client daemon.Client) error {
			if err := client.Rename(cmd.Context(), args[0], args[1], force); err != nil {
				return err
			}
			return report(cmd, okResult{OK: true}, fmt.Sprintf("Moved %s to %s", args[0], args[1]))
		}),
	}
	cmd.Flags().BoolVarP(&force, "force", "f", false, "Replace an existing destination")
	return cmd
}

func newRmCmd() *cobra.Command {
	var recursive bool
	cmd := &cobra.Command{
		Use:   "rm <path>",
		Short: "Remove a file or directory",
		Args:  cobra.ExactArgs(1),
		RunE: withClient(func(cmd *cobra.Command, args []string, client daemon.Client) error {
			if err := client.Remove(cmd.Context(), args[0], workspace.RemoveOptions{Recursive: recursive}); err != nil {
				return err
			}
			return report(cmd, okResult{OK: true}, "Removed "+args[0])
		}),
	}
	cmd.Flags().BoolVarP(&recursive, "recursive", "r", false, "Remove directories and their contents")
	return cmd
}

func newStatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stat <path>",
		Short: "Show file metadata",
		Args:  cobra.ExactArgs(1),
		RunE: withClient(func(cmd *cobra.Command, args []string, client daemon.Client) error {
			st, err := client.Stat(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if cli.GetOptions(cmd).JSONOutput {
				return cli.PrintJSON(cmd.OutOrStdout(), st)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Path:    %s\n", args[0])
			fmt.Fprintf(out, "Kind:    %s\n", st.Kind)
			fmt.Fprintf(out, "Size:    %d\n", st.Size)
			fmt.Fprintf(out, "Mode:    %s\n", st.Mode)
			fmt.Fprintf(out, "Mtime:   %s\n", st.Mtime.Format(time.RFC3339Nano))
			fmt.Fprintf(out, "Ctime:   %s\n", st.Ctime.Format(time.RFC3339Nano))
			if st.IsSymlink {
				fmt.Fprintln(out, "Symlink: yes")
			}
			return nil
		}),
	}
}

func newExistsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "exists <path>",
		Short: "Report whether a path exists",
		Args:  cobra.ExactArgs(1),
		RunE: withClient(func(cmd *cobra.Command, args []string, client daemon.Client) error {
			exists, err := client.Exists(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if cli.GetOptions(cmd).JSONOutput {
				return cli.PrintJSON(cmd.OutOrStdout(), map[string]bool{"exists": exists})
			}
			fmt.Fprintln(cmd.OutOrStdout(), exists)
			return nil
		}),
	}
}

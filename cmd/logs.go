package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/hpcloud/tail"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/grovetools/lore/cli"
	"github.com/grovetools/lore/config"
	"github.com/grovetools/lore/pkg/logging/logutil"
)

// TailedLine is one line of a component's log output.
type TailedLine struct {
	Component string `json:"component"`
	Line      string `json:"line"`
}

// NewLogsCmd creates the `logs` command.
func NewLogsCmd() *cobra.Command {
	var (
		follow    bool
		lines     int
		component string
	)
	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show the daemon's log",
		Long: `Print the end of the latest log file written by a lore component and
optionally keep following it.

Examples:
  # Follow the daemon log
  lore logs -f

  # Last 200 lines of the watcher log as JSON Lines
  lore logs --component watcher -n 200 --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := cli.GetLogger(cmd)
			cfg, err := cli.LoadConfig(cmd)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			logFile, logsDir, err := logutil.FindLogFile(cfg, component)
			if err != nil {
				if !follow {
					return err
				}
				// Wait for the component to start writing
				logger.WithField("logs_dir", logsDir).Debug("Waiting for log files in directory")
				if logFile, err = waitForLogFile(ctx, cfg, component); err != nil {
					return nil
				}
			}
			logger.WithField("log_file", logFile).Debug("Reading log file")

			emit := lineWriter(cmd.OutOrStdout(), component, cli.GetOptions(cmd).JSONOutput)
			offset, err := printLastLines(logFile, lines, emit)
			if err != nil {
				return err
			}
			if !follow {
				return nil
			}
			return followFile(ctx, logger, logFile, offset, emit)
		},
	}

	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Follow log output")
	cmd.Flags().IntVarP(&lines, "lines", "n", 50, "Number of lines to show from the end of the log; -1 shows all")
	cmd.Flags().StringVar(&component, "component", "lored", "Component whose log to show: lored, watcher, server, lore-cli")
	return cmd
}

func lineWriter(w io.Writer, component string, asJSON bool) func(string) {
	return func(line string) {
		if asJSON {
			_ = cli.PrintJSONLine(w, TailedLine{Component: component, Line: line})
			return
		}
		fmt.Fprintln(w, line)
	}
}

// printLastLines emits the last n lines of path and returns the offset the
// read stopped at.
func printLastLines(path string, n int, emit func(string)) (int64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("failed to read log file: %w", err)
	}
	// Only complete lines are printed; a partial last line is left for follow.
	end := strings.LastIndexByte(string(data), '\n') + 1
	lines := strings.Split(strings.TrimSuffix(string(data[:end]), "\n"), "\n")
	if end == 0 {
		lines = nil
	}
	start := 0
	if n >= 0 && len(lines) > n {
		start = len(lines) - n
	}
	for _, line := range lines[start:] {
		emit(line)
	}
	return int64(end), nil
}

func followFile(ctx context.Context, logger *logrus.Entry, path string, offset int64, emit func(string)) error {
	t, err := tail.TailFile(path, tail.Config{
		Follow:   true,
		ReOpen:   true,
		Location: &tail.SeekInfo{Offset: offset, Whence: io.SeekStart},
		Logger:   tail.DiscardingLogger,
	})
	if err != nil {
		return fmt.Errorf("cannot tail %s: %w", path, err)
	}
	defer t.Cleanup()

	for {
		select {
		case <-ctx.Done():
			_ = t.Stop()
			return nil
		case line, ok := <-t.Lines:
			if !ok {
				return t.Err()
			}
			if line.Err != nil {
				logger.Debugf("Error reading line from %s: %v", path, line.Err)
				continue
			}
			emit(line.Text)
		}
	}
}

func waitForLogFile(ctx context.Context, cfg *config.Config, component string) (string, error) {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-ticker.C:
		}
		if logFile, _, err := logutil.FindLogFile(cfg, component); err == nil {
			return logFile, nil
		}
	}
}

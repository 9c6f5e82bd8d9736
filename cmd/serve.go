package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/grovetools/lore/cli"
	"github.com/grovetools/lore/config"
	"github.com/grovetools/lore/internal/bootstrap"
	"github.com/grovetools/lore/internal/daemon/pidfile"
	"github.com/grovetools/lore/internal/daemon/server"
	"github.com/grovetools/lore/logging"
	"github.com/grovetools/lore/pkg/daemon"
	"github.com/grovetools/lore/pkg/paths"
	"github.com/grovetools/lore/pkg/process"
	"github.com/grovetools/lore/pkg/watcher"
	"github.com/grovetools/lore/pkg/workspace"
	"github.com/grovetools/lore/util/pathutil"
	"github.com/grovetools/lore/version"
)

// shutdownTimeout bounds graceful shutdown of the listeners.
const shutdownTimeout = 5 * time.Second

// ExitError ends the process with Code without printing an error message.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("exit status %d", e.Code)
}

// NewServeCmd returns the command that runs the daemon in the foreground.
func NewServeCmd() *cobra.Command {
	var root, listen, socket string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the lore daemon in the foreground",
		Long: `Start the daemon: seed the workspace layout, watch the workspace for changes
and serve the HTTP adapter and IPC bridge on the unix socket and, unless
disabled, on a TCP address. SIGINT or SIGTERM shuts it down gracefully.

Examples:
  lore serve
  lore serve --root ~/notes --listen 127.0.0.1:4000
  # Unix socket only
  lore serve --listen ""`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cli.LoadConfig(cmd)
			if err != nil {
				return err
			}
			if root != "" {
				expanded, err := pathutil.Expand(root)
				if err != nil {
					return err
				}
				if cfg.Workspace.Root, err = filepath.Abs(expanded); err != nil {
					return err
				}
			}
			if cmd.Flags().Changed("listen") {
				cfg.Server.Listen = &listen
			}
			if socket != "" {
				cfg.Server.Socket = socket
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			ctx = logging.WithWriter(ctx, cmd.ErrOrStderr())
			return runDaemon(ctx, cfg, logging.NewLogger("lored"))
		},
	}
	cmd.Flags().StringVar(&root, "root", "", "Workspace root (overrides workspace.root)")
	cmd.Flags().StringVar(&listen, "listen", config.DefaultListen, "TCP address of the HTTP adapter; empty disables TCP")
	cmd.Flags().StringVar(&socket, "socket", "", "Unix socket path (overrides server.socket)")
	return cmd
}

// runDaemon serves cfg until ctx is cancelled or a listener fails.
func runDaemon(ctx context.Context, cfg *config.Config, logger *logrus.Entry) error {
	pidPath := paths.PidFilePath()

	// 1. Acquire Lock
	if err := pidfile.Acquire(pidPath); err != nil {
		return fmt.Errorf("failed to start: %w", err)
	}
	defer func() {
		if err := pidfile.Release(pidPath); err != nil {
			logger.Errorf("Failed to release pidfile: %v", err)
		}
	}()

	// 2. Open and seed the workspace
	ws, err := workspace.Open(cfg.Workspace.Root)
	if err != nil {
		return err
	}
	if cfg.ShouldBootstrap() {
		if err := bootstrap.EnsureLayout(ctx, ws, logger); err != nil {
			return fmt.Errorf("failed to prepare workspace %s: %w", ws.Root(), err)
		}
	}

	// 3. Start watching
	w, err := watcher.New(ws.Resolver(), watcher.Options{
		Debounce:           cfg.Watcher.Debounce(),
		StabilityThreshold: cfg.Watcher.StabilityThreshold(),
		PollInterval:       cfg.Watcher.PollInterval(),
		Ignore:             cfg.Watcher.Ignore,
		Logger:             logging.NewLogger("watcher"),
		OnWarning: func(err error) {
			logger.WithError(err).Warn("Change notifications stopped")
		},
	})
	if err != nil {
		return err
	}
	if err := w.Start(ctx); err != nil {
		return err
	}
	defer w.Stop()

	// 4. Setup Server
	srv, err := server.New(ws, w, logging.NewLogger("server"))
	if err != nil {
		return err
	}
	socket := cfg.Server.Socket
	listen := cfg.ListenAddr()
	srv.SetRunningConfig(&server.RunningConfig{
		Root:      ws.Root(),
		Socket:    socket,
		Listen:    listen,
		PID:       os.Getpid(),
		Version:   version.GetInfo().Short(),
		StartedAt: time.Now(),
	})

	serveErr := make(chan error, 2)
	go func() { serveErr <- srv.ListenAndServe(socket) }()
	if listen != "" {
		go func() { serveErr <- srv.ListenAndServeTCP(listen) }()
	}

	// 5. Re-validate configuration when it changes
	configDir := paths.ConfigDir()
	if p := os.Getenv(config.EnvConfigPath); p != "" {
		configDir = filepath.Dir(p)
	}
	if cw, err := daemon.NewConfigWatcher(configDir, 300*time.Millisecond, logger, configReloaded(logger)); err != nil {
		logger.WithError(err).Warn("Config watching disabled")
	} else {
		defer cw.Close()
		go cw.Start(ctx)
	}

	announce := logging.NewUnifiedLogger("lored")
	announce.Success("Starting daemon").
		Field("pid", os.Getpid()).
		Field("root", ws.Root()).
		Field("socket", socket).
		Field("listen", listen).
		Pretty(fmt.Sprintf("%s Serving %s on %s", logging.IconSuccess, ws.Root(), socket)).
		Log(ctx)

	// 6. Wait for a signal or a listener failure
	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("Received stop signal")
	case runErr = <-serveErr:
		if runErr != nil {
			logger.WithError(runErr).Error("Listener failed")
			runErr = fmt.Errorf("server error: %w", runErr)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("Server shutdown error: %v", err)
	}
	announce.Status("Daemon stopped").Log(ctx)
	return runErr
}

// configReloaded applies the parts of a reloaded configuration that can
// change at runtime. Everything else takes effect on restart.
func configReloaded(logger *logrus.Entry) daemon.ReloadFunc {
	return func(file string, cfg *config.Config, err error) {
		if err != nil {
			logger.WithError(err).WithField("file", file).Error("Configuration reload failed, keeping the running settings")
			return
		}
		var logCfg logging.Config
		if err := cfg.UnmarshalExtension("logging", &logCfg); err == nil && logCfg.Level != "" {
			if level, err := logrus.ParseLevel(logCfg.Level); err == nil {
				logging.SetLevel(level)
			}
		}
		logger.WithField("file", file).Info("Configuration reloaded; workspace, server and watcher settings apply after restart")
	}
}

// NewStopCmd returns the command that stops a running daemon.
func NewStopCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the running daemon",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			pidPath := paths.PidFilePath()

			running, pid, err := pidfile.IsRunning(pidPath)
			if err != nil {
				return fmt.Errorf("error checking status: %w", err)
			}

			pretty := logging.NewPrettyLogger().WithWriter(cmd.ErrOrStderr())
			if !running {
				pretty.WarnPretty("Daemon is not running")
				return nil
			}

			if err := process.Terminate(pid); err != nil {
				return fmt.Errorf("failed to send stop signal to %d: %w", pid, err)
			}
			if !process.WaitForExit(pid, 10*time.Second) {
				return fmt.Errorf("daemon (PID %d) did not exit within 10s", pid)
			}
			pretty.Success(fmt.Sprintf("Stopped daemon (PID %d)", pid))
			return nil
		},
	}
}

// NewStatusCmd returns the command that reports whether the daemon runs.
func NewStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Check daemon status",
		Long:  "Report whether the daemon is running. Exits with status 1 when it is stopped.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cli.LoadConfig(cmd)
			if err != nil {
				return err
			}
			jsonOutput := cli.GetOptions(cmd).JSONOutput
			out := cmd.OutOrStdout()

			if daemon.Reachable(cfg.Server.Socket) {
				client, err := daemon.NewRemoteClient(cfg.Server.Socket)
				if err != nil {
					return err
				}
				defer client.Close()
				status, err := client.Status(cmd.Context())
				if err != nil {
					return err
				}
				if jsonOutput {
					return cli.PrintJSON(out, struct {
						Running bool `json:"running"`
						*daemon.Status
					}{true, status})
				}
				fmt.Fprintf(out, "Running (PID: %d)\n", status.PID)
				fmt.Fprintf(out, "Version: %s\n", status.Version)
				fmt.Fprintf(out, "Root:    %s\n", status.Root)
				fmt.Fprintf(out, "Socket:  %s\n", status.Socket)
				if status.Listen != "" {
					fmt.Fprintf(out, "Listen:  %s\n", status.Listen)
				}
				fmt.Fprintf(out, "Uptime:  %s\n", time.Since(status.StartedAt).Round(time.Second))
				return nil
			}

			running, pid, err := pidfile.IsRunning(paths.PidFilePath())
			if err != nil {
				return fmt.Errorf("error: %w", err)
			}
			if jsonOutput {
				if err := cli.PrintJSON(out, map[string]interface{}{"running": running, "pid": pid}); err != nil {
					return err
				}
			} else if running {
				fmt.Fprintf(out, "Starting or unresponsive (PID: %d)\nSocket: %s\n", pid, cfg.Server.Socket)
			} else {
				fmt.Fprintln(out, "Stopped")
			}
			// Non-zero for stopped state (useful for scripts)
			return &ExitError{Code: 1}
		},
	}
}

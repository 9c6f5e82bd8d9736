package main

import (
	"bufio"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/grovetools/tend/pkg/assert"
	"github.com/grovetools/tend/pkg/fs"
	"github.com/grovetools/tend/pkg/harness"
)

const daemonTimeout = 10 * time.Second

// daemonCommand builds a lore invocation that shares the daemon's app home,
// so pid file and log lookups agree with the running server.
func daemonCommand(ctx *harness.Context, args ...string) (*exec.Cmd, error) {
	bin, err := findLoreBinary()
	if err != nil {
		return nil, err
	}
	args = append([]string{"--config", ctx.GetString("config")}, args...)
	cmd := exec.Command(bin, args...)
	cmd.Env = append(os.Environ(),
		"HOME="+ctx.HomeDir(),
		"LORE_APP_HOME="+ctx.GetString("runDir"),
		"LORE_CONFIG=",
	)
	return cmd, nil
}

// runDaemonCommand runs a short-lived lore command next to the daemon.
func runDaemonCommand(ctx *harness.Context, args ...string) (stdout, stderr string, exitCode int, err error) {
	cmd, err := daemonCommand(ctx, args...)
	if err != nil {
		return "", "", -1, err
	}
	var out, errOut strings.Builder
	cmd.Stdout = &out
	cmd.Stderr = &errOut
	runErr := cmd.Run()
	ctx.ShowCommandOutput(cmd.String(), out.String(), errOut.String())

	if exitErr, ok := runErr.(*exec.ExitError); ok {
		return out.String(), errOut.String(), exitErr.ExitCode(), nil
	}
	if runErr != nil {
		return out.String(), errOut.String(), -1, runErr
	}
	return out.String(), errOut.String(), 0, nil
}

func waitUntil(timeout time.Duration, what string, cond func() bool) error {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return nil
		}
		time.Sleep(100 * time.Millisecond)
	}
	return fmt.Errorf("timed out waiting for %s", what)
}

// DaemonLifecycleScenario starts lored, talks to it through the CLI, follows
// its change stream, and stops it again.
func DaemonLifecycleScenario() *harness.Scenario {
	return &harness.Scenario{
		Name:        "lore-daemon-lifecycle",
		Description: "Serves a workspace, relays CLI operations, streams changes, and shuts down cleanly.",
		Tags:        []string{"lore", "daemon"},
		Steps: []harness.Step{
			harness.NewStep("Setup sandbox", func(ctx *harness.Context) error {
				return setupSandbox(ctx, "daemon", "watcher:\n  debounce_ms: 100\n")
			}),
			harness.NewStep("Start the daemon", func(ctx *harness.Context) error {
				cmd, err := daemonCommand(ctx, "serve")
				if err != nil {
					return err
				}
				if err := cmd.Start(); err != nil {
					return fmt.Errorf("failed to start lore serve: %w", err)
				}
				ctx.Set("daemon", cmd)

				return waitUntil(daemonTimeout, "the daemon to answer", func() bool {
					_, _, code, err := runDaemonCommand(ctx, "status")
					return err == nil && code == 0
				})
			}),
			harness.NewStep("Status reports the workspace", func(ctx *harness.Context) error {
				stdout, _, code, err := runDaemonCommand(ctx, "status")
				if err != nil {
					return err
				}
				if err := assert.Equal(0, code, "status should succeed while running"); err != nil {
					return err
				}
				if err := assert.Contains(stdout, "Running (PID:", "status should report a running daemon"); err != nil {
					return err
				}
				return assert.Contains(stdout, ctx.GetString("root"), "status should name the workspace root")
			}),
			harness.NewStep("Startup seeds the welcome note", func(ctx *harness.Context) error {
				stdout, _, code, err := runDaemonCommand(ctx, "cat", "knowledge/Welcome.md")
				if err != nil {
					return err
				}
				if err := assert.Equal(0, code, "welcome note should be readable"); err != nil {
					return err
				}
				return assert.Contains(stdout, "# Welcome to Lore", "welcome note should be seeded")
			}),
			harness.NewStep("Watch sees writes made through the daemon", func(ctx *harness.Context) error {
				watch, err := daemonCommand(ctx, "watch", "--json")
				if err != nil {
					return err
				}
				pipe, err := watch.StdoutPipe()
				if err != nil {
					return err
				}
				if err := watch.Start(); err != nil {
					return fmt.Errorf("failed to start lore watch: %w", err)
				}
				defer func() {
					_ = watch.Process.Kill()
					_ = watch.Wait()
				}()

				lines := make(chan string, 16)
				go func() {
					scanner := bufio.NewScanner(pipe)
					for scanner.Scan() {
						lines <- scanner.Text()
					}
					close(lines)
				}()

				// The subscription is registered asynchronously; keep writing until an event shows up.
				deadline := time.After(daemonTimeout)
				for i := 0; ; i++ {
					name := fmt.Sprintf("runs/e2e-%d.log", i)
					if _, _, code, err := runDaemonCommand(ctx, "write", name, "line"); err != nil {
						return err
					} else if code != 0 {
						return fmt.Errorf("write %s exited with %d", name, code)
					}

					wait := time.After(time.Second)
				drain:
					for {
						select {
						case line, ok := <-lines:
							if !ok {
								return fmt.Errorf("watch exited before any event arrived")
							}
							if strings.Contains(line, `"created"`) && strings.Contains(line, "runs/e2e-") {
								ctx.ShowCommandOutput("lore watch --json", line, "")
								return nil
							}
						case <-wait:
							break drain
						case <-deadline:
							return fmt.Errorf("no created event received from lore watch")
						}
					}
				}
			}),
			harness.NewStep("Writes land under the workspace root", func(ctx *harness.Context) error {
				if _, _, code, err := runDaemonCommand(ctx, "write", "agents/bot.yml", "name: bot"); err != nil {
					return err
				} else if err := assert.Equal(0, code, "remote write should succeed"); err != nil {
					return err
				}
				content, err := fs.ReadString(filepath.Join(ctx.GetString("root"), "agents", "bot.yml"))
				if err != nil {
					return err
				}
				return assert.Equal("name: bot", content, "daemon should write into the configured root")
			}),
			harness.NewStep("Stop the daemon", func(ctx *harness.Context) error {
				_, _, code, err := runDaemonCommand(ctx, "stop")
				if err != nil {
					return err
				}
				if err := assert.Equal(0, code, "stop should succeed"); err != nil {
					return err
				}

				daemon := ctx.Get("daemon").(*exec.Cmd)
				exited := make(chan error, 1)
				go func() { exited <- daemon.Wait() }()
				select {
				case <-exited:
				case <-time.After(daemonTimeout):
					_ = daemon.Process.Kill()
					return fmt.Errorf("daemon did not exit after stop")
				}

				stdout, _, code, err := runDaemonCommand(ctx, "status")
				if err != nil {
					return err
				}
				if err := assert.Equal(1, code, "status should fail once stopped"); err != nil {
					return err
				}
				return assert.Contains(stdout, "Stopped", "status should report the daemon as stopped")
			}),
			harness.NewStep("Daemon log is readable", func(ctx *harness.Context) error {
				stdout, _, code, err := runDaemonCommand(ctx, "logs", "-n", "-1")
				if err != nil {
					return err
				}
				if err := assert.Equal(0, code, "logs should succeed"); err != nil {
					return err
				}
				return assert.Contains(stdout, "Starting daemon", "daemon log should record startup")
			}),
		},
	}
}

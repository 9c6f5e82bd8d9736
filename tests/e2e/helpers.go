package main

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/grovetools/tend/pkg/fs"
	"github.com/grovetools/tend/pkg/harness"
)

// findLoreBinary finds the lore binary under test.
// It relies on the Makefile setting the PATH to include the local ./bin directory.
func findLoreBinary() (string, error) {
	path, err := exec.LookPath("lore")
	if err != nil {
		return "", fmt.Errorf("could not find 'lore' binary in PATH. Ensure 'make test-e2e' is used")
	}
	return path, nil
}

// setupSandbox creates a workspace root and a lore.yml pointing at it.
// The socket lives in a short temp dir so it stays under the unix path limit.
// The config path, workspace root, and socket are stored on the context.
func setupSandbox(ctx *harness.Context, name string, extra string) error {
	root := ctx.NewDir(name + "-workspace")
	if err := fs.CreateDir(root); err != nil {
		return fmt.Errorf("failed to create workspace root: %w", err)
	}

	runDir, err := os.MkdirTemp("", "lore-e2e")
	if err != nil {
		return err
	}
	socket := filepath.Join(runDir, "lored.sock")

	configDir := ctx.NewDir(name + "-config")
	if err := fs.CreateDir(configDir); err != nil {
		return fmt.Errorf("failed to create config dir: %w", err)
	}
	configPath := filepath.Join(configDir, "lore.yml")
	yml := fmt.Sprintf(`workspace:
  root: %s
server:
  listen: ""
  socket: %s
%s`, root, socket, extra)
	if err := fs.WriteString(configPath, yml); err != nil {
		return err
	}

	ctx.Set("root", root)
	ctx.Set("socket", socket)
	ctx.Set("runDir", runDir)
	ctx.Set("config", configPath)
	return nil
}

// lore runs the binary against the sandbox config.
func lore(ctx *harness.Context, args ...string) (stdout, stderr string, exitCode int, err error) {
	bin, err := findLoreBinary()
	if err != nil {
		return "", "", -1, err
	}
	args = append([]string{"--config", ctx.GetString("config")}, args...)
	cmd := ctx.Command(bin, args...)
	result := cmd.Run()
	ctx.ShowCommandOutput(cmd.String(), result.Stdout, result.Stderr)
	return result.Stdout, result.Stderr, result.ExitCode, nil
}

package main

import (
	"path/filepath"

	"github.com/grovetools/tend/pkg/assert"
	"github.com/grovetools/tend/pkg/fs"
	"github.com/grovetools/tend/pkg/harness"
)

// WorkspaceLocalScenario drives the workspace commands without a daemon.
// No socket is listening, so the CLI operates on the root directly.
func WorkspaceLocalScenario() *harness.Scenario {
	return &harness.Scenario{
		Name:        "lore-workspace-local",
		Description: "Writes, lists, moves, and removes files in a workspace without a daemon.",
		Tags:        []string{"lore", "workspace"},
		Steps: []harness.Step{
			harness.NewStep("Setup sandbox", func(ctx *harness.Context) error {
				return setupSandbox(ctx, "local", "")
			}),
			harness.NewStep("Write and read a note", func(ctx *harness.Context) error {
				_, _, code, err := lore(ctx, "write", "knowledge/ideas/first.md", "# First")
				if err != nil {
					return err
				}
				if err := assert.Equal(0, code, "write should create parent directories"); err != nil {
					return err
				}

				onDisk, err := fs.ReadString(filepath.Join(ctx.GetString("root"), "knowledge", "ideas", "first.md"))
				if err != nil {
					return err
				}
				if err := assert.Equal("# First", onDisk, "file should be written under the root"); err != nil {
					return err
				}

				stdout, _, _, err := lore(ctx, "cat", "knowledge/ideas/first.md")
				if err != nil {
					return err
				}
				return assert.Contains(stdout, "# First", "cat should print the content")
			}),
			harness.NewStep("List recursively", func(ctx *harness.Context) error {
				stdout, _, code, err := lore(ctx, "ls", "-r")
				if err != nil {
					return err
				}
				if err := assert.Equal(0, code, "ls should succeed"); err != nil {
					return err
				}
				if err := assert.Contains(stdout, "knowledge/ideas/", "directories should have a trailing slash"); err != nil {
					return err
				}
				return assert.Contains(stdout, "knowledge/ideas/first.md", "recursive listing should include nested files")
			}),
			harness.NewStep("Move and remove", func(ctx *harness.Context) error {
				if _, _, code, err := lore(ctx, "mv", "knowledge/ideas/first.md", "knowledge/first.md"); err != nil {
					return err
				} else if err := assert.Equal(0, code, "mv should succeed"); err != nil {
					return err
				}

				stdout, _, _, err := lore(ctx, "exists", "knowledge/ideas/first.md")
				if err != nil {
					return err
				}
				if err := assert.Contains(stdout, "false", "source should be gone after mv"); err != nil {
					return err
				}

				if _, _, code, err := lore(ctx, "rm", "-r", "knowledge"); err != nil {
					return err
				} else if err := assert.Equal(0, code, "rm -r should succeed"); err != nil {
					return err
				}
				stdout, _, _, err = lore(ctx, "exists", "knowledge")
				if err != nil {
					return err
				}
				return assert.Contains(stdout, "false", "directory should be removed")
			}),
		},
	}
}

// WorkspaceErrorsScenario checks the friendly error output for rejected operations.
func WorkspaceErrorsScenario() *harness.Scenario {
	return &harness.Scenario{
		Name:        "lore-workspace-errors",
		Description: "Rejects escaping paths, missing files, and non-empty removals.",
		Tags:        []string{"lore", "workspace", "errors"},
		Steps: []harness.Step{
			harness.NewStep("Setup sandbox", func(ctx *harness.Context) error {
				if err := setupSandbox(ctx, "errors", ""); err != nil {
					return err
				}
				runs := filepath.Join(ctx.GetString("root"), "runs")
				if err := fs.CreateDir(runs); err != nil {
					return err
				}
				return fs.WriteString(filepath.Join(runs, "out.log"), "done")
			}),
			harness.NewStep("Path outside the workspace", func(ctx *harness.Context) error {
				_, stderr, code, err := lore(ctx, "cat", "../secret")
				if err != nil {
					return err
				}
				if err := assert.Equal(1, code, "escaping path should fail"); err != nil {
					return err
				}
				return assert.Contains(stderr, "outside the workspace", "error should explain the boundary")
			}),
			harness.NewStep("Missing file", func(ctx *harness.Context) error {
				_, stderr, code, err := lore(ctx, "cat", "nope.md")
				if err != nil {
					return err
				}
				if err := assert.Equal(1, code, "missing file should fail"); err != nil {
					return err
				}
				return assert.Contains(stderr, "No such file or directory", "error should name the problem")
			}),
			harness.NewStep("Non-empty directory", func(ctx *harness.Context) error {
				_, stderr, code, err := lore(ctx, "rm", "runs")
				if err != nil {
					return err
				}
				if err := assert.Equal(1, code, "rm without -r should fail"); err != nil {
					return err
				}
				return assert.Contains(stderr, "Pass -r", "error should suggest -r")
			}),
		},
	}
}

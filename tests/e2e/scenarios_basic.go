package main

import (
	"encoding/json"
	"fmt"

	"github.com/grovetools/tend/pkg/assert"
	"github.com/grovetools/tend/pkg/command"
	"github.com/grovetools/tend/pkg/harness"
)

// VersionScenario tests the 'version' command.
func VersionScenario() *harness.Scenario {
	return &harness.Scenario{
		Name:        "lore-basic-version",
		Description: "Prints build information in text and JSON form.",
		Tags:        []string{"lore", "basic"},
		Steps: []harness.Step{
			harness.NewStep("Run 'lore version'", func(ctx *harness.Context) error {
				loreBinary, err := findLoreBinary()
				if err != nil {
					return err
				}

				cmd := command.New(loreBinary, "version")
				result := cmd.Run()
				ctx.ShowCommandOutput(cmd.String(), result.Stdout, result.Stderr)

				if err := assert.Equal(0, result.ExitCode, "lore version should exit successfully"); err != nil {
					return err
				}
				if err := assert.Contains(result.Stdout, "Commit:", "Output should contain Commit"); err != nil {
					return err
				}
				return assert.Contains(result.Stdout, "Build Date:", "Output should contain Build Date")
			}),
			harness.NewStep("Run 'lore version --json'", func(ctx *harness.Context) error {
				loreBinary, err := findLoreBinary()
				if err != nil {
					return err
				}

				cmd := command.New(loreBinary, "version", "--json")
				result := cmd.Run()
				ctx.ShowCommandOutput(cmd.String(), result.Stdout, result.Stderr)

				var info map[string]string
				if err := json.Unmarshal([]byte(result.Stdout), &info); err != nil {
					return fmt.Errorf("version --json is not valid JSON: %w", err)
				}
				if _, ok := info["goVersion"]; !ok {
					return fmt.Errorf("expected goVersion in %v", info)
				}
				return nil
			}),
		},
	}
}

// PathsScenario checks that 'lore paths' reports the locations from --config.
func PathsScenario() *harness.Scenario {
	return &harness.Scenario{
		Name:        "lore-basic-paths",
		Description: "Reports the resolved workspace root and socket.",
		Tags:        []string{"lore", "basic", "paths"},
		Steps: []harness.Step{
			harness.NewStep("Setup sandbox", func(ctx *harness.Context) error {
				return setupSandbox(ctx, "paths", "")
			}),
			harness.NewStep("Run 'lore paths'", func(ctx *harness.Context) error {
				stdout, _, code, err := lore(ctx, "paths")
				if err != nil {
					return err
				}
				if err := assert.Equal(0, code, "lore paths should exit successfully"); err != nil {
					return err
				}

				var out map[string]string
				if err := json.Unmarshal([]byte(stdout), &out); err != nil {
					return fmt.Errorf("paths output is not valid JSON: %w", err)
				}
				if err := assert.Equal(ctx.GetString("root"), out["workspace_root"], "workspace root should come from the config"); err != nil {
					return err
				}
				return assert.Equal(ctx.GetString("socket"), out["socket"], "socket should come from the config")
			}),
		},
	}
}

package main

import (
	"path/filepath"

	"github.com/grovetools/tend/pkg/assert"
	"github.com/grovetools/tend/pkg/fs"
	"github.com/grovetools/tend/pkg/harness"
)

// ConfigShowScenario verifies that overrides and defaults are merged into the
// effective configuration.
func ConfigShowScenario() *harness.Scenario {
	return &harness.Scenario{
		Name:        "lore-config-show",
		Description: "Merges lore.override.yml over lore.yml and fills in defaults.",
		Tags:        []string{"lore", "config"},
		Steps: []harness.Step{
			harness.NewStep("Setup config with override", func(ctx *harness.Context) error {
				if err := setupSandbox(ctx, "show", "watcher:\n  debounce_ms: 400\n"); err != nil {
					return err
				}
				override := filepath.Join(filepath.Dir(ctx.GetString("config")), "lore.override.yml")
				return fs.WriteString(override, "watcher:\n  poll_interval_ms: 25\n")
			}),
			harness.NewStep("Show as YAML", func(ctx *harness.Context) error {
				stdout, _, code, err := lore(ctx, "config", "show")
				if err != nil {
					return err
				}
				if err := assert.Equal(0, code, "config show should succeed"); err != nil {
					return err
				}
				if err := assert.Contains(stdout, "# Source: "+ctx.GetString("config"), "source comment should name the file"); err != nil {
					return err
				}
				if err := assert.Contains(stdout, "debounce_ms: 400", "base value should be kept"); err != nil {
					return err
				}
				if err := assert.Contains(stdout, "poll_interval_ms: 25", "override value should be merged"); err != nil {
					return err
				}
				return assert.Contains(stdout, "stability_threshold_ms: 150", "unset values should get defaults")
			}),
			harness.NewStep("Show as TOML", func(ctx *harness.Context) error {
				stdout, _, code, err := lore(ctx, "config", "show", "--format", "toml")
				if err != nil {
					return err
				}
				if err := assert.Equal(0, code, "config show --format toml should succeed"); err != nil {
					return err
				}
				return assert.Contains(stdout, "[watcher]", "TOML output should have a watcher table")
			}),
		},
	}
}

// ConfigValidateScenario checks that schema violations are reported.
func ConfigValidateScenario() *harness.Scenario {
	return &harness.Scenario{
		Name:        "lore-config-validate",
		Description: "Accepts a valid file and rejects an out-of-range value.",
		Tags:        []string{"lore", "config", "validation"},
		Steps: []harness.Step{
			harness.NewStep("Setup sandbox", func(ctx *harness.Context) error {
				return setupSandbox(ctx, "validate", "")
			}),
			harness.NewStep("Validate a good file", func(ctx *harness.Context) error {
				stdout, stderr, code, err := lore(ctx, "config", "validate", ctx.GetString("config"))
				if err != nil {
					return err
				}
				if err := assert.Equal(0, code, "valid config should pass"); err != nil {
					return err
				}
				return assert.Contains(stdout+stderr, "is valid", "validate should confirm the file")
			}),
			harness.NewStep("Reject a bad file", func(ctx *harness.Context) error {
				bad := filepath.Join(ctx.NewDir("bad-config"), "lore.yml")
				if err := fs.CreateDir(filepath.Dir(bad)); err != nil {
					return err
				}
				if err := fs.WriteString(bad, "watcher:\n  debounce_ms: -5\n"); err != nil {
					return err
				}
				_, stderr, code, err := lore(ctx, "config", "validate", bad)
				if err != nil {
					return err
				}
				if err := assert.Equal(1, code, "invalid config should fail"); err != nil {
					return err
				}
				return assert.Contains(stderr, "lore config schema", "error should point at the schema command")
			}),
		},
	}
}

// ConfigSchemaScenario checks the generated JSON schema.
func ConfigSchemaScenario() *harness.Scenario {
	return &harness.Scenario{
		Name:        "lore-config-schema",
		Description: "Prints the lore.yml JSON schema.",
		Tags:        []string{"lore", "config", "schema"},
		Steps: []harness.Step{
			harness.NewStep("Setup sandbox", func(ctx *harness.Context) error {
				return setupSandbox(ctx, "schema", "")
			}),
			harness.NewStep("Run 'lore config schema'", func(ctx *harness.Context) error {
				stdout, _, code, err := lore(ctx, "config", "schema")
				if err != nil {
					return err
				}
				if err := assert.Equal(0, code, "config schema should succeed"); err != nil {
					return err
				}
				if err := assert.Contains(stdout, "debounce_ms", "schema should describe watcher settings"); err != nil {
					return err
				}
				return assert.Contains(stdout, "\"$schema\"", "schema should be a JSON schema document")
			}),
		},
	}
}

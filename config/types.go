package config

import (
	"fmt"
	"time"

	"github.com/mitchellh/mapstructure"
)

// WorkspaceConfig selects the workspace root and its startup layout.
type WorkspaceConfig struct {
	Root      string `yaml:"root,omitempty" toml:"root,omitempty" mapstructure:"root" jsonschema:"description=Absolute path or ~ path of the workspace root (default: $LORE_HOME or ~/.lore)"`
	Bootstrap *bool  `yaml:"bootstrap,omitempty" toml:"bootstrap,omitempty" mapstructure:"bootstrap" jsonschema:"description=Create the standard directories and the welcome note on startup (default: true)"`
}

// ServerConfig configures the daemon's listeners.
type ServerConfig struct {
	// Listen is the TCP address of the HTTP adapter. nil selects the default;
	// an empty string disables TCP and leaves only the unix socket.
	Listen *string `yaml:"listen,omitempty" toml:"listen,omitempty" mapstructure:"listen" jsonschema:"description=TCP address for the HTTP adapter; empty disables TCP (default: 127.0.0.1:3000)"`
	Socket string  `yaml:"socket,omitempty" toml:"socket,omitempty" mapstructure:"socket" jsonschema:"description=Unix socket path (default: runtime dir/lored.sock)"`
}

// WatcherConfig tunes change notification timing.
type WatcherConfig struct {
	DebounceMs           int      `yaml:"debounce_ms,omitempty" toml:"debounce_ms,omitempty" mapstructure:"debounce_ms" jsonschema:"minimum=1,description=Quiet window that coalesces content changes (default: 150)"`
	StabilityThresholdMs int      `yaml:"stability_threshold_ms,omitempty" toml:"stability_threshold_ms,omitempty" mapstructure:"stability_threshold_ms" jsonschema:"minimum=1,description=How long a file must stay unchanged before a write counts (default: 150)"`
	PollIntervalMs       int      `yaml:"poll_interval_ms,omitempty" toml:"poll_interval_ms,omitempty" mapstructure:"poll_interval_ms" jsonschema:"minimum=1,description=How often pending writes are re-checked (default: 50)"`
	Ignore               []string `yaml:"ignore,omitempty" toml:"ignore,omitempty" mapstructure:"ignore" jsonschema:"description=Dockerignore-style patterns excluded from change events"`
}

// Debounce returns DebounceMs as a duration.
func (w WatcherConfig) Debounce() time.Duration {
	return time.Duration(w.DebounceMs) * time.Millisecond
}

// StabilityThreshold returns StabilityThresholdMs as a duration.
func (w WatcherConfig) StabilityThreshold() time.Duration {
	return time.Duration(w.StabilityThresholdMs) * time.Millisecond
}

// PollInterval returns PollIntervalMs as a duration.
func (w WatcherConfig) PollInterval() time.Duration {
	return time.Duration(w.PollIntervalMs) * time.Millisecond
}

// Config represents lore.yml
type Config struct {
	Workspace WorkspaceConfig `yaml:"workspace,omitempty" toml:"workspace,omitempty" mapstructure:"workspace" jsonschema:"description=Workspace location and layout"`
	Server    ServerConfig    `yaml:"server,omitempty" toml:"server,omitempty" mapstructure:"server" jsonschema:"description=Daemon listeners"`
	Watcher   WatcherConfig   `yaml:"watcher,omitempty" toml:"watcher,omitempty" mapstructure:"watcher" jsonschema:"description=Change notification timing"`

	// Extensions captures all other top-level keys for extensibility.
	Extensions map[string]interface{} `yaml:",inline" toml:"-" mapstructure:",remain" jsonschema:"-"`
}

// ListenAddr returns the TCP address, or "" when TCP is disabled.
func (c *Config) ListenAddr() string {
	if c.Server.Listen == nil {
		return DefaultListen
	}
	return *c.Server.Listen
}

// ShouldBootstrap reports whether the workspace layout is seeded on startup.
func (c *Config) ShouldBootstrap() bool {
	return c.Workspace.Bootstrap == nil || *c.Workspace.Bootstrap
}

// UnmarshalExtension decodes a specific extension's configuration from the
// loaded lore.yml into the provided target struct. The target must be a pointer.
//
// Example:
//
//	var logCfg logging.Config
//	err := cfg.UnmarshalExtension("logging", &logCfg)
func (c *Config) UnmarshalExtension(key string, target interface{}) error {
	extensionConfig, ok := c.Extensions[key]
	if !ok {
		// It's not an error if the key doesn't exist.
		return nil
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           target,
		TagName:          "yaml",
		WeaklyTypedInput: true,
	})
	if err != nil {
		return fmt.Errorf("failed to create mapstructure decoder: %w", err)
	}

	if err := decoder.Decode(extensionConfig); err != nil {
		return fmt.Errorf("failed to decode extension config for '%s': %w", key, err)
	}

	return nil
}

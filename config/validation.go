package config

import (
	"fmt"
	"net"
	"path/filepath"

	"github.com/moby/patternmatcher"

	"github.com/grovetools/lore/errors"
)

// Validate checks semantic constraints the schema cannot express. It expects
// SetDefaults to have run.
func (c *Config) Validate() error {
	if !filepath.IsAbs(c.Workspace.Root) {
		return errors.ConfigInvalid(fmt.Sprintf("workspace.root must be absolute, got %q", c.Workspace.Root)).
			WithDetail("field", "workspace.root")
	}

	if addr := c.ListenAddr(); addr != "" {
		if _, _, err := net.SplitHostPort(addr); err != nil {
			return errors.Wrap(err, errors.ErrCodeConfigInvalid, fmt.Sprintf("server.listen is not host:port: %q", addr)).
				WithDetail("field", "server.listen")
		}
	}

	if err := validateWatcher(&c.Watcher); err != nil {
		return err
	}

	return nil
}

func validateWatcher(w *WatcherConfig) error {
	for field, v := range map[string]int{
		"watcher.debounce_ms":            w.DebounceMs,
		"watcher.stability_threshold_ms": w.StabilityThresholdMs,
		"watcher.poll_interval_ms":       w.PollIntervalMs,
	} {
		if v <= 0 {
			return errors.ConfigInvalid(fmt.Sprintf("%s must be positive, got %d", field, v)).
				WithDetail("field", field)
		}
	}

	if w.PollIntervalMs > w.StabilityThresholdMs {
		return errors.ConfigInvalid(fmt.Sprintf("watcher.poll_interval_ms (%d) must not exceed watcher.stability_threshold_ms (%d)",
			w.PollIntervalMs, w.StabilityThresholdMs)).
			WithDetail("field", "watcher.poll_interval_ms")
	}

	if _, err := patternmatcher.New(w.Ignore); err != nil {
		return errors.Wrap(err, errors.ErrCodeConfigInvalid, "invalid watcher.ignore pattern").
			WithDetail("field", "watcher.ignore")
	}

	return nil
}

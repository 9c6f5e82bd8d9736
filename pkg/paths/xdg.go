// Package paths provides XDG-compliant path resolution for lore.
//
// Resolution order for application directories:
// 1. LORE_APP_HOME (portable root) → $LORE_APP_HOME/{config,state,run}
// 2. XDG env vars → $XDG_*_HOME/lore
// 3. Platform defaults → ~/.config/lore, ~/.local/state/lore
//
// The workspace root itself is separate: $LORE_HOME, or ~/.lore.
package paths

import (
	"os"
	"path/filepath"
)

// getConfigHome returns the base config home directory.
func getConfigHome() string {
	if appHome := os.Getenv("LORE_APP_HOME"); appHome != "" {
		return filepath.Join(appHome, "config")
	}
	if xdgConfigHome := os.Getenv("XDG_CONFIG_HOME"); xdgConfigHome != "" {
		return xdgConfigHome
	}
	if homeDir, err := os.UserHomeDir(); err == nil {
		return filepath.Join(homeDir, ".config")
	}
	return ""
}

// getStateHome returns the base state home directory.
func getStateHome() string {
	if appHome := os.Getenv("LORE_APP_HOME"); appHome != "" {
		return filepath.Join(appHome, "state")
	}
	if xdgStateHome := os.Getenv("XDG_STATE_HOME"); xdgStateHome != "" {
		return xdgStateHome
	}
	if homeDir, err := os.UserHomeDir(); err == nil {
		return filepath.Join(homeDir, ".local", "state")
	}
	return ""
}

// WorkspaceRoot returns the default workspace root.
// LORE_HOME wins; otherwise ~/.lore.
func WorkspaceRoot() string {
	if loreHome := os.Getenv("LORE_HOME"); loreHome != "" {
		return loreHome
	}
	if homeDir, err := os.UserHomeDir(); err == nil {
		return filepath.Join(homeDir, ".lore")
	}
	return ""
}

// ConfigDir returns the lore configuration directory.
// Used for lore.yml / lore.toml.
func ConfigDir() string {
	base := getConfigHome()
	if base == "" {
		return ""
	}
	return filepath.Join(base, "lore")
}

// StateDir returns the lore state directory.
// Used for the pid file and logs.
func StateDir() string {
	base := getStateHome()
	if base == "" {
		return ""
	}
	return filepath.Join(base, "lore")
}

// LogDir returns the directory daemon and CLI logs are written to.
func LogDir() string {
	state := StateDir()
	if state == "" {
		return ""
	}
	return filepath.Join(state, "logs")
}

// RuntimeDir returns the lore runtime directory for sockets.
// Uses XDG_RUNTIME_DIR when available (Linux), falls back to StateDir (macOS).
func RuntimeDir() string {
	if appHome := os.Getenv("LORE_APP_HOME"); appHome != "" {
		return filepath.Join(appHome, "run")
	}
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		return filepath.Join(dir, "lore")
	}
	return StateDir()
}

// SocketPath returns the path to the lore daemon unix socket.
func SocketPath() string {
	return filepath.Join(RuntimeDir(), "lored.sock")
}

// PidFilePath returns the path to the lore daemon PID file.
func PidFilePath() string {
	return filepath.Join(StateDir(), "lored.pid")
}

// EnsureDirs creates all lore application directories if they don't exist.
// It does not touch the workspace root.
func EnsureDirs() error {
	dirs := []string{
		ConfigDir(),
		StateDir(),
		LogDir(),
		RuntimeDir(),
	}

	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return nil
}

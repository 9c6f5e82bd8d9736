// Package daemon provides a client interface for the lore daemon (lored).
// It implements a transparent fallback pattern: if the daemon is running,
// requests go over its unix socket; if not, they run against the workspace
// in-process.
package daemon

import (
	"context"
	"time"

	"github.com/grovetools/lore/pkg/models"
	"github.com/grovetools/lore/pkg/workspace"
)

// Client mirrors the workspace operations. RemoteClient and LocalClient
// implement it.
type Client interface {
	Root(ctx context.Context) (string, error)
	ReadDir(ctx context.Context, path string, opts workspace.ReadDirOptions) ([]workspace.DirEntry, error)
	ReadFile(ctx context.Context, path string, encoding workspace.Encoding) (*workspace.ReadFileResult, error)
	WriteFile(ctx context.Context, path, data string, opts workspace.WriteOptions) (*workspace.WriteFileResult, error)
	Mkdir(ctx context.Context, path string, recursive bool) error
	Rename(ctx context.Context, from, to string, overwrite bool) error
	Remove(ctx context.Context, path string, opts workspace.RemoveOptions) error
	Exists(ctx context.Context, path string) (bool, error)
	Stat(ctx context.Context, path string) (*workspace.Stat, error)

	// StreamChanges subscribes to change events. The channel is closed when
	// the context is cancelled or the connection is lost. LocalClient
	// returns an error since only the daemon watches the workspace.
	StreamChanges(ctx context.Context) (<-chan models.ChangeEvent, error)

	// IsRunning returns true if the daemon is available and responding.
	IsRunning() bool

	// Close cleans up any resources used by the client.
	Close() error
}

// Status describes a running daemon.
type Status struct {
	Root      string    `json:"root"`
	Socket    string    `json:"socket"`
	Listen    string    `json:"listen,omitempty"`
	PID       int       `json:"pid"`
	Version   string    `json:"version"`
	StartedAt time.Time `json:"started_at"`
}

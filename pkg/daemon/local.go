package daemon

import (
	"context"

	"github.com/grovetools/lore/errors"
	"github.com/grovetools/lore/pkg/models"
	"github.com/grovetools/lore/pkg/workspace"
)

// LocalClient implements Client by calling the workspace directly.
// This is used when the daemon is not running.
type LocalClient struct {
	ws *workspace.Workspace
}

// NewLocalClient creates a LocalClient over the workspace at root.
func NewLocalClient(root string) (*LocalClient, error) {
	ws, err := workspace.Open(root)
	if err != nil {
		return nil, err
	}
	return &LocalClient{ws: ws}, nil
}

func (c *LocalClient) Root(ctx context.Context) (string, error) {
	return c.ws.Root(), nil
}

func (c *LocalClient) ReadDir(ctx context.Context, path string, opts workspace.ReadDirOptions) ([]workspace.DirEntry, error) {
	return c.ws.ReadDir(ctx, path, opts)
}

func (c *LocalClient) ReadFile(ctx context.Context, path string, encoding workspace.Encoding) (*workspace.ReadFileResult, error) {
	return c.ws.ReadFile(ctx, path, encoding)
}

func (c *LocalClient) WriteFile(ctx context.Context, path, data string, opts workspace.WriteOptions) (*workspace.WriteFileResult, error) {
	return c.ws.WriteFile(ctx, path, data, opts)
}

func (c *LocalClient) Mkdir(ctx context.Context, path string, recursive bool) error {
	return c.ws.Mkdir(ctx, path, recursive)
}

func (c *LocalClient) Rename(ctx context.Context, from, to string, overwrite bool) error {
	return c.ws.Rename(ctx, from, to, overwrite)
}

func (c *LocalClient) Remove(ctx context.Context, path string, opts workspace.RemoveOptions) error {
	return c.ws.Remove(ctx, path, opts)
}

func (c *LocalClient) Exists(ctx context.Context, path string) (bool, error) {
	return c.ws.Exists(ctx, path)
}

func (c *LocalClient) Stat(ctx context.Context, path string) (*workspace.Stat, error) {
	return c.ws.Stat(ctx, path)
}

// StreamChanges returns an error for LocalClient; start the daemon for
// change notifications.
func (c *LocalClient) StreamChanges(ctx context.Context) (<-chan models.ChangeEvent, error) {
	return nil, errors.New(errors.ErrCodeInvalidInput, "change streaming needs the daemon; start it with 'lore serve'")
}

// IsRunning returns false since this is the local fallback client.
func (c *LocalClient) IsRunning() bool {
	return false
}

// Close is a no-op for LocalClient.
func (c *LocalClient) Close() error {
	return nil
}

var _ Client = (*LocalClient)(nil)

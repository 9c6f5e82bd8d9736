package daemon

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/grovetools/lore/errors"
	"github.com/grovetools/lore/pkg/models"
	"github.com/grovetools/lore/pkg/workspace"
)

// RemoteClient implements Client by calling the daemon's HTTP API over a Unix socket.
type RemoteClient struct {
	httpClient *http.Client
	socketPath string
}

// NewRemoteClient creates a new RemoteClient connected to the daemon socket.
func NewRemoteClient(socketPath string) (*RemoteClient, error) {
	transport := &http.Transport{
		DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
			var d net.Dialer
			return d.DialContext(ctx, "unix", socketPath)
		},
		DisableKeepAlives: false,
		MaxIdleConns:      10,
		IdleConnTimeout:   90 * time.Second,
	}

	client := &http.Client{
		Transport: transport,
		Timeout:   30 * time.Second,
	}

	return &RemoteClient{
		httpClient: client,
		socketPath: socketPath,
	}, nil
}

// baseURL is the dummy host used for Unix socket HTTP requests.
// The actual connection goes through the Unix socket, not this URL.
const baseURL = "http://unix"

func (c *RemoteClient) get(ctx context.Context, path string, params url.Values, out interface{}) error {
	u := baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	return c.do(req, out)
}

func (c *RemoteClient) post(ctx context.Context, path string, body, out interface{}) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *RemoteClient) do(req *http.Request, out interface{}) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to reach daemon: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return decodeError(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response from %s: %w", req.URL.Path, err)
	}
	return nil
}

// decodeError turns an error response back into the coded error the daemon
// produced.
func decodeError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	var p errors.Payload
	if err := json.Unmarshal(body, &p); err == nil && p.Code != "" {
		return errors.FromPayload(p)
	}
	return fmt.Errorf("daemon returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
}

func (c *RemoteClient) Root(ctx context.Context) (string, error) {
	var out struct {
		Root string `json:"root"`
	}
	if err := c.get(ctx, "/workspace/root", nil, &out); err != nil {
		return "", err
	}
	return out.Root, nil
}

func (c *RemoteClient) ReadDir(ctx context.Context, path string, opts workspace.ReadDirOptions) ([]workspace.DirEntry, error) {
	params := url.Values{"path": {path}}
	if opts.Recursive {
		params.Set("recursive", strconv.FormatBool(true))
	}
	var entries []workspace.DirEntry
	if err := c.get(ctx, "/workspace/readdir", params, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

func (c *RemoteClient) ReadFile(ctx context.Context, path string, encoding workspace.Encoding) (*workspace.ReadFileResult, error) {
	params := url.Values{"path": {path}}
	if encoding != "" {
		params.Set("encoding", string(encoding))
	}
	var out workspace.ReadFileResult
	if err := c.get(ctx, "/workspace/readFile", params, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *RemoteClient) WriteFile(ctx context.Context, path, data string, opts workspace.WriteOptions) (*workspace.WriteFileResult, error) {
	body := map[string]interface{}{"path": path, "data": data}
	if opts != (workspace.WriteOptions{}) {
		body["opts"] = opts
	}
	var out workspace.WriteFileResult
	if err := c.post(ctx, "/workspace/writeFile", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *RemoteClient) Mkdir(ctx context.Context, path string, recursive bool) error {
	return c.post(ctx, "/workspace/mkdir", map[string]interface{}{"path": path, "recursive": recursive}, nil)
}

func (c *RemoteClient) Rename(ctx context.Context, from, to string, overwrite bool) error {
	return c.post(ctx, "/workspace/rename", map[string]interface{}{"from": from, "to": to, "overwrite": overwrite}, nil)
}

func (c *RemoteClient) Remove(ctx context.Context, path string, opts workspace.RemoveOptions) error {
	return c.post(ctx, "/workspace/remove", map[string]interface{}{"path": path, "recursive": opts.Recursive}, nil)
}

func (c *RemoteClient) Exists(ctx context.Context, path string) (bool, error) {
	var out struct {
		Exists bool `json:"exists"`
	}
	if err := c.get(ctx, "/workspace/exists", url.Values{"path": {path}}, &out); err != nil {
		return false, err
	}
	return out.Exists, nil
}

func (c *RemoteClient) Stat(ctx context.Context, path string) (*workspace.Stat, error) {
	var out workspace.Stat
	if err := c.get(ctx, "/workspace/stat", url.Values{"path": {path}}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Status returns the running daemon's description.
func (c *RemoteClient) Status(ctx context.Context) (*Status, error) {
	var out Status
	if err := c.get(ctx, "/status", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// IsRunning returns true if the daemon is available and responding.
func (c *RemoteClient) IsRunning() bool {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/health", nil)
	if err != nil {
		return false
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// StreamChanges subscribes to change events via Server-Sent Events.
func (c *RemoteClient) StreamChanges(ctx context.Context) (<-chan models.ChangeEvent, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/workspace/events", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create stream request: %w", err)
	}

	// Use a separate client with no timeout for streaming
	streamTransport := &http.Transport{
		DialContext: func(dialCtx context.Context, _, _ string) (net.Conn, error) {
			var d net.Dialer
			return d.DialContext(dialCtx, "unix", c.socketPath)
		},
	}
	streamClient := &http.Client{Transport: streamTransport}

	resp, err := streamClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to stream: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, decodeError(resp)
	}

	ch := make(chan models.ChangeEvent, 64)

	go func() {
		defer resp.Body.Close()
		defer close(ch)
		defer streamTransport.CloseIdleConnections()

		scanner := bufio.NewScanner(resp.Body)
		// A bulkChanged event over a large tree can exceed the 64KB default.
		scanner.Buffer(make([]byte, 0, 64*1024), 8*1024*1024)
		for scanner.Scan() {
			line := scanner.Text()
			if !strings.HasPrefix(line, "data: ") {
				continue
			}
			ev, err := models.UnmarshalChangeEvent([]byte(strings.TrimPrefix(line, "data: ")))
			if err != nil {
				continue
			}
			select {
			case ch <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()

	return ch, nil
}

// Close cleans up any resources used by the client.
func (c *RemoteClient) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

var _ Client = (*RemoteClient)(nil)

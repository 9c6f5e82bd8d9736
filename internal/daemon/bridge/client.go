package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/grovetools/lore/pkg/models"
)

// ErrClosed is returned by Call once the connection is gone.
var ErrClosed = fmt.Errorf("ipc connection closed")

// Client is the caller side of a bridge session.
type Client struct {
	conn    *websocket.Conn
	nextID  atomic.Uint64
	writeMu sync.Mutex

	mu      sync.Mutex
	pending map[uint64]chan Frame
	closed  bool

	changes chan models.ChangeEvent
	done    chan struct{}
}

// Dial connects to a bridge at a ws:// URL.
func Dial(ctx context.Context, url string) (*Client, error) {
	return dial(ctx, websocket.DefaultDialer, url)
}

// DialUnix connects to the /ipc route of a daemon listening on a unix socket.
func DialUnix(ctx context.Context, socketPath string) (*Client, error) {
	d := &websocket.Dialer{
		NetDialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
			var nd net.Dialer
			return nd.DialContext(ctx, "unix", socketPath)
		},
		HandshakeTimeout: 10 * time.Second,
	}
	return dial(ctx, d, "ws://unix/ipc")
}

func dial(ctx context.Context, d *websocket.Dialer, url string) (*Client, error) {
	conn, resp, err := d.DialContext(ctx, url, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("failed to connect to %s (status %d): %w", url, resp.StatusCode, err)
		}
		return nil, fmt.Errorf("failed to connect to %s: %w", url, err)
	}

	c := &Client{
		conn:    conn,
		pending: make(map[uint64]chan Frame),
		changes: make(chan models.ChangeEvent, outboxSize),
		done:    make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

// Changes delivers pushed change events. It is closed when the connection
// ends. Events are dropped while the buffer is full.
func (c *Client) Changes() <-chan models.ChangeEvent {
	return c.changes
}

// Done is closed when the connection ends.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Call sends payload on channel and decodes the result into result, which
// may be nil. Error frames come back as *errors.LoreError.
func (c *Client) Call(ctx context.Context, channel string, payload, result interface{}) error {
	var raw json.RawMessage
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to encode %s payload: %w", channel, err)
		}
		raw = data
	}

	id := c.nextID.Add(1)
	reply := make(chan Frame, 1)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	c.pending[id] = reply
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
	}()

	c.writeMu.Lock()
	err := c.conn.WriteJSON(Frame{ID: id, Channel: channel, Payload: raw})
	c.writeMu.Unlock()
	if err != nil {
		return fmt.Errorf("failed to send %s request: %w", channel, err)
	}

	select {
	case f, ok := <-reply:
		if !ok {
			return ErrClosed
		}
		if f.Error != nil {
			return f.Error.Err()
		}
		if result != nil && len(f.Result) > 0 {
			if err := json.Unmarshal(f.Result, result); err != nil {
				return fmt.Errorf("failed to decode %s result: %w", channel, err)
			}
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close closes the connection and waits for the reader to finish.
func (c *Client) Close() error {
	c.writeMu.Lock()
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	c.writeMu.Unlock()
	err := c.conn.Close()
	<-c.done
	return err
}

func (c *Client) readLoop() {
	defer func() {
		c.mu.Lock()
		c.closed = true
		for id, reply := range c.pending {
			close(reply)
			delete(c.pending, id)
		}
		c.mu.Unlock()
		close(c.changes)
		close(c.done)
	}()

	for {
		var f Frame
		if err := c.conn.ReadJSON(&f); err != nil {
			return
		}

		if f.ID != 0 {
			c.mu.Lock()
			reply, ok := c.pending[f.ID]
			c.mu.Unlock()
			if ok {
				reply <- f
			}
			continue
		}

		if f.Channel != ChannelDidChange {
			continue
		}
		ev, err := models.UnmarshalChangeEvent(f.Payload)
		if err != nil {
			continue
		}
		select {
		case c.changes <- ev:
		default:
		}
	}
}

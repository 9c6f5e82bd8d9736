// Package bridge exposes workspace operations and change notifications to
// IPC clients as JSON frames over a websocket.
package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/grovetools/lore/errors"
	"github.com/grovetools/lore/pkg/models"
	"github.com/grovetools/lore/pkg/watcher"
	"github.com/grovetools/lore/pkg/workspace"
)

const (
	writeWait  = 10 * time.Second
	outboxSize = 256
)

// Subscriber is the source of change events relayed to every session.
type Subscriber interface {
	Subscribe(listener watcher.Listener) (unsubscribe func())
}

// Bridge serves IPC sessions. It implements http.Handler; each request is
// upgraded to a websocket and served until either side closes it.
type Bridge struct {
	ws       *workspace.Workspace
	changes  Subscriber
	logger   *logrus.Entry
	channels map[string]*channel
	upgrader websocket.Upgrader

	ctx      context.Context
	cancel   context.CancelFunc
	sessions sync.WaitGroup
}

// New creates a Bridge over ws relaying events from changes.
func New(ws *workspace.Workspace, changes Subscriber, logger *logrus.Entry) (*Bridge, error) {
	channels, err := defaultChannels()
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to build IPC channels")
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Bridge{
		ws:       ws,
		changes:  changes,
		logger:   logger,
		channels: channels,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		ctx:    ctx,
		cancel: cancel,
	}, nil
}

// Dispatch runs one request against the workspace.
func (b *Bridge) Dispatch(ctx context.Context, name string, payload json.RawMessage) (interface{}, error) {
	ch, ok := b.channels[name]
	if !ok {
		return nil, errors.InvalidInput(fmt.Sprintf("unknown channel %q", name)).WithDetail("channel", name)
	}
	return ch.handle(ctx, b.ws, payload)
}

// ServeHTTP upgrades the connection and serves the session.
func (b *Bridge) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if b.ctx.Err() != nil {
		http.Error(w, "bridge closed", http.StatusServiceUnavailable)
		return
	}
	conn, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already answered with an HTTP error.
		b.logger.WithError(err).Debug("IPC upgrade failed")
		return
	}

	b.sessions.Add(1)
	defer b.sessions.Done()
	b.serve(conn)
}

// Close ends every open session and waits for them to finish. Hijacked
// connections are not closed by http.Server.Shutdown, so the daemon calls
// this on the way out.
func (b *Bridge) Close() {
	b.cancel()
	b.sessions.Wait()
}

type session struct {
	conn   *websocket.Conn
	out    chan Frame
	ctx    context.Context
	cancel context.CancelFunc
	logger *logrus.Entry
}

func (b *Bridge) serve(conn *websocket.Conn) {
	ctx, cancel := context.WithCancel(b.ctx)
	defer cancel()

	s := &session{
		conn:   conn,
		out:    make(chan Frame, outboxSize),
		ctx:    ctx,
		cancel: cancel,
		logger: b.logger.WithField("remote", conn.RemoteAddr().String()),
	}
	s.logger.Debug("IPC client connected")

	unsubscribe := b.changes.Subscribe(func(ev models.ChangeEvent) {
		data, err := json.Marshal(ev)
		if err != nil {
			s.logger.WithError(err).Error("Failed to encode change event")
			return
		}
		s.send(Frame{Channel: ChannelDidChange, Payload: data})
	})
	defer unsubscribe()

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		s.writeLoop()
	}()

	var inflight sync.WaitGroup
	for {
		var f Frame
		if err := conn.ReadJSON(&f); err != nil {
			if ctx.Err() == nil && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.WithError(err).Debug("IPC read failed")
			}
			break
		}
		inflight.Add(1)
		go func(f Frame) {
			defer inflight.Done()
			s.send(b.respond(ctx, f))
		}(f)
	}

	cancel()
	inflight.Wait()
	<-writerDone
	s.logger.Debug("IPC client disconnected")
}

func (b *Bridge) respond(ctx context.Context, req Frame) Frame {
	resp := Frame{ID: req.ID, Channel: req.Channel}
	start := time.Now()

	result, err := b.Dispatch(ctx, req.Channel, req.Payload)
	if err == nil {
		resp.Result, err = json.Marshal(result)
		if err != nil {
			err = errors.Wrap(err, errors.ErrCodeInternal, "failed to encode result")
		}
	}

	entry := b.logger.WithFields(logrus.Fields{
		"channel":  req.Channel,
		"id":       req.ID,
		"duration": time.Since(start),
	})
	if err != nil {
		resp.Result = nil
		resp.Error = newFrameError(err)
		entry.WithField("code", resp.Error.Code).Debug("IPC request failed")
	} else {
		entry.Debug("IPC request served")
	}
	return resp
}

// send queues f for the writer. A client that lets the queue fill up is
// disconnected.
func (s *session) send(f Frame) {
	select {
	case <-s.ctx.Done():
		return
	default:
	}
	select {
	case s.out <- f:
	default:
		s.logger.Warn("IPC client is not keeping up, closing connection")
		s.cancel()
	}
}

func (s *session) writeLoop() {
	defer s.conn.Close()
	for {
		select {
		case <-s.ctx.Done():
			msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
			_ = s.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
			return
		case f := <-s.out:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteJSON(f); err != nil {
				s.logger.WithError(err).Debug("IPC write failed")
				s.cancel()
				return
			}
		}
	}
}

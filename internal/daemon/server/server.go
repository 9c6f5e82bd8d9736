// Package server provides the HTTP adapter of the lore daemon.
package server

import (
	"context"
	stderrors "errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/grovetools/lore/internal/daemon/bridge"
	"github.com/grovetools/lore/pkg/workspace"
)

// maxBodyBytes bounds POST bodies.
const maxBodyBytes = 64 << 20

// RunningConfig describes the daemon instance. It is served on /status so
// clients can verify what they are talking to.
type RunningConfig struct {
	Root      string    `json:"root"`
	Socket    string    `json:"socket"`
	Listen    string    `json:"listen,omitempty"`
	PID       int       `json:"pid"`
	Version   string    `json:"version"`
	StartedAt time.Time `json:"started_at"`
}

// Server manages the daemon's HTTP listeners.
type Server struct {
	logger        *logrus.Entry
	ws            *workspace.Workspace
	changes       bridge.Subscriber
	bridge        *bridge.Bridge
	handler       http.Handler
	runningConfig *RunningConfig

	mu      sync.Mutex
	servers []*http.Server
	closing chan struct{}
	closed  bool
}

// New creates a Server over ws. Change events for /workspace/events and
// /ipc come from changes.
func New(ws *workspace.Workspace, changes bridge.Subscriber, logger *logrus.Entry) (*Server, error) {
	b, err := bridge.New(ws, changes, logger.WithField("adapter", "ipc"))
	if err != nil {
		return nil, err
	}
	s := &Server{
		logger:  logger,
		ws:      ws,
		changes: changes,
		bridge:  b,
		closing: make(chan struct{}),
	}
	s.handler = s.routes()
	return s, nil
}

// SetRunningConfig sets the instance description served on /status.
func (s *Server) SetRunningConfig(cfg *RunningConfig) {
	s.runningConfig = cfg
}

// Handler returns the HTTP handler without the h2c wrapper.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// ListenUnix opens the daemon socket, replacing a stale one, and restricts
// it to the current user.
func ListenUnix(socketPath string) (net.Listener, error) {
	if _, err := os.Stat(socketPath); err == nil {
		if err := os.Remove(socketPath); err != nil {
			return nil, fmt.Errorf("failed to remove stale socket: %w", err)
		}
	}

	if err := os.MkdirAll(filepath.Dir(socketPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create socket directory: %w", err)
	}

	listener, err := net.Listen("unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on socket: %w", err)
	}

	if err := os.Chmod(socketPath, 0600); err != nil {
		_ = listener.Close()
		return nil, fmt.Errorf("failed to set socket permissions: %w", err)
	}
	return listener, nil
}

// ListenAndServe serves on the given unix socket until Shutdown.
func (s *Server) ListenAndServe(socketPath string) error {
	listener, err := ListenUnix(socketPath)
	if err != nil {
		return err
	}
	s.logger.WithField("socket", socketPath).Info("Daemon listening")
	return s.Serve(listener)
}

// ListenAndServeTCP serves on a TCP address until Shutdown.
func (s *Server) ListenAndServeTCP(addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	s.logger.WithField("addr", listener.Addr().String()).Info("HTTP adapter listening")
	return s.Serve(listener)
}

// Serve accepts connections on l until Shutdown. It returns nil after a
// clean shutdown.
func (s *Server) Serve(l net.Listener) error {
	srv := &http.Server{
		Handler:           h2c.NewHandler(s.handler, &http2.Server{}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		_ = l.Close()
		return nil
	}
	s.servers = append(s.servers, srv)
	s.mu.Unlock()

	if err := srv.Serve(l); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully stops every listener, ends event streams and closes
// IPC sessions.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down server...")

	s.mu.Lock()
	if !s.closed {
		s.closed = true
		close(s.closing)
	}
	servers := append([]*http.Server(nil), s.servers...)
	s.mu.Unlock()

	s.bridge.Close()

	var firstErr error
	for _, srv := range servers {
		if err := srv.Shutdown(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

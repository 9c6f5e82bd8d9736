package server

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"

	"github.com/grovetools/lore/errors"
	"github.com/grovetools/lore/internal/daemon/bridge"
	"github.com/grovetools/lore/pkg/models"
)

// eventBuffer is how many change events may queue for one SSE client.
const eventBuffer = 256

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("GET /status", s.handleStatus)

	mux.HandleFunc("GET /workspace/root", s.query(bridge.ChannelGetRoot))
	mux.HandleFunc("GET /workspace/readdir", s.query(bridge.ChannelReaddir, "path", "?recursive"))
	mux.HandleFunc("GET /workspace/readFile", s.query(bridge.ChannelReadFile, "path", "encoding"))
	mux.HandleFunc("GET /workspace/exists", s.query(bridge.ChannelExists, "path"))
	mux.HandleFunc("GET /workspace/stat", s.query(bridge.ChannelStat, "path"))

	mux.HandleFunc("POST /workspace/writeFile", s.command(bridge.ChannelWriteFile))
	mux.HandleFunc("POST /workspace/mkdir", s.command(bridge.ChannelMkdir))
	mux.HandleFunc("POST /workspace/rename", s.command(bridge.ChannelRename))
	mux.HandleFunc("POST /workspace/remove", s.command(bridge.ChannelRemove))

	mux.HandleFunc("GET /workspace/events", s.handleEvents)
	mux.Handle("GET /ipc", s.bridge)

	return withCORS(withRequestLog(s.logger, mux))
}

// query serves a GET route by turning query parameters into a channel
// payload. Parameters prefixed with "?" are booleans. Absent parameters are
// left out, so the channel schema decides which ones are required.
func (s *Server) query(channel string, params ...string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		payload := make(map[string]interface{}, len(params))
		for _, p := range params {
			name, isBool := p, false
			if p[0] == '?' {
				name, isBool = p[1:], true
			}
			if !q.Has(name) {
				continue
			}
			value := q.Get(name)
			if !isBool {
				// An empty path names the root; other empty values mean "default".
				if value != "" || name == "path" {
					payload[name] = value
				}
				continue
			}
			if value == "" {
				payload[name] = true
				continue
			}
			b, err := strconv.ParseBool(value)
			if err != nil {
				writeError(w, errors.InvalidInput(fmt.Sprintf("%s must be a boolean, got %q", name, value)).
					WithDetail("param", name))
				return
			}
			payload[name] = b
		}

		data, err := json.Marshal(payload)
		if err != nil {
			writeError(w, errors.Wrap(err, errors.ErrCodeInternal, "failed to encode request"))
			return
		}
		s.dispatch(w, r, channel, data)
	}
}

// command serves a POST route whose JSON body is the channel payload.
func (s *Server) command(channel string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
		if err != nil {
			writeError(w, errors.Wrap(err, errors.ErrCodeInvalidInput, "failed to read request body"))
			return
		}
		if !json.Valid(body) && len(body) > 0 {
			writeError(w, errors.InvalidInput("request body is not valid JSON"))
			return
		}
		s.dispatch(w, r, channel, body)
	}
}

func (s *Server) dispatch(w http.ResponseWriter, r *http.Request, channel string, payload json.RawMessage) {
	result, err := s.bridge.Dispatch(r.Context(), channel, payload)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if s.runningConfig == nil {
		http.Error(w, "config not initialized", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, s.runningConfig)
}

// handleEvents streams change events as Server-Sent Events, one JSON
// ChangeEvent per data line.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	events := make(chan models.ChangeEvent, eventBuffer)
	overflow := make(chan struct{})
	var overflowOnce sync.Once
	unsubscribe := s.changes.Subscribe(func(ev models.ChangeEvent) {
		select {
		case events <- ev:
		default:
			overflowOnce.Do(func() { close(overflow) })
		}
	})
	defer unsubscribe()

	fmt.Fprintf(w, ": connected\n\n")
	flusher.Flush()
	s.logger.Debug("SSE client connected")

	for {
		select {
		case <-r.Context().Done():
			s.logger.Debug("SSE client disconnected")
			return
		case <-s.closing:
			return
		case <-overflow:
			s.logger.Warn("SSE client is not keeping up, closing stream")
			return
		case ev := <-events:
			data, err := json.Marshal(ev)
			if err != nil {
				s.logger.WithError(err).Error("Failed to marshal change event")
				continue
			}
			fmt.Fprintf(w, "data: %s\n\n", data)
			flusher.Flush()
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, errors.HTTPStatus(err), errors.ToPayload(err))
}

package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/invopop/jsonschema"

	"github.com/grovetools/lore/errors"
	"github.com/grovetools/lore/pkg/workspace"
	"github.com/grovetools/lore/schema"
)

// Request/response channels.
const (
	ChannelGetRoot   = "workspace:getRoot"
	ChannelExists    = "workspace:exists"
	ChannelStat      = "workspace:stat"
	ChannelReaddir   = "workspace:readdir"
	ChannelReadFile  = "workspace:readFile"
	ChannelWriteFile = "workspace:writeFile"
	ChannelMkdir     = "workspace:mkdir"
	ChannelRename    = "workspace:rename"
	ChannelRemove    = "workspace:remove"
)

// ChannelDidChange is the push channel carrying change events.
const ChannelDidChange = "workspace:didChange"

// GetRootRequest has no fields.
type GetRootRequest struct{}

// PathRequest is the payload of exists and stat.
type PathRequest struct {
	Path string `json:"path"`
}

// ReaddirRequest takes its options nested under opts; a top-level
// recursive flag is accepted as well.
type ReaddirRequest struct {
	Path      string                    `json:"path"`
	Opts      *workspace.ReadDirOptions `json:"opts,omitempty"`
	Recursive bool                      `json:"recursive,omitempty"`
}

func (r ReaddirRequest) options() workspace.ReadDirOptions {
	return workspace.ReadDirOptions{Recursive: r.Recursive || (r.Opts != nil && r.Opts.Recursive)}
}

type ReadFileRequest struct {
	Path     string             `json:"path"`
	Encoding workspace.Encoding `json:"encoding,omitempty" jsonschema:"enum=utf8,enum=base64"`
}

type WriteFileRequest struct {
	Path string                  `json:"path"`
	Data string                  `json:"data"`
	Opts *workspace.WriteOptions `json:"opts,omitempty"`
}

// MkdirRequest creates parents unless Recursive is explicitly false.
type MkdirRequest struct {
	Path      string `json:"path"`
	Recursive *bool  `json:"recursive,omitempty"`
}

type RenameRequest struct {
	From      string `json:"from"`
	To        string `json:"to"`
	Overwrite bool   `json:"overwrite,omitempty"`
}

// RemoveRequest mirrors ReaddirRequest: opts.recursive or recursive.
type RemoveRequest struct {
	Path      string                   `json:"path"`
	Opts      *workspace.RemoveOptions `json:"opts,omitempty"`
	Recursive bool                     `json:"recursive,omitempty"`
}

func (r RemoveRequest) options() workspace.RemoveOptions {
	return workspace.RemoveOptions{Recursive: r.Recursive || (r.Opts != nil && r.Opts.Recursive)}
}

// RootResult answers ChannelGetRoot.
type RootResult struct {
	Root string `json:"root"`
}

// ExistsResult answers ChannelExists.
type ExistsResult struct {
	Exists bool `json:"exists"`
}

// OKResult answers mutating channels.
type OKResult struct {
	OK bool `json:"ok"`
}

type handlerFunc func(ctx context.Context, ws *workspace.Workspace, payload json.RawMessage) (interface{}, error)

type channel struct {
	name   string
	schema []byte
	handle handlerFunc
}

// route binds a typed handler to a channel. The request type's JSON schema
// is reflected once and every payload is validated against it before it is
// decoded.
func route[T any](name string, fn func(ctx context.Context, ws *workspace.Workspace, req T) (interface{}, error)) (*channel, error) {
	r := &jsonschema.Reflector{
		AllowAdditionalProperties: false,
		ExpandedStruct:            true,
		DoNotReference:            true,
		Anonymous:                 true,
	}
	s := r.Reflect(new(T))
	s.Version = "http://json-schema.org/draft-07/schema#"
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("marshal schema for %s: %w", name, err)
	}
	v, err := schema.NewValidator("ipc-"+strings.ReplaceAll(name, ":", "-")+".json", data)
	if err != nil {
		return nil, fmt.Errorf("compile schema for %s: %w", name, err)
	}

	return &channel{
		name:   name,
		schema: v.Source(),
		handle: func(ctx context.Context, ws *workspace.Workspace, payload json.RawMessage) (interface{}, error) {
			if len(payload) == 0 {
				payload = json.RawMessage("{}")
			}
			if err := v.ValidateJSON(payload); err != nil {
				return nil, errors.Wrap(err, errors.ErrCodeInvalidInput, fmt.Sprintf("invalid %s payload", name))
			}
			var req T
			if err := json.Unmarshal(payload, &req); err != nil {
				return nil, errors.Wrap(err, errors.ErrCodeInvalidInput, fmt.Sprintf("invalid %s payload", name))
			}
			return fn(ctx, ws, req)
		},
	}, nil
}

// Schema returns the JSON schema payloads of a channel are validated
// against, or nil for unknown channels.
func Schema(name string) []byte {
	channels, err := defaultChannels()
	if err != nil {
		return nil
	}
	ch, ok := channels[name]
	if !ok {
		return nil
	}
	return ch.schema
}

// Channels lists the request/response channel names.
func Channels() []string {
	return []string{
		ChannelGetRoot, ChannelExists, ChannelStat, ChannelReaddir, ChannelReadFile,
		ChannelWriteFile, ChannelMkdir, ChannelRename, ChannelRemove,
	}
}

var (
	channelsOnce sync.Once
	channelsMap  map[string]*channel
	channelsErr  error
)

func defaultChannels() (map[string]*channel, error) {
	channelsOnce.Do(func() {
		channelsMap, channelsErr = buildChannels()
	})
	return channelsMap, channelsErr
}

func buildChannels() (map[string]*channel, error) {
	builders := []func() (*channel, error){
		func() (*channel, error) {
			return route(ChannelGetRoot, func(_ context.Context, ws *workspace.Workspace, _ GetRootRequest) (interface{}, error) {
				return RootResult{Root: ws.Root()}, nil
			})
		},
		func() (*channel, error) {
			return route(ChannelExists, func(ctx context.Context, ws *workspace.Workspace, req PathRequest) (interface{}, error) {
				exists, err := ws.Exists(ctx, req.Path)
				if err != nil {
					return nil, err
				}
				return ExistsResult{Exists: exists}, nil
			})
		},
		func() (*channel, error) {
			return route(ChannelStat, func(ctx context.Context, ws *workspace.Workspace, req PathRequest) (interface{}, error) {
				return ws.Stat(ctx, req.Path)
			})
		},
		func() (*channel, error) {
			return route(ChannelReaddir, func(ctx context.Context, ws *workspace.Workspace, req ReaddirRequest) (interface{}, error) {
				return ws.ReadDir(ctx, req.Path, req.options())
			})
		},
		func() (*channel, error) {
			return route(ChannelReadFile, func(ctx context.Context, ws *workspace.Workspace, req ReadFileRequest) (interface{}, error) {
				return ws.ReadFile(ctx, req.Path, req.Encoding)
			})
		},
		func() (*channel, error) {
			return route(ChannelWriteFile, func(ctx context.Context, ws *workspace.Workspace, req WriteFileRequest) (interface{}, error) {
				var opts workspace.WriteOptions
				if req.Opts != nil {
					opts = *req.Opts
				}
				return ws.WriteFile(ctx, req.Path, req.Data, opts)
			})
		},
		func() (*channel, error) {
			return route(ChannelMkdir, func(ctx context.Context, ws *workspace.Workspace, req MkdirRequest) (interface{}, error) {
				recursive := req.Recursive == nil || *req.Recursive
				if err := ws.Mkdir(ctx, req.Path, recursive); err != nil {
					return nil, err
				}
				return OKResult{OK: true}, nil
			})
		},
		func() (*channel, error) {
			return route(ChannelRename, func(ctx context.Context, ws *workspace.Workspace, req RenameRequest) (interface{}, error) {
				if err := ws.Rename(ctx, req.From, req.To, req.Overwrite); err != nil {
					return nil, err
				}
				return OKResult{OK: true}, nil
			})
		},
		func() (*channel, error) {
			return route(ChannelRemove, func(ctx context.Context, ws *workspace.Workspace, req RemoveRequest) (interface{}, error) {
				if err := ws.Remove(ctx, req.Path, req.options()); err != nil {
					return nil, err
				}
				return OKResult{OK: true}, nil
			})
		},
	}

	channels := make(map[string]*channel, len(builders))
	for _, build := range builders {
		ch, err := build()
		if err != nil {
			return nil, err
		}
		channels[ch.name] = ch
	}
	return channels, nil
}

package bridge

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grovetools/lore/errors"
	"github.com/grovetools/lore/pkg/models"
	"github.com/grovetools/lore/pkg/watcher"
	"github.com/grovetools/lore/pkg/workspace"
	"github.com/grovetools/lore/testutil"
)

type fixture struct {
	root   string
	bridge *Bridge
	events *watcher.Broadcaster
	client *Client
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	root := testutil.NewWorkspaceRoot(t)
	ws, err := workspace.Open(root)
	require.NoError(t, err)

	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)

	events := watcher.NewBroadcaster()
	b, err := New(ws, events, logrus.NewEntry(logger))
	require.NoError(t, err)

	srv := httptest.NewServer(b)
	t.Cleanup(func() {
		b.Close()
		srv.Close()
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	client, err := Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http"))
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	require.Eventually(t, func() bool { return events.Len() == 1 }, 2*time.Second, 10*time.Millisecond,
		"session should subscribe to change events")

	return &fixture{root: root, bridge: b, events: events, client: client}
}

func call(t *testing.T, c *Client, channel string, payload, result interface{}) error {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return c.Call(ctx, channel, payload, result)
}

func TestBridgeWorkspaceChannels(t *testing.T) {
	f := newFixture(t)
	c := f.client

	var root RootResult
	require.NoError(t, call(t, c, ChannelGetRoot, nil, &root))
	assert.Equal(t, f.root, root.Root)

	var written workspace.WriteFileResult
	require.NoError(t, call(t, c, ChannelWriteFile, WriteFileRequest{Path: "knowledge/a.md", Data: "hello"}, &written))
	assert.Equal(t, 5, written.BytesWritten)

	var read workspace.ReadFileResult
	require.NoError(t, call(t, c, ChannelReadFile, ReadFileRequest{Path: "knowledge/a.md"}, &read))
	assert.Equal(t, workspace.ReadFileResult{Data: "hello", Encoding: workspace.EncodingUTF8}, read)

	require.NoError(t, call(t, c, ChannelReadFile, ReadFileRequest{Path: "knowledge/a.md", Encoding: workspace.EncodingBase64}, &read))
	assert.Equal(t, "aGVsbG8=", read.Data)

	var entries []workspace.DirEntry
	require.NoError(t, call(t, c, ChannelReaddir, ReaddirRequest{Path: "knowledge"}, &entries))
	assert.Equal(t, []workspace.DirEntry{{Name: "a.md", Path: "knowledge/a.md", Kind: models.KindFile}}, entries)

	var ok OKResult
	require.NoError(t, call(t, c, ChannelMkdir, MkdirRequest{Path: "runs/2024"}, &ok))
	assert.True(t, ok.OK)
	assert.DirExists(t, f.root+"/runs/2024")

	require.NoError(t, call(t, c, ChannelRename, RenameRequest{From: "knowledge/a.md", To: "knowledge/b.md"}, &ok))

	var exists ExistsResult
	require.NoError(t, call(t, c, ChannelExists, PathRequest{Path: "knowledge/a.md"}, &exists))
	assert.False(t, exists.Exists)
	require.NoError(t, call(t, c, ChannelExists, PathRequest{Path: "knowledge/b.md"}, &exists))
	assert.True(t, exists.Exists)

	var st workspace.Stat
	require.NoError(t, call(t, c, ChannelStat, PathRequest{Path: "knowledge/b.md"}, &st))
	assert.Equal(t, models.KindFile, st.Kind)
	assert.EqualValues(t, 5, st.Size)

	require.NoError(t, call(t, c, ChannelRemove, RemoveRequest{Path: "knowledge", Recursive: true}, &ok))
	assert.NoDirExists(t, f.root+"/knowledge")
}

func TestBridgeErrors(t *testing.T) {
	f := newFixture(t)
	c := f.client

	tests := []struct {
		name    string
		channel string
		payload interface{}
		code    errors.ErrorCode
	}{
		{"missing file", ChannelStat, PathRequest{Path: "nope.md"}, errors.ErrCodeNotFound},
		{"escape", ChannelReadFile, ReadFileRequest{Path: "../etc/passwd"}, errors.ErrCodeOutOfBounds},
		{"unknown channel", "workspace:format", PathRequest{Path: "a"}, errors.ErrCodeInvalidInput},
		{"wrong type", ChannelReaddir, map[string]interface{}{"path": 5}, errors.ErrCodeInvalidInput},
		{"missing field", ChannelRename, map[string]interface{}{"from": "a"}, errors.ErrCodeInvalidInput},
		{"extra field", ChannelExists, map[string]interface{}{"path": "a", "force": true}, errors.ErrCodeInvalidInput},
		{"bad encoding", ChannelReadFile, map[string]interface{}{"path": "a", "encoding": "latin1"}, errors.ErrCodeInvalidInput},
		{"not empty", ChannelRemove, RemoveRequest{Path: "dir"}, errors.ErrCodeNotEmpty},
	}

	testutil.WriteFiles(t, f.root, map[string]string{"dir/child.md": "x"})

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := call(t, c, tt.channel, tt.payload, nil)
			require.Error(t, err)
			assert.Equal(t, tt.code, errors.GetCode(err), "got %v", err)
		})
	}
}

func TestBridgeNestedOptions(t *testing.T) {
	f := newFixture(t)
	c := f.client
	testutil.WriteFiles(t, f.root, map[string]string{"knowledge/sub/a.md": "a"})

	var entries []workspace.DirEntry
	payload := map[string]interface{}{"path": "knowledge", "opts": map[string]interface{}{"recursive": true}}
	require.NoError(t, call(t, c, ChannelReaddir, payload, &entries))
	var paths []string
	for _, e := range entries {
		paths = append(paths, e.Path)
	}
	assert.ElementsMatch(t, []string{"knowledge/sub", "knowledge/sub/a.md"}, paths)

	require.NoError(t, call(t, c, ChannelReaddir, map[string]interface{}{"path": "", "opts": map[string]interface{}{}}, &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, "knowledge", entries[0].Path)

	err := call(t, c, ChannelReaddir, map[string]interface{}{"path": "", "opts": map[string]interface{}{"depth": 2}}, nil)
	assert.Equal(t, errors.ErrCodeInvalidInput, errors.GetCode(err), "got %v", err)

	var ok OKResult
	require.NoError(t, call(t, c, ChannelRemove, RemoveRequest{Path: "knowledge", Opts: &workspace.RemoveOptions{Recursive: true}}, &ok))
	assert.True(t, ok.OK)
	assert.NoDirExists(t, f.root+"/knowledge")
}

func TestBridgeRelaysChanges(t *testing.T) {
	f := newFixture(t)

	f.events.Publish(models.Created{Path: "agents", Kind: models.KindDir})
	f.events.Publish(models.BulkChanged{Paths: []string{"a.md", "b.md"}})

	var got []models.ChangeEvent
	timeout := time.After(3 * time.Second)
	for len(got) < 2 {
		select {
		case ev := <-f.client.Changes():
			got = append(got, ev)
		case <-timeout:
			t.Fatalf("timed out waiting for change events, got %v", got)
		}
	}
	assert.Equal(t, []models.ChangeEvent{
		models.Created{Path: "agents", Kind: models.KindDir},
		models.BulkChanged{Paths: []string{"a.md", "b.md"}},
	}, got)
}

func TestBridgeReleasesSubscriptionOnDisconnect(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.client.Close())
	require.Eventually(t, func() bool { return f.events.Len() == 0 }, 2*time.Second, 10*time.Millisecond)

	assert.ErrorIs(t, call(t, f.client, ChannelGetRoot, nil, nil), ErrClosed)
}

func TestBridgeCloseEndsSessions(t *testing.T) {
	f := newFixture(t)

	f.bridge.Close()

	select {
	case <-f.client.Done():
	case <-time.After(3 * time.Second):
		t.Fatal("client connection should end when the bridge closes")
	}
	_, open := <-f.client.Changes()
	assert.False(t, open)
	assert.Zero(t, f.events.Len())
}

func TestDispatchWithoutConnection(t *testing.T) {
	root := testutil.NewWorkspaceRoot(t)
	ws, err := workspace.Open(root)
	require.NoError(t, err)
	b, err := New(ws, watcher.NewBroadcaster(), logrus.NewEntry(logrus.New()))
	require.NoError(t, err)
	defer b.Close()

	result, err := b.Dispatch(context.Background(), ChannelMkdir, json.RawMessage(`{"path":"a/b","recursive":false}`))
	assert.Nil(t, result)
	assert.Error(t, err, "non-recursive mkdir needs the parent")

	result, err = b.Dispatch(context.Background(), ChannelMkdir, json.RawMessage(`{"path":"a/b"}`))
	require.NoError(t, err)
	assert.Equal(t, OKResult{OK: true}, result)
}

func TestChannelSchemas(t *testing.T) {
	for _, name := range Channels() {
		data := Schema(name)
		require.NotNil(t, data, name)

		var doc map[string]interface{}
		require.NoError(t, json.Unmarshal(data, &doc), name)
		assert.Equal(t, "object", doc["type"], name)
		assert.Equal(t, false, doc["additionalProperties"], name)
	}

	var rename map[string]interface{}
	require.NoError(t, json.Unmarshal(Schema(ChannelRename), &rename))
	assert.ElementsMatch(t, []interface{}{"from", "to"}, rename["required"])

	assert.Nil(t, Schema(ChannelDidChange))
}

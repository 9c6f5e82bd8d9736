package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grovetools/lore/errors"
	"github.com/grovetools/lore/internal/bootstrap"
	"github.com/grovetools/lore/logging"
	"github.com/grovetools/lore/pkg/daemon"
	"github.com/grovetools/lore/pkg/models"
	"github.com/grovetools/lore/pkg/paths"
	"github.com/grovetools/lore/pkg/workspace"
	"github.com/grovetools/lore/testutil"
)

// isolate points every lore location at fresh temp directories and returns
// the workspace root. The app home is kept short so the socket path fits.
func isolate(t *testing.T) string {
	t.Helper()

	appHome, err := os.MkdirTemp("", "lore")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(appHome) })
	root := testutil.NewWorkspaceRoot(t)

	t.Setenv("LORE_APP_HOME", appHome)
	t.Setenv("LORE_HOME", root)
	t.Setenv("LORE_CONFIG", "")
	t.Setenv("LORE_LOG_LEVEL", "error")
	logging.Reset()
	t.Cleanup(logging.Reset)
	return root
}

type result struct {
	stdout string
	stderr string
	err    error
}

func run(t *testing.T, stdin io.Reader, args ...string) result {
	t.Helper()
	return runContext(context.Background(), stdin, args...)
}

func runContext(ctx context.Context, stdin io.Reader, args ...string) result {
	root := NewRootCmd()
	var stdout, stderr bytes.Buffer
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	if stdin != nil {
		root.SetIn(stdin)
	}
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)
	return result{stdout: stdout.String(), stderr: stderr.String(), err: err}
}

func TestWorkspaceCommandsLocal(t *testing.T) {
	root := isolate(t)

	res := run(t, nil, "write", "knowledge/note.md", "# Note")
	require.NoError(t, res.err)
	assert.Contains(t, res.stderr, "Wrote 6 bytes to knowledge/note.md")

	res = run(t, nil, "cat", "knowledge/note.md")
	require.NoError(t, res.err)
	assert.Equal(t, "# Note", res.stdout)

	require.NoError(t, run(t, nil, "mkdir", "runs/2024/jan", "-p").err)
	require.NoError(t, run(t, nil, "mv", "knowledge/note.md", "runs/2024/note.md").err)

	res = run(t, nil, "ls", "-r")
	require.NoError(t, res.err)
	assert.ElementsMatch(t, []string{"knowledge/", "runs/", "runs/2024/", "runs/2024/jan/", "runs/2024/note.md"},
		strings.Fields(res.stdout))

	res = run(t, nil, "ls", "runs/2024", "--json")
	require.NoError(t, res.err)
	var entries []workspace.DirEntry
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &entries))
	assert.Len(t, entries, 2)

	res = run(t, nil, "stat", "runs/2024/note.md", "--json")
	require.NoError(t, res.err)
	var st workspace.Stat
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &st))
	assert.Equal(t, models.KindFile, st.Kind)
	assert.EqualValues(t, 6, st.Size)

	res = run(t, nil, "exists", "knowledge/note.md")
	require.NoError(t, res.err)
	assert.Equal(t, "false\n", res.stdout)

	res = run(t, nil, "rm", "runs")
	assert.True(t, errors.Is(res.err, errors.ErrCodeNotEmpty), "got %v", res.err)
	require.NoError(t, run(t, nil, "rm", "runs", "-r").err)
	assert.NoDirExists(t, filepath.Join(root, "runs"))

	res = run(t, nil, "root")
	require.NoError(t, res.err)
	assert.Equal(t, root+"\n", res.stdout)
}

func TestWriteFromStdin(t *testing.T) {
	root := isolate(t)

	binary := []byte{0x00, 0x01, 0x02, 0xff}
	require.NoError(t, run(t, bytes.NewReader(binary), "write", "runs/blob.bin").err)
	got, err := os.ReadFile(filepath.Join(root, "runs", "blob.bin"))
	require.NoError(t, err)
	assert.Equal(t, binary, got)

	res := run(t, nil, "cat", "runs/blob.bin", "--base64")
	require.NoError(t, res.err)
	assert.Equal(t, "AAEC/w==\n", res.stdout)

	require.NoError(t, run(t, strings.NewReader("aGk=\n"), "write", "hi.txt", "-", "--base64").err)
	got, err = os.ReadFile(filepath.Join(root, "hi.txt"))
	require.NoError(t, err)
	assert.Equal(t, "hi", string(got))
}

func TestWriteExpectMtime(t *testing.T) {
	isolate(t)

	require.NoError(t, run(t, nil, "write", "a.md", "v1").err)
	res := run(t, nil, "stat", "a.md", "--json")
	require.NoError(t, res.err)
	var st workspace.Stat
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &st))

	mtime := st.Mtime.Format(time.RFC3339Nano)
	// Let the clock move past the filesystem's timestamp granularity.
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, run(t, nil, "write", "a.md", "v2", "--expect-mtime", mtime).err)

	res = run(t, nil, "write", "a.md", "v3", "--expect-mtime", mtime)
	assert.True(t, errors.Is(res.err, errors.ErrCodeConflict), "got %v", res.err)

	res = run(t, nil, "write", "a.md", "v3", "--expect-mtime", "yesterday")
	assert.True(t, errors.Is(res.err, errors.ErrCodeInvalidInput), "got %v", res.err)
}

func TestCommandErrorsKeepCodes(t *testing.T) {
	isolate(t)

	res := run(t, nil, "cat", "missing.md")
	assert.True(t, errors.Is(res.err, errors.ErrCodeNotFound), "got %v", res.err)

	res = run(t, nil, "ls", "../elsewhere")
	assert.True(t, errors.Is(res.err, errors.ErrCodeOutOfBounds), "got %v", res.err)

	res = run(t, nil, "watch")
	assert.True(t, errors.Is(res.err, errors.ErrCodeInvalidInput), "watch needs the daemon, got %v", res.err)
}

func TestServeAndRemoteCommands(t *testing.T) {
	root := isolate(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	served := make(chan result, 1)
	go func() { served <- runContext(ctx, nil, "serve", "--listen", "") }()

	require.Eventually(t, func() bool { return daemon.Reachable(paths.SocketPath()) },
		5*time.Second, 20*time.Millisecond, "daemon did not come up")

	assert.FileExists(t, filepath.Join(root, filepath.FromSlash(bootstrap.WelcomePath)))

	res := run(t, nil, "ls")
	require.NoError(t, res.err)
	assert.ElementsMatch(t, []string{"agents/", "config/", "knowledge/", "runs/"}, strings.Fields(res.stdout))

	require.NoError(t, run(t, nil, "write", "knowledge/remote.md", "over the socket").err)
	res = run(t, nil, "cat", "knowledge/remote.md")
	require.NoError(t, res.err)
	assert.Equal(t, "over the socket", res.stdout)

	res = run(t, nil, "cat", "knowledge/nope.md")
	assert.True(t, errors.Is(res.err, errors.ErrCodeNotFound), "remote errors keep their code, got %v", res.err)

	res = run(t, nil, "status", "--json")
	require.NoError(t, res.err)
	var status struct {
		Running bool   `json:"running"`
		Root    string `json:"root"`
		PID     int    `json:"pid"`
	}
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &status))
	assert.True(t, status.Running)
	assert.Equal(t, root, status.Root)
	assert.Equal(t, os.Getpid(), status.PID)

	res = run(t, nil, "ipc", "call", "workspace:exists", `{"path":"knowledge/remote.md"}`)
	require.NoError(t, res.err)
	assert.JSONEq(t, `{"exists": true}`, res.stdout)

	cancel()
	select {
	case res := <-served:
		require.NoError(t, res.err)
		assert.Contains(t, res.stderr, "Serving "+root)
		assert.Contains(t, res.stderr, "Daemon stopped")
	case <-time.After(10 * time.Second):
		t.Fatal("serve did not return after cancellation")
	}
	assert.NoFileExists(t, paths.PidFilePath())
	assert.False(t, daemon.Reachable(paths.SocketPath()))
}

func TestServeRefusesSecondInstance(t *testing.T) {
	isolate(t)

	// A live process other than ours holds the pid file.
	require.NoError(t, os.MkdirAll(filepath.Dir(paths.PidFilePath()), 0755))
	require.NoError(t, os.WriteFile(paths.PidFilePath(), []byte("1"), 0644))

	res := run(t, nil, "serve", "--listen", "")
	require.Error(t, res.err)
	assert.Contains(t, res.err.Error(), "already running")
}

func TestStatusWhenStopped(t *testing.T) {
	isolate(t)

	res := run(t, nil, "status")
	var exitErr *ExitError
	require.ErrorAs(t, res.err, &exitErr)
	assert.Equal(t, 1, exitErr.Code)
	assert.Equal(t, "Stopped\n", res.stdout)

	res = run(t, nil, "stop")
	require.NoError(t, res.err)
	assert.Contains(t, res.stderr, "not running")
}

func TestTimingFlag(t *testing.T) {
	isolate(t)

	res := run(t, nil, "--timing", "exists", "missing.md")
	require.NoError(t, res.err)
	assert.Equal(t, "false\n", res.stdout)
	assert.Contains(t, res.stderr, "--- timing ---")
	assert.Contains(t, res.stderr, "open client")
	assert.Contains(t, res.stderr, "exists")
}

func TestPathsCmd(t *testing.T) {
	root := isolate(t)

	res := run(t, nil, "paths")
	require.NoError(t, res.err)
	var out PathsOutput
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &out))
	assert.Equal(t, root, out.WorkspaceRoot)
	assert.Equal(t, paths.SocketPath(), out.Socket)
	assert.Equal(t, paths.PidFilePath(), out.PidFile)
	assert.Equal(t, paths.LogDir(), out.LogDir)
}

func TestConfigCmds(t *testing.T) {
	isolate(t)

	res := run(t, nil, "config", "schema")
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, `"$schema"`)
	assert.Contains(t, res.stdout, "debounce_ms")

	res = run(t, nil, "config", "show")
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "# Source: built-in defaults")
	assert.Contains(t, res.stdout, "debounce_ms: 150")

	require.NoError(t, os.MkdirAll(paths.ConfigDir(), 0755))
	cfgPath := filepath.Join(paths.ConfigDir(), "lore.yml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("watcher:\n  debounce_ms: 40\n"), 0644))

	res = run(t, nil, "config", "show", "--format", "toml")
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "# Source: "+cfgPath)
	assert.Contains(t, res.stdout, "debounce_ms = 40")

	require.NoError(t, run(t, nil, "config", "validate").err)

	require.NoError(t, os.WriteFile(cfgPath, []byte("watcher:\n  debounce_ms: -5\n"), 0644))
	res = run(t, nil, "config", "validate")
	assert.True(t, errors.Is(res.err, errors.ErrCodeConfigInvalid), "got %v", res.err)
}

func TestGlobalConfigFlag(t *testing.T) {
	isolate(t)

	other := testutil.NewWorkspaceRoot(t)
	cfgPath := filepath.Join(t.TempDir(), "custom.yml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("workspace:\n  root: "+other+"\n"), 0644))

	res := run(t, nil, "--config", cfgPath, "root")
	require.NoError(t, res.err)
	assert.Equal(t, other+"\n", res.stdout)
}

func TestIPCSchemaCmd(t *testing.T) {
	isolate(t)

	res := run(t, nil, "ipc", "schema", "workspace:readdir")
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "recursive")

	res = run(t, nil, "ipc", "schema", "workspace:nope")
	assert.True(t, errors.Is(res.err, errors.ErrCodeInvalidInput))

	res = run(t, nil, "ipc", "channels")
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "workspace:writeFile")
	assert.Contains(t, res.stdout, "workspace:didChange (push)")
}

func TestFormatEvent(t *testing.T) {
	assert.Equal(t, "+ file a.md", formatEvent(models.Created{Path: "a.md", Kind: models.KindFile}))
	assert.Equal(t, "- dir runs", formatEvent(models.Deleted{Path: "runs", Kind: models.KindDir}))
	assert.Equal(t, "~ a.md", formatEvent(models.Changed{Path: "a.md"}))
	assert.Equal(t, "~ a.md b.md", formatEvent(models.BulkChanged{Paths: []string{"a.md", "b.md"}}))
}

func TestPrintEvents(t *testing.T) {
	events := make(chan models.ChangeEvent, 2)
	events <- models.Changed{Path: "a.md"}
	events <- models.Created{Path: "b", Kind: models.KindDir}
	close(events)

	var buf bytes.Buffer
	err := printEvents(context.Background(), &buf, events, true)
	assert.EqualError(t, err, "connection to the daemon was lost")
	assert.Equal(t, "{\"type\":\"changed\",\"path\":\"a.md\"}\n{\"type\":\"created\",\"path\":\"b\",\"kind\":\"dir\"}\n", buf.String())
}

func TestPrintLastLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lored.log")
	require.NoError(t, os.WriteFile(path, []byte("one\ntwo\nthree\npartial"), 0644))

	var got []string
	offset, err := printLastLines(path, 2, func(line string) { got = append(got, line) })
	require.NoError(t, err)
	assert.Equal(t, []string{"two", "three"}, got)
	assert.EqualValues(t, len("one\ntwo\nthree\n"), offset)

	got = nil
	_, err = printLastLines(path, -1, func(line string) { got = append(got, line) })
	require.NoError(t, err)
	assert.Equal(t, []string{"one", "two", "three"}, got)
}

func TestLogsCmd(t *testing.T) {
	isolate(t)

	logFile := logging.LogFilePath("lored", time.Now())
	require.NoError(t, os.MkdirAll(filepath.Dir(logFile), 0755))
	require.NoError(t, os.WriteFile(logFile, []byte("a\nb\nc\n"), 0644))

	res := run(t, nil, "logs", "-n", "2")
	require.NoError(t, res.err)
	assert.Equal(t, "b\nc\n", res.stdout)

	res = run(t, nil, "logs", "-n", "1", "--json")
	require.NoError(t, res.err)
	assert.JSONEq(t, `{"component":"lored","line":"c"}`, res.stdout)
}

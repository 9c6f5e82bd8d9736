package daemon

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grovetools/lore/config"
	"github.com/grovetools/lore/pkg/paths"
)

type reload struct {
	file string
	cfg  *config.Config
	err  error
}

func TestConfigWatcherReloads(t *testing.T) {
	t.Setenv("LORE_APP_HOME", t.TempDir())
	t.Setenv("LORE_CONFIG", "")
	dir := paths.ConfigDir()

	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)

	reloads := make(chan reload, 4)
	w, err := NewConfigWatcher(dir, 50*time.Millisecond, logrus.NewEntry(logger), func(file string, cfg *config.Config, err error) {
		reloads <- reload{file, cfg, err}
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Start(ctx)

	next := func() reload {
		t.Helper()
		select {
		case r := <-reloads:
			return r
		case <-time.After(3 * time.Second):
			t.Fatal("expected a reload")
			return reload{}
		}
	}

	path := filepath.Join(dir, "lore.yml")
	require.NoError(t, os.WriteFile(path, []byte("watcher:\n  debounce_ms: 300\n"), 0644))
	r := next()
	require.NoError(t, r.err)
	assert.Equal(t, path, r.file)
	assert.Equal(t, 300, r.cfg.Watcher.DebounceMs)

	require.NoError(t, os.WriteFile(path, []byte("watcher:\n  debounce_ms: -5\n"), 0644))
	r = next()
	assert.Error(t, r.err)
	assert.Nil(t, r.cfg)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0644))
	select {
	case r := <-reloads:
		t.Fatalf("unexpected reload for %s", r.file)
	case <-time.After(300 * time.Millisecond):
	}
}

func TestIsConfigFile(t *testing.T) {
	assert.True(t, isConfigFile("/x/lore.yml"))
	assert.True(t, isConfigFile("lore.override.toml"))
	assert.False(t, isConfigFile("notes.yml"))
	assert.False(t, isConfigFile("lore.yml.swp"))
}

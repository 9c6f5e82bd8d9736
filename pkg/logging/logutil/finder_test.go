package logutil

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grovetools/lore/config"
)

func touch(t *testing.T, path, content string, mtime time.Time) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	require.NoError(t, os.Chtimes(path, mtime, mtime))
}

func TestFindLatestLogFile(t *testing.T) {
	dir := t.TempDir()
	base := time.Now().Add(-time.Hour)

	touch(t, filepath.Join(dir, "lored-2024-01-01.log"), "old", base)
	touch(t, filepath.Join(dir, "lored-2024-01-02.log"), "newer", base.Add(time.Minute))
	touch(t, filepath.Join(dir, "lored-2024-01-03.log"), "", base.Add(2*time.Minute))
	touch(t, filepath.Join(dir, "lore-2024-01-04.log"), "cli", base.Add(3*time.Minute))

	got, err := FindLatestLogFile(dir, "lored-")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "lored-2024-01-02.log"), got, "non-empty files win over newer empty ones")

	_, err = FindLatestLogFile(dir, "watcher-")
	assert.Error(t, err)

	_, err = FindLatestLogFile(filepath.Join(dir, "missing"), "lored-")
	assert.Error(t, err)
}

func TestFindLogFile(t *testing.T) {
	appHome := t.TempDir()
	t.Setenv("LORE_APP_HOME", appHome)

	logsDir := filepath.Join(appHome, "state", "lore", "logs")
	touch(t, filepath.Join(logsDir, "lored-2024-05-05.log"), "line", time.Now())

	file, dir, err := FindLogFile(&config.Config{}, "lored")
	require.NoError(t, err)
	assert.Equal(t, logsDir, dir)
	assert.Equal(t, filepath.Join(logsDir, "lored-2024-05-05.log"), file)

	custom := filepath.Join(t.TempDir(), "lore.log")
	cfg := &config.Config{Extensions: map[string]interface{}{
		"logging": map[string]interface{}{"file": map[string]interface{}{"path": custom}},
	}}
	file, dir, err = FindLogFile(cfg, "lored")
	require.NoError(t, err)
	assert.Equal(t, custom, file)
	assert.Equal(t, filepath.Dir(custom), dir)
}

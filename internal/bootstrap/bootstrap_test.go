package bootstrap

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grovetools/lore/pkg/workspace"
	"github.com/grovetools/lore/testutil"
)

func testLogger() *logrus.Entry {
	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)
	return logrus.NewEntry(logger)
}

func TestEnsureLayoutFreshRoot(t *testing.T) {
	root := filepath.Join(testutil.NewWorkspaceRoot(t), "lore")
	ws, err := workspace.Open(root)
	require.NoError(t, err)

	require.NoError(t, EnsureLayout(context.Background(), ws, testLogger()))

	for _, dir := range Directories {
		assert.DirExists(t, filepath.Join(root, dir))
	}
	data, err := os.ReadFile(filepath.Join(root, "knowledge", "Welcome.md"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "# Welcome to Lore")
}

func TestEnsureLayoutKeepsExistingFiles(t *testing.T) {
	root := testutil.NewWorkspaceRoot(t)
	testutil.WriteFiles(t, root, map[string]string{
		"knowledge/Welcome.md": "my own welcome",
		"runs/keep.log":        "x",
	})
	ws, err := workspace.Open(root)
	require.NoError(t, err)

	require.NoError(t, EnsureLayout(context.Background(), ws, testLogger()))
	require.NoError(t, EnsureLayout(context.Background(), ws, testLogger()), "second run is a no-op")

	data, err := os.ReadFile(filepath.Join(root, "knowledge", "Welcome.md"))
	require.NoError(t, err)
	assert.Equal(t, "my own welcome", string(data))
	assert.FileExists(t, filepath.Join(root, "runs", "keep.log"))
}

func TestEnsureLayoutFileInTheWay(t *testing.T) {
	root := testutil.NewWorkspaceRoot(t)
	testutil.WriteFiles(t, root, map[string]string{"agents": "not a dir"})
	ws, err := workspace.Open(root)
	require.NoError(t, err)

	assert.Error(t, EnsureLayout(context.Background(), ws, testLogger()))
}

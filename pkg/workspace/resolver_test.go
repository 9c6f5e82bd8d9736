package workspace

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grovetools/lore/errors"
	"github.com/grovetools/lore/testutil"
)

func TestNewResolverRequiresAbsoluteRoot(t *testing.T) {
	_, err := NewResolver("relative/root")
	assert.True(t, errors.Is(err, errors.ErrCodeInvalidInput), "got %v", err)
}

func TestResolve(t *testing.T) {
	root := testutil.NewWorkspaceRoot(t)
	r, err := NewResolver(root)
	require.NoError(t, err)

	tests := []struct {
		name string
		rel  string
		want string
	}{
		{"root", "", root},
		{"dot", ".", root},
		{"simple", "knowledge/a.md", filepath.Join(root, "knowledge", "a.md")},
		{"redundant separators", "knowledge//./a.md", filepath.Join(root, "knowledge", "a.md")},
		{"trailing slash", "knowledge/", filepath.Join(root, "knowledge")},
		{"not yet existing", "new/deep/file.md", filepath.Join(root, "new", "deep", "file.md")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.Resolve(tt.rel)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolveRejectsEscapes(t *testing.T) {
	root := testutil.NewWorkspaceRoot(t)
	r, err := NewResolver(root)
	require.NoError(t, err)

	for _, rel := range []string{
		"../../etc/passwd",
		"..",
		"a/../../b",
		"a/../b",
		`a\..\..\b`,
		"/etc/passwd",
		`\windows\system32`,
		"C:/Windows",
		"c:relative",
	} {
		t.Run(rel, func(t *testing.T) {
			_, err := r.Resolve(rel)
			assert.True(t, errors.Is(err, errors.ErrCodeOutOfBounds), "got %v", err)
		})
	}

	_, err = r.Resolve("bad\x00name")
	assert.True(t, errors.Is(err, errors.ErrCodeInvalidInput), "got %v", err)
}

func TestResolveRejectsSymlinkEscape(t *testing.T) {
	parent := testutil.NewWorkspaceRoot(t)
	root := filepath.Join(parent, "ws")
	outside := filepath.Join(parent, "outside")
	require.NoError(t, os.MkdirAll(root, 0755))
	require.NoError(t, os.MkdirAll(outside, 0755))

	if err := os.Symlink(outside, filepath.Join(root, "escape")); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}
	if err := os.Symlink(filepath.Join(outside, "nothing-here"), filepath.Join(root, "dangling")); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}

	r, err := NewResolver(root)
	require.NoError(t, err)

	_, err = r.Resolve("escape/secret.md")
	assert.True(t, errors.Is(err, errors.ErrCodeOutOfBounds), "got %v", err)

	_, err = r.Resolve("dangling")
	assert.True(t, errors.Is(err, errors.ErrCodeOutOfBounds), "got %v", err)
}

func TestToRelative(t *testing.T) {
	root := testutil.NewWorkspaceRoot(t)
	r, err := NewResolver(root)
	require.NoError(t, err)

	rel, ok := r.ToRelative(filepath.Join(root, "knowledge", "a.md"))
	assert.True(t, ok)
	assert.Equal(t, "knowledge/a.md", rel)

	rel, ok = r.ToRelative(root)
	assert.True(t, ok)
	assert.Equal(t, "", rel)

	_, ok = r.ToRelative(filepath.Dir(root))
	assert.False(t, ok)

	_, ok = r.ToRelative(root + "-sibling")
	assert.False(t, ok)

	_, ok = r.ToRelative("relative/path")
	assert.False(t, ok)
}

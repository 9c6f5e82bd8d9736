package paths

import (
	"os"
	"path/filepath"
	"testing"
)

func TestPortableAppHome(t *testing.T) {
	home := t.TempDir()
	t.Setenv("LORE_APP_HOME", home)

	tests := []struct {
		name string
		got  string
		want string
	}{
		{"config", ConfigDir(), filepath.Join(home, "config", "lore")},
		{"state", StateDir(), filepath.Join(home, "state", "lore")},
		{"logs", LogDir(), filepath.Join(home, "state", "lore", "logs")},
		{"runtime", RuntimeDir(), filepath.Join(home, "run")},
		{"socket", SocketPath(), filepath.Join(home, "run", "lored.sock")},
		{"pid", PidFilePath(), filepath.Join(home, "state", "lore", "lored.pid")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %s, want %s", tt.got, tt.want)
			}
		})
	}
}

func TestWorkspaceRoot(t *testing.T) {
	t.Setenv("LORE_HOME", "/srv/notes")
	if got := WorkspaceRoot(); got != "/srv/notes" {
		t.Errorf("WorkspaceRoot() = %s, want /srv/notes", got)
	}

	home := t.TempDir()
	t.Setenv("LORE_HOME", "")
	t.Setenv("HOME", home)
	if got := WorkspaceRoot(); got != filepath.Join(home, ".lore") {
		t.Errorf("WorkspaceRoot() = %s, want %s", got, filepath.Join(home, ".lore"))
	}
}

func TestEnsureDirs(t *testing.T) {
	t.Setenv("LORE_APP_HOME", t.TempDir())
	if err := EnsureDirs(); err != nil {
		t.Fatalf("EnsureDirs() error = %v", err)
	}
	for _, dir := range []string{ConfigDir(), StateDir(), LogDir(), RuntimeDir()} {
		if !isDir(dir) {
			t.Errorf("expected %s to exist", dir)
		}
	}
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

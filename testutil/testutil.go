package testutil

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/grovetools/lore/pkg/models"
)

// NewWorkspaceRoot creates an empty workspace root and returns its canonical
// absolute path. macOS temp dirs live behind a /var -> /private/var symlink,
// so callers comparing paths must use the returned value.
func NewWorkspaceRoot(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()
	root, err := filepath.EvalSymlinks(dir)
	require.NoError(t, err, "failed to canonicalize temp dir")
	return root
}

// WriteFiles creates files under root. Keys are slash-separated relative
// paths; parent directories are created as needed.
func WriteFiles(t *testing.T, root string, files map[string]string) {
	t.Helper()

	for rel, content := range files {
		p := filepath.Join(root, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
			t.Fatalf("Failed to create parent of %s: %v", rel, err)
		}
		if err := os.WriteFile(p, []byte(content), 0644); err != nil {
			t.Fatalf("Failed to write %s: %v", rel, err)
		}
	}
}

// EventRecorder collects change events delivered to a listener.
type EventRecorder struct {
	mu     sync.Mutex
	events []models.ChangeEvent
	notify chan struct{}
}

// NewEventRecorder creates an empty recorder.
func NewEventRecorder() *EventRecorder {
	return &EventRecorder{notify: make(chan struct{}, 1)}
}

// Record appends an event. Its signature matches a watcher listener.
func (r *EventRecorder) Record(event models.ChangeEvent) {
	r.mu.Lock()
	r.events = append(r.events, event)
	r.mu.Unlock()

	select {
	case r.notify <- struct{}{}:
	default:
	}
}

// Events returns a copy of everything recorded so far.
func (r *EventRecorder) Events() []models.ChangeEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.ChangeEvent(nil), r.events...)
}

// Reset drops all recorded events.
func (r *EventRecorder) Reset() {
	r.mu.Lock()
	r.events = nil
	r.mu.Unlock()
}

// WaitFor blocks until match returns true for some recorded event, and
// returns that event. The test fails after timeout.
func (r *EventRecorder) WaitFor(t *testing.T, timeout time.Duration, match func(models.ChangeEvent) bool) models.ChangeEvent {
	t.Helper()

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	for {
		for _, ev := range r.Events() {
			if match(ev) {
				return ev
			}
		}
		select {
		case <-r.notify:
		case <-deadline.C:
			t.Fatalf("no matching event within %v; got %v", timeout, r.Events())
			return nil
		}
	}
}

// Quiet waits for d and returns the events recorded during that time.
func (r *EventRecorder) Quiet(d time.Duration) []models.ChangeEvent {
	before := len(r.Events())
	time.Sleep(d)
	return r.Events()[before:]
}

// Package watcher observes a workspace tree and turns raw filesystem
// notifications into debounced ChangeEvents.
package watcher

import (
	"context"
	stderrors "errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"

	"github.com/grovetools/lore/logging"
	"github.com/grovetools/lore/pkg/models"
	"github.com/grovetools/lore/pkg/workspace"
)

// Defaults used when Options leaves a duration at zero.
const (
	DefaultDebounce           = 150 * time.Millisecond
	DefaultStabilityThreshold = 150 * time.Millisecond
	DefaultPollInterval       = 50 * time.Millisecond

	rootRewatchAttempts = 3
)

// ErrStopped is returned by Start once the watcher has been shut down.
var ErrStopped = stderrors.New("watcher is stopped")

// State is the lifecycle phase of a Watcher.
type State int

const (
	StateStopped State = iota
	StateStarting
	StateActive
)

func (s State) String() string {
	switch s {
	case StateStarting:
		return "starting"
	case StateActive:
		return "active"
	default:
		return "stopped"
	}
}

// Options configures a Watcher.
type Options struct {
	// Debounce is the quiet window that coalesces changed events.
	Debounce time.Duration
	// StabilityThreshold is how long a file's size and mtime must stay
	// unchanged before a write is reported.
	StabilityThreshold time.Duration
	// PollInterval is how often pending writes are re-checked.
	PollInterval time.Duration
	// Ignore holds dockerignore-style patterns matched against relative paths.
	// nil selects DefaultIgnore; an empty non-nil slice ignores nothing.
	Ignore []string
	// Logger defaults to logging.NewLogger("watcher").
	Logger *logrus.Entry
	// OnWarning is told when observation of the root cannot be re-established.
	OnWarning func(error)
}

func (o *Options) setDefaults() {
	if o.Debounce <= 0 {
		o.Debounce = DefaultDebounce
	}
	if o.StabilityThreshold <= 0 {
		o.StabilityThreshold = DefaultStabilityThreshold
	}
	if o.PollInterval <= 0 {
		o.PollInterval = DefaultPollInterval
	}
	if o.Ignore == nil {
		o.Ignore = DefaultIgnore
	}
	if o.Logger == nil {
		o.Logger = logging.NewLogger("watcher")
	}
}

// Watcher recursively observes a workspace root. Created and deleted events
// are published as soon as they are classified; content changes wait for
// write stability and are then coalesced over the debounce window.
//
// All pending state is owned by the run goroutine.
type Watcher struct {
	resolver *workspace.Resolver
	opts     Options
	ignore   *ignoreMatcher
	logger   *logrus.Entry
	bus      *Broadcaster

	mu      sync.Mutex
	state   State
	stopped bool
	cancel  context.CancelFunc
	done    chan struct{}

	// Loop-owned.
	fsw      *fsnotify.Watcher
	watched  map[string]struct{}
	files    map[string]struct{}
	gone     map[string]struct{}
	stable   *stabilizer
	queue    *pendingQueue
	debounce *time.Timer
	poll     *time.Ticker
	polling  bool
	rewatch  *time.Timer
	attempts int
}

// New creates a stopped watcher over the resolver's root.
func New(resolver *workspace.Resolver, opts Options) (*Watcher, error) {
	opts.setDefaults()
	ignore, err := newIgnoreMatcher(opts.Ignore)
	if err != nil {
		return nil, err
	}
	return &Watcher{
		resolver: resolver,
		opts:     opts,
		ignore:   ignore,
		logger:   opts.Logger,
		bus:      NewBroadcaster(),
	}, nil
}

// Subscribe registers a listener for every event the watcher emits.
func (w *Watcher) Subscribe(l Listener) (unsubscribe func()) {
	return w.bus.Subscribe(l)
}

// State returns the current lifecycle phase.
func (w *Watcher) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// Done is closed when the watcher has fully stopped. It is nil before Start.
func (w *Watcher) Done() <-chan struct{} {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.done
}

// Start ensures the root exists and begins observing it. Calling Start on a
// watcher that is already starting or active is a no-op. The watcher runs
// until ctx is cancelled or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return ErrStopped
	}
	if w.state != StateStopped {
		w.mu.Unlock()
		return nil
	}
	w.state = StateStarting
	w.mu.Unlock()

	root := w.resolver.Root()
	fsw, err := w.open(root)
	if err != nil {
		w.mu.Lock()
		w.state = StateStopped
		w.mu.Unlock()
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		fsw.Close()
		return ErrStopped
	}
	runCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.done = make(chan struct{})
	w.state = StateActive
	go w.run(runCtx, w.done)

	w.logger.WithField("root", root).Info("Watching workspace")
	return nil
}

func (w *Watcher) open(root string) (*fsnotify.Watcher, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("create workspace root: %w", err)
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}

	w.fsw = fsw
	w.watched = make(map[string]struct{})
	w.files = make(map[string]struct{})
	w.gone = make(map[string]struct{})
	w.stable = newStabilizer(w.opts.StabilityThreshold)
	w.queue = newPendingQueue()

	if err := w.addTree(root, false); err != nil {
		fsw.Close()
		return nil, err
	}
	return fsw, nil
}

// Stop ends observation and discards pending state without flushing. It
// blocks until the run goroutine has exited. Stop is terminal.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return
	}
	w.stopped = true
	cancel, done := w.cancel, w.done
	w.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}

	w.mu.Lock()
	w.state = StateStopped
	w.mu.Unlock()
}

func (w *Watcher) run(ctx context.Context, done chan struct{}) {
	w.debounce = time.NewTimer(w.opts.Debounce)
	w.debounce.Stop()
	w.poll = time.NewTicker(w.opts.PollInterval)
	w.poll.Stop()
	w.rewatch = time.NewTimer(w.opts.StabilityThreshold)
	w.rewatch.Stop()

	defer func() {
		w.debounce.Stop()
		w.poll.Stop()
		w.rewatch.Stop()
		w.stable.discard()
		w.queue.discard()
		w.fsw.Close()

		w.mu.Lock()
		w.stopped = true
		w.state = StateStopped
		w.mu.Unlock()
		close(done)
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handle(event)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.WithError(err).Warn("Watcher error")

		case now := <-w.poll.C:
			w.checkStability(now)

		case <-w.debounce.C:
			if event := w.queue.flush(); event != nil {
				w.logger.WithField("paths", event.AffectedPaths()).Debug("Flushing changes")
				w.bus.Publish(event)
			}

		case <-w.rewatch.C:
			if !w.retryRoot() {
				return
			}
		}
	}
}

func (w *Watcher) handle(event fsnotify.Event) {
	if event.Op == fsnotify.Chmod {
		return
	}
	rel, ok := w.resolver.ToRelative(event.Name)
	if !ok {
		return
	}
	if rel == "" {
		if event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
			w.rootLost()
		}
		return
	}
	if w.ignore.ignored(rel) {
		return
	}
	w.logger.Debugf("fsnotify event: %s op=%v", rel, event.Op)

	switch {
	case event.Has(fsnotify.Create):
		w.created(rel, event.Name)
	case event.Has(fsnotify.Write):
		w.touch(rel, event.Name, false)
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		w.removed(rel, event.Name)
	}
}

func (w *Watcher) created(rel, abs string) {
	delete(w.gone, abs)

	info, err := os.Lstat(abs)
	if err != nil {
		// Gone before it was seen; swallow the matching removal too.
		w.gone[abs] = struct{}{}
		return
	}
	if !info.IsDir() {
		// A create over a file we already know is an atomic save
		// (temp file renamed into place), so it reads as a change.
		_, known := w.files[abs]
		w.files[abs] = struct{}{}
		w.touch(rel, abs, !known)
		return
	}
	if _, ok := w.watched[abs]; ok {
		return
	}
	w.bus.Publish(models.Created{Path: rel, Kind: models.KindDir})
	if err := w.addTree(abs, true); err != nil {
		w.logger.WithError(err).Warnf("Failed to watch new directory %s", rel)
	}
}

func (w *Watcher) touch(rel, abs string, created bool) {
	if _, ok := w.watched[abs]; ok {
		return
	}
	w.stable.touch(rel, abs, created, time.Now())
	if !w.polling {
		w.poll.Reset(w.opts.PollInterval)
		w.polling = true
	}
}

func (w *Watcher) removed(rel, abs string) {
	if _, ok := w.gone[abs]; ok {
		delete(w.gone, abs)
		return
	}

	kind := models.KindFile
	if _, ok := w.watched[abs]; ok {
		kind = models.KindDir
		w.unwatchTree(abs)
		w.gone[abs] = struct{}{}
	}
	w.forgetFiles(abs)

	w.queue.drop(rel)
	if w.stable.forget(rel) {
		// Created and removed before it ever settled.
		return
	}
	w.bus.Publish(models.Deleted{Path: rel, Kind: kind})
}

func (w *Watcher) checkStability(now time.Time) {
	for _, s := range w.stable.poll(now) {
		if s.created {
			w.bus.Publish(models.Created{Path: s.rel, Kind: models.KindFile})
			continue
		}
		w.queue.add(s.rel)
		w.debounce.Reset(w.opts.Debounce)
	}
	if w.stable.empty() {
		w.poll.Stop()
		w.polling = false
	}
}

// addTree watches dir and every directory below it. When announce is set,
// entries found during the walk are reported as created: they appeared
// before the watch on dir was in place.
func (w *Watcher) addTree(dir string, announce bool) error {
	return filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if p == dir {
				return err
			}
			w.logger.WithError(err).Debugf("Skipping %s", p)
			return nil
		}
		rel, ok := w.resolver.ToRelative(p)
		if !ok {
			return filepath.SkipDir
		}
		if w.ignore.ignored(rel) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if !d.IsDir() {
			w.files[p] = struct{}{}
			if announce {
				w.touch(rel, p, true)
			}
			return nil
		}
		if _, ok := w.watched[p]; ok {
			return nil
		}
		if err := w.fsw.Add(p); err != nil {
			if p == dir {
				return fmt.Errorf("watch %s: %w", p, err)
			}
			w.logger.WithError(err).Warnf("Failed to watch %s", rel)
			return filepath.SkipDir
		}
		w.watched[p] = struct{}{}
		if announce && p != dir {
			w.bus.Publish(models.Created{Path: rel, Kind: models.KindDir})
		}
		return nil
	})
}

func (w *Watcher) unwatchTree(dir string) {
	prefix := dir + string(filepath.Separator)
	for p := range w.watched {
		if p == dir || strings.HasPrefix(p, prefix) {
			_ = w.fsw.Remove(p)
			delete(w.watched, p)
		}
	}
}

// forgetFiles drops abs and everything below it from the known files.
func (w *Watcher) forgetFiles(abs string) {
	delete(w.files, abs)
	prefix := abs + string(filepath.Separator)
	for p := range w.files {
		if strings.HasPrefix(p, prefix) {
			delete(w.files, p)
		}
	}
}

func (w *Watcher) rootLost() {
	root := w.resolver.Root()
	w.logger.WithField("root", root).Warn("Workspace root disappeared; trying to re-establish watch")
	for p := range w.watched {
		_ = w.fsw.Remove(p)
	}
	w.watched = make(map[string]struct{})
	w.files = make(map[string]struct{})
	w.attempts = 0
	w.rewatch.Reset(w.opts.StabilityThreshold)
}

// retryRoot re-adds the root watch. It returns false once the attempts are
// exhausted and the watcher must stop.
func (w *Watcher) retryRoot() bool {
	root := w.resolver.Root()
	info, err := os.Stat(root)
	if err == nil && info.IsDir() {
		if err = w.addTree(root, true); err == nil {
			w.logger.WithField("root", root).Info("Re-established workspace watch")
			return true
		}
	}
	if err == nil {
		err = fmt.Errorf("%s is not a directory", root)
	}

	w.attempts++
	if w.attempts < rootRewatchAttempts {
		w.rewatch.Reset(w.opts.StabilityThreshold)
		return true
	}

	warning := fmt.Errorf("lost watch on workspace root %s: %w", root, err)
	w.logger.WithError(err).Error("Giving up on workspace root")
	if w.opts.OnWarning != nil {
		w.opts.OnWarning(warning)
	}
	return false
}

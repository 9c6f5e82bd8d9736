package daemon

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"

	"github.com/grovetools/lore/config"
)

// ReloadFunc receives the configuration re-read after a change. err is set
// when the new configuration does not load.
type ReloadFunc func(file string, cfg *config.Config, err error)

// ConfigWatcher watches the lore config directory and re-validates the
// configuration whenever a config file changes.
type ConfigWatcher struct {
	watcher      *fsnotify.Watcher
	configDir    string
	debounce     time.Duration
	logger       *logrus.Entry
	onReload     ReloadFunc
	targetToLink map[string]string // symlink target path -> link name in configDir

	mu      sync.Mutex
	timer   *time.Timer
	changed string
}

// NewConfigWatcher watches configDir. Bursts of writes within debounce are
// reported once, after the last one.
func NewConfigWatcher(configDir string, debounce time.Duration, logger *logrus.Entry, onReload ReloadFunc) (*ConfigWatcher, error) {
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return nil, err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := watcher.Add(configDir); err != nil {
		watcher.Close()
		return nil, err
	}

	// fsnotify doesn't follow symlinks, so linked config files need their
	// target directories watched explicitly.
	watchedDirs := map[string]bool{configDir: true}
	targetToLink := make(map[string]string)

	entries, err := os.ReadDir(configDir)
	if err == nil {
		for _, entry := range entries {
			if !isConfigFile(entry.Name()) || entry.Type()&os.ModeSymlink == 0 {
				continue
			}
			target, err := filepath.EvalSymlinks(filepath.Join(configDir, entry.Name()))
			if err != nil {
				logger.WithError(err).Warnf("Failed to resolve symlink %s", entry.Name())
				continue
			}
			targetToLink[target] = entry.Name()

			targetDir := filepath.Dir(target)
			if watchedDirs[targetDir] {
				continue
			}
			if err := watcher.Add(targetDir); err != nil {
				logger.WithError(err).Warnf("Failed to watch symlink target dir %s", targetDir)
				continue
			}
			watchedDirs[targetDir] = true
			logger.Debugf("Watching symlink target directory: %s", targetDir)
		}
	}

	if debounce <= 0 {
		debounce = 100 * time.Millisecond
	}

	return &ConfigWatcher{
		watcher:      watcher,
		configDir:    configDir,
		debounce:     debounce,
		logger:       logger,
		onReload:     onReload,
		targetToLink: targetToLink,
	}, nil
}

// Start begins watching for config changes. It blocks until the context is cancelled.
func (w *ConfigWatcher) Start(ctx context.Context) {
	defer w.stopTimer()
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			name := event.Name
			if linkName, ok := w.targetToLink[name]; ok {
				name = filepath.Join(w.configDir, linkName)
			} else if filepath.Dir(name) != w.configDir {
				// Other files next to a symlink target.
				continue
			}
			if !isConfigFile(name) {
				continue
			}
			w.logger.Debugf("fsnotify event: %s op=%v", name, event.Op)
			w.schedule(name)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Errorf("Watcher error: %v", err)
		case <-ctx.Done():
			w.watcher.Close()
			return
		}
	}
}

// Close stops the watcher and releases resources.
func (w *ConfigWatcher) Close() error {
	w.stopTimer()
	return w.watcher.Close()
}

func (w *ConfigWatcher) schedule(file string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.changed = file
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.reload)
}

func (w *ConfigWatcher) stopTimer() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
}

func (w *ConfigWatcher) reload() {
	w.mu.Lock()
	file := w.changed
	w.mu.Unlock()

	w.logger.Infof("Config changed: %s", filepath.Base(file))

	var cfg *config.Config
	path, err := config.FindConfigFile()
	if err == nil {
		cfg, err = config.LoadWithOverrides(path, w.logger.Logger)
	}
	if w.onReload != nil {
		w.onReload(file, cfg, err)
	}
}

func isConfigFile(name string) bool {
	base := filepath.Base(name)
	if !strings.HasPrefix(base, "lore.") {
		return false
	}
	switch filepath.Ext(base) {
	case ".yml", ".yaml", ".toml":
		return true
	}
	return false
}

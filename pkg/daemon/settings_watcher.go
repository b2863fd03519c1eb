package daemon

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/grovetools/marksync/config"
	"github.com/grovetools/marksync/logging"
	"github.com/sirupsen/logrus"
)

// SettingsWatcher watches the settings file and reloads it after changes.
type SettingsWatcher struct {
	watcher      *fsnotify.Watcher
	path         string
	debounce     time.Duration
	mu           sync.Mutex
	timer        *time.Timer
	logger       *logrus.Entry
	onReload     func(*config.Settings) // Called with the validated settings
	targetToLink map[string]string      // Maps symlink targets back to the settings path
}

// NewSettingsWatcher creates a watcher for the settings file at path. The
// file does not need to exist yet; its directory does. Symlinked settings
// files are followed, since fsnotify does not follow links itself.
func NewSettingsWatcher(path string, debounce time.Duration, onReload func(*config.Settings)) (*SettingsWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	logger := logging.NewLogger("settings-watcher")
	path = filepath.Clean(path)
	dir := filepath.Dir(path)

	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, err
	}

	targetToLink := make(map[string]string)
	if info, err := os.Lstat(path); err == nil && info.Mode()&os.ModeSymlink != 0 {
		target, err := filepath.EvalSymlinks(path)
		if err != nil {
			logger.WithError(err).Warnf("Failed to resolve symlink %s", path)
		} else {
			targetToLink[target] = path
			if targetDir := filepath.Dir(target); targetDir != dir {
				if err := watcher.Add(targetDir); err != nil {
					logger.WithError(err).Warnf("Failed to watch symlink target dir %s", targetDir)
				} else {
					logger.Debugf("Watching symlink target directory: %s", targetDir)
				}
			}
		}
	}

	if debounce <= 0 {
		debounce = 100 * time.Millisecond
	}

	return &SettingsWatcher{
		watcher:      watcher,
		path:         path,
		debounce:     debounce,
		logger:       logger,
		onReload:     onReload,
		targetToLink: targetToLink,
	}, nil
}

// Start begins watching for changes. It blocks until the context is cancelled.
func (w *SettingsWatcher) Start(ctx context.Context) {
	defer w.watcher.Close()
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.logger.Debugf("fsnotify event: %s op=%v", event.Name, event.Op)

			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			name := filepath.Clean(event.Name)
			if link, ok := w.targetToLink[name]; ok {
				name = link
			}
			if name == w.path {
				w.schedule()
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Errorf("Watcher error: %v", err)
		case <-ctx.Done():
			w.mu.Lock()
			if w.timer != nil {
				w.timer.Stop()
			}
			w.mu.Unlock()
			return
		}
	}
}

// schedule reloads once writes have been quiet for the debounce period.
func (w *SettingsWatcher) schedule() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.reload)
}

func (w *SettingsWatcher) reload() {
	settings, err := config.Load(w.path)
	if err != nil {
		w.logger.WithError(err).Warn("Ignoring invalid settings change")
		return
	}
	w.logger.Infof("Settings changed: %s", filepath.Base(w.path))
	if w.onReload != nil {
		w.onReload(settings)
	}
}

// Close stops the watcher and releases resources.
func (w *SettingsWatcher) Close() error {
	return w.watcher.Close()
}

// RestartRequired lists the settings keys that differ between running and
// reloaded and only take effect when the daemon restarts.
func RestartRequired(running, reloaded *config.Settings) []string {
	var keys []string
	if running.Window != reloaded.Window {
		keys = append(keys, "window")
	}
	if running.Source != reloaded.Source {
		keys = append(keys, "source")
	}
	if running.Transport != reloaded.Transport {
		keys = append(keys, "transport")
	}
	if running.State != reloaded.State {
		keys = append(keys, "state")
	}
	return keys
}

package syncstate

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/grovetools/marksync/errors"
	"github.com/grovetools/marksync/logging"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// FileStore keeps the record in a YAML file. Writes go through a temp file
// and rename so readers never see a partial record. Watch turns changes made
// by other processes into subscriber notifications.
type FileStore struct {
	*broadcaster

	path     string
	debounce time.Duration
	logger   *logrus.Entry

	// mu serializes writes within this process.
	mu sync.Mutex

	lastMu sync.Mutex
	last   *Record
}

// NewFileStore creates a store backed by path. The file need not exist.
func NewFileStore(path string) *FileStore {
	return &FileStore{
		broadcaster: newBroadcaster(),
		path:        path,
		debounce:    50 * time.Millisecond,
		logger:      logging.NewLogger("syncstate"),
	}
}

// Path returns the backing file path.
func (s *FileStore) Path() string {
	return s.path
}

// Read loads the record. A missing file reads as the empty record.
func (s *FileStore) Read(ctx context.Context) (Record, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return Record{SelectedIDs: []string{}}, nil
		}
		return Record{}, errors.StoreAccess("read", err).WithDetail("path", s.path)
	}

	var rec Record
	if err := yaml.Unmarshal(data, &rec); err != nil {
		return Record{}, errors.StoreAccess("read", fmt.Errorf("parse %s: %w", s.path, err)).
			WithDetail("path", s.path)
	}
	return rec.Normalize(), nil
}

// Write replaces the whole file and notifies subscribers.
func (s *FileStore) Write(ctx context.Context, rec Record) error {
	rec = rec.Normalize()

	data, err := yaml.Marshal(rec)
	if err != nil {
		return errors.StoreAccess("write", err).WithDetail("path", s.path)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return errors.StoreAccess("write", err).WithDetail("path", s.path)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), "."+filepath.Base(s.path)+".*")
	if err != nil {
		return errors.StoreAccess("write", err).WithDetail("path", s.path)
	}
	tmpName := tmp.Name()
	cleanup := func() { os.Remove(tmpName) }

	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		cleanup()
		return errors.StoreAccess("write", err).WithDetail("path", s.path)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		cleanup()
		return errors.StoreAccess("write", err).WithDetail("path", s.path)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return errors.StoreAccess("write", err).WithDetail("path", s.path)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		cleanup()
		return errors.StoreAccess("write", err).WithDetail("path", s.path)
	}

	s.logger.WithFields(logrus.Fields{
		"selected":    len(rec.SelectedIDs),
		"hasEndpoint": rec.EndpointURL != "",
	}).Debug("Record written")

	s.notify(rec, OriginLocal)
	return nil
}

// Watch observes the state file's directory and publishes changes made by
// other processes. It blocks until ctx is cancelled.
func (s *FileStore) Watch(ctx context.Context) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return errors.StoreAccess("watch", err).WithDetail("path", s.path)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.StoreAccess("watch", err)
	}
	defer watcher.Close()

	// fsnotify loses a watch on the file itself across rename, so watch the directory.
	if err := watcher.Add(dir); err != nil {
		return errors.StoreAccess("watch", err).WithDetail("path", dir)
	}

	// Prime the last-seen record so the first external event is compared
	// against what is on disk now.
	if rec, err := s.Read(ctx); err == nil {
		s.remember(rec)
	}

	var timer *time.Timer
	reload := make(chan struct{}, 1)

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != filepath.Clean(s.path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			s.logger.Debugf("fsnotify event: %s op=%v", event.Name, event.Op)
			// Debounce bursts from editors that write in several steps.
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(s.debounce, func() {
				select {
				case reload <- struct{}{}:
				default:
				}
			})
		case <-reload:
			rec, err := s.Read(ctx)
			if err != nil {
				s.logger.WithError(err).Warn("Failed to reload state file")
				continue
			}
			s.notify(rec, OriginExternal)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.logger.Errorf("Watcher error: %v", err)
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil
		}
	}
}

// notify publishes rec unless it equals the last published record. Our own
// writes come back through fsnotify and are dropped here.
func (s *FileStore) notify(rec Record, origin Origin) {
	if !s.remember(rec) {
		return
	}
	s.publish(Change{Record: rec, Origin: origin})
}

// remember records rec as last seen and reports whether it differed.
func (s *FileStore) remember(rec Record) bool {
	s.lastMu.Lock()
	defer s.lastMu.Unlock()
	if s.last != nil && s.last.Equal(rec) {
		return false
	}
	c := rec.Clone()
	s.last = &c
	return true
}

package bookmarks

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/grovetools/marksync/logging"
	"github.com/sirupsen/logrus"
)

// LoadFunc reads a complete tree snapshot from a backend.
type LoadFunc func(ctx context.Context) (*Node, error)

// FileSource adapts a backend that can only re-read whole snapshots from
// files on disk (a browser profile) into a Source. Snapshots are cached until
// one of the watched files changes; Watch diffs successive snapshots into
// events.
type FileSource struct {
	dir          string
	files        []string
	load         LoadFunc
	debounce     time.Duration
	pollInterval time.Duration
	logger       *logrus.Entry

	mu     sync.Mutex
	cached *Node
	sig    string
}

// FileSourceOptions configures a FileSource.
type FileSourceOptions struct {
	// Files are absolute paths whose changes trigger a reload. They must
	// share a directory; the first is the primary file.
	Files []string
	// Load reads a snapshot.
	Load LoadFunc
	// Debounce collapses bursts of filesystem events. Defaults to 250ms.
	Debounce time.Duration
	// PollInterval re-reads periodically in addition to fsnotify; 0 disables.
	PollInterval time.Duration
	// Component names the logger.
	Component string
}

// NewFileSource creates a FileSource.
func NewFileSource(opts FileSourceOptions) (*FileSource, error) {
	if len(opts.Files) == 0 || opts.Load == nil {
		return nil, fmt.Errorf("file source needs at least one file and a loader")
	}
	if opts.Debounce <= 0 {
		opts.Debounce = 250 * time.Millisecond
	}
	if opts.Component == "" {
		opts.Component = "bookmarks"
	}
	return &FileSource{
		dir:          filepath.Dir(opts.Files[0]),
		files:        opts.Files,
		load:         opts.Load,
		debounce:     opts.Debounce,
		pollInterval: opts.PollInterval,
		logger:       logging.NewLogger(opts.Component),
	}, nil
}

// Path returns the primary file.
func (s *FileSource) Path() string {
	return s.files[0]
}

// GetTree returns the current snapshot.
func (s *FileSource) GetTree(ctx context.Context) (*Node, error) {
	root, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return root.Clone(), nil
}

// Get returns a childless copy of the node with the given id.
func (s *FileSource) Get(ctx context.Context, id string) (*Node, error) {
	root, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	n := root.Find(id)
	if n == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return n.Shallow(), nil
}

// snapshot returns the cached tree, reloading when the files changed.
func (s *FileSource) snapshot(ctx context.Context) (*Node, error) {
	sig := s.signature()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cached != nil && sig == s.sig {
		return s.cached, nil
	}

	root, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	s.cached = root
	s.sig = sig
	return root, nil
}

// signature summarizes size and mtime of every watched file.
func (s *FileSource) signature() string {
	var sig string
	for _, f := range s.files {
		info, err := os.Stat(f)
		if err != nil {
			sig += "|-"
			continue
		}
		sig += fmt.Sprintf("|%d:%d", info.Size(), info.ModTime().UnixNano())
	}
	return sig
}

// Watch emits the events between successive snapshots until ctx is cancelled.
func (s *FileSource) Watch(ctx context.Context) (<-chan Event, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	// Browsers replace the file by rename, so watch the directory.
	if err := watcher.Add(s.dir); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("watch %s: %w", s.dir, err)
	}

	prev, err := s.snapshot(ctx)
	if err != nil {
		s.logger.WithError(err).Warn("Initial bookmark snapshot failed; treating tree as empty")
		prev = nil
	}

	out := make(chan Event, 256)
	go s.run(ctx, watcher, prev, out)
	return out, nil
}

func (s *FileSource) run(ctx context.Context, watcher *fsnotify.Watcher, prev *Node, out chan<- Event) {
	defer close(out)
	defer watcher.Close()

	watched := make(map[string]struct{}, len(s.files))
	for _, f := range s.files {
		watched[filepath.Clean(f)] = struct{}{}
	}

	var pollC <-chan time.Time
	if s.pollInterval > 0 {
		ticker := time.NewTicker(s.pollInterval)
		defer ticker.Stop()
		pollC = ticker.C
	}

	reload := make(chan struct{}, 1)
	trigger := func() {
		select {
		case reload <- struct{}{}:
		default:
		}
	}
	var debounceTimer *time.Timer
	defer func() {
		if debounceTimer != nil {
			debounceTimer.Stop()
		}
	}()

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if _, ok := watched[filepath.Clean(event.Name)]; !ok {
				continue
			}
			s.logger.Debugf("fsnotify event: %s op=%v", event.Name, event.Op)
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.AfterFunc(s.debounce, trigger)

		case <-pollC:
			trigger()

		case <-reload:
			cur, err := s.snapshot(ctx)
			if err != nil {
				s.logger.WithError(err).Warn("Failed to reload bookmarks")
				continue
			}
			if cur == prev {
				continue
			}
			events := Diff(prev, cur)
			if len(events) > 0 {
				s.logger.WithField("events", len(events)).Debug("Bookmark tree changed")
			}
			for _, e := range events {
				select {
				case out <- e:
				case <-ctx.Done():
					return
				}
			}
			prev = cur

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			s.logger.Errorf("Watcher error: %v", err)

		case <-ctx.Done():
			return
		}
	}
}

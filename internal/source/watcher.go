package source

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// ErrWatcherFailed indicates the filesystem watcher failed to initialize
var ErrWatcherFailed = errors.New("failed to initialize filesystem watcher")

// DefaultDebounce is the quiet period before a change is delivered
const DefaultDebounce = 300 * time.Millisecond

// ChangeOp describes what happened to a file
type ChangeOp int

const (
	// ChangeWrite covers creates and modifications
	ChangeWrite ChangeOp = iota
	// ChangeRemove covers deletes and renames away
	ChangeRemove
)

func (op ChangeOp) String() string {
	if op == ChangeRemove {
		return "remove"
	}
	return "write"
}

// Change is a debounced file change under a watched root
type Change struct {
	Op           ChangeOp
	Path         string
	RelativePath string
}

// Watcher delivers debounced file changes for a directory tree
type Watcher struct {
	root     string
	debounce time.Duration
	watcher  *fsnotify.Watcher
	changes  chan Change
	stop     chan struct{}
	logger   *zap.Logger

	mu      sync.Mutex
	pending map[string]*time.Timer
	stopped bool
}

// WatcherOption configures a Watcher
type WatcherOption func(*Watcher)

// WithDebounce sets the quiet period before a change is delivered
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// WithWatcherLogger sets the logger
func WithWatcherLogger(l *zap.Logger) WatcherOption {
	return func(w *Watcher) {
		if l != nil {
			w.logger = l
		}
	}
}

// NewWatcher creates a watcher for every non-skipped directory under root
func NewWatcher(root string, opts ...WatcherOption) (*Watcher, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve path: %w", err)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWatcherFailed, err)
	}

	w := &Watcher{
		root:     abs,
		debounce: DefaultDebounce,
		watcher:  fw,
		changes:  make(chan Change, 64),
		stop:     make(chan struct{}),
		logger:   zap.NewNop(),
		pending:  make(map[string]*time.Timer),
	}
	for _, opt := range opts {
		opt(w)
	}

	if err := w.addTree(abs); err != nil {
		_ = fw.Close()
		return nil, err
	}
	return w, nil
}

// Changes returns the channel of debounced changes
func (w *Watcher) Changes() <-chan Change {
	return w.changes
}

// Start processes filesystem events in a background goroutine
func (w *Watcher) Start(ctx context.Context) {
	go w.run(ctx)
}

// Stop stops the watcher and releases its resources
func (w *Watcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return
	}
	w.stopped = true
	close(w.stop)
	for path, t := range w.pending {
		t.Stop()
		delete(w.pending, path)
	}
	_ = w.watcher.Close()
}

func (w *Watcher) addTree(dir string) error {
	return filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if !info.IsDir() {
			return nil
		}
		if path != dir {
			name := info.Name()
			if defaultSkipDirs[name] || strings.HasPrefix(name, ".") {
				return filepath.SkipDir
			}
		}
		if err := w.watcher.Add(path); err != nil {
			return fmt.Errorf("watching %s: %w", path, err)
		}
		return nil
	})
}

func (w *Watcher) run(ctx context.Context) {
	for {
		select {
		case <-w.stop:
			return
		case <-ctx.Done():
			w.Stop()
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handle(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watcher error", zap.Error(err))
		}
	}
}

func (w *Watcher) handle(event fsnotify.Event) {
	rel, err := filepath.Rel(w.root, event.Name)
	if err != nil || strings.HasPrefix(rel, "..") {
		return
	}
	rel = filepath.ToSlash(rel)
	if skippedPath(rel) {
		return
	}

	switch {
	case event.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
		w.schedule(Change{Op: ChangeRemove, Path: event.Name, RelativePath: rel})
	case event.Op&(fsnotify.Create|fsnotify.Write) != 0:
		info, err := os.Stat(event.Name)
		if err != nil {
			return
		}
		if info.IsDir() {
			if event.Op&fsnotify.Create != 0 {
				if err := w.addTree(event.Name); err != nil {
					w.logger.Warn("watch new directory", zap.String("path", rel), zap.Error(err))
				}
			}
			return
		}
		w.schedule(Change{Op: ChangeWrite, Path: event.Name, RelativePath: rel})
	}
}

// schedule delivers c after the debounce period, replacing any pending change for the same path
func (w *Watcher) schedule(c Change) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return
	}

	if t, ok := w.pending[c.Path]; ok {
		t.Stop()
	}
	w.pending[c.Path] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.pending, c.Path)
		stopped := w.stopped
		w.mu.Unlock()
		if stopped {
			return
		}
		select {
		case w.changes <- c:
		case <-w.stop:
		}
	})
}

func skippedPath(rel string) bool {
	for _, part := range strings.Split(rel, "/") {
		if defaultSkipDirs[part] || (strings.HasPrefix(part, ".") && part != ".") {
			return true
		}
	}
	return false
}

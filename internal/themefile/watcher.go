package themefile

import (
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"mosaic-style/internal/theme"
)

const defaultDebounce = 100 * time.Millisecond

// Result reports one reload attempt.
type Result struct {
	Path  string
	Theme theme.Theme
	Err   error
}

// Watcher reloads theme files into a catalog when they change on disk.
// Removing a file keeps its theme registered.
type Watcher struct {
	fsWatcher *fsnotify.Watcher
	dir       string
	catalog   *theme.Catalog
	logger    *slog.Logger
	delay     time.Duration
	results   chan Result
	stop      chan struct{}
	done      chan struct{}

	mu       sync.Mutex
	pending  map[string]*time.Timer
	closed   bool
	inflight sync.WaitGroup
}

// WatchOption configures a Watcher.
type WatchOption func(*Watcher)

// WithLogger sets the watcher logger.
func WithLogger(logger *slog.Logger) WatchOption {
	return func(w *Watcher) { w.logger = logger }
}

// WithDebounce sets how long a file must be quiet before it is reloaded.
func WithDebounce(d time.Duration) WatchOption {
	return func(w *Watcher) { w.delay = d }
}

// Watch starts watching dir. Existing files are not loaded; call LoadDir
// first.
func Watch(dir string, catalog *theme.Catalog, opts ...WatchOption) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(dir); err != nil {
		fsw.Close()
		return nil, err
	}

	w := &Watcher{
		fsWatcher: fsw,
		dir:       dir,
		catalog:   catalog,
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		delay:     defaultDebounce,
		results:   make(chan Result, 16),
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
		pending:   make(map[string]*time.Timer),
	}
	for _, opt := range opts {
		opt(w)
	}

	go w.run()
	return w, nil
}

// Results delivers reload outcomes. Results are dropped when nobody reads.
func (w *Watcher) Results() <-chan Result {
	return w.results
}

// Stop shuts the watcher down and waits for its loop and any reload already
// in progress to finish. No theme is registered after Stop returns.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.closed = true
	for _, t := range w.pending {
		t.Stop()
	}
	w.mu.Unlock()

	close(w.stop)
	w.fsWatcher.Close()
	<-w.done
	w.inflight.Wait()
}

func (w *Watcher) run() {
	defer close(w.done)
	for {
		select {
		case <-w.stop:
			return
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			if !IsThemeFile(filepath.Base(event.Name)) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			w.schedule(event.Name)
		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("theme watcher error", "dir", w.dir, "error", err)
		}
	}
}

// schedule debounces reloads per file; editors often write a file in
// several steps.
func (w *Watcher) schedule(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	if t, ok := w.pending[path]; ok {
		t.Stop()
	}
	w.pending[path] = time.AfterFunc(w.delay, func() { w.reload(path) })
}

func (w *Watcher) reload(path string) {
	w.mu.Lock()
	delete(w.pending, path)
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.inflight.Add(1)
	w.mu.Unlock()
	defer w.inflight.Done()

	t, err := LoadFile(path, w.catalog)
	if err != nil {
		w.logger.Warn("theme reload failed", "path", path, "error", err)
	} else {
		w.logger.Info("theme reloaded", "path", path, "theme", t.Name)
	}

	select {
	case w.results <- Result{Path: path, Theme: t, Err: err}:
	default:
	}
}

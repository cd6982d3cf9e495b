// Package watch re-runs a callback when dataset files change on disk.
package watch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is how long a file must stay quiet before the callback runs.
const DefaultDebounce = 500 * time.Millisecond

// Callback is invoked with the absolute path of a changed file.
type Callback func(ctx context.Context, path string)

// Watcher monitors dataset files for changes.
type Watcher struct {
	fsWatcher *fsnotify.Watcher
	files     map[string]struct{}
	debounce  time.Duration
	out       io.Writer
	callback  Callback
	now       func() time.Time

	mu      sync.Mutex
	pending map[string]time.Time
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounce sets the quiet period before a change is reported.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// WithOutput sets where status lines are written. Defaults to stdout.
func WithOutput(out io.Writer) Option {
	return func(w *Watcher) {
		w.out = out
	}
}

// New creates a watcher for the given files. Their parent directories are
// watched so editors that replace files on save are still noticed.
func New(paths []string, cb Callback, opts ...Option) (*Watcher, error) {
	if len(paths) == 0 {
		return nil, errors.New("watch: no files to watch")
	}
	if cb == nil {
		return nil, errors.New("watch: nil callback")
	}

	files := make(map[string]struct{}, len(paths))
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, err
		}
		if _, err := os.Stat(abs); err != nil {
			return nil, fmt.Errorf("watch %s: %w", p, err)
		}
		files[abs] = struct{}{}
	}

	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		fsWatcher: fsWatcher,
		files:     files,
		debounce:  DefaultDebounce,
		out:       os.Stdout,
		callback:  cb,
		now:       time.Now,
		pending:   make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Start watches until ctx is cancelled. Callbacks run one at a time on the
// debounce goroutine.
func (w *Watcher) Start(ctx context.Context) error {
	dirs := make(map[string]struct{})
	for f := range w.files {
		dirs[filepath.Dir(f)] = struct{}{}
	}
	for dir := range dirs {
		if err := w.fsWatcher.Add(dir); err != nil {
			return fmt.Errorf("watch %s: %w", dir, err)
		}
	}

	color.New(color.FgCyan).Fprintf(w.out, "Watching %d file(s) for changes...\n", len(w.files))
	color.New(color.FgCyan).Fprintln(w.out, "Press Ctrl+C to stop")

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		w.processDebounced(ctx)
	}()
	defer wg.Wait()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return nil
			}
			w.handleEvent(event)

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return nil
			}
			color.New(color.FgRed).Fprintf(w.out, "Watch error: %v\n", err)
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
		return
	}
	path, err := filepath.Abs(event.Name)
	if err != nil {
		return
	}
	if _, ok := w.files[path]; !ok {
		return
	}

	w.mu.Lock()
	w.pending[path] = w.now()
	w.mu.Unlock()
}

func (w *Watcher) processDebounced(ctx context.Context) {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, path := range w.ready() {
				color.New(color.FgYellow).Fprintf(w.out, "\nFile changed: %s\n", filepath.Base(path))
				w.callback(ctx, path)
			}
		}
	}
}

// ready removes and returns the files that have been quiet for the
// debounce period, in path order.
func (w *Watcher) ready() []string {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.now()
	var out []string
	for path, last := range w.pending {
		if now.Sub(last) >= w.debounce {
			out = append(out, path)
		}
	}
	for _, path := range out {
		delete(w.pending, path)
	}
	sort.Strings(out)
	return out
}

// Stop releases the underlying watcher.
func (w *Watcher) Stop() error {
	return w.fsWatcher.Close()
}

// WatchedFiles returns the watched files in path order.
func (w *Watcher) WatchedFiles() []string {
	out := make([]string, 0, len(w.files))
	for f := range w.files {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

package fixtures

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// WatchOptions controls a Watcher.
type WatchOptions struct {
	Dir      string
	Watch    bool
	Patterns []string // default *.json, *.jsonl
	Logger   *log.Logger
	// Debounce coalesces bursts of writes to the same file.
	Debounce time.Duration
	// OnLoad runs after each file has been applied to the sink.
	OnLoad func(path string, set Set)
}

// Watcher loads fixture files from a directory into a Sink, once or
// continuously.
type Watcher struct {
	sink Sink
	opts WatchOptions

	mu      sync.Mutex
	pending map[string]*time.Timer
	loaded  int
	errors  int
}

// NewWatcher constructs a fixture watcher.
func NewWatcher(sink Sink, opts WatchOptions) *Watcher {
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard, "", 0)
	}
	if len(opts.Patterns) == 0 {
		opts.Patterns = []string{"*.json", "*.jsonl"}
	}
	if opts.Debounce <= 0 {
		opts.Debounce = 200 * time.Millisecond
	}
	return &Watcher{
		sink:    sink,
		opts:    opts,
		pending: make(map[string]*time.Timer),
	}
}

// Stats returns the number of records applied and files that failed.
func (w *Watcher) Stats() (loaded, errors int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.loaded, w.errors
}

// Run performs an initial pass and, in watch mode, keeps applying changed
// files until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	if err := w.scanOnce(ctx); err != nil {
		return err
	}
	if !w.opts.Watch {
		loaded, errs := w.Stats()
		w.opts.Logger.Printf("Completed fixture load: records=%d errors=%d", loaded, errs)
		return nil
	}
	return w.watchLoop(ctx)
}

func (w *Watcher) matches(name string) bool {
	lower := strings.ToLower(name)
	for _, pat := range w.opts.Patterns {
		if ok, _ := filepath.Match(strings.TrimSpace(strings.ToLower(pat)), lower); ok {
			return true
		}
	}
	return false
}

func (w *Watcher) scanOnce(ctx context.Context) error {
	entries, err := os.ReadDir(w.opts.Dir)
	if err != nil {
		return fmt.Errorf("read dir: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() || !w.matches(e.Name()) {
			continue
		}
		w.apply(ctx, filepath.Join(w.opts.Dir, e.Name()))
	}
	return nil
}

func (w *Watcher) apply(ctx context.Context, path string) {
	set, err := LoadFile(path)
	if err != nil && set.Len() == 0 {
		w.opts.Logger.Printf("error loading %s: %v", path, err)
		w.mu.Lock()
		w.errors++
		w.mu.Unlock()
		return
	}
	if err != nil {
		w.opts.Logger.Printf("partial load of %s: %v", path, err)
	}

	n, err := Apply(ctx, w.sink, set)
	w.mu.Lock()
	w.loaded += n
	if err != nil {
		w.errors++
	}
	w.mu.Unlock()
	if err != nil {
		w.opts.Logger.Printf("error applying %s: %v", path, err)
		return
	}
	w.opts.Logger.Printf("Loaded %d records from %s", n, filepath.Base(path))
	if w.opts.OnLoad != nil {
		w.opts.OnLoad(path, set)
	}
}

// schedule applies path after the debounce interval, restarting the timer
// on every call.
func (w *Watcher) schedule(ctx context.Context, path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.pending[path]; ok {
		t.Stop()
	}
	w.pending[path] = time.AfterFunc(w.opts.Debounce, func() {
		w.mu.Lock()
		delete(w.pending, path)
		w.mu.Unlock()
		if ctx.Err() == nil {
			w.apply(ctx, path)
		}
	})
}

func (w *Watcher) cancelPending() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for path, t := range w.pending {
		t.Stop()
		delete(w.pending, path)
	}
}

func (w *Watcher) watchLoop(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("fsnotify: %w", err)
	}
	defer fw.Close()
	defer w.cancelPending()

	if err := fw.Add(w.opts.Dir); err != nil {
		return fmt.Errorf("watch add: %w", err)
	}
	w.opts.Logger.Printf("Watching fixtures: %s (patterns: %s)", w.opts.Dir, strings.Join(w.opts.Patterns, ","))

	for {
		select {
		case <-ctx.Done():
			loaded, errs := w.Stats()
			w.opts.Logger.Printf("Fixture watch stopping: records=%d errors=%d", loaded, errs)
			return ctx.Err()
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if !w.matches(filepath.Base(ev.Name)) {
				continue
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write) != 0 {
				w.schedule(ctx, ev.Name)
			}
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.opts.Logger.Printf("watch error: %v", err)
		}
	}
}

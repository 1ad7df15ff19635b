// Package watcher keeps the index in step with a transcript directory using
// fsnotify.
package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/hyperjump/kikitori/internal/transcript"
)

const defaultDebounce = 400 * time.Millisecond

// Handler reacts to a transcript file event.
type Handler func(ctx context.Context, path string) error

// Stats counts processed events.
type Stats struct {
	Directory string    `json:"directory"`
	Running   bool      `json:"running"`
	Changed   int64     `json:"changed"`
	Removed   int64     `json:"removed"`
	Failed    int64     `json:"failed"`
	LastEvent time.Time `json:"last_event,omitempty"`
}

// Watcher watches one transcript directory. Created or written files are
// passed to onChange once writes settle; removed or renamed-away files are
// passed to onRemove.
type Watcher struct {
	dir        string
	extensions []string
	onChange   Handler
	onRemove   Handler
	debounce   time.Duration

	mu      sync.Mutex
	fsw     *fsnotify.Watcher
	timers  map[string]*time.Timer
	ctx     context.Context
	done    chan struct{}
	stats   Stats
	running sync.WaitGroup
	logger  *zap.Logger // optional; when set, logs debug events
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithLogger sets a logger for debug output.
func WithLogger(l *zap.Logger) WatcherOption {
	return func(w *Watcher) { w.logger = l }
}

// WithDebounce sets how long a file must stay quiet before onChange runs.
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// NewWatcher creates a watcher for dir. An empty extensions list means
// transcript.DefaultExtensions.
func NewWatcher(dir string, extensions []string, onChange, onRemove Handler, opts ...WatcherOption) *Watcher {
	if len(extensions) == 0 {
		extensions = transcript.DefaultExtensions
	}
	w := &Watcher{
		dir:        filepath.Clean(dir),
		extensions: extensions,
		onChange:   onChange,
		onRemove:   onRemove,
		debounce:   defaultDebounce,
		timers:     make(map[string]*time.Timer),
	}
	w.stats.Directory = w.dir
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start begins watching. The directory is created if missing. The watcher
// runs until ctx is cancelled or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.fsw != nil {
		return nil
	}
	if err := os.MkdirAll(w.dir, 0755); err != nil {
		return err
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := fsw.Add(w.dir); err != nil {
		_ = fsw.Close()
		return err
	}
	w.fsw = fsw
	w.ctx = ctx
	w.done = make(chan struct{})
	w.stats.Running = true
	if w.logger != nil {
		w.logger.Debug("watcher starting", zap.String("dir", w.dir), zap.Strings("extensions", w.extensions))
	}
	w.running.Add(1)
	go w.run(ctx, fsw, w.done)
	return nil
}

func (w *Watcher) run(ctx context.Context, fsw *fsnotify.Watcher, done chan struct{}) {
	defer w.running.Done()
	for {
		select {
		case <-ctx.Done():
			go w.Stop()
			return
		case <-done:
			return
		case ev, ok := <-fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(ev)
		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			if w.logger != nil {
				w.logger.Warn("watcher error", zap.Error(err))
			}
		}
	}
}

func (w *Watcher) handleEvent(ev fsnotify.Event) {
	path := filepath.Clean(ev.Name)
	if filepath.Dir(path) != w.dir || !transcript.HasExtension(path, w.extensions) {
		return
	}
	if w.logger != nil {
		w.logger.Debug("watcher event", zap.String("op", ev.Op.String()), zap.String("path", path))
	}
	switch {
	case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
		w.cancelDebounce(path)
		if _, err := os.Stat(path); err == nil {
			// Replaced in place by an editor's rename-over-save.
			w.debounceChange(path)
			return
		}
		w.dispatch(path, w.onRemove, &w.stats.Removed)
	case ev.Has(fsnotify.Create), ev.Has(fsnotify.Write):
		w.debounceChange(path)
	}
}

func (w *Watcher) debounceChange(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.timers[path]; ok {
		t.Stop()
	}
	w.timers[path] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.timers, path)
		w.mu.Unlock()
		w.dispatch(path, w.onChange, &w.stats.Changed)
	})
}

func (w *Watcher) cancelDebounce(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.timers[path]; ok {
		t.Stop()
		delete(w.timers, path)
	}
}

func (w *Watcher) dispatch(path string, h Handler, counter *int64) {
	if h == nil {
		return
	}
	w.mu.Lock()
	ctx := w.ctx
	w.mu.Unlock()
	if ctx == nil {
		ctx = context.Background()
	}
	err := h(ctx, path)

	w.mu.Lock()
	w.stats.LastEvent = time.Now()
	if err != nil {
		w.stats.Failed++
	} else {
		*counter++
	}
	w.mu.Unlock()

	if err != nil && w.logger != nil {
		w.logger.Warn("watcher handler failed", zap.String("path", path), zap.Error(err))
	}
}

// Sync passes every transcript already in the directory to onChange.
func (w *Watcher) Sync(ctx context.Context) error {
	files, err := transcript.ListFiles(w.dir, w.extensions)
	if err != nil {
		return err
	}
	if w.logger != nil {
		w.logger.Debug("watcher syncing directory", zap.String("dir", w.dir), zap.Int("files", len(files)))
	}
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return err
		}
		w.dispatch(f, w.onChange, &w.stats.Changed)
	}
	return nil
}

// Directory returns the watched directory.
func (w *Watcher) Directory() string {
	return w.dir
}

// Stats returns a snapshot of the event counters.
func (w *Watcher) Stats() Stats {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stats
}

// Stop stops watching and cancels pending debounced events.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if w.fsw == nil {
		w.mu.Unlock()
		return
	}
	for path, t := range w.timers {
		t.Stop()
		delete(w.timers, path)
	}
	close(w.done)
	_ = w.fsw.Close()
	w.fsw = nil
	w.stats.Running = false
	w.mu.Unlock()
	w.running.Wait()
}

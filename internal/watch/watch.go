// Package watch reruns a callback when a project's scenario file or dataset
// changes on disk.
package watch

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// DefaultDebounce is how long the tree must be quiet before a reload.
const DefaultDebounce = 500 * time.Millisecond

// Stats counts watcher activity.
type Stats struct {
	Events    int       `json:"events"`
	Reloads   int       `json:"reloads"`
	Failures  int       `json:"failures"`
	LastEvent time.Time `json:"last_event"`
	LastPath  string    `json:"last_path"`
}

// Watcher watches a set of directories and calls Reload once changes have
// settled. Bursts of saves collapse into a single reload.
type Watcher struct {
	watcher  *fsnotify.Watcher
	reload   func(context.Context) error
	logger   *zap.Logger
	debounce time.Duration
	exts     map[string]bool

	mu      sync.Mutex
	pending time.Time
	stats   Stats
	running bool
	closed  bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// New returns a watcher over dirs. Only files with one of the extensions in
// exts (".csv", ".yaml", ...) trigger a reload.
func New(dirs []string, exts []string, reload func(context.Context) error, logger *zap.Logger) (*Watcher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watch: %w", err)
	}
	for _, d := range dirs {
		if err := fw.Add(d); err != nil {
			fw.Close()
			return nil, fmt.Errorf("watch %s: %w", d, err)
		}
	}
	w := &Watcher{
		watcher:  fw,
		reload:   reload,
		logger:   logger,
		debounce: DefaultDebounce,
		exts:     make(map[string]bool),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
	for _, e := range exts {
		w.exts[strings.ToLower(e)] = true
	}
	return w, nil
}

// SetDebounce changes the settle window. Call before Start.
func (w *Watcher) SetDebounce(d time.Duration) { w.debounce = d }

// Start begins watching in a goroutine.
func (w *Watcher) Start(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running || w.closed {
		return
	}
	w.running = true
	go w.run(ctx)
}

// Stop stops the watcher, waits for the loop to exit and releases the
// underlying watch. It is safe to call more than once.
func (w *Watcher) Stop() {
	w.mu.Lock()
	running := w.running
	w.running = false
	closed := w.closed
	w.closed = true
	w.mu.Unlock()

	if running {
		close(w.stopCh)
		<-w.doneCh
	}
	if !closed {
		if err := w.watcher.Close(); err != nil {
			w.logger.Warn("closing watcher", zap.Error(err))
		}
	}
}

// Stats returns a snapshot of the counters.
func (w *Watcher) Stats() Stats {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stats
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.doneCh)

	tick := w.debounce / 5
	if tick <= 0 {
		tick = time.Millisecond
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watch error", zap.Error(err))
		case <-ticker.C:
			w.fire(ctx)
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if !w.exts[strings.ToLower(filepath.Ext(event.Name))] {
		return
	}
	if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
		return
	}
	w.logger.Debug("change", zap.String("path", event.Name), zap.Stringer("op", event.Op))

	w.mu.Lock()
	now := time.Now()
	w.pending = now
	w.stats.Events++
	w.stats.LastEvent = now
	w.stats.LastPath = event.Name
	w.mu.Unlock()
}

// fire runs the reload once the last event is older than the debounce window.
func (w *Watcher) fire(ctx context.Context) {
	w.mu.Lock()
	if w.pending.IsZero() || time.Since(w.pending) < w.debounce {
		w.mu.Unlock()
		return
	}
	w.pending = time.Time{}
	w.mu.Unlock()

	err := w.reload(ctx)

	w.mu.Lock()
	w.stats.Reloads++
	if err != nil {
		w.stats.Failures++
	}
	w.mu.Unlock()
	if err != nil {
		w.logger.Warn("reload failed", zap.Error(err))
		return
	}
	w.logger.Info("reloaded")
}

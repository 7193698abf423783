// Package watcher notifies when skill sources change on disk.
//
// The watcher never touches registry state itself. It coalesces bursts of
// filesystem events per file and, once a burst settles past the debounce
// window, invokes a callback; the owner decides when to actually refresh.
package watcher

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"skillforge/internal/logging"
)

// DefaultDebounce is the settle window for rapid saves.
const DefaultDebounce = 500 * time.Millisecond

// Stats tracks watcher activity.
type Stats struct {
	Events        int
	Notifications int
	Errors        int
	LastEventPath string
	LastEventTime time.Time
}

// Watcher watches a skills directory for *.go changes.
type Watcher struct {
	dir      string
	debounce time.Duration
	onChange func()
	watcher  *fsnotify.Watcher

	mu      sync.Mutex
	pending map[string]time.Time
	stats   Stats
	running bool

	stopCh chan struct{}
	doneCh chan struct{}
}

// New creates a watcher over dir. onChange runs on the watcher goroutine
// once per settled burst of changes; it should only flip a flag or post a
// signal, not do the refresh work itself. Zero debounce means
// DefaultDebounce.
func New(dir string, debounce time.Duration, onChange func()) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Watcher{
		dir:      dir,
		debounce: debounce,
		onChange: onChange,
		watcher:  fsw,
		pending:  make(map[string]time.Time),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}, nil
}

// Start begins watching. Non-blocking; the event loop runs on its own
// goroutine until Stop or ctx cancellation. A stopped watcher cannot be
// restarted.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	if err := os.MkdirAll(w.dir, 0755); err != nil {
		logging.WatcherWarn("Create skills dir %s: %v (continuing)", w.dir, err)
	}
	if err := w.watcher.Add(w.dir); err != nil {
		logging.WatcherWarn("Watch %s failed: %v (dir may not exist yet)", w.dir, err)
	} else {
		logging.Watcher("Watching %s", w.dir)
	}

	go w.run(ctx)
	return nil
}

// Stop stops the watcher and waits for the event loop to exit.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh

	if err := w.watcher.Close(); err != nil {
		logging.WatcherWarn("Close watcher: %v", err)
	}
	logging.Watcher("Stopped")
}

// IsWatching returns true while the event loop is running.
func (w *Watcher) IsWatching() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

// GetStats returns a snapshot of the watcher counters.
func (w *Watcher) GetStats() Stats {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stats
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.doneCh)

	tick := w.debounce / 2
	if tick < 10*time.Millisecond {
		tick = 10 * time.Millisecond
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logging.Watcher("Context cancelled")
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
			logging.WatcherWarn("Watch error: %v", err)
			w.mu.Lock()
			w.stats.Errors++
			w.mu.Unlock()

		case <-ticker.C:
			w.notifySettled()
		}
	}
}

// handleEvent records one filesystem event for debouncing. Only create,
// write, remove and rename of skill sources count; chmod and non-source
// files are ignored.
func (w *Watcher) handleEvent(event fsnotify.Event) {
	name := filepath.Base(event.Name)
	if !strings.HasSuffix(name, ".go") || strings.HasSuffix(name, "_test.go") {
		return
	}
	if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
		return
	}

	logging.WatcherDebug("%s %s", event.Op, event.Name)

	w.mu.Lock()
	w.stats.Events++
	w.stats.LastEventPath = event.Name
	w.stats.LastEventTime = time.Now()
	w.pending[event.Name] = time.Now()
	w.mu.Unlock()
}

// notifySettled fires the callback once when every pending event has
// settled past the debounce window.
func (w *Watcher) notifySettled() {
	w.mu.Lock()
	now := time.Now()
	settled := 0
	for path, at := range w.pending {
		if now.Sub(at) >= w.debounce {
			delete(w.pending, path)
			settled++
		}
	}
	if settled > 0 {
		w.stats.Notifications++
	}
	w.mu.Unlock()

	if settled > 0 {
		logging.Watcher("%d change(s) settled, notifying", settled)
		if w.onChange != nil {
			w.onChange()
		}
	}
}

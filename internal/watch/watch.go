// Package watch implements the optional storage-root watcher
// (SPEC_FULL.md "Storage-root watching"): watches configured storage
// roots for new or changed task directories and triggers an
// incremental refresh.
//
// Adapted from the teacher's fsnotify-based Watcher
// (index/watcher.go): same debounce-by-pending-timestamp-map plus
// ticking-processor shape, retargeted from "watch .go files, reindex
// one file" to "watch task directories, trigger a full
// build_or_refresh pass" — a task directory's source files are never
// rewritten in isolation, so per-file granularity buys nothing here.
package watch

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/ternarybob/arbor"
)

// RefreshFunc triggers one build_or_refresh pass; typically
// (*cache.Store).BuildOrRefresh bound to its detector and options.
type RefreshFunc func(ctx context.Context) error

// Watcher watches one or more storage roots and calls Refresh after a
// debounce window once activity settles.
type Watcher struct {
	roots      []string
	debounceMs int
	refresh    RefreshFunc
	log        arbor.ILogger

	fsWatcher *fsnotify.Watcher
	stopCh    chan struct{}

	mu      sync.Mutex
	running bool

	pendingMu sync.Mutex
	pending   bool
	lastEvent time.Time
}

// New creates a Watcher over roots. debounceMs is the quiet period
// required after the last filesystem event before Refresh is called.
func New(roots []string, debounceMs int, refresh RefreshFunc, log arbor.ILogger) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		roots:      roots,
		debounceMs: debounceMs,
		refresh:    refresh,
		log:        log,
		fsWatcher:  fsWatcher,
		stopCh:     make(chan struct{}),
	}, nil
}

// Start begins watching. It registers every configured root (and,
// since task directories are created under them after Start runs,
// re-registers newly seen subdirectories as CREATE events arrive) and
// launches the event and debounce-processing goroutines.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	for _, root := range w.roots {
		if err := w.fsWatcher.Add(root); err != nil {
			if w.log != nil {
				w.log.Warn().Str("root", root).Err(err).Msg("watch: cannot watch root")
			}
			continue
		}
	}

	go w.processEvents(ctx, w.roots)
	go w.processDebounced(ctx)

	return nil
}

// Stop stops the watcher and releases its fsnotify handle.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.running {
		return nil
	}
	w.running = false
	close(w.stopCh)
	return w.fsWatcher.Close()
}

func (w *Watcher) processEvents(ctx context.Context, roots []string) {
	skip := func(path string) bool {
		for _, root := range roots {
			if shouldSkipPath(root, path) {
				return true
			}
		}
		return false
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove) == 0 {
				continue
			}
			if skip(event.Name) {
				continue
			}

			if event.Op&fsnotify.Create != 0 {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					_ = w.fsWatcher.Add(event.Name)
				}
			}

			w.pendingMu.Lock()
			w.pending = true
			w.lastEvent = time.Now()
			w.pendingMu.Unlock()

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			if w.log != nil {
				w.log.Warn().Err(err).Msg("watch: fsnotify error")
			}
		}
	}
}

func (w *Watcher) processDebounced(ctx context.Context) {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	debounce := time.Duration(w.debounceMs) * time.Millisecond

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case <-ticker.C:
			w.pendingMu.Lock()
			due := w.pending && time.Since(w.lastEvent) >= debounce
			if due {
				w.pending = false
			}
			w.pendingMu.Unlock()

			if !due {
				continue
			}
			if err := w.refresh(ctx); err != nil && w.log != nil {
				w.log.Error().Err(err).Msg("watch: refresh failed")
			}
		}
	}
}

// reservedWatchNames mirrors the storage detector's skip list so the
// watcher never re-triggers off its own cache directory's writes.
var reservedWatchNames = map[string]bool{
	".skeleton-cache": true,
	".git":            true,
	"node_modules":    true,
}

func shouldSkipPath(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	for _, part := range strings.Split(rel, string(filepath.Separator)) {
		if reservedWatchNames[part] {
			return true
		}
	}
	return false
}

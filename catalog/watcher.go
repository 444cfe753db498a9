package catalog

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Refresher is implemented by providers that support an explicit reload.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// WatcherConfig configures the catalog file watcher
type WatcherConfig struct {
	// Path is the catalog file to watch
	Path string

	// DebounceDelay is how long to wait for more changes before refreshing
	DebounceDelay time.Duration

	// Logger for logging events
	Logger *slog.Logger
}

// Watcher refreshes a catalog whenever its backing file changes.
//
// The parent directory is watched rather than the file itself so that editors
// and deploy tools that replace the file by rename are still picked up.
type Watcher struct {
	config    WatcherConfig
	target    Refresher
	watcher   *fsnotify.Watcher
	logger    *slog.Logger
	refreshed chan error

	timerMu sync.Mutex
	timer   *time.Timer
}

// NewWatcher creates a watcher that calls target.Refresh on changes to config.Path.
func NewWatcher(config WatcherConfig, target Refresher) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	if config.DebounceDelay == 0 {
		config.DebounceDelay = 250 * time.Millisecond
	}

	return &Watcher{
		config:    config,
		target:    target,
		watcher:   fsw,
		logger:    logger,
		refreshed: make(chan error, 1),
	}, nil
}

// Start begins watching. It returns once the watch is registered; events are
// processed in a goroutine until ctx is cancelled or Close is called.
func (w *Watcher) Start(ctx context.Context) error {
	dir := filepath.Dir(w.config.Path)
	if err := w.watcher.Add(dir); err != nil {
		return err
	}

	go w.processEvents(ctx)

	w.logger.Info("Catalog watcher started", "path", w.config.Path)
	return nil
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	w.timerMu.Lock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timerMu.Unlock()
	return w.watcher.Close()
}

func (w *Watcher) processEvents(ctx context.Context) {
	target := filepath.Clean(w.config.Path)
	for {
		select {
		case <-ctx.Done():
			_ = w.Close()
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			w.schedule(ctx)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("Catalog watcher error", "error", err)
		}
	}
}

// schedule debounces bursts of events into a single refresh.
func (w *Watcher) schedule(ctx context.Context) {
	w.timerMu.Lock()
	defer w.timerMu.Unlock()

	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.config.DebounceDelay, func() {
		if ctx.Err() != nil {
			return
		}
		err := w.target.Refresh(ctx)
		if err != nil {
			w.logger.Warn("Catalog refresh after file change failed", "path", w.config.Path, "error", err)
		} else {
			w.logger.Info("Catalog refreshed after file change", "path", w.config.Path)
		}
		select {
		case w.refreshed <- err:
		default:
		}
	})
}

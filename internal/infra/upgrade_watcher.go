package infra

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// UpgradeWatcher fires when the installed binary is replaced, which is the
// desktop equivalent of a package-upgraded broadcast.
type UpgradeWatcher struct {
	watcher    *fsnotify.Watcher
	binaryPath string
	debounce   time.Duration
	onUpgrade  func()
	logger     *zap.Logger

	mu      sync.Mutex
	pending *time.Timer
	last    fsnotify.Event
	closed  bool
}

// NewUpgradeWatcher watches the directory holding binaryPath.
// fsnotify loses a watch on a file that is renamed over, so the parent is watched.
func NewUpgradeWatcher(binaryPath string, debounce time.Duration, onUpgrade func(), logger *zap.Logger) (*UpgradeWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(binaryPath)); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", filepath.Dir(binaryPath), err)
	}
	if debounce <= 0 {
		debounce = 2 * time.Second
	}
	return &UpgradeWatcher{
		watcher:    watcher,
		binaryPath: filepath.Clean(binaryPath),
		debounce:   debounce,
		onUpgrade:  onUpgrade,
		logger:     logger,
	}, nil
}

// Start blocks until ctx is canceled. A change still settling when Start
// returns does not fire.
func (w *UpgradeWatcher) Start(ctx context.Context) {
	defer w.Close()
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.binaryPath {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) != 0 {
				w.handleChange(event)
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("upgrade watcher error", zap.Error(err))
		case <-ctx.Done():
			return
		}
	}
}

// handleChange restarts the quiet period. onUpgrade runs once the burst of
// events one install produces has stopped for the debounce interval.
func (w *UpgradeWatcher) handleChange(event fsnotify.Event) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	w.last = event
	if w.pending != nil {
		w.pending.Stop()
	}
	w.pending = time.AfterFunc(w.debounce, w.fire)
}

func (w *UpgradeWatcher) fire() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	event := w.last
	w.pending = nil
	w.mu.Unlock()

	w.logger.Info("installed binary changed",
		zap.String("path", event.Name),
		zap.String("op", event.Op.String()))
	w.onUpgrade()
}

// Close drops any pending change and releases the watch.
func (w *UpgradeWatcher) Close() error {
	w.mu.Lock()
	w.closed = true
	if w.pending != nil {
		w.pending.Stop()
		w.pending = nil
	}
	w.mu.Unlock()
	return w.watcher.Close()
}

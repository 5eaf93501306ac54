// Package daemon implements the foreground watcher and presence daemons.
package daemon

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/focus_mon/internal/domain"
	"github.com/eliteGoblin/focusd/focus_mon/internal/infra"
	"github.com/eliteGoblin/focusd/focus_mon/internal/usecase"
)

// WatcherConfig holds watcher daemon configuration.
type WatcherConfig struct {
	BinaryPath      string        // Installed binary watched for upgrades; empty disables
	UpgradeDebounce time.Duration // Quiet period after the last event of one install
}

// DefaultWatcherConfig returns default watcher configuration.
func DefaultWatcherConfig() WatcherConfig {
	return WatcherConfig{
		UpgradeDebounce: 2 * time.Second,
	}
}

// Watcher is the monitor-role daemon. It feeds foreground changes to the
// dispatcher and turns replacements of the installed binary into
// package_upgraded events.
type Watcher struct {
	config      WatcherConfig
	source      domain.ForegroundSource
	dispatcher  *usecase.Dispatcher
	reg         *usecase.Registration
	launchAgent domain.LaunchAgentManager
	pid         int
	logger      *zap.Logger
}

// NewWatcher creates a new watcher daemon.
func NewWatcher(
	config WatcherConfig,
	source domain.ForegroundSource,
	dispatcher *usecase.Dispatcher,
	reg *usecase.Registration,
	launchAgent domain.LaunchAgentManager,
	pid int,
	logger *zap.Logger,
) *Watcher {
	return &Watcher{
		config:      config,
		source:      source,
		dispatcher:  dispatcher,
		reg:         reg,
		launchAgent: launchAgent,
		pid:         pid,
		logger:      logger,
	}
}

// Run starts the watcher daemon loop.
// This blocks until context is canceled.
func (w *Watcher) Run(ctx context.Context) error {
	if err := w.reg.Claim(ctx, w.pid); err != nil {
		w.logger.Info("watcher not started", zap.Error(err))
		return err
	}
	defer func() {
		if err := w.reg.Release(context.WithoutCancel(ctx), w.pid); err != nil {
			w.logger.Warn("failed to release watcher registration", zap.Error(err))
		}
	}()

	w.logger.Info("watcher daemon started", zap.Int("pid", w.pid))

	if w.config.BinaryPath != "" {
		uw, err := infra.NewUpgradeWatcher(w.config.BinaryPath, w.config.UpgradeDebounce,
			func() { w.onUpgrade(ctx) }, w.logger)
		if err != nil {
			w.logger.Warn("upgrade watcher disabled", zap.Error(err))
		} else {
			go uw.Start(ctx)
		}
	}

	err := w.source.Run(ctx, func(appID string) {
		_ = w.dispatcher.Dispatch(ctx, domain.Event{
			Type:    domain.EventForegroundChanged,
			Payload: appID,
			At:      time.Now(),
		})
	})
	w.logger.Info("watcher daemon stopping")
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// onUpgrade evaluates the restart policy and refreshes the boot agent, whose
// content embeds the binary path.
func (w *Watcher) onUpgrade(ctx context.Context) {
	_ = w.dispatcher.Dispatch(ctx, domain.Event{Type: domain.EventPackageUpgraded, At: time.Now()})

	if w.launchAgent == nil || !w.launchAgent.NeedsUpdate(w.config.BinaryPath) {
		return
	}
	if err := w.launchAgent.Update(w.config.BinaryPath); err != nil {
		w.logger.Warn("failed to refresh boot agent", zap.Error(err))
		return
	}
	w.logger.Info("boot agent refreshed", zap.String("path", w.launchAgent.GetPlistPath()))
}

// AsyncInterceptor runs each interception on its own goroutine so the
// foreground loop keeps draining events while a surface is up.
type AsyncInterceptor struct {
	inner  usecase.Interceptor
	wg     sync.WaitGroup
	logger *zap.Logger
}

// NewAsyncInterceptor wraps inner.
func NewAsyncInterceptor(inner usecase.Interceptor, logger *zap.Logger) *AsyncInterceptor {
	return &AsyncInterceptor{inner: inner, logger: logger}
}

// Block starts the interception and returns immediately.
func (a *AsyncInterceptor) Block(ctx context.Context, appID string) error {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		if err := a.inner.Block(ctx, appID); err != nil {
			a.logger.Warn("interception failed", zap.String("app", appID), zap.Error(err))
		}
	}()
	return nil
}

// Wait blocks until every started interception has finished.
func (a *AsyncInterceptor) Wait() {
	a.wg.Wait()
}

// Ensure AsyncInterceptor implements usecase.Interceptor.
var _ usecase.Interceptor = (*AsyncInterceptor)(nil)

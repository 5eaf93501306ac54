package infra

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/focus_mon/internal/domain"
)

const frontmostScript = `tell application "System Events" to get bundle identifier of first application process whose frontmost is true`

// ForegroundPoller implements domain.ForegroundSource by polling the
// frontmost application and emitting when it changes.
// darwin: bundle id via osascript. Elsewhere: process name of the active X11
// window's PID (xdotool + gopsutil).
type ForegroundPoller struct {
	runner   CommandRunner
	pm       domain.ProcessManager
	interval time.Duration
	goos     string
	logger   *zap.Logger
}

// NewForegroundPoller creates a poller for the running OS.
func NewForegroundPoller(pm domain.ProcessManager, interval time.Duration, logger *zap.Logger) *ForegroundPoller {
	return NewForegroundPollerWithDeps(&RealCommandRunner{}, pm, interval, runtime.GOOS, logger)
}

// NewForegroundPollerWithDeps creates a poller with injectable dependencies (for testing).
func NewForegroundPollerWithDeps(
	runner CommandRunner,
	pm domain.ProcessManager,
	interval time.Duration,
	goos string,
	logger *zap.Logger,
) *ForegroundPoller {
	return &ForegroundPoller{
		runner:   runner,
		pm:       pm,
		interval: interval,
		goos:     goos,
		logger:   logger,
	}
}

// Run polls until ctx is canceled. Failed probes are skipped: delivery is
// best-effort and a missed change only means a missed intercept.
func (p *ForegroundPoller) Run(ctx context.Context, emit func(appID string)) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	last := ""
	for {
		current, err := p.Frontmost(ctx)
		if err != nil {
			p.logger.Debug("foreground probe failed", zap.Error(err))
		} else if current != last {
			last = current
			emit(current)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Frontmost returns the identifier of the current foreground application.
func (p *ForegroundPoller) Frontmost(ctx context.Context) (string, error) {
	if p.goos == "darwin" {
		out, err := p.runner.Output(ctx, "osascript", "-e", frontmostScript)
		if err != nil {
			return "", fmt.Errorf("osascript: %w", err)
		}
		return strings.TrimSpace(string(out)), nil
	}

	out, err := p.runner.Output(ctx, "xdotool", "getactivewindow", "getwindowpid")
	if err != nil {
		return "", fmt.Errorf("xdotool: %w", err)
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(out)))
	if err != nil {
		return "", fmt.Errorf("unexpected window pid %q: %w", out, err)
	}
	return p.pm.NameOf(pid)
}

// Ensure ForegroundPoller implements domain.ForegroundSource.
var _ domain.ForegroundSource = (*ForegroundPoller)(nil)

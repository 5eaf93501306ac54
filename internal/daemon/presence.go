package daemon

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/focus_mon/internal/domain"
	"github.com/eliteGoblin/focusd/focus_mon/internal/usecase"
)

// PresenceConfig holds presence daemon configuration.
type PresenceConfig struct {
	Channel        domain.Channel
	Notification   domain.Notification
	RepostInterval time.Duration // Delay before a dismissed reminder returns
	RetryInterval  time.Duration // Delay after the notifier fails
}

// DefaultPresenceConfig returns default intervals; channel and notification
// come from the config file.
func DefaultPresenceConfig() PresenceConfig {
	return PresenceConfig{
		RepostInterval: 30 * time.Minute,
		RetryInterval:  time.Minute,
	}
}

// Presence is the presence-role daemon. It keeps the reminder visible and
// routes its button taps through the dispatcher.
type Presence struct {
	config     PresenceConfig
	reg        *usecase.Registration
	notifier   domain.Notifier
	dispatcher *usecase.Dispatcher
	pid        int
	logger     *zap.Logger
}

// NewPresence creates a presence daemon.
func NewPresence(
	config PresenceConfig,
	reg *usecase.Registration,
	notifier domain.Notifier,
	dispatcher *usecase.Dispatcher,
	pid int,
	logger *zap.Logger,
) *Presence {
	return &Presence{
		config:     config,
		reg:        reg,
		notifier:   notifier,
		dispatcher: dispatcher,
		pid:        pid,
		logger:     logger,
	}
}

// Run shows the reminder until ctx is canceled (the stop command), then
// withdraws it. A second presence daemon exits without showing anything.
func (p *Presence) Run(ctx context.Context) error {
	if err := p.reg.Claim(ctx, p.pid); err != nil {
		p.logger.Info("presence not started", zap.Error(err))
		return err
	}

	cleanup := context.WithoutCancel(ctx)
	defer func() {
		if err := p.notifier.Withdraw(cleanup, p.config.Notification); err != nil {
			p.logger.Warn("failed to withdraw reminder", zap.Error(err))
		}
		if err := p.reg.Release(cleanup, p.pid); err != nil {
			p.logger.Warn("failed to release presence registration", zap.Error(err))
		}
		p.logger.Info("presence daemon stopped")
	}()

	created, err := p.notifier.EnsureChannel(ctx, p.config.Channel)
	if err != nil {
		p.logger.Warn("failed to ensure notification channel", zap.Error(err))
	} else if created {
		p.logger.Info("notification channel created", zap.String("channel", p.config.Channel.ID))
	}

	p.logger.Info("presence daemon started", zap.Int("pid", p.pid))

	for {
		action, err := p.notifier.Show(ctx, p.config.Notification)
		if ctx.Err() != nil {
			return nil
		}

		switch {
		case err != nil:
			p.logger.Warn("failed to show reminder", zap.Error(err))
			if !sleep(ctx, p.config.RetryInterval) {
				return nil
			}
		case action == "":
			p.logger.Debug("reminder dismissed")
			if !sleep(ctx, p.config.RepostInterval) {
				return nil
			}
		default:
			_ = p.dispatcher.Dispatch(ctx, domain.Event{
				Type:    domain.EventPresenceAction,
				Payload: string(action),
				At:      time.Now(),
			})
		}
	}
}

// sleep waits for d; false means ctx ended first.
func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

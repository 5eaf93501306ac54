package usecase

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/focus_mon/internal/domain"
	"github.com/eliteGoblin/focusd/focus_mon/internal/policy"
)

// Commands is the narrow surface the main application drives the core with.
type Commands struct {
	store    domain.PolicyStore
	relay    *Relay
	presence *PresenceController
	logger   *zap.Logger
}

// NewCommands creates the command surface.
func NewCommands(store domain.PolicyStore, relay *Relay, presence *PresenceController, logger *zap.Logger) *Commands {
	return &Commands{store: store, relay: relay, presence: presence, logger: logger}
}

// SetFocusActive toggles focus mode. Switching it off also releases the
// interception guard in the same update.
func (c *Commands) SetFocusActive(ctx context.Context, active bool) error {
	err := c.store.Update(ctx, func(tx domain.StoreTx) error {
		if err := tx.Set(domain.KeyFocusActive, active); err != nil {
			return err
		}
		if active {
			return nil
		}
		busy, err := tx.Bool(domain.KeyBlockingNow, false)
		if err != nil {
			return err
		}
		next, err := domain.InterceptStateOf(busy).Next(domain.InterceptFocusOff)
		if err != nil {
			return err
		}
		return tx.Set(domain.KeyBlockingNow, next.Flag())
	})
	if err != nil {
		return fmt.Errorf("failed to set focus mode: %w", err)
	}
	c.logger.Info("focus mode changed", zap.Bool("active", active))
	return nil
}

// SetBlockedPackages replaces the blocklist.
func (c *Commands) SetBlockedPackages(ctx context.Context, ids []string) error {
	list := policy.NewBlocklist(ids...)
	raw, err := list.Encode()
	if err != nil {
		return fmt.Errorf("failed to encode blocklist: %w", err)
	}
	if err := c.store.Apply(ctx, domain.Delta{domain.KeyBlocklist: raw}); err != nil {
		return fmt.Errorf("failed to set blocklist: %w", err)
	}
	c.logger.Info("blocklist replaced", zap.Strings("apps", list.List()))
	return nil
}

// BlockedPackages returns the effective blocklist.
func (c *Commands) BlockedPackages(ctx context.Context) (policy.Blocklist, error) {
	snap, err := c.store.Snapshot(ctx)
	if err != nil {
		return policy.Blocklist{}, err
	}
	return policy.ParseBlocklist(snap.BlocklistRaw), nil
}

// SetPresenceEnabled records the user's opt-in. It does not start or stop
// the process; the Restart Policy reads it on the next trigger.
func (c *Commands) SetPresenceEnabled(ctx context.Context, enabled bool) error {
	if err := c.store.Apply(ctx, domain.Delta{domain.KeyPresenceEnabled: enabled}); err != nil {
		return fmt.Errorf("failed to set presence opt-in: %w", err)
	}
	c.logger.Info("presence opt-in changed", zap.Bool("enabled", enabled))
	return nil
}

// StartPresence issues the presence start command.
func (c *Commands) StartPresence(ctx context.Context) error {
	return c.presence.Start(ctx)
}

// StopPresence issues the presence stop command.
func (c *Commands) StopPresence(ctx context.Context) error {
	return c.presence.Stop(ctx)
}

// ConsumePendingAction returns the pending action once; ok is false when absent.
func (c *Commands) ConsumePendingAction(ctx context.Context) (string, bool, error) {
	return c.relay.Consume(ctx)
}

// PresenceStatus returns the presence diagnostics.
func (c *Commands) PresenceStatus(ctx context.Context) (PresenceStatus, error) {
	return c.presence.Status(ctx)
}

// Snapshot returns every store entry.
func (c *Commands) Snapshot(ctx context.Context) (domain.Snapshot, error) {
	return c.store.Snapshot(ctx)
}

package usecase

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/focus_mon/internal/domain"
	"github.com/eliteGoblin/focusd/focus_mon/internal/policy"
)

// PresenceStarter issues the presence start command.
type PresenceStarter interface {
	Start(ctx context.Context) error
}

// RestartPolicy evaluates boot and upgrade triggers.
type RestartPolicy struct {
	store    domain.PolicyStore
	presence PresenceStarter
	cooldown time.Duration
	now      func() time.Time
	logger   *zap.Logger
}

// NewRestartPolicy creates a restart policy using the wall clock.
func NewRestartPolicy(store domain.PolicyStore, presence PresenceStarter, cooldown time.Duration, logger *zap.Logger) *RestartPolicy {
	return NewRestartPolicyWithClock(store, presence, cooldown, time.Now, logger)
}

// NewRestartPolicyWithClock creates a restart policy with an injectable clock (for testing).
func NewRestartPolicyWithClock(
	store domain.PolicyStore,
	presence PresenceStarter,
	cooldown time.Duration,
	now func() time.Time,
	logger *zap.Logger,
) *RestartPolicy {
	return &RestartPolicy{store: store, presence: presence, cooldown: cooldown, now: now, logger: logger}
}

// Evaluate decides and, when starting, records the decision in the same
// update that read the inputs. Two triggers racing across processes see
// each other's write and the second lands in the cooldown.
func (r *RestartPolicy) Evaluate(ctx context.Context, trigger domain.EventType) (policy.RestartDecision, error) {
	now := r.now()

	var decision policy.RestartDecision
	err := r.store.Update(ctx, func(tx domain.StoreTx) error {
		snap, err := domain.ReadSnapshot(tx)
		if err != nil {
			return err
		}
		decision = policy.DecideRestart(now, snap, r.cooldown)
		return decision.Delta().ApplyTo(tx)
	})
	if err != nil {
		return decision, fmt.Errorf("failed to evaluate restart policy: %w", err)
	}

	r.logger.Info("presence restart decision",
		zap.String("trigger", string(trigger)),
		zap.Bool("enabled", decision.Enabled),
		zap.String("lastDate", decision.LastDate),
		zap.String("today", decision.Today),
		zap.Bool("inCooldown", decision.InCooldown),
		zap.Bool("shouldStart", decision.ShouldStart))

	if !decision.ShouldStart {
		return decision, nil
	}
	if err := r.presence.Start(ctx); err != nil {
		return decision, err
	}
	return decision, nil
}

package usecase

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/focus_mon/internal/domain"
)

// Blocker is the Blocker Controller. It owns the interception surface and
// every path that resets blocking_now.
type Blocker struct {
	store    domain.PolicyStore
	surface  domain.InterceptionSurface
	launcher domain.Launcher
	logger   *zap.Logger
}

// NewBlocker creates a blocker controller.
func NewBlocker(
	store domain.PolicyStore,
	surface domain.InterceptionSurface,
	launcher domain.Launcher,
	logger *zap.Logger,
) *Blocker {
	return &Blocker{store: store, surface: surface, launcher: launcher, logger: logger}
}

// Begin sets the guard for an interception started outside the Event
// Monitor. It fails with domain.ErrAlreadyIntercepting while one is showing.
func (b *Blocker) Begin(ctx context.Context) error {
	return b.store.Update(ctx, func(tx domain.StoreTx) error {
		busy, err := tx.Bool(domain.KeyBlockingNow, false)
		if err != nil {
			return err
		}
		next, err := domain.InterceptStateOf(busy).Next(domain.InterceptBegin)
		if err != nil {
			return err
		}
		return tx.Set(domain.KeyBlockingNow, next.Flag())
	})
}

// Block presents the surface for appID and applies the user's choice.
// blocking_now is reset on every exit, including surface failure and panic.
func (b *Blocker) Block(ctx context.Context, appID string) (err error) {
	// the reset must land even when ctx is canceled by a shutdown
	storeCtx := context.WithoutCancel(ctx)
	released := false
	defer func() {
		if released {
			return
		}
		if rerr := b.release(storeCtx, domain.OutcomeTeardown); rerr != nil {
			b.logger.Error("failed to reset blocking flag", zap.String("app", appID), zap.Error(rerr))
		}
	}()

	outcome, perr := b.surface.Present(ctx, appID)
	if perr != nil {
		b.logger.Warn("interception surface went away", zap.String("app", appID), zap.Error(perr))
		outcome = domain.OutcomeTeardown
	}

	if err := b.release(storeCtx, outcome); err != nil {
		return err
	}
	released = true
	b.logger.Info("interception finished",
		zap.String("app", appID),
		zap.String("outcome", string(outcome)))

	if outcome == domain.OutcomeTeardown {
		return nil
	}
	if err := b.launcher.BringToFront(ctx); err != nil {
		return fmt.Errorf("failed to bring main entry forward: %w", err)
	}
	return nil
}

// Resolve applies an outcome reported from outside (a surface hosted by
// another process). Same store effects and hand-off as Block.
func (b *Blocker) Resolve(ctx context.Context, outcome domain.Outcome) error {
	if err := b.release(ctx, outcome); err != nil {
		return err
	}
	if outcome == domain.OutcomeTeardown {
		return nil
	}
	if err := b.launcher.BringToFront(ctx); err != nil {
		return fmt.Errorf("failed to bring main entry forward: %w", err)
	}
	return nil
}

// release writes the outcome's store effects in one update. End focus sets
// the pending action and clears the guard together.
func (b *Blocker) release(ctx context.Context, outcome domain.Outcome) error {
	err := b.store.Update(ctx, func(tx domain.StoreTx) error {
		busy, err := tx.Bool(domain.KeyBlockingNow, false)
		if err != nil {
			return err
		}
		next, err := domain.InterceptStateOf(busy).Next(domain.InterceptEventFor(outcome))
		if err != nil {
			return err
		}
		if outcome == domain.OutcomeEndFocus {
			if err := publishTx(tx, domain.ActionEndFocus); err != nil {
				return err
			}
		}
		return tx.Set(domain.KeyBlockingNow, next.Flag())
	})
	if err != nil {
		return fmt.Errorf("failed to record %s: %w", outcome, err)
	}
	return nil
}

// Ensure Blocker implements Interceptor.
var _ Interceptor = (*Blocker)(nil)

// Package usecase contains application business logic.
package usecase

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/focus_mon/internal/domain"
)

// Relay is the single-slot mailbox for the main application.
// Writers overwrite; the one reader consumes.
type Relay struct {
	store  domain.PolicyStore
	logger *zap.Logger
}

// NewRelay creates a relay over the policy store.
func NewRelay(store domain.PolicyStore, logger *zap.Logger) *Relay {
	return &Relay{store: store, logger: logger}
}

// Publish writes action, replacing whatever was pending.
func (r *Relay) Publish(ctx context.Context, action domain.PendingAction) error {
	if err := r.store.Update(ctx, func(tx domain.StoreTx) error {
		return publishTx(tx, action)
	}); err != nil {
		return fmt.Errorf("failed to publish %s: %w", action, err)
	}
	r.logger.Info("pending action published", zap.String("action", string(action)))
	return nil
}

// publishTx lets compound updates include the relay write.
func publishTx(tx domain.StoreTx, action domain.PendingAction) error {
	return tx.Set(domain.KeyPendingAction, string(action))
}

// Consume reads and clears the slot in one update.
// ok is false when nothing was pending.
func (r *Relay) Consume(ctx context.Context) (action string, ok bool, err error) {
	err = r.store.Update(ctx, func(tx domain.StoreTx) error {
		var terr error
		action, ok, terr = tx.String(domain.KeyPendingAction)
		if terr != nil || !ok {
			return terr
		}
		return tx.Delete(domain.KeyPendingAction)
	})
	if err != nil {
		return "", false, fmt.Errorf("failed to consume pending action: %w", err)
	}
	return action, ok, nil
}

// ConsumeKnown is Consume for callers that act on the value.
// Unrecognised strings are consumed and reported as nothing pending.
func (r *Relay) ConsumeKnown(ctx context.Context) (domain.PendingAction, bool, error) {
	raw, ok, err := r.Consume(ctx)
	if err != nil || !ok {
		return "", false, err
	}
	action, known := domain.KnownAction(raw)
	if !known {
		r.logger.Info("ignoring unrecognised pending action", zap.String("action", raw))
		return "", false, nil
	}
	return action, true, nil
}

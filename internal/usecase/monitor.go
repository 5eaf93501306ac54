package usecase

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/focus_mon/internal/domain"
	"github.com/eliteGoblin/focusd/focus_mon/internal/policy"
)

// Interceptor runs the Blocker Controller for one offending app.
type Interceptor interface {
	Block(ctx context.Context, appID string) error
}

// Monitor is the Event Monitor. It decides, per foreground change, whether
// the Blocker Controller runs.
type Monitor struct {
	store   domain.PolicyStore
	filter  policy.Filter
	blocker Interceptor
	logger  *zap.Logger
}

// NewMonitor creates an event monitor.
func NewMonitor(store domain.PolicyStore, filter policy.Filter, blocker Interceptor, logger *zap.Logger) *Monitor {
	return &Monitor{store: store, filter: filter, blocker: blocker, logger: logger}
}

// OnForegroundAppChanged handles one foreground change.
// The guard is checked and set in the same store update as the focus and
// blocklist reads, so two racing events cannot both begin an interception.
func (m *Monitor) OnForegroundAppChanged(ctx context.Context, appID string) (policy.ForegroundDecision, error) {
	if reason := m.filter.Excludes(appID); reason != policy.ReasonNone {
		return policy.ForegroundDecision{Reason: reason}, nil
	}

	var decision policy.ForegroundDecision
	err := m.store.Update(ctx, func(tx domain.StoreTx) error {
		snap, err := domain.ReadSnapshot(tx)
		if err != nil {
			return err
		}
		decision = policy.DecideForeground(appID, snap, m.filter)
		if !decision.Intercept {
			return nil
		}
		next, err := domain.InterceptStateOf(snap.BlockingNow).Next(domain.InterceptBegin)
		if err != nil {
			return err
		}
		return tx.Set(domain.KeyBlockingNow, next.Flag())
	})
	if errors.Is(err, domain.ErrAlreadyIntercepting) {
		decision = policy.ForegroundDecision{Reason: policy.ReasonInFlight}
		err = nil
	}
	if err != nil {
		m.logger.Warn("foreground change dropped", zap.String("app", appID), zap.Error(err))
		return policy.ForegroundDecision{}, fmt.Errorf("failed to evaluate %s: %w", appID, err)
	}

	if !decision.Intercept {
		m.logger.Debug("foreground change ignored",
			zap.String("app", appID),
			zap.String("reason", string(decision.Reason)))
		return decision, nil
	}

	m.logger.Info("intercepting blocked app", zap.String("app", appID))
	return decision, m.blocker.Block(ctx, appID)
}

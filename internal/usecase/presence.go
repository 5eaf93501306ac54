package usecase

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/focus_mon/internal/domain"
)

// PresenceActions handles taps on the reminder's three buttons. It writes
// through the relay like the Blocker does and never touches the presence
// process itself.
type PresenceActions struct {
	relay    *Relay
	launcher domain.Launcher
	logger   *zap.Logger
}

// NewPresenceActions creates the reminder action handler.
func NewPresenceActions(relay *Relay, launcher domain.Launcher, logger *zap.Logger) *PresenceActions {
	return &PresenceActions{relay: relay, launcher: launcher, logger: logger}
}

// Handle publishes the action's pending value then brings the main entry forward.
func (p *PresenceActions) Handle(ctx context.Context, action domain.PresenceAction) error {
	pending, err := action.Pending()
	if err != nil {
		return err
	}
	if err := p.relay.Publish(ctx, pending); err != nil {
		return err
	}
	if err := p.launcher.BringToFront(ctx); err != nil {
		return fmt.Errorf("failed to bring main entry forward: %w", err)
	}
	return nil
}

// PresenceStatus is the diagnostic view of the presence process.
type PresenceStatus struct {
	Enabled      bool
	LastDate     string
	LastSyncAt   time.Time
	LastDecision string
	State        domain.PresenceState
	PID          int
}

// PresenceController owns the start and stop commands. The running state is
// derived from the PID the presence daemon registers in store meta.
type PresenceController struct {
	store   domain.PolicyStore
	reg     *Registration
	pm      domain.ProcessManager
	spawner domain.DaemonSpawner
	logger  *zap.Logger
}

// NewPresenceController creates a presence controller.
func NewPresenceController(
	store domain.PolicyStore,
	pm domain.ProcessManager,
	spawner domain.DaemonSpawner,
	logger *zap.Logger,
) *PresenceController {
	return &PresenceController{
		store:   store,
		reg:     NewRegistration(store, pm, domain.RolePresence),
		pm:      pm,
		spawner: spawner,
		logger:  logger,
	}
}

// Registration returns the presence PID registration the daemon claims.
func (c *PresenceController) Registration() *Registration {
	return c.reg
}

// State returns the current presence state and the registered PID.
func (c *PresenceController) State(ctx context.Context) (domain.PresenceState, int, error) {
	pid, alive, err := c.reg.Lookup(ctx)
	if err != nil {
		return domain.PresenceStopped, 0, err
	}
	if !alive {
		return domain.PresenceStopped, pid, nil
	}
	return domain.PresenceRunning, pid, nil
}

// Start spawns the presence process unless it is already running.
func (c *PresenceController) Start(ctx context.Context) error {
	return c.apply(ctx, domain.PresenceStart)
}

// Stop terminates the presence process. Stopping a stopped process is a no-op.
func (c *PresenceController) Stop(ctx context.Context) error {
	return c.apply(ctx, domain.PresenceStop)
}

func (c *PresenceController) apply(ctx context.Context, cmd domain.PresenceCommand) error {
	state, pid, err := c.State(ctx)
	if err != nil {
		return err
	}
	next, effect, err := state.Next(cmd)
	if err != nil {
		return err
	}

	switch effect {
	case domain.EffectSpawn:
		if err := c.spawner.Spawn(domain.RolePresence); err != nil {
			return fmt.Errorf("failed to start presence process: %w", err)
		}
	case domain.EffectTerminate:
		if err := c.pm.Terminate(pid); err != nil {
			return fmt.Errorf("failed to stop presence process %d: %w", pid, err)
		}
		if err := c.reg.Clear(ctx); err != nil {
			return err
		}
	case domain.EffectNone:
		if cmd == domain.PresenceStop && pid != 0 {
			// stale registration from a process that died
			if err := c.reg.Release(ctx, pid); err != nil {
				c.logger.Warn("failed to clear stale presence registration",
					zap.Int("pid", pid), zap.Error(err))
			}
		}
	}

	c.logger.Info("presence command",
		zap.String("command", string(cmd)),
		zap.String("from", state.String()),
		zap.String("to", next.String()),
		zap.Int("pid", pid))
	return nil
}

// Status combines the persisted restart bookkeeping with process liveness.
func (c *PresenceController) Status(ctx context.Context) (PresenceStatus, error) {
	snap, err := c.store.Snapshot(ctx)
	if err != nil {
		return PresenceStatus{}, err
	}
	state, pid, err := c.State(ctx)
	if err != nil {
		return PresenceStatus{}, err
	}
	if state == domain.PresenceStopped {
		pid = 0
	}
	return PresenceStatus{
		Enabled:      snap.PresenceEnabled,
		LastDate:     snap.PresenceLastDate,
		LastSyncAt:   snap.PresenceLastSyncAt,
		LastDecision: snap.PresenceLastDecision,
		State:        state,
		PID:          pid,
	}, nil
}

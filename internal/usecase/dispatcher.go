package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/focus_mon/internal/domain"
)

// ErrNoHandler is returned for an event type nobody registered.
var ErrNoHandler = errors.New("no handler registered")

// Handler processes one event.
type Handler func(ctx context.Context, ev domain.Event) error

// Dispatcher routes OS and user callbacks to their handlers.
type Dispatcher struct {
	mu       sync.RWMutex
	handlers map[domain.EventType]Handler
	logger   *zap.Logger
}

// NewDispatcher creates an empty dispatcher.
func NewDispatcher(logger *zap.Logger) *Dispatcher {
	return &Dispatcher{handlers: make(map[domain.EventType]Handler), logger: logger}
}

// Register installs h for t, replacing any previous handler.
func (d *Dispatcher) Register(t domain.EventType, h Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[t] = h
}

// Dispatch runs the handler for ev. Errors are logged here; callbacks
// delivered by the OS drop them, CLI callers may report them.
func (d *Dispatcher) Dispatch(ctx context.Context, ev domain.Event) error {
	d.mu.RLock()
	h, ok := d.handlers[ev.Type]
	d.mu.RUnlock()
	if !ok {
		d.logger.Warn("event dropped", zap.String("type", string(ev.Type)))
		return fmt.Errorf("%w: %s", ErrNoHandler, ev.Type)
	}

	if err := h(ctx, ev); err != nil {
		d.logger.Warn("event handler failed",
			zap.String("type", string(ev.Type)),
			zap.String("payload", ev.Payload),
			zap.Error(err))
		return err
	}
	return nil
}

// Core bundles the components the default handlers route to.
type Core struct {
	Monitor  *Monitor
	Blocker  *Blocker
	Restart  *RestartPolicy
	Presence *PresenceActions
}

// NewCoreDispatcher registers the handler for every event type.
func NewCoreDispatcher(core Core, logger *zap.Logger) *Dispatcher {
	d := NewDispatcher(logger)

	d.Register(domain.EventForegroundChanged, func(ctx context.Context, ev domain.Event) error {
		_, err := core.Monitor.OnForegroundAppChanged(ctx, ev.Payload)
		return err
	})
	restart := func(ctx context.Context, ev domain.Event) error {
		_, err := core.Restart.Evaluate(ctx, ev.Type)
		return err
	}
	d.Register(domain.EventBootCompleted, restart)
	d.Register(domain.EventPackageUpgraded, restart)
	d.Register(domain.EventPresenceAction, func(ctx context.Context, ev domain.Event) error {
		action, err := domain.ParsePresenceAction(ev.Payload)
		if err != nil {
			return fmt.Errorf("%w: %q", err, ev.Payload)
		}
		return core.Presence.Handle(ctx, action)
	})
	d.Register(domain.EventInterceptOutcome, func(ctx context.Context, ev domain.Event) error {
		return core.Blocker.Resolve(ctx, domain.ParseOutcome(ev.Payload))
	})
	return d
}

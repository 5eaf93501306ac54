package usecase

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/eliteGoblin/focusd/focus_mon/internal/domain"
)

// Registration tracks the PID of the single daemon of one role in store meta.
// Liveness comes from the process table, so a crashed daemon reads as absent.
type Registration struct {
	store domain.PolicyStore
	pm    domain.ProcessManager
	role  domain.DaemonRole
}

// NewRegistration creates the registration for role.
func NewRegistration(store domain.PolicyStore, pm domain.ProcessManager, role domain.DaemonRole) *Registration {
	return &Registration{store: store, pm: pm, role: role}
}

// Lookup returns the registered PID and whether it is alive.
// pid is 0 when nothing is registered.
func (r *Registration) Lookup(ctx context.Context) (pid int, alive bool, err error) {
	raw, err := r.store.Meta(ctx, domain.MetaPIDKey(r.role))
	if errors.Is(err, domain.ErrKeyNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to read %s pid: %w", r.role, err)
	}
	pid = parsePID(raw)
	return pid, pid != 0 && r.pm.IsRunning(pid), nil
}

// Claim registers pid. It fails with domain.ErrDaemonRunning when another
// live process already holds the registration. The check and the write run
// in one store transaction, so concurrent claimants cannot both win.
func (r *Registration) Claim(ctx context.Context, pid int) error {
	key := domain.MetaPIDKey(r.role)
	return r.store.Update(ctx, func(tx domain.StoreTx) error {
		current, err := r.holder(tx)
		if err != nil {
			return err
		}
		if current != 0 && current != pid && r.pm.IsRunning(current) {
			return fmt.Errorf("%w: %s pid %d", domain.ErrDaemonRunning, r.role, current)
		}
		if err := tx.SetMeta(key, strconv.Itoa(pid)); err != nil {
			return fmt.Errorf("failed to register %s pid: %w", r.role, err)
		}
		return nil
	})
}

// Release drops the registration if pid still holds it.
func (r *Registration) Release(ctx context.Context, pid int) error {
	key := domain.MetaPIDKey(r.role)
	return r.store.Update(ctx, func(tx domain.StoreTx) error {
		current, err := r.holder(tx)
		if err != nil || current != pid {
			return err
		}
		if err := tx.DeleteMeta(key); err != nil {
			return fmt.Errorf("failed to clear %s pid: %w", r.role, err)
		}
		return nil
	})
}

// Clear drops the registration unconditionally.
func (r *Registration) Clear(ctx context.Context) error {
	if err := r.store.DeleteMeta(ctx, domain.MetaPIDKey(r.role)); err != nil {
		return fmt.Errorf("failed to clear %s pid: %w", r.role, err)
	}
	return nil
}

func (r *Registration) holder(tx domain.StoreTx) (int, error) {
	raw, ok, err := tx.Meta(domain.MetaPIDKey(r.role))
	if err != nil {
		return 0, fmt.Errorf("failed to read %s pid: %w", r.role, err)
	}
	if !ok {
		return 0, nil
	}
	return parsePID(raw), nil
}

// parsePID returns 0 for anything that is not a positive PID.
func parsePID(raw string) int {
	pid, err := strconv.Atoi(raw)
	if err != nil || pid <= 0 {
		return 0
	}
	return pid
}

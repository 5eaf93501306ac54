// Package fixtures provides test doubles for the platform collaborators.
package fixtures

import (
	"context"
	"sync"

	"github.com/eliteGoblin/focusd/focus_mon/internal/domain"
)

// FakeSurface answers every interception with Outcome. When Gate is set it
// blocks until Gate is closed or ctx ends.
type FakeSurface struct {
	Outcome domain.Outcome
	Gate    chan struct{}

	mu    sync.Mutex
	shown []string
}

// Present records appID and returns the scripted outcome.
func (f *FakeSurface) Present(ctx context.Context, appID string) (domain.Outcome, error) {
	f.mu.Lock()
	f.shown = append(f.shown, appID)
	gate := f.Gate
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return domain.OutcomeTeardown, ctx.Err()
		}
	}
	return f.Outcome, nil
}

// Shown returns the app ids presented so far.
func (f *FakeSurface) Shown() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.shown...)
}

// FakeLauncher counts hand-offs to the main entry point.
type FakeLauncher struct {
	mu    sync.Mutex
	calls int
}

// BringToFront records one hand-off.
func (f *FakeLauncher) BringToFront(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return nil
}

// Calls returns the number of hand-offs.
func (f *FakeLauncher) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// FakeNotifier replays Taps, one per Show, then blocks until ctx ends.
type FakeNotifier struct {
	Taps []domain.PresenceAction

	mu        sync.Mutex
	channels  map[string]bool
	shows     int
	withdrawn int
}

// EnsureChannel creates ch once.
func (f *FakeNotifier) EnsureChannel(_ context.Context, ch domain.Channel) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.channels == nil {
		f.channels = make(map[string]bool)
	}
	if f.channels[ch.ID] {
		return false, nil
	}
	f.channels[ch.ID] = true
	return true, nil
}

// Show returns the next scripted tap.
func (f *FakeNotifier) Show(ctx context.Context, _ domain.Notification) (domain.PresenceAction, error) {
	f.mu.Lock()
	f.shows++
	if len(f.Taps) > 0 {
		next := f.Taps[0]
		f.Taps = f.Taps[1:]
		f.mu.Unlock()
		return next, nil
	}
	f.mu.Unlock()

	<-ctx.Done()
	return "", ctx.Err()
}

// Withdraw records a withdrawal.
func (f *FakeNotifier) Withdraw(context.Context, domain.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.withdrawn++
	return nil
}

// Shows returns how often the reminder was presented.
func (f *FakeNotifier) Shows() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.shows
}

// Withdrawn returns how often the reminder was withdrawn.
func (f *FakeNotifier) Withdrawn() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.withdrawn
}

// FakeForegroundSource emits Apps in order, then waits for ctx.
type FakeForegroundSource struct {
	Apps []string
}

// Run emits every app then blocks.
func (f *FakeForegroundSource) Run(ctx context.Context, emit func(appID string)) error {
	for _, app := range f.Apps {
		emit(app)
	}
	<-ctx.Done()
	return ctx.Err()
}

// FakeProcessManager reports the PIDs in Running as alive.
type FakeProcessManager struct {
	mu         sync.Mutex
	running    map[int]bool
	terminated []int
}

// NewFakeProcessManager creates a process table with pids alive.
func NewFakeProcessManager(pids ...int) *FakeProcessManager {
	f := &FakeProcessManager{running: make(map[int]bool)}
	for _, pid := range pids {
		f.running[pid] = true
	}
	return f
}

// SetRunning marks pid alive or dead.
func (f *FakeProcessManager) SetRunning(pid int, alive bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.running[pid] = alive
}

func (f *FakeProcessManager) IsRunning(pid int) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.running[pid]
}

func (f *FakeProcessManager) Terminate(pid int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.terminated = append(f.terminated, pid)
	delete(f.running, pid)
	return nil
}

func (f *FakeProcessManager) NameOf(int) (string, error) { return "", nil }

func (f *FakeProcessManager) GetCurrentPID() int { return 1 }

// Terminated returns the PIDs asked to exit.
func (f *FakeProcessManager) Terminated() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int(nil), f.terminated...)
}

// FakeSpawner records spawned roles.
type FakeSpawner struct {
	mu      sync.Mutex
	spawned []domain.DaemonRole
}

// Spawn records role.
func (f *FakeSpawner) Spawn(role domain.DaemonRole) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.spawned = append(f.spawned, role)
	return nil
}

// Spawned returns the roles spawned so far.
func (f *FakeSpawner) Spawned() []domain.DaemonRole {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.DaemonRole(nil), f.spawned...)
}

var (
	_ domain.InterceptionSurface = (*FakeSurface)(nil)
	_ domain.Launcher            = (*FakeLauncher)(nil)
	_ domain.Notifier            = (*FakeNotifier)(nil)
	_ domain.ForegroundSource    = (*FakeForegroundSource)(nil)
	_ domain.ProcessManager      = (*FakeProcessManager)(nil)
	_ domain.DaemonSpawner       = (*FakeSpawner)(nil)
)

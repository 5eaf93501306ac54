package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/focus_mon/internal/domain"
)

func interceptingStore(pending string) *memStore {
	store := newMemStore()
	d := domain.Delta{domain.KeyFocusActive: true, domain.KeyBlockingNow: true}
	if pending != "" {
		d[domain.KeyPendingAction] = pending
	}
	store.set(d)
	return store
}

func TestBlocker_Block(t *testing.T) {
	tests := []struct {
		name         string
		prior        string
		outcome      domain.Outcome
		surfaceErr   error
		wantPending  string
		wantLaunches int
		wantFocus    bool
	}{
		{
			name:         "go back releases and hands off",
			outcome:      domain.OutcomeGoBack,
			wantLaunches: 1,
			wantFocus:    true,
		},
		{
			name:         "end focus publishes and releases",
			outcome:      domain.OutcomeEndFocus,
			wantPending:  "end_focus",
			wantLaunches: 1,
			wantFocus:    true,
		},
		{
			name:         "end focus overwrites prior pending action",
			prior:        "home",
			outcome:      domain.OutcomeEndFocus,
			wantPending:  "end_focus",
			wantLaunches: 1,
			wantFocus:    true,
		},
		{
			name:        "teardown releases without hand-off",
			prior:       "complete",
			outcome:     domain.OutcomeTeardown,
			wantPending: "complete",
			wantFocus:   true,
		},
		{
			name:       "surface failure counts as teardown",
			outcome:    domain.OutcomeEndFocus,
			surfaceErr: errors.New("killed"),
			wantFocus:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := interceptingStore(tt.prior)
			surface := &mockSurface{outcome: tt.outcome, err: tt.surfaceErr}
			launcher := &mockLauncher{}
			b := NewBlocker(store, surface, launcher, zap.NewNop())

			require.NoError(t, b.Block(context.Background(), "com.game.x"))

			snap := store.snap()
			assert.False(t, snap.BlockingNow)
			assert.Equal(t, tt.wantPending, snap.PendingAction)
			assert.Equal(t, tt.wantFocus, snap.FocusActive, "the blocker never writes focus_active")
			assert.Equal(t, tt.wantLaunches, launcher.calls)
			assert.Equal(t, []string{"com.game.x"}, surface.shown)
		})
	}
}

func TestBlocker_ResetsGuardOnPanic(t *testing.T) {
	store := interceptingStore("")
	surface := &mockSurface{panicWith: "renderer crashed"}
	b := NewBlocker(store, surface, &mockLauncher{}, zap.NewNop())

	assert.PanicsWithValue(t, "renderer crashed", func() {
		_ = b.Block(context.Background(), "com.game.x")
	})
	assert.False(t, store.snap().BlockingNow)
}

func TestBlocker_ResetsGuardWhenContextCanceled(t *testing.T) {
	store := interceptingStore("")
	surface := &mockSurface{gate: make(chan struct{})}
	launcher := &mockLauncher{}
	b := NewBlocker(store, surface, launcher, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, b.Block(ctx, "com.game.x"))
	assert.False(t, store.snap().BlockingNow)
	assert.Zero(t, launcher.calls)
}

func TestBlocker_PersistenceFailure(t *testing.T) {
	store := interceptingStore("")
	surface := &mockSurface{outcome: domain.OutcomeEndFocus}
	surface.observe = func() { store.updateErr = errors.New("disk full") }
	launcher := &mockLauncher{}
	b := NewBlocker(store, surface, launcher, zap.NewNop())

	err := b.Block(context.Background(), "com.game.x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to record end_focus")
	assert.Zero(t, launcher.calls, "no hand-off after a failed write")
}

func TestBlocker_LauncherFailureKeepsRelease(t *testing.T) {
	store := interceptingStore("")
	launcher := &mockLauncher{err: errors.New("no such app")}
	b := NewBlocker(store, &mockSurface{outcome: domain.OutcomeGoBack}, launcher, zap.NewNop())

	err := b.Block(context.Background(), "com.game.x")
	assert.Error(t, err)
	assert.False(t, store.snap().BlockingNow)
}

func TestBlocker_Resolve(t *testing.T) {
	store := interceptingStore("focus30")
	launcher := &mockLauncher{}
	b := NewBlocker(store, &mockSurface{}, launcher, zap.NewNop())

	require.NoError(t, b.Resolve(context.Background(), domain.OutcomeEndFocus))
	snap := store.snap()
	assert.False(t, snap.BlockingNow)
	assert.Equal(t, "end_focus", snap.PendingAction)
	assert.Equal(t, 1, launcher.calls)

	// resolving again from Idle is harmless
	require.NoError(t, b.Resolve(context.Background(), domain.OutcomeTeardown))
	assert.Equal(t, 1, launcher.calls)
}

func TestBlocker_Begin(t *testing.T) {
	store := newMemStore()
	b := NewBlocker(store, &mockSurface{outcome: domain.OutcomeGoBack}, &mockLauncher{}, zap.NewNop())
	ctx := context.Background()

	require.NoError(t, b.Begin(ctx))
	assert.True(t, store.snap().BlockingNow)
	assert.ErrorIs(t, b.Begin(ctx), domain.ErrAlreadyIntercepting)

	require.NoError(t, b.Block(ctx, "com.game.x"))
	require.NoError(t, b.Begin(ctx), "guard is free again after the surface closes")
}

package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/focus_mon/internal/domain"
)

func TestRelay_ConsumeOnce(t *testing.T) {
	store := newMemStore()
	r := NewRelay(store, zap.NewNop())
	ctx := context.Background()

	require.NoError(t, r.Publish(ctx, domain.ActionHome))

	action, ok, err := r.Consume(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "home", action)

	action, ok, err = r.Consume(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, action)
}

func TestRelay_LastWriteWins(t *testing.T) {
	r := NewRelay(newMemStore(), zap.NewNop())
	ctx := context.Background()

	require.NoError(t, r.Publish(ctx, domain.ActionHome))
	require.NoError(t, r.Publish(ctx, domain.ActionComplete))

	action, ok, err := r.Consume(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "complete", action)
}

func TestRelay_ConsumeKnown(t *testing.T) {
	tests := []struct {
		name   string
		stored string
		want   domain.PendingAction
		wantOK bool
	}{
		{name: "known action", stored: "focus30", want: domain.ActionFocus30, wantOK: true},
		{name: "unrecognised is a no-op", stored: "launch_rockets"},
		{name: "nothing pending"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMemStore()
			if tt.stored != "" {
				store.set(domain.Delta{domain.KeyPendingAction: tt.stored})
			}
			r := NewRelay(store, zap.NewNop())

			got, ok, err := r.ConsumeKnown(context.Background())
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantOK, ok)
			assert.Empty(t, store.snap().PendingAction)
		})
	}
}

func TestRelay_ConcurrentConsumersSeeValueOnce(t *testing.T) {
	store := newMemStore()
	r := NewRelay(store, zap.NewNop())
	require.NoError(t, r.Publish(context.Background(), domain.ActionEndFocus))

	var wg sync.WaitGroup
	var mu sync.Mutex
	hits := 0
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, ok, err := r.Consume(context.Background())
			assert.NoError(t, err)
			if ok {
				mu.Lock()
				hits++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, hits)
}

func TestRelay_PersistenceFailure(t *testing.T) {
	store := newMemStore()
	store.updateErr = errors.New("read-only")
	r := NewRelay(store, zap.NewNop())

	assert.Error(t, r.Publish(context.Background(), domain.ActionHome))
	_, _, err := r.Consume(context.Background())
	assert.Error(t, err)
}

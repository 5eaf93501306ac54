package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/eliteGoblin/focusd/focus_mon/internal/domain"
)

// memStore is an in-memory domain.PolicyStore. Updates run on a copy that
// replaces the entries only when fn succeeds.
type memStore struct {
	mu        sync.Mutex
	entries   map[domain.Key]any
	meta      map[string]string
	updateErr error
	updates   int
}

func newMemStore() *memStore {
	return &memStore{entries: make(map[domain.Key]any), meta: make(map[string]string)}
}

type memTx struct {
	entries map[domain.Key]any
	meta    map[string]string
}

func (t *memTx) Bool(key domain.Key, def bool) (bool, error) {
	if v, ok := t.entries[key].(bool); ok {
		return v, nil
	}
	return def, nil
}

func (t *memTx) String(key domain.Key) (string, bool, error) {
	v, ok := t.entries[key].(string)
	return v, ok, nil
}

func (t *memTx) Int64(key domain.Key, def int64) (int64, error) {
	if v, ok := t.entries[key].(int64); ok {
		return v, nil
	}
	return def, nil
}

func (t *memTx) Set(key domain.Key, value any) error {
	switch v := value.(type) {
	case bool, string, int64:
		t.entries[key] = v
	case int:
		t.entries[key] = int64(v)
	case time.Time:
		t.entries[key] = v.UnixMilli()
	case nil:
		delete(t.entries, key)
	default:
		return fmt.Errorf("unsupported value type %T for %s", value, key)
	}
	return nil
}

func (t *memTx) Delete(key domain.Key) error {
	delete(t.entries, key)
	return nil
}

func (t *memTx) Meta(key string) (string, bool, error) {
	v, ok := t.meta[key]
	return v, ok, nil
}

func (t *memTx) SetMeta(key, value string) error {
	t.meta[key] = value
	return nil
}

func (t *memTx) DeleteMeta(key string) error {
	delete(t.meta, key)
	return nil
}

func (s *memStore) Update(_ context.Context, fn func(tx domain.StoreTx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.updateErr != nil {
		return s.updateErr
	}
	staged := make(map[domain.Key]any, len(s.entries))
	for k, v := range s.entries {
		staged[k] = v
	}
	stagedMeta := make(map[string]string, len(s.meta))
	for k, v := range s.meta {
		stagedMeta[k] = v
	}
	if err := fn(&memTx{entries: staged, meta: stagedMeta}); err != nil {
		return err
	}
	s.entries = staged
	s.meta = stagedMeta
	s.updates++
	return nil
}

func (s *memStore) Apply(ctx context.Context, d domain.Delta) error {
	return s.Update(ctx, func(tx domain.StoreTx) error { return d.ApplyTo(tx) })
}

func (s *memStore) Snapshot(ctx context.Context) (domain.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return domain.ReadSnapshot(&memTx{entries: s.entries})
}

func (s *memStore) Meta(_ context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.meta[key]
	if !ok {
		return "", domain.ErrKeyNotFound
	}
	return v, nil
}

func (s *memStore) SetMeta(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.meta[key] = value
	return nil
}

func (s *memStore) DeleteMeta(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.meta, key)
	return nil
}

func (s *memStore) Close() error { return nil }

func (s *memStore) set(d domain.Delta) {
	if err := s.Apply(context.Background(), d); err != nil {
		panic(err)
	}
}

func (s *memStore) snap() domain.Snapshot {
	snap, err := s.Snapshot(context.Background())
	if err != nil {
		panic(err)
	}
	return snap
}

// mockSurface returns a scripted outcome, optionally waiting on a gate.
type mockSurface struct {
	mu        sync.Mutex
	outcome   domain.Outcome
	err       error
	panicWith any
	gate      chan struct{}
	shown     []string
	observe   func()
}

func (m *mockSurface) Present(ctx context.Context, appID string) (domain.Outcome, error) {
	m.mu.Lock()
	m.shown = append(m.shown, appID)
	m.mu.Unlock()
	if m.observe != nil {
		m.observe()
	}
	if m.panicWith != nil {
		panic(m.panicWith)
	}
	if m.gate != nil {
		select {
		case <-m.gate:
		case <-ctx.Done():
			return domain.OutcomeTeardown, ctx.Err()
		}
	}
	return m.outcome, m.err
}

func (m *mockSurface) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.shown)
}

// mockLauncher counts hand-offs to the main entry point.
type mockLauncher struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (m *mockLauncher) BringToFront(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	return m.err
}

// mockProcessManager implements domain.ProcessManager for testing.
type mockProcessManager struct {
	running    map[int]bool
	terminated []int
	termErr    error
}

func newMockProcessManager() *mockProcessManager {
	return &mockProcessManager{running: make(map[int]bool)}
}

func (m *mockProcessManager) IsRunning(pid int) bool { return m.running[pid] }

func (m *mockProcessManager) Terminate(pid int) error {
	if m.termErr != nil {
		return m.termErr
	}
	m.terminated = append(m.terminated, pid)
	delete(m.running, pid)
	return nil
}

func (m *mockProcessManager) NameOf(int) (string, error) { return "", errors.New("not supported") }

func (m *mockProcessManager) GetCurrentPID() int { return 1 }

// mockSpawner records spawned roles.
type mockSpawner struct {
	spawned []domain.DaemonRole
	err     error
}

func (m *mockSpawner) Spawn(role domain.DaemonRole) error {
	if m.err != nil {
		return m.err
	}
	m.spawned = append(m.spawned, role)
	return nil
}

// countingStarter counts presence start commands.
type countingStarter struct {
	starts int
	err    error
}

func (c *countingStarter) Start(context.Context) error {
	c.starts++
	return c.err
}

var (
	_ domain.PolicyStore         = (*memStore)(nil)
	_ domain.InterceptionSurface = (*mockSurface)(nil)
	_ domain.Launcher            = (*mockLauncher)(nil)
	_ domain.ProcessManager      = (*mockProcessManager)(nil)
	_ domain.DaemonSpawner       = (*mockSpawner)(nil)
)

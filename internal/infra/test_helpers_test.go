package infra

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/eliteGoblin/focusd/focus_mon/internal/domain"
)

// mockRunner is a test double for CommandRunner. Outputs and errors are
// scripted per command name; every call is recorded.
type mockRunner struct {
	mu      sync.Mutex
	outputs map[string][]byte
	errs    map[string]error
	calls   [][]string
}

func newMockRunner() *mockRunner {
	return &mockRunner{
		outputs: make(map[string][]byte),
		errs:    make(map[string]error),
	}
}

func (m *mockRunner) on(name, output string, err error) *mockRunner {
	m.outputs[name] = []byte(output)
	if err != nil {
		m.errs[name] = err
	}
	return m
}

func (m *mockRunner) record(name string, args []string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, append([]string{name}, args...))
}

func (m *mockRunner) Run(_ context.Context, name string, args ...string) error {
	m.record(name, args)
	return m.errs[name]
}

func (m *mockRunner) Output(_ context.Context, name string, args ...string) ([]byte, error) {
	m.record(name, args)
	return m.outputs[name], m.errs[name]
}

func (m *mockRunner) lastCall() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.calls) == 0 {
		return nil
	}
	return m.calls[len(m.calls)-1]
}

func (m *mockRunner) joined() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	lines := make([]string, len(m.calls))
	for i, c := range m.calls {
		lines[i] = strings.Join(c, " ")
	}
	return strings.Join(lines, "\n")
}

// exitErr mimics the error exec returns for a non-zero exit status.
type exitErr struct{ code int }

func (e *exitErr) Error() string { return fmt.Sprintf("exit status %d", e.code) }
func (e *exitErr) ExitCode() int { return e.code }

// mockProcessManager is a test double for domain.ProcessManager.
type mockProcessManager struct {
	names      map[int]string
	running    map[int]bool
	terminated []int
}

func newMockProcessManager() *mockProcessManager {
	return &mockProcessManager{names: make(map[int]string), running: make(map[int]bool)}
}

func (m *mockProcessManager) IsRunning(pid int) bool { return m.running[pid] }

func (m *mockProcessManager) Terminate(pid int) error {
	m.terminated = append(m.terminated, pid)
	delete(m.running, pid)
	return nil
}

func (m *mockProcessManager) NameOf(pid int) (string, error) {
	name, ok := m.names[pid]
	if !ok {
		return "", errors.New("no such process")
	}
	return name, nil
}

func (m *mockProcessManager) GetCurrentPID() int { return 4242 }

var _ domain.ProcessManager = (*mockProcessManager)(nil)

// memMeta is an in-memory MetaStore.
type memMeta struct {
	values map[string]string
}

func newMemMeta() *memMeta { return &memMeta{values: make(map[string]string)} }

func (m *memMeta) Meta(_ context.Context, key string) (string, error) {
	v, ok := m.values[key]
	if !ok {
		return "", domain.ErrKeyNotFound
	}
	return v, nil
}

func (m *memMeta) SetMeta(_ context.Context, key, value string) error {
	m.values[key] = value
	return nil
}

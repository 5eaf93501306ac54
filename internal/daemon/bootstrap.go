package daemon

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"syscall"

	"github.com/eliteGoblin/focusd/focus_mon/internal/domain"
	"github.com/eliteGoblin/focusd/focus_mon/internal/usecase"
)

// Spawner implements domain.DaemonSpawner by re-executing the focusmon binary
// in its hidden daemon mode.
type Spawner struct {
	executable string
	dataDir    string
}

// NewSpawner creates a spawner for the given binary. An empty path means the
// running executable.
func NewSpawner(executable, dataDir string) (*Spawner, error) {
	if executable == "" {
		exe, err := os.Executable()
		if err != nil {
			return nil, fmt.Errorf("failed to resolve executable: %w", err)
		}
		executable = exe
	}
	return &Spawner{executable: executable, dataDir: dataDir}, nil
}

// Spawn starts a detached daemon for role.
func (s *Spawner) Spawn(role domain.DaemonRole) error {
	return StartDaemonWithPath(s.executable, role, s.dataDir)
}

// Executable returns the binary the spawner runs.
func (s *Spawner) Executable() string {
	return s.executable
}

// daemonArgs builds the hidden command line: focusmon daemon --role <role> --data-dir <dir>
func daemonArgs(role domain.DaemonRole, dataDir string) []string {
	args := []string{"daemon", "--role", string(role)}
	if dataDir != "" {
		args = append(args, "--data-dir", dataDir)
	}
	return args
}

// StartDaemonWithPath spawns a daemon from executable. The child gets its own
// session so it outlives the CLI invocation that started it.
func StartDaemonWithPath(executable string, role domain.DaemonRole, dataDir string) error {
	cmd := exec.Command(executable, daemonArgs(role, dataDir)...)
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setsid: true,
	}

	// No stdin/stdout/stderr - fully detached
	cmd.Stdin = nil
	cmd.Stdout = nil
	cmd.Stderr = nil

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start %s daemon: %w", role, err)
	}
	// reap the child if it exits while we are still alive
	go func() { _ = cmd.Wait() }()
	return nil
}

// EnsureRunning spawns role unless its registration is alive.
// started reports whether a spawn happened.
func EnsureRunning(
	ctx context.Context,
	reg *usecase.Registration,
	spawner domain.DaemonSpawner,
	role domain.DaemonRole,
) (started bool, err error) {
	_, alive, err := reg.Lookup(ctx)
	if err != nil {
		return false, err
	}
	if alive {
		return false, nil
	}
	if err := spawner.Spawn(role); err != nil {
		return false, err
	}
	return true, nil
}

// Ensure Spawner implements domain.DaemonSpawner.
var _ domain.DaemonSpawner = (*Spawner)(nil)

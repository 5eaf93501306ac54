package infra

import (
	"context"
	"errors"
	"fmt"

	"github.com/eliteGoblin/focusd/focus_mon/internal/domain"
)

// CommandLauncher brings the main application forward by running its entry command.
type CommandLauncher struct {
	runner CommandRunner
	argv   []string
}

// NewCommandLauncher creates a launcher for argv (e.g. open -b com.example.lifexp).
func NewCommandLauncher(argv []string) *CommandLauncher {
	return NewCommandLauncherWithRunner(argv, &RealCommandRunner{})
}

// NewCommandLauncherWithRunner creates a launcher with an injectable runner (for testing).
func NewCommandLauncherWithRunner(argv []string, runner CommandRunner) *CommandLauncher {
	return &CommandLauncher{runner: runner, argv: argv}
}

// BringToFront runs the entry command.
func (l *CommandLauncher) BringToFront(ctx context.Context) error {
	if len(l.argv) == 0 {
		return errors.New("no main entry command configured")
	}
	if err := l.runner.Run(ctx, l.argv[0], l.argv[1:]...); err != nil {
		return fmt.Errorf("failed to launch %s: %w", l.argv[0], err)
	}
	return nil
}

// Ensure CommandLauncher implements domain.Launcher.
var _ domain.Launcher = (*CommandLauncher)(nil)

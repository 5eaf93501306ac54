package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/mattn/go-isatty"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/eliteGoblin/focusd/focus_mon/internal/daemon"
	"github.com/eliteGoblin/focusd/focus_mon/internal/domain"
	"github.com/eliteGoblin/focusd/focus_mon/internal/infra"
	"github.com/eliteGoblin/focusd/focus_mon/internal/ui"
	"github.com/eliteGoblin/focusd/focus_mon/internal/usecase"
)

// app holds the wired components one invocation works with.
type app struct {
	execMode *infra.ExecModeConfig
	cfg      infra.Config
	store    *infra.EncryptedStore
	pm       domain.ProcessManager
	spawner  *daemon.Spawner
	launcher *infra.CommandLauncher
	relay    *usecase.Relay
	presence *usecase.PresenceController
	commands *usecase.Commands
	logger   *zap.Logger
}

// loadEnv resolves paths for the current user and reads the config file.
func loadEnv() (*infra.ExecModeConfig, infra.Config, error) {
	execMode := infra.DetectExecMode().WithDataDir(dataDir)
	if err := os.MkdirAll(execMode.DataDir, 0700); err != nil {
		return nil, infra.Config{}, fmt.Errorf("failed to create data directory: %w", err)
	}
	cfg, err := infra.LoadConfig(execMode.DataDir)
	if err != nil {
		return nil, infra.Config{}, err
	}
	return execMode, cfg, nil
}

func openApp(execMode *infra.ExecModeConfig, cfg infra.Config, logger *zap.Logger) (*app, error) {
	store, err := infra.OpenStore(execMode.DataDir)
	if err != nil {
		return nil, err
	}
	spawner, err := daemon.NewSpawner("", dataDir)
	if err != nil {
		store.Close()
		return nil, err
	}

	pm := infra.NewProcessManager()
	relay := usecase.NewRelay(store, logger)
	presence := usecase.NewPresenceController(store, pm, spawner, logger)
	return &app{
		execMode: execMode,
		cfg:      cfg,
		store:    store,
		pm:       pm,
		spawner:  spawner,
		launcher: infra.NewCommandLauncher(cfg.MainEntry),
		relay:    relay,
		presence: presence,
		commands: usecase.NewCommands(store, relay, presence, logger),
		logger:   logger,
	}, nil
}

func (a *app) Close() {
	_ = a.store.Close()
	_ = a.logger.Sync()
}

// surface picks the interception screen. The terminal UI needs a TTY; a
// daemon always falls back to the native dialog.
func (a *app) surface() domain.InterceptionSurface {
	if a.cfg.Surface == "tui" && isatty.IsTerminal(os.Stdin.Fd()) {
		return ui.NewSurface()
	}
	return infra.NewDialogSurface()
}

func (a *app) blocker() *usecase.Blocker {
	return usecase.NewBlocker(a.store, a.surface(), a.launcher, a.logger)
}

// dispatcher wires every event type. interceptor is what the Event Monitor
// hands offending apps to: the blocker itself, or an async wrapper in the
// monitor daemon.
func (a *app) dispatcher(blocker *usecase.Blocker, interceptor usecase.Interceptor) *usecase.Dispatcher {
	return usecase.NewCoreDispatcher(usecase.Core{
		Monitor:  usecase.NewMonitor(a.store, a.cfg.Filter(), interceptor, a.logger),
		Blocker:  blocker,
		Restart:  usecase.NewRestartPolicy(a.store, a.presence, a.cfg.RestartCooldown, a.logger),
		Presence: usecase.NewPresenceActions(a.relay, a.launcher, a.logger),
	}, a.logger)
}

func (a *app) monitorRegistration() *usecase.Registration {
	return usecase.NewRegistration(a.store, a.pm, domain.RoleMonitor)
}

// withApp runs fn against a freshly wired app with the CLI logger.
func withApp(fn func(ctx context.Context, a *app) error) error {
	execMode, cfg, err := loadEnv()
	if err != nil {
		return err
	}
	a, err := openApp(execMode, cfg, createCLILogger())
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(context.Background(), a)
}

// signalContext is canceled on SIGINT or SIGTERM.
func signalContext(logger *zap.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-sigChan:
			logger.Info("received shutdown signal")
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigChan)
	}()
	return ctx, cancel
}

// createCLILogger logs to stderr with --verbose and nowhere otherwise.
func createCLILogger() *zap.Logger {
	if !verbose {
		return zap.NewNop()
	}
	logger, err := zap.NewDevelopment()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

// createDaemonLogger writes JSON lines to path and errors to a sibling file.
func createDaemonLogger(path string) *zap.Logger {
	config := zap.NewProductionConfig()
	config.OutputPaths = []string{path}
	config.ErrorOutputPaths = []string{strings.TrimSuffix(path, ".log") + ".error.log"}
	config.EncoderConfig.TimeKey = "time"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := config.Build()
	if err != nil {
		// Fallback to stdout if file logging fails
		logger, _ = zap.NewProduction()
	}
	return logger
}

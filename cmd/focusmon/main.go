// Package main is the CLI entry point for focusmon.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/focus_mon/internal/daemon"
	"github.com/eliteGoblin/focusd/focus_mon/internal/domain"
	"github.com/eliteGoblin/focusd/focus_mon/internal/infra"
	"github.com/eliteGoblin/focusd/focus_mon/internal/policy"
)

var (
	// Version info (set via ldflags)
	Version   = "0.1.0"
	Commit    = "dev"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "focusmon",
	Short: "Focus mode monitor - intercepts blocked apps while focus is on",
	Long: `focusmon watches which application is in the foreground. While focus mode
is on, switching to a blocked application brings up an interception screen
with two choices: go back, or end focus.

It also keeps a daily reminder visible, restarted once per day at login.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: false,
}

var focusCmd = &cobra.Command{
	Use:       "focus on|off",
	Short:     "Turn focus mode on or off",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"on", "off"},
	RunE:      runFocus,
}

var blocklistCmd = &cobra.Command{
	Use:   "blocklist",
	Short: "Manage the applications intercepted during focus",
}

var blocklistSetCmd = &cobra.Command{
	Use:   "set [app_id...]",
	Short: "Replace the blocklist (no arguments clears it)",
	RunE:  runBlocklistSet,
}

var blocklistShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the blocklist",
	Args:  cobra.NoArgs,
	RunE:  runBlocklistShow,
}

var presenceCmd = &cobra.Command{
	Use:   "presence",
	Short: "Control the daily reminder",
}

var presenceEnableCmd = &cobra.Command{
	Use:   "enable",
	Short: "Opt in to the reminder being restarted at login",
	Args:  cobra.NoArgs,
	RunE:  func(cmd *cobra.Command, args []string) error { return setPresenceEnabled(true) },
}

var presenceDisableCmd = &cobra.Command{
	Use:   "disable",
	Short: "Opt out of the reminder being restarted at login",
	Args:  cobra.NoArgs,
	RunE:  func(cmd *cobra.Command, args []string) error { return setPresenceEnabled(false) },
}

var presenceStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Show the reminder now",
	Args:  cobra.NoArgs,
	RunE:  runPresenceStart,
}

var presenceStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Withdraw the reminder (safe when not running)",
	Args:  cobra.NoArgs,
	RunE:  runPresenceStop,
}

var presenceStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show reminder diagnostics",
	Args:  cobra.NoArgs,
	RunE:  runPresenceStatus,
}

var pendingCmd = &cobra.Command{
	Use:   "pending",
	Short: "Consume the pending action for the main application",
	Long: `Reads and clears the single pending action slot. The main application calls
this once each time it becomes active. Prints "none" when nothing is pending.`,
	Args: cobra.NoArgs,
	RunE: runPending,
}

var actionCmd = &cobra.Command{
	Use:       "action open|focus30|complete",
	Short:     "Act as if a reminder button was tapped",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"open", "focus30", "complete"},
	RunE:      runAction,
}

var bootCmd = &cobra.Command{
	Use:   "boot",
	Short: "Handle a login/boot: evaluate the reminder restart and start the monitor",
	Long: `Run by the boot agent once per login. Evaluates whether the reminder should
be restarted today and makes sure the foreground monitor daemon is running.`,
	Args: cobra.NoArgs,
	RunE: runBoot,
}

var upgradedCmd = &cobra.Command{
	Use:   "upgraded",
	Short: "Handle an upgrade of focusmon: evaluate the reminder restart",
	Args:  cobra.NoArgs,
	RunE:  runUpgraded,
}

var eventCmd = &cobra.Command{
	Use:   "event",
	Short: "Inject one event as if delivered by the OS",
}

var eventForegroundCmd = &cobra.Command{
	Use:   "foreground <app_id>",
	Short: "Report a foreground application change",
	Args:  cobra.ExactArgs(1),
	RunE:  runEventForeground,
}

var eventOutcomeCmd = &cobra.Command{
	Use:       "outcome go_back|end_focus|teardown",
	Short:     "Report how an externally hosted interception screen was closed",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"go_back", "end_focus", "teardown"},
	RunE:      runEventOutcome,
}

var blockCmd = &cobra.Command{
	Use:   "block <app_id>",
	Short: "Show the interception screen for an app now",
	Args:  cobra.ExactArgs(1),
	RunE:  runBlock,
}

var installCmd = &cobra.Command{
	Use:   "install",
	Short: "Install the binary and the boot agent, then start the monitor",
	Long: `Copies focusmon to its install location, installs a boot agent that runs
'focusmon boot' at login (LaunchAgent on macOS, XDG autostart elsewhere),
and starts the foreground monitor daemon.`,
	Args: cobra.NoArgs,
	RunE: runInstall,
}

var uninstallCmd = &cobra.Command{
	Use:   "uninstall",
	Short: "Stop both daemons and remove the boot agent",
	Long: `Withdraws the reminder, stops the foreground monitor and removes the boot
agent. The store and config are kept, so a later install resumes where it
left off.`,
	Args: cobra.NoArgs,
	RunE: runUninstall,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show focus mode, daemons and stored state",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Prints version, commit, and build time. Use --json for machine-readable output.`,
	Run:   runVersion,
}

// Hidden daemon command - used for self-exec when spawning daemons
var daemonCmd = &cobra.Command{
	Use:    "daemon",
	Hidden: true,
	RunE:   runDaemon,
}

var (
	dataDir    string
	verbose    bool
	daemonRole string
	jsonOutput bool
)

func init() {
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "Directory holding the store, key and config.yaml")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log to stderr")
	daemonCmd.Flags().StringVar(&daemonRole, "role", "", "Daemon role (monitor/presence)")
	versionCmd.Flags().BoolVar(&jsonOutput, "json", false, "Output version info as JSON")

	blocklistCmd.AddCommand(blocklistSetCmd, blocklistShowCmd)
	presenceCmd.AddCommand(presenceEnableCmd, presenceDisableCmd, presenceStartCmd, presenceStopCmd, presenceStatusCmd)
	eventCmd.AddCommand(eventForegroundCmd, eventOutcomeCmd)

	rootCmd.AddCommand(focusCmd)
	rootCmd.AddCommand(blocklistCmd)
	rootCmd.AddCommand(presenceCmd)
	rootCmd.AddCommand(pendingCmd)
	rootCmd.AddCommand(actionCmd)
	rootCmd.AddCommand(bootCmd)
	rootCmd.AddCommand(upgradedCmd)
	rootCmd.AddCommand(eventCmd)
	rootCmd.AddCommand(blockCmd)
	rootCmd.AddCommand(installCmd)
	rootCmd.AddCommand(uninstallCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(daemonCmd)
}

func parseOnOff(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "on", "true", "1":
		return true, nil
	case "off", "false", "0":
		return false, nil
	}
	return false, fmt.Errorf("expected on or off, got %q", s)
}

func runFocus(cmd *cobra.Command, args []string) error {
	active, err := parseOnOff(args[0])
	if err != nil {
		return err
	}
	return withApp(func(ctx context.Context, a *app) error {
		if err := a.commands.SetFocusActive(ctx, active); err != nil {
			return err
		}
		if active {
			fmt.Println("Focus mode: ON")
			if _, alive, err := a.monitorRegistration().Lookup(ctx); err == nil && !alive {
				fmt.Println("Warning: monitor daemon is not running (run 'focusmon boot')")
			}
		} else {
			fmt.Println("Focus mode: OFF")
		}
		return nil
	})
}

func runBlocklistSet(cmd *cobra.Command, args []string) error {
	return withApp(func(ctx context.Context, a *app) error {
		if err := a.commands.SetBlockedPackages(ctx, args); err != nil {
			return err
		}
		list, err := a.commands.BlockedPackages(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("Blocklist set (%d apps)\n", list.Len())
		return nil
	})
}

func runBlocklistShow(cmd *cobra.Command, args []string) error {
	return withApp(func(ctx context.Context, a *app) error {
		list, err := a.commands.BlockedPackages(ctx)
		if err != nil {
			return err
		}
		printBlocklist(list)
		return nil
	})
}

func printBlocklist(list policy.Blocklist) {
	fmt.Println("\nBlocked applications:")
	if list.Len() == 0 {
		fmt.Println("  (none)")
		return
	}
	for _, id := range list.List() {
		fmt.Printf("  - %s\n", id)
	}
}

func setPresenceEnabled(enabled bool) error {
	return withApp(func(ctx context.Context, a *app) error {
		if err := a.commands.SetPresenceEnabled(ctx, enabled); err != nil {
			return err
		}
		if enabled {
			fmt.Println("Reminder: enabled (restarts once per day at login)")
		} else {
			fmt.Println("Reminder: disabled")
		}
		return nil
	})
}

func runPresenceStart(cmd *cobra.Command, args []string) error {
	return withApp(func(ctx context.Context, a *app) error {
		if err := a.commands.StartPresence(ctx); err != nil {
			return err
		}
		fmt.Println("Reminder started")
		return nil
	})
}

func runPresenceStop(cmd *cobra.Command, args []string) error {
	return withApp(func(ctx context.Context, a *app) error {
		if err := a.commands.StopPresence(ctx); err != nil {
			return err
		}
		fmt.Println("Reminder stopped")
		return nil
	})
}

func runPresenceStatus(cmd *cobra.Command, args []string) error {
	return withApp(func(ctx context.Context, a *app) error {
		st, err := a.commands.PresenceStatus(ctx)
		if err != nil {
			return err
		}
		fmt.Println("\n=== Reminder Status ===")
		fmt.Printf("Enabled:       %t\n", st.Enabled)
		fmt.Printf("State:         %s\n", st.State)
		if st.PID != 0 {
			fmt.Printf("PID:           %d\n", st.PID)
		}
		fmt.Printf("Last date:     %s\n", orNone(st.LastDate))
		if st.LastSyncAt.UnixMilli() > 0 {
			fmt.Printf("Last sync:     %s (%s ago)\n",
				st.LastSyncAt.Format(time.RFC3339), time.Since(st.LastSyncAt).Round(time.Second))
		} else {
			fmt.Println("Last sync:     never")
		}
		fmt.Printf("Last decision: %s\n", orNone(st.LastDecision))
		fmt.Println("=======================")
		return nil
	})
}

func orNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}

func runPending(cmd *cobra.Command, args []string) error {
	return withApp(func(ctx context.Context, a *app) error {
		action, ok, err := a.commands.ConsumePendingAction(ctx)
		if err != nil {
			return err
		}
		if !ok {
			fmt.Println("none")
			return nil
		}
		fmt.Println(action)
		return nil
	})
}

func runAction(cmd *cobra.Command, args []string) error {
	if _, err := domain.ParsePresenceAction(args[0]); err != nil {
		return fmt.Errorf("%w: %q", err, args[0])
	}
	return withApp(func(ctx context.Context, a *app) error {
		blocker := a.blocker()
		return a.dispatcher(blocker, blocker).Dispatch(ctx, domain.Event{
			Type:    domain.EventPresenceAction,
			Payload: args[0],
			At:      time.Now(),
		})
	})
}

func runBoot(cmd *cobra.Command, args []string) error {
	return withApp(func(ctx context.Context, a *app) error {
		blocker := a.blocker()
		if err := a.dispatcher(blocker, blocker).Dispatch(ctx, domain.Event{
			Type: domain.EventBootCompleted,
			At:   time.Now(),
		}); err != nil {
			a.logger.Warn("restart evaluation failed", zap.Error(err))
		}

		started, err := daemon.EnsureRunning(ctx, a.monitorRegistration(), a.spawner, domain.RoleMonitor)
		if err != nil {
			return fmt.Errorf("failed to start monitor: %w", err)
		}
		if started {
			fmt.Println("Monitor daemon started")
		} else {
			fmt.Println("Monitor daemon already running")
		}
		return nil
	})
}

func runUpgraded(cmd *cobra.Command, args []string) error {
	return withApp(func(ctx context.Context, a *app) error {
		blocker := a.blocker()
		return a.dispatcher(blocker, blocker).Dispatch(ctx, domain.Event{
			Type: domain.EventPackageUpgraded,
			At:   time.Now(),
		})
	})
}

func runEventForeground(cmd *cobra.Command, args []string) error {
	return withApp(func(ctx context.Context, a *app) error {
		blocker := a.blocker()
		return a.dispatcher(blocker, blocker).Dispatch(ctx, domain.Event{
			Type:    domain.EventForegroundChanged,
			Payload: args[0],
			At:      time.Now(),
		})
	})
}

func runEventOutcome(cmd *cobra.Command, args []string) error {
	return withApp(func(ctx context.Context, a *app) error {
		blocker := a.blocker()
		return a.dispatcher(blocker, blocker).Dispatch(ctx, domain.Event{
			Type:    domain.EventInterceptOutcome,
			Payload: args[0],
			At:      time.Now(),
		})
	})
}

func runBlock(cmd *cobra.Command, args []string) error {
	return withApp(func(ctx context.Context, a *app) error {
		blocker := a.blocker()
		if err := blocker.Begin(ctx); err != nil {
			if errors.Is(err, domain.ErrAlreadyIntercepting) {
				fmt.Println("An interception screen is already showing")
				return nil
			}
			return err
		}
		ctx, cancel := signalContext(a.logger)
		defer cancel()
		return blocker.Block(ctx, args[0])
	})
}

func runInstall(cmd *cobra.Command, args []string) error {
	execMode, cfg, err := loadEnv()
	if err != nil {
		return err
	}

	fmt.Printf("Execution mode: %s\n", execMode.Mode)

	currentExecPath, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to get executable path: %w", err)
	}

	// Copy binary to appropriate location if not already there
	binaryPath := execMode.BinaryPath
	if currentExecPath != binaryPath {
		if err := os.MkdirAll(filepath.Dir(binaryPath), 0755); err != nil {
			fmt.Printf("Warning: Could not create binary directory: %v\n", err)
			binaryPath = currentExecPath // Fall back to current location
		} else if err := copyBinary(currentExecPath, binaryPath); err != nil {
			fmt.Printf("Warning: Could not copy binary to %s: %v\n", binaryPath, err)
			binaryPath = currentExecPath
		} else {
			fmt.Printf("Installed binary to %s\n", binaryPath)
		}
	}

	if _, err := os.Stat(infra.ConfigPath(execMode.DataDir)); os.IsNotExist(err) {
		if err := infra.SaveConfig(execMode.DataDir, cfg); err != nil {
			fmt.Printf("Warning: Could not write default config: %v\n", err)
		}
	}

	agent := infra.NewBootAgentManager(execMode)
	switch {
	case !agent.IsInstalled():
		if err := agent.Install(binaryPath); err != nil {
			fmt.Printf("Warning: Could not install boot agent: %v\n", err)
			fmt.Println("         (focusmon will still run, but won't start at login)")
		} else {
			fmt.Printf("Installed boot agent at %s\n", agent.GetPlistPath())
		}
	case agent.NeedsUpdate(binaryPath):
		if err := agent.Update(binaryPath); err != nil {
			fmt.Printf("Warning: Could not update boot agent: %v\n", err)
		} else {
			fmt.Printf("Updated boot agent at %s\n", agent.GetPlistPath())
		}
	}

	a, err := openApp(execMode, cfg, createCLILogger())
	if err != nil {
		return err
	}
	defer a.Close()
	ctx := context.Background()

	// a reinstall is an upgrade as far as the reminder is concerned
	blocker := a.blocker()
	_ = a.dispatcher(blocker, blocker).Dispatch(ctx, domain.Event{Type: domain.EventPackageUpgraded, At: time.Now()})

	spawner, err := daemon.NewSpawner(binaryPath, dataDir)
	if err != nil {
		return err
	}
	if _, err := daemon.EnsureRunning(ctx, a.monitorRegistration(), spawner, domain.RoleMonitor); err != nil {
		return fmt.Errorf("failed to start monitor: %w", err)
	}

	fmt.Println("\n=== focusmon Installed ===")
	fmt.Printf("Binary: %s\n", binaryPath)
	fmt.Printf("Data:   %s\n", execMode.DataDir)
	fmt.Println("Turn focus on with 'focusmon focus on'.")
	fmt.Println("==========================")
	return nil
}

func runUninstall(cmd *cobra.Command, args []string) error {
	return withApp(func(ctx context.Context, a *app) error {
		if err := a.commands.StopPresence(ctx); err != nil {
			fmt.Printf("Warning: Could not stop reminder: %v\n", err)
		}

		reg := a.monitorRegistration()
		pid, alive, err := reg.Lookup(ctx)
		if err != nil {
			return err
		}
		if alive {
			if err := a.pm.Terminate(pid); err != nil {
				fmt.Printf("Warning: Could not stop monitor %d: %v\n", pid, err)
			} else {
				fmt.Printf("Stopped monitor daemon (pid %d)\n", pid)
			}
		}
		if err := reg.Clear(ctx); err != nil {
			return err
		}

		agent := infra.NewBootAgentManager(a.execMode)
		if agent.IsInstalled() {
			if err := agent.Uninstall(); err != nil {
				return fmt.Errorf("failed to remove boot agent: %w", err)
			}
			fmt.Printf("Removed boot agent %s\n", agent.GetPlistPath())
		}
		fmt.Println("focusmon uninstalled (data kept in " + a.execMode.DataDir + ")")
		return nil
	})
}

// copyBinary copies the binary file to destination using atomic write pattern.
// Writes to temp file first, syncs, chmods, then renames to avoid corruption.
func copyBinary(src, dst string) error {
	sourceFile, err := os.Open(src)
	if err != nil {
		return err
	}
	defer sourceFile.Close()

	tmpFile, err := os.CreateTemp(filepath.Dir(dst), ".focusmon-tmp-*")
	if err != nil {
		return err
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	if _, err = io.Copy(tmpFile, sourceFile); err != nil {
		tmpFile.Close()
		return err
	}
	if err = tmpFile.Sync(); err != nil {
		tmpFile.Close()
		return err
	}
	tmpFile.Close()

	if err = os.Chmod(tmpPath, 0755); err != nil {
		return err
	}
	// rename is what the monitor's upgrade watcher sees
	if err = os.Rename(tmpPath, dst); err != nil {
		return err
	}

	success = true
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	return withApp(func(ctx context.Context, a *app) error {
		snap, err := a.commands.Snapshot(ctx)
		if err != nil {
			return err
		}
		st, err := a.commands.PresenceStatus(ctx)
		if err != nil {
			return err
		}
		monitorPID, monitorAlive, err := a.monitorRegistration().Lookup(ctx)
		if err != nil {
			return err
		}

		fmt.Println("\n=== focusmon Status ===")
		if snap.FocusActive {
			fmt.Println("Focus mode: ON")
		} else {
			fmt.Println("Focus mode: OFF")
		}
		if monitorAlive {
			fmt.Printf("Monitor:    running (pid %d)\n", monitorPID)
		} else {
			fmt.Println("Monitor:    NOT RUNNING")
		}
		fmt.Printf("Reminder:   %s", st.State)
		if !st.Enabled {
			fmt.Print(" (disabled)")
		}
		fmt.Println()
		if snap.BlockingNow {
			fmt.Println("Interception screen: showing")
		}
		if snap.PendingAction != "" {
			fmt.Printf("Pending action: %s\n", snap.PendingAction)
		}

		agent := infra.NewBootAgentManager(a.execMode)
		fmt.Printf("\nExecution mode: %s\n", a.execMode.Mode)
		fmt.Printf("Data dir: %s\n", a.execMode.DataDir)
		fmt.Printf("Store: %s\n", a.store.Path())
		fmt.Printf("Binary: %s\n", a.spawner.Executable())
		if agent.IsInstalled() {
			fmt.Println("Auto-start: enabled")
		} else {
			fmt.Println("Auto-start: disabled (run 'focusmon install')")
		}

		printBlocklist(policy.ParseBlocklist(snap.BlocklistRaw))
		fmt.Println("=======================")
		return nil
	})
}

func runDaemon(cmd *cobra.Command, args []string) error {
	role := domain.DaemonRole(daemonRole)
	if role != domain.RoleMonitor && role != domain.RolePresence {
		return fmt.Errorf("unknown role: %q", daemonRole)
	}

	execMode, cfg, err := loadEnv()
	if err != nil {
		return err
	}
	logger := createDaemonLogger(cfg.LogPath).With(zap.String("role", string(role)))

	a, err := openApp(execMode, cfg, logger)
	if err != nil {
		logger.Error("failed to open store", zap.Error(err))
		return err
	}
	defer a.Close()

	ctx, cancel := signalContext(logger)
	defer cancel()

	pid := a.pm.GetCurrentPID()
	blocker := a.blocker()

	switch role {
	case domain.RoleMonitor:
		async := daemon.NewAsyncInterceptor(blocker, logger)
		watcherConfig := daemon.DefaultWatcherConfig()
		if _, err := os.Stat(execMode.BinaryPath); err == nil {
			watcherConfig.BinaryPath = execMode.BinaryPath
		}
		watcher := daemon.NewWatcher(
			watcherConfig,
			infra.NewForegroundPoller(a.pm, cfg.PollInterval, logger),
			a.dispatcher(blocker, async),
			a.monitorRegistration(),
			infra.NewBootAgentManager(execMode),
			pid,
			logger,
		)
		err = watcher.Run(ctx)
		async.Wait()

	case domain.RolePresence:
		presenceConfig := daemon.DefaultPresenceConfig()
		presenceConfig.Channel = cfg.Notification.Channel()
		presenceConfig.Notification = cfg.Notification.Notification()
		presenceConfig.RepostInterval = cfg.RepostInterval
		presence := daemon.NewPresence(
			presenceConfig,
			a.presence.Registration(),
			infra.NewCommandNotifier(a.store),
			a.dispatcher(blocker, blocker),
			pid,
			logger,
		)
		err = presence.Run(ctx)
	}

	if errors.Is(err, domain.ErrDaemonRunning) {
		return nil
	}
	return err
}

func runVersion(cmd *cobra.Command, args []string) {
	if jsonOutput {
		fmt.Printf(`{"version":"%s","commit":"%s","build_time":"%s"}`+"\n",
			Version, Commit, BuildTime)
	} else {
		fmt.Printf("focusmon %s (commit: %s, built: %s)\n",
			Version, Commit, BuildTime)
	}
}

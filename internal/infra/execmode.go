package infra

import (
	"os"
	"os/user"
	"path/filepath"
	"runtime"
)

// ExecMode represents the execution mode of the application.
type ExecMode string

const (
	// ExecModeUser runs as user with a per-user boot agent (no sudo required)
	ExecModeUser ExecMode = "user"
	// ExecModeSystem runs as root with a system-wide boot agent (sudo required)
	ExecModeSystem ExecMode = "system"
)

// ExecModeConfig holds paths and settings based on execution mode.
type ExecModeConfig struct {
	Mode       ExecMode
	BinaryPath string // Where the binary should be installed
	PlistDir   string // Where the boot agent file goes
	PlistPath  string // Full path to the boot agent file
	DataDir    string // Where the encrypted store, key and config live
	IsRoot     bool   // Whether running as root
}

// BootAgentLabel names the launchd job / autostart entry that fires boot_completed.
const BootAgentLabel = "com.focusd.focusmon.boot"

// DetectExecMode determines the execution mode based on effective UID.
func DetectExecMode() *ExecModeConfig {
	if os.Geteuid() == 0 {
		return systemModeConfig()
	}
	return userModeConfig(GetRealUserHome(), false)
}

// WithDataDir overrides the data directory (the --data-dir flag).
func (c *ExecModeConfig) WithDataDir(dir string) *ExecModeConfig {
	if dir != "" {
		c.DataDir = dir
	}
	return c
}

func systemModeConfig() *ExecModeConfig {
	plistDir := "/Library/LaunchDaemons"
	if runtime.GOOS != "darwin" {
		plistDir = "/etc/xdg/autostart"
	}
	return &ExecModeConfig{
		Mode:       ExecModeSystem,
		BinaryPath: "/usr/local/bin/focusmon",
		PlistDir:   plistDir,
		PlistPath:  filepath.Join(plistDir, bootAgentFile()),
		DataDir:    "/var/lib/focusmon",
		IsRoot:     true,
	}
}

func userModeConfig(home string, isRoot bool) *ExecModeConfig {
	plistDir := filepath.Join(home, "Library", "LaunchAgents")
	if runtime.GOOS != "darwin" {
		plistDir = filepath.Join(home, ".config", "autostart")
	}
	return &ExecModeConfig{
		Mode:       ExecModeUser,
		BinaryPath: filepath.Join(home, ".local", "bin", "focusmon"),
		PlistDir:   plistDir,
		PlistPath:  filepath.Join(plistDir, bootAgentFile()),
		DataDir:    filepath.Join(home, ".focusmon"),
		IsRoot:     isRoot,
	}
}

func bootAgentFile() string {
	if runtime.GOOS == "darwin" {
		return BootAgentLabel + ".plist"
	}
	return BootAgentLabel + ".desktop"
}

// String returns a human-readable description of the mode.
func (m ExecMode) String() string {
	switch m {
	case ExecModeSystem:
		return "system (root)"
	case ExecModeUser:
		return "user (non-root)"
	default:
		return "unknown"
	}
}

// GetUserModeConfig returns user mode config regardless of current euid.
// When running under sudo, uses SUDO_USER to get the invoking user's home directory.
func GetUserModeConfig() *ExecModeConfig {
	return userModeConfig(GetRealUserHome(), os.Geteuid() == 0)
}

// GetRealUserHome returns the real user's home directory, even when running under sudo.
func GetRealUserHome() string {
	if sudoUser := os.Getenv("SUDO_USER"); sudoUser != "" {
		if u, err := user.Lookup(sudoUser); err == nil {
			return u.HomeDir
		}
	}
	home, _ := os.UserHomeDir()
	return home
}

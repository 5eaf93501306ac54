package infra

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"text/template"

	"github.com/eliteGoblin/focusd/focus_mon/internal/domain"
)

// launchd job run once per login/boot. It only evaluates the restart policy.
const launchAgentTemplate = `<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">
<plist version="1.0">
<dict>
    <key>Label</key>
    <string>{{.Label}}</string>

    <key>ProgramArguments</key>
    <array>
        <string>{{.ExecutablePath}}</string>
        <string>boot</string>
    </array>

    <key>RunAtLoad</key>
    <true/>

    <key>StandardOutPath</key>
    <string>{{.LogPath}}</string>

    <key>StandardErrorPath</key>
    <string>{{.ErrorLogPath}}</string>

    <key>ProcessType</key>
    <string>Background</string>
</dict>
</plist>`

// XDG autostart entry, the equivalent on Linux desktops.
const autostartTemplate = `[Desktop Entry]
Type=Application
Name={{.Label}}
Exec="{{.ExecutablePath}}" boot
X-GNOME-Autostart-enabled=true
NoDisplay=true
`

const (
	logDir = "/var/tmp"
)

type agentConfig struct {
	Label          string
	ExecutablePath string
	LogPath        string
	ErrorLogPath   string
}

// BootAgentManager implements domain.LaunchAgentManager with a launchd job on
// darwin and an XDG autostart entry elsewhere.
type BootAgentManager struct {
	mode      ExecMode
	plistDir  string
	plistPath string
	goos      string
	runner    CommandRunner
}

// NewBootAgentManager creates a boot agent manager based on execution mode.
func NewBootAgentManager(config *ExecModeConfig) *BootAgentManager {
	return NewBootAgentManagerWithDeps(config, runtime.GOOS, &RealCommandRunner{})
}

// NewBootAgentManagerWithDeps creates a manager with injectable dependencies (for testing).
func NewBootAgentManagerWithDeps(config *ExecModeConfig, goos string, runner CommandRunner) *BootAgentManager {
	return &BootAgentManager{
		mode:      config.Mode,
		plistDir:  config.PlistDir,
		plistPath: config.PlistPath,
		goos:      goos,
		runner:    runner,
	}
}

// generateContent renders the agent file for execPath.
func (m *BootAgentManager) generateContent(execPath string) ([]byte, error) {
	tmplStr := autostartTemplate
	if m.goos == "darwin" {
		tmplStr = launchAgentTemplate
	}

	config := agentConfig{
		Label:          BootAgentLabel,
		ExecutablePath: execPath,
		LogPath:        filepath.Join(logDir, "focusmon.boot.log"),
		ErrorLogPath:   filepath.Join(logDir, "focusmon.boot.error.log"),
	}

	tmpl, err := template.New("agent").Parse(tmplStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse agent template: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, config); err != nil {
		return nil, fmt.Errorf("failed to execute agent template: %w", err)
	}
	return buf.Bytes(), nil
}

// Install writes and loads the agent.
func (m *BootAgentManager) Install(execPath string) error {
	if err := os.MkdirAll(m.plistDir, 0755); err != nil {
		return err
	}

	content, err := m.generateContent(execPath)
	if err != nil {
		return fmt.Errorf("failed to generate agent content: %w", err)
	}

	if err := os.WriteFile(m.plistPath, content, 0644); err != nil {
		return err
	}
	return m.load()
}

// Uninstall unloads and removes the agent.
func (m *BootAgentManager) Uninstall() error {
	_ = m.unload()
	return os.Remove(m.plistPath)
}

// IsInstalled checks if the agent file exists.
func (m *BootAgentManager) IsInstalled() bool {
	_, err := os.Stat(m.plistPath)
	return err == nil
}

// NeedsUpdate checks if the agent exists but has different content than expected.
func (m *BootAgentManager) NeedsUpdate(execPath string) bool {
	if !m.IsInstalled() {
		return false
	}

	currentContent, err := os.ReadFile(m.plistPath)
	if err != nil {
		return true
	}

	expectedContent, err := m.generateContent(execPath)
	if err != nil {
		return true
	}

	return !bytes.Equal(currentContent, expectedContent)
}

// Update rewrites and reloads the agent.
func (m *BootAgentManager) Update(execPath string) error {
	_ = m.unload()

	content, err := m.generateContent(execPath)
	if err != nil {
		return fmt.Errorf("failed to generate agent content: %w", err)
	}

	if err := os.WriteFile(m.plistPath, content, 0644); err != nil {
		return err
	}
	return m.load()
}

// GetPlistPath returns the agent file path.
func (m *BootAgentManager) GetPlistPath() string {
	return m.plistPath
}

// GetMode returns the current execution mode.
func (m *BootAgentManager) GetMode() ExecMode {
	return m.mode
}

// load registers the job with launchd. Autostart entries need no loading.
// Note: `launchctl load` is deprecated but still works on macOS.
func (m *BootAgentManager) load() error {
	if m.goos != "darwin" {
		return nil
	}
	return m.runner.Run(context.Background(), "launchctl", "load", m.plistPath)
}

func (m *BootAgentManager) unload() error {
	if m.goos != "darwin" {
		return nil
	}
	return m.runner.Run(context.Background(), "launchctl", "unload", m.plistPath)
}

// Ensure BootAgentManager implements domain.LaunchAgentManager.
var _ domain.LaunchAgentManager = (*BootAgentManager)(nil)

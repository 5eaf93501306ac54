package infra

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/eliteGoblin/focusd/focus_mon/internal/domain"
	"github.com/eliteGoblin/focusd/focus_mon/internal/policy"
)

const configFileName = "config.yaml"

// DefaultAppID is the identifier of the main application.
const DefaultAppID = "com.example.lifexp"

// NotificationConfig describes the reminder the presence process keeps visible.
type NotificationConfig struct {
	ChannelID          string `yaml:"channel_id"`
	ChannelName        string `yaml:"channel_name"`
	ChannelDescription string `yaml:"channel_description"`
	ID                 int    `yaml:"id"`
	Title              string `yaml:"title"`
	Message            string `yaml:"message"`
}

// Channel returns the channel the notification is posted to.
func (n NotificationConfig) Channel() domain.Channel {
	return domain.Channel{ID: n.ChannelID, Name: n.ChannelName, Description: n.ChannelDescription}
}

// Notification returns the reminder with its three actions.
func (n NotificationConfig) Notification() domain.Notification {
	return domain.Notification{
		ID:        n.ID,
		ChannelID: n.ChannelID,
		Title:     n.Title,
		Message:   n.Message,
		Actions:   domain.PresenceActions,
	}
}

// Config is the user-editable configuration file.
type Config struct {
	AppID           string             `yaml:"app_id"`
	TrustedShellIDs []string           `yaml:"trusted_shell_ids"`
	PollInterval    time.Duration      `yaml:"poll_interval"`
	RestartCooldown time.Duration      `yaml:"restart_cooldown"`
	RepostInterval  time.Duration      `yaml:"repost_interval"`
	MainEntry       []string           `yaml:"main_entry"`
	Surface         string             `yaml:"surface"`
	LogPath         string             `yaml:"log_path"`
	Notification    NotificationConfig `yaml:"notification"`
}

// DefaultConfig returns the configuration used when no file exists.
func DefaultConfig() Config {
	return Config{
		AppID: DefaultAppID,
		TrustedShellIDs: []string{
			"com.android.systemui",
			"com.apple.dock",
			"com.apple.loginwindow",
			"com.apple.systemuiserver",
			"com.apple.notificationcenterui",
			"com.apple.controlcenter",
		},
		PollInterval:    time.Second,
		RestartCooldown: policy.DefaultRestartCooldown,
		RepostInterval:  30 * time.Minute,
		MainEntry:       defaultMainEntry(DefaultAppID),
		Surface:         "dialog",
		LogPath:         filepath.Join(logDir, "focusmon.log"),
		Notification: NotificationConfig{
			ChannelID:          "lifexp_daily_v2",
			ChannelName:        "LifeXP Daily",
			ChannelDescription: "Daily reminder to complete missions or focus",
			ID:                 2001,
			Title:              "LifeXP",
			Message:            "Complete 1 mission or do Focus 30",
		},
	}
}

func defaultMainEntry(appID string) []string {
	if runtime.GOOS == "darwin" {
		return []string{"open", "-b", appID}
	}
	return []string{"xdg-open", "focusmon://home"}
}

// Filter returns the identifiers the Event Monitor never intercepts.
func (c Config) Filter() policy.Filter {
	return policy.Filter{SelfID: c.AppID, TrustedShellIDs: c.TrustedShellIDs}
}

// Validate rejects values the daemons cannot run with.
func (c Config) Validate() error {
	if c.AppID == "" {
		return errors.New("app_id must not be empty")
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll_interval must be positive, got %s", c.PollInterval)
	}
	if c.RestartCooldown < 0 {
		return fmt.Errorf("restart_cooldown must not be negative, got %s", c.RestartCooldown)
	}
	if c.RepostInterval <= 0 {
		return fmt.Errorf("repost_interval must be positive, got %s", c.RepostInterval)
	}
	if len(c.MainEntry) == 0 {
		return errors.New("main_entry must name a command")
	}
	switch c.Surface {
	case "dialog", "tui":
	default:
		return fmt.Errorf("surface must be dialog or tui, got %q", c.Surface)
	}
	return nil
}

// ConfigPath returns the config file location inside dataDir.
func ConfigPath(dataDir string) string {
	return filepath.Join(dataDir, configFileName)
}

// LoadConfig reads dataDir/config.yaml over the defaults.
// A missing file yields the defaults; a malformed one is an error.
func LoadConfig(dataDir string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(ConfigPath(dataDir))
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config: %w", err)
	}
	// main_entry follows app_id unless set explicitly
	if !hasKey(data, "main_entry") {
		cfg.MainEntry = defaultMainEntry(cfg.AppID)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// SaveConfig writes cfg to dataDir/config.yaml.
func SaveConfig(dataDir string, cfg Config) error {
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	return os.WriteFile(ConfigPath(dataDir), data, 0600)
}

func hasKey(data []byte, key string) bool {
	var raw map[string]yaml.Node
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return false
	}
	_, ok := raw[key]
	return ok
}

package infra

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strings"

	"github.com/eliteGoblin/focusd/focus_mon/internal/domain"
)

// MetaStore is the slice of the policy store the notifier needs.
type MetaStore interface {
	Meta(ctx context.Context, key string) (string, error)
	SetMeta(ctx context.Context, key, value string) error
}

// CommandNotifier posts actionable notifications through a CLI helper:
// alerter on darwin, notify-send (libnotify >= 0.7.10) elsewhere.
// Channels are recorded in store meta so creation happens once per install.
type CommandNotifier struct {
	runner CommandRunner
	meta   MetaStore
	goos   string
}

// NewCommandNotifier creates a notifier for the running OS.
func NewCommandNotifier(meta MetaStore) *CommandNotifier {
	return &CommandNotifier{runner: &RealCommandRunner{}, meta: meta, goos: runtime.GOOS}
}

// NewCommandNotifierWithDeps creates a notifier with injectable dependencies (for testing).
func NewCommandNotifierWithDeps(runner CommandRunner, meta MetaStore, goos string) *CommandNotifier {
	return &CommandNotifier{runner: runner, meta: meta, goos: goos}
}

// EnsureChannel records ch unless it is already present.
func (n *CommandNotifier) EnsureChannel(ctx context.Context, ch domain.Channel) (bool, error) {
	key := domain.MetaChannelPfx + ch.ID
	if _, err := n.meta.Meta(ctx, key); err == nil {
		return false, nil
	} else if !errors.Is(err, domain.ErrKeyNotFound) {
		return false, fmt.Errorf("failed to look up channel %s: %w", ch.ID, err)
	}
	if err := n.meta.SetMeta(ctx, key, ch.Name); err != nil {
		return false, fmt.Errorf("failed to create channel %s: %w", ch.ID, err)
	}
	return true, nil
}

// Show posts notification and waits for the user's choice.
func (n *CommandNotifier) Show(ctx context.Context, note domain.Notification) (domain.PresenceAction, error) {
	var out []byte
	var err error

	if n.goos == "darwin" {
		labels := make([]string, len(note.Actions))
		for i, a := range note.Actions {
			labels[i] = a.Label()
		}
		out, err = n.runner.Output(ctx, "alerter",
			"-title", note.Title,
			"-message", note.Message,
			"-actions", strings.Join(labels, ","),
			"-closeLabel", "Later",
			"-group", groupID(note))
	} else {
		args := []string{"--wait", "--urgency", "critical",
			"--app-name", note.Title,
			"--hint", "string:x-canonical-private-synchronous:" + groupID(note)}
		for _, a := range note.Actions {
			args = append(args, fmt.Sprintf("--action=%s=%s", a, a.Label()))
		}
		args = append(args, note.Title, note.Message)
		out, err = n.runner.Output(ctx, "notify-send", args...)
	}
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("failed to show notification: %w", err)
	}

	action, perr := domain.ParsePresenceAction(strings.TrimSpace(string(out)))
	if perr != nil {
		// closed, timed out or clicked the body
		return "", nil
	}
	return action, nil
}

// Withdraw removes the notification. notify-send has no removal call; its
// notification goes away with the killed --wait process.
func (n *CommandNotifier) Withdraw(ctx context.Context, note domain.Notification) error {
	if n.goos != "darwin" {
		return nil
	}
	if err := n.runner.Run(ctx, "alerter", "-remove", groupID(note)); err != nil {
		return fmt.Errorf("failed to withdraw notification: %w", err)
	}
	return nil
}

func groupID(note domain.Notification) string {
	return fmt.Sprintf("%s.%d", note.ChannelID, note.ID)
}

// Ensure CommandNotifier implements domain.Notifier.
var _ domain.Notifier = (*CommandNotifier)(nil)

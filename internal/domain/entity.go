// Package domain contains core business entities and interfaces.
// This is the innermost layer in Clean Architecture - no external dependencies.
package domain

import (
	"errors"
	"time"
)

// Key names a Policy Store entry. Names are stable across releases.
type Key string

const (
	KeyFocusActive          Key = "focus_active"
	KeyBlocklist            Key = "blocklist"
	KeyBlockingNow          Key = "blocking_now"
	KeyPresenceEnabled      Key = "presence_enabled"
	KeyPresenceLastDate     Key = "presence_last_date"
	KeyPresenceLastSyncAt   Key = "presence_last_sync_at"
	KeyPresenceLastDecision Key = "presence_last_decision"
	KeyPendingAction        Key = "pending_action"
)

// Meta keys live outside the policy namespace.
const (
	MetaPresencePID = "presence_pid"
	MetaMonitorPID  = "monitor_pid"
	MetaChannelPfx  = "channel:"
)

// MetaPIDKey is where a daemon of role registers its PID.
func MetaPIDKey(role DaemonRole) string {
	if role == RolePresence {
		return MetaPresencePID
	}
	return MetaMonitorPID
}

// DecisionStart is the only value the Restart Policy records.
const DecisionStart = "start"

// DateLayout is the user-local calendar date format (ISO local date).
const DateLayout = "2006-01-02"

// LocalDate formats t as a calendar date in t's location.
func LocalDate(t time.Time) string {
	return t.Format(DateLayout)
}

var (
	ErrKeyNotFound          = errors.New("key not found")
	ErrAlreadyIntercepting  = errors.New("interception already in flight")
	ErrIllegalTransition    = errors.New("illegal state transition")
	ErrDaemonRunning        = errors.New("another daemon holds the registration")
	ErrUnknownPresenceEvent = errors.New("unknown presence action")
)

// PendingAction is a command handed to the main application via the relay.
type PendingAction string

const (
	ActionEndFocus PendingAction = "end_focus"
	ActionHome     PendingAction = "home"
	ActionFocus30  PendingAction = "focus30"
	ActionComplete PendingAction = "complete"
)

// KnownAction reports whether s is an action the main application understands.
func KnownAction(s string) (PendingAction, bool) {
	switch a := PendingAction(s); a {
	case ActionEndFocus, ActionHome, ActionFocus30, ActionComplete:
		return a, true
	}
	return "", false
}

// Outcome is how an interception surface was dismissed.
type Outcome string

const (
	OutcomeGoBack   Outcome = "go_back"
	OutcomeEndFocus Outcome = "end_focus"
	// OutcomeTeardown covers every exit not caused by the two user actions.
	OutcomeTeardown Outcome = "teardown"
)

// PresenceAction is one of the three buttons on the reminder notification.
type PresenceAction string

const (
	PresenceOpen     PresenceAction = "open"
	PresenceFocus30  PresenceAction = "focus30"
	PresenceComplete PresenceAction = "complete"
)

// PresenceActions lists the reminder buttons in display order.
var PresenceActions = []PresenceAction{PresenceOpen, PresenceFocus30, PresenceComplete}

// Label returns the button text shown to the user.
func (a PresenceAction) Label() string {
	switch a {
	case PresenceOpen:
		return "Open"
	case PresenceFocus30:
		return "Focus 30"
	case PresenceComplete:
		return "Complete"
	default:
		return string(a)
	}
}

// Pending maps a reminder button to the relay value it publishes.
func (a PresenceAction) Pending() (PendingAction, error) {
	switch a {
	case PresenceOpen:
		return ActionHome, nil
	case PresenceFocus30:
		return ActionFocus30, nil
	case PresenceComplete:
		return ActionComplete, nil
	}
	return "", ErrUnknownPresenceEvent
}

// ParsePresenceAction accepts either the action name or its button label.
func ParsePresenceAction(s string) (PresenceAction, error) {
	for _, a := range PresenceActions {
		if s == string(a) || s == a.Label() {
			return a, nil
		}
	}
	return "", ErrUnknownPresenceEvent
}

// Snapshot is a typed, defaulted read of every Policy Store entry.
type Snapshot struct {
	FocusActive bool
	// BlocklistRaw is the persisted JSON; use policy.ParseBlocklist to read it.
	BlocklistRaw         string
	BlockingNow          bool
	PresenceEnabled      bool
	PresenceLastDate     string // empty means absent
	PresenceLastSyncAt   time.Time
	PresenceLastDecision string
	PendingAction        string // empty means absent
}

// DefaultSnapshot is what an empty store reads as.
func DefaultSnapshot() Snapshot {
	return Snapshot{
		BlocklistRaw:       "[]",
		PresenceEnabled:    true,
		PresenceLastSyncAt: time.UnixMilli(0),
	}
}

// Delta is a set of entry writes applied as one indivisible update.
// A nil value deletes the entry.
type Delta map[Key]any

// Channel describes a notification channel/category.
type Channel struct {
	ID          string
	Name        string
	Description string
}

// Notification is a persistent reminder with user actions.
type Notification struct {
	ID        int
	ChannelID string
	Title     string
	Message   string
	Actions   []PresenceAction
}

// EventType names a callback the harness dispatches.
type EventType string

const (
	EventForegroundChanged EventType = "foreground_changed"
	EventBootCompleted     EventType = "boot_completed"
	EventPackageUpgraded   EventType = "package_upgraded"
	EventPresenceAction    EventType = "presence_action"
	EventInterceptOutcome  EventType = "intercept_outcome"
)

// Event is one OS- or user-delivered callback.
type Event struct {
	Type EventType
	// Payload is the app id for foreground changes, the action name for
	// taps and the Outcome for intercept outcomes.
	Payload string
	At      time.Time
}

// ParseOutcome maps a reported outcome; anything unknown is a teardown.
func ParseOutcome(s string) Outcome {
	switch o := Outcome(s); o {
	case OutcomeGoBack, OutcomeEndFocus:
		return o
	}
	return OutcomeTeardown
}

// DaemonRole identifies the type of daemon process.
type DaemonRole string

const (
	RoleMonitor  DaemonRole = "monitor"
	RolePresence DaemonRole = "presence"
)

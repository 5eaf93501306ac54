// Package policy holds the pure decision functions of focus mode.
// Each function maps (event, store snapshot) to a decision; callers apply it.
package policy

import (
	"github.com/eliteGoblin/focusd/focus_mon/internal/domain"
)

// IgnoreReason explains why a foreground change is not intercepted.
type IgnoreReason string

const (
	ReasonNone         IgnoreReason = ""
	ReasonEmptyID      IgnoreReason = "empty_app_id"
	ReasonSelf         IgnoreReason = "self"
	ReasonTrustedShell IgnoreReason = "trusted_shell"
	ReasonFocusOff     IgnoreReason = "focus_inactive"
	ReasonNotBlocked   IgnoreReason = "not_blocklisted"
	ReasonInFlight     IgnoreReason = "interception_in_flight"
)

// Filter holds the identifiers that are never intercepted.
type Filter struct {
	SelfID          string
	TrustedShellIDs []string
}

func (f Filter) trusted(appID string) bool {
	for _, id := range f.TrustedShellIDs {
		if id == appID {
			return true
		}
	}
	return false
}

// Excludes applies the identity checks, which need no store entry.
func (f Filter) Excludes(appID string) IgnoreReason {
	switch {
	case appID == "":
		return ReasonEmptyID
	case appID == f.SelfID:
		return ReasonSelf
	case f.trusted(appID):
		return ReasonTrustedShell
	}
	return ReasonNone
}

// ForegroundDecision is the result of DecideForeground.
type ForegroundDecision struct {
	Intercept bool
	Reason    IgnoreReason
}

// DecideForeground applies the Event Monitor checks in order.
// The identity checks run before any store entry is consulted, so the
// system's own id is ignored even when it is blocklisted.
func DecideForeground(appID string, snap domain.Snapshot, f Filter) ForegroundDecision {
	if reason := f.Excludes(appID); reason != ReasonNone {
		return ForegroundDecision{Reason: reason}
	}
	switch {
	case !snap.FocusActive:
		return ForegroundDecision{Reason: ReasonFocusOff}
	case !ParseBlocklist(snap.BlocklistRaw).Contains(appID):
		return ForegroundDecision{Reason: ReasonNotBlocked}
	case snap.BlockingNow:
		return ForegroundDecision{Reason: ReasonInFlight}
	}
	return ForegroundDecision{Intercept: true}
}

package policy

import (
	"time"

	"github.com/eliteGoblin/focusd/focus_mon/internal/domain"
)

// DefaultRestartCooldown absorbs boot and upgrade events that fire close together.
const DefaultRestartCooldown = 10 * time.Minute

// RestartDecision is the outcome of one Restart Policy evaluation.
type RestartDecision struct {
	Enabled     bool
	LastDate    string
	Today       string
	InCooldown  bool
	ShouldStart bool
	Now         time.Time
}

// Delta is the store update that must accompany a start.
// It is nil when the decision is not to start.
func (d RestartDecision) Delta() domain.Delta {
	if !d.ShouldStart {
		return nil
	}
	return domain.Delta{
		domain.KeyPresenceLastDate:     d.Today,
		domain.KeyPresenceLastSyncAt:   d.Now,
		domain.KeyPresenceLastDecision: domain.DecisionStart,
	}
}

// DecideRestart evaluates whether the presence process should be (re)started.
// now is taken in the user's location; its calendar date is "today".
func DecideRestart(now time.Time, snap domain.Snapshot, cooldown time.Duration) RestartDecision {
	today := domain.LocalDate(now)
	inCooldown := now.Sub(snap.PresenceLastSyncAt) < cooldown
	fresh := snap.PresenceLastDate != "" && snap.PresenceLastDate == today

	return RestartDecision{
		Enabled:     snap.PresenceEnabled,
		LastDate:    snap.PresenceLastDate,
		Today:       today,
		InCooldown:  inCooldown,
		ShouldStart: snap.PresenceEnabled && !inCooldown && !fresh,
		Now:         now,
	}
}

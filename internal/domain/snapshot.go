package domain

import "time"

// ReadSnapshot builds a defaulted snapshot inside tx.
// Absent and mistyped entries read as their defaults.
func ReadSnapshot(tx StoreTx) (Snapshot, error) {
	snap := DefaultSnapshot()
	var err error

	if snap.FocusActive, err = tx.Bool(KeyFocusActive, false); err != nil {
		return snap, err
	}
	if raw, ok, err := tx.String(KeyBlocklist); err != nil {
		return snap, err
	} else if ok {
		snap.BlocklistRaw = raw
	}
	if snap.BlockingNow, err = tx.Bool(KeyBlockingNow, false); err != nil {
		return snap, err
	}
	if snap.PresenceEnabled, err = tx.Bool(KeyPresenceEnabled, true); err != nil {
		return snap, err
	}
	if snap.PresenceLastDate, _, err = tx.String(KeyPresenceLastDate); err != nil {
		return snap, err
	}
	ms, err := tx.Int64(KeyPresenceLastSyncAt, 0)
	if err != nil {
		return snap, err
	}
	snap.PresenceLastSyncAt = time.UnixMilli(ms)
	if snap.PresenceLastDecision, _, err = tx.String(KeyPresenceLastDecision); err != nil {
		return snap, err
	}
	if snap.PendingAction, _, err = tx.String(KeyPendingAction); err != nil {
		return snap, err
	}
	return snap, nil
}

// ApplyTo writes every entry of d inside tx. Nil values delete.
func (d Delta) ApplyTo(tx StoreTx) error {
	for k, v := range d {
		if v == nil {
			if err := tx.Delete(k); err != nil {
				return err
			}
			continue
		}
		if err := tx.Set(k, v); err != nil {
			return err
		}
	}
	return nil
}

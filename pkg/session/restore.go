package session

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"ridetrace/pkg/model"
	"ridetrace/pkg/store"
)

// snapshotAge is the part of the snapshot needed to judge freshness
// without rehydrating it.
type snapshotAge struct {
	StartedAt time.Time      `json:"started_at"`
	Samples   []model.Sample `json:"samples"`
}

func (s *snapshotAge) lastActivity() time.Time {
	if n := len(s.Samples); n > 0 {
		return s.Samples[n-1].Time
	}
	return s.StartedAt
}

// TryRestore resumes a snapshotted session after a restart, provided
// the snapshot saw activity within maxAge. Stale or unreadable
// snapshots are discarded. Returns whether a session was resumed.
func TryRestore(ctx context.Context, st store.StateStore, mgr *Manager, maxAge time.Duration) bool {
	val, found := st.GetState(ctx, stateKey)
	if !found || val == "" {
		return false
	}

	discard := func(reason string, args ...any) bool {
		slog.Info("Session: discarding snapshot, "+reason, args...)
		if err := st.DeleteState(ctx, stateKey); err != nil {
			slog.Warn("Session: could not clear snapshot", "error", err)
		}
		return false
	}

	var age snapshotAge
	if err := json.Unmarshal([]byte(val), &age); err != nil {
		return discard("unreadable", "error", err)
	}
	idle := time.Since(age.lastActivity())
	if idle > maxAge {
		return discard("too old", "idle", idle.Round(time.Second), "max_age", maxAge)
	}

	if err := mgr.Restore(ctx, []byte(val)); err != nil {
		return discard("restore failed", "error", err)
	}
	return true
}

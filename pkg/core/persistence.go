package core

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"ridetrace/pkg/model"
	"ridetrace/pkg/session"
)

// SessionPersistenceJob snapshots the active session periodically so a
// crash or a dead battery loses at most one interval of samples. The
// manager skips the write when nothing changed since the last save.
type SessionPersistenceJob struct {
	BaseJob
	sessions *session.Manager
	interval time.Duration
	lastTime time.Time
	firstRun bool
}

// NewSessionPersistenceJob creates a new persistence job.
func NewSessionPersistenceJob(sessions *session.Manager, interval time.Duration) *SessionPersistenceJob {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &SessionPersistenceJob{
		BaseJob:  NewBaseJob("SessionPersistence"),
		sessions: sessions,
		interval: interval,
		firstRun: true,
	}
}

func (j *SessionPersistenceJob) ShouldFire(t *model.Telemetry) bool {
	if atomic.LoadInt32(&j.running) == 1 {
		return false
	}
	if j.firstRun {
		return true
	}
	return time.Since(j.lastTime) >= j.interval
}

func (j *SessionPersistenceJob) Run(ctx context.Context, t *model.Telemetry) {
	if !j.TryLock() {
		return
	}
	defer j.Unlock()

	j.lastTime = time.Now()
	j.firstRun = false

	if err := j.sessions.PersistSnapshot(ctx); err != nil {
		slog.Error("Persistence: failed to save session snapshot", "error", err)
	}
}

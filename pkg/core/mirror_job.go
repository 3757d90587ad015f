package core

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"ridetrace/pkg/config"
	"ridetrace/pkg/model"
	"ridetrace/pkg/recording"
)

// MirrorJob reconciles the paired-device directory: a scan enqueues
// recordings the ledger has not seen, then the queue drains. Priority
// enqueues from the API are drained on the next tick instead of
// waiting out the interval.
type MirrorJob struct {
	BaseJob
	mirrorer *recording.Mirrorer
	provider config.Provider
	interval time.Duration
	lastTime time.Time
	firstRun bool
}

// NewMirrorJob creates a new mirror job.
func NewMirrorJob(mirrorer *recording.Mirrorer, provider config.Provider, interval time.Duration) *MirrorJob {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	return &MirrorJob{
		BaseJob:  NewBaseJob("Mirror"),
		mirrorer: mirrorer,
		provider: provider,
		interval: interval,
		firstRun: true,
	}
}

func (j *MirrorJob) ShouldFire(t *model.Telemetry) bool {
	if atomic.LoadInt32(&j.running) == 1 {
		return false
	}
	if !j.mirrorer.Enabled() {
		return false
	}
	if j.mirrorer.Pending() > 0 {
		return true
	}
	if j.firstRun {
		return true
	}
	return time.Since(j.lastTime) >= j.interval
}

func (j *MirrorJob) Run(ctx context.Context, t *model.Telemetry) {
	if !j.TryLock() {
		return
	}
	defer j.Unlock()

	j.lastTime = time.Now()
	j.firstRun = false

	// Runtime kill switch; the queue keeps accumulating so copies
	// resume where they left off when re-enabled.
	if !j.provider.MirrorEnabled(ctx) {
		return
	}

	if err := j.mirrorer.Scan(ctx); err != nil {
		slog.Warn("Mirror: scan failed", "error", err)
	}
	j.mirrorer.Drain(ctx)
}

package core

import (
	"context"
	"log/slog"
	"os"
	"sync/atomic"
	"time"

	"ridetrace/pkg/config"
	"ridetrace/pkg/model"
)

// ConfigReloadJob watches the config file and swaps the provider's
// static base when it changes on disk. Registry overrides written
// through the API stay on top of the reloaded file.
type ConfigReloadJob struct {
	BaseJob
	provider *config.UnifiedProvider
	path     string
	interval time.Duration

	lastTime  time.Time
	lastMTime time.Time
	firstRun  bool
}

// NewConfigReloadJob creates a new reload job watching path.
func NewConfigReloadJob(provider *config.UnifiedProvider, path string, interval time.Duration) *ConfigReloadJob {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	return &ConfigReloadJob{
		BaseJob:  NewBaseJob("ConfigReload"),
		provider: provider,
		path:     path,
		interval: interval,
		firstRun: true,
	}
}

func (j *ConfigReloadJob) ShouldFire(t *model.Telemetry) bool {
	if atomic.LoadInt32(&j.running) == 1 {
		return false
	}
	if j.firstRun {
		return true
	}
	return time.Since(j.lastTime) >= j.interval
}

func (j *ConfigReloadJob) Run(ctx context.Context, t *model.Telemetry) {
	if !j.TryLock() {
		return
	}
	defer j.Unlock()

	j.lastTime = time.Now()

	info, err := os.Stat(j.path)
	if err != nil {
		return
	}
	mtime := info.ModTime()

	// The first pass primes the marker; the file was already loaded at
	// startup.
	if j.firstRun {
		j.firstRun = false
		j.lastMTime = mtime
		return
	}
	if mtime.Equal(j.lastMTime) {
		return
	}
	// Remember the mtime even when the reload fails, so a broken edit
	// is reported once instead of every interval.
	j.lastMTime = mtime

	cfg, err := config.Load(j.path)
	if err != nil {
		slog.Error("Config: reload failed, keeping previous config", "path", j.path, "error", err)
		return
	}

	j.provider.Reload(cfg)
	slog.Info("Config: reloaded from disk", "path", j.path)
}

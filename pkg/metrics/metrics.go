// Package metrics collects per-component usage counters for the stats
// endpoint. Updates are cheap enough to call from the sampling loop.
package metrics

import (
	"sync"
	"sync/atomic"
)

// Component names used across the daemon.
const (
	ComponentSampler  = "sampler"
	ComponentRecorder = "recorder"
	ComponentMirror   = "mirror"
	ComponentStream   = "stream"
	ComponentSession  = "session"
	ComponentAPI      = "api"
)

// Outcome classifies a tracked operation.
type Outcome string

const (
	OutcomeOK    Outcome = "ok"
	OutcomeError Outcome = "error"
	OutcomeSkip  Outcome = "skip"
)

// ComponentStats holds counters for a single component.
// Fields are accessed atomically.
type ComponentStats struct {
	Operations int64 `json:"operations"`
	Errors     int64 `json:"errors"`
	Skipped    int64 `json:"skipped"`
	Bytes      int64 `json:"bytes"`
}

// Recorder aggregates counters per component name.
type Recorder struct {
	mu    sync.RWMutex
	stats map[string]*ComponentStats
}

// New creates an empty Recorder.
func New() *Recorder {
	return &Recorder{
		stats: make(map[string]*ComponentStats),
	}
}

// getStats returns the stats object for a component, creating it if needed.
func (r *Recorder) getStats(component string) *ComponentStats {
	r.mu.RLock()
	s, ok := r.stats[component]
	r.mu.RUnlock()
	if ok {
		return s
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	// Double check
	if s, ok = r.stats[component]; ok {
		return s
	}
	s = &ComponentStats{}
	r.stats[component] = s
	return s
}

// Track records one operation and the bytes it handled.
func (r *Recorder) Track(component string, outcome Outcome, size int64) {
	s := r.getStats(component)
	switch outcome {
	case OutcomeError:
		atomic.AddInt64(&s.Errors, 1)
	case OutcomeSkip:
		atomic.AddInt64(&s.Skipped, 1)
	default:
		atomic.AddInt64(&s.Operations, 1)
	}
	if size > 0 {
		atomic.AddInt64(&s.Bytes, size)
	}
}

// TrackOK increments the operation counter.
func (r *Recorder) TrackOK(component string) {
	r.Track(component, OutcomeOK, 0)
}

// TrackError increments the error counter.
func (r *Recorder) TrackError(component string) {
	r.Track(component, OutcomeError, 0)
}

// Snapshot returns a copy of the current counters.
func (r *Recorder) Snapshot() map[string]ComponentStats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make(map[string]ComponentStats)
	for k, v := range r.stats {
		result[k] = ComponentStats{
			Operations: atomic.LoadInt64(&v.Operations),
			Errors:     atomic.LoadInt64(&v.Errors),
			Skipped:    atomic.LoadInt64(&v.Skipped),
			Bytes:      atomic.LoadInt64(&v.Bytes),
		}
	}
	return result
}

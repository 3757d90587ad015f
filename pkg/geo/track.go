package geo

import "sync"

// MinTrackMovement is the window span (meters) below which the buffer
// considers the rider stationary and keeps the previous heading. GPS
// jitter on a platform would otherwise spin the heading randomly.
const MinTrackMovement = 2.0

// TrackBuffer maintains a rolling window of fixes and derives a smoothed
// ground track from the oldest to the newest point in the window.
type TrackBuffer struct {
	mu      sync.RWMutex
	window  []Point
	maxSize int
}

// NewTrackBuffer creates a buffer holding up to windowSize fixes.
func NewTrackBuffer(windowSize int) *TrackBuffer {
	if windowSize < 2 {
		windowSize = 2
	}
	return &TrackBuffer{maxSize: windowSize}
}

// Push adds a fix and returns the current track in degrees. Until the
// window spans at least MinTrackMovement meters the fallback heading is
// returned unchanged.
func (b *TrackBuffer) Push(p Point, fallback float64) float64 {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.window = append(b.window, p)
	if len(b.window) > b.maxSize {
		b.window = b.window[1:]
	}

	if len(b.window) < 2 {
		return fallback
	}
	oldest, newest := b.window[0], b.window[len(b.window)-1]
	if Distance(oldest, newest) < MinTrackMovement {
		return fallback
	}
	return Bearing(oldest, newest)
}

// Len returns the number of fixes currently buffered.
func (b *TrackBuffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.window)
}

// Reset clears the window, e.g. when a new session starts.
func (b *TrackBuffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.window = nil
}

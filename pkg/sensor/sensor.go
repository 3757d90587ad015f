// Package sensor defines the motion source abstraction the daemon
// samples from: barometric altitude plus an optional location fix.
package sensor

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotReady is returned when the provider has no fresh reading,
	// e.g. while the platform sensors warm up.
	ErrNotReady = errors.New("sensor not ready")
)

// Reading is a raw observation from the platform sensors.
// Altitude is in feet. Speed is ground speed in mph and nil when the
// platform does not supply one. Lat/Lon are only meaningful while
// HasFix is true.
type Reading struct {
	Time     time.Time
	Altitude float64
	Lat      float64
	Lon      float64
	Speed    *float64
	HasFix   bool
}

// Provider defines the interface for motion sensor sources.
type Provider interface {
	// Read returns the most recent sensor reading.
	Read(ctx context.Context) (Reading, error)
	// State returns the current availability state.
	State() State
	// Close cleans up resources associated with the provider.
	Close() error
}

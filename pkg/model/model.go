// Package model defines the data structures shared across ridetrace:
// ride samples, recordings, derived statistics and the live telemetry
// snapshot served to clients.
package model

import "time"

// Sample is a single observation buffered during a ride session.
//
// Altitude is in feet; for drop tower rides it is relative to the
// session baseline. Rate is the smoothed vertical rate in ft/min,
// negative while descending. Speed is ground speed in mph and is
// always serialized as null for drop tower rides. Lat/Lon are only
// populated for rides that move horizontally.
type Sample struct {
	Time     time.Time `json:"t"`
	Altitude float64   `json:"alt"`
	Rate     float64   `json:"rate"`
	Speed    *float64  `json:"speed"`
	Lat      *float64  `json:"lat,omitempty"`
	Lon      *float64  `json:"lon,omitempty"`
}

// Recording is a complete ride capture: identity plus the ordered
// sample series.
type Recording struct {
	ID        string    `json:"id"`
	RideType  RideType  `json:"ride_type"`
	StartedAt time.Time `json:"started_at"`
	VenueCell string    `json:"venue_cell,omitempty"`
	Samples   []Sample  `json:"samples"`
}

// RecordingInfo is the indexed metadata for a recording file. Duration
// and MaxAltitude are denormalized so listings never re-read sample
// files from disk.
type RecordingInfo struct {
	Name        string    `json:"name"`
	RideType    RideType  `json:"ride_type"`
	StartedAt   time.Time `json:"started_at"`
	Samples     int       `json:"samples"`
	Duration    float64   `json:"duration_sec"`
	MaxAltitude float64   `json:"max_altitude"`
	VenueCell   string    `json:"venue_cell,omitempty"`
	SizeBytes   int64     `json:"size_bytes"`
}

// MirrorInfo records a verified copy of a recording to the paired
// device directory.
type MirrorInfo struct {
	Name       string    `json:"name"`
	Digest     string    `json:"digest"`
	SizeBytes  int64     `json:"size_bytes"`
	MirroredAt time.Time `json:"mirrored_at"`
}

// Float64 returns a pointer to v. Convenience for optional fields.
func Float64(v float64) *float64 { return &v }

// Package tracker turns raw sensor readings into smoothed motion
// telemetry: vertical rate, baseline-relative altitude, ground speed
// and heading.
package tracker

import (
	"sync"
	"time"

	"ridetrace/pkg/geo"
	"ridetrace/pkg/sensor"
)

// Motion is the tracker output for one sampler tick.
type Motion struct {
	Time     time.Time
	Altitude float64  // feet, relative to the baseline when one is set
	Rate     float64  // smoothed vertical rate, ft/min, negative = descending
	Speed    *float64 // mph, nil without a GPS fix
	Heading  float64  // degrees
	Lat      float64
	Lon      float64
	HasFix   bool
}

// Tracker keeps the smoothing state between ticks. The smoothed rate is
// the average of the previous smoothed rate and the instantaneous rate,
// so the sequence depends on sample order and cadence. That weighting is
// part of the published recording format and must not change.
type Tracker struct {
	mu sync.Mutex

	prevTime time.Time
	prevAlt  float64
	hasPrev  bool
	rate     float64

	prevPos     geo.Point
	prevPosTime time.Time
	hasPrevPos  bool
	heading     float64
	trackBuf    *geo.TrackBuffer

	baseline     float64
	hasBaseline  bool
	wantBaseline bool
}

// New creates a tracker with an empty smoothing state.
func New() *Tracker {
	return &Tracker{
		trackBuf: geo.NewTrackBuffer(5),
	}
}

// Update folds one reading into the smoothing state and returns the
// resulting motion. The first reading after a reset reports rate 0.
func (t *Tracker) Update(r sensor.Reading) Motion {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.wantBaseline {
		t.baseline = r.Altitude
		t.hasBaseline = true
		t.wantBaseline = false
	}

	if t.hasPrev {
		dt := r.Time.Sub(t.prevTime).Seconds()
		if dt > 0 {
			inst := (r.Altitude - t.prevAlt) / dt * 60.0
			t.rate = (t.rate + inst) / 2.0
			t.prevTime = r.Time
			t.prevAlt = r.Altitude
		}
		// dt <= 0: keep the previous state so the next tick gets a
		// usable interval.
	} else {
		t.rate = 0
		t.prevTime = r.Time
		t.prevAlt = r.Altitude
		t.hasPrev = true
	}

	m := Motion{
		Time:     r.Time,
		Altitude: r.Altitude,
		Rate:     t.rate,
		HasFix:   r.HasFix,
	}
	if t.hasBaseline {
		m.Altitude = r.Altitude - t.baseline
	}

	if r.HasFix {
		pos := geo.Point{Lat: r.Lat, Lon: r.Lon}
		m.Lat = r.Lat
		m.Lon = r.Lon
		m.Speed = t.groundSpeed(r, pos)
		t.heading = t.trackBuf.Push(pos, t.heading)
		t.prevPos = pos
		t.prevPosTime = r.Time
		t.hasPrevPos = true
	} else {
		t.trackBuf.Reset()
		t.hasPrevPos = false
	}
	m.Heading = t.heading

	return m
}

// groundSpeed prefers the sensor-supplied speed and otherwise derives
// one from the distance covered since the previous fix.
func (t *Tracker) groundSpeed(r sensor.Reading, pos geo.Point) *float64 {
	if r.Speed != nil {
		v := *r.Speed
		return &v
	}
	if !t.hasPrevPos {
		return nil
	}
	dt := r.Time.Sub(t.prevPosTime).Seconds()
	if dt <= 0 {
		return nil
	}
	mph := geo.Distance(t.prevPos, pos) / dt * geo.MphPerMps
	return &mph
}

// Rebase arms baseline capture: the next reading becomes altitude zero.
// Drop-tower sessions publish and buffer altitude relative to this
// baseline.
func (t *Tracker) Rebase() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.hasBaseline = false
	t.wantBaseline = true
}

// SetBaseline restores a known baseline, used when resuming a session
// from a snapshot.
func (t *Tracker) SetBaseline(alt float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.baseline = alt
	t.hasBaseline = true
	t.wantBaseline = false
}

// Baseline returns the active baseline altitude, if any.
func (t *Tracker) Baseline() (float64, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.hasBaseline {
		return 0, false
	}
	return t.baseline, true
}

// ClearBaseline returns the tracker to absolute altitude.
func (t *Tracker) ClearBaseline() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.hasBaseline = false
	t.wantBaseline = false
}

// Reset clears all smoothing and track state.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.hasPrev = false
	t.rate = 0
	t.hasPrevPos = false
	t.heading = 0
	t.trackBuf.Reset()
	t.hasBaseline = false
	t.wantBaseline = false
}

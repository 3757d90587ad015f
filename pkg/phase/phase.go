// Package phase detects ride phases by thresholding the smoothed
// vertical rate.
package phase

import (
	"fmt"
	"sync"
	"time"

	"ridetrace/pkg/model"
)

// Phase is a ride phase name as published in telemetry and events.
type Phase string

const (
	// Drop-tower phases.
	PhaseAscending Phase = "ascending"
	PhaseDropping  Phase = "dropping"
	PhaseComplete  Phase = "complete"

	// Zipline phases.
	PhaseIdle      Phase = "idle"
	PhaseRecording Phase = "recording"
)

// Machine runs the per-ride-type phase state machine. The drop-tower
// machine is one-shot (ascending, dropping, complete); the zipline
// machine cycles between idle and recording for as long as the session
// lasts.
//
// A descent arms the machine when the smoothed rate passes strictly
// below the threshold. The descent phase ends once the rate has
// recovered to the threshold or above AND the recovery delay has
// elapsed since the phase was entered, which rides out the brief
// oscillation around zero rate at the bottom of a fall.
type Machine struct {
	mu sync.Mutex

	rideType      model.RideType
	threshold     float64 // ft/min, negative
	recoveryDelay time.Duration

	current   Phase
	enteredAt time.Time
}

// NewMachine creates a machine for the ride type with the given
// descent threshold (ft/min, negative) and recovery delay. Thresholds
// are fixed for the machine's lifetime; sessions construct a fresh
// machine on start.
func NewMachine(rideType model.RideType, thresholdFpm float64, recoveryDelay time.Duration) *Machine {
	m := &Machine{
		rideType:      rideType,
		threshold:     thresholdFpm,
		recoveryDelay: recoveryDelay,
	}
	m.current = initialPhase(rideType)
	return m
}

func initialPhase(rideType model.RideType) Phase {
	if rideType == model.RideDrop {
		return PhaseAscending
	}
	return PhaseIdle
}

// Update advances the machine with the smoothed rate observed at the
// given sample time. It returns the phase in effect afterwards and
// whether this update transitioned.
func (m *Machine) Update(rate float64, now time.Time) (Phase, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	descending := rate < m.threshold
	recovered := rate >= m.threshold && now.Sub(m.enteredAt) >= m.recoveryDelay

	switch m.current {
	case PhaseAscending:
		if descending {
			return m.transition(PhaseDropping, now), true
		}
	case PhaseDropping:
		if recovered {
			return m.transition(PhaseComplete, now), true
		}
	case PhaseComplete:
		// Terminal.
	case PhaseIdle:
		if descending {
			return m.transition(PhaseRecording, now), true
		}
	case PhaseRecording:
		if recovered {
			return m.transition(PhaseIdle, now), true
		}
	}
	return m.current, false
}

func (m *Machine) transition(next Phase, now time.Time) Phase {
	m.current = next
	m.enteredAt = now
	return next
}

// Current returns the phase in effect.
func (m *Machine) Current() Phase {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Reset re-arms the machine for a new run of the same ride type.
func (m *Machine) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = initialPhase(m.rideType)
	m.enteredAt = time.Time{}
}

// Resume restores the machine into a known phase, used when a session
// snapshot is rehydrated after a restart.
func (m *Machine) Resume(p Phase, enteredAt time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = p
	m.enteredAt = enteredAt
}

// Event builds the ride event describing a transition into the given
// phase.
func Event(rideType model.RideType, p Phase, rate float64, now time.Time) *model.RideEvent {
	return &model.RideEvent{
		Timestamp: now,
		Type:      model.EventPhase,
		Title:     fmt.Sprintf("%s %s", rideType.DisplayName(), p),
		Summary:   fmt.Sprintf("rate %.0f ft/min", rate),
	}
}

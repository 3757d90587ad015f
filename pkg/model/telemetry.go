package model

import "time"

// Telemetry is the live gauge snapshot published on every sampler tick.
// Altitude follows the same baseline convention as Sample. Phase is
// empty while no session is active.
type Telemetry struct {
	Time        time.Time `json:"time"`
	RideType    RideType  `json:"ride_type"`
	Altitude    float64   `json:"altitude"`
	Rate        float64   `json:"rate"`
	Speed       *float64  `json:"speed,omitempty"`
	Heading     float64   `json:"heading"`
	Lat         float64   `json:"lat"`
	Lon         float64   `json:"lon"`
	HasFix      bool      `json:"has_fix"`
	Phase       string    `json:"phase,omitempty"`
	SensorState string    `json:"sensor_state"`
	SessionID   string    `json:"session_id,omitempty"`
	Recording   bool      `json:"recording"`
}

// Event types for RideEvent.Type.
const (
	EventSession = "session"
	EventPhase   = "phase"
	EventFlush   = "flush"
	EventMirror  = "mirror"
	EventSensor  = "sensor"
)

// RideEvent is an operator-visible event appended to the event log and,
// while a session is active, to the session's event list.
type RideEvent struct {
	Timestamp time.Time `json:"timestamp"`
	Type      string    `json:"type"`
	Title     string    `json:"title"`
	Summary   string    `json:"summary,omitempty"`
}

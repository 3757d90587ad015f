package sensor

// State represents the availability of the underlying sensors.
type State string

const (
	// StateDisconnected indicates the sensor source is gone.
	StateDisconnected State = "disconnected"
	// StateConnecting indicates the source exists but has not produced
	// a usable reading yet.
	StateConnecting State = "connecting"
	// StateReady indicates fresh readings are available.
	StateReady State = "ready"
)

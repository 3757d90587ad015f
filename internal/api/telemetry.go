package api

import (
	"net/http"
	"sync"

	"ridetrace/pkg/model"
	"ridetrace/pkg/sensor"
)

// TelemetryHandler is the scheduler's sink: it keeps the latest gauge
// snapshot and serves it to pollers. The websocket stream reads from it
// too, so the poll endpoint and the stream never disagree.
type TelemetryHandler struct {
	mu        sync.RWMutex
	telemetry model.Telemetry
	state     sensor.State
}

func NewTelemetryHandler() *TelemetryHandler {
	return &TelemetryHandler{state: sensor.StateDisconnected}
}

// Update implements core.TelemetrySink.
func (h *TelemetryHandler) Update(t *model.Telemetry) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.telemetry = *t
}

// UpdateState implements core.TelemetrySink. State changes arrive even
// on ticks where the read failed, so it is stored separately.
func (h *TelemetryHandler) UpdateState(s sensor.State) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.state = s
}

// Latest returns the most recent snapshot with the sensor state folded
// in. While the sensor warms up the telemetry is still zero-valued but
// the state already reports "connecting".
func (h *TelemetryHandler) Latest() model.Telemetry {
	h.mu.RLock()
	defer h.mu.RUnlock()
	t := h.telemetry
	t.SensorState = string(h.state)
	return t
}

func (h *TelemetryHandler) handleTelemetry(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Latest())
}

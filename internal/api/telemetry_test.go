package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"ridetrace/pkg/model"
	"ridetrace/pkg/sensor"
)

func TestTelemetryHandler_HandleTelemetry(t *testing.T) {
	defaultTel := model.Telemetry{
		Time:     time.Now(),
		RideType: model.RideZip,
		Altitude: 120.5,
		Rate:     -800,
		Heading:  120,
		Lat:      35.0312,
		Lon:      -84.3716,
		HasFix:   true,
	}

	tests := []struct {
		name     string
		setup    func(*TelemetryHandler)
		validate func(*testing.T, model.Telemetry)
	}{
		{
			name: "Success_WithData",
			setup: func(h *TelemetryHandler) {
				h.Update(&defaultTel)
				h.UpdateState(sensor.StateReady)
			},
			validate: func(t *testing.T, tel model.Telemetry) {
				if tel.Altitude != defaultTel.Altitude {
					t.Errorf("got altitude %v, want %v", tel.Altitude, defaultTel.Altitude)
				}
				if tel.Rate != defaultTel.Rate {
					t.Errorf("got rate %v, want %v", tel.Rate, defaultTel.Rate)
				}
				if tel.SensorState != string(sensor.StateReady) {
					t.Errorf("got sensor state %q, want ready", tel.SensorState)
				}
			},
		},
		{
			name: "Disconnected_BeforeFirstTick",
			validate: func(t *testing.T, tel model.Telemetry) {
				if tel.Altitude != 0 {
					t.Errorf("got altitude %v, want 0", tel.Altitude)
				}
				if tel.SensorState != string(sensor.StateDisconnected) {
					t.Errorf("got sensor state %q, want disconnected", tel.SensorState)
				}
			},
		},
		{
			// The sensor state must reflect the last tick even when the
			// snapshot itself is older.
			name: "State_OverridesStaleSnapshot",
			setup: func(h *TelemetryHandler) {
				stale := defaultTel
				stale.SensorState = string(sensor.StateReady)
				h.Update(&stale)
				h.UpdateState(sensor.StateConnecting)
			},
			validate: func(t *testing.T, tel model.Telemetry) {
				if tel.SensorState != string(sensor.StateConnecting) {
					t.Errorf("got sensor state %q, want connecting", tel.SensorState)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewTelemetryHandler()
			if tt.setup != nil {
				tt.setup(handler)
			}

			req := httptest.NewRequest("GET", "/api/telemetry", http.NoBody)
			w := httptest.NewRecorder()

			handler.handleTelemetry(w, req)

			resp := w.Result()
			if resp.StatusCode != http.StatusOK {
				t.Errorf("StatusCode: got %v, want %v", resp.StatusCode, http.StatusOK)
			}

			var gotTel model.Telemetry
			if err := json.NewDecoder(resp.Body).Decode(&gotTel); err != nil {
				t.Fatalf("failed to decode JSON: %v", err)
			}
			tt.validate(t, gotTel)
		})
	}
}

package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"ridetrace/pkg/config"
	"ridetrace/pkg/model"
	"ridetrace/pkg/session"
	"ridetrace/pkg/tracker"
)

func TestSessionLifecycle(t *testing.T) {
	f := newFixture(t, nil)
	h := NewSessionHandler(f.sessions, f.provider)

	// Idle at first.
	w := httptest.NewRecorder()
	h.HandleGet(w, httptest.NewRequest("GET", "/api/session", nil))
	var info session.Info
	if err := json.NewDecoder(w.Body).Decode(&info); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if info.Active {
		t.Fatal("fresh manager should be idle")
	}

	// Start with an explicit ride type.
	w = httptest.NewRecorder()
	h.HandleStart(w, httptest.NewRequest("POST", "/api/session/start", strings.NewReader(`{"ride_type": "drop"}`)))
	if w.Code != http.StatusOK {
		t.Fatalf("start = %d: %s", w.Code, w.Body.String())
	}
	if err := json.NewDecoder(w.Body).Decode(&info); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !info.Active || info.RideType != model.RideDrop || info.ID == "" {
		t.Errorf("start info = %+v", info)
	}

	// A second start conflicts.
	w = httptest.NewRecorder()
	h.HandleStart(w, httptest.NewRequest("POST", "/api/session/start", strings.NewReader(`{"ride_type": "drop"}`)))
	if w.Code != http.StatusConflict {
		t.Errorf("second start = %d, want 409", w.Code)
	}

	// Buffer a few samples so the final flush writes a file.
	base := time.Now()
	for i := 0; i < 3; i++ {
		f.sessions.Offer(f.ctx, tracker.Motion{Time: base.Add(time.Duration(i) * time.Second), Altitude: float64(i), Rate: 0})
	}

	w = httptest.NewRecorder()
	h.HandleStop(w, httptest.NewRequest("POST", "/api/session/stop", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("stop = %d: %s", w.Code, w.Body.String())
	}
	var stopResp map[string]string
	if err := json.NewDecoder(w.Body).Decode(&stopResp); err != nil {
		t.Fatalf("decode stop: %v", err)
	}
	if stopResp["saved"] == "" {
		t.Error("stop should report the flushed file")
	}

	// Stopping again conflicts.
	w = httptest.NewRecorder()
	h.HandleStop(w, httptest.NewRequest("POST", "/api/session/stop", nil))
	if w.Code != http.StatusConflict {
		t.Errorf("idle stop = %d, want 409", w.Code)
	}
}

func TestSessionStartUsesDefaultRide(t *testing.T) {
	f := newFixture(t, func(cfg *config.Config) {
		cfg.Ride.DefaultType = "zip"
	})
	h := NewSessionHandler(f.sessions, f.provider)

	// Empty body: the configured default applies.
	w := httptest.NewRecorder()
	h.HandleStart(w, httptest.NewRequest("POST", "/api/session/start", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("start = %d: %s", w.Code, w.Body.String())
	}
	var info session.Info
	if err := json.NewDecoder(w.Body).Decode(&info); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if info.RideType != model.RideZip {
		t.Errorf("ride type = %s, want zip", info.RideType)
	}
}

func TestSessionStartRejectsBadInput(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"Unknown Ride Type", `{"ride_type": "coaster"}`},
		{"Broken JSON", `{"ride_type": `},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, nil)
			h := NewSessionHandler(f.sessions, f.provider)

			w := httptest.NewRecorder()
			h.HandleStart(w, httptest.NewRequest("POST", "/api/session/start", strings.NewReader(tt.body)))
			if w.Code != http.StatusBadRequest {
				t.Errorf("start = %d, want 400", w.Code)
			}
			if f.sessions.Active() {
				t.Error("rejected start must not leave a session running")
			}
		})
	}
}

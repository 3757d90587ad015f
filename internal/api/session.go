package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"ridetrace/pkg/config"
	"ridetrace/pkg/model"
	"ridetrace/pkg/session"
)

// SessionHandler exposes session lifecycle control.
type SessionHandler struct {
	sessions *session.Manager
	provider config.Provider
}

// NewSessionHandler creates a handler for session endpoints.
func NewSessionHandler(sessions *session.Manager, provider config.Provider) *SessionHandler {
	return &SessionHandler{sessions: sessions, provider: provider}
}

// HandleGet serves the current session summary.
func (h *SessionHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.sessions.Info())
}

type startRequest struct {
	RideType string `json:"ride_type"`
}

// HandleStart begins a session. The body may name a ride type; without
// one the configured default applies.
func (h *SessionHandler) HandleStart(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	raw := req.RideType
	if raw == "" {
		raw = h.provider.DefaultRide(r.Context())
	}
	rideType, err := model.ParseRideType(raw)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	info, err := h.sessions.Start(r.Context(), rideType)
	if err != nil {
		// The ride type was validated above, so the only failure left
		// is a session already running.
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}

	slog.Info("API: session started", "id", info.ID, "ride_type", info.RideType)
	writeJSON(w, http.StatusOK, info)
}

// HandleStop ends the active session and reports the file written by
// the final flush, or "" when the buffer was empty.
func (h *SessionHandler) HandleStop(w http.ResponseWriter, r *http.Request) {
	name, err := h.sessions.Stop(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}

	slog.Info("API: session stopped", "saved", name)
	writeJSON(w, http.StatusOK, map[string]string{"saved": name})
}

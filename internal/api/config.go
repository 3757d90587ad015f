package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"ridetrace/pkg/config"
	"ridetrace/pkg/model"
	"ridetrace/pkg/store"
)

// ConfigHandler handles configuration API requests.
type ConfigHandler struct {
	store    store.StateStore
	provider config.Provider
}

// NewConfigHandler creates a new ConfigHandler.
func NewConfigHandler(st store.StateStore, provider config.Provider) *ConfigHandler {
	return &ConfigHandler{store: st, provider: provider}
}

// ConfigResponse represents the config API response. MirrorDir,
// SampleInterval and RecordingsDir come from the static file and are
// read-only here.
type ConfigResponse struct {
	DefaultRide      string  `json:"default_ride"`
	DropThresholdFpm float64 `json:"drop_threshold_fpm"`
	ZipThresholdFpm  float64 `json:"zip_threshold_fpm"`
	RecoveryDelay    string  `json:"recovery_delay"`
	AutoSegment      bool    `json:"auto_segment"`
	StreamInterval   string  `json:"stream_interval"`
	MirrorEnabled    bool    `json:"mirror_enabled"`
	MirrorDir        string  `json:"mirror_dir"`
	SampleInterval   string  `json:"sample_interval"`
	RecordingsDir    string  `json:"recordings_dir"`
	MockStartLat     float64 `json:"mock_start_lat"`
	MockStartLon     float64 `json:"mock_start_lon"`
	MockStartAlt     float64 `json:"mock_start_alt"`
	MockStartHeading float64 `json:"mock_start_heading"`
}

// ConfigRequest represents the config API request for updates.
type ConfigRequest struct {
	DefaultRide      string   `json:"default_ride,omitempty"`
	DropThresholdFpm *float64 `json:"drop_threshold_fpm,omitempty"`
	ZipThresholdFpm  *float64 `json:"zip_threshold_fpm,omitempty"`
	RecoveryDelay    string   `json:"recovery_delay,omitempty"`
	AutoSegment      *bool    `json:"auto_segment,omitempty"` // Pointer to detect false vs missing
	StreamInterval   string   `json:"stream_interval,omitempty"`
	MirrorEnabled    *bool    `json:"mirror_enabled,omitempty"`
	MockStartLat     *float64 `json:"mock_start_lat,omitempty"`
	MockStartLon     *float64 `json:"mock_start_lon,omitempty"`
	MockStartAlt     *float64 `json:"mock_start_alt,omitempty"`
	MockStartHeading *float64 `json:"mock_start_heading,omitempty"`
}

// HandleConfig is a unified handler for all config-related methods, facilitating CORS/OPTIONS.
func (h *ConfigHandler) HandleConfig(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, PUT, POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}

	switch r.Method {
	case http.MethodGet:
		h.HandleGetConfig(w, r)
	case http.MethodPut, http.MethodPost:
		h.HandleSetConfig(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// HandleGetConfig returns the current configuration.
func (h *ConfigHandler) HandleGetConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.getConfigResponse(r.Context()))
}

func (h *ConfigHandler) getConfigResponse(ctx context.Context) ConfigResponse {
	base := h.provider.AppConfig()
	return ConfigResponse{
		DefaultRide:      h.provider.DefaultRide(ctx),
		DropThresholdFpm: h.provider.ThresholdFpm(ctx, "drop"),
		ZipThresholdFpm:  h.provider.ThresholdFpm(ctx, "zip"),
		RecoveryDelay:    h.provider.RecoveryDelay(ctx).String(),
		AutoSegment:      h.provider.AutoSegment(ctx),
		StreamInterval:   h.provider.StreamInterval(ctx).String(),
		MirrorEnabled:    h.provider.MirrorEnabled(ctx),
		MirrorDir:        base.Mirror.Dir,
		SampleInterval:   time.Duration(base.Ticker.SampleInterval).String(),
		RecordingsDir:    base.Data.RecordingsDir,
		MockStartLat:     h.provider.MockStartLat(ctx),
		MockStartLon:     h.provider.MockStartLon(ctx),
		MockStartAlt:     h.provider.MockStartAlt(ctx),
		MockStartHeading: h.provider.MockStartHeading(ctx),
	}
}

// HandleSetConfig updates the configuration.
func (h *ConfigHandler) HandleSetConfig(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "Failed to read body", http.StatusBadRequest)
		return
	}
	defer func() { _ = r.Body.Close() }()

	var req ConfigRequest
	if err := json.Unmarshal(body, &req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	ctx := r.Context()

	// Core updates (return error to client if they fail)
	if err := h.applyCoreUpdates(ctx, &req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	// Other updates (logged but don't block)
	h.applyToggleUpdates(ctx, &req)
	h.applyMockUpdates(ctx, &req, body)

	// Return updated config
	h.HandleGetConfig(w, r)
}

func (h *ConfigHandler) applyCoreUpdates(ctx context.Context, req *ConfigRequest) error {
	if req.DefaultRide != "" {
		rideType, err := model.ParseRideType(req.DefaultRide)
		if err != nil {
			return err
		}
		if err := h.store.SetState(ctx, config.KeyDefaultRide, string(rideType)); err != nil {
			slog.Error("Failed to save default_ride", "error", err)
			return err
		}
		slog.Debug("Config updated", "default_ride", rideType)
	}

	if req.DropThresholdFpm != nil {
		if err := h.updateThreshold(ctx, config.KeyDropThresholdFpm, *req.DropThresholdFpm); err != nil {
			return err
		}
	}
	if req.ZipThresholdFpm != nil {
		if err := h.updateThreshold(ctx, config.KeyZipThresholdFpm, *req.ZipThresholdFpm); err != nil {
			return err
		}
	}

	if req.RecoveryDelay != "" {
		if err := h.updateDuration(ctx, config.KeyRecoveryDelay, req.RecoveryDelay); err != nil {
			return err
		}
	}
	if req.StreamInterval != "" {
		if err := h.updateDuration(ctx, config.KeyStreamInterval, req.StreamInterval); err != nil {
			return err
		}
	}

	return nil
}

func (h *ConfigHandler) applyToggleUpdates(ctx context.Context, req *ConfigRequest) {
	if req.AutoSegment != nil {
		h.updateBoolState(ctx, config.KeyAutoSegment, *req.AutoSegment)
	}
	if req.MirrorEnabled != nil {
		h.updateBoolState(ctx, config.KeyMirrorEnabled, *req.MirrorEnabled)
	}
}

func (h *ConfigHandler) applyMockUpdates(ctx context.Context, req *ConfigRequest, body []byte) {
	if req.MockStartLat != nil {
		h.updateFloatState(ctx, config.KeyMockStartLat, *req.MockStartLat)
	}
	if req.MockStartLon != nil {
		h.updateFloatState(ctx, config.KeyMockStartLon, *req.MockStartLon)
	}
	if req.MockStartAlt != nil {
		h.updateFloatState(ctx, config.KeyMockStartAlt, *req.MockStartAlt)
	}
	if req.MockStartHeading != nil {
		h.updateFloatState(ctx, config.KeyMockStartHeading, *req.MockStartHeading)
	} else if containsJSONKey(body, "mock_start_heading") {
		// Explicit null clears the override so the file value applies.
		_ = h.store.DeleteState(ctx, config.KeyMockStartHeading)
	}
}

// updateThreshold persists a phase detector threshold. A non-negative
// value would never arm the detector, so it is rejected here rather
// than silently ignored at read time.
func (h *ConfigHandler) updateThreshold(ctx context.Context, key string, val float64) error {
	if val >= 0 {
		return fmt.Errorf("%s must be negative, got %v", key, val)
	}
	if err := h.store.SetState(ctx, key, strconv.FormatFloat(val, 'f', -1, 64)); err != nil {
		slog.Error("Failed to save state", "key", key, "error", err)
		return err
	}
	slog.Debug("Config updated", key, val)
	return nil
}

func (h *ConfigHandler) updateDuration(ctx context.Context, key, raw string) error {
	d, err := config.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	if d <= 0 {
		return fmt.Errorf("%s must be positive, got %s", key, raw)
	}
	if err := h.store.SetState(ctx, key, raw); err != nil {
		slog.Error("Failed to save state", "key", key, "error", err)
		return err
	}
	slog.Debug("Config updated", key, raw)
	return nil
}

func (h *ConfigHandler) updateBoolState(ctx context.Context, key string, val bool) {
	strVal := "false"
	if val {
		strVal = "true"
	}
	if err := h.store.SetState(ctx, key, strVal); err != nil {
		slog.Error("Failed to save state", "key", key, "error", err)
	} else {
		slog.Debug("Config updated", key, strVal)
	}
}

// updateFloatState keeps full precision: GPS coordinates lose meters
// when rounded to two decimals.
func (h *ConfigHandler) updateFloatState(ctx context.Context, key string, val float64) {
	strVal := strconv.FormatFloat(val, 'f', -1, 64)
	if err := h.store.SetState(ctx, key, strVal); err != nil {
		slog.Error("Failed to save state", "key", key, "error", err)
	} else {
		slog.Debug("Config updated", key, strVal)
	}
}

func containsJSONKey(body []byte, key string) bool {
	var m map[string]interface{}
	if err := json.Unmarshal(body, &m); err != nil {
		return false
	}
	_, ok := m[key]
	return ok
}

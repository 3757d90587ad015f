package api

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"ridetrace/pkg/logging"
	"ridetrace/pkg/metrics"
	"ridetrace/pkg/version"
)

// NewServer creates and configures the HTTP server.
// It accepts handlers for all API endpoints and a shutdownFunc for graceful shutdown.
func NewServer(addr string, tel *TelemetryHandler, sess *SessionHandler, rec *RecordingsHandler, cfg *ConfigHandler, stats *StatsHandler, stream *StreamHandler, m *metrics.Recorder, shutdown func()) *http.Server {
	mux := http.NewServeMux()

	// 1. Health and Version
	mux.HandleFunc("GET /health", handleHealth)
	mux.HandleFunc("GET /api/version", handleVersion)

	// 2. Telemetry (poll + live stream)
	mux.HandleFunc("GET /api/telemetry", tel.handleTelemetry)
	mux.HandleFunc("GET /api/stream", stream.HandleStream)

	// 3. Session Endpoints
	mux.HandleFunc("GET /api/session", sess.HandleGet)
	mux.HandleFunc("POST /api/session/start", sess.HandleStart)
	mux.HandleFunc("POST /api/session/stop", sess.HandleStop)

	// 4. Recording Browser
	mux.HandleFunc("GET /api/recordings", rec.HandleList)
	mux.HandleFunc("GET /api/recordings/{name}", rec.HandleGet)
	mux.HandleFunc("DELETE /api/recordings/{name}", rec.HandleDelete)
	mux.HandleFunc("POST /api/recordings/{name}/mirror", rec.HandleMirror)
	mux.HandleFunc("GET /api/recordings/{name}/track", rec.HandleTrack)
	mux.HandleFunc("GET /api/recordings/{name}/replay", rec.HandleReplay)

	// 5. Config Endpoints (unified handler, facilitates CORS/OPTIONS)
	mux.HandleFunc("/api/config", cfg.HandleConfig)

	// 6. Stats and Logs
	mux.Handle("GET /api/stats", stats)
	mux.HandleFunc("GET /api/log", handleLatestLog)

	// 7. Shutdown Endpoint
	mux.HandleFunc("POST /api/shutdown", func(w http.ResponseWriter, r *http.Request) {
		slog.Info("Graceful shutdown initiated via API")
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("Shutting down...")); err != nil {
			slog.Error("Failed to write shutdown response", "error", err)
		}
		// Call shutdown in a goroutine to allow response to flush
		go func() {
			time.Sleep(100 * time.Millisecond)
			shutdown()
		}()
	})

	return &http.Server{
		Addr:         addr,
		Handler:      withRequestLog(mux, m),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("OK")); err != nil {
		slog.Error("Failed to write health response", "error", err)
	}
}

func handleVersion(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if _, err := fmt.Fprintf(w, `{"version": "%s"}`, version.Version); err != nil {
		slog.Error("Failed to write version response", "error", err)
	}
}

// writeJSON encodes v with the right content type. Encoding failures are
// logged, not returned: headers are already on the wire at that point.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

// withRequestLog writes one access line per request to the request log
// and counts the request in the API metrics.
func withRequestLog(next http.Handler, m *metrics.Recorder) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		if m != nil {
			if rec.status >= http.StatusInternalServerError {
				m.TrackError(metrics.ComponentAPI)
			} else {
				m.TrackOK(metrics.ComponentAPI)
			}
		}
		if logging.RequestLogger != nil {
			logging.RequestLogger.Info("Request processed",
				"method", r.Method, "path", r.URL.Path,
				"status", rec.status, "duration", time.Since(start))
		}
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Hijack keeps the websocket upgrade working behind the wrapper.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	return hj.Hijack()
}

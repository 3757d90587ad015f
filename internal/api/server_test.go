package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"ridetrace/pkg/metrics"
	"ridetrace/pkg/version"
)

func newTestServer(t *testing.T) (*http.Server, *apiFixture, *atomic.Bool) {
	t.Helper()
	f := newFixture(t, nil)
	tel := NewTelemetryHandler()
	stream := NewStreamHandler(tel, f.provider, f.metrics)
	stats := NewStatsHandler(f.metrics, f.sessions, stream, f.mirrorer)

	var shutdownCalled atomic.Bool
	srv := NewServer("localhost:0",
		tel,
		NewSessionHandler(f.sessions, f.provider),
		NewRecordingsHandler(f.rec, f.mirrorer),
		NewConfigHandler(f.st, f.provider),
		stats,
		stream,
		f.metrics,
		func() { shutdownCalled.Store(true) },
	)
	return srv, f, &shutdownCalled
}

func TestServerRoutes(t *testing.T) {
	srv, _, _ := newTestServer(t)

	tests := []struct {
		method string
		path   string
		want   int
	}{
		{"GET", "/health", http.StatusOK},
		{"GET", "/api/version", http.StatusOK},
		{"GET", "/api/telemetry", http.StatusOK},
		{"GET", "/api/session", http.StatusOK},
		{"GET", "/api/recordings", http.StatusOK},
		{"GET", "/api/config", http.StatusOK},
		{"GET", "/api/stats", http.StatusOK},
		{"GET", "/api/log", http.StatusOK},
		{"GET", "/api/recordings/zip_20200101-000000.json", http.StatusNotFound},
		{"DELETE", "/api/session", http.StatusMethodNotAllowed},
		{"POST", "/api/telemetry", http.StatusMethodNotAllowed},
		{"GET", "/nope", http.StatusNotFound},
	}

	for _, tt := range tests {
		req := httptest.NewRequest(tt.method, tt.path, nil)
		w := httptest.NewRecorder()
		srv.Handler.ServeHTTP(w, req)
		if w.Code != tt.want {
			t.Errorf("%s %s = %d, want %d", tt.method, tt.path, w.Code, tt.want)
		}
	}
}

func TestServerVersionBody(t *testing.T) {
	srv, _, _ := newTestServer(t)

	w := httptest.NewRecorder()
	srv.Handler.ServeHTTP(w, httptest.NewRequest("GET", "/api/version", nil))

	var got map[string]string
	if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got["version"] != version.Version {
		t.Errorf("version = %q, want %q", got["version"], version.Version)
	}
}

func TestServerShutdownEndpoint(t *testing.T) {
	srv, _, called := newTestServer(t)

	w := httptest.NewRecorder()
	srv.Handler.ServeHTTP(w, httptest.NewRequest("POST", "/api/shutdown", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("shutdown = %d", w.Code)
	}

	// The callback fires after the response has had time to flush.
	waitFor(t, "shutdown callback", func() bool { return called.Load() })
}

func TestServerTracksAPIMetrics(t *testing.T) {
	srv, f, _ := newTestServer(t)

	srv.Handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/health", nil))

	snap := f.metrics.Snapshot()
	if snap[metrics.ComponentAPI].Operations != 1 {
		t.Errorf("api ops = %d, want 1", snap[metrics.ComponentAPI].Operations)
	}
	if snap[metrics.ComponentAPI].Errors != 0 {
		t.Errorf("api errors = %d, want 0", snap[metrics.ComponentAPI].Errors)
	}
}

func TestServerTimeouts(t *testing.T) {
	srv, _, _ := newTestServer(t)
	if srv.ReadTimeout != 15*time.Second {
		t.Errorf("read timeout = %s", srv.ReadTimeout)
	}
	if srv.WriteTimeout != 15*time.Second {
		t.Errorf("write timeout = %s", srv.WriteTimeout)
	}
	if srv.IdleTimeout != 60*time.Second {
		t.Errorf("idle timeout = %s", srv.IdleTimeout)
	}
}

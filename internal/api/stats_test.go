package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"ridetrace/pkg/metrics"
)

func TestStatsHandler(t *testing.T) {
	f := newFixture(t, nil)
	stream := NewStreamHandler(NewTelemetryHandler(), f.provider, f.metrics)
	h := NewStatsHandler(f.metrics, f.sessions, stream, f.mirrorer)

	f.metrics.Track(metrics.ComponentSampler, metrics.OutcomeOK, 128)
	f.metrics.TrackError(metrics.ComponentMirror)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest("GET", "/api/stats", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("stats = %d", w.Code)
	}

	var got StatsResponse
	if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}

	if got.Components[metrics.ComponentSampler].Operations != 1 {
		t.Errorf("sampler ops = %d, want 1", got.Components[metrics.ComponentSampler].Operations)
	}
	if got.Components[metrics.ComponentSampler].Bytes != 128 {
		t.Errorf("sampler bytes = %d, want 128", got.Components[metrics.ComponentSampler].Bytes)
	}
	if got.Components[metrics.ComponentMirror].Errors != 1 {
		t.Errorf("mirror errors = %d, want 1", got.Components[metrics.ComponentMirror].Errors)
	}
	if got.Session == nil || got.Session.Active {
		t.Errorf("session = %+v", got.Session)
	}
	if got.Runtime.Goroutines <= 0 {
		t.Error("goroutine count missing")
	}
	if got.Runtime.GoroutinesMax < got.Runtime.Goroutines {
		t.Errorf("goroutine peak %d below current %d", got.Runtime.GoroutinesMax, got.Runtime.Goroutines)
	}
	if got.StreamClients != 0 || got.MirrorPending != 0 {
		t.Errorf("clients = %d, pending = %d", got.StreamClients, got.MirrorPending)
	}
	if got.UptimeSec < 0 {
		t.Errorf("uptime = %d", got.UptimeSec)
	}
}

func TestStatsPeaksPersist(t *testing.T) {
	f := newFixture(t, nil)
	stream := NewStreamHandler(NewTelemetryHandler(), f.provider, f.metrics)
	h := NewStatsHandler(f.metrics, f.sessions, stream, f.mirrorer)

	first := h.gatherRuntime()
	second := h.gatherRuntime()
	if second.HeapMaxMB < first.HeapMB {
		t.Errorf("heap peak %d dropped below earlier reading %d", second.HeapMaxMB, first.HeapMB)
	}
	if second.GoroutinesMax < first.Goroutines {
		t.Errorf("goroutine peak %d dropped below earlier reading %d", second.GoroutinesMax, first.Goroutines)
	}
}

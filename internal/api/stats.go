package api

import (
	"net/http"
	"runtime"
	"sync"
	"time"

	"ridetrace/pkg/metrics"
	"ridetrace/pkg/recording"
	"ridetrace/pkg/session"
)

// StatsHandler serves daemon diagnostics: per-component counters from
// the metrics recorder plus portable runtime numbers.
type StatsHandler struct {
	metrics  *metrics.Recorder
	sessions *session.Manager
	stream   *StreamHandler
	mirrorer *recording.Mirrorer
	started  time.Time

	mu            sync.Mutex
	maxHeapMB     uint64
	maxGoroutines int
}

func NewStatsHandler(m *metrics.Recorder, sessions *session.Manager, stream *StreamHandler, mirrorer *recording.Mirrorer) *StatsHandler {
	return &StatsHandler{
		metrics:  m,
		sessions: sessions,
		stream:   stream,
		mirrorer: mirrorer,
		started:  time.Now(),
	}
}

// RuntimeStats holds process-level diagnostics. Peaks persist across
// calls so a spike between polls still shows up.
type RuntimeStats struct {
	HeapMB        uint64 `json:"heap_mb"`
	HeapMaxMB     uint64 `json:"heap_max_mb"`
	Goroutines    int    `json:"goroutines"`
	GoroutinesMax int    `json:"goroutines_max"`
}

type StatsResponse struct {
	UptimeSec     int64                             `json:"uptime_sec"`
	Runtime       RuntimeStats                      `json:"runtime"`
	Components    map[string]metrics.ComponentStats `json:"components"`
	Session       *session.Info                     `json:"session"`
	StreamClients int                               `json:"stream_clients"`
	MirrorPending int                               `json:"mirror_pending"`
}

func (h *StatsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	resp := StatsResponse{
		UptimeSec:     int64(time.Since(h.started).Seconds()),
		Runtime:       h.gatherRuntime(),
		Components:    h.metrics.Snapshot(),
		Session:       h.sessions.Info(),
		StreamClients: h.stream.ClientCount(),
		MirrorPending: h.mirrorer.Pending(),
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *StatsHandler) gatherRuntime() RuntimeStats {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	heapMB := bToMb(ms.HeapAlloc)
	goroutines := runtime.NumGoroutine()

	h.mu.Lock()
	defer h.mu.Unlock()
	if heapMB > h.maxHeapMB {
		h.maxHeapMB = heapMB
	}
	if goroutines > h.maxGoroutines {
		h.maxGoroutines = goroutines
	}
	return RuntimeStats{
		HeapMB:        heapMB,
		HeapMaxMB:     h.maxHeapMB,
		Goroutines:    goroutines,
		GoroutinesMax: h.maxGoroutines,
	}
}

func bToMb(b uint64) uint64 {
	return b / 1024 / 1024
}

package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"time"

	"ridetrace/pkg/apisession"
	"ridetrace/pkg/geo"
	"ridetrace/pkg/model"
	"ridetrace/pkg/recording"
)

const (
	replayDefaultCount = 100
	replayMaxCount     = 1000
	replayCursorTTL    = 5 * time.Minute
)

// replayCursor remembers where one client stopped paging through a
// recording. Switching files resets the position.
type replayCursor struct {
	Name string
	Next int
}

// RecordingsHandler serves stored recordings: listing, detail, delete,
// mirror requests, GeoJSON export and chunked replay.
type RecordingsHandler struct {
	rec      *recording.Store
	mirrorer *recording.Mirrorer
	cursors  *apisession.Store[replayCursor]
}

// NewRecordingsHandler creates a handler over the recording store.
func NewRecordingsHandler(rec *recording.Store, mirrorer *recording.Mirrorer) *RecordingsHandler {
	return &RecordingsHandler{
		rec:      rec,
		mirrorer: mirrorer,
		cursors:  apisession.New(replayCursorTTL, func() *replayCursor { return &replayCursor{} }),
	}
}

type listResponse struct {
	Recordings []*model.RecordingInfo `json:"recordings"`
	Count      int                    `json:"count"`
}

// HandleList serves the recording index. Sort key and order come from
// the query string; the store applies its defaults for unknown values.
func (h *RecordingsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	infos, err := h.rec.List(r.Context(), q.Get("sort"), q.Get("order"))
	if err != nil {
		slog.Error("API: list recordings failed", "error", err)
		http.Error(w, "Failed to list recordings", http.StatusInternalServerError)
		return
	}
	if infos == nil {
		infos = []*model.RecordingInfo{}
	}
	writeJSON(w, http.StatusOK, listResponse{Recordings: infos, Count: len(infos)})
}

type recordingResponse struct {
	Name      string               `json:"name"`
	RideType  model.RideType       `json:"ride_type"`
	StartedAt time.Time            `json:"started_at"`
	VenueCell string               `json:"venue_cell,omitempty"`
	Stats     model.Stats          `json:"stats"`
	Info      *model.RecordingInfo `json:"info,omitempty"`
	Samples   []model.Sample       `json:"samples,omitempty"`
}

// HandleGet serves one recording. The file on disk is the source of
// truth; the index row is attached when present. Samples are only
// included with ?samples=true, stats always are.
func (h *RecordingsHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	rec, err := h.rec.Load(r.Context(), name)
	if err != nil {
		if errors.Is(err, recording.ErrNotFound) {
			http.Error(w, "Recording not found", http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	resp := recordingResponse{
		Name:      name,
		RideType:  rec.RideType,
		StartedAt: rec.StartedAt,
		VenueCell: rec.VenueCell,
		Stats:     model.ComputeStats(rec.Samples),
	}
	if info, err := h.rec.Info(r.Context(), name); err == nil {
		resp.Info = info
	}
	if q := r.URL.Query().Get("samples"); q == "true" || q == "1" {
		resp.Samples = rec.Samples
	}
	writeJSON(w, http.StatusOK, resp)
}

// HandleDelete removes a recording. Deleting a name that is already
// gone still succeeds.
func (h *RecordingsHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if err := h.rec.Delete(r.Context(), name); err != nil {
		slog.Error("API: delete recording failed", "name", name, "error", err)
		http.Error(w, "Failed to delete recording", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleMirror queues one recording for priority mirroring.
func (h *RecordingsHandler) HandleMirror(w http.ResponseWriter, r *http.Request) {
	if !h.mirrorer.Enabled() {
		http.Error(w, "Mirroring is not configured", http.StatusConflict)
		return
	}
	name := r.PathValue("name")
	if _, err := os.Stat(h.rec.Path(name)); err != nil {
		http.Error(w, "Recording not found", http.StatusNotFound)
		return
	}

	h.mirrorer.Enqueue(name, true)
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "queued", "name": name})
}

// HandleTrack serves a recording's ground track as GeoJSON. Drop tower
// recordings carry no fixes, so they 404 here.
func (h *RecordingsHandler) HandleTrack(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	rec, err := h.rec.Load(r.Context(), name)
	if err != nil {
		if errors.Is(err, recording.ErrNotFound) {
			http.Error(w, "Recording not found", http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	fc, err := geo.Track(rec)
	if err != nil {
		if errors.Is(err, geo.ErrNoTrack) {
			http.Error(w, "Recording has no location track", http.StatusNotFound)
			return
		}
		slog.Error("API: track export failed", "name", name, "error", err)
		http.Error(w, "Failed to export track", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/geo+json")
	if err := json.NewEncoder(w).Encode(fc); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

type replayResponse struct {
	Name    string         `json:"name"`
	Cursor  int            `json:"cursor"`
	Total   int            `json:"total"`
	Done    bool           `json:"done"`
	Samples []model.Sample `json:"samples"`
}

// HandleReplay pages through a recording's samples. The server keeps a
// cursor per client so the watch UI can scrub forward with bare GETs;
// an explicit ?cursor= rewinds or skips.
func (h *RecordingsHandler) HandleReplay(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	rec, err := h.rec.Load(r.Context(), name)
	if err != nil {
		if errors.Is(err, recording.ErrNotFound) {
			http.Error(w, "Recording not found", http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	clientID := r.Header.Get("X-Client-ID")
	if clientID == "" {
		clientID = r.RemoteAddr
	}
	cur := h.cursors.Get(clientID)
	if cur.Name != name {
		cur.Name = name
		cur.Next = 0
	}

	q := r.URL.Query()
	if raw := q.Get("cursor"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 0 {
			http.Error(w, "Invalid cursor", http.StatusBadRequest)
			return
		}
		cur.Next = v
	}
	count := replayDefaultCount
	if raw := q.Get("count"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v <= 0 {
			http.Error(w, "Invalid count", http.StatusBadRequest)
			return
		}
		count = v
	}
	if count > replayMaxCount {
		count = replayMaxCount
	}

	total := len(rec.Samples)
	start := cur.Next
	if start > total {
		start = total
	}
	end := start + count
	if end > total {
		end = total
	}
	chunk := rec.Samples[start:end]
	if chunk == nil {
		chunk = []model.Sample{}
	}
	cur.Next = end

	writeJSON(w, http.StatusOK, replayResponse{
		Name:    name,
		Cursor:  end,
		Total:   total,
		Done:    end >= total,
		Samples: chunk,
	})
}

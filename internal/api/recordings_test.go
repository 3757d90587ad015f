package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"ridetrace/pkg/model"
	"ridetrace/pkg/recording"
)

func newRecordingsHandler(f *apiFixture) *RecordingsHandler {
	return NewRecordingsHandler(f.rec, f.mirrorer)
}

func getRecording(t *testing.T, h *RecordingsHandler, name, query string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest("GET", "/api/recordings/"+name+query, nil)
	req.SetPathValue("name", name)
	w := httptest.NewRecorder()
	h.HandleGet(w, req)
	return w
}

func TestRecordingsList(t *testing.T) {
	f := newFixture(t, nil)
	h := newRecordingsHandler(f)

	// Empty store: count 0, array not null.
	w := httptest.NewRecorder()
	h.HandleList(w, httptest.NewRequest("GET", "/api/recordings", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("list = %d", w.Code)
	}
	var got listResponse
	if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Count != 0 || got.Recordings == nil {
		t.Errorf("empty list = %+v", got)
	}

	base := time.Date(2026, 8, 25, 10, 0, 0, 0, time.Local)
	older := f.flushRecording(t, model.RideDrop, base, dropSamples(base, 4))
	newer := f.flushRecording(t, model.RideZip, base.Add(time.Hour), zipSamples(base.Add(time.Hour), 6))

	w = httptest.NewRecorder()
	h.HandleList(w, httptest.NewRequest("GET", "/api/recordings", nil))
	if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Count != 2 {
		t.Fatalf("count = %d, want 2", got.Count)
	}
	// Default order is newest first.
	if got.Recordings[0].Name != newer || got.Recordings[1].Name != older {
		t.Errorf("order = %s, %s", got.Recordings[0].Name, got.Recordings[1].Name)
	}

	// Explicit ascending flips it.
	w = httptest.NewRecorder()
	h.HandleList(w, httptest.NewRequest("GET", "/api/recordings?sort=date&order=asc", nil))
	if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Recordings[0].Name != older {
		t.Errorf("ascending order starts with %s, want %s", got.Recordings[0].Name, older)
	}
}

func TestRecordingGet(t *testing.T) {
	f := newFixture(t, nil)
	h := newRecordingsHandler(f)

	base := time.Date(2026, 8, 25, 11, 0, 0, 0, time.Local)
	name := f.flushRecording(t, model.RideZip, base, zipSamples(base, 5))

	// Stats come along, samples only on request.
	w := getRecording(t, h, name, "")
	if w.Code != http.StatusOK {
		t.Fatalf("get = %d: %s", w.Code, w.Body.String())
	}
	var got recordingResponse
	if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.RideType != model.RideZip || got.Stats.Samples != 5 {
		t.Errorf("response = %+v", got)
	}
	if got.Samples != nil {
		t.Error("samples must be omitted without ?samples=true")
	}
	if got.Info == nil || got.Info.Name != name {
		t.Errorf("index row missing: %+v", got.Info)
	}

	w = getRecording(t, h, name, "?samples=true")
	if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got.Samples) != 5 {
		t.Errorf("samples = %d, want 5", len(got.Samples))
	}

	// Valid name shape, no file.
	w = getRecording(t, h, "drop_20200101-000000.json", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("missing = %d, want 404", w.Code)
	}

	// Garbage name never reaches the filesystem.
	w = getRecording(t, h, "..secrets", "")
	if w.Code != http.StatusBadRequest {
		t.Errorf("garbage = %d, want 400", w.Code)
	}
}

func TestRecordingDelete(t *testing.T) {
	f := newFixture(t, nil)
	h := newRecordingsHandler(f)

	base := time.Date(2026, 8, 25, 12, 0, 0, 0, time.Local)
	name := f.flushRecording(t, model.RideDrop, base, dropSamples(base, 3))

	req := httptest.NewRequest("DELETE", "/api/recordings/"+name, nil)
	req.SetPathValue("name", name)
	w := httptest.NewRecorder()
	h.HandleDelete(w, req)
	if w.Code != http.StatusNoContent {
		t.Fatalf("delete = %d", w.Code)
	}
	if _, err := os.Stat(f.rec.Path(name)); !os.IsNotExist(err) {
		t.Error("file should be gone")
	}

	// Deleting a gone name still succeeds.
	w = httptest.NewRecorder()
	h.HandleDelete(w, req)
	if w.Code != http.StatusNoContent {
		t.Errorf("re-delete = %d, want 204", w.Code)
	}
}

func TestRecordingMirror(t *testing.T) {
	f := newFixture(t, nil)
	h := newRecordingsHandler(f)

	base := time.Date(2026, 8, 25, 13, 0, 0, 0, time.Local)
	name := f.flushRecording(t, model.RideZip, base, zipSamples(base, 3))

	req := httptest.NewRequest("POST", "/api/recordings/"+name+"/mirror", nil)
	req.SetPathValue("name", name)
	w := httptest.NewRecorder()
	h.HandleMirror(w, req)
	if w.Code != http.StatusAccepted {
		t.Fatalf("mirror = %d: %s", w.Code, w.Body.String())
	}
	if f.mirrorer.Pending() != 1 {
		t.Errorf("pending = %d, want 1", f.mirrorer.Pending())
	}

	// Unknown file: nothing to queue.
	req = httptest.NewRequest("POST", "/api/recordings/zip_20200101-000000.json/mirror", nil)
	req.SetPathValue("name", "zip_20200101-000000.json")
	w = httptest.NewRecorder()
	h.HandleMirror(w, req)
	if w.Code != http.StatusNotFound {
		t.Errorf("missing = %d, want 404", w.Code)
	}

	// Without a paired directory the endpoint reports a conflict.
	disabled := NewRecordingsHandler(f.rec, recording.NewMirrorer(f.rec, "", 8, f.st, f.metrics))
	req = httptest.NewRequest("POST", "/api/recordings/"+name+"/mirror", nil)
	req.SetPathValue("name", name)
	w = httptest.NewRecorder()
	disabled.HandleMirror(w, req)
	if w.Code != http.StatusConflict {
		t.Errorf("disabled = %d, want 409", w.Code)
	}
}

func TestRecordingTrack(t *testing.T) {
	f := newFixture(t, nil)
	h := newRecordingsHandler(f)

	base := time.Date(2026, 8, 25, 14, 0, 0, 0, time.Local)
	zip := f.flushRecording(t, model.RideZip, base, zipSamples(base, 8))
	drop := f.flushRecording(t, model.RideDrop, base.Add(time.Hour), dropSamples(base.Add(time.Hour), 8))

	req := httptest.NewRequest("GET", "/api/recordings/"+zip+"/track", nil)
	req.SetPathValue("name", zip)
	w := httptest.NewRecorder()
	h.HandleTrack(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("track = %d: %s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/geo+json" {
		t.Errorf("content type = %q", ct)
	}
	var fc struct {
		Type     string            `json:"type"`
		Features []json.RawMessage `json:"features"`
	}
	if err := json.NewDecoder(w.Body).Decode(&fc); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if fc.Type != "FeatureCollection" || len(fc.Features) != 3 {
		t.Errorf("collection = %s with %d features", fc.Type, len(fc.Features))
	}

	// Drop tower rides carry no fixes.
	req = httptest.NewRequest("GET", "/api/recordings/"+drop+"/track", nil)
	req.SetPathValue("name", drop)
	w = httptest.NewRecorder()
	h.HandleTrack(w, req)
	if w.Code != http.StatusNotFound {
		t.Errorf("drop track = %d, want 404", w.Code)
	}
}

func replayRequest(name, query, clientID string) *http.Request {
	req := httptest.NewRequest("GET", "/api/recordings/"+name+"/replay"+query, nil)
	req.SetPathValue("name", name)
	if clientID != "" {
		req.Header.Set("X-Client-ID", clientID)
	}
	return req
}

func TestRecordingReplay(t *testing.T) {
	f := newFixture(t, nil)
	h := newRecordingsHandler(f)

	base := time.Date(2026, 8, 25, 15, 0, 0, 0, time.Local)
	name := f.flushRecording(t, model.RideZip, base, zipSamples(base, 10))

	replay := func(query, clientID string) replayResponse {
		t.Helper()
		w := httptest.NewRecorder()
		h.HandleReplay(w, replayRequest(name, query, clientID))
		if w.Code != http.StatusOK {
			t.Fatalf("replay = %d: %s", w.Code, w.Body.String())
		}
		var got replayResponse
		if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
			t.Fatalf("decode: %v", err)
		}
		return got
	}

	// The server advances the cursor between bare GETs.
	got := replay("?count=4", "watch-1")
	if got.Cursor != 4 || got.Done || len(got.Samples) != 4 || got.Total != 10 {
		t.Errorf("chunk 1 = %+v", got)
	}
	got = replay("?count=4", "watch-1")
	if got.Cursor != 8 || got.Done {
		t.Errorf("chunk 2 = %+v", got)
	}
	got = replay("?count=4", "watch-1")
	if got.Cursor != 10 || !got.Done || len(got.Samples) != 2 {
		t.Errorf("chunk 3 = %+v", got)
	}

	// Past the end: empty chunk, still done.
	got = replay("?count=4", "watch-1")
	if !got.Done || len(got.Samples) != 0 {
		t.Errorf("past end = %+v", got)
	}

	// Another client starts from the top.
	got = replay("?count=4", "watch-2")
	if got.Cursor != 4 {
		t.Errorf("second client cursor = %d, want 4", got.Cursor)
	}

	// Explicit cursor rewinds.
	got = replay("?cursor=0&count=3", "watch-1")
	if got.Cursor != 3 || len(got.Samples) != 3 {
		t.Errorf("rewound = %+v", got)
	}

	// Switching files resets the stored cursor.
	other := f.flushRecording(t, model.RideZip, base.Add(time.Hour), zipSamples(base.Add(time.Hour), 6))
	w := httptest.NewRecorder()
	h.HandleReplay(w, replayRequest(other, "?count=4", "watch-1"))
	var onOther replayResponse
	if err := json.NewDecoder(w.Body).Decode(&onOther); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if onOther.Name != other || onOther.Cursor != 4 || onOther.Total != 6 {
		t.Errorf("file switch = %+v", onOther)
	}
}

func TestRecordingReplayRejectsBadParams(t *testing.T) {
	f := newFixture(t, nil)
	h := newRecordingsHandler(f)

	base := time.Date(2026, 8, 25, 16, 0, 0, 0, time.Local)
	name := f.flushRecording(t, model.RideZip, base, zipSamples(base, 4))

	for _, query := range []string{"?cursor=-1", "?cursor=abc", "?count=0", "?count=x"} {
		w := httptest.NewRecorder()
		h.HandleReplay(w, replayRequest(name, query, "watch-1"))
		if w.Code != http.StatusBadRequest {
			t.Errorf("%s = %d, want 400", query, w.Code)
		}
	}

	w := httptest.NewRecorder()
	h.HandleReplay(w, replayRequest("zip_20200101-000000.json", "", "watch-1"))
	if w.Code != http.StatusNotFound {
		t.Errorf("missing file = %d, want 404", w.Code)
	}
}

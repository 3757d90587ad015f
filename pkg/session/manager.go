// Package session owns the active ride session: its sample buffer, its
// phase machine, and the flushing of buffered samples into the
// recording store.
package session

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"ridetrace/pkg/config"
	"ridetrace/pkg/geo"
	"ridetrace/pkg/logging"
	"ridetrace/pkg/metrics"
	"ridetrace/pkg/model"
	"ridetrace/pkg/phase"
	"ridetrace/pkg/recording"
	"ridetrace/pkg/store"
	"ridetrace/pkg/tracker"
)

const stateKey = "session_snapshot"

// Info is the session summary served by the API.
type Info struct {
	Active    bool           `json:"active"`
	ID        string         `json:"id,omitempty"`
	RideType  model.RideType `json:"ride_type,omitempty"`
	StartedAt time.Time      `json:"started_at,omitempty"`
	Samples   int            `json:"samples"`
	Segments  int            `json:"segments"`
	Phase     string         `json:"phase,omitempty"`
	Flushed   []string       `json:"flushed,omitempty"`
}

// Manager runs at most one session at a time. The scheduler offers it
// one motion update per tick; session start and stop arrive from the
// API, so everything is mutex-guarded.
type Manager struct {
	mu       sync.Mutex
	provider config.Provider
	recStore *recording.Store
	tracker  *tracker.Tracker
	states   store.StateStore
	metrics  *metrics.Recorder

	active      bool
	id          string
	rideType    model.RideType
	startedAt   time.Time
	samples     []model.Sample
	machine     *phase.Machine
	venueCell   string
	autoSegment bool
	segments    int
	flushed     []string

	lastSnapshot []byte
}

// NewManager creates an idle session manager.
func NewManager(provider config.Provider, recStore *recording.Store, trk *tracker.Tracker, states store.StateStore, m *metrics.Recorder) *Manager {
	return &Manager{
		provider: provider,
		recStore: recStore,
		tracker:  trk,
		states:   states,
		metrics:  m,
	}
}

// Start begins a session of the given ride type. Thresholds and the
// auto-segment switch are read once here and hold for the whole
// session.
func (m *Manager) Start(ctx context.Context, rideType model.RideType) (*Info, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.active {
		return nil, fmt.Errorf("session %s already active", m.id)
	}
	if !rideType.Valid() {
		return nil, fmt.Errorf("invalid ride type %q", rideType)
	}

	m.active = true
	m.id = uuid.NewString()
	m.rideType = rideType
	m.startedAt = time.Now()
	m.samples = nil
	m.venueCell = ""
	m.segments = 0
	m.flushed = nil
	m.autoSegment = rideType == model.RideZip && m.provider.AutoSegment(ctx)
	m.machine = phase.NewMachine(rideType, m.provider.ThresholdFpm(ctx, string(rideType)), m.provider.RecoveryDelay(ctx))

	m.tracker.Reset()
	if rideType == model.RideDrop {
		m.tracker.Rebase()
	}

	m.metrics.TrackOK(metrics.ComponentSession)
	m.addEvent(&model.RideEvent{
		Type:    model.EventSession,
		Title:   "Session started",
		Summary: fmt.Sprintf("%s, id %s", rideType.DisplayName(), shortID(m.id)),
	})
	slog.Info("Session: started", "id", m.id, "ride_type", rideType, "auto_segment", m.autoSegment)

	return m.infoLocked(), nil
}

// Stop ends the active session, flushing any buffered samples. It
// returns the name of the file written by this final flush, or "" when
// the buffer was empty.
func (m *Manager) Stop(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.active {
		return "", fmt.Errorf("no active session")
	}
	return m.stopLocked(ctx)
}

func (m *Manager) stopLocked(ctx context.Context) (string, error) {
	name, err := m.flushLocked(ctx)
	if err != nil {
		slog.Error("Session: final flush failed", "id", m.id, "error", err)
	}

	summary := "no samples"
	if name != "" {
		summary = fmt.Sprintf("saved %s", name)
	}
	m.addEvent(&model.RideEvent{
		Type:    model.EventSession,
		Title:   "Session stopped",
		Summary: fmt.Sprintf("%d segment(s), %s", m.segments, summary),
	})
	slog.Info("Session: stopped", "id", m.id, "segments", m.segments)

	m.active = false
	m.samples = nil
	m.machine = nil
	m.tracker.Reset()
	m.lastSnapshot = nil
	if derr := m.states.DeleteState(ctx, stateKey); derr != nil {
		slog.Warn("Session: could not clear snapshot", "error", derr)
	}

	return name, err
}

// Offer feeds one motion update into the session: phase detection,
// buffering, auto-segmentation, and the drop tower auto-stop. It is a
// no-op while no session is active.
func (m *Manager) Offer(ctx context.Context, mo tracker.Motion) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.active {
		return
	}

	current, changed := m.machine.Update(mo.Rate, mo.Time)
	if changed {
		m.addEvent(phase.Event(m.rideType, current, mo.Rate, mo.Time))

		if m.autoSegment && current == phase.PhaseIdle {
			// End of a zipline run: the buffer holds exactly this run.
			if _, err := m.flushLocked(ctx); err != nil {
				slog.Error("Session: segment flush failed", "id", m.id, "error", err)
			}
		}
		if m.autoSegment && current == phase.PhaseRecording {
			m.samples = nil
		}
	}

	if m.shouldBuffer(current) {
		m.append(mo)
	}

	if current == phase.PhaseComplete {
		// A completed drop is terminal; the session stops itself.
		if _, err := m.stopLocked(ctx); err != nil {
			slog.Error("Session: auto-stop failed", "error", err)
		}
	}
}

// shouldBuffer gates buffering for auto-segmented zipline sessions:
// only the recording phase lands in the buffer, so idle chatter between
// runs never reaches a file.
func (m *Manager) shouldBuffer(current phase.Phase) bool {
	if !m.autoSegment {
		return true
	}
	return current == phase.PhaseRecording
}

func (m *Manager) append(mo tracker.Motion) {
	s := model.Sample{
		Time:     mo.Time,
		Altitude: mo.Altitude,
		Rate:     mo.Rate,
	}
	// Clamp defensively; the timer feed is already monotonic.
	if n := len(m.samples); n > 0 && s.Time.Before(m.samples[n-1].Time) {
		s.Time = m.samples[n-1].Time
	}
	if m.rideType == model.RideZip && mo.HasFix {
		s.Speed = mo.Speed
		s.Lat = model.Float64(mo.Lat)
		s.Lon = model.Float64(mo.Lon)
		if m.venueCell == "" {
			if cell, err := geo.VenueCell(mo.Lat, mo.Lon); err == nil {
				m.venueCell = cell
			}
		}
	}
	m.samples = append(m.samples, s)
}

// flushLocked writes the buffer as one recording file and clears it.
// Returns "" when there is nothing to flush.
func (m *Manager) flushLocked(ctx context.Context) (string, error) {
	if len(m.samples) == 0 {
		return "", nil
	}

	rec := &model.Recording{
		ID:        m.id,
		RideType:  m.rideType,
		StartedAt: m.samples[0].Time,
		VenueCell: m.venueCell,
		Samples:   m.samples,
	}
	name, err := m.recStore.Flush(ctx, rec)
	if err != nil {
		return "", err
	}

	m.segments++
	m.flushed = append(m.flushed, name)
	m.addEvent(&model.RideEvent{
		Type:    model.EventFlush,
		Title:   name,
		Summary: fmt.Sprintf("segment %d, %d samples", m.segments, len(m.samples)),
	})
	m.samples = nil
	return name, nil
}

// Active reports whether a session is running.
func (m *Manager) Active() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

// ID returns the active session id, or "".
func (m *Manager) ID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.active {
		return ""
	}
	return m.id
}

// Phase returns the current phase name, or "" while idle.
func (m *Manager) Phase() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.active {
		return ""
	}
	return string(m.machine.Current())
}

// Buffering reports whether the current tick's samples reach the
// buffer, which is what the gauge's recording dot reflects.
func (m *Manager) Buffering() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.active {
		return false
	}
	return m.shouldBuffer(m.machine.Current())
}

// Info returns a snapshot of the session state.
func (m *Manager) Info() *Info {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.infoLocked()
}

func (m *Manager) infoLocked() *Info {
	info := &Info{Active: m.active}
	if !m.active {
		return info
	}
	info.ID = m.id
	info.RideType = m.rideType
	info.StartedAt = m.startedAt
	info.Samples = len(m.samples)
	info.Segments = m.segments
	info.Phase = string(m.machine.Current())
	info.Flushed = append([]string(nil), m.flushed...)
	return info
}

// persistentState is the crash-recovery snapshot format.
type persistentState struct {
	ID        string         `json:"id"`
	RideType  model.RideType `json:"ride_type"`
	StartedAt time.Time      `json:"started_at"`
	VenueCell string         `json:"venue_cell,omitempty"`
	Baseline  *float64       `json:"baseline,omitempty"`
	Phase     string         `json:"phase"`
	Segments  int            `json:"segments"`
	Flushed   []string       `json:"flushed,omitempty"`
	Samples   []model.Sample `json:"samples"`
}

// PersistSnapshot saves the active session to the state store when it
// changed since the last save. Without an active session it clears any
// stale snapshot.
func (m *Manager) PersistSnapshot(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.active {
		if m.lastSnapshot != nil {
			m.lastSnapshot = nil
			return m.states.DeleteState(ctx, stateKey)
		}
		return nil
	}

	data, err := m.snapshotLocked()
	if err != nil {
		return err
	}
	if bytes.Equal(data, m.lastSnapshot) {
		return nil
	}
	if err := m.states.SetState(ctx, stateKey, string(data)); err != nil {
		return err
	}
	m.lastSnapshot = data
	slog.Debug("Session: snapshot saved", "id", m.id, "size", len(data))
	return nil
}

func (m *Manager) snapshotLocked() ([]byte, error) {
	ps := persistentState{
		ID:        m.id,
		RideType:  m.rideType,
		StartedAt: m.startedAt,
		VenueCell: m.venueCell,
		Phase:     string(m.machine.Current()),
		Segments:  m.segments,
		Flushed:   m.flushed,
		Samples:   m.samples,
	}
	if base, ok := m.tracker.Baseline(); ok {
		ps.Baseline = model.Float64(base)
	}
	return json.Marshal(ps)
}

// Restore rehydrates a session from snapshot data and resumes it.
func (m *Manager) Restore(ctx context.Context, data []byte) error {
	var ps persistentState
	if err := json.Unmarshal(data, &ps); err != nil {
		return fmt.Errorf("decode session snapshot: %w", err)
	}
	if !ps.RideType.Valid() || ps.ID == "" {
		return fmt.Errorf("session snapshot is incomplete")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active {
		return fmt.Errorf("session %s already active", m.id)
	}

	m.active = true
	m.id = ps.ID
	m.rideType = ps.RideType
	m.startedAt = ps.StartedAt
	m.samples = ps.Samples
	m.venueCell = ps.VenueCell
	m.segments = ps.Segments
	m.flushed = ps.Flushed
	m.autoSegment = ps.RideType == model.RideZip && m.provider.AutoSegment(ctx)
	m.machine = phase.NewMachine(ps.RideType, m.provider.ThresholdFpm(ctx, string(ps.RideType)), m.provider.RecoveryDelay(ctx))
	if ps.Phase != "" {
		enteredAt := ps.StartedAt
		if n := len(ps.Samples); n > 0 {
			enteredAt = ps.Samples[n-1].Time
		}
		m.machine.Resume(phase.Phase(ps.Phase), enteredAt)
	}

	m.tracker.Reset()
	if ps.Baseline != nil {
		m.tracker.SetBaseline(*ps.Baseline)
	}

	m.addEvent(&model.RideEvent{
		Type:    model.EventSession,
		Title:   "Session restored",
		Summary: fmt.Sprintf("%s, id %s, %d samples", ps.RideType.DisplayName(), shortID(ps.ID), len(ps.Samples)),
	})
	slog.Info("Session: restored from snapshot", "id", ps.ID, "samples", len(ps.Samples), "phase", ps.Phase)
	return nil
}

func (m *Manager) addEvent(event *model.RideEvent) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	logging.LogEvent(event)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

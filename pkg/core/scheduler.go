// Package core runs the sampling heartbeat: read the sensor, update
// the tracker, feed the session, publish telemetry, fire jobs.
package core

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"ridetrace/pkg/config"
	"ridetrace/pkg/logging"
	"ridetrace/pkg/metrics"
	"ridetrace/pkg/model"
	"ridetrace/pkg/sensor"
	"ridetrace/pkg/session"
	"ridetrace/pkg/tracker"
)

// TelemetrySink is an interface for consumers of the high-frequency
// telemetry stream.
type TelemetrySink interface {
	Update(t *model.Telemetry)
	UpdateState(s sensor.State)
}

// Scheduler manages the central heartbeat and scheduled jobs.
type Scheduler struct {
	provider config.Provider
	sensors  sensor.Provider
	tracker  *tracker.Tracker
	sessions *session.Manager
	sink     TelemetrySink
	metrics  *metrics.Recorder
	jobs     []Job

	lastState sensor.State
}

// NewScheduler creates a new Scheduler.
func NewScheduler(provider config.Provider, sensors sensor.Provider, trk *tracker.Tracker, sessions *session.Manager, sink TelemetrySink, m *metrics.Recorder) *Scheduler {
	return &Scheduler{
		provider: provider,
		sensors:  sensors,
		tracker:  trk,
		sessions: sessions,
		sink:     sink,
		metrics:  m,
		jobs:     []Job{},
	}
}

// AddJob registers a job.
func (s *Scheduler) AddJob(j Job) {
	s.jobs = append(s.jobs, j)
}

// Start runs the main loop. It blocks until context is cancelled.
// The sample interval is read once: changing the cadence mid-run would
// change the smoothing behavior.
func (s *Scheduler) Start(ctx context.Context) {
	interval := time.Duration(s.provider.AppConfig().Ticker.SampleInterval)
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	slog.Info("Scheduler started", "interval", interval)

	for {
		select {
		case <-ctx.Done():
			slog.Info("Scheduler stopped")
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	// 0. Broadcast sensor state
	state := s.sensors.State()
	if s.sink != nil {
		s.sink.UpdateState(state)
	}
	s.noteStateChange(state)

	// 1. Fetch a reading
	reading, err := s.sensors.Read(ctx)
	if err != nil {
		if !errors.Is(err, sensor.ErrNotReady) {
			s.metrics.TrackError(metrics.ComponentSampler)
			logging.TraceDefault("Sampler: read failed", "error", err)
		}
		return
	}
	s.metrics.TrackOK(metrics.ComponentSampler)

	// 2. Smooth and feed the session
	mo := s.tracker.Update(reading)
	s.sessions.Offer(ctx, mo)

	// 3. Broadcast to sink (API)
	tel := s.assemble(ctx, mo, state)
	if s.sink != nil {
		s.sink.Update(tel)
	}

	// 4. Evaluate jobs
	for _, job := range s.jobs {
		if job.ShouldFire(tel) {
			// Fire and forget
			go job.Run(ctx, tel)
		}
	}
}

// assemble builds the telemetry snapshot published to the sink. Outside
// a session the ride type falls back to the configured default so the
// gauge renders the right units before the first start.
func (s *Scheduler) assemble(ctx context.Context, mo tracker.Motion, state sensor.State) *model.Telemetry {
	info := s.sessions.Info()

	rideType := info.RideType
	if !info.Active {
		rideType = model.RideType(s.provider.DefaultRide(ctx))
	}

	return &model.Telemetry{
		Time:        mo.Time,
		RideType:    rideType,
		Altitude:    mo.Altitude,
		Rate:        mo.Rate,
		Speed:       mo.Speed,
		Heading:     mo.Heading,
		Lat:         mo.Lat,
		Lon:         mo.Lon,
		HasFix:      mo.HasFix,
		Phase:       info.Phase,
		SensorState: string(state),
		SessionID:   info.ID,
		Recording:   s.sessions.Buffering(),
	}
}

func (s *Scheduler) noteStateChange(state sensor.State) {
	if state == s.lastState {
		return
	}
	slog.Info("Sampler: sensor state changed", "from", string(s.lastState), "to", string(state))
	logging.LogEvent(&model.RideEvent{
		Timestamp: time.Now(),
		Type:      model.EventSensor,
		Title:     "Sensor " + string(state),
	})
	s.lastState = state
}

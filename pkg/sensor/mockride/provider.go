package mockride

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"ridetrace/pkg/config"
	"ridetrace/pkg/geo"
	"ridetrace/pkg/sensor"
)

// Physics tick.
const tickRateMs = 100

// Provider implements sensor.Provider with a deterministic physics
// loop driven by a scenario profile.
type Provider struct {
	mu       sync.Mutex
	reading  sensor.Reading
	ready    bool
	profile  Profile
	jitterFt float64
	heading  float64
	pos      geo.Point
	alt      float64
	speed    float64
	stopCh   chan struct{}
	wg       sync.WaitGroup

	stepIdx   int
	stepStart time.Time
}

// New creates a mock provider running the named built-in profile.
func New(profileName string, cfg config.MockRideConfig) (*Provider, error) {
	profile, err := ProfileByName(profileName, cfg)
	if err != nil {
		return nil, err
	}
	return NewWithProfile(profile, cfg), nil
}

// NewWithProfile creates a mock provider running the given scenario and
// starts its physics loop.
func NewWithProfile(profile Profile, cfg config.MockRideConfig) *Provider {
	p := &Provider{
		profile:  profile,
		jitterFt: cfg.JitterFt,
		heading:  cfg.StartHeading,
		pos:      geo.Point{Lat: cfg.StartLat, Lon: cfg.StartLon},
		alt:      cfg.StartAlt,
		stopCh:   make(chan struct{}),
	}

	p.wg.Add(1)
	go p.physicsLoop()
	return p
}

// Read returns the latest simulated reading. Before the first physics
// tick completes it returns sensor.ErrNotReady.
func (p *Provider) Read(ctx context.Context) (sensor.Reading, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.ready {
		return sensor.Reading{}, sensor.ErrNotReady
	}
	return p.reading, nil
}

// State reports the provider state. The mock warms up within one tick.
func (p *Provider) State() sensor.State {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.ready {
		return sensor.StateConnecting
	}
	return sensor.StateReady
}

// Close stops the physics loop and releases resources.
func (p *Provider) Close() error {
	close(p.stopCh)
	p.wg.Wait()
	return nil
}

func (p *Provider) physicsLoop() {
	defer p.wg.Done()
	ticker := time.NewTicker(time.Duration(tickRateMs) * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-p.stopCh:
			return
		case <-ticker.C:
			p.update()
		}
	}
}

func (p *Provider) update() {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := time.Now()
	dt := float64(tickRateMs) / 1000.0

	p.speed = 0
	if len(p.profile.Steps) > 0 {
		p.advance(dt, now)
	}

	r := sensor.Reading{
		Time:     now,
		Altitude: p.alt,
		HasFix:   p.profile.Fix,
	}
	if p.jitterFt > 0 {
		r.Altitude += (rand.Float64()*2 - 1) * p.jitterFt
	}
	if p.profile.Fix {
		r.Lat = p.pos.Lat
		r.Lon = p.pos.Lon
		spd := p.speed
		r.Speed = &spd
	}
	p.reading = r
	p.ready = true
}

func (p *Provider) advance(dt float64, now time.Time) {
	if p.stepIdx >= len(p.profile.Steps) {
		p.stepIdx = 0
		p.stepStart = time.Time{}
	}
	step := p.profile.Steps[p.stepIdx]

	switch step.Type {
	case StepWait:
		if p.stepStart.IsZero() {
			p.stepStart = now
		}
		if now.Sub(p.stepStart).Seconds() >= step.Duration {
			p.next()
		}

	case StepClimb, StepDrop:
		p.moveVertical(step, dt)

	case StepGlide:
		if p.moveVertical(step, dt) {
			// The next run heads off on a new bearing.
			p.heading = geo.NormalizeAngle(p.heading + 75)
			return
		}
		if step.Speed > 0 {
			distM := step.Speed / geo.MphPerMps * dt
			p.pos = geo.DestinationPoint(p.pos, distM, p.heading)
			p.speed = step.Speed
		}
	}
}

// moveVertical advances altitude toward the step target, snapping to it
// when the next increment would overshoot. Reports whether the target
// was reached.
func (p *Provider) moveVertical(step Step, dt float64) bool {
	delta := (step.Rate / 60.0) * dt

	reached := false
	if step.Rate > 0 {
		reached = p.alt+delta >= step.Target
	} else {
		reached = p.alt+delta <= step.Target
	}

	if reached {
		p.alt = step.Target
		p.next()
		return true
	}
	p.alt += delta
	return false
}

func (p *Provider) next() {
	p.stepIdx++
	p.stepStart = time.Time{}
}

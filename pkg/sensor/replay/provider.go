// Package replay feeds a persisted recording back as live sensor
// readings, for end-to-end testing and demos without hardware.
package replay

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"ridetrace/pkg/model"
	"ridetrace/pkg/recording"
	"ridetrace/pkg/sensor"
)

// ErrDone is returned by Read once the recording is exhausted.
var ErrDone = errors.New("replay finished")

// Provider walks the samples of a recording file at their recorded
// cadence, optionally compressed by a speed factor. Readings carry
// the recorded timestamps, so a tracker fed from this provider
// reproduces the recorded rate sequence. After the last sample the
// provider reports sensor.StateDisconnected.
type Provider struct {
	mu      sync.Mutex
	reading sensor.Reading
	ready   bool
	done    bool

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// New loads the recording at path and starts playback. speed scales
// the recorded cadence, 2.0 playing twice as fast; values <= 0 mean
// real time. The file name does not have to follow the recorder's
// naming scheme, any samples file works.
func New(path string, speed float64) (*Provider, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("replay: %w", err)
	}
	samples, err := recording.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("replay %s: %w", filepath.Base(path), err)
	}
	return NewFromSamples(samples, speed)
}

// NewFromSamples starts playback over an in-memory sample series.
func NewFromSamples(samples []model.Sample, speed float64) (*Provider, error) {
	if len(samples) == 0 {
		return nil, errors.New("replay: no samples")
	}
	if speed <= 0 {
		speed = 1.0
	}

	p := &Provider{stopCh: make(chan struct{})}
	p.wg.Add(1)
	go p.play(samples, speed)
	return p, nil
}

// Read returns the sample currently under the playback cursor.
func (p *Provider) Read(ctx context.Context) (sensor.Reading, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.done {
		return sensor.Reading{}, ErrDone
	}
	if !p.ready {
		return sensor.Reading{}, sensor.ErrNotReady
	}
	return p.reading, nil
}

// State reports Connecting until the first sample is published, Ready
// during playback and Disconnected once the recording ran out.
func (p *Provider) State() sensor.State {
	p.mu.Lock()
	defer p.mu.Unlock()
	switch {
	case p.done:
		return sensor.StateDisconnected
	case p.ready:
		return sensor.StateReady
	default:
		return sensor.StateConnecting
	}
}

// Close stops playback and releases resources.
func (p *Provider) Close() error {
	close(p.stopCh)
	p.wg.Wait()
	return nil
}

func (p *Provider) play(samples []model.Sample, speed float64) {
	defer p.wg.Done()

	for i := range samples {
		p.publish(samples[i])
		if i == len(samples)-1 {
			break
		}
		// Samples are validated non-decreasing, so the gap is never
		// negative.
		gap := time.Duration(float64(samples[i+1].Time.Sub(samples[i].Time)) / speed)
		if gap <= 0 {
			continue
		}
		select {
		case <-p.stopCh:
			return
		case <-time.After(gap):
		}
	}

	p.mu.Lock()
	p.done = true
	p.mu.Unlock()
}

func (p *Provider) publish(s model.Sample) {
	r := sensor.Reading{
		Time:     s.Time,
		Altitude: s.Altitude,
	}
	if s.Lat != nil && s.Lon != nil {
		r.Lat = *s.Lat
		r.Lon = *s.Lon
		r.HasFix = true
	}
	if s.Speed != nil {
		spd := *s.Speed
		r.Speed = &spd
	}

	p.mu.Lock()
	p.reading = r
	p.ready = true
	p.mu.Unlock()
}

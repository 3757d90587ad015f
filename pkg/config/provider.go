package config

import (
	"context"
	"strconv"
	"sync"
	"time"

	"ridetrace/pkg/store"
)

// Provider defines the interface for accessing unified configuration.
// Values that operators adjust at runtime go through the persistent
// registry with the static config as fallback.
type Provider interface {
	// Rides
	DefaultRide(ctx context.Context) string
	ThresholdFpm(ctx context.Context, rideType string) float64
	RecoveryDelay(ctx context.Context) time.Duration
	AutoSegment(ctx context.Context) bool

	// Streaming
	StreamInterval(ctx context.Context) time.Duration

	// Mirroring
	MirrorEnabled(ctx context.Context) bool

	// Mock sensor
	MockStartLat(ctx context.Context) float64
	MockStartLon(ctx context.Context) float64
	MockStartAlt(ctx context.Context) float64
	MockStartHeading(ctx context.Context) float64

	// Raw access (for components that need deep access)
	AppConfig() *Config
}

// UnifiedProvider implements Provider by bridging static Config and
// persistent Store.
type UnifiedProvider struct {
	mu    sync.RWMutex
	base  *Config
	store store.StateStore
}

// NewProvider creates a new UnifiedProvider.
func NewProvider(base *Config, st store.StateStore) *UnifiedProvider {
	return &UnifiedProvider{
		base:  base,
		store: st,
	}
}

func (p *UnifiedProvider) AppConfig() *Config {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.base
}

// Reload swaps the static base config, keeping registry overrides
// intact. Used when the config file changes on disk.
func (p *UnifiedProvider) Reload(base *Config) {
	p.mu.Lock()
	p.base = base
	p.mu.Unlock()
}

// --- Implementations ---

func (p *UnifiedProvider) DefaultRide(ctx context.Context) string {
	fallback := p.AppConfig().Ride.DefaultType
	if fallback == "" {
		fallback = "drop"
	}
	val := p.getString(ctx, KeyDefaultRide, fallback)
	if val != "drop" && val != "zip" {
		return fallback
	}
	return val
}

func (p *UnifiedProvider) ThresholdFpm(ctx context.Context, rideType string) float64 {
	base := p.AppConfig()

	var key string
	var fallback float64
	if rideType == "zip" {
		key, fallback = KeyZipThresholdFpm, base.Ride.Zip.ThresholdFpm
	} else {
		key, fallback = KeyDropThresholdFpm, base.Ride.Drop.ThresholdFpm
	}

	val := p.getFloat64(ctx, key, fallback)
	// A non-negative threshold would never arm the detector.
	if val >= 0 {
		return fallback
	}
	return val
}

func (p *UnifiedProvider) RecoveryDelay(ctx context.Context) time.Duration {
	return p.getDuration(ctx, KeyRecoveryDelay, time.Duration(p.AppConfig().Ride.RecoveryDelay))
}

func (p *UnifiedProvider) AutoSegment(ctx context.Context) bool {
	return p.getBool(ctx, KeyAutoSegment, p.AppConfig().Ride.AutoSegment)
}

func (p *UnifiedProvider) StreamInterval(ctx context.Context) time.Duration {
	return p.getDuration(ctx, KeyStreamInterval, time.Duration(p.AppConfig().Ticker.StreamInterval))
}

func (p *UnifiedProvider) MirrorEnabled(ctx context.Context) bool {
	return p.getBool(ctx, KeyMirrorEnabled, p.AppConfig().Mirror.Enabled)
}

func (p *UnifiedProvider) MockStartLat(ctx context.Context) float64 {
	return p.getFloat64(ctx, KeyMockStartLat, p.AppConfig().Sensor.Mock.StartLat)
}

func (p *UnifiedProvider) MockStartLon(ctx context.Context) float64 {
	return p.getFloat64(ctx, KeyMockStartLon, p.AppConfig().Sensor.Mock.StartLon)
}

func (p *UnifiedProvider) MockStartAlt(ctx context.Context) float64 {
	return p.getFloat64(ctx, KeyMockStartAlt, p.AppConfig().Sensor.Mock.StartAlt)
}

func (p *UnifiedProvider) MockStartHeading(ctx context.Context) float64 {
	return p.getFloat64(ctx, KeyMockStartHeading, p.AppConfig().Sensor.Mock.StartHeading)
}

// --- Helpers ---

func (p *UnifiedProvider) getString(ctx context.Context, key, fallback string) string {
	if p.store != nil {
		if val, ok := p.store.GetState(ctx, key); ok && val != "" {
			return val
		}
	}
	return fallback
}

func (p *UnifiedProvider) getFloat64(ctx context.Context, key string, fallback float64) float64 {
	if p.store != nil {
		if val, ok := p.store.GetState(ctx, key); ok && val != "" {
			if f, err := strconv.ParseFloat(val, 64); err == nil {
				return f
			}
		}
	}
	return fallback
}

func (p *UnifiedProvider) getBool(ctx context.Context, key string, fallback bool) bool {
	if p.store != nil {
		if val, ok := p.store.GetState(ctx, key); ok && val != "" {
			return val == "true"
		}
	}
	return fallback
}

func (p *UnifiedProvider) getDuration(ctx context.Context, key string, fallback time.Duration) time.Duration {
	if p.store != nil {
		if val, ok := p.store.GetState(ctx, key); ok && val != "" {
			if dur, err := ParseDuration(val); err == nil && dur > 0 {
				return dur
			}
		}
	}
	return fallback
}

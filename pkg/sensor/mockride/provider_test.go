package mockride

import (
	"context"
	"errors"
	"testing"
	"time"

	"ridetrace/pkg/config"
	"ridetrace/pkg/geo"
	"ridetrace/pkg/sensor"
)

func waitFor(t *testing.T, check func() bool, timeout time.Duration, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if check() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Errorf("Timeout waiting for: %s", msg)
}

func testCfg() config.MockRideConfig {
	return config.MockRideConfig{
		StartLat:     35.0,
		StartLon:     -84.0,
		StartAlt:     1200.0,
		StartHeading: 90.0,
		JitterFt:     0,
		GlideLength:  config.Distance(400),
	}
}

func TestWarmup(t *testing.T) {
	p := NewWithProfile(DropProfile(1200), testCfg())
	defer p.Close()

	ctx := context.Background()

	// Before the first tick the only acceptable failure is ErrNotReady.
	if _, err := p.Read(ctx); err != nil && !errors.Is(err, sensor.ErrNotReady) {
		t.Errorf("Read() before warmup: unexpected error %v", err)
	}

	waitFor(t, func() bool {
		_, err := p.Read(ctx)
		return err == nil && p.State() == sensor.StateReady
	}, 2*time.Second, "provider ready")
}

func TestDropCycle(t *testing.T) {
	// Compressed cycle so that hoist, fall, and re-arm all fit in a
	// couple of seconds of test time.
	profile := Profile{
		Name: "drop",
		Steps: []Step{
			{Type: StepClimb, Target: 1430.0, Rate: 30000.0},
			{Type: StepWait, Duration: 0.3},
			{Type: StepDrop, Target: 1200.0, Rate: -30000.0},
			{Type: StepWait, Duration: 0.3},
		},
	}
	p := NewWithProfile(profile, testCfg())
	defer p.Close()

	ctx := context.Background()

	waitFor(t, func() bool {
		r, err := p.Read(ctx)
		return err == nil && r.Altitude >= 1430.0
	}, 3*time.Second, "hoist to the top")

	waitFor(t, func() bool {
		r, err := p.Read(ctx)
		return err == nil && r.Altitude <= 1200.0
	}, 3*time.Second, "fall back to the platform")

	r, err := p.Read(ctx)
	if err != nil {
		t.Fatalf("Read() error: %v", err)
	}
	if r.HasFix {
		t.Errorf("drop tower reading should not carry a GPS fix")
	}
	if r.Speed != nil {
		t.Errorf("drop tower reading should have nil speed, got %v", *r.Speed)
	}
}

func TestDropSnapToTarget(t *testing.T) {
	profile := Profile{
		Name: "drop",
		Steps: []Step{
			{Type: StepClimb, Target: 1430.0, Rate: 30000.0},
			{Type: StepWait, Duration: 60},
		},
	}
	p := NewWithProfile(profile, testCfg())
	defer p.Close()

	ctx := context.Background()
	waitFor(t, func() bool {
		r, err := p.Read(ctx)
		// Snap means the hold altitude is exactly the target, not an
		// overshoot from the last increment.
		return err == nil && r.Altitude == 1430.0
	}, 3*time.Second, "snap to climb target")
}

func TestZipGlide(t *testing.T) {
	profile := Profile{
		Name: "zip",
		Fix:  true,
		Steps: []Step{
			{Type: StepGlide, Target: 1070.0, Rate: -6000.0, Speed: 33.0},
			{Type: StepWait, Duration: 60},
		},
	}
	cfg := testCfg()
	p := NewWithProfile(profile, cfg)
	defer p.Close()

	ctx := context.Background()
	start := geo.Point{Lat: cfg.StartLat, Lon: cfg.StartLon}

	// Mid-glide: losing altitude, moving down the line, speed reported.
	waitFor(t, func() bool {
		r, err := p.Read(ctx)
		if err != nil || !r.HasFix || r.Speed == nil {
			return false
		}
		moved := geo.Distance(start, geo.Point{Lat: r.Lat, Lon: r.Lon})
		return r.Altitude < 1190.0 && moved > 5.0 && *r.Speed == 33.0
	}, 3*time.Second, "glide in progress")

	// End of run: snapped to the lower platform, speed back to zero.
	waitFor(t, func() bool {
		r, err := p.Read(ctx)
		return err == nil && r.Altitude == 1070.0 && r.Speed != nil && *r.Speed == 0
	}, 5*time.Second, "arrival at the lower platform")
}

func TestProfileByName(t *testing.T) {
	cfg := testCfg()

	tests := []struct {
		name    string
		wantFix bool
		wantErr bool
	}{
		{"drop", false, false},
		{"zip", true, false},
		{"coaster", false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			profile, err := ProfileByName(tt.name, cfg)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ProfileByName(%q) expected error", tt.name)
				}
				return
			}
			if err != nil {
				t.Fatalf("ProfileByName(%q) error: %v", tt.name, err)
			}
			if profile.Fix != tt.wantFix {
				t.Errorf("profile %q Fix = %v, want %v", tt.name, profile.Fix, tt.wantFix)
			}
			if len(profile.Steps) == 0 {
				t.Errorf("profile %q has no steps", tt.name)
			}
		})
	}
}

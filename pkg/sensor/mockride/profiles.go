package mockride

import (
	"fmt"

	"ridetrace/pkg/config"
	"ridetrace/pkg/geo"
)

// StepType identifies one kind of scenario step.
type StepType string

const (
	StepClimb StepType = "CLIMB"
	StepWait  StepType = "WAIT"
	StepDrop  StepType = "DROP"
	StepGlide StepType = "GLIDE"
)

// Step is one segment of a motion scenario. Target is an absolute
// altitude in feet (CLIMB, DROP, GLIDE), Rate a vertical rate in ft/min,
// Duration seconds (WAIT), Speed a ground speed in mph (GLIDE).
type Step struct {
	Type     StepType
	Target   float64
	Rate     float64
	Duration float64
	Speed    float64
}

// Profile is a repeating motion scenario for the mock sensor. Fix
// reports whether the simulated platform has a GPS fix; without one,
// readings carry altitude only.
type Profile struct {
	Name  string
	Fix   bool
	Steps []Step
}

// ProfileByName returns the named built-in profile, parameterized by
// the configured start position.
func ProfileByName(name string, cfg config.MockRideConfig) (Profile, error) {
	switch name {
	case "drop":
		return DropProfile(cfg.StartAlt), nil
	case "zip":
		return ZipProfile(cfg.StartAlt, cfg.GlideLength.Meters()), nil
	}
	return Profile{}, fmt.Errorf("unknown mock profile %q", name)
}

// DropProfile simulates a drop tower cycle: slow hoist to the top, a
// pause at altitude, a braked fall back to the platform, then boarding
// time before the next cycle.
func DropProfile(baseAlt float64) Profile {
	return Profile{
		Name: "drop",
		Steps: []Step{
			{Type: StepWait, Duration: 4},
			{Type: StepClimb, Target: baseAlt + 230, Rate: 450},
			{Type: StepWait, Duration: 4},
			{Type: StepDrop, Target: baseAlt, Rate: -4200},
			{Type: StepWait, Duration: 10},
		},
	}
}

// ZipProfile simulates repeated zipline runs: wait on the platform,
// glide down the line, unclip, ride the lift back up. Vertical rate and
// run length derive from the configured line length at a fixed line
// speed, so a longer line means a longer, shallower run.
func ZipProfile(topAlt float64, lineMeters float64) Profile {
	if lineMeters <= 0 {
		lineMeters = 400
	}
	const lineSpeedMps = 15.0
	const dropFt = 130.0
	runSeconds := lineMeters / lineSpeedMps
	return Profile{
		Name: "zip",
		Fix:  true,
		Steps: []Step{
			{Type: StepWait, Duration: 6},
			{
				Type:   StepGlide,
				Target: topAlt - dropFt,
				Rate:   -(dropFt / runSeconds) * 60.0,
				Speed:  lineSpeedMps * geo.MphPerMps,
			},
			{Type: StepWait, Duration: 8},
			{Type: StepClimb, Target: topAlt, Rate: 600},
		},
	}
}

package model

import (
	"fmt"
	"strings"
)

// RideType identifies which kind of ride a session or recording tracks.
type RideType string

const (
	// RideDrop is a drop tower: a slow vertical ascent followed by a
	// braked free fall back to the base.
	RideDrop RideType = "drop"
	// RideZip is a zipline: one or more gravity-driven descents between
	// platforms, usually with horizontal movement.
	RideZip RideType = "zip"
)

// ParseRideType maps user-facing spellings onto a RideType.
func ParseRideType(s string) (RideType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "drop", "drop-tower", "droptower", "tower":
		return RideDrop, nil
	case "zip", "zipline", "zip-line":
		return RideZip, nil
	default:
		return "", fmt.Errorf("unknown ride type %q", s)
	}
}

// Valid reports whether r is one of the known ride types.
func (r RideType) Valid() bool {
	return r == RideDrop || r == RideZip
}

// DisplayName returns a label suitable for UI surfaces.
func (r RideType) DisplayName() string {
	switch r {
	case RideDrop:
		return "Drop Tower"
	case RideZip:
		return "Zipline"
	default:
		return string(r)
	}
}

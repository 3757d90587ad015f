package geo

import (
	"fmt"

	h3 "github.com/uber/h3-go/v4"
)

// VenueResolution is the H3 resolution used to tag recordings with the
// venue they were captured at. Resolution 7 cells are roughly 5 km²,
// wide enough to cover a whole park while still separating venues.
const VenueResolution = 7

// VenueCell returns the H3 cell index (as a hex string) covering the
// given coordinate at VenueResolution.
func VenueCell(lat, lon float64) (string, error) {
	cell, err := h3.LatLngToCell(h3.NewLatLng(lat, lon), VenueResolution)
	if err != nil {
		return "", fmt.Errorf("failed to derive venue cell: %w", err)
	}
	return cell.String(), nil
}

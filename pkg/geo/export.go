package geo

import (
	"errors"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"ridetrace/pkg/model"
)

// ErrNoTrack is returned when a recording carries no location fixes.
// This is the normal case for drop tower rides.
var ErrNoTrack = errors.New("recording has no location track")

// Track converts a recording's location fixes into a GeoJSON feature
// collection: the ground track as a LineString plus start and end
// markers. The end marker carries the ride statistics.
func Track(rec *model.Recording) (*geojson.FeatureCollection, error) {
	var line orb.LineString
	for _, s := range rec.Samples {
		if s.Lat == nil || s.Lon == nil {
			continue
		}
		line = append(line, orb.Point{*s.Lon, *s.Lat})
	}
	if len(line) < 2 {
		return nil, ErrNoTrack
	}

	fc := geojson.NewFeatureCollection()

	track := geojson.NewFeature(line)
	track.Properties["started_at"] = rec.StartedAt.Format(time.RFC3339)
	track.Properties["ride_type"] = string(rec.RideType)
	if rec.VenueCell != "" {
		track.Properties["venue_cell"] = rec.VenueCell
	}
	fc.Append(track)

	start := geojson.NewFeature(line[0])
	start.Properties["role"] = "start"
	fc.Append(start)

	stats := model.ComputeStats(rec.Samples)
	end := geojson.NewFeature(line[len(line)-1])
	end.Properties["role"] = "end"
	end.Properties["max_altitude"] = stats.MaxAltitude
	end.Properties["duration_sec"] = stats.Duration
	end.Properties["peak_descent_rate"] = stats.PeakDescentRate
	if stats.MaxSpeed != nil {
		end.Properties["max_speed"] = *stats.MaxSpeed
	}
	fc.Append(end)

	return fc, nil
}

package geo

import (
	"errors"
	"testing"
	"time"

	"ridetrace/pkg/model"
)

func zipRecording() *model.Recording {
	base := time.Date(2026, 7, 14, 12, 0, 0, 0, time.UTC)
	return &model.Recording{
		ID:       "zip_20260714-120000",
		RideType: model.RideZip,
		Samples: []model.Sample{
			{Time: base, Altitude: 120, Rate: 0, Speed: model.Float64(0), Lat: model.Float64(35.0312), Lon: model.Float64(-84.3716)},
			{Time: base.Add(time.Second), Altitude: 110, Rate: -600, Speed: model.Float64(22), Lat: model.Float64(35.0310), Lon: model.Float64(-84.3710)},
			{Time: base.Add(2 * time.Second), Altitude: 100, Rate: -600, Speed: model.Float64(24), Lat: model.Float64(35.0308), Lon: model.Float64(-84.3704)},
		},
	}
}

func TestTrackExport(t *testing.T) {
	fc, err := Track(zipRecording())
	if err != nil {
		t.Fatalf("Track failed: %v", err)
	}
	if len(fc.Features) != 3 {
		t.Fatalf("Expected 3 features (line, start, end), got %d", len(fc.Features))
	}

	if fc.Features[0].Properties["ride_type"] != "zip" {
		t.Errorf("Expected ride_type zip, got %v", fc.Features[0].Properties["ride_type"])
	}
	if fc.Features[1].Properties["role"] != "start" {
		t.Errorf("Expected start marker, got %v", fc.Features[1].Properties["role"])
	}
	end := fc.Features[2]
	if end.Properties["role"] != "end" {
		t.Errorf("Expected end marker, got %v", end.Properties["role"])
	}
	if end.Properties["max_speed"] != 24.0 {
		t.Errorf("Expected max_speed 24, got %v", end.Properties["max_speed"])
	}
}

func TestTrackExportNoFixes(t *testing.T) {
	rec := &model.Recording{
		ID:       "drop_20260714-120000",
		RideType: model.RideDrop,
		Samples: []model.Sample{
			{Time: time.Now(), Altitude: 0, Rate: 0},
			{Time: time.Now().Add(time.Second), Altitude: 10, Rate: 600},
		},
	}

	if _, err := Track(rec); !errors.Is(err, ErrNoTrack) {
		t.Errorf("Expected ErrNoTrack for drop recording, got %v", err)
	}
}

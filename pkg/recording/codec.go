package recording

import (
	"encoding/json"
	"fmt"

	"ridetrace/pkg/model"
)

// Marshal renders samples in the on-disk format: a pretty-printed JSON
// array with two-space indent. The array form (no wrapper object) is
// what the watch client parses, so it stays fixed.
func Marshal(samples []model.Sample) ([]byte, error) {
	if samples == nil {
		samples = []model.Sample{}
	}
	return json.MarshalIndent(samples, "", "  ")
}

// Unmarshal decodes an on-disk sample array and validates that the
// timestamps never decrease.
func Unmarshal(data []byte) ([]model.Sample, error) {
	var samples []model.Sample
	if err := json.Unmarshal(data, &samples); err != nil {
		return nil, fmt.Errorf("decode samples: %w", err)
	}
	for i := 1; i < len(samples); i++ {
		if samples[i].Time.Before(samples[i-1].Time) {
			return nil, fmt.Errorf("samples out of order at index %d", i)
		}
	}
	return samples, nil
}

// Normalize enforces the per-ride-type sample shape before writing:
// drop tower samples carry no position and an explicit null speed, no
// matter what the sensor reported.
func Normalize(rideType model.RideType, samples []model.Sample) {
	if rideType != model.RideDrop {
		return
	}
	for i := range samples {
		samples[i].Speed = nil
		samples[i].Lat = nil
		samples[i].Lon = nil
	}
}

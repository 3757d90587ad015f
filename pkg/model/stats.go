package model

// ClimbRateFloor is the smoothed rate (ft/min) a sample must fall below
// to count as the start of the descent when deriving ClimbDuration.
const ClimbRateFloor = -10.0

// Stats summarizes a sample series for listings and the post-ride
// summary screen. Durations are in seconds. ClimbDuration is nil when
// the series never descends; MaxSpeed is nil when no sample carried a
// ground speed.
type Stats struct {
	MaxAltitude     float64  `json:"max_altitude"`
	AvgDescentRate  float64  `json:"avg_descent_rate"`
	PeakDescentRate float64  `json:"peak_descent_rate"`
	Duration        float64  `json:"duration_sec"`
	ClimbDuration   *float64 `json:"climb_duration_sec,omitempty"`
	MaxSpeed        *float64 `json:"max_speed,omitempty"`
	Samples         int      `json:"samples"`
}

// ComputeStats derives summary statistics from an ordered sample series
// in a single pass. The input is never mutated.
//
// AvgDescentRate is the mean over every sample's rate, so a ride that
// spends most of its time climbing averages positive. PeakDescentRate
// is the most negative rate observed, 0 when the series never descends.
// ClimbDuration is the offset of the first sample whose rate falls
// below ClimbRateFloor.
func ComputeStats(samples []Sample) Stats {
	st := Stats{Samples: len(samples)}
	if len(samples) == 0 {
		return st
	}

	st.MaxAltitude = samples[0].Altitude
	var rateSum float64

	for _, s := range samples {
		if s.Altitude > st.MaxAltitude {
			st.MaxAltitude = s.Altitude
		}
		rateSum += s.Rate
		if s.Rate < st.PeakDescentRate {
			st.PeakDescentRate = s.Rate
		}
		if s.Speed != nil && (st.MaxSpeed == nil || *s.Speed > *st.MaxSpeed) {
			st.MaxSpeed = Float64(*s.Speed)
		}
		if st.ClimbDuration == nil && s.Rate < ClimbRateFloor {
			st.ClimbDuration = Float64(s.Time.Sub(samples[0].Time).Seconds())
		}
	}

	st.AvgDescentRate = rateSum / float64(len(samples))
	st.Duration = samples[len(samples)-1].Time.Sub(samples[0].Time).Seconds()
	return st
}

package config

// Persistent state keys (Registry). Values written under these keys
// override the static config until deleted.
const (
	KeyDefaultRide      = "default_ride"
	KeyDropThresholdFpm = "drop_threshold_fpm"
	KeyZipThresholdFpm  = "zip_threshold_fpm"
	KeyRecoveryDelay    = "recovery_delay"
	KeyAutoSegment      = "auto_segment"
	KeyStreamInterval   = "stream_interval"
	KeyMirrorEnabled    = "mirror_enabled"
	KeyMockStartLat     = "mock_start_lat"
	KeyMockStartLon     = "mock_start_lon"
	KeyMockStartAlt     = "mock_start_alt"
	KeyMockStartHeading = "mock_start_heading"
)

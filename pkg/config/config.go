// Package config loads and persists the ridetrace YAML configuration
// and exposes a Provider that layers runtime overrides on top of the
// static file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the application configuration.
type Config struct {
	Log     LogConfig     `yaml:"log"`
	DB      DBConfig      `yaml:"db"`
	Server  ServerConfig  `yaml:"server"`
	Data    DataConfig    `yaml:"data"`
	Ticker  TickerConfig  `yaml:"ticker"`
	Ride    RideConfig    `yaml:"ride"`
	Sensor  SensorConfig  `yaml:"sensor"`
	Session SessionConfig `yaml:"session"`
	Mirror  MirrorConfig  `yaml:"mirror"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Server   LogSettings `yaml:"server"`
	Requests LogSettings `yaml:"requests"`
	Events   LogSettings `yaml:"events"`
}

// LogSettings holds settings for a specific logger.
type LogSettings struct {
	Path  string `yaml:"path"`
	Level string `yaml:"level"`
}

// DBConfig holds database settings.
type DBConfig struct {
	Path string `yaml:"path"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Address string `yaml:"address"`
}

// DataConfig holds data directory settings.
type DataConfig struct {
	RecordingsDir string `yaml:"recordings_dir"`
}

// TickerConfig holds sampling and streaming intervals.
type TickerConfig struct {
	SampleInterval Duration `yaml:"sample_interval"`
	StreamInterval Duration `yaml:"stream_interval"`
}

// RideConfig holds phase detection settings.
type RideConfig struct {
	DefaultType   string         `yaml:"default_type"`
	RecoveryDelay Duration       `yaml:"recovery_delay"`
	AutoSegment   bool           `yaml:"auto_segment"`
	Drop          RideTypeConfig `yaml:"drop"`
	Zip           RideTypeConfig `yaml:"zip"`
}

// RideTypeConfig holds per-ride-type thresholds.
type RideTypeConfig struct {
	// ThresholdFpm is the smoothed descent rate (ft/min, negative)
	// below which the ride counts as descending.
	ThresholdFpm float64 `yaml:"threshold_fpm"`
}

// SensorConfig holds settings for the motion sensor source.
type SensorConfig struct {
	// Provider selects the sensor source: "mock:<profile>" or
	// "replay:<file>".
	Provider string         `yaml:"provider"`
	Mock     MockRideConfig `yaml:"mock"`
}

// MockRideConfig holds settings for the simulated sensor.
type MockRideConfig struct {
	StartLat     float64  `yaml:"start_lat"`
	StartLon     float64  `yaml:"start_lon"`
	StartAlt     float64  `yaml:"start_alt"`
	StartHeading float64  `yaml:"start_heading"`
	JitterFt     float64  `yaml:"jitter_ft"`
	GlideLength  Distance `yaml:"glide_length"`
}

// SessionConfig holds session lifecycle settings.
type SessionConfig struct {
	SnapshotInterval Duration `yaml:"snapshot_interval"`
	RestoreMaxAge    Duration `yaml:"restore_max_age"`
}

// MirrorConfig holds settings for mirroring recordings to the paired
// device directory. An empty Dir disables mirroring regardless of
// Enabled.
type MirrorConfig struct {
	Enabled   bool     `yaml:"enabled"`
	Dir       string   `yaml:"dir"`
	Interval  Duration `yaml:"interval"`
	QueueSize int      `yaml:"queue_size"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Log: LogConfig{
			Server: LogSettings{
				Path:  "./logs/ridetrace.log",
				Level: "INFO",
			},
			Requests: LogSettings{
				Path:  "./logs/requests.log",
				Level: "INFO",
			},
			Events: LogSettings{
				Path:  "./logs/events.log",
				Level: "INFO",
			},
		},
		DB: DBConfig{
			Path: "./data/ridetrace.db",
		},
		Server: ServerConfig{
			Address: "localhost:2270",
		},
		Data: DataConfig{
			RecordingsDir: "./data/recordings",
		},
		Ticker: TickerConfig{
			SampleInterval: Duration(100 * time.Millisecond),
			StreamInterval: Duration(250 * time.Millisecond),
		},
		Ride: RideConfig{
			DefaultType:   "drop",
			RecoveryDelay: Duration(3 * time.Second),
			AutoSegment:   true,
			Drop: RideTypeConfig{
				ThresholdFpm: -250.0,
			},
			Zip: RideTypeConfig{
				ThresholdFpm: -20.0,
			},
		},
		Sensor: SensorConfig{
			Provider: "mock:drop",
			Mock: MockRideConfig{
				StartLat:     35.0312,
				StartLon:     -84.3716,
				StartAlt:     1200.0,
				StartHeading: 120.0,
				JitterFt:     1.5,
				GlideLength:  Distance(400), // 400m
			},
		},
		Session: SessionConfig{
			SnapshotInterval: Duration(30 * time.Second),
			RestoreMaxAge:    Duration(10 * time.Minute),
		},
		Mirror: MirrorConfig{
			Enabled:   true,
			Dir:       "",
			Interval:  Duration(10 * time.Second),
			QueueSize: 32,
		},
	}
}

// Load loads the configuration from the given path.
// If the file does not exist, it creates it with default values.
// If the file exists, it merges defaults with existing values but does
// NOT save back to disk (to preserve user formatting and comments).
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	if _, err := os.Stat(path); err == nil {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	} else {
		// If file does not exist, save defaults
		if err := Save(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to save config file: %w", err)
		}
	}

	// Load from Env if empty (as a fallback, but do NOT save back to disk)
	if cfg.Mirror.Dir == "" {
		if dir := os.Getenv("RIDETRACE_MIRROR_DIR"); dir != "" {
			cfg.Mirror.Dir = dir
		}
	}
	if cfg.Data.RecordingsDir == "" {
		if dir := os.Getenv("RIDETRACE_DATA_DIR"); dir != "" {
			cfg.Data.RecordingsDir = dir
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if _, err := parseDefaultRide(c.Ride.DefaultType); err != nil {
		return fmt.Errorf("invalid ride.default_type: %w", err)
	}
	if c.Ride.Drop.ThresholdFpm >= 0 {
		return fmt.Errorf("ride.drop.threshold_fpm must be negative, got %v", c.Ride.Drop.ThresholdFpm)
	}
	if c.Ride.Zip.ThresholdFpm >= 0 {
		return fmt.Errorf("ride.zip.threshold_fpm must be negative, got %v", c.Ride.Zip.ThresholdFpm)
	}
	if c.Ticker.SampleInterval <= 0 {
		return fmt.Errorf("ticker.sample_interval must be positive")
	}
	return nil
}

func parseDefaultRide(s string) (string, error) {
	switch s {
	case "drop", "zip":
		return s, nil
	}
	return "", fmt.Errorf("must be 'drop' or 'zip', got %q", s)
}

// Save writes the configuration to the path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte(`# RideTrace Configuration
# ----------------------
# Supported Units:
#   Duration: ns, us (or µs), ms, s, m, h, d (day), w (week)
#   Distance: m (meters), km (kilometers), ft (feet), nm (nautical miles)

`)
	data = append(header, data...)

	// Inject comments for Enum fields
	// We use regex to find the keys with indentation to ensure we place comments correctly.

	// Sensor Provider Options
	reProvider := regexp.MustCompile(`(?m)^(\s+)provider:`)
	data = reProvider.ReplaceAll(data, []byte("${1}# Options: mock:<profile>, replay:<file> (profiles: drop, zip)\n${1}provider:"))

	// Default Ride Options
	reRide := regexp.MustCompile(`(?m)^(\s+)default_type:`)
	data = reRide.ReplaceAll(data, []byte("${1}# Options: drop, zip\n${1}default_type:"))

	// Threshold sign reminder
	reThreshold := regexp.MustCompile(`(?m)^(\s+)threshold_fpm:`)
	data = reThreshold.ReplaceAll(data, []byte("${1}# Negative: ft/min of descent that arms the detector\n${1}threshold_fpm:"))

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// GenerateDefault creates a default config file at the given path.
// Returns nil if the file already exists.
func GenerateDefault(path string) error {
	// Check if file already exists
	if _, err := os.Stat(path); err == nil {
		return nil // File exists, do nothing
	}

	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// Write default config
	return Save(path, DefaultConfig())
}

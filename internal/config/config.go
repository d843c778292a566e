// Package config handles feedback engine configuration loading and management.
package config

import "time"

// Config holds all engine settings. The engine only ever reads a snapshot;
// edits go through Sanitize and a fresh pointer.
type Config struct {
	Proximity ProximityConfig `yaml:"proximity"`
	Audio     AudioConfig     `yaml:"audio"`
	Haptics   HapticsConfig   `yaml:"haptics"`
	Eviction  EvictionConfig  `yaml:"eviction"`
	Pipeline  PipelineConfig  `yaml:"pipeline"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ProximityConfig holds the distance thresholds that drive safety levels.
type ProximityConfig struct {
	TooCloseDistance float32       `yaml:"too_close_distance"` // Alert burst gate
	NearDistance     float32       `yaml:"near_distance"`
	MediumDistance   float32       `yaml:"medium_distance"`
	MaxDistance      float32       `yaml:"max_distance"` // Obstacle search radius
	Hysteresis       float32       `yaml:"hysteresis"`   // Fraction of each threshold
	AlertRearm       time.Duration `yaml:"alert_rearm"`
	FOVCosine        float32       `yaml:"fov_cosine"` // Forward cone, -0.5 is ~150 degrees
}

// AudioConfig holds spatial tone settings.
type AudioConfig struct {
	Enabled          bool    `yaml:"enabled"`
	LowFrequency     float64 `yaml:"low_frequency"`
	MediumFrequency  float64 `yaml:"medium_frequency"`
	HighFrequency    float64 `yaml:"high_frequency"`
	VolumeMultiplier float32 `yaml:"volume_multiplier"`
	AmbientVolume    float32 `yaml:"ambient_volume"`
	MaxSourceOffset  float32 `yaml:"max_source_offset"`
	HeadTracking     bool    `yaml:"head_tracking"`
}

// HapticsConfig holds vibration curve settings.
type HapticsConfig struct {
	Enabled             bool          `yaml:"enabled"`
	StartDistance       float32       `yaml:"start_distance"`
	IntensityMultiplier float32       `yaml:"intensity_multiplier"`
	Exponent            float32       `yaml:"exponent"`
	AlertPulses         int           `yaml:"alert_pulses"`
	AlertSpacing        time.Duration `yaml:"alert_spacing"`
}

// EvictionConfig holds mesh store eviction settings. A zero interval or
// movement threshold disables that trigger.
type EvictionConfig struct {
	ResetInterval     time.Duration `yaml:"reset_interval"`
	MovementThreshold float32       `yaml:"movement_threshold"`
	RelevanceRadius   float32       `yaml:"relevance_radius"`
	FilterEveryFrames int           `yaml:"filter_every_frames"`
}

// PipelineConfig holds runtime sizing.
type PipelineConfig struct {
	CommandQueueSize int `yaml:"command_queue_size"`
	StatsWindow      int `yaml:"stats_window"` // Frames kept for timing stats
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	LogFile string `yaml:"log_file"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Proximity: ProximityConfig{
			TooCloseDistance: 0.25,
			NearDistance:     1.0,
			MediumDistance:   2.0,
			MaxDistance:      5.0,
			Hysteresis:       0.05,
			AlertRearm:       300 * time.Millisecond,
			FOVCosine:        -0.5,
		},
		Audio: AudioConfig{
			Enabled:          true,
			LowFrequency:     440,
			MediumFrequency:  660,
			HighFrequency:    880,
			VolumeMultiplier: 1.0,
			AmbientVolume:    0.1,
			MaxSourceOffset:  2.0,
			HeadTracking:     true,
		},
		Haptics: HapticsConfig{
			Enabled:             true,
			StartDistance:       3.0,
			IntensityMultiplier: 1.0,
			Exponent:            0.5,
			AlertPulses:         3,
			AlertSpacing:        150 * time.Millisecond,
		},
		Eviction: EvictionConfig{
			ResetInterval:     5 * time.Minute,
			MovementThreshold: 50,
			RelevanceRadius:   15,
			FilterEveryFrames: 10,
		},
		Pipeline: PipelineConfig{
			CommandQueueSize: 64,
			StatsWindow:      300,
		},
		Logging: LoggingConfig{
			Level:   "info",
			LogFile: "",
		},
	}
}

// Clone returns a deep copy.
func (c *Config) Clone() *Config {
	cp := *c
	return &cp
}

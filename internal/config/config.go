// Package config handles scanner configuration loading and management.
package config

import "time"

// Config holds all scanner settings.
type Config struct {
	Scan       ScanConfig       `yaml:"scan"`
	Fit        FitConfig        `yaml:"fit"`
	Simulation SimulationConfig `yaml:"simulation"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// ScanConfig holds bounding box and coverage tracking settings.
type ScanConfig struct {
	MinSize              float32 `yaml:"min_size"`               // smallest box edge
	MaxTileSize          float32 `yaml:"max_tile_size"`          // longest tile edge
	MaxTileCount         int     `yaml:"max_tile_count"`         // tiles per face axis
	SampleEveryFrames    int     `yaml:"sample_every_frames"`    // camera ray sampling period
	RecomputeEveryFrames int     `yaml:"recompute_every_frames"` // coverage recompute period
	DedupDistance        float32 `yaml:"dedup_distance"`         // min spacing of recorded hits
	MaxRayLength         float32 `yaml:"max_ray_length"`         // camera ray segment length
	MinQualityPoints     int     `yaml:"min_quality_points"`     // points inside box for good quality
	QueueSize            int     `yaml:"queue_size"`             // coverage task buffer
}

// FitConfig holds point cloud fitting and plane snapping settings.
type FitConfig struct {
	FocusRadius    float32 `yaml:"focus_radius"`
	NeighborRadius float32 `yaml:"neighbor_radius"`
	MinNeighbors   int     `yaml:"min_neighbors"`
	PlaneTolerance float32 `yaml:"plane_tolerance"`
	PlaneEpsilon   float32 `yaml:"plane_epsilon"`
}

// SimulationConfig drives the scansim walk-around.
type SimulationConfig struct {
	Width         int           `yaml:"width"`
	Height        int           `yaml:"height"`
	Frames        int           `yaml:"frames"`
	FrameInterval time.Duration `yaml:"frame_interval"` // 0 runs unpaced
	OrbitDistance float32       `yaml:"orbit_distance"`
	OrbitPitch    float32       `yaml:"orbit_pitch"`    // radians
	OrbitSpeed    float32       `yaml:"orbit_speed"`    // radians per frame
	PitchSwing    float32       `yaml:"pitch_swing"`    // radians
	ObjectExtent  [3]float32    `yaml:"object_extent"`
	Points        int           `yaml:"points"`
	Noise         float32       `yaml:"noise"`
	Outliers      int           `yaml:"outliers"`
	Seed          int64         `yaml:"seed"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"` // console or json
	LogFile    string `yaml:"log_file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Scan: ScanConfig{
			MinSize:              0.01,
			MaxTileSize:          0.1,
			MaxTileCount:         4,
			SampleEveryFrames:    20,
			RecomputeEveryFrames: 10,
			DedupDistance:        0.03,
			MaxRayLength:         5,
			MinQualityPoints:     100,
			QueueSize:            64,
		},
		Fit: FitConfig{
			FocusRadius:    0.05,
			NeighborRadius: 0.03,
			MinNeighbors:   3,
			PlaneTolerance: 0.1,
			PlaneEpsilon:   0.001,
		},
		Simulation: SimulationConfig{
			Width:         1280,
			Height:        720,
			Frames:        2400,
			OrbitDistance: 0.6,
			OrbitPitch:    0.35,
			OrbitSpeed:    0.005,
			PitchSwing:    0.5,
			ObjectExtent:  [3]float32{0.2, 0.15, 0.25},
			Points:        800,
			Noise:         0.004,
			Outliers:      20,
			Seed:          1,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "console",
			MaxSizeMB:  20,
			MaxBackups: 3,
			MaxAgeDays: 7,
			Compress:   true,
		},
	}
}

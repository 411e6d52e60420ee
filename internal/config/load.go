package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v3"
)

// Load loads configuration with priority: defaults < file < flags.
func Load() (*Config, error) {
	cfg := Default()

	configPath := ConfigPath()
	if configPath == "" {
		configPath = findConfigFile()
	}

	if configPath != "" {
		if err := loadFromFile(cfg, configPath); err != nil {
			return nil, fmt.Errorf("loading config from %s: %w", configPath, err)
		}
	}

	applyFlags(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// findConfigFile looks for config in standard locations.
func findConfigFile() string {
	candidates := []string{
		"./objscan.yaml",
		filepath.Join(ConfigDir(), "config.yaml"),
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// ConfigDir returns the OS-appropriate config directory.
func ConfigDir() string {
	switch runtime.GOOS {
	case "darwin":
		home, _ := os.UserHomeDir()
		return filepath.Join(home, "Library", "Application Support", "ObjScan")
	case "windows":
		return filepath.Join(os.Getenv("APPDATA"), "ObjScan")
	default:
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			return filepath.Join(xdg, "objscan")
		}
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".config", "objscan")
	}
}

// loadFromFile loads config from a YAML file, merging with existing values.
func loadFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// Validate rejects settings the scanner cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.Scan.MinSize <= 0 {
		errs = append(errs, fmt.Errorf("scan.min_size must be positive, got %v", c.Scan.MinSize))
	}
	if c.Scan.MaxTileSize <= 0 {
		errs = append(errs, fmt.Errorf("scan.max_tile_size must be positive, got %v", c.Scan.MaxTileSize))
	}
	if c.Scan.DedupDistance <= 0 {
		errs = append(errs, fmt.Errorf("scan.dedup_distance must be positive, got %v", c.Scan.DedupDistance))
	}
	if c.Scan.MaxRayLength <= 0 {
		errs = append(errs, fmt.Errorf("scan.max_ray_length must be positive, got %v", c.Scan.MaxRayLength))
	}
	if c.Scan.MaxTileCount < 1 {
		errs = append(errs, fmt.Errorf("scan.max_tile_count must be at least 1, got %d", c.Scan.MaxTileCount))
	}
	if c.Scan.SampleEveryFrames < 1 || c.Scan.RecomputeEveryFrames < 1 {
		errs = append(errs, fmt.Errorf("scan frame periods must be at least 1"))
	}
	if c.Fit.FocusRadius <= 0 {
		errs = append(errs, fmt.Errorf("fit.focus_radius must be positive, got %v", c.Fit.FocusRadius))
	}
	if c.Fit.NeighborRadius <= 0 {
		errs = append(errs, fmt.Errorf("fit.neighbor_radius must be positive, got %v", c.Fit.NeighborRadius))
	}
	if c.Fit.MinNeighbors < 0 {
		errs = append(errs, fmt.Errorf("fit.min_neighbors must not be negative, got %d", c.Fit.MinNeighbors))
	}
	if c.Simulation.Width <= 0 || c.Simulation.Height <= 0 {
		errs = append(errs, fmt.Errorf("simulation viewport must be positive, got %dx%d", c.Simulation.Width, c.Simulation.Height))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

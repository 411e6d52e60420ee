package config

import "flag"

var (
	flagConfig   = flag.String("config", "", "Path to config file")
	flagDebug    = flag.Bool("debug", false, "Enable debug logging")
	flagLogFile  = flag.String("log-file", "", "Write logs to this file as well")
	flagJSON     = flag.Bool("json", false, "Log as JSON")
	flagFrames   = flag.Int("frames", 0, "Number of frames to simulate")
	flagSeed     = flag.Int64("seed", 0, "Random seed for the synthetic point cloud")
	flagDistance = flag.Float64("distance", 0, "Orbit distance from the object")
)

// ParseFlags parses command-line flags. Call this early in main().
func ParseFlags() {
	flag.Parse()
}

// ConfigPath returns the explicit config path if provided via --config flag.
func ConfigPath() string {
	return *flagConfig
}

// applyFlags applies CLI flag overrides to the config.
func applyFlags(cfg *Config) {
	if *flagDebug {
		cfg.Logging.Level = "debug"
	}
	if *flagLogFile != "" {
		cfg.Logging.LogFile = *flagLogFile
	}
	if *flagJSON {
		cfg.Logging.Format = "json"
	}
	if *flagFrames > 0 {
		cfg.Simulation.Frames = *flagFrames
	}
	if *flagSeed != 0 {
		cfg.Simulation.Seed = *flagSeed
	}
	if *flagDistance > 0 {
		cfg.Simulation.OrbitDistance = float32(*flagDistance)
	}
}

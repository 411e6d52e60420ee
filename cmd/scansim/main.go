// Package main runs a headless object scan against a synthetic scene and
// reports the coverage it reached.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/Faultbox/objscan/internal/config"
	"github.com/Faultbox/objscan/internal/coverage"
	"github.com/Faultbox/objscan/internal/logger"
	"github.com/Faultbox/objscan/internal/sim"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Parse CLI flags first
	config.ParseFlags()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	// Initialize logger
	file := logger.FileConfig{}
	if cfg.Logging.LogFile != "" {
		file = logger.FileConfig{
			Path:       cfg.Logging.LogFile,
			MaxSizeMB:  cfg.Logging.MaxSizeMB,
			MaxBackups: cfg.Logging.MaxBackups,
			MaxAgeDays: cfg.Logging.MaxAgeDays,
			Compress:   cfg.Logging.Compress,
		}
	}
	if err := logger.InitWithOptions(logger.Options{
		Level:   cfg.Logging.Level,
		Format:  cfg.Logging.Format,
		Console: true,
		File:    file,
	}); err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer logger.Sync()

	logger.Info("=== ObjScan simulator ===")
	logger.Sugar.Debugf("Config: %+v", cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	s, err := sim.New(cfg)
	if err != nil {
		return fmt.Errorf("creating simulation: %w", err)
	}
	defer s.Close()

	res, err := s.Run(ctx)
	if err != nil {
		return fmt.Errorf("simulation: %w", err)
	}

	fmt.Printf("coverage %d%% (%s)\n", res.Progress, coverage.ProgressColor(res.Progress).Hex())
	fmt.Printf("box center %v extent %v\n", res.Center, res.Extent)
	fmt.Printf("origin %v\n", res.Origin)
	for _, a := range res.Advisories {
		fmt.Printf("advisory: %s\n", a.Message())
	}
	return nil
}

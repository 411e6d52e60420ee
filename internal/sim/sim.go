// Package sim drives a scan session headlessly: a camera walks around a
// synthetic object, feeding the session one frame at a time the way a
// tracking host would.
package sim

import (
	"context"
	"fmt"
	gomath "math"
	"time"

	"go.uber.org/zap"

	"github.com/Faultbox/objscan/internal/camera"
	"github.com/Faultbox/objscan/internal/config"
	"github.com/Faultbox/objscan/internal/coverage"
	"github.com/Faultbox/objscan/internal/fit"
	"github.com/Faultbox/objscan/internal/logger"
	"github.com/Faultbox/objscan/internal/scan"
	"github.com/Faultbox/objscan/pkg/math"
)

// defineShare is the fraction of frames spent defining the box.
const defineShare = 10

// Result summarizes a finished run.
type Result struct {
	Progress   int
	Advisories []scan.Advisory
	Center     math.Vec3
	Extent     math.Vec3
	Origin     math.Vec3 // world space
	Frames     int
}

// Sim is a headless scan run.
type Sim struct {
	cfg     config.SimulationConfig
	world   *World
	cam     *camera.Camera
	orbit   *camera.OrbitCamera
	session *scan.Session
	log     *zap.Logger
	phase   float32
}

// SessionConfig converts file configuration into session settings.
func SessionConfig(cfg *config.Config) scan.Config {
	sc := scan.DefaultConfig()
	sc.MinSize = cfg.Scan.MinSize
	sc.SampleEveryFrames = cfg.Scan.SampleEveryFrames
	sc.RecomputeEveryFrames = cfg.Scan.RecomputeEveryFrames
	sc.MinQualityPoints = cfg.Scan.MinQualityPoints
	sc.QueueSize = cfg.Scan.QueueSize
	sc.Coverage = coverage.Config{
		MaxTileSize:   cfg.Scan.MaxTileSize,
		MaxTileCount:  cfg.Scan.MaxTileCount,
		DedupDistance: cfg.Scan.DedupDistance,
		MaxRayLength:  cfg.Scan.MaxRayLength,
	}
	sc.Fit = fit.Config{
		FocusRadius:    cfg.Fit.FocusRadius,
		NeighborRadius: cfg.Fit.NeighborRadius,
		MinNeighbors:   cfg.Fit.MinNeighbors,
		PlaneTolerance: cfg.Fit.PlaneTolerance,
		PlaneEpsilon:   cfg.Fit.PlaneEpsilon,
	}
	return sc
}

// New builds the scene and a session watching it.
func New(cfg *config.Config) (*Sim, error) {
	sc := cfg.Simulation
	world := NewWorld(WorldConfig{
		ObjectExtent: math.Vec3FromArray(sc.ObjectExtent),
		Points:       sc.Points,
		Noise:        sc.Noise,
		Outliers:     sc.Outliers,
		Seed:         sc.Seed,
	})

	cam := camera.New(float32(sc.Width), float32(sc.Height))
	orbit := camera.NewOrbitCamera(world.ObjectCenter)
	orbit.Distance = sc.OrbitDistance
	orbit.Pitch = sc.OrbitPitch
	orbit.Apply(cam)

	session, err := scan.New(SessionConfig(cfg), cam, "")
	if err != nil {
		return nil, fmt.Errorf("creating scan session: %w", err)
	}

	s := &Sim{
		cfg:     sc,
		world:   world,
		cam:     cam,
		orbit:   orbit,
		session: session,
		log:     logger.Named("sim").With(zap.String("session", session.Name())),
	}
	session.OnProgress(func(pct int) {
		s.log.Debug("progress", zap.Int("percent", pct), zap.String("color", coverage.ProgressColor(pct).Hex()))
	})
	return s, nil
}

// Session returns the session being driven.
func (s *Sim) Session() *scan.Session { return s.session }

// World returns the synthetic scene.
func (s *Sim) World() *World { return s.world }

// Run places the box, defines it, scans for the configured number of
// frames and finishes in AdjustingOrigin. It stops early when ctx is done.
func (s *Sim) Run(ctx context.Context) (Result, error) {
	hit, ok := fit.HitFeaturePoint(s.cam.ForwardRay(), s.world.Points)
	if !ok {
		hit = s.world.ObjectCenter
	}
	s.session.PlaceBox(hit)

	if _, err := s.session.SetState(scan.DefineBoundingBox); err != nil {
		return Result{}, err
	}

	frames := s.cfg.Frames
	defineFrames := max(1, frames/defineShare)

	var ticker *time.Ticker
	if s.cfg.FrameInterval > 0 {
		ticker = time.NewTicker(s.cfg.FrameInterval)
		defer ticker.Stop()
	}

	frame := 0
	for ; frame < frames; frame++ {
		if frame == defineFrames {
			advisories, err := s.session.SetState(scan.Scanning)
			if err != nil {
				return Result{}, err
			}
			s.report(advisories)
		}

		if ticker != nil {
			select {
			case <-ctx.Done():
				return Result{}, ctx.Err()
			case <-ticker.C:
			}
		} else if err := ctx.Err(); err != nil {
			return Result{}, err
		}

		s.step()
		if err := s.session.Tick(scan.Frame{
			Points: s.world.Points,
			Planes: []fit.DetectedPlane{s.world.Floor},
		}); err != nil {
			return Result{}, fmt.Errorf("frame %d: %w", frame, err)
		}
	}

	if err := s.session.Flush(ctx); err != nil {
		return Result{}, err
	}
	if s.session.State() == scan.DefineBoundingBox {
		if _, err := s.session.SetState(scan.Scanning); err != nil {
			return Result{}, err
		}
	}
	advisories, err := s.session.SetState(scan.AdjustingOrigin)
	if err != nil {
		return Result{}, err
	}
	s.report(advisories)

	b := s.session.Box()
	res := Result{
		Progress:   s.session.Progress(),
		Advisories: advisories,
		Center:     b.Position(),
		Extent:     b.Extent(),
		Origin:     s.session.Origin().WorldPosition(),
		Frames:     frame,
	}
	s.log.Info("scan finished",
		zap.Int("progress", res.Progress),
		zap.Stringer("center", res.Center),
		zap.Stringer("extent", res.Extent),
		zap.Stringer("origin", res.Origin),
		zap.Int("frames", res.Frames))
	return res, nil
}

// step walks the camera one frame around the object. The aim point sweeps
// across the object so the center ray reaches every side of it.
func (s *Sim) step() {
	s.phase += s.cfg.OrbitSpeed
	s.orbit.Yaw = s.phase
	s.orbit.Pitch = s.cfg.OrbitPitch
	s.orbit.Orbit(0, s.cfg.PitchSwing*sin(s.phase*0.7))

	half := s.world.ObjectExtent.Scale(0.4)
	target := s.world.ObjectCenter.Add(math.Vec3{
		X: half.X * sin(s.phase*5.3),
		Y: half.Y * sin(s.phase*3.1),
		Z: half.Z * sin(s.phase*4.7+1),
	})
	s.cam.LookAt(s.orbit.Position(), target)
}

func (s *Sim) report(advisories []scan.Advisory) {
	for _, a := range advisories {
		s.log.Warn(a.Message(), zap.Stringer("advisory", a))
	}
}

// Close stops the session's worker queue.
func (s *Sim) Close() error {
	return s.session.Close()
}

func sin(x float32) float32 {
	return float32(gomath.Sin(float64(x)))
}

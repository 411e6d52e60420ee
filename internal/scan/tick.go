package scan

import (
	"github.com/Faultbox/objscan/internal/box"
	"github.com/Faultbox/objscan/internal/fit"
	"github.com/Faultbox/objscan/pkg/math"
)

// Frame is the per-frame input from the tracker.
type Frame struct {
	// Points are the raw feature points seen this frame, in world space.
	Points []math.Vec3
	// Planes are the horizontal planes detected so far.
	Planes []fit.DetectedPlane
}

// Tick advances the session by one frame. While the box is being defined
// it is fitted to the point cloud and snapped to planes; while scanning,
// the camera ray is sampled and coverage recomputed at decimated rates on
// the worker queue. The only error is a closed queue.
func (s *Session) Tick(frame Frame) error {
	if s.box == nil {
		return nil
	}

	if len(frame.Points) > 0 {
		s.pointsInside = s.PointsInside(frame.Points)
	}

	if (s.state == Ready || s.state == DefineBoundingBox) && !s.box.AdjustedByUser() && len(frame.Points) > 0 {
		if focus, ok := fit.HitFeaturePoint(s.cam.ForwardRay(), frame.Points); ok {
			s.fitter.FitToPoints(s.box, frame.Points, &focus)
		}
	}
	if s.state == DefineBoundingBox {
		s.fitter.AlignWithPlanes(s.box, frame.Planes)
	}

	if err := s.regenerateTiles(); err != nil {
		return err
	}

	if s.state == Scanning {
		return s.updateCoverage()
	}
	return nil
}

// regenerateTiles schedules a new tile grid for every face whose size
// changed since its last layout.
func (s *Session) regenerateTiles() error {
	tr := s.tracker
	extent := s.box.Extent()
	for _, f := range box.AllFaces {
		size := f.Size(extent)
		if size == s.tiledSize[f] || tr.Regenerating(f) {
			continue
		}
		tr.BeginRegeneration(f)
		s.tiledSize[f] = size

		f := f
		if err := s.post(func() { tr.RegenerateFace(f) }); err != nil {
			return err
		}
	}
	return nil
}

func (s *Session) updateCoverage() error {
	tr := s.tracker
	ray := s.cam.ForwardRay()
	s.frame++

	if err := s.post(func() { tr.HighlightTile(ray) }); err != nil {
		return err
	}

	if s.frame%s.cfg.SampleEveryFrames == 0 {
		if err := s.post(func() { tr.RecordSampleIfNovel(ray) }); err != nil {
			return err
		}
	}

	if s.frame%s.cfg.RecomputeEveryFrames == 0 && !s.recomputing.Load() {
		s.recomputing.Store(true)
		return s.post(func() {
			defer s.recomputing.Store(false)
			tr.RecomputeCapturedTiles()
		})
	}
	return nil
}

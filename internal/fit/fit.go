// Package fit tightens the bounding box around a tracked point cloud and
// snaps its bottom onto detected ground planes.
package fit

import (
	"github.com/dhconnelly/rtreego"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/Faultbox/objscan/internal/box"
	"github.com/Faultbox/objscan/internal/logger"
	"github.com/Faultbox/objscan/pkg/math"
)

// Config holds the point filter and plane snapping thresholds.
type Config struct {
	FocusRadius    float32 // points farther than this from the focus are ignored
	NeighborRadius float32 // density filter radius
	MinNeighbors   int     // other points required within NeighborRadius
	PlaneTolerance float32 // fraction of plane extent added on every side
	PlaneEpsilon   float32 // distances below this count as already aligned
}

// DefaultConfig returns the standard thresholds.
func DefaultConfig() Config {
	return Config{
		FocusRadius:    0.05,
		NeighborRadius: 0.03,
		MinNeighbors:   3,
		PlaneTolerance: 0.1,
		PlaneEpsilon:   0.001,
	}
}

// R-tree node fan-out.
const (
	minChildren = 8
	maxChildren = 32
)

// pointTolerance is the half size of the degenerate rectangle a point
// occupies in the index.
const pointTolerance = 1e-7

type indexedPoint struct {
	index int
	pos   math.Vec3
}

func (p indexedPoint) Bounds() rtreego.Rect {
	return toPoint(p.pos).ToRect(pointTolerance)
}

func toPoint(v math.Vec3) rtreego.Point {
	return rtreego.Point{float64(v.X), float64(v.Y), float64(v.Z)}
}

// Fitter filters noisy point clouds and fits boxes to them.
type Fitter struct {
	cfg Config
	log *zap.Logger
}

// New returns a Fitter using cfg.
func New(cfg Config) *Fitter {
	return &Fitter{cfg: cfg, log: logger.Named("fit")}
}

// Config returns the thresholds in use.
func (f *Fitter) Config() Config { return f.cfg }

// FilterPoints drops points farther than FocusRadius from focus (when
// focus is not nil) and points with fewer than MinNeighbors other points
// closer than NeighborRadius. Neighbors are counted over the whole input.
func (f *Fitter) FilterPoints(points []math.Vec3, focus *math.Vec3) []math.Vec3 {
	if len(points) == 0 {
		return nil
	}

	objs := make([]rtreego.Spatial, len(points))
	for i, p := range points {
		objs[i] = indexedPoint{index: i, pos: p}
	}
	tree := rtreego.NewTree(3, minChildren, maxChildren, objs...)

	radius := f.cfg.NeighborRadius
	return lo.Filter(points, func(p math.Vec3, i int) bool {
		if focus != nil && p.Distance(*focus) > f.cfg.FocusRadius {
			return false
		}

		near := tree.SearchIntersect(toPoint(p).ToRect(float64(radius)))
		others := lo.CountBy(near, func(s rtreego.Spatial) bool {
			q := s.(indexedPoint)
			return q.index != i && q.pos.Distance(p) < radius
		})
		return others >= f.cfg.MinNeighbors
	})
}

// FitToPoints grows b to enclose the filtered points. The starting bounds
// are the current box, so a single fit never shrinks it. It reports whether
// any point survived filtering; with none the box is left untouched.
func (f *Fitter) FitToPoints(b *box.Box, points []math.Vec3, focus *math.Vec3) bool {
	kept := f.FilterPoints(points, focus)
	if len(kept) == 0 {
		return false
	}

	half := b.Extent().Scale(0.5)
	minB, maxB := half.Neg(), half
	for _, p := range kept {
		local := b.WorldToLocal(p)
		minB = minB.Min(local)
		maxB = maxB.Max(local)
	}

	center := b.LocalToWorld(maxB.Add(minB).Scale(0.5))
	b.SetPosition(center)
	b.SetExtent(maxB.Sub(minB))

	f.log.Debug("fitted to point cloud",
		zap.Int("points", len(points)),
		zap.Int("kept", len(kept)),
		zap.Stringer("extent", b.Extent()),
	)
	return true
}

package box

import (
	gomath "math"
	"sort"

	"github.com/Faultbox/objscan/internal/picking"
	"github.com/Faultbox/objscan/pkg/math"
)

// faceSlack widens each face rectangle a little so hits on an edge are not lost to rounding.
const faceSlack = 1e-5

// FaceHit is one intersection of a ray with a box face.
type FaceHit struct {
	Face     Face
	Point    math.Vec3 // world space
	Distance float32   // from the ray origin
}

// HitTestFaces intersects ray with every face of the box and returns the
// hits ordered by distance, nearest first.
func (s Snapshot) HitTestFaces(ray picking.Ray) []FaceHit {
	inv := s.WorldTransform().Inverse()
	local := ray.Transform(inv)
	half := s.Extent.Scale(0.5)

	var hits []FaceHit
	for _, f := range AllFaces {
		axis := f.DragAxis()
		d := component(local.Direction, axis)
		if gomath.Abs(float64(d)) < 1e-9 {
			continue
		}

		plane := component(half, axis)
		if !f.positive() {
			plane = -plane
		}
		t := (plane - component(local.Origin, axis)) / d
		if t < 0 {
			continue
		}

		p := local.At(t)
		if !insideFace(p, half, axis) {
			continue
		}

		world := s.LocalToWorld(p)
		hits = append(hits, FaceHit{Face: f, Point: world, Distance: world.Distance(ray.Origin)})
	}

	sort.Slice(hits, func(i, j int) bool { return hits[i].Distance < hits[j].Distance })
	return hits
}

func insideFace(p, half math.Vec3, axis Axis) bool {
	in := func(v, h float32) bool { return v >= -h-faceSlack && v <= h+faceSlack }
	switch axis {
	case AxisX:
		return in(p.Y, half.Y) && in(p.Z, half.Z)
	case AxisY:
		return in(p.X, half.X) && in(p.Z, half.Z)
	default:
		return in(p.X, half.X) && in(p.Y, half.Y)
	}
}

// HitTestFaces intersects ray with the current box faces, nearest first.
func (b *Box) HitTestFaces(ray picking.Ray) []FaceHit {
	return b.snap.HitTestFaces(ray)
}

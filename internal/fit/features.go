package fit

import (
	gomath "math"

	"github.com/Faultbox/objscan/internal/picking"
	"github.com/Faultbox/objscan/pkg/math"
)

// featureConeSlope is how far off the ray a point may lie per unit of
// distance along it, about 1.1 degrees.
const featureConeSlope = 0.02

// HitFeaturePoint returns the feature point nearest to the ray origin among
// those lying inside a narrow cone around the ray.
func HitFeaturePoint(ray picking.Ray, points []math.Vec3) (math.Vec3, bool) {
	dir := ray.Direction.Normalize()

	var best math.Vec3
	bestT := float32(gomath.Inf(1))
	for _, p := range points {
		v := p.Sub(ray.Origin)
		t := v.Dot(dir)
		if t <= 0 || t >= bestT {
			continue
		}
		if v.Sub(dir.Scale(t)).Length() > t*featureConeSlope {
			continue
		}
		best, bestT = p, t
	}
	return best, !gomath.IsInf(float64(bestT), 1)
}

// Package picking converts screen positions into world-space rays and
// projects them onto drag planes.
package picking

import (
	gomath "math"

	"github.com/Faultbox/objscan/pkg/math"
)

// parallelEpsilon is the smallest |direction·normal| treated as a real intersection.
const parallelEpsilon = 1e-6

// Ray represents a ray in 3D space with origin and direction.
type Ray struct {
	Origin    math.Vec3
	Direction math.Vec3
}

// At returns the point Origin + t*Direction.
func (r Ray) At(t float32) math.Vec3 {
	return r.Origin.Add(r.Direction.Scale(t))
}

// Transform maps the ray through m (origin as a point, direction as a vector).
func (r Ray) Transform(m math.Mat4) Ray {
	return Ray{
		Origin:    m.TransformPoint(r.Origin),
		Direction: m.TransformDirection(r.Direction),
	}
}

// Projection is what is needed to turn a screen position into a ray:
// the combined view-projection matrix and the viewport size in pixels.
type Projection struct {
	ViewProj      math.Mat4
	Width, Height float32
}

// Ray returns the world-space ray through the given screen position.
func (p Projection) Ray(screen math.Vec2) Ray {
	return ScreenToRay(screen.X, screen.Y, p.Width, p.Height, p.ViewProj.Inverse())
}

// ScreenToRay converts screen coordinates to a world-space ray.
// screenX, screenY are pixel coordinates, viewportW/H are viewport dimensions.
// invViewProj is the inverse of the view-projection matrix.
func ScreenToRay(screenX, screenY, viewportW, viewportH float32, invViewProj math.Mat4) Ray {
	ndcX := 2.0*screenX/viewportW - 1.0
	ndcY := 1.0 - 2.0*screenY/viewportH // Flip Y

	nearWorld := invViewProj.MulVec4(math.Vec4{ndcX, ndcY, -1.0, 1.0})
	farWorld := invViewProj.MulVec4(math.Vec4{ndcX, ndcY, 1.0, 1.0})

	if nearWorld[3] != 0 {
		nearWorld[0] /= nearWorld[3]
		nearWorld[1] /= nearWorld[3]
		nearWorld[2] /= nearWorld[3]
	}
	if farWorld[3] != 0 {
		farWorld[0] /= farWorld[3]
		farWorld[1] /= farWorld[3]
		farWorld[2] /= farWorld[3]
	}

	origin := math.Vec3{X: nearWorld[0], Y: nearWorld[1], Z: nearWorld[2]}
	far := math.Vec3{X: farWorld[0], Y: farWorld[1], Z: farWorld[2]}

	return Ray{Origin: origin, Direction: far.Sub(origin).Normalize()}
}

// IntersectPlane intersects the ray with the plane through point with the given normal.
// Returns the ray parameter t and whether the intersection is valid.
func (r Ray) IntersectPlane(point, normal math.Vec3) (t float32, ok bool) {
	denom := r.Direction.Dot(normal)
	if gomath.Abs(float64(denom)) < parallelEpsilon {
		return 0, false // Ray parallel to plane
	}

	t = point.Sub(r.Origin).Dot(normal) / denom
	if t < 0 {
		return 0, false // Intersection behind ray origin
	}
	return t, true
}

// IntersectPlaneY intersects the ray with a horizontal plane at the given Y level.
func (r Ray) IntersectPlaneY(planeY float32) (math.Vec3, bool) {
	t, ok := r.IntersectPlane(math.Vec3{Y: planeY}, math.Vec3{Y: 1})
	if !ok {
		return math.Vec3{}, false
	}
	return r.At(t), true
}

// IntersectAABB intersects the ray with the axis-aligned box [lo, hi] using
// the slab method. It returns the entry distance, or 0 when the origin is
// inside the box.
func (r Ray) IntersectAABB(lo, hi math.Vec3) (float32, bool) {
	tmin := float32(0)
	tmax := float32(gomath.Inf(1))

	o, d := r.Origin.Array(), r.Direction.Array()
	l, h := lo.Array(), hi.Array()
	for i := 0; i < 3; i++ {
		if gomath.Abs(float64(d[i])) < parallelEpsilon {
			if o[i] < l[i] || o[i] > h[i] {
				return 0, false
			}
			continue
		}
		inv := 1 / d[i]
		t1 := (l[i] - o[i]) * inv
		t2 := (h[i] - o[i]) * inv
		if t1 > t2 {
			t1, t2 = t2, t1
		}
		tmin = max(tmin, t1)
		tmax = min(tmax, t2)
		if tmin > tmax {
			return 0, false
		}
	}
	return tmin, true
}

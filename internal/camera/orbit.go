package camera

import (
	gomath "math"

	"github.com/Faultbox/objscan/pkg/math"
)

// OrbitCamera orbits around a center point. It stands in for a person
// walking around the object being scanned.
type OrbitCamera struct {
	Center math.Vec3

	// Spherical coordinates
	Distance float32 // Distance from center
	Pitch    float32 // Vertical angle, radians
	Yaw      float32 // Horizontal angle, radians

	// Constraints
	MinDistance float32
	MaxDistance float32
	MinPitch    float32
	MaxPitch    float32
}

// NewOrbitCamera creates an orbit camera at arm's length looking slightly down.
func NewOrbitCamera(center math.Vec3) *OrbitCamera {
	return &OrbitCamera{
		Center:      center,
		Distance:    0.6,
		Pitch:       0.4,
		MinDistance: 0.1,
		MaxDistance: 5.0,
		MinPitch:    -1.2,
		MaxPitch:    1.5,
	}
}

// Position returns the camera position in world space.
func (c *OrbitCamera) Position() math.Vec3 {
	x := c.Distance * float32(gomath.Cos(float64(c.Pitch))*gomath.Sin(float64(c.Yaw)))
	y := c.Distance * float32(gomath.Sin(float64(c.Pitch)))
	z := c.Distance * float32(gomath.Cos(float64(c.Pitch))*gomath.Cos(float64(c.Yaw)))

	return c.Center.Add(math.Vec3{X: x, Y: y, Z: z})
}

// Orbit rotates around the center by the given yaw and pitch deltas (radians).
func (c *OrbitCamera) Orbit(deltaYaw, deltaPitch float32) {
	c.Yaw += deltaYaw
	c.Pitch += deltaPitch

	if c.Pitch < c.MinPitch {
		c.Pitch = c.MinPitch
	}
	if c.Pitch > c.MaxPitch {
		c.Pitch = c.MaxPitch
	}
}

// Zoom scales the orbit distance, clamped to the configured range.
func (c *OrbitCamera) Zoom(delta float32) {
	c.Distance -= delta * c.Distance
	if c.Distance < c.MinDistance {
		c.Distance = c.MinDistance
	}
	if c.Distance > c.MaxDistance {
		c.Distance = c.MaxDistance
	}
}

// FitToExtent centers on the box and backs off far enough to see all of it.
func (c *OrbitCamera) FitToExtent(center, extent math.Vec3) {
	c.Center = center

	maxSize := max(extent.X, extent.Y, extent.Z)
	c.Distance = maxSize * 3
	if c.Distance < c.MinDistance {
		c.Distance = c.MinDistance
	}
	if c.Distance > c.MaxDistance {
		c.Distance = c.MaxDistance
	}
}

// Apply points cam from the current orbit position at the center.
func (c *OrbitCamera) Apply(cam *Camera) {
	cam.LookAt(c.Position(), c.Center)
}

// Package camera provides the camera pose consumed by the drag and coverage code.
package camera

import (
	gomath "math"

	"github.com/Faultbox/objscan/internal/picking"
	"github.com/Faultbox/objscan/pkg/math"
)

// Camera is a perspective camera pose with a pixel viewport.
type Camera struct {
	Position math.Vec3
	Target   math.Vec3
	Up       math.Vec3

	FovY      float32 // radians
	Near, Far float32

	Width, Height float32
}

// New creates a camera at the origin looking down -Z with a 60 degree field of view.
func New(width, height float32) *Camera {
	return &Camera{
		Target: math.Vec3{Z: -1},
		Up:     math.Vec3{Y: 1},
		FovY:   float32(gomath.Pi / 3),
		Near:   0.01,
		Far:    100,
		Width:  width,
		Height: height,
	}
}

// LookAt moves the camera to eye and points it at target.
func (c *Camera) LookAt(eye, target math.Vec3) {
	c.Position = eye
	c.Target = target
}

// WorldPosition returns the eye position.
func (c *Camera) WorldPosition() math.Vec3 {
	return c.Position
}

// Forward returns the unit viewing direction.
func (c *Camera) Forward() math.Vec3 {
	return c.Target.Sub(c.Position).Normalize()
}

// ViewMatrix returns the view matrix for this camera.
func (c *Camera) ViewMatrix() math.Mat4 {
	return math.LookAt(c.Position, c.Target, c.Up)
}

// ProjectionMatrix returns the perspective projection matrix.
func (c *Camera) ProjectionMatrix() math.Mat4 {
	return math.Perspective(c.FovY, c.Width/c.Height, c.Near, c.Far)
}

// Projection returns the view-projection bundle used for unprojection.
func (c *Camera) Projection() picking.Projection {
	return picking.Projection{
		ViewProj: c.ProjectionMatrix().Mul(c.ViewMatrix()),
		Width:    c.Width,
		Height:   c.Height,
	}
}

// ScreenCenter returns the pixel at the middle of the viewport.
func (c *Camera) ScreenCenter() math.Vec2 {
	return math.Vec2{X: c.Width / 2, Y: c.Height / 2}
}

// ForwardRay returns the ray from the camera position along the view direction.
func (c *Camera) ForwardRay() picking.Ray {
	return picking.Ray{Origin: c.Position, Direction: c.Forward()}
}

// Project maps a world point to pixel coordinates.
// Returns false if the point is behind the camera.
func (c *Camera) Project(world math.Vec3) (math.Vec2, bool) {
	clip := c.Projection().ViewProj.MulVec4(math.Vec4{world.X, world.Y, world.Z, 1})
	if clip[3] <= 0 {
		return math.Vec2{}, false
	}
	ndcX := clip[0] / clip[3]
	ndcY := clip[1] / clip[3]
	return math.Vec2{
		X: (ndcX + 1) / 2 * c.Width,
		Y: (1 - ndcY) / 2 * c.Height,
	}, true
}

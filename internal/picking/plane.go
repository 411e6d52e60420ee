package picking

import (
	"github.com/Faultbox/objscan/pkg/math"
)

// DragPlaneTransform builds the frame used to drag along dragRay.
//
// The X axis is the drag direction, so after unprojecting a pointer onto
// the plane the movement along the ray is just the local X coordinate. The
// Z axis is orthogonal to both the drag direction and the camera-to-origin
// vector, which turns the plane's XZ face toward the camera as far as the
// drag axis allows. Y completes a right-handed frame and is the plane normal.
// The translation is the ray origin.
func DragPlaneTransform(dragRay Ray, cameraPos math.Vec3) math.Mat4 {
	camToRayOrigin := dragRay.Origin.Sub(cameraPos).Normalize()

	x := dragRay.Direction.Normalize()
	z := x.Cross(camToRayOrigin)
	if z.Length() < 1e-6 {
		// Dragging straight toward the camera; any perpendicular will do.
		z = x.Cross(math.Vec3{Y: 1})
		if z.Length() < 1e-6 {
			z = x.Cross(math.Vec3{X: 1})
		}
	}
	z = z.Normalize()
	y := z.Cross(x).Normalize()

	return math.FromBasis(x, y, z, dragRay.Origin)
}

// UnprojectOntoPlane intersects the pointer ray through screen with the XZ
// plane of planeTransform. It returns false when the ray is parallel to the
// plane or the intersection lies behind the camera.
func UnprojectOntoPlane(screen math.Vec2, planeTransform math.Mat4, proj Projection) (math.Vec3, bool) {
	ray := proj.Ray(screen)
	normal := planeTransform.Column(1).Normalize()

	t, ok := ray.IntersectPlane(planeTransform.Translation(), normal)
	if !ok {
		return math.Vec3{}, false
	}
	return ray.At(t), true
}

// UnprojectOntoPlaneLocal is UnprojectOntoPlane with the result expressed in
// the plane's own coordinate system.
func UnprojectOntoPlaneLocal(screen math.Vec2, planeTransform math.Mat4, proj Projection) (math.Vec3, bool) {
	world, ok := UnprojectOntoPlane(screen, planeTransform, proj)
	if !ok {
		return math.Vec3{}, false
	}
	return planeTransform.Inverse().TransformPoint(world), true
}

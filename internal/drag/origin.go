package drag

import (
	gomath "math"

	"go.uber.org/zap"

	"github.com/Faultbox/objscan/internal/box"
	"github.com/Faultbox/objscan/internal/logger"
	"github.com/Faultbox/objscan/internal/picking"
	"github.com/Faultbox/objscan/pkg/math"
)

// Origin gizmo sizing, relative to the largest box edge.
const (
	axisSizeRatio = 0.25
	minAxisSize   = 0.05
	maxAxisSize   = 0.2

	// axisHalfWidth is the pickable half thickness of an axis, as a
	// fraction of its length.
	axisHalfWidth = 0.125
)

// outsideThreshold is how far the origin may sit past a box face before it
// counts as outside.
const outsideThreshold = 0.002

var originAxes = [3]box.Axis{box.AxisX, box.AxisY, box.AxisZ}

// Origin is the anchor point of the scanned object. It lives in the box's
// local frame, so it follows the box when the box moves, and is edited
// through its own axis and plane drags.
type Origin struct {
	box  *box.Box
	pose Pose
	log  *zap.Logger

	local          math.Vec3
	adjustedByUser bool

	cur       *session
	onOutside func(world math.Vec3)
}

// NewOrigin places an origin at the center of b.
func NewOrigin(b *box.Box, pose Pose) *Origin {
	return &Origin{
		box:  b,
		pose: pose,
		log:  logger.Named("origin"),
	}
}

// Position returns the origin in box-local coordinates.
func (o *Origin) Position() math.Vec3 { return o.local }

// SetPosition moves the origin to a box-local point.
func (o *Origin) SetPosition(local math.Vec3) { o.local = local }

// WorldPosition returns the origin in world coordinates.
func (o *Origin) WorldPosition() math.Vec3 { return o.box.LocalToWorld(o.local) }

// SetWorldPosition moves the origin to a world point.
func (o *Origin) SetWorldPosition(world math.Vec3) { o.local = o.box.WorldToLocal(world) }

// WorldTransform returns the origin frame: the box orientation, translated
// to the origin.
func (o *Origin) WorldTransform() math.Mat4 {
	return o.box.WorldTransform().Mul(math.Translate(o.local))
}

// AdjustedByUser reports whether a drag or tap has moved the origin.
func (o *Origin) AdjustedByUser() bool { return o.adjustedByUser }

// OnMovedOutside registers fn to be called with the world position each
// time an edit leaves the origin outside the box.
func (o *Origin) OnMovedOutside(fn func(world math.Vec3)) { o.onOutside = fn }

// AxisSize returns the length of the axis handles: a quarter of the
// largest box edge, kept between 5 and 20 cm.
func (o *Origin) AxisSize() float32 {
	e := o.box.Extent()
	size := max(e.X, e.Y, e.Z) * axisSizeRatio
	return min(maxAxisSize, max(minAxisSize, size))
}

// State returns the drag in progress: Idle, AxisDrag or PlaneDrag.
func (o *Origin) State() State {
	if o.cur == nil {
		return Idle
	}
	return o.cur.state
}

// HighlightedAxis returns the axis being dragged.
func (o *Origin) HighlightedAxis() (box.Axis, bool) {
	if o.cur == nil || o.cur.state != AxisDrag {
		return 0, false
	}
	return o.cur.axis, true
}

// HitAxis returns the axis handle under screen, nearest first.
func (o *Origin) HitAxis(screen math.Vec2) (box.Axis, bool) {
	ray := o.pose.Projection().Ray(screen)
	local := ray.Transform(o.WorldTransform().Inverse())

	size := o.AxisSize()
	w := size * axisHalfWidth

	best := float32(gomath.Inf(1))
	var hit box.Axis
	found := false
	for _, a := range originAxes {
		n := a.Normal()
		lo := math.Splat(-w).Add(n.Scale(w))
		hi := math.Splat(w).Add(n.Scale(size))
		if t, ok := local.IntersectAABB(lo, hi); ok && t < best {
			best, hit, found = t, a, true
		}
	}
	return hit, found
}

// StartDrag begins moving the origin. On an axis handle the origin slides
// along that axis; elsewhere it moves in its horizontal plane, keeping its
// offset to the pointer when keepOffset is set.
func (o *Origin) StartDrag(screen math.Vec2, keepOffset bool) {
	o.adjustedByUser = true

	if axis, ok := o.HitAxis(screen); ok {
		dir := o.box.Snapshot().DirectionToWorld(axis.Normal()).Normalize()
		pos := o.WorldPosition()
		plane := picking.DragPlaneTransform(picking.Ray{Origin: pos, Direction: dir}, o.pose.WorldPosition())

		var offset math.Vec3
		if local, ok := picking.UnprojectOntoPlaneLocal(screen, plane, o.pose.Projection()); ok {
			offset = pos.Sub(plane.TransformPoint(math.Vec3{X: local.X}))
		}
		o.cur = &session{state: AxisDrag, axis: axis, plane: plane, offset: offset}
		o.log.Debug("origin axis drag started", zap.Stringer("axis", axis))
		return
	}

	plane := o.WorldTransform()
	var offset math.Vec3
	if keepOffset {
		if hit, ok := picking.UnprojectOntoPlane(screen, plane, o.pose.Projection()); ok {
			offset = o.WorldPosition().Sub(hit)
		}
	}
	o.cur = &session{state: PlaneDrag, plane: plane, offset: offset}
	o.log.Debug("origin plane drag started", zap.Bool("keep_offset", keepOffset))
}

// UpdateDrag moves the origin to follow the pointer.
func (o *Origin) UpdateDrag(screen math.Vec2) {
	s := o.cur
	if s == nil {
		return
	}
	proj := o.pose.Projection()

	switch s.state {
	case PlaneDrag:
		hit, ok := picking.UnprojectOntoPlane(screen, s.plane, proj)
		if !ok {
			return
		}
		o.SetWorldPosition(hit.Add(s.offset))
	case AxisDrag:
		local, ok := picking.UnprojectOntoPlaneLocal(screen, s.plane, proj)
		if !ok {
			return
		}
		o.SetWorldPosition(s.plane.TransformPoint(math.Vec3{X: local.X}).Add(s.offset))
	}
	o.checkOutside()
}

// EndDrag finishes the current drag.
func (o *Origin) EndDrag() {
	if o.cur != nil {
		o.log.Debug("origin drag ended", zap.Stringer("position", o.local))
	}
	o.cur = nil
}

// FlashOrReposition handles a tap. A tap on an axis handle only flashes
// that axis, which is returned. Anywhere else the origin jumps to the tap
// in its horizontal plane.
func (o *Origin) FlashOrReposition(screen math.Vec2) (box.Axis, bool) {
	if axis, ok := o.HitAxis(screen); ok {
		o.log.Debug("origin axis flashed", zap.Stringer("axis", axis))
		return axis, true
	}

	hit, ok := picking.UnprojectOntoPlane(screen, o.WorldTransform(), o.pose.Projection())
	if !ok {
		return 0, false
	}
	o.SetWorldPosition(hit)
	o.checkOutside()
	return 0, false
}

// IsOutsideBoundingBox reports whether the origin lies more than 2 mm past
// any face of the box.
func (o *Origin) IsOutsideBoundingBox() bool {
	half := o.box.Extent().Add(math.Splat(outsideThreshold)).Scale(0.5)
	p := o.local
	return p.X < -half.X || p.Y < -half.Y || p.Z < -half.Z ||
		p.X > half.X || p.Y > half.Y || p.Z > half.Z
}

// MoveToBottom drops the origin onto the bottom face of the box unless the
// user has already placed it. It reports whether the origin moved.
func (o *Origin) MoveToBottom() bool {
	if o.adjustedByUser {
		return false
	}
	o.local.Y = -o.box.Extent().Y / 2
	o.log.Debug("origin moved to bottom", zap.Stringer("position", o.local))
	return true
}

func (o *Origin) checkOutside() {
	if !o.IsOutsideBoundingBox() {
		return
	}
	if o.onOutside != nil {
		o.onOutside(o.WorldPosition())
	}
}

// Package drag turns pointer gestures into box edits.
//
// A Controller holds at most one drag session. Starting a drag replaces
// whatever session was active, and ending it discards the session without
// touching the box again. All updates that cannot be resolved (the pointer
// ray misses the drag plane, or the result would shrink the box below its
// minimum size) are dropped for that frame.
package drag

import (
	"go.uber.org/zap"

	"github.com/Faultbox/objscan/internal/box"
	"github.com/Faultbox/objscan/internal/logger"
	"github.com/Faultbox/objscan/internal/picking"
	"github.com/Faultbox/objscan/pkg/math"
)

// HitTester returns the box faces under a ray, nearest first.
type HitTester interface {
	HitTestFaces(ray picking.Ray) []box.FaceHit
}

// Pose is the camera state needed to turn screen positions into rays.
type Pose interface {
	WorldPosition() math.Vec3
	Projection() picking.Projection
}

// State is the kind of drag in progress.
type State int

const (
	Idle State = iota
	SideDrag
	AxisDrag
	PlaneDrag
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case SideDrag:
		return "side"
	case AxisDrag:
		return "axis"
	case PlaneDrag:
		return "plane"
	}
	return "unknown"
}

// session is the state captured at pointer-down.
type session struct {
	state State
	face  box.Face
	axis  box.Axis

	plane math.Mat4

	beginPosition math.Vec3
	beginExtent   math.Vec3

	// offset from the projected pointer to the box center
	offset math.Vec3
}

// Controller interprets pointer gestures against a box.
type Controller struct {
	box  *box.Box
	pose Pose
	hits HitTester
	log  *zap.Logger

	cur *session
}

// New creates a controller for b. A nil hits tests against b's own faces.
func New(b *box.Box, pose Pose, hits HitTester) *Controller {
	if hits == nil {
		hits = b
	}
	return &Controller{
		box:  b,
		pose: pose,
		hits: hits,
		log:  logger.Named("drag"),
	}
}

// State returns the active drag kind.
func (c *Controller) State() State {
	if c.cur == nil {
		return Idle
	}
	return c.cur.state
}

// ActiveFace returns the face being dragged during a side drag.
func (c *Controller) ActiveFace() (box.Face, bool) {
	if c.cur == nil || c.cur.state != SideDrag {
		return 0, false
	}
	return c.cur.face, true
}

// ActiveAxis returns the axis the box moves along during an axis drag.
func (c *Controller) ActiveAxis() (box.Axis, bool) {
	if c.cur == nil || c.cur.state != AxisDrag {
		return 0, false
	}
	return c.cur.axis, true
}

// IsHit reports whether the pointer at screen lies over any box face.
func (c *Controller) IsHit(screen math.Vec2) bool {
	return len(c.hitTest(screen)) > 0
}

func (c *Controller) hitTest(screen math.Vec2) []box.FaceHit {
	return c.hits.HitTestFaces(c.pose.Projection().Ray(screen))
}

func (c *Controller) begin(s *session) {
	if c.cur != nil {
		c.log.Debug("drag replaced", zap.Stringer("previous", c.cur.state), zap.Stringer("next", s.state))
	}
	c.cur = s
	c.box.MarkAdjustedByUser()
}

func (c *Controller) unprojectLocal(screen math.Vec2, plane math.Mat4) (math.Vec3, bool) {
	return picking.UnprojectOntoPlaneLocal(screen, plane, c.pose.Projection())
}

func (c *Controller) unproject(screen math.Vec2, plane math.Mat4) (math.Vec3, bool) {
	return picking.UnprojectOntoPlane(screen, plane, c.pose.Projection())
}

// StartSideDrag begins pushing or pulling the face under screen. It does
// nothing if no face is hit.
func (c *Controller) StartSideDrag(screen math.Vec2) {
	hits := c.hitTest(screen)
	if len(hits) == 0 {
		return
	}
	hit := hits[0]

	normal := c.box.Snapshot().DirectionToWorld(hit.Face.Normal()).Normalize()
	ray := picking.Ray{Origin: hit.Point, Direction: normal}

	c.begin(&session{
		state:         SideDrag,
		face:          hit.Face,
		axis:          hit.Face.DragAxis(),
		plane:         picking.DragPlaneTransform(ray, c.pose.WorldPosition()),
		beginPosition: c.box.Position(),
		beginExtent:   c.box.Extent(),
	})
	c.log.Debug("side drag started", zap.Stringer("face", hit.Face))
}

// UpdateSideDrag moves the dragged face to follow the pointer while the
// opposite face stays where it is.
func (c *Controller) UpdateSideDrag(screen math.Vec2) {
	s := c.cur
	if s == nil || s.state != SideDrag {
		return
	}
	hit, ok := c.unprojectLocal(screen, s.plane)
	if !ok {
		return
	}

	movement := hit.X
	extent := s.beginExtent.Add(s.axis.Normal().Scale(movement))
	if extent.MinComponent() < c.box.MinSize() {
		return
	}

	shift := s.plane.Column(0).Scale(movement / 2)
	c.box.SetPosition(s.beginPosition.Add(shift))
	c.box.SetExtent(extent)
}

// EndSideDrag finishes a side drag.
func (c *Controller) EndSideDrag() {
	if c.cur != nil && c.cur.state == SideDrag {
		c.end()
	}
}

// StartAxisOrPlaneDrag begins moving the box along the axis of the face
// under screen. If no face is hit the box is moved in its horizontal
// plane instead, keeping its offset from the pointer.
func (c *Controller) StartAxisOrPlaneDrag(screen math.Vec2) {
	hits := c.hitTest(screen)
	if len(hits) == 0 {
		c.StartPlaneDrag(screen, true)
		return
	}
	hit := hits[0]
	axis := hit.Face.DragAxis()

	dir := c.box.Snapshot().DirectionToWorld(axis.Normal()).Normalize()
	plane := picking.DragPlaneTransform(picking.Ray{Origin: hit.Point, Direction: dir}, c.pose.WorldPosition())

	var offset math.Vec3
	if local, ok := c.unprojectLocal(screen, plane); ok {
		onAxis := plane.TransformPoint(math.Vec3{X: local.X})
		offset = c.box.Position().Sub(onAxis)
	}

	c.begin(&session{
		state:         AxisDrag,
		face:          hit.Face,
		axis:          axis,
		plane:         plane,
		beginPosition: c.box.Position(),
		beginExtent:   c.box.Extent(),
		offset:        offset,
	})
	c.log.Debug("axis drag started", zap.Stringer("axis", axis))
}

// UpdateAxisOrPlaneDrag continues whichever drag StartAxisOrPlaneDrag began.
func (c *Controller) UpdateAxisOrPlaneDrag(screen math.Vec2) {
	s := c.cur
	if s == nil {
		return
	}
	if s.state == PlaneDrag {
		c.UpdatePlaneDrag(screen)
		return
	}
	if s.state != AxisDrag {
		return
	}

	local, ok := c.unprojectLocal(screen, s.plane)
	if !ok {
		return
	}
	onAxis := s.plane.TransformPoint(math.Vec3{X: local.X})
	c.box.SetPosition(onAxis.Add(s.offset))
}

// EndAxisOrPlaneDrag finishes an axis drag or its plane drag fallback.
func (c *Controller) EndAxisOrPlaneDrag() {
	if c.cur != nil && (c.cur.state == AxisDrag || c.cur.state == PlaneDrag) {
		c.end()
	}
}

// StartPlaneDrag begins moving the box within its own horizontal plane.
// With keepOffset the box keeps its offset to the pointer; otherwise the
// box center jumps to the pointer on the first update.
func (c *Controller) StartPlaneDrag(screen math.Vec2, keepOffset bool) {
	plane := c.box.WorldTransform()

	var offset math.Vec3
	if keepOffset {
		if hit, ok := c.unproject(screen, plane); ok {
			offset = c.box.Position().Sub(hit)
		}
	}

	c.begin(&session{
		state:         PlaneDrag,
		plane:         plane,
		beginPosition: c.box.Position(),
		beginExtent:   c.box.Extent(),
		offset:        offset,
	})
	c.log.Debug("plane drag started", zap.Bool("keep_offset", keepOffset))
}

// UpdatePlaneDrag moves the box to follow the pointer across the plane.
func (c *Controller) UpdatePlaneDrag(screen math.Vec2) {
	s := c.cur
	if s == nil || s.state != PlaneDrag {
		return
	}
	hit, ok := c.unproject(screen, s.plane)
	if !ok {
		return
	}
	c.box.SetPosition(hit.Add(s.offset))
}

// EndPlaneDrag finishes a plane drag.
func (c *Controller) EndPlaneDrag() {
	if c.cur != nil && c.cur.state == PlaneDrag {
		c.end()
	}
}

// Cancel discards any active drag.
func (c *Controller) Cancel() {
	if c.cur != nil {
		c.end()
	}
}

func (c *Controller) end() {
	c.log.Debug("drag ended",
		zap.Stringer("state", c.cur.state),
		zap.Stringer("position", c.box.Position()),
		zap.Stringer("extent", c.box.Extent()),
	)
	c.cur = nil
}

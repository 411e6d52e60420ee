// Package box holds the mutable geometry of the scan bounding box: its
// position, orientation and extent, the six faces derived from it, and the
// change events the rest of the session subscribes to.
//
// A Box is owned by one scan session and mutated from the input thread only.
// Listeners run synchronously inside the setter that fired them.
package box

import (
	"github.com/Faultbox/objscan/pkg/math"
)

// DefaultMinSize is the smallest allowed extent on any axis.
const DefaultMinSize float32 = 0.01

// Event identifies what changed on a Box.
type Event int

const (
	ExtentChanged Event = iota
	PositionChanged
	OrientationChanged
)

func (e Event) String() string {
	switch e {
	case ExtentChanged:
		return "extent"
	case PositionChanged:
		return "position"
	case OrientationChanged:
		return "orientation"
	}
	return "unknown"
}

// Listener receives change events together with the new geometry.
type Listener func(ev Event, snap Snapshot)

// Snapshot is an immutable copy of the box geometry. It is safe to hand to
// another goroutine.
type Snapshot struct {
	Position    math.Vec3
	Orientation math.Quat
	Extent      math.Vec3
}

// WorldTransform maps box-local coordinates to world coordinates.
func (s Snapshot) WorldTransform() math.Mat4 {
	return math.Translate(s.Position).Mul(s.Orientation.ToMat4())
}

// FaceTransform maps face coordinates of f to world coordinates.
func (s Snapshot) FaceTransform(f Face) math.Mat4 {
	return s.WorldTransform().Mul(f.LocalTransform(s.Extent))
}

// LocalToWorld converts a box-local point to world space.
func (s Snapshot) LocalToWorld(p math.Vec3) math.Vec3 {
	return s.Position.Add(s.Orientation.Rotate(p))
}

// WorldToLocal converts a world point to the box-local frame.
func (s Snapshot) WorldToLocal(p math.Vec3) math.Vec3 {
	return s.Orientation.Conjugate().Rotate(p.Sub(s.Position))
}

// DirectionToWorld rotates a box-local direction into world space.
func (s Snapshot) DirectionToWorld(d math.Vec3) math.Vec3 {
	return s.Orientation.Rotate(d)
}

// ContainsLocal reports whether a local point lies inside the box.
// Lower bounds are inclusive, upper bounds exclusive.
func (s Snapshot) ContainsLocal(p math.Vec3) bool {
	half := s.Extent.Scale(0.5)
	return p.X >= -half.X && p.X < half.X &&
		p.Y >= -half.Y && p.Y < half.Y &&
		p.Z >= -half.Z && p.Z < half.Z
}

// ContainsWorld reports whether a world point lies inside the box.
func (s Snapshot) ContainsWorld(p math.Vec3) bool {
	return s.ContainsLocal(s.WorldToLocal(p))
}

// Box is the interactive bounding box. SetExtent, SetPosition and
// SetOrientation are the only mutation paths; every higher-level operation
// goes through them so the minimum-size invariant always holds.
type Box struct {
	snap    Snapshot
	minSize float32

	adjustedByUser bool

	listeners map[int]Listener
	nextID    int
}

// New creates a box at position with the given extent, clamped to minSize.
// A non-positive minSize selects DefaultMinSize.
func New(position, extent math.Vec3, minSize float32) *Box {
	if minSize <= 0 {
		minSize = DefaultMinSize
	}
	return &Box{
		snap: Snapshot{
			Position:    position,
			Orientation: math.QuatIdentity(),
			Extent:      extent.Max(math.Splat(minSize)),
		},
		minSize:   minSize,
		listeners: make(map[int]Listener),
	}
}

// Snapshot returns a copy of the current geometry.
func (b *Box) Snapshot() Snapshot { return b.snap }

// Position returns the box center in world space.
func (b *Box) Position() math.Vec3 { return b.snap.Position }

// Extent returns width, height and depth.
func (b *Box) Extent() math.Vec3 { return b.snap.Extent }

// Orientation returns the box rotation.
func (b *Box) Orientation() math.Quat { return b.snap.Orientation }

// MinSize returns the extent lower bound.
func (b *Box) MinSize() float32 { return b.minSize }

// AdjustedByUser reports whether a user gesture has changed the box.
func (b *Box) AdjustedByUser() bool { return b.adjustedByUser }

// MarkAdjustedByUser records that a user gesture has changed the box.
// Automatic fitting and plane alignment stop once this is set.
func (b *Box) MarkAdjustedByUser() { b.adjustedByUser = true }

// Subscribe registers l for change events and returns a function that
// removes it again.
func (b *Box) Subscribe(l Listener) (cancel func()) {
	id := b.nextID
	b.nextID++
	b.listeners[id] = l
	return func() { delete(b.listeners, id) }
}

func (b *Box) emit(ev Event) {
	for _, l := range b.listeners {
		l(ev, b.snap)
	}
}

// SetExtent clamps every axis to at least MinSize and stores the result.
func (b *Box) SetExtent(extent math.Vec3) {
	extent = extent.Max(math.Splat(b.minSize))
	if extent == b.snap.Extent {
		return
	}
	b.snap.Extent = extent
	b.emit(ExtentChanged)
}

// SetPosition moves the box center.
func (b *Box) SetPosition(position math.Vec3) {
	if position == b.snap.Position {
		return
	}
	b.snap.Position = position
	b.emit(PositionChanged)
}

// SetOrientation replaces the box rotation.
func (b *Box) SetOrientation(q math.Quat) {
	q = q.Normalize()
	if q == b.snap.Orientation {
		return
	}
	b.snap.Orientation = q
	b.emit(OrientationChanged)
}

// RotateY spins the box about its vertical axis by angle radians.
func (b *Box) RotateY(angle float32) {
	b.SetOrientation(b.snap.Orientation.Mul(math.QuatFromAxisAngle(math.Vec3{Y: 1}, angle)))
	b.adjustedByUser = true
}

// Scale multiplies the extent by factor and keeps the floor of the box at
// the same height.
func (b *Box) Scale(factor float32) {
	oldHeight := b.snap.Extent.Y
	b.SetExtent(b.snap.Extent.Scale(factor))
	b.adjustedByUser = true

	diff := oldHeight - b.snap.Extent.Y
	pos := b.snap.Position
	pos.Y -= diff / 2
	b.SetPosition(pos)
}

// WorldTransform maps box-local coordinates to world coordinates.
func (b *Box) WorldTransform() math.Mat4 { return b.snap.WorldTransform() }

// LocalToWorld converts a box-local point to world space.
func (b *Box) LocalToWorld(p math.Vec3) math.Vec3 { return b.snap.LocalToWorld(p) }

// WorldToLocal converts a world point to the box-local frame.
func (b *Box) WorldToLocal(p math.Vec3) math.Vec3 { return b.snap.WorldToLocal(p) }

// FaceCenter returns the world position of a face center.
func (b *Box) FaceCenter(f Face) math.Vec3 {
	return b.snap.LocalToWorld(f.Center(b.snap.Extent))
}

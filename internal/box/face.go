package box

import (
	gomath "math"

	"github.com/Faultbox/objscan/pkg/math"
)

// Axis is one of the box's local axes.
type Axis int

const (
	AxisX Axis = iota
	AxisY
	AxisZ
)

// Normal returns the positive unit vector of the axis.
func (a Axis) Normal() math.Vec3 {
	switch a {
	case AxisX:
		return math.Vec3{X: 1}
	case AxisY:
		return math.Vec3{Y: 1}
	default:
		return math.Vec3{Z: 1}
	}
}

// Faces returns the two faces dragged along this axis.
func (a Axis) Faces() [2]Face {
	switch a {
	case AxisX:
		return [2]Face{Left, Right}
	case AxisY:
		return [2]Face{Top, Bottom}
	default:
		return [2]Face{Front, Back}
	}
}

func (a Axis) String() string {
	switch a {
	case AxisX:
		return "x"
	case AxisY:
		return "y"
	case AxisZ:
		return "z"
	}
	return "unknown"
}

// component returns the coordinate of v along a.
func component(v math.Vec3, a Axis) float32 {
	switch a {
	case AxisX:
		return v.X
	case AxisY:
		return v.Y
	default:
		return v.Z
	}
}

// Face is one of the six sides of the box.
type Face int

const (
	Front Face = iota
	Back
	Left
	Right
	Bottom
	Top
)

// AllFaces lists every face in index order.
var AllFaces = [6]Face{Front, Back, Left, Right, Bottom, Top}

func (f Face) String() string {
	switch f {
	case Front:
		return "front"
	case Back:
		return "back"
	case Left:
		return "left"
	case Right:
		return "right"
	case Bottom:
		return "bottom"
	case Top:
		return "top"
	}
	return "unknown"
}

// DragAxis returns the axis shared by this face and its opposite.
func (f Face) DragAxis() Axis {
	switch f {
	case Left, Right:
		return AxisX
	case Bottom, Top:
		return AxisY
	default:
		return AxisZ
	}
}

// positive reports whether the outward normal points along +DragAxis.
func (f Face) positive() bool {
	return f == Front || f == Right || f == Top
}

// Normal returns the outward normal in the box's local frame.
func (f Face) Normal() math.Vec3 {
	n := f.DragAxis().Normal()
	if f.positive() {
		return n
	}
	return n.Neg()
}

// Opposite returns the face on the other side of the box.
func (f Face) Opposite() Face {
	switch f {
	case Front:
		return Back
	case Back:
		return Front
	case Left:
		return Right
	case Right:
		return Left
	case Bottom:
		return Top
	default:
		return Bottom
	}
}

// Size returns the face's width and height for a box of the given extent.
func (f Face) Size(extent math.Vec3) math.Vec2 {
	switch f {
	case Front, Back:
		return math.Vec2{X: extent.X, Y: extent.Y}
	case Left, Right:
		return math.Vec2{X: extent.Z, Y: extent.Y}
	default:
		return math.Vec2{X: extent.X, Y: extent.Z}
	}
}

// Center returns the face center in the box's local frame.
func (f Face) Center(extent math.Vec3) math.Vec3 {
	return f.Normal().Mul(extent.Scale(0.5))
}

// rotation turns the face frame so its local Z is the outward normal and
// its local XY plane spans the face.
func (f Face) rotation() math.Quat {
	const halfPi = float32(gomath.Pi / 2)
	switch f {
	case Back:
		return math.QuatFromAxisAngle(math.Vec3{Y: 1}, float32(gomath.Pi))
	case Left:
		return math.QuatFromAxisAngle(math.Vec3{Y: 1}, -halfPi)
	case Right:
		return math.QuatFromAxisAngle(math.Vec3{Y: 1}, halfPi)
	case Bottom:
		return math.QuatFromAxisAngle(math.Vec3{X: 1}, halfPi)
	case Top:
		return math.QuatFromAxisAngle(math.Vec3{X: 1}, -halfPi)
	default:
		return math.QuatIdentity()
	}
}

// LocalTransform maps face coordinates into the box's local frame.
func (f Face) LocalTransform(extent math.Vec3) math.Mat4 {
	return math.Translate(f.Center(extent)).Mul(f.rotation().ToMat4())
}

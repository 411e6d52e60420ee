package fit

import (
	gomath "math"

	"go.uber.org/zap"

	"github.com/Faultbox/objscan/internal/box"
	"github.com/Faultbox/objscan/pkg/math"
)

// DetectedPlane is a horizontal surface found by the tracker. Center and
// Extent are in the plane's own frame, where Y is the plane normal and the
// plane spans X and Z.
type DetectedPlane struct {
	Transform math.Mat4
	Center    math.Vec3
	Extent    math.Vec3
}

// contains reports whether the plane-local point lies over the plane grown
// by tolerance times its extent on each side.
func (p DetectedPlane) contains(local math.Vec3, tolerance float32) bool {
	minX := p.Center.X - p.Extent.X/2 - p.Extent.X*tolerance
	maxX := p.Center.X + p.Extent.X/2 + p.Extent.X*tolerance
	minZ := p.Center.Z - p.Extent.Z/2 - p.Extent.Z*tolerance
	maxZ := p.Center.Z + p.Extent.Z/2 + p.Extent.Z*tolerance
	return local.X >= minX && local.X <= maxX && local.Z >= minZ && local.Z <= maxZ
}

// AlignWithPlanes extends the bottom of b down onto the nearest plane
// beneath it, keeping the top in place. Boxes the user has adjusted are
// left alone. It reports whether the box changed.
func (f *Fitter) AlignWithPlanes(b *box.Box, planes []DetectedPlane) bool {
	if b.AdjustedByUser() {
		return false
	}

	pos, extent := b.Position(), b.Extent()
	bottom := math.Vec3{X: pos.X, Y: pos.Y - extent.Y/2, Z: pos.Z}

	nearest := float32(gomath.Inf(1))
	var offset float32
	found := false
	for _, p := range planes {
		local := p.Transform.Inverse().TransformPoint(bottom)
		if !p.contains(local, f.cfg.PlaneTolerance) {
			continue
		}
		if d := abs(local.Y); d < nearest {
			nearest = d
			offset = local.Y
			found = true
		}
	}

	if !found || nearest <= f.cfg.PlaneEpsilon {
		return false
	}
	if nearest >= extent.Y/2 || offset <= 0 {
		return false
	}

	pos.Y -= offset / 2
	extent.Y += offset
	b.SetPosition(pos)
	b.SetExtent(extent)

	f.log.Debug("aligned with plane", zap.Float32("offset", offset))
	return true
}

func abs(f float32) float32 {
	if f < 0 {
		return -f
	}
	return f
}

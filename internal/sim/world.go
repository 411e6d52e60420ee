package sim

import (
	"math/rand/v2"

	"github.com/Faultbox/objscan/internal/fit"
	"github.com/Faultbox/objscan/pkg/math"
)

// World is a synthetic scene: one box-shaped object resting on a floor
// plane at y = 0, seen as a noisy point cloud.
type World struct {
	ObjectCenter math.Vec3
	ObjectExtent math.Vec3
	Points       []math.Vec3
	Floor        fit.DetectedPlane
}

// WorldConfig describes the synthetic scene.
type WorldConfig struct {
	ObjectExtent math.Vec3
	Points       int
	Noise        float32
	Outliers     int
	Seed         int64
}

// NewWorld samples points uniformly over the visible faces of the object
// (every face but the bottom), jitters them by noise and scatters outliers
// around the object.
func NewWorld(cfg WorldConfig) *World {
	rng := rand.New(rand.NewPCG(uint64(cfg.Seed), uint64(cfg.Seed)^0x9e3779b97f4a7c15))
	ext := cfg.ObjectExtent
	center := math.Vec3{Y: ext.Y / 2}

	w := &World{
		ObjectCenter: center,
		ObjectExtent: ext,
		Points:       make([]math.Vec3, 0, cfg.Points+cfg.Outliers),
		Floor: fit.DetectedPlane{
			Transform: math.Identity(),
			Extent:    math.Vec3{X: 2, Z: 2},
		},
	}

	// Face areas weight the sampling so density is even.
	areas := [5]float32{
		ext.X * ext.Y, // front
		ext.X * ext.Y, // back
		ext.Z * ext.Y, // left
		ext.Z * ext.Y, // right
		ext.X * ext.Z, // top
	}
	var total float32
	for _, a := range areas {
		total += a
	}

	half := ext.Scale(0.5)
	for range cfg.Points {
		u, v := rng.Float32()*2-1, rng.Float32()*2-1
		pick := rng.Float32() * total
		face := 0
		for face < len(areas)-1 && pick > areas[face] {
			pick -= areas[face]
			face++
		}

		var p math.Vec3
		switch face {
		case 0:
			p = math.Vec3{X: u * half.X, Y: v * half.Y, Z: half.Z}
		case 1:
			p = math.Vec3{X: u * half.X, Y: v * half.Y, Z: -half.Z}
		case 2:
			p = math.Vec3{X: -half.X, Y: v * half.Y, Z: u * half.Z}
		case 3:
			p = math.Vec3{X: half.X, Y: v * half.Y, Z: u * half.Z}
		default:
			p = math.Vec3{X: u * half.X, Y: half.Y, Z: v * half.Z}
		}
		p = p.Add(jitter(rng, cfg.Noise))
		w.Points = append(w.Points, center.Add(p))
	}

	for range cfg.Outliers {
		p := jitter(rng, 3*max(ext.X, ext.Y, ext.Z))
		w.Points = append(w.Points, center.Add(p))
	}
	return w
}

func jitter(rng *rand.Rand, amount float32) math.Vec3 {
	return math.Vec3{
		X: (rng.Float32()*2 - 1) * amount,
		Y: (rng.Float32()*2 - 1) * amount,
		Z: (rng.Float32()*2 - 1) * amount,
	}
}

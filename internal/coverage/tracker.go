// Package coverage tracks which parts of the bounding box surface the
// camera has looked at.
//
// Each face is split into a grid of tiles. Camera rays sampled during the
// scan are remembered when they hit a new spot, and the captured state of
// every tile is recomputed from that history, so resizing the box never
// leaves stale coverage behind.
//
// A Tracker is not safe for concurrent use. The scan session confines it
// to a worker.Queue; only BeginRegeneration and Regenerating may be called
// from other goroutines.
package coverage

import (
	gomath "math"
	"sync/atomic"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/Faultbox/objscan/internal/box"
	"github.com/Faultbox/objscan/internal/logger"
	"github.com/Faultbox/objscan/internal/picking"
	"github.com/Faultbox/objscan/pkg/math"
)

// Config holds the tiling and sampling limits.
type Config struct {
	MaxTileSize   float32 // longest tile edge
	MaxTileCount  int     // tiles per face axis
	DedupDistance float32 // minimum spacing between recorded hit points
	MaxRayLength  float32 // camera ray segment length
}

// DefaultConfig returns the standard limits.
func DefaultConfig() Config {
	return Config{
		MaxTileSize:   0.1,
		MaxTileCount:  4,
		DedupDistance: 0.03,
		MaxRayLength:  5,
	}
}

// Sample is a remembered camera ray and where it first hit a tile.
type Sample struct {
	Ray picking.Ray
	Hit math.Vec3
}

// TileHit identifies the tile a ray hit.
type TileHit struct {
	Face     box.Face
	Index    int
	Point    math.Vec3 // world space
	Distance float32
}

// Tracker owns the tile grids and sample history.
type Tracker struct {
	cfg    Config
	layout box.Snapshot

	faces   [6]FaceTiles
	pending [6]atomic.Bool

	samples  []Sample
	progress int

	onProgress func(percent int)

	log     *zap.Logger
	metrics *metrics
}

// NewTracker creates a tracker for a box with the given geometry and lays
// out the tiles of every face.
func NewTracker(cfg Config, layout box.Snapshot) *Tracker {
	t := &Tracker{
		cfg:     cfg,
		layout:  layout,
		log:     logger.Named("coverage"),
		metrics: newMetrics(),
	}
	for _, f := range box.AllFaces {
		t.RegenerateFace(f)
	}
	return t
}

// OnProgress registers fn to be called with the new percentage whenever
// RecomputeCapturedTiles changes it.
func (t *Tracker) OnProgress(fn func(percent int)) {
	t.onProgress = fn
}

// SetLayout replaces the box geometry used for hit tests. Tiles keep their
// current grid until the face is regenerated.
func (t *Tracker) SetLayout(layout box.Snapshot) {
	t.layout = layout
}

// Layout returns the box geometry used for hit tests.
func (t *Tracker) Layout() box.Snapshot {
	return t.layout
}

// BeginRegeneration marks face as being rebuilt. Its tiles are ignored by
// hit tests until RegenerateFace runs. Safe for concurrent use.
func (t *Tracker) BeginRegeneration(face box.Face) {
	t.pending[face].Store(true)
}

// Regenerating reports whether face is waiting to be rebuilt. Safe for
// concurrent use.
func (t *Tracker) Regenerating(face box.Face) bool {
	return t.pending[face].Load()
}

// NeedsRegeneration reports whether the face size differs from the size
// its tiles were laid out for.
func (t *Tracker) NeedsRegeneration(face box.Face) bool {
	return face.Size(t.layout.Extent) != t.faces[face].Size
}

// RegenerateFace replaces the tiles of face with a fresh grid for the
// current face size. Captured state of the face is reset.
func (t *Tracker) RegenerateFace(face box.Face) {
	size := face.Size(t.layout.Extent)
	t.faces[face] = Subdivide(face, size, t.cfg.MaxTileSize, t.cfg.MaxTileCount)
	t.pending[face].Store(false)

	t.log.Debug("tiles regenerated",
		zap.Stringer("face", face),
		zap.Int("rows", t.faces[face].Rows),
		zap.Int("cols", t.faces[face].Cols),
	)
}

// Face returns a copy of the tile grid of face.
func (t *Tracker) Face(face box.Face) FaceTiles {
	return t.faces[face].clone()
}

// Samples returns a copy of the recorded sample history.
func (t *Tracker) Samples() []Sample {
	return append([]Sample(nil), t.samples...)
}

// SampleCoverage returns the nearest tile hit by the ray segment starting
// at ray.Origin and running MaxRayLength along ray.Direction. Faces waiting
// for regeneration are skipped.
func (t *Tracker) SampleCoverage(ray picking.Ray) (TileHit, bool) {
	dir := ray.Direction.Normalize()
	world := picking.Ray{Origin: ray.Origin, Direction: dir}

	best := TileHit{Distance: float32(gomath.Inf(1))}
	found := false

	for _, f := range box.AllFaces {
		if t.pending[f].Load() {
			continue
		}
		grid := &t.faces[f]
		if len(grid.Tiles) == 0 {
			continue
		}

		faceToWorld := t.layout.FaceTransform(f)
		local := world.Transform(faceToWorld.Inverse())
		if abs(local.Direction.Z) < 1e-9 {
			continue
		}
		// Rigid transforms keep the direction unit length, so the local
		// parameter is also the world distance.
		dist := -local.Origin.Z / local.Direction.Z
		if dist < 0 || dist > t.cfg.MaxRayLength || dist >= best.Distance {
			continue
		}

		p := local.At(dist)
		for i := range grid.Tiles {
			if grid.Tiles[i].contains(p) {
				best = TileHit{Face: f, Index: i, Point: world.At(dist), Distance: dist}
				found = true
				break
			}
		}
	}
	return best, found
}

// RecordSampleIfNovel remembers ray if it hits a tile at least
// DedupDistance away from every hit recorded so far. It reports whether
// the sample was stored.
func (t *Tracker) RecordSampleIfNovel(ray picking.Ray) bool {
	hit, ok := t.SampleCoverage(ray)
	if !ok {
		return false
	}
	for i := len(t.samples) - 1; i >= 0; i-- {
		if t.samples[i].Hit.Distance(hit.Point) < t.cfg.DedupDistance {
			t.metrics.rejected()
			return false
		}
	}

	t.samples = append(t.samples, Sample{Ray: ray, Hit: hit.Point})
	t.metrics.recorded()
	return true
}

// RecomputeCapturedTiles replays the whole sample history against the
// current tiles and returns the resulting coverage percentage. Progress
// listeners are notified only when the percentage changes.
func (t *Tracker) RecomputeCapturedTiles() int {
	for f := range t.faces {
		for i := range t.faces[f].Tiles {
			t.faces[f].Tiles[i].Captured = false
		}
	}
	for _, s := range t.samples {
		if hit, ok := t.SampleCoverage(s.Ray); ok {
			t.faces[hit.Face].Tiles[hit.Index].Captured = true
		}
	}

	pct := t.CoveragePercentage()
	if pct != t.progress {
		t.log.Debug("coverage changed", zap.Int("from", t.progress), zap.Int("to", pct), zap.Int("samples", len(t.samples)))
		t.progress = pct
		t.metrics.setProgress(pct)
		if t.onProgress != nil {
			t.onProgress(pct)
		}
	}
	return pct
}

// CoveragePercentage averages the completion of every face except the
// bottom and returns it as a whole percentage in [0, 100].
func (t *Tracker) CoveragePercentage() int {
	visible := lo.Filter(t.faces[:], func(f FaceTiles, _ int) bool { return f.Face != box.Bottom })
	sum := lo.SumBy(visible, func(f FaceTiles) float64 { return f.Completion() })

	pct := int(gomath.Floor(sum/float64(len(visible))*100 + 1e-9))
	return max(0, min(100, pct))
}

// Progress returns the last percentage reported by RecomputeCapturedTiles.
func (t *Tracker) Progress() int {
	return t.progress
}

// HighlightTile clears every highlight and highlights the tile hit by ray,
// if any.
func (t *Tracker) HighlightTile(ray picking.Ray) (TileHit, bool) {
	for f := range t.faces {
		for i := range t.faces[f].Tiles {
			t.faces[f].Tiles[i].Highlighted = false
		}
	}
	hit, ok := t.SampleCoverage(ray)
	if ok {
		t.faces[hit.Face].Tiles[hit.Index].Highlighted = true
	}
	return hit, ok
}

// Reset forgets every sample and clears captured and highlighted state.
// The reported progress is left alone so the next recompute announces the
// drop.
func (t *Tracker) Reset() {
	t.samples = nil
	for f := range t.faces {
		for i := range t.faces[f].Tiles {
			t.faces[f].Tiles[i].Captured = false
			t.faces[f].Tiles[i].Highlighted = false
		}
	}
}

// Close releases the tracker's metric callbacks. The tracker stays usable;
// its progress is just no longer observed. Safe for concurrent use with the
// queue that owns the tracker.
func (t *Tracker) Close() {
	t.metrics.close()
}

package coverage

import (
	gomath "math"
	"testing"

	"github.com/Faultbox/objscan/internal/box"
	"github.com/Faultbox/objscan/internal/picking"
	"github.com/Faultbox/objscan/pkg/math"
)

const eps = 1e-4

func cube(size float32) box.Snapshot {
	return box.New(math.Vec3{}, math.Splat(size), 0).Snapshot()
}

// rayAt returns a ray that hits the given tile center of face head-on from
// one unit away.
func rayAt(tr *Tracker, f box.Face, tile Tile) picking.Ray {
	layout := tr.Layout()
	point := layout.FaceTransform(f).TransformPoint(math.Vec3{X: tile.Center.X, Y: tile.Center.Y})
	normal := layout.DirectionToWorld(f.Normal())
	return picking.Ray{Origin: point.Add(normal), Direction: normal.Neg()}
}

func TestSubdivide(t *testing.T) {
	tests := []struct {
		name       string
		size       math.Vec2
		rows, cols int
	}{
		{"quarter", math.Vec2{X: 0.25, Y: 0.25}, 3, 3},
		{"capped", math.Vec2{X: 1, Y: 0.05}, 1, 4},
		{"tiny", math.Vec2{X: 0.01, Y: 0.01}, 1, 1},
		{"exact", math.Vec2{X: 0.2, Y: 0.3}, 3, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := Subdivide(box.Front, tt.size, 0.1, 4)
			if g.Rows != tt.rows || g.Cols != tt.cols {
				t.Errorf("grid = %dx%d, want %dx%d", g.Rows, g.Cols, tt.rows, tt.cols)
			}
			if len(g.Tiles) != tt.rows*tt.cols {
				t.Errorf("len(Tiles) = %d, want %d", len(g.Tiles), tt.rows*tt.cols)
			}
		})
	}
}

func TestSubdivideLayout(t *testing.T) {
	g := Subdivide(box.Front, math.Vec2{X: 0.25, Y: 0.25}, 0.1, 4)

	tw := float32(0.25) / 3
	first := g.Tiles[0]
	if abs(first.Center.X-(-0.125+tw/2)) > eps || abs(first.Center.Y-(0.125-tw/2)) > eps {
		t.Errorf("top-left tile center = %v", first.Center)
	}
	if abs(first.Size.X-tw) > eps || abs(first.Size.Y-tw) > eps {
		t.Errorf("tile size = %v, want %v", first.Size, tw)
	}

	last := g.Tiles[len(g.Tiles)-1]
	if last.Row != 2 || last.Col != 2 {
		t.Errorf("last tile = row %d col %d, want 2, 2", last.Row, last.Col)
	}
	if abs(last.Center.X-(0.125-tw/2)) > eps || abs(last.Center.Y-(-0.125+tw/2)) > eps {
		t.Errorf("bottom-right tile center = %v", last.Center)
	}
}

func TestCompletionWithoutTiles(t *testing.T) {
	if got := (FaceTiles{}).Completion(); got != 0 {
		t.Errorf("Completion() = %v, want 0", got)
	}
}

func TestSampleCoverageNearest(t *testing.T) {
	tr := NewTracker(DefaultConfig(), cube(0.25))

	hit, ok := tr.SampleCoverage(picking.Ray{Origin: math.Vec3{Z: 2}, Direction: math.Vec3{Z: -1}})
	if !ok {
		t.Fatal("SampleCoverage() missed")
	}
	if hit.Face != box.Front || hit.Index != 4 {
		t.Errorf("hit = %v tile %d, want front tile 4", hit.Face, hit.Index)
	}
	if abs(hit.Distance-1.875) > eps {
		t.Errorf("Distance = %v, want 1.875", hit.Distance)
	}
	if !hit.Point.ApproxEqual(math.Vec3{Z: 0.125}, eps) {
		t.Errorf("Point = %v, want (0, 0, 0.125)", hit.Point)
	}
}

func TestSampleCoverageSegmentLength(t *testing.T) {
	tr := NewTracker(DefaultConfig(), cube(0.25))

	if _, ok := tr.SampleCoverage(picking.Ray{Origin: math.Vec3{Z: 6}, Direction: math.Vec3{Z: -1}}); ok {
		t.Error("SampleCoverage() hit beyond the ray length")
	}
	if _, ok := tr.SampleCoverage(picking.Ray{Origin: math.Vec3{Z: 2}, Direction: math.Vec3{Z: 1}}); ok {
		t.Error("SampleCoverage() hit behind the ray origin")
	}
}

func TestSampleCoverageSkipsPendingFace(t *testing.T) {
	tr := NewTracker(DefaultConfig(), cube(0.25))
	ray := picking.Ray{Origin: math.Vec3{Z: 2}, Direction: math.Vec3{Z: -1}}

	tr.BeginRegeneration(box.Front)
	if !tr.Regenerating(box.Front) {
		t.Fatal("Regenerating(front) = false after BeginRegeneration")
	}

	hit, ok := tr.SampleCoverage(ray)
	if !ok || hit.Face != box.Back {
		t.Errorf("hit = %v, %v, want back face", hit.Face, ok)
	}

	tr.RegenerateFace(box.Front)
	if tr.Regenerating(box.Front) {
		t.Error("Regenerating(front) = true after RegenerateFace")
	}
	if hit, _ := tr.SampleCoverage(ray); hit.Face != box.Front {
		t.Errorf("hit = %v after regeneration, want front", hit.Face)
	}
}

func TestRecordSampleDedup(t *testing.T) {
	tr := NewTracker(DefaultConfig(), cube(0.25))
	down := math.Vec3{Z: -1}

	rays := []struct {
		origin math.Vec3
		want   bool
	}{
		{math.Vec3{Z: 2}, true},
		{math.Vec3{X: 0.01, Z: 2}, false},
		{math.Vec3{X: 0.05, Z: 2}, true},
		{math.Vec3{X: 0.07, Z: 2}, false},
		{math.Vec3{X: -0.05, Z: 2}, true},
		{math.Vec3{X: 3, Z: 2}, false}, // misses the box
	}
	for _, r := range rays {
		if got := tr.RecordSampleIfNovel(picking.Ray{Origin: r.origin, Direction: down}); got != r.want {
			t.Errorf("RecordSampleIfNovel(%v) = %v, want %v", r.origin, got, r.want)
		}
	}

	samples := tr.Samples()
	if len(samples) != 3 {
		t.Fatalf("len(Samples()) = %d, want 3", len(samples))
	}
	for i := range samples {
		for j := i + 1; j < len(samples); j++ {
			if d := samples[i].Hit.Distance(samples[j].Hit); d < 0.03 {
				t.Errorf("samples %d and %d are %v apart", i, j, d)
			}
		}
	}
}

func TestRecomputeIdempotent(t *testing.T) {
	tr := NewTracker(DefaultConfig(), cube(0.25))
	front := tr.Face(box.Front)
	for _, tile := range front.Tiles[:4] {
		tr.RecordSampleIfNovel(rayAt(tr, box.Front, tile))
	}

	first := tr.RecomputeCapturedTiles()
	before := tr.Face(box.Front)
	second := tr.RecomputeCapturedTiles()
	after := tr.Face(box.Front)

	if first != second {
		t.Errorf("percentages differ: %d then %d", first, second)
	}
	for i := range before.Tiles {
		if before.Tiles[i].Captured != after.Tiles[i].Captured {
			t.Errorf("tile %d captured changed from %v to %v", i, before.Tiles[i].Captured, after.Tiles[i].Captured)
		}
	}
	if got := after.Captured(); got != 4 {
		t.Errorf("captured tiles = %d, want 4", got)
	}
}

func TestCoverageReachesHundred(t *testing.T) {
	tr := NewTracker(DefaultConfig(), cube(0.25))

	var reports []int
	tr.OnProgress(func(p int) { reports = append(reports, p) })

	last := 0
	for _, f := range box.AllFaces {
		if f == box.Bottom {
			continue
		}
		for _, tile := range tr.Face(f).Tiles {
			if !tr.RecordSampleIfNovel(rayAt(tr, f, tile)) {
				t.Fatalf("sample for %v tile %d,%d rejected", f, tile.Row, tile.Col)
			}
			pct := tr.RecomputeCapturedTiles()
			if pct < last {
				t.Fatalf("coverage dropped from %d to %d", last, pct)
			}
			if pct < 0 || pct > 100 {
				t.Fatalf("coverage %d out of range", pct)
			}
			last = pct
		}
	}

	if last != 100 {
		t.Errorf("coverage = %d, want 100", last)
	}
	if got := len(tr.Samples()); got != 45 {
		t.Errorf("len(Samples()) = %d, want 45", got)
	}
	if len(reports) == 0 || reports[len(reports)-1] != 100 {
		t.Errorf("progress reports = %v, want to end at 100", reports)
	}
	for i := 1; i < len(reports); i++ {
		if reports[i] == reports[i-1] {
			t.Errorf("progress %d reported twice in a row", reports[i])
		}
	}
}

func TestBottomExcluded(t *testing.T) {
	tr := NewTracker(DefaultConfig(), cube(0.25))
	for _, tile := range tr.Face(box.Bottom).Tiles {
		tr.RecordSampleIfNovel(rayAt(tr, box.Bottom, tile))
	}

	if got := tr.RecomputeCapturedTiles(); got != 0 {
		t.Errorf("coverage = %d, want 0", got)
	}
	if got := tr.Face(box.Bottom).Captured(); got != 9 {
		t.Errorf("captured bottom tiles = %d, want 9", got)
	}
}

func TestOneFaceIsTwentyPercent(t *testing.T) {
	tr := NewTracker(DefaultConfig(), cube(0.25))
	for _, tile := range tr.Face(box.Top).Tiles {
		tr.RecordSampleIfNovel(rayAt(tr, box.Top, tile))
	}
	if got := tr.RecomputeCapturedTiles(); got != 20 {
		t.Errorf("coverage = %d, want 20", got)
	}
}

func TestResizeRecomputesFromHistory(t *testing.T) {
	tr := NewTracker(DefaultConfig(), cube(0.25))
	ray := picking.Ray{Origin: math.Vec3{Z: 2}, Direction: math.Vec3{Z: -1}}
	tr.RecordSampleIfNovel(ray)
	tr.RecomputeCapturedTiles()

	tr.SetLayout(cube(0.5))
	if !tr.NeedsRegeneration(box.Front) {
		t.Fatal("NeedsRegeneration(front) = false after resize")
	}
	tr.RegenerateFace(box.Front)
	if tr.NeedsRegeneration(box.Front) {
		t.Error("NeedsRegeneration(front) = true after regeneration")
	}

	front := tr.Face(box.Front)
	if front.Rows != 4 || front.Cols != 4 {
		t.Errorf("grid = %dx%d, want 4x4", front.Rows, front.Cols)
	}
	if front.Captured() != 0 {
		t.Errorf("fresh tiles are captured")
	}

	tr.RecomputeCapturedTiles()
	if got := tr.Face(box.Front).Captured(); got != 1 {
		t.Errorf("captured after recompute = %d, want 1", got)
	}
}

func TestHighlightTile(t *testing.T) {
	tr := NewTracker(DefaultConfig(), cube(0.25))
	front := tr.Face(box.Front)

	tr.HighlightTile(rayAt(tr, box.Front, front.Tiles[0]))
	if _, ok := tr.HighlightTile(rayAt(tr, box.Front, front.Tiles[8])); !ok {
		t.Fatal("HighlightTile() missed")
	}

	highlighted := 0
	for _, f := range box.AllFaces {
		for i, tile := range tr.Face(f).Tiles {
			if tile.Highlighted {
				highlighted++
				if f != box.Front || i != 8 {
					t.Errorf("highlighted %v tile %d, want front tile 8", f, i)
				}
			}
		}
	}
	if highlighted != 1 {
		t.Errorf("highlighted tiles = %d, want 1", highlighted)
	}
}

func TestReset(t *testing.T) {
	tr := NewTracker(DefaultConfig(), cube(0.25))
	for _, tile := range tr.Face(box.Front).Tiles {
		tr.RecordSampleIfNovel(rayAt(tr, box.Front, tile))
	}
	if tr.RecomputeCapturedTiles() != 20 {
		t.Fatal("setup did not capture the front face")
	}

	tr.Reset()
	if len(tr.Samples()) != 0 {
		t.Errorf("Samples() not empty after Reset")
	}
	if tr.Face(box.Front).Captured() != 0 {
		t.Errorf("tiles still captured after Reset")
	}
	if tr.Progress() != 20 {
		t.Errorf("Progress() = %d, want last reported 20", tr.Progress())
	}

	var got []int
	tr.OnProgress(func(p int) { got = append(got, p) })
	tr.RecomputeCapturedTiles()
	if len(got) != 1 || got[0] != 0 {
		t.Errorf("progress reports = %v, want [0]", got)
	}
}

func TestTileOpacity(t *testing.T) {
	tests := []struct {
		tile Tile
		want float32
	}{
		{Tile{}, 0},
		{Tile{Captured: true}, 0.5},
		{Tile{Highlighted: true}, 0.35},
		{Tile{Captured: true, Highlighted: true}, 0.85},
	}
	for _, tt := range tests {
		if got := tt.tile.Opacity(); gomath.Abs(float64(got-tt.want)) > 1e-6 {
			t.Errorf("Opacity(%+v) = %v, want %v", tt.tile, got, tt.want)
		}
	}
}

func TestAppearance(t *testing.T) {
	plain := Tile{Captured: true}.Appearance(DefaultTileColor)
	lit := Tile{Captured: true, Highlighted: true}.Appearance(DefaultTileColor)

	_, _, vPlain := plain.Color.Hsv()
	_, sLit, vLit := lit.Color.Hsv()
	_, sPlain, _ := plain.Color.Hsv()
	if vLit < vPlain || sLit >= sPlain {
		t.Errorf("highlighted color %v is not lighter than %v", lit.Color.Hex(), plain.Color.Hex())
	}
	if plain.Opacity != 0.5 {
		t.Errorf("Opacity = %v, want 0.5", plain.Opacity)
	}
}

func TestProgressColor(t *testing.T) {
	h0, _, _ := ProgressColor(0).Hsv()
	h100, _, _ := ProgressColor(100).Hsv()
	if gomath.Abs(h0) > 1 {
		t.Errorf("hue at 0%% = %v, want red", h0)
	}
	if gomath.Abs(h100-120) > 1 {
		t.Errorf("hue at 100%% = %v, want green", h100)
	}
}

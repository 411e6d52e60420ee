package coverage

import (
	gomath "math"

	"github.com/samber/lo"

	"github.com/Faultbox/objscan/internal/box"
	"github.com/Faultbox/objscan/pkg/math"
)

// Tile is one cell of a face grid. Center and Size are in the face frame,
// where X runs along the face width and Y along its height.
type Tile struct {
	Row, Col int
	Center   math.Vec2
	Size     math.Vec2

	Captured    bool
	Highlighted bool
}

// Opacity returns how strongly the tile should be drawn.
func (t Tile) Opacity() float32 {
	var o float32
	if t.Captured {
		o += 0.5
	}
	if t.Highlighted {
		o += 0.35
	}
	return o
}

func (t Tile) contains(p math.Vec3) bool {
	const slack = 1e-5
	return abs(p.X-t.Center.X) <= t.Size.X/2+slack && abs(p.Y-t.Center.Y) <= t.Size.Y/2+slack
}

// FaceTiles is the tile grid of one box face.
type FaceTiles struct {
	Face box.Face

	// Size is the face size the grid was laid out for.
	Size       math.Vec2
	Rows, Cols int
	Tiles      []Tile
}

// Completion returns the captured fraction of the face in [0, 1]. A face
// without tiles has completion 0.
func (f FaceTiles) Completion() float64 {
	if len(f.Tiles) == 0 {
		return 0
	}
	captured := lo.CountBy(f.Tiles, func(t Tile) bool { return t.Captured })
	return float64(captured) / float64(len(f.Tiles))
}

// Captured returns the number of captured tiles.
func (f FaceTiles) Captured() int {
	return lo.CountBy(f.Tiles, func(t Tile) bool { return t.Captured })
}

func (f FaceTiles) clone() FaceTiles {
	f.Tiles = append([]Tile(nil), f.Tiles...)
	return f
}

// gridCount returns how many tiles of at most maxSize fit along length,
// capped at maxCount and never less than one.
func gridCount(length, maxSize float32, maxCount int) int {
	n := int(gomath.Ceil(float64(length / maxSize)))
	return max(1, min(maxCount, n))
}

// Subdivide lays out a row-major grid over a face of the given size,
// starting at the top-left corner.
func Subdivide(face box.Face, size math.Vec2, maxTileSize float32, maxTileCount int) FaceTiles {
	rows := gridCount(size.Y, maxTileSize, maxTileCount)
	cols := gridCount(size.X, maxTileSize, maxTileCount)

	tw := size.X / float32(cols)
	th := size.Y / float32(rows)

	tiles := make([]Tile, 0, rows*cols)
	for row := 0; row < rows; row++ {
		for col := 0; col < cols; col++ {
			tiles = append(tiles, Tile{
				Row: row,
				Col: col,
				Center: math.Vec2{
					X: -size.X/2 + tw/2 + float32(col)*tw,
					Y: size.Y/2 - th/2 - float32(row)*th,
				},
				Size: math.Vec2{X: tw, Y: th},
			})
		}
	}

	return FaceTiles{Face: face, Size: size, Rows: rows, Cols: cols, Tiles: tiles}
}

func abs(f float32) float32 {
	if f < 0 {
		return -f
	}
	return f
}

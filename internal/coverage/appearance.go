package coverage

import (
	"github.com/lucasb-eyer/go-colorful"
)

// DefaultTileColor is the tint of captured tiles.
var DefaultTileColor = colorful.Hsv(45, 0.85, 1)

var highlightColor = colorful.Color{R: 1, G: 1, B: 1}

// Appearance is how a tile should be drawn.
type Appearance struct {
	Color   colorful.Color
	Opacity float32
}

// Appearance returns the draw state of t tinted with base. Highlighted
// tiles are lightened toward white.
func (t Tile) Appearance(base colorful.Color) Appearance {
	c := base
	if t.Highlighted {
		c = c.BlendRgb(highlightColor, 0.4)
	}
	return Appearance{Color: c.Clamped(), Opacity: t.Opacity()}
}

// ProgressColor maps a coverage percentage to a color running from red at
// 0 to green at 100.
func ProgressColor(percent int) colorful.Color {
	p := float64(max(0, min(100, percent))) / 100
	return colorful.Hsv(120*p, 0.8, 0.9)
}

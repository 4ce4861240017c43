package common

import (
	"fmt"
	"image"
)

// Grid constants
const (
	DefaultLevel      = 4
	DefaultTileWidth  = 550
	DefaultTileHeight = 550
)

// SupportedLevels lists the grid dimensions the imagery service publishes
var SupportedLevels = []int{4, 8, 16, 20}

// TileCoordinate addresses one tile of the grid. X is the column, Y the row.
type TileCoordinate struct {
	X int
	Y int
}

// String returns the coordinate as "(x,y)"
func (c TileCoordinate) String() string {
	return fmt.Sprintf("(%d,%d)", c.X, c.Y)
}

// GridSpec describes the tile grid of one full-disk snapshot
type GridSpec struct {
	Level      int
	TileWidth  int
	TileHeight int
}

// DefaultGridSpec returns the 4x4 grid of 550px tiles
func DefaultGridSpec() GridSpec {
	return GridSpec{
		Level:      DefaultLevel,
		TileWidth:  DefaultTileWidth,
		TileHeight: DefaultTileHeight,
	}
}

// IsSupportedLevel reports whether level is one of SupportedLevels
func IsSupportedLevel(level int) bool {
	for _, l := range SupportedLevels {
		if l == level {
			return true
		}
	}
	return false
}

// Validate checks the level and tile dimensions
func (g GridSpec) Validate() error {
	if !IsSupportedLevel(g.Level) {
		return fmt.Errorf("%w: level %d not in %v", ErrInvalidConfig, g.Level, SupportedLevels)
	}
	if g.TileWidth <= 0 || g.TileHeight <= 0 {
		return fmt.Errorf("%w: tile size %dx%d must be positive", ErrInvalidConfig, g.TileWidth, g.TileHeight)
	}
	return nil
}

// TileCount returns level²
func (g GridSpec) TileCount() int {
	return g.Level * g.Level
}

// CanvasSize returns the composite dimensions in pixels
func (g GridSpec) CanvasSize() (width, height int) {
	return g.Level * g.TileWidth, g.Level * g.TileHeight
}

// Bounds returns the composite rectangle anchored at the origin
func (g GridSpec) Bounds() image.Rectangle {
	w, h := g.CanvasSize()
	return image.Rect(0, 0, w, h)
}

// Contains reports whether c lies inside [0, level) x [0, level)
func (g GridSpec) Contains(c TileCoordinate) bool {
	return c.X >= 0 && c.X < g.Level && c.Y >= 0 && c.Y < g.Level
}

// ValidateCoordinate returns an error if c is outside the grid
func (g GridSpec) ValidateCoordinate(c TileCoordinate) error {
	if !g.Contains(c) {
		return fmt.Errorf("tile %s out of range [0, %d) for level %d", c, g.Level, g.Level)
	}
	return nil
}

// Coordinates enumerates every tile of the grid exactly once, column-major
// like the remote service lays them out
func (g GridSpec) Coordinates() []TileCoordinate {
	if g.Level <= 0 {
		return nil
	}
	coords := make([]TileCoordinate, 0, g.TileCount())
	for x := 0; x < g.Level; x++ {
		for y := 0; y < g.Level; y++ {
			coords = append(coords, TileCoordinate{X: x, Y: y})
		}
	}
	return coords
}

// Offset returns the top-left pixel of tile c on the canvas
func (g GridSpec) Offset(c TileCoordinate) image.Point {
	return image.Pt(c.X*g.TileWidth, c.Y*g.TileHeight)
}

// TileRect returns the canvas region owned by tile c
func (g GridSpec) TileRect(c TileCoordinate) image.Rectangle {
	off := g.Offset(c)
	return image.Rect(off.X, off.Y, off.X+g.TileWidth, off.Y+g.TileHeight)
}

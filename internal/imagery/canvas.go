package imagery

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"
	_ "image/jpeg"
	_ "image/png"
	"sync"

	"himawari-desktop/internal/common"
)

// Canvas is the full-resolution composite of one assembly run.
// Each tile owns a disjoint rectangle of Image, so concurrent Paste calls for
// different coordinates never touch the same pixels.
type Canvas struct {
	Spec  common.GridSpec
	Image *image.RGBA

	mu      sync.Mutex
	written map[common.TileCoordinate]bool
}

// NewCanvas allocates an empty canvas for spec
func NewCanvas(spec common.GridSpec) (*Canvas, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	return &Canvas{
		Spec:    spec,
		Image:   image.NewRGBA(spec.Bounds()),
		written: make(map[common.TileCoordinate]bool, spec.TileCount()),
	}, nil
}

// claim marks coord as written, failing if it already was
func (c *Canvas) claim(coord common.TileCoordinate) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.written[coord] {
		return fmt.Errorf("tile %s pasted twice", coord)
	}
	c.written[coord] = true
	return nil
}

// Paste draws tile into the region owned by coord. The region is first set to
// opaque black so transparent tile pixels still produce a 3-channel image.
func (c *Canvas) Paste(coord common.TileCoordinate, tile image.Image) error {
	if err := c.Spec.ValidateCoordinate(coord); err != nil {
		return err
	}
	b := tile.Bounds()
	if b.Dx() != c.Spec.TileWidth || b.Dy() != c.Spec.TileHeight {
		return fmt.Errorf("%w: tile %s is %dx%d, want %dx%d",
			common.ErrDecode, coord, b.Dx(), b.Dy(), c.Spec.TileWidth, c.Spec.TileHeight)
	}
	if err := c.claim(coord); err != nil {
		return err
	}

	dst := c.Spec.TileRect(coord)
	draw.Draw(c.Image, dst, image.Black, image.Point{}, draw.Src)
	draw.Draw(c.Image, dst, tile, b.Min, draw.Over)
	return nil
}

// Written returns how many tiles have been pasted
func (c *Canvas) Written() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.written)
}

// Complete reports whether every tile of the grid has been pasted
func (c *Canvas) Complete() bool {
	return c.Written() == c.Spec.TileCount()
}

// Missing returns the coordinates not yet pasted
func (c *Canvas) Missing() []common.TileCoordinate {
	c.mu.Lock()
	defer c.mu.Unlock()
	var missing []common.TileCoordinate
	for _, coord := range c.Spec.Coordinates() {
		if !c.written[coord] {
			missing = append(missing, coord)
		}
	}
	return missing
}

// DecodeTile decodes an encoded tile and checks its dimensions against spec
func DecodeTile(data []byte, spec common.GridSpec) (image.Image, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty payload", common.ErrDecode)
	}
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrDecode, err)
	}
	b := img.Bounds()
	if b.Dx() != spec.TileWidth || b.Dy() != spec.TileHeight {
		return nil, fmt.Errorf("%w: %s tile is %dx%d, want %dx%d",
			common.ErrDecode, format, b.Dx(), b.Dy(), spec.TileWidth, spec.TileHeight)
	}
	return img, nil
}

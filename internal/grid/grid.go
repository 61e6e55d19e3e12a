package grid

import (
	"errors"
	"sync"
)

// ErrOutOfRange is returned when a coordinate falls outside [0,W)x[0,H).
var ErrOutOfRange = errors.New("coordinate out of range")

// Color is a single pixel value: three 8-bit channels.
type Color struct {
	R uint8 `json:"r"`
	G uint8 `json:"g"`
	B uint8 `json:"b"`
}

// White is the default fill for a fresh canvas.
var White = Color{R: 255, G: 255, B: 255}

// Grid is the authoritative in-memory pixel grid. Size is fixed at
// construction. Reads may run concurrently with each other; Write and
// Snapshot are exclusive with each other, so a snapshot never observes a
// torn cell.
type Grid struct {
	mu     sync.RWMutex
	width  int
	height int
	pixels [][]Color // pixels[y][x]
}

// New creates a w x h grid with every cell set to def.
func New(w, h int, def Color) *Grid {
	pixels := make([][]Color, h)
	for y := range pixels {
		row := make([]Color, w)
		for x := range row {
			row[x] = def
		}
		pixels[y] = row
	}
	return &Grid{width: w, height: h, pixels: pixels}
}

// Width returns the grid width in cells.
func (g *Grid) Width() int { return g.width }

// Height returns the grid height in cells.
func (g *Grid) Height() int { return g.height }

func (g *Grid) inRange(x, y int) bool {
	return x >= 0 && x < g.width && y >= 0 && y < g.height
}

// Read returns the current color at (x, y).
func (g *Grid) Read(x, y int) (Color, error) {
	if !g.inRange(x, y) {
		return Color{}, ErrOutOfRange
	}
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.pixels[y][x], nil
}

// Write sets (x, y) to c and returns the color it replaced. The grid is
// left untouched when the coordinate is out of range. Concurrent writes to
// the same cell resolve last-write-wins.
func (g *Grid) Write(x, y int, c Color) (Color, error) {
	if !g.inRange(x, y) {
		return Color{}, ErrOutOfRange
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	prev := g.pixels[y][x]
	g.pixels[y][x] = c
	return prev, nil
}

// Snapshot returns a point-in-time copy of the whole grid, rows first
// (pixels[y][x]). The copy is detached: later writes do not show up in it.
func (g *Grid) Snapshot() [][]Color {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([][]Color, g.height)
	for y, row := range g.pixels {
		out[y] = make([]Color, g.width)
		copy(out[y], row)
	}
	return out
}

// Package terrain is the tile grid shared by server and client.
package terrain

import (
	"fmt"

	"oreinfinium.net/internal/sim/encoding"
)

// Block types.
const (
	Air       uint8 = 0
	Dirt      uint8 = 1
	Stone     uint8 = 2
	CopperOre uint8 = 3
)

// Cell flags.
const (
	FlagSolid  uint8 = 1 << 0
	FlagOnFire uint8 = 1 << 1
	FlagGrass  uint8 = 1 << 2
)

type Cell struct {
	Type       uint8
	WallType   uint8
	LightLevel uint8
	Flags      uint8
}

func (c Cell) Pack() uint32 {
	return uint32(c.Type) | uint32(c.WallType)<<8 | uint32(c.LightLevel)<<16 | uint32(c.Flags)<<24
}

func Unpack(v uint32) Cell {
	return Cell{
		Type:       uint8(v),
		WallType:   uint8(v >> 8),
		LightLevel: uint8(v >> 16),
		Flags:      uint8(v >> 24),
	}
}

// Grid stores packed cells row-major with y growing upward from 0.
type Grid struct {
	W, H  int
	cells []uint32
}

func NewGrid(w, h int) *Grid {
	return &Grid{W: w, H: h, cells: make([]uint32, w*h)}
}

// NewFlat fills everything below seaLevel with stone capped by three rows of
// dirt, with copper ore scattered through the stone.
func NewFlat(w, h, seaLevel int) *Grid {
	g := NewGrid(w, h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			var c Cell
			switch {
			case y >= seaLevel:
				c = Cell{LightLevel: 255}
			case y >= seaLevel-3:
				c = Cell{Type: Dirt, WallType: Dirt, Flags: FlagSolid}
				if y == seaLevel-1 {
					c.Flags |= FlagGrass
					c.LightLevel = 255
				}
			case (x*7+y*13)%17 == 0:
				c = Cell{Type: CopperOre, WallType: Stone, Flags: FlagSolid}
			default:
				c = Cell{Type: Stone, WallType: Stone, Flags: FlagSolid}
			}
			g.cells[y*w+x] = c.Pack()
		}
	}
	return g
}

func (g *Grid) InBounds(x, y int) bool {
	return x >= 0 && y >= 0 && x < g.W && y < g.H
}

func (g *Grid) Get(x, y int) Cell {
	if !g.InBounds(x, y) {
		return Cell{}
	}
	return Unpack(g.cells[y*g.W+x])
}

func (g *Grid) Set(x, y int, c Cell) error {
	if !g.InBounds(x, y) {
		return fmt.Errorf("cell (%d,%d) out of bounds %dx%d", x, y, g.W, g.H)
	}
	g.cells[y*g.W+x] = c.Pack()
	return nil
}

// Region returns the packed cells of the inclusive rectangle, row-major from
// y. Cells outside the grid read as empty air.
func (g *Grid) Region(x, y, x2, y2 int) ([]uint32, error) {
	if x2 < x || y2 < y {
		return nil, fmt.Errorf("bad region (%d,%d)-(%d,%d)", x, y, x2, y2)
	}
	out := make([]uint32, 0, (x2-x+1)*(y2-y+1))
	for yy := y; yy <= y2; yy++ {
		for xx := x; xx <= x2; xx++ {
			if g.InBounds(xx, yy) {
				out = append(out, g.cells[yy*g.W+xx])
			} else {
				out = append(out, 0)
			}
		}
	}
	return out, nil
}

// ApplyRegion overwrites the inclusive rectangle. Cells outside the grid are
// skipped.
func (g *Grid) ApplyRegion(x, y, x2, y2 int, cells []uint32) error {
	if x2 < x || y2 < y {
		return fmt.Errorf("bad region (%d,%d)-(%d,%d)", x, y, x2, y2)
	}
	if want := (x2 - x + 1) * (y2 - y + 1); len(cells) != want {
		return fmt.Errorf("region (%d,%d)-(%d,%d) wants %d cells, got %d", x, y, x2, y2, want, len(cells))
	}
	i := 0
	for yy := y; yy <= y2; yy++ {
		for xx := x; xx <= x2; xx++ {
			if g.InBounds(xx, yy) {
				g.cells[yy*g.W+xx] = cells[i]
			}
			i++
		}
	}
	return nil
}

// EncodeRegion returns the wire encoding and payload for the region.
func (g *Grid) EncodeRegion(x, y, x2, y2 int) (string, string, error) {
	cells, err := g.Region(x, y, x2, y2)
	if err != nil {
		return "", "", err
	}
	enc, data := encoding.EncodeCells(cells)
	return enc, data, nil
}

func (g *Grid) DecodeRegion(x, y, x2, y2 int, enc, data string) error {
	if x2 < x || y2 < y {
		return fmt.Errorf("bad region (%d,%d)-(%d,%d)", x, y, x2, y2)
	}
	cells, err := encoding.DecodeCells(enc, data, (x2-x+1)*(y2-y+1))
	if err != nil {
		return fmt.Errorf("block region: %w", err)
	}
	return g.ApplyRegion(x, y, x2, y2, cells)
}

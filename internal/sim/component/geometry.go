package component

type Point struct {
	X float32 `json:"x"`
	Y float32 `json:"y"`
}

// Rect is an axis-aligned rectangle anchored at its lower-left corner.
type Rect struct {
	X float32 `json:"x"`
	Y float32 `json:"y"`
	W float32 `json:"w"`
	H float32 `json:"h"`
}

func (r Rect) Contains(p Point) bool {
	return p.X >= r.X && p.X <= r.X+r.W && p.Y >= r.Y && p.Y <= r.Y+r.H
}

func (r Rect) Center() Point {
	return Point{X: r.X + r.W*0.5, Y: r.Y + r.H*0.5}
}

// Footprint is the occupied rectangle of an entity whose position is the
// centre of its sprite.
func Footprint(pos Position, size Size) Rect {
	return Rect{
		X: pos.X - size.W*0.5,
		Y: pos.Y - size.H*0.5,
		W: size.W,
		H: size.H,
	}
}

package document

// BoundingBox locates an entity on a page. Page is 1-indexed and the origin is
// the top-left corner of the page.
type BoundingBox struct {
	Page       int     `json:"page"`
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Width      float64 `json:"width"`
	Height     float64 `json:"height"`
	Confidence float64 `json:"confidence,omitempty"`
}

// Right returns the X coordinate of the right edge.
func (b BoundingBox) Right() float64 { return b.X + b.Width }

// Bottom returns the Y coordinate of the bottom edge.
func (b BoundingBox) Bottom() float64 { return b.Y + b.Height }

// Area returns width*height, 0 for degenerate boxes.
func (b BoundingBox) Area() float64 {
	if b.Width <= 0 || b.Height <= 0 {
		return 0
	}
	return b.Width * b.Height
}

// Valid reports whether the box has a positive extent.
func (b BoundingBox) Valid() bool { return b.Width > 0 && b.Height > 0 }

// Overlaps reports closed-rectangle intersection: boxes that only touch on an
// edge count as overlapping.
func (b BoundingBox) Overlaps(o BoundingBox) bool {
	return !(b.Right() < o.X ||
		o.Right() < b.X ||
		b.Bottom() < o.Y ||
		o.Bottom() < b.Y)
}

// Union returns the smallest box covering both. The page of b is kept.
func (b BoundingBox) Union(o BoundingBox) BoundingBox {
	x0, y0 := min(b.X, o.X), min(b.Y, o.Y)
	x1, y1 := max(b.Right(), o.Right()), max(b.Bottom(), o.Bottom())
	return BoundingBox{Page: b.Page, X: x0, Y: y0, Width: x1 - x0, Height: y1 - y0}
}

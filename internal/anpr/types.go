package anpr

import "image"

// Point is a pixel coordinate.
type Point struct {
	X int `json:"x"` // Horizontal position (0 = leftmost)
	Y int `json:"y"` // Vertical position (0 = topmost)
}

// Polygon is an ordered list of points. OCR fragments carry a quadrilateral
// that is not necessarily axis-aligned; merged readings carry a rectangle in
// top-left, top-right, bottom-right, bottom-left order.
type Polygon []Point

// Extent returns the minimum and maximum coordinates over all points.
// An empty polygon has a zero extent.
func (p Polygon) Extent() (minX, minY, maxX, maxY int) {
	if len(p) == 0 {
		return 0, 0, 0, 0
	}
	minX, minY = p[0].X, p[0].Y
	maxX, maxY = p[0].X, p[0].Y
	for _, pt := range p[1:] {
		if pt.X < minX {
			minX = pt.X
		}
		if pt.X > maxX {
			maxX = pt.X
		}
		if pt.Y < minY {
			minY = pt.Y
		}
		if pt.Y > maxY {
			maxY = pt.Y
		}
	}
	return minX, minY, maxX, maxY
}

// Width is the horizontal extent of the polygon.
func (p Polygon) Width() int {
	minX, _, maxX, _ := p.Extent()
	return maxX - minX
}

// Height is the vertical extent of the polygon.
func (p Polygon) Height() int {
	_, minY, _, maxY := p.Extent()
	return maxY - minY
}

// Clone returns a copy that does not share the backing array.
func (p Polygon) Clone() Polygon {
	if p == nil {
		return nil
	}
	out := make(Polygon, len(p))
	copy(out, p)
	return out
}

// Rectangle builds the 4-corner polygon of an axis-aligned rectangle.
func Rectangle(minX, minY, maxX, maxY int) Polygon {
	return Polygon{
		{X: minX, Y: minY},
		{X: maxX, Y: minY},
		{X: maxX, Y: maxY},
		{X: minX, Y: maxY},
	}
}

// Box is a detector's axis-aligned region in source image coordinates.
type Box struct {
	XMin int `json:"x_min"`
	YMin int `json:"y_min"`
	XMax int `json:"x_max"`
	YMax int `json:"y_max"`
}

// Rect converts the box to an image.Rectangle with XMax/YMax as the
// exclusive corner. Unlike image.Rect it does not swap inverted corners, so
// an inverted box stays empty.
func (b Box) Rect() image.Rectangle {
	return image.Rectangle{Min: image.Pt(b.XMin, b.YMin), Max: image.Pt(b.XMax, b.YMax)}
}

// Width is XMax - XMin.
func (b Box) Width() int { return b.XMax - b.XMin }

// Height is YMax - YMin.
func (b Box) Height() int { return b.YMax - b.YMin }

// Fragment is one raw text span reported by a recogniser for a cropped
// plate region.
type Fragment struct {
	// Polygon surrounds the span, in crop-local coordinates.
	Polygon Polygon `json:"polygon"`

	// Text is the raw recognised string and may contain punctuation or spaces.
	Text string `json:"text"`

	// Confidence is the recogniser's score for this span (0.0 to 1.0).
	Confidence float64 `json:"confidence"`
}

// Reading is the consolidated result for one plate region.
type Reading struct {
	Polygon    Polygon `json:"polygon"`
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

// PlateDetection combines a detector box with the reading recognised inside
// it. Reading is nil when the recogniser returned nothing for the region.
type PlateDetection struct {
	Box        Box      `json:"box"`
	Confidence float64  `json:"confidence"`
	Reading    *Reading `json:"reading,omitempty"`
}

package anpr

import "strings"

// MergePolygon returns the axis-aligned rectangle enclosing every point of
// every fragment polygon, as four corners in top-left, top-right,
// bottom-right, bottom-left order.
//
// Fragments with empty polygons contribute nothing. If no fragment has any
// point the result is nil.
func MergePolygon(fragments []Fragment) Polygon {
	var (
		minX, minY, maxX, maxY int
		seen                   bool
	)
	for _, f := range fragments {
		if len(f.Polygon) == 0 {
			continue
		}
		x1, y1, x2, y2 := f.Polygon.Extent()
		if !seen {
			minX, minY, maxX, maxY = x1, y1, x2, y2
			seen = true
			continue
		}
		minX = min(minX, x1)
		minY = min(minY, y1)
		maxX = max(maxX, x2)
		maxY = max(maxY, y2)
	}
	if !seen {
		return nil
	}
	return Rectangle(minX, minY, maxX, maxY)
}

// MergeText joins the raw fragment texts in list order with delimiter and
// sanitizes the result.
func MergeText(fragments []Fragment, delimiter string) string {
	texts := make([]string, len(fragments))
	for i, f := range fragments {
		texts[i] = f.Text
	}
	return Sanitize(strings.Join(texts, delimiter))
}

// MergeConfidence multiplies the fragment confidences, treating each
// fragment as an independent recognition. The product of an empty list is 1.
func MergeConfidence(fragments []Fragment) float64 {
	result := 1.0
	for _, f := range fragments {
		result *= f.Confidence
	}
	return result
}

// Merge combines the fragments into one reading.
func Merge(fragments []Fragment, delimiter string) Reading {
	return Reading{
		Polygon:    MergePolygon(fragments),
		Text:       MergeText(fragments, delimiter),
		Confidence: MergeConfidence(fragments),
	}
}

package anpr

// Translate moves a crop-local reading into source image coordinates by
// offsetting every point by the top-left corner of the detection box.
func Translate(r Reading, box Box) Reading {
	poly := make(Polygon, len(r.Polygon))
	for i, p := range r.Polygon {
		poly[i] = Point{X: p.X + box.XMin, Y: p.Y + box.YMin}
	}
	return Reading{Polygon: poly, Text: r.Text, Confidence: r.Confidence}
}

// NewPlateDetection assembles the output record for one detected region.
// When ok is false the detection carries no reading.
func NewPlateDetection(box Box, confidence float64, reading Reading, ok bool) PlateDetection {
	d := PlateDetection{Box: box, Confidence: confidence}
	if ok {
		translated := Translate(reading, box)
		d.Reading = &translated
	}
	return d
}

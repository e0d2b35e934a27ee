package detection

import (
	"context"
	"image"
	"image/color"
	"testing"

	"github.com/ironsheep/plate-tools-mcp/internal/anpr"
)

func createTestImage(width, height int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func fillRect(img *image.RGBA, r image.Rectangle, c color.Color) {
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			img.Set(x, y, c)
		}
	}
}

func near(a, b, tol int) bool {
	d := a - b
	return d >= -tol && d <= tol
}

func TestNewPlateDetector_Defaults(t *testing.T) {
	d := NewPlateDetector(Options{})
	opts := d.Options()

	if opts.EdgeThreshold != 80 {
		t.Errorf("EdgeThreshold: got %d, want 80", opts.EdgeThreshold)
	}
	if opts.MinConfidence != 0.3 {
		t.Errorf("MinConfidence: got %v, want 0.3", opts.MinConfidence)
	}
	if opts.MaxPlates != 5 {
		t.Errorf("MaxPlates: got %d, want 5", opts.MaxPlates)
	}
	if opts.MinAspect != 2.0 || opts.MaxAspect != 6.5 {
		t.Errorf("aspect range: got %v-%v, want 2.0-6.5", opts.MinAspect, opts.MaxAspect)
	}
}

func TestDetect_WhitePlate(t *testing.T) {
	img := createTestImage(400, 200, color.Gray{Y: 40})
	plate := image.Rect(100, 80, 260, 130) // 160x50
	fillRect(img, plate, color.White)

	dets, err := NewPlateDetector(Options{}).Detect(context.Background(), img)
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}
	if len(dets) != 1 {
		t.Fatalf("got %d detections, want 1: %+v", len(dets), dets)
	}

	b := dets[0].Box
	if !near(b.XMin, plate.Min.X, 4) || !near(b.YMin, plate.Min.Y, 4) ||
		!near(b.XMax, plate.Max.X, 4) || !near(b.YMax, plate.Max.Y, 4) {
		t.Errorf("box %+v too far from %v", b, plate)
	}
	if dets[0].Confidence < 0.5 || dets[0].Confidence > 1 {
		t.Errorf("confidence: got %v, want within [0.5, 1]", dets[0].Confidence)
	}
}

func TestDetect_YellowPlate(t *testing.T) {
	img := createTestImage(300, 150, color.Gray{Y: 30})
	fillRect(img, image.Rect(50, 50, 230, 95), color.RGBA{250, 200, 20, 255})

	dets, err := NewPlateDetector(Options{}).Detect(context.Background(), img)
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}
	if len(dets) != 1 {
		t.Fatalf("got %d detections, want 1", len(dets))
	}
}

func TestDetect_RejectsNonPlateShapes(t *testing.T) {
	tests := []struct {
		name string
		rect image.Rectangle
	}{
		{"square", image.Rect(100, 50, 160, 110)},
		{"too long", image.Rect(20, 90, 380, 110)},
		{"too small", image.Rect(10, 10, 26, 16)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img := createTestImage(400, 200, color.Gray{Y: 40})
			fillRect(img, tt.rect, color.White)

			dets, err := NewPlateDetector(Options{}).Detect(context.Background(), img)
			if err != nil {
				t.Fatalf("Detect failed: %v", err)
			}
			if len(dets) != 0 {
				t.Errorf("expected no detections, got %+v", dets)
			}
		})
	}
}

func TestDetect_UniformImage(t *testing.T) {
	img := createTestImage(120, 80, color.White)

	dets, err := NewPlateDetector(Options{}).Detect(context.Background(), img)
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}
	if len(dets) != 0 {
		t.Errorf("expected no detections on a uniform image, got %d", len(dets))
	}
}

func TestDetect_MaxPlatesAndOrder(t *testing.T) {
	img := createTestImage(500, 400, color.Gray{Y: 30})
	fillRect(img, image.Rect(20, 20, 180, 60), color.White)
	fillRect(img, image.Rect(20, 150, 140, 200), color.RGBA{150, 150, 150, 255})
	fillRect(img, image.Rect(250, 300, 450, 350), color.White)

	d := NewPlateDetector(Options{MaxPlates: 2})
	dets, err := d.Detect(context.Background(), img)
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}
	if len(dets) != 2 {
		t.Fatalf("got %d detections, want 2", len(dets))
	}
	if dets[0].Confidence < dets[1].Confidence {
		t.Errorf("detections not sorted by confidence: %v then %v", dets[0].Confidence, dets[1].Confidence)
	}
}

func TestDetect_NonZeroOrigin(t *testing.T) {
	full := createTestImage(400, 200, color.Gray{Y: 40})
	fillRect(full, image.Rect(100, 80, 260, 130), color.White)
	sub := full.SubImage(image.Rect(50, 40, 350, 180))

	dets, err := NewPlateDetector(Options{}).Detect(context.Background(), sub)
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}
	if len(dets) != 1 {
		t.Fatalf("got %d detections, want 1", len(dets))
	}
	if !near(dets[0].Box.XMin, 100, 4) || !near(dets[0].Box.YMin, 80, 4) {
		t.Errorf("box not in the sub-image's coordinate space: %+v", dets[0].Box)
	}
}

func TestDetect_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewPlateDetector(Options{}).Detect(ctx, createTestImage(50, 50, color.White))
	if err == nil {
		t.Error("expected context error")
	}
}

func TestBackgroundScore(t *testing.T) {
	tests := []struct {
		name string
		c    color.Color
		min  float64
		max  float64
	}{
		{"white", color.White, 1, 1},
		{"light grey", color.RGBA{200, 200, 200, 255}, 1, 1},
		{"yellow", color.RGBA{250, 200, 20, 255}, 0.95, 0.95},
		{"black", color.Black, 0.3, 0.3},
		{"dark blue", color.RGBA{10, 20, 90, 255}, 0.3, 0.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := backgroundScore(tt.c)
			if got < tt.min-1e-9 || got > tt.max+1e-9 {
				t.Errorf("got %v, want [%v, %v]", got, tt.min, tt.max)
			}
		})
	}
}

func TestAspectFit(t *testing.T) {
	if got := aspectFit(idealAspect); got != 1 {
		t.Errorf("ideal aspect: got %v, want 1", got)
	}
	if got := aspectFit(idealAspect + 10); got != 0.5 {
		t.Errorf("far aspect: got %v, want 0.5", got)
	}
	if aspectFit(3) <= aspectFit(2) {
		t.Error("aspect fit should grow towards the ideal")
	}
}

func TestBorderCoverage(t *testing.T) {
	edges := make(edgeMask, 20)
	for y := range edges {
		edges[y] = make([]bool, 40)
	}
	box := anpr.Box{XMin: 5, YMin: 5, XMax: 35, YMax: 15}

	if got := borderCoverage(edges, box, 2); got != 0 {
		t.Errorf("empty mask: got %v, want 0", got)
	}

	for x := box.XMin; x < box.XMax; x++ {
		edges[box.YMin][x] = true
		edges[box.YMax-1][x] = true
	}
	for y := box.YMin; y < box.YMax; y++ {
		edges[y][box.XMin] = true
		edges[y][box.XMax-1] = true
	}
	if got := borderCoverage(edges, box, 2); got != 1 {
		t.Errorf("closed outline: got %v, want 1", got)
	}
}

func TestFindContours(t *testing.T) {
	edges := make(edgeMask, 10)
	for y := range edges {
		edges[y] = make([]bool, 30)
	}
	// Two separate strokes, one too short to count.
	for x := 0; x < 12; x++ {
		edges[2][x] = true
	}
	for x := 20; x < 25; x++ {
		edges[7][x] = true
	}

	contours := findContours(edges, 30, 10)
	if len(contours) != 1 {
		t.Fatalf("got %d contours, want 1", len(contours))
	}
	box := contourBox(contours[0])
	if box != (anpr.Box{XMin: 0, YMin: 2, XMax: 12, YMax: 3}) {
		t.Errorf("contour box: got %+v", box)
	}
}

func TestMergeOverlappingRegions(t *testing.T) {
	in := []candidate{
		{box: anpr.Box{XMin: 0, YMin: 0, XMax: 10, YMax: 10}, confidence: 0.4},
		{box: anpr.Box{XMin: 5, YMin: 5, XMax: 20, YMax: 15}, confidence: 0.7},
		{box: anpr.Box{XMin: 50, YMin: 50, XMax: 60, YMax: 60}, confidence: 0.5},
	}

	out := mergeOverlappingRegions(in)
	if len(out) != 2 {
		t.Fatalf("got %d regions, want 2", len(out))
	}
	if out[0].box != (anpr.Box{XMin: 0, YMin: 0, XMax: 20, YMax: 15}) {
		t.Errorf("merged box: got %+v", out[0].box)
	}
	if out[0].confidence != 0.7 {
		t.Errorf("merged confidence: got %v, want 0.7", out[0].confidence)
	}
}

package detection

import (
	"context"
	"image"
	"image/color"
	"math"
	"sort"

	"github.com/anthonynsimon/bild/blend"
	"github.com/anthonynsimon/bild/blur"
	"github.com/anthonynsimon/bild/effect"
	"github.com/anthonynsimon/bild/segment"
	colorful "github.com/lucasb-eyer/go-colorful"

	"github.com/ironsheep/plate-tools-mcp/internal/anpr"
	"github.com/ironsheep/plate-tools-mcp/internal/pipeline"
)

// Options tune a PlateDetector. Zero fields take the defaults below.
type Options struct {
	// EdgeThreshold is the Sobel magnitude (1-255) at which a pixel counts
	// as an edge. Default 80.
	EdgeThreshold int

	// MinConfidence drops candidates scoring below it. Values <= 0 take the
	// default 0.3.
	MinConfidence float64

	// MaxPlates caps the number of detections per image. Default 5.
	MaxPlates int

	// BlurRadius is the Gaussian pre-blur radius. Default 1.0.
	BlurRadius float64

	// MinArea is the smallest candidate box area in pixels. Default 400.
	MinArea int

	// MinAspect and MaxAspect bound width/height. Defaults 2.0 and 6.5.
	MinAspect float64
	MaxAspect float64
}

// idealAspect sits between square-ish US plates (2:1) and long EU plates (4.7:1).
const idealAspect = 4.0

// PlateDetector finds rectangular, plate-shaped regions with a light or
// yellow background. It implements pipeline.Detector.
type PlateDetector struct {
	opts Options
}

var _ pipeline.Detector = (*PlateDetector)(nil)

// candidate is a scored box before overlap merging.
type candidate struct {
	box        anpr.Box
	confidence float64
}

// NewPlateDetector creates a detector with defaults applied.
func NewPlateDetector(opts Options) *PlateDetector {
	if opts.EdgeThreshold <= 0 || opts.EdgeThreshold > 255 {
		opts.EdgeThreshold = 80
	}
	if opts.MinConfidence <= 0 {
		opts.MinConfidence = 0.3
	}
	if opts.MaxPlates <= 0 {
		opts.MaxPlates = 5
	}
	if opts.BlurRadius <= 0 {
		opts.BlurRadius = 1.0
	}
	if opts.MinArea <= 0 {
		opts.MinArea = 400
	}
	if opts.MinAspect <= 0 {
		opts.MinAspect = 2.0
	}
	if opts.MaxAspect <= opts.MinAspect {
		opts.MaxAspect = 6.5
	}
	return &PlateDetector{opts: opts}
}

// Options returns the effective options.
func (d *PlateDetector) Options() Options {
	return d.opts
}

// Detect returns plate candidates in img, highest confidence first. Boxes
// are in img's coordinate space with an exclusive max corner.
func (d *PlateDetector) Detect(ctx context.Context, img image.Image) ([]pipeline.Detection, error) {
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if width == 0 || height == 0 {
		return nil, nil
	}

	edges := d.edgeMap(img)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	contours := findContours(edges, width, height)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	candidates := make([]candidate, 0)
	for _, contour := range contours {
		box := contourBox(contour)
		w, h := box.Width(), box.Height()
		if w*h < d.opts.MinArea {
			continue
		}
		aspect := float64(w) / float64(h)
		if aspect < d.opts.MinAspect || aspect > d.opts.MaxAspect {
			continue
		}

		band := max(2, h/10)
		rect := borderCoverage(edges, box, band)
		bg := backgroundScore(meanColor(img, box, band))
		confidence := rect * aspectFit(aspect) * bg
		if confidence < d.opts.MinConfidence {
			continue
		}

		candidates = append(candidates, candidate{
			box:        offsetBox(box, bounds.Min),
			confidence: math.Round(confidence*1000) / 1000,
		})
	}

	merged := mergeOverlappingRegions(candidates)
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].confidence > merged[j].confidence
	})
	if len(merged) > d.opts.MaxPlates {
		merged = merged[:d.opts.MaxPlates]
	}

	out := make([]pipeline.Detection, len(merged))
	for i, c := range merged {
		out[i] = pipeline.Detection{Box: c.box, Confidence: c.confidence}
	}
	return out, nil
}

// edgeMap blurs, converts to grayscale and thresholds the Sobel magnitude.
// Sobel responds to one gradient polarity only, so the inverted image is
// added in to catch dark-to-light and light-to-dark edges alike.
func (d *PlateDetector) edgeMap(img image.Image) edgeMask {
	gray := effect.Grayscale(blur.Gaussian(img, d.opts.BlurRadius))
	sobel := blend.Add(effect.Sobel(gray), effect.Sobel(effect.Invert(gray)))
	return newEdgeMask(segment.Threshold(sobel, uint8(d.opts.EdgeThreshold)))
}

// aspectFit is 1 at the ideal aspect and falls to 0.5 at 2.5 away from it.
func aspectFit(aspect float64) float64 {
	return 1 - 0.5*math.Min(1, math.Abs(aspect-idealAspect)/2.5)
}

// backgroundScore rates how plate-like a background colour is. White and
// light grey plates score 1, saturated yellow plates 0.95, anything else
// by lightness.
func backgroundScore(c color.Color) float64 {
	cf, ok := colorful.MakeColor(c)
	if !ok {
		return 0
	}
	h, s, l := cf.Hsl()
	switch {
	case l >= 0.6 && s <= 0.35:
		return 1
	case h >= 35 && h <= 70 && s >= 0.4 && l >= 0.3:
		return 0.95
	default:
		return 0.3 + 0.5*l
	}
}

// meanColor averages the box interior, inset by band to skip the outline.
// Box coordinates are relative to the image origin.
func meanColor(img image.Image, box anpr.Box, band int) color.Color {
	origin := img.Bounds().Min
	inner := image.Rect(box.XMin+band, box.YMin+band, box.XMax-band, box.YMax-band)
	if inner.Empty() {
		inner = box.Rect()
	}

	var r, g, b, n uint64
	for y := inner.Min.Y; y < inner.Max.Y; y++ {
		for x := inner.Min.X; x < inner.Max.X; x++ {
			cr, cg, cb, _ := img.At(x+origin.X, y+origin.Y).RGBA()
			r += uint64(cr >> 8)
			g += uint64(cg >> 8)
			b += uint64(cb >> 8)
			n++
		}
	}
	if n == 0 {
		return color.Black
	}
	return color.RGBA{R: uint8(r / n), G: uint8(g / n), B: uint8(b / n), A: 255}
}

func offsetBox(b anpr.Box, p image.Point) anpr.Box {
	return anpr.Box{XMin: b.XMin + p.X, YMin: b.YMin + p.Y, XMax: b.XMax + p.X, YMax: b.YMax + p.Y}
}

package imaging

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"strconv"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/ironsheep/plate-tools-mcp/internal/anpr"
)

// AnnotateResult contains the image with plate overlays
type AnnotateResult struct {
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	ImageBase64 string `json:"image_base64"`
	MimeType    string `json:"mime_type"`
	Plates      int    `json:"plates"`
}

// AnnotateOptions controls overlay colors. Empty values use the defaults.
type AnnotateOptions struct {
	BoxColor     string `json:"box_color"`     // detection box, default #00FF00
	PolygonColor string `json:"polygon_color"` // reading polygon, default #FF0000
}

// Annotate draws each plate's detection box, the polygon of its reading and
// a "TEXT (0.87)" label above the box.
//
// Parameters:
//   - img: The source image. It is copied, never modified.
//   - plates: Detections in source image coordinates, as returned by the
//     pipeline. Plates without a reading get their box and a "(0.91)"
//     detector-confidence label only.
//   - opts: Overlay colours as "#RRGGBB" or "#RRGGBBAA". Empty or malformed
//     values fall back to green boxes and red polygons.
//
// Returns:
//   - *AnnotateResult: The annotated image as base64 PNG plus the plate count.
//   - error: Non-nil only if PNG encoding fails.
//
// # Drawing Order
//
// Plates are drawn in slice order, so a later plate's label may cover an
// earlier plate's outline where they overlap. Labels that would leave the
// top of the image are pushed inside it.
func Annotate(img image.Image, plates []anpr.PlateDetection, opts AnnotateOptions) (*AnnotateResult, error) {
	bounds := img.Bounds()

	boxColor, err := parseHexColor(opts.BoxColor)
	if err != nil {
		boxColor = color.RGBA{0, 255, 0, 255}
	}
	polyColor, err := parseHexColor(opts.PolygonColor)
	if err != nil {
		polyColor = color.RGBA{255, 0, 0, 255}
	}

	result := image.NewRGBA(bounds)
	draw.Draw(result, bounds, img, bounds.Min, draw.Src)

	for _, p := range plates {
		drawRect(result, p.Box.Rect(), boxColor)

		label := fmt.Sprintf("(%.2f)", p.Confidence)
		if p.Reading != nil {
			drawPolygon(result, p.Reading.Polygon, polyColor)
			label = fmt.Sprintf("%s (%.2f)", p.Reading.Text, p.Reading.Confidence)
		}
		drawLabel(result, p.Box.XMin, p.Box.YMin-2, label, color.RGBA{255, 255, 255, 255}, color.RGBA{0, 0, 0, 180})
	}

	encoded, err := EncodePNGBase64(result)
	if err != nil {
		return nil, err
	}

	return &AnnotateResult{
		Width:       bounds.Dx(),
		Height:      bounds.Dy(),
		ImageBase64: encoded,
		MimeType:    "image/png",
		Plates:      len(plates),
	}, nil
}

// parseHexColor parses a hex color string like "#FF0000" or "#FF000080"
func parseHexColor(hex string) (color.RGBA, error) {
	if len(hex) == 0 {
		return color.RGBA{}, fmt.Errorf("empty color string")
	}
	if hex[0] == '#' {
		hex = hex[1:]
	}

	var r, g, b, a uint8 = 0, 0, 0, 255

	switch len(hex) {
	case 6:
		val, err := strconv.ParseUint(hex, 16, 32)
		if err != nil {
			return color.RGBA{}, err
		}
		r = uint8(val >> 16)
		g = uint8(val >> 8)
		b = uint8(val)
	case 8:
		val, err := strconv.ParseUint(hex, 16, 32)
		if err != nil {
			return color.RGBA{}, err
		}
		r = uint8(val >> 24)
		g = uint8(val >> 16)
		b = uint8(val >> 8)
		a = uint8(val)
	default:
		return color.RGBA{}, fmt.Errorf("invalid hex color length")
	}

	return color.RGBA{R: r, G: g, B: b, A: a}, nil
}

// drawRect outlines r; r.Max is exclusive.
func drawRect(img *image.RGBA, r image.Rectangle, c color.RGBA) {
	r = r.Intersect(img.Bounds())
	if r.Empty() {
		return
	}
	for x := r.Min.X; x < r.Max.X; x++ {
		img.SetRGBA(x, r.Min.Y, c)
		img.SetRGBA(x, r.Max.Y-1, c)
	}
	for y := r.Min.Y; y < r.Max.Y; y++ {
		img.SetRGBA(r.Min.X, y, c)
		img.SetRGBA(r.Max.X-1, y, c)
	}
}

// drawPolygon outlines a closed polygon.
func drawPolygon(img *image.RGBA, poly anpr.Polygon, c color.RGBA) {
	n := len(poly)
	for i := 0; i < n; i++ {
		a, b := poly[i], poly[(i+1)%n]
		drawLine(img, a.X, a.Y, b.X, b.Y, c)
	}
}

// drawLine is Bresenham's algorithm, clipped to the image.
func drawLine(img *image.RGBA, x0, y0, x1, y1 int, c color.RGBA) {
	dx := x1 - x0
	if dx < 0 {
		dx = -dx
	}
	dy := y1 - y0
	if dy > 0 {
		dy = -dy
	}
	sx, sy := 1, 1
	if x0 > x1 {
		sx = -1
	}
	if y0 > y1 {
		sy = -1
	}
	bounds := img.Bounds()
	e := dx + dy
	for {
		if (image.Point{X: x0, Y: y0}).In(bounds) {
			img.SetRGBA(x0, y0, c)
		}
		if x0 == x1 && y0 == y1 {
			return
		}
		e2 := 2 * e
		if e2 >= dy {
			e += dy
			x0 += sx
		}
		if e2 <= dx {
			e += dx
			y0 += sy
		}
	}
}

// drawLabel draws text with its baseline at y on a filled background. Labels
// that would leave the top of the image are moved inside it.
func drawLabel(img *image.RGBA, x, y int, text string, fg, bg color.RGBA) {
	if text == "" {
		return
	}
	face := basicfont.Face7x13
	metrics := face.Metrics()
	ascent := metrics.Ascent.Ceil()
	descent := metrics.Descent.Ceil()

	bounds := img.Bounds()
	if y-ascent < bounds.Min.Y {
		y = bounds.Min.Y + ascent
	}

	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(fg),
		Face: face,
		Dot:  fixed.Point26_6{X: fixed.I(x), Y: fixed.I(y)},
	}
	width := d.MeasureString(text).Ceil()

	bgRect := image.Rect(x-1, y-ascent-1, x+width+1, y+descent+1).Intersect(bounds)
	draw.Draw(img, bgRect, image.NewUniform(bg), image.Point{}, draw.Over)
	d.DrawString(text)
}

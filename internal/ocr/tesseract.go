//go:build cgo

package ocr

import (
	"context"
	"fmt"
	"image"

	"github.com/otiai10/gosseract/v2"

	"github.com/ironsheep/plate-tools-mcp/internal/anpr"
	"github.com/ironsheep/plate-tools-mcp/internal/imaging"
	"github.com/ironsheep/plate-tools-mcp/internal/pipeline"
)

// TesseractRecogniser reads plate crops with a local Tesseract install.
// A new client is created per call, so one recogniser may be shared by
// concurrent pipeline workers.
type TesseractRecogniser struct {
	opts TesseractOptions
}

var _ pipeline.Recogniser = (*TesseractRecogniser)(nil)

// NewTesseractRecogniser creates a recogniser. It does not touch Tesseract
// until the first Recognise call.
func NewTesseractRecogniser(opts TesseractOptions) (*TesseractRecogniser, error) {
	return &TesseractRecogniser{opts: opts.withDefaults()}, nil
}

// Recognise reads the text in a plate crop with Tesseract.
//
// Parameters:
//   - ctx: Checked once before Tesseract starts. A recognition already in
//     progress runs to completion.
//   - crop: The plate region, origin at (0,0).
//
// Returns:
//   - []anpr.Fragment: One fragment per Tesseract word (LevelWord) or text
//     line (LevelLine), in Tesseract's reading order. Polygons are the
//     axis-aligned boxes Tesseract reports, relative to the crop. Confidence
//     is scaled from Tesseract's 0-100 to 0-1. Empty words are dropped.
//   - error: Non-nil if the crop cannot be encoded, a Tesseract setting is
//     rejected (for example missing language data), or OCR fails.
//
// # Engine Settings
//
// Page segmentation is fixed to a single block, since a plate crop holds one
// or two short lines. The character whitelist defaults to PlateWhitelist.
func (r *TesseractRecogniser) Recognise(ctx context.Context, crop image.Image) ([]anpr.Fragment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := imaging.EncodePNG(crop)
	if err != nil {
		return nil, err
	}

	client := gosseract.NewClient()
	defer client.Close()

	if r.opts.TessdataPrefix != "" {
		if err := client.SetTessdataPrefix(r.opts.TessdataPrefix); err != nil {
			return nil, fmt.Errorf("failed to set tessdata prefix: %w", err)
		}
	}
	if err := client.SetLanguage(r.opts.Language); err != nil {
		return nil, fmt.Errorf("failed to set language: %w", err)
	}
	if r.opts.Whitelist != "" {
		if err := client.SetWhitelist(r.opts.Whitelist); err != nil {
			return nil, fmt.Errorf("failed to set whitelist: %w", err)
		}
	}
	// A plate crop is one block of one or two lines.
	if err := client.SetPageSegMode(gosseract.PSM_SINGLE_BLOCK); err != nil {
		return nil, fmt.Errorf("failed to set page segmentation mode: %w", err)
	}
	if err := client.SetImageFromBytes(data); err != nil {
		return nil, fmt.Errorf("failed to set image: %w", err)
	}

	level := gosseract.RIL_WORD
	if r.opts.Level == LevelLine {
		level = gosseract.RIL_TEXTLINE
	}

	boxes, err := client.GetBoundingBoxes(level)
	if err != nil {
		return nil, fmt.Errorf("OCR failed: %w", err)
	}

	fragments := make([]anpr.Fragment, 0, len(boxes))
	for _, box := range boxes {
		if box.Word == "" {
			continue
		}
		fragments = append(fragments, anpr.Fragment{
			Polygon:    rectPolygon(box.Box),
			Text:       box.Word,
			Confidence: box.Confidence / 100.0,
		})
	}
	return fragments, nil
}

// Info reports the Tesseract version and settings.
func (r *TesseractRecogniser) Info() Info {
	return Info{
		Backend:   "tesseract",
		Available: true,
		Version:   gosseract.Version(),
		Language:  r.opts.Language,
		Level:     r.opts.Level,
	}
}

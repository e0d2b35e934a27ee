//go:build !cgo

package ocr

import (
	"context"
	"fmt"
	"image"

	"github.com/ironsheep/plate-tools-mcp/internal/anpr"
	"github.com/ironsheep/plate-tools-mcp/internal/errors"
)

var errNoCgo = fmt.Errorf("binary was built with CGO_ENABLED=0")

// TesseractRecogniser is unavailable without cgo.
type TesseractRecogniser struct {
	opts TesseractOptions
}

// NewTesseractRecogniser returns a recogniser whose Recognise always fails,
// so a server without cgo still starts and can report the problem.
func NewTesseractRecogniser(opts TesseractOptions) (*TesseractRecogniser, error) {
	return &TesseractRecogniser{opts: opts.withDefaults()}, nil
}

// Recognise always fails in builds without cgo.
func (r *TesseractRecogniser) Recognise(ctx context.Context, crop image.Image) ([]anpr.Fragment, error) {
	return nil, errors.NewOCRUnavailableError("tesseract", errNoCgo)
}

// Info reports the backend as unavailable.
func (r *TesseractRecogniser) Info() Info {
	return Info{
		Backend:  "tesseract",
		Language: r.opts.Language,
		Level:    r.opts.Level,
		Error:    errNoCgo.Error(),
	}
}

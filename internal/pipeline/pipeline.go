// Package pipeline runs plate detection, text recognition and fragment
// consolidation over a batch of images.
//
// The detector and recogniser are collaborators behind interfaces; the
// pipeline crops each detected region, hands the crop to the recogniser,
// consolidates the returned fragments and translates the reading back into
// the source image frame.
//
// Images are processed concurrently by a bounded set of goroutines. Regions
// within one image are processed in detector order. Results are returned in
// input order regardless of completion order.
package pipeline

import (
	"context"
	"image"
	"sync"
	"time"

	"github.com/ironsheep/plate-tools-mcp/internal/anpr"
	"github.com/ironsheep/plate-tools-mcp/internal/errors"
	"github.com/ironsheep/plate-tools-mcp/internal/imaging"
	"github.com/ironsheep/plate-tools-mcp/internal/logging"
)

// Detection is one plate region reported by a Detector.
type Detection struct {
	Box        anpr.Box `json:"box"`
	Confidence float64  `json:"confidence"`
}

// Detector locates candidate plate regions in an image.
type Detector interface {
	Detect(ctx context.Context, img image.Image) ([]Detection, error)
}

// Recogniser reads text fragments from a cropped plate region. Fragment
// polygons are relative to the crop's top-left corner.
type Recogniser interface {
	Recognise(ctx context.Context, crop image.Image) ([]anpr.Fragment, error)
}

// Config wires a Pipeline.
type Config struct {
	Detector     Detector
	Recogniser   Recogniser
	Consolidator *anpr.Consolidator // nil uses anpr defaults
	Concurrency  int                // images processed at once, default 4
	Logger       *logging.Logger    // nil discards
}

// Pipeline is safe for concurrent use if its Detector and Recogniser are.
type Pipeline struct {
	detector     Detector
	recogniser   Recogniser
	consolidator *anpr.Consolidator
	concurrency  int
	log          *logging.Logger
}

// New creates a pipeline.
func New(cfg Config) (*Pipeline, error) {
	if cfg.Detector == nil {
		return nil, errors.NewInvalidInputError("pipeline requires a detector")
	}
	if cfg.Recogniser == nil {
		return nil, errors.NewInvalidInputError("pipeline requires a recogniser")
	}
	if cfg.Consolidator == nil {
		cfg.Consolidator = anpr.NewConsolidator(anpr.Options{Delimiter: anpr.DefaultDelimiter})
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Discard()
	}
	return &Pipeline{
		detector:     cfg.Detector,
		recogniser:   cfg.Recogniser,
		consolidator: cfg.Consolidator,
		concurrency:  cfg.Concurrency,
		log:          cfg.Logger,
	}, nil
}

// Detector returns the pipeline's detector.
func (p *Pipeline) Detector() Detector { return p.detector }

// Run reads the plates in every image. The outer slice has one entry per
// input image, in input order. The first error cancels the remaining work
// and is returned.
func (p *Pipeline) Run(ctx context.Context, images []image.Image) ([][]anpr.PlateDetection, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make([][]anpr.PlateDetection, len(images))
	sem := make(chan struct{}, p.concurrency)

	var (
		wg       sync.WaitGroup
		errOnce  sync.Once
		firstErr error
	)

loop:
	for i, img := range images {
		select {
		case <-ctx.Done():
			break loop
		case sem <- struct{}{}:
		}

		wg.Add(1)
		go func(i int, img image.Image) {
			defer wg.Done()
			defer func() { <-sem }()

			plates, err := p.RunImage(ctx, i, img)
			if err != nil {
				errOnce.Do(func() {
					firstErr = err
					cancel()
				})
				return
			}
			results[i] = plates
		}(i, img)
	}
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

// RunImage reads the plates in a single image. index is used only for
// error reporting and logs.
func (p *Pipeline) RunImage(ctx context.Context, index int, img image.Image) ([]anpr.PlateDetection, error) {
	start := time.Now()

	detections, err := p.detector.Detect(ctx, img)
	if err != nil {
		return nil, errors.NewDetectionError(index, err)
	}

	plates := make([]anpr.PlateDetection, 0, len(detections))
	for r, det := range detections {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		crop := imaging.CropBox(img, det.Box)
		if crop == nil {
			p.log.Debug("skipping empty crop", "image", index, "region", r, "box", det.Box)
			plates = append(plates, anpr.NewPlateDetection(det.Box, det.Confidence, anpr.Reading{}, false))
			continue
		}

		fragments, err := p.recogniser.Recognise(ctx, crop)
		if err != nil {
			if errors.CodeOf(err) == errors.ErrorOCRUnavailable {
				return nil, err
			}
			return nil, errors.NewRecognitionError(index, r, err)
		}

		reading, ok := p.consolidator.Consolidate(fragments)
		plate := anpr.NewPlateDetection(det.Box, det.Confidence, reading, ok)
		plates = append(plates, plate)

		if ok {
			p.log.Debug("plate read", "image", index, "region", r,
				"fragments", len(fragments), "text", reading.Text, "confidence", reading.Confidence)
		} else {
			p.log.Debug("no text recognised", "image", index, "region", r)
		}
	}

	p.log.Info("image processed", "image", index, "plates", len(plates), "duration", time.Since(start))
	return plates, nil
}

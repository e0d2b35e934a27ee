package ocr

import (
	"context"
	"fmt"
	"image"
	"math"
	"path/filepath"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/rekognition"
	"github.com/aws/aws-sdk-go/service/rekognition/rekognitioniface"

	"github.com/ironsheep/plate-tools-mcp/internal/anpr"
	"github.com/ironsheep/plate-tools-mcp/internal/imaging"
	"github.com/ironsheep/plate-tools-mcp/internal/pipeline"
)

// RekognitionOptions configure a RekognitionRecogniser.
type RekognitionOptions struct {
	Region string // default "us-east-1"
	Level  Level  // default LevelWord

	// CredentialsPath is a directory holding AWS "credentials" and "config"
	// files. Empty uses the default credential chain.
	CredentialsPath string
}

// RekognitionRecogniser reads plate crops with AWS Rekognition DetectText.
type RekognitionRecogniser struct {
	client rekognitioniface.RekognitionAPI
	level  Level
	region string
}

var _ pipeline.Recogniser = (*RekognitionRecogniser)(nil)

// NewRekognitionRecogniser creates a session and Rekognition client.
func NewRekognitionRecogniser(opts RekognitionOptions) (*RekognitionRecogniser, error) {
	if opts.Region == "" {
		opts.Region = "us-east-1"
	}

	sessOpts := session.Options{
		Config: aws.Config{
			Region:     aws.String(opts.Region),
			MaxRetries: aws.Int(3),
		},
	}
	if opts.CredentialsPath != "" {
		sessOpts.SharedConfigFiles = []string{
			filepath.Join(opts.CredentialsPath, "credentials"),
			filepath.Join(opts.CredentialsPath, "config"),
		}
		sessOpts.SharedConfigState = session.SharedConfigEnable
	}

	s, err := session.NewSessionWithOptions(sessOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %w", err)
	}

	return NewRekognitionRecogniserWithClient(rekognition.New(s), opts.Level, opts.Region), nil
}

// NewRekognitionRecogniserWithClient wraps an existing client.
func NewRekognitionRecogniserWithClient(client rekognitioniface.RekognitionAPI, level Level, region string) *RekognitionRecogniser {
	if level == "" {
		level = LevelWord
	}
	return &RekognitionRecogniser{client: client, level: level, region: region}
}

// Recognise reads the text in a plate crop with AWS Rekognition DetectText.
//
// Parameters:
//   - ctx: Passed to the AWS request, so cancellation aborts the call.
//   - crop: The plate region, origin at (0,0). Sent as PNG bytes.
//
// Returns:
//   - []anpr.Fragment: The WORD detections (LevelWord) or LINE detections
//     (LevelLine) in the order Rekognition returns them. Polygons are
//     Rekognition's normalised geometry scaled to crop pixels, falling back
//     to the bounding box when no polygon is given. Confidence is scaled
//     from 0-100 to 0-1.
//   - error: Non-nil if the crop cannot be encoded or the AWS call fails.
func (r *RekognitionRecogniser) Recognise(ctx context.Context, crop image.Image) ([]anpr.Fragment, error) {
	data, err := imaging.EncodePNG(crop)
	if err != nil {
		return nil, err
	}

	out, err := r.client.DetectTextWithContext(ctx, &rekognition.DetectTextInput{
		Image: &rekognition.Image{Bytes: data},
	})
	if err != nil {
		return nil, fmt.Errorf("rekognition DetectText failed: %w", err)
	}

	want := rekognition.TextTypesWord
	if r.level == LevelLine {
		want = rekognition.TextTypesLine
	}

	size := crop.Bounds().Size()
	fragments := make([]anpr.Fragment, 0, len(out.TextDetections))
	for _, td := range out.TextDetections {
		if aws.StringValue(td.Type) != want || aws.StringValue(td.DetectedText) == "" {
			continue
		}
		poly := geometryPolygon(td.Geometry, size.X, size.Y)
		if len(poly) == 0 {
			continue
		}
		fragments = append(fragments, anpr.Fragment{
			Polygon:    poly,
			Text:       aws.StringValue(td.DetectedText),
			Confidence: aws.Float64Value(td.Confidence) / 100.0,
		})
	}
	return fragments, nil
}

// Info reports the backend settings. Availability is not probed.
func (r *RekognitionRecogniser) Info() Info {
	return Info{
		Backend:   "rekognition",
		Available: r.client != nil,
		Level:     r.level,
		Region:    r.region,
	}
}

// geometryPolygon converts Rekognition's normalised polygon to pixels,
// falling back to the bounding box when no polygon is present.
func geometryPolygon(g *rekognition.Geometry, w, h int) anpr.Polygon {
	if g == nil {
		return nil
	}
	fw, fh := float64(w), float64(h)

	if len(g.Polygon) > 0 {
		poly := make(anpr.Polygon, 0, len(g.Polygon))
		for _, p := range g.Polygon {
			if p == nil {
				continue
			}
			poly = append(poly, anpr.Point{
				X: toPixel(aws.Float64Value(p.X), fw),
				Y: toPixel(aws.Float64Value(p.Y), fh),
			})
		}
		return poly
	}

	if b := g.BoundingBox; b != nil {
		left := aws.Float64Value(b.Left)
		top := aws.Float64Value(b.Top)
		return anpr.Rectangle(
			toPixel(left, fw),
			toPixel(top, fh),
			toPixel(left+aws.Float64Value(b.Width), fw),
			toPixel(top+aws.Float64Value(b.Height), fh),
		)
	}
	return nil
}

func toPixel(v, size float64) int {
	return int(math.Round(v * size))
}

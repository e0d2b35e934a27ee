package ocr

import (
	"context"
	"fmt"
	"image"
	"testing"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/rekognition"
	"github.com/aws/aws-sdk-go/service/rekognition/rekognitioniface"
)

type fakeRekognition struct {
	rekognitioniface.RekognitionAPI
	out   *rekognition.DetectTextOutput
	err   error
	input *rekognition.DetectTextInput
}

func (f *fakeRekognition) DetectTextWithContext(ctx aws.Context, in *rekognition.DetectTextInput, opts ...request.Option) (*rekognition.DetectTextOutput, error) {
	f.input = in
	return f.out, f.err
}

func textDetection(kind, text string, conf float64, poly ...float64) *rekognition.TextDetection {
	td := &rekognition.TextDetection{
		Type:         aws.String(kind),
		DetectedText: aws.String(text),
		Confidence:   aws.Float64(conf),
		Geometry:     &rekognition.Geometry{},
	}
	for i := 0; i+1 < len(poly); i += 2 {
		td.Geometry.Polygon = append(td.Geometry.Polygon, &rekognition.Point{
			X: aws.Float64(poly[i]),
			Y: aws.Float64(poly[i+1]),
		})
	}
	return td
}

func TestRekognitionRecogniser_Recognise(t *testing.T) {
	fake := &fakeRekognition{out: &rekognition.DetectTextOutput{
		TextDetections: []*rekognition.TextDetection{
			textDetection("LINE", "AB12 CDE", 99, 0.1, 0.2, 0.9, 0.2, 0.9, 0.8, 0.1, 0.8),
			textDetection("WORD", "AB12", 98.5, 0.1, 0.2, 0.45, 0.2, 0.45, 0.8, 0.1, 0.8),
			textDetection("WORD", "CDE", 90, 0.55, 0.2, 0.9, 0.2, 0.9, 0.8, 0.55, 0.8),
		},
	}}
	r := NewRekognitionRecogniserWithClient(fake, LevelWord, "eu-west-1")

	crop := image.NewRGBA(image.Rect(0, 0, 200, 50))
	fragments, err := r.Recognise(context.Background(), crop)
	if err != nil {
		t.Fatalf("Recognise failed: %v", err)
	}

	if fake.input == nil || fake.input.Image == nil || len(fake.input.Image.Bytes) == 0 {
		t.Fatal("image bytes not sent")
	}
	if len(fragments) != 2 {
		t.Fatalf("got %d fragments, want 2 words", len(fragments))
	}

	first := fragments[0]
	if first.Text != "AB12" {
		t.Errorf("text: got %q", first.Text)
	}
	if d := first.Confidence - 0.985; d > 1e-9 || d < -1e-9 {
		t.Errorf("confidence: got %v, want 0.985", first.Confidence)
	}
	minX, minY, maxX, maxY := first.Polygon.Extent()
	if minX != 20 || minY != 10 || maxX != 90 || maxY != 40 {
		t.Errorf("polygon extent: got (%d,%d)-(%d,%d), want (20,10)-(90,40)", minX, minY, maxX, maxY)
	}
}

func TestRekognitionRecogniser_LineLevel(t *testing.T) {
	fake := &fakeRekognition{out: &rekognition.DetectTextOutput{
		TextDetections: []*rekognition.TextDetection{
			textDetection("LINE", "AB12 CDE", 99, 0, 0, 1, 0, 1, 1, 0, 1),
			textDetection("WORD", "AB12", 98, 0, 0, 0.5, 0, 0.5, 1, 0, 1),
		},
	}}
	r := NewRekognitionRecogniserWithClient(fake, LevelLine, "")

	fragments, err := r.Recognise(context.Background(), image.NewRGBA(image.Rect(0, 0, 100, 20)))
	if err != nil {
		t.Fatalf("Recognise failed: %v", err)
	}
	if len(fragments) != 1 || fragments[0].Text != "AB12 CDE" {
		t.Errorf("unexpected fragments: %+v", fragments)
	}
}

func TestRekognitionRecogniser_BoundingBoxFallback(t *testing.T) {
	td := textDetection("WORD", "XY9", 80)
	td.Geometry.BoundingBox = &rekognition.BoundingBox{
		Left:   aws.Float64(0.25),
		Top:    aws.Float64(0.5),
		Width:  aws.Float64(0.5),
		Height: aws.Float64(0.25),
	}
	noGeometry := textDetection("WORD", "ZZ", 80)
	noGeometry.Geometry = nil

	fake := &fakeRekognition{out: &rekognition.DetectTextOutput{
		TextDetections: []*rekognition.TextDetection{td, noGeometry},
	}}
	r := NewRekognitionRecogniserWithClient(fake, "", "")

	fragments, err := r.Recognise(context.Background(), image.NewRGBA(image.Rect(0, 0, 80, 40)))
	if err != nil {
		t.Fatalf("Recognise failed: %v", err)
	}
	if len(fragments) != 1 {
		t.Fatalf("got %d fragments, want 1", len(fragments))
	}
	minX, minY, maxX, maxY := fragments[0].Polygon.Extent()
	if minX != 20 || minY != 20 || maxX != 60 || maxY != 30 {
		t.Errorf("polygon extent: got (%d,%d)-(%d,%d), want (20,20)-(60,30)", minX, minY, maxX, maxY)
	}
}

func TestRekognitionRecogniser_Error(t *testing.T) {
	fake := &fakeRekognition{err: fmt.Errorf("throttled")}
	r := NewRekognitionRecogniserWithClient(fake, LevelWord, "")

	if _, err := r.Recognise(context.Background(), image.NewRGBA(image.Rect(0, 0, 10, 10))); err == nil {
		t.Error("expected error")
	}
}

func TestRekognitionRecogniser_Info(t *testing.T) {
	r := NewRekognitionRecogniserWithClient(&fakeRekognition{}, "", "eu-west-1")
	info := r.Info()
	if info.Backend != "rekognition" || !info.Available || info.Region != "eu-west-1" || info.Level != LevelWord {
		t.Errorf("unexpected info: %+v", info)
	}
}

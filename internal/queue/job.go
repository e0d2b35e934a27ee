package queue

import (
	"fmt"
	"image"
	"os"
	"time"

	"github.com/ironsheep/plate-tools-mcp/internal/anpr"
	"github.com/ironsheep/plate-tools-mcp/internal/imaging"
)

// Job is the JSON document stored in the "<queue>:data" hash.
type Job struct {
	ID         string     `json:"id"`
	Images     []ImageRef `json:"images"`
	CreatedAt  time.Time  `json:"createdAt"`
	Attempts   int        `json:"attempts"`
	MaxRetries int        `json:"maxRetries"`
}

// ImageRef points at one image of a job. Exactly one of Path and Data
// should be set; Data wins when both are.
type ImageRef struct {
	// Source labels the image in results and storage, e.g. a camera id.
	// Defaults to Path, or "image-<n>" for inline data.
	Source string `json:"source,omitempty"`
	Path   string `json:"path,omitempty"`
	Data   string `json:"data,omitempty"` // base64, optionally a data URL
}

// Load decodes the referenced image.
func (r ImageRef) Load() (image.Image, error) {
	switch {
	case r.Data != "":
		return imaging.DecodeBase64(r.Data)
	case r.Path != "":
		data, err := os.ReadFile(r.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to read image: %w", err)
		}
		return imaging.Decode(data)
	default:
		return nil, fmt.Errorf("image reference has neither path nor data")
	}
}

// Label returns the source label for the image at index i.
func (r ImageRef) Label(i int) string {
	if r.Source != "" {
		return r.Source
	}
	if r.Path != "" && r.Data == "" {
		return r.Path
	}
	return fmt.Sprintf("image-%d", i)
}

// JobResult is stored in "<queue>:results" when a job completes.
type JobResult struct {
	JobID       string        `json:"jobId"`
	Images      []ImageResult `json:"images"`
	DurationMs  int64         `json:"durationMs"`
	CompletedAt time.Time     `json:"completedAt"`
}

// ImageResult holds the plates read from one job image.
type ImageResult struct {
	Source string                `json:"source"`
	Plates []anpr.PlateDetection `json:"plates"`
}

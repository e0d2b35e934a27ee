package ocr

import (
	"image"

	"github.com/ironsheep/plate-tools-mcp/internal/anpr"
)

// Level selects the granularity of the fragments a recogniser reports.
type Level string

const (
	LevelWord Level = "word"
	LevelLine Level = "line"
)

// ParseLevel maps "line" to LevelLine and anything else to LevelWord.
func ParseLevel(s string) Level {
	if Level(s) == LevelLine {
		return LevelLine
	}
	return LevelWord
}

// PlateWhitelist limits Tesseract to the characters found on plates.
const PlateWhitelist = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// Info describes a recogniser backend for diagnostics.
type Info struct {
	Backend   string `json:"backend"`
	Available bool   `json:"available"`
	Version   string `json:"version,omitempty"`
	Language  string `json:"language,omitempty"`
	Level     Level  `json:"level"`
	Region    string `json:"region,omitempty"`
	Error     string `json:"error,omitempty"`
}

// rectPolygon converts a pixel rectangle to a fragment polygon.
func rectPolygon(r image.Rectangle) anpr.Polygon {
	return anpr.Rectangle(r.Min.X, r.Min.Y, r.Max.X, r.Max.Y)
}

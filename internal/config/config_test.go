package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.OCRBackend != BackendTesseract {
		t.Errorf("OCRBackend: got %q, want %q", cfg.OCRBackend, BackendTesseract)
	}
	if cfg.OCRLanguage != "eng" {
		t.Errorf("OCRLanguage: got %q, want eng", cfg.OCRLanguage)
	}
	if cfg.MinHeightRatio != 1.0 {
		t.Errorf("MinHeightRatio: got %v, want 1.0", cfg.MinHeightRatio)
	}
	if cfg.MergeDelimiter != "" {
		t.Errorf("MergeDelimiter: got %q, want empty", cfg.MergeDelimiter)
	}
	if cfg.QueueName != "plate:jobs" {
		t.Errorf("QueueName: got %q", cfg.QueueName)
	}
	if cfg.Concurrency != 4 {
		t.Errorf("Concurrency: got %d, want 4", cfg.Concurrency)
	}
	if cfg.HTTPAddr != ":8080" {
		t.Errorf("HTTPAddr: got %q", cfg.HTTPAddr)
	}
}

func TestLoadConfig_FromEnv(t *testing.T) {
	t.Setenv("PLATE_OCR_BACKEND", "Rekognition")
	t.Setenv("PLATE_OCR_LEVEL", "line")
	t.Setenv("PLATE_SORT_LEFT_TO_RIGHT", "true")
	t.Setenv("PLATE_MIN_HEIGHT_RATIO", "0.5")
	t.Setenv("PLATE_MERGE_DELIMITER", " ")
	t.Setenv("PLATE_CONCURRENCY", "not-a-number")

	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.OCRBackend != BackendRekognition {
		t.Errorf("OCRBackend: got %q", cfg.OCRBackend)
	}
	if cfg.OCRLevel != "line" {
		t.Errorf("OCRLevel: got %q", cfg.OCRLevel)
	}
	if !cfg.SortLeftToRight {
		t.Error("SortLeftToRight: got false")
	}
	if cfg.MinHeightRatio != 0.5 {
		t.Errorf("MinHeightRatio: got %v", cfg.MinHeightRatio)
	}
	if cfg.MergeDelimiter != " " {
		t.Errorf("MergeDelimiter: got %q", cfg.MergeDelimiter)
	}
	if cfg.Concurrency != 4 {
		t.Errorf("invalid integers should fall back to the default, got %d", cfg.Concurrency)
	}
}

func TestLoadConfig_EnvFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	content := "PLATE_DETECT_MAX_PLATES=9\nPLATE_QUEUE_NAME=anpr:test\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write env file: %v", err)
	}
	t.Cleanup(func() {
		os.Unsetenv("PLATE_DETECT_MAX_PLATES")
		os.Unsetenv("PLATE_QUEUE_NAME")
	})

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.DetectMaxPlates != 9 {
		t.Errorf("DetectMaxPlates: got %d, want 9", cfg.DetectMaxPlates)
	}
	if cfg.QueueName != "anpr:test" {
		t.Errorf("QueueName: got %q", cfg.QueueName)
	}
}

func TestLoadConfig_MissingEnvFileIsIgnored(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "nope.env")); err != nil {
		t.Errorf("missing env file should not fail: %v", err)
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			OCRBackend:          BackendTesseract,
			OCRLevel:            "word",
			DetectMinConfidence: 0.3,
			DetectEdgeThreshold: 80,
			DetectMaxPlates:     5,
			MinHeightRatio:      1,
			Concurrency:         4,
			ProcessingTimeout:   1000,
		}
	}

	if err := valid().Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}
	spaced := valid()
	spaced.MergeDelimiter = " "
	if err := spaced.Validate(); err != nil {
		t.Errorf("space delimiter rejected: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"backend", func(c *Config) { c.OCRBackend = "paddle" }},
		{"level", func(c *Config) { c.OCRLevel = "block" }},
		{"min confidence", func(c *Config) { c.DetectMinConfidence = 1.5 }},
		{"min confidence zero", func(c *Config) { c.DetectMinConfidence = 0 }},
		{"edge threshold", func(c *Config) { c.DetectEdgeThreshold = 0 }},
		{"max plates", func(c *Config) { c.DetectMaxPlates = 0 }},
		{"height ratio zero", func(c *Config) { c.MinHeightRatio = 0 }},
		{"height ratio above one", func(c *Config) { c.MinHeightRatio = 1.2 }},
		{"concurrency", func(c *Config) { c.Concurrency = 0 }},
		{"timeout", func(c *Config) { c.ProcessingTimeout = 0 }},
		{"alphanumeric delimiter", func(c *Config) { c.MergeDelimiter = "X" }},
		{"dash delimiter", func(c *Config) { c.MergeDelimiter = "-" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			if err := c.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestValidateWorker(t *testing.T) {
	c := &Config{}
	if err := c.ValidateWorker(); err == nil {
		t.Error("expected error without REDIS_URL")
	}
	c.RedisURL = "redis://localhost:6379"
	if err := c.ValidateWorker(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

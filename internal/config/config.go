package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Recogniser backends.
const (
	BackendTesseract   = "tesseract"
	BackendRekognition = "rekognition"
)

// Config holds server and worker configuration
type Config struct {
	// Logging
	LogLevel string

	// OCR configuration
	OCRBackend     string // tesseract or rekognition
	OCRLanguage    string // Tesseract language code
	OCRLevel       string // word or line
	TessdataPrefix string

	// AWS configuration (rekognition backend)
	AWSRegion          string
	AWSCredentialsPath string

	// Plate detector configuration
	DetectMinConfidence float64
	DetectEdgeThreshold int
	DetectMaxPlates     int

	// Consolidation
	MergeDelimiter  string
	SortLeftToRight bool
	MinHeightRatio  float64

	// Pipeline
	Concurrency int

	// HTTP API
	HTTPAddr string

	// Queue worker
	RedisURL          string
	QueueName         string
	DatabaseURL       string
	ProcessingTimeout int // milliseconds
}

// LoadConfig loads configuration from environment variables, reading envFile
// first when it exists. Variables already set in the environment win over
// the file.
func LoadConfig(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to load %s: %w", envFile, err)
		}
	}

	cfg := &Config{
		LogLevel: getEnvOrDefault("PLATE_MCP_LOG_LEVEL", "info"),

		OCRBackend:     strings.ToLower(getEnvOrDefault("PLATE_OCR_BACKEND", BackendTesseract)),
		OCRLanguage:    getEnvOrDefault("PLATE_OCR_LANGUAGE", "eng"),
		OCRLevel:       strings.ToLower(getEnvOrDefault("PLATE_OCR_LEVEL", "word")),
		TessdataPrefix: getEnvOrDefault("TESSDATA_PREFIX", ""),

		AWSRegion:          getEnvOrDefault("AWS_REGION", "us-east-1"),
		AWSCredentialsPath: getEnvOrDefault("AWS_CREDENTIALS_PATH", ""),

		DetectMinConfidence: getEnvAsFloatOrDefault("PLATE_DETECT_MIN_CONFIDENCE", 0.3),
		DetectEdgeThreshold: getEnvAsIntOrDefault("PLATE_DETECT_EDGE_THRESHOLD", 80),
		DetectMaxPlates:     getEnvAsIntOrDefault("PLATE_DETECT_MAX_PLATES", 5),

		MergeDelimiter:  os.Getenv("PLATE_MERGE_DELIMITER"),
		SortLeftToRight: getEnvAsBoolOrDefault("PLATE_SORT_LEFT_TO_RIGHT", false),
		MinHeightRatio:  getEnvAsFloatOrDefault("PLATE_MIN_HEIGHT_RATIO", 1.0),

		Concurrency: getEnvAsIntOrDefault("PLATE_CONCURRENCY", 4),

		HTTPAddr: getEnvOrDefault("PLATE_HTTP_ADDR", ":8080"),

		RedisURL:          getEnvOrDefault("REDIS_URL", ""),
		QueueName:         getEnvOrDefault("PLATE_QUEUE_NAME", "plate:jobs"),
		DatabaseURL:       getEnvOrDefault("DATABASE_URL", ""),
		ProcessingTimeout: getEnvAsIntOrDefault("PLATE_PROCESSING_TIMEOUT_MS", 60000),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks if configuration is valid
func (c *Config) Validate() error {
	switch c.OCRBackend {
	case BackendTesseract, BackendRekognition:
	default:
		return fmt.Errorf("PLATE_OCR_BACKEND must be %q or %q, got %q", BackendTesseract, BackendRekognition, c.OCRBackend)
	}

	if c.OCRLevel != "word" && c.OCRLevel != "line" {
		return fmt.Errorf("PLATE_OCR_LEVEL must be word or line, got %q", c.OCRLevel)
	}

	if c.DetectMinConfidence <= 0 || c.DetectMinConfidence > 1 {
		return fmt.Errorf("PLATE_DETECT_MIN_CONFIDENCE must be in (0, 1], got %v", c.DetectMinConfidence)
	}

	if c.DetectEdgeThreshold < 1 || c.DetectEdgeThreshold > 255 {
		return fmt.Errorf("PLATE_DETECT_EDGE_THRESHOLD must be between 1 and 255, got %d", c.DetectEdgeThreshold)
	}

	if c.DetectMaxPlates < 1 {
		return fmt.Errorf("PLATE_DETECT_MAX_PLATES must be positive, got %d", c.DetectMaxPlates)
	}

	if c.MinHeightRatio <= 0 || c.MinHeightRatio > 1 {
		return fmt.Errorf("PLATE_MIN_HEIGHT_RATIO must be in (0, 1], got %v", c.MinHeightRatio)
	}

	if c.MergeDelimiter != "" && c.MergeDelimiter != " " {
		return fmt.Errorf("PLATE_MERGE_DELIMITER must be empty or a single space, got %q", c.MergeDelimiter)
	}

	if c.Concurrency < 1 || c.Concurrency > 64 {
		return fmt.Errorf("PLATE_CONCURRENCY must be between 1 and 64, got %d", c.Concurrency)
	}

	if c.ProcessingTimeout < 1 {
		return fmt.Errorf("PLATE_PROCESSING_TIMEOUT_MS must be positive, got %d", c.ProcessingTimeout)
	}

	return nil
}

// ValidateWorker checks the settings only the queue worker needs.
func (c *Config) ValidateWorker() error {
	if c.RedisURL == "" {
		return fmt.Errorf("REDIS_URL is required in worker mode")
	}
	return nil
}

// getEnvOrDefault gets environment variable or returns default
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsIntOrDefault gets environment variable as int or returns default
func getEnvAsIntOrDefault(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsFloatOrDefault(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsBoolOrDefault(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

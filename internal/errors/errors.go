package errors

import (
	stderrors "errors"
	"fmt"
	"time"
)

// ErrorCode enum for structured error handling
type ErrorCode string

const (
	// Input errors
	ErrorInvalidInput    ErrorCode = "INVALID_INPUT"
	ErrorImageLoadFailed ErrorCode = "IMAGE_LOAD_FAILED"

	// Pipeline errors
	ErrorDetectionFailed   ErrorCode = "DETECTION_FAILED"
	ErrorRecognitionFailed ErrorCode = "RECOGNITION_FAILED"
	ErrorOCRUnavailable    ErrorCode = "OCR_UNAVAILABLE"
	ErrorProcessingTimeout ErrorCode = "PROCESSING_TIMEOUT"

	// Storage errors
	ErrorStorageFailed ErrorCode = "STORAGE_FAILED"
)

// PipelineError represents a structured plate-reading error
type PipelineError struct {
	Code      ErrorCode
	Message   string
	JobID     string
	Timestamp time.Time
	Details   map[string]interface{}
	Cause     error
}

func (e *PipelineError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *PipelineError) Unwrap() error {
	return e.Cause
}

// ToMap converts the error for JSON result payloads.
func (e *PipelineError) ToMap() map[string]interface{} {
	m := map[string]interface{}{
		"code":      string(e.Code),
		"message":   e.Message,
		"timestamp": e.Timestamp.Format(time.RFC3339),
	}
	if e.JobID != "" {
		m["jobId"] = e.JobID
	}
	if e.Cause != nil {
		m["cause"] = e.Cause.Error()
	}
	if len(e.Details) > 0 {
		m["details"] = e.Details
	}
	return m
}

// WithJob returns a copy of the error tagged with a job ID.
func (e *PipelineError) WithJob(jobID string) *PipelineError {
	c := *e
	c.JobID = jobID
	return &c
}

// CodeOf returns the code of the first PipelineError in err's chain, or ""
// if there is none.
func CodeOf(err error) ErrorCode {
	var pe *PipelineError
	if stderrors.As(err, &pe) {
		return pe.Code
	}
	return ""
}

// Factory functions for common errors

func NewInvalidInputError(message string) *PipelineError {
	return &PipelineError{
		Code:      ErrorInvalidInput,
		Message:   message,
		Timestamp: time.Now(),
	}
}

func NewImageLoadError(source string, cause error) *PipelineError {
	return &PipelineError{
		Code:      ErrorImageLoadFailed,
		Message:   fmt.Sprintf("failed to load image %s", source),
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"source": source,
		},
		Cause: cause,
	}
}

func NewDetectionError(imageIndex int, cause error) *PipelineError {
	return &PipelineError{
		Code:      ErrorDetectionFailed,
		Message:   fmt.Sprintf("plate detection failed for image %d", imageIndex),
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"image_index": imageIndex,
		},
		Cause: cause,
	}
}

func NewRecognitionError(imageIndex, regionIndex int, cause error) *PipelineError {
	return &PipelineError{
		Code:      ErrorRecognitionFailed,
		Message:   fmt.Sprintf("text recognition failed for image %d region %d", imageIndex, regionIndex),
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"image_index":  imageIndex,
			"region_index": regionIndex,
		},
		Cause: cause,
	}
}

func NewOCRUnavailableError(backend string, cause error) *PipelineError {
	return &PipelineError{
		Code:      ErrorOCRUnavailable,
		Message:   fmt.Sprintf("OCR backend %s is not available", backend),
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"backend": backend,
		},
		Cause: cause,
	}
}

func NewProcessingTimeoutError(jobID string, duration time.Duration, cause error) *PipelineError {
	return &PipelineError{
		Code:      ErrorProcessingTimeout,
		Message:   fmt.Sprintf("Processing timed out after %v", duration),
		JobID:     jobID,
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"timeout_duration": duration.String(),
		},
		Cause: cause,
	}
}

func NewStorageError(operation string, cause error) *PipelineError {
	return &PipelineError{
		Code:      ErrorStorageFailed,
		Message:   fmt.Sprintf("Storage operation failed: %s", operation),
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"operation": operation,
		},
		Cause: cause,
	}
}

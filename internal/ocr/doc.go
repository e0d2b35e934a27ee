// Package ocr reads text fragments from cropped plate regions.
//
// Two backends implement pipeline.Recogniser:
//
//   - TesseractRecogniser uses a local Tesseract install through
//     gosseract/v2. It needs cgo; builds without cgo return an
//     OCR_UNAVAILABLE error.
//   - RekognitionRecogniser calls AWS Rekognition DetectText.
//
// Both return one fragment per word (or per text line with LevelLine).
// Fragment polygons are in the crop's pixel coordinates and confidences
// are scaled to 0-1.
//
// # Prerequisites
//
// Tesseract and its language data must be installed for the Tesseract
// backend:
//   - Ubuntu/Debian: apt-get install tesseract-ocr tesseract-ocr-eng
//   - macOS: brew install tesseract
//
// Set TESSDATA_PREFIX when the language data lives outside the default path.
// Rekognition credentials come from the default AWS chain or from the
// directory named by AWS_CREDENTIALS_PATH.
package ocr

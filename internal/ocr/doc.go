// Package ocr provides Optical Character Recognition (OCR) functionality using Tesseract.
//
// This package wraps the Tesseract OCR engine (via gosseract/v2) to read the
// room labels and annotations printed on a floorplan. Recognition runs in
// single-block page segmentation mode and returns one trimmed string.
//
// # Prerequisites
//
// Tesseract must be installed on the system:
//   - Ubuntu/Debian: apt-get install tesseract-ocr libtesseract-dev
//   - macOS: brew install tesseract
//
// Language data files are required for each language:
//   - Ubuntu/Debian: apt-get install tesseract-ocr-eng (for English)
//   - Other languages: tesseract-ocr-<lang> packages
//
// Set Engine.TessdataPrefix (or the TESSDATA_PREFIX environment variable)
// when the data lives outside the default search path.
//
// # Empty Results
//
// Recognize returns "" when no text is found. NormalizeText maps that to
// the NoTextDetected sentinel for display and prompting.
//
// # Error Handling
//
// Engine failures (library not initialized, missing language data) wrap
// ErrEngine and are never converted into the sentinel.
package ocr

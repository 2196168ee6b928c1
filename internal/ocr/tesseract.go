package ocr

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/otiai10/gosseract/v2"
)

// NoTextDetected replaces empty recognition output before it reaches
// prompts or API responses.
const NoTextDetected = "No text detected"

// ErrEngine is wrapped by every failure that originates in Tesseract itself
// (initialization, missing language data, recognition).
var ErrEngine = errors.New("tesseract engine failed")

// Recognizer extracts text from a raster image.
type Recognizer interface {
	Recognize(ctx context.Context, img image.Image) (string, error)
}

// Engine runs Tesseract through gosseract.
//
// A fresh Tesseract client is created per call, so an Engine is safe for
// concurrent use.
type Engine struct {
	// Language is the Tesseract language code, e.g. "eng".
	Language string

	// TessdataPrefix points at the directory holding *.traineddata files.
	// Empty uses the library default (or TESSDATA_PREFIX).
	TessdataPrefix string

	// PageSegMode selects Tesseract's layout analysis. Floorplans are read
	// as one uniform block of text (mode 6).
	PageSegMode gosseract.PageSegMode
}

// NewEngine creates an Engine configured for single-block recognition.
func NewEngine(language, tessdataPrefix string) *Engine {
	if language == "" {
		language = "eng"
	}
	return &Engine{
		Language:       language,
		TessdataPrefix: tessdataPrefix,
		PageSegMode:    gosseract.PSM_SINGLE_BLOCK,
	}
}

// Recognize performs OCR over img and returns the recognized text with
// surrounding whitespace trimmed. An image with no text yields "".
//
// Parameters:
//   - ctx: Cancelling ctx returns ctx.Err() promptly. The underlying
//     Tesseract call cannot be interrupted and finishes in the background.
//   - img: Any image; it is PNG-encoded before being handed to Tesseract.
//
// # Error Handling
//
// Engine-side failures wrap ErrEngine. Callers decide whether to surface
// them; this package never substitutes text for a failure.
func (e *Engine) Recognize(ctx context.Context, img image.Image) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return "", fmt.Errorf("failed to encode image for OCR: %w", err)
	}

	type result struct {
		text string
		err  error
	}
	done := make(chan result, 1)
	go func() {
		text, err := e.recognizeBytes(buf.Bytes())
		done <- result{text: text, err: err}
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case r := <-done:
		return r.text, r.err
	}
}

func (e *Engine) recognizeBytes(data []byte) (string, error) {
	client := gosseract.NewClient()
	defer client.Close()

	if e.TessdataPrefix != "" {
		if err := client.SetTessdataPrefix(e.TessdataPrefix); err != nil {
			return "", fmt.Errorf("%w: failed to set tessdata prefix: %v", ErrEngine, err)
		}
	}
	if err := client.SetLanguage(e.Language); err != nil {
		return "", fmt.Errorf("%w: failed to set language: %v", ErrEngine, err)
	}
	if err := client.SetPageSegMode(e.PageSegMode); err != nil {
		return "", fmt.Errorf("%w: failed to set page segmentation mode: %v", ErrEngine, err)
	}
	if err := client.SetImageFromBytes(data); err != nil {
		return "", fmt.Errorf("%w: failed to set image: %v", ErrEngine, err)
	}

	text, err := client.Text()
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrEngine, err)
	}
	return strings.TrimSpace(text), nil
}

// Info describes the OCR engine for health reporting.
type Info struct {
	Available bool   `json:"available"`
	Version   string `json:"version,omitempty"`
	Language  string `json:"language"`
	Error     string `json:"error,omitempty"`
}

// Probe checks that Tesseract can initialize with the configured language
// by recognizing a small blank image.
func (e *Engine) Probe(ctx context.Context) Info {
	info := Info{Language: e.Language, Version: gosseract.Version()}
	blank := image.NewGray(image.Rect(0, 0, 32, 32))
	for i := range blank.Pix {
		blank.Pix[i] = 0xff
	}
	if _, err := e.Recognize(ctx, blank); err != nil {
		info.Error = err.Error()
		return info
	}
	info.Available = true
	return info
}

// NormalizeText trims text and substitutes NoTextDetected when nothing
// remains.
func NormalizeText(text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return NoTextDetected
	}
	return text
}

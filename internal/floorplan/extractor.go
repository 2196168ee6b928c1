package floorplan

import (
	"context"
	"errors"
	"fmt"
	"image"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ironsheep/floorplan-advisor/internal/detection"
	"github.com/ironsheep/floorplan-advisor/internal/imaging"
	"github.com/ironsheep/floorplan-advisor/internal/ocr"
)

// ErrExtraction is wrapped by every error returned from the extractor,
// including undecodable uploads and OCR engine failures.
var ErrExtraction = errors.New("feature extraction failed")

// Params configures the extraction pipeline.
type Params struct {
	CannyLow  int `json:"canny_low" yaml:"canny_low" toml:"canny_low"`
	CannyHigh int `json:"canny_high" yaml:"canny_high" toml:"canny_high"`

	Hough detection.HoughParams `json:"hough" yaml:"hough" toml:"hough"`

	// MinRoomArea is the exclusive lower bound, in square pixels, for a
	// contour to count as a room.
	MinRoomArea float64 `json:"min_room_area" yaml:"min_room_area" toml:"min_room_area"`

	// Overlay renders walls and rooms over the source image.
	Overlay bool `json:"overlay" yaml:"overlay" toml:"overlay"`
}

// DefaultParams returns the floorplan pipeline defaults.
func DefaultParams() Params {
	return Params{
		CannyLow:    50,
		CannyHigh:   150,
		Hough:       detection.DefaultHoughParams(),
		MinRoomArea: 1000,
		Overlay:     true,
	}
}

// Features is the result of one extraction.
type Features struct {
	WallCount int `json:"wall_count"`
	RoomCount int `json:"room_count"`

	// Text is the normalized OCR output; never empty.
	Text string `json:"text"`

	// RawText is the trimmed OCR output before normalization.
	RawText string `json:"-"`

	// EdgeDataURI is the edge map as a data:image/png;base64 URI.
	EdgeDataURI string `json:"edge_detection_image"`

	// OverlayDataURI is set when Params.Overlay is enabled.
	OverlayDataURI string `json:"overlay_image,omitempty"`

	EdgeMap *image.Gray         `json:"-"`
	Walls   []detection.Segment `json:"walls"`
	Rooms   []detection.Contour `json:"-"`
	Width   int                 `json:"width"`
	Height  int                 `json:"height"`
}

// Summary formats the counts the way they are stored and prompted.
func (f *Features) Summary() string {
	return fmt.Sprintf("Walls: %d, Rooms: %d", f.WallCount, f.RoomCount)
}

// Extractor runs the pipeline. The zero value is not usable; create one
// with NewExtractor.
type Extractor struct {
	params Params
	ocr    ocr.Recognizer
	logger *zap.Logger
}

// NewExtractor creates an Extractor. A nil recognizer disables OCR and
// every result carries the no-text sentinel. A nil logger is replaced by
// a no-op logger.
func NewExtractor(params Params, recognizer ocr.Recognizer, logger *zap.Logger) *Extractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{params: params, ocr: recognizer, logger: logger}
}

// Params returns the pipeline parameters.
func (e *Extractor) Params() Params {
	return e.params
}

// ExtractBytes decodes an uploaded file and extracts its features.
func (e *Extractor) ExtractBytes(ctx context.Context, data []byte) (*Features, error) {
	src, err := imaging.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExtraction, err)
	}
	e.logger.Debug("decoded floorplan",
		zap.String("format", src.Format),
		zap.Int("width", src.Width),
		zap.Int("height", src.Height))
	return e.ExtractFeatures(ctx, src.Image)
}

// ExtractFeatures runs the pipeline over img.
//
// Wall and room detection run concurrently with OCR. The first failure
// cancels the remaining stages and is returned wrapped in ErrExtraction.
func (e *Extractor) ExtractFeatures(ctx context.Context, img image.Image) (*Features, error) {
	if img == nil || img.Bounds().Empty() {
		return nil, fmt.Errorf("%w: empty image", ErrExtraction)
	}
	start := time.Now()

	gray := imaging.Grayscale(img)
	edges := imaging.Canny(gray, e.params.CannyLow, e.params.CannyHigh)

	f := &Features{
		EdgeMap: edges,
		Width:   gray.Bounds().Dx(),
		Height:  gray.Bounds().Dy(),
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		f.Walls = detection.HoughLinesP(edges, e.params.Hough)
		f.WallCount = len(f.Walls)
		return nil
	})

	g.Go(func() error {
		for _, c := range detection.FindExternalContours(edges) {
			if c.Area() > e.params.MinRoomArea {
				f.Rooms = append(f.Rooms, c)
			}
		}
		f.RoomCount = len(f.Rooms)
		return nil
	})

	g.Go(func() error {
		uri, err := imaging.PNGDataURI(edges)
		if err != nil {
			return fmt.Errorf("failed to encode edge map: %w", err)
		}
		f.EdgeDataURI = uri
		return nil
	})

	g.Go(func() error {
		if e.ocr == nil {
			return nil
		}
		text, err := e.ocr.Recognize(gctx, gray)
		if err != nil {
			return fmt.Errorf("failed to recognize text: %w", err)
		}
		f.RawText = text
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrExtraction, err)
	}
	f.Text = ocr.NormalizeText(f.RawText)

	if e.params.Overlay {
		overlay := imaging.Overlay(img, f.Walls, f.Rooms, imaging.OverlayOptions{Thickness: 2, LabelRooms: true})
		uri, err := imaging.PNGDataURI(overlay)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to encode overlay: %w", ErrExtraction, err)
		}
		f.OverlayDataURI = uri
	}

	e.logger.Info("extracted floorplan features",
		zap.Int("walls", f.WallCount),
		zap.Int("rooms", f.RoomCount),
		zap.Int("text_len", len(f.RawText)),
		zap.Duration("elapsed", time.Since(start)))

	return f, nil
}

package floorplan

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ironsheep/floorplan-advisor/internal/ocr"
)

type fakeRecognizer struct {
	text  string
	err   error
	calls atomic.Int32
}

func (f *fakeRecognizer) Recognize(ctx context.Context, img image.Image) (string, error) {
	f.calls.Add(1)
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return f.text, f.err
}

// whiteImage returns an opaque white image
func whiteImage(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = 0xff
	}
	return img
}

// fillRect paints an inclusive rectangle black
func fillRect(img *image.NRGBA, x1, y1, x2, y2 int) {
	for y := y1; y <= y2; y++ {
		for x := x1; x <= x2; x++ {
			img.SetNRGBA(x, y, color.NRGBA{0, 0, 0, 255})
		}
	}
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestDefaultParams(t *testing.T) {
	p := DefaultParams()
	assert.Equal(t, 50, p.CannyLow)
	assert.Equal(t, 150, p.CannyHigh)
	assert.Equal(t, 120, p.Hough.Threshold)
	assert.Equal(t, 80, p.Hough.MinLineLength)
	assert.Equal(t, 10, p.Hough.MaxLineGap)
	assert.Equal(t, 1000.0, p.MinRoomArea)
}

func TestExtractFeatures_BlankImage(t *testing.T) {
	rec := &fakeRecognizer{}
	e := NewExtractor(DefaultParams(), rec, nil)

	f, err := e.ExtractFeatures(context.Background(), whiteImage(200, 150))
	require.NoError(t, err)

	assert.Equal(t, 0, f.WallCount)
	assert.Equal(t, 0, f.RoomCount)
	assert.Equal(t, "Walls: 0, Rooms: 0", f.Summary())
	assert.Equal(t, ocr.NoTextDetected, f.Text)
	assert.Equal(t, int32(1), rec.calls.Load())
	assert.True(t, strings.HasPrefix(f.EdgeDataURI, "data:image/png;base64,"))
}

func TestExtractFeatures_SmallShapeIsNotARoom(t *testing.T) {
	img := whiteImage(120, 120)
	fillRect(img, 40, 40, 59, 59)

	f, err := NewExtractor(DefaultParams(), &fakeRecognizer{}, nil).
		ExtractFeatures(context.Background(), img)
	require.NoError(t, err)

	assert.Equal(t, 0, f.RoomCount, "a 20x20 block encloses less than 1000 px^2")
	assert.Equal(t, 0, f.WallCount, "sides are shorter than the minimum wall length")
}

func TestExtractFeatures_Rectangle(t *testing.T) {
	img := whiteImage(300, 300)
	fillRect(img, 50, 50, 249, 249)

	f, err := NewExtractor(DefaultParams(), &fakeRecognizer{text: "  Kitchen \n"}, nil).
		ExtractFeatures(context.Background(), img)
	require.NoError(t, err)

	assert.Equal(t, 1, f.RoomCount)
	assert.GreaterOrEqual(t, f.WallCount, 4)
	assert.Equal(t, "Kitchen", f.Text)
	assert.Equal(t, 300, f.Width)
	assert.Equal(t, 300, f.Height)
	assert.NotEmpty(t, f.OverlayDataURI)
}

func TestExtractFeatures_Deterministic(t *testing.T) {
	img := whiteImage(300, 300)
	fillRect(img, 50, 50, 249, 249)
	fillRect(img, 20, 270, 280, 273)

	e := NewExtractor(DefaultParams(), &fakeRecognizer{}, nil)
	first, err := e.ExtractFeatures(context.Background(), img)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		again, err := e.ExtractFeatures(context.Background(), img)
		require.NoError(t, err)
		assert.Equal(t, first.Walls, again.Walls)
		assert.Equal(t, first.Summary(), again.Summary())
		assert.Equal(t, first.EdgeDataURI, again.EdgeDataURI)
	}
}

func TestExtractFeatures_OverlayDisabled(t *testing.T) {
	params := DefaultParams()
	params.Overlay = false

	f, err := NewExtractor(params, nil, nil).ExtractFeatures(context.Background(), whiteImage(50, 50))
	require.NoError(t, err)
	assert.Empty(t, f.OverlayDataURI)
	assert.Equal(t, ocr.NoTextDetected, f.Text, "no recognizer still yields the sentinel")
}

func TestExtractFeatures_OCRFailure(t *testing.T) {
	rec := &fakeRecognizer{err: ocr.ErrEngine}

	_, err := NewExtractor(DefaultParams(), rec, nil).ExtractFeatures(context.Background(), whiteImage(40, 40))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrExtraction))
	assert.True(t, errors.Is(err, ocr.ErrEngine))
}

func TestExtractFeatures_EmptyImage(t *testing.T) {
	_, err := NewExtractor(DefaultParams(), nil, nil).
		ExtractFeatures(context.Background(), image.NewNRGBA(image.Rect(0, 0, 0, 0)))
	assert.ErrorIs(t, err, ErrExtraction)
}

func TestExtractFeatures_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewExtractor(DefaultParams(), &fakeRecognizer{}, nil).ExtractFeatures(ctx, whiteImage(40, 40))
	assert.ErrorIs(t, err, ErrExtraction)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestExtractBytes(t *testing.T) {
	img := whiteImage(300, 300)
	fillRect(img, 50, 50, 249, 249)

	e := NewExtractor(DefaultParams(), &fakeRecognizer{text: "Bedroom"}, nil)
	f, err := e.ExtractBytes(context.Background(), encodePNG(t, img))
	require.NoError(t, err)
	assert.Equal(t, 1, f.RoomCount)
	assert.Equal(t, "Bedroom", f.Text)
}

func TestExtractBytes_Undecodable(t *testing.T) {
	rec := &fakeRecognizer{}
	_, err := NewExtractor(DefaultParams(), rec, nil).ExtractBytes(context.Background(), []byte("not an image"))

	assert.ErrorIs(t, err, ErrExtraction)
	assert.Equal(t, int32(0), rec.calls.Load(), "OCR must not run on undecodable input")
}

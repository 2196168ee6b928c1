package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"  // Register GIF format decoder
	_ "image/jpeg" // Register JPEG format decoder
	_ "image/png"  // Register PNG format decoder
	"io"
	"os"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp" // Register WebP format decoder
)

// ErrUndecodable is returned when uploaded bytes are not an image in any
// registered format.
var ErrUndecodable = errors.New("image could not be decoded")

// Source is a decoded raster ready for analysis.
//
// The pixels are always an opaque *image.NRGBA anchored at (0,0). EXIF
// orientation has been applied and any alpha channel dropped, keeping the
// stored colour of transparent pixels.
type Source struct {
	// Image is the normalized raster.
	Image *image.NRGBA

	// Format is the name of the decoder that accepted the data
	// ("png", "jpeg", "gif", "webp", "bmp", "tiff").
	Format string `json:"format"`

	// Width of the image in pixels.
	Width int `json:"width"`

	// Height of the image in pixels.
	Height int `json:"height"`
}

// Decode reads an encoded image and normalizes it for feature extraction.
//
// Parameters:
//   - data: Raw file contents. Supported formats are PNG, JPEG, GIF, WebP,
//     BMP and TIFF.
//
// Returns:
//   - *Source: The normalized raster.
//   - error: Wraps ErrUndecodable if the data is empty, truncated, or in an
//     unknown format.
//
// # Normalization
//
//  1. EXIF orientation is applied so the image is upright.
//  2. The raster is copied into *image.NRGBA with bounds starting at (0,0).
//  3. Alpha is forced to opaque without compositing.
func Decode(data []byte) (*Source, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty input", ErrUndecodable)
	}

	_, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUndecodable, err)
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUndecodable, err)
	}

	nrgba := imaging.Clone(img)
	for i := 3; i < len(nrgba.Pix); i += 4 {
		nrgba.Pix[i] = 0xff
	}

	bounds := nrgba.Bounds()
	return &Source{
		Image:  nrgba,
		Format: format,
		Width:  bounds.Dx(),
		Height: bounds.Dy(),
	}, nil
}

// DecodeReader reads all of r and decodes it with Decode.
func DecodeReader(r io.Reader) (*Source, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}
	return Decode(data)
}

// Open loads and decodes an image file from disk.
func Open(path string) (*Source, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	return Decode(data)
}

package imaging

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"

	"github.com/disintegration/imaging"
)

// PNGMimeType is the MIME type of every image this package encodes.
const PNGMimeType = "image/png"

// EncodePNG encodes an image as PNG.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	return buf.Bytes(), nil
}

// PNGDataURI encodes an image as PNG and wraps it in a data URI of the form
// "data:image/png;base64,<payload>", ready to be used as an <img> source.
func PNGDataURI(img image.Image) (string, error) {
	data, err := EncodePNG(img)
	if err != nil {
		return "", err
	}
	return "data:" + PNGMimeType + ";base64," + base64.StdEncoding.EncodeToString(data), nil
}

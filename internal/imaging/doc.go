// Package imaging provides the raster operations behind floorplan analysis.
//
// It decodes uploaded images into a normalized form, converts them to
// grayscale, runs Canny edge detection, encodes results as PNG data URIs,
// and draws detected walls and rooms back over the source for display.
// All operations work with standard Go image types and use a coordinate
// system where (0,0) is at the top-left corner, X increases rightward, and
// Y increases downward.
//
// # Decoding
//
// Decode accepts PNG, JPEG, GIF, WebP, BMP and TIFF. The result is always an
// opaque *image.NRGBA anchored at the origin with EXIF orientation applied,
// so later stages never deal with offset bounds or premultiplied alpha.
// Failures wrap ErrUndecodable.
//
// # Edge Detection
//
// Canny works on 8-bit grayscale with integer gradients, which keeps the
// edge map bit-for-bit reproducible across platforms.
//
// # Thread Safety
//
// Every function is stateless and safe for concurrent use on distinct
// images. Inputs are never modified.
package imaging

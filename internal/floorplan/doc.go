// Package floorplan turns a floorplan raster into the coarse structural
// metrics the advisor reasons about.
//
// The pipeline is fixed:
//
//  1. Grayscale conversion (BT.601 luma weights).
//  2. Canny edge detection with thresholds 50/150.
//  3. Probabilistic Hough transform over the edge map. Each segment counts
//     as one wall.
//  4. External contours of the edge map. Each contour enclosing more than
//     1000 square pixels counts as one room.
//  5. OCR over the grayscale image in single-block mode.
//
// Steps 3-5 run concurrently. Identical pixels and parameters always give
// identical counts.
//
// Every failure returned by this package wraps ErrExtraction.
package floorplan

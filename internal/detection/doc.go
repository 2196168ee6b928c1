// Package detection provides the structural detectors run over floorplan edge maps.
//
// Both detectors consume a binary edge map (*image.Gray, any non-zero pixel is
// an edge) such as the one produced by imaging.Canny, and both are pure
// functions of their input: the same pixels and parameters always yield the
// same result.
//
// # Line Segments
//
// HoughLinesP implements the progressive probabilistic Hough transform. Edge
// points are visited in a pseudo-random order from a fixed-seed generator,
// vote in a (rho, theta) accumulator, and spawn a segment walk whenever a
// vote reaches the threshold. Segments shorter than the minimum extent are
// discarded. Each accepted segment is counted as one wall.
//
// # External Contours
//
// FindExternalContours follows the outer border of every 8-connected group
// of edge pixels that is not enclosed by another group, and compresses each
// border to its corner vertices. Contour.Area gives the enclosed polygon area
// used to decide whether an outline is large enough to be a room.
//
// # Coordinate System
//
// All coordinates use the standard image convention:
//   - Origin (0, 0) at top-left corner
//   - X increases rightward
//   - Y increases downward
//
// Results are relative to the edge map's Bounds().Min.
//
// # Performance Considerations
//
// HoughLinesP votes across every theta bin for each visited point, so its cost
// grows with edge density times angular resolution. Contour tracing is linear
// in the number of pixels.
package detection

package imaging

import (
	"image"
	"image/color"

	"github.com/anthonynsimon/bild/effect"
)

// Luminance weights from ITU-R BT.601.
const (
	lumaR = 0.299
	lumaG = 0.587
	lumaB = 0.114
)

// Grayscale converts an image to 8-bit luminance using BT.601 weights.
//
// The result is anchored at (0,0) with the same size as img.
func Grayscale(img image.Image) *image.Gray {
	rgba := effect.GrayscaleWithWeights(img, lumaR, lumaG, lumaB)
	bounds := rgba.Bounds()
	gray := image.NewGray(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	// R, G and B are equal after the weighted conversion.
	for y := 0; y < bounds.Dy(); y++ {
		src := rgba.PixOffset(bounds.Min.X, bounds.Min.Y+y)
		dst := gray.Pix[y*gray.Stride:]
		for x := 0; x < bounds.Dx(); x++ {
			dst[x] = rgba.Pix[src+x*4]
		}
	}
	return gray
}

const (
	cannyShift = 15
	// tan(22.5°) in Q15 fixed point
	cannyTG22 = 13573
)

// Canny performs Canny edge detection on a grayscale image.
//
// The output has the same size as gray, anchored at (0,0). Edge pixels are
// white (255) and everything else is black (0).
//
// Parameters:
//   - gray: 8-bit grayscale source.
//   - thresholdLow: Gradient magnitude a pixel must exceed to be an edge
//     candidate. Typical value: 50.
//   - thresholdHigh: Gradient magnitude a pixel must exceed to seed an edge.
//     Typical value: 150. The two thresholds are swapped if given in reverse.
//
// # Algorithm
//
//  1. Gradient computation: 3x3 Sobel operators for X and Y, replicating
//     border pixels. Magnitude is the L1 norm |Gx| + |Gy|.
//
//  2. Non-maximum suppression: the gradient direction is quantized to
//     horizontal, vertical, or one of the two diagonals using integer
//     tangent comparisons, and a pixel survives only if it is a local
//     maximum along that direction. Magnitude outside the image counts
//     as zero.
//
//  3. Hysteresis thresholding:
//     - Survivors above thresholdHigh are strong edges
//     - Survivors above thresholdLow are weak edges, kept only if
//     8-connected through other weak edges to a strong edge
//
// No smoothing is applied before the gradient step; callers that need it
// should blur the input first.
func Canny(gray *image.Gray, thresholdLow, thresholdHigh int) *image.Gray {
	bounds := gray.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()
	result := image.NewGray(image.Rect(0, 0, width, height))
	if width == 0 || height == 0 {
		return result
	}
	if thresholdLow > thresholdHigh {
		thresholdLow, thresholdHigh = thresholdHigh, thresholdLow
	}

	pixel := func(x, y int) int {
		x = clamp(x, 0, width-1)
		y = clamp(y, 0, height-1)
		return int(gray.Pix[gray.PixOffset(bounds.Min.X+x, bounds.Min.Y+y)])
	}

	gradX := make([]int, width*height)
	gradY := make([]int, width*height)
	magnitude := make([]int, width*height)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			gx := pixel(x+1, y-1) + 2*pixel(x+1, y) + pixel(x+1, y+1) -
				pixel(x-1, y-1) - 2*pixel(x-1, y) - pixel(x-1, y+1)
			gy := pixel(x-1, y+1) + 2*pixel(x, y+1) + pixel(x+1, y+1) -
				pixel(x-1, y-1) - 2*pixel(x, y-1) - pixel(x+1, y-1)
			i := y*width + x
			gradX[i] = gx
			gradY[i] = gy
			magnitude[i] = abs(gx) + abs(gy)
		}
	}

	magAt := func(x, y int) int {
		if x < 0 || x >= width || y < 0 || y >= height {
			return 0
		}
		return magnitude[y*width+x]
	}

	// 0 = not an edge, 1 = weak candidate, 2 = edge
	state := make([]uint8, width*height)
	stack := make([]int, 0, 1024)

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			i := y*width + x
			m := magnitude[i]
			if m <= thresholdLow {
				continue
			}

			gx, gy := gradX[i], gradY[i]
			ax := abs(gx)
			ay := abs(gy) << cannyShift
			tg22x := ax * cannyTG22

			var localMax bool
			switch {
			case ay < tg22x:
				localMax = m > magAt(x-1, y) && m >= magAt(x+1, y)
			case ay > tg22x+(ax<<(cannyShift+1)):
				localMax = m > magAt(x, y-1) && m >= magAt(x, y+1)
			default:
				s := 1
				if (gx ^ gy) < 0 {
					s = -1
				}
				localMax = m > magAt(x-s, y-1) && m > magAt(x+s, y+1)
			}
			if !localMax {
				continue
			}

			if m > thresholdHigh {
				state[i] = 2
				stack = append(stack, i)
			} else {
				state[i] = 1
			}
		}
	}

	for len(stack) > 0 {
		i := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		x, y := i%width, i/width
		for dy := -1; dy <= 1; dy++ {
			for dx := -1; dx <= 1; dx++ {
				nx, ny := x+dx, y+dy
				if nx < 0 || nx >= width || ny < 0 || ny >= height {
					continue
				}
				n := ny*width + nx
				if state[n] == 1 {
					state[n] = 2
					stack = append(stack, n)
				}
			}
		}
	}

	for i, s := range state {
		if s == 2 {
			result.Pix[(i/width)*result.Stride+i%width] = 255
		}
	}

	return result
}

// CountEdgePixels returns the number of non-zero pixels in an edge map.
func CountEdgePixels(edges *image.Gray) int {
	bounds := edges.Bounds()
	count := 0
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			if edges.GrayAt(x, y) != (color.Gray{}) {
				count++
			}
		}
	}
	return count
}

// clamp constrains an integer value to the range [min, max].
// Used for boundary handling in convolution operations.
func clamp(val, min, max int) int {
	if val < min {
		return min
	}
	if val > max {
		return max
	}
	return val
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

package detection

import (
	"image"
	"math"
)

// Segment is a detected line segment in pixel coordinates.
type Segment struct {
	Start Point `json:"start"`
	End   Point `json:"end"`
}

// Length returns the Euclidean length of the segment in pixels.
func (s Segment) Length() float64 {
	dx := float64(s.End.X - s.Start.X)
	dy := float64(s.End.Y - s.Start.Y)
	return math.Sqrt(dx*dx + dy*dy)
}

// HoughParams configures the probabilistic Hough transform.
type HoughParams struct {
	// Rho is the distance resolution of the accumulator in pixels.
	Rho float64 `json:"rho" yaml:"rho" toml:"rho"`

	// Theta is the angle resolution of the accumulator in radians.
	Theta float64 `json:"theta" yaml:"theta" toml:"theta"`

	// Threshold is the minimum number of accumulator votes for a line.
	Threshold int `json:"threshold" yaml:"threshold" toml:"threshold"`

	// MinLineLength is the minimum extent (along X or Y) of an accepted segment.
	MinLineLength int `json:"min_line_length" yaml:"min_line_length" toml:"min_line_length"`

	// MaxLineGap is the largest run of missing pixels bridged inside one segment.
	MaxLineGap int `json:"max_line_gap" yaml:"max_line_gap" toml:"max_line_gap"`

	// MaxLines stops the search once this many segments are found. Zero means unlimited.
	MaxLines int `json:"max_lines,omitempty" yaml:"max_lines,omitempty" toml:"max_lines,omitempty"`
}

// DefaultHoughParams returns the parameters used for wall detection on floorplans.
func DefaultHoughParams() HoughParams {
	return HoughParams{
		Rho:           1,
		Theta:         math.Pi / 180,
		Threshold:     120,
		MinLineLength: 80,
		MaxLineGap:    10,
	}
}

const houghShift = 16

// HoughLinesP finds line segments in a binary edge map using the progressive
// probabilistic Hough transform.
//
// Any non-zero pixel in edges is treated as an edge point. The result is
// deterministic: points are visited in a pseudo-random order drawn from a
// generator with a fixed seed, so identical inputs always produce identical
// segments in identical order. An edge map with no qualifying lines returns
// an empty slice, never an error.
//
// # Algorithm
//
//  1. Collect all edge points and mark them in a mask.
//  2. Repeatedly pick a random remaining point and vote for every
//     (rho, theta) line through it.
//  3. When a vote reaches Threshold, walk along that line in both
//     directions from the point, bridging gaps up to MaxLineGap pixels.
//  4. If the walked extent is at least MinLineLength in X or Y, the
//     segment is accepted and the votes of all its points are withdrawn.
//  5. Points on the walked line are removed from the mask either way.
//
// # Coordinates
//
// Segment endpoints are reported relative to edges.Bounds().Min.
func HoughLinesP(edges *image.Gray, params HoughParams) []Segment {
	bounds := edges.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()
	segments := make([]Segment, 0)
	if width == 0 || height == 0 || params.Rho <= 0 || params.Theta <= 0 {
		return segments
	}

	irho := float32(1 / params.Rho)
	numAngle := houghAngleCount(params.Theta)
	numRho := int(math.RoundToEven(float64((width+height)*2+1) / params.Rho))

	trig := make([]float32, numAngle*2)
	for n := 0; n < numAngle; n++ {
		angle := float64(n) * params.Theta
		trig[n*2] = float32(math.Cos(angle) * float64(irho))
		trig[n*2+1] = float32(math.Sin(angle) * float64(irho))
	}

	accum := make([]int32, numAngle*numRho)
	mask := make([]bool, width*height)
	points := make([]Point, 0)
	for y := 0; y < height; y++ {
		off := edges.PixOffset(bounds.Min.X, bounds.Min.Y+y)
		row := edges.Pix[off : off+width]
		for x := 0; x < width; x++ {
			if row[x] != 0 {
				mask[y*width+x] = true
				points = append(points, Point{X: x, Y: y})
			}
		}
	}

	rhoIndex := func(x, y, n int) int {
		r := float32(float32(x)*trig[n*2]) + float32(float32(y)*trig[n*2+1])
		return int(math.RoundToEven(float64(r))) + (numRho-1)/2
	}

	rng := newHoughRNG()
	for count := len(points); count > 0; count-- {
		idx := rng.uniform(0, count)
		point := points[idx]
		points[idx] = points[count-1]

		i, j := point.Y, point.X
		if !mask[i*width+j] {
			continue
		}

		maxVal, maxN := int32(params.Threshold-1), 0
		for n := 0; n < numAngle; n++ {
			cell := n*numRho + rhoIndex(j, i, n)
			accum[cell]++
			if maxVal < accum[cell] {
				maxVal = accum[cell]
				maxN = n
			}
		}
		if maxVal < int32(params.Threshold) {
			continue
		}

		// walk along the line direction in 16.16 fixed point
		a := -trig[maxN*2+1]
		b := trig[maxN*2]
		x0, y0 := j, i
		var dx0, dy0 int
		xflag := absf32(a) > absf32(b)
		if xflag {
			dx0 = signStep(a)
			dy0 = int(math.RoundToEven(float64(float32(b*float32(1<<houghShift)) / absf32(a))))
			y0 = (y0 << houghShift) + (1 << (houghShift - 1))
		} else {
			dy0 = signStep(b)
			dx0 = int(math.RoundToEven(float64(float32(a*float32(1<<houghShift)) / absf32(b))))
			x0 = (x0 << houghShift) + (1 << (houghShift - 1))
		}

		locate := func(x, y int) (int, int) {
			if xflag {
				return x, y >> houghShift
			}
			return x >> houghShift, y
		}

		var lineEnd [2]Point
		for k := 0; k < 2; k++ {
			gap := 0
			dx, dy := dx0, dy0
			if k > 0 {
				dx, dy = -dx, -dy
			}
			for x, y := x0, y0; ; x, y = x+dx, y+dy {
				j1, i1 := locate(x, y)
				if j1 < 0 || j1 >= width || i1 < 0 || i1 >= height {
					break
				}
				if mask[i1*width+j1] {
					gap = 0
					lineEnd[k] = Point{X: j1, Y: i1}
				} else if gap++; gap > params.MaxLineGap {
					break
				}
			}
		}

		goodLine := absInt(lineEnd[1].X-lineEnd[0].X) >= params.MinLineLength ||
			absInt(lineEnd[1].Y-lineEnd[0].Y) >= params.MinLineLength

		for k := 0; k < 2; k++ {
			dx, dy := dx0, dy0
			if k > 0 {
				dx, dy = -dx, -dy
			}
			for x, y := x0, y0; ; x, y = x+dx, y+dy {
				j1, i1 := locate(x, y)
				if mask[i1*width+j1] {
					if goodLine {
						for n := 0; n < numAngle; n++ {
							accum[n*numRho+rhoIndex(j1, i1, n)]--
						}
					}
					mask[i1*width+j1] = false
				}
				if i1 == lineEnd[k].Y && j1 == lineEnd[k].X {
					break
				}
			}
		}

		if goodLine {
			segments = append(segments, Segment{
				Start: Point{X: lineEnd[0].X, Y: lineEnd[0].Y},
				End:   Point{X: lineEnd[1].X, Y: lineEnd[1].Y},
			})
			if params.MaxLines > 0 && len(segments) >= params.MaxLines {
				break
			}
		}
	}

	return segments
}

// houghAngleCount returns the number of theta bins covering [0, pi).
func houghAngleCount(theta float64) int {
	n := int(math.Floor(math.Pi/theta)) + 1
	if n > 1 && math.Abs(math.Pi-float64(n-1)*theta) < theta/2 {
		n--
	}
	return n
}

// houghRNG is a multiply-with-carry generator. The seed is fixed so that
// point visiting order, and therefore the detected segments, are reproducible.
type houghRNG struct {
	state uint64
}

func newHoughRNG() *houghRNG {
	return &houghRNG{state: math.MaxUint64}
}

func (r *houghRNG) next() uint32 {
	r.state = uint64(uint32(r.state))*4164903690 + (r.state >> 32)
	return uint32(r.state)
}

// uniform returns a value in [a, b).
func (r *houghRNG) uniform(a, b int) int {
	if a == b {
		return a
	}
	return a + int(r.next()%uint32(b-a))
}

func signStep(v float32) int {
	if v > 0 {
		return 1
	}
	return -1
}

func absf32(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

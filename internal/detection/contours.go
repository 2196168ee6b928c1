package detection

import (
	"image"
	"math"
)

// Bounds represents a rectangular bounding box in pixel coordinates.
//
// (X1, Y1) is the top-left corner and (X2, Y2) the bottom-right corner,
// both inclusive.
type Bounds struct {
	X1 int `json:"x1"` // Left edge (inclusive)
	Y1 int `json:"y1"` // Top edge (inclusive)
	X2 int `json:"x2"` // Right edge (inclusive)
	Y2 int `json:"y2"` // Bottom edge (inclusive)
}

// Point represents a 2D coordinate in pixel space.
type Point struct {
	X int `json:"x"` // Horizontal position (0 = leftmost)
	Y int `json:"y"` // Vertical position (0 = topmost)
}

// Contour is the outer border of one connected group of edge pixels,
// stored as polygon vertices in traversal order.
//
// Straight runs are compressed: only the points where the border changes
// direction are kept, so an axis-aligned rectangle has four vertices.
type Contour struct {
	Points []Point `json:"points"`
}

// Area returns the absolute polygon area enclosed by the contour vertices,
// computed with the shoelace formula. Contours with fewer than three
// vertices have zero area.
func (c Contour) Area() float64 {
	n := len(c.Points)
	if n < 3 {
		return 0
	}
	var sum int
	for i := 0; i < n; i++ {
		p := c.Points[i]
		q := c.Points[(i+1)%n]
		sum += p.X*q.Y - q.X*p.Y
	}
	return math.Abs(float64(sum)) / 2
}

// Bounds returns the bounding box of the contour vertices.
func (c Contour) Bounds() Bounds {
	if len(c.Points) == 0 {
		return Bounds{}
	}
	b := Bounds{X1: c.Points[0].X, Y1: c.Points[0].Y, X2: c.Points[0].X, Y2: c.Points[0].Y}
	for _, p := range c.Points[1:] {
		b.X1 = min(b.X1, p.X)
		b.Y1 = min(b.Y1, p.Y)
		b.X2 = max(b.X2, p.X)
		b.Y2 = max(b.Y2, p.Y)
	}
	return b
}

// chainDeltas holds the eight neighbour offsets in chain-code order,
// starting east and turning counterclockwise on screen.
var chainDeltas = [8]Point{
	{X: 1, Y: 0},
	{X: 1, Y: -1},
	{X: 0, Y: -1},
	{X: -1, Y: -1},
	{X: -1, Y: 0},
	{X: -1, Y: 1},
	{X: 0, Y: 1},
	{X: 1, Y: 1},
}

// FindExternalContours traces the outer borders of the edge pixel groups
// in a binary edge map, keeping only outermost borders.
//
// Any non-zero pixel counts as foreground. Foreground pixels are grouped
// with 8-connectivity and background with 4-connectivity. A group that
// sits entirely inside a hole of another group (for example a small box
// drawn inside a larger closed outline) is not reported, matching
// "external only" retrieval.
//
// # Algorithm
//
//  1. Pad the map by one background pixel on every side.
//  2. Flood the background reachable from the padded frame.
//  3. Scan in raster order. The first pixel of each new group has
//     background on its left; if that background is frame-reachable the
//     group is external and its border is followed (Suzuki-Abe).
//  4. While following, emit a vertex only where the step direction changes.
//
// Contours are returned in raster order of their first pixel, with
// coordinates relative to edges.Bounds().Min.
func FindExternalContours(edges *image.Gray) []Contour {
	bounds := edges.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()
	contours := make([]Contour, 0)
	if width == 0 || height == 0 {
		return contours
	}

	pw, ph := width+2, height+2
	fg := make([]bool, pw*ph)
	for y := 0; y < height; y++ {
		off := edges.PixOffset(bounds.Min.X, bounds.Min.Y+y)
		for x := 0; x < width; x++ {
			if edges.Pix[off+x] != 0 {
				fg[(y+1)*pw+x+1] = true
			}
		}
	}

	outer := floodBackground(fg, pw, ph)
	visited := make([]bool, pw*ph)

	for y := 1; y < ph-1; y++ {
		for x := 1; x < pw-1; x++ {
			idx := y*pw + x
			if !fg[idx] || visited[idx] {
				continue
			}
			markComponent(fg, visited, pw, idx)
			if !outer[idx-1] {
				continue
			}
			points := traceBorder(fg, pw, Point{X: x, Y: y})
			for i := range points {
				points[i].X--
				points[i].Y--
			}
			contours = append(contours, Contour{Points: points})
		}
	}

	return contours
}

// floodBackground marks background pixels 4-connected to the padded frame.
func floodBackground(fg []bool, pw, ph int) []bool {
	outer := make([]bool, pw*ph)
	stack := []int{0}
	outer[0] = true
	for len(stack) > 0 {
		idx := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		x, y := idx%pw, idx/pw
		for _, d := range [4]Point{{X: 1}, {X: -1}, {Y: 1}, {Y: -1}} {
			nx, ny := x+d.X, y+d.Y
			if nx < 0 || nx >= pw || ny < 0 || ny >= ph {
				continue
			}
			n := ny*pw + nx
			if fg[n] || outer[n] {
				continue
			}
			outer[n] = true
			stack = append(stack, n)
		}
	}
	return outer
}

// markComponent flags every foreground pixel 8-connected to start.
// The padded frame guarantees neighbours of foreground pixels are in range.
func markComponent(fg, visited []bool, pw, start int) {
	stack := []int{start}
	visited[start] = true
	for len(stack) > 0 {
		idx := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, d := range chainDeltas {
			n := idx + d.Y*pw + d.X
			if fg[n] && !visited[n] {
				visited[n] = true
				stack = append(stack, n)
			}
		}
	}
}

// traceBorder follows the outer border that starts at the first raster
// pixel of a group and returns its compressed vertices in padded coordinates.
func traceBorder(fg []bool, pw int, start Point) []Point {
	at := func(p Point, dir int) Point {
		d := chainDeltas[dir&7]
		return Point{X: p.X + d.X, Y: p.Y + d.Y}
	}
	isFg := func(p Point) bool {
		return fg[p.Y*pw+p.X]
	}

	// the left neighbour is background; search clockwise from it
	s := 4
	found := false
	for i := 0; i < 7; i++ {
		s = (s - 1) & 7
		if isFg(at(start, s)) {
			found = true
			break
		}
	}
	if !found {
		return []Point{start}
	}

	last := at(start, s)
	prev := s ^ 4
	points := make([]Point, 0, 4)
	cur := start
	for {
		var next Point
		for {
			s++
			next = at(cur, s)
			if isFg(next) {
				break
			}
		}
		s &= 7
		if s != prev {
			points = append(points, cur)
			prev = s
		}
		if next == start && cur == last {
			break
		}
		cur = next
		s = (s + 4) & 7
	}

	return points
}

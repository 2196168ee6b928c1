package imaging

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"

	"github.com/ironsheep/floorplan-advisor/internal/detection"
	"github.com/lucasb-eyer/go-colorful"
)

// OverlayOptions controls how detected features are drawn over the source.
type OverlayOptions struct {
	// WallColor is the hex colour used for wall segments ("#RRGGBB").
	// Invalid or empty values fall back to red.
	WallColor string `json:"wall_color,omitempty"`

	// Thickness of drawn lines in pixels. Values below 1 are treated as 1.
	Thickness int `json:"thickness,omitempty"`

	// LabelRooms draws the 1-based room index next to each room outline.
	LabelRooms bool `json:"label_rooms,omitempty"`
}

var defaultWallColor = colorful.Color{R: 0.9, G: 0.1, B: 0.1}

// Overlay draws wall segments and room outlines on a copy of img.
//
// Rooms are outlined in distinct hues spaced around the colour wheel so
// that neighbouring rooms remain distinguishable; walls share one colour.
// Segment and contour coordinates are interpreted relative to
// img.Bounds().Min.
func Overlay(img image.Image, walls []detection.Segment, rooms []detection.Contour, opts OverlayOptions) *image.RGBA {
	bounds := img.Bounds()
	result := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(result, result.Bounds(), img, bounds.Min, draw.Src)

	thickness := max(opts.Thickness, 1)
	wallColor := defaultWallColor
	if opts.WallColor != "" {
		if c, err := colorful.Hex(opts.WallColor); err == nil {
			wallColor = c
		}
	}
	wall := toRGBA(wallColor)

	for i, room := range rooms {
		c := toRGBA(RoomColor(i))
		n := len(room.Points)
		for j := 0; j < n; j++ {
			p, q := room.Points[j], room.Points[(j+1)%n]
			drawLine(result, p.X, p.Y, q.X, q.Y, thickness, c)
		}
		if opts.LabelRooms && n > 0 {
			b := room.Bounds()
			drawLabel(result, b.X1+3, b.Y1+3, fmt.Sprintf("%d", i+1),
				color.RGBA{255, 255, 255, 255}, c)
		}
	}

	for _, s := range walls {
		drawLine(result, s.Start.X, s.Start.Y, s.End.X, s.End.Y, thickness, wall)
	}

	return result
}

// RoomColor returns the outline colour for the i-th room. Hues advance by
// the golden angle so consecutive rooms never share a similar colour.
func RoomColor(i int) colorful.Color {
	hue := math.Mod(120+float64(i)*137.508, 360)
	return colorful.Hsv(hue, 0.75, 0.85)
}

func toRGBA(c colorful.Color) color.RGBA {
	r, g, b := c.Clamped().RGB255()
	return color.RGBA{R: r, G: g, B: b, A: 255}
}

// drawLine rasterizes a segment with Bresenham's algorithm, stamping a
// square brush of the given thickness at every step.
func drawLine(img *image.RGBA, x0, y0, x1, y1, thickness int, c color.RGBA) {
	dx := abs(x1 - x0)
	dy := -abs(y1 - y0)
	sx, sy := 1, 1
	if x0 > x1 {
		sx = -1
	}
	if y0 > y1 {
		sy = -1
	}
	errTerm := dx + dy
	half := (thickness - 1) / 2
	bounds := img.Bounds()

	for {
		for by := -half; by < thickness-half; by++ {
			for bx := -half; bx < thickness-half; bx++ {
				p := image.Pt(x0+bx, y0+by)
				if p.In(bounds) {
					img.SetRGBA(p.X, p.Y, c)
				}
			}
		}
		if x0 == x1 && y0 == y1 {
			return
		}
		e2 := 2 * errTerm
		if e2 >= dy {
			errTerm += dy
			x0 += sx
		}
		if e2 <= dx {
			errTerm += dx
			y0 += sy
		}
	}
}

// drawLabel draws a simple text label at the given position
// using a 3x5 pixel font that covers digits only.
func drawLabel(img *image.RGBA, x, y int, text string, fg, bg color.RGBA) {
	glyphs := map[rune][]string{
		'0': {"111", "101", "101", "101", "111"},
		'1': {"010", "110", "010", "010", "111"},
		'2': {"111", "001", "111", "100", "111"},
		'3': {"111", "001", "111", "001", "111"},
		'4': {"101", "101", "111", "001", "001"},
		'5': {"111", "100", "111", "001", "111"},
		'6': {"111", "100", "111", "101", "111"},
		'7': {"111", "001", "001", "001", "001"},
		'8': {"111", "101", "111", "101", "111"},
		'9': {"111", "101", "111", "001", "111"},
	}

	bounds := img.Bounds()
	charWidth := 4
	labelWidth := len(text) * charWidth
	labelHeight := 7

	for dy := -1; dy < labelHeight; dy++ {
		for dx := -1; dx < labelWidth; dx++ {
			p := image.Pt(x+dx, y+dy)
			if p.In(bounds) {
				img.SetRGBA(p.X, p.Y, bg)
			}
		}
	}

	cx := x
	for _, ch := range text {
		glyph, ok := glyphs[ch]
		if !ok {
			cx += charWidth
			continue
		}
		for row, line := range glyph {
			for col, pixel := range line {
				if pixel != '1' {
					continue
				}
				p := image.Pt(cx+col, y+row)
				if p.In(bounds) {
					img.SetRGBA(p.X, p.Y, fg)
				}
			}
		}
		cx += charWidth
	}
}

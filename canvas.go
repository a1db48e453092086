package mvtoverlay

import (
	"image"
	"image/color"
	"image/draw"
	"math"

	"golang.org/x/image/vector"
)

// Canvas is a fixed-size CPU raster surface a tile is drawn into. Fills and
// strokes are rasterized with analytic anti-aliasing via
// golang.org/x/image/vector.
//
// Canvas is not thread-safe; the source serializes all drawing.
type Canvas struct {
	width  int
	height int
	img    *image.RGBA
}

// NewCanvas creates a transparent canvas of the given pixel size.
func NewCanvas(width, height int) *Canvas {
	return &Canvas{
		width:  width,
		height: height,
		img:    image.NewRGBA(image.Rect(0, 0, width, height)),
	}
}

// Width returns the canvas width in pixels.
func (c *Canvas) Width() int { return c.width }

// Height returns the canvas height in pixels.
func (c *Canvas) Height() int { return c.height }

// Image returns the backing image. Callers may read pixels; mutating them
// bypasses the engine's redraw bookkeeping.
func (c *Canvas) Image() *image.RGBA { return c.img }

// Clear resets every pixel to transparent.
func (c *Canvas) Clear() {
	for i := range c.img.Pix {
		c.img.Pix[i] = 0
	}
}

// nrgba converts a Color to the stdlib color model.
func nrgba(col Color) color.NRGBA {
	a := 1.0
	if col.HasAlpha {
		a = col.A
	}
	return color.NRGBA{R: col.R, G: col.G, B: col.B, A: uint8(math.Round(a * 255))}
}

// FillPath fills the path with the color using the rasterizer's winding
// rule. Sub-paths are implicitly closed.
func (c *Canvas) FillPath(p *Path, col Color) {
	if p == nil || p.Empty() {
		return
	}

	z := vector.NewRasterizer(c.width, c.height)
	for _, sp := range p.Subpaths() {
		if len(sp) < 3 {
			continue
		}
		z.MoveTo(float32(sp[0].X), float32(sp[0].Y))
		for _, pt := range sp[1:] {
			z.LineTo(float32(pt.X), float32(pt.Y))
		}
		z.ClosePath()
	}
	c.rasterize(z, col)
}

// StrokePath strokes every sub-path of the path as a polyline of the given
// width, with round joins and caps.
func (c *Canvas) StrokePath(p *Path, col Color, width float64) {
	if p == nil || p.Empty() {
		return
	}
	if width <= 0 {
		width = 1
	}

	z := vector.NewRasterizer(c.width, c.height)
	half := width / 2
	for _, sp := range p.Subpaths() {
		strokePolyline(z, sp, half)
	}
	c.rasterize(z, col)
}

// FillCircle fills a circle at (cx, cy).
func (c *Canvas) FillCircle(cx, cy, r float64, col Color) {
	if r <= 0 {
		return
	}
	z := vector.NewRasterizer(c.width, c.height)
	addCircle(z, cx, cy, r)
	c.rasterize(z, col)
}

// StrokeCircle strokes the outline of a circle.
func (c *Canvas) StrokeCircle(cx, cy, r float64, col Color, width float64) {
	if r <= 0 {
		return
	}
	if width <= 0 {
		width = 1
	}
	half := width / 2
	z := vector.NewRasterizer(c.width, c.height)
	// Outer disc minus inner disc via winding: outer clockwise, inner
	// counter-clockwise.
	addCircle(z, cx, cy, r+half)
	addCircleReversed(z, cx, cy, r-half)
	c.rasterize(z, col)
}

// StrokeLine strokes a single segment.
func (c *Canvas) StrokeLine(x0, y0, x1, y1 float64, col Color, width float64) {
	if width <= 0 {
		width = 1
	}
	z := vector.NewRasterizer(c.width, c.height)
	strokePolyline(z, []Point{Pt(x0, y0), Pt(x1, y1)}, width/2)
	c.rasterize(z, col)
}

// FillRect fills an axis-aligned rectangle.
func (c *Canvas) FillRect(x, y, w, h float64, col Color) {
	if w <= 0 || h <= 0 {
		return
	}
	z := vector.NewRasterizer(c.width, c.height)
	z.MoveTo(float32(x), float32(y))
	z.LineTo(float32(x+w), float32(y))
	z.LineTo(float32(x+w), float32(y+h))
	z.LineTo(float32(x), float32(y+h))
	z.ClosePath()
	c.rasterize(z, col)
}

func (c *Canvas) rasterize(z *vector.Rasterizer, col Color) {
	src := image.NewUniform(nrgba(col))
	z.DrawOp = draw.Over
	z.Draw(c.img, c.img.Bounds(), src, image.Point{})
}

// strokePolyline adds the stroke outline of a polyline to the rasterizer:
// one quad per segment plus a disc per vertex for round joins and caps.
func strokePolyline(z *vector.Rasterizer, pts []Point, half float64) {
	if len(pts) == 0 {
		return
	}
	if len(pts) == 1 {
		addCircle(z, pts[0].X, pts[0].Y, half)
		return
	}

	for i := 1; i < len(pts); i++ {
		a, b := pts[i-1], pts[i]
		dx := b.X - a.X
		dy := b.Y - a.Y
		length := math.Hypot(dx, dy)
		if length == 0 {
			continue
		}
		// Segment normal scaled to the half width.
		nx := -dy / length * half
		ny := dx / length * half

		z.MoveTo(float32(a.X+nx), float32(a.Y+ny))
		z.LineTo(float32(b.X+nx), float32(b.Y+ny))
		z.LineTo(float32(b.X-nx), float32(b.Y-ny))
		z.LineTo(float32(a.X-nx), float32(a.Y-ny))
		z.ClosePath()
	}

	for _, pt := range pts {
		addCircle(z, pt.X, pt.Y, half)
	}
}

// circleK is the cubic Bezier circle approximation constant,
// 4/3 * (sqrt(2) - 1).
const circleK = 0.5522847498307936

func addCircle(z *vector.Rasterizer, cx, cy, r float64) {
	if r <= 0 {
		return
	}
	o := r * circleK
	z.MoveTo(float32(cx+r), float32(cy))
	z.CubeTo(float32(cx+r), float32(cy+o), float32(cx+o), float32(cy+r), float32(cx), float32(cy+r))
	z.CubeTo(float32(cx-o), float32(cy+r), float32(cx-r), float32(cy+o), float32(cx-r), float32(cy))
	z.CubeTo(float32(cx-r), float32(cy-o), float32(cx-o), float32(cy-r), float32(cx), float32(cy-r))
	z.CubeTo(float32(cx+o), float32(cy-r), float32(cx+r), float32(cy-o), float32(cx+r), float32(cy))
	z.ClosePath()
}

func addCircleReversed(z *vector.Rasterizer, cx, cy, r float64) {
	if r <= 0 {
		return
	}
	o := r * circleK
	z.MoveTo(float32(cx+r), float32(cy))
	z.CubeTo(float32(cx+r), float32(cy-o), float32(cx+o), float32(cy-r), float32(cx), float32(cy-r))
	z.CubeTo(float32(cx-o), float32(cy-r), float32(cx-r), float32(cy-o), float32(cx-r), float32(cy))
	z.CubeTo(float32(cx-r), float32(cy+o), float32(cx-o), float32(cy+r), float32(cx), float32(cy+r))
	z.CubeTo(float32(cx+o), float32(cy+r), float32(cx+r), float32(cy+o), float32(cx+r), float32(cy))
	z.ClosePath()
}

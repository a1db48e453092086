package mvtoverlay

import "math"

// Path is a drawable aggregate of sub-paths, one per geometry ring or line
// part, in canvas coordinates. It is used both for painting and for pointer
// containment queries.
//
// Construction skips NaN points. A sub-path that never receives a valid
// vertex is dropped.
type Path struct {
	subpaths [][]Point
	current  []Point
}

// NewPath creates a new empty path.
func NewPath() *Path {
	return &Path{}
}

// MoveTo starts a new sub-path at the given point.
func (p *Path) MoveTo(x, y float64) {
	p.flush()
	pt := Pt(x, y)
	if pt.IsNaN() {
		p.current = []Point{}
		return
	}
	p.current = []Point{pt}
}

// LineTo extends the current sub-path. NaN vertices are skipped. A LineTo
// without a preceding MoveTo starts a sub-path.
func (p *Path) LineTo(x, y float64) {
	pt := Pt(x, y)
	if pt.IsNaN() {
		return
	}
	if p.current == nil {
		p.current = []Point{pt}
		return
	}
	p.current = append(p.current, pt)
}

// Close closes the current sub-path by repeating its first vertex, then
// ends it.
func (p *Path) Close() {
	if len(p.current) > 0 {
		first := p.current[0]
		last := p.current[len(p.current)-1]
		if first != last {
			p.current = append(p.current, first)
		}
	}
	p.flush()
}

// flush commits the current sub-path if it holds any valid vertex.
func (p *Path) flush() {
	if len(p.current) > 0 {
		p.subpaths = append(p.subpaths, p.current)
	}
	p.current = nil
}

// Subpaths returns the committed sub-paths plus any open one. The returned
// slices are shared; callers must not mutate them.
func (p *Path) Subpaths() [][]Point {
	if len(p.current) > 0 {
		out := make([][]Point, 0, len(p.subpaths)+1)
		out = append(out, p.subpaths...)
		return append(out, p.current)
	}
	return p.subpaths
}

// Empty reports whether the path holds no vertices.
func (p *Path) Empty() bool {
	return len(p.subpaths) == 0 && len(p.current) == 0
}

// VertexCount returns the total number of vertices across sub-paths.
func (p *Path) VertexCount() int {
	n := len(p.current)
	for _, sp := range p.subpaths {
		n += len(sp)
	}
	return n
}

// Contains reports even-odd containment of a point, treating every
// sub-path as implicitly closed. A point exactly on a left edge or on a top
// edge (smallest canvas y) counts as inside; one exactly on a right or
// bottom edge does not.
func (p *Path) Contains(x, y float64) bool {
	inside := false
	for _, sp := range p.Subpaths() {
		if len(sp) < 3 {
			continue
		}
		j := len(sp) - 1
		for i := 0; i < len(sp); i++ {
			xi, yi := sp[i].X, sp[i].Y
			xj, yj := sp[j].X, sp[j].Y
			if (yi > y) != (yj > y) &&
				x < (xj-xi)*(y-yi)/(yj-yi)+xi {
				inside = !inside
			}
			j = i
		}
	}
	return inside
}

// Bounds returns the bounding box of the path. An empty path yields a zero
// box.
func (p *Path) Bounds() (min, max Point) {
	first := true
	for _, sp := range p.Subpaths() {
		for _, pt := range sp {
			if first {
				min, max = pt, pt
				first = false
				continue
			}
			min.X = math.Min(min.X, pt.X)
			min.Y = math.Min(min.Y, pt.Y)
			max.X = math.Max(max.X, pt.X)
			max.Y = math.Max(max.Y, pt.Y)
		}
	}
	return min, max
}

package mvtoverlay

import (
	"math"
	"testing"
)

func TestPath_Build(t *testing.T) {
	p := NewPath()
	p.MoveTo(0, 0)
	p.LineTo(10, 0)
	p.LineTo(10, 10)
	p.Close()
	p.MoveTo(20, 20)
	p.LineTo(30, 20)

	subs := p.Subpaths()
	if len(subs) != 2 {
		t.Fatalf("subpaths = %d, want 2", len(subs))
	}
	// Close repeats the first vertex.
	if len(subs[0]) != 4 || subs[0][3] != subs[0][0] {
		t.Errorf("closed subpath = %v", subs[0])
	}
	if p.VertexCount() != 6 {
		t.Errorf("VertexCount() = %d, want 6", p.VertexCount())
	}
}

func TestPath_NaNSkipping(t *testing.T) {
	nan := math.NaN()

	p := NewPath()
	p.MoveTo(0, 0)
	p.LineTo(nan, 5)
	p.LineTo(10, 10)

	subs := p.Subpaths()
	if len(subs) != 1 || len(subs[0]) != 2 {
		t.Fatalf("subpaths = %v, want one subpath of 2 vertices", subs)
	}

	// A subpath whose leading vertex is NaN still collects later valid
	// vertices.
	p = NewPath()
	p.MoveTo(nan, nan)
	p.LineTo(1, 1)
	p.LineTo(2, 2)
	subs = p.Subpaths()
	if len(subs) != 1 || len(subs[0]) != 2 {
		t.Fatalf("NaN-led subpath = %v", subs)
	}

	// A subpath with no valid vertex at all is dropped.
	p = NewPath()
	p.MoveTo(nan, 0)
	p.MoveTo(5, 5)
	p.LineTo(6, 6)
	subs = p.Subpaths()
	if len(subs) != 1 {
		t.Fatalf("empty ring should be dropped, got %v", subs)
	}
}

func TestPath_Contains(t *testing.T) {
	p := NewPath()
	p.MoveTo(0, 0)
	p.LineTo(10, 0)
	p.LineTo(10, 10)
	p.LineTo(0, 10)
	p.Close()

	tests := []struct {
		name string
		x, y float64
		want bool
	}{
		{"center", 5, 5, true},
		{"outside right", 11, 5, false},
		{"outside above", 5, -1, false},
		{"left edge", 0, 5, true},
		{"near corner inside", 0.01, 0.01, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := p.Contains(tt.x, tt.y); got != tt.want {
				t.Errorf("Contains(%v, %v) = %v, want %v", tt.x, tt.y, got, tt.want)
			}
		})
	}
}

func TestPath_ContainsEvenOddHole(t *testing.T) {
	p := NewPath()
	// Outer square.
	p.MoveTo(0, 0)
	p.LineTo(20, 0)
	p.LineTo(20, 20)
	p.LineTo(0, 20)
	p.Close()
	// Inner square (hole under even-odd).
	p.MoveTo(5, 5)
	p.LineTo(15, 5)
	p.LineTo(15, 15)
	p.LineTo(5, 15)
	p.Close()

	if !p.Contains(2, 2) {
		t.Error("between outer and inner ring should be inside")
	}
	if p.Contains(10, 10) {
		t.Error("inside the hole should be outside under even-odd")
	}
}

func TestPath_Bounds(t *testing.T) {
	p := NewPath()
	p.MoveTo(3, -2)
	p.LineTo(-1, 7)
	p.LineTo(5, 4)

	min, max := p.Bounds()
	if min != Pt(-1, -2) || max != Pt(5, 7) {
		t.Errorf("Bounds = %v, %v", min, max)
	}

	empty := NewPath()
	min, max = empty.Bounds()
	if min != Pt(0, 0) || max != Pt(0, 0) {
		t.Error("empty path should yield a zero box")
	}
}

func TestPath_DegenerateContainment(t *testing.T) {
	// Fewer than three vertices can contain nothing.
	p := NewPath()
	p.MoveTo(0, 0)
	p.LineTo(10, 10)
	if p.Contains(5, 5) {
		t.Error("a segment contains nothing")
	}

	if NewPath().Contains(0, 0) {
		t.Error("empty path contains nothing")
	}
}

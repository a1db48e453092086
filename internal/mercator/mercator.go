// Package mercator provides the spherical Web-Mercator transformations and
// planar distance primitives used by the overlay engine. All angles are in
// degrees. The world is WorldSize base units wide at zoom 0.
package mercator

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"
)

// WorldSize is the width and height of the zoom-0 world in base units.
const WorldSize = 256

// sinClamp bounds sin(lat) away from the poles so the projection stays
// finite.
const sinClamp = 0.9999

// LatLng is a geographic position in degrees.
type LatLng struct {
	Lat float64
	Lng float64
}

// LatLngToWorld projects a geographic position onto the zoom-0 world plane.
// NaN inputs yield the origin.
func LatLngToWorld(ll LatLng) orb.Point {
	if math.IsNaN(ll.Lat) || math.IsNaN(ll.Lng) {
		return orb.Point{}
	}

	siny := math.Sin(ll.Lat * math.Pi / 180)
	if siny < -sinClamp {
		siny = -sinClamp
	} else if siny > sinClamp {
		siny = sinClamp
	}

	return orb.Point{
		WorldSize * (0.5 + ll.Lng/360),
		WorldSize * (0.5 - math.Log((1+siny)/(1-siny))/(4*math.Pi)),
	}
}

// WorldToLatLng is the exact inverse of LatLngToWorld away from the clamp
// region.
func WorldToLatLng(p orb.Point) LatLng {
	lng := (p[0]/WorldSize - 0.5) * 360

	n := math.Pi - 2*math.Pi*p[1]/WorldSize
	lat := 180 / math.Pi * math.Atan(0.5*(math.Exp(n)-math.Exp(-n)))

	return LatLng{Lat: lat, Lng: lng}
}

// TileAt returns the integer tile coordinates containing a geographic
// position at the given zoom.
func TileAt(ll LatLng, zoom int) (x, y int) {
	p := LatLngToWorld(ll)
	scale := WorldSize / math.Exp2(float64(zoom))
	return int(math.Floor(p[0] / scale)), int(math.Floor(p[1] / scale))
}

// TileBounds returns the north-east and south-west geographic corners of a
// tile.
func TileBounds(z, x, y int) (ne, sw LatLng) {
	bound := maptile.New(uint32(x), uint32(y), maptile.Zoom(z)).Bound()
	ne = LatLng{Lat: bound.Max[1], Lng: bound.Max[0]}
	sw = LatLng{Lat: bound.Min[1], Lng: bound.Min[0]}
	return ne, sw
}

// Normalize wraps tile coordinates modulo the tile count at a zoom.
func Normalize(x, y, z int) (int, int) {
	n := 1 << uint(z)
	x = ((x % n) + n) % n
	y = ((y % n) + n) % n
	return x, y
}

// TileToLatLng converts fractional global tile coordinates at a zoom to a
// geographic position. Used when unprojecting tile-local geometry.
func TileToLatLng(z int, fx, fy float64) LatLng {
	n := math.Exp2(float64(z))
	lng := fx/n*360 - 180
	lat := math.Atan(math.Sinh(math.Pi*(1-2*fy/n))) * 180 / math.Pi
	return LatLng{Lat: lat, Lng: lng}
}

// InCircle reports whether (x, y) lies within radius r of (cx, cy).
func InCircle(cx, cy, r, x, y float64) bool {
	dx := cx - x
	dy := cy - y
	return dx*dx+dy*dy <= r*r
}

// PointSegmentDistance returns the Euclidean distance from (px, py) to the
// segment from (ax, ay) to (bx, by). A zero-length segment measures to its
// single point; NaN input yields +Inf.
func PointSegmentDistance(px, py, ax, ay, bx, by float64) float64 {
	if math.IsNaN(px) || math.IsNaN(py) || math.IsNaN(ax) || math.IsNaN(ay) ||
		math.IsNaN(bx) || math.IsNaN(by) {
		return math.Inf(1)
	}

	dx := bx - ax
	dy := by - ay
	lengthSq := dx*dx + dy*dy

	t := 0.0
	if lengthSq > 0 {
		t = ((px-ax)*dx + (py-ay)*dy) / lengthSq
		if t < 0 {
			t = 0
		} else if t > 1 {
			t = 1
		}
	}

	ex := ax + t*dx - px
	ey := ay + t*dy - py
	return math.Sqrt(ex*ex + ey*ey)
}

// PolylineDistance returns the minimum distance from a point to any segment
// of a polyline. Fewer than two points yields +Inf.
func PolylineDistance(px, py float64, pts []orb.Point) float64 {
	best := math.Inf(1)
	for i := 1; i < len(pts); i++ {
		d := PointSegmentDistance(px, py, pts[i-1][0], pts[i-1][1], pts[i][0], pts[i][1])
		if d < best {
			best = d
		}
	}
	return best
}

// PointInRing reports even-odd containment of a point in a ring. An empty
// or degenerate ring contains nothing.
func PointInRing(p orb.Point, ring []orb.Point) bool {
	if len(ring) < 3 {
		return false
	}

	inside := false
	j := len(ring) - 1
	for i := 0; i < len(ring); i++ {
		xi, yi := ring[i][0], ring[i][1]
		xj, yj := ring[j][0], ring[j][1]
		if (yi > p[1]) != (yj > p[1]) &&
			p[0] < (xj-xi)*(p[1]-yi)/(yj-yi)+xi {
			inside = !inside
		}
		j = i
	}
	return inside
}

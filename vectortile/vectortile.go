// Package vectortile provides the decoded Mapbox Vector Tile object model
// consumed by the overlay engine. Geometry is kept in integer tile-extent
// coordinates; decoding from protobuf bytes is delegated to
// github.com/paulmach/orb/encoding/mvt.
package vectortile

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/geocanvas/mvtoverlay/internal/mercator"
)

// GeomType is the MVT geometry type tag.
type GeomType int

const (
	// GeomPoint is a point or multipoint feature.
	GeomPoint GeomType = 1
	// GeomLineString is a linestring or multilinestring feature.
	GeomLineString GeomType = 2
	// GeomPolygon is a polygon or multipolygon feature.
	GeomPolygon GeomType = 3
)

// Point is a vertex in integer tile-extent coordinates.
type Point struct {
	X int32
	Y int32
}

// Feature is a single decoded vector-tile feature. Geometry is grouped by
// part: one inner slice per line or polygon ring; the points of a point or
// multipoint feature share a single part.
type Feature struct {
	// ID is the feature id from the tile, when present.
	ID uint64
	// HasID reports whether the tile carried an id for this feature.
	HasID bool
	// Type is the geometry type tag.
	Type GeomType
	// Extent is the integer coordinate range of the feature's layer.
	Extent int
	// Properties is the decoded attribute bag.
	Properties map[string]interface{}

	geometry [][]Point
}

// LoadGeometry returns the feature geometry as parts of integer vertices.
// The returned slices are shared; callers must not mutate them.
func (f *Feature) LoadGeometry() [][]Point {
	return f.geometry
}

// BBox returns the integer bounding box of the geometry. An empty geometry
// yields a zero box.
func (f *Feature) BBox() (minX, minY, maxX, maxY int32) {
	first := true
	for _, part := range f.geometry {
		for _, p := range part {
			if first {
				minX, minY, maxX, maxY = p.X, p.Y, p.X, p.Y
				first = false
				continue
			}
			if p.X < minX {
				minX = p.X
			}
			if p.X > maxX {
				maxX = p.X
			}
			if p.Y < minY {
				minY = p.Y
			}
			if p.Y > maxY {
				maxY = p.Y
			}
		}
	}
	return minX, minY, maxX, maxY
}

// GeoJSON returns the feature as a GeoJSON feature in geographic
// coordinates, unprojected from the given tile.
func (f *Feature) GeoJSON(z, x, y int) *geojson.Feature {
	unproject := func(p Point) orb.Point {
		fx := float64(x) + float64(p.X)/float64(f.Extent)
		fy := float64(y) + float64(p.Y)/float64(f.Extent)
		ll := mercator.TileToLatLng(z, fx, fy)
		return orb.Point{ll.Lng, ll.Lat}
	}

	var geom orb.Geometry
	switch f.Type {
	case GeomPoint:
		if len(f.geometry) == 1 && len(f.geometry[0]) == 1 {
			geom = unproject(f.geometry[0][0])
		} else {
			mp := make(orb.MultiPoint, 0, len(f.geometry))
			for _, part := range f.geometry {
				for _, p := range part {
					mp = append(mp, unproject(p))
				}
			}
			geom = mp
		}
	case GeomLineString:
		if len(f.geometry) == 1 {
			geom = unprojectLine(f.geometry[0], unproject)
		} else {
			mls := make(orb.MultiLineString, 0, len(f.geometry))
			for _, part := range f.geometry {
				mls = append(mls, unprojectLine(part, unproject))
			}
			geom = mls
		}
	case GeomPolygon:
		poly := make(orb.Polygon, 0, len(f.geometry))
		for _, part := range f.geometry {
			poly = append(poly, orb.Ring(unprojectLine(part, unproject)))
		}
		geom = poly
	default:
		return nil
	}

	out := geojson.NewFeature(geom)
	if f.HasID {
		out.ID = f.ID
	}
	for k, v := range f.Properties {
		out.Properties[k] = v
	}
	return out
}

func unprojectLine(part []Point, unproject func(Point) orb.Point) orb.LineString {
	ls := make(orb.LineString, 0, len(part))
	for _, p := range part {
		ls = append(ls, unproject(p))
	}
	return ls
}

// Layer is a named collection of features sharing an extent.
type Layer struct {
	// Name is the layer name from the tile.
	Name string
	// Version is the MVT layer version.
	Version int
	// Extent is the integer coordinate range, typically 4096.
	Extent int

	features []*Feature
}

// Len returns the number of features in the layer.
func (l *Layer) Len() int {
	return len(l.features)
}

// Feature returns the i-th feature. Out-of-range indices return nil.
func (l *Layer) Feature(i int) *Feature {
	if i < 0 || i >= len(l.features) {
		return nil
	}
	return l.features[i]
}

// NewFeature constructs a feature from already-decoded geometry, for
// hosts that decode tiles themselves.
func NewFeature(t GeomType, extent int, geometry [][]Point) *Feature {
	if extent <= 0 {
		extent = 4096
	}
	return &Feature{
		Type:       t,
		Extent:     extent,
		Properties: map[string]interface{}{},
		geometry:   geometry,
	}
}

// NewLayer constructs a layer from already-decoded features.
func NewLayer(name string, extent int, features ...*Feature) *Layer {
	if extent <= 0 {
		extent = 4096
	}
	return &Layer{
		Name:     name,
		Version:  2,
		Extent:   extent,
		features: features,
	}
}

// Tile is a decoded vector tile: a set of named layers.
type Tile struct {
	layers map[string]*Layer
}

// NewTile constructs a tile from already-decoded layers.
func NewTile(layers ...*Layer) *Tile {
	t := &Tile{layers: make(map[string]*Layer, len(layers))}
	for _, l := range layers {
		t.layers[l.Name] = l
	}
	return t
}

// Layers returns the layer map. Callers must not mutate it.
func (t *Tile) Layers() map[string]*Layer {
	return t.layers
}

// Layer returns a layer by name, or nil.
func (t *Tile) Layer(name string) *Layer {
	return t.layers[name]
}

// LayerNames returns the layer names in unspecified order.
func (t *Tile) LayerNames() []string {
	names := make([]string, 0, len(t.layers))
	for name := range t.layers {
		names = append(names, name)
	}
	return names
}

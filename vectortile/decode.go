package vectortile

import (
	"bytes"
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/mvt"
)

var gzipMagic = []byte{0x1f, 0x8b}

// Decode parses Mapbox Vector Tile protobuf bytes into the consumed object
// model. Gzip-wrapped payloads are detected and unwrapped.
func Decode(data []byte) (*Tile, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("vectortile: empty tile data")
	}

	var (
		layers mvt.Layers
		err    error
	)
	if bytes.HasPrefix(data, gzipMagic) {
		layers, err = mvt.UnmarshalGzipped(data)
	} else {
		layers, err = mvt.Unmarshal(data)
	}
	if err != nil {
		return nil, fmt.Errorf("vectortile: decode: %w", err)
	}

	tile := &Tile{layers: make(map[string]*Layer, len(layers))}
	for _, src := range layers {
		layer := &Layer{
			Name:    src.Name,
			Version: int(src.Version),
			Extent:  int(src.Extent),
		}
		if layer.Extent <= 0 {
			layer.Extent = 4096
		}

		for _, f := range src.Features {
			feature := convertFeature(f.Geometry, layer.Extent)
			if feature == nil {
				continue
			}
			feature.Properties = map[string]interface{}(f.Properties)
			if id, ok := featureID(f.ID); ok {
				feature.ID = id
				feature.HasID = true
			}
			layer.features = append(layer.features, feature)
		}

		tile.layers[layer.Name] = layer
	}

	return tile, nil
}

// convertFeature maps an orb geometry in tile-extent coordinates to the
// integer part-list model. Unsupported geometry kinds yield nil.
func convertFeature(geom orb.Geometry, extent int) *Feature {
	f := &Feature{Extent: extent}

	switch g := geom.(type) {
	case orb.Point:
		f.Type = GeomPoint
		f.geometry = [][]Point{{toPoint(g)}}
	case orb.MultiPoint:
		f.Type = GeomPoint
		part := make([]Point, 0, len(g))
		for _, p := range g {
			part = append(part, toPoint(p))
		}
		f.geometry = [][]Point{part}
	case orb.LineString:
		f.Type = GeomLineString
		f.geometry = [][]Point{toPart(g)}
	case orb.MultiLineString:
		f.Type = GeomLineString
		for _, ls := range g {
			f.geometry = append(f.geometry, toPart(ls))
		}
	case orb.Polygon:
		f.Type = GeomPolygon
		for _, ring := range g {
			f.geometry = append(f.geometry, toPart(orb.LineString(ring)))
		}
	case orb.MultiPolygon:
		f.Type = GeomPolygon
		for _, poly := range g {
			for _, ring := range poly {
				f.geometry = append(f.geometry, toPart(orb.LineString(ring)))
			}
		}
	default:
		return nil
	}

	return f
}

func toPart(ls orb.LineString) []Point {
	part := make([]Point, 0, len(ls))
	for _, p := range ls {
		part = append(part, toPoint(p))
	}
	return part
}

func toPoint(p orb.Point) Point {
	return Point{X: int32(p[0]), Y: int32(p[1])}
}

// featureID normalizes the id forms the decoder may produce.
func featureID(id interface{}) (uint64, bool) {
	switch v := id.(type) {
	case uint64:
		return v, true
	case int64:
		if v >= 0 {
			return uint64(v), true
		}
	case int:
		if v >= 0 {
			return uint64(v), true
		}
	case float64:
		if v >= 0 && v == float64(uint64(v)) {
			return uint64(v), true
		}
	}
	return 0, false
}

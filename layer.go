package mvtoverlay

import (
	"math"
	"strconv"
	"sync"

	"github.com/geocanvas/mvtoverlay/internal/mercator"
	"github.com/geocanvas/mvtoverlay/vectortile"
)

// clickTolerance widens line hit testing beyond the stroke half-width.
const clickTolerance = 2

// FilterFunc rejects features before they are parsed into a layer.
type FilterFunc func(layerName string, f *vectortile.Feature) bool

// IDExtractor derives the stable cross-tile feature id. Returning ok=false
// falls through to the default id chain.
type IDExtractor func(layerName string, f *vectortile.Feature) (string, bool)

// Layer groups the features of one named vector-tile layer across tiles.
// The layer owns its features; the source owns the layer map.
type Layer struct {
	// Name is the vector-tile layer name.
	Name string

	features map[string]*Feature
	tiles    map[string]*layerTile
}

// layerTile is the per-tile draw list of a layer.
type layerTile struct {
	features []*Feature
}

func newLayer(name string) *Layer {
	return &Layer{
		Name:     name,
		features: make(map[string]*Feature),
		tiles:    make(map[string]*layerTile),
	}
}

// Feature returns the layer's feature for an id, or nil.
func (l *Layer) Feature(id string) *Feature {
	return l.features[id]
}

// FeatureCount returns the number of features materialized in the layer.
func (l *Layer) FeatureCount() int {
	return len(l.features)
}

// dropTile forgets the layer's per-tile draw list. Feature fragments are
// kept: they stay bounded by the per-feature LRU and the merger still
// needs fragments from tiles that have scrolled away.
func (l *Layer) dropTile(key TileKey) {
	delete(l.tiles, key.String())
}

// parseLayerTile reconciles a freshly decoded layer into the layer's
// feature table and per-tile draw list.
func (s *Source) parseLayerTile(l *Layer, tc *TileContext, vtl *vectortile.Layer) {
	dataKey := tc.DataKey()
	lt := &layerTile{}
	l.tiles[tc.Key.String()] = lt

	for i := 0; i < vtl.Len(); i++ {
		vtf := vtl.Feature(i)
		if vtf == nil {
			continue
		}

		if !s.featurePassesFilter(l.Name, vtf) {
			continue
		}

		id, ok := s.extractFeatureID(l.Name, vtf)
		if !ok {
			continue
		}

		f := l.features[id]
		if f == nil {
			f = NewFeature(id, vtf)
			f.Style = s.styles.base(vtf).stripStates()
			l.features[id] = f
			// Inherit interaction state decided before this tile
			// materialized the feature.
			f.selected = s.registry.IsSelected(id)
			f.hovered = s.registry.IsHovered(id)
			s.registry.Register(f)
		} else {
			f.Style = s.styles.base(vtf).stripStates()
			f.selected = s.registry.IsSelected(id)
			f.hovered = s.registry.IsHovered(id)
		}
		f.addTile(dataKey, vtf, s.opts.TileSize)

		lt.features = append(lt.features, f)
	}
}

// featurePassesFilter applies the configured filter, swallowing panics so
// one bad feature cannot take down a parse.
func (s *Source) featurePassesFilter(layerName string, vtf *vectortile.Feature) (pass bool) {
	if s.opts.Filter == nil {
		return true
	}
	defer func() {
		if r := recover(); r != nil {
			s.log.WithField("layer", layerName).Warnf("filter panic: %v", r)
			pass = false
		}
	}()
	return s.opts.Filter(layerName, vtf)
}

// extractFeatureID runs the id fallback chain: configured extractor, tile
// id, configured default property, common property names, generated id.
func (s *Source) extractFeatureID(layerName string, vtf *vectortile.Feature) (id string, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			s.log.WithField("layer", layerName).Warnf("id extractor panic: %v", r)
			id, ok = "", false
		}
	}()

	if s.opts.GetIDForLayerFeature != nil {
		if id, ok := s.opts.GetIDForLayerFeature(layerName, vtf); ok && id != "" {
			return id, true
		}
	}

	if vtf.HasID {
		return strconv.FormatUint(vtf.ID, 10), true
	}

	if s.opts.DefaultFeatureID != "" {
		if id, ok := propertyID(vtf, s.opts.DefaultFeatureID); ok {
			return id, true
		}
	}

	for _, name := range []string{"id", "Id", "ID"} {
		if id, ok := propertyID(vtf, name); ok {
			return id, true
		}
	}

	s.generatedIDs++
	return "generated:" + strconv.FormatUint(s.generatedIDs, 10), true
}

// propertyID stringifies a property value usable as an id.
func propertyID(vtf *vectortile.Feature, name string) (string, bool) {
	v, ok := vtf.Properties[name]
	if !ok || v == nil {
		return "", false
	}
	switch t := v.(type) {
	case string:
		return t, t != ""
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case int64:
		return strconv.FormatInt(t, 10), true
	case uint64:
		return strconv.FormatUint(t, 10), true
	case int:
		return strconv.Itoa(t), true
	case bool:
		return strconv.FormatBool(t), true
	}
	return "", false
}

// drawLayerTile draws the layer's features for a tile in three z-order
// passes: regular, hovered, selected.
func (s *Source) drawLayerTile(l *Layer, tc *TileContext) {
	lt := l.tiles[tc.Key.String()]
	if lt == nil {
		return
	}

	for _, f := range lt.features {
		if !f.selected && !f.hovered {
			s.drawFeature(f, tc)
		}
	}
	for _, f := range lt.features {
		if f.hovered && !f.selected {
			s.drawFeature(f, tc)
		}
	}
	for _, f := range lt.features {
		if f.selected {
			s.drawFeature(f, tc)
		}
	}
}

// drawState is a resolved, style-applied draw configuration. States are
// pooled when one feature is drawn across many tiles; otherwise pool
// overhead exceeds the win.
type drawState struct {
	fill      Color
	hasFill   bool
	stroke    Color
	hasStroke bool
	lineWidth float64
	radius    float64
}

var drawStatePool = sync.Pool{
	New: func() any { return &drawState{} },
}

// drawStatePoolThreshold: features spanning at least this many tiles use
// the pooled state.
const drawStatePoolThreshold = 5

func (s *Source) acquireDrawState(f *Feature, ft *featureTile) (*drawState, bool) {
	pooled := f.TileCount() >= drawStatePoolThreshold
	var ds *drawState
	if pooled {
		ds = drawStatePool.Get().(*drawState)
		*ds = drawState{}
	} else {
		ds = &drawState{}
	}

	style := s.resolver.resolve(s.styles, ft.feature, f.selected, f.hovered)
	ds.fill, ds.hasFill = s.resolver.fillColor(style)
	ds.stroke, ds.hasStroke = s.resolver.strokeColor(style)
	ds.lineWidth = style.LineWidth
	if ds.lineWidth <= 0 {
		ds.lineWidth = 1
	}
	ds.radius = style.Radius
	if ds.radius <= 0 {
		ds.radius = DefaultPointRadius
	}
	return ds, pooled
}

// drawFeature draws one feature's fragment for a tile onto the tile
// canvas.
func (s *Source) drawFeature(f *Feature, tc *TileContext) {
	ft := f.fragment(tc)
	if ft == nil {
		return
	}

	if s.opts.CustomDraw != nil {
		style := s.resolver.resolve(s.styles, ft.feature, f.selected, f.hovered)
		s.opts.CustomDraw(tc.Canvas, ft.pathFor(tc), style, f)
		return
	}

	ds, pooled := s.acquireDrawState(f, ft)
	if pooled {
		defer drawStatePool.Put(ds)
	}

	switch f.Type {
	case vectortile.GeomPoint:
		for _, part := range ft.rawFor(tc) {
			for _, p := range part {
				if ds.hasFill {
					tc.Canvas.FillCircle(p.X, p.Y, ds.radius, ds.fill)
				}
				if ds.hasStroke {
					tc.Canvas.StrokeCircle(p.X, p.Y, ds.radius, ds.stroke, ds.lineWidth)
				}
			}
		}
	case vectortile.GeomLineString:
		if ds.hasStroke {
			tc.Canvas.StrokePath(ft.pathFor(tc), ds.stroke, ds.lineWidth)
		}
	case vectortile.GeomPolygon:
		path := ft.pathFor(tc)
		if ds.hasFill {
			tc.Canvas.FillPath(path, ds.fill)
		}
		if ds.hasStroke {
			tc.Canvas.StrokePath(path, ds.stroke, ds.lineWidth)
		}
	}
}

// hitTestLayer finds the topmost eligible feature of a layer at a
// tile-local point. Selected features are examined first so selection
// keeps click priority even when obscured; the remaining features are
// scanned in reverse draw order. A zero-distance hit short-circuits.
func (s *Source) hitTestLayer(l *Layer, tc *TileContext, pt Point) *Feature {
	lt := l.tiles[tc.Key.String()]
	if lt == nil {
		return nil
	}

	best := math.Inf(1)
	var found *Feature

	for i := len(lt.features) - 1; i >= 0; i-- {
		f := lt.features[i]
		if !f.selected {
			continue
		}
		d, hit := s.hitDistance(f, tc, pt)
		if !hit {
			continue
		}
		if d == 0 {
			return f
		}
		if d < best {
			best = d
			found = f
		}
	}
	// A selected hit wins outright; a closer unselected feature must not
	// beat it.
	if found != nil {
		return found
	}

	for i := len(lt.features) - 1; i >= 0; i-- {
		f := lt.features[i]
		d, hit := s.hitDistance(f, tc, pt)
		if !hit {
			continue
		}
		if d == 0 {
			return f
		}
		if d < best {
			best = d
			found = f
		}
	}

	return found
}

// hitDistance applies the per-geometry-type hit rule and returns the
// feature's distance from the point on a hit.
func (s *Source) hitDistance(f *Feature, tc *TileContext, pt Point) (float64, bool) {
	ft := f.fragment(tc)
	if ft == nil {
		return 0, false
	}

	style := s.resolver.resolve(s.styles, ft.feature, f.selected, f.hovered)

	switch f.Type {
	case vectortile.GeomPolygon:
		if ft.pathFor(tc).Contains(pt.X, pt.Y) {
			return 0, true
		}
	case vectortile.GeomPoint:
		radius := style.Radius
		if radius <= 0 {
			radius = DefaultPointRadius
		}
		if center, ok := ft.firstPoint(tc); ok {
			if mercator.InCircle(center.X, center.Y, radius, pt.X, pt.Y) {
				return center.Distance(pt), true
			}
		}
	case vectortile.GeomLineString:
		lineWidth := style.LineWidth
		if lineWidth <= 0 {
			lineWidth = 1
		}
		best := math.Inf(1)
		for _, part := range ft.rawFor(tc) {
			for i := 1; i < len(part); i++ {
				d := mercator.PointSegmentDistance(pt.X, pt.Y,
					part[i-1].X, part[i-1].Y, part[i].X, part[i].Y)
				if d < best {
					best = d
				}
			}
		}
		if best < lineWidth/2+clickTolerance {
			return best, true
		}
	}
	return 0, false
}

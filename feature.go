package mvtoverlay

import (
	"math"
	"strconv"

	"github.com/geocanvas/mvtoverlay/internal/cache"
	"github.com/geocanvas/mvtoverlay/vectortile"
)

// featureTileCacheCap bounds the per-feature tile entry cache.
const featureTileCacheCap = 50

// smallGeometryThreshold: below this vertex count, cached paths cost more
// than rebuilding them.
const smallGeometryThreshold = 50

// Feature is the engine's record for one logical feature: a stable id, its
// interaction state, and its per-tile geometry fragments.
//
// A feature holds tile keys and ids rather than owning tile contexts; the
// source owns the registry and tile caches.
type Feature struct {
	// ID is the stable cross-tile identity.
	ID string
	// Type is the geometry type shared by all fragments.
	Type vectortile.GeomType
	// Properties is the attribute bag from the most recent fragment.
	Properties map[string]interface{}
	// Style is the composed base style for this feature.
	Style Style

	selected bool
	hovered  bool

	tiles *cache.LRU[string, *featureTile]
}

// featureTile is one tile's fragment of a feature plus its cached derived
// geometry.
type featureTile struct {
	key     TileKey
	feature *vectortile.Feature
	// divisor = extent / tileSize, fixed once computed for the tile.
	divisor float64

	// cachedPath and rawPoints are nil for small geometries, which are
	// rebuilt per use.
	cachedPath *Path
	rawPoints  [][]Point
	geomHash   string
}

// NewFeature creates a feature record from its first tile fragment.
func NewFeature(id string, vtf *vectortile.Feature) *Feature {
	f := &Feature{
		ID:    id,
		tiles: cache.NewLRU[string, *featureTile](featureTileCacheCap),
	}
	if vtf != nil {
		f.Type = vtf.Type
		f.Properties = vtf.Properties
	}
	return f
}

// Selected reports the feature's selected flag.
func (f *Feature) Selected() bool { return f.selected }

// Hovered reports the feature's hovered flag.
func (f *Feature) Hovered() bool { return f.hovered }

// TileCount returns the number of tile fragments currently held.
func (f *Feature) TileCount() int { return f.tiles.Len() }

// TileKeys returns the keys of the held fragments.
func (f *Feature) TileKeys() []TileKey {
	keys := make([]TileKey, 0, f.tiles.Len())
	for _, k := range f.tiles.Keys() {
		if ft, ok := f.tiles.Peek(k); ok {
			keys = append(keys, ft.key)
		}
	}
	return keys
}

// HasTile reports whether the feature has a fragment for the tile.
func (f *Feature) HasTile(key TileKey) bool {
	_, ok := f.tiles.Peek(key.String())
	return ok
}

// addTile merges a tile fragment, replacing any previous fragment for the
// same key. The divisor is fixed at extent / tileSize.
func (f *Feature) addTile(key TileKey, vtf *vectortile.Feature, tileSize int) {
	if vtf == nil || tileSize <= 0 {
		return
	}
	extent := vtf.Extent
	if extent <= 0 {
		extent = 4096
	}
	f.tiles.Set(key.String(), &featureTile{
		key:     key,
		feature: vtf,
		divisor: float64(extent) / float64(tileSize),
	})
	f.Properties = vtf.Properties
}

// fragment returns the fragment for a tile context's data key.
func (f *Feature) fragment(tc *TileContext) *featureTile {
	ft, _ := f.tiles.Get(tc.DataKey().String())
	return ft
}

// eachFragment calls fn for every held fragment.
func (f *Feature) eachFragment(fn func(*featureTile)) {
	for _, k := range f.tiles.Keys() {
		if ft, ok := f.tiles.Peek(k); ok {
			fn(ft)
		}
	}
}

// pathFor returns the canvas-space path for the feature in a tile,
// building and caching it as eligibility allows.
func (ft *featureTile) pathFor(tc *TileContext) *Path {
	hash := geometryHash(ft.feature)
	if ft.cachedPath != nil && ft.geomHash == hash {
		return ft.cachedPath
	}

	path, count := buildPath(ft.feature, ft.divisor, tc)
	if count >= smallGeometryThreshold {
		ft.cachedPath = path
		ft.geomHash = hash
	} else {
		ft.cachedPath = nil
	}
	return path
}

// rawFor returns the raw transformed point arrays used for hit testing.
func (ft *featureTile) rawFor(tc *TileContext) [][]Point {
	hash := geometryHash(ft.feature)
	if ft.rawPoints != nil && ft.geomHash == hash {
		return ft.rawPoints
	}

	raw, count := buildRawPoints(ft.feature, ft.divisor, tc)
	if count >= smallGeometryThreshold {
		ft.rawPoints = raw
		ft.geomHash = hash
	} else {
		ft.rawPoints = nil
	}
	return raw
}

// transform maps an integer tile-extent vertex to canvas coordinates,
// applying overzoom scaling when the tile's content comes from an
// ancestor.
func transform(p vectortile.Point, divisor float64, tc *TileContext) Point {
	x := float64(p.X) / divisor
	y := float64(p.Y) / divisor
	if tc != nil && tc.ZoomDelta > 0 {
		scale := float64(int(1) << uint(tc.ZoomDelta))
		xOff, yOff := tc.overzoomOffsets()
		size := float64(tc.TileSize)
		x = x*scale - float64(xOff)*size
		y = y*scale - float64(yOff)*size
	}
	return Pt(x, y)
}

// buildPath constructs the canvas-space path and returns it with the
// total valid vertex count. NaN points are skipped; parts with no valid
// vertices are dropped.
func buildPath(vtf *vectortile.Feature, divisor float64, tc *TileContext) (*Path, int) {
	path := NewPath()
	count := 0
	if vtf == nil || divisor <= 0 {
		return path, 0
	}

	for _, part := range vtf.LoadGeometry() {
		started := false
		for _, p := range part {
			cp := transform(p, divisor, tc)
			if cp.IsNaN() {
				continue
			}
			if !started {
				path.MoveTo(cp.X, cp.Y)
				started = true
			} else {
				path.LineTo(cp.X, cp.Y)
			}
			count++
		}
		if started && vtf.Type == vectortile.GeomPolygon {
			path.Close()
		}
	}
	return path, count
}

// buildRawPoints constructs the transformed point arrays grouped by part.
func buildRawPoints(vtf *vectortile.Feature, divisor float64, tc *TileContext) ([][]Point, int) {
	if vtf == nil || divisor <= 0 {
		return nil, 0
	}

	geometry := vtf.LoadGeometry()
	raw := make([][]Point, 0, len(geometry))
	count := 0
	for _, part := range geometry {
		pts := make([]Point, 0, len(part))
		for _, p := range part {
			cp := transform(p, divisor, tc)
			if cp.IsNaN() {
				continue
			}
			pts = append(pts, cp)
			count++
		}
		if len(pts) > 0 {
			raw = append(raw, pts)
		}
	}
	return raw, count
}

// geometryHash summarizes a geometry cheaply: part count plus the first
// and last vertex of up to three parts. A changed underlying geometry
// reference invalidates cached paths through this hash.
func geometryHash(vtf *vectortile.Feature) string {
	if vtf == nil {
		return ""
	}
	geometry := vtf.LoadGeometry()

	h := strconv.Itoa(len(geometry))
	limit := len(geometry)
	if limit > 3 {
		limit = 3
	}
	for i := 0; i < limit; i++ {
		part := geometry[i]
		if len(part) == 0 {
			h += "|~"
			continue
		}
		first, last := part[0], part[len(part)-1]
		h += "|" + strconv.Itoa(int(first.X)) + "," + strconv.Itoa(int(first.Y)) +
			";" + strconv.Itoa(int(last.X)) + "," + strconv.Itoa(int(last.Y))
	}
	return h
}

// firstPoint returns the feature's first valid canvas-space vertex in a
// tile, for point hit tests.
func (ft *featureTile) firstPoint(tc *TileContext) (Point, bool) {
	raw := ft.rawFor(tc)
	for _, part := range raw {
		for _, p := range part {
			if !p.IsNaN() && !math.IsInf(p.X, 0) && !math.IsInf(p.Y, 0) {
				return p, true
			}
		}
	}
	return Point{}, false
}

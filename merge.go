package mvtoverlay

import (
	"sort"
	"strconv"

	"github.com/engelsjk/polygol"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"

	"github.com/geocanvas/mvtoverlay/internal/mercator"
	"github.com/geocanvas/mvtoverlay/vectortile"
)

// mergeFeaturePolygon reconstructs a single logical polygon or
// multipolygon from the ring fragments a feature holds across tiles. The
// result is in geographic coordinates, suitable for the replacement
// overlay surface.
//
// Any unexpected failure falls back to emitting the rings as a single
// polygon sorted by descending absolute area.
func (s *Source) mergeFeaturePolygon(f *Feature) *geojson.Feature {
	rings := s.collectGeoRings(f)
	if len(rings) == 0 {
		return nil
	}

	geom := s.mergeRings(f.ID, rings)
	out := geojson.NewFeature(geom)
	out.ID = f.ID
	for k, v := range f.Properties {
		out.Properties[k] = v
	}
	return out
}

// collectGeoRings converts every polygon ring of every tile fragment back
// to geographic coordinates and closes it.
func (s *Source) collectGeoRings(f *Feature) []orb.Ring {
	var rings []orb.Ring
	size := float64(s.opts.TileSize)

	f.eachFragment(func(ft *featureTile) {
		if ft.feature == nil || ft.feature.Type != vectortile.GeomPolygon {
			return
		}
		z := ft.key.Z
		for _, part := range ft.feature.LoadGeometry() {
			if len(part) < 3 {
				continue
			}
			ring := make(orb.Ring, 0, len(part)+1)
			for _, p := range part {
				px := float64(p.X) / ft.divisor
				py := float64(p.Y) / ft.divisor
				gx := float64(ft.key.X) + px/size
				gy := float64(ft.key.Y) + py/size
				ll := mercator.TileToLatLng(z, gx, gy)
				ring = append(ring, orb.Point{ll.Lng, ll.Lat})
			}
			if ring[0] != ring[len(ring)-1] {
				ring = append(ring, ring[0])
			}
			rings = append(rings, ring)
		}
	})

	return rings
}

// mergeRings groups touching or overlapping rings and unions each group.
func (s *Source) mergeRings(featureID string, rings []orb.Ring) (geom orb.Geometry) {
	defer func() {
		if r := recover(); r != nil {
			s.log.WithField("feature", featureID).Warnf("polygon merge panic: %v", r)
			geom = areaSortedPolygon(rings)
		}
	}()

	groups := groupAdjacentRings(rings)

	var polys []orb.Polygon
	for _, group := range groups {
		polys = append(polys, s.unionGroup(featureID, group, rings)...)
	}

	switch len(polys) {
	case 0:
		return areaSortedPolygon(rings)
	case 1:
		return polys[0]
	default:
		return orb.MultiPolygon(polys)
	}
}

// groupAdjacentRings unions the ring adjacency graph: two rings are
// adjacent when they share a byte-identical vertex, or failing that when
// they geometrically intersect.
func groupAdjacentRings(rings []orb.Ring) [][]int {
	uf := newUnionFind(len(rings))

	keys := make([]map[string]struct{}, len(rings))
	for i, ring := range rings {
		set := make(map[string]struct{}, len(ring))
		for _, p := range ring {
			set[coordKey(p)] = struct{}{}
		}
		keys[i] = set
	}

	for i := 0; i < len(rings); i++ {
		for j := i + 1; j < len(rings); j++ {
			if ringsShareVertex(keys[i], keys[j]) || ringsIntersect(rings[i], rings[j]) {
				uf.union(i, j)
			}
		}
	}

	grouped := make(map[int][]int)
	for i := range rings {
		root := uf.find(i)
		grouped[root] = append(grouped[root], i)
	}

	// Deterministic group order: by smallest member index.
	roots := make([]int, 0, len(grouped))
	for root := range grouped {
		roots = append(roots, root)
	}
	sort.Slice(roots, func(a, b int) bool {
		return grouped[roots[a]][0] < grouped[roots[b]][0]
	})

	out := make([][]int, 0, len(roots))
	for _, root := range roots {
		out = append(out, grouped[root])
	}
	return out
}

// coordKey renders a vertex exactly; adjacency requires byte-identical
// coordinates.
func coordKey(p orb.Point) string {
	return strconv.FormatFloat(p[0], 'g', -1, 64) + "," +
		strconv.FormatFloat(p[1], 'g', -1, 64)
}

func ringsShareVertex(a, b map[string]struct{}) bool {
	if len(b) < len(a) {
		a, b = b, a
	}
	for k := range a {
		if _, ok := b[k]; ok {
			return true
		}
	}
	return false
}

// ringsIntersect is the geometric fallback: bounding boxes overlap and at
// least one vertex of one ring lies inside the other.
func ringsIntersect(a, b orb.Ring) bool {
	if !a.Bound().Intersects(b.Bound()) {
		return false
	}
	for _, p := range a {
		if mercator.PointInRing(p, b) {
			return true
		}
	}
	for _, p := range b {
		if mercator.PointInRing(p, a) {
			return true
		}
	}
	return false
}

// unionGroup unions the rings of one adjacency group. A pair that fails
// to union keeps the prior result and carries the failed ring as its own
// polygon rather than aborting the merge.
func (s *Source) unionGroup(featureID string, group []int, rings []orb.Ring) []orb.Polygon {
	if len(group) == 1 {
		return []orb.Polygon{{rings[group[0]]}}
	}

	acc := polygolGeom(orb.Polygon{rings[group[0]]})
	var spill []orb.Polygon

	for _, idx := range group[1:] {
		next := polygolGeom(orb.Polygon{rings[idx]})
		merged, err := polygol.Union(acc, next)
		if err != nil || len(merged) == 0 {
			s.log.WithField("feature", featureID).
				Warnf("ring union failed, keeping fragments separate: %v", err)
			spill = append(spill, orb.Polygon{rings[idx]})
			continue
		}
		acc = merged
	}

	return append(orbPolygons(acc), spill...)
}

// areaSortedPolygon is the terminal fallback: all rings as one polygon,
// largest absolute signed area first, without inferring hole
// relationships.
func areaSortedPolygon(rings []orb.Ring) orb.Polygon {
	sorted := make([]orb.Ring, len(rings))
	copy(sorted, rings)
	sort.SliceStable(sorted, func(i, j int) bool {
		return absArea(sorted[i]) > absArea(sorted[j])
	})
	return orb.Polygon(sorted)
}

func absArea(r orb.Ring) float64 {
	a := planar.Area(r)
	if a < 0 {
		return -a
	}
	return a
}

// polygolGeom converts an orb polygon to polygol's multipolygon form.
func polygolGeom(p orb.Polygon) polygol.Geom {
	poly := make([][][]float64, 0, len(p))
	for _, ring := range p {
		rr := make([][]float64, 0, len(ring))
		for _, pt := range ring {
			rr = append(rr, []float64{pt[0], pt[1]})
		}
		poly = append(poly, rr)
	}
	return polygol.Geom{poly}
}

// orbPolygons converts a polygol multipolygon back to orb polygons.
func orbPolygons(g polygol.Geom) []orb.Polygon {
	out := make([]orb.Polygon, 0, len(g))
	for _, poly := range g {
		op := make(orb.Polygon, 0, len(poly))
		for _, ring := range poly {
			or := make(orb.Ring, 0, len(ring))
			for _, pt := range ring {
				if len(pt) >= 2 {
					or = append(or, orb.Point{pt[0], pt[1]})
				}
			}
			op = append(op, or)
		}
		out = append(out, op)
	}
	return out
}

// unionFind is a union-find with path compression over ring indices.
type unionFind struct {
	parent []int
}

func newUnionFind(n int) *unionFind {
	parent := make([]int, n)
	for i := range parent {
		parent[i] = i
	}
	return &unionFind{parent: parent}
}

func (u *unionFind) find(i int) int {
	for u.parent[i] != i {
		u.parent[i] = u.parent[u.parent[i]]
		i = u.parent[i]
	}
	return i
}

func (u *unionFind) union(a, b int) {
	ra, rb := u.find(a), u.find(b)
	if ra != rb {
		u.parent[rb] = ra
	}
}

package mvtoverlay

import (
	"testing"

	"github.com/paulmach/orb"

	"github.com/geocanvas/mvtoverlay/vectortile"
)

// mergeFixture builds feature "B" with polygon fragments in two adjacent
// tiles: ring A touches the right edge of (9,260,170), ring B touches the
// left edge of (9,261,170) sharing two vertices with A exactly, and ring
// C is disjoint from both.
func mergeFixture(src *Source) *Feature {
	t1 := TileKey{Z: 9, X: 260, Y: 170}
	t2 := TileKey{Z: 9, X: 261, Y: 170}

	ringA := [][]vectortile.Point{{
		{2048, 1024}, {4096, 1024}, {4096, 3072}, {2048, 3072}, {2048, 1024},
	}}
	vtfA := vectortile.NewFeature(vectortile.GeomPolygon, 4096, ringA)

	ringsBC := [][]vectortile.Point{
		{{0, 1024}, {2048, 1024}, {2048, 3072}, {0, 3072}, {0, 1024}},
		{{2560, 256}, {3072, 256}, {3072, 768}, {2560, 768}, {2560, 256}},
	}
	vtfBC := vectortile.NewFeature(vectortile.GeomPolygon, 4096, ringsBC)

	f := NewFeature("B", vtfA)
	f.addTile(t1, vtfA, src.opts.TileSize)
	f.addTile(t2, vtfBC, src.opts.TileSize)
	return f
}

func TestMerge_MultiTileSharedVertex(t *testing.T) {
	src, _ := newTestSource(nil)
	defer src.Dispose()

	f := mergeFixture(src)
	out := src.mergeFeaturePolygon(f)
	if out == nil {
		t.Fatal("merge returned nil")
	}

	mp, ok := out.Geometry.(orb.MultiPolygon)
	if !ok {
		t.Fatalf("geometry type = %T, want MultiPolygon", out.Geometry)
	}
	// The two edge-sharing rings join; the disjoint ring stays its own
	// polygon.
	if len(mp) != 2 {
		t.Fatalf("polygons = %d, want 2", len(mp))
	}
	if out.ID != "B" {
		t.Errorf("feature id = %v", out.ID)
	}
}

func TestMerge_SingleRing(t *testing.T) {
	src, _ := newTestSource(nil)
	defer src.Dispose()

	key := TileKey{Z: 9, X: 260, Y: 170}
	vtf := vectortile.NewFeature(vectortile.GeomPolygon, 4096, [][]vectortile.Point{
		{{512, 512}, {3584, 512}, {3584, 3584}, {512, 3584}, {512, 512}},
	})
	f := NewFeature("solo", vtf)
	f.addTile(key, vtf, src.opts.TileSize)

	out := src.mergeFeaturePolygon(f)
	if out == nil {
		t.Fatal("merge returned nil")
	}
	if _, ok := out.Geometry.(orb.Polygon); !ok {
		t.Fatalf("geometry type = %T, want Polygon", out.Geometry)
	}
}

func TestMerge_NonPolygonYieldsNil(t *testing.T) {
	src, _ := newTestSource(nil)
	defer src.Dispose()

	vtf := vectortile.NewFeature(vectortile.GeomPoint, 4096, [][]vectortile.Point{{{10, 10}}})
	f := NewFeature("pt", vtf)
	f.addTile(TileKey{Z: 9, X: 0, Y: 0}, vtf, src.opts.TileSize)

	if out := src.mergeFeaturePolygon(f); out != nil {
		t.Errorf("point feature merged to %v, want nil", out)
	}
}

func TestCollectGeoRings_ClosesOpenRings(t *testing.T) {
	src, _ := newTestSource(nil)
	defer src.Dispose()

	// Ring deliberately left open.
	vtf := vectortile.NewFeature(vectortile.GeomPolygon, 4096, [][]vectortile.Point{
		{{0, 0}, {1024, 0}, {1024, 1024}, {0, 1024}},
	})
	f := NewFeature("open", vtf)
	f.addTile(TileKey{Z: 5, X: 10, Y: 10}, vtf, src.opts.TileSize)

	rings := src.collectGeoRings(f)
	if len(rings) != 1 {
		t.Fatalf("rings = %d", len(rings))
	}
	ring := rings[0]
	if ring[0] != ring[len(ring)-1] {
		t.Error("collected ring must be closed")
	}
}

func TestGroupAdjacentRings(t *testing.T) {
	shared := orb.Point{10, 10}
	a := orb.Ring{{0, 0}, {10, 0}, shared, {0, 10}, {0, 0}}
	b := orb.Ring{shared, {20, 10}, {20, 20}, {10, 20}, shared}
	c := orb.Ring{{100, 100}, {110, 100}, {110, 110}, {100, 110}, {100, 100}}

	groups := groupAdjacentRings([]orb.Ring{a, b, c})
	if len(groups) != 2 {
		t.Fatalf("groups = %v, want 2", groups)
	}
	if len(groups[0]) != 2 || groups[0][0] != 0 || groups[0][1] != 1 {
		t.Errorf("shared-vertex group = %v", groups[0])
	}

	// Overlap without any identical vertex: the geometric fallback
	// still groups.
	d := orb.Ring{{0, 0}, {10, 0}, {10, 10}, {0, 10}, {0, 0}}
	e := orb.Ring{{5, 5}, {15, 5}, {15, 15}, {5, 15}, {5, 5}}
	groups = groupAdjacentRings([]orb.Ring{d, e})
	if len(groups) != 1 {
		t.Errorf("overlapping rings must group, got %v", groups)
	}
}

func TestAreaSortedPolygon(t *testing.T) {
	small := orb.Ring{{0, 0}, {1, 0}, {1, 1}, {0, 1}, {0, 0}}
	large := orb.Ring{{0, 0}, {10, 0}, {10, 10}, {0, 10}, {0, 0}}
	// Clockwise ring: negative signed area, compared by magnitude.
	medium := orb.Ring{{0, 0}, {0, 5}, {5, 5}, {5, 0}, {0, 0}}

	poly := areaSortedPolygon([]orb.Ring{small, medium, large})
	if len(poly) != 3 {
		t.Fatalf("rings = %d", len(poly))
	}
	if absArea(poly[0]) < absArea(poly[1]) || absArea(poly[1]) < absArea(poly[2]) {
		t.Errorf("rings not sorted by descending absolute area")
	}
	if absArea(poly[0]) != 100 {
		t.Errorf("largest ring area = %v, want 100", absArea(poly[0]))
	}
}

func TestUnionFind(t *testing.T) {
	uf := newUnionFind(5)
	uf.union(0, 1)
	uf.union(3, 4)
	uf.union(1, 3)

	if uf.find(0) != uf.find(4) {
		t.Error("transitively joined members must share a root")
	}
	if uf.find(2) == uf.find(0) {
		t.Error("untouched member must stay separate")
	}
}

package mvtoverlay

import (
	"testing"

	"github.com/geocanvas/mvtoverlay/vectortile"
)

func TestFeature_AddTileDivisor(t *testing.T) {
	vtf := vectortile.NewFeature(vectortile.GeomPolygon, 4096,
		[][]vectortile.Point{{{0, 0}, {10, 0}, {10, 10}, {0, 0}}})

	f := NewFeature("a", vtf)
	key := TileKey{Z: 10, X: 1, Y: 2}
	f.addTile(key, vtf, 256)

	if !f.HasTile(key) {
		t.Fatal("fragment not recorded")
	}

	f.eachFragment(func(ft *featureTile) {
		if ft.divisor != 4096.0/256.0 {
			t.Errorf("divisor = %v, want extent/tileSize = 16", ft.divisor)
		}
	})

	// Re-adding replaces, it does not duplicate.
	f.addTile(key, vtf, 256)
	if f.TileCount() != 1 {
		t.Errorf("TileCount() = %d, want 1", f.TileCount())
	}
}

func TestTransform_Plain(t *testing.T) {
	tc := &TileContext{Key: TileKey{Z: 10, X: 1, Y: 1}, TileSize: 256}

	got := transform(vectortile.Point{X: 2048, Y: 1024}, 16, tc)
	if got != Pt(128, 64) {
		t.Errorf("transform = %v, want (128, 64)", got)
	}
}

func TestTransform_Overzoom(t *testing.T) {
	// Source max zoom 10, request (12, 5, 3): parent (10, 1, 0),
	// delta 2, offsets (5 mod 4, 3 mod 4) = (1, 3).
	parent := TileKey{Z: 10, X: 1, Y: 0}
	tc := &TileContext{
		Key:       TileKey{Z: 12, X: 5, Y: 3},
		ParentKey: &parent,
		ZoomDelta: 2,
		TileSize:  256,
	}

	if x, y := tc.overzoomOffsets(); x != 1 || y != 3 {
		t.Fatalf("offsets = (%d, %d), want (1, 3)", x, y)
	}

	// (64/16)*4 - 1*256 = -240; (128/16)*4 - 3*256 = -736.
	got := transform(vectortile.Point{X: 64, Y: 128}, 16, tc)
	if got != Pt(-240, -736) {
		t.Errorf("overzoom transform = %v, want (-240, -736)", got)
	}
}

func TestBuildPath_OverzoomKeepsOffTilePoints(t *testing.T) {
	parent := TileKey{Z: 10, X: 1, Y: 0}
	tc := &TileContext{
		Key:       TileKey{Z: 12, X: 5, Y: 3},
		ParentKey: &parent,
		ZoomDelta: 2,
		TileSize:  256,
	}
	vtf := vectortile.NewFeature(vectortile.GeomLineString, 4096,
		[][]vectortile.Point{{{64, 128}, {128, 128}}})

	path, count := buildPath(vtf, 16, tc)
	if count != 2 {
		t.Fatalf("vertex count = %d, want 2", count)
	}
	subs := path.Subpaths()
	if len(subs) != 1 {
		t.Fatalf("subpaths = %d", len(subs))
	}
	// Negative coordinates are valid off-tile strokes and must be kept.
	if subs[0][0] != Pt(-240, -736) {
		t.Errorf("first vertex = %v", subs[0][0])
	}
}

func bigLineFeature(n int) *vectortile.Feature {
	part := make([]vectortile.Point, n)
	for i := range part {
		part[i] = vectortile.Point{X: int32(i * 10), Y: int32(i * 5)}
	}
	return vectortile.NewFeature(vectortile.GeomLineString, 4096, [][]vectortile.Point{part})
}

func TestFeatureTile_PathCachingEligibility(t *testing.T) {
	tc := &TileContext{Key: TileKey{Z: 5, X: 1, Y: 1}, TileSize: 256}

	// Large geometry: cached, same path object returned.
	big := &featureTile{feature: bigLineFeature(80), divisor: 16}
	p1 := big.pathFor(tc)
	p2 := big.pathFor(tc)
	if p1 != p2 {
		t.Error("large geometry should return the cached path")
	}
	r1 := big.rawFor(tc)
	r2 := big.rawFor(tc)
	if len(r1) == 0 || &r1[0][0] != &r2[0][0] {
		t.Error("large geometry should return the cached raw points")
	}

	// Small geometry: rebuilt per call.
	small := &featureTile{feature: bigLineFeature(4), divisor: 16}
	if small.pathFor(tc) == small.pathFor(tc) {
		t.Error("small geometry should be rebuilt each time")
	}
	if small.cachedPath != nil {
		t.Error("small geometry must not populate the cache")
	}
}

func TestGeometryHash(t *testing.T) {
	a := bigLineFeature(80)
	b := bigLineFeature(80)
	if geometryHash(a) != geometryHash(b) {
		t.Error("identical geometries should hash identically")
	}

	c := vectortile.NewFeature(vectortile.GeomLineString, 4096,
		[][]vectortile.Point{{{1, 2}, {3, 4}}})
	if geometryHash(a) == geometryHash(c) {
		t.Error("different geometries should hash differently")
	}
	if geometryHash(nil) != "" {
		t.Error("nil feature hashes empty")
	}
}

func TestFeature_TileLRUBound(t *testing.T) {
	vtf := bigLineFeature(10)
	f := NewFeature("a", vtf)

	for i := 0; i < featureTileCacheCap+10; i++ {
		f.addTile(TileKey{Z: 10, X: i, Y: 0}, vtf, 256)
	}
	if f.TileCount() > featureTileCacheCap {
		t.Errorf("TileCount() = %d, want <= %d", f.TileCount(), featureTileCacheCap)
	}
}

func TestFeature_EmptyGeometry(t *testing.T) {
	vtf := vectortile.NewFeature(vectortile.GeomPolygon, 4096, nil)
	f := NewFeature("empty", vtf)
	key := TileKey{Z: 3, X: 1, Y: 1}
	f.addTile(key, vtf, 256)

	tc := &TileContext{Key: key, TileSize: 256}
	ft := f.fragment(tc)
	if ft == nil {
		t.Fatal("fragment missing")
	}
	path, count := buildPath(ft.feature, ft.divisor, tc)
	if count != 0 || !path.Empty() {
		t.Error("empty geometry must produce no drawable output")
	}
	if _, ok := ft.firstPoint(tc); ok {
		t.Error("empty geometry has no hit point")
	}
}

package mvtoverlay

import (
	"context"
	"sync"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/mvt"
	"github.com/paulmach/orb/geojson"

	"github.com/geocanvas/mvtoverlay/internal/mercator"
	"github.com/geocanvas/mvtoverlay/vectortile"
)

// stubFetcher serves a fixed payload (or error) after an optional delay
// and records requested URLs.
type stubFetcher struct {
	mu      sync.Mutex
	payload []byte
	err     error
	delay   time.Duration
	urls    []string
}

func (f *stubFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	f.mu.Lock()
	f.urls = append(f.urls, url)
	payload, err, delay := f.payload, f.err, f.delay
	f.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return payload, err
}

func (f *stubFetcher) requested() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.urls))
	copy(out, f.urls)
	return out
}

// recordingSink captures secondary-overlay mutations.
type recordingSink struct {
	mu      sync.Mutex
	added   map[string]*geojson.Feature
	removed []string
	cleared int
}

func newRecordingSink() *recordingSink {
	return &recordingSink{added: make(map[string]*geojson.Feature)}
}

func (rs *recordingSink) Add(id string, f *geojson.Feature, _ Style) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	rs.added[id] = f
}

func (rs *recordingSink) Remove(id string) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	delete(rs.added, id)
	rs.removed = append(rs.removed, id)
}

func (rs *recordingSink) Clear() {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	rs.added = make(map[string]*geojson.Feature)
	rs.cleared++
}

func (rs *recordingSink) addedIDs() []string {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	ids := make([]string, 0, len(rs.added))
	for id := range rs.added {
		ids = append(ids, id)
	}
	return ids
}

// testTilePayload encodes the standard test layer "parcels":
//   - polygon "P": square from (512,512) to (3584,3584) in extent units
//   - point "Q": at (2048,2048), drawn over the polygon center
//   - line "L": horizontal at y=1024 spanning the tile
func testTilePayload() []byte {
	poly := geojson.NewFeature(orb.Polygon{
		{{512, 512}, {3584, 512}, {3584, 3584}, {512, 3584}, {512, 512}},
	})
	poly.Properties["id"] = "P"

	point := geojson.NewFeature(orb.Point{2048, 2048})
	point.Properties["id"] = "Q"

	line := geojson.NewFeature(orb.LineString{{0, 1024}, {4096, 1024}})
	line.Properties["id"] = "L"

	layer := &mvt.Layer{
		Name:     "parcels",
		Version:  2,
		Extent:   4096,
		Features: []*geojson.Feature{poly, point, line},
	}

	data, err := mvt.Marshal(mvt.Layers{layer})
	if err != nil {
		panic(err)
	}
	return data
}

// newTestSource builds a source over a stub fetcher with the standard
// payload. Extra option tweaks are applied through mutate.
func newTestSource(mutate func(*Options)) (*Source, *stubFetcher) {
	fetcher := &stubFetcher{payload: testTilePayload()}
	opts := Options{
		URL:     "stub://{z}/{x}/{y}.pbf",
		Fetcher: fetcher,
		Style: StaticStyle(Style{
			FillStyle:   "rgba(60, 120, 200, 0.4)",
			StrokeStyle: "#3c78c8",
			LineWidth:   2,
		}),
	}
	if mutate != nil {
		mutate(&opts)
	}
	src, err := New(opts)
	if err != nil {
		panic(err)
	}
	return src, fetcher
}

// loadTile requests a tile and blocks until it settles.
func loadTile(src *Source, key TileKey) *Canvas {
	canvas := src.GetTile(key, key.Z)
	<-src.TileLoaded()
	return canvas
}

// tileEventAt builds a pointer event whose translation lands on the given
// tile-local pixel of a tile.
func tileEventAt(key TileKey, px, py float64) PointerEvent {
	ll := mercator.TileToLatLng(key.Z,
		float64(key.X)+px/float64(DefaultTileSize),
		float64(key.Y)+py/float64(DefaultTileSize))
	return PointerEvent{LatLng: LatLng{Lat: ll.Lat, Lng: ll.Lng}}
}

// parseDirect pushes a hand-built decoded layer through the parse path,
// bypassing transport. Returns the tile context.
func parseDirect(src *Source, key TileKey, layers ...*vectortile.Layer) *TileContext {
	tc := &TileContext{
		Key:      key,
		Canvas:   NewCanvas(src.opts.TileSize, src.opts.TileSize),
		Zoom:     key.Z,
		TileSize: src.opts.TileSize,
	}
	src.mu.Lock()
	tc.Tile = vectortile.NewTile(layers...)
	src.visibleTiles.Set(key.String(), tc)
	src.parseTileLocked(tc)
	src.renderTileLocked(tc)
	src.mu.Unlock()
	return tc
}

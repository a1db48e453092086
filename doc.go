// Package mvtoverlay renders Mapbox Vector Tile (MVT/PBF) data as an
// interactive overlay for a raster-tile slippy-map host.
//
// # Overview
//
// The engine turns per-tile binary feature geometry into a stateful scene
// where individual features can be styled, hovered, selected, and replaced
// with higher-detail geometry, across tile boundaries and zoom changes.
//
// # Quick Start
//
//	src, err := mvtoverlay.New(mvtoverlay.Options{
//		URL: "https://tiles.example.com/{z}/{x}/{y}.pbf",
//		GetIDForLayerFeature: func(_ string, f *vectortile.Feature) (string, bool) {
//			id, ok := f.Properties["id"].(string)
//			return id, ok
//		},
//	})
//	if err != nil {
//		// handle
//	}
//	defer src.Dispose()
//
//	// The host map asks for a canvas per grid cell:
//	canvas := src.GetTile(mvtoverlay.TileKey{Z: 12, X: 2093, Y: 1405}, 12)
//
// # Architecture
//
// The package is organized into:
//   - Public API: Source, Options, Style, Feature, Layer, TileKey, Canvas
//   - Internal: cache (LRU/FIFO bounds), mercator (projection math)
//   - vectortile: the decoded MVT object model (orb-backed)
//
// All mutable state is serialized behind the source mutex; timers and fetch
// goroutines re-enter through it. Application callbacks are delivered
// without the lock held.
package mvtoverlay

package mvtoverlay

import "github.com/paulmach/orb/geojson"

// LatLng is a geographic position in degrees.
type LatLng struct {
	Lat float64
	Lng float64
}

// PointerEvent is a pointer interaction delivered by the host map in
// geographic coordinates.
type PointerEvent struct {
	LatLng LatLng
}

// Overlay is the tile-provider contract the source implements for the
// host map: hand out a canvas per grid cell synchronously, accept a
// release signal when the cell scrolls away.
type Overlay interface {
	GetTile(key TileKey, zoom int) *Canvas
	ReleaseTile(key TileKey)
}

// Host is the slippy-map runtime the overlay renders into. Everything the
// engine needs from the host is expressed here; a nil host degrades to
// zero pixel positions and no event wiring.
type Host interface {
	// Zoom returns the map's current zoom level.
	Zoom() int
	// LatLngToContainerPoint projects a geographic position to a pixel
	// within the map viewport. ok=false when the projection is
	// unavailable.
	LatLngToContainerPoint(ll LatLng) (Point, bool)

	// AddOverlay registers the source on the host's overlay stack.
	AddOverlay(o Overlay)
	// RemoveOverlay unregisters the source.
	RemoveOverlay(o Overlay)

	// Event subscriptions return a cancel function used at disposal.
	OnZoom(fn func(zoom int)) (cancel func())
	OnClick(fn func(PointerEvent)) (cancel func())
	OnMouseMove(fn func(PointerEvent)) (cancel func())
}

// GeoJSONSink is the host's secondary overlay surface: replacement
// geometry for selected features is registered here under the feature id.
type GeoJSONSink interface {
	Add(id string, feature *geojson.Feature, style Style)
	Remove(id string)
	Clear()
}

// GeoJSONSinkEvents is optionally implemented by a GeoJSONSink whose
// surface delivers its own pointer events; the source subscribes so
// clicks and hovers on replacement geometry route through the same
// callbacks as tile features.
type GeoJSONSinkEvents interface {
	OnFeatureClick(fn func(id string, ev PointerEvent)) (cancel func())
	OnFeatureHover(fn func(id string, ev PointerEvent)) (cancel func())
}

// FeatureEvent is the payload delivered to click and hover callbacks.
type FeatureEvent struct {
	// Feature is the hit feature, or nil when the pointer was over no
	// feature.
	Feature *Feature
	// LatLng is the event's geographic position.
	LatLng LatLng
	// Pixel is the viewport pixel position, or the origin when the host
	// projection is unavailable.
	Pixel Point
	// TileContext is the visible tile under the pointer, when any.
	TileContext *TileContext
	// TilePoint is the event position in tile-local pixels.
	TilePoint Point
	// SelectionChanged reports whether this event mutated the selection
	// set.
	SelectionChanged bool
	// IsSelected is the hit feature's selection state after the event.
	IsSelected bool
}

// ClickHandler receives click events.
type ClickHandler func(FeatureEvent)

// HoverHandler receives hover events.
type HoverHandler func(FeatureEvent)

// SelectionCallback observes selection flips per feature.
type SelectionCallback func(featureID string, f *Feature, selected bool)

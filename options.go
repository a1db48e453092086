package mvtoverlay

import (
	"context"
	"io"
	"time"

	"github.com/paulmach/orb/geojson"
	"github.com/sirupsen/logrus"
)

// Default cache bounds.
const (
	// DefaultTileSize is the canvas pixel size per tile.
	DefaultTileSize = 256
	// DefaultVisibleTileCap bounds the visible-tile FIFO.
	DefaultVisibleTileCap = 50
	// DefaultDrawnTileCap bounds the drawn-tile FIFO.
	DefaultDrawnTileCap = 100
)

// ReplacementFunc supplies high-detail replacement geometry for a selected
// feature. Returning nil with no error falls back to the built-in polygon
// merger. The context is cancelled when the feature is deselected or the
// source disposed.
type ReplacementFunc func(ctx context.Context, featureID string, f *Feature) (*geojson.Feature, error)

// CustomDrawFunc takes over feature painting when configured.
type CustomDrawFunc func(c *Canvas, p *Path, style Style, f *Feature)

// Options configures a Source. The zero value of every field means its
// default.
type Options struct {
	// URL is the tile template, e.g. "https://…/{z}/{x}/{y}.pbf".
	URL string
	// SourceMaxZoom is the deepest zoom the tileset provides; requests
	// beyond it overzoom the ancestor tile. 0 disables overzooming.
	SourceMaxZoom int
	// Debug draws tile borders, corner markers, and the coordinate
	// label, and raises log verbosity.
	Debug bool

	// GetIDForLayerFeature overrides feature identity extraction.
	GetIDForLayerFeature IDExtractor
	// DefaultFeatureID is the property consulted for identity when the
	// extractor declines and the tile carries no feature id.
	DefaultFeatureID string

	// VisibleLayers restricts drawn layers; nil draws all.
	VisibleLayers []string
	// ClickableLayers restricts hit-tested layers; nil hit-tests all.
	ClickableLayers []string

	// XHRHeaders are sent with every tile request.
	XHRHeaders map[string]string
	// Fetcher overrides tile transport; nil uses an HTTP fetcher with
	// XHRHeaders.
	Fetcher TileFetcher

	// Filter rejects features before parsing.
	Filter FilterFunc
	// Cache keeps layers and features across zoom changes.
	Cache bool
	// TileSize is the canvas pixel size (default 256).
	TileSize int

	// Style is the base style source (static or per-feature function).
	Style StyleSource
	// SelectedFeatures seeds the selection set at construction.
	SelectedFeatures []string

	// CustomDraw replaces the built-in feature painter.
	CustomDraw CustomDrawFunc
	// GetReplacementFeature supplies high-detail selected geometry.
	GetReplacementFeature ReplacementFunc
	// FeatureSelectionCallback observes selection flips.
	FeatureSelectionCallback SelectionCallback

	// TileAvailabilityManifest declares the existing tiles statically.
	TileAvailabilityManifest Manifest
	// TileAvailabilityManifestFunc loads the manifest asynchronously;
	// it wins over the static field when both are set.
	TileAvailabilityManifestFunc ManifestFunc

	// OnClick receives click events.
	OnClick ClickHandler
	// OnMouseHover receives hover events.
	OnMouseHover HoverHandler
	// HoverDelay debounces pointer moves before hover hit testing.
	HoverDelay time.Duration

	// MultipleSelection allows more than one selected feature.
	MultipleSelection bool
	// ToggleSelection deselects an already-selected feature on click.
	ToggleSelection bool
	// SetSelectedOnClick controls whether clicks mutate the selection;
	// nil means true. Callbacks fire either way.
	SetSelectedOnClick *bool
	// LimitToFirstVisibleLayer stops the click scan after the first
	// layer that yields a hit.
	LimitToFirstVisibleLayer bool

	// Host is the slippy-map runtime; nil degrades pixel positions to
	// the origin and skips event wiring.
	Host Host
	// GeoJSONSink is the secondary overlay surface for replacement
	// geometry; nil disables replacement overlays.
	GeoJSONSink GeoJSONSink

	// Logger is the log sink; nil discards.
	Logger logrus.FieldLogger

	// VisibleTileCap / DrawnTileCap override the tile cache bounds.
	VisibleTileCap int
	DrawnTileCap   int
}

// normalize fills defaults in place.
func (o *Options) normalize() {
	if o.TileSize <= 0 {
		o.TileSize = DefaultTileSize
	}
	if o.VisibleTileCap <= 0 {
		o.VisibleTileCap = DefaultVisibleTileCap
	}
	if o.DrawnTileCap <= 0 {
		o.DrawnTileCap = DefaultDrawnTileCap
	}
	if o.Fetcher == nil {
		o.Fetcher = NewHTTPTileFetcher(o.XHRHeaders)
	}
	if len(o.SelectedFeatures) > 1 {
		o.MultipleSelection = true
	}
	if o.Logger == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		o.Logger = l
	} else if o.Debug {
		if l, ok := o.Logger.(*logrus.Logger); ok {
			l.SetLevel(logrus.DebugLevel)
		}
	}
}

// selectOnClick resolves the tri-state SetSelectedOnClick.
func (o *Options) selectOnClick() bool {
	if o.SetSelectedOnClick == nil {
		return true
	}
	return *o.SetSelectedOnClick
}

// Bool is a helper for tri-state option fields.
func Bool(v bool) *bool { return &v }

package mvtoverlay

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/geocanvas/mvtoverlay/internal/cache"
	"github.com/geocanvas/mvtoverlay/vectortile"
)

// selectionReapplyDelay is the deferral after a zoom change before the
// previously selected id set is reapplied, so newly materialized features
// adopt the selected style.
const selectionReapplyDelay = 50 * time.Millisecond

// Source is the overlay engine facade. It implements the host's
// tile-provider contract, owns the feature registry and tile caches, and
// exposes the public mutation surface.
//
// All methods are safe for concurrent use.
type Source struct {
	mu   sync.Mutex
	opts Options
	log  logrus.FieldLogger

	styles   StyleSource
	colors   *ColorParser
	resolver *styleResolver

	registry   *FeatureRegistry
	layers     map[string]*Layer
	layerOrder []string

	visibleTiles *cache.FIFO[string, *TileContext]
	drawnTiles   *cache.FIFO[string, *TileContext]

	sched  *redrawScheduler
	oracle *availabilityOracle

	currentZoom  int
	zoomEpoch    uint64
	generatedIDs uint64

	pendingTiles int
	loadWaiters  []chan struct{}

	replacements map[string]context.CancelFunc
	replacedIDs  map[string]struct{}

	hoverSeq   uint64
	hoverTimer *time.Timer

	reapplyTimer *time.Timer

	hostCancels []func()

	ctx      context.Context
	cancel   context.CancelFunc
	disposed bool
}

// New creates a source, registers it on the host's overlay stack, and
// installs host listeners.
func New(opts Options) (*Source, error) {
	if opts.URL == "" && opts.Fetcher == nil {
		return nil, errors.New("mvtoverlay: Options.URL or Options.Fetcher required")
	}
	opts.normalize()

	ctx, cancel := context.WithCancel(context.Background())
	s := &Source{
		opts:         opts,
		log:          opts.Logger,
		styles:       opts.Style,
		colors:       NewColorParser(),
		registry:     NewFeatureRegistry(),
		layers:       make(map[string]*Layer),
		visibleTiles: cache.NewFIFO[string, *TileContext](opts.VisibleTileCap),
		drawnTiles:   cache.NewFIFO[string, *TileContext](opts.DrawnTileCap),
		oracle:       &availabilityOracle{},
		replacements: make(map[string]context.CancelFunc),
		replacedIDs:  make(map[string]struct{}),
		ctx:          ctx,
		cancel:       cancel,
	}
	s.resolver = &styleResolver{colors: s.colors}
	s.sched = newRedrawScheduler(s)

	if opts.TileAvailabilityManifestFunc != nil {
		s.oracle.setFunc(opts.TileAvailabilityManifestFunc)
		s.loadManifest()
	} else if opts.TileAvailabilityManifest != nil {
		s.oracle.setStatic(opts.TileAvailabilityManifest)
	}

	if host := opts.Host; host != nil {
		s.currentZoom = host.Zoom()
		host.AddOverlay(s)
		s.hostCancels = append(s.hostCancels,
			host.OnZoom(s.handleZoomChange),
			host.OnClick(s.Click),
			host.OnMouseMove(s.MouseMove),
		)
	}
	if events, ok := opts.GeoJSONSink.(GeoJSONSinkEvents); ok {
		s.hostCancels = append(s.hostCancels,
			events.OnFeatureClick(s.replacementClicked),
			events.OnFeatureHover(s.replacementHovered),
		)
	}

	if len(opts.SelectedFeatures) > 0 {
		s.SetSelectedFeatures(opts.SelectedFeatures)
	}

	return s, nil
}

// GetTile returns a canvas for a grid cell synchronously and starts the
// asynchronous fetch/decode that will draw into it. Implements Overlay.
func (s *Source) GetTile(key TileKey, zoom int) *Canvas {
	s.mu.Lock()

	if s.disposed {
		s.mu.Unlock()
		return NewCanvas(DefaultTileSize, DefaultTileSize)
	}

	if zoom != s.currentZoom {
		s.handleZoomChangeLocked(zoom)
	}

	key.X, key.Y = normalizeTileKey(key)

	tc := &TileContext{
		Key:      key,
		Canvas:   NewCanvas(s.opts.TileSize, s.opts.TileSize),
		Zoom:     zoom,
		TileSize: s.opts.TileSize,
		state:    tileRequested,
	}

	// Overzooming: content above SourceMaxZoom comes from the ancestor.
	if s.opts.SourceMaxZoom > 0 && key.Z > s.opts.SourceMaxZoom {
		delta := key.Z - s.opts.SourceMaxZoom
		parent := key.parent(delta)
		tc.ParentKey = &parent
		tc.ZoomDelta = delta
	}

	s.visibleTiles.Set(key.String(), tc)

	dataKey := tc.DataKey()
	if !s.oracle.allows(dataKey) {
		tc.state = tileDebugOnly
		s.annotateLocked(tc)
		s.mu.Unlock()
		return tc.Canvas
	}

	// Cached decoded tiles short-circuit the fetch.
	if s.opts.Cache {
		if prev, ok := s.drawnTiles.Get(dataKey.String()); ok && prev.Tile != nil {
			tc.Tile = prev.Tile
			tc.state = tileDecoded
			s.parseTileLocked(tc)
			s.renderTileLocked(tc)
			s.mu.Unlock()
			return tc.Canvas
		}
	}

	tc.state = tileFetching
	s.pendingTiles++
	epoch := s.zoomEpoch
	s.mu.Unlock()

	go s.fetchTile(tc, epoch)
	return tc.Canvas
}

// ReleaseTile drops a tile from the visible set and forgets the per-layer
// draw lists for it. Implements Overlay.
func (s *Source) ReleaseTile(key TileKey) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disposed {
		return
	}
	s.visibleTiles.Remove(key.String())
	for _, l := range s.layers {
		l.dropTile(key)
	}
}

// normalizeTileKey wraps x and y modulo the tile count at the key's zoom.
func normalizeTileKey(key TileKey) (int, int) {
	if key.Z < 0 {
		return key.X, key.Y
	}
	n := 1 << uint(key.Z)
	x := ((key.X % n) + n) % n
	y := ((key.Y % n) + n) % n
	return x, y
}

// fetchTile runs on its own goroutine: fetch, decode, then re-enter the
// lock to parse and render.
func (s *Source) fetchTile(tc *TileContext, epoch uint64) {
	dataKey := tc.DataKey()
	url := expandTileURL(s.opts.URL, dataKey)

	data, err := s.opts.Fetcher.Fetch(s.ctx, url)

	var tile *vectortile.Tile
	if err == nil {
		tile, err = vectortile.Decode(data)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.pendingTiles--
	// Waiters are notified only after the tile has settled below.
	defer s.notifyLoadedLocked()

	if s.disposed {
		return
	}

	// Responses that arrive after the map moved to another zoom are
	// dropped; the canvas they would paint has been superseded.
	if epoch != s.zoomEpoch {
		return
	}

	if err != nil {
		s.log.WithField("tile", tc.Key.String()).Warnf("tile load failed: %v", err)
		tc.state = tileDebugOnly
		s.annotateLocked(tc)
		return
	}

	tc.Tile = tile
	tc.state = tileDecoded
	s.parseTileLocked(tc)
	s.renderTileLocked(tc)
	s.logStatsLocked()
}

// parseTileLocked reconciles every decoded layer of a tile into the layer
// map.
func (s *Source) parseTileLocked(tc *TileContext) {
	if tc.Tile == nil {
		return
	}
	for name, vtl := range tc.Tile.Layers() {
		l := s.layers[name]
		if l == nil {
			l = newLayer(name)
			s.layers[name] = l
			s.layerOrder = append(s.layerOrder, name)
		}
		s.parseLayerTile(l, tc, vtl)
	}
}

// renderTileLocked draws all visible layers of a tile onto its canvas in
// three z-order passes per layer.
func (s *Source) renderTileLocked(tc *TileContext) {
	tc.Canvas.Clear()
	s.annotateLocked(tc)

	for _, name := range s.layerOrder {
		if !s.layerVisible(name) {
			continue
		}
		if l := s.layers[name]; l != nil {
			s.drawLayerTile(l, tc)
		}
	}

	tc.state = tileRendered
	s.drawnTiles.Set(tc.DataKey().String(), tc)
}

// annotateLocked draws debug annotations on the first rendering only.
func (s *Source) annotateLocked(tc *TileContext) {
	if !s.opts.Debug || tc.annotated {
		return
	}
	drawDebugAnnotation(tc)
	tc.annotated = true
}

// layerVisible applies the visible-layer restriction; nil means all.
func (s *Source) layerVisible(name string) bool {
	if s.opts.VisibleLayers == nil {
		return true
	}
	for _, n := range s.opts.VisibleLayers {
		if n == name {
			return true
		}
	}
	return false
}

// repaintTileLocked re-renders one tile if it is visible and decoded.
// Called by the scheduler with the lock held.
func (s *Source) repaintTileLocked(key TileKey) {
	tc, ok := s.visibleTiles.Get(key.String())
	if !ok || tc.Tile == nil {
		return
	}
	// The drawn-marker is dropped unconditionally; with caching off the
	// delete is a no-op and both paths are correct.
	s.drawnTiles.Remove(tc.DataKey().String())
	s.renderTileLocked(tc)
}

// handleZoomChange is the host zoom listener.
func (s *Source) handleZoomChange(zoom int) {
	s.mu.Lock()
	if !s.disposed && zoom != s.currentZoom {
		s.handleZoomChangeLocked(zoom)
	}
	s.mu.Unlock()
}

// handleZoomChangeLocked invalidates per-zoom state. The selected id set
// survives: it is reapplied after a short deferral so features
// materialized at the new zoom adopt the selected style.
func (s *Source) handleZoomChangeLocked(zoom int) {
	hadState := s.visibleTiles.Len() > 0 || s.registry.Len() > 0 || len(s.layers) > 0

	s.currentZoom = zoom
	s.zoomEpoch++

	if !hadState {
		// First tile request of a session, nothing to invalidate.
		return
	}

	s.visibleTiles.Clear()

	selected := s.registry.SelectedIDs()

	if !s.opts.Cache {
		s.layers = make(map[string]*Layer)
		s.layerOrder = nil
		s.registry.Reset()
		s.drawnTiles.Clear()
	}

	if s.reapplyTimer != nil {
		s.reapplyTimer.Stop()
	}
	s.reapplyTimer = time.AfterFunc(selectionReapplyDelay, func() {
		s.mu.Lock()
		if !s.disposed {
			for _, id := range selected {
				s.registry.MarkSelected(id, true)
			}
			s.sched.enqueueAll()
		}
		s.mu.Unlock()
	})

	s.sched.enqueueAll()
}

// loadManifest pulls a function-based manifest asynchronously.
func (s *Source) loadManifest() {
	fn := s.oracle.fn
	if fn == nil {
		return
	}
	go func() {
		m, err := fn(s.ctx)

		s.mu.Lock()
		defer s.mu.Unlock()
		if s.disposed || s.oracle.fn == nil {
			return
		}
		if err != nil {
			s.log.Warnf("manifest load failed: %v", err)
			return
		}
		s.oracle.manifest = m
		s.oracle.loaded = true
		s.log.Debugf("manifest loaded: %d tiles across %d zooms", m.TileCount(), len(m.Zooms()))
	}()
}

// notifyLoadedLocked closes load waiters once no tile is pending.
func (s *Source) notifyLoadedLocked() {
	if s.pendingTiles > 0 {
		return
	}
	for _, ch := range s.loadWaiters {
		close(ch)
	}
	s.loadWaiters = nil
}

// TileLoaded returns a channel closed when all currently visible tiles
// have completed loading.
func (s *Source) TileLoaded() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch := make(chan struct{})
	if s.pendingTiles == 0 || s.disposed {
		close(ch)
		return ch
	}
	s.loadWaiters = append(s.loadWaiters, ch)
	return ch
}

// --- Public mutation surface -------------------------------------------

// SetSelectedFeatures replaces the selection set. Passing more than one
// id enables multiple-selection mode.
func (s *Source) SetSelectedFeatures(ids []string) {
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return
	}

	if len(ids) > 1 {
		s.opts.MultipleSelection = true
	}

	want := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		want[id] = struct{}{}
	}

	var deferred []func()
	for _, id := range s.registry.SelectedIDs() {
		if _, keep := want[id]; !keep {
			deferred = append(deferred, s.deselectLocked(id)...)
		}
	}
	for _, id := range ids {
		deferred = append(deferred, s.selectLocked(id)...)
	}
	s.mu.Unlock()

	runDeferred(deferred)
}

// GetSelectedFeatureIDs returns a snapshot of the selected id set.
func (s *Source) GetSelectedFeatureIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disposed {
		return nil
	}
	return s.registry.SelectedIDs()
}

// GetSelectedFeatures returns the materialized selected features.
func (s *Source) GetSelectedFeatures() []*Feature {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disposed {
		return nil
	}

	var out []*Feature
	for _, id := range s.registry.SelectedIDs() {
		if f := s.registry.Get(id); f != nil {
			out = append(out, f)
		}
	}
	return out
}

// GetSelectedFeaturesInTile returns the selected features that have a
// fragment in the given tile.
func (s *Source) GetSelectedFeaturesInTile(key TileKey) []*Feature {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disposed {
		return nil
	}

	var out []*Feature
	for _, id := range s.registry.SelectedIDs() {
		if f := s.registry.Get(id); f != nil && f.HasTile(key) {
			out = append(out, f)
		}
	}
	return out
}

// DeselectAllFeatures clears the selection and removes any replacement
// overlays.
func (s *Source) DeselectAllFeatures() {
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return
	}
	var deferred []func()
	for _, id := range s.registry.SelectedIDs() {
		deferred = append(deferred, s.deselectLocked(id)...)
	}
	s.mu.Unlock()

	runDeferred(deferred)
}

// ClearAllHoveredFeatures clears the hover set.
func (s *Source) ClearAllHoveredFeatures() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disposed {
		return
	}
	s.enqueueFeatureTilesLocked(s.registry.HoveredIDs())
	s.registry.ClearHovered()
}

// SetStyle replaces the base style. The selection set is preserved.
func (s *Source) SetStyle(style StyleSource, redraw bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disposed {
		return
	}
	s.styles = style
	s.opts.Style = style
	s.registry.Each(func(f *Feature) {
		f.eachFragment(func(ft *featureTile) {
			f.Style = style.base(ft.feature).stripStates()
		})
	})
	if redraw {
		s.sched.enqueueAll()
	}
}

// SetFilter replaces the feature filter. Takes effect for tiles parsed
// afterwards; redraw repaints already-visible tiles with the old parse.
func (s *Source) SetFilter(filter FilterFunc, redraw bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disposed {
		return
	}
	s.opts.Filter = filter
	if redraw {
		s.sched.enqueueAll()
	}
}

// SetVisibleLayers restricts drawn layers; nil restores all.
func (s *Source) SetVisibleLayers(names []string, redraw bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disposed {
		return
	}
	s.opts.VisibleLayers = names
	if redraw {
		s.sched.enqueueAll()
	}
}

// SetClickableLayers restricts hit-tested layers; nil restores all.
func (s *Source) SetClickableLayers(names []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disposed {
		return
	}
	s.opts.ClickableLayers = names
}

// SetURL changes the tile template and resets the layer map.
func (s *Source) SetURL(url string, redraw bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disposed {
		return
	}
	s.opts.URL = url
	s.layers = make(map[string]*Layer)
	s.layerOrder = nil
	s.registry.Reset()
	s.drawnTiles.Clear()
	if redraw {
		s.sched.enqueueAll()
	}
}

// SetTileAvailabilityManifest replaces the oracle with a static manifest.
func (s *Source) SetTileAvailabilityManifest(m Manifest) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disposed {
		return
	}
	s.oracle.setStatic(m)
}

// SetTileAvailabilityManifestFunc replaces the oracle with an async
// producer and starts loading it.
func (s *Source) SetTileAvailabilityManifestFunc(fn ManifestFunc) {
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return
	}
	s.oracle.setFunc(fn)
	s.mu.Unlock()
	s.loadManifest()
}

// RefreshManifest re-pulls a function-based manifest.
func (s *Source) RefreshManifest() {
	s.mu.Lock()
	if s.disposed || s.oracle.fn == nil {
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()
	s.loadManifest()
}

// RedrawTile schedules one tile for repaint.
func (s *Source) RedrawTile(key TileKey) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disposed {
		return
	}
	s.sched.enqueue(key)
}

// RedrawAllTiles schedules every visible tile for repaint.
func (s *Source) RedrawAllTiles() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disposed {
		return
	}
	s.sched.enqueueAll()
}

// IsFeatureSelected probes the selected set.
func (s *Source) IsFeatureSelected(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.disposed && s.registry.IsSelected(id)
}

// IsFeatureHovered probes the hovered set.
func (s *Source) IsFeatureHovered(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.disposed && s.registry.IsHovered(id)
}

// IsFeatureReplaced reports whether a replacement overlay exists for the
// feature.
func (s *Source) IsFeatureReplaced(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disposed {
		return false
	}
	_, ok := s.replacedIDs[id]
	return ok
}

// Stats is a debugging snapshot of engine population.
type Stats struct {
	VisibleTiles int
	DrawnTiles   int
	Layers       int
	Features     int
	Selected     int
	Hovered      int
	Replaced     int
	PendingTiles int
}

// Stats returns a snapshot of engine population.
func (s *Source) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disposed {
		return Stats{}
	}
	return s.statsLocked()
}

func (s *Source) statsLocked() Stats {
	return Stats{
		VisibleTiles: s.visibleTiles.Len(),
		DrawnTiles:   s.drawnTiles.Len(),
		Layers:       len(s.layers),
		Features:     s.registry.Len(),
		Selected:     len(s.registry.SelectedIDs()),
		Hovered:      len(s.registry.HoveredIDs()),
		Replaced:     len(s.replacedIDs),
		PendingTiles: s.pendingTiles,
	}
}

func (s *Source) logStatsLocked() {
	st := s.statsLocked()
	s.log.WithFields(logrus.Fields{
		"tiles":    st.VisibleTiles,
		"features": st.Features,
		"selected": st.Selected,
	}).Debug("tile parsed")
}

// Dispose tears the source down: timers stopped, pending replacement
// lookups cancelled, host listeners removed, overlays and caches cleared,
// features unregistered. Public reads afterwards return empty snapshots.
func (s *Source) Dispose() {
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return
	}
	s.disposed = true

	s.cancel()
	s.sched.stop()
	if s.hoverTimer != nil {
		s.hoverTimer.Stop()
		s.hoverTimer = nil
	}
	if s.reapplyTimer != nil {
		s.reapplyTimer.Stop()
		s.reapplyTimer = nil
	}

	for id, cancel := range s.replacements {
		cancel()
		delete(s.replacements, id)
	}
	s.replacedIDs = make(map[string]struct{})

	for _, ch := range s.loadWaiters {
		close(ch)
	}
	s.loadWaiters = nil

	s.visibleTiles.Clear()
	s.drawnTiles.Clear()
	s.layers = make(map[string]*Layer)
	s.layerOrder = nil
	s.registry.Reset()

	cancels := s.hostCancels
	s.hostCancels = nil
	host := s.opts.Host
	sink := s.opts.GeoJSONSink
	s.mu.Unlock()

	for _, cancel := range cancels {
		if cancel != nil {
			cancel()
		}
	}
	if sink != nil {
		sink.Clear()
	}
	if host != nil {
		host.RemoveOverlay(s)
	}
}

// enqueueFeatureTilesLocked schedules a repaint for every visible tile a
// listed feature has a fragment in.
func (s *Source) enqueueFeatureTilesLocked(ids []string) {
	for _, id := range ids {
		f := s.registry.Get(id)
		if f == nil {
			continue
		}
		for _, dataKey := range f.TileKeys() {
			s.visibleTiles.Each(func(_ string, tc *TileContext) {
				if tc.DataKey() == dataKey {
					s.sched.enqueue(tc.Key)
				}
			})
		}
	}
}

// runDeferred executes callbacks collected under the lock.
func runDeferred(fns []func()) {
	for _, fn := range fns {
		fn()
	}
}

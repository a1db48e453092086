package mvtoverlay

import (
	"context"
	"math"
	"time"

	"github.com/paulmach/orb/geojson"

	"github.com/geocanvas/mvtoverlay/internal/mercator"
	"github.com/geocanvas/mvtoverlay/vectortile"
)

// tileQuery is a pointer event translated into tile space.
type tileQuery struct {
	key       TileKey
	tilePoint Point
	pixel     Point
}

// translatePointerLocked maps a geographic pointer event to the tile grid at the
// current zoom. A missing host projection degrades the viewport pixel to
// the origin.
func (s *Source) translatePointerLocked(ev PointerEvent) tileQuery {
	world := mercator.LatLngToWorld(mercator.LatLng{Lat: ev.LatLng.Lat, Lng: ev.LatLng.Lng})
	scale := math.Exp2(float64(s.currentZoom))
	gx := world[0] * scale
	gy := world[1] * scale

	tx := int(math.Floor(gx / mercator.WorldSize))
	ty := int(math.Floor(gy / mercator.WorldSize))

	// Tile-local position, scaled to canvas pixels.
	px := (gx - float64(tx)*mercator.WorldSize) * float64(s.opts.TileSize) / mercator.WorldSize
	py := (gy - float64(ty)*mercator.WorldSize) * float64(s.opts.TileSize) / mercator.WorldSize

	q := tileQuery{
		key:       TileKey{Z: s.currentZoom, X: tx, Y: ty},
		tilePoint: Pt(px, py),
	}

	if host := s.opts.Host; host != nil {
		if pixel, ok := host.LatLngToContainerPoint(ev.LatLng); ok {
			q.pixel = pixel
		}
	}
	return q
}

// clickableLayersLocked returns the hit-test layer whitelist in draw
// order; nil configuration means all layers.
func (s *Source) clickableLayersLocked() []string {
	if s.opts.ClickableLayers != nil {
		return s.opts.ClickableLayers
	}
	return s.layerOrder
}

// Click routes a pointer click: hit test per clickable layer in reverse,
// apply the selection policy, and deliver callbacks.
func (s *Source) Click(ev PointerEvent) {
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return
	}

	q := s.translatePointerLocked(ev)
	tc, visible := s.visibleTiles.Get(q.key.String())

	var deferred []func()
	hitAny := false

	if visible {
		names := s.clickableLayersLocked()
		for i := len(names) - 1; i >= 0; i-- {
			l := s.layers[names[i]]
			if l == nil {
				continue
			}
			f := s.hitTestLayer(l, tc, q.tilePoint)
			if f == nil {
				continue
			}
			hitAny = true

			changed, fns := s.applyClickSelectionLocked(f)
			deferred = append(deferred, fns...)

			if cb := s.opts.OnClick; cb != nil {
				event := FeatureEvent{
					Feature:          f,
					LatLng:           ev.LatLng,
					Pixel:            q.pixel,
					TileContext:      tc,
					TilePoint:        q.tilePoint,
					SelectionChanged: changed,
					IsSelected:       s.registry.IsSelected(f.ID),
				}
				deferred = append(deferred, func() { cb(event) })
			}

			if s.opts.LimitToFirstVisibleLayer {
				break
			}
		}
	}

	if !hitAny {
		if cb := s.opts.OnClick; cb != nil {
			event := FeatureEvent{
				LatLng:    ev.LatLng,
				Pixel:     q.pixel,
				TilePoint: q.tilePoint,
			}
			if visible {
				event.TileContext = tc
			}
			deferred = append(deferred, func() { cb(event) })
		}
	}
	s.mu.Unlock()

	runDeferred(deferred)
}

// applyClickSelectionLocked applies the click selection policy to a hit
// feature and reports whether the selection set changed.
func (s *Source) applyClickSelectionLocked(f *Feature) (bool, []func()) {
	if !s.opts.selectOnClick() {
		return false, nil
	}

	var deferred []func()
	changed := false

	if !s.opts.MultipleSelection {
		for _, id := range s.registry.SelectedIDs() {
			if id != f.ID {
				deferred = append(deferred, s.deselectLocked(id)...)
				changed = true
			}
		}
	}

	switch {
	case s.opts.ToggleSelection && s.registry.IsSelected(f.ID):
		deferred = append(deferred, s.deselectLocked(f.ID)...)
		changed = true
	case !s.registry.IsSelected(f.ID):
		deferred = append(deferred, s.selectLocked(f.ID)...)
		changed = true
	}

	return changed, deferred
}

// selectLocked marks a feature selected, schedules repaints, starts the
// replacement lookup, and returns the deferred callbacks. Idempotent.
func (s *Source) selectLocked(id string) []func() {
	if s.registry.IsSelected(id) {
		return nil
	}
	s.registry.MarkSelected(id, true)
	s.enqueueFeatureTilesLocked([]string{id})

	f := s.registry.Get(id)
	if f != nil {
		s.startReplacementLocked(f)
	}

	if cb := s.opts.FeatureSelectionCallback; cb != nil {
		return []func(){func() { cb(id, f, true) }}
	}
	return nil
}

// deselectLocked clears a feature's selection, cancels its replacement
// lookup, removes its overlay, and returns the deferred callbacks.
func (s *Source) deselectLocked(id string) []func() {
	if !s.registry.IsSelected(id) {
		return nil
	}
	s.registry.MarkSelected(id, false)
	s.enqueueFeatureTilesLocked([]string{id})

	if cancel, ok := s.replacements[id]; ok {
		cancel()
		delete(s.replacements, id)
	}

	var deferred []func()
	if _, replaced := s.replacedIDs[id]; replaced {
		delete(s.replacedIDs, id)
		if sink := s.opts.GeoJSONSink; sink != nil {
			deferred = append(deferred, func() { sink.Remove(id) })
		}
	}

	f := s.registry.Get(id)
	if cb := s.opts.FeatureSelectionCallback; cb != nil {
		deferred = append(deferred, func() { cb(id, f, false) })
	}
	return deferred
}

// MouseMove routes a pointer move through the hover debounce. A newer
// move supersedes any pending one.
func (s *Source) MouseMove(ev PointerEvent) {
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return
	}

	s.hoverSeq++
	seq := s.hoverSeq

	if s.opts.HoverDelay <= 0 {
		deferred := s.processHoverLocked(ev)
		s.mu.Unlock()
		runDeferred(deferred)
		return
	}

	if s.hoverTimer != nil {
		s.hoverTimer.Stop()
	}
	s.hoverTimer = time.AfterFunc(s.opts.HoverDelay, func() {
		s.mu.Lock()
		if s.disposed || seq != s.hoverSeq {
			// Superseded by a later move.
			s.mu.Unlock()
			return
		}
		deferred := s.processHoverLocked(ev)
		s.mu.Unlock()
		runDeferred(deferred)
	})
	s.mu.Unlock()
}

// processHoverLocked runs the hover hit test and enforces "at most one
// hovered feature".
func (s *Source) processHoverLocked(ev PointerEvent) []func() {
	q := s.translatePointerLocked(ev)
	tc, visible := s.visibleTiles.Get(q.key.String())

	var hit *Feature
	if visible {
		names := s.clickableLayersLocked()
		for i := len(names) - 1; i >= 0 && hit == nil; i-- {
			if l := s.layers[names[i]]; l != nil {
				hit = s.hitTestLayer(l, tc, q.tilePoint)
			}
		}
	}

	prev := s.registry.HoveredIDs()
	prevID := ""
	if len(prev) > 0 {
		prevID = prev[0]
	}

	hitID := ""
	if hit != nil {
		hitID = hit.ID
	}

	if hitID == prevID {
		return nil
	}

	if prevID != "" {
		s.enqueueFeatureTilesLocked([]string{prevID})
		s.registry.MarkHovered(prevID, false)
	}
	if hit != nil {
		s.registry.MarkHovered(hitID, true)
		s.enqueueFeatureTilesLocked([]string{hitID})
	}

	if cb := s.opts.OnMouseHover; cb != nil {
		event := FeatureEvent{
			Feature:    hit,
			LatLng:     ev.LatLng,
			Pixel:      q.pixel,
			TilePoint:  q.tilePoint,
			IsSelected: hit != nil && s.registry.IsSelected(hitID),
		}
		if visible {
			event.TileContext = tc
		}
		return []func(){func() { cb(event) }}
	}
	return nil
}

// startReplacementLocked launches the asynchronous replacement lookup for
// a newly selected feature. Any prior in-flight lookup for the id is
// cancelled first.
func (s *Source) startReplacementLocked(f *Feature) {
	if s.opts.GeoJSONSink == nil {
		return
	}
	if s.opts.GetReplacementFeature == nil && f.Type != vectortile.GeomPolygon {
		// No callback and nothing the merger can synthesize.
		return
	}

	if cancel, ok := s.replacements[f.ID]; ok {
		cancel()
	}
	ctx, cancel := context.WithCancel(s.ctx)
	s.replacements[f.ID] = cancel

	go s.runReplacement(ctx, f)
}

// runReplacement resolves the replacement geometry and, if the feature is
// still selected on settlement, registers it on the secondary overlay. A
// cancelled lookup is discarded.
func (s *Source) runReplacement(ctx context.Context, f *Feature) {
	var replacement *geojson.Feature
	var err error
	if fn := s.opts.GetReplacementFeature; fn != nil {
		replacement, err = fn(ctx, f.ID, f)
	}

	s.mu.Lock()
	if s.disposed || ctx.Err() != nil || !s.registry.IsSelected(f.ID) {
		s.mu.Unlock()
		return
	}
	delete(s.replacements, f.ID)

	if err != nil {
		// The selection stands on the tile-only geometry; the merger is
		// attempted as a fallback.
		s.log.WithField("feature", f.ID).Warnf("replacement lookup failed: %v", err)
	}

	if replacement == nil {
		replacement = s.mergeFeaturePolygon(f)
	}

	if replacement == nil {
		s.mu.Unlock()
		return
	}

	s.replacedIDs[f.ID] = struct{}{}

	style := Style{}
	ok := false
	f.eachFragment(func(ft *featureTile) {
		if !ok {
			style = s.resolver.resolve(s.styles, ft.feature, true, false)
			ok = true
		}
	})
	if !ok {
		style = s.resolver.deriveSelected(f.Style, nil)
	}

	sink := s.opts.GeoJSONSink
	id := f.ID
	s.mu.Unlock()

	if sink != nil {
		sink.Add(id, replacement, style)
	}
}

// replacementClicked routes a click on replacement geometry through the
// same selection policy as tile features.
func (s *Source) replacementClicked(id string, ev PointerEvent) {
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return
	}

	f := s.registry.Get(id)
	var deferred []func()
	changed := false
	if f != nil {
		changed, deferred = s.applyClickSelectionLocked(f)
	}

	if cb := s.opts.OnClick; cb != nil {
		event := FeatureEvent{
			Feature:          f,
			LatLng:           ev.LatLng,
			SelectionChanged: changed,
			IsSelected:       f != nil && s.registry.IsSelected(id),
		}
		deferred = append(deferred, func() { cb(event) })
	}
	s.mu.Unlock()

	runDeferred(deferred)
}

// replacementHovered routes hover on replacement geometry to the hover
// callback.
func (s *Source) replacementHovered(id string, ev PointerEvent) {
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return
	}
	f := s.registry.Get(id)
	cb := s.opts.OnMouseHover
	selected := f != nil && s.registry.IsSelected(id)
	s.mu.Unlock()

	if cb != nil {
		cb(FeatureEvent{Feature: f, LatLng: ev.LatLng, IsSelected: selected})
	}
}

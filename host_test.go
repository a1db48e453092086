package mvtoverlay

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// fakeHost is a minimal slippy-map runtime for wiring tests.
type fakeHost struct {
	mu       sync.Mutex
	zoom     int
	overlays []Overlay

	zoomFns  []func(int)
	clickFns []func(PointerEvent)
	moveFns  []func(PointerEvent)

	cancelled int
}

func (h *fakeHost) Zoom() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.zoom
}

func (h *fakeHost) LatLngToContainerPoint(ll LatLng) (Point, bool) {
	return Pt(ll.Lng*10, ll.Lat*10), true
}

func (h *fakeHost) AddOverlay(o Overlay) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.overlays = append(h.overlays, o)
}

func (h *fakeHost) RemoveOverlay(o Overlay) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for i, existing := range h.overlays {
		if existing == o {
			h.overlays = append(h.overlays[:i], h.overlays[i+1:]...)
			return
		}
	}
}

func (h *fakeHost) subscribe(register func()) func() {
	register()
	return func() {
		h.mu.Lock()
		h.cancelled++
		h.mu.Unlock()
	}
}

func (h *fakeHost) OnZoom(fn func(int)) func() {
	return h.subscribe(func() { h.zoomFns = append(h.zoomFns, fn) })
}

func (h *fakeHost) OnClick(fn func(PointerEvent)) func() {
	return h.subscribe(func() { h.clickFns = append(h.clickFns, fn) })
}

func (h *fakeHost) OnMouseMove(fn func(PointerEvent)) func() {
	return h.subscribe(func() { h.moveFns = append(h.moveFns, fn) })
}

func (h *fakeHost) setZoom(z int) {
	h.mu.Lock()
	h.zoom = z
	fns := append([]func(int){}, h.zoomFns...)
	h.mu.Unlock()
	for _, fn := range fns {
		fn(z)
	}
}

func (h *fakeHost) click(ev PointerEvent) {
	h.mu.Lock()
	fns := append([]func(PointerEvent){}, h.clickFns...)
	h.mu.Unlock()
	for _, fn := range fns {
		fn(ev)
	}
}

func TestHost_WiringLifecycle(t *testing.T) {
	host := &fakeHost{zoom: 9}
	src, _ := newTestSource(func(o *Options) {
		o.Host = host
	})

	// Construction registers the overlay and adopts the host zoom.
	require.Len(t, host.overlays, 1)
	src.mu.Lock()
	require.Equal(t, 9, src.currentZoom)
	src.mu.Unlock()

	src.Dispose()
	require.Empty(t, host.overlays, "disposal must unregister the overlay")
	require.Equal(t, 3, host.cancelled, "disposal must cancel all host listeners")
}

func TestHost_ZoomEventInvalidates(t *testing.T) {
	host := &fakeHost{zoom: 9}
	src, _ := newTestSource(func(o *Options) {
		o.Host = host
	})
	defer src.Dispose()

	loadTile(src, TileKey{Z: 9, X: 260, Y: 170})
	src.SetSelectedFeatures([]string{"P"})
	require.Equal(t, 1, src.Stats().VisibleTiles)

	host.setZoom(10)

	require.Equal(t, 0, src.Stats().VisibleTiles, "zoom change resets visible tiles")
	require.Eventually(t, func() bool {
		return src.IsFeatureSelected("P")
	}, time.Second, 5*time.Millisecond, "selection survives the zoom change")
}

func TestHost_ClickEventCarriesPixel(t *testing.T) {
	var mu sync.Mutex
	var events []FeatureEvent

	host := &fakeHost{zoom: 9}
	src, _ := newTestSource(func(o *Options) {
		o.Host = host
		o.OnClick = func(ev FeatureEvent) {
			mu.Lock()
			events = append(events, ev)
			mu.Unlock()
		}
	})
	defer src.Dispose()

	key := TileKey{Z: 9, X: 260, Y: 170}
	loadTile(src, key)

	ev := tileEventAt(key, 64, 200)
	host.click(ev)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, events, 1)
	require.Equal(t, "P", events[0].Feature.ID)
	// The fake host projects lng*10/lat*10; the event must carry it.
	require.InDelta(t, ev.LatLng.Lng*10, events[0].Pixel.X, 1e-9)
	require.InDelta(t, ev.LatLng.Lat*10, events[0].Pixel.Y, 1e-9)
}

// eventSink is a recordingSink whose surface also emits pointer events.
type eventSink struct {
	*recordingSink
	clickFns []func(string, PointerEvent)
	hoverFns []func(string, PointerEvent)
}

func (es *eventSink) OnFeatureClick(fn func(string, PointerEvent)) func() {
	es.clickFns = append(es.clickFns, fn)
	return func() {}
}

func (es *eventSink) OnFeatureHover(fn func(string, PointerEvent)) func() {
	es.hoverFns = append(es.hoverFns, fn)
	return func() {}
}

func TestSinkEvents_RouteThroughCallbacks(t *testing.T) {
	var mu sync.Mutex
	var clicked []string

	sink := &eventSink{recordingSink: newRecordingSink()}
	src, _ := newTestSource(func(o *Options) {
		o.GeoJSONSink = sink
		o.ToggleSelection = true
		o.OnClick = func(ev FeatureEvent) {
			mu.Lock()
			if ev.Feature != nil {
				clicked = append(clicked, ev.Feature.ID)
			}
			mu.Unlock()
		}
	})
	defer src.Dispose()

	require.Len(t, sink.clickFns, 1, "sink click events must be subscribed")
	require.Len(t, sink.hoverFns, 1, "sink hover events must be subscribed")

	loadTile(src, TileKey{Z: 9, X: 260, Y: 170})
	src.SetSelectedFeatures([]string{"P"})

	// A click on the replacement surface toggles the tile feature off.
	sink.clickFns[0]("P", PointerEvent{})
	require.False(t, src.IsFeatureSelected("P"))

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []string{"P"}, clicked)
}

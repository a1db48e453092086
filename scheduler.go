package mvtoverlay

import (
	"time"
)

// frameQuantum is the coalescing window for repaints: roughly one frame.
const frameQuantum = 16 * time.Millisecond

// redrawScheduler coalesces style, selection, and hover changes into
// per-frame canvas repaints. Every enqueue resets a single-shot timer;
// when it fires, the accumulated tile set is repainted in one sweep.
//
// Enqueue methods require the source lock; the timer callback re-enters
// through the lock.
type redrawScheduler struct {
	src     *Source
	pending map[TileKey]struct{}
	all     bool
	timer   *time.Timer
	stopped bool
}

func newRedrawScheduler(src *Source) *redrawScheduler {
	return &redrawScheduler{
		src:     src,
		pending: make(map[TileKey]struct{}),
	}
}

// enqueue schedules one tile for repaint.
func (rs *redrawScheduler) enqueue(key TileKey) {
	if rs.stopped {
		return
	}
	rs.pending[key] = struct{}{}
	rs.arm()
}

// enqueueAll schedules every currently visible tile for repaint.
func (rs *redrawScheduler) enqueueAll() {
	if rs.stopped {
		return
	}
	rs.all = true
	rs.arm()
}

// arm starts or resets the debounce timer.
func (rs *redrawScheduler) arm() {
	if rs.timer != nil {
		rs.timer.Stop()
	}
	rs.timer = time.AfterFunc(frameQuantum, rs.fire)
}

// fire drains the pending set and repaints. Runs on the timer goroutine.
func (rs *redrawScheduler) fire() {
	rs.src.mu.Lock()
	if rs.stopped {
		rs.src.mu.Unlock()
		return
	}

	var keys []TileKey
	if rs.all {
		rs.src.visibleTiles.Each(func(k string, tc *TileContext) {
			keys = append(keys, tc.Key)
		})
	} else {
		for k := range rs.pending {
			keys = append(keys, k)
		}
	}
	rs.pending = make(map[TileKey]struct{})
	rs.all = false

	for _, key := range keys {
		rs.src.repaintTileLocked(key)
	}
	rs.src.mu.Unlock()
}

// stop cancels any armed timer and rejects further enqueues.
func (rs *redrawScheduler) stop() {
	rs.stopped = true
	if rs.timer != nil {
		rs.timer.Stop()
		rs.timer = nil
	}
	rs.pending = make(map[TileKey]struct{})
	rs.all = false
}

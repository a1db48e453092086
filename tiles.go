package mvtoverlay

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/geocanvas/mvtoverlay/vectortile"
)

// TileKey identifies a tile in the slippy-map grid.
type TileKey struct {
	Z, X, Y int
}

// String returns the canonical "z:x:y" form.
func (k TileKey) String() string {
	return strconv.Itoa(k.Z) + ":" + strconv.Itoa(k.X) + ":" + strconv.Itoa(k.Y)
}

// ParseTileKey parses the canonical "z:x:y" form.
func ParseTileKey(s string) (TileKey, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return TileKey{}, fmt.Errorf("mvtoverlay: malformed tile key %q", s)
	}
	var nums [3]int
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return TileKey{}, fmt.Errorf("mvtoverlay: malformed tile key %q: %w", s, err)
		}
		nums[i] = n
	}
	return TileKey{Z: nums[0], X: nums[1], Y: nums[2]}, nil
}

// parent returns the ancestor key delta zoom levels up.
func (k TileKey) parent(delta int) TileKey {
	return TileKey{Z: k.Z - delta, X: k.X >> uint(delta), Y: k.Y >> uint(delta)}
}

// tileState tracks where a tile is in its lifecycle.
type tileState int

const (
	// tileRequested: canvas handed out, fetch not yet resolved.
	tileRequested tileState = iota
	// tileFetching: fetch dispatched.
	tileFetching
	// tileDebugOnly: rejected by the availability oracle or failed to
	// load; drawn with debug annotation only.
	tileDebugOnly
	// tileDecoded: vector tile decoded, not yet rendered.
	tileDecoded
	// tileRendered: features drawn to the canvas.
	tileRendered
)

// TileContext is the per-tile drawing state: the canvas handed to the host
// plus the decoded tile once it loads.
type TileContext struct {
	// Key is the requested grid cell.
	Key TileKey
	// Canvas is the surface the host composites. Created synchronously
	// by GetTile; drawn into asynchronously.
	Canvas *Canvas
	// Zoom is the map zoom at creation time. Responses arriving after
	// the map zoom moved away are dropped.
	Zoom int
	// TileSize is the canvas pixel size.
	TileSize int

	// ParentKey is set when the tile is overzoomed: content comes from
	// this ancestor tile.
	ParentKey *TileKey
	// ZoomDelta is Key.Z minus ParentKey.Z when overzoomed, else 0.
	ZoomDelta int

	// Tile is the decoded vector tile, once loaded.
	Tile *vectortile.Tile

	state tileState
	// annotated is set once debug annotations have been drawn; they are
	// drawn on first render only, never on feature-level redraws.
	annotated bool
}

// Loaded reports whether the tile has settled (decoded, rendered, or
// terminally debug-only).
func (tc *TileContext) Loaded() bool {
	switch tc.state {
	case tileDecoded, tileRendered, tileDebugOnly:
		return true
	}
	return false
}

// DataKey returns the key the tile's content is actually sourced from: the
// parent when overzoomed, otherwise the tile's own key.
func (tc *TileContext) DataKey() TileKey {
	if tc.ParentKey != nil {
		return *tc.ParentKey
	}
	return tc.Key
}

// overzoomOffsets returns the child tile's position within its ancestor,
// in tile units.
func (tc *TileContext) overzoomOffsets() (xOff, yOff int) {
	if tc.ZoomDelta <= 0 {
		return 0, 0
	}
	span := 1 << uint(tc.ZoomDelta)
	return tc.Key.X % span, tc.Key.Y % span
}

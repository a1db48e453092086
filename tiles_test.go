package mvtoverlay

import "testing"

func TestTileKey_StringParse(t *testing.T) {
	tests := []TileKey{
		{Z: 0, X: 0, Y: 0},
		{Z: 12, X: 2093, Y: 1405},
		{Z: 9, X: 260, Y: 170},
	}

	for _, key := range tests {
		parsed, err := ParseTileKey(key.String())
		if err != nil {
			t.Fatalf("ParseTileKey(%q): %v", key.String(), err)
		}
		if parsed != key {
			t.Errorf("round trip %v = %v", key, parsed)
		}
	}

	if (TileKey{Z: 9, X: 260, Y: 170}).String() != "9:260:170" {
		t.Error("canonical form must be z:x:y")
	}

	for _, bad := range []string{"", "1:2", "a:b:c", "1:2:3:4"} {
		if _, err := ParseTileKey(bad); err == nil {
			t.Errorf("ParseTileKey(%q) should fail", bad)
		}
	}
}

func TestTileKey_Parent(t *testing.T) {
	key := TileKey{Z: 12, X: 5, Y: 3}
	if got := key.parent(2); got != (TileKey{Z: 10, X: 1, Y: 0}) {
		t.Errorf("parent(2) = %v", got)
	}
	if got := key.parent(0); got != key {
		t.Errorf("parent(0) = %v", got)
	}
}

func TestTileContext_DataKey(t *testing.T) {
	tc := &TileContext{Key: TileKey{Z: 12, X: 5, Y: 3}}
	if tc.DataKey() != tc.Key {
		t.Error("without overzoom, data key is the tile's own key")
	}

	parent := TileKey{Z: 10, X: 1, Y: 0}
	tc.ParentKey = &parent
	tc.ZoomDelta = 2
	if tc.DataKey() != parent {
		t.Error("overzoomed data key is the parent")
	}
}

func TestNormalizeTileKey(t *testing.T) {
	tests := []struct {
		key          TileKey
		wantX, wantY int
	}{
		{TileKey{Z: 2, X: 5, Y: 3}, 1, 3},
		{TileKey{Z: 3, X: -1, Y: 9}, 7, 1},
		{TileKey{Z: 0, X: 0, Y: 0}, 0, 0},
	}

	for _, tt := range tests {
		x, y := normalizeTileKey(tt.key)
		if x != tt.wantX || y != tt.wantY {
			t.Errorf("normalizeTileKey(%v) = (%d, %d), want (%d, %d)",
				tt.key, x, y, tt.wantX, tt.wantY)
		}
	}
}

func TestTileContext_Loaded(t *testing.T) {
	tc := &TileContext{state: tileRequested}
	if tc.Loaded() {
		t.Error("requested tile is not loaded")
	}
	tc.state = tileFetching
	if tc.Loaded() {
		t.Error("fetching tile is not loaded")
	}
	for _, st := range []tileState{tileDecoded, tileRendered, tileDebugOnly} {
		tc.state = st
		if !tc.Loaded() {
			t.Errorf("state %v should count as loaded", st)
		}
	}
}

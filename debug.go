package mvtoverlay

// Debug annotation: tile border, corner markers, and the "z:x:y" label.
// Drawn on the first rendering of a tile only, never on feature-level
// redraws. Label glyphs come from a tiny built-in 5x7 bitmap so the debug
// surface needs no text stack.

var debugStroke = Color{R: 255, G: 0, B: 0, A: 0.6, HasAlpha: true}
var debugLabel = Color{R: 0, G: 0, B: 0}

const (
	debugGlyphW   = 5
	debugGlyphH   = 7
	debugGlyphGap = 1
	debugScale    = 2
	cornerSize    = 10
)

// digitRows holds 5x7 bitmaps for '0'-'9' and ':' as row masks, bit 4 is
// the leftmost column.
var digitRows = map[byte][debugGlyphH]uint8{
	'0': {0b01110, 0b10001, 0b10011, 0b10101, 0b11001, 0b10001, 0b01110},
	'1': {0b00100, 0b01100, 0b00100, 0b00100, 0b00100, 0b00100, 0b01110},
	'2': {0b01110, 0b10001, 0b00001, 0b00010, 0b00100, 0b01000, 0b11111},
	'3': {0b11111, 0b00010, 0b00100, 0b00010, 0b00001, 0b10001, 0b01110},
	'4': {0b00010, 0b00110, 0b01010, 0b10010, 0b11111, 0b00010, 0b00010},
	'5': {0b11111, 0b10000, 0b11110, 0b00001, 0b00001, 0b10001, 0b01110},
	'6': {0b00110, 0b01000, 0b10000, 0b11110, 0b10001, 0b10001, 0b01110},
	'7': {0b11111, 0b00001, 0b00010, 0b00100, 0b01000, 0b01000, 0b01000},
	'8': {0b01110, 0b10001, 0b10001, 0b01110, 0b10001, 0b10001, 0b01110},
	'9': {0b01110, 0b10001, 0b10001, 0b01111, 0b00001, 0b00010, 0b01100},
	':': {0b00000, 0b00100, 0b00100, 0b00000, 0b00100, 0b00100, 0b00000},
}

// drawDebugAnnotation paints the border, corner markers, and coordinate
// label onto a tile canvas.
func drawDebugAnnotation(tc *TileContext) {
	c := tc.Canvas
	size := float64(tc.TileSize)

	// Border.
	c.StrokeLine(0, 0, size, 0, debugStroke, 1)
	c.StrokeLine(size, 0, size, size, debugStroke, 1)
	c.StrokeLine(size, size, 0, size, debugStroke, 1)
	c.StrokeLine(0, size, 0, 0, debugStroke, 1)

	// Corner markers.
	c.StrokeLine(0, cornerSize, cornerSize, 0, debugStroke, 1)
	c.StrokeLine(size-cornerSize, 0, size, cornerSize, debugStroke, 1)
	c.StrokeLine(size, size-cornerSize, size-cornerSize, size, debugStroke, 1)
	c.StrokeLine(cornerSize, size, 0, size-cornerSize, debugStroke, 1)

	drawDebugLabel(c, tc.Key.String(), 16, 16)
	if tc.ParentKey != nil {
		drawDebugLabel(c, "^"+tc.ParentKey.String(), 16, 16+(debugGlyphH+2)*debugScale)
	}
}

// drawDebugLabel stamps a coordinate string at (x, y). Characters outside
// the glyph table render as a hollow box.
func drawDebugLabel(c *Canvas, label string, x, y float64) {
	advance := float64((debugGlyphW + debugGlyphGap) * debugScale)
	for i := 0; i < len(label); i++ {
		drawDebugGlyph(c, label[i], x+float64(i)*advance, y)
	}
}

func drawDebugGlyph(c *Canvas, ch byte, x, y float64) {
	rows, ok := digitRows[ch]
	if !ok {
		c.FillRect(x, y, debugGlyphW*debugScale, 1, debugLabel)
		c.FillRect(x, y+debugGlyphH*debugScale-1, debugGlyphW*debugScale, 1, debugLabel)
		c.FillRect(x, y, 1, debugGlyphH*debugScale, debugLabel)
		c.FillRect(x+debugGlyphW*debugScale-1, y, 1, debugGlyphH*debugScale, debugLabel)
		return
	}
	for row := 0; row < debugGlyphH; row++ {
		mask := rows[row]
		for col := 0; col < debugGlyphW; col++ {
			if mask&(1<<uint(debugGlyphW-1-col)) != 0 {
				c.FillRect(
					x+float64(col*debugScale),
					y+float64(row*debugScale),
					debugScale, debugScale, debugLabel)
			}
		}
	}
}

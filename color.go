package mvtoverlay

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/geocanvas/mvtoverlay/internal/cache"
)

// Color is a parsed color. R, G, B are 8-bit channels; A is in [0, 1].
type Color struct {
	R, G, B uint8
	A       float64
	// HasAlpha reports whether the source string carried an explicit
	// alpha channel.
	HasAlpha bool
}

// RGBA returns the color as an rgba() CSS string.
func (c Color) RGBA() string {
	a := c.A
	if !c.HasAlpha {
		a = 1
	}
	return fmt.Sprintf("rgba(%d, %d, %d, %s)", c.R, c.G, c.B, formatAlpha(a))
}

func formatAlpha(a float64) string {
	return strconv.FormatFloat(a, 'g', -1, 64)
}

// colorMemoLimit bounds the parse memo; on overflow the memo trims to 70%.
const colorMemoLimit = 500

// namedColors is the small named-color table the parser recognizes.
var namedColors = map[string]Color{
	"black":   {R: 0, G: 0, B: 0},
	"white":   {R: 255, G: 255, B: 255},
	"red":     {R: 255, G: 0, B: 0},
	"green":   {R: 0, G: 128, B: 0},
	"blue":    {R: 0, G: 0, B: 255},
	"yellow":  {R: 255, G: 255, B: 0},
	"cyan":    {R: 0, G: 255, B: 255},
	"magenta": {R: 255, G: 0, B: 255},
	"orange":  {R: 255, G: 165, B: 0},
	"purple":  {R: 128, G: 0, B: 128},
	"gray":    {R: 128, G: 128, B: 128},
	"grey":    {R: 128, G: 128, B: 128},
}

// ColorParser parses and normalizes CSS-style color strings, memoizing
// results. Recognized forms: #rgb, #rrggbb, rgb(...), rgba(...),
// "transparent", and a small named-color table.
//
// ColorParser is not thread-safe; the source serializes access.
type ColorParser struct {
	memo *cache.LRU[string, *Color]
}

// NewColorParser creates a parser with an empty memo.
func NewColorParser() *ColorParser {
	return &ColorParser{memo: cache.NewLRU[string, *Color](0)}
}

// Parse returns the parsed color, or ok=false for unrecognized input.
// Both hits and misses are memoized.
func (cp *ColorParser) Parse(s string) (Color, bool) {
	if cached, ok := cp.memo.Get(s); ok {
		if cached == nil {
			return Color{}, false
		}
		return *cached, true
	}

	c, ok := parseColor(s)
	if cp.memo.Len() >= colorMemoLimit {
		cp.memo.TrimTo(colorMemoLimit * 7 / 10)
	}
	if ok {
		stored := c
		cp.memo.Set(s, &stored)
	} else {
		cp.memo.Set(s, nil)
	}
	return c, ok
}

// HasAlpha reports whether the string parses to a color with an explicit
// alpha channel.
func (cp *ColorParser) HasAlpha(s string) bool {
	c, ok := cp.Parse(s)
	return ok && c.HasAlpha
}

// WithOpacity re-emits the color as rgba() with the given alpha.
// Unparseable input is returned unchanged.
func (cp *ColorParser) WithOpacity(s string, alpha float64) string {
	c, ok := cp.Parse(s)
	if !ok {
		return s
	}
	if alpha < 0 {
		alpha = 0
	} else if alpha > 1 {
		alpha = 1
	}
	return fmt.Sprintf("rgba(%d, %d, %d, %s)", c.R, c.G, c.B, formatAlpha(alpha))
}

// MemoLen returns the number of memoized entries.
func (cp *ColorParser) MemoLen() int {
	return cp.memo.Len()
}

func parseColor(s string) (Color, bool) {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" {
		return Color{}, false
	}

	if s == "transparent" {
		return Color{A: 0, HasAlpha: true}, true
	}
	if c, ok := namedColors[s]; ok {
		return c, true
	}
	if s[0] == '#' {
		return parseHexColor(s[1:])
	}
	if strings.HasPrefix(s, "rgba(") && strings.HasSuffix(s, ")") {
		return parseChannels(s[5:len(s)-1], true)
	}
	if strings.HasPrefix(s, "rgb(") && strings.HasSuffix(s, ")") {
		return parseChannels(s[4:len(s)-1], false)
	}
	return Color{}, false
}

func parseHexColor(hex string) (Color, bool) {
	switch len(hex) {
	case 3:
		r, ok1 := hexNibble(hex[0])
		g, ok2 := hexNibble(hex[1])
		b, ok3 := hexNibble(hex[2])
		if !ok1 || !ok2 || !ok3 {
			return Color{}, false
		}
		return Color{R: r * 17, G: g * 17, B: b * 17}, true
	case 6:
		r, ok1 := hexByte(hex[0:2])
		g, ok2 := hexByte(hex[2:4])
		b, ok3 := hexByte(hex[4:6])
		if !ok1 || !ok2 || !ok3 {
			return Color{}, false
		}
		return Color{R: r, G: g, B: b}, true
	}
	return Color{}, false
}

func hexNibble(c byte) (uint8, bool) {
	switch {
	case '0' <= c && c <= '9':
		return c - '0', true
	case 'a' <= c && c <= 'f':
		return c - 'a' + 10, true
	}
	return 0, false
}

func hexByte(s string) (uint8, bool) {
	hi, ok1 := hexNibble(s[0])
	lo, ok2 := hexNibble(s[1])
	if !ok1 || !ok2 {
		return 0, false
	}
	return hi<<4 | lo, true
}

func parseChannels(body string, withAlpha bool) (Color, bool) {
	parts := strings.Split(body, ",")
	want := 3
	if withAlpha {
		want = 4
	}
	if len(parts) != want {
		return Color{}, false
	}

	var ch [3]uint8
	for i := 0; i < 3; i++ {
		v, err := strconv.Atoi(strings.TrimSpace(parts[i]))
		if err != nil || v < 0 || v > 255 {
			return Color{}, false
		}
		ch[i] = uint8(v)
	}

	c := Color{R: ch[0], G: ch[1], B: ch[2]}
	if withAlpha {
		a, err := strconv.ParseFloat(strings.TrimSpace(parts[3]), 64)
		if err != nil || a < 0 || a > 1 {
			return Color{}, false
		}
		c.A = a
		c.HasAlpha = true
	}
	return c, true
}

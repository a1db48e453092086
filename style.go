package mvtoverlay

import (
	"github.com/geocanvas/mvtoverlay/vectortile"
)

// Style is a concrete draw style. Zero values mean "unset": unset fields
// fall back to geometry defaults at draw time and are eligible for
// selected/hover derivation.
type Style struct {
	// FillStyle is the fill color string ("" = unset).
	FillStyle string
	// StrokeStyle is the stroke color string ("" = unset).
	StrokeStyle string
	// LineWidth is the stroke width in pixels (0 = unset).
	LineWidth float64
	// FillOpacity overrides the fill alpha when HasFillOpacity is true.
	FillOpacity    float64
	HasFillOpacity bool
	// Radius is the point radius in pixels (0 = unset; draws use
	// DefaultPointRadius).
	Radius float64

	// Selected, when set on a base style, overrides the composed style
	// while the feature is selected.
	Selected *Style
	// Hover, when set on a base style, overrides the composed style
	// while the feature is hovered.
	Hover *Style
}

// WithFillOpacity returns a copy with an explicit fill opacity.
func (s Style) WithFillOpacity(a float64) Style {
	s.FillOpacity = a
	s.HasFillOpacity = true
	return s
}

// merge overlays over onto s: set fields of over win.
func (s Style) merge(over Style) Style {
	if over.FillStyle != "" {
		s.FillStyle = over.FillStyle
	}
	if over.StrokeStyle != "" {
		s.StrokeStyle = over.StrokeStyle
	}
	if over.LineWidth != 0 {
		s.LineWidth = over.LineWidth
	}
	if over.HasFillOpacity {
		s.FillOpacity = over.FillOpacity
		s.HasFillOpacity = true
	}
	if over.Radius != 0 {
		s.Radius = over.Radius
	}
	return s
}

// stripStates clears the nested state override blocks.
func (s Style) stripStates() Style {
	s.Selected = nil
	s.Hover = nil
	return s
}

// StyleFunc computes a style for a decoded feature.
type StyleFunc func(*vectortile.Feature) Style

// StyleSource is a tagged variant: a static style or a per-feature style
// function.
type StyleSource struct {
	static *Style
	fn     StyleFunc
}

// StaticStyle wraps a concrete style.
func StaticStyle(s Style) StyleSource {
	return StyleSource{static: &s}
}

// DynamicStyle wraps a per-feature style function.
func DynamicStyle(fn StyleFunc) StyleSource {
	return StyleSource{fn: fn}
}

// IsZero reports whether no style was configured.
func (ss StyleSource) IsZero() bool {
	return ss.static == nil && ss.fn == nil
}

// base computes the base style for a feature.
func (ss StyleSource) base(f *vectortile.Feature) Style {
	switch {
	case ss.fn != nil:
		return ss.fn(f)
	case ss.static != nil:
		return *ss.static
	default:
		return Style{}
	}
}

// Built-in accent styling applied to selected features that carry no
// explicit Selected override block.
const (
	// SelectedAccent is the accent color for derived selected styles.
	SelectedAccent = "rgba(255, 255, 0, 1)"
	// SelectedAccentFill is the translucent accent fill for selected
	// polygons.
	SelectedAccentFill = "rgba(255, 255, 0, 0.4)"
	// DefaultPointRadius is the hit and draw radius for point features
	// without an explicit radius.
	DefaultPointRadius = 3
	// selectedRadiusBoost widens selected points.
	selectedRadiusBoost = 2
	// selectedMinLineWidth is the floor for selected polygon outlines.
	selectedMinLineWidth = 3
	// hoverOpacityBoost is the fill-opacity nudge for hovered features
	// without an explicit Hover block.
	hoverOpacityBoost = 0.1
)

// styleResolver composes base, per-state override, and derived accent
// styles into the effective draw style.
type styleResolver struct {
	colors *ColorParser
}

// resolve computes the effective draw style for a feature.
func (r *styleResolver) resolve(src StyleSource, f *vectortile.Feature, selected, hovered bool) Style {
	base := src.base(f)
	out := base.stripStates()

	if selected {
		if base.Selected != nil {
			return out.merge(base.Selected.stripStates())
		}
		return r.deriveSelected(out, f)
	}

	if hovered {
		if base.Hover != nil {
			return out.merge(base.Hover.stripStates())
		}
		return r.deriveHover(out)
	}

	return out
}

// deriveSelected fills accent colors into color properties the base left
// unset. Sizes are adjusted whether or not the base set them: point radius
// is widened, line width doubled, and polygon outline width floored.
func (r *styleResolver) deriveSelected(s Style, f *vectortile.Feature) Style {
	var geomType vectortile.GeomType
	if f != nil {
		geomType = f.Type
	}

	switch geomType {
	case vectortile.GeomPoint:
		if s.FillStyle == "" {
			s.FillStyle = SelectedAccent
		}
		base := s.Radius
		if base == 0 {
			base = DefaultPointRadius
		}
		s.Radius = base + selectedRadiusBoost
	case vectortile.GeomLineString:
		if s.StrokeStyle == "" {
			s.StrokeStyle = SelectedAccent
		}
		base := s.LineWidth
		if base == 0 {
			base = 1
		}
		s.LineWidth = base * 2
	case vectortile.GeomPolygon:
		if s.FillStyle == "" {
			s.FillStyle = SelectedAccentFill
		}
		if s.StrokeStyle == "" {
			s.StrokeStyle = SelectedAccent
		}
		if s.LineWidth < selectedMinLineWidth {
			s.LineWidth = selectedMinLineWidth
		}
	}
	return s
}

// deriveHover nudges the fill opacity upward.
func (r *styleResolver) deriveHover(s Style) Style {
	if s.HasFillOpacity {
		s.FillOpacity = clampUnit(s.FillOpacity + hoverOpacityBoost)
		return s
	}
	if s.FillStyle != "" {
		if c, ok := r.colors.Parse(s.FillStyle); ok {
			alpha := 1.0
			if c.HasAlpha {
				alpha = c.A
			}
			s.FillStyle = r.colors.WithOpacity(s.FillStyle, clampUnit(alpha+hoverOpacityBoost))
		}
	}
	return s
}

func clampUnit(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// fillColor resolves the effective fill color of a style, applying
// FillOpacity when set.
func (r *styleResolver) fillColor(s Style) (Color, bool) {
	if s.FillStyle == "" {
		return Color{}, false
	}
	c, ok := r.colors.Parse(s.FillStyle)
	if !ok {
		return Color{}, false
	}
	if s.HasFillOpacity {
		c.A = clampUnit(s.FillOpacity)
		c.HasAlpha = true
	}
	return c, true
}

// strokeColor resolves the effective stroke color of a style.
func (r *styleResolver) strokeColor(s Style) (Color, bool) {
	if s.StrokeStyle == "" {
		return Color{}, false
	}
	return r.colors.Parse(s.StrokeStyle)
}

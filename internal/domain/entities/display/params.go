// Package display defines the core display-configuration domain entities.
package display

import (
	"net/url"
	"strconv"
	"strings"
)

// ShowMode is the image sizing strategy.
type ShowMode string

const (
	ShowFit     ShowMode = "fit"     // aspect-preserving letterbox inside the container
	ShowFill    ShowMode = "fill"    // aspect-preserving crop covering the container
	ShowActual  ShowMode = "actual"  // intrinsic pixel dimensions, no scaling
	ShowStretch ShowMode = "stretch" // 100% x 100%, aspect ratio not preserved
)

// Position is one of nine anchor points on a 3x3 grid.
type Position string

const (
	TopLeft      Position = "top-left"
	TopCenter    Position = "top-center"
	TopRight     Position = "top-right"
	MiddleLeft   Position = "middle-left"
	Center       Position = "center"
	MiddleRight  Position = "middle-right"
	BottomLeft   Position = "bottom-left"
	BottomCenter Position = "bottom-center"
	BottomRight  Position = "bottom-right"
)

// TransitionMode selects how successive images are swapped.
type TransitionMode string

const (
	TransitionCut      TransitionMode = "cut"
	TransitionFadeFast TransitionMode = "fade-fast"
	TransitionFadeSlow TransitionMode = "fade-slow"
)

// Params is the full configuration for how an image and caption are shown.
// A Params value is an immutable snapshot: it is decoded wholesale and
// replaced wholesale, never field-mutated after construction.
type Params struct {
	Output           string         `json:"output"`
	ShowMode         ShowMode       `json:"showMode"`
	Position         Position       `json:"position"`
	RefreshInterval  int            `json:"refreshInterval"`
	BackgroundColor  string         `json:"backgroundColor"`
	DebugMode        bool           `json:"debugMode"`
	Data             string         `json:"data,omitempty"`
	Caption          string         `json:"caption"`
	CaptionPosition  Position       `json:"captionPosition"`
	CaptionSize      string         `json:"captionSize"`
	CaptionColor     string         `json:"captionColor"`
	CaptionFont      string         `json:"captionFont"`
	CaptionBgColor   string         `json:"captionBgColor"`
	CaptionBgOpacity float64        `json:"captionBgOpacity"`
	Transition       TransitionMode `json:"transition"`
}

// DefaultParams returns the baseline configuration used when a query string
// omits a key.
func DefaultParams() Params {
	return Params{
		ShowMode:         ShowFit,
		Position:         Center,
		RefreshInterval:  5,
		BackgroundColor:  "#000000",
		CaptionPosition:  BottomCenter,
		CaptionSize:      "16px",
		CaptionColor:     "#ffffff",
		CaptionFont:      "Arial",
		CaptionBgColor:   "#000000",
		CaptionBgOpacity: 0.7,
		Transition:       TransitionCut,
	}
}

// ParseParams decodes a Params snapshot from query-string values. Unknown or
// malformed values fall back to defaults; color fields are normalized to
// canonical #rrggbb and opacity is clamped to [0,1].
func ParseParams(values url.Values) Params {
	p := DefaultParams()

	if v := values.Get("output"); v != "" {
		p.Output = v
	}
	p.ShowMode = ParseShowMode(values.Get("show"), p.ShowMode)
	p.Position = ParsePosition(values.Get("position"), p.Position)
	if v := values.Get("refreshInterval"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			p.RefreshInterval = n
		}
	}
	if v := values.Get("background"); v != "" {
		p.BackgroundColor = NormalizeColor(v, p.BackgroundColor)
	}
	if v := values.Get("debug"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			p.DebugMode = b
		}
	}
	p.Data = values.Get("data")
	p.Caption = values.Get("caption")
	p.CaptionPosition = ParsePosition(values.Get("caption-position"), p.CaptionPosition)
	if v := values.Get("caption-size"); v != "" {
		p.CaptionSize = v
	}
	if v := values.Get("caption-color"); v != "" {
		p.CaptionColor = NormalizeColor(v, p.CaptionColor)
	}
	if v := values.Get("caption-font"); v != "" {
		p.CaptionFont = v
	}
	if v := values.Get("caption-bg-color"); v != "" {
		p.CaptionBgColor = NormalizeColor(v, p.CaptionBgColor)
	}
	if v := values.Get("caption-bg-opacity"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			p.CaptionBgOpacity = f
		}
	}
	p.Transition = ParseTransition(values.Get("transition"), p.Transition)

	p.CaptionBgOpacity = clamp01(p.CaptionBgOpacity)
	return p
}

// Normalize returns a copy of p with color fields in canonical form and
// opacity clamped. Used when params arrive as JSON instead of a query string.
func (p Params) Normalize() Params {
	d := DefaultParams()
	if p.ShowMode == "" {
		p.ShowMode = d.ShowMode
	}
	if p.Position == "" {
		p.Position = d.Position
	}
	if p.CaptionPosition == "" {
		p.CaptionPosition = d.CaptionPosition
	}
	if p.Transition == "" {
		p.Transition = d.Transition
	}
	if p.RefreshInterval <= 0 {
		p.RefreshInterval = d.RefreshInterval
	}
	if p.CaptionSize == "" {
		p.CaptionSize = d.CaptionSize
	}
	if p.CaptionFont == "" {
		p.CaptionFont = d.CaptionFont
	}
	p.BackgroundColor = NormalizeColor(p.BackgroundColor, d.BackgroundColor)
	p.CaptionColor = NormalizeColor(p.CaptionColor, d.CaptionColor)
	p.CaptionBgColor = NormalizeColor(p.CaptionBgColor, d.CaptionBgColor)
	p.CaptionBgOpacity = clamp01(p.CaptionBgOpacity)
	return p
}

// CaptionUsesMetadata reports whether the caption template references
// per-image metadata and therefore requires an extractor fetch.
func (p Params) CaptionUsesMetadata() bool {
	return strings.Contains(p.Caption, "{")
}

// ParseShowMode maps a raw value onto a ShowMode, falling back when unknown.
func ParseShowMode(raw string, fallback ShowMode) ShowMode {
	switch ShowMode(strings.ToLower(strings.TrimSpace(raw))) {
	case ShowFit, ShowFill, ShowActual, ShowStretch:
		return ShowMode(strings.ToLower(strings.TrimSpace(raw)))
	}
	return fallback
}

// ParseTransition maps a raw value onto a TransitionMode, falling back when
// unknown.
func ParseTransition(raw string, fallback TransitionMode) TransitionMode {
	switch TransitionMode(strings.ToLower(strings.TrimSpace(raw))) {
	case TransitionCut, TransitionFadeFast, TransitionFadeSlow:
		return TransitionMode(strings.ToLower(strings.TrimSpace(raw)))
	}
	return fallback
}

// ParsePosition maps a raw value onto one of the nine grid anchors. A few
// shorthand spellings ("top", "left", "bottom", "right") are accepted.
func ParsePosition(raw string, fallback Position) Position {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "top-left", "topleft":
		return TopLeft
	case "top", "top-center", "topcenter":
		return TopCenter
	case "top-right", "topright":
		return TopRight
	case "left", "middle-left", "center-left":
		return MiddleLeft
	case "center", "middle", "middle-center":
		return Center
	case "right", "middle-right", "center-right":
		return MiddleRight
	case "bottom-left", "bottomleft":
		return BottomLeft
	case "bottom", "bottom-center", "bottomcenter":
		return BottomCenter
	case "bottom-right", "bottomright":
		return BottomRight
	}
	return fallback
}

// NormalizeColor canonicalizes a hex color to lowercase #rrggbb. Shorthand
// #rgb is expanded and a missing hash prefix is added. Values that are not
// 3- or 6-digit hex fall back to the provided default.
func NormalizeColor(raw, fallback string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = strings.TrimPrefix(s, "#")
	if !isHex(s) {
		return fallback
	}
	switch len(s) {
	case 3:
		return "#" + string([]byte{s[0], s[0], s[1], s[1], s[2], s[2]})
	case 6:
		return "#" + s
	}
	return fallback
}

func isHex(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}

func clamp01(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}

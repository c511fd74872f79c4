package layout

import (
	"regexp"
	"strconv"
)

// Font scaling is relative to a 1920px-wide reference container, with the
// result clamped so captions stay legible on small surfaces and sane on
// video walls.
const (
	ReferenceWidth = 1920.0
	MinFontPx      = 10.0
	MaxFontPx      = 72.0
)

var sizePattern = regexp.MustCompile(`^(\d+(?:\.\d+)?)([a-z%]+)$`)

// ComputeScaledFontSize scales a base size like "16px" by
// containerWidth/1920 and clamps the magnitude to [10,72], keeping the unit.
// Input that does not parse as magnitude+unit is returned unchanged.
func ComputeScaledFontSize(base string, containerWidth float64) string {
	m := sizePattern.FindStringSubmatch(base)
	if m == nil {
		return base
	}
	magnitude, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return base
	}
	scaled := magnitude * (containerWidth / ReferenceWidth)
	if scaled < MinFontPx {
		scaled = MinFontPx
	}
	if scaled > MaxFontPx {
		scaled = MaxFontPx
	}
	return strconv.FormatFloat(scaled, 'f', -1, 64) + m[2]
}

package display

// Size is a width/height pair in pixels. The zero value means "unknown".
type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// IsZero reports whether the size is unknown.
func (s Size) IsZero() bool {
	return s.Width <= 0 || s.Height <= 0
}

// Fit is the resolved scaling strategy carried by a Geometry.
type Fit string

const (
	FitCover   Fit = "cover"   // crop to cover the container, aspect preserved
	FitContain Fit = "contain" // letterbox inside the container, aspect preserved
	FitStretch Fit = "stretch" // fill both axes, aspect not preserved
	FitNone    Fit = "none"    // exact pixel dimensions, no scaling
)

// Geometry is a style descriptor for one image box: dimensions, anchor edge
// offsets, centering transform and fit mode. It is consumable by any
// rendering surface; the fields map one-to-one onto absolute positioning in
// CSS but carry no DOM assumptions.
type Geometry struct {
	Width  string `json:"width"`
	Height string `json:"height"`
	Fit    Fit    `json:"fit"`

	// Anchor edge offsets. Empty string means the edge is unconstrained.
	// Centered axes use "50%" together with a -50 translate.
	Left   string `json:"left,omitempty"`
	Top    string `json:"top,omitempty"`
	Right  string `json:"right,omitempty"`
	Bottom string `json:"bottom,omitempty"`

	// Centering transform, percent of own size.
	TranslateX int `json:"translateX,omitempty"`
	TranslateY int `json:"translateY,omitempty"`
}

package display

import "time"

// CaptionSpec is the render-ready caption: resolved text plus the visual
// attributes derived from the params snapshot and container size. Recomputed
// whenever params, metadata or container size change.
type CaptionSpec struct {
	Text      string   `json:"text"`
	Position  Position `json:"position"`
	FontSize  string   `json:"fontSize"`
	Color     string   `json:"color"`
	Font      string   `json:"font"`
	BgColor   string   `json:"bgColor"`
	BgOpacity float64  `json:"bgOpacity"`
}

// RenderState is the render-ready output of the pipeline, pushed to the
// rendering surface on every visible change. During a fade transition both
// OldStyle and NewStyle are populated and IsTransitioning is true; outside a
// transition only Style is meaningful.
type RenderState struct {
	DisplayID string `json:"displayId"`
	Sequence  int64  `json:"sequence"`

	URL         string `json:"url"`
	PreviousURL string `json:"previousUrl,omitempty"`

	// RenderKey increments on every cut swap so a surface can discard a
	// stale decoded element instead of reusing it.
	RenderKey int64 `json:"renderKey"`

	IsTransitioning bool      `json:"isTransitioning"`
	Style           *Geometry `json:"style,omitempty"`
	OldStyle        *Geometry `json:"oldStyle,omitempty"`
	NewStyle        *Geometry `json:"newStyle,omitempty"`

	// DurationSeconds is the cross-fade length; zero for cut swaps.
	DurationSeconds float64 `json:"durationSeconds"`

	Caption         *CaptionSpec `json:"caption,omitempty"`
	BackgroundColor string       `json:"backgroundColor"`

	Timestamp time.Time `json:"timestamp"`
}

// Record is a registered display: identity plus its current params snapshot.
type Record struct {
	ID      string     `json:"id"`
	Name    string     `json:"name"`
	Params  Params     `json:"params"`
	Created time.Time  `json:"created"`
	Changed *time.Time `json:"changed,omitempty"`
}

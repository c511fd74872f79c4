package layout

import (
	"reflect"
	"testing"

	"github.com/gjbm2/screen-machine-sub001/internal/domain/entities/display"
)

var allPositions = []display.Position{
	display.TopLeft, display.TopCenter, display.TopRight,
	display.MiddleLeft, display.Center, display.MiddleRight,
	display.BottomLeft, display.BottomCenter, display.BottomRight,
}

var fullHD = display.Size{Width: 1920, Height: 1080}

func TestFillIgnoresPosition(t *testing.T) {
	intrinsic := display.Size{Width: 800, Height: 600}
	base := ComputeImageStyle(display.ShowFill, display.Center, fullHD, intrinsic)

	if base.Fit != display.FitCover {
		t.Fatalf("fill fit = %q, want cover", base.Fit)
	}
	if base.Width != "100%" || base.Height != "100%" {
		t.Fatalf("fill size = %s x %s, want 100%% x 100%%", base.Width, base.Height)
	}
	if base.Left != "0" || base.Top != "0" {
		t.Fatalf("fill not anchored to origin: left=%q top=%q", base.Left, base.Top)
	}

	for _, pos := range allPositions {
		got := ComputeImageStyle(display.ShowFill, pos, fullHD, intrinsic)
		if !reflect.DeepEqual(got, base) {
			t.Errorf("fill geometry differs for position %s: %+v", pos, got)
		}
	}
}

func TestFitLetterboxes(t *testing.T) {
	tests := []struct {
		name      string
		intrinsic display.Size
		wantW     string
		wantH     string
	}{
		{"wide image pillarboxed by height", display.Size{Width: 3840, Height: 1080}, "1920px", "540px"},
		{"tall image letterboxed by width", display.Size{Width: 1080, Height: 3840}, "304px", "1080px"},
		{"exact aspect scales to container", display.Size{Width: 960, Height: 540}, "1920px", "1080px"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeImageStyle(display.ShowFit, display.Center, fullHD, tt.intrinsic)
			if got.Fit != display.FitContain {
				t.Errorf("fit = %q, want contain", got.Fit)
			}
			if got.Width != tt.wantW || got.Height != tt.wantH {
				t.Errorf("size = %s x %s, want %s x %s", got.Width, got.Height, tt.wantW, tt.wantH)
			}
		})
	}
}

func TestFitUnknownIntrinsicFallsBackToPercent(t *testing.T) {
	got := ComputeImageStyle(display.ShowFit, display.Center, fullHD, display.Size{})
	if got.Width != "100%" || got.Height != "100%" || got.Fit != display.FitContain {
		t.Errorf("unexpected fallback geometry: %+v", got)
	}
}

func TestStretchDisregardsAspect(t *testing.T) {
	got := ComputeImageStyle(display.ShowStretch, display.TopLeft, fullHD, display.Size{Width: 10, Height: 10})
	if got.Width != "100%" || got.Height != "100%" || got.Fit != display.FitStretch {
		t.Errorf("unexpected stretch geometry: %+v", got)
	}
}

func TestActualUsesIntrinsicPixels(t *testing.T) {
	got := ComputeImageStyle(display.ShowActual, display.TopLeft, fullHD, display.Size{Width: 640, Height: 480})
	if got.Width != "640px" || got.Height != "480px" || got.Fit != display.FitNone {
		t.Errorf("unexpected actual geometry: %+v", got)
	}
}

func TestActualZeroIntrinsicFallsBackToFit(t *testing.T) {
	got := ComputeImageStyle(display.ShowActual, display.Center, fullHD, display.Size{})
	want := ComputeImageStyle(display.ShowFit, display.Center, fullHD, display.Size{})
	if !reflect.DeepEqual(got, want) {
		t.Errorf("actual(0,0) = %+v, want fit fallback %+v", got, want)
	}
}

func TestAnchors(t *testing.T) {
	intrinsic := display.Size{Width: 640, Height: 480}
	tests := []struct {
		pos  display.Position
		want display.Geometry
	}{
		{display.TopLeft, display.Geometry{Left: "0", Top: "0"}},
		{display.TopCenter, display.Geometry{Left: "50%", TranslateX: -50, Top: "0"}},
		{display.TopRight, display.Geometry{Right: "0", Top: "0"}},
		{display.MiddleLeft, display.Geometry{Left: "0", Top: "50%", TranslateY: -50}},
		{display.Center, display.Geometry{Left: "50%", TranslateX: -50, Top: "50%", TranslateY: -50}},
		{display.MiddleRight, display.Geometry{Right: "0", Top: "50%", TranslateY: -50}},
		{display.BottomLeft, display.Geometry{Left: "0", Bottom: "0"}},
		{display.BottomCenter, display.Geometry{Left: "50%", TranslateX: -50, Bottom: "0"}},
		{display.BottomRight, display.Geometry{Right: "0", Bottom: "0"}},
	}

	for _, tt := range tests {
		t.Run(string(tt.pos), func(t *testing.T) {
			got := ComputeImageStyle(display.ShowActual, tt.pos, fullHD, intrinsic)
			anchors := display.Geometry{
				Left: got.Left, Top: got.Top, Right: got.Right, Bottom: got.Bottom,
				TranslateX: got.TranslateX, TranslateY: got.TranslateY,
			}
			if !reflect.DeepEqual(anchors, tt.want) {
				t.Errorf("anchors = %+v, want %+v", anchors, tt.want)
			}
		})
	}
}

func TestComputeImageStyleIsDeterministic(t *testing.T) {
	intrinsic := display.Size{Width: 1234, Height: 777}
	a := ComputeImageStyle(display.ShowFit, display.BottomRight, fullHD, intrinsic)
	b := ComputeImageStyle(display.ShowFit, display.BottomRight, fullHD, intrinsic)
	if !reflect.DeepEqual(a, b) {
		t.Errorf("identical inputs produced different geometry: %+v vs %+v", a, b)
	}
}

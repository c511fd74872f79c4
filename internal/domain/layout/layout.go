// Package layout computes image and caption box geometry. All functions are
// pure: identical inputs produce identical output, and nothing here touches
// the viewport directly — container sizes are passed in by the caller.
package layout

import (
	"fmt"
	"math"

	"github.com/gjbm2/screen-machine-sub001/internal/domain/entities/display"
)

// ComputeImageStyle resolves the geometry for one image under the given show
// mode and anchor. It is called for both the idle style and the old/new
// styles of a pending transition.
//
// Mode behavior:
//   - fill: 100% x 100%, aspect-preserving crop, anchored to the container
//     origin regardless of position.
//   - fit: aspect-preserving letterbox. With a known intrinsic size the box
//     is the exact scaled pixel size; otherwise 100% x 100% with contain.
//   - stretch: 100% x 100% with no aspect preservation.
//   - actual: exact intrinsic pixel dimensions; an unknown intrinsic size
//     falls back to fit behavior.
func ComputeImageStyle(mode display.ShowMode, pos display.Position, container, intrinsic display.Size) display.Geometry {
	switch mode {
	case display.ShowFill:
		// Position is ignored: the crop always covers from the origin.
		return display.Geometry{
			Width:  "100%",
			Height: "100%",
			Fit:    display.FitCover,
			Left:   "0",
			Top:    "0",
		}
	case display.ShowStretch:
		g := display.Geometry{
			Width:  "100%",
			Height: "100%",
			Fit:    display.FitStretch,
		}
		anchor(&g, pos)
		return g
	case display.ShowActual:
		if intrinsic.IsZero() {
			return ComputeImageStyle(display.ShowFit, pos, container, intrinsic)
		}
		g := display.Geometry{
			Width:  px(intrinsic.Width),
			Height: px(intrinsic.Height),
			Fit:    display.FitNone,
		}
		anchor(&g, pos)
		return g
	default: // fit
		g := display.Geometry{Fit: display.FitContain}
		if intrinsic.IsZero() || container.IsZero() {
			g.Width = "100%"
			g.Height = "100%"
		} else {
			scale := math.Min(container.Width/intrinsic.Width, container.Height/intrinsic.Height)
			g.Width = px(intrinsic.Width * scale)
			g.Height = px(intrinsic.Height * scale)
		}
		anchor(&g, pos)
		return g
	}
}

// anchor applies one of the nine grid anchors as edge offsets; centered axes
// get a 50% offset with a -50 translate.
func anchor(g *display.Geometry, pos display.Position) {
	switch pos {
	case display.TopLeft, display.MiddleLeft, display.BottomLeft:
		g.Left = "0"
	case display.TopRight, display.MiddleRight, display.BottomRight:
		g.Right = "0"
	default:
		g.Left = "50%"
		g.TranslateX = -50
	}
	switch pos {
	case display.TopLeft, display.TopCenter, display.TopRight:
		g.Top = "0"
	case display.BottomLeft, display.BottomCenter, display.BottomRight:
		g.Bottom = "0"
	default:
		g.Top = "50%"
		g.TranslateY = -50
	}
}

func px(f float64) string {
	return fmt.Sprintf("%dpx", int(math.Round(f)))
}

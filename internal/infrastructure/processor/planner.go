package processor

import (
	"fmt"
	"math"

	"github.com/yokitheyo/imagetransfer/internal/domain"
)

// Plan computes the canvas and rectangles for one derivative of source.
//
// Width drives the geometry: a missing target height is derived from the
// width ratio with truncation. Fit mode scales by the smaller axis ratio and
// the canvas matches the scaled content. Crop mode scales by the larger ratio
// and centers the content in a canvas the size of the target box; the
// destination rectangle then overflows the canvas and is clipped when drawn.
//
// Plan is pure: identical inputs always produce identical plans.
func Plan(source domain.SourceImage, spec domain.ResizeSpec) (domain.ResizePlan, error) {
	return PlanWithin(source, spec, domain.DefaultGeometryLimits)
}

// PlanWithin is Plan with explicit limits. A canvas or scaled rectangle
// larger than limits is rejected before anything is allocated.
func PlanWithin(source domain.SourceImage, spec domain.ResizeSpec, limits domain.GeometryLimits) (domain.ResizePlan, error) {
	if err := spec.CheckLimits(limits); err != nil {
		return domain.ResizePlan{}, err
	}
	if source.Width <= 0 || source.Height <= 0 {
		return domain.ResizePlan{}, fmt.Errorf("%w: source %dx%d has no area",
			domain.ErrInvalidGeometry, source.Width, source.Height)
	}

	sourceWidth := float64(source.Width)
	sourceHeight := float64(source.Height)
	targetWidth := float64(spec.Width)

	scaleW := targetWidth / sourceWidth

	targetHeight := spec.Height
	if !spec.HasHeight() {
		targetHeight = int(sourceHeight * scaleW)
	}
	scaleH := float64(targetHeight) / sourceHeight

	scale := math.Min(scaleW, scaleH)
	var offsetX, offsetY float64
	if spec.Crop {
		scale = math.Max(scaleW, scaleH)
		offsetY = (float64(targetHeight) - sourceHeight*scale) / 2
		offsetX = (targetWidth - sourceWidth*scale) / 2
	}

	if !isFinite(scale) || !isFinite(offsetX) || !isFinite(offsetY) {
		return domain.ResizePlan{}, fmt.Errorf("%w: non-finite scale for source %dx%d, target %dx%d",
			domain.ErrInvalidGeometry, source.Width, source.Height, spec.Width, targetHeight)
	}

	if !limits.Allows(sourceWidth*scale, sourceHeight*scale) || !limits.Allows(targetWidth, float64(targetHeight)) {
		return domain.ResizePlan{}, fmt.Errorf("%w: scaled %.0fx%.0f for source %dx%d, target %dx%d exceeds %dpx / %d pixels",
			domain.ErrInvalidGeometry, sourceWidth*scale, sourceHeight*scale,
			source.Width, source.Height, spec.Width, targetHeight, limits.MaxDimension, limits.MaxPixels)
	}

	destWidth := round(sourceWidth * scale)
	destHeight := round(sourceHeight * scale)
	canvasWidth := destWidth + round(2*offsetX)
	canvasHeight := destHeight + round(2*offsetY)

	if canvasWidth <= 0 || canvasHeight <= 0 || destWidth <= 0 || destHeight <= 0 {
		return domain.ResizePlan{}, fmt.Errorf("%w: canvas %dx%d, dest %dx%d for source %dx%d, target %dx%d",
			domain.ErrInvalidGeometry, canvasWidth, canvasHeight, destWidth, destHeight,
			source.Width, source.Height, spec.Width, targetHeight)
	}

	return domain.ResizePlan{
		CanvasWidth:  canvasWidth,
		CanvasHeight: canvasHeight,
		SourceRect:   domain.Rect{X: 0, Y: 0, W: source.Width, H: source.Height},
		DestRect:     domain.Rect{X: round(offsetX), Y: round(offsetY), W: destWidth, H: destHeight},
	}, nil
}

// round rounds half away from zero.
func round(v float64) int {
	return int(math.Round(v))
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

package processor

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yokitheyo/imagetransfer/internal/domain"
)

func TestPlan_FitAutoHeight(t *testing.T) {
	plan, err := Plan(domain.SourceImage{Width: 800, Height: 600}, domain.ResizeSpec{Width: 200})
	require.NoError(t, err)

	assert.Equal(t, 200, plan.CanvasWidth)
	assert.Equal(t, 150, plan.CanvasHeight)
	assert.Equal(t, domain.Rect{X: 0, Y: 0, W: 800, H: 600}, plan.SourceRect)
	assert.Equal(t, domain.Rect{X: 0, Y: 0, W: 200, H: 150}, plan.DestRect)
}

func TestPlan_CropSquareFromLandscape(t *testing.T) {
	plan, err := Plan(domain.SourceImage{Width: 800, Height: 600}, domain.ResizeSpec{Width: 200, Height: 200, Crop: true})
	require.NoError(t, err)

	assert.Equal(t, domain.Rect{X: -33, Y: 0, W: 267, H: 200}, plan.DestRect)
	assert.Equal(t, 200, plan.CanvasWidth)
	assert.Equal(t, 200, plan.CanvasHeight)
	assert.Equal(t, domain.Rect{X: 0, Y: 0, W: 800, H: 600}, plan.SourceRect)
}

func TestPlan_FitWithExplicitBox(t *testing.T) {
	tests := []struct {
		name       string
		source     domain.SourceImage
		spec       domain.ResizeSpec
		wantCanvas [2]int
		wantDest   domain.Rect
	}{
		{
			name:       "landscape into square box is width bound",
			source:     domain.SourceImage{Width: 800, Height: 600},
			spec:       domain.ResizeSpec{Width: 200, Height: 200},
			wantCanvas: [2]int{200, 150},
			wantDest:   domain.Rect{X: 0, Y: 0, W: 200, H: 150},
		},
		{
			name:       "portrait into square box is height bound",
			source:     domain.SourceImage{Width: 600, Height: 800},
			spec:       domain.ResizeSpec{Width: 200, Height: 200},
			wantCanvas: [2]int{150, 200},
			wantDest:   domain.Rect{X: 0, Y: 0, W: 150, H: 200},
		},
		{
			name:       "upscale keeps aspect ratio",
			source:     domain.SourceImage{Width: 100, Height: 50},
			spec:       domain.ResizeSpec{Width: 400, Height: 400},
			wantCanvas: [2]int{400, 200},
			wantDest:   domain.Rect{X: 0, Y: 0, W: 400, H: 200},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan, err := Plan(tt.source, tt.spec)
			require.NoError(t, err)
			assert.Equal(t, tt.wantCanvas, [2]int{plan.CanvasWidth, plan.CanvasHeight})
			assert.Equal(t, tt.wantDest, plan.DestRect)
		})
	}
}

func TestPlan_CropPortraitIntoLandscapeBox(t *testing.T) {
	plan, err := Plan(domain.SourceImage{Width: 600, Height: 800}, domain.ResizeSpec{Width: 300, Height: 100, Crop: true})
	require.NoError(t, err)

	// scale = max(0.5, 0.125) = 0.5 -> content 300x400 centered vertically in 300x100
	assert.Equal(t, 300, plan.CanvasWidth)
	assert.Equal(t, 100, plan.CanvasHeight)
	assert.Equal(t, domain.Rect{X: 0, Y: -150, W: 300, H: 400}, plan.DestRect)
}

func TestPlan_AutoHeightTruncates(t *testing.T) {
	// 337 * (100/1000) = 33.7 -> 33, never rounded up
	plan, err := Plan(domain.SourceImage{Width: 1000, Height: 337}, domain.ResizeSpec{Width: 100})
	require.NoError(t, err)
	assert.Equal(t, 33, plan.CanvasHeight)
}

func TestPlan_InvalidGeometry(t *testing.T) {
	tests := []struct {
		name   string
		source domain.SourceImage
		spec   domain.ResizeSpec
	}{
		{name: "zero source width", source: domain.SourceImage{Width: 0, Height: 600}, spec: domain.ResizeSpec{Width: 200}},
		{name: "zero source height", source: domain.SourceImage{Width: 800, Height: 0}, spec: domain.ResizeSpec{Width: 200}},
		{name: "negative source", source: domain.SourceImage{Width: -1, Height: -1}, spec: domain.ResizeSpec{Width: 200}},
		{name: "zero target width", source: domain.SourceImage{Width: 800, Height: 600}, spec: domain.ResizeSpec{Width: 0}},
		{name: "auto height collapses to zero", source: domain.SourceImage{Width: 1000, Height: 3}, spec: domain.ResizeSpec{Width: 10}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Plan(tt.source, tt.spec)
			require.Error(t, err)
			assert.ErrorIs(t, err, domain.ErrInvalidGeometry)
		})
	}
}

func TestPlan_Properties(t *testing.T) {
	sources := []domain.SourceImage{
		{Width: 800, Height: 600},
		{Width: 600, Height: 800},
		{Width: 1920, Height: 1080},
		{Width: 1024, Height: 768},
		{Width: 3000, Height: 2000},
		{Width: 500, Height: 500},
		{Width: 37, Height: 91},
	}
	widths := []int{16, 50, 100, 150, 199, 200, 320, 640, 1280}
	heights := []int{0, 20, 75, 100, 333, 480}

	for _, src := range sources {
		for _, w := range widths {
			for _, h := range heights {
				for _, crop := range []bool{false, true} {
					spec := domain.ResizeSpec{Width: w, Height: h, Crop: crop}
					name := fmt.Sprintf("%dx%d_%s", src.Width, src.Height, spec)
					t.Run(name, func(t *testing.T) {
						checkPlanProperties(t, src, spec)
					})
				}
			}
		}
	}
}

func checkPlanProperties(t *testing.T, src domain.SourceImage, spec domain.ResizeSpec) {
	t.Helper()

	plan, err := Plan(src, spec)
	require.NoError(t, err)

	again, err := Plan(src, spec)
	require.NoError(t, err)
	assert.Equal(t, plan, again, "plan must be deterministic")

	assert.Equal(t, domain.Rect{X: 0, Y: 0, W: src.Width, H: src.Height}, plan.SourceRect)
	assert.Positive(t, plan.CanvasWidth)
	assert.Positive(t, plan.CanvasHeight)

	targetHeight := spec.Height
	if !spec.HasHeight() {
		targetHeight = int(float64(src.Height) * float64(spec.Width) / float64(src.Width))
	}

	if !spec.Crop {
		assert.Equal(t, 0, plan.DestRect.X)
		assert.Equal(t, 0, plan.DestRect.Y)
		assert.Equal(t, plan.DestRect.W, plan.CanvasWidth)
		assert.Equal(t, plan.DestRect.H, plan.CanvasHeight)
		assert.LessOrEqual(t, plan.DestRect.W, spec.Width)
		assert.LessOrEqual(t, plan.DestRect.H, targetHeight)
		if !spec.HasHeight() {
			assert.Equal(t, targetHeight, plan.CanvasHeight)
		}
		return
	}

	assert.Equal(t, spec.Width, plan.CanvasWidth)
	assert.Equal(t, targetHeight, plan.CanvasHeight)
	assert.GreaterOrEqual(t, plan.DestRect.W, plan.CanvasWidth)
	assert.GreaterOrEqual(t, plan.DestRect.H, plan.CanvasHeight)
	assert.InDelta(t, plan.CanvasWidth, 2*plan.DestRect.X+plan.DestRect.W, 1)
	assert.InDelta(t, plan.CanvasHeight, 2*plan.DestRect.Y+plan.DestRect.H, 1)
}

func TestPlan_FitAutoHeightWidthIsNearTarget(t *testing.T) {
	// Truncating the derived height can shave the width of wide sources by
	// at most the aspect ratio.
	tests := []struct {
		source domain.SourceImage
		width  int
		want   int
	}{
		{source: domain.SourceImage{Width: 800, Height: 600}, width: 200, want: 200},
		{source: domain.SourceImage{Width: 1920, Height: 1080}, width: 100, want: 100},
		{source: domain.SourceImage{Width: 1920, Height: 1080}, width: 150, want: 149},
		{source: domain.SourceImage{Width: 10, Height: 3}, width: 8, want: 7},
		{source: domain.SourceImage{Width: 1000, Height: 10}, width: 150, want: 100},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%dx%d@%d", tt.source.Width, tt.source.Height, tt.width), func(t *testing.T) {
			plan, err := Plan(tt.source, domain.ResizeSpec{Width: tt.width})
			require.NoError(t, err)
			assert.Equal(t, tt.want, plan.CanvasWidth)
		})
	}
}

func TestPlan_RejectsOversizedGeometry(t *testing.T) {
	limits := domain.GeometryLimits{MaxDimension: 1000, MaxPixels: 500_000}

	tests := []struct {
		name   string
		source domain.SourceImage
		spec   domain.ResizeSpec
	}{
		{name: "huge box", source: domain.SourceImage{Width: 800, Height: 600}, spec: domain.ResizeSpec{Width: 1 << 24, Height: 1 << 24}},
		{name: "width over max", source: domain.SourceImage{Width: 800, Height: 600}, spec: domain.ResizeSpec{Width: 1001}},
		{name: "box over pixel budget", source: domain.SourceImage{Width: 800, Height: 600}, spec: domain.ResizeSpec{Width: 1000, Height: 1000}},
		{name: "auto height of tall source", source: domain.SourceImage{Width: 10, Height: 4000}, spec: domain.ResizeSpec{Width: 100}},
		{name: "crop scales thin source past max", source: domain.SourceImage{Width: 1, Height: 500}, spec: domain.ResizeSpec{Width: 100, Height: 100, Crop: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := PlanWithin(tt.source, tt.spec, limits)
			require.Error(t, err)
			assert.ErrorIs(t, err, domain.ErrInvalidGeometry)
		})
	}

	_, err := Plan(domain.SourceImage{Width: 800, Height: 600}, domain.ResizeSpec{Width: 1 << 24, Height: 1 << 24})
	assert.ErrorIs(t, err, domain.ErrInvalidGeometry)

	plan, err := PlanWithin(domain.SourceImage{Width: 800, Height: 600}, domain.ResizeSpec{Width: 800, Height: 600}, limits)
	require.NoError(t, err)
	assert.Equal(t, 800, plan.CanvasWidth)
}

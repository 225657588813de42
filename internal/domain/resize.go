package domain

import "fmt"

// Interpolation selects the resampling filter used when scaling a source image.
type Interpolation string

const (
	InterpolationHigh     Interpolation = "high"
	InterpolationBicubic  Interpolation = "bicubic"
	InterpolationBilinear Interpolation = "bilinear"
	InterpolationNearest  Interpolation = "nearest"
)

// Smoothing controls whether the scaled content is anti-aliased.
type Smoothing string

const (
	SmoothingAntiAlias Smoothing = "antialias"
	SmoothingNone      Smoothing = "none"
)

// Compositing controls how the scaled content is combined with the canvas.
type Compositing string

const (
	CompositingHighSpeed   Compositing = "high_speed"
	CompositingHighQuality Compositing = "high_quality"
)

// ResizeSpec describes one derivative. Height 0 means "derive from width".
// Zero-valued quality knobs fall back to the defaults of the derivative path.
type ResizeSpec struct {
	Width         int           `json:"width"`
	Height        int           `json:"height,omitempty"`
	Crop          bool          `json:"crop,omitempty"`
	Interpolation Interpolation `json:"interpolation,omitempty"`
	Smoothing     Smoothing     `json:"smoothing,omitempty"`
	Compositing   Compositing   `json:"compositing,omitempty"`
}

func (s ResizeSpec) HasHeight() bool {
	return s.Height > 0
}

// WithDefaults returns a copy of s with every unset quality knob filled in.
func (s ResizeSpec) WithDefaults() ResizeSpec {
	if s.Interpolation == "" {
		s.Interpolation = InterpolationHigh
	}
	if s.Smoothing == "" {
		s.Smoothing = SmoothingAntiAlias
	}
	if s.Compositing == "" {
		s.Compositing = CompositingHighSpeed
	}
	return s
}

func (s ResizeSpec) Validate() error {
	if s.Width <= 0 {
		return fmt.Errorf("%w: resize width must be positive, got %d", ErrInvalidArgument, s.Width)
	}
	if s.Height < 0 {
		return fmt.Errorf("%w: resize height must not be negative, got %d", ErrInvalidArgument, s.Height)
	}
	switch s.Interpolation {
	case "", InterpolationHigh, InterpolationBicubic, InterpolationBilinear, InterpolationNearest:
	default:
		return fmt.Errorf("%w: unknown interpolation %q", ErrInvalidArgument, s.Interpolation)
	}
	switch s.Smoothing {
	case "", SmoothingAntiAlias, SmoothingNone:
	default:
		return fmt.Errorf("%w: unknown smoothing %q", ErrInvalidArgument, s.Smoothing)
	}
	switch s.Compositing {
	case "", CompositingHighSpeed, CompositingHighQuality:
	default:
		return fmt.Errorf("%w: unknown compositing %q", ErrInvalidArgument, s.Compositing)
	}
	return nil
}

// CheckLimits rejects a spec whose target box could never fit within l.
func (s ResizeSpec) CheckLimits(l GeometryLimits) error {
	if s.Width > l.MaxDimension || s.Height > l.MaxDimension {
		return fmt.Errorf("%w: target %dx%d exceeds max dimension %d",
			ErrInvalidGeometry, s.Width, s.Height, l.MaxDimension)
	}
	if s.HasHeight() && int64(s.Width)*int64(s.Height) > int64(l.MaxPixels) {
		return fmt.Errorf("%w: target %dx%d exceeds %d pixels",
			ErrInvalidGeometry, s.Width, s.Height, l.MaxPixels)
	}
	return nil
}

func (s ResizeSpec) String() string {
	if s.HasHeight() {
		return fmt.Sprintf("%dx%d crop=%t", s.Width, s.Height, s.Crop)
	}
	return fmt.Sprintf("%dx(auto) crop=%t", s.Width, s.Crop)
}

// GeometryLimits bounds every canvas and scaled rectangle a derivative
// may allocate.
type GeometryLimits struct {
	MaxDimension int
	MaxPixels    int
}

// DefaultGeometryLimits is also the ceiling configured limits are clamped to.
var DefaultGeometryLimits = GeometryLimits{MaxDimension: 10000, MaxPixels: 50_000_000}

// Allows reports whether a w x h rectangle fits within l.
func (l GeometryLimits) Allows(w, h float64) bool {
	return w <= float64(l.MaxDimension) && h <= float64(l.MaxDimension) &&
		w*h <= float64(l.MaxPixels)
}

// SourceImage carries the intrinsic dimensions of a decoded source.
type SourceImage struct {
	Width  int
	Height int
}

type Rect struct {
	X int `json:"x"`
	Y int `json:"y"`
	W int `json:"w"`
	H int `json:"h"`
}

// ResizePlan is the geometry of one derivative: a canvas and the rectangle
// of the source drawn into a (possibly overflowing) rectangle of the canvas.
type ResizePlan struct {
	CanvasWidth  int
	CanvasHeight int
	SourceRect   Rect
	DestRect     Rect
}

package processor

import (
	"bytes"
	"fmt"
	"image"
	"io"

	ico "github.com/biessek/golang-ico"
	"github.com/disintegration/imaging"
	"github.com/wb-go/wbf/zlog"
	"github.com/yokitheyo/imagetransfer/internal/config"
	"github.com/yokitheyo/imagetransfer/internal/domain"
	"golang.org/x/image/draw"

	_ "golang.org/x/image/webp"
)

type ImageProcessor struct {
	cfg    *config.ProcessingConfig
	limits domain.GeometryLimits
}

func NewImageProcessor(cfg *config.ProcessingConfig) *ImageProcessor {
	if cfg.OutputQuality <= 0 || cfg.OutputQuality > 100 {
		zlog.Logger.Warn().
			Int("output_quality", cfg.OutputQuality).
			Msg("Invalid output quality, using default")
		cfg.OutputQuality = 90
	}
	limits := domain.DefaultGeometryLimits
	if cfg.MaxDimension > 0 && cfg.MaxDimension < limits.MaxDimension {
		limits.MaxDimension = cfg.MaxDimension
	}
	if cfg.MaxPixels > 0 && cfg.MaxPixels < limits.MaxPixels {
		limits.MaxPixels = cfg.MaxPixels
	}
	zlog.Logger.Info().
		Int("output_quality", cfg.OutputQuality).
		Int("max_dimension", limits.MaxDimension).
		Int("max_pixels", limits.MaxPixels).
		Msg("ImageProcessor initialized")
	return &ImageProcessor{cfg: cfg, limits: limits}
}

// Limits bounds the derivatives this processor will plan and draw.
func (p *ImageProcessor) Limits() domain.GeometryLimits {
	return p.limits
}

// Decode reads a complete image, applying EXIF orientation.
func (p *ImageProcessor) Decode(data []byte) (image.Image, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		zlog.Logger.Error().Err(err).Int("bytes", len(data)).Msg("failed to decode image")
		return nil, fmt.Errorf("%w: %v", domain.ErrDecodeFailed, err)
	}
	if img.Bounds().Dx() == 0 || img.Bounds().Dy() == 0 {
		zlog.Logger.Error().Msg("decoded image is empty")
		return nil, fmt.Errorf("%w: decoded image is empty", domain.ErrDecodeFailed)
	}
	zlog.Logger.Info().
		Int("width", img.Bounds().Dx()).
		Int("height", img.Bounds().Dy()).
		Msg("Image decoded successfully")
	return img, nil
}

// Resize draws src into a new canvas following plan. The quality knobs of
// spec pick the resampling filter, the smoothing path and the compositing op.
func (p *ImageProcessor) Resize(src image.Image, plan domain.ResizePlan, spec domain.ResizeSpec) (image.Image, error) {
	if plan.CanvasWidth <= 0 || plan.CanvasHeight <= 0 || plan.DestRect.W <= 0 || plan.DestRect.H <= 0 {
		return nil, fmt.Errorf("%w: canvas %dx%d, dest %dx%d",
			domain.ErrInvalidGeometry, plan.CanvasWidth, plan.CanvasHeight, plan.DestRect.W, plan.DestRect.H)
	}
	if !p.limits.Allows(float64(plan.CanvasWidth), float64(plan.CanvasHeight)) ||
		!p.limits.Allows(float64(plan.DestRect.W), float64(plan.DestRect.H)) {
		return nil, fmt.Errorf("%w: canvas %dx%d, dest %dx%d exceeds %dpx / %d pixels",
			domain.ErrInvalidGeometry, plan.CanvasWidth, plan.CanvasHeight, plan.DestRect.W, plan.DestRect.H,
			p.limits.MaxDimension, p.limits.MaxPixels)
	}
	spec = spec.WithDefaults()

	canvas := image.NewNRGBA(image.Rect(0, 0, plan.CanvasWidth, plan.CanvasHeight))
	srcRect := toRectangle(plan.SourceRect).Add(src.Bounds().Min)
	dstRect := toRectangle(plan.DestRect)
	op := compositingOp(spec.Compositing)

	switch spec.Smoothing {
	case domain.SmoothingNone:
		scaler(spec.Interpolation).Scale(canvas, dstRect, src, srcRect, op, nil)
	default:
		region := src
		if srcRect != src.Bounds() {
			region = imaging.Crop(src, srcRect)
		}
		scaled := imaging.Resize(region, plan.DestRect.W, plan.DestRect.H, resampleFilter(spec.Interpolation))
		draw.Draw(canvas, dstRect, scaled, scaled.Bounds().Min, op)
	}

	zlog.Logger.Debug().
		Int("canvas_width", plan.CanvasWidth).
		Int("canvas_height", plan.CanvasHeight).
		Int("dest_x", plan.DestRect.X).
		Int("dest_y", plan.DestRect.Y).
		Int("dest_width", plan.DestRect.W).
		Int("dest_height", plan.DestRect.H).
		Str("interpolation", string(spec.Interpolation)).
		Str("smoothing", string(spec.Smoothing)).
		Str("compositing", string(spec.Compositing)).
		Msg("Image resized")

	return canvas, nil
}

// Encode writes img in the given format.
func (p *ImageProcessor) Encode(w io.Writer, img image.Image, format Format) error {
	var err error
	switch format {
	case FormatJPEG:
		err = imaging.Encode(w, img, imaging.JPEG, imaging.JPEGQuality(p.cfg.OutputQuality))
	case FormatPNG, FormatMetafile:
		err = imaging.Encode(w, img, imaging.PNG)
	case FormatGIF:
		err = imaging.Encode(w, img, imaging.GIF)
	case FormatTIFF:
		err = imaging.Encode(w, img, imaging.TIFF)
	case FormatBMP:
		err = imaging.Encode(w, img, imaging.BMP)
	case FormatICO:
		err = ico.Encode(w, img)
	default:
		return fmt.Errorf("%w: %s", domain.ErrUnsupportedFormat, format)
	}
	if err != nil {
		zlog.Logger.Error().Err(err).Str("format", format.String()).Msg("failed to encode image")
		return fmt.Errorf("encode %s: %w", format, err)
	}
	return nil
}

func toRectangle(r domain.Rect) image.Rectangle {
	return image.Rect(r.X, r.Y, r.X+r.W, r.Y+r.H)
}

func resampleFilter(i domain.Interpolation) imaging.ResampleFilter {
	switch i {
	case domain.InterpolationNearest:
		return imaging.NearestNeighbor
	case domain.InterpolationBilinear:
		return imaging.Linear
	case domain.InterpolationBicubic:
		return imaging.CatmullRom
	default:
		return imaging.Lanczos
	}
}

func scaler(i domain.Interpolation) draw.Interpolator {
	switch i {
	case domain.InterpolationNearest:
		return draw.NearestNeighbor
	case domain.InterpolationBilinear:
		return draw.BiLinear
	default:
		return draw.CatmullRom
	}
}

func compositingOp(c domain.Compositing) draw.Op {
	if c == domain.CompositingHighQuality {
		return draw.Over
	}
	return draw.Src
}

// GetImageDimensions returns the intrinsic size of img.
func GetImageDimensions(img image.Image) domain.SourceImage {
	bounds := img.Bounds()
	return domain.SourceImage{Width: bounds.Dx(), Height: bounds.Dy()}
}

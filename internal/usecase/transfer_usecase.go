package usecase

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/wb-go/wbf/zlog"
	"github.com/yokitheyo/imagetransfer/internal/config"
	"github.com/yokitheyo/imagetransfer/internal/domain"
	"github.com/yokitheyo/imagetransfer/internal/infrastructure/processor"
	"github.com/yokitheyo/imagetransfer/internal/infrastructure/storage"
	"github.com/yokitheyo/imagetransfer/internal/metrics"
)

// legacyContentType is the fixed type older deployments stored every blob with.
const legacyContentType = "image/jpg"

// autoHeightPlaceholder marks a derived blob name whose height was computed.
const autoHeightPlaceholder = "_"

type TransferUsecase struct {
	fetcher           domain.ImageFetcher
	storage           storage.Storage
	processor         *processor.ImageProcessor
	legacyContentType bool
}

func NewTransferUsecase(
	fetcher domain.ImageFetcher,
	storage storage.Storage,
	processor *processor.ImageProcessor,
	cfg *config.TransferConfig,
) *TransferUsecase {
	return &TransferUsecase{
		fetcher:           fetcher,
		storage:           storage,
		processor:         processor,
		legacyContentType: cfg != nil && cfg.LegacyContentType,
	}
}

// TransferSingle copies the remote image to blobName unchanged.
func (u *TransferUsecase) TransferSingle(ctx context.Context, sourceURL, blobName string) (string, error) {
	result, err := u.Transfer(ctx, domain.TransferRequest{
		SourceURL:       sourceURL,
		BlobName:        blobName,
		IncludeOriginal: true,
	})
	if err != nil {
		return "", err
	}
	return result.URIs[0], nil
}

// Transfer fetches req.SourceURL once, stores the original when requested
// and one derivative per resize spec. The first failure aborts the request.
func (u *TransferUsecase) Transfer(ctx context.Context, req domain.TransferRequest) (*domain.TransferResult, error) {
	start := time.Now()
	result, err := u.transfer(ctx, req)
	metrics.RecordTransfer(err, time.Since(start).Seconds())
	return result, err
}

func (u *TransferUsecase) transfer(ctx context.Context, req domain.TransferRequest) (*domain.TransferResult, error) {
	format, err := ValidateRequest(req)
	if err != nil {
		zlog.Logger.Warn().Err(err).Str("url", req.SourceURL).Str("blob_name", req.BlobName).Msg("invalid transfer request")
		return nil, err
	}
	for i, spec := range req.ResizeSpecs {
		if err := spec.CheckLimits(u.processor.Limits()); err != nil {
			zlog.Logger.Warn().Err(err).Str("blob_name", req.BlobName).Msg("resize spec over configured limits")
			return nil, fmt.Errorf("resize spec %d: %w", i, err)
		}
	}
	if u.storage == nil {
		return nil, fmt.Errorf("transfer %s: %w", req.BlobName, domain.ErrNotConnected)
	}

	zlog.Logger.Info().
		Str("url", req.SourceURL).
		Str("blob_name", req.BlobName).
		Bool("include_original", req.IncludeOriginal).
		Int("resize_specs", len(req.ResizeSpecs)).
		Msg("starting transfer")

	remote, err := u.fetcher.Fetch(ctx, req.SourceURL)
	if err != nil {
		zlog.Logger.Error().Err(err).Str("url", req.SourceURL).Msg("failed to fetch source image")
		return nil, fmt.Errorf("fetch %s: %w", req.SourceURL, err)
	}
	metrics.FetchedBytes.Observe(float64(len(remote.Data)))

	uris := make([]string, 0, len(req.ResizeSpecs)+1)

	if req.IncludeOriginal {
		uri, err := u.storage.Upload(ctx, req.BlobName, remote.Data, u.originalContentType(remote))
		if err != nil {
			zlog.Logger.Error().Err(err).Str("blob_name", req.BlobName).Msg("failed to upload original")
			return nil, fmt.Errorf("upload original %s from %s: %w", req.BlobName, req.SourceURL, err)
		}
		metrics.BlobsStored.WithLabelValues(u.storage.Name(), "original").Inc()
		uris = append(uris, uri)
	}

	if len(req.ResizeSpecs) > 0 {
		src, err := u.processor.Decode(remote.Data)
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", req.SourceURL, err)
		}

		for _, spec := range req.ResizeSpecs {
			uri, err := u.storeDerivative(ctx, req, src, spec, format)
			if err != nil {
				return nil, err
			}
			uris = append(uris, uri)
		}
	}

	zlog.Logger.Info().
		Str("url", req.SourceURL).
		Str("blob_name", req.BlobName).
		Strs("uris", uris).
		Msg("transfer completed successfully")

	return &domain.TransferResult{URIs: uris}, nil
}

func (u *TransferUsecase) storeDerivative(
	ctx context.Context,
	req domain.TransferRequest,
	src image.Image,
	spec domain.ResizeSpec,
	format processor.Format,
) (string, error) {
	name := DerivedBlobName(req.BlobName, spec)
	dims := processor.GetImageDimensions(src)

	plan, err := processor.PlanWithin(dims, spec, u.processor.Limits())
	if err != nil {
		zlog.Logger.Error().Err(err).Str("blob_name", name).Str("spec", spec.String()).Msg("failed to plan resize")
		return "", fmt.Errorf("plan %s for %dx%d source: %w", name, dims.Width, dims.Height, err)
	}

	resized, err := u.processor.Resize(src, plan, spec)
	if err != nil {
		return "", fmt.Errorf("resize %s: %w", name, err)
	}

	var buf bytes.Buffer
	if err := u.processor.Encode(&buf, resized, format); err != nil {
		return "", fmt.Errorf("encode %s: %w", name, err)
	}

	contentType := format.ContentType()
	if u.legacyContentType {
		contentType = legacyContentType
	}

	uri, err := u.storage.Upload(ctx, name, buf.Bytes(), contentType)
	if err != nil {
		zlog.Logger.Error().Err(err).Str("blob_name", name).Msg("failed to upload derivative")
		return "", fmt.Errorf("upload %s (%dx%d) from %s: %w", name, plan.CanvasWidth, plan.CanvasHeight, req.SourceURL, err)
	}

	metrics.BlobsStored.WithLabelValues(u.storage.Name(), "derivative").Inc()
	zlog.Logger.Info().
		Str("blob_name", name).
		Int("width", plan.CanvasWidth).
		Int("height", plan.CanvasHeight).
		Int("bytes", buf.Len()).
		Str("content_type", contentType).
		Msg("derivative stored")

	return uri, nil
}

// originalContentType sniffs the raw bytes, falling back to the type the
// remote server declared.
func (u *TransferUsecase) originalContentType(remote *domain.RemoteImage) string {
	if u.legacyContentType {
		return legacyContentType
	}
	if detected := mimetype.Detect(remote.Data); strings.HasPrefix(detected.String(), "image/") {
		return detected.String()
	}
	if remote.ContentType != "" {
		return remote.ContentType
	}
	return "application/octet-stream"
}

// ValidateRequest checks req before any network activity and returns the
// output format derived from the blob name extension.
func ValidateRequest(req domain.TransferRequest) (processor.Format, error) {
	if strings.TrimSpace(req.SourceURL) == "" {
		return processor.FormatUnsupported, fmt.Errorf("%w: source url is required", domain.ErrInvalidArgument)
	}
	if strings.TrimSpace(req.BlobName) == "" {
		return processor.FormatUnsupported, fmt.Errorf("%w: blob name is required", domain.ErrInvalidArgument)
	}
	if len(req.ResizeSpecs) == 0 {
		if !req.IncludeOriginal {
			return processor.FormatUnsupported, fmt.Errorf("%w: nothing to transfer, no resize specs and original excluded", domain.ErrInvalidArgument)
		}
		return processor.FormatFromName(req.BlobName), nil
	}

	ext := path.Ext(req.BlobName)
	if ext == "" || ext == "." {
		return processor.FormatUnsupported, fmt.Errorf("%w: blob name %q needs an extension to pick the output format",
			domain.ErrInvalidArgument, req.BlobName)
	}
	format := processor.FormatFromExtension(ext)
	if !format.Supported() {
		return processor.FormatUnsupported, fmt.Errorf("%w: %q", domain.ErrUnsupportedFormat, ext)
	}

	seen := make(map[string]struct{}, len(req.ResizeSpecs))
	for i, spec := range req.ResizeSpecs {
		if err := spec.Validate(); err != nil {
			return processor.FormatUnsupported, fmt.Errorf("resize spec %d: %w", i, err)
		}
		if err := spec.CheckLimits(domain.DefaultGeometryLimits); err != nil {
			return processor.FormatUnsupported, fmt.Errorf("resize spec %d: %w", i, err)
		}
		name := DerivedBlobName(req.BlobName, spec)
		if _, dup := seen[name]; dup {
			return processor.FormatUnsupported, fmt.Errorf("%w: resize spec %d duplicates blob name %q",
				domain.ErrInvalidArgument, i, name)
		}
		seen[name] = struct{}{}
	}
	return format, nil
}

// DerivedBlobName returns "{name}_{width}x{height}{ext}", with "_" in place
// of the height when spec leaves it to be derived.
func DerivedBlobName(blobName string, spec domain.ResizeSpec) string {
	ext := path.Ext(blobName)
	height := autoHeightPlaceholder
	if spec.HasHeight() {
		height = strconv.Itoa(spec.Height)
	}
	return strings.TrimSuffix(blobName, ext) + "_" + strconv.Itoa(spec.Width) + "x" + height + ext
}

package fetcher

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/wb-go/wbf/zlog"
	"github.com/yokitheyo/imagetransfer/internal/config"
	"github.com/yokitheyo/imagetransfer/internal/domain"
)

const defaultUserAgent = "imagetransfer/1.0"

// acceptedStatus lists the statuses treated as a delivered image. Redirects
// are followed by the client, so 301/302 only show up without a Location.
var acceptedStatus = map[int]struct{}{
	http.StatusOK:               {},
	http.StatusMovedPermanently: {},
	http.StatusFound:            {},
}

// Fetcher downloads remote images and rejects responses that are not images,
// such as "200 OK" HTML error pages served by CDNs.
type Fetcher struct {
	client    *http.Client
	maxSize   int64
	userAgent string
	limiter   *hostLimiter
}

func NewFetcher(cfg *config.FetchConfig) *Fetcher {
	return NewFetcherWithClient(&http.Client{Timeout: time.Duration(cfg.TimeoutSec) * time.Second}, cfg)
}

func NewFetcherWithClient(client *http.Client, cfg *config.FetchConfig) *Fetcher {
	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	return &Fetcher{
		client:    client,
		maxSize:   int64(cfg.MaxSizeMB) << 20,
		userAgent: userAgent,
		limiter:   newHostLimiter(time.Duration(cfg.PerHostIntervalMs) * time.Millisecond),
	}
}

// Fetch performs a GET on rawURL and returns the fully read body. Every
// failure, transport or validation, is reported as ErrSourceUnavailable.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*domain.RemoteImage, error) {
	if err := f.limiter.wait(ctx, rawURL); err != nil {
		return nil, fmt.Errorf("%w: wait for %s: %v", domain.ErrSourceUnavailable, rawURL, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build request for %s: %v", domain.ErrSourceUnavailable, rawURL, err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "image/*")

	resp, err := f.client.Do(req)
	if err != nil {
		zlog.Logger.Warn().Err(err).Str("url", rawURL).Msg("remote fetch failed")
		return nil, fmt.Errorf("%w: get %s: %v", domain.ErrSourceUnavailable, rawURL, err)
	}
	defer resp.Body.Close()

	contentType := resp.Header.Get("Content-Type")
	if err := validateResponse(resp.StatusCode, contentType); err != nil {
		zlog.Logger.Warn().
			Str("url", rawURL).
			Int("status", resp.StatusCode).
			Str("content_type", contentType).
			Msg("remote response is not an image")
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrSourceUnavailable, rawURL, err)
	}

	if f.maxSize > 0 && resp.ContentLength > f.maxSize {
		return nil, fmt.Errorf("%w: %s: content length %d exceeds %d bytes",
			domain.ErrSourceUnavailable, rawURL, resp.ContentLength, f.maxSize)
	}

	var body io.Reader = resp.Body
	if f.maxSize > 0 {
		body = io.LimitReader(resp.Body, f.maxSize+1)
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("%w: read body of %s: %v", domain.ErrSourceUnavailable, rawURL, err)
	}
	if f.maxSize > 0 && int64(len(data)) > f.maxSize {
		return nil, fmt.Errorf("%w: %s: body exceeds %d bytes", domain.ErrSourceUnavailable, rawURL, f.maxSize)
	}

	zlog.Logger.Info().
		Str("url", rawURL).
		Str("content_type", contentType).
		Int("size", len(data)).
		Msg("Remote image fetched")

	return &domain.RemoteImage{
		URL:         rawURL,
		ContentType: contentType,
		Data:        data,
		Size:        len(data),
		FetchedAt:   time.Now(),
	}, nil
}

// validateResponse requires an accepted status and an image/* content type.
func validateResponse(status int, contentType string) error {
	if _, ok := acceptedStatus[status]; !ok {
		return fmt.Errorf("unexpected status %d", status)
	}
	if !strings.HasPrefix(strings.ToLower(contentType), "image") {
		return fmt.Errorf("unexpected content type %q", contentType)
	}
	return nil
}

package storage

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/wb-go/wbf/zlog"
	"github.com/yokitheyo/imagetransfer/internal/config"
	"github.com/yokitheyo/imagetransfer/internal/domain"
	"golang.org/x/sync/errgroup"
)

const deleteConcurrency = 4

// Storage is a connected blob store handle. Handles are immutable once
// built and safe for concurrent use.
type Storage interface {
	// Upload stores data under key and returns its public URI.
	Upload(ctx context.Context, key string, data []byte, contentType string) (string, error)
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
	DeleteAll(ctx context.Context, keys ...string) error
	// KeyForURI maps a URI returned by Upload back to its key. It reports
	// false for URIs this handle did not produce.
	KeyForURI(uri string) (string, bool)
	Name() string
}

// Connect validates cfg and builds the backend it selects.
func Connect(ctx context.Context, cfg *config.StorageConfig) (Storage, error) {
	if cfg == nil {
		return nil, fmt.Errorf("%w: storage config is nil", domain.ErrInvalidArgument)
	}
	if err := config.ValidateStorage(cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidArgument, err)
	}

	switch cfg.Type {
	case "local":
		zlog.Logger.Info().Msg("Initializing local storage")
		return NewLocalStorage(cfg)
	case "s3":
		zlog.Logger.Info().Msg("Initializing S3 storage")
		return NewS3Storage(ctx, cfg)
	case "azure":
		zlog.Logger.Info().Msg("Initializing Azure blob storage")
		return NewAzureStorage(ctx, cfg)
	default:
		zlog.Logger.Error().Str("type", cfg.Type).Msg("Unsupported storage type, use 'local', 's3' or 'azure'")
		return nil, fmt.Errorf("%w: unsupported storage type: %s", domain.ErrInvalidArgument, cfg.Type)
	}
}

func validateKey(key string) error {
	if key == "" {
		return fmt.Errorf("%w: blob key is empty", domain.ErrInvalidArgument)
	}
	for _, segment := range strings.Split(key, "/") {
		if segment == ".." {
			return fmt.Errorf("%w: blob key %q escapes the container", domain.ErrInvalidArgument, key)
		}
	}
	return nil
}

// joinURI appends an escaped key to base.
func joinURI(base, key string) string {
	segments := strings.Split(key, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return strings.TrimSuffix(base, "/") + "/" + strings.Join(segments, "/")
}

// keyFromURI inverts joinURI for URIs under base.
func keyFromURI(base, uri string) (string, bool) {
	rest, ok := strings.CutPrefix(uri, strings.TrimSuffix(base, "/")+"/")
	if !ok || rest == "" {
		return "", false
	}
	key, err := url.PathUnescape(rest)
	if err != nil || validateKey(key) != nil {
		return "", false
	}
	return key, true
}

// deleteAll removes keys concurrently. Every delete is attempted; the first
// error is returned.
func deleteAll(ctx context.Context, s Storage, keys []string) error {
	var g errgroup.Group
	g.SetLimit(deleteConcurrency)
	for _, key := range keys {
		if key == "" {
			continue
		}
		key := key
		g.Go(func() error {
			return s.Delete(ctx, key)
		})
	}
	return g.Wait()
}

package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/wb-go/wbf/zlog"
	"github.com/yokitheyo/imagetransfer/internal/config"
	"github.com/yokitheyo/imagetransfer/internal/domain"
)

type localStorage struct {
	root    string
	baseURI string
}

// NewLocalStorage keeps blobs under local_path/container. URIs use
// public_base_url when set and file:// URLs otherwise.
func NewLocalStorage(cfg *config.StorageConfig) (Storage, error) {
	if cfg.LocalPath == "" {
		return nil, fmt.Errorf("LocalPath is empty, set storage.local_path in config or env")
	}

	root, err := filepath.Abs(filepath.Join(cfg.LocalPath, cfg.Container))
	if err != nil {
		return nil, fmt.Errorf("resolve local storage path: %w", err)
	}
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create container directory: %w", err)
	}

	baseURI := cfg.PublicBaseURL
	if baseURI == "" {
		baseURI = "file://" + filepath.ToSlash(root)
	}

	zlog.Logger.Info().Str("root", root).Str("base_uri", baseURI).Msg("Local storage ready")
	return &localStorage{root: root, baseURI: baseURI}, nil
}

func (s *localStorage) Name() string { return "local" }

func (s *localStorage) Upload(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	if s == nil {
		return "", domain.ErrNotConnected
	}
	if err := validateKey(key); err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	fullPath := s.path(key)
	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return "", fmt.Errorf("create directory for %s: %w", key, err)
	}

	if _, err := os.Stat(fullPath); err == nil {
		zlog.Logger.Warn().Str("path", fullPath).Msg("file already exists, will be overwritten")
	}

	if err := os.WriteFile(fullPath, data, 0644); err != nil {
		zlog.Logger.Error().Err(err).Str("path", fullPath).Msg("failed to write file")
		return "", fmt.Errorf("write file %s: %w", fullPath, err)
	}

	uri := joinURI(s.baseURI, key)
	zlog.Logger.Info().
		Str("key", key).
		Str("content_type", contentType).
		Int("bytes", len(data)).
		Str("uri", uri).
		Msg("file saved successfully")

	return uri, nil
}

func (s *localStorage) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	if s == nil {
		return nil, domain.ErrNotConnected
	}
	if err := validateKey(key); err != nil {
		return nil, err
	}

	fullPath := s.path(key)
	file, err := os.Open(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", domain.ErrBlobNotFound, key)
		}
		zlog.Logger.Error().Err(err).Str("path", fullPath).Msg("failed to open file")
		return nil, fmt.Errorf("open file %s: %w", fullPath, err)
	}
	return file, nil
}

func (s *localStorage) Delete(ctx context.Context, key string) error {
	if s == nil {
		return domain.ErrNotConnected
	}
	if key == "" {
		return nil
	}
	if err := validateKey(key); err != nil {
		return err
	}

	fullPath := s.path(key)
	if err := os.Remove(fullPath); err != nil {
		if os.IsNotExist(err) {
			zlog.Logger.Warn().Str("path", fullPath).Msg("file not found, skipping delete")
			return nil
		}
		zlog.Logger.Error().Err(err).Str("path", fullPath).Msg("failed to delete file")
		return fmt.Errorf("delete file %s: %w", fullPath, err)
	}

	zlog.Logger.Info().Str("key", key).Msg("file deleted successfully")
	return nil
}

func (s *localStorage) KeyForURI(uri string) (string, bool) {
	if s == nil {
		return "", false
	}
	return keyFromURI(s.baseURI, uri)
}

func (s *localStorage) DeleteAll(ctx context.Context, keys ...string) error {
	return deleteAll(ctx, s, keys)
}

func (s *localStorage) path(key string) string {
	return filepath.Join(s.root, filepath.FromSlash(key))
}

package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/wb-go/wbf/zlog"
	"github.com/yokitheyo/imagetransfer/internal/config"
	"github.com/yokitheyo/imagetransfer/internal/domain"
)

type s3Storage struct {
	client  *minio.Client
	bucket  string
	baseURI string
}

// NewS3Storage connects to an S3 compatible endpoint and makes sure the
// bucket named by storage.container exists.
func NewS3Storage(ctx context.Context, cfg *config.StorageConfig) (Storage, error) {
	creds := credentials.NewStaticV4(cfg.S3AccessKey, cfg.S3SecretKey, "")
	client, err := minio.New(cfg.S3Endpoint, &minio.Options{
		Creds:  creds,
		Secure: cfg.S3UseSSL,
		Region: cfg.S3Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize s3 client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Container)
	if err != nil {
		return nil, fmt.Errorf("failed to check s3 bucket: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Container, minio.MakeBucketOptions{Region: cfg.S3Region}); err != nil {
			zlog.Logger.Warn().Err(err).Str("bucket", cfg.Container).Msg("unable to create bucket, ensure it exists and credentials are correct")
		} else {
			zlog.Logger.Info().Str("bucket", cfg.Container).Msg("created s3 bucket")
		}
	}

	baseURI := cfg.PublicBaseURL
	if baseURI == "" {
		baseURI = client.EndpointURL().String() + "/" + cfg.Container
	}

	return &s3Storage{
		client:  client,
		bucket:  cfg.Container,
		baseURI: baseURI,
	}, nil
}

func (s *s3Storage) Name() string { return "s3" }

func (s *s3Storage) Upload(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	if s == nil || s.client == nil {
		return "", domain.ErrNotConnected
	}
	if err := validateKey(key); err != nil {
		return "", err
	}

	_, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		zlog.Logger.Error().Err(err).Str("object", key).Msg("failed to put object to s3")
		return "", fmt.Errorf("put object %s: %w", key, err)
	}

	uri := joinURI(s.baseURI, key)
	zlog.Logger.Info().
		Str("object", key).
		Str("content_type", contentType).
		Int("bytes", len(data)).
		Str("uri", uri).
		Msg("object saved to s3")
	return uri, nil
}

func (s *s3Storage) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	if s == nil || s.client == nil {
		return nil, domain.ErrNotConnected
	}
	if err := validateKey(key); err != nil {
		return nil, err
	}

	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		zlog.Logger.Error().Err(err).Str("object", key).Msg("failed to get object")
		return nil, fmt.Errorf("get object %s: %w", key, err)
	}

	if _, err := obj.Stat(); err != nil {
		obj.Close()
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, fmt.Errorf("%w: %s", domain.ErrBlobNotFound, key)
		}
		zlog.Logger.Error().Err(err).Str("object", key).Msg("object inaccessible")
		return nil, fmt.Errorf("stat object %s: %w", key, err)
	}

	return obj, nil
}

func (s *s3Storage) Delete(ctx context.Context, key string) error {
	if s == nil || s.client == nil {
		return domain.ErrNotConnected
	}
	if key == "" {
		return nil
	}
	if err := validateKey(key); err != nil {
		return err
	}
	if err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		zlog.Logger.Error().Err(err).Str("object", key).Msg("failed to delete object from s3")
		return fmt.Errorf("remove object %s: %w", key, err)
	}
	zlog.Logger.Info().Str("object", key).Msg("object deleted from s3")
	return nil
}

func (s *s3Storage) KeyForURI(uri string) (string, bool) {
	if s == nil {
		return "", false
	}
	return keyFromURI(s.baseURI, uri)
}

func (s *s3Storage) DeleteAll(ctx context.Context, keys ...string) error {
	return deleteAll(ctx, s, keys)
}

package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
	"github.com/wb-go/wbf/zlog"
	"github.com/yokitheyo/imagetransfer/internal/config"
	"github.com/yokitheyo/imagetransfer/internal/domain"
)

type azureStorage struct {
	client    *azblob.Client
	container string
	blockSize int64
	baseURI   string
}

// NewAzureStorage authenticates with a connection string or a shared key
// and creates the container with public blob access when it is missing.
func NewAzureStorage(ctx context.Context, cfg *config.StorageConfig) (Storage, error) {
	client, err := newAzureClient(cfg)
	if err != nil {
		return nil, err
	}

	_, err = client.CreateContainer(ctx, cfg.Container, &azblob.CreateContainerOptions{
		Access: to.Ptr(azblob.PublicAccessTypeBlob),
	})
	if err != nil {
		var respErr *azcore.ResponseError
		if errors.As(err, &respErr) && respErr.ErrorCode == string(bloberror.ContainerAlreadyExists) {
			zlog.Logger.Info().Str("container", cfg.Container).Msg("container already exists")
		} else {
			return nil, fmt.Errorf("create container %s: %w", cfg.Container, err)
		}
	} else {
		zlog.Logger.Info().Str("container", cfg.Container).Msg("created azure container")
	}

	baseURI := cfg.PublicBaseURL
	if baseURI == "" {
		baseURI = joinURI(client.URL(), cfg.Container)
	}

	return &azureStorage{
		client:    client,
		container: cfg.Container,
		blockSize: int64(cfg.AzureBlockSizeKB) * 1024,
		baseURI:   baseURI,
	}, nil
}

func newAzureClient(cfg *config.StorageConfig) (*azblob.Client, error) {
	if cfg.AzureConnectionString != "" {
		client, err := azblob.NewClientFromConnectionString(cfg.AzureConnectionString, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize azure client from connection string: %w", err)
		}
		return client, nil
	}

	cred, err := azblob.NewSharedKeyCredential(cfg.AzureAccountName, cfg.AzureAccountKey)
	if err != nil {
		return nil, fmt.Errorf("%w: azure shared key: %v", domain.ErrInvalidArgument, err)
	}

	serviceURL := cfg.AzureServiceURL
	if serviceURL == "" {
		serviceURL = fmt.Sprintf("https://%s.blob.core.windows.net/", cfg.AzureAccountName)
	}
	client, err := azblob.NewClientWithSharedKeyCredential(serviceURL, cred, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize azure client: %w", err)
	}
	return client, nil
}

func (s *azureStorage) Name() string { return "azure" }

func (s *azureStorage) Upload(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	if s == nil || s.client == nil {
		return "", domain.ErrNotConnected
	}
	if err := validateKey(key); err != nil {
		return "", err
	}

	_, err := s.client.UploadStream(ctx, s.container, key, bytes.NewReader(data), &azblob.UploadStreamOptions{
		BlockSize:   s.blockSize,
		HTTPHeaders: &blob.HTTPHeaders{BlobContentType: to.Ptr(contentType)},
	})
	if err != nil {
		zlog.Logger.Error().Err(err).Str("blob", key).Msg("failed to upload blob")
		return "", fmt.Errorf("upload blob %s: %w", key, err)
	}

	uri := joinURI(s.baseURI, key)
	zlog.Logger.Info().
		Str("blob", key).
		Str("content_type", contentType).
		Int("bytes", len(data)).
		Str("uri", uri).
		Msg("blob uploaded to azure")
	return uri, nil
}

func (s *azureStorage) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	if s == nil || s.client == nil {
		return nil, domain.ErrNotConnected
	}
	if err := validateKey(key); err != nil {
		return nil, err
	}

	resp, err := s.client.DownloadStream(ctx, s.container, key, nil)
	if err != nil {
		if bloberror.HasCode(err, bloberror.BlobNotFound, bloberror.ContainerNotFound) {
			return nil, fmt.Errorf("%w: %s", domain.ErrBlobNotFound, key)
		}
		zlog.Logger.Error().Err(err).Str("blob", key).Msg("failed to download blob")
		return nil, fmt.Errorf("download blob %s: %w", key, err)
	}
	return resp.Body, nil
}

func (s *azureStorage) Delete(ctx context.Context, key string) error {
	if s == nil || s.client == nil {
		return domain.ErrNotConnected
	}
	if key == "" {
		return nil
	}
	if err := validateKey(key); err != nil {
		return err
	}

	if _, err := s.client.DeleteBlob(ctx, s.container, key, nil); err != nil {
		if bloberror.HasCode(err, bloberror.BlobNotFound) {
			zlog.Logger.Warn().Str("blob", key).Msg("blob not found, skipping delete")
			return nil
		}
		zlog.Logger.Error().Err(err).Str("blob", key).Msg("failed to delete blob")
		return fmt.Errorf("delete blob %s: %w", key, err)
	}
	zlog.Logger.Info().Str("blob", key).Msg("blob deleted from azure")
	return nil
}

func (s *azureStorage) KeyForURI(uri string) (string, bool) {
	if s == nil {
		return "", false
	}
	return keyFromURI(s.baseURI, uri)
}

func (s *azureStorage) DeleteAll(ctx context.Context, keys ...string) error {
	return deleteAll(ctx, s, keys)
}

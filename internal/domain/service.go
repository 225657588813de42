package domain

import (
	"context"
)

type TransferService interface {
	Transfer(ctx context.Context, req TransferRequest) (*TransferResult, error)
	TransferSingle(ctx context.Context, sourceURL, blobName string) (string, error)
}

type JobService interface {
	SubmitTransfer(ctx context.Context, req TransferRequest) (*Transfer, error)
	GetTransfer(ctx context.Context, id string) (*Transfer, error)
	ListTransfers(ctx context.Context, limit, offset int) ([]*Transfer, error)
	DeleteTransfer(ctx context.Context, id string) error
}

type ProcessorService interface {
	ProcessTransfer(ctx context.Context, transferID string) error
}

type ImageFetcher interface {
	Fetch(ctx context.Context, rawURL string) (*RemoteImage, error)
}

type QueueService interface {
	PublishTransferTask(ctx context.Context, transferID string) error
	Close() error
}

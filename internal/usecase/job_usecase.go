package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/wb-go/wbf/zlog"
	"github.com/yokitheyo/imagetransfer/internal/domain"
	"github.com/yokitheyo/imagetransfer/internal/helpers"
	"github.com/yokitheyo/imagetransfer/internal/infrastructure/storage"
)

type JobUsecase struct {
	repo    domain.TransferRepository
	storage storage.Storage
	queue   domain.QueueService
}

func NewJobUsecase(
	repo domain.TransferRepository,
	storage storage.Storage,
	queue domain.QueueService,
) *JobUsecase {
	return &JobUsecase{
		repo:    repo,
		storage: storage,
		queue:   queue,
	}
}

// SubmitTransfer records a pending transfer and queues it for the worker.
func (u *JobUsecase) SubmitTransfer(ctx context.Context, req domain.TransferRequest) (*domain.Transfer, error) {
	if _, err := ValidateRequest(req); err != nil {
		return nil, err
	}

	now := time.Now()
	transfer := &domain.Transfer{
		ID:              uuid.New().String(),
		SourceURL:       req.SourceURL,
		BlobName:        req.BlobName,
		IncludeOriginal: req.IncludeOriginal,
		ResizeSpecs:     req.ResizeSpecs,
		Status:          domain.StatusPending,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if transfer.ResizeSpecs == nil {
		transfer.ResizeSpecs = []domain.ResizeSpec{}
	}

	if err := u.repo.Create(ctx, transfer); err != nil {
		zlog.Logger.Error().Err(err).Str("transfer_id", transfer.ID).Msg("failed to create transfer record")
		return nil, fmt.Errorf("create transfer: %w", err)
	}

	if err := u.queue.PublishTransferTask(ctx, transfer.ID); err != nil {
		zlog.Logger.Error().Err(err).Str("transfer_id", transfer.ID).Msg("failed to publish transfer task")
	}

	zlog.Logger.Info().
		Str("transfer_id", transfer.ID).
		Str("url", transfer.SourceURL).
		Str("blob_name", transfer.BlobName).
		Msg("transfer submitted")

	return transfer, nil
}

func (u *JobUsecase) GetTransfer(ctx context.Context, id string) (*domain.Transfer, error) {
	return u.repo.FindByID(ctx, id)
}

func (u *JobUsecase) ListTransfers(ctx context.Context, limit, offset int) ([]*domain.Transfer, error) {
	limit = helpers.Clamp(limit, 10, 1, 100)
	if offset < 0 {
		offset = 0
	}

	transfers, err := u.repo.List(ctx, limit, offset)
	if err != nil {
		zlog.Logger.Error().Err(err).Msg("failed to list transfers")
		return nil, err
	}
	return transfers, nil
}

// DeleteTransfer removes the record and the blobs this transfer is known to
// own. Blob names are chosen by callers and may be shared, so only the URIs
// persisted on a completed transfer are considered, and a URI another
// transfer also lists is left in place.
func (u *JobUsecase) DeleteTransfer(ctx context.Context, id string) error {
	transfer, err := u.repo.FindByID(ctx, id)
	if err != nil {
		zlog.Logger.Error().Err(err).Str("transfer_id", id).Msg("failed to find transfer for delete")
		return err
	}
	if transfer.Status == domain.StatusProcessing {
		return fmt.Errorf("delete transfer %s: %w", id, domain.ErrAlreadyProcessing)
	}

	keys, err := u.ownedKeys(ctx, transfer)
	if err != nil {
		return fmt.Errorf("delete transfer %s: %w", id, err)
	}
	if len(keys) > 0 {
		if err := u.storage.DeleteAll(ctx, keys...); err != nil {
			zlog.Logger.Error().Err(err).Str("transfer_id", id).Msg("failed to delete blobs")
		}
	}

	if err := u.repo.Delete(ctx, id); err != nil {
		zlog.Logger.Error().Err(err).Str("transfer_id", id).Msg("failed to delete transfer record")
		return err
	}

	zlog.Logger.Info().Str("transfer_id", id).Strs("blobs", keys).Msg("transfer deleted successfully")
	return nil
}

// ownedKeys lists the blob keys that deleting t may remove. Failed and
// pending transfers own nothing: what a failed run wrote before aborting
// is not recorded.
func (u *JobUsecase) ownedKeys(ctx context.Context, t *domain.Transfer) ([]string, error) {
	if t.Status != domain.StatusCompleted || u.storage == nil {
		return nil, nil
	}

	keys := make([]string, 0, len(t.URIs))
	for _, uri := range t.URIs {
		key, ok := u.storage.KeyForURI(uri)
		if !ok {
			zlog.Logger.Warn().Str("transfer_id", t.ID).Str("uri", uri).Msg("uri not served by current storage, keeping blob")
			continue
		}
		shared, err := u.repo.URIReferenced(ctx, uri, t.ID)
		if err != nil {
			return nil, err
		}
		if shared {
			zlog.Logger.Info().Str("transfer_id", t.ID).Str("uri", uri).Msg("blob shared with another transfer, keeping it")
			continue
		}
		keys = append(keys, key)
	}
	return keys, nil
}

// RequeuePending republishes up to limit pending transfers, newest first.
// It recovers jobs whose publish failed at submit time.
func (u *JobUsecase) RequeuePending(ctx context.Context, limit int) (int, error) {
	const batch = 100

	requeued := 0
	for offset := 0; requeued < limit; offset += batch {
		pending, err := u.repo.FindByStatus(ctx, domain.StatusPending, batch, offset)
		if err != nil {
			return requeued, fmt.Errorf("find pending transfers: %w", err)
		}
		for _, t := range pending {
			if requeued == limit {
				break
			}
			if err := u.queue.PublishTransferTask(ctx, t.ID); err != nil {
				return requeued, fmt.Errorf("requeue transfer %s: %w", t.ID, err)
			}
			requeued++
		}
		if len(pending) < batch {
			break
		}
	}

	if requeued > 0 {
		zlog.Logger.Info().Int("count", requeued).Msg("pending transfers requeued")
	}
	return requeued, nil
}

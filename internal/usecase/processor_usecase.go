package usecase

import (
	"context"
	"fmt"

	"github.com/wb-go/wbf/zlog"
	"github.com/yokitheyo/imagetransfer/internal/domain"
)

type ProcessorUsecase struct {
	repo     domain.TransferRepository
	transfer domain.TransferService
}

func NewProcessorUsecase(repo domain.TransferRepository, transfer domain.TransferService) *ProcessorUsecase {
	return &ProcessorUsecase{
		repo:     repo,
		transfer: transfer,
	}
}

// ProcessTransfer runs a queued transfer and records its outcome.
func (u *ProcessorUsecase) ProcessTransfer(ctx context.Context, transferID string) error {
	transfer, err := u.repo.FindByID(ctx, transferID)
	if err != nil {
		zlog.Logger.Error().Err(err).Str("transfer_id", transferID).Msg("failed to find transfer")
		return fmt.Errorf("find transfer: %w", err)
	}

	if !transfer.CanBeProcessed() {
		zlog.Logger.Warn().
			Str("transfer_id", transferID).
			Str("status", string(transfer.Status)).
			Msg("transfer cannot be processed in current status")
		return nil
	}

	transfer.MarkAsProcessing()
	if err := u.repo.Update(ctx, transfer); err != nil {
		zlog.Logger.Error().Err(err).Str("transfer_id", transferID).Msg("failed to update status to processing")
		return fmt.Errorf("update status to processing: %w", err)
	}

	zlog.Logger.Info().
		Str("transfer_id", transferID).
		Str("url", transfer.SourceURL).
		Int("resize_specs", len(transfer.ResizeSpecs)).
		Msg("starting transfer processing")

	result, err := u.run(ctx, transfer.Request())
	if err != nil {
		transfer.MarkAsFailed(err.Error())
		if updErr := u.repo.Update(ctx, transfer); updErr != nil {
			zlog.Logger.Error().Err(updErr).Str("transfer_id", transferID).Msg("failed to update status to failed")
		}
		zlog.Logger.Error().Err(err).Str("transfer_id", transferID).Msg("transfer failed")
		return fmt.Errorf("process transfer %s: %w", transferID, err)
	}

	transfer.MarkAsCompleted(result.URIs)
	if err := u.repo.Update(ctx, transfer); err != nil {
		zlog.Logger.Error().Err(err).Str("transfer_id", transferID).Msg("failed to update status to completed")
		return fmt.Errorf("update status to completed: %w", err)
	}

	zlog.Logger.Info().
		Str("transfer_id", transferID).
		Strs("uris", result.URIs).
		Msg("transfer processed successfully")

	return nil
}

// run converts a panic inside the pipeline into an error so the transfer is
// marked failed instead of being left in processing.
func (u *ProcessorUsecase) run(ctx context.Context, req domain.TransferRequest) (result *domain.TransferResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			zlog.Logger.Error().Interface("panic", r).Str("blob_name", req.BlobName).Msg("transfer panicked")
			err = fmt.Errorf("transfer panicked: %v", r)
		}
	}()
	return u.transfer.Transfer(ctx, req)
}

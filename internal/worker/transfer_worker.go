package worker

import (
	"context"
	"fmt"

	"github.com/wb-go/wbf/zlog"
	"github.com/yokitheyo/imagetransfer/internal/domain"
	"github.com/yokitheyo/imagetransfer/internal/dto"
	"github.com/yokitheyo/imagetransfer/internal/metrics"
)

// TransferWorker runs queued transfers pulled off Kafka.
type TransferWorker struct {
	processorService domain.ProcessorService
}

func NewTransferWorker(processorService domain.ProcessorService) *TransferWorker {
	return &TransferWorker{
		processorService: processorService,
	}
}

// HandleTransferTask runs one task. Transfers are never retried: a failed run
// is recorded on the transfer and the returned error is for logging only.
// Panics are turned into errors so the consumer loop keeps running.
func (w *TransferWorker) HandleTransferTask(ctx context.Context, task *dto.TransferTask) (err error) {
	if task == nil || task.TransferID == "" {
		return fmt.Errorf("handle transfer task: %w", domain.ErrInvalidArgument)
	}

	defer func() {
		if r := recover(); r != nil {
			metrics.TasksTotal.WithLabelValues("panic").Inc()
			zlog.Logger.Error().
				Str("transfer_id", task.TransferID).
				Interface("panic", r).
				Msg("transfer task panicked")
			err = fmt.Errorf("transfer task %s panicked: %v", task.TransferID, r)
		}
	}()

	zlog.Logger.Info().
		Str("transfer_id", task.TransferID).
		Msg("starting transfer task")

	if err := w.processorService.ProcessTransfer(ctx, task.TransferID); err != nil {
		metrics.TasksTotal.WithLabelValues("failed").Inc()
		zlog.Logger.Error().
			Err(err).
			Str("transfer_id", task.TransferID).
			Msg("failed to process transfer")
		return fmt.Errorf("process transfer %s: %w", task.TransferID, err)
	}

	metrics.TasksTotal.WithLabelValues("done").Inc()
	zlog.Logger.Info().Str("transfer_id", task.TransferID).Msg("transfer task done")
	return nil
}

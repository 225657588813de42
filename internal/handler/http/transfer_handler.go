package http

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"

	"github.com/wb-go/wbf/ginext"
	"github.com/wb-go/wbf/zlog"
	"github.com/yokitheyo/imagetransfer/internal/domain"
	"github.com/yokitheyo/imagetransfer/internal/dto"
	"github.com/yokitheyo/imagetransfer/internal/handler/middleware"
	"github.com/yokitheyo/imagetransfer/internal/helpers"
	"github.com/yokitheyo/imagetransfer/internal/infrastructure/processor"
	"github.com/yokitheyo/imagetransfer/internal/infrastructure/storage"
)

type TransferHandler struct {
	transfers domain.TransferService
	jobs      domain.JobService
	blobs     storage.Storage
}

func NewTransferHandler(transfers domain.TransferService, jobs domain.JobService, blobs storage.Storage) *TransferHandler {
	return &TransferHandler{
		transfers: transfers,
		jobs:      jobs,
		blobs:     blobs,
	}
}

func (h *TransferHandler) RegisterRoutes(engine *ginext.Engine) {
	engine.POST("/transfer", h.Transfer)
	engine.POST("/transfers", h.SubmitTransfer)
	engine.GET("/transfers", h.ListTransfers)
	engine.GET("/transfers/:id", h.GetTransfer)
	engine.DELETE("/transfers/:id", h.DeleteTransfer)
	engine.GET("/blobs/*key", h.GetBlob)
}

// Transfer POST /transfer runs the whole pipeline inside the request.
func (h *TransferHandler) Transfer(c *ginext.Context) {
	var req dto.TransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}

	result, err := h.transfers.Transfer(c.Request.Context(), req.ToDomain())
	if err != nil {
		h.fail(c, err, "transfer failed")
		return
	}

	c.JSON(http.StatusOK, dto.TransferResponse{URIs: result.URIs})
}

// SubmitTransfer POST /transfers queues the transfer for the worker.
func (h *TransferHandler) SubmitTransfer(c *ginext.Context) {
	var req dto.TransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}

	transfer, err := h.jobs.SubmitTransfer(c.Request.Context(), req.ToDomain())
	if err != nil {
		h.fail(c, err, "failed to submit transfer")
		return
	}

	c.JSON(http.StatusAccepted, dto.MapTransferToResponse(transfer, baseURL(c)))
}

// GetTransfer GET /transfers/:id
func (h *TransferHandler) GetTransfer(c *ginext.Context) {
	id := c.Param("id")

	transfer, err := h.jobs.GetTransfer(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err, "failed to get transfer")
		return
	}

	c.JSON(http.StatusOK, dto.MapTransferToResponse(transfer, baseURL(c)))
}

// ListTransfers GET /transfers?limit=&offset=
func (h *TransferHandler) ListTransfers(c *ginext.Context) {
	limit := helpers.Clamp(helpers.AtoiDefault(c.Query("limit"), 10), 10, 1, 100)
	offset := helpers.AtoiDefault(c.Query("offset"), 0)
	if offset < 0 {
		offset = 0
	}

	transfers, err := h.jobs.ListTransfers(c.Request.Context(), limit, offset)
	if err != nil {
		h.fail(c, err, "failed to list transfers")
		return
	}

	c.JSON(http.StatusOK, dto.MapTransfersToResponse(transfers, baseURL(c), limit, offset))
}

// DeleteTransfer DELETE /transfers/:id
func (h *TransferHandler) DeleteTransfer(c *ginext.Context) {
	id := c.Param("id")

	if err := h.jobs.DeleteTransfer(c.Request.Context(), id); err != nil {
		h.fail(c, err, "failed to delete transfer")
		return
	}

	c.Status(http.StatusNoContent)
}

// GetBlob GET /blobs/*key streams a stored blob back out of the store.
func (h *TransferHandler) GetBlob(c *ginext.Context) {
	key := strings.TrimPrefix(c.Param("key"), "/")
	if h.blobs == nil {
		h.fail(c, domain.ErrNotConnected, "blob store unavailable")
		return
	}

	body, err := h.blobs.Get(c.Request.Context(), key)
	if err != nil {
		h.fail(c, err, "failed to get blob")
		return
	}
	defer body.Close()

	c.Header("Content-Type", processor.FormatFromName(key).ContentType())
	c.Header("Content-Disposition", fmt.Sprintf("inline; filename=%q", path.Base(key)))
	c.Status(http.StatusOK)

	written, err := io.Copy(c.Writer, body)
	if err != nil {
		zlog.Logger.Error().
			Err(err).
			Str("key", key).
			Int64("bytes_written", written).
			Msg("failed to write blob to response")
		return
	}
	zlog.Logger.Debug().Str("key", key).Int64("bytes_written", written).Msg("blob sent")
}

func (h *TransferHandler) badRequest(c *ginext.Context, err error) {
	zlog.Logger.Warn().Err(err).Str("request_id", middleware.RequestID(c)).Msg("invalid request body")
	c.JSON(http.StatusBadRequest, dto.ErrorResponse{
		Error:   "invalid_request",
		Message: err.Error(),
		Code:    http.StatusBadRequest,
	})
}

func (h *TransferHandler) fail(c *ginext.Context, err error, msg string) {
	status, code := statusFor(err)
	event := zlog.Logger.Warn()
	if status >= http.StatusInternalServerError {
		event = zlog.Logger.Error()
	}
	event.Err(err).Str("request_id", middleware.RequestID(c)).Int("status", status).Msg(msg)

	message := err.Error()
	if status == http.StatusInternalServerError {
		message = msg
	}
	c.JSON(status, dto.ErrorResponse{
		Error:   code,
		Message: message,
		Code:    status,
	})
}

func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrInvalidArgument):
		return http.StatusBadRequest, "invalid_argument"
	case errors.Is(err, domain.ErrUnsupportedFormat):
		return http.StatusUnprocessableEntity, "unsupported_format"
	case errors.Is(err, domain.ErrInvalidGeometry):
		return http.StatusUnprocessableEntity, "invalid_geometry"
	case errors.Is(err, domain.ErrDecodeFailed):
		return http.StatusUnprocessableEntity, "decode_failed"
	case errors.Is(err, domain.ErrSourceUnavailable):
		return http.StatusBadGateway, "source_unavailable"
	case errors.Is(err, domain.ErrTransferNotFound), errors.Is(err, domain.ErrBlobNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, domain.ErrAlreadyProcessing):
		return http.StatusConflict, "already_processing"
	case errors.Is(err, domain.ErrNotConnected):
		return http.StatusServiceUnavailable, "not_connected"
	default:
		return http.StatusInternalServerError, "server_error"
	}
}

func baseURL(c *ginext.Context) string {
	scheme := "http"
	if c.Request.TLS != nil || c.GetHeader("X-Forwarded-Proto") == "https" {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s", scheme, c.Request.Host)
}

package dto

import (
	"time"

	"github.com/yokitheyo/imagetransfer/internal/domain"
)

type TransferResponse struct {
	URIs []string `json:"uris"`
}

type TransferJobResponse struct {
	ID              string              `json:"id"`
	SourceURL       string              `json:"source_url"`
	BlobName        string              `json:"blob_name"`
	IncludeOriginal bool                `json:"include_original"`
	ResizeSpecs     []domain.ResizeSpec `json:"resize_specs"`
	URIs            []string            `json:"uris,omitempty"`
	Status          string              `json:"status"`
	ErrorMessage    string              `json:"error_message,omitempty"`
	CreatedAt       time.Time           `json:"created_at"`
	UpdatedAt       time.Time           `json:"updated_at"`
	CompletedAt     *time.Time          `json:"completed_at,omitempty"`

	StatusURL string `json:"status_url"`
}

type TransferListResponse struct {
	Transfers []*TransferJobResponse `json:"transfers"`
	Total     int                    `json:"total"`
	Limit     int                    `json:"limit"`
	Offset    int                    `json:"offset"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Code    int    `json:"code,omitempty"`
}

func MapTransferToResponse(t *domain.Transfer, baseURL string) *TransferJobResponse {
	if t == nil {
		return nil
	}

	specs := t.ResizeSpecs
	if specs == nil {
		specs = []domain.ResizeSpec{}
	}

	return &TransferJobResponse{
		ID:              t.ID,
		SourceURL:       t.SourceURL,
		BlobName:        t.BlobName,
		IncludeOriginal: t.IncludeOriginal,
		ResizeSpecs:     specs,
		URIs:            t.URIs,
		Status:          string(t.Status),
		ErrorMessage:    t.ErrorMessage,
		CreatedAt:       t.CreatedAt,
		UpdatedAt:       t.UpdatedAt,
		CompletedAt:     t.CompletedAt,
		StatusURL:       baseURL + "/transfers/" + t.ID,
	}
}

func MapTransfersToResponse(transfers []*domain.Transfer, baseURL string, limit, offset int) *TransferListResponse {
	responses := make([]*TransferJobResponse, 0, len(transfers))
	for _, t := range transfers {
		responses = append(responses, MapTransferToResponse(t, baseURL))
	}

	return &TransferListResponse{
		Transfers: responses,
		Total:     len(responses),
		Limit:     limit,
		Offset:    offset,
	}
}

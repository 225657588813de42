package dto

import "github.com/yokitheyo/imagetransfer/internal/domain"

type ResizeSpecRequest struct {
	Width         int    `json:"width"`
	Height        int    `json:"height"`
	Crop          bool   `json:"crop"`
	Interpolation string `json:"interpolation" binding:"omitempty,oneof=high bicubic bilinear nearest"`
	Smoothing     string `json:"smoothing" binding:"omitempty,oneof=antialias none"`
	Compositing   string `json:"compositing" binding:"omitempty,oneof=high_speed high_quality"`
}

// TransferRequest is the body of POST /transfer and POST /transfers.
// IncludeOriginal defaults to true when omitted.
type TransferRequest struct {
	SourceURL       string              `json:"source_url" binding:"required,url"`
	BlobName        string              `json:"blob_name" binding:"required"`
	IncludeOriginal *bool               `json:"include_original"`
	ResizeSpecs     []ResizeSpecRequest `json:"resize_specs" binding:"omitempty,dive"`
}

func (r *TransferRequest) ToDomain() domain.TransferRequest {
	includeOriginal := true
	if r.IncludeOriginal != nil {
		includeOriginal = *r.IncludeOriginal
	}

	specs := make([]domain.ResizeSpec, 0, len(r.ResizeSpecs))
	for _, s := range r.ResizeSpecs {
		specs = append(specs, domain.ResizeSpec{
			Width:         s.Width,
			Height:        s.Height,
			Crop:          s.Crop,
			Interpolation: domain.Interpolation(s.Interpolation),
			Smoothing:     domain.Smoothing(s.Smoothing),
			Compositing:   domain.Compositing(s.Compositing),
		})
	}

	return domain.TransferRequest{
		SourceURL:       r.SourceURL,
		BlobName:        r.BlobName,
		IncludeOriginal: includeOriginal,
		ResizeSpecs:     specs,
	}
}

// TransferTask is the Kafka message that hands a queued transfer to the worker.
type TransferTask struct {
	TransferID string `json:"transfer_id"`
}

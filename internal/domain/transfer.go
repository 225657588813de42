package domain

import (
	"time"
)

type TransferRequest struct {
	SourceURL       string
	BlobName        string
	ResizeSpecs     []ResizeSpec
	IncludeOriginal bool
}

// TransferResult lists stored URIs: the original first when included,
// then one per resize spec in request order.
type TransferResult struct {
	URIs []string
}

// RemoteImage is a fully buffered, validated HTTP image response.
type RemoteImage struct {
	URL         string
	ContentType string
	Data        []byte
	Size        int
	FetchedAt   time.Time
}

type TransferStatus string

const (
	StatusPending    TransferStatus = "pending"
	StatusProcessing TransferStatus = "processing"
	StatusCompleted  TransferStatus = "completed"
	StatusFailed     TransferStatus = "failed"
)

// Transfer is the persisted record of an asynchronous transfer job.
type Transfer struct {
	ID              string         `json:"id"`
	SourceURL       string         `json:"source_url"`
	BlobName        string         `json:"blob_name"`
	IncludeOriginal bool           `json:"include_original"`
	ResizeSpecs     []ResizeSpec   `json:"resize_specs"`
	URIs            []string       `json:"uris,omitempty"`
	Status          TransferStatus `json:"status"`
	ErrorMessage    string         `json:"error_message,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
	CompletedAt     *time.Time     `json:"completed_at,omitempty"`
}

func (t *Transfer) Request() TransferRequest {
	return TransferRequest{
		SourceURL:       t.SourceURL,
		BlobName:        t.BlobName,
		ResizeSpecs:     t.ResizeSpecs,
		IncludeOriginal: t.IncludeOriginal,
	}
}

func (t *Transfer) IsCompleted() bool {
	return t.Status == StatusCompleted
}

func (t *Transfer) CanBeProcessed() bool {
	return t.Status == StatusPending || t.Status == StatusFailed
}

func (t *Transfer) MarkAsProcessing() {
	t.Status = StatusProcessing
	t.UpdatedAt = time.Now()
}

func (t *Transfer) MarkAsCompleted(uris []string) {
	t.Status = StatusCompleted
	t.URIs = uris
	now := time.Now()
	t.CompletedAt = &now
	t.UpdatedAt = now
	t.ErrorMessage = ""
}

func (t *Transfer) MarkAsFailed(errMsg string) {
	t.Status = StatusFailed
	t.ErrorMessage = errMsg
	t.UpdatedAt = time.Now()
}

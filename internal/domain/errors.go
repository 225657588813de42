package domain

import "errors"

var (
	ErrInvalidArgument   = errors.New("invalid argument")
	ErrSourceUnavailable = errors.New("source image unavailable")
	ErrInvalidGeometry   = errors.New("invalid resize geometry")
	ErrUnsupportedFormat = errors.New("unsupported output format")
	ErrNotConnected      = errors.New("blob store not connected")
	ErrBlobNotFound      = errors.New("blob not found")
	ErrDecodeFailed      = errors.New("failed to decode source image")
	ErrTransferNotFound  = errors.New("transfer not found")
	ErrAlreadyProcessing = errors.New("transfer is already being processed")
)

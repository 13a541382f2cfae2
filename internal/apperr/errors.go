package apperr

import "errors"

var (
	ErrNotFound           = errors.New("not found")
	ErrNamespaceExhausted = errors.New("no free name for destination")
	ErrChecksumMismatch   = errors.New("checksum mismatch after copy")
	ErrDestinationExists  = errors.New("destination already exists")
	ErrInsufficientSpace  = errors.New("insufficient free space")
	ErrDriveMissing       = errors.New("drive path does not exist")
	ErrCancelled          = errors.New("cancelled")
	ErrRunInProgress      = errors.New("organize run already in progress")
	ErrInvalidInput       = errors.New("invalid input")
)

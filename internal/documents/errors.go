package documents

import "errors"

var (
	ErrNotFound     = errors.New("document not found")
	ErrInvalidInput = errors.New("invalid input")
	// ErrOrphanedBlob means the row insert failed and the uploaded blob could
	// not be removed afterwards.
	ErrOrphanedBlob = errors.New("uploaded blob left without metadata")
	// ErrDanglingRow means the blob was deleted but the metadata row was not.
	ErrDanglingRow = errors.New("metadata row left without blob")
)

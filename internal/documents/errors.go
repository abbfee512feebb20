package documents

import "errors"

var (
	ErrNotFound     = errors.New("document not found")
	ErrInvalidInput = errors.New("invalid input")
	// ErrContentUnavailable means the metadata exists but the stored bytes do not.
	ErrContentUnavailable = errors.New("document content unavailable")
)

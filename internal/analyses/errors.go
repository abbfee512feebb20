package analyses

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidStatus     = errors.New("invalid status")
	ErrMalformedArtifact = errors.New("malformed artifact")
)

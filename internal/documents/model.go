package documents

import "time"

// Document is the stored metadata of an uploaded legal document. The raw
// bytes live in the object store under StorageKey.
type Document struct {
	ID              string
	OwnerID         string
	FileName        string
	MimeType        string
	SizeBytes       int64
	StorageProvider string
	StorageKey      string
	CreatedAt       time.Time
}

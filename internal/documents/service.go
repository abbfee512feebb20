package documents

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"

	"legal-backend/internal/shared/storage/object"
	"legal-backend/internal/shared/telemetry"
)

// Service contains business logic for documents.
type Service struct {
	Store           object.ObjectStore
	Repo            DocumentsRepo
	StorageProvider string
}

// Upload saves the file to object storage and records the document.
func (s *Service) Upload(ctx context.Context, ownerID, fileName string, r io.Reader) (Document, error) {
	fileName = strings.TrimSpace(fileName)
	if fileName == "" {
		return Document{}, fmt.Errorf("file name is required: %w", ErrInvalidInput)
	}
	if strings.TrimSpace(ownerID) == "" {
		ownerID = "anonymous"
	}

	storageKey, size, mimeType, err := s.Store.Save(ctx, ownerID, fileName, r)
	if err != nil {
		return Document{}, err
	}

	doc := Document{
		ID:              uuid.NewString(),
		OwnerID:         ownerID,
		FileName:        fileName,
		MimeType:        mimeType,
		SizeBytes:       size,
		StorageProvider: s.StorageProvider,
		StorageKey:      storageKey,
		CreatedAt:       time.Now().UTC(),
	}
	if err := s.Repo.Create(ctx, doc); err != nil {
		// Without a metadata row the blob is unreachable.
		if delErr := s.Store.Delete(context.WithoutCancel(ctx), storageKey); delErr != nil {
			telemetry.Warn("documents.upload.orphan", map[string]any{
				"storage_key": storageKey,
				"error":       delErr.Error(),
			})
		}
		return Document{}, err
	}
	return doc, nil
}

// GetMetadata returns the stored metadata for a document.
func (s *Service) GetMetadata(ctx context.Context, documentID string) (Document, error) {
	if strings.TrimSpace(documentID) == "" {
		return Document{}, fmt.Errorf("document id is required: %w", ErrInvalidInput)
	}
	return s.Repo.GetByID(ctx, documentID)
}

// RawBytes loads the original upload. A missing blob yields ErrContentUnavailable.
func (s *Service) RawBytes(ctx context.Context, doc Document) ([]byte, error) {
	if doc.StorageKey == "" {
		return nil, fmt.Errorf("document %s has no storage key: %w", doc.ID, ErrContentUnavailable)
	}
	data, err := object.ReadAll(ctx, s.Store, doc.StorageKey)
	if err != nil {
		if errors.Is(err, object.ErrNotFound) {
			return nil, fmt.Errorf("document %s: %w", doc.ID, ErrContentUnavailable)
		}
		return nil, fmt.Errorf("document %s: read content: %w", doc.ID, err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("document %s is empty: %w", doc.ID, ErrContentUnavailable)
	}
	return data, nil
}

// List returns an owner's documents newest first.
func (s *Service) List(ctx context.Context, ownerID string, limit, offset int) ([]Document, error) {
	if strings.TrimSpace(ownerID) == "" {
		return nil, fmt.Errorf("owner id is required: %w", ErrInvalidInput)
	}
	return s.Repo.ListByOwner(ctx, ownerID, limit, offset)
}

package analyses

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MemoryRepo is an in-memory implementation of Repo.
type MemoryRepo struct {
	mu        sync.RWMutex
	statuses  map[string]StatusRecord
	artifacts map[string]ArtifactRecord
	now       func() time.Time
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		statuses:  make(map[string]StatusRecord),
		artifacts: make(map[string]ArtifactRecord),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (r *MemoryRepo) GetStatus(ctx context.Context, documentID string) (StatusRecord, error) {
	if err := ctx.Err(); err != nil {
		return StatusRecord{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.statuses[documentID]
	if !ok {
		return StatusRecord{}, ErrNotFound
	}
	if rec.ErrorMessage != nil {
		msg := *rec.ErrorMessage
		rec.ErrorMessage = &msg
	}
	return rec, nil
}

func (r *MemoryRepo) SetStatus(ctx context.Context, documentID string, status Status) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !status.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses[documentID] = StatusRecord{
		DocumentID: documentID,
		Status:     status,
		Progress:   status.Progress(),
		UpdatedAt:  r.now(),
	}
	return nil
}

func (r *MemoryRepo) SetError(ctx context.Context, documentID, message string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	msg := message
	r.statuses[documentID] = StatusRecord{
		DocumentID:   documentID,
		Status:       StatusError,
		Progress:     StatusError.Progress(),
		ErrorMessage: &msg,
		UpdatedAt:    r.now(),
	}
	return nil
}

func (r *MemoryRepo) GetArtifact(ctx context.Context, documentID string) (ArtifactRecord, error) {
	if err := ctx.Err(); err != nil {
		return ArtifactRecord{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.artifacts[documentID]
	if !ok {
		return ArtifactRecord{}, ErrNotFound
	}
	return rec, nil
}

// UpsertArtifact replaces the stored record, keeping the original CreatedAt.
func (r *MemoryRepo) UpsertArtifact(ctx context.Context, rec ArtifactRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now()
	if prev, ok := r.artifacts[rec.DocumentID]; ok {
		rec.CreatedAt = prev.CreatedAt
	} else if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now
	r.artifacts[rec.DocumentID] = rec
	return nil
}

func (r *MemoryRepo) DeleteArtifact(ctx context.Context, documentID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.artifacts, documentID)
	return nil
}

var _ Repo = (*MemoryRepo)(nil)

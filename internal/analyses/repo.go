package analyses

import "context"

// Repo persists per-document status and analysis artifacts.
type Repo interface {
	GetStatus(ctx context.Context, documentID string) (StatusRecord, error)
	// SetStatus stores status with its checkpoint progress and clears any error message.
	SetStatus(ctx context.Context, documentID string, status Status) error
	// SetError stores status=error, progress=0 and the message.
	SetError(ctx context.Context, documentID, message string) error
	GetArtifact(ctx context.Context, documentID string) (ArtifactRecord, error)
	UpsertArtifact(ctx context.Context, rec ArtifactRecord) error
	DeleteArtifact(ctx context.Context, documentID string) error
}

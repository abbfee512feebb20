package analyses

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryRepoStatusLifecycle(t *testing.T) {
	repo := NewMemoryRepo()
	ctx := context.Background()

	_, err := repo.GetStatus(ctx, "doc-1")
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, repo.SetStatus(ctx, "doc-1", StatusAnalyzing))
	rec, err := repo.GetStatus(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, StatusAnalyzing, rec.Status)
	assert.Equal(t, 60, rec.Progress)
	assert.Nil(t, rec.ErrorMessage)

	require.NoError(t, repo.SetError(ctx, "doc-1", "boom"))
	rec, err = repo.GetStatus(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, StatusError, rec.Status)
	assert.Equal(t, 0, rec.Progress)
	require.NotNil(t, rec.ErrorMessage)
	assert.Equal(t, "boom", *rec.ErrorMessage)

	require.NoError(t, repo.SetStatus(ctx, "doc-1", StatusOCR))
	rec, err = repo.GetStatus(ctx, "doc-1")
	require.NoError(t, err)
	assert.Nil(t, rec.ErrorMessage)

	assert.ErrorIs(t, repo.SetStatus(ctx, "doc-1", Status("bogus")), ErrInvalidStatus)
}

func TestMemoryRepoArtifactUpsertKeepsCreatedAt(t *testing.T) {
	repo := NewMemoryRepo()
	ctx := context.Background()
	first := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	second := first.Add(time.Minute)
	calls := 0
	repo.now = func() time.Time {
		calls++
		if calls == 1 {
			return first
		}
		return second
	}

	require.NoError(t, repo.UpsertArtifact(ctx, ArtifactRecord{DocumentID: "doc-1", Original: json.RawMessage(`"a"`)}))
	require.NoError(t, repo.UpsertArtifact(ctx, ArtifactRecord{DocumentID: "doc-1", Original: json.RawMessage(`"b"`)}))

	rec, err := repo.GetArtifact(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, first, rec.CreatedAt)
	assert.Equal(t, second, rec.UpdatedAt)
	assert.JSONEq(t, `"b"`, string(rec.Original))

	require.NoError(t, repo.DeleteArtifact(ctx, "doc-1"))
	_, err = repo.GetArtifact(ctx, "doc-1")
	assert.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, repo.DeleteArtifact(ctx, "doc-1"))
}

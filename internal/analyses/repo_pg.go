package analyses

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

func (r *PGRepo) GetStatus(ctx context.Context, documentID string) (StatusRecord, error) {
	const query = `
SELECT document_id, status, progress, error_message, updated_at
FROM document_status
WHERE document_id = $1`

	var (
		rec    StatusRecord
		status string
		errMsg sql.NullString
	)
	err := r.DB.QueryRowContext(ctx, query, documentID).Scan(&rec.DocumentID, &status, &rec.Progress, &errMsg, &rec.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return StatusRecord{}, ErrNotFound
		}
		return StatusRecord{}, err
	}
	rec.Status = Status(status)
	if errMsg.Valid {
		msg := errMsg.String
		rec.ErrorMessage = &msg
	}
	return rec, nil
}

const upsertStatusQuery = `
INSERT INTO document_status (document_id, status, progress, error_message, updated_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (document_id) DO UPDATE SET
    status = EXCLUDED.status,
    progress = EXCLUDED.progress,
    error_message = EXCLUDED.error_message,
    updated_at = EXCLUDED.updated_at`

func (r *PGRepo) SetStatus(ctx context.Context, documentID string, status Status) error {
	if !status.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
	_, err := r.DB.ExecContext(ctx, upsertStatusQuery, documentID, string(status), status.Progress(), nil, time.Now().UTC())
	return err
}

func (r *PGRepo) SetError(ctx context.Context, documentID, message string) error {
	_, err := r.DB.ExecContext(ctx, upsertStatusQuery, documentID, string(StatusError), StatusError.Progress(), message, time.Now().UTC())
	return err
}

func (r *PGRepo) GetArtifact(ctx context.Context, documentID string) (ArtifactRecord, error) {
	const query = `
SELECT document_id, document_type, original, translated, checklist, report, created_at, updated_at
FROM analysis_artifacts
WHERE document_id = $1`

	var (
		rec     ArtifactRecord
		docType sql.NullString
	)
	var original, translated, checklist, report []byte
	err := r.DB.QueryRowContext(ctx, query, documentID).Scan(
		&rec.DocumentID,
		&docType,
		&original,
		&translated,
		&checklist,
		&report,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ArtifactRecord{}, ErrNotFound
		}
		return ArtifactRecord{}, err
	}
	if docType.Valid {
		rec.Type = docType.String
	}
	rec.Original = json.RawMessage(original)
	rec.Translated = json.RawMessage(translated)
	rec.Checklist = json.RawMessage(checklist)
	rec.Report = json.RawMessage(report)
	return rec, nil
}

func (r *PGRepo) UpsertArtifact(ctx context.Context, rec ArtifactRecord) error {
	const query = `
INSERT INTO analysis_artifacts (document_id, document_type, original, translated, checklist, report, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
ON CONFLICT (document_id) DO UPDATE SET
    document_type = EXCLUDED.document_type,
    original = EXCLUDED.original,
    translated = EXCLUDED.translated,
    checklist = EXCLUDED.checklist,
    report = EXCLUDED.report,
    updated_at = EXCLUDED.updated_at`

	_, err := r.DB.ExecContext(ctx, query,
		rec.DocumentID,
		nullString(rec.Type),
		nullJSON(rec.Original),
		nullJSON(rec.Translated),
		nullJSON(rec.Checklist),
		nullJSON(rec.Report),
		time.Now().UTC(),
	)
	return err
}

func (r *PGRepo) DeleteArtifact(ctx context.Context, documentID string) error {
	_, err := r.DB.ExecContext(ctx, `DELETE FROM analysis_artifacts WHERE document_id = $1`, documentID)
	return err
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullJSON(raw json.RawMessage) any {
	if isAbsent(raw) {
		return nil
	}
	return string(raw)
}

var _ Repo = (*PGRepo)(nil)

package pipeline

import (
	"context"
	"errors"
	"fmt"

	"legal-backend/internal/analyses"
	"legal-backend/internal/stages"
)

// RegenerateReportOnly rebuilds the report of id from its stored analysis
// without touching the upload. prior may be nil, in which case it is loaded.
func (o *Orchestrator) RegenerateReportOnly(ctx context.Context, documentID, instructions string, prior *analyses.ArtifactRecord) error {
	run := Run{Kind: KindRegenerate, Targets: []string{documentID}, Instructions: instructions}
	if err := run.Validate(); err != nil {
		return err
	}
	return o.guarded(ctx, run, o.runTimeout, func(ctx context.Context) error {
		return o.regenerate(ctx, documentID, instructions, prior)
	})
}

// regenerate expects the caller to hold the guard and a slot for id.
func (o *Orchestrator) regenerate(ctx context.Context, id, instructions string, prior *analyses.ArtifactRecord) error {
	var rec analyses.ArtifactRecord
	if prior != nil {
		rec = *prior
	} else {
		loaded, err := o.repo.GetArtifact(ctx, id)
		if err != nil {
			if errors.Is(err, analyses.ErrNotFound) {
				return fmt.Errorf("%w: %s", ErrNoPriorAnalysis, id)
			}
			return fmt.Errorf("load prior analysis of %s: %w", id, err)
		}
		rec = loaded
	}

	artifact, err := rec.Decode()
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrNoPriorAnalysis, id, err)
	}
	if !artifact.HasSourceMaterial() {
		return fmt.Errorf("%w: %s has no extracted or translated text", ErrNoPriorAnalysis, id)
	}
	checklist := artifact.Checklist
	if checklist == nil {
		checklist = analyses.UnspecializedChecklist(artifact.Type)
	}

	if _, err := o.loadDocument(ctx, id); err != nil {
		return err
	}

	if err := o.setStatus(ctx, id, analyses.StatusGeneratingReport); err != nil {
		return err
	}
	report, err := runStage(ctx, analyses.StatusGeneratingReport, id, func(ctx context.Context) (*analyses.Report, error) {
		return o.stages.SynthesizeReport(ctx, stages.ReportInput{
			DocumentType: artifact.Type,
			Original:     artifact.Original.Text,
			Clauses:      artifact.Translated,
			Checklist:    checklist,
			Instructions: instructions,
			Documents:    artifact.Original.Documents,
		})
	})
	if err != nil {
		return err
	}

	if err := o.setStatus(ctx, id, analyses.StatusSaving); err != nil {
		return err
	}
	encoded, err := analyses.NewArtifactRecord(analyses.Artifact{DocumentID: id, Report: report})
	if err != nil {
		return err
	}
	updated := rec
	updated.DocumentID = id
	updated.Report = encoded.Report
	if err := o.repo.UpsertArtifact(ctx, updated); err != nil {
		return fmt.Errorf("save analysis of %s: %w", id, err)
	}

	return o.setStatus(ctx, id, analyses.StatusCompleted)
}

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"legal-backend/internal/analyses"
	"legal-backend/internal/documents"
)

// conjointInstruction is appended to every conjoint run's instructions.
const conjointInstruction = "These documents are analyzed together as one transaction. " +
	"Check them for consistency with each other: conflicting terms, mismatched parties, " +
	"dates or amounts, and obligations in one document that another contradicts or omits. " +
	"Record cross-document findings in crossDocumentNotes and cite the document number."

// RunConjoint analyzes several documents as one. The first id is the primary
// and receives the full result; the others receive a stub pointing at it.
func (o *Orchestrator) RunConjoint(ctx context.Context, documentIDs []string, instructions string) error {
	run := Run{Kind: KindConjoint, Targets: documentIDs, Instructions: instructions}
	if err := run.Validate(); err != nil {
		return err
	}
	budget := o.conjointPerDoc * time.Duration(len(documentIDs))
	return o.guarded(ctx, run, budget, func(ctx context.Context) error {
		return o.runConjoint(ctx, run)
	})
}

func (o *Orchestrator) runConjoint(ctx context.Context, run Run) error {
	primary := run.Primary()

	docs := make([]documents.Document, 0, len(run.Targets))
	for _, id := range run.Targets {
		doc, err := o.loadDocument(ctx, id)
		if err != nil {
			return err
		}
		docs = append(docs, doc)
	}

	// Secondaries keep their prior analysis and status until the stubs
	// replace them, so a failed run leaves them as they were.
	if err := o.repo.DeleteArtifact(ctx, primary); err != nil {
		return fmt.Errorf("delete prior analysis of %s: %w", primary, err)
	}

	if err := o.setStatus(ctx, primary, analyses.StatusOCR); err != nil {
		return err
	}
	var merged strings.Builder
	sources := make([]analyses.SourceDocument, 0, len(docs))
	for i, doc := range docs {
		data, err := o.docs.RawBytes(ctx, doc)
		if err != nil {
			if errors.Is(err, documents.ErrContentUnavailable) {
				return fmt.Errorf("%w: %s", ErrUnreadableSource, doc.ID)
			}
			return fmt.Errorf("load content of %s: %w", doc.ID, err)
		}
		text, err := runStage(ctx, analyses.StatusOCR, doc.ID, func(ctx context.Context) (string, error) {
			return o.stages.ExtractText(ctx, data, doc.MimeType, doc.FileName)
		})
		if err != nil {
			return err
		}
		if i > 0 {
			merged.WriteString("\n\n")
		}
		fmt.Fprintf(&merged, "=== Document %d: %s (id: %s) ===\n", i+1, doc.FileName, doc.ID)
		merged.WriteString(text)
		sources = append(sources, analyses.SourceDocument{ID: doc.ID, FileName: doc.FileName})
	}

	text := merged.String()
	artifact := analyses.Artifact{
		DocumentID: primary,
		Original: &analyses.Original{
			Text:      text,
			Documents: sources,
		},
	}
	if err := o.saveArtifact(ctx, artifact); err != nil {
		return err
	}

	if err := o.analyze(ctx, &artifact, text, conjointInstructions(run.Instructions), sources); err != nil {
		return err
	}

	for _, id := range run.Targets[1:] {
		if err := o.repo.DeleteArtifact(ctx, id); err != nil {
			return fmt.Errorf("delete prior analysis of %s: %w", id, err)
		}
		stub := analyses.Artifact{
			DocumentID: id,
			Original: &analyses.Original{
				IsPartOfConjointAnalysis: true,
				PrimaryDocumentID:        primary,
			},
		}
		if err := o.saveArtifact(ctx, stub); err != nil {
			return err
		}
		if err := o.setStatus(ctx, id, analyses.StatusCompleted); err != nil {
			return err
		}
	}
	return o.setStatus(ctx, primary, analyses.StatusCompleted)
}

func conjointInstructions(user string) string {
	user = strings.TrimSpace(user)
	if user == "" {
		return conjointInstruction
	}
	return user + "\n\n" + conjointInstruction
}

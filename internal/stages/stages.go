// Package stages holds the per-document processing steps the pipeline
// orchestrator drives: text extraction and the LLM-backed translation,
// classification, domain analysis and report synthesis.
package stages

import (
	"context"

	"legal-backend/internal/analyses"
)

// ReportInput is everything the report stage sees.
type ReportInput struct {
	DocumentType string
	// Original is the extracted source text. Conjoint runs pass the merged
	// text with its per-document delimiters.
	Original     string
	Clauses      []analyses.Clause
	Checklist    *analyses.Checklist
	Instructions string
	// Documents lists the merged sources of a conjoint run; empty for a single document.
	Documents []analyses.SourceDocument
}

// Stages is the set of processing steps. Every call must honor ctx.
type Stages interface {
	ExtractText(ctx context.Context, data []byte, mimeType, fileName string) (string, error)
	TranslateAndStructure(ctx context.Context, text string) ([]analyses.Clause, error)
	Classify(ctx context.Context, clauses []analyses.Clause) (string, error)
	DomainAnalyze(ctx context.Context, docType string, clauses []analyses.Clause) (*analyses.Checklist, error)
	SynthesizeReport(ctx context.Context, in ReportInput) (*analyses.Report, error)
}

package stages

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"legal-backend/internal/analyses"
	"legal-backend/internal/extract"
	"legal-backend/internal/llm"
)

// LLMStages implements Stages with local text extraction and one LLM call
// per remaining step.
type LLMStages struct {
	llm       llm.Client
	analyzers *Registry
}

// NewLLMStages wraps client with a single transient-error retry. A nil
// registry means DefaultRegistry.
func NewLLMStages(client llm.Client, analyzers *Registry) *LLMStages {
	if analyzers == nil {
		analyzers = DefaultRegistry()
	}
	return &LLMStages{llm: newRetryingLLM(client), analyzers: analyzers}
}

func (s *LLMStages) ExtractText(ctx context.Context, data []byte, mimeType, fileName string) (string, error) {
	return extract.ExtractTextFromBytes(ctx, data, mimeType, fileName)
}

func (s *LLMStages) TranslateAndStructure(ctx context.Context, text string) ([]analyses.Clause, error) {
	var out struct {
		Clauses []analyses.Clause `json:"clauses"`
	}
	if err := s.complete(ctx, llm.TaskTranslate, text, &out); err != nil {
		return nil, err
	}
	for i := range out.Clauses {
		out.Clauses[i].Index = i
	}
	return out.Clauses, nil
}

func (s *LLMStages) Classify(ctx context.Context, clauses []analyses.Clause) (string, error) {
	var out struct {
		Type string `json:"type"`
	}
	if err := s.complete(ctx, llm.TaskClassify, renderClauses(clauses), &out); err != nil {
		return "", err
	}
	docType := NormalizeType(out.Type)
	if docType == "" {
		docType = "other"
	}
	return docType, nil
}

// DomainAnalyze runs the registered analyzer for docType. Types without one
// get the unspecialized checklist and no LLM call is made.
func (s *LLMStages) DomainAnalyze(ctx context.Context, docType string, clauses []analyses.Clause) (*analyses.Checklist, error) {
	analyzer, ok := s.analyzers.Lookup(docType)
	if !ok {
		return analyses.UnspecializedChecklist(docType), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Document type: %s\n\nRequirements:\n", analyzer.DocumentType)
	for i, req := range analyzer.Requirements {
		fmt.Fprintf(&b, "%d. %s\n", i+1, req)
	}
	b.WriteString("\nClauses:\n")
	b.WriteString(renderClauses(clauses))

	var out struct {
		Items []analyses.ChecklistItem `json:"items"`
	}
	if err := s.complete(ctx, llm.TaskAnalyze, b.String(), &out); err != nil {
		return nil, err
	}
	return &analyses.Checklist{
		Kind:         analyses.ChecklistSpecialized,
		DocumentType: analyzer.DocumentType,
		Items:        out.Items,
	}, nil
}

func (s *LLMStages) SynthesizeReport(ctx context.Context, in ReportInput) (*analyses.Report, error) {
	checklist, err := json.Marshal(in.Checklist)
	if err != nil {
		return nil, fmt.Errorf("encode checklist: %w", err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Document type: %s\n", in.DocumentType)
	if len(in.Documents) > 0 {
		b.WriteString("Documents analyzed together:\n")
		for i, d := range in.Documents {
			fmt.Fprintf(&b, "%d. %s (id: %s)\n", i+1, d.FileName, d.ID)
		}
	}
	if strings.TrimSpace(in.Instructions) != "" {
		fmt.Fprintf(&b, "\nReviewer instructions:\n%s\n", in.Instructions)
	}
	fmt.Fprintf(&b, "\nChecklist:\n%s\n\nClauses:\n", checklist)
	b.WriteString(renderClauses(in.Clauses))
	if strings.TrimSpace(in.Original) != "" {
		fmt.Fprintf(&b, "\n\nOriginal text:\n%s", in.Original)
	}

	var report analyses.Report
	if err := s.complete(ctx, llm.TaskReport, b.String(), &report); err != nil {
		return nil, err
	}
	if report.Findings == nil {
		report.Findings = []analyses.Finding{}
	}
	if report.Recommendations == nil {
		report.Recommendations = []string{}
	}
	return &report, nil
}

func (s *LLMStages) complete(ctx context.Context, task llm.Task, user string, dst any) error {
	if s.llm == nil {
		return llm.ErrNotImplemented
	}
	system, _ := llm.SystemPrompt(task)
	raw, err := s.llm.CompleteJSON(ctx, llm.Request{Task: task, System: system, User: user})
	if err != nil {
		return fmt.Errorf("%s: %w", task, err)
	}
	if err := validateOutput(task, raw); err != nil {
		return err
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("%s: decode output: %w", task, err)
	}
	return nil
}

func renderClauses(clauses []analyses.Clause) string {
	var b strings.Builder
	for _, c := range clauses {
		if c.Heading != "" {
			fmt.Fprintf(&b, "[%d] %s\n%s\n\n", c.Index, c.Heading, c.Text)
			continue
		}
		fmt.Fprintf(&b, "[%d] %s\n\n", c.Index, c.Text)
	}
	return strings.TrimSpace(b.String())
}

var _ Stages = (*LLMStages)(nil)

package analyses

import "time"

// Artifact is the structured analysis output for one document.
type Artifact struct {
	DocumentID string     `json:"documentId"`
	Type       string     `json:"type,omitempty"`
	Original   *Original  `json:"original,omitempty"`
	Translated []Clause   `json:"translated,omitempty"`
	Checklist  *Checklist `json:"checklist,omitempty"`
	Report     *Report    `json:"report,omitempty"`
	CreatedAt  time.Time  `json:"createdAt"`
	UpdatedAt  time.Time  `json:"updatedAt"`
}

// HasSourceMaterial reports whether the report can be rebuilt without the raw upload.
func (a Artifact) HasSourceMaterial() bool {
	return a.Original != nil && len(a.Translated) > 0
}

// Original is the extracted source text. Conjoint primaries also carry the
// index of merged documents; conjoint secondaries carry only the back-reference.
type Original struct {
	Text                     string           `json:"text"`
	Documents                []SourceDocument `json:"documents,omitempty"`
	IsPartOfConjointAnalysis bool             `json:"isPartOfConjointAnalysis,omitempty"`
	PrimaryDocumentID        string           `json:"primaryDocumentId,omitempty"`
}

type SourceDocument struct {
	ID       string `json:"id"`
	FileName string `json:"fileName"`
}

// Clause is one structured, translated section of the source.
type Clause struct {
	Index            int    `json:"index"`
	Heading          string `json:"heading,omitempty"`
	Text             string `json:"text"`
	OriginalLanguage string `json:"originalLanguage,omitempty"`
}

type ChecklistKind string

const (
	ChecklistSpecialized   ChecklistKind = "specialized"
	ChecklistUnspecialized ChecklistKind = "unspecialized"
)

type ItemStatus string

const (
	ItemSatisfied ItemStatus = "satisfied"
	ItemMissing   ItemStatus = "missing"
	ItemRisk      ItemStatus = "risk"
)

// Checklist is either a type-specific compliance checklist or a passthrough
// placeholder for document types without a dedicated analyzer. Kind selects
// which fields are meaningful.
type Checklist struct {
	Kind         ChecklistKind   `json:"kind"`
	DocumentType string          `json:"documentType,omitempty"`
	Items        []ChecklistItem `json:"items,omitempty"`
	Note         string          `json:"note,omitempty"`
}

type ChecklistItem struct {
	Requirement string     `json:"requirement"`
	Status      ItemStatus `json:"status"`
	ClauseRefs  []int      `json:"clauseRefs,omitempty"`
	Comment     string     `json:"comment,omitempty"`
}

// UnspecializedChecklist is the placeholder used when no analyzer covers docType.
func UnspecializedChecklist(docType string) *Checklist {
	return &Checklist{
		Kind:         ChecklistUnspecialized,
		DocumentType: docType,
		Note:         "no specialized checklist for this document type",
	}
}

// Report is the final synthesized analysis.
type Report struct {
	Summary            string    `json:"summary"`
	Findings           []Finding `json:"findings"`
	Recommendations    []string  `json:"recommendations"`
	CrossDocumentNotes []string  `json:"crossDocumentNotes,omitempty"`
}

type Finding struct {
	Title      string `json:"title"`
	Severity   string `json:"severity"`
	Detail     string `json:"detail"`
	ClauseRefs []int  `json:"clauseRefs,omitempty"`
}

package pipeline

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"legal-backend/internal/analyses"
	"legal-backend/internal/documents"
	"legal-backend/internal/stages"
)

type fakeDocs struct {
	mu      sync.Mutex
	docs    map[string]documents.Document
	content map[string][]byte
}

func newFakeDocs() *fakeDocs {
	return &fakeDocs{docs: map[string]documents.Document{}, content: map[string][]byte{}}
}

func (f *fakeDocs) add(id, fileName, content string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.docs[id] = documents.Document{
		ID:         id,
		OwnerID:    "anonymous",
		FileName:   fileName,
		MimeType:   "text/plain",
		StorageKey: "anonymous/" + id,
		CreatedAt:  time.Now().UTC(),
	}
	if content != "" {
		f.content[id] = []byte(content)
	}
}

func (f *fakeDocs) remove(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.docs, id)
	delete(f.content, id)
}

func (f *fakeDocs) GetMetadata(ctx context.Context, id string) (documents.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, ok := f.docs[id]
	if !ok {
		return documents.Document{}, documents.ErrNotFound
	}
	return doc, nil
}

func (f *fakeDocs) RawBytes(ctx context.Context, doc documents.Document) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.content[doc.ID]
	if !ok {
		return nil, documents.ErrContentUnavailable
	}
	return data, nil
}

// fakeStages records which stages ran. Unset hooks fall back to
// deterministic defaults built from the input.
type fakeStages struct {
	mu         sync.Mutex
	calls      []string
	lastReport stages.ReportInput

	extract   func(ctx context.Context, data []byte, mimeType, fileName string) (string, error)
	translate func(ctx context.Context, text string) ([]analyses.Clause, error)
	classify  func(ctx context.Context, clauses []analyses.Clause) (string, error)
	analyze   func(ctx context.Context, docType string, clauses []analyses.Clause) (*analyses.Checklist, error)
	report    func(ctx context.Context, in stages.ReportInput) (*analyses.Report, error)
}

func (s *fakeStages) record(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, name)
}

func (s *fakeStages) callNames() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

func (s *fakeStages) reportInput() stages.ReportInput {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastReport
}

func (s *fakeStages) ExtractText(ctx context.Context, data []byte, mimeType, fileName string) (string, error) {
	s.record("extract")
	if s.extract != nil {
		return s.extract(ctx, data, mimeType, fileName)
	}
	return string(data), nil
}

func (s *fakeStages) TranslateAndStructure(ctx context.Context, text string) ([]analyses.Clause, error) {
	s.record("translate")
	if s.translate != nil {
		return s.translate(ctx, text)
	}
	return []analyses.Clause{{Index: 0, Text: strings.TrimSpace(text)}}, nil
}

func (s *fakeStages) Classify(ctx context.Context, clauses []analyses.Clause) (string, error) {
	s.record("classify")
	if s.classify != nil {
		return s.classify(ctx, clauses)
	}
	return "lease", nil
}

func (s *fakeStages) DomainAnalyze(ctx context.Context, docType string, clauses []analyses.Clause) (*analyses.Checklist, error) {
	s.record("analyze")
	if s.analyze != nil {
		return s.analyze(ctx, docType, clauses)
	}
	return &analyses.Checklist{
		Kind:         analyses.ChecklistSpecialized,
		DocumentType: docType,
		Items: []analyses.ChecklistItem{
			{Requirement: "Rent amount", Status: analyses.ItemSatisfied, ClauseRefs: []int{0}},
		},
	}, nil
}

func (s *fakeStages) SynthesizeReport(ctx context.Context, in stages.ReportInput) (*analyses.Report, error) {
	s.record("report")
	s.mu.Lock()
	s.lastReport = in
	s.mu.Unlock()
	if s.report != nil {
		return s.report(ctx, in)
	}
	return &analyses.Report{Summary: "report for " + in.DocumentType, Findings: []analyses.Finding{}, Recommendations: []string{}}, nil
}

type checkpoint struct {
	Status    analyses.Status
	Progress  int
	HasReport bool
}

// recordingRepo notes every status write along with whether the stored
// artifact carried a report at that moment.
type recordingRepo struct {
	*analyses.MemoryRepo
	mu          sync.Mutex
	checkpoints map[string][]checkpoint
}

func newRecordingRepo() *recordingRepo {
	return &recordingRepo{MemoryRepo: analyses.NewMemoryRepo(), checkpoints: map[string][]checkpoint{}}
}

func (r *recordingRepo) hasReport(ctx context.Context, id string) bool {
	rec, err := r.MemoryRepo.GetArtifact(ctx, id)
	return err == nil && len(rec.Report) > 0
}

func (r *recordingRepo) SetStatus(ctx context.Context, id string, status analyses.Status) error {
	if err := r.MemoryRepo.SetStatus(ctx, id, status); err != nil {
		return err
	}
	cp := checkpoint{Status: status, Progress: status.Progress(), HasReport: r.hasReport(ctx, id)}
	r.mu.Lock()
	r.checkpoints[id] = append(r.checkpoints[id], cp)
	r.mu.Unlock()
	return nil
}

func (r *recordingRepo) SetError(ctx context.Context, id, message string) error {
	if err := r.MemoryRepo.SetError(ctx, id, message); err != nil {
		return err
	}
	cp := checkpoint{Status: analyses.StatusError, Progress: 0, HasReport: r.hasReport(ctx, id)}
	r.mu.Lock()
	r.checkpoints[id] = append(r.checkpoints[id], cp)
	r.mu.Unlock()
	return nil
}

func (r *recordingRepo) progressOf(id string) []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]int, 0, len(r.checkpoints[id]))
	for _, cp := range r.checkpoints[id] {
		out = append(out, cp.Progress)
	}
	return out
}

func (r *recordingRepo) checkpointsOf(id string) []checkpoint {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]checkpoint(nil), r.checkpoints[id]...)
}

func (r *recordingRepo) seed(t *testing.T, a analyses.Artifact) analyses.ArtifactRecord {
	t.Helper()
	rec, err := analyses.NewArtifactRecord(a)
	require.NoError(t, err)
	require.NoError(t, r.UpsertArtifact(context.Background(), rec))
	stored, err := r.GetArtifact(context.Background(), a.DocumentID)
	require.NoError(t, err)
	return stored
}

func (r *recordingRepo) artifact(t *testing.T, id string) analyses.Artifact {
	t.Helper()
	rec, err := r.GetArtifact(context.Background(), id)
	require.NoError(t, err)
	a, err := rec.Decode()
	require.NoError(t, err)
	return a
}

func (r *recordingRepo) status(t *testing.T, id string) analyses.StatusRecord {
	t.Helper()
	rec, err := r.GetStatus(context.Background(), id)
	require.NoError(t, err)
	return rec
}

type harness struct {
	orch   *Orchestrator
	docs   *fakeDocs
	repo   *recordingRepo
	stages *fakeStages
}

func newHarness(t *testing.T, capacity int, opts ...func(*Deps)) *harness {
	t.Helper()
	h := &harness{docs: newFakeDocs(), repo: newRecordingRepo(), stages: &fakeStages{}}
	deps := Deps{
		Documents: h.docs,
		Analyses:  h.repo,
		Stages:    h.stages,
		Admission: NewAdmission(capacity),
	}
	for _, opt := range opts {
		opt(&deps)
	}
	h.orch = New(deps)
	return h
}

func withRunTimeout(d time.Duration) func(*Deps) {
	return func(deps *Deps) { deps.RunTimeout = d }
}

func withConjointTimeout(d time.Duration) func(*Deps) {
	return func(deps *Deps) { deps.ConjointTimeoutPerDocument = d }
}

// sourceArtifact is a completed prior analysis that still has its extracted
// and translated text.
func sourceArtifact(id string) analyses.Artifact {
	return analyses.Artifact{
		DocumentID: id,
		Type:       "lease",
		Original:   &analyses.Original{Text: "Der Mieter zahlt die Miete."},
		Translated: []analyses.Clause{{Index: 0, Heading: "Rent", Text: "The tenant pays the rent.", OriginalLanguage: "de"}},
		Checklist: &analyses.Checklist{
			Kind:         analyses.ChecklistSpecialized,
			DocumentType: "lease",
			Items:        []analyses.ChecklistItem{{Requirement: "Rent amount", Status: analyses.ItemMissing}},
		},
		Report: &analyses.Report{Summary: "previous report"},
	}
}

var errStageBoom = errors.New("classifier unavailable")

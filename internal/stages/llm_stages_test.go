package stages

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"legal-backend/internal/analyses"
	"legal-backend/internal/llm"
)

type scriptedLLM struct {
	mu      sync.Mutex
	replies map[llm.Task][]string
	errs    map[llm.Task][]error
	calls   map[llm.Task]int
	lastReq map[llm.Task]llm.Request
}

func newScriptedLLM() *scriptedLLM {
	return &scriptedLLM{
		replies: map[llm.Task][]string{},
		errs:    map[llm.Task][]error{},
		calls:   map[llm.Task]int{},
		lastReq: map[llm.Task]llm.Request{},
	}
}

func (s *scriptedLLM) CompleteJSON(ctx context.Context, req llm.Request) (json.RawMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := s.calls[req.Task]
	s.calls[req.Task] = n + 1
	s.lastReq[req.Task] = req
	if errs := s.errs[req.Task]; n < len(errs) && errs[n] != nil {
		return nil, errs[n]
	}
	replies := s.replies[req.Task]
	if len(replies) == 0 {
		return nil, errors.New("no scripted reply")
	}
	if n >= len(replies) {
		n = len(replies) - 1
	}
	return json.RawMessage(replies[n]), nil
}

func TestTranslateAndStructureReindexes(t *testing.T) {
	fake := newScriptedLLM()
	fake.replies[llm.TaskTranslate] = []string{`{"clauses":[{"index":4,"text":"First."},{"index":9,"heading":"Term","text":"Second.","originalLanguage":"de"}]}`}

	clauses, err := NewLLMStages(fake, nil).TranslateAndStructure(context.Background(), "Erstens. Zweitens.")
	require.NoError(t, err)
	require.Len(t, clauses, 2)
	assert.Equal(t, 0, clauses[0].Index)
	assert.Equal(t, 1, clauses[1].Index)
	assert.Equal(t, "de", clauses[1].OriginalLanguage)
	assert.Equal(t, "Erstens. Zweitens.", fake.lastReq[llm.TaskTranslate].User)
}

func TestTranslateRejectsSchemaMismatch(t *testing.T) {
	fake := newScriptedLLM()
	fake.replies[llm.TaskTranslate] = []string{`{"clauses":[]}`}

	_, err := NewLLMStages(fake, nil).TranslateAndStructure(context.Background(), "text")
	require.ErrorIs(t, err, ErrSchemaMismatch)
	var ve *ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, llm.TaskTranslate, ve.Task)
}

func TestClassifyNormalizesType(t *testing.T) {
	fake := newScriptedLLM()
	fake.replies[llm.TaskClassify] = []string{`{"type":"Power of Attorney","confidence":0.8}`}

	docType, err := NewLLMStages(fake, nil).Classify(context.Background(), []analyses.Clause{{Text: "I appoint"}})
	require.NoError(t, err)
	assert.Equal(t, "power_of_attorney", docType)
}

func TestDomainAnalyzeSpecialized(t *testing.T) {
	fake := newScriptedLLM()
	fake.replies[llm.TaskAnalyze] = []string{`{"items":[{"requirement":"definition of confidential information","status":"satisfied","clauseRefs":[0]},{"requirement":"remedies for breach","status":"missing"}]}`}

	checklist, err := NewLLMStages(fake, nil).DomainAnalyze(context.Background(), "nda", []analyses.Clause{{Index: 0, Text: "Confidential information means..."}})
	require.NoError(t, err)
	assert.Equal(t, analyses.ChecklistSpecialized, checklist.Kind)
	assert.Equal(t, "nda", checklist.DocumentType)
	require.Len(t, checklist.Items, 2)
	assert.Equal(t, analyses.ItemMissing, checklist.Items[1].Status)
	assert.Contains(t, fake.lastReq[llm.TaskAnalyze].User, "remedies for breach")
}

func TestDomainAnalyzeUnknownTypeSkipsLLM(t *testing.T) {
	fake := newScriptedLLM()

	checklist, err := NewLLMStages(fake, nil).DomainAnalyze(context.Background(), "court_filing", nil)
	require.NoError(t, err)
	assert.Equal(t, analyses.ChecklistUnspecialized, checklist.Kind)
	assert.Equal(t, "court_filing", checklist.DocumentType)
	assert.Zero(t, fake.calls[llm.TaskAnalyze])
}

func TestDomainAnalyzeRejectsUnknownItemStatus(t *testing.T) {
	fake := newScriptedLLM()
	fake.replies[llm.TaskAnalyze] = []string{`{"items":[{"requirement":"x","status":"maybe"}]}`}

	_, err := NewLLMStages(fake, nil).DomainAnalyze(context.Background(), "lease", nil)
	assert.ErrorIs(t, err, ErrSchemaMismatch)
}

func TestSynthesizeReportIncludesInstructionsAndDocuments(t *testing.T) {
	fake := newScriptedLLM()
	fake.replies[llm.TaskReport] = []string{`{"summary":"Two related agreements.","findings":[],"recommendations":["Align terms."],"crossDocumentNotes":["Term differs."]}`}

	report, err := NewLLMStages(fake, nil).SynthesizeReport(context.Background(), ReportInput{
		DocumentType: "contract",
		Original:     "=== Document 1: a.pdf (id: a) ===\nOriginalklausel",
		Clauses:      []analyses.Clause{{Index: 0, Text: "Clause"}},
		Checklist:    analyses.UnspecializedChecklist("contract"),
		Instructions: "Focus on termination.",
		Documents:    []analyses.SourceDocument{{ID: "a", FileName: "a.pdf"}, {ID: "b", FileName: "b.pdf"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "Two related agreements.", report.Summary)
	assert.Equal(t, []string{"Term differs."}, report.CrossDocumentNotes)
	assert.NotNil(t, report.Findings)

	user := fake.lastReq[llm.TaskReport].User
	assert.Contains(t, user, "Focus on termination.")
	assert.Contains(t, user, "b.pdf (id: b)")
	assert.Contains(t, user, "Original text:\n=== Document 1: a.pdf (id: a) ===\nOriginalklausel")
}

func TestExtractTextDelegatesToExtractor(t *testing.T) {
	text, err := NewLLMStages(newScriptedLLM(), nil).ExtractText(context.Background(), []byte("Contract text"), "text/plain", "c.txt")
	require.NoError(t, err)
	assert.Equal(t, "Contract text", text)
}

func TestRetryingLLMRetriesTransientOnce(t *testing.T) {
	fake := newScriptedLLM()
	fake.errs[llm.TaskClassify] = []error{errors.New("openai http status 503")}
	fake.replies[llm.TaskClassify] = []string{`{"type":"lease"}`}

	client := retryingLLM{base: fake, delay: time.Millisecond}
	raw, err := client.CompleteJSON(context.Background(), llm.Request{Task: llm.TaskClassify})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"lease"}`, string(raw))
	assert.Equal(t, 2, fake.calls[llm.TaskClassify])
}

func TestRetryingLLMDoesNotRetryPermanentErrors(t *testing.T) {
	fake := newScriptedLLM()
	fake.errs[llm.TaskClassify] = []error{errors.New("openai error: invalid api key (auth)")}

	client := retryingLLM{base: fake, delay: time.Millisecond}
	_, err := client.CompleteJSON(context.Background(), llm.Request{Task: llm.TaskClassify})
	require.Error(t, err)
	assert.Equal(t, 1, fake.calls[llm.TaskClassify])
}

func TestShouldRetryLLM(t *testing.T) {
	assert.True(t, shouldRetryLLM(context.DeadlineExceeded))
	assert.True(t, shouldRetryLLM(errors.New("read: connection reset by peer")))
	assert.False(t, shouldRetryLLM(llm.ErrNotImplemented))
	assert.False(t, shouldRetryLLM(context.Canceled))
	assert.False(t, shouldRetryLLM(nil))
}

func TestRegistryLookup(t *testing.T) {
	reg := DefaultRegistry()
	_, ok := reg.Lookup("Employment")
	assert.True(t, ok)
	_, ok = reg.Lookup("will")
	assert.False(t, ok)
	assert.Equal(t, []string{"contract", "employment", "lease", "nda", "power_of_attorney"}, reg.Types())
}
